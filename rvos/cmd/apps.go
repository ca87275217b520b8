// Copyright 2026 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/google/subcommands"
	"gvisor.dev/rvos/pkg/apps"
	"gvisor.dev/rvos/rvos/cmd/util"
	"gvisor.dev/rvos/rvos/flag"
)

// Apps implements subcommands.Command for the "apps" command.
type Apps struct {
	format string
}

// Name implements subcommands.Command.Name.
func (*Apps) Name() string {
	return "apps"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Apps) Synopsis() string {
	return "list the built-in programs"
}

// Usage implements subcommands.Command.Usage.
func (*Apps) Usage() string {
	return `apps [flags] - list the built-in programs in boot order.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (a *Apps) SetFlags(f *flag.FlagSet) {
	f.StringVar(&a.format, "format", "table", "output format (table, json, yaml).")
}

// Execute implements subcommands.Command.Execute.
func (a *Apps) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	if err := output(os.Stdout, a.format, appList(apps.List())); err != nil {
		util.Fatalf("%v", err)
	}
	return subcommands.ExitSuccess
}

type appList []apps.App

func (l appList) writeTable(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "NAME\tFAULTS\tDESCRIPTION\n"); err != nil {
		return err
	}
	for _, app := range l {
		if _, err := fmt.Fprintf(w, "%s\t%t\t%s\n", app.Name, app.Faults, app.Description); err != nil {
			return err
		}
	}
	return nil
}
