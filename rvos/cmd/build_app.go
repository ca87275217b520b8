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
	"os"

	"github.com/google/subcommands"
	"gvisor.dev/rvos/pkg/apps"
	"gvisor.dev/rvos/rvos/cmd/util"
	"gvisor.dev/rvos/rvos/flag"
)

// BuildApp implements subcommands.Command for the "build-app" command.
type BuildApp struct {
	out string
}

// Name implements subcommands.Command.Name.
func (*BuildApp) Name() string {
	return "build-app"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*BuildApp) Synopsis() string {
	return "write the ELF image of a built-in program"
}

// Usage implements subcommands.Command.Usage.
func (*BuildApp) Usage() string {
	return `build-app -o <file> <app> - assemble a built-in program and write it to file.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (b *BuildApp) SetFlags(f *flag.FlagSet) {
	f.StringVar(&b.out, "o", "", "output file. Defaults to <app>.elf.")
}

// Execute implements subcommands.Command.Execute.
func (b *BuildApp) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	name := f.Arg(0)
	out := b.out
	if out == "" {
		out = name + ".elf"
	}
	if err := writeApp(name, out); err != nil {
		util.Fatalf("%v", err)
	}
	util.Infof("Wrote %s to %s", name, out)
	return subcommands.ExitSuccess
}

func writeApp(name, path string) error {
	img, err := apps.Build(name)
	if err != nil {
		return err
	}
	return os.WriteFile(path, img, 0755)
}
