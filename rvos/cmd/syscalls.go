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
	"gvisor.dev/rvos/pkg/sentry/kernel"
	"gvisor.dev/rvos/pkg/sentry/syscalls/linux"
	"gvisor.dev/rvos/rvos/cmd/util"
	"gvisor.dev/rvos/rvos/flag"
)

// Syscalls implements subcommands.Command for the "syscalls" command.
type Syscalls struct {
	output string
}

// Name implements subcommands.Command.Name.
func (*Syscalls) Name() string {
	return "syscalls"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Syscalls) Synopsis() string {
	return "Print the system call table."
}

// Usage implements subcommands.Command.Usage.
func (*Syscalls) Usage() string {
	return `syscalls [options] - Print the system call table.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (s *Syscalls) SetFlags(f *flag.FlagSet) {
	f.StringVar(&s.output, "o", "table", "Output format (table, json, yaml).")
}

// Execute implements subcommands.Command.Execute.
func (s *Syscalls) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if err := output(os.Stdout, s.output, syscallList(linux.RISCV64.Entries())); err != nil {
		util.Fatalf("Error writing output: %v", err)
	}
	return subcommands.ExitSuccess
}

// syscallList is a syscall table sorted by number.
type syscallList []kernel.SyscallInfo

func (l syscallList) writeTable(w io.Writer) error {
	// Write the header
	if _, err := fmt.Fprintf(w, "%s\t%s\t%s\n", "NUM", "NAME", "NOTE"); err != nil {
		return err
	}

	// Write each syscall entry
	for _, sc := range l {
		if _, err := fmt.Fprintf(w, "%d\t%s\t%s\n", sc.Number, sc.Name, sc.Note); err != nil {
			return err
		}
	}
	return nil
}
