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
	"gvisor.dev/rvos/pkg/hostarch"
	"gvisor.dev/rvos/pkg/sentry/kernel"
	"gvisor.dev/rvos/pkg/sentry/mm"
	"gvisor.dev/rvos/rvos/cmd/util"
	"gvisor.dev/rvos/rvos/config"
	"gvisor.dev/rvos/rvos/flag"
)

// Layout implements subcommands.Command for the "layout" command.
type Layout struct {
	format string
	kernel bool
}

// Name implements subcommands.Command.Name.
func (*Layout) Name() string {
	return "layout"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Layout) Synopsis() string {
	return "print the address space a program is loaded into"
}

// Usage implements subcommands.Command.Usage.
func (*Layout) Usage() string {
	return `layout [flags] <app|path.elf> - load a program without running it and print its memory areas.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (l *Layout) SetFlags(f *flag.FlagSet) {
	f.StringVar(&l.format, "format", "table", "output format (table, json, yaml).")
	f.BoolVar(&l.kernel, "kernel", false, "also print the kernel address space.")
}

// Execute implements subcommands.Command.Execute.
func (l *Layout) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config.Config)
	info, err := layoutOf(conf, f.Arg(0), l.kernel)
	if err != nil {
		util.Fatalf("%v", err)
	}
	if err := output(os.Stdout, l.format, info); err != nil {
		util.Fatalf("%v", err)
	}
	return subcommands.ExitSuccess
}

// layoutInfo describes a loaded program.
type layoutInfo struct {
	Program  string        `json:"program" yaml:"program"`
	Entry    hostarch.Addr `json:"entry" yaml:"entry"`
	StackTop hostarch.Addr `json:"stack_top" yaml:"stack_top"`
	Areas    []mm.AreaInfo `json:"areas" yaml:"areas"`
	Kernel   []mm.AreaInfo `json:"kernel,omitempty" yaml:"kernel,omitempty"`
}

// layoutOf boots a kernel with only the program in its task table, and
// reports the task's address space before it runs.
func layoutOf(conf *config.Config, arg string, withKernel bool) (*layoutInfo, error) {
	conf = conf.Clone()
	conf.MaxApps = 1
	catalog, names, err := buildCatalog([]string{arg})
	if err != nil {
		return nil, err
	}
	k, err := kernel.New(kernelArgs(conf, catalog, io.Discard, nil))
	if err != nil {
		return nil, fmt.Errorf("creating kernel: %w", err)
	}
	t, err := k.StartProgram(names[0])
	if err != nil {
		return nil, fmt.Errorf("loading %q: %w", arg, err)
	}
	cx := t.TrapContext()
	info := &layoutInfo{
		Program:  names[0],
		Entry:    hostarch.Addr(cx.SEPC),
		StackTop: t.StackTop(),
		Areas:    t.MemoryManager().Areas(),
	}
	if withKernel {
		info.Kernel = k.KernelAreas()
	}
	return info, nil
}

func writeAreas(w io.Writer, areas []mm.AreaInfo) error {
	if _, err := fmt.Fprintf(w, "START\tEND\tPERM\tTYPE\tDROPPABLE\n"); err != nil {
		return err
	}
	for _, a := range areas {
		if _, err := fmt.Fprintf(w, "%v\t%v\t%s\t%s\t%t\n", a.Start, a.End, a.Perm, a.MapType, a.Droppable); err != nil {
			return err
		}
	}
	return nil
}

func (l *layoutInfo) writeTable(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "program:\t%s\nentry:\t%v\nstack top:\t%v\n\n", l.Program, l.Entry, l.StackTop); err != nil {
		return err
	}
	if err := writeAreas(w, l.Areas); err != nil {
		return err
	}
	if len(l.Kernel) == 0 {
		return nil
	}
	if _, err := fmt.Fprintf(w, "\nkernel:\n"); err != nil {
		return err
	}
	return writeAreas(w, l.Kernel)
}
