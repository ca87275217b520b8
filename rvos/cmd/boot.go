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
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/subcommands"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"
	"gvisor.dev/rvos/pkg/log"
	"gvisor.dev/rvos/pkg/sentry/kernel"
	"gvisor.dev/rvos/pkg/sentry/loader"
	"gvisor.dev/rvos/pkg/sentry/syscalls/linux"
	"gvisor.dev/rvos/rvos/cmd/util"
	"gvisor.dev/rvos/rvos/config"
	"gvisor.dev/rvos/rvos/flag"
)

// errInterrupted is returned by Boot when a signal stopped the kernel.
var errInterrupted = errors.New("interrupted")

// Boot implements subcommands.Command for the "boot" command.
type Boot struct {
	// input is the file read(0) reads from. Empty means stdin.
	input string

	// summary prints a table of task exits once the kernel halts.
	summary bool
}

// Name implements subcommands.Command.Name.
func (*Boot) Name() string {
	return "boot"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Boot) Synopsis() string {
	return "boot the kernel and run programs until every task exits"
}

// Usage implements subcommands.Command.Usage.
func (*Boot) Usage() string {
	return `boot [flags] [app|path.elf]... - boot the kernel with the given programs as initial tasks.

With no programs, every built-in program is started.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (b *Boot) SetFlags(f *flag.FlagSet) {
	f.StringVar(&b.input, "input", "", "file to use as console input instead of stdin.")
	f.BoolVar(&b.summary, "summary", false, "print the exit code of every task after shutdown.")
}

// Execute implements subcommands.Command.Execute.
func (b *Boot) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	conf := args[0].(*config.Config)

	in := io.Reader(os.Stdin)
	if b.input != "" {
		file, err := os.Open(b.input)
		if err != nil {
			util.Fatalf("opening console input: %v", err)
		}
		defer file.Close()
		in = file
	}

	var console io.Writer = os.Stdout
	if conf.RawConsole && b.input == "" && term.IsTerminal(int(os.Stdin.Fd())) {
		fd := int(os.Stdin.Fd())
		state, err := term.MakeRaw(fd)
		if err != nil {
			util.Fatalf("setting raw console: %v", err)
		}
		defer term.Restore(fd, state)
		// Raw mode disables output processing too.
		console = crlfWriter{os.Stdout}
	}

	exits, err := b.run(ctx, conf, f.Args(), console, in)
	if b.summary && exits != nil {
		if err := output(os.Stdout, "table", exitList(exits)); err != nil {
			util.Fatalf("writing summary: %v", err)
		}
	}
	if err != nil {
		util.Errorf("boot failed: %v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// run boots a kernel with the named programs as initial tasks and runs it
// until it halts, ctx is cancelled or a signal arrives. It returns the exits
// recorded by the kernel.
func (b *Boot) run(ctx context.Context, conf *config.Config, progs []string, console io.Writer, in io.Reader) ([]kernel.TaskInfo, error) {
	catalog, names, err := buildCatalog(progs)
	if err != nil {
		return nil, err
	}
	k, err := kernel.New(kernelArgs(conf, catalog, console, in))
	if err != nil {
		return nil, fmt.Errorf("creating kernel: %w", err)
	}
	for _, name := range names {
		if _, err := k.StartProgram(name); err != nil {
			return nil, fmt.Errorf("starting %q: %w", name, err)
		}
	}

	ctx, stop := context.WithCancel(ctx)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer stop()
		return k.Run(gctx)
	})
	g.Go(func() error {
		return waitForSignal(gctx)
	})
	err = g.Wait()
	return k.Exits(), err
}

// waitForSignal returns errInterrupted on SIGINT or SIGTERM, and nil once ctx
// is done.
func waitForSignal(ctx context.Context) error {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)
	select {
	case sig := <-sigs:
		log.Warningf("Received %v, stopping the kernel", sig)
		return errInterrupted
	case <-ctx.Done():
		return nil
	}
}

// kernelArgs maps the configuration onto kernel arguments.
func kernelArgs(conf *config.Config, catalog *loader.Catalog, console io.Writer, in io.Reader) kernel.InitKernelArgs {
	return kernel.InitKernelArgs{
		KernelBase:       conf.KernelBase.PhysAddr(),
		MemoryEnd:        conf.MemoryEnd.PhysAddr(),
		ClockFreq:        conf.ClockFreq,
		TicksPerSec:      conf.TicksPerSec,
		CyclesPerInsn:    conf.CyclesPerInsn,
		MaxTasks:         conf.MaxApps,
		UserStackSize:    conf.UserStackSize,
		KernelStackSize:  conf.KernelStackSize,
		InstructionLimit: conf.InstructionLimit,
		Preempt:          conf.Preempt,
		Console:          console,
		Input:            in,
		Catalog:          catalog,
		SyscallTable:     linux.RISCV64,
	}
}

// crlfWriter expands "\n" to "\r\n" for a terminal in raw mode.
type crlfWriter struct {
	w io.Writer
}

// Write implements io.Writer.Write.
func (c crlfWriter) Write(p []byte) (int, error) {
	n := 0
	for len(p) > 0 {
		i := bytes.IndexByte(p, '\n')
		if i < 0 {
			w, err := c.w.Write(p)
			return n + w, err
		}
		w, err := c.w.Write(p[:i])
		n += w
		if err != nil {
			return n, err
		}
		if _, err := c.w.Write([]byte("\r\n")); err != nil {
			return n, err
		}
		n++
		p = p[i+1:]
	}
	return n, nil
}

// exitList is the recorded exits of a kernel run.
type exitList []kernel.TaskInfo

func (l exitList) writeTable(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "PID\tNAME\tPARENT\tEXIT CODE\n"); err != nil {
		return err
	}
	for _, e := range l {
		if _, err := fmt.Fprintf(w, "%d\t%s\t%d\t%d\n", e.PID, e.Name, e.Parent, e.ExitCode); err != nil {
			return err
		}
	}
	return nil
}
