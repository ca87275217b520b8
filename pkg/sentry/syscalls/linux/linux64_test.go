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


package linux

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gvisor.dev/rvos/pkg/abi/linux"
	"gvisor.dev/rvos/pkg/apps"
	"gvisor.dev/rvos/pkg/rvasm"
	"gvisor.dev/rvos/pkg/sentry/kernel"
)

type bootOpts struct {
	input         string
	cyclesPerInsn uint64
}

type booted struct {
	k   *kernel.Kernel
	out string
}

// boot runs the named built-in programs to completion. Every built-in
// program is in the exec catalog.
func boot(t *testing.T, opts bootOpts, names ...string) booted {
	t.Helper()
	catalog, err := apps.Catalog()
	if err != nil {
		t.Fatalf("apps.Catalog: %v", err)
	}
	if opts.cyclesPerInsn == 0 {
		opts.cyclesPerInsn = 1
	}
	var out bytes.Buffer
	k, err := kernel.New(kernel.InitKernelArgs{
		KernelBase:       0x80200000,
		MemoryEnd:        0x80800000,
		ClockFreq:        10_000_000,
		TicksPerSec:      100,
		CyclesPerInsn:    opts.cyclesPerInsn,
		InstructionLimit: 200_000_000,
		Preempt:          true,
		Console:          &out,
		Input:            strings.NewReader(opts.input),
		Catalog:          catalog,
		SyscallTable:     RISCV64,
	})
	if err != nil {
		t.Fatalf("kernel.New: %v", err)
	}
	for _, name := range names {
		if _, err := k.StartProgram(name); err != nil {
			t.Fatalf("StartProgram(%q): %v", name, err)
		}
	}
	if err := k.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v\nconsole:\n%s", err, out.String())
	}
	return booted{k: k, out: out.String()}
}

// bootELF runs a single assembled program.
func bootELF(t *testing.T, build func(p *rvasm.Program)) booted {
	t.Helper()
	p := rvasm.New()
	p.Label(rvasm.EntrySymbol)
	build(p)
	img, err := p.Link(rvasm.LinkOptions{})
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	var out bytes.Buffer
	k, err := kernel.New(kernel.InitKernelArgs{
		KernelBase:   0x80200000,
		MemoryEnd:    0x80600000,
		ClockFreq:    10_000_000,
		TicksPerSec:  100,
		Console:      &out,
		SyscallTable: RISCV64,
	})
	if err != nil {
		t.Fatalf("kernel.New: %v", err)
	}
	if _, err := k.StartELF("test", img); err != nil {
		t.Fatalf("StartELF: %v", err)
	}
	if err := k.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	return booted{k: k, out: out.String()}
}

func (b booted) exitCode(t *testing.T, name string) int32 {
	t.Helper()
	for _, e := range b.k.Exits() {
		if e.Name == name {
			return e.ExitCode
		}
	}
	t.Fatalf("%q never exited; exits: %+v", name, b.k.Exits())
	return 0
}

func (b booted) wantOutput(t *testing.T, lines ...string) {
	t.Helper()
	for _, l := range lines {
		if !strings.Contains(b.out, l) {
			t.Errorf("console lacks %q; console:\n%s", l, b.out)
		}
	}
}

func TestTable(t *testing.T) {
	var got []uintptr
	for _, e := range RISCV64.Entries() {
		got = append(got, e.Number)
	}
	want := []uintptr{63, 64, 93, 124, 169, 172, 215, 220, 221, 222, 260}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("syscall numbers mismatch (-want +got):\n%s", diff)
	}
}

func TestHelloWorld(t *testing.T) {
	b := boot(t, bootOpts{}, "hello_world")
	if want := "Hello world from user mode program!\n"; b.out != want {
		t.Errorf("console = %q, want %q", b.out, want)
	}
	if got := b.exitCode(t, "hello_world"); got != 0 {
		t.Errorf("exit code = %d, want 0", got)
	}
}

func TestSleep(t *testing.T) {
	// 100us per instruction keeps three seconds of machine time short.
	b := boot(t, bootOpts{cyclesPerInsn: 1000}, "sleep")
	b.wantOutput(t, "get_time OK! ", "Test1 sleep0 OK!\n")
	if got := b.exitCode(t, "sleep"); got != 0 {
		t.Errorf("exit code = %d, want 0", got)
	}
	if us := b.k.TimeMicros(); us < 3_000_000 {
		t.Errorf("machine time at exit = %dus, want at least 3s", us)
	}
}

func TestMmap(t *testing.T) {
	b := boot(t, bootOpts{}, "mmap")
	b.wantOutput(t, "Test2 mmap3 test OK!\n")
	if got := b.exitCode(t, "mmap"); got != 0 {
		t.Errorf("exit code = %d, want 0; console:\n%s", got, b.out)
	}
}

func TestMunmap(t *testing.T) {
	b := boot(t, bootOpts{}, "munmap")
	b.wantOutput(t, "munmap OK")
	if strings.Contains(b.out, "succeeded") {
		t.Errorf("console reports a failure:\n%s", b.out)
	}
	if got := b.exitCode(t, "munmap"); got != -2 {
		t.Errorf("exit code = %d, want -2", got)
	}
}

func TestPower(t *testing.T) {
	want := uint64(1)
	for i := 0; i < apps.PowerIters; i++ {
		want = want * 3 % apps.PowerModulus
	}
	b := boot(t, bootOpts{}, "power", "hello_world")
	b.wantOutput(t, fmt.Sprintf("3^100000 = %d\n", want), "power [20000/100000]\n", "Test power OK!\n")
	// Preemption lets hello_world finish while power computes.
	if exits := b.k.Exits(); len(exits) != 2 || exits[0].Name != "hello_world" {
		t.Errorf("Exits = %+v, want hello_world first", exits)
	}
}

func TestYield(t *testing.T) {
	b := boot(t, bootOpts{}, "yield", "yield")
	b.wantOutput(t, "Hello, I am process 0.\n", "Hello, I am process 1.\n",
		"Back in process 0, iteration 4.\n", "Back in process 1, iteration 4.\n", "yield pass.\n")
}

func TestForkExec(t *testing.T) {
	b := boot(t, bootOpts{}, "fork_exec")
	b.wantOutput(t, "exiting with code 7\n", fmt.Sprintf("child 1 exited with code %d\n", apps.ExitCodeValue))
	want := []kernel.TaskInfo{
		{PID: 1, Parent: 0, Name: "exit_code", Status: kernel.TaskExited, State: "Exited", ExitCode: apps.ExitCodeValue},
		{PID: 0, Parent: -1, Name: "fork_exec", Status: kernel.TaskExited, State: "Exited", ExitCode: 0},
	}
	if diff := cmp.Diff(want, b.k.Exits()); diff != "" {
		t.Errorf("Exits mismatch (-want +got):\n%s", diff)
	}
	if tasks := b.k.Tasks(); len(tasks) != 0 {
		t.Errorf("unreaped tasks: %+v", tasks)
	}
}

func TestWaitNone(t *testing.T) {
	b := boot(t, bootOpts{}, "wait_none")
	b.wantOutput(t, "wait_none OK!\n")
}

func TestEcho(t *testing.T) {
	in := "hello\nworld, this line is longer than the sixty four byte read buffer of echo\nno newline"
	b := boot(t, bootOpts{input: in}, "echo")
	if b.out != in {
		t.Errorf("console = %q, want %q", b.out, in)
	}
}

func TestFaultingApps(t *testing.T) {
	b := boot(t, bootOpts{}, "illegal", "bad_address", "hello_world")
	for name, want := range map[string]int32{"illegal": -3, "bad_address": -2, "hello_world": 0} {
		if got := b.exitCode(t, name); got != want {
			t.Errorf("%s exit code = %d, want %d", name, got, want)
		}
	}
	b.wantOutput(t, "Hello world from user mode program!\n")
}

func TestAllApps(t *testing.T) {
	var names []string
	for _, app := range apps.List() {
		if app.Name != "sleep" {
			names = append(names, app.Name)
		}
	}
	b := boot(t, bootOpts{}, names...)
	for _, e := range b.k.Exits() {
		app, faults := e.Name, false
		for _, a := range apps.List() {
			if a.Name == app {
				faults = a.Faults
			}
		}
		if want := e.ExitCode < 0; want != faults {
			t.Errorf("%s exited with %d", e.Name, e.ExitCode)
		}
	}
	if got, want := len(b.k.Exits()), len(names)+1; got != want {
		t.Errorf("%d exits, want %d (one per app and the forked child)", got, want)
	}
}

func TestErrorReturns(t *testing.T) {
	for _, tc := range []struct {
		name  string
		build func(p *rvasm.Program)
	}{
		{"write to stderr", func(p *rvasm.Program) {
			p.LI(rvasm.A0, linux.STDERR_FILENO)
			p.LI(rvasm.A1, 0x10000)
			p.LI(rvasm.A2, 4)
			p.Syscall(linux.SYS_WRITE)
		}},
		{"write from an unmapped buffer", func(p *rvasm.Program) {
			p.LI(rvasm.A0, linux.STDOUT_FILENO)
			p.LI(rvasm.A1, 0x40000000)
			p.LI(rvasm.A2, 4)
			p.Syscall(linux.SYS_WRITE)
		}},
		{"read from stdout", func(p *rvasm.Program) {
			p.LI(rvasm.A0, linux.STDOUT_FILENO)
			p.MV(rvasm.A1, rvasm.SP)
			p.LI(rvasm.A2, 1)
			p.Syscall(linux.SYS_READ)
		}},
		{"get_time into kernel memory", func(p *rvasm.Program) {
			p.LI(rvasm.A0, -0x2000)
			p.Syscall(linux.SYS_GETTIMEOFDAY)
		}},
		{"munmap of an unmapped range", func(p *rvasm.Program) {
			p.LI(rvasm.A0, 0x10000000)
			p.LI(rvasm.A1, 0x1000)
			p.Syscall(linux.SYS_MUNMAP)
		}},
		{"munmap of the text segment", func(p *rvasm.Program) {
			p.LI(rvasm.A0, rvasm.DefaultTextBase)
			p.LI(rvasm.A1, 0x1000)
			p.Syscall(linux.SYS_MUNMAP)
		}},
		{"mmap over the text segment", func(p *rvasm.Program) {
			p.LI(rvasm.A0, rvasm.DefaultTextBase)
			p.LI(rvasm.A1, 0x1000)
			p.LI(rvasm.A2, linux.PROT_READ)
			p.Syscall(linux.SYS_MMAP)
		}},
		{"mmap of nothing", func(p *rvasm.Program) {
			p.LI(rvasm.A0, 0x10000000)
			p.LI(rvasm.A1, 0)
			p.LI(rvasm.A2, linux.PROT_READ)
			p.Syscall(linux.SYS_MMAP)
		}},
		{"exec of a missing program", func(p *rvasm.Program) {
			p.String("path", "missing")
			p.LA(rvasm.A0, "path")
			p.Syscall(linux.SYS_EXECVE)
		}},
		{"exec with a bad path pointer", func(p *rvasm.Program) {
			p.LI(rvasm.A0, 0)
			p.Syscall(linux.SYS_EXECVE)
		}},
		{"waitpid for a stranger", func(p *rvasm.Program) {
			p.LI(rvasm.A0, 42)
			p.LI(rvasm.A1, 0)
			p.Syscall(linux.SYS_WAIT4)
		}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			b := bootELF(t, func(p *rvasm.Program) {
				tc.build(p)
				// Exit with the return value.
				p.Syscall(linux.SYS_EXIT)
			})
			if got := b.exitCode(t, "test"); got != -1 {
				t.Errorf("exit code = %d, want -1", got)
			}
		})
	}
}

func TestWaitpidStatusFault(t *testing.T) {
	// The child exits 3. While it runs, waitpid returns -2; once it has
	// exited, waitpid with a bad status pointer fails without reaping it,
	// so a second waitpid still finds it. The parent exits with the status
	// plus 10.
	b := bootELF(t, func(p *rvasm.Program) {
		p.Syscall(linux.SYS_CLONE)
		p.BNEZ(rvasm.A0, "parent")
		p.LI(rvasm.A0, 3)
		p.Syscall(linux.SYS_EXIT)

		p.Label("parent")
		p.MV(rvasm.S0, rvasm.A0)
		p.Label("wait")
		p.Syscall(linux.SYS_SCHED_YIELD)
		p.MV(rvasm.A0, rvasm.S0)
		p.LI(rvasm.A1, 8)
		p.Syscall(linux.SYS_WAIT4)
		p.LI(rvasm.T0, linux.WaitNotExited)
		p.BEQ(rvasm.A0, rvasm.T0, "wait")
		p.LI(rvasm.T0, -1)
		p.BNE(rvasm.A0, rvasm.T0, "bad")

		p.ADDI(rvasm.SP, rvasm.SP, -16)
		p.LI(rvasm.A0, linux.WaitAny)
		p.MV(rvasm.A1, rvasm.SP)
		p.Syscall(linux.SYS_WAIT4)
		p.BNE(rvasm.A0, rvasm.S0, "bad")
		p.LW(rvasm.A0, rvasm.SP, 0)
		p.ADDI(rvasm.A0, rvasm.A0, 10)
		p.Syscall(linux.SYS_EXIT)

		p.Label("bad")
		p.LI(rvasm.A0, 100)
		p.Syscall(linux.SYS_EXIT)
	})
	exits := b.k.Exits()
	if len(exits) != 2 {
		t.Fatalf("Exits = %+v, want two", exits)
	}
	if got := exits[0]; got.PID != 1 || got.ExitCode != 3 {
		t.Errorf("child exit = %+v, want pid 1 code 3", got)
	}
	if got := exits[1]; got.PID != 0 || got.ExitCode != 13 {
		t.Errorf("parent exit = %+v, want pid 0 code 13", got)
	}
	if tasks := b.k.Tasks(); len(tasks) != 0 {
		t.Errorf("unreaped tasks: %+v", tasks)
	}
}
