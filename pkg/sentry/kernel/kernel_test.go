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


package kernel

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"gvisor.dev/rvos/pkg/abi/linux"
	"gvisor.dev/rvos/pkg/hostarch"
	"gvisor.dev/rvos/pkg/log"
	"gvisor.dev/rvos/pkg/rvasm"
	"gvisor.dev/rvos/pkg/sentry/arch"
	"gvisor.dev/rvos/pkg/sentry/platform"
	"gvisor.dev/rvos/pkg/sentry/platform/rv64"
)

const (
	testKernelBase = 0x80200000
	testMemoryEnd  = 0x80600000
)

// testSyscalls is a minimal table: write to the console, exit, yield and
// getpid.
var testSyscalls = &SyscallTable{
	Table: map[uintptr]Syscall{
		linux.SYS_WRITE: {Name: "write", Fn: func(t *Task, args arch.SyscallArguments) (uintptr, *SyscallControl, error) {
			buf := make([]byte, args[2].SizeT())
			n, err := t.CopyInBytes(args[1].Pointer(), buf)
			platform.ConsoleWriter{Firmware: t.Kernel().Firmware()}.Write(buf[:n])
			return uintptr(n), nil, err
		}},
		linux.SYS_EXIT: {Name: "exit", Fn: func(t *Task, args arch.SyscallArguments) (uintptr, *SyscallControl, error) {
			t.PrepareExit(args[0].Int())
			return 0, CtrlDoExit, nil
		}},
		linux.SYS_SCHED_YIELD: {Name: "yield", Fn: func(t *Task, args arch.SyscallArguments) (uintptr, *SyscallControl, error) {
			return 0, CtrlYield, nil
		}},
		linux.SYS_GETPID: {Name: "getpid", Fn: func(t *Task, args arch.SyscallArguments) (uintptr, *SyscallControl, error) {
			return uintptr(t.PID()), nil, nil
		}},
	},
}

type testKernel struct {
	*Kernel
	out *bytes.Buffer
}

func newTestKernel(t *testing.T, preempt bool, limit uint64) testKernel {
	t.Helper()
	var out bytes.Buffer
	k, err := New(InitKernelArgs{
		KernelBase:       testKernelBase,
		MemoryEnd:        testMemoryEnd,
		ClockFreq:        10_000_000,
		TicksPerSec:      100,
		CyclesPerInsn:    1,
		MaxTasks:         4,
		InstructionLimit: limit,
		Preempt:          preempt,
		Console:          &out,
		SyscallTable:     testSyscalls,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return testKernel{Kernel: k, out: &out}
}

// program assembles build into an ELF image. build starts at _start.
func program(t *testing.T, build func(p *rvasm.Program)) []byte {
	t.Helper()
	p := rvasm.New()
	p.Label(rvasm.EntrySymbol)
	build(p)
	img, err := p.Link(rvasm.LinkOptions{})
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	return img
}

func putc(p *rvasm.Program, c byte) {
	label := "char" + string(c)
	p.Bytes(label, []byte{c})
	p.LI(rvasm.A0, linux.STDOUT_FILENO)
	p.LA(rvasm.A1, label)
	p.LI(rvasm.A2, 1)
	p.Syscall(linux.SYS_WRITE)
}

func exitWith(p *rvasm.Program, code int64) {
	p.LI(rvasm.A0, code)
	p.Syscall(linux.SYS_EXIT)
}

// yielder writes c and yields n times, then exits with code.
func yielder(c byte, n int, code int64) func(p *rvasm.Program) {
	return func(p *rvasm.Program) {
		p.LI(rvasm.S0, int64(n))
		p.Label("loop")
		putc(p, c)
		p.Syscall(linux.SYS_SCHED_YIELD)
		p.ADDI(rvasm.S0, rvasm.S0, -1)
		p.BNEZ(rvasm.S0, "loop")
		exitWith(p, code)
	}
}

func (k testKernel) start(t *testing.T, name string, img []byte) *Task {
	t.Helper()
	task, err := k.StartELF(name, img)
	if err != nil {
		t.Fatalf("StartELF(%s): %v", name, err)
	}
	return task
}

func (k testKernel) run(t *testing.T) {
	t.Helper()
	if err := k.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if req, failure := k.Firmware().ShutdownRequested(); !req || failure {
		t.Errorf("ShutdownRequested = %t, %t, want true, false", req, failure)
	}
}

func exitCodes(infos []TaskInfo) map[string]int32 {
	m := make(map[string]int32)
	for _, i := range infos {
		m[i.Name] = i.ExitCode
	}
	return m
}

func TestBootWithoutTasks(t *testing.T) {
	var logs bytes.Buffer
	old := log.Log()
	log.SetTarget(&log.Writer{Next: &logs})
	defer log.SetTarget(old.Emitter)

	k := newTestKernel(t, false, 0)
	k.run(t)
	if requested, failure := k.Firmware().ShutdownRequested(); !requested || failure {
		t.Errorf("ShutdownRequested() = %v, %v, want true, false", requested, failure)
	}
	if want := "All applications completed!"; !strings.Contains(logs.String(), want) {
		t.Errorf("log lacks %q:\n%s", want, logs.String())
	}
	if got := k.Tasks(); len(got) != 0 {
		t.Errorf("Tasks = %v, want none", got)
	}
	if satp := k.Hart().CSR(rv64.CSRSATP); satp>>60 != 8 {
		t.Errorf("satp = %#x, want SV39 mode", satp)
	}
}

func TestNewRejectsBadMemory(t *testing.T) {
	for _, args := range []InitKernelArgs{
		{KernelBase: testKernelBase, MemoryEnd: testKernelBase + 0x1000, ClockFreq: 1, TicksPerSec: 1, SyscallTable: testSyscalls},
		{KernelBase: testKernelBase + 1, MemoryEnd: testMemoryEnd, ClockFreq: 1, TicksPerSec: 1, SyscallTable: testSyscalls},
		{KernelBase: testKernelBase, MemoryEnd: testMemoryEnd, SyscallTable: testSyscalls},
		{KernelBase: testKernelBase, MemoryEnd: testMemoryEnd, ClockFreq: 1, TicksPerSec: 1},
		{KernelBase: testKernelBase, MemoryEnd: testMemoryEnd, ClockFreq: 1, TicksPerSec: 1, UserStackSize: 100, SyscallTable: testSyscalls},
	} {
		if _, err := New(args); err == nil {
			t.Errorf("New(%+v) succeeded, want error", args)
		}
	}
}

func TestSingleTask(t *testing.T) {
	k := newTestKernel(t, false, 0)
	task := k.start(t, "one", program(t, func(p *rvasm.Program) {
		putc(p, 'x')
		exitWith(p, 3)
	}))
	if task.Status() != TaskReady {
		t.Errorf("status after start = %v, want Ready", task.Status())
	}
	k.run(t)
	if got := k.out.String(); got != "x" {
		t.Errorf("console = %q, want %q", got, "x")
	}
	want := []TaskInfo{{PID: 0, Parent: -1, Name: "one", Status: TaskExited, State: "Exited", ExitCode: 3}}
	if diff := cmp.Diff(want, k.Exits()); diff != "" {
		t.Errorf("Exits mismatch (-want +got):\n%s", diff)
	}
	if got := k.Tasks(); len(got) != 0 {
		t.Errorf("Tasks after run = %v, want none", got)
	}
}

func TestRoundRobin(t *testing.T) {
	k := newTestKernel(t, false, 0)
	k.start(t, "a", program(t, yielder('A', 3, 0)))
	k.start(t, "b", program(t, yielder('B', 3, 0)))
	k.start(t, "c", program(t, yielder('C', 2, 0)))
	k.run(t)
	if got, want := k.out.String(), "ABCABCAB"; got != want {
		t.Errorf("console = %q, want %q", got, want)
	}
}

func TestFaultIsolation(t *testing.T) {
	k := newTestKernel(t, false, 0)
	k.start(t, "illegal", program(t, func(p *rvasm.Program) {
		p.SRET()
		exitWith(p, 0)
	}))
	k.start(t, "store", program(t, func(p *rvasm.Program) {
		p.SD(rvasm.Zero, rvasm.Zero, 0)
		exitWith(p, 0)
	}))
	k.start(t, "load", program(t, func(p *rvasm.Program) {
		p.LI(rvasm.T0, -0x1000)
		p.LD(rvasm.T1, rvasm.T0, 0)
		exitWith(p, 0)
	}))
	k.start(t, "fine", program(t, yielder('.', 4, 5)))
	k.run(t)
	want := map[string]int32{"illegal": -3, "store": -2, "load": -2, "fine": 5}
	if diff := cmp.Diff(want, exitCodes(k.Exits())); diff != "" {
		t.Errorf("exit codes mismatch (-want +got):\n%s", diff)
	}
	if got := k.out.String(); got != "...." {
		t.Errorf("console = %q, want %q", got, "....")
	}
}

func TestFaultReportedAfterRejectedSyscalls(t *testing.T) {
	var logs bytes.Buffer
	old := log.Log()
	log.SetTarget(&log.Writer{Next: &logs})
	defer log.SetTarget(old.Emitter)

	k := newTestKernel(t, false, 0)
	k.start(t, "noisy", program(t, func(p *rvasm.Program) {
		for i := 0; i < 8; i++ {
			p.Syscall(999)
		}
		p.LI(rvasm.T0, 0x40000000)
		p.LD(rvasm.T1, rvasm.T0, 0)
		exitWith(p, 0)
	}))
	k.run(t)
	if got := exitCodes(k.Exits())["noisy"]; got != -2 {
		t.Errorf("exit code = %d, want -2", got)
	}
	if want := "in application, bad addr = 0x40000000"; !strings.Contains(logs.String(), want) {
		t.Errorf("log lacks %q:\n%s", want, logs.String())
	}
}

func TestUnknownSyscall(t *testing.T) {
	k := newTestKernel(t, false, 0)
	k.start(t, "nosys", program(t, func(p *rvasm.Program) {
		p.Syscall(999)
		// Exit with the syscall's return value.
		p.Syscall(linux.SYS_EXIT)
	}))
	k.run(t)
	if got := exitCodes(k.Exits())["nosys"]; got != -1 {
		t.Errorf("exit code = %d, want -1", got)
	}
}

func TestGetpid(t *testing.T) {
	k := newTestKernel(t, false, 0)
	for _, name := range []string{"p0", "p1", "p2"} {
		k.start(t, name, program(t, func(p *rvasm.Program) {
			p.Syscall(linux.SYS_GETPID)
			p.Syscall(linux.SYS_EXIT)
		}))
	}
	k.run(t)
	want := map[string]int32{"p0": 0, "p1": 1, "p2": 2}
	if diff := cmp.Diff(want, exitCodes(k.Exits())); diff != "" {
		t.Errorf("exit codes mismatch (-want +got):\n%s", diff)
	}
}

func TestPreemption(t *testing.T) {
	k := newTestKernel(t, true, 0)
	// About 3M instructions, 30 timer ticks.
	k.start(t, "spin", program(t, func(p *rvasm.Program) {
		p.LI(rvasm.T0, 1_000_000)
		p.Label("loop")
		p.ADDI(rvasm.T0, rvasm.T0, -1)
		p.BNEZ(rvasm.T0, "loop")
		exitWith(p, 0)
	}))
	k.start(t, "quick", program(t, func(p *rvasm.Program) {
		putc(p, 'q')
		exitWith(p, 0)
	}))
	k.run(t)
	exits := k.Exits()
	if len(exits) != 2 || exits[0].Name != "quick" {
		t.Errorf("Exits = %+v, want quick to exit first", exits)
	}
}

func TestWithoutPreemptionSpinnerRunsFirst(t *testing.T) {
	k := newTestKernel(t, false, 0)
	k.start(t, "spin", program(t, func(p *rvasm.Program) {
		p.LI(rvasm.T0, 100_000)
		p.Label("loop")
		p.ADDI(rvasm.T0, rvasm.T0, -1)
		p.BNEZ(rvasm.T0, "loop")
		exitWith(p, 0)
	}))
	k.start(t, "quick", program(t, func(p *rvasm.Program) {
		exitWith(p, 0)
	}))
	k.run(t)
	if exits := k.Exits(); len(exits) != 2 || exits[0].Name != "spin" {
		t.Errorf("Exits = %+v, want spin to exit first", exits)
	}
}

func TestInstructionLimit(t *testing.T) {
	k := newTestKernel(t, false, 10_000)
	k.start(t, "forever", program(t, func(p *rvasm.Program) {
		p.Label("loop")
		p.J("loop")
	}))
	if err := k.Run(context.Background()); !errors.Is(err, platform.ErrInstructionLimit) {
		t.Errorf("Run = %v, want %v", err, platform.ErrInstructionLimit)
	}
	if got := k.Executed(); got != 10_000 {
		t.Errorf("Executed = %d, want 10000", got)
	}
}

func TestRunCancelled(t *testing.T) {
	k := newTestKernel(t, false, 0)
	k.start(t, "forever", program(t, func(p *rvasm.Program) {
		p.Label("loop")
		p.J("loop")
	}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := k.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Run = %v, want %v", err, context.Canceled)
	}
}

func TestTaskTableFull(t *testing.T) {
	k := newTestKernel(t, false, 0)
	img := program(t, func(p *rvasm.Program) { exitWith(p, 0) })
	for i := 0; i < 4; i++ {
		k.start(t, "t", img)
	}
	before := k.Allocator().Stats()
	if _, err := k.StartELF("extra", img); err == nil {
		t.Fatalf("StartELF succeeded with a full task table")
	}
	if diff := cmp.Diff(before, k.Allocator().Stats(), cmpopts.IgnoreFields(before, "Recycled")); diff != "" {
		t.Errorf("failed start leaked frames (-before +after):\n%s", diff)
	}
}

func TestBadELF(t *testing.T) {
	k := newTestKernel(t, false, 0)
	if _, err := k.StartELF("junk", []byte("not an elf")); err == nil {
		t.Errorf("StartELF succeeded on junk")
	}
	if _, err := k.StartProgram("missing"); err == nil {
		t.Errorf("StartProgram succeeded on a missing program")
	}
}

func TestNoFrameLeak(t *testing.T) {
	k := newTestKernel(t, false, 0)
	img := program(t, yielder('z', 2, 0))
	k.start(t, "first", img)
	k.run(t)
	before := k.Allocator().Stats()
	k.start(t, "second", img)
	k.run(t)
	if diff := cmp.Diff(before, k.Allocator().Stats(), cmpopts.IgnoreFields(before, "Recycled")); diff != "" {
		t.Errorf("frames leaked across a task lifetime (-before +after):\n%s", diff)
	}
}

func TestKernelStacksMapped(t *testing.T) {
	k := newTestKernel(t, false, 0)
	img := program(t, func(p *rvasm.Program) { exitWith(p, 0) })
	t0 := k.start(t, "a", img)
	t1 := k.start(t, "b", img)
	_, top0 := t0.KernelStack()
	bottom1, top1 := t1.KernelStack()
	if top0 != arch.TrampolineAddr {
		t.Errorf("slot 0 kernel stack top = %v, want %v", top0, arch.TrampolineAddr)
	}
	if top1 >= top0 || top0-top1 != hostarch.Addr(DefaultStackSize+hostarch.PageSize) {
		t.Errorf("slot 1 kernel stack top = %v, want a guard page below slot 0", top1)
	}
	var found int
	for _, a := range k.KernelAreas() {
		if a.Start == bottom1 && a.End == top1 && a.Droppable {
			found++
		}
	}
	if found != 1 {
		t.Errorf("kernel areas %v lack the stack [%v, %v)", k.KernelAreas(), bottom1, top1)
	}
	k.run(t)
	for _, a := range k.KernelAreas() {
		if a.Start == bottom1 {
			t.Errorf("kernel stack %v still mapped after exit", a)
		}
	}
}

func TestTimeMicros(t *testing.T) {
	k := newTestKernel(t, false, 0)
	k.start(t, "spin", program(t, func(p *rvasm.Program) {
		p.LI(rvasm.T0, 10_000)
		p.Label("loop")
		p.ADDI(rvasm.T0, rvasm.T0, -1)
		p.BNEZ(rvasm.T0, "loop")
		exitWith(p, 0)
	}))
	k.run(t)
	// At 10 MHz and one cycle per instruction, 10 cycles are a microsecond.
	if got, want := k.TimeMicros(), k.Hart().Time()/10; got != want {
		t.Errorf("TimeMicros = %d, want %d", got, want)
	}
}

func TestKernelTrapPanics(t *testing.T) {
	k := newTestKernel(t, false, 0)
	k.start(t, "a", program(t, func(p *rvasm.Program) { exitWith(p, 0) }))
	defer func() {
		r := recover()
		if r == nil || !strings.Contains(r.(string), "a trap from kernel!") {
			t.Errorf("recover = %v, want a kernel trap panic", r)
		}
	}()
	// Jump to an address the kernel page table does not map.
	k.hart.SetPC(0x1000)
	(*runApp)(nil).execute(k.Kernel)
}
