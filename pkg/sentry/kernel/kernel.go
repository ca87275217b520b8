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


// Package kernel implements the core of the teaching kernel: tasks, the
// round-robin scheduler, the context switch and the trap gateway.
//
// The kernel runs as Go code on a simulated hart (see platform/rv64). User
// programs and the trampoline run as RISC-V instructions. Control passes from
// the hart to Go when it reaches one of the kernel entry points in the kernel
// image, and back when the kernel jumps into the trampoline's restore code.
//
// Lock order: a Kernel holds two sync.Cells, the task table and the kernel
// address space. Neither is ever borrowed while the other is.
package kernel

import (
	"context"
	"fmt"
	"io"
	"math/bits"
	"time"

	"gvisor.dev/rvos/pkg/abi/linux"
	"gvisor.dev/rvos/pkg/hostarch"
	"gvisor.dev/rvos/pkg/log"
	"gvisor.dev/rvos/pkg/safemem"
	"gvisor.dev/rvos/pkg/sentry/arch"
	"gvisor.dev/rvos/pkg/sentry/loader"
	"gvisor.dev/rvos/pkg/sentry/mm"
	"gvisor.dev/rvos/pkg/sentry/pgalloc"
	"gvisor.dev/rvos/pkg/sentry/platform/rv64"
	"gvisor.dev/rvos/pkg/sync"
)

// Defaults for InitKernelArgs fields left zero.
const (
	DefaultBootStackPages = 16
	DefaultMaxTasks       = 16
	DefaultStackSize      = 2 * hostarch.PageSize
)

// InitKernelArgs holds arguments to New.
type InitKernelArgs struct {
	// KernelBase is where the kernel image is loaded. Physical memory
	// starts here.
	KernelBase hostarch.PhysAddr

	// MemoryEnd is the end of physical memory.
	MemoryEnd hostarch.PhysAddr

	// BootStackPages is the size of the boot stack in .bss.
	BootStackPages int

	// ClockFreq is the frequency of the time counter in Hz.
	ClockFreq uint64

	// TicksPerSec is the number of timer interrupts per second.
	TicksPerSec uint64

	// CyclesPerInsn is how far the time counter advances per instruction.
	CyclesPerInsn uint64

	// MaxTasks is the size of the task table.
	MaxTasks int

	// UserStackSize and KernelStackSize are per task.
	UserStackSize   uint64
	KernelStackSize uint64

	// InstructionLimit stops Run with platform.ErrInstructionLimit after
	// this many user and trampoline instructions. Zero means no limit.
	InstructionLimit uint64

	// Preempt enables the timer interrupt.
	Preempt bool

	// Console receives console output. Input, if not nil, supplies console
	// input.
	Console io.Writer
	Input   io.Reader

	// Catalog resolves program names for exec.
	Catalog *loader.Catalog

	// SyscallTable dispatches system calls.
	SyscallTable *SyscallTable
}

// taskTable is the scheduler state.
type taskTable struct {
	// slots holds every task that has not been reaped. A nil slot is free.
	slots []*Task

	// cur is the slot of the running task.
	cur int

	// detached holds exited tasks nobody will wait for. They are reaped
	// after the next context switch.
	detached []*Task

	// exited records every task exit, in order.
	exited []TaskInfo
}

// Kernel is the whole machine: physical memory, the hart, the kernel address
// space and the tasks.
type Kernel struct {
	mem   *safemem.Memory
	hart  *rv64.Hart
	sbi   *rv64.SBI
	image Image
	alloc *pgalloc.Allocator

	kernelSpace *sync.Cell[*mm.AddressSpace]
	kernelToken uint64

	tasks *sync.Cell[taskTable]

	catalog  *loader.Catalog
	syscalls *SyscallTable

	clockFreq       uint64
	timerInterval   uint64
	preempt         bool
	userStackSize   uint64
	kernelStackSize uint64
	insnLimit       uint64

	nextPID PID

	// executed counts instructions run by the hart.
	executed uint64

	// ctx is the context passed to Run.
	ctx context.Context

	// syscallErrs rate limits reports of rejected system calls. Tasks
	// killed for a fault are always reported.
	syscallErrs log.Logger
}

// New boots a kernel: it lays out and installs the kernel image, sets up the
// frame allocator, builds the kernel address space and turns on paging.
// Tasks are added with StartProgram and StartELF.
func New(args InitKernelArgs) (*Kernel, error) {
	if args.SyscallTable == nil {
		return nil, fmt.Errorf("no syscall table")
	}
	if args.ClockFreq == 0 || args.TicksPerSec == 0 {
		return nil, fmt.Errorf("clock frequency and tick rate must be set")
	}
	if args.BootStackPages == 0 {
		args.BootStackPages = DefaultBootStackPages
	}
	if args.MaxTasks == 0 {
		args.MaxTasks = DefaultMaxTasks
	}
	if args.UserStackSize == 0 {
		args.UserStackSize = DefaultStackSize
	}
	if args.KernelStackSize == 0 {
		args.KernelStackSize = DefaultStackSize
	}
	for _, s := range []uint64{args.UserStackSize, args.KernelStackSize} {
		if s%hostarch.PageSize != 0 {
			return nil, fmt.Errorf("stack size %#x is not page aligned", s)
		}
	}
	if args.Catalog == nil {
		args.Catalog = loader.NewCatalog()
	}
	if args.Console == nil {
		args.Console = io.Discard
	}

	img := NewImage(args.KernelBase, args.MemoryEnd, args.BootStackPages)
	if args.KernelBase.PageOffset() != 0 || args.MemoryEnd.PageOffset() != 0 || args.MemoryEnd <= img.Layout.Ekernel() {
		return nil, fmt.Errorf("bad physical memory [%v, %v): the kernel image needs [%v, %v)", args.KernelBase, args.MemoryEnd, args.KernelBase, img.Layout.Ekernel())
	}
	mem := safemem.NewMemory(args.KernelBase, args.MemoryEnd)
	if err := img.Install(mem); err != nil {
		return nil, err
	}
	log.Infof("[kernel] %s", Banner)

	poolStart := img.Layout.Ekernel().CeilPageNumber()
	poolEnd := args.MemoryEnd.PageNumber()
	log.Infof("[kernel] frame pool [%v, %v)", poolStart.Addr(), poolEnd.Addr())
	alloc := pgalloc.New(mem, poolStart, poolEnd)

	ks, err := mm.NewKernel(alloc, img.Layout)
	if err != nil {
		return nil, fmt.Errorf("building kernel address space: %w", err)
	}

	hart := rv64.New(mem, rv64.Options{CyclesPerInsn: args.CyclesPerInsn})
	k := &Kernel{
		mem:             mem,
		hart:            hart,
		sbi:             rv64.NewSBI(hart, args.Console, args.Input),
		image:           img,
		alloc:           alloc,
		kernelSpace:     sync.NewCell("kernel space", ks),
		kernelToken:     ks.Token(),
		tasks:           sync.NewCell("task table", taskTable{slots: make([]*Task, args.MaxTasks), cur: args.MaxTasks - 1}),
		catalog:         args.Catalog,
		syscalls:        args.SyscallTable,
		clockFreq:       args.ClockFreq,
		timerInterval:   max(args.ClockFreq/args.TicksPerSec, 1),
		preempt:         args.Preempt,
		userStackSize:   args.UserStackSize,
		kernelStackSize: args.KernelStackSize,
		insnLimit:       args.InstructionLimit,
		nextPID:         0,
		ctx:             context.Background(),
		syscallErrs:     log.BasicRateLimitedLogger(100 * time.Millisecond),
	}
	for _, e := range img.symbols() {
		hart.RegisterEntry(e.addr, e.name)
	}
	k.activate()
	return k, nil
}

// activate turns on paging with the kernel page table and checks that the
// kernel text is still reachable at the same address.
func (k *Kernel) activate() {
	k.hart.SetCSR(rv64.CSRSATP, k.kernelToken)
	k.hart.SFenceVMA()
	insn, err := k.hart.Fetch(k.image.Entry)
	if err != nil {
		panic(fmt.Sprintf("kernel text unreachable after enabling paging: %v", err))
	}
	if insn != insnEBREAK {
		panic(fmt.Sprintf("kernel text at %#x holds %#x after enabling paging", k.image.Entry, insn))
	}
	k.setKernelTrapEntry()
	log.Infof("[kernel] paging enabled, satp = %#x", k.kernelToken)
	if k.preempt {
		k.hart.SetCSR(rv64.CSRSIE, rv64.SIESTIE)
		k.setNextTrigger()
	}
}

func (k *Kernel) setKernelTrapEntry() {
	k.hart.SetCSR(rv64.CSRSTVec, k.image.TrapFromKernel)
}

func (k *Kernel) setUserTrapEntry() {
	k.hart.SetCSR(rv64.CSRSTVec, uint64(arch.TrampolineAddr))
}

// setNextTrigger arms the timer for the next tick.
func (k *Kernel) setNextTrigger() {
	k.sbi.SetTimer(k.hart.Time() + k.timerInterval)
}

// withKernelSpace runs fn with the kernel address space borrowed.
func (k *Kernel) withKernelSpace(fn func(ks *mm.AddressSpace) error) error {
	ks := k.kernelSpace.Borrow()
	defer k.kernelSpace.Release()
	return fn(*ks)
}

// TimeMicros returns the time counter in microseconds.
func (k *Kernel) TimeMicros() uint64 {
	hi, lo := bits.Mul64(k.hart.Time(), linux.MicrosPerSec)
	us, _ := bits.Div64(hi%k.clockFreq, lo, k.clockFreq)
	return us
}

// Hart returns the hart the kernel runs on.
func (k *Kernel) Hart() *rv64.Hart {
	return k.hart
}

// Firmware returns the machine firmware.
func (k *Kernel) Firmware() *rv64.SBI {
	return k.sbi
}

// Image returns the kernel image layout.
func (k *Kernel) Image() Image {
	return k.image
}

// Allocator returns the frame allocator.
func (k *Kernel) Allocator() *pgalloc.Allocator {
	return k.alloc
}

// Catalog returns the program catalog used by exec.
func (k *Kernel) Catalog() *loader.Catalog {
	return k.catalog
}

// SyscallTable returns the syscall table.
func (k *Kernel) SyscallTable() *SyscallTable {
	return k.syscalls
}

// Executed returns the number of instructions run so far.
func (k *Kernel) Executed() uint64 {
	return k.executed
}

// KernelAreas describes the areas of the kernel address space.
func (k *Kernel) KernelAreas() []mm.AreaInfo {
	var areas []mm.AreaInfo
	k.withKernelSpace(func(ks *mm.AddressSpace) error {
		areas = ks.Areas()
		return nil
	})
	return areas
}

// Tasks returns a snapshot of every task that has not been reaped, in slot
// order.
func (k *Kernel) Tasks() []TaskInfo {
	tt := k.tasks.Borrow()
	defer k.tasks.Release()
	var infos []TaskInfo
	for _, t := range tt.slots {
		if t != nil {
			infos = append(infos, t.info())
		}
	}
	return infos
}

// Exits returns a record of every task exit so far, in order.
func (k *Kernel) Exits() []TaskInfo {
	tt := k.tasks.Borrow()
	defer k.tasks.Release()
	return append([]TaskInfo(nil), tt.exited...)
}

// Run schedules tasks until all of them have exited, ctx is cancelled, or the
// instruction limit is reached. It returns nil in the first case.
func (k *Kernel) Run(ctx context.Context) error {
	k.ctx = ctx
	defer func() { k.ctx = context.Background() }()

	state, err := k.runFirstTask()
	for state != nil && err == nil {
		state, err = state.execute(k)
	}
	return err
}
