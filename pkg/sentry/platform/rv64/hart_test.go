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


package rv64

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gvisor.dev/rvos/pkg/hostarch"
	"gvisor.dev/rvos/pkg/ring0/pagetables"
	"gvisor.dev/rvos/pkg/rvasm"
	"gvisor.dev/rvos/pkg/safemem"
	"gvisor.dev/rvos/pkg/sentry/arch"
	"gvisor.dev/rvos/pkg/sentry/pgalloc"
)

const (
	memBase  = 0x80000000
	memEnd   = 0x80100000
	codeBase = memBase
	handler  = 0x80000f00
)

// newBareHart returns a user mode hart with translation off, running the
// assembled program at codeBase. User traps land on handler.
func newBareHart(t *testing.T, build func(p *rvasm.Program)) *Hart {
	t.Helper()
	p := rvasm.New()
	build(p)
	words, err := p.Words(codeBase)
	if err != nil {
		t.Fatalf("assembling: %v", err)
	}
	mem := safemem.NewMemory(memBase, memEnd)
	writeWords(t, mem, codeBase, words)

	h := New(mem, Options{})
	h.SetCSR(CSRSTVec, handler)
	h.RegisterEntry(handler, "handler")
	h.priv = User
	h.SetPC(codeBase)
	return h
}

func writeWords(t *testing.T, mem *safemem.Memory, pa hostarch.PhysAddr, words []uint32) {
	t.Helper()
	b, err := mem.Block(pa, 4*len(words))
	if err != nil {
		t.Fatalf("code block: %v", err)
	}
	buf := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(buf[4*i:], w)
	}
	b.CopyIn(buf)
}

func runToEntry(t *testing.T, h *Hart, budget uint64) Stop {
	t.Helper()
	s := h.Run(budget)
	if s.Reason != StopEntry {
		t.Fatalf("Run stopped with %v at %#x, want entry (scause %v)", s.Reason, s.PC, Cause(h.CSR(CSRSCause)))
	}
	return s
}

func TestUserEcall(t *testing.T) {
	h := newBareHart(t, func(p *rvasm.Program) {
		p.LI(rvasm.A0, 6)
		p.LI(rvasm.A1, 7)
		p.MUL(rvasm.A2, rvasm.A0, rvasm.A1)
		p.LI(rvasm.A3, -1)
		p.SRLI(rvasm.A3, rvasm.A3, 60)
		p.Syscall(93)
	})
	s := runToEntry(t, h, 100)

	if got, want := h.ReadReg(int(rvasm.A2)), uint64(42); got != want {
		t.Errorf("a2 = %d, want %d", got, want)
	}
	if got, want := h.ReadReg(int(rvasm.A3)), uint64(0xf); got != want {
		t.Errorf("a3 = %#x, want %#x", got, want)
	}
	if got := Cause(h.CSR(CSRSCause)); got != CauseUserEcall {
		t.Errorf("scause = %v, want %v", got, CauseUserEcall)
	}
	// The ecall is the last instruction.
	if got, want := h.CSR(CSRSEPC), codeBase+4*(s.Executed-1); got != want {
		t.Errorf("sepc = %#x, want %#x", got, want)
	}
	if h.Priv() != Supervisor {
		t.Errorf("priv = %v after trap, want S", h.Priv())
	}
	if h.CSR(CSRSStatus)&arch.SStatusSPP != 0 {
		t.Errorf("sstatus.SPP set after a user trap")
	}
	if got, want := h.Time(), s.Executed; got != want {
		t.Errorf("time = %d, want %d", got, want)
	}
}

func TestLoopsAndMemory(t *testing.T) {
	// Sum 1..10 into a0, storing the partial sums in a scratch array.
	const scratch = 0x80080000
	h := newBareHart(t, func(p *rvasm.Program) {
		p.LI(rvasm.T0, 1)
		p.LI(rvasm.T1, 11)
		p.LI(rvasm.T2, scratch)
		p.LI(rvasm.A0, 0)
		p.Label("loop")
		p.ADD(rvasm.A0, rvasm.A0, rvasm.T0)
		p.SD(rvasm.A0, rvasm.T2, 0)
		p.ADDI(rvasm.T2, rvasm.T2, 8)
		p.ADDI(rvasm.T0, rvasm.T0, 1)
		p.BNE(rvasm.T0, rvasm.T1, "loop")
		p.LD(rvasm.A1, rvasm.T2, -8)
		p.LB(rvasm.A2, rvasm.T2, -8)
		p.ECALL()
	})
	runToEntry(t, h, 1000)
	if got := h.ReadReg(int(rvasm.A0)); got != 55 {
		t.Errorf("a0 = %d, want 55", got)
	}
	if got := h.ReadReg(int(rvasm.A1)); got != 55 {
		t.Errorf("a1 = %d, want 55", got)
	}
	if got := h.ReadReg(int(rvasm.A2)); got != 55 {
		t.Errorf("a2 = %d, want 55", got)
	}
	v, err := h.Memory().ReadUint64(scratch + 2*8)
	if err != nil || v != 6 {
		t.Errorf("scratch[2] = %d, %v, want 6", v, err)
	}
}

func TestSignExtension(t *testing.T) {
	const scratch = 0x80080000
	h := newBareHart(t, func(p *rvasm.Program) {
		p.LI(rvasm.T0, scratch)
		p.LI(rvasm.T1, 0xff)
		p.SB(rvasm.T1, rvasm.T0, 0)
		p.LB(rvasm.A0, rvasm.T0, 0)
		p.LBU(rvasm.A1, rvasm.T0, 0)
		p.LI(rvasm.T1, 0x7fffffff)
		p.ADDIW(rvasm.A2, rvasm.T1, 1)
		p.ECALL()
	})
	runToEntry(t, h, 100)
	for _, tc := range []struct {
		reg  rvasm.Reg
		want uint64
	}{
		{rvasm.A0, ^uint64(0)},
		{rvasm.A1, 0xff},
		{rvasm.A2, 0xffffffff80000000},
	} {
		if got := h.ReadReg(int(tc.reg)); got != tc.want {
			t.Errorf("%v = %#x, want %#x", tc.reg, got, tc.want)
		}
	}
}

func TestMulDiv(t *testing.T) {
	minInt := uint64(1) << 63
	neg := func(v int64) uint64 { return uint64(v) }
	for _, tc := range []struct {
		name string
		f3   uint32
		a, b uint64
		want uint64
	}{
		{"mul", 0, 3, neg(-4), neg(-12)},
		{"mulh", 1, neg(-1), neg(-1), 0},
		{"mulhu", 3, math.MaxUint64, 2, 1},
		{"mulhsu", 2, neg(-1), 2, math.MaxUint64},
		{"div", 4, neg(-7), 2, neg(-3)},
		{"div by zero", 4, 5, 0, math.MaxUint64},
		{"div overflow", 4, minInt, neg(-1), minInt},
		{"divu by zero", 5, 5, 0, math.MaxUint64},
		{"rem", 6, neg(-7), 2, neg(-1)},
		{"rem by zero", 6, 5, 0, 5},
		{"rem overflow", 6, minInt, neg(-1), 0},
		{"remu by zero", 7, 5, 0, 5},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got := mulDiv(tc.f3, tc.a, tc.b); got != tc.want {
				t.Errorf("mulDiv(%d, %#x, %#x) = %#x, want %#x", tc.f3, tc.a, tc.b, got, tc.want)
			}
		})
	}
}

func TestPrivilegedInUserMode(t *testing.T) {
	for _, tc := range []struct {
		name  string
		build func(p *rvasm.Program)
	}{
		{"sret", func(p *rvasm.Program) { p.SRET() }},
		{"wfi", func(p *rvasm.Program) { p.WFI() }},
		{"sfence.vma", func(p *rvasm.Program) { p.SFENCEVMA() }},
		{"csrr sstatus", func(p *rvasm.Program) { p.CSRR(rvasm.A0, CSRSStatus) }},
		{"csrw satp", func(p *rvasm.Program) { p.CSRW(CSRSATP, rvasm.A0) }},
		{"rdtime", func(p *rvasm.Program) { p.CSRR(rvasm.A0, CSRTime) }},
		{"unknown opcode", func(p *rvasm.Program) { p.Word(0xffffffff) }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var insn uint32
			h := newBareHart(t, func(p *rvasm.Program) {
				tc.build(p)
			})
			insn, _ = h.Fetch(codeBase)
			runToEntry(t, h, 10)
			if got := Cause(h.CSR(CSRSCause)); got != CauseIllegalInstruction {
				t.Errorf("scause = %v, want %v", got, CauseIllegalInstruction)
			}
			if got := h.CSR(CSRSTVal); got != uint64(insn) {
				t.Errorf("stval = %#x, want %#x", got, insn)
			}
			if got := h.CSR(CSRSEPC); got != codeBase {
				t.Errorf("sepc = %#x, want %#x", got, uint64(codeBase))
			}
		})
	}
}

func TestTimerInterrupt(t *testing.T) {
	h := newBareHart(t, func(p *rvasm.Program) {
		p.Label("spin")
		p.J("spin")
	})
	h.SetCSR(CSRSIE, SIESTIE)
	h.SetTimer(50)

	s := runToEntry(t, h, 1000)
	if got := Cause(h.CSR(CSRSCause)); got != CauseSupervisorTimer {
		t.Fatalf("scause = %v, want %v", got, CauseSupervisorTimer)
	}
	if !Cause(h.CSR(CSRSCause)).IsInterrupt() {
		t.Errorf("timer cause is not an interrupt")
	}
	if s.Executed != 50 {
		t.Errorf("executed %d instructions before the interrupt, want 50", s.Executed)
	}
	if h.CSR(CSRSIP)&SIPSTIP == 0 {
		t.Errorf("STIP not pending")
	}
	h.SetTimer(h.Time() + 10)
	if h.CSR(CSRSIP)&SIPSTIP != 0 {
		t.Errorf("STIP still pending after rearming the timer")
	}
}

func TestTimerMasked(t *testing.T) {
	h := newBareHart(t, func(p *rvasm.Program) {
		p.Label("spin")
		p.J("spin")
	})
	h.SetTimer(5)
	if s := h.Run(100); s.Reason != StopBudget || s.Executed != 100 {
		t.Errorf("Run = %+v, want the budget to run out with STIE clear", s)
	}
}

func TestKernelTrap(t *testing.T) {
	h := newBareHart(t, func(p *rvasm.Program) {
		p.Word(0)
	})
	h.priv = Supervisor
	s := h.Run(10)
	if s.Reason != StopKernelTrap {
		t.Fatalf("Run stopped with %v, want kernel trap", s.Reason)
	}
	if got := Cause(h.CSR(CSRSCause)); got != CauseIllegalInstruction {
		t.Errorf("scause = %v, want %v", got, CauseIllegalInstruction)
	}
	if h.CSR(CSRSStatus)&arch.SStatusSPP == 0 {
		t.Errorf("sstatus.SPP clear after a supervisor trap")
	}
}

// pagedMachine is a hart with one set of SV39 page tables.
type pagedMachine struct {
	h     *Hart
	alloc *pgalloc.Allocator
	pt    *pagetables.PageTables
}

func newPagedMachine(t *testing.T) *pagedMachine {
	t.Helper()
	mem := safemem.NewMemory(memBase, memEnd)
	alloc := pgalloc.New(mem, hostarch.PhysAddr(memBase+0x10000).PageNumber(), hostarch.PhysAddr(memEnd).PageNumber())
	pt, err := pagetables.New(alloc)
	if err != nil {
		t.Fatalf("pagetables.New: %v", err)
	}
	h := New(mem, Options{})
	h.SetCSR(CSRSATP, pt.Token())
	h.SetCSR(CSRSTVec, handler)
	h.RegisterEntry(handler, "handler")
	return &pagedMachine{h: h, alloc: alloc, pt: pt}
}

// mapPage maps a fresh frame at va and returns it.
func (m *pagedMachine) mapPage(t *testing.T, va hostarch.Addr, flags pagetables.PTEFlags) *pgalloc.Frame {
	t.Helper()
	f, err := m.alloc.Allocate()
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if err := m.pt.Map(va.PageNumber(), f.PPN(), flags); err != nil {
		t.Fatalf("Map: %v", err)
	}
	return f
}

func (m *pagedMachine) load(t *testing.T, va hostarch.Addr, flags pagetables.PTEFlags, build func(p *rvasm.Program)) {
	t.Helper()
	p := rvasm.New()
	build(p)
	words, err := p.Words(uint64(va))
	if err != nil {
		t.Fatalf("assembling: %v", err)
	}
	f := m.mapPage(t, va, flags)
	writeWords(t, m.h.Memory(), f.PPN().Addr(), words)
}

func TestPageFaults(t *testing.T) {
	const (
		code = 0x10000
		ro   = 0x20000
		kern = 0x30000
		hole = 0x40000
	)
	user := pagetables.User | pagetables.Readable
	for _, tc := range []struct {
		name  string
		build func(p *rvasm.Program)
		cause Cause
		tval  uint64
	}{
		{
			name:  "load from hole",
			build: func(p *rvasm.Program) {
				p.LI(rvasm.T0, hole)
				p.LD(rvasm.A0, rvasm.T0, 8)
			},
			cause: CauseLoadPageFault,
			tval:  hole + 8,
		},
		{
			name:  "store to read-only",
			build: func(p *rvasm.Program) {
				p.LI(rvasm.T0, ro)
				p.SW(rvasm.Zero, rvasm.T0, 4)
			},
			cause: CauseStorePageFault,
			tval:  ro + 4,
		},
		{
			name:  "load from kernel page",
			build: func(p *rvasm.Program) {
				p.LI(rvasm.T0, kern)
				p.LD(rvasm.A0, rvasm.T0, 0)
			},
			cause: CauseLoadPageFault,
			tval:  kern,
		},
		{
			name:  "jump to data",
			build: func(p *rvasm.Program) {
				p.LI(rvasm.T0, ro)
				p.JR(rvasm.T0)
			},
			cause: CauseInstructionPageFault,
			tval:  ro,
		},
		{
			name:  "non-canonical",
			build: func(p *rvasm.Program) {
				p.LI(rvasm.T0, 1<<40)
				p.LD(rvasm.A0, rvasm.T0, 0)
			},
			cause: CauseLoadPageFault,
			tval:  1 << 40,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			m := newPagedMachine(t)
			m.load(t, code, user|pagetables.Executable, tc.build)
			m.mapPage(t, ro, user)
			m.mapPage(t, kern, pagetables.Readable|pagetables.Writable)
			m.h.priv = User
			m.h.SetPC(code)

			runToEntry(t, m.h, 100)
			if got := Cause(m.h.CSR(CSRSCause)); got != tc.cause {
				t.Errorf("scause = %v, want %v", got, tc.cause)
			}
			if got := m.h.CSR(CSRSTVal); got != tc.tval {
				t.Errorf("stval = %#x, want %#x", got, tc.tval)
			}
		})
	}
}

func TestAccessedDirty(t *testing.T) {
	const (
		code = 0x10000
		data = 0x20000
	)
	m := newPagedMachine(t)
	m.load(t, code, pagetables.User|pagetables.Readable|pagetables.Executable, func(p *rvasm.Program) {
		p.LI(rvasm.T0, data)
		p.LI(rvasm.T1, 7)
		p.SD(rvasm.T1, rvasm.T0, 0)
		p.LD(rvasm.A0, rvasm.T0, 0)
		p.ECALL()
	})
	f := m.mapPage(t, data, pagetables.User|pagetables.Readable|pagetables.Writable)
	m.h.priv = User
	m.h.SetPC(code)
	runToEntry(t, m.h, 100)

	if got := m.h.ReadReg(int(rvasm.A0)); got != 7 {
		t.Errorf("a0 = %d, want 7", got)
	}
	if v := f.Block().Uint64(0); v != 7 {
		t.Errorf("frame word = %d, want 7", v)
	}
	for _, tc := range []struct {
		va   hostarch.Addr
		want pagetables.PTEFlags
	}{
		{code, pagetables.Accessed},
		{data, pagetables.Accessed | pagetables.Dirty},
	} {
		pte, _ := m.pt.Translate(tc.va.PageNumber())
		if got := pte.Flags() & (pagetables.Accessed | pagetables.Dirty); got != tc.want {
			t.Errorf("%v: A/D = %v, want %v", tc.va, got, tc.want)
		}
	}
}

func TestTLBNeedsFence(t *testing.T) {
	const data = 0x20000
	m := newPagedMachine(t)
	f1 := m.mapPage(t, data, pagetables.Readable)
	f1.Block().SetUint64(0, 1)

	read := func() uint64 {
		pa, exc := m.h.mmu.translate(data, accessLoad, Supervisor, m.h.csr.satp, 0)
		if exc != nil {
			t.Fatalf("translate: %v", exc)
		}
		v, _ := m.h.Memory().ReadUint64(pa)
		return v
	}
	if got := read(); got != 1 {
		t.Fatalf("first read = %d, want 1", got)
	}

	m.pt.Unmap(hostarch.Addr(data).PageNumber())
	f2 := m.mapPage(t, data, pagetables.Readable)
	f2.Block().SetUint64(0, 2)
	if got := read(); got != 1 {
		t.Errorf("read before sfence.vma = %d, want the stale 1", got)
	}
	m.h.SFenceVMA()
	if got := read(); got != 2 {
		t.Errorf("read after sfence.vma = %d, want 2", got)
	}
}

func TestTrampolineRoundTrip(t *testing.T) {
	const (
		code     = 0x10000
		userSP   = 0x21000
		kernelSP = 0x80090000
	)
	m := newPagedMachine(t)
	tramp := m.mapPage(t, arch.TrampolineAddr, pagetables.Readable|pagetables.Executable)
	InstallTrampoline(m.h.Memory(), tramp.PPN())
	cxFrame := m.mapPage(t, arch.TrapContextAddr, pagetables.Readable|pagetables.Writable)
	m.load(t, code, pagetables.User|pagetables.Readable|pagetables.Executable, func(p *rvasm.Program) {
		p.ADDI(rvasm.A0, rvasm.SP, 1)
		p.LI(rvasm.S3, 33)
		p.Syscall(93)
	})

	token := m.pt.Token()
	cx := arch.AppInitContext(code, userSP, token, kernelSP, handler)
	cx.X[rvasm.S2] = 0x5a5a
	buf := make([]byte, arch.TrapContextSize)
	cx.MarshalBytes(buf)
	cxFrame.Block().CopyIn(buf)

	// Pretend to be the kernel returning to user mode.
	m.h.SetCSR(CSRSTVec, uint64(arch.TrampolineAddr))
	m.h.WriteReg(arch.RegA0, uint64(arch.TrapContextAddr))
	m.h.WriteReg(arch.RegA1, token)
	m.h.SetPC(uint64(arch.TrampolineAddr) + Trampoline().RestoreOffset)
	s := runToEntry(t, m.h, 1000)

	if s.PC != handler {
		t.Errorf("stopped at %#x, want %#x", s.PC, uint64(handler))
	}
	if got := m.h.ReadReg(arch.RegSP); got != kernelSP {
		t.Errorf("sp = %#x, want kernel stack %#x", got, uint64(kernelSP))
	}
	if got := m.h.CSR(CSRSScratch); got != userSP {
		t.Errorf("sscratch = %#x, want user sp %#x", got, uint64(userSP))
	}

	var saved arch.TrapContext
	cxFrame.Block().CopyOut(buf)
	saved.UnmarshalBytes(buf)
	want := cx
	want.X[arch.RegA0] = userSP + 1
	want.X[rvasm.S3] = 33
	want.X[arch.RegA7] = 93
	want.SEPC = code + 4*3
	if diff := cmp.Diff(want, saved); diff != "" {
		t.Errorf("saved trap context mismatch (-want +got):\n%s", diff)
	}
}
