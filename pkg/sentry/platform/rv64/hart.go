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
	"fmt"

	"gvisor.dev/rvos/pkg/hostarch"
	"gvisor.dev/rvos/pkg/safemem"
	"gvisor.dev/rvos/pkg/sentry/arch"
)

// Options configures a Hart.
type Options struct {
	// CyclesPerInsn is how far the time counter advances per retired
	// instruction. Zero means one.
	CyclesPerInsn uint64
}

// Hart is one simulated hardware thread.
//
// A Hart is not safe for concurrent use.
type Hart struct {
	regs [32]uint64
	pc   uint64
	priv Privilege
	csr  csrs

	// time is the time counter. timecmp is the firmware timer compare
	// value; the supervisor timer interrupt is pending while
	// time >= timecmp.
	time    uint64
	timecmp uint64
	instret uint64

	cyclesPerInsn uint64

	mem *safemem.Memory
	mmu mmu

	// entries are the kernel entry points. Reaching one in supervisor
	// mode hands control back to the kernel.
	entries map[uint64]string
}

// New returns a hart in supervisor mode with translation off and the timer
// disarmed.
func New(mem *safemem.Memory, opts Options) *Hart {
	cpi := opts.CyclesPerInsn
	if cpi == 0 {
		cpi = 1
	}
	return &Hart{
		priv:          Supervisor,
		timecmp:       ^uint64(0),
		cyclesPerInsn: cpi,
		mem:           mem,
		mmu:           mmu{mem: mem},
		entries:       make(map[uint64]string),
	}
}

// Memory returns the physical memory the hart is attached to.
func (h *Hart) Memory() *safemem.Memory {
	return h.mem
}

// ReadReg returns integer register i. x0 always reads zero.
func (h *Hart) ReadReg(i int) uint64 {
	if i == 0 {
		return 0
	}
	return h.regs[i]
}

// WriteReg sets integer register i. Writes to x0 are discarded.
func (h *Hart) WriteReg(i int, v uint64) {
	if i != 0 {
		h.regs[i] = v
	}
}

// PC returns the program counter.
func (h *Hart) PC() uint64 {
	return h.pc
}

// SetPC sets the program counter. This is how the kernel jumps.
func (h *Hart) SetPC(pc uint64) {
	h.pc = pc
}

// Priv returns the current privilege mode.
func (h *Hart) Priv() Privilege {
	return h.priv
}

// Time returns the time counter.
func (h *Hart) Time() uint64 {
	return h.time
}

// Instret returns the number of retired instructions.
func (h *Hart) Instret() uint64 {
	return h.instret
}

// SetTimer programs the timer compare value and clears a pending timer
// interrupt if the new deadline is in the future.
func (h *Hart) SetTimer(stime uint64) {
	h.timecmp = stime
}

func (h *Hart) timerPending() bool {
	return h.time >= h.timecmp
}

// SFenceVMA flushes the hart's translation cache.
func (h *Hart) SFenceVMA() {
	h.mmu.flush()
}

// RegisterEntry marks addr as a kernel entry point called name.
func (h *Hart) RegisterEntry(addr uint64, name string) {
	h.entries[addr] = name
}

// EntryName returns the name of the entry point at addr.
func (h *Hart) EntryName(addr uint64) (string, bool) {
	n, ok := h.entries[addr]
	return n, ok
}

// Fetch reads the instruction word at vaddr as the current mode would fetch
// it, under the current satp.
func (h *Hart) Fetch(vaddr uint64) (uint32, error) {
	insn, exc := h.fetch(vaddr)
	if exc != nil {
		return 0, exc
	}
	return insn, nil
}

func (h *Hart) fetch(vaddr uint64) (uint32, *Exception) {
	if vaddr&3 != 0 {
		return 0, exception(CauseInstructionMisaligned, vaddr)
	}
	v, exc := h.load(vaddr, 4, accessFetch)
	return uint32(v), exc
}

// load reads size bytes at vaddr, little endian.
func (h *Hart) load(vaddr uint64, size int, at access) (uint64, *Exception) {
	var buf [8]byte
	if exc := h.access(vaddr, buf[:size], at); exc != nil {
		return 0, exc
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// store writes the low size bytes of v at vaddr, little endian.
func (h *Hart) store(vaddr uint64, size int, v uint64) *Exception {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return h.access(vaddr, buf[:size], accessStore)
}

// access moves len(buf) bytes between buf and virtual memory. Accesses that
// straddle a page boundary are translated one page at a time, and fault
// before any byte is stored.
func (h *Hart) access(vaddr uint64, buf []byte, at access) *Exception {
	var (
		pas  [2]hostarch.PhysAddr
		lens [2]int
		n    int
	)
	for done := 0; done < len(buf); n++ {
		va := vaddr + uint64(done)
		pa, exc := h.mmu.translate(va, at, h.priv, h.csr.satp, h.csr.sstatus)
		if exc != nil {
			return exc
		}
		l := min(len(buf)-done, int(hostarch.PageSize-hostarch.Addr(va).PageOffset()))
		pas[n], lens[n] = pa, l
		done += l
	}
	off := 0
	for i := 0; i < n; i++ {
		b, err := h.mem.Block(pas[i], lens[i])
		if err != nil {
			return exception(at.accessFault(), vaddr)
		}
		if at == accessStore {
			b.CopyIn(buf[off : off+lens[i]])
		} else {
			b.CopyOut(buf[off : off+lens[i]])
		}
		off += lens[i]
	}
	return nil
}

// trap enters supervisor mode at stvec.
func (h *Hart) trap(cause Cause, tval uint64) {
	h.csr.scause = uint64(cause)
	h.csr.stval = tval
	h.csr.sepc = h.pc

	s := h.csr.sstatus &^ (arch.SStatusSPIE | arch.SStatusSPP | arch.SStatusSIE)
	if h.csr.sstatus&arch.SStatusSIE != 0 {
		s |= arch.SStatusSPIE
	}
	if h.priv == Supervisor {
		s |= arch.SStatusSPP
	}
	h.csr.sstatus = s
	h.priv = Supervisor
	h.pc = h.csr.stvec
}

// sret returns from a supervisor trap.
func (h *Hart) sret() {
	s := h.csr.sstatus
	if s&arch.SStatusSPP != 0 {
		h.priv = Supervisor
	} else {
		h.priv = User
	}
	s &^= arch.SStatusSIE | arch.SStatusSPP
	if s&arch.SStatusSPIE != 0 {
		s |= arch.SStatusSIE
	}
	s |= arch.SStatusSPIE
	h.csr.sstatus = s
	h.pc = h.csr.sepc
}

// interruptPending reports whether a supervisor timer interrupt should be
// taken before the next instruction.
func (h *Hart) interruptPending() bool {
	if h.csr.sie&SIESTIE == 0 || !h.timerPending() {
		return false
	}
	return h.priv == User || h.csr.sstatus&arch.SStatusSIE != 0
}

// StopReason says why Run returned.
type StopReason int

const (
	// StopEntry means the hart reached a kernel entry point in supervisor
	// mode.
	StopEntry StopReason = iota

	// StopKernelTrap means a trap was taken while in supervisor mode.
	// The trap CSRs describe it.
	StopKernelTrap

	// StopBudget means the instruction budget ran out.
	StopBudget
)

// String implements fmt.Stringer.String.
func (r StopReason) String() string {
	switch r {
	case StopEntry:
		return "entry"
	case StopKernelTrap:
		return "kernel trap"
	case StopBudget:
		return "budget"
	default:
		return fmt.Sprintf("StopReason(%d)", int(r))
	}
}

// Stop describes how Run returned.
type Stop struct {
	Reason StopReason

	// PC is the program counter at the stop.
	PC uint64

	// Executed is the number of instructions retired by this call.
	Executed uint64
}

// Run executes instructions until the hart stops. A budget of zero means no
// limit.
func (h *Hart) Run(budget uint64) Stop {
	var n uint64
	for budget == 0 || n < budget {
		if h.priv == Supervisor {
			if _, ok := h.entries[h.pc]; ok {
				return Stop{Reason: StopEntry, PC: h.pc, Executed: n}
			}
		}
		if h.interruptPending() {
			fromKernel := h.priv == Supervisor
			h.trap(CauseSupervisorTimer, 0)
			if fromKernel {
				return Stop{Reason: StopKernelTrap, PC: h.pc, Executed: n}
			}
			continue
		}
		exc := h.step()
		h.time += h.cyclesPerInsn
		if exc == nil {
			h.instret++
			n++
			continue
		}
		fromKernel := h.priv == Supervisor
		h.trap(exc.Cause, exc.Tval)
		n++
		if fromKernel {
			return Stop{Reason: StopKernelTrap, PC: h.pc, Executed: n}
		}
	}
	return Stop{Reason: StopBudget, PC: h.pc, Executed: n}
}

// String implements fmt.Stringer.String.
func (h *Hart) String() string {
	return fmt.Sprintf("hart{pc=%#x priv=%v sp=%#x satp=%#x}", h.pc, h.priv, h.regs[arch.RegSP], h.csr.satp)
}
