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
	"sync"

	"gvisor.dev/rvos/pkg/hostarch"
	"gvisor.dev/rvos/pkg/rvasm"
	"gvisor.dev/rvos/pkg/safemem"
)

// Trap context slots, in units of 8 bytes. These follow arch.TrapContext.
const (
	slotSStatus    = 32
	slotSEPC       = 33
	slotKernelSATP = 34
	slotKernelSP   = 35
	slotHandler    = 36
)

// Trampoline labels.
const (
	AllTrapsSymbol = "__alltraps"
	RestoreSymbol  = "__restore"
)

// trampoline assembles the trap entry and exit code. It is position
// independent and is mapped at the same virtual address in every address
// space, so it keeps running across the satp switch.
//
// __alltraps is stvec for user traps. sscratch holds the trap context
// address; the user registers are saved there and the kernel satp, stack and
// handler are loaded from it.
//
// __restore takes the trap context address in a0 and the user satp in a1.
func trampoline() *rvasm.Program {
	p := rvasm.New()

	p.Label(AllTrapsSymbol)
	p.CSRRW(rvasm.SP, CSRSScratch, rvasm.SP)
	p.SD(rvasm.RA, rvasm.SP, 1*8)
	p.SD(rvasm.GP, rvasm.SP, 3*8)
	for r := rvasm.T0; r <= rvasm.T6; r++ {
		p.SD(r, rvasm.SP, int64(r)*8)
	}
	p.CSRR(rvasm.T0, CSRSStatus)
	p.CSRR(rvasm.T1, CSRSEPC)
	p.SD(rvasm.T0, rvasm.SP, slotSStatus*8)
	p.SD(rvasm.T1, rvasm.SP, slotSEPC*8)
	p.CSRR(rvasm.T2, CSRSScratch)
	p.SD(rvasm.T2, rvasm.SP, 2*8)
	p.LD(rvasm.T0, rvasm.SP, slotKernelSATP*8)
	p.LD(rvasm.T1, rvasm.SP, slotHandler*8)
	p.LD(rvasm.SP, rvasm.SP, slotKernelSP*8)
	p.CSRW(CSRSATP, rvasm.T0)
	p.SFENCEVMA()
	p.JR(rvasm.T1)

	p.Label(RestoreSymbol)
	p.CSRW(CSRSATP, rvasm.A1)
	p.SFENCEVMA()
	p.CSRW(CSRSScratch, rvasm.A0)
	p.MV(rvasm.SP, rvasm.A0)
	p.LD(rvasm.T0, rvasm.SP, slotSStatus*8)
	p.LD(rvasm.T1, rvasm.SP, slotSEPC*8)
	p.CSRW(CSRSStatus, rvasm.T0)
	p.CSRW(CSRSEPC, rvasm.T1)
	p.LD(rvasm.RA, rvasm.SP, 1*8)
	p.LD(rvasm.GP, rvasm.SP, 3*8)
	for r := rvasm.T0; r <= rvasm.T6; r++ {
		p.LD(r, rvasm.SP, int64(r)*8)
	}
	p.LD(rvasm.SP, rvasm.SP, 2*8)
	p.SRET()
	return p
}

// TrampolineCode is the assembled trampoline.
type TrampolineCode struct {
	Words []uint32

	// RestoreOffset is the offset of __restore from the start of the page.
	RestoreOffset uint64
}

var trampolineCode = sync.OnceValue(func() TrampolineCode {
	p := trampoline()
	words, err := p.Words(0)
	if err != nil {
		panic(fmt.Sprintf("assembling trampoline: %v", err))
	}
	off, _ := p.Offset(RestoreSymbol)
	if len(words)*4 > hostarch.PageSize {
		panic("trampoline does not fit in a page")
	}
	return TrampolineCode{Words: words, RestoreOffset: off}
})

// Trampoline returns the assembled trampoline.
func Trampoline() TrampolineCode {
	return trampolineCode()
}

// InstallTrampoline writes the trampoline into frame ppn.
func InstallTrampoline(mem *safemem.Memory, ppn hostarch.PPN) {
	b := mem.Frame(ppn)
	b.Zero()
	buf := make([]byte, 4*len(Trampoline().Words))
	for i, w := range Trampoline().Words {
		binary.LittleEndian.PutUint32(buf[4*i:], w)
	}
	b.CopyIn(buf)
}
