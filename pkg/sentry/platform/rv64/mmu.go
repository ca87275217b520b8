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
	"gvisor.dev/rvos/pkg/hostarch"
	"gvisor.dev/rvos/pkg/ring0/pagetables"
	"gvisor.dev/rvos/pkg/safemem"
	"gvisor.dev/rvos/pkg/sentry/arch"
)

// access is the kind of memory access being translated.
type access uint8

const (
	accessFetch access = iota
	accessLoad
	accessStore
)

func (a access) pageFault() Cause {
	switch a {
	case accessFetch:
		return CauseInstructionPageFault
	case accessLoad:
		return CauseLoadPageFault
	default:
		return CauseStorePageFault
	}
}

func (a access) accessFault() Cause {
	switch a {
	case accessFetch:
		return CauseInstructionAccessFault
	case accessLoad:
		return CauseLoadAccessFault
	default:
		return CauseStoreAccessFault
	}
}

const (
	satpModeShift = 60
	satpPPNMask   = 1<<44 - 1
	satpModeSV39  = 8

	tlbEntries = 64
)

type tlbEntry struct {
	valid bool
	vpn   hostarch.VPN
	pte   pagetables.PTE
	// level is the level of the leaf: 0 for 4 KiB pages.
	level int
}

// mmu translates virtual addresses with SV39 page tables held in physical
// memory. It caches leaf entries in a small direct-mapped TLB that is only
// invalidated by sfence.vma, as on hardware.
type mmu struct {
	mem *safemem.Memory
	tlb [tlbEntries]tlbEntry

	// walks counts page table walks, for tests.
	walks uint64
}

func (m *mmu) flush() {
	m.tlb = [tlbEntries]tlbEntry{}
}

// translate returns the physical address for vaddr.
func (m *mmu) translate(vaddr uint64, at access, priv Privilege, satp, sstatus uint64) (hostarch.PhysAddr, *Exception) {
	if satp>>satpModeShift != satpModeSV39 {
		return hostarch.PhysAddr(vaddr), nil
	}
	if !hostarch.Addr(vaddr).IsCanonical() {
		return 0, exception(at.pageFault(), vaddr)
	}
	vpn := hostarch.Addr(vaddr).PageNumber()
	e := &m.tlb[uint64(vpn)%tlbEntries]
	if !e.valid || e.vpn != vpn || (at == accessStore && e.pte.Writable() && e.pte.Flags()&pagetables.Dirty == 0) {
		pte, level, exc := m.walk(vpn, vaddr, at, satp)
		if exc != nil {
			return 0, exc
		}
		*e = tlbEntry{valid: true, vpn: vpn, pte: pte, level: level}
	}
	if !permitted(e.pte, at, priv, sstatus) {
		return 0, exception(at.pageFault(), vaddr)
	}
	// Superpage leaves keep the low VPN bits of the virtual address.
	span := uint64(hostarch.PageSize) << (hostarch.LevelBits * e.level)
	return e.pte.PPN().Addr() + hostarch.PhysAddr(vaddr&(span-1)), nil
}

// walk finds the leaf entry for vpn, setting its Accessed bit and, for
// stores, its Dirty bit.
func (m *mmu) walk(vpn hostarch.VPN, vaddr uint64, at access, satp uint64) (pagetables.PTE, int, *Exception) {
	m.walks++
	table := hostarch.PPN(satp & satpPPNMask)
	idx := vpn.Indexes()
	for level := hostarch.Levels - 1; level >= 0; level-- {
		pa := table.Addr() + hostarch.PhysAddr(idx[hostarch.Levels-1-level]*8)
		raw, err := m.mem.ReadUint64(pa)
		if err != nil {
			return 0, 0, exception(at.accessFault(), vaddr)
		}
		pte := pagetables.PTE(raw)
		if !pte.Valid() || (!pte.Readable() && pte.Writable()) {
			return 0, 0, exception(at.pageFault(), vaddr)
		}
		if !pte.IsLeaf() {
			table = pte.PPN()
			continue
		}
		// A superpage must be aligned to its size.
		if level > 0 && uint64(pte.PPN())&(1<<(hostarch.LevelBits*level)-1) != 0 {
			return 0, 0, exception(at.pageFault(), vaddr)
		}
		update := pte | pagetables.PTE(pagetables.Accessed)
		if at == accessStore && pte.Writable() {
			update |= pagetables.PTE(pagetables.Dirty)
		}
		if update != pte {
			if err := m.mem.WriteUint64(pa, uint64(update)); err != nil {
				return 0, 0, exception(at.accessFault(), vaddr)
			}
		}
		return update, level, nil
	}
	return 0, 0, exception(at.pageFault(), vaddr)
}

// permitted checks leaf permissions for an access from priv.
func permitted(pte pagetables.PTE, at access, priv Privilege, sstatus uint64) bool {
	if pte.User() {
		if priv == Supervisor && (at == accessFetch || sstatus&arch.SStatusSUM == 0) {
			return false
		}
	} else if priv == User {
		return false
	}
	switch at {
	case accessFetch:
		return pte.Executable()
	case accessLoad:
		return pte.Readable()
	default:
		return pte.Writable()
	}
}
