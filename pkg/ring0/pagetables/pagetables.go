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

// Package pagetables implements SV39 page tables over simulated physical
// memory.
//
// A PageTables owns its root frame and every directory frame allocated for
// it. Leaf frames belong to whoever mapped them. A view built by FromToken
// owns nothing and never frees anything.
package pagetables

import (
	"fmt"

	"gvisor.dev/rvos/pkg/hostarch"
	"gvisor.dev/rvos/pkg/safemem"
	"gvisor.dev/rvos/pkg/sentry/pgalloc"
)

// SV39Mode is the satp MODE value selecting SV39 translation.
const SV39Mode = 8

const (
	satpModeShift = 60
	pteSize       = 8
)

// Allocator supplies frames for page table directories.
type Allocator interface {
	// Allocate returns a zeroed frame.
	Allocate() (*pgalloc.Frame, error)

	// Memory returns the physical memory the frames live in.
	Memory() *safemem.Memory
}

// PageTables is a three level SV39 radix tree.
type PageTables struct {
	// root is the frame holding top level entries.
	root hostarch.PPN

	// mem is where entries are read from and written to.
	mem *safemem.Memory

	// alloc is nil for a view.
	alloc Allocator

	// frames owns every directory frame, the root included.
	frames []*pgalloc.Frame
}

// New returns empty page tables with a freshly allocated root.
func New(a Allocator) (*PageTables, error) {
	root, err := a.Allocate()
	if err != nil {
		return nil, fmt.Errorf("allocating page table root: %w", err)
	}
	return &PageTables{
		root:   root.PPN(),
		mem:    a.Memory(),
		alloc:  a,
		frames: []*pgalloc.Frame{root},
	}, nil
}

// FromToken returns a view of the page tables whose satp value is token. The
// view can translate but cannot map, unmap or free. Release on a view does
// nothing.
func FromToken(mem *safemem.Memory, token uint64) *PageTables {
	if mode := token >> satpModeShift; mode != SV39Mode {
		panic(fmt.Sprintf("satp token %#x is not SV39 (mode %d)", token, mode))
	}
	return &PageTables{
		root: hostarch.MakePPN(token),
		mem:  mem,
	}
}

// Token returns the satp value that activates these page tables.
func (p *PageTables) Token() uint64 {
	return SV39Mode<<satpModeShift | uint64(p.root)
}

// RootPPN returns the root frame.
func (p *PageTables) RootPPN() hostarch.PPN {
	return p.root
}

// IsView reports whether p was built by FromToken.
func (p *PageTables) IsView() bool {
	return p.alloc == nil
}

// NumFrames returns the number of directory frames p owns.
func (p *PageTables) NumFrames() int {
	return len(p.frames)
}

// entry is the location of one PTE in physical memory.
type entry struct {
	table safemem.Block
	off   int
}

func (e entry) load() PTE {
	return PTE(e.table.Uint64(e.off))
}

func (e entry) store(pte PTE) {
	e.table.SetUint64(e.off, uint64(pte))
}

// walk returns the leaf slot for vpn. With create set, missing directories
// are allocated and marked Valid only; otherwise a missing directory yields
// ok == false.
func (p *PageTables) walk(vpn hostarch.VPN, create bool) (entry, bool, error) {
	idx := vpn.Indexes()
	table := p.root
	for level := 0; level < hostarch.Levels; level++ {
		e := entry{table: p.mem.Frame(table), off: int(idx[level]) * pteSize}
		if level == hostarch.Levels-1 {
			return e, true, nil
		}
		pte := e.load()
		if !pte.Valid() {
			if !create {
				return entry{}, false, nil
			}
			f, err := p.alloc.Allocate()
			if err != nil {
				return entry{}, false, fmt.Errorf("allocating page directory for %v: %w", vpn, err)
			}
			p.frames = append(p.frames, f)
			pte = NewPTE(f.PPN(), Valid)
			e.store(pte)
		} else if pte.IsLeaf() {
			// Superpages are never installed by this kernel.
			return entry{}, false, nil
		}
		table = pte.PPN()
	}
	panic("unreachable")
}

// Map installs a leaf mapping vpn -> ppn with flags|Valid.
//
// Mapping a vpn that is already valid is a kernel bug and panics. An error is
// returned only if a directory frame could not be allocated.
func (p *PageTables) Map(vpn hostarch.VPN, ppn hostarch.PPN, flags PTEFlags) error {
	if p.IsView() {
		panic("Map on a page table view")
	}
	e, _, err := p.walk(vpn, true)
	if err != nil {
		return err
	}
	if old := e.load(); old.Valid() {
		panic(fmt.Sprintf("%v is mapped before mapping (%v)", vpn, old))
	}
	e.store(NewPTE(ppn, flags|Valid))
	return nil
}

// Unmap clears the leaf mapping for vpn. Unmapping a vpn that is not valid is
// a kernel bug and panics.
func (p *PageTables) Unmap(vpn hostarch.VPN) {
	if p.IsView() {
		panic("Unmap on a page table view")
	}
	e, ok, _ := p.walk(vpn, false)
	if !ok || !e.load().Valid() {
		panic(fmt.Sprintf("%v is invalid before unmapping", vpn))
	}
	e.store(0)
}

// Translate returns the leaf entry for vpn. It never allocates. ok is false
// if a directory on the path is missing; a present but invalid leaf is
// returned with ok true so callers can inspect it.
func (p *PageTables) Translate(vpn hostarch.VPN) (pte PTE, ok bool) {
	e, ok, _ := p.walk(vpn, false)
	if !ok {
		return 0, false
	}
	return e.load(), true
}

// Lookup returns the physical address backing addr and the permissions of
// its page, or ok == false if addr is unmapped.
func (p *PageTables) Lookup(addr hostarch.Addr) (pa hostarch.PhysAddr, pte PTE, ok bool) {
	pte, ok = p.Translate(addr.PageNumber())
	if !ok || !pte.Valid() {
		return 0, pte, false
	}
	return pte.PPN().Addr() + hostarch.PhysAddr(addr.PageOffset()), pte, true
}

// Mapping describes one valid leaf, as returned by Mappings.
type Mapping struct {
	VPN hostarch.VPN
	PTE PTE
}

// Mappings returns every valid leaf in ascending VPN order.
func (p *PageTables) Mappings() []Mapping {
	var out []Mapping
	p.iterate(p.root, 0, 0, func(vpn hostarch.VPN, pte PTE) {
		out = append(out, Mapping{VPN: vpn, PTE: pte})
	})
	return out
}

func (p *PageTables) iterate(table hostarch.PPN, level int, prefix uint64, fn func(hostarch.VPN, PTE)) {
	b := p.mem.Frame(table)
	for i := 0; i < hostarch.EntriesPerTable; i++ {
		pte := PTE(b.Uint64(i * pteSize))
		if !pte.Valid() {
			continue
		}
		vpn := prefix<<hostarch.LevelBits | uint64(i)
		if level == hostarch.Levels-1 {
			fn(hostarch.VPN(vpn), pte)
			continue
		}
		if pte.IsLeaf() {
			continue
		}
		p.iterate(pte.PPN(), level+1, vpn, fn)
	}
}

// Release frees every directory frame. The page tables must not be used
// afterwards. Release on a view does nothing.
func (p *PageTables) Release() {
	for _, f := range p.frames {
		f.Release()
	}
	p.frames = nil
}
