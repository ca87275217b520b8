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

// Package mm composes address spaces out of memory areas on top of SV39 page
// tables.
//
// An AddressSpace owns its page tables and every frame reachable from its
// Framed areas. Areas never overlap. Every page of every area has a valid
// leaf entry in the page tables for as long as the area is part of the
// address space.
package mm

import (
	"github.com/google/btree"

	"gvisor.dev/rvos/pkg/errors/linuxerr"
	"gvisor.dev/rvos/pkg/hostarch"
	"gvisor.dev/rvos/pkg/log"
	"gvisor.dev/rvos/pkg/ring0/pagetables"
	"gvisor.dev/rvos/pkg/sentry/pgalloc"
)

// areaTreeDegree is the btree degree of the area set.
const areaTreeDegree = 8

func areaLess(a, b *Area) bool {
	return a.vpns.Start < b.vpns.Start
}

// AddressSpace is a page table plus the areas mapped into it.
type AddressSpace struct {
	pt    *pagetables.PageTables
	alloc *pgalloc.Allocator

	// areas is ordered by start VPN.
	areas *btree.BTreeG[*Area]
}

// New returns an empty address space with a freshly allocated root table.
func New(alloc *pgalloc.Allocator) (*AddressSpace, error) {
	pt, err := pagetables.New(alloc)
	if err != nil {
		return nil, err
	}
	return &AddressSpace{
		pt:    pt,
		alloc: alloc,
		areas: btree.NewG(areaTreeDegree, areaLess),
	}, nil
}

// Token returns the satp value that activates this address space.
func (as *AddressSpace) Token() uint64 {
	return as.pt.Token()
}

// PageTables returns the underlying page tables.
func (as *AddressSpace) PageTables() *pagetables.PageTables {
	return as.pt
}

// Translate returns the leaf entry for vpn.
func (as *AddressSpace) Translate(vpn hostarch.VPN) (pagetables.PTE, bool) {
	return as.pt.Translate(vpn)
}

// overlapping returns an area sharing a page with r, if any.
func (as *AddressSpace) overlapping(r hostarch.VPNRange) *Area {
	var hit *Area
	pivot := &Area{vpns: hostarch.VPNRange{Start: r.Start}}
	check := func(a *Area) bool {
		if a.vpns.Overlaps(r) {
			hit = a
		}
		return false
	}
	// Only the last area starting at or below r.Start and the first starting
	// at or above it can overlap r, since areas are disjoint.
	as.areas.DescendLessOrEqual(pivot, check)
	if hit == nil {
		as.areas.AscendGreaterOrEqual(pivot, check)
	}
	return hit
}

// PushArea maps area into the address space and copies data into its first
// pages. Data is only valid for Framed areas.
//
// PushArea fails with EINVAL, without any effect, if area is empty, overlaps
// an existing area, or is smaller than data. It fails with ENOMEM if frames
// run out, after unwinding any partial mapping.
func (as *AddressSpace) PushArea(area *Area, droppable bool, data []byte) error {
	if area.vpns.IsEmpty() {
		log.Debugf("Rejecting empty area %v", area)
		return linuxerr.EINVAL
	}
	if uint64(len(data)) > area.Len() {
		log.Debugf("Payload of %d bytes does not fit area %v", len(data), area)
		return linuxerr.EINVAL
	}
	if len(data) > 0 && area.mapType != Framed {
		log.Debugf("Payload for %v area %v", area.mapType, area)
		return linuxerr.EINVAL
	}
	if other := as.overlapping(area.vpns); other != nil {
		log.Debugf("Area %v overlaps %v", area, other)
		return linuxerr.EINVAL
	}
	if err := area.mapAll(as.pt, as.alloc); err != nil {
		return err
	}
	area.droppable = droppable
	if len(data) > 0 {
		area.copyData(data)
	}
	as.areas.ReplaceOrInsert(area)
	return nil
}

// InsertFramedArea maps a fixed, zero-filled Framed area over [start, end).
func (as *AddressSpace) InsertFramedArea(start, end hostarch.Addr, perm Permission) error {
	return as.PushArea(NewArea(start, end, Framed, perm), false, nil)
}

// DropArea unmaps the droppable area covering exactly r and releases its
// frames. Any other r fails with EINVAL.
func (as *AddressSpace) DropArea(r hostarch.VPNRange) error {
	a, ok := as.areas.Get(&Area{vpns: r})
	if !ok || a.vpns != r || !a.droppable {
		log.Debugf("No droppable area matches %v", r)
		return linuxerr.EINVAL
	}
	as.areas.Delete(a)
	a.unmapAll(as.pt)
	return nil
}

// AreaInfo describes one area of an address space. End is zero for an area
// reaching the top of the address space.
type AreaInfo struct {
	Start     hostarch.Addr `json:"start" yaml:"start"`
	End       hostarch.Addr `json:"end" yaml:"end"`
	Perm      string        `json:"perm" yaml:"perm"`
	MapType   string        `json:"type" yaml:"type"`
	Droppable bool          `json:"droppable" yaml:"droppable"`
}

// Areas returns a snapshot of the areas in ascending address order.
func (as *AddressSpace) Areas() []AreaInfo {
	infos := make([]AreaInfo, 0, as.areas.Len())
	as.areas.Ascend(func(a *Area) bool {
		infos = append(infos, AreaInfo{
			Start:     a.vpns.Start.Addr(),
			End:       a.vpns.Start.Addr() + hostarch.Addr(a.Len()),
			Perm:      a.perm.String(),
			MapType:   a.mapType.String(),
			Droppable: a.droppable,
		})
		return true
	})
	return infos
}

// NumAreas returns the number of areas.
func (as *AddressSpace) NumAreas() int {
	return as.areas.Len()
}

// Release unmaps every area and frees every frame the address space owns,
// page tables included. The address space must not be used afterwards.
func (as *AddressSpace) Release() {
	as.areas.Ascend(func(a *Area) bool {
		a.unmapAll(as.pt)
		return true
	})
	as.areas.Clear(false)
	as.pt.Release()
}
