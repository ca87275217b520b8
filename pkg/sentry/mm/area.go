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

package mm

import (
	"fmt"

	"gvisor.dev/rvos/pkg/cleanup"
	"gvisor.dev/rvos/pkg/hostarch"
	"gvisor.dev/rvos/pkg/ring0/pagetables"
	"gvisor.dev/rvos/pkg/sentry/pgalloc"
)

// MapType is how an Area's pages are backed.
type MapType int

const (
	// Identical maps each VPN to the PPN with the same number.
	Identical MapType = iota

	// Framed backs each VPN with a freshly allocated frame owned by the
	// area.
	Framed

	// Fixed maps the area onto a fixed run of frames the area does not own.
	// The trampoline is the only Fixed area.
	Fixed
)

// String implements fmt.Stringer.String.
func (t MapType) String() string {
	switch t {
	case Identical:
		return "identical"
	case Framed:
		return "framed"
	case Fixed:
		return "fixed"
	default:
		return fmt.Sprintf("MapType(%d)", int(t))
	}
}

// Permission is the set of R/W/X/U bits of an area. The bit positions are
// those of the page table entry flags.
type Permission uint8

// Area permission bits.
const (
	PermR = Permission(pagetables.Readable)
	PermW = Permission(pagetables.Writable)
	PermX = Permission(pagetables.Executable)
	PermU = Permission(pagetables.User)

	permMask = PermR | PermW | PermX | PermU
)

// PermissionFor converts an access type to area permissions.
func PermissionFor(at hostarch.AccessType, user bool) Permission {
	return Permission(pagetables.FlagsFor(at, user))
}

// AccessType returns the R/W/X part of p.
func (p Permission) AccessType() hostarch.AccessType {
	return hostarch.AccessType{Read: p&PermR != 0, Write: p&PermW != 0, Execute: p&PermX != 0}
}

// String renders p as "rwxu", with '-' for clear bits.
func (p Permission) String() string {
	b := []byte("----")
	for i, c := range "rwxu" {
		if p&(PermR<<i) != 0 {
			b[i] = byte(c)
		}
	}
	return string(b)
}

func (p Permission) flags() pagetables.PTEFlags {
	return pagetables.PTEFlags(p & permMask)
}

// Area is a contiguous run of virtual pages with a single backing kind and
// permission.
type Area struct {
	vpns    hostarch.VPNRange
	mapType MapType
	perm    Permission

	// base is the first frame of a Fixed area.
	base hostarch.PPN

	// frames holds the owned frame of every page of a Framed area.
	frames map[hostarch.VPN]*pgalloc.Frame

	droppable bool
}

// NewArea returns an unmapped area covering the pages of [start, end).
func NewArea(start, end hostarch.Addr, mapType MapType, perm Permission) *Area {
	return &Area{
		vpns:    hostarch.RangeOf(start, end),
		mapType: mapType,
		perm:    perm,
	}
}

// NewFixedArea returns an area mapping pages VPNs starting at vpn onto the
// frames starting at ppn.
func NewFixedArea(vpn hostarch.VPN, ppn hostarch.PPN, pages uint64, perm Permission) *Area {
	return &Area{
		vpns:    hostarch.VPNRange{Start: vpn, End: vpn + hostarch.VPN(pages)},
		mapType: Fixed,
		perm:    perm,
		base:    ppn,
	}
}

// Range returns the pages covered by a.
func (a *Area) Range() hostarch.VPNRange { return a.vpns }

// MapType returns how a is backed.
func (a *Area) MapType() MapType { return a.mapType }

// Perm returns a's permissions.
func (a *Area) Perm() Permission { return a.perm }

// Droppable reports whether a may be removed by DropArea.
func (a *Area) Droppable() bool { return a.droppable }

// Len returns the size of a in bytes.
func (a *Area) Len() uint64 { return a.vpns.Len() * hostarch.PageSize }

// String implements fmt.Stringer.String.
func (a *Area) String() string {
	return fmt.Sprintf("%v-%v %v %v", a.vpns.Start.Addr(), a.vpns.End.Addr(), a.perm, a.mapType)
}

// mapOne backs vpn and installs its mapping.
func (a *Area) mapOne(pt *pagetables.PageTables, alloc *pgalloc.Allocator, vpn hostarch.VPN) error {
	var ppn hostarch.PPN
	switch a.mapType {
	case Identical:
		ppn = hostarch.PPN(vpn)
	case Fixed:
		ppn = a.base + hostarch.PPN(vpn-a.vpns.Start)
	case Framed:
		f, err := alloc.Allocate()
		if err != nil {
			return err
		}
		if err := pt.Map(vpn, f.PPN(), a.perm.flags()); err != nil {
			f.Release()
			return err
		}
		a.frames[vpn] = f
		return nil
	}
	return pt.Map(vpn, ppn, a.perm.flags())
}

// unmapOne removes the mapping of vpn and releases its frame, if owned.
func (a *Area) unmapOne(pt *pagetables.PageTables, vpn hostarch.VPN) {
	if a.mapType == Framed {
		if f, ok := a.frames[vpn]; ok {
			f.Release()
			delete(a.frames, vpn)
		}
	}
	pt.Unmap(vpn)
}

// mapAll maps every page of a. On failure every page already mapped is
// unmapped again.
func (a *Area) mapAll(pt *pagetables.PageTables, alloc *pgalloc.Allocator) error {
	if a.mapType == Framed {
		a.frames = make(map[hostarch.VPN]*pgalloc.Frame, a.vpns.Len())
	}
	var cu cleanup.Cleanup
	defer cu.Clean()
	for vpn := range a.vpns.All() {
		if err := a.mapOne(pt, alloc, vpn); err != nil {
			return err
		}
		cu.Add(func() { a.unmapOne(pt, vpn) })
	}
	cu.Release()
	return nil
}

// unmapAll unmaps every page of a.
func (a *Area) unmapAll(pt *pagetables.PageTables) {
	for vpn := range a.vpns.All() {
		a.unmapOne(pt, vpn)
	}
}

// copyData copies data page by page into the frames of a, starting at the
// first page.
//
// Preconditions: a is Framed and mapped; len(data) <= a.Len().
func (a *Area) copyData(data []byte) {
	vpn := a.vpns.Start
	for len(data) > 0 {
		n := min(len(data), hostarch.PageSize)
		a.frames[vpn].Block().CopyIn(data[:n])
		data = data[n:]
		vpn++
	}
}
