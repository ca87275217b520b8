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

package hostarch

import (
	"fmt"
	"iter"
)

// PPN is a physical page number.
type PPN uint64

// MakePPN masks n to the PPN width.
func MakePPN(n uint64) PPN {
	return PPN(n & ppnMask)
}

// Addr returns the physical address of the first byte of the frame.
func (p PPN) Addr() PhysAddr {
	return PhysAddr(uint64(p) << PageShift)
}

// String implements fmt.Stringer.String.
func (p PPN) String() string {
	return fmt.Sprintf("ppn:%#x", uint64(p))
}

// VPN is a virtual page number.
type VPN uint64

// MakeVPN masks n to the VPN width.
func MakeVPN(n uint64) VPN {
	return VPN(n & vpnMask)
}

// Addr returns the canonical virtual address of the first byte of the page.
func (v VPN) Addr() Addr {
	a := uint64(v) << PageShift
	if a&(1<<(VAWidth-1)) != 0 {
		a |= ^uint64(vaMask)
	}
	return Addr(a)
}

// Indexes returns the page table index at each level, root level first.
func (v VPN) Indexes() [Levels]uint {
	var idx [Levels]uint
	n := uint64(v)
	for i := Levels - 1; i >= 0; i-- {
		idx[i] = uint(n & (EntriesPerTable - 1))
		n >>= LevelBits
	}
	return idx
}

// String implements fmt.Stringer.String.
func (v VPN) String() string {
	return fmt.Sprintf("vpn:%#x", uint64(v))
}

// VPNRange is a half-open range of virtual pages [Start, End).
type VPNRange struct {
	Start VPN
	End   VPN
}

// RangeOf returns the pages covering the byte range [start, end): from the
// page containing start up to the first page at or above end.
func RangeOf(start, end Addr) VPNRange {
	return VPNRange{Start: start.PageNumber(), End: end.CeilPageNumber()}
}

// Len returns the number of pages in r.
func (r VPNRange) Len() uint64 {
	if r.End <= r.Start {
		return 0
	}
	return uint64(r.End - r.Start)
}

// IsEmpty reports whether r contains no pages.
func (r VPNRange) IsEmpty() bool {
	return r.End <= r.Start
}

// Contains reports whether v lies in r.
func (r VPNRange) Contains(v VPN) bool {
	return r.Start <= v && v < r.End
}

// Overlaps reports whether r and o share a start point: either range's start
// lies inside the other. Adjacent ranges do not overlap.
func (r VPNRange) Overlaps(o VPNRange) bool {
	return (o.Start <= r.Start && r.Start < o.End) || (r.Start <= o.Start && o.Start < r.End)
}

// All iterates over the pages in r in ascending order.
func (r VPNRange) All() iter.Seq[VPN] {
	return func(yield func(VPN) bool) {
		for v := r.Start; v < r.End; v++ {
			if !yield(v) {
				return
			}
		}
	}
}

// String implements fmt.Stringer.String.
func (r VPNRange) String() string {
	return fmt.Sprintf("[%#x, %#x)", uint64(r.Start), uint64(r.End))
}
