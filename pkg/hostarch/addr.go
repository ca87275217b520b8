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
)

// Addr represents a virtual address. Addresses in the upper half of the SV39
// space are kept in their canonical, sign-extended form.
type Addr uint64

// String implements fmt.Stringer.String.
func (v Addr) String() string {
	return fmt.Sprintf("%#x", uint64(v))
}

// RoundDown returns the address rounded down to the nearest page boundary.
func (v Addr) RoundDown() Addr {
	return v & ^Addr(PageSize-1)
}

// RoundUp returns the address rounded up to the nearest page boundary. ok is
// true iff rounding up did not wrap around.
func (v Addr) RoundUp() (addr Addr, ok bool) {
	addr = Addr(v + PageSize - 1).RoundDown()
	ok = addr >= v
	return
}

// PageOffset returns the offset of v into the current page.
func (v Addr) PageOffset() uint64 {
	return uint64(v & Addr(PageSize-1))
}

// IsPageAligned returns true if v.PageOffset() == 0.
func (v Addr) IsPageAligned() bool {
	return v.PageOffset() == 0
}

// IsCanonical reports whether bits 63..39 of v all equal bit 38.
func (v Addr) IsCanonical() bool {
	hi := uint64(v) >> (VAWidth - 1)
	return hi == 0 || hi == (1<<(64-VAWidth+1))-1
}

// PageNumber returns the number of the page containing v (floor).
func (v Addr) PageNumber() VPN {
	return VPN((uint64(v) & vaMask) >> PageShift)
}

// CeilPageNumber returns the number of the first page at or above v.
func (v Addr) CeilPageNumber() VPN {
	return VPN(((uint64(v) & vaMask) + PageSize - 1) >> PageShift)
}

// AddLength adds the given length to start and returns the result. ok is true
// iff adding the length did not overflow.
func (v Addr) AddLength(length uint64) (end Addr, ok bool) {
	end = v + Addr(length)
	// The second half of the following check is needed in case uint64 is
	// larger than Addr.
	ok = end >= v && length <= uint64(^Addr(0))
	return
}

// PhysAddr is a 56-bit physical address.
type PhysAddr uint64

// MakePhysAddr masks a to the physical address width.
func MakePhysAddr(a uint64) PhysAddr {
	return PhysAddr(a & paMask)
}

// String implements fmt.Stringer.String.
func (p PhysAddr) String() string {
	return fmt.Sprintf("%#x", uint64(p))
}

// PageNumber returns the number of the frame containing p (floor).
func (p PhysAddr) PageNumber() PPN {
	return PPN(uint64(p) >> PageShift)
}

// CeilPageNumber returns the number of the first frame at or above p.
func (p PhysAddr) CeilPageNumber() PPN {
	return PPN((uint64(p) + PageSize - 1) >> PageShift)
}

// PageOffset returns the offset of p into its frame.
func (p PhysAddr) PageOffset() uint64 {
	return uint64(p) & (PageSize - 1)
}
