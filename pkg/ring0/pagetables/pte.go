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

package pagetables

import (
	"fmt"

	"gvisor.dev/rvos/pkg/hostarch"
)

// PTEFlags are the low eight bits of an SV39 page table entry.
type PTEFlags uint8

// Page table entry flags.
const (
	Valid PTEFlags = 1 << iota
	Readable
	Writable
	Executable
	User
	Global
	Accessed
	Dirty
)

// String renders flags as "vrwxugad", with '-' for clear bits.
func (f PTEFlags) String() string {
	const names = "vrwxugad"
	b := []byte("--------")
	for i := range names {
		if f&(1<<i) != 0 {
			b[i] = names[i]
		}
	}
	return string(b)
}

// FlagsFor converts an access type to leaf flags, without Valid.
func FlagsFor(at hostarch.AccessType, user bool) PTEFlags {
	var f PTEFlags
	if at.Read {
		f |= Readable
	}
	if at.Write {
		f |= Writable
	}
	if at.Execute {
		f |= Executable
	}
	if user {
		f |= User
	}
	return f
}

const ppnShift = 10

// PTE is a single SV39 page table entry: PPN in bits 10..53, flags in bits
// 0..7.
type PTE uint64

// NewPTE builds an entry.
func NewPTE(ppn hostarch.PPN, flags PTEFlags) PTE {
	return PTE(uint64(hostarch.MakePPN(uint64(ppn)))<<ppnShift | uint64(flags))
}

// PPN returns the frame number in the entry.
func (p PTE) PPN() hostarch.PPN {
	return hostarch.MakePPN(uint64(p) >> ppnShift)
}

// Flags returns the flag bits.
func (p PTE) Flags() PTEFlags {
	return PTEFlags(p)
}

// Valid returns true iff the V bit is set.
func (p PTE) Valid() bool {
	return p.Flags()&Valid != 0
}

// Readable returns true iff the R bit is set.
func (p PTE) Readable() bool {
	return p.Flags()&Readable != 0
}

// Writable returns true iff the W bit is set.
func (p PTE) Writable() bool {
	return p.Flags()&Writable != 0
}

// Executable returns true iff the X bit is set.
func (p PTE) Executable() bool {
	return p.Flags()&Executable != 0
}

// User returns true iff the U bit is set.
func (p PTE) User() bool {
	return p.Flags()&User != 0
}

// IsLeaf returns true iff the entry maps a page rather than pointing at the
// next level of the tree.
func (p PTE) IsLeaf() bool {
	return p.Flags()&(Readable|Writable|Executable) != 0
}

// AccessType returns the permissions granted by a leaf entry.
func (p PTE) AccessType() hostarch.AccessType {
	return hostarch.AccessType{
		Read:    p.Readable(),
		Write:   p.Writable(),
		Execute: p.Executable(),
	}
}

// String implements fmt.Stringer.String.
func (p PTE) String() string {
	return fmt.Sprintf("%v %v", p.PPN(), p.Flags())
}
