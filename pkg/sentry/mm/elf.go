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
	"gvisor.dev/rvos/pkg/errors/linuxerr"
	"gvisor.dev/rvos/pkg/hostarch"
	"gvisor.dev/rvos/pkg/sentry/arch"
	"gvisor.dev/rvos/pkg/sentry/loader"
	"gvisor.dev/rvos/pkg/sentry/pgalloc"
)

// UserLayout parameterizes FromELF.
type UserLayout struct {
	// Trampoline is the frame holding the trampoline code.
	Trampoline hostarch.PPN

	// StackSize is the size of the user stack. It must be page aligned.
	StackSize uint64
}

// Image is the result of loading an executable.
type Image struct {
	// Space is the new address space.
	Space *AddressSpace

	// StackTop is the initial user stack pointer.
	StackTop hostarch.Addr

	// Entry is the initial program counter.
	Entry hostarch.Addr
}

// FromELF builds a user address space from an ELF executable: one Framed
// area per PT_LOAD segment holding the segment's file bytes, then an unmapped
// guard page, the user stack, the trap context page and the trampoline.
func FromELF(alloc *pgalloc.Allocator, data []byte, l UserLayout) (Image, error) {
	img, err := loader.ParseELF(data)
	if err != nil {
		return Image{}, err
	}
	if len(img.Segments) == 0 {
		return Image{}, fmt.Errorf("no loadable segments: %w", linuxerr.ENOEXEC)
	}

	as, err := New(alloc)
	if err != nil {
		return Image{}, err
	}
	cu := cleanup.Make(as.Release)
	defer cu.Clean()

	if err := as.PushArea(TrampolineArea(l.Trampoline), false, nil); err != nil {
		return Image{}, fmt.Errorf("mapping trampoline: %w", err)
	}

	var maxEnd hostarch.VPN
	for _, seg := range img.Segments {
		perm := PermissionFor(seg.Perms, true)
		a := NewArea(seg.Vaddr, seg.End(), Framed, perm)
		// The first page is filled from its start, so the file bytes are
		// preceded by the segment's offset into that page.
		payload := make([]byte, seg.Vaddr.PageOffset()+uint64(len(seg.Data)))
		copy(payload[seg.Vaddr.PageOffset():], seg.Data)
		if err := as.PushArea(a, false, payload); err != nil {
			return Image{}, fmt.Errorf("segment at %v: %w", seg.Vaddr, err)
		}
		maxEnd = max(maxEnd, a.vpns.End)
	}

	// Skip one guard page.
	stackBottom := maxEnd.Addr() + hostarch.PageSize
	stackTop := stackBottom + hostarch.Addr(l.StackSize)
	if err := as.InsertFramedArea(stackBottom, stackTop, PermR|PermW|PermU); err != nil {
		return Image{}, fmt.Errorf("mapping user stack: %w", err)
	}
	if err := as.InsertFramedArea(arch.TrapContextAddr, arch.TrampolineAddr, PermR|PermW); err != nil {
		return Image{}, fmt.Errorf("mapping trap context: %w", err)
	}

	cu.Release()
	return Image{Space: as, StackTop: stackTop, Entry: img.Entry}, nil
}

// TrapContextFrame returns the frame backing the trap context page.
func (as *AddressSpace) TrapContextFrame() (hostarch.PPN, bool) {
	pte, ok := as.Translate(arch.TrapContextAddr.PageNumber())
	if !ok || !pte.Valid() {
		return 0, false
	}
	return pte.PPN(), true
}
