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
	"gvisor.dev/rvos/pkg/log"
	"gvisor.dev/rvos/pkg/sentry/arch"
	"gvisor.dev/rvos/pkg/sentry/pgalloc"
)

// PhysRange is a half-open range of physical addresses.
type PhysRange struct {
	Start hostarch.PhysAddr
	End   hostarch.PhysAddr
}

// KernelLayout gives the link-time section boundaries of the kernel image.
type KernelLayout struct {
	Text   PhysRange
	Rodata PhysRange
	Data   PhysRange
	BSS    PhysRange

	// Trampoline is the frame holding the trap entry and exit code. It lives
	// inside Text.
	Trampoline hostarch.PPN

	// MemoryEnd is the end of usable physical memory. Everything between
	// the end of the image and MemoryEnd is the frame pool.
	MemoryEnd hostarch.PhysAddr
}

// Ekernel returns the end of the kernel image.
func (l *KernelLayout) Ekernel() hostarch.PhysAddr {
	return l.BSS.End
}

// TrampolineArea returns the area mapping the trampoline page at
// arch.TrampolineAddr. Every address space holds one, mapped R+X without the
// User bit.
func TrampolineArea(trampoline hostarch.PPN) *Area {
	return NewFixedArea(arch.TrampolineAddr.PageNumber(), trampoline, 1, PermR|PermX)
}

// NewKernel builds the kernel address space: the trampoline, then the image
// sections and the frame pool, each identity mapped.
func NewKernel(alloc *pgalloc.Allocator, l KernelLayout) (*AddressSpace, error) {
	as, err := New(alloc)
	if err != nil {
		return nil, err
	}
	cu := cleanup.Make(as.Release)
	defer cu.Clean()

	if err := as.PushArea(TrampolineArea(l.Trampoline), false, nil); err != nil {
		return nil, fmt.Errorf("mapping trampoline: %w", err)
	}
	for _, s := range []struct {
		name string
		r    PhysRange
		perm Permission
	}{
		{".text", l.Text, PermR | PermX},
		{".rodata", l.Rodata, PermR},
		{".data", l.Data, PermR | PermW},
		{".bss", l.BSS, PermR | PermW},
		{"physical memory", PhysRange{l.Ekernel(), l.MemoryEnd}, PermR | PermW},
	} {
		log.Infof("[kernel] %s [%v, %v)", s.name, s.r.Start, s.r.End)
		if s.r.Start == s.r.End {
			continue
		}
		a := NewArea(hostarch.Addr(s.r.Start), hostarch.Addr(s.r.End), Identical, s.perm)
		if err := as.PushArea(a, false, nil); err != nil {
			return nil, fmt.Errorf("mapping %s: %w", s.name, err)
		}
	}
	cu.Release()
	return as, nil
}
