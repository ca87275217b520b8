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


package linux

import (
	"fmt"

	"gvisor.dev/rvos/pkg/abi/linux"
	"gvisor.dev/rvos/pkg/errors/linuxerr"
	"gvisor.dev/rvos/pkg/hostarch"
	"gvisor.dev/rvos/pkg/sentry/arch"
	"gvisor.dev/rvos/pkg/sentry/kernel"
	"gvisor.dev/rvos/pkg/sentry/mm"
)

// userRange validates a page-aligned user range of length bytes at start.
func userRange(start hostarch.Addr, length uint64) (hostarch.VPNRange, error) {
	if !start.IsPageAligned() {
		return hostarch.VPNRange{}, fmt.Errorf("start %v not page aligned: %w", start, linuxerr.EINVAL)
	}
	end, ok := start.AddLength(length)
	if !ok {
		return hostarch.VPNRange{}, fmt.Errorf("range %v+%#x overflows: %w", start, length, linuxerr.EINVAL)
	}
	return hostarch.RangeOf(start, end), nil
}

// Mmap implements mmap(start, len, prot): it maps zero-filled user memory at
// [start, start+len) rounded up to whole pages.
func Mmap(t *kernel.Task, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	prot := args[2].Uint64()
	if prot&^linux.PROT_MASK != 0 || prot&linux.PROT_MASK == 0 {
		return 0, nil, fmt.Errorf("prot %#x: %w", prot, linuxerr.EINVAL)
	}
	r, err := userRange(args[0].Pointer(), args[1].Uint64())
	if err != nil {
		return 0, nil, err
	}
	perm := mm.Permission(prot<<1) | mm.PermU
	area := mm.NewArea(r.Start.Addr(), r.End.Addr(), mm.Framed, perm)
	if err := t.MemoryManager().PushArea(area, true, nil); err != nil {
		return 0, nil, err
	}
	return 0, nil, nil
}

// Munmap implements munmap(start, len). Only a whole area created by mmap
// can be removed.
func Munmap(t *kernel.Task, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	r, err := userRange(args[0].Pointer(), args[1].Uint64())
	if err != nil {
		return 0, nil, err
	}
	if err := t.MemoryManager().DropArea(r); err != nil {
		return 0, nil, err
	}
	return 0, nil, nil
}
