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

// Package pgalloc allocates physical frames.
//
// The allocator hands out single frames from the range between the end of
// the kernel image and the end of usable memory. Freed frames go on a recycle
// stack and are handed out again, most recent first, before the bump pointer
// advances.
package pgalloc

import (
	"fmt"

	"gvisor.dev/rvos/pkg/errors/linuxerr"
	"gvisor.dev/rvos/pkg/hostarch"
	"gvisor.dev/rvos/pkg/safemem"
	"gvisor.dev/rvos/pkg/sync"
)

// Allocator is a stack frame allocator over a window of physical memory.
type Allocator struct {
	mem   *safemem.Memory
	state *sync.Cell[stack]
}

// stack is the allocator state. Frames in [current, end) have never been
// handed out; recycled holds freed frames below current.
type stack struct {
	start    hostarch.PPN
	current  hostarch.PPN
	end      hostarch.PPN
	recycled []hostarch.PPN
	free     map[hostarch.PPN]struct{}
}

// Stats describes allocator occupancy.
type Stats struct {
	// Total is the number of frames managed.
	Total uint64

	// Allocated is the number of frames currently handed out.
	Allocated uint64

	// Recycled is the number of freed frames waiting for reuse.
	Recycled uint64
}

// New returns an Allocator managing frames [start, end) of mem.
//
// Preconditions: start <= end and every frame in the range lies in mem.
func New(mem *safemem.Memory, start, end hostarch.PPN) *Allocator {
	if start > end {
		panic(fmt.Sprintf("frame range [%v, %v) is inverted", start, end))
	}
	if start < end && (!mem.Contains(start.Addr(), 0) || !mem.Contains(end.Addr(), 0)) {
		panic(fmt.Sprintf("frame range [%v, %v) lies outside physical memory [%v, %v)", start, end, mem.Base(), mem.End()))
	}
	return &Allocator{
		mem: mem,
		state: sync.NewCell("frame allocator", stack{
			start:   start,
			current: start,
			end:     end,
			free:    make(map[hostarch.PPN]struct{}),
		}),
	}
}

// Memory returns the physical memory frames are carved from.
func (a *Allocator) Memory() *safemem.Memory {
	return a.mem
}

// Allocate returns a zeroed frame, or ENOMEM if none is left.
func (a *Allocator) Allocate() (*Frame, error) {
	ppn, ok := a.alloc()
	if !ok {
		return nil, linuxerr.ENOMEM
	}
	a.mem.Frame(ppn).Zero()
	return &Frame{ppn: ppn, a: a}, nil
}

func (a *Allocator) alloc() (hostarch.PPN, bool) {
	s := a.state.Borrow()
	defer a.state.Release()
	if n := len(s.recycled); n > 0 {
		ppn := s.recycled[n-1]
		s.recycled = s.recycled[:n-1]
		delete(s.free, ppn)
		return ppn, true
	}
	if s.current == s.end {
		return 0, false
	}
	ppn := s.current
	s.current++
	return ppn, true
}

// Dealloc returns ppn to the allocator. Freeing a frame that was never
// handed out, or one that is already free, is a kernel bug and panics.
func (a *Allocator) Dealloc(ppn hostarch.PPN) {
	s := a.state.Borrow()
	defer a.state.Release()
	if ppn < s.start || ppn >= s.current {
		panic(fmt.Sprintf("frame %v has not been allocated", ppn))
	}
	if _, ok := s.free[ppn]; ok {
		panic(fmt.Sprintf("frame %v freed twice", ppn))
	}
	s.recycled = append(s.recycled, ppn)
	s.free[ppn] = struct{}{}
}

// Stats returns the current occupancy.
func (a *Allocator) Stats() Stats {
	var st Stats
	a.state.With(func(s *stack) {
		st.Total = uint64(s.end - s.start)
		st.Recycled = uint64(len(s.recycled))
		st.Allocated = uint64(s.current-s.start) - st.Recycled
	})
	return st
}
