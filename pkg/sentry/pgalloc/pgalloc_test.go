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

package pgalloc

import (
	"strings"
	"testing"

	"gvisor.dev/rvos/pkg/errors/linuxerr"
	"gvisor.dev/rvos/pkg/hostarch"
	"gvisor.dev/rvos/pkg/safemem"
)

const (
	memBase = 0x80000000
	memEnd  = 0x80010000
)

func newTestAllocator(t *testing.T, frames int) *Allocator {
	t.Helper()
	mem := safemem.NewMemory(memBase, memEnd)
	start := hostarch.PhysAddr(memBase).PageNumber() + 1
	return New(mem, start, start+hostarch.PPN(frames))
}

func expectPanic(t *testing.T, substr string, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("expected panic containing %q", substr)
		}
		if s, ok := r.(string); !ok || !strings.Contains(s, substr) {
			t.Fatalf("panic %v, want it to contain %q", r, substr)
		}
	}()
	fn()
}

func TestAllocateUnique(t *testing.T) {
	a := newTestAllocator(t, 8)
	seen := make(map[hostarch.PPN]bool)
	var frames []*Frame
	for i := 0; i < 8; i++ {
		f, err := a.Allocate()
		if err != nil {
			t.Fatalf("Allocate #%d: %v", i, err)
		}
		if seen[f.PPN()] {
			t.Fatalf("frame %v handed out twice", f.PPN())
		}
		seen[f.PPN()] = true
		frames = append(frames, f)
	}
	if _, err := a.Allocate(); !linuxerr.Equals(linuxerr.ENOMEM, err) {
		t.Errorf("Allocate on exhausted pool: got %v, want ENOMEM", err)
	}

	// Free a few, reallocate, and check no live frame is duplicated.
	frames[2].Release()
	frames[5].Release()
	delete(seen, frames[2].PPN())
	delete(seen, frames[5].PPN())
	for i := 0; i < 2; i++ {
		f, err := a.Allocate()
		if err != nil {
			t.Fatalf("Allocate after free: %v", err)
		}
		if seen[f.PPN()] {
			t.Fatalf("live frame %v handed out again", f.PPN())
		}
		seen[f.PPN()] = true
	}
}

func TestRecycleLIFO(t *testing.T) {
	a := newTestAllocator(t, 4)
	f1, _ := a.Allocate()
	f2, _ := a.Allocate()
	p1, p2 := f1.PPN(), f2.PPN()
	f1.Release()
	f2.Release()

	g, _ := a.Allocate()
	if g.PPN() != p2 {
		t.Errorf("first reuse got %v, want most recently freed %v", g.PPN(), p2)
	}
	h, _ := a.Allocate()
	if h.PPN() != p1 {
		t.Errorf("second reuse got %v, want %v", h.PPN(), p1)
	}
}

func TestAllocateZeroes(t *testing.T) {
	a := newTestAllocator(t, 1)
	f, _ := a.Allocate()
	f.Block().CopyIn([]byte("dirty frame"))
	f.Release()

	g, err := a.Allocate()
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if !g.Block().IsZero() {
		t.Errorf("recycled frame %v is not zeroed", g.PPN())
	}
}

func TestDeallocErrors(t *testing.T) {
	a := newTestAllocator(t, 4)
	f, _ := a.Allocate()
	ppn := f.PPN()

	expectPanic(t, "has not been allocated", func() { a.Dealloc(ppn + 1) })
	// Below the pool, where the kernel image lives.
	expectPanic(t, "has not been allocated", func() { a.Dealloc(ppn - 1) })

	f.Release()
	expectPanic(t, "freed twice", func() { a.Dealloc(ppn) })
	expectPanic(t, "released twice", f.Release)
}

func TestStats(t *testing.T) {
	a := newTestAllocator(t, 4)
	f1, _ := a.Allocate()
	a.Allocate()
	f1.Release()
	want := Stats{Total: 4, Allocated: 1, Recycled: 1}
	if got := a.Stats(); got != want {
		t.Errorf("Stats() = %+v, want %+v", got, want)
	}
}
