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
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gvisor.dev/rvos/pkg/hostarch"
	"gvisor.dev/rvos/pkg/safemem"
	"gvisor.dev/rvos/pkg/sentry/pgalloc"
)

func newTestTables(t *testing.T) (*PageTables, *pgalloc.Allocator) {
	t.Helper()
	mem := safemem.NewMemory(0x80000000, 0x80100000)
	a := pgalloc.New(mem, 0x80010, 0x80100)
	pt, err := New(a)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return pt, a
}

func checkMappings(t *testing.T, pt *PageTables, want []Mapping) {
	t.Helper()
	if diff := cmp.Diff(want, pt.Mappings()); diff != "" {
		t.Errorf("mappings mismatch (-want +got):\n%s", diff)
	}
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

func TestPTELayout(t *testing.T) {
	pte := NewPTE(0x80123, Readable|Writable|User|Valid)
	if got := uint64(pte); got != 0x80123<<10|0x17 {
		t.Errorf("raw PTE = %#x", got)
	}
	if pte.PPN() != 0x80123 || !pte.Valid() || !pte.Writable() || pte.Executable() || !pte.User() {
		t.Errorf("decoded PTE wrong: %v", pte)
	}
	if got := pte.Flags().String(); got != "vrw-u---" {
		t.Errorf("Flags().String() = %q", got)
	}
	if NewPTE(0x80123, Valid).IsLeaf() {
		t.Errorf("directory entry reported as leaf")
	}
}

func TestMapTranslate(t *testing.T) {
	pt, _ := newTestTables(t)
	if err := pt.Map(0x10000, 0x80042, Readable|Writable|User); err != nil {
		t.Fatalf("Map: %v", err)
	}
	pte, ok := pt.Translate(0x10000)
	if !ok || !pte.Valid() || pte.PPN() != 0x80042 {
		t.Fatalf("Translate = %v, %t", pte, ok)
	}
	pa, _, ok := pt.Lookup(0x10000123)
	if !ok || pa != 0x80042123 {
		t.Errorf("Lookup = %v, %t, want 0x80042123", pa, ok)
	}

	// Root plus one directory per intermediate level.
	if got := pt.NumFrames(); got != 3 {
		t.Errorf("NumFrames = %d, want 3", got)
	}
}

func TestSerialEntries(t *testing.T) {
	pt, _ := newTestTables(t)
	pt.Map(0x400, 0x80042, Readable|Writable)
	pt.Map(0x401, 0x80047, Readable|Executable)
	checkMappings(t, pt, []Mapping{
		{VPN: 0x400, PTE: NewPTE(0x80042, Valid|Readable|Writable)},
		{VPN: 0x401, PTE: NewPTE(0x80047, Valid|Readable|Executable)},
	})
	// Neighbours share all directories.
	if got := pt.NumFrames(); got != 3 {
		t.Errorf("NumFrames = %d, want 3", got)
	}
}

func TestTopOfAddressSpace(t *testing.T) {
	pt, _ := newTestTables(t)
	top := hostarch.Addr(0xfffffffffffff000).PageNumber()
	pt.Map(top, 0x80050, Readable|Executable)
	checkMappings(t, pt, []Mapping{
		{VPN: top, PTE: NewPTE(0x80050, Valid|Readable|Executable)},
	})
}

func TestUnmap(t *testing.T) {
	pt, _ := newTestTables(t)
	pt.Map(0x400, 0x80042, Readable)
	pt.Unmap(0x400)
	checkMappings(t, pt, nil)
	if pte, ok := pt.Translate(0x400); !ok || pte.Valid() {
		t.Errorf("Translate after Unmap = %v, %t", pte, ok)
	}
}

func TestMapConflictPanics(t *testing.T) {
	pt, _ := newTestTables(t)
	pt.Map(0x400, 0x80042, Readable)
	expectPanic(t, "is mapped before mapping", func() { pt.Map(0x400, 0x80043, Readable) })
}

func TestUnmapInvalidPanics(t *testing.T) {
	pt, _ := newTestTables(t)
	expectPanic(t, "is invalid before unmapping", func() { pt.Unmap(0x400) })
	pt.Map(0x400, 0x80042, Readable)
	expectPanic(t, "is invalid before unmapping", func() { pt.Unmap(0x401) })
}

func TestTranslateDoesNotAllocate(t *testing.T) {
	pt, a := newTestTables(t)
	before := a.Stats()
	if _, ok := pt.Translate(0x12345); ok {
		t.Errorf("Translate on empty tables reported a path")
	}
	if after := a.Stats(); after != before {
		t.Errorf("Translate allocated frames: %+v -> %+v", before, after)
	}
}

func TestFromTokenView(t *testing.T) {
	pt, a := newTestTables(t)
	pt.Map(0x400, 0x80042, Readable|User)

	view := FromToken(a.Memory(), pt.Token())
	if !view.IsView() || view.RootPPN() != pt.RootPPN() {
		t.Fatalf("view root %v, want %v", view.RootPPN(), pt.RootPPN())
	}
	if pte, ok := view.Translate(0x400); !ok || pte.PPN() != 0x80042 {
		t.Errorf("view Translate = %v, %t", pte, ok)
	}

	before := a.Stats()
	view.Release()
	if after := a.Stats(); after != before {
		t.Errorf("view Release freed frames: %+v -> %+v", before, after)
	}
	expectPanic(t, "view", func() { view.Map(0x401, 0x80043, Readable) })
}

func TestTokenFormat(t *testing.T) {
	pt, _ := newTestTables(t)
	if got, want := pt.Token(), uint64(8)<<60|uint64(pt.RootPPN()); got != want {
		t.Errorf("Token() = %#x, want %#x", got, want)
	}
	expectPanic(t, "not SV39", func() { FromToken(nil, uint64(pt.RootPPN())) })
}

func TestRelease(t *testing.T) {
	pt, a := newTestTables(t)
	pt.Map(0x400, 0x80042, Readable)
	pt.Map(0x7ffffff, 0x80043, Readable)
	if a.Stats().Allocated != 5 {
		t.Fatalf("Allocated = %d, want 5", a.Stats().Allocated)
	}
	pt.Release()
	if got := a.Stats().Allocated; got != 0 {
		t.Errorf("Allocated after Release = %d, want 0", got)
	}
}
