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

package loader

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gvisor.dev/rvos/pkg/errors/linuxerr"
	"gvisor.dev/rvos/pkg/hostarch"
	"gvisor.dev/rvos/pkg/rvasm"
)

func twoSegmentImage(t *testing.T) []byte {
	t.Helper()
	text := make([]byte, 0x1800)
	data := []byte("payload")
	img, err := rvasm.WriteELF(0x10000, []rvasm.ELFSegment{
		{Vaddr: 0x10000, Memsz: uint64(len(text)), Flags: elf.PF_R | elf.PF_X, Data: text},
		{Vaddr: 0x12000, Memsz: 0x1000, Flags: elf.PF_R | elf.PF_W, Data: data},
	})
	if err != nil {
		t.Fatalf("WriteELF: %v", err)
	}
	return img
}

func TestParseELF(t *testing.T) {
	img, err := ParseELF(twoSegmentImage(t))
	if err != nil {
		t.Fatalf("ParseELF: %v", err)
	}
	type seg struct {
		Vaddr hostarch.Addr
		Memsz uint64
		Perms string
		Filesz int
	}
	var got []seg
	for _, s := range img.Segments {
		got = append(got, seg{s.Vaddr, s.Memsz, s.Perms.String(), len(s.Data)})
	}
	want := []seg{
		{0x10000, 0x1800, "r-x", 0x1800},
		{0x12000, 0x1000, "rw-", 7},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("segments mismatch (-want +got):\n%s", diff)
	}
	if img.Entry != 0x10000 {
		t.Errorf("entry = %v, want 0x10000", img.Entry)
	}
	if s := img.Segments[1]; string(s.Data) != "payload" {
		t.Errorf("data = %q", s.Data)
	}
}

func TestParseAssembled(t *testing.T) {
	p := rvasm.New()
	p.Label(rvasm.EntrySymbol)
	p.LI(rvasm.A0, 0)
	p.Syscall(93)
	data, err := p.Link(rvasm.LinkOptions{})
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	img, err := ParseELF(data)
	if err != nil {
		t.Fatalf("ParseELF: %v", err)
	}
	if len(img.Segments) != 1 {
		t.Errorf("got %d segments, want 1", len(img.Segments))
	}
}

// patch rewrites the little-endian value of size n at off.
func patch(img []byte, off int, n int, v uint64) []byte {
	out := append([]byte(nil), img...)
	switch n {
	case 2:
		binary.LittleEndian.PutUint16(out[off:], uint16(v))
	case 8:
		binary.LittleEndian.PutUint64(out[off:], v)
	}
	return out
}

func TestParseELFRejects(t *testing.T) {
	const (
		offType    = 16
		offMachine = 18
		phoff      = 64
		offFilesz  = phoff + 32
		offMemsz   = phoff + 40
		offPOff    = phoff + 8
	)
	good := twoSegmentImage(t)
	for _, tc := range []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"not elf", []byte("#!/bin/sh\n")},
		{"truncated", good[:20]},
		{"wrong machine", patch(good, offMachine, 2, uint64(elf.EM_X86_64))},
		{"not executable", patch(good, offType, 2, uint64(elf.ET_DYN))},
		{"filesz exceeds memsz", patch(good, offFilesz, 8, 0x2000)},
		{"past end of file", patch(good, offPOff, 8, 0x100000)},
		{"memsz overflows", patch(good, offMemsz, 8, ^uint64(0))},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseELF(tc.data)
			if err == nil {
				t.Fatalf("ParseELF succeeded")
			}
			if !linuxerr.Equals(linuxerr.ENOEXEC, err) {
				t.Errorf("ParseELF: got %v, want ENOEXEC", err)
			}
		})
	}
}

func TestHasELFMagic(t *testing.T) {
	if !HasELFMagic(twoSegmentImage(t)) {
		t.Errorf("HasELFMagic(elf) = false")
	}
	if HasELFMagic(bytes.Repeat([]byte{0}, 64)) {
		t.Errorf("HasELFMagic(zeros) = true")
	}
}

func TestCatalog(t *testing.T) {
	c := NewCatalog()
	for _, name := range []string{"b", "a", "c"} {
		if err := c.Add(name, []byte(name)); err != nil {
			t.Fatalf("Add(%q): %v", name, err)
		}
	}
	if err := c.Add("a", nil); err == nil {
		t.Errorf("duplicate Add succeeded")
	}
	if diff := cmp.Diff([]string{"b", "a", "c"}, c.Names()); diff != "" {
		t.Errorf("Names mismatch (-want +got):\n%s", diff)
	}
	if c.Count() != 3 || c.Name(1) != "a" || string(c.Data(2)) != "c" {
		t.Errorf("unexpected catalog contents")
	}
	if d, ok := c.Lookup("c"); !ok || string(d) != "c" {
		t.Errorf("Lookup(c) = %q, %v", d, ok)
	}
	if _, ok := c.Lookup("missing"); ok {
		t.Errorf("Lookup(missing) succeeded")
	}
}
