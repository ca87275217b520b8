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

package usermem

import (
	"context"
	"io"
	"testing"

	"gvisor.dev/rvos/pkg/errors"
	"gvisor.dev/rvos/pkg/errors/linuxerr"
	"gvisor.dev/rvos/pkg/hostarch"
)

// flatIO is an IO over a byte slice mapped at base. Accesses outside it
// fault.
type flatIO struct {
	base  hostarch.Addr
	data  []byte
	reads []int
}

func (f *flatIO) span(addr hostarch.Addr, n int) (int, int, error) {
	if addr < f.base || addr >= f.base+hostarch.Addr(len(f.data)) {
		return 0, 0, linuxerr.EFAULT
	}
	off := int(addr - f.base)
	if avail := len(f.data) - off; n > avail {
		return off, avail, linuxerr.EFAULT
	}
	return off, n, nil
}

func (f *flatIO) CopyOut(_ context.Context, addr hostarch.Addr, src []byte, _ IOOpts) (int, error) {
	off, n, err := f.span(addr, len(src))
	copy(f.data[off:off+n], src)
	return n, err
}

func (f *flatIO) CopyIn(_ context.Context, addr hostarch.Addr, dst []byte, _ IOOpts) (int, error) {
	f.reads = append(f.reads, len(dst))
	off, n, err := f.span(addr, len(dst))
	copy(dst, f.data[off:off+n])
	return n, err
}

func (f *flatIO) ZeroOut(_ context.Context, addr hostarch.Addr, toZero int64, _ IOOpts) (int64, error) {
	off, n, err := f.span(addr, int(toZero))
	clear(f.data[off : off+n])
	return int64(n), err
}

func TestCopyStringIn(t *testing.T) {
	const base = 0x10000
	for _, tc := range []struct {
		name   string
		data   string
		addr   hostarch.Addr
		maxlen int
		want   string
		err    *errors.Error
	}{
		{"short", "hello\x00junk", base, 256, "hello", nil},
		{"empty", "\x00", base, 256, "", nil},
		{"unterminated at end of memory", "abc", base, 256, "abc", linuxerr.EFAULT},
		{"too long", "abcdefgh\x00", base, 4, "abcd", linuxerr.ENAMETOOLONG},
		{"unmapped", "x\x00", 0x1000, 256, "", linuxerr.EFAULT},
	} {
		t.Run(tc.name, func(t *testing.T) {
			f := &flatIO{base: base, data: []byte(tc.data)}
			got, err := CopyStringIn(context.Background(), f, tc.addr, tc.maxlen, IOOpts{})
			if got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
			if !linuxerr.Equals(tc.err, err) {
				t.Errorf("err = %v, want %v", err, tc.err)
			}
		})
	}
}

func TestCopyStringInIncrements(t *testing.T) {
	// A 200 byte string starting 16 bytes before a page boundary.
	const base = 0x10000
	data := make([]byte, 2*hostarch.PageSize)
	start := hostarch.PageSize - 16
	for i := 0; i < 200; i++ {
		data[start+i] = 'a'
	}
	f := &flatIO{base: base, data: data}
	got, err := CopyStringIn(context.Background(), f, base+hostarch.Addr(start), 4096, IOOpts{})
	if err != nil {
		t.Fatalf("CopyStringIn: %v", err)
	}
	if len(got) != 200 {
		t.Errorf("got %d bytes, want 200", len(got))
	}
	if f.reads[0] != 16 {
		t.Errorf("first read = %d bytes, want 16 (stop at page boundary)", f.reads[0])
	}
	for _, n := range f.reads {
		if n > copyStringIncrement {
			t.Errorf("read of %d bytes exceeds increment", n)
		}
	}
}

func TestIOReadWriter(t *testing.T) {
	f := &flatIO{base: 0x1000, data: make([]byte, 16)}
	rw := &IOReadWriter{Ctx: context.Background(), IO: f, Addr: 0x1000}
	if _, err := io.WriteString(rw, "0123456789"); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if rw.Addr != 0x100a {
		t.Errorf("Addr = %v, want 0x100a", rw.Addr)
	}
	n, err := rw.Write([]byte("abcdefghij"))
	if n != 6 || !linuxerr.Equals(linuxerr.EFAULT, err) {
		t.Errorf("Write past end = %d, %v; want 6, EFAULT", n, err)
	}
	rw.Addr = 0x1000
	buf := make([]byte, 4)
	if _, err := io.ReadFull(rw, buf); err != nil || string(buf) != "0123" {
		t.Errorf("Read = %q, %v", buf, err)
	}
}

func TestCopyUint32Out(t *testing.T) {
	ctx := context.Background()
	f := &flatIO{base: 0x1000, data: make([]byte, 16)}
	if n, err := CopyUint32Out(ctx, f, 0x1008, 0x11223344, IOOpts{}); n != 4 || err != nil {
		t.Fatalf("CopyUint32Out = %d, %v, want 4, nil", n, err)
	}
	if got, want := f.data[8:12], []byte{0x44, 0x33, 0x22, 0x11}; string(got) != string(want) {
		t.Errorf("not little endian: % x", got)
	}
	if n, err := CopyUint32Out(ctx, f, 0x100e, 1, IOOpts{}); n != 2 || !linuxerr.Equals(linuxerr.EFAULT, err) {
		t.Errorf("CopyUint32Out across the end = %d, %v, want 2, EFAULT", n, err)
	}
}
