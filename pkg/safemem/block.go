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

// Package safemem provides bounds-checked views of simulated physical memory.
//
// Physical memory is one byte arena indexed by physical address. Everything
// the kernel does to "the bytes at this frame" goes through a Block, which
// can only see its own slice of the arena.
package safemem

import (
	"encoding/binary"
	"fmt"
)

// A Block is a contiguous, bounds-checked window of physical memory.
//
// Blocks are immutable views: methods that return a Block return a new view
// of the same underlying memory.
type Block struct {
	data []byte
}

// BlockFromSafeSlice returns a Block equivalent to slice, which is safe to
// access.
func BlockFromSafeSlice(slice []byte) Block {
	return Block{data: slice}
}

// Len returns b's length in bytes.
func (b Block) Len() int {
	return len(b.data)
}

// IsEmpty returns true if b has length 0.
func (b Block) IsEmpty() bool {
	return len(b.data) == 0
}

// String implements fmt.Stringer.String.
func (b Block) String() string {
	return fmt.Sprintf("Block{len: %d}", len(b.data))
}

// TakeFirst returns a Block equivalent to the first n bytes of b.
func (b Block) TakeFirst(n int) Block {
	if n > len(b.data) {
		n = len(b.data)
	}
	return Block{data: b.data[:n]}
}

// DropFirst returns a Block equivalent to b, but with the first n bytes
// omitted.
func (b Block) DropFirst(n int) Block {
	if n > len(b.data) {
		n = len(b.data)
	}
	return Block{data: b.data[n:]}
}

// Uint64 returns the little-endian word at byte offset off.
//
// Preconditions: off+8 <= b.Len().
func (b Block) Uint64(off int) uint64 {
	return binary.LittleEndian.Uint64(b.data[off : off+8])
}

// SetUint64 stores v as a little-endian word at byte offset off.
//
// Preconditions: off+8 <= b.Len().
func (b Block) SetUint64(off int, v uint64) {
	binary.LittleEndian.PutUint64(b.data[off:off+8], v)
}

// CopyIn copies from src into b and returns the number of bytes copied.
func (b Block) CopyIn(src []byte) int {
	return copy(b.data, src)
}

// CopyOut copies from b into dst and returns the number of bytes copied.
func (b Block) CopyOut(dst []byte) int {
	return copy(dst, b.data)
}

// Zero sets every byte in b to zero.
func (b Block) Zero() {
	clear(b.data)
}

// IsZero reports whether every byte in b is zero.
func (b Block) IsZero() bool {
	for _, c := range b.data {
		if c != 0 {
			return false
		}
	}
	return true
}

// Copy copies min(dst.Len(), src.Len()) bytes from src to dst and returns the
// number of bytes copied.
func Copy(dst, src Block) int {
	return copy(dst.data, src.data)
}
