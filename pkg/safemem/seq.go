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

package safemem

import (
	"bytes"
	"fmt"
)

// A BlockSeq represents a sequence of Blocks, each of which has non-zero
// length. A translated user buffer that straddles pages is a BlockSeq with
// one Block per frame.
type BlockSeq struct {
	blocks []Block
}

// BlockSeqOf returns a BlockSeq representing the single Block b.
func BlockSeqOf(b Block) BlockSeq {
	if b.IsEmpty() {
		return BlockSeq{}
	}
	return BlockSeq{blocks: []Block{b}}
}

// BlockSeqFromSlice returns a BlockSeq representing all Blocks in slice,
// skipping empty ones.
func BlockSeqFromSlice(slice []Block) BlockSeq {
	var bs BlockSeq
	for _, b := range slice {
		if !b.IsEmpty() {
			bs.blocks = append(bs.blocks, b)
		}
	}
	return bs
}

// IsEmpty returns true if bs contains no Blocks.
func (bs BlockSeq) IsEmpty() bool {
	return len(bs.blocks) == 0
}

// NumBlocks returns the number of Blocks in bs.
func (bs BlockSeq) NumBlocks() int {
	return len(bs.blocks)
}

// NumBytes returns the sum of Block.Len() for all Blocks in bs.
func (bs BlockSeq) NumBytes() int {
	n := 0
	for _, b := range bs.blocks {
		n += b.Len()
	}
	return n
}

// Head returns the first Block in bs.
//
// Preconditions: !bs.IsEmpty().
func (bs BlockSeq) Head() Block {
	return bs.blocks[0]
}

// Tail returns a BlockSeq consisting of all Blocks in bs after the first.
//
// Preconditions: !bs.IsEmpty().
func (bs BlockSeq) Tail() BlockSeq {
	return BlockSeq{blocks: bs.blocks[1:]}
}

// Blocks returns the Blocks in bs.
func (bs BlockSeq) Blocks() []Block {
	return bs.blocks
}

// CopyIn copies src across the Blocks in order and returns the number of
// bytes copied.
func (bs BlockSeq) CopyIn(src []byte) int {
	done := 0
	for _, b := range bs.blocks {
		if done == len(src) {
			break
		}
		done += b.CopyIn(src[done:])
	}
	return done
}

// CopyOut gathers the Blocks in order into dst and returns the number of
// bytes copied.
func (bs BlockSeq) CopyOut(dst []byte) int {
	done := 0
	for _, b := range bs.blocks {
		if done == len(dst) {
			break
		}
		done += b.CopyOut(dst[done:])
	}
	return done
}

// Bytes returns a copy of the contents of bs.
func (bs BlockSeq) Bytes() []byte {
	buf := make([]byte, bs.NumBytes())
	bs.CopyOut(buf)
	return buf
}

// String implements fmt.Stringer.String.
func (bs BlockSeq) String() string {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, b := range bs.blocks {
		if i > 0 {
			buf.WriteByte(' ')
		}
		fmt.Fprintf(&buf, "%v", b)
	}
	buf.WriteByte(']')
	return buf.String()
}
