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
	"fmt"

	"gvisor.dev/rvos/pkg/hostarch"
	"gvisor.dev/rvos/pkg/safemem"
)

// Frame is the sole owner of one allocated physical frame. Release returns
// the frame to its allocator; there is exactly one Frame per allocated PPN.
type Frame struct {
	ppn      hostarch.PPN
	a        *Allocator
	released bool
}

// PPN returns the frame number.
func (f *Frame) PPN() hostarch.PPN {
	return f.ppn
}

// Block returns a view of the frame's bytes.
//
// Preconditions: f has not been released.
func (f *Frame) Block() safemem.Block {
	if f.released {
		panic(fmt.Sprintf("access to released frame %v", f.ppn))
	}
	return f.a.mem.Frame(f.ppn)
}

// Release frees the frame.
func (f *Frame) Release() {
	if f.released {
		panic(fmt.Sprintf("frame %v released twice", f.ppn))
	}
	f.released = true
	f.a.Dealloc(f.ppn)
}

// String implements fmt.Stringer.String.
func (f *Frame) String() string {
	return f.ppn.String()
}
