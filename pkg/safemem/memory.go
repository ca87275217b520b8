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
	"fmt"

	"gvisor.dev/rvos/pkg/hostarch"
)

// AccessError is returned when a physical access falls outside the arena.
// The hart reports it as an access fault.
type AccessError struct {
	Addr hostarch.PhysAddr
	Len  int
}

// Error implements error.Error.
func (e *AccessError) Error() string {
	return fmt.Sprintf("physical access %v+%d outside memory", e.Addr, e.Len)
}

// Memory is the simulated physical memory: a byte arena covering
// [base, end).
type Memory struct {
	base hostarch.PhysAddr
	data []byte
}

// NewMemory allocates zeroed physical memory for [base, end).
//
// Preconditions: base and end are page aligned and base < end.
func NewMemory(base, end hostarch.PhysAddr) *Memory {
	if base.PageOffset() != 0 || end.PageOffset() != 0 || end <= base {
		panic(fmt.Sprintf("bad physical memory range [%v, %v)", base, end))
	}
	return &Memory{
		base: base,
		data: make([]byte, uint64(end-base)),
	}
}

// Base returns the lowest physical address.
func (m *Memory) Base() hostarch.PhysAddr {
	return m.base
}

// End returns one past the highest physical address.
func (m *Memory) End() hostarch.PhysAddr {
	return m.base + hostarch.PhysAddr(len(m.data))
}

// Contains reports whether [pa, pa+n) lies inside m.
func (m *Memory) Contains(pa hostarch.PhysAddr, n int) bool {
	return pa >= m.base && uint64(pa-m.base)+uint64(n) <= uint64(len(m.data))
}

// Frame returns the Block for a whole frame. A frame outside memory is a
// kernel bug.
func (m *Memory) Frame(ppn hostarch.PPN) Block {
	b, err := m.Block(ppn.Addr(), hostarch.PageSize)
	if err != nil {
		panic(fmt.Sprintf("frame %v: %v", ppn, err))
	}
	return b
}

// Block returns the Block for [pa, pa+n).
func (m *Memory) Block(pa hostarch.PhysAddr, n int) (Block, error) {
	if !m.Contains(pa, n) {
		return Block{}, &AccessError{Addr: pa, Len: n}
	}
	off := uint64(pa - m.base)
	return Block{data: m.data[off : off+uint64(n) : off+uint64(n)]}, nil
}

// ReadUint64 loads the little-endian word at pa.
func (m *Memory) ReadUint64(pa hostarch.PhysAddr) (uint64, error) {
	b, err := m.Block(pa, 8)
	if err != nil {
		return 0, err
	}
	return b.Uint64(0), nil
}

// WriteUint64 stores the little-endian word v at pa.
func (m *Memory) WriteUint64(pa hostarch.PhysAddr, v uint64) error {
	b, err := m.Block(pa, 8)
	if err != nil {
		return err
	}
	b.SetUint64(0, v)
	return nil
}
