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

package sync

import (
	"fmt"
)

// Cell holds a value that at most one caller may borrow at a time.
//
// Cell is not a mutex: Borrow never blocks. A Borrow while another borrow is
// outstanding panics.
//
// The zero value is an unborrowed cell holding the zero T.
type Cell[T any] struct {
	name     string
	value    T
	borrowed bool
}

// NewCell returns a Cell holding v. name appears in reentrancy panics.
func NewCell[T any](name string, v T) *Cell[T] {
	return &Cell[T]{name: name, value: v}
}

// Borrow takes the exclusive borrow and returns the value. The caller must
// call Release when done.
func (c *Cell[T]) Borrow() *T {
	if c.borrowed {
		panic(fmt.Sprintf("sync.Cell %q: already borrowed", c.name))
	}
	c.borrowed = true
	return &c.value
}

// Release ends the borrow taken by Borrow.
func (c *Cell[T]) Release() {
	if !c.borrowed {
		panic(fmt.Sprintf("sync.Cell %q: release without borrow", c.name))
	}
	c.borrowed = false
}

// With runs fn with the value borrowed. The borrow is released even if fn
// panics, so a recovered panic does not leave the cell poisoned.
func (c *Cell[T]) With(fn func(*T)) {
	v := c.Borrow()
	defer c.Release()
	fn(v)
}

// Borrowed reports whether a borrow is outstanding.
func (c *Cell[T]) Borrowed() bool {
	return c.borrowed
}
