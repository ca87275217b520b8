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
	"fmt"
)

// Catalog is the set of program images the kernel knows by name. Programs
// are numbered in insertion order, the order the kernel starts them at boot.
type Catalog struct {
	names  []string
	images [][]byte
	index  map[string]int
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{index: make(map[string]int)}
}

// Add registers an image under name.
func (c *Catalog) Add(name string, data []byte) error {
	if _, ok := c.index[name]; ok {
		return fmt.Errorf("program %q already registered", name)
	}
	c.index[name] = len(c.images)
	c.names = append(c.names, name)
	c.images = append(c.images, data)
	return nil
}

// Count returns the number of registered programs.
func (c *Catalog) Count() int {
	return len(c.images)
}

// Data returns the image of program i.
//
// Preconditions: 0 <= i < c.Count().
func (c *Catalog) Data(i int) []byte {
	return c.images[i]
}

// Name returns the name of program i.
//
// Preconditions: 0 <= i < c.Count().
func (c *Catalog) Name(i int) string {
	return c.names[i]
}

// Names returns every program name in order.
func (c *Catalog) Names() []string {
	return append([]string(nil), c.names...)
}

// Lookup returns the image registered under name.
func (c *Catalog) Lookup(name string) ([]byte, bool) {
	i, ok := c.index[name]
	if !ok {
		return nil, false
	}
	return c.images[i], true
}
