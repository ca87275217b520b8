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

package mm

import (
	"gvisor.dev/rvos/pkg/cleanup"
	"gvisor.dev/rvos/pkg/safemem"
)

// Fork returns a copy of as: every area with the same range, permissions and
// droppable flag. Framed areas get new frames holding a copy of the parent's
// contents. Identical and Fixed areas map the same frames.
func (as *AddressSpace) Fork() (*AddressSpace, error) {
	child, err := New(as.alloc)
	if err != nil {
		return nil, err
	}
	cu := cleanup.Make(child.Release)
	defer cu.Clean()

	var ferr error
	as.areas.Ascend(func(a *Area) bool {
		c := &Area{
			vpns:    a.vpns,
			mapType: a.mapType,
			perm:    a.perm,
			base:    a.base,
		}
		if ferr = child.PushArea(c, a.droppable, nil); ferr != nil {
			return false
		}
		if a.mapType == Framed {
			for vpn, f := range a.frames {
				safemem.Copy(c.frames[vpn].Block(), f.Block())
			}
		}
		return true
	})
	if ferr != nil {
		return nil, ferr
	}
	cu.Release()
	return child, nil
}
