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


package kernel

import (
	"fmt"

	"gvisor.dev/rvos/pkg/errors/linuxerr"
	"gvisor.dev/rvos/pkg/log"
	"gvisor.dev/rvos/pkg/sentry/arch"
)

// Exec replaces t's program with the catalog program name. On failure t is
// unchanged.
func (t *Task) Exec(name string) error {
	k := t.k
	data, ok := k.catalog.Lookup(name)
	if !ok {
		return fmt.Errorf("exec %q: %w", name, linuxerr.ENOENT)
	}
	img, err := k.loadProgram(data)
	if err != nil {
		return fmt.Errorf("exec %q: %w", name, err)
	}
	trapCx, ok := img.Space.TrapContextFrame()
	if !ok {
		panic(fmt.Sprintf("address space for %q has no trap context page", name))
	}

	old := t.space
	t.space = img.Space
	t.trapCx = trapCx
	t.baseSize = img.StackTop
	t.name = name
	old.Release()

	cx := arch.AppInitContext(img.Entry, img.StackTop, k.kernelToken, t.kernelStackTop, k.image.TrapHandler)
	t.SetTrapContext(&cx)
	log.Debugf("[kernel] %s: exec, entry %v", t, img.Entry)
	return nil
}
