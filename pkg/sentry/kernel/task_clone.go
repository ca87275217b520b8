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

	"gvisor.dev/rvos/pkg/log"
)

// Clone implements fork: it creates a Ready child running a copy of t's
// address space. The child resumes at the same user pc with a0 = 0.
func (t *Task) Clone() (*Task, error) {
	k := t.k
	space, err := t.space.Fork()
	if err != nil {
		return nil, fmt.Errorf("copying address space: %w", err)
	}
	child, err := k.newTask(t.name, space, t.baseSize)
	if err != nil {
		space.Release()
		return nil, err
	}

	cx := t.TrapContext()
	cx.KernelSP = uint64(child.kernelStackTop)
	cx.SetReturn(0)
	child.SetTrapContext(&cx)

	child.parent = t
	t.children = append(t.children, child)
	child.status = TaskReady
	log.Debugf("[kernel] %s forked %s", t, child)
	return child, nil
}
