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
	"gvisor.dev/rvos/pkg/hostarch"
	"gvisor.dev/rvos/pkg/log"
	"gvisor.dev/rvos/pkg/sentry/arch"
	"gvisor.dev/rvos/pkg/sentry/mm"
)

// loadProgram builds an address space for the ELF image data.
func (k *Kernel) loadProgram(data []byte) (mm.Image, error) {
	return mm.FromELF(k.alloc, data, mm.UserLayout{
		Trampoline: k.image.Layout.Trampoline,
		StackSize:  k.userStackSize,
	})
}

// StartProgram creates a Ready task running the catalog program name.
func (k *Kernel) StartProgram(name string) (*Task, error) {
	data, ok := k.catalog.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("program %q: %w", name, linuxerr.ENOENT)
	}
	return k.StartELF(name, data)
}

// StartELF creates a Ready task running the ELF image data. The task has no
// parent.
func (k *Kernel) StartELF(name string, data []byte) (*Task, error) {
	img, err := k.loadProgram(data)
	if err != nil {
		return nil, fmt.Errorf("loading %q: %w", name, err)
	}
	t, err := k.newTask(name, img.Space, img.StackTop)
	if err != nil {
		img.Space.Release()
		return nil, err
	}
	cx := arch.AppInitContext(img.Entry, img.StackTop, k.kernelToken, t.kernelStackTop, k.image.TrapHandler)
	t.SetTrapContext(&cx)
	t.status = TaskReady
	log.Infof("[kernel] %s: entry %v, user stack %v", t, img.Entry, img.StackTop)
	return t, nil
}

// newTask allocates a slot, a pid and a kernel stack for a task owning
// space. The task is left UnInit with its kernel context set to start at
// trap_return. On failure space is untouched.
func (k *Kernel) newTask(name string, space *mm.AddressSpace, stackTop hostarch.Addr) (*Task, error) {
	trapCx, ok := space.TrapContextFrame()
	if !ok {
		panic(fmt.Sprintf("address space for %q has no trap context page", name))
	}

	tt := k.tasks.Borrow()
	slot := -1
	for i, s := range tt.slots {
		if s == nil {
			slot = i
			break
		}
	}
	if slot < 0 {
		k.tasks.Release()
		log.Warningf("[kernel] task table full, cannot start %q", name)
		return nil, linuxerr.EAGAIN
	}
	t := &Task{
		k:        k,
		pid:      k.nextPID,
		name:     name,
		slot:     slot,
		status:   TaskUnInit,
		space:    space,
		trapCx:   trapCx,
		baseSize: stackTop,
	}
	tt.slots[slot] = t
	k.nextPID++
	k.tasks.Release()

	t.kernelStackBottom, t.kernelStackTop = arch.KernelStack(slot, k.kernelStackSize)
	err := k.withKernelSpace(func(ks *mm.AddressSpace) error {
		return ks.PushArea(mm.NewArea(t.kernelStackBottom, t.kernelStackTop, mm.Framed, mm.PermR|mm.PermW), true, nil)
	})
	if err != nil {
		k.tasks.With(func(tt *taskTable) { tt.slots[slot] = nil })
		return nil, fmt.Errorf("mapping kernel stack for %q: %w", name, err)
	}
	t.ctx = arch.GotoTrapReturn(k.image.TrapReturn, t.kernelStackTop)
	return t, nil
}

// reap releases what is left of an exited task: its kernel stack and its
// slot.
func (k *Kernel) reap(t *Task) {
	if t.status != TaskExited {
		panic(fmt.Sprintf("reaping %s in state %v", t, t.status))
	}
	r := hostarch.RangeOf(t.kernelStackBottom, t.kernelStackTop)
	if err := k.withKernelSpace(func(ks *mm.AddressSpace) error { return ks.DropArea(r) }); err != nil {
		panic(fmt.Sprintf("dropping kernel stack of %s: %v", t, err))
	}
	k.tasks.With(func(tt *taskTable) {
		if tt.slots[t.slot] != t {
			panic(fmt.Sprintf("%s is not in slot %d", t, t.slot))
		}
		tt.slots[t.slot] = nil
	})
	if p := t.parent; p != nil {
		for i, c := range p.children {
			if c == t {
				p.children = append(p.children[:i], p.children[i+1:]...)
				break
			}
		}
		t.parent = nil
	}
	log.Debugf("[kernel] reaped %s", t)
}
