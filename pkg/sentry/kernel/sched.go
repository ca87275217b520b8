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
	"gvisor.dev/rvos/pkg/sentry/arch"
)

// current returns the running task.
func (k *Kernel) current() *Task {
	tt := k.tasks.Borrow()
	defer k.tasks.Release()
	t := tt.slots[tt.cur]
	if t == nil || t.status != TaskRunning {
		panic(fmt.Sprintf("no running task in slot %d", tt.cur))
	}
	return t
}

// findNextTask returns the first Ready slot after the current one, wrapping
// around. The current slot is considered last.
func (tt *taskTable) findNextTask() (int, bool) {
	n := len(tt.slots)
	for i := 1; i <= n; i++ {
		j := (tt.cur + i) % n
		if t := tt.slots[j]; t != nil && t.status == TaskReady {
			return j, true
		}
	}
	return 0, false
}

// runFirstTask switches to the first Ready task from a context that is
// never resumed.
func (k *Kernel) runFirstTask() (runState, error) {
	unused := arch.ZeroInit()
	return k.switchToNext(&unused)
}

// runNextTask switches away from the current task, which has exited.
func (k *Kernel) runNextTask() (runState, error) {
	t := k.lastRunning()
	return k.switchToNext(&t.ctx)
}

// suspendCurrentAndRunNext marks the current task Ready and switches to the
// next Ready task, which may be the current one.
func (k *Kernel) suspendCurrentAndRunNext() (runState, error) {
	t := k.current()
	t.status = TaskReady
	return k.switchToNext(&t.ctx)
}

// lastRunning returns the task in the current slot whatever its state.
func (k *Kernel) lastRunning() *Task {
	tt := k.tasks.Borrow()
	defer k.tasks.Release()
	return tt.slots[tt.cur]
}

// switchToNext saves the kernel context in from and resumes the next Ready
// task. With no Ready task left, it shuts the machine down and returns a nil
// state.
func (k *Kernel) switchToNext(from *arch.TaskContext) (runState, error) {
	tt := k.tasks.Borrow()
	next, ok := tt.findNextTask()
	detached := tt.detached
	tt.detached = nil
	var t *Task
	if ok {
		t = tt.slots[next]
		t.status = TaskRunning
		tt.cur = next
	}
	k.tasks.Release()

	if !ok {
		for _, d := range detached {
			k.reap(d)
		}
		log.Warningf("[kernel] All applications completed!")
		k.sbi.Shutdown(false)
		return nil, nil
	}
	log.Debugf("[kernel] switching to %s", t)
	k.contextSwitch(from, &t.ctx)
	// The previous task's kernel stack is no longer in use.
	for _, d := range detached {
		k.reap(d)
	}
	return (*runSwitched)(nil), nil
}

// contextSwitch saves the hart's callee-saved registers, return address and
// stack pointer into from, and loads them from to. The return address saved
// in from is the switch return entry.
func (k *Kernel) contextSwitch(from, to *arch.TaskContext) {
	h := k.hart
	h.WriteReg(arch.RegRA, k.image.SwitchReturn)
	from.RA = h.ReadReg(arch.RegRA)
	from.SP = h.ReadReg(arch.RegSP)
	for i, r := range arch.LinkRegs {
		from.S[i] = h.ReadReg(r)
	}
	h.WriteReg(arch.RegRA, to.RA)
	h.WriteReg(arch.RegSP, to.SP)
	for i, r := range arch.LinkRegs {
		h.WriteReg(r, to.S[i])
	}
	h.SetPC(to.RA)
}
