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
	"gvisor.dev/rvos/pkg/abi/linux"
	"gvisor.dev/rvos/pkg/errors/linuxerr"
	"gvisor.dev/rvos/pkg/hostarch"
	"gvisor.dev/rvos/pkg/log"
)

// PrepareExit records the exit code of a task about to exit through
// CtrlDoExit.
func (t *Task) PrepareExit(code int32) {
	t.exitCode = code
}

// exitCurrent moves the current task to Exited: its address space is
// released and its children become orphans. The kernel stack and the slot
// stay until the task is reaped, by its parent's waitpid or, for a task
// without a parent, right after the next context switch.
func (k *Kernel) exitCurrent(code int32) {
	t := k.current()
	t.status = TaskExited
	t.exitCode = code
	log.Infof("[kernel] Application exited with code %d", code)

	t.space.Release()
	t.space = nil

	tt := k.tasks.Borrow()
	defer k.tasks.Release()
	for _, c := range t.children {
		c.parent = nil
		if c.status == TaskExited {
			tt.detached = append(tt.detached, c)
		}
	}
	t.children = nil
	tt.exited = append(tt.exited, t.info())
	if t.parent == nil {
		tt.detached = append(tt.detached, t)
	}
}

// Wait implements waitpid: it looks for an exited child of t with the given
// pid, or any child for linux.WaitAny. If one is found its exit code is
// written to status, unless status is zero, and it is reaped.
//
// The result is the child's pid, -1 if t has no matching child, or
// linux.WaitNotExited if no matching child has exited yet. A fault writing
// status leaves the child in place.
func (t *Task) Wait(pid int, status hostarch.Addr) (int, error) {
	var (
		found  bool
		zombie *Task
	)
	for _, c := range t.children {
		if pid != linux.WaitAny && PID(pid) != c.pid {
			continue
		}
		found = true
		if c.status == TaskExited {
			zombie = c
			break
		}
	}
	if !found {
		return 0, linuxerr.ECHILD
	}
	if zombie == nil {
		return linux.WaitNotExited, nil
	}
	if status != 0 {
		if _, err := t.CopyOutUint32(status, uint32(zombie.exitCode)); err != nil {
			return 0, err
		}
	}
	t.k.reap(zombie)
	return int(zombie.pid), nil
}
