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

	"gvisor.dev/rvos/pkg/hostarch"
	"gvisor.dev/rvos/pkg/sentry/arch"
	"gvisor.dev/rvos/pkg/sentry/mm"
)

// TaskStatus is the scheduling state of a task.
type TaskStatus int

// Task states. The only transitions are UnInit to Ready, Ready to Running,
// Running to Ready and Running to Exited.
const (
	TaskUnInit TaskStatus = iota
	TaskReady
	TaskRunning
	TaskExited
)

// String implements fmt.Stringer.String.
func (s TaskStatus) String() string {
	switch s {
	case TaskUnInit:
		return "UnInit"
	case TaskReady:
		return "Ready"
	case TaskRunning:
		return "Running"
	case TaskExited:
		return "Exited"
	default:
		return fmt.Sprintf("TaskStatus(%d)", int(s))
	}
}

// PID is a process identifier.
type PID int

// Task is one process: its address space, its saved kernel context and its
// place in the process tree.
//
// Tasks are only touched by the kernel loop, which owns the hart.
type Task struct {
	k *Kernel

	pid  PID
	name string

	// slot is the index in the task table. It also selects the kernel
	// stack.
	slot int

	status TaskStatus

	// ctx is the saved kernel context, valid while the task is not
	// running.
	ctx arch.TaskContext

	// space is released when the task exits.
	space *mm.AddressSpace

	// trapCx is the frame backing arch.TrapContextAddr in space.
	trapCx hostarch.PPN

	// baseSize is the initial user stack top.
	baseSize hostarch.Addr

	kernelStackBottom hostarch.Addr
	kernelStackTop    hostarch.Addr

	parent   *Task
	children []*Task

	exitCode int32
}

// PID returns the task's process id.
func (t *Task) PID() PID {
	return t.pid
}

// Name returns the name of the program the task is running.
func (t *Task) Name() string {
	return t.name
}

// Status returns the scheduling state.
func (t *Task) Status() TaskStatus {
	return t.status
}

// ExitCode returns the exit code. It is meaningful once the task exited.
func (t *Task) ExitCode() int32 {
	return t.exitCode
}

// Parent returns the parent task, or nil for tasks started by the kernel and
// orphans.
func (t *Task) Parent() *Task {
	return t.parent
}

// Kernel returns the kernel the task belongs to.
func (t *Task) Kernel() *Kernel {
	return t.k
}

// MemoryManager returns the task's address space. It is nil once the task
// has exited.
func (t *Task) MemoryManager() *mm.AddressSpace {
	return t.space
}

// KernelStack returns the bounds of the task's kernel stack.
func (t *Task) KernelStack() (bottom, top hostarch.Addr) {
	return t.kernelStackBottom, t.kernelStackTop
}

// StackTop returns the user stack top the task was started with.
func (t *Task) StackTop() hostarch.Addr {
	return t.baseSize
}

// TrapContext returns a copy of the saved user registers.
func (t *Task) TrapContext() arch.TrapContext {
	var buf [arch.TrapContextSize]byte
	t.k.mem.Frame(t.trapCx).CopyOut(buf[:])
	var cx arch.TrapContext
	cx.UnmarshalBytes(buf[:])
	return cx
}

// SetTrapContext stores cx into the task's trap context page.
func (t *Task) SetTrapContext(cx *arch.TrapContext) {
	var buf [arch.TrapContextSize]byte
	cx.MarshalBytes(buf[:])
	t.k.mem.Frame(t.trapCx).CopyIn(buf[:])
}

// String implements fmt.Stringer.String.
func (t *Task) String() string {
	return fmt.Sprintf("task %d (%s)", t.pid, t.name)
}

// TaskInfo is a snapshot of one task for reporting. Parent is -1 for a task
// without a parent.
type TaskInfo struct {
	PID      PID        `json:"pid" yaml:"pid"`
	Parent   PID        `json:"parent" yaml:"parent"`
	Name     string     `json:"name" yaml:"name"`
	Status   TaskStatus `json:"-" yaml:"-"`
	State    string     `json:"status" yaml:"status"`
	ExitCode int32      `json:"exit_code" yaml:"exit_code"`
}

func (t *Task) info() TaskInfo {
	i := TaskInfo{
		PID:      t.pid,
		Name:     t.name,
		Status:   t.status,
		State:    t.status.String(),
		ExitCode: t.exitCode,
		Parent:   -1,
	}
	if t.parent != nil {
		i.Parent = t.parent.pid
	}
	return i
}
