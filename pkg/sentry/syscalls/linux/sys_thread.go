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


package linux

import (
	"gvisor.dev/rvos/pkg/sentry/arch"
	"gvisor.dev/rvos/pkg/sentry/kernel"
)

// maxPathLen bounds the exec path, terminator included.
const maxPathLen = 256

// Exit implements exit(2).
func Exit(t *kernel.Task, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	t.PrepareExit(args[0].Int())
	return 0, kernel.CtrlDoExit, nil
}

// SchedYield implements sched_yield(2).
func SchedYield(t *kernel.Task, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	return 0, kernel.CtrlYield, nil
}

// Getpid implements getpid(2).
func Getpid(t *kernel.Task, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	return uintptr(t.PID()), nil, nil
}

// Fork implements fork: the parent gets the child's pid, the child 0.
func Fork(t *kernel.Task, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	child, err := t.Clone()
	if err != nil {
		return 0, nil, err
	}
	return uintptr(child.PID()), nil, nil
}

// Exec implements exec. The path, a NUL-terminated string in user memory,
// names a program in the kernel's catalog.
func Exec(t *kernel.Task, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	path, err := t.CopyInString(args[0].Pointer(), maxPathLen)
	if err != nil {
		return 0, nil, err
	}
	if err := t.Exec(path); err != nil {
		return 0, nil, err
	}
	return 0, nil, nil
}

// Waitpid implements waitpid(pid, status). A pid of -1 waits for any child.
func Waitpid(t *kernel.Task, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	pid, err := t.Wait(int(args[0].Int64()), args[1].Pointer())
	if err != nil {
		return 0, nil, err
	}
	return uintptr(pid), nil, nil
}
