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


// Package linux provides the syscall table of the kernel. Numbers follow the
// RISC-V Linux ABI; semantics are those of the teaching kernel, which are
// much narrower than Linux.
package linux

import (
	"gvisor.dev/rvos/pkg/abi/linux"
	"gvisor.dev/rvos/pkg/sentry/kernel"
)

// RISCV64 is the table of system calls served to user programs, keyed by
// their riscv64 Linux numbers.
var RISCV64 = &kernel.SyscallTable{
	Table: map[uintptr]kernel.Syscall{
		linux.SYS_READ:         {Name: "read", Fn: Read, Note: "fd 0 only; reads console input up to a newline"},
		linux.SYS_WRITE:        {Name: "write", Fn: Write, Note: "fd 1 only"},
		linux.SYS_EXIT:         {Name: "exit", Fn: Exit},
		linux.SYS_SCHED_YIELD:  {Name: "yield", Fn: SchedYield},
		linux.SYS_GETTIMEOFDAY: {Name: "get_time", Fn: GetTime, Note: "timezone is ignored"},
		linux.SYS_GETPID:       {Name: "getpid", Fn: Getpid},
		linux.SYS_MUNMAP:       {Name: "munmap", Fn: Munmap, Note: "only whole areas created by mmap"},
		linux.SYS_CLONE:        {Name: "fork", Fn: Fork},
		linux.SYS_EXECVE:       {Name: "exec", Fn: Exec, Note: "path names a built-in program"},
		linux.SYS_MMAP:         {Name: "mmap", Fn: Mmap, Note: "anonymous, fixed address only"},
		linux.SYS_WAIT4:        {Name: "waitpid", Fn: Waitpid, Note: "-2 while no matching child has exited"},
	},
}
