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

// Syscall numbers from include/uapi/asm-generic/unistd.h, as used on riscv64.
// Only the calls the kernel implements are listed.
const (
	SYS_READ         = 63
	SYS_WRITE        = 64
	SYS_EXIT         = 93
	SYS_SCHED_YIELD  = 124
	SYS_GETTIMEOFDAY = 169
	SYS_GETPID       = 172
	SYS_MUNMAP       = 215
	SYS_CLONE        = 220
	SYS_EXECVE       = 221
	SYS_MMAP         = 222
	SYS_WAIT4        = 260
)

// Standard file descriptors.
const (
	STDIN_FILENO  = 0
	STDOUT_FILENO = 1
	STDERR_FILENO = 2
)

// WaitAny asks waitpid for any child.
const WaitAny = -1

// WaitNotExited is returned by waitpid when matching children exist but none
// has exited yet.
const WaitNotExited = -2
