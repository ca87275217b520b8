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

// Package arch describes the riscv64 register state the kernel saves and
// restores, and the fixed virtual layout shared by every address space.
package arch

import (
	"gvisor.dev/rvos/pkg/hostarch"
)

// Integer register numbers used by the kernel.
const (
	RegZero = 0
	RegRA   = 1
	RegSP   = 2
	RegA0   = 10
	RegA1   = 11
	RegA2   = 12
	RegA7   = 17
)

// LinkRegs lists the callee-saved registers s0..s11 in TaskContext order.
var LinkRegs = [12]int{8, 9, 18, 19, 20, 21, 22, 23, 24, 25, 26, 27}

// Fixed virtual layout. The trampoline is the last page of the address space
// and the trap context page sits directly below it, in every address space.
const (
	// TrampolineAddr is the virtual address of the trampoline page.
	TrampolineAddr hostarch.Addr = ^hostarch.Addr(0) - hostarch.PageSize + 1

	// TrapContextAddr is the virtual address of the trap context page.
	TrapContextAddr hostarch.Addr = TrampolineAddr - hostarch.PageSize
)

// KernelStack returns the bounds of the kernel stack for a task slot in the
// kernel address space. Stacks grow down from just below the trampoline and
// are separated from each other by one unmapped guard page.
func KernelStack(slot int, size uint64) (bottom, top hostarch.Addr) {
	top = TrampolineAddr - hostarch.Addr(uint64(slot)*(size+hostarch.PageSize))
	bottom = top - hostarch.Addr(size)
	return bottom, top
}

// SyscallArgument is an argument supplied to a syscall implementation. The
// methods used to access the arguments are named after the ***C type name*** and
// they convert to the closest Go type available. For example, Int() refers to a
// 32-bit signed integer argument represented in Go as an int32.
type SyscallArgument struct {
	// Prefer to use accessor methods instead of 'Value' directly.
	Value uintptr
}

// SyscallArguments represents the set of arguments passed to a syscall. The
// ABI passes at most three.
type SyscallArguments [3]SyscallArgument

// Pointer returns the hostarch.Addr representation of a pointer argument.
func (a SyscallArgument) Pointer() hostarch.Addr {
	return hostarch.Addr(a.Value)
}

// Int returns the int32 representation of a 32-bit signed integer argument.
func (a SyscallArgument) Int() int32 {
	return int32(a.Value)
}

// Int64 returns the int64 representation of a 64-bit signed integer argument.
func (a SyscallArgument) Int64() int64 {
	return int64(a.Value)
}

// Uint64 returns the uint64 representation of a 64-bit unsigned integer argument.
func (a SyscallArgument) Uint64() uint64 {
	return uint64(a.Value)
}

// SizeT returns the uint representation of a size_t argument.
func (a SyscallArgument) SizeT() uint {
	return uint(a.Value)
}
