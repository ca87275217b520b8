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

package arch

import (
	"encoding/binary"
	"fmt"

	"gvisor.dev/rvos/pkg/hostarch"
)

// sstatus bits.
const (
	SStatusSIE  = 1 << 1
	SStatusSPIE = 1 << 5
	SStatusSPP  = 1 << 8
	SStatusSUM  = 1 << 18
)

// TrapContextSize is the size in bytes of a saved TrapContext.
const TrapContextSize = (32 + 5) * 8

// TrapContext is the user register snapshot plus the fields the trampoline
// needs to get back into the kernel. It lives in the trap context page of
// each address space, in this exact order.
type TrapContext struct {
	// X holds the integer registers x0..x31.
	X [32]uint64

	// SStatus is the saved sstatus. SPP selects the mode sret returns to.
	SStatus uint64

	// SEPC is the user program counter to resume at.
	SEPC uint64

	// KernelSATP is the kernel page table token.
	KernelSATP uint64

	// KernelSP is the top of this task's kernel stack.
	KernelSP uint64

	// TrapHandler is the kernel address of the trap handler.
	TrapHandler uint64
}

// AppInitContext returns the context for a task that has not run yet: every
// register zero except sp, pc at entry, and sret returning to user mode.
func AppInitContext(entry, sp hostarch.Addr, kernelSATP uint64, kernelSP hostarch.Addr, trapHandler uint64) TrapContext {
	c := TrapContext{
		SStatus:     SStatusSPIE,
		SEPC:        uint64(entry),
		KernelSATP:  kernelSATP,
		KernelSP:    uint64(kernelSP),
		TrapHandler: trapHandler,
	}
	c.X[RegSP] = uint64(sp)
	return c
}

// SyscallNo returns the syscall number in a7.
func (c *TrapContext) SyscallNo() uintptr {
	return uintptr(c.X[RegA7])
}

// SyscallArgs returns a0..a2.
func (c *TrapContext) SyscallArgs() SyscallArguments {
	return SyscallArguments{
		{Value: uintptr(c.X[RegA0])},
		{Value: uintptr(c.X[RegA1])},
		{Value: uintptr(c.X[RegA2])},
	}
}

// SetReturn stores a syscall result in a0.
func (c *TrapContext) SetReturn(v uintptr) {
	c.X[RegA0] = uint64(v)
}

// Return returns the value in a0.
func (c *TrapContext) Return() uintptr {
	return uintptr(c.X[RegA0])
}

// MarshalBytes serializes c into dst.
//
// Preconditions: len(dst) >= TrapContextSize.
func (c *TrapContext) MarshalBytes(dst []byte) {
	for i, x := range c.X {
		binary.LittleEndian.PutUint64(dst[i*8:], x)
	}
	tail := []uint64{c.SStatus, c.SEPC, c.KernelSATP, c.KernelSP, c.TrapHandler}
	for i, v := range tail {
		binary.LittleEndian.PutUint64(dst[(32+i)*8:], v)
	}
}

// UnmarshalBytes is the inverse of MarshalBytes.
//
// Preconditions: len(src) >= TrapContextSize.
func (c *TrapContext) UnmarshalBytes(src []byte) {
	for i := range c.X {
		c.X[i] = binary.LittleEndian.Uint64(src[i*8:])
	}
	tail := []*uint64{&c.SStatus, &c.SEPC, &c.KernelSATP, &c.KernelSP, &c.TrapHandler}
	for i, p := range tail {
		*p = binary.LittleEndian.Uint64(src[(32+i)*8:])
	}
}

// TaskContext is the callee-saved register block swapped by a context
// switch: return address, stack pointer and s0..s11.
type TaskContext struct {
	RA uint64
	SP uint64
	S  [12]uint64
}

// ZeroInit returns an all-zero context, used as the throwaway "previous"
// context of the very first switch.
func ZeroInit() TaskContext {
	return TaskContext{}
}

// GotoTrapReturn returns a context that, once switched to, continues at the
// trap return routine on the given kernel stack.
func GotoTrapReturn(trapReturn uint64, kernelSP hostarch.Addr) TaskContext {
	return TaskContext{RA: trapReturn, SP: uint64(kernelSP)}
}

// String implements fmt.Stringer.String.
func (c TaskContext) String() string {
	return fmt.Sprintf("ra=%#x sp=%#x", c.RA, c.SP)
}
