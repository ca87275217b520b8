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


// Package rv64 simulates a single RV64IM hart with user and supervisor
// modes, SV39 address translation, a time counter with a supervisor timer
// interrupt, and the small firmware interface the kernel needs.
//
// The kernel itself is Go code. It drives the hart by setting registers and
// the program counter, then calling Run, which interprets instructions until
// the hart reaches one of the registered kernel entry points, traps while in
// supervisor mode, or exhausts its budget. Only user programs and the trap
// trampoline execute as RISC-V instructions.
package rv64

import (
	"fmt"
)

// Privilege is a hart privilege mode.
type Privilege uint8

// Privilege modes. The numbers match the encoding of sstatus.SPP and of the
// privilege field of CSR numbers.
const (
	User       Privilege = 0
	Supervisor Privilege = 1
)

// String implements fmt.Stringer.String.
func (p Privilege) String() string {
	switch p {
	case User:
		return "U"
	case Supervisor:
		return "S"
	default:
		return fmt.Sprintf("Privilege(%d)", uint8(p))
	}
}

// Cause is an scause value.
type Cause uint64

// InterruptBit is set in scause for interrupts.
const InterruptBit Cause = 1 << 63

// Trap causes.
const (
	CauseInstructionMisaligned  Cause = 0
	CauseInstructionAccessFault Cause = 1
	CauseIllegalInstruction     Cause = 2
	CauseBreakpoint             Cause = 3
	CauseLoadMisaligned         Cause = 4
	CauseLoadAccessFault        Cause = 5
	CauseStoreMisaligned        Cause = 6
	CauseStoreAccessFault       Cause = 7
	CauseUserEcall              Cause = 8
	CauseSupervisorEcall        Cause = 9
	CauseInstructionPageFault   Cause = 12
	CauseLoadPageFault          Cause = 13
	CauseStorePageFault         Cause = 15

	CauseSupervisorTimer = InterruptBit | 5
)

var causeNames = map[Cause]string{
	CauseInstructionMisaligned:  "InstructionMisaligned",
	CauseInstructionAccessFault: "InstructionFault",
	CauseIllegalInstruction:     "IllegalInstruction",
	CauseBreakpoint:             "Breakpoint",
	CauseLoadMisaligned:         "LoadMisaligned",
	CauseLoadAccessFault:        "LoadFault",
	CauseStoreMisaligned:        "StoreMisaligned",
	CauseStoreAccessFault:       "StoreFault",
	CauseUserEcall:              "UserEnvCall",
	CauseSupervisorEcall:        "SupervisorEnvCall",
	CauseInstructionPageFault:   "InstructionPageFault",
	CauseLoadPageFault:          "LoadPageFault",
	CauseStorePageFault:         "StorePageFault",
	CauseSupervisorTimer:        "SupervisorTimer",
}

// IsInterrupt reports whether c is an interrupt rather than an exception.
func (c Cause) IsInterrupt() bool {
	return c&InterruptBit != 0
}

// Code returns the cause number without the interrupt bit.
func (c Cause) Code() uint64 {
	return uint64(c &^ InterruptBit)
}

// String implements fmt.Stringer.String.
func (c Cause) String() string {
	if n, ok := causeNames[c]; ok {
		return n
	}
	if c.IsInterrupt() {
		return fmt.Sprintf("Interrupt(%d)", c.Code())
	}
	return fmt.Sprintf("Exception(%d)", c.Code())
}

// Exception is a synchronous trap raised while executing an instruction.
type Exception struct {
	Cause Cause
	Tval  uint64
}

// Error implements error.Error.
func (e *Exception) Error() string {
	return fmt.Sprintf("%v, stval = %#x", e.Cause, e.Tval)
}

func exception(cause Cause, tval uint64) *Exception {
	return &Exception{Cause: cause, Tval: tval}
}
