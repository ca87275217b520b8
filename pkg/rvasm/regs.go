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

// Package rvasm is a small RV64IM assembler and ELF64 linker.
//
// It exists so user programs can be written in Go test code and in the
// built-in program set, without a cross toolchain:
//
//	p := rvasm.New()
//	p.Label("_start")
//	p.LI(rvasm.A7, linux.SYS_EXIT)
//	p.ECALL()
//	img, err := p.Link(rvasm.LinkOptions{})
package rvasm

import "fmt"

// Reg is an integer register number.
type Reg uint8

// ABI register names.
const (
	Zero Reg = iota
	RA
	SP
	GP
	TP
	T0
	T1
	T2
	S0
	S1
	A0
	A1
	A2
	A3
	A4
	A5
	A6
	A7
	S2
	S3
	S4
	S5
	S6
	S7
	S8
	S9
	S10
	S11
	T3
	T4
	T5
	T6
)

var regNames = [32]string{
	"zero", "ra", "sp", "gp", "tp", "t0", "t1", "t2",
	"s0", "s1", "a0", "a1", "a2", "a3", "a4", "a5",
	"a6", "a7", "s2", "s3", "s4", "s5", "s6", "s7",
	"s8", "s9", "s10", "s11", "t3", "t4", "t5", "t6",
}

// String implements fmt.Stringer.String.
func (r Reg) String() string {
	if int(r) < len(regNames) {
		return regNames[r]
	}
	return fmt.Sprintf("x%d", uint8(r))
}

// CSR numbers the kernel and its tests refer to.
const (
	CSRSStatus  = 0x100
	CSRSIE      = 0x104
	CSRSTVec    = 0x105
	CSRSScratch = 0x140
	CSRSEPC     = 0x141
	CSRSCause   = 0x142
	CSRSTVal    = 0x143
	CSRSIP      = 0x144
	CSRSATP     = 0x180
	CSRTime     = 0xc01
)
