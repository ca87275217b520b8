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

package rvasm

// Major opcodes.
const (
	opLoad    = 0x03
	opMiscMem = 0x0f
	opImm     = 0x13
	opAUIPC   = 0x17
	opImm32   = 0x1b
	opStore   = 0x23
	opReg     = 0x33
	opLUI     = 0x37
	opReg32   = 0x3b
	opBranch  = 0x63
	opJALR    = 0x67
	opJAL     = 0x6f
	opSystem  = 0x73
)

// Fixed SYSTEM encodings.
const (
	insnECALL  = 0x00000073
	insnEBREAK = 0x00100073
	insnSRET   = 0x10200073
	insnWFI    = 0x10500073

	insnSFENCEVMA = 0x12000073
)

func encodeR(op, f3, f7 uint32, rd, rs1, rs2 Reg) uint32 {
	return f7<<25 | uint32(rs2)<<20 | uint32(rs1)<<15 | f3<<12 | uint32(rd)<<7 | op
}

func encodeI(op, f3 uint32, rd, rs1 Reg, imm int64) uint32 {
	return uint32(imm&0xfff)<<20 | uint32(rs1)<<15 | f3<<12 | uint32(rd)<<7 | op
}

func encodeS(op, f3 uint32, rs1, rs2 Reg, imm int64) uint32 {
	u := uint32(imm)
	return (u>>5&0x7f)<<25 | uint32(rs2)<<20 | uint32(rs1)<<15 | f3<<12 | (u&0x1f)<<7 | op
}

func encodeB(f3 uint32, rs1, rs2 Reg, off int64) uint32 {
	u := uint32(off)
	return (u>>12&1)<<31 | (u>>5&0x3f)<<25 | uint32(rs2)<<20 | uint32(rs1)<<15 |
		f3<<12 | (u>>1&0xf)<<8 | (u>>11&1)<<7 | opBranch
}

func encodeU(op uint32, rd Reg, imm20 int64) uint32 {
	return uint32(imm20&0xfffff)<<12 | uint32(rd)<<7 | op
}

func encodeJ(rd Reg, off int64) uint32 {
	u := uint32(off)
	return (u>>20&1)<<31 | (u>>1&0x3ff)<<21 | (u>>11&1)<<20 | (u>>12&0xff)<<12 | uint32(rd)<<7 | opJAL
}

func fitsSigned(v int64, bits uint) bool {
	lim := int64(1) << (bits - 1)
	return v >= -lim && v < lim
}

// signExtend12 returns the low 12 bits of v sign extended.
func signExtend12(v int64) int64 {
	return v << 52 >> 52
}

// splitPCRel splits a pc-relative offset into auipc and addi immediates.
func splitPCRel(off int64) (hi, lo int64) {
	lo = signExtend12(off)
	hi = (off - lo) >> 12
	return hi, lo
}
