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


package rv64

import (
	"math"
	"math/bits"
)

// Major opcodes.
const (
	opLoad   = 0x03
	opMisc   = 0x0f
	opImm    = 0x13
	opAUIPC  = 0x17
	opImm32  = 0x1b
	opStore  = 0x23
	opReg    = 0x33
	opLUI    = 0x37
	opReg32  = 0x3b
	opBranch = 0x63
	opJALR   = 0x67
	opJAL    = 0x6f
	opSystem = 0x73
)

// System instructions with no operands.
const (
	insnECALL  = 0x00000073
	insnEBREAK = 0x00100073
	insnSRET   = 0x10200073
	insnWFI    = 0x10500073

	funct7SFenceVMA = 0x09
)

func rd(insn uint32) int        { return int(insn>>7) & 0x1f }
func rs1(insn uint32) int       { return int(insn>>15) & 0x1f }
func rs2(insn uint32) int       { return int(insn>>20) & 0x1f }
func funct3(insn uint32) uint32 { return (insn >> 12) & 7 }
func funct7(insn uint32) uint32 { return insn >> 25 }

func immI(insn uint32) uint64 {
	return uint64(int64(int32(insn)) >> 20)
}

func immS(insn uint32) uint64 {
	return uint64(int64(int32(insn&0xfe000000))>>20) | uint64((insn>>7)&0x1f)
}

func immB(insn uint32) uint64 {
	v := int64(int32(insn&0x80000000)) >> 19
	v |= int64((insn>>7)&1) << 11
	v |= int64((insn>>25)&0x3f) << 5
	v |= int64((insn>>8)&0xf) << 1
	return uint64(v)
}

func immU(insn uint32) uint64 {
	return uint64(int64(int32(insn & 0xfffff000)))
}

func immJ(insn uint32) uint64 {
	v := int64(int32(insn&0x80000000)) >> 11
	v |= int64(insn & 0xff000)
	v |= int64((insn>>20)&1) << 11
	v |= int64((insn>>21)&0x3ff) << 1
	return uint64(v)
}

func illegalInsn(insn uint32) *Exception {
	return exception(CauseIllegalInstruction, uint64(insn))
}

func sext32(v uint64) uint64 {
	return uint64(int64(int32(v)))
}

// step executes one instruction at pc.
func (h *Hart) step() *Exception {
	insn, exc := h.fetch(h.pc)
	if exc != nil {
		return exc
	}
	next := h.pc + 4

	switch insn & 0x7f {
	case opLUI:
		h.WriteReg(rd(insn), immU(insn))

	case opAUIPC:
		h.WriteReg(rd(insn), h.pc+immU(insn))

	case opJAL:
		target := h.pc + immJ(insn)
		if target&3 != 0 {
			return exception(CauseInstructionMisaligned, target)
		}
		h.WriteReg(rd(insn), next)
		next = target

	case opJALR:
		if funct3(insn) != 0 {
			return illegalInsn(insn)
		}
		target := (h.ReadReg(rs1(insn)) + immI(insn)) &^ 1
		if target&3 != 0 {
			return exception(CauseInstructionMisaligned, target)
		}
		h.WriteReg(rd(insn), next)
		next = target

	case opBranch:
		a, b := h.ReadReg(rs1(insn)), h.ReadReg(rs2(insn))
		var taken bool
		switch funct3(insn) {
		case 0:
			taken = a == b
		case 1:
			taken = a != b
		case 4:
			taken = int64(a) < int64(b)
		case 5:
			taken = int64(a) >= int64(b)
		case 6:
			taken = a < b
		case 7:
			taken = a >= b
		default:
			return illegalInsn(insn)
		}
		if taken {
			target := h.pc + immB(insn)
			if target&3 != 0 {
				return exception(CauseInstructionMisaligned, target)
			}
			next = target
		}

	case opLoad:
		addr := h.ReadReg(rs1(insn)) + immI(insn)
		var (
			size   int
			signed bool
		)
		switch funct3(insn) {
		case 0:
			size, signed = 1, true
		case 1:
			size, signed = 2, true
		case 2:
			size, signed = 4, true
		case 3:
			size = 8
		case 4:
			size = 1
		case 5:
			size = 2
		case 6:
			size = 4
		default:
			return illegalInsn(insn)
		}
		v, exc := h.load(addr, size, accessLoad)
		if exc != nil {
			return exc
		}
		if signed {
			shift := 64 - 8*size
			v = uint64(int64(v<<shift) >> shift)
		}
		h.WriteReg(rd(insn), v)

	case opStore:
		if funct3(insn) > 3 {
			return illegalInsn(insn)
		}
		addr := h.ReadReg(rs1(insn)) + immS(insn)
		if exc := h.store(addr, 1<<funct3(insn), h.ReadReg(rs2(insn))); exc != nil {
			return exc
		}

	case opImm:
		v, ok := aluImm(insn, h.ReadReg(rs1(insn)))
		if !ok {
			return illegalInsn(insn)
		}
		h.WriteReg(rd(insn), v)

	case opImm32:
		v, ok := aluImm32(insn, h.ReadReg(rs1(insn)))
		if !ok {
			return illegalInsn(insn)
		}
		h.WriteReg(rd(insn), v)

	case opReg:
		v, ok := alu(insn, h.ReadReg(rs1(insn)), h.ReadReg(rs2(insn)))
		if !ok {
			return illegalInsn(insn)
		}
		h.WriteReg(rd(insn), v)

	case opReg32:
		v, ok := alu32(insn, h.ReadReg(rs1(insn)), h.ReadReg(rs2(insn)))
		if !ok {
			return illegalInsn(insn)
		}
		h.WriteReg(rd(insn), v)

	case opMisc:
		// fence and fence.i: the hart has no caches to order.
		if f := funct3(insn); f != 0 && f != 1 {
			return illegalInsn(insn)
		}

	case opSystem:
		if funct3(insn) == 0 {
			return h.system(insn)
		}
		if exc := h.csrInsn(insn); exc != nil {
			return exc
		}

	default:
		return illegalInsn(insn)
	}

	h.pc = next
	return nil
}

// system executes ecall, ebreak, sret, wfi and sfence.vma.
func (h *Hart) system(insn uint32) *Exception {
	switch {
	case insn == insnECALL:
		if h.priv == User {
			return exception(CauseUserEcall, 0)
		}
		return exception(CauseSupervisorEcall, 0)
	case insn == insnEBREAK:
		return exception(CauseBreakpoint, h.pc)
	case h.priv == User:
		return illegalInsn(insn)
	case insn == insnSRET:
		h.sret()
		return nil
	case insn == insnWFI:
		h.pc += 4
		return nil
	case funct7(insn) == funct7SFenceVMA && rd(insn) == 0:
		h.mmu.flush()
		h.pc += 4
		return nil
	}
	return illegalInsn(insn)
}

// csrInsn executes the Zicsr instructions.
func (h *Hart) csrInsn(insn uint32) *Exception {
	csr := insn >> 20
	f3 := funct3(insn)
	if f3 == 4 {
		return illegalInsn(insn)
	}
	src := h.ReadReg(rs1(insn))
	if f3 >= 5 {
		src = uint64(rs1(insn))
	}
	// csrrs and csrrc with a zero source do not write.
	write := f3&3 == 1 || rs1(insn) != 0
	read := f3&3 != 1 || rd(insn) != 0

	if csrPrivilege(csr) > h.priv || (write && csrReadOnly(csr)) {
		return illegalInsn(insn)
	}
	if csr >= CSRCycle && csr <= CSRInstret && !h.counterAllowed(csr) {
		return illegalInsn(insn)
	}
	old, ok := h.readCSR(csr)
	if !ok {
		return illegalInsn(insn)
	}
	if write {
		v := src
		switch f3 & 3 {
		case 2:
			v = old | src
		case 3:
			v = old &^ src
		}
		h.writeCSR(csr, v)
	}
	if read {
		h.WriteReg(rd(insn), old)
	}
	return nil
}

func aluImm(insn uint32, a uint64) (uint64, bool) {
	imm := immI(insn)
	shamt := uint(insn>>20) & 0x3f
	switch funct3(insn) {
	case 0:
		return a + imm, true
	case 1:
		if insn>>26 != 0 {
			return 0, false
		}
		return a << shamt, true
	case 2:
		return b2u(int64(a) < int64(imm)), true
	case 3:
		return b2u(a < imm), true
	case 4:
		return a ^ imm, true
	case 5:
		switch insn >> 26 {
		case 0:
			return a >> shamt, true
		case 0x10:
			return uint64(int64(a) >> shamt), true
		}
		return 0, false
	case 6:
		return a | imm, true
	default:
		return a & imm, true
	}
}

func aluImm32(insn uint32, a uint64) (uint64, bool) {
	shamt := uint(insn>>20) & 0x1f
	switch funct3(insn) {
	case 0:
		return sext32(a + immI(insn)), true
	case 1:
		if funct7(insn) != 0 {
			return 0, false
		}
		return sext32(a << shamt), true
	case 5:
		switch funct7(insn) {
		case 0:
			return sext32(uint64(uint32(a) >> shamt)), true
		case 0x20:
			return uint64(int64(int32(a) >> shamt)), true
		}
	}
	return 0, false
}

func alu(insn uint32, a, b uint64) (uint64, bool) {
	f3 := funct3(insn)
	switch funct7(insn) {
	case 0:
		switch f3 {
		case 0:
			return a + b, true
		case 1:
			return a << (b & 0x3f), true
		case 2:
			return b2u(int64(a) < int64(b)), true
		case 3:
			return b2u(a < b), true
		case 4:
			return a ^ b, true
		case 5:
			return a >> (b & 0x3f), true
		case 6:
			return a | b, true
		default:
			return a & b, true
		}
	case 0x20:
		switch f3 {
		case 0:
			return a - b, true
		case 5:
			return uint64(int64(a) >> (b & 0x3f)), true
		}
	case 1:
		return mulDiv(f3, a, b), true
	}
	return 0, false
}

func alu32(insn uint32, a, b uint64) (uint64, bool) {
	f3 := funct3(insn)
	shamt := b & 0x1f
	switch funct7(insn) {
	case 0:
		switch f3 {
		case 0:
			return sext32(a + b), true
		case 1:
			return sext32(a << shamt), true
		case 5:
			return sext32(uint64(uint32(a) >> shamt)), true
		}
	case 0x20:
		switch f3 {
		case 0:
			return sext32(a - b), true
		case 5:
			return uint64(int64(int32(a) >> shamt)), true
		}
	case 1:
		return mulDiv32(f3, int32(a), int32(b))
	}
	return 0, false
}

// mulDiv implements the M extension on 64-bit operands. Division by zero
// and signed overflow produce the results the ISA defines rather than
// trapping.
func mulDiv(f3 uint32, a, b uint64) uint64 {
	switch f3 {
	case 0:
		return a * b
	case 1:
		hi, _ := bits.Mul64(a, b)
		if int64(a) < 0 {
			hi -= b
		}
		if int64(b) < 0 {
			hi -= a
		}
		return hi
	case 2:
		hi, _ := bits.Mul64(a, b)
		if int64(a) < 0 {
			hi -= b
		}
		return hi
	case 3:
		hi, _ := bits.Mul64(a, b)
		return hi
	case 4:
		switch {
		case b == 0:
			return ^uint64(0)
		case int64(a) == math.MinInt64 && int64(b) == -1:
			return a
		}
		return uint64(int64(a) / int64(b))
	case 5:
		if b == 0 {
			return ^uint64(0)
		}
		return a / b
	case 6:
		switch {
		case b == 0:
			return a
		case int64(a) == math.MinInt64 && int64(b) == -1:
			return 0
		}
		return uint64(int64(a) % int64(b))
	default:
		if b == 0 {
			return a
		}
		return a % b
	}
}

func mulDiv32(f3 uint32, a, b int32) (uint64, bool) {
	ua, ub := uint32(a), uint32(b)
	switch f3 {
	case 0:
		return sext32(uint64(ua * ub)), true
	case 4:
		switch {
		case b == 0:
			return ^uint64(0), true
		case a == math.MinInt32 && b == -1:
			return uint64(int64(a)), true
		}
		return uint64(int64(a / b)), true
	case 5:
		if ub == 0 {
			return ^uint64(0), true
		}
		return sext32(uint64(ua / ub)), true
	case 6:
		switch {
		case b == 0:
			return uint64(int64(a)), true
		case a == math.MinInt32 && b == -1:
			return 0, true
		}
		return uint64(int64(a % b)), true
	case 7:
		if ub == 0 {
			return sext32(uint64(ua)), true
		}
		return sext32(uint64(ua % ub)), true
	}
	return 0, false
}

func b2u(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}
