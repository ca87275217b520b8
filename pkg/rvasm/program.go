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

import (
	"fmt"
)

type section int

const (
	sectionText section = iota
	sectionData
	sectionBSS
)

type symbol struct {
	sec section
	off uint64
}

type fixupKind int

const (
	fixupBranch fixupKind = iota
	fixupJAL
	fixupPCRel
)

// fixup patches the instruction at text index at once label addresses are
// known.
type fixup struct {
	kind  fixupKind
	at    int
	label string
}

// Program accumulates text, data and bss, then links them into an ELF image.
// Errors are sticky and reported by Link.
type Program struct {
	text    []uint32
	data    []byte
	bssSize uint64
	symbols map[string]symbol
	fixups  []fixup
	err     error
}

// New returns an empty program.
func New() *Program {
	return &Program{symbols: make(map[string]symbol)}
}

func (p *Program) fail(format string, args ...any) {
	if p.err == nil {
		p.err = fmt.Errorf(format, args...)
	}
}

func (p *Program) define(name string, s symbol) {
	if _, ok := p.symbols[name]; ok {
		p.fail("symbol %q defined twice", name)
		return
	}
	p.symbols[name] = s
}

// Label defines name at the next instruction.
func (p *Program) Label(name string) {
	p.define(name, symbol{sec: sectionText, off: uint64(len(p.text)) * 4})
}

// Word emits a raw instruction word.
func (p *Program) Word(w uint32) {
	p.text = append(p.text, w)
}

// Bytes places b in the data section under name.
func (p *Program) Bytes(name string, b []byte) {
	p.align(8)
	p.define(name, symbol{sec: sectionData, off: uint64(len(p.data))})
	p.data = append(p.data, b...)
}

// String places s followed by a NUL byte in the data section under name.
func (p *Program) String(name, s string) {
	p.Bytes(name, append([]byte(s), 0))
}

// Space reserves n zeroed bytes in bss under name.
func (p *Program) Space(name string, n uint64) {
	p.bssSize = (p.bssSize + 7) &^ 7
	p.define(name, symbol{sec: sectionBSS, off: p.bssSize})
	p.bssSize += n
}

func (p *Program) align(n int) {
	for len(p.data)%n != 0 {
		p.data = append(p.data, 0)
	}
}

// emitI emits an I-type instruction. imm must fit in 12 signed bits.
func (p *Program) emitI(op, f3 uint32, rd, rs1 Reg, imm int64) {
	if !fitsSigned(imm, 12) {
		p.fail("instruction %d: immediate %d does not fit in 12 bits", len(p.text), imm)
	}
	p.Word(encodeI(op, f3, rd, rs1, imm))
}

// emitS emits an S-type instruction. imm must fit in 12 signed bits.
func (p *Program) emitS(op, f3 uint32, rs1, rs2 Reg, imm int64) {
	if !fitsSigned(imm, 12) {
		p.fail("instruction %d: store offset %d does not fit in 12 bits", len(p.text), imm)
	}
	p.Word(encodeS(op, f3, rs1, rs2, imm))
}

func (p *Program) ref(kind fixupKind, label string) {
	p.fixups = append(p.fixups, fixup{kind: kind, at: len(p.text), label: label})
}

// LUI emits lui rd, imm20.
func (p *Program) LUI(rd Reg, imm20 int64) { p.Word(encodeU(opLUI, rd, imm20)) }

// AUIPC emits auipc rd, imm20.
func (p *Program) AUIPC(rd Reg, imm20 int64) { p.Word(encodeU(opAUIPC, rd, imm20)) }

// JAL emits jal rd, label.
func (p *Program) JAL(rd Reg, label string) {
	p.ref(fixupJAL, label)
	p.Word(encodeJ(rd, 0))
}

// JALR emits jalr rd, imm(rs1).
func (p *Program) JALR(rd, rs1 Reg, imm int64) { p.emitI(opJALR, 0, rd, rs1, imm) }

func (p *Program) branch(f3 uint32, rs1, rs2 Reg, label string) {
	p.ref(fixupBranch, label)
	p.Word(encodeB(f3, rs1, rs2, 0))
}

// BEQ emits beq rs1, rs2, label.
func (p *Program) BEQ(rs1, rs2 Reg, label string) { p.branch(0, rs1, rs2, label) }

// BNE emits bne rs1, rs2, label.
func (p *Program) BNE(rs1, rs2 Reg, label string) { p.branch(1, rs1, rs2, label) }

// BLT emits blt rs1, rs2, label.
func (p *Program) BLT(rs1, rs2 Reg, label string) { p.branch(4, rs1, rs2, label) }

// BGE emits bge rs1, rs2, label.
func (p *Program) BGE(rs1, rs2 Reg, label string) { p.branch(5, rs1, rs2, label) }

// BLTU emits bltu rs1, rs2, label.
func (p *Program) BLTU(rs1, rs2 Reg, label string) { p.branch(6, rs1, rs2, label) }

// BGEU emits bgeu rs1, rs2, label.
func (p *Program) BGEU(rs1, rs2 Reg, label string) { p.branch(7, rs1, rs2, label) }

// Loads.
func (p *Program) LB(rd, rs1 Reg, imm int64)  { p.emitI(opLoad, 0, rd, rs1, imm) }
func (p *Program) LH(rd, rs1 Reg, imm int64)  { p.emitI(opLoad, 1, rd, rs1, imm) }
func (p *Program) LW(rd, rs1 Reg, imm int64)  { p.emitI(opLoad, 2, rd, rs1, imm) }
func (p *Program) LD(rd, rs1 Reg, imm int64)  { p.emitI(opLoad, 3, rd, rs1, imm) }
func (p *Program) LBU(rd, rs1 Reg, imm int64) { p.emitI(opLoad, 4, rd, rs1, imm) }
func (p *Program) LHU(rd, rs1 Reg, imm int64) { p.emitI(opLoad, 5, rd, rs1, imm) }
func (p *Program) LWU(rd, rs1 Reg, imm int64) { p.emitI(opLoad, 6, rd, rs1, imm) }

// Stores. The value register comes first, as in "sd rs2, imm(rs1)".
func (p *Program) SB(rs2, rs1 Reg, imm int64) { p.emitS(opStore, 0, rs1, rs2, imm) }
func (p *Program) SH(rs2, rs1 Reg, imm int64) { p.emitS(opStore, 1, rs1, rs2, imm) }
func (p *Program) SW(rs2, rs1 Reg, imm int64) { p.emitS(opStore, 2, rs1, rs2, imm) }
func (p *Program) SD(rs2, rs1 Reg, imm int64) { p.emitS(opStore, 3, rs1, rs2, imm) }

// Immediate arithmetic.
func (p *Program) ADDI(rd, rs1 Reg, imm int64)  { p.emitI(opImm, 0, rd, rs1, imm) }
func (p *Program) SLTI(rd, rs1 Reg, imm int64)  { p.emitI(opImm, 2, rd, rs1, imm) }
func (p *Program) SLTIU(rd, rs1 Reg, imm int64) { p.emitI(opImm, 3, rd, rs1, imm) }
func (p *Program) XORI(rd, rs1 Reg, imm int64)  { p.emitI(opImm, 4, rd, rs1, imm) }
func (p *Program) ORI(rd, rs1 Reg, imm int64)   { p.emitI(opImm, 6, rd, rs1, imm) }
func (p *Program) ANDI(rd, rs1 Reg, imm int64)  { p.emitI(opImm, 7, rd, rs1, imm) }
func (p *Program) ADDIW(rd, rs1 Reg, imm int64) { p.emitI(opImm32, 0, rd, rs1, imm) }

// SLLI emits slli rd, rs1, shamt (6-bit shamt).
func (p *Program) SLLI(rd, rs1 Reg, shamt int64) { p.emitI(opImm, 1, rd, rs1, shamt&0x3f) }

// SRLI emits srli rd, rs1, shamt.
func (p *Program) SRLI(rd, rs1 Reg, shamt int64) { p.emitI(opImm, 5, rd, rs1, shamt&0x3f) }

// SRAI emits srai rd, rs1, shamt.
func (p *Program) SRAI(rd, rs1 Reg, shamt int64) {
	p.emitI(opImm, 5, rd, rs1, 0x400|shamt&0x3f)
}

// Register arithmetic.
func (p *Program) ADD(rd, rs1, rs2 Reg)  { p.Word(encodeR(opReg, 0, 0, rd, rs1, rs2)) }
func (p *Program) SUB(rd, rs1, rs2 Reg)  { p.Word(encodeR(opReg, 0, 0x20, rd, rs1, rs2)) }
func (p *Program) SLL(rd, rs1, rs2 Reg)  { p.Word(encodeR(opReg, 1, 0, rd, rs1, rs2)) }
func (p *Program) SLT(rd, rs1, rs2 Reg)  { p.Word(encodeR(opReg, 2, 0, rd, rs1, rs2)) }
func (p *Program) SLTU(rd, rs1, rs2 Reg) { p.Word(encodeR(opReg, 3, 0, rd, rs1, rs2)) }
func (p *Program) XOR(rd, rs1, rs2 Reg)  { p.Word(encodeR(opReg, 4, 0, rd, rs1, rs2)) }
func (p *Program) SRL(rd, rs1, rs2 Reg)  { p.Word(encodeR(opReg, 5, 0, rd, rs1, rs2)) }
func (p *Program) SRA(rd, rs1, rs2 Reg)  { p.Word(encodeR(opReg, 5, 0x20, rd, rs1, rs2)) }
func (p *Program) OR(rd, rs1, rs2 Reg)   { p.Word(encodeR(opReg, 6, 0, rd, rs1, rs2)) }
func (p *Program) AND(rd, rs1, rs2 Reg)  { p.Word(encodeR(opReg, 7, 0, rd, rs1, rs2)) }
func (p *Program) ADDW(rd, rs1, rs2 Reg) { p.Word(encodeR(opReg32, 0, 0, rd, rs1, rs2)) }
func (p *Program) SUBW(rd, rs1, rs2 Reg) { p.Word(encodeR(opReg32, 0, 0x20, rd, rs1, rs2)) }

// M extension.
func (p *Program) MUL(rd, rs1, rs2 Reg)  { p.Word(encodeR(opReg, 0, 1, rd, rs1, rs2)) }
func (p *Program) DIV(rd, rs1, rs2 Reg)  { p.Word(encodeR(opReg, 4, 1, rd, rs1, rs2)) }
func (p *Program) DIVU(rd, rs1, rs2 Reg) { p.Word(encodeR(opReg, 5, 1, rd, rs1, rs2)) }
func (p *Program) REM(rd, rs1, rs2 Reg)  { p.Word(encodeR(opReg, 6, 1, rd, rs1, rs2)) }
func (p *Program) REMU(rd, rs1, rs2 Reg) { p.Word(encodeR(opReg, 7, 1, rd, rs1, rs2)) }

// ECALL emits an environment call.
func (p *Program) ECALL() { p.Word(insnECALL) }

// EBREAK emits a breakpoint.
func (p *Program) EBREAK() { p.Word(insnEBREAK) }

// SRET emits sret. It is illegal in user mode.
func (p *Program) SRET() { p.Word(insnSRET) }

// WFI emits wfi.
func (p *Program) WFI() { p.Word(insnWFI) }

// FENCE emits a full fence.
func (p *Program) FENCE() { p.Word(0x0ff0000f) }

// SFENCEVMA emits sfence.vma zero, zero.
func (p *Program) SFENCEVMA() { p.Word(insnSFENCEVMA) }

// CSRRW emits csrrw rd, csr, rs1.
func (p *Program) CSRRW(rd Reg, csr uint32, rs1 Reg) {
	p.Word(csr<<20 | uint32(rs1)<<15 | 1<<12 | uint32(rd)<<7 | opSystem)
}

// CSRRS emits csrrs rd, csr, rs1.
func (p *Program) CSRRS(rd Reg, csr uint32, rs1 Reg) {
	p.Word(csr<<20 | uint32(rs1)<<15 | 2<<12 | uint32(rd)<<7 | opSystem)
}

// CSRRC emits csrrc rd, csr, rs1.
func (p *Program) CSRRC(rd Reg, csr uint32, rs1 Reg) {
	p.Word(csr<<20 | uint32(rs1)<<15 | 3<<12 | uint32(rd)<<7 | opSystem)
}

// Pseudo-instructions.

// CSRR emits csrr rd, csr.
func (p *Program) CSRR(rd Reg, csr uint32) { p.CSRRS(rd, csr, Zero) }

// CSRW emits csrw csr, rs.
func (p *Program) CSRW(csr uint32, rs Reg) { p.CSRRW(Zero, csr, rs) }

// JR emits jalr zero, 0(rs).
func (p *Program) JR(rs Reg) { p.JALR(Zero, rs, 0) }

// NOP emits addi zero, zero, 0.
func (p *Program) NOP() { p.ADDI(Zero, Zero, 0) }

// MV emits mv rd, rs.
func (p *Program) MV(rd, rs Reg) { p.ADDI(rd, rs, 0) }

// J emits an unconditional jump to label.
func (p *Program) J(label string) { p.JAL(Zero, label) }

// CALL emits jal ra, label.
func (p *Program) CALL(label string) { p.JAL(RA, label) }

// RET emits jalr zero, 0(ra).
func (p *Program) RET() { p.JALR(Zero, RA, 0) }

// BEQZ emits beq rs, zero, label.
func (p *Program) BEQZ(rs Reg, label string) { p.BEQ(rs, Zero, label) }

// BNEZ emits bne rs, zero, label.
func (p *Program) BNEZ(rs Reg, label string) { p.BNE(rs, Zero, label) }

// LI loads an arbitrary 64-bit constant.
func (p *Program) LI(rd Reg, v int64) {
	switch {
	case fitsSigned(v, 12):
		p.ADDI(rd, Zero, v)
	case fitsSigned(v, 32):
		lo := signExtend12(v)
		hi := (v - lo) >> 12
		p.LUI(rd, hi)
		if lo != 0 {
			p.ADDIW(rd, rd, lo)
		}
	default:
		lo := signExtend12(v)
		hi := (v - lo) >> 12
		p.LI(rd, hi)
		p.SLLI(rd, rd, 12)
		if lo != 0 {
			p.ADDI(rd, rd, lo)
		}
	}
}

// LA loads the address of label, pc-relative.
func (p *Program) LA(rd Reg, label string) {
	p.ref(fixupPCRel, label)
	p.AUIPC(rd, 0)
	p.ADDI(rd, rd, 0)
}

// Syscall emits "li a7, nr; ecall".
func (p *Program) Syscall(nr int64) {
	p.LI(A7, nr)
	p.ECALL()
}
