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
	"bytes"
	"debug/elf"
	"encoding/binary"
	"fmt"
)

const (
	pageSize = 0x1000

	// DefaultTextBase is where text is linked when LinkOptions.TextBase is
	// zero.
	DefaultTextBase = 0x10000

	// EntrySymbol names the program entry point.
	EntrySymbol = "_start"
)

// LinkOptions control Link.
type LinkOptions struct {
	// TextBase is the page-aligned virtual address of the text segment.
	TextBase uint64
}

// ELFSegment is one PT_LOAD segment handed to WriteELF.
type ELFSegment struct {
	Vaddr uint64
	Memsz uint64
	Flags elf.ProgFlag
	Data  []byte
}

// Link resolves labels and returns a static ELF64 RISC-V executable. Text is
// loaded R+X at TextBase; data and bss follow R+W on the next page boundary.
func (p *Program) Link(opts LinkOptions) ([]byte, error) {
	if p.err != nil {
		return nil, p.err
	}
	base := opts.TextBase
	if base == 0 {
		base = DefaultTextBase
	}
	if base%pageSize != 0 {
		return nil, fmt.Errorf("text base %#x is not page aligned", base)
	}
	textSize := uint64(len(p.text)) * 4
	dataBase := (base + textSize + pageSize - 1) &^ (pageSize - 1)
	bssBase := dataBase + uint64(len(p.data))
	bssBase = (bssBase + 7) &^ 7

	addr := func(s symbol) uint64 {
		switch s.sec {
		case sectionData:
			return dataBase + s.off
		case sectionBSS:
			return bssBase + s.off
		default:
			return base + s.off
		}
	}

	text, err := p.resolve(addr, base)
	if err != nil {
		return nil, err
	}

	entry, ok := p.symbols[EntrySymbol]
	if !ok {
		return nil, fmt.Errorf("missing %s", EntrySymbol)
	}
	if entry.sec != sectionText {
		return nil, fmt.Errorf("%s is not in text", EntrySymbol)
	}

	var tb bytes.Buffer
	if err := binary.Write(&tb, binary.LittleEndian, text); err != nil {
		return nil, err
	}
	segs := []ELFSegment{{
		Vaddr: base,
		Memsz: textSize,
		Flags: elf.PF_R | elf.PF_X,
		Data:  tb.Bytes(),
	}}
	if memsz := bssBase + p.bssSize - dataBase; len(p.data) > 0 || p.bssSize > 0 {
		segs = append(segs, ELFSegment{
			Vaddr: dataBase,
			Memsz: memsz,
			Flags: elf.PF_R | elf.PF_W,
			Data:  p.data,
		})
	}
	return WriteELF(addr(entry), segs)
}

// resolve returns the text with every fixup applied, for text loaded at base.
func (p *Program) resolve(addr func(symbol) uint64, base uint64) ([]uint32, error) {
	text := append([]uint32(nil), p.text...)
	for _, f := range p.fixups {
		s, ok := p.symbols[f.label]
		if !ok {
			return nil, fmt.Errorf("undefined label %q", f.label)
		}
		pc := base + uint64(f.at)*4
		off := int64(addr(s) - pc)
		switch f.kind {
		case fixupBranch:
			if !fitsSigned(off, 13) || off&1 != 0 {
				return nil, fmt.Errorf("branch to %q out of range (%d)", f.label, off)
			}
			text[f.at] |= encodeB(0, 0, 0, off) &^ opBranch
		case fixupJAL:
			if !fitsSigned(off, 21) || off&1 != 0 {
				return nil, fmt.Errorf("jump to %q out of range (%d)", f.label, off)
			}
			text[f.at] |= encodeJ(0, off) &^ opJAL
		case fixupPCRel:
			if !fitsSigned(off, 32) {
				return nil, fmt.Errorf("address of %q out of range (%d)", f.label, off)
			}
			hi, lo := splitPCRel(off)
			text[f.at] |= uint32(hi&0xfffff) << 12
			text[f.at+1] |= uint32(lo&0xfff) << 20
		}
	}
	return text, nil
}

// Words assembles a text-only program loaded at base and returns its
// instruction words.
func (p *Program) Words(base uint64) ([]uint32, error) {
	if p.err != nil {
		return nil, p.err
	}
	if len(p.data) > 0 || p.bssSize > 0 {
		return nil, fmt.Errorf("program has data")
	}
	return p.resolve(func(s symbol) uint64 { return base + s.off }, base)
}

// Offset returns the offset of a text label from the start of text.
func (p *Program) Offset(label string) (uint64, bool) {
	s, ok := p.symbols[label]
	if !ok || s.sec != sectionText {
		return 0, false
	}
	return s.off, true
}

// WriteELF serializes a static executable with one PT_LOAD per segment. Each
// segment's file data starts on its own page so that file offsets and virtual
// addresses stay congruent modulo the page size.
func WriteELF(entry uint64, segs []ELFSegment) ([]byte, error) {
	const (
		ehsize = 64
		phsize = 56
	)
	hdr := elf.Header64{
		Type:      uint16(elf.ET_EXEC),
		Machine:   uint16(elf.EM_RISCV),
		Version:   uint32(elf.EV_CURRENT),
		Entry:     entry,
		Phoff:     ehsize,
		Ehsize:    ehsize,
		Phentsize: phsize,
		Phnum:     uint16(len(segs)),
		Shentsize: 64,
	}
	copy(hdr.Ident[:], elf.ELFMAG)
	hdr.Ident[elf.EI_CLASS] = byte(elf.ELFCLASS64)
	hdr.Ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	hdr.Ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)
	hdr.Ident[elf.EI_OSABI] = byte(elf.ELFOSABI_NONE)

	if ehsize+phsize*len(segs) > pageSize {
		return nil, fmt.Errorf("too many segments: %d", len(segs))
	}

	progs := make([]elf.Prog64, len(segs))
	off := uint64(pageSize)
	for i, s := range segs {
		if uint64(len(s.Data)) > s.Memsz {
			return nil, fmt.Errorf("segment %d: file size %d exceeds memory size %d", i, len(s.Data), s.Memsz)
		}
		off += s.Vaddr % pageSize
		progs[i] = elf.Prog64{
			Type:   uint32(elf.PT_LOAD),
			Flags:  uint32(s.Flags),
			Off:    off,
			Vaddr:  s.Vaddr,
			Paddr:  s.Vaddr,
			Filesz: uint64(len(s.Data)),
			Memsz:  s.Memsz,
			Align:  pageSize,
		}
		off = (off + uint64(len(s.Data)) + pageSize - 1) &^ (pageSize - 1)
	}

	var out bytes.Buffer
	if err := binary.Write(&out, binary.LittleEndian, &hdr); err != nil {
		return nil, err
	}
	if err := binary.Write(&out, binary.LittleEndian, progs); err != nil {
		return nil, err
	}
	for i, s := range segs {
		pad := int(progs[i].Off) - out.Len()
		out.Write(make([]byte, pad))
		out.Write(s.Data)
	}
	return out.Bytes(), nil
}
