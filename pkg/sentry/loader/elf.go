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

// Package loader parses program images and keeps the catalog of programs
// the kernel can start.
package loader

import (
	"bytes"
	"debug/elf"
	"fmt"

	"gvisor.dev/rvos/pkg/errors/linuxerr"
	"gvisor.dev/rvos/pkg/hostarch"
	"gvisor.dev/rvos/pkg/log"
)

// elfMagic is the first four bytes of every ELF file.
var elfMagic = []byte{0x7f, 'E', 'L', 'F'}

// Segment is one PT_LOAD program header with its file contents.
type Segment struct {
	// Vaddr is the virtual address of the first byte.
	Vaddr hostarch.Addr

	// Memsz is the size in memory. Bytes past len(Data) are zero.
	Memsz uint64

	// Perms are the segment's read/write/execute permissions.
	Perms hostarch.AccessType

	// Data is file bytes [p_offset, p_offset+p_filesz).
	Data []byte
}

// End returns one past the last byte of the segment in memory.
func (s Segment) End() hostarch.Addr {
	return s.Vaddr + hostarch.Addr(s.Memsz)
}

// Image is a parsed executable.
type Image struct {
	// Entry is the initial program counter.
	Entry hostarch.Addr

	// Segments are the loadable segments in program header order.
	Segments []Segment
}

// ErrBadMagic is wrapped into the error for data that is not ELF at all.
var ErrBadMagic = fmt.Errorf("invalid elf: bad magic: %w", linuxerr.ENOEXEC)

// HasELFMagic reports whether data starts with the ELF magic number.
func HasELFMagic(data []byte) bool {
	return bytes.HasPrefix(data, elfMagic)
}

// ParseELF validates a riscv64 ELF executable and extracts its loadable
// segments.
//
// Validation requires:
// * 64-bit little-endian, EM_RISCV, ET_EXEC.
// * PT_LOAD segments lie inside the file and do not overflow.
// * p_filesz <= p_memsz.
//
// Every failure wraps linuxerr.ENOEXEC.
func ParseELF(data []byte) (*Image, error) {
	if !HasELFMagic(data) {
		return nil, ErrBadMagic
	}
	f, err := elf.NewFile(bytes.NewReader(data))
	if err != nil {
		log.Infof("Unable to parse ELF header: %v", err)
		return nil, fmt.Errorf("%v: %w", err, linuxerr.ENOEXEC)
	}
	if f.Class != elf.ELFCLASS64 || f.Data != elf.ELFDATA2LSB {
		log.Warningf("ELF is %v %v, want 64-bit little endian", f.Class, f.Data)
		return nil, linuxerr.ENOEXEC
	}
	if f.Machine != elf.EM_RISCV {
		log.Warningf("ELF machine %v, want %v", f.Machine, elf.EM_RISCV)
		return nil, linuxerr.ENOEXEC
	}
	if f.Type != elf.ET_EXEC {
		log.Warningf("ELF type %v, want %v", f.Type, elf.ET_EXEC)
		return nil, linuxerr.ENOEXEC
	}

	img := &Image{Entry: hostarch.Addr(f.Entry)}
	for _, p := range f.Progs {
		if p.Type != elf.PT_LOAD {
			continue
		}
		if p.Filesz > p.Memsz {
			log.Warningf("PT_LOAD segment filesz %#x > memsz %#x", p.Filesz, p.Memsz)
			return nil, linuxerr.ENOEXEC
		}
		if _, ok := hostarch.Addr(p.Vaddr).AddLength(p.Memsz); !ok {
			log.Warningf("PT_LOAD segment size overflows: %#x + %#x", p.Vaddr, p.Memsz)
			return nil, linuxerr.ENOEXEC
		}
		end := p.Off + p.Filesz
		if end < p.Off || end > uint64(len(data)) {
			log.Warningf("PT_LOAD segment file range [%#x, %#x) extends beyond end of file %#x", p.Off, end, len(data))
			return nil, linuxerr.ENOEXEC
		}
		img.Segments = append(img.Segments, Segment{
			Vaddr: hostarch.Addr(p.Vaddr),
			Memsz: p.Memsz,
			Perms: hostarch.AccessType{
				Read:    p.Flags&elf.PF_R != 0,
				Write:   p.Flags&elf.PF_W != 0,
				Execute: p.Flags&elf.PF_X != 0,
			},
			Data: data[p.Off:end],
		})
	}
	return img, nil
}
