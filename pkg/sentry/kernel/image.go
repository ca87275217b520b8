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


package kernel

import (
	"encoding/binary"
	"fmt"

	"gvisor.dev/rvos/pkg/hostarch"
	"gvisor.dev/rvos/pkg/safemem"
	"gvisor.dev/rvos/pkg/sentry/mm"
	"gvisor.dev/rvos/pkg/sentry/platform/rv64"
)

// insnEBREAK fills the kernel entry points. The hart hands control back to
// Go before ever executing them.
const insnEBREAK = 0x00100073

// Offsets of the kernel text symbols from the start of text.
const (
	offEntry          = 0x000
	offTrapHandler    = 0x100
	offTrapReturn     = 0x200
	offTrapFromKernel = 0x300
	offSwitchReturn   = 0x400
)

// Banner is stored in .rodata.
const Banner = "rvos: a RISC-V SV39 teaching kernel"

// Image is the kernel image as laid out in physical memory. The kernel runs
// as Go code, so the image only holds what the hart must be able to reach
// through the kernel page table: the entry points, the trampoline page and
// the boot stack.
type Image struct {
	Layout mm.KernelLayout

	// Entry is the boot entry point, the first byte of text.
	Entry uint64

	// TrapHandler is where the trampoline jumps after a user trap.
	TrapHandler uint64

	// TrapReturn is where a new task starts after its first switch.
	TrapReturn uint64

	// TrapFromKernel is the kernel trap vector.
	TrapFromKernel uint64

	// SwitchReturn is the return address saved by a context switch.
	SwitchReturn uint64
}

// NewImage lays out the image at base: two text pages, the second of which is
// the trampoline, one page each of rodata and data, and a bss holding a boot
// stack of bootStackPages pages.
func NewImage(base, memoryEnd hostarch.PhysAddr, bootStackPages int) Image {
	page := hostarch.PhysAddr(hostarch.PageSize)
	text := mm.PhysRange{Start: base, End: base + 2*page}
	rodata := mm.PhysRange{Start: text.End, End: text.End + page}
	data := mm.PhysRange{Start: rodata.End, End: rodata.End + page}
	bss := mm.PhysRange{Start: data.End, End: data.End + hostarch.PhysAddr(bootStackPages)*page}
	t := uint64(base)
	return Image{
		Layout: mm.KernelLayout{
			Text:       text,
			Rodata:     rodata,
			Data:       data,
			BSS:        bss,
			Trampoline: (base + page).PageNumber(),
			MemoryEnd:  memoryEnd,
		},
		Entry:          t + offEntry,
		TrapHandler:    t + offTrapHandler,
		TrapReturn:     t + offTrapReturn,
		TrapFromKernel: t + offTrapFromKernel,
		SwitchReturn:   t + offSwitchReturn,
	}
}

// Install writes the image into mem.
func (img *Image) Install(mem *safemem.Memory) error {
	if img.Layout.Ekernel() > img.Layout.MemoryEnd {
		return fmt.Errorf("kernel image [%v, %v) does not fit below %v", img.Layout.Text.Start, img.Layout.Ekernel(), img.Layout.MemoryEnd)
	}
	var w [4]byte
	binary.LittleEndian.PutUint32(w[:], insnEBREAK)
	for _, sym := range img.symbols() {
		b, err := mem.Block(hostarch.PhysAddr(sym.addr), len(w))
		if err != nil {
			return fmt.Errorf("installing %s: %w", sym.name, err)
		}
		b.CopyIn(w[:])
	}
	rv64.InstallTrampoline(mem, img.Layout.Trampoline)

	ro, err := mem.Block(img.Layout.Rodata.Start, len(Banner))
	if err != nil {
		return err
	}
	ro.CopyIn([]byte(Banner))
	return nil
}

type symbol struct {
	name string
	addr uint64
}

func (img *Image) symbols() []symbol {
	return []symbol{
		{"_start", img.Entry},
		{"trap_handler", img.TrapHandler},
		{"trap_return", img.TrapReturn},
		{"trap_from_kernel", img.TrapFromKernel},
		{"__switch_ret", img.SwitchReturn},
	}
}
