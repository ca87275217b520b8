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

// Package hostarch describes the SV39 address geometry of the simulated
// RISC-V machine: page sizes, address widths and the typed page numbers used
// throughout the kernel.
package hostarch

// SV39 geometry.
const (
	// PageShift is the binary log of the system page size.
	PageShift = 12

	// PageSize is the system page size.
	PageSize = 1 << PageShift

	// PAWidth is the width of a physical address in bits.
	PAWidth = 56

	// VAWidth is the number of significant bits in a virtual address.
	VAWidth = 39

	// PPNWidth is the width of a physical page number.
	PPNWidth = PAWidth - PageShift

	// VPNWidth is the width of a virtual page number.
	VPNWidth = VAWidth - PageShift

	// Levels is the depth of the page table radix tree.
	Levels = 3

	// LevelBits is the number of VPN bits consumed per level.
	LevelBits = 9

	// EntriesPerTable is the number of entries in one page table page.
	EntriesPerTable = 1 << LevelBits
)

const (
	paMask  = 1<<PAWidth - 1
	vaMask  = 1<<VAWidth - 1
	ppnMask = 1<<PPNWidth - 1
	vpnMask = 1<<VPNWidth - 1
)
