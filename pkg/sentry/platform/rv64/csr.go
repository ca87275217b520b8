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
	"gvisor.dev/rvos/pkg/sentry/arch"
)

// CSR numbers.
const (
	CSRSStatus    = 0x100
	CSRSIE        = 0x104
	CSRSTVec      = 0x105
	CSRSCounterEn = 0x106
	CSRSScratch   = 0x140
	CSRSEPC       = 0x141
	CSRSCause     = 0x142
	CSRSTVal      = 0x143
	CSRSIP        = 0x144
	CSRSATP       = 0x180
	CSRCycle      = 0xc00
	CSRTime       = 0xc01
	CSRInstret    = 0xc02
)

// Interrupt enable and pending bits.
const (
	SIESTIE = 1 << 5
	SIPSTIP = 1 << 5
)

const sstatusWritable = arch.SStatusSIE | arch.SStatusSPIE | arch.SStatusSPP | arch.SStatusSUM

type csrs struct {
	sstatus    uint64
	sie        uint64
	stvec      uint64
	scounteren uint64
	sscratch   uint64
	sepc       uint64
	scause     uint64
	stval      uint64
	satp       uint64
}

// csrPrivilege returns the lowest privilege that may access csr.
func csrPrivilege(csr uint32) Privilege {
	return Privilege((csr >> 8) & 3)
}

// csrReadOnly reports whether csr is in the read-only space.
func csrReadOnly(csr uint32) bool {
	return csr>>10 == 3
}

// readCSR returns the value of csr. ok is false for unknown registers.
func (h *Hart) readCSR(csr uint32) (uint64, bool) {
	switch csr {
	case CSRSStatus:
		return h.csr.sstatus, true
	case CSRSIE:
		return h.csr.sie, true
	case CSRSTVec:
		return h.csr.stvec, true
	case CSRSCounterEn:
		return h.csr.scounteren, true
	case CSRSScratch:
		return h.csr.sscratch, true
	case CSRSEPC:
		return h.csr.sepc, true
	case CSRSCause:
		return h.csr.scause, true
	case CSRSTVal:
		return h.csr.stval, true
	case CSRSIP:
		if h.timerPending() {
			return SIPSTIP, true
		}
		return 0, true
	case CSRSATP:
		return h.csr.satp, true
	case CSRCycle, CSRTime:
		return h.time, true
	case CSRInstret:
		return h.instret, true
	}
	return 0, false
}

// writeCSR sets csr to v. ok is false for unknown registers.
func (h *Hart) writeCSR(csr uint32, v uint64) bool {
	switch csr {
	case CSRSStatus:
		h.csr.sstatus = v & sstatusWritable
	case CSRSIE:
		h.csr.sie = v & SIESTIE
	case CSRSTVec:
		h.csr.stvec = v &^ 3
	case CSRSCounterEn:
		h.csr.scounteren = v & 7
	case CSRSScratch:
		h.csr.sscratch = v
	case CSRSEPC:
		h.csr.sepc = v &^ 1
	case CSRSCause:
		h.csr.scause = v
	case CSRSTVal:
		h.csr.stval = v
	case CSRSIP:
		// STIP is controlled by the firmware timer.
	case CSRSATP:
		// Only Bare and SV39 are supported; other modes leave satp alone.
		if mode := v >> 60; mode == 0 || mode == 8 {
			h.csr.satp = v
		}
	default:
		return false
	}
	return true
}

// counterAllowed reports whether user mode may read the counter csr.
func (h *Hart) counterAllowed(csr uint32) bool {
	if h.priv == Supervisor {
		return true
	}
	return h.csr.scounteren&(1<<(csr-CSRCycle)) != 0
}

// CSR returns the value of csr as seen by supervisor mode. It panics on an
// unknown register.
func (h *Hart) CSR(csr uint32) uint64 {
	v, ok := h.readCSR(csr)
	if !ok {
		panic("rv64: unknown csr")
	}
	return v
}

// SetCSR writes csr as supervisor mode would with csrw. It panics on an
// unknown or read-only register.
func (h *Hart) SetCSR(csr uint32, v uint64) {
	if csrReadOnly(csr) || !h.writeCSR(csr, v) {
		panic("rv64: csr not writable")
	}
}
