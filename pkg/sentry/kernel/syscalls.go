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
	"fmt"
	"sort"

	"gvisor.dev/rvos/pkg/sentry/arch"
)

// SyscallFn is a syscall implementation.
type SyscallFn func(t *Task, args arch.SyscallArguments) (uintptr, *SyscallControl, error)

// SyscallControl is returned by syscalls to control the behavior of
// the trap handler after the return value has been stored.
type SyscallControl struct {
	// next is the state the kernel continues with instead of returning to
	// the calling task.
	next runState
}

var (
	// CtrlDoExit is returned by the implementations of the exit syscall to
	// cause the calling task to exit.
	CtrlDoExit = &SyscallControl{next: (*runExit)(nil)}

	// CtrlYield is returned by sched_yield to give up the hart after the
	// return value has been stored.
	CtrlYield = &SyscallControl{next: (*runYield)(nil)}
)

// Syscall includes the syscall implementation and compatibility information.
type Syscall struct {
	// Name is the syscall name.
	Name string

	// Fn is the implementation of the syscall.
	Fn SyscallFn

	// Note describes the behavior of the call in this kernel.
	Note string
}

// SyscallTable is a lookup table of system calls.
type SyscallTable struct {
	// Table is the collection of functions.
	Table map[uintptr]Syscall
}

// Lookup returns the syscall with number sysno.
func (s *SyscallTable) Lookup(sysno uintptr) (Syscall, bool) {
	sc, ok := s.Table[sysno]
	return sc, ok
}

// Name returns the name of sysno, or a placeholder for unknown numbers.
func (s *SyscallTable) Name(sysno uintptr) string {
	if sc, ok := s.Table[sysno]; ok {
		return sc.Name
	}
	return fmt.Sprintf("sys_%d", sysno)
}

// SyscallInfo describes one table entry.
type SyscallInfo struct {
	Number uintptr `json:"number" yaml:"number"`
	Name   string  `json:"name" yaml:"name"`
	Note   string  `json:"note,omitempty" yaml:"note,omitempty"`
}

// Entries returns the table sorted by number.
func (s *SyscallTable) Entries() []SyscallInfo {
	infos := make([]SyscallInfo, 0, len(s.Table))
	for nr, sc := range s.Table {
		infos = append(infos, SyscallInfo{Number: nr, Name: sc.Name, Note: sc.Note})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Number < infos[j].Number })
	return infos
}
