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


package apps

import (
	"fmt"

	"gvisor.dev/rvos/pkg/abi/linux"
	"gvisor.dev/rvos/pkg/rvasm"
)

// Names of the shared routines.
const (
	routinePrintInt  = "print_i64"
	routineGetTimeMs = "get_time_ms"
)

// asm wraps a program with the small user runtime every app links against:
// console output, exit, and a few shared routines that are emitted once, at
// the end of text, if used.
type asm struct {
	*rvasm.Program

	// n numbers generated labels.
	n int

	routines map[string]bool
}

func newAsm() *asm {
	a := &asm{Program: rvasm.New(), routines: make(map[string]bool)}
	a.Label(rvasm.EntrySymbol)
	return a
}

// label returns a fresh label starting with prefix.
func (a *asm) label(prefix string) string {
	a.n++
	return fmt.Sprintf(".%s%d", prefix, a.n)
}

// print writes s to stdout.
func (a *asm) print(s string) {
	l := a.label("str")
	a.Bytes(l, []byte(s))
	a.LI(rvasm.A0, linux.STDOUT_FILENO)
	a.LA(rvasm.A1, l)
	a.LI(rvasm.A2, int64(len(s)))
	a.Syscall(linux.SYS_WRITE)
}

// printReg writes the signed decimal value of r to stdout.
func (a *asm) printReg(r rvasm.Reg) {
	a.routines[routinePrintInt] = true
	if r != rvasm.A0 {
		a.MV(rvasm.A0, r)
	}
	a.CALL(routinePrintInt)
}

// exit exits with code.
func (a *asm) exit(code int64) {
	a.LI(rvasm.A0, code)
	a.Syscall(linux.SYS_EXIT)
}

// failUnless exits with code 1 after printing msg unless a0 == want.
func (a *asm) failUnless(want int64, msg string) {
	ok := a.label("ok")
	a.LI(rvasm.T0, want)
	a.BEQ(rvasm.A0, rvasm.T0, ok)
	a.print(msg)
	a.exit(1)
	a.Label(ok)
}

// getTimeMs leaves the time since boot in milliseconds in a0.
func (a *asm) getTimeMs() {
	a.routines[routineGetTimeMs] = true
	a.CALL(routineGetTimeMs)
}

// link emits the routines used and links the program.
func (a *asm) link() ([]byte, error) {
	if a.routines[routinePrintInt] {
		a.emitPrintInt()
	}
	if a.routines[routineGetTimeMs] {
		a.emitGetTimeMs()
	}
	return a.Link(rvasm.LinkOptions{})
}

// emitPrintInt emits print_i64(a0). It formats into a buffer on the stack
// and issues a single write.
func (a *asm) emitPrintInt() {
	const (
		frame = 48
		buf   = 32
	)
	loop, noSign := routinePrintInt+".loop", routinePrintInt+".nosign"
	pos := routinePrintInt + ".pos"
	a.Label(routinePrintInt)
	a.ADDI(rvasm.SP, rvasm.SP, -frame)
	a.SD(rvasm.RA, rvasm.SP, frame-8)
	a.MV(rvasm.T0, rvasm.A0)
	a.ADDI(rvasm.T1, rvasm.SP, buf)
	a.MV(rvasm.T2, rvasm.T1)
	a.LI(rvasm.T3, 10)
	a.LI(rvasm.T4, 0)
	a.BGE(rvasm.T0, rvasm.Zero, pos)
	a.LI(rvasm.T4, 1)
	a.SUB(rvasm.T0, rvasm.Zero, rvasm.T0)
	a.Label(pos)
	a.Label(loop)
	a.REMU(rvasm.T5, rvasm.T0, rvasm.T3)
	a.DIVU(rvasm.T0, rvasm.T0, rvasm.T3)
	a.ADDI(rvasm.T5, rvasm.T5, '0')
	a.ADDI(rvasm.T2, rvasm.T2, -1)
	a.SB(rvasm.T5, rvasm.T2, 0)
	a.BNEZ(rvasm.T0, loop)
	a.BEQZ(rvasm.T4, noSign)
	a.LI(rvasm.T5, '-')
	a.ADDI(rvasm.T2, rvasm.T2, -1)
	a.SB(rvasm.T5, rvasm.T2, 0)
	a.Label(noSign)
	a.LI(rvasm.A0, linux.STDOUT_FILENO)
	a.MV(rvasm.A1, rvasm.T2)
	a.SUB(rvasm.A2, rvasm.T1, rvasm.T2)
	a.Syscall(linux.SYS_WRITE)
	a.LD(rvasm.RA, rvasm.SP, frame-8)
	a.ADDI(rvasm.SP, rvasm.SP, frame)
	a.RET()
}

// emitGetTimeMs emits get_time_ms: sec*1000 + usec/1000 of a timeval read
// into the stack.
func (a *asm) emitGetTimeMs() {
	a.Label(routineGetTimeMs)
	a.ADDI(rvasm.SP, rvasm.SP, -linux.SizeOfTimeval)
	a.MV(rvasm.A0, rvasm.SP)
	a.LI(rvasm.A1, 0)
	a.Syscall(linux.SYS_GETTIMEOFDAY)
	a.LD(rvasm.T0, rvasm.SP, 0)
	a.LD(rvasm.T1, rvasm.SP, 8)
	a.LI(rvasm.T2, 1000)
	a.MUL(rvasm.T0, rvasm.T0, rvasm.T2)
	a.DIVU(rvasm.T1, rvasm.T1, rvasm.T2)
	a.ADD(rvasm.A0, rvasm.T0, rvasm.T1)
	a.ADDI(rvasm.SP, rvasm.SP, linux.SizeOfTimeval)
	a.RET()
}
