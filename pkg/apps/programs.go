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
	"gvisor.dev/rvos/pkg/abi/linux"
	"gvisor.dev/rvos/pkg/rvasm"
)

// Registers used below. The shared routines clobber t0-t6 and a0-a7, so
// state that lives across calls is kept in s registers.
const (
	zero = rvasm.Zero
	sp   = rvasm.SP
	a0   = rvasm.A0
	a1   = rvasm.A1
	a2   = rvasm.A2
	t0   = rvasm.T0
	t1   = rvasm.T1
	s0   = rvasm.S0
	s1   = rvasm.S1
	s2   = rvasm.S2
	s3   = rvasm.S3
)

// MmapBase is where the mmap and munmap programs map memory.
const MmapBase = 0x10000000

// Power program parameters.
const (
	PowerIters   = 100000
	PowerModulus = 998244353
	powerStep    = 20000
)

// YieldRounds is the number of times the yield program yields.
const YieldRounds = 5

// ExitCodeValue is the code the exit_code program exits with.
const ExitCodeValue = 7

func helloWorld(a *asm) {
	a.print("Hello world from user mode program!\n")
	a.exit(0)
}

// sleep busy-waits for three seconds of machine time, yielding in between.
func sleep(a *asm) {
	a.getTimeMs()
	a.MV(s0, a0)
	a.BLT(zero, s0, "sleep.positive")
	a.print("get_time returned a non-positive time\n")
	a.exit(1)
	a.Label("sleep.positive")
	a.print("get_time OK! ")
	a.printReg(s0)
	a.print("\n")
	a.LI(t0, 3000)
	a.ADD(s1, s0, t0)
	a.Label("sleep.loop")
	a.getTimeMs()
	a.BGE(a0, s1, "sleep.done")
	a.Syscall(linux.SYS_SCHED_YIELD)
	a.J("sleep.loop")
	a.Label("sleep.done")
	a.print("Test1 sleep0 OK!\n")
	a.exit(0)
}

func mmapCall(a *asm, start, length, prot int64) {
	a.LI(a0, start)
	a.LI(a1, length)
	a.LI(a2, prot)
	a.Syscall(linux.SYS_MMAP)
}

// mmapTest checks the mmap argument rules and that the mapping is usable.
func mmapTest(a *asm) {
	const (
		start  = MmapBase
		length = 4096
		prot   = linux.PROT_READ | linux.PROT_WRITE
	)
	mmapCall(a, start, length, prot)
	a.failUnless(0, "mmap of a free range failed\n")
	mmapCall(a, start-length, length+1, prot)
	a.failUnless(-1, "overlapping mmap succeeded\n")
	mmapCall(a, start+length+1, length, prot)
	a.failUnless(-1, "unaligned mmap succeeded\n")
	mmapCall(a, start+length, length, 0)
	a.failUnless(-1, "mmap without permissions succeeded\n")
	mmapCall(a, start+length, length, prot|8)
	a.failUnless(-1, "mmap with an invalid permission bit succeeded\n")

	// The last word of the mapping.
	a.LI(t0, start+length-8)
	a.LI(t1, 0x5a5a)
	a.SD(t1, t0, 0)
	a.LD(a0, t0, 0)
	a.failUnless(0x5a5a, "mapped memory does not hold what was stored\n")
	a.print("Test2 mmap3 test OK!\n")
	a.exit(0)
}

// munmapTest unmaps a mapping and then stores to it, which must kill it.
func munmapTest(a *asm) {
	mmapCall(a, MmapBase, 4096, linux.PROT_READ|linux.PROT_WRITE)
	a.failUnless(0, "mmap failed\n")
	a.LI(s0, MmapBase)
	a.SD(s0, s0, 0)
	a.MV(a0, s0)
	a.LI(a1, 4096)
	a.Syscall(linux.SYS_MUNMAP)
	a.failUnless(0, "munmap failed\n")
	a.MV(a0, s0)
	a.LI(a1, 4096)
	a.Syscall(linux.SYS_MUNMAP)
	a.failUnless(-1, "second munmap succeeded\n")
	a.print("munmap OK, storing to the unmapped page\n")
	a.SD(s0, s0, 0)
	a.print("store to an unmapped page succeeded\n")
	a.exit(1)
}

// power computes 3^PowerIters mod PowerModulus, reporting progress. It
// never yields.
func power(a *asm) {
	a.LI(s0, 1)
	a.LI(s1, 0)
	a.LI(s2, PowerModulus)
	a.LI(s3, 3)
	a.Label("power.loop")
	a.MUL(s0, s0, s3)
	a.REMU(s0, s0, s2)
	a.ADDI(s1, s1, 1)
	a.LI(t0, powerStep)
	a.REMU(t1, s1, t0)
	a.BNEZ(t1, "power.next")
	a.print("power [")
	a.printReg(s1)
	a.print("/100000]\n")
	a.Label("power.next")
	a.LI(t0, PowerIters)
	a.BLT(s1, t0, "power.loop")
	a.print("3^100000 = ")
	a.printReg(s0)
	a.print("\nTest power OK!\n")
	a.exit(0)
}

// yieldTest yields YieldRounds times, printing its pid each round.
func yieldTest(a *asm) {
	a.Syscall(linux.SYS_GETPID)
	a.MV(s0, a0)
	a.print("Hello, I am process ")
	a.printReg(s0)
	a.print(".\n")
	a.LI(s1, 0)
	a.Label("yield.loop")
	a.print("Back in process ")
	a.printReg(s0)
	a.print(", iteration ")
	a.printReg(s1)
	a.print(".\n")
	a.Syscall(linux.SYS_SCHED_YIELD)
	a.ADDI(s1, s1, 1)
	a.LI(t0, YieldRounds)
	a.BLT(s1, t0, "yield.loop")
	a.print("yield pass.\n")
	a.exit(0)
}

func exitCode(a *asm) {
	a.print("exiting with code 7\n")
	a.exit(ExitCodeValue)
}

// forkExec forks; the child execs exit_code while the parent waits for it
// and prints its exit code.
func forkExec(a *asm) {
	a.String("fork_exec.path", "exit_code")
	a.Syscall(linux.SYS_CLONE)
	a.BNEZ(a0, "fork_exec.parent")

	a.LA(a0, "fork_exec.path")
	a.Syscall(linux.SYS_EXECVE)
	a.print("exec failed\n")
	a.exit(1)

	a.Label("fork_exec.parent")
	a.MV(s0, a0)
	a.BLT(zero, s0, "fork_exec.wait")
	a.print("fork failed\n")
	a.exit(1)

	a.Label("fork_exec.wait")
	a.ADDI(sp, sp, -16)
	a.MV(a0, s0)
	a.MV(a1, sp)
	a.Syscall(linux.SYS_WAIT4)
	a.LI(t0, linux.WaitNotExited)
	a.BNE(a0, t0, "fork_exec.done")
	a.ADDI(sp, sp, 16)
	a.Syscall(linux.SYS_SCHED_YIELD)
	a.J("fork_exec.wait")

	a.Label("fork_exec.done")
	a.MV(s1, a0)
	a.LW(s2, sp, 0)
	a.ADDI(sp, sp, 16)
	a.BEQ(s1, s0, "fork_exec.reaped")
	a.print("waitpid returned the wrong pid\n")
	a.exit(1)
	a.Label("fork_exec.reaped")
	a.print("child ")
	a.printReg(s0)
	a.print(" exited with code ")
	a.printReg(s2)
	a.print("\n")
	a.exit(0)
}

// waitNone calls waitpid without children.
func waitNone(a *asm) {
	a.LI(a0, linux.WaitAny)
	a.LI(a1, 0)
	a.Syscall(linux.SYS_WAIT4)
	a.failUnless(-1, "waitpid without children did not fail\n")
	a.print("wait_none OK!\n")
	a.exit(0)
}

func illegal(a *asm) {
	a.print("Try to execute privileged instruction in U Mode\n")
	a.print("Kernel should kill this application!\n")
	a.SRET()
	a.exit(1)
}

func badAddress(a *asm) {
	a.print("Into Test store_fault, we will insert an invalid store operation...\n")
	a.print("Kernel should kill this application!\n")
	a.SD(zero, zero, 0)
	a.exit(1)
}

// echo copies stdin to stdout until the end of input.
func echo(a *asm) {
	const bufSize = 64
	a.Space("echo.buf", bufSize)
	a.Label("echo.loop")
	a.LI(a0, linux.STDIN_FILENO)
	a.LA(a1, "echo.buf")
	a.LI(a2, bufSize)
	a.Syscall(linux.SYS_READ)
	a.BEQZ(a0, "echo.eof")
	a.BLT(a0, zero, "echo.error")
	a.MV(a2, a0)
	a.LI(a0, linux.STDOUT_FILENO)
	a.LA(a1, "echo.buf")
	a.Syscall(linux.SYS_WRITE)
	a.J("echo.loop")
	a.Label("echo.error")
	a.print("read failed\n")
	a.exit(1)
	a.Label("echo.eof")
	a.exit(0)
}
