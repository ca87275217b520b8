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

	"gvisor.dev/rvos/pkg/log"
	"gvisor.dev/rvos/pkg/sentry/arch"
	"gvisor.dev/rvos/pkg/sentry/platform"
	"gvisor.dev/rvos/pkg/sentry/platform/rv64"
)

// runSlice is the number of instructions the hart runs between checks of the
// context and the instruction limit.
const runSlice = 1 << 16

// A runState is a step of the kernel loop. execute runs it and returns the
// next state. A nil state with a nil error means every task has exited.
//
// Each state only touches the current task and the hart; states that pick
// another task go through a context switch and continue with runSwitched.
type runState interface {
	execute(k *Kernel) (runState, error)
}

// runApp runs the hart in user mode, or in the trampoline, until it reaches a
// kernel entry point.
type runApp struct{}

func (*runApp) execute(k *Kernel) (runState, error) {
	for {
		if err := k.ctx.Err(); err != nil {
			return nil, err
		}
		budget := uint64(runSlice)
		if k.insnLimit != 0 {
			if k.executed >= k.insnLimit {
				return nil, platform.ErrInstructionLimit
			}
			budget = min(budget, k.insnLimit-k.executed)
		}
		stop := k.hart.Run(budget)
		k.executed += stop.Executed
		switch stop.Reason {
		case rv64.StopBudget:
			continue
		case rv64.StopKernelTrap:
			k.trapFromKernel()
		case rv64.StopEntry:
			switch stop.PC {
			case k.image.TrapHandler:
				return (*runTrap)(nil), nil
			case k.image.TrapFromKernel:
				k.trapFromKernel()
			default:
				name, _ := k.hart.EntryName(stop.PC)
				panic(fmt.Sprintf("hart stopped at kernel entry %s (%#x) outside a trap", name, stop.PC))
			}
		}
	}
}

// trapFromKernel handles a trap taken while the hart was in supervisor mode.
// There is no recovery from it.
func (k *Kernel) trapFromKernel() {
	panic(fmt.Sprintf("a trap from kernel! scause=%v, stval=%#x, sepc=%#x",
		rv64.Cause(k.hart.CSR(rv64.CSRSCause)), k.hart.CSR(rv64.CSRSTVal), k.hart.CSR(rv64.CSRSEPC)))
}

// runTrapReturn enters the trampoline's restore routine with the current
// task's trap context and user page table.
type runTrapReturn struct{}

func (*runTrapReturn) execute(k *Kernel) (runState, error) {
	t := k.current()
	k.setUserTrapEntry()
	k.hart.WriteReg(arch.RegA0, uint64(arch.TrapContextAddr))
	k.hart.WriteReg(arch.RegA1, t.space.Token())
	k.hart.SetPC(uint64(arch.TrampolineAddr) + rv64.Trampoline().RestoreOffset)
	return (*runApp)(nil), nil
}

// runSwitched resumes a task after a context switch at the return address
// its saved context holds.
type runSwitched struct{}

func (*runSwitched) execute(k *Kernel) (runState, error) {
	switch ra := k.hart.ReadReg(arch.RegRA); ra {
	case k.image.TrapReturn, k.image.SwitchReturn:
		// A new task starts at trap_return. A task switched out in
		// the trap handler resumes there, and the handler's last step
		// is always trap_return.
		return (*runTrapReturn)(nil), nil
	default:
		panic(fmt.Sprintf("context switch to %s returned to %#x", k.current(), ra))
	}
}

// runExit exits the current task with the code the exit syscall stored and
// runs the next one.
type runExit struct{}

func (*runExit) execute(k *Kernel) (runState, error) {
	t := k.current()
	k.exitCurrent(t.exitCode)
	return k.runNextTask()
}

// runYield suspends the current task and runs the next one.
type runYield struct{}

func (*runYield) execute(k *Kernel) (runState, error) {
	return k.suspendCurrentAndRunNext()
}

// runTrap is the trap handler: the trampoline saved the user registers and
// jumped here.
type runTrap struct{}

func (*runTrap) execute(k *Kernel) (runState, error) {
	k.setKernelTrapEntry()
	t := k.current()
	if sp := k.hart.ReadReg(arch.RegSP); sp != uint64(t.kernelStackTop) {
		panic(fmt.Sprintf("%s entered the trap handler with sp %#x, kernel stack top is %v", t, sp, t.kernelStackTop))
	}
	cause := rv64.Cause(k.hart.CSR(rv64.CSRSCause))
	stval := k.hart.CSR(rv64.CSRSTVal)
	switch cause {
	case rv64.CauseUserEcall:
		return k.handleSyscall(t)
	case rv64.CauseStoreAccessFault, rv64.CauseStorePageFault,
		rv64.CauseLoadAccessFault, rv64.CauseLoadPageFault,
		rv64.CauseInstructionAccessFault, rv64.CauseInstructionPageFault:
		cx := t.TrapContext()
		log.Warningf("[kernel] %v in application, bad addr = %#x, bad instruction = %#x, kernel killed it.", cause, stval, cx.SEPC)
		t.exitCode = -2
		return (*runExit)(nil), nil
	case rv64.CauseIllegalInstruction:
		log.Warningf("[kernel] IllegalInstruction in application, kernel killed it.")
		t.exitCode = -3
		return (*runExit)(nil), nil
	case rv64.CauseSupervisorTimer:
		k.setNextTrigger()
		return (*runYield)(nil), nil
	default:
		panic(fmt.Sprintf("Unsupported trap %v, stval = %#x!", cause, stval))
	}
}

// handleSyscall dispatches the system call in t's trap context and stores
// its result.
func (k *Kernel) handleSyscall(t *Task) (runState, error) {
	cx := t.TrapContext()
	cx.SEPC += 4
	t.SetTrapContext(&cx)

	sysno := cx.SyscallNo()
	args := cx.SyscallArgs()
	var (
		rval uintptr
		ctrl *SyscallControl
		err  error
	)
	sc, ok := k.syscalls.Lookup(sysno)
	if !ok {
		k.syscallErrs.Warningf("[kernel] %s: unsupported syscall %d", t, sysno)
		rval = ^uintptr(0)
	} else {
		rval, ctrl, err = sc.Fn(t, args)
		if err != nil {
			k.syscallErrs.Debugf("[kernel] %s: %s(%#x, %#x, %#x) failed: %v", t, sc.Name, args[0].Value, args[1].Value, args[2].Value, err)
			rval = ^uintptr(0)
		}
	}
	if log.IsLogging(log.Trace) {
		log.Tracef("[kernel] %s: %s(%#x, %#x, %#x) = %#x", t, k.syscalls.Name(sysno), args[0].Value, args[1].Value, args[2].Value, rval)
	}

	// exec replaces the trap context, so load it again.
	cx = t.TrapContext()
	cx.SetReturn(rval)
	t.SetTrapContext(&cx)
	if ctrl != nil {
		return ctrl.next, nil
	}
	return (*runTrapReturn)(nil), nil
}
