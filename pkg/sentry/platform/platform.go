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


// Package platform provides the machine-level interfaces the kernel runs on.
package platform

import (
	"errors"
)

// Firmware is the supervisor binary interface: the services the kernel
// obtains from the machine monitor rather than from the hart itself.
type Firmware interface {
	// ConsolePutchar writes one byte to the console.
	ConsolePutchar(c byte)

	// ConsoleGetchar reads one byte from the console. ok is false once the
	// console input is exhausted.
	ConsoleGetchar() (c byte, ok bool)

	// SetTimer programs the next timer interrupt for the given value of
	// the time counter. It also clears any pending timer interrupt.
	SetTimer(stime uint64)

	// Shutdown powers the machine off.
	Shutdown(failure bool)
}

var (
	// ErrInstructionLimit is returned by the kernel when the configured
	// instruction budget has been used up before all tasks exited.
	ErrInstructionLimit = errors.New("instruction limit reached")

	// ErrShutdown is returned when the machine was powered off.
	ErrShutdown = errors.New("machine shut down")
)

// ConsoleWriter adapts a Firmware console to io.Writer.
type ConsoleWriter struct {
	Firmware Firmware
}

// Write implements io.Writer.Write.
func (w ConsoleWriter) Write(p []byte) (int, error) {
	for _, c := range p {
		w.Firmware.ConsolePutchar(c)
	}
	return len(p), nil
}
