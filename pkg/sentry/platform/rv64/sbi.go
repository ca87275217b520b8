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
	"bufio"
	"io"

	"gvisor.dev/rvos/pkg/log"
	"gvisor.dev/rvos/pkg/sentry/platform"
)

// SBI is the machine firmware attached to a hart: a console backed by host
// streams, the timer, and the power switch.
type SBI struct {
	hart *Hart
	out  io.Writer
	in   *bufio.Reader

	shutdown bool
	failure  bool
}

var _ platform.Firmware = (*SBI)(nil)

// NewSBI returns firmware for h. in may be nil, in which case the console
// has no input.
func NewSBI(h *Hart, out io.Writer, in io.Reader) *SBI {
	s := &SBI{hart: h, out: out}
	if in != nil {
		s.in = bufio.NewReader(in)
	}
	return s
}

// ConsolePutchar implements platform.Firmware.ConsolePutchar.
func (s *SBI) ConsolePutchar(c byte) {
	if _, err := s.out.Write([]byte{c}); err != nil {
		log.Warningf("console write: %v", err)
	}
}

// ConsoleGetchar implements platform.Firmware.ConsoleGetchar.
func (s *SBI) ConsoleGetchar() (byte, bool) {
	if s.in == nil {
		return 0, false
	}
	c, err := s.in.ReadByte()
	if err != nil {
		if err != io.EOF {
			log.Warningf("console read: %v", err)
		}
		return 0, false
	}
	return c, true
}

// SetTimer implements platform.Firmware.SetTimer.
func (s *SBI) SetTimer(stime uint64) {
	s.hart.SetTimer(stime)
}

// Shutdown implements platform.Firmware.Shutdown.
func (s *SBI) Shutdown(failure bool) {
	s.shutdown, s.failure = true, failure
}

// ShutdownRequested reports whether Shutdown was called and with what
// status.
func (s *SBI) ShutdownRequested() (requested, failure bool) {
	return s.shutdown, s.failure
}
