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

package linux

import (
	"encoding/binary"
	"time"
)

// SizeOfTimeval is the size of a Timeval struct in bytes.
const SizeOfTimeval = 16

// MicrosPerSec is the number of microseconds in a second.
const MicrosPerSec = 1_000_000

// Timeval represents struct timeval in <time.h>.
type Timeval struct {
	Sec  int64
	Usec int64
}

// MicrosToTimeval splits a microsecond count into seconds and microseconds.
func MicrosToTimeval(us uint64) Timeval {
	return Timeval{
		Sec:  int64(us / MicrosPerSec),
		Usec: int64(us % MicrosPerSec),
	}
}

// ToDuration returns the Timeval as a time.Duration.
func (tv Timeval) ToDuration() time.Duration {
	return time.Duration(tv.Sec)*time.Second + time.Duration(tv.Usec)*time.Microsecond
}

// Millis returns the Timeval in milliseconds, the unit user programs compare
// against.
func (tv Timeval) Millis() int64 {
	return tv.Sec*1000 + tv.Usec/1000
}

// MarshalBytes serializes tv in the little-endian user layout.
func (tv Timeval) MarshalBytes() []byte {
	b := make([]byte, SizeOfTimeval)
	binary.LittleEndian.PutUint64(b[0:], uint64(tv.Sec))
	binary.LittleEndian.PutUint64(b[8:], uint64(tv.Usec))
	return b
}

// UnmarshalBytes is the inverse of MarshalBytes.
func (tv *Timeval) UnmarshalBytes(b []byte) {
	tv.Sec = int64(binary.LittleEndian.Uint64(b[0:]))
	tv.Usec = int64(binary.LittleEndian.Uint64(b[8:]))
}
