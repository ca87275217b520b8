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
	"gvisor.dev/rvos/pkg/abi/linux"
	"gvisor.dev/rvos/pkg/sentry/arch"
	"gvisor.dev/rvos/pkg/sentry/kernel"
)

// GetTime implements gettimeofday(2). The time is the hart's time counter
// since boot.
func GetTime(t *kernel.Task, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	addr := args[0].Pointer()
	tv := linux.MicrosToTimeval(t.Kernel().TimeMicros())
	if _, err := t.CopyOutBytes(addr, tv.MarshalBytes()); err != nil {
		return 0, nil, err
	}
	return 0, nil, nil
}
