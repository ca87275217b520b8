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
	"fmt"
	"io"

	"gvisor.dev/rvos/pkg/abi/linux"
	"gvisor.dev/rvos/pkg/errors/linuxerr"
	"gvisor.dev/rvos/pkg/hostarch"
	"gvisor.dev/rvos/pkg/sentry/arch"
	"gvisor.dev/rvos/pkg/sentry/kernel"
	"gvisor.dev/rvos/pkg/sentry/platform"
)

// chunkSize bounds the kernel buffer used to move bytes between user memory
// and the console.
const chunkSize = hostarch.PageSize

// Write implements write(2) for the console.
func Write(t *kernel.Task, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	fd := args[0].Int()
	addr := args[1].Pointer()
	size := args[2].SizeT()
	if fd != linux.STDOUT_FILENO {
		return 0, nil, fmt.Errorf("write to fd %d: %w", fd, linuxerr.EBADF)
	}

	if size == 0 {
		return 0, nil, nil
	}
	w := platform.ConsoleWriter{Firmware: t.Kernel().Firmware()}
	src := io.LimitReader(t.UserReader(addr), int64(size))
	n, err := io.CopyBuffer(w, src, make([]byte, min(size, chunkSize)))
	if err != nil {
		return partial(uint(n), err)
	}
	return uintptr(n), nil, nil
}

// Read implements read(2) for the console. It returns after size bytes, a
// newline, or the end of input, whichever comes first; 0 means end of input.
func Read(t *kernel.Task, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	fd := args[0].Int()
	addr := args[1].Pointer()
	size := args[2].SizeT()
	if fd != linux.STDIN_FILENO {
		return 0, nil, fmt.Errorf("read from fd %d: %w", fd, linuxerr.EBADF)
	}

	fw := t.Kernel().Firmware()
	buf := make([]byte, 0, min(size, chunkSize))
	var total uint
	flush := func() error {
		n, err := t.CopyOutBytes(addr+hostarch.Addr(total), buf)
		total += uint(n)
		buf = buf[:0]
		return err
	}
	for total+uint(len(buf)) < size {
		c, ok := fw.ConsoleGetchar()
		if !ok {
			break
		}
		buf = append(buf, c)
		if len(buf) == cap(buf) {
			if err := flush(); err != nil {
				return partial(total, err)
			}
		}
		if c == '\n' {
			break
		}
	}
	if err := flush(); err != nil {
		return partial(total, err)
	}
	return uintptr(total), nil, nil
}

// partial returns n if some bytes were transferred before err.
func partial(n uint, err error) (uintptr, *kernel.SyscallControl, error) {
	if n > 0 {
		return uintptr(n), nil, nil
	}
	return 0, nil, err
}
