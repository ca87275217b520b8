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

// Package errors holds the errno-carrying error type used inside the kernel.
//
// Kernel operations return an *Error, possibly wrapped with context by
// fmt.Errorf and %w. At the syscall boundary every error collapses to a
// return value of -1; the errno only survives in logs and in tests.
package errors

import (
	"gvisor.dev/rvos/pkg/abi/linux/errno"
)

// Error is a kernel error carrying an errno and a short description.
type Error struct {
	errno   errno.Errno
	message string
}

// New returns an *Error for err. Callers normally use the sentinels in
// linuxerr rather than creating new values.
func New(err errno.Errno, message string) *Error {
	return &Error{
		errno:   err,
		message: message,
	}
}

// Error implements error.Error.
func (e *Error) Error() string { return e.message }

// Errno returns the errno carried by e.
func (e *Error) Errno() errno.Errno { return e.errno }

// Is reports whether target is an *Error with the same errno, so that
// errors.Is matches values built separately for one errno.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e != nil && t != nil && e.errno == t.errno
}
