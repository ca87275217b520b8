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

// Package linuxerr contains syscall error codes exported as an error interface
// pointers. This allows for fast comparison and return operations comperable
// to unix.Errno constants.
package linuxerr

import (
	goerrors "errors"

	"gvisor.dev/rvos/pkg/abi/linux/errno"
	"gvisor.dev/rvos/pkg/errors"
)

// The errors the kernel can report. They are compared by identity, possibly
// after unwrapping with the standard errors package.
var (
	noError *errors.Error = nil
	EPERM                 = errors.New(errno.EPERM, "operation not permitted")
	ENOENT                = errors.New(errno.ENOENT, "no such file or directory")
	ESRCH                 = errors.New(errno.ESRCH, "no such process")
	ENOEXEC               = errors.New(errno.ENOEXEC, "exec format error")
	EBADF                 = errors.New(errno.EBADF, "bad file number")
	ECHILD                = errors.New(errno.ECHILD, "no child processes")
	EAGAIN                = errors.New(errno.EAGAIN, "try again")
	ENOMEM                = errors.New(errno.ENOMEM, "out of memory")
	EFAULT                = errors.New(errno.EFAULT, "bad address")
	EINVAL                = errors.New(errno.EINVAL, "invalid argument")
	ENAMETOOLONG          = errors.New(errno.ENAMETOOLONG, "file name too long")
	ENOSYS                = errors.New(errno.ENOSYS, "invalid system call number")
)

var errNotValidError = goerrors.New("not a valid errno")

// errnoToError maps errno values to the sentinels above.
var errnoToError = map[errno.Errno]*errors.Error{
	errno.NOERRNO:      noError,
	errno.EPERM:        EPERM,
	errno.ENOENT:       ENOENT,
	errno.ESRCH:        ESRCH,
	errno.ENOEXEC:      ENOEXEC,
	errno.EBADF:        EBADF,
	errno.ECHILD:       ECHILD,
	errno.EAGAIN:       EAGAIN,
	errno.ENOMEM:       ENOMEM,
	errno.EFAULT:       EFAULT,
	errno.EINVAL:       EINVAL,
	errno.ENAMETOOLONG: ENAMETOOLONG,
	errno.ENOSYS:       ENOSYS,
}

// ErrorFromErrno gets an error from the list above.
func ErrorFromErrno(e errno.Errno) *errors.Error {
	if err, ok := errnoToError[e]; ok {
		return err
	}
	return errors.New(e, errNotValidError.Error())
}

// Equals reports whether err carries the errno of e. It unwraps err, so a
// fmt.Errorf("...: %w", EINVAL) still equals EINVAL. A nil e only equals a
// nil err.
func Equals(e *errors.Error, err error) bool {
	if e == nil {
		return err == nil
	}
	return goerrors.Is(err, e)
}

// ToErrno returns the errno carried by err, or EINVAL if err carries none.
func ToErrno(err error) errno.Errno {
	var le *errors.Error
	if goerrors.As(err, &le) && le != nil {
		return le.Errno()
	}
	return errno.EINVAL
}
