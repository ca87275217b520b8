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

package errors

import (
	goerrors "errors"
	"fmt"
	"testing"

	"gvisor.dev/rvos/pkg/abi/linux/errno"
)

func TestIs(t *testing.T) {
	inval := New(errno.EINVAL, "invalid argument")
	for _, tc := range []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{"same value", inval, inval, true},
		{"same errno", New(errno.EINVAL, "bad start"), inval, true},
		{"wrapped", fmt.Errorf("mmap: %w", inval), inval, true},
		{"other errno", New(errno.EFAULT, "bad address"), inval, false},
		{"plain error", goerrors.New("invalid argument"), inval, false},
		{"nil target", inval, (*Error)(nil), false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got := goerrors.Is(tc.err, tc.target); got != tc.want {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tc.err, tc.target, got, tc.want)
			}
		})
	}
}

func TestErrno(t *testing.T) {
	err := New(errno.ENOMEM, "out of memory")
	if got := err.Errno(); got != errno.ENOMEM {
		t.Errorf("Errno() = %v, want %v", got, errno.ENOMEM)
	}
	if got := err.Error(); got != "out of memory" {
		t.Errorf("Error() = %q", got)
	}
}
