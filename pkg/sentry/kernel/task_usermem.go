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
	"gvisor.dev/rvos/pkg/hostarch"
	"gvisor.dev/rvos/pkg/sentry/mm"
	"gvisor.dev/rvos/pkg/sentry/usermem"
)

// MemoryIO returns the user memory of t as seen through its page table, with
// user permission checks.
func (t *Task) MemoryIO() usermem.IO {
	return mm.NewTokenIO(t.k.mem, t.space.Token())
}

// CopyInBytes copies len(dst) bytes from user address addr.
func (t *Task) CopyInBytes(addr hostarch.Addr, dst []byte) (int, error) {
	return t.MemoryIO().CopyIn(t.k.ctx, addr, dst, usermem.IOOpts{})
}

// CopyOutBytes copies src to user address addr.
func (t *Task) CopyOutBytes(addr hostarch.Addr, src []byte) (int, error) {
	return t.MemoryIO().CopyOut(t.k.ctx, addr, src, usermem.IOOpts{})
}

// CopyOutUint32 writes v to user address addr.
func (t *Task) CopyOutUint32(addr hostarch.Addr, v uint32) (int, error) {
	return usermem.CopyUint32Out(t.k.ctx, t.MemoryIO(), addr, v, usermem.IOOpts{})
}

// UserReader returns a reader of the user memory starting at addr.
func (t *Task) UserReader(addr hostarch.Addr) *usermem.IOReadWriter {
	return &usermem.IOReadWriter{Ctx: t.k.ctx, IO: t.MemoryIO(), Addr: addr}
}

// CopyInString copies a NUL-terminated string of at most maxlen bytes from
// user address addr.
func (t *Task) CopyInString(addr hostarch.Addr, maxlen int) (string, error) {
	return usermem.CopyStringIn(t.k.ctx, t.MemoryIO(), addr, maxlen, usermem.IOOpts{})
}
