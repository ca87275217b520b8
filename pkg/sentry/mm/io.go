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

package mm

import (
	"context"

	"gvisor.dev/rvos/pkg/errors/linuxerr"
	"gvisor.dev/rvos/pkg/hostarch"
	"gvisor.dev/rvos/pkg/ring0/pagetables"
	"gvisor.dev/rvos/pkg/safemem"
	"gvisor.dev/rvos/pkg/sentry/usermem"
)

// tableIO implements usermem.IO by walking page tables in software. It is how
// the kernel reaches user memory while its own page table is active.
type tableIO struct {
	pt  *pagetables.PageTables
	mem *safemem.Memory
}

// NewTokenIO returns a usermem.IO over the address space whose satp value is
// token. It does not take ownership of anything.
func NewTokenIO(mem *safemem.Memory, token uint64) usermem.IO {
	return tableIO{pt: pagetables.FromToken(mem, token), mem: mem}
}

func (as *AddressSpace) io() tableIO {
	return tableIO{pt: as.pt, mem: as.alloc.Memory()}
}

// Blocks returns the physical blocks backing [addr, addr+n). A range usually
// spans several blocks, one per page, since consecutive pages need not be
// physically contiguous.
//
// Unless opts.IgnorePermissions, every page must be a User page that allows
// at. A failure returns the blocks before the faulting page and EFAULT.
func (t tableIO) Blocks(addr hostarch.Addr, n int, at hostarch.AccessType, opts usermem.IOOpts) (safemem.BlockSeq, error) {
	end, ok := addr.AddLength(uint64(n))
	if !ok || !addr.IsCanonical() || (n > 0 && !(end-1).IsCanonical()) {
		return safemem.BlockSeq{}, linuxerr.EFAULT
	}
	var blocks []safemem.Block
	for cur := addr; cur < end; {
		pa, pte, ok := t.pt.Lookup(cur)
		if !ok {
			return safemem.BlockSeqFromSlice(blocks), linuxerr.EFAULT
		}
		if !opts.IgnorePermissions && (!pte.User() || !pte.AccessType().SupersetOf(at)) {
			return safemem.BlockSeqFromSlice(blocks), linuxerr.EFAULT
		}
		pageEnd := cur.RoundDown() + hostarch.PageSize
		if pageEnd == 0 || pageEnd > end {
			pageEnd = end
		}
		b, err := t.mem.Block(pa, int(pageEnd-cur))
		if err != nil {
			return safemem.BlockSeqFromSlice(blocks), linuxerr.EFAULT
		}
		blocks = append(blocks, b)
		cur = pageEnd
	}
	return safemem.BlockSeqFromSlice(blocks), nil
}

// CopyOut implements usermem.IO.CopyOut.
func (t tableIO) CopyOut(_ context.Context, addr hostarch.Addr, src []byte, opts usermem.IOOpts) (int, error) {
	bs, err := t.Blocks(addr, len(src), hostarch.Write, opts)
	return bs.CopyIn(src), err
}

// CopyIn implements usermem.IO.CopyIn.
func (t tableIO) CopyIn(_ context.Context, addr hostarch.Addr, dst []byte, opts usermem.IOOpts) (int, error) {
	bs, err := t.Blocks(addr, len(dst), hostarch.Read, opts)
	return bs.CopyOut(dst), err
}

// ZeroOut implements usermem.IO.ZeroOut.
func (t tableIO) ZeroOut(_ context.Context, addr hostarch.Addr, toZero int64, opts usermem.IOOpts) (int64, error) {
	bs, err := t.Blocks(addr, int(toZero), hostarch.Write, opts)
	var n int64
	for _, b := range bs.Blocks() {
		b.Zero()
		n += int64(b.Len())
	}
	return n, err
}

// CopyOut implements usermem.IO.CopyOut.
func (as *AddressSpace) CopyOut(ctx context.Context, addr hostarch.Addr, src []byte, opts usermem.IOOpts) (int, error) {
	return as.io().CopyOut(ctx, addr, src, opts)
}

// CopyIn implements usermem.IO.CopyIn.
func (as *AddressSpace) CopyIn(ctx context.Context, addr hostarch.Addr, dst []byte, opts usermem.IOOpts) (int, error) {
	return as.io().CopyIn(ctx, addr, dst, opts)
}

// ZeroOut implements usermem.IO.ZeroOut.
func (as *AddressSpace) ZeroOut(ctx context.Context, addr hostarch.Addr, toZero int64, opts usermem.IOOpts) (int64, error) {
	return as.io().ZeroOut(ctx, addr, toZero, opts)
}
