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

// Package sync provides synchronization primitives for a kernel that runs on
// exactly one hart.
//
// There is no preemption inside kernel code, so shared kernel state needs no
// lock. What it does need is a guard against reentrancy: a second borrow of
// the same state while the first is live means two kernel paths believe they
// own it. Cell turns that situation into an immediate panic.
package sync

import (
	"sync"
)

// Aliases to standard library types, for code that genuinely is concurrent
// (the host console and the command line driver).
type (
	// Mutex is an alias of sync.Mutex.
	Mutex = sync.Mutex

	// Once is an alias of sync.Once.
	Once = sync.Once
)
