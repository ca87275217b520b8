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


// Package apps holds the built-in user programs. Each is assembled with
// rvasm into a static RISC-V ELF executable when first requested.
package apps

import (
	"fmt"

	"gvisor.dev/rvos/pkg/sentry/loader"
	"gvisor.dev/rvos/pkg/sync"
)

// App describes a built-in program.
type App struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`

	// Faults is true for programs that are expected to be killed.
	Faults bool `json:"faults,omitempty" yaml:"faults,omitempty"`

	build func(a *asm)
}

// registry lists the programs in boot order.
var registry = []*App{
	{Name: "hello_world", Description: "prints a greeting", build: helloWorld},
	{Name: "sleep", Description: "waits three seconds of machine time with get_time and yield", build: sleep},
	{Name: "mmap", Description: "checks mmap argument validation and uses the mapping", build: mmapTest},
	{Name: "power", Description: "a compute loop that only yields when preempted", build: power},
	{Name: "yield", Description: "prints its pid and yields five times", build: yieldTest},
	{Name: "exit_code", Description: "exits with code 7", build: exitCode},
	{Name: "fork_exec", Description: "forks a child that execs exit_code and waits for it", build: forkExec},
	{Name: "wait_none", Description: "waitpid without children", build: waitNone},
	{Name: "illegal", Description: "executes sret in user mode", Faults: true, build: illegal},
	{Name: "bad_address", Description: "stores to address zero", Faults: true, build: badAddress},
	{Name: "munmap", Description: "unmaps a mapping and stores to it", Faults: true, build: munmapTest},
	{Name: "echo", Description: "copies console input to console output", build: echo},
}

var (
	mu     sync.Mutex
	images = make(map[string][]byte)
)

// List returns every built-in program in boot order.
func List() []App {
	out := make([]App, len(registry))
	for i, app := range registry {
		out[i] = *app
	}
	return out
}

// Names returns the names of every built-in program in boot order.
func Names() []string {
	names := make([]string, len(registry))
	for i, app := range registry {
		names[i] = app.Name
	}
	return names
}

func lookup(name string) (*App, bool) {
	for _, app := range registry {
		if app.Name == name {
			return app, true
		}
	}
	return nil, false
}

// Build returns the ELF image of program name. Images are cached; callers
// must not modify them.
func Build(name string) ([]byte, error) {
	mu.Lock()
	defer mu.Unlock()
	if img, ok := images[name]; ok {
		return img, nil
	}
	app, ok := lookup(name)
	if !ok {
		return nil, fmt.Errorf("no built-in program %q", name)
	}
	a := newAsm()
	app.build(a)
	img, err := a.link()
	if err != nil {
		return nil, fmt.Errorf("building %q: %w", name, err)
	}
	images[name] = img
	return img, nil
}

// Catalog returns a catalog holding the named programs, or every built-in
// program if names is empty.
func Catalog(names ...string) (*loader.Catalog, error) {
	if len(names) == 0 {
		names = Names()
	}
	c := loader.NewCatalog()
	for _, name := range names {
		img, err := Build(name)
		if err != nil {
			return nil, err
		}
		if err := c.Add(name, img); err != nil {
			return nil, err
		}
	}
	return c, nil
}
