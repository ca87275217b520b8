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


// Package config provides basic infrastructure to set configuration settings
// for rvos. Each setting that can be set by a flag is a field of Config with
// a `flag` tag naming it. A TOML file passed with --config supplies values
// for any flag not given on the command line.
package config

import (
	"fmt"
	"strconv"

	"github.com/mohae/deepcopy"
	"gvisor.dev/rvos/pkg/hostarch"
	"gvisor.dev/rvos/pkg/log"
)

// Config holds configuration that is not part of the programs being run.
type Config struct {
	// ConfigFile is a TOML file with default values for the flags below.
	ConfigFile string `flag:"config"`

	// KernelBase is where physical memory, and the kernel image, start.
	KernelBase Address `flag:"kernel-base"`

	// MemoryEnd is the end of physical memory.
	MemoryEnd Address `flag:"memory-end"`

	// ClockFreq is the frequency of the time counter in Hz.
	ClockFreq uint64 `flag:"clock-freq"`

	// TicksPerSec is the number of timer interrupts per second.
	TicksPerSec uint64 `flag:"ticks-per-sec"`

	// CyclesPerInsn is how far the time counter advances per instruction.
	CyclesPerInsn uint64 `flag:"cycles-per-insn"`

	// MaxApps is the size of the task table.
	MaxApps int `flag:"max-apps"`

	// UserStackSize is the size of each user stack.
	UserStackSize uint64 `flag:"user-stack-size"`

	// KernelStackSize is the size of each kernel stack.
	KernelStackSize uint64 `flag:"kernel-stack-size"`

	// InstructionLimit stops the kernel after this many instructions. Zero
	// means no limit.
	InstructionLimit uint64 `flag:"insn-limit"`

	// LogLevel is the minimum level that is logged.
	LogLevel string `flag:"log-level"`

	// LogFormat is the log format.
	LogFormat LogFormat `flag:"log-format"`

	// DebugLog is the path to log to. Empty means stderr.
	DebugLog string `flag:"debug-log"`

	// Preempt enables the timer interrupt.
	Preempt bool `flag:"preempt"`

	// RawConsole puts a terminal stdin in raw mode while the kernel runs.
	RawConsole bool `flag:"raw-console"`
}

func (c *Config) validate() error {
	if c.MemoryEnd <= c.KernelBase {
		return fmt.Errorf("memory-end %v must be above kernel-base %v", c.MemoryEnd, c.KernelBase)
	}
	if !hostarch.Addr(c.KernelBase).IsPageAligned() || !hostarch.Addr(c.MemoryEnd).IsPageAligned() {
		return fmt.Errorf("kernel-base %v and memory-end %v must be page aligned", c.KernelBase, c.MemoryEnd)
	}
	if c.ClockFreq == 0 || c.TicksPerSec == 0 {
		return fmt.Errorf("clock-freq (%d) and ticks-per-sec (%d) must be positive", c.ClockFreq, c.TicksPerSec)
	}
	if c.CyclesPerInsn == 0 {
		return fmt.Errorf("cycles-per-insn must be positive")
	}
	if c.MaxApps <= 0 {
		return fmt.Errorf("max-apps must be positive, got %d", c.MaxApps)
	}
	for name, size := range map[string]uint64{"user-stack-size": c.UserStackSize, "kernel-stack-size": c.KernelStackSize} {
		if size == 0 || size%hostarch.PageSize != 0 {
			return fmt.Errorf("%s %d must be a positive multiple of %d", name, size, hostarch.PageSize)
		}
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Validate checks that the configuration is consistent.
func (c *Config) Validate() error {
	return c.validate()
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	return deepcopy.Copy(c).(*Config)
}

// Level returns the parsed log level. The level has been validated.
func (c *Config) Level() log.Level {
	l, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("config not validated: %v", err))
	}
	return l
}

// Log logs important aspects of the configuration to the given log function.
func (c *Config) Log() {
	log.Infof("Config:")
	for _, f := range c.allFlags() {
		log.Infof("\t%s: %s", f.name, f.value)
	}
}

// Address is a physical address flag. It accepts any integer syntax Go does
// and prints in hex.
type Address uint64

// Set implements flag.Value.Set.
func (a *Address) Set(s string) error {
	v, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return fmt.Errorf("invalid address %q: %w", s, err)
	}
	*a = Address(v)
	return nil
}

// Get implements flag.Getter.Get.
func (a *Address) Get() any {
	return *a
}

// String implements flag.Value.String.
func (a *Address) String() string {
	return fmt.Sprintf("%#x", uint64(*a))
}

// PhysAddr returns the address as a hostarch.PhysAddr.
func (a Address) PhysAddr() hostarch.PhysAddr {
	return hostarch.MakePhysAddr(uint64(a))
}

// LogFormat selects how log lines are rendered.
type LogFormat string

const (
	// LogFormatKernel is the kernel console style: "[ INFO] message".
	LogFormatKernel LogFormat = "kernel"

	// LogFormatText is glog style.
	LogFormatText LogFormat = "text"

	// LogFormatJSON is one JSON object per line.
	LogFormatJSON LogFormat = "json"
)

// Set implements flag.Value.Set.
func (f *LogFormat) Set(v string) error {
	switch LogFormat(v) {
	case LogFormatKernel, LogFormatText, LogFormatJSON:
		*f = LogFormat(v)
		return nil
	}
	return fmt.Errorf("invalid log format %q", v)
}

// Get implements flag.Getter.Get.
func (f *LogFormat) Get() any {
	return *f
}

// String implements flag.Value.String.
func (f *LogFormat) String() string {
	return string(*f)
}
