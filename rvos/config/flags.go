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


package config

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"

	"github.com/BurntSushi/toml"
	"gvisor.dev/rvos/pkg/hostarch"
	"gvisor.dev/rvos/rvos/flag"
)

// Defaults for the machine flags.
const (
	DefaultKernelBase = 0x80200000
	DefaultMemoryEnd  = 0x80800000
	DefaultClockFreq  = 10000000
	DefaultTicks      = 100
	DefaultMaxApps    = 16
	DefaultStackSize  = 2 * hostarch.PageSize
)

// RegisterFlags registers flags used to populate Config.
func RegisterFlags(flagSet *flag.FlagSet) {
	flagSet.String("config", "", "TOML file with default values for any of these flags. Flags given on the command line take precedence.")

	// Machine flags.
	flagSet.Var(addressPtr(DefaultKernelBase), "kernel-base", "physical address where memory and the kernel image start.")
	flagSet.Var(addressPtr(DefaultMemoryEnd), "memory-end", "end of physical memory.")
	flagSet.Uint64("clock-freq", DefaultClockFreq, "frequency of the time counter in Hz.")
	flagSet.Uint64("ticks-per-sec", DefaultTicks, "timer interrupts per second.")
	flagSet.Uint64("cycles-per-insn", 1, "time counter cycles per retired instruction.")
	flagSet.Uint64("insn-limit", 0, "stop after this many instructions. 0 means no limit.")
	flagSet.Bool("preempt", true, "enable timer preemption.")

	// Kernel flags.
	flagSet.Int("max-apps", DefaultMaxApps, "maximum number of live tasks.")
	flagSet.Uint64("user-stack-size", DefaultStackSize, "size of each user stack. Must be page aligned.")
	flagSet.Uint64("kernel-stack-size", DefaultStackSize, "size of each kernel stack. Must be page aligned.")

	// Debugging flags.
	flagSet.String("log-level", "info", "minimum level logged: error, warning, info, debug or trace.")
	flagSet.Var(logFormatPtr(LogFormatKernel), "log-format", "log format: kernel (default), text or json.")
	flagSet.String("debug-log", "", "additional location for logs. Empty means stderr only.")
	flagSet.Bool("raw-console", false, "put a terminal stdin in raw mode while the kernel runs.")
}

func addressPtr(v uint64) *Address {
	a := Address(v)
	return &a
}

func logFormatPtr(v LogFormat) *LogFormat {
	return &v
}

// NewFromFlags creates a new Config with values coming from the given flag
// set, and from the file named by --config for flags that were not set.
func NewFromFlags(flagSet *flag.FlagSet) (*Config, error) {
	conf := &Config{}
	obj := reflect.ValueOf(conf).Elem()
	st := obj.Type()
	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		name, ok := f.Tag.Lookup("flag")
		if !ok {
			// No flag set for this field.
			continue
		}
		fl := flagSet.Lookup(name)
		if fl == nil {
			panic(fmt.Sprintf("Flag %q not found", name))
		}
		x := reflect.ValueOf(flag.Get(fl.Value))
		obj.Field(i).Set(x)
	}

	if conf.ConfigFile != "" {
		if err := conf.loadFile(flagSet, conf.ConfigFile); err != nil {
			return nil, err
		}
	}

	if err := conf.validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// loadFile applies every key of a TOML file whose flag was not given
// explicitly. Keys are flag names.
func (c *Config) loadFile(flagSet *flag.FlagSet, path string) error {
	values := make(map[string]any)
	if _, err := toml.DecodeFile(path, &values); err != nil {
		return fmt.Errorf("reading config file %q: %w", path, err)
	}

	// Sorted, so that errors are deterministic.
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, name := range keys {
		if name == "config" {
			return fmt.Errorf("config file %q: nested config files are not supported", path)
		}
		if flag.IsSet(flagSet, name) {
			continue
		}
		var s string
		switch v := values[name].(type) {
		case string:
			s = v
		case int64:
			s = strconv.FormatInt(v, 10)
		case bool:
			s = strconv.FormatBool(v)
		default:
			return fmt.Errorf("config file %q: key %q has unsupported type %T", path, name, v)
		}
		if err := c.set(flagSet, name, s); err != nil {
			return fmt.Errorf("config file %q: %w", path, err)
		}
	}
	return nil
}

// ToFlags returns a slice of flags that correspond to the given Config.
func (c *Config) ToFlags() []string {
	var rv []string
	for _, f := range c.allFlags() {
		if f.value == f.def {
			continue
		}
		rv = append(rv, fmt.Sprintf("--%s=%s", f.name, f.value))
	}
	return rv
}

type flagValue struct {
	name  string
	value string
	def   string
}

// allFlags returns every flag field with its current and default value, in
// field order.
func (c *Config) allFlags() []flagValue {
	// Construct a temporary set for default plumbing.
	flagSet := flag.NewFlagSet("tmp", flag.ContinueOnError)
	RegisterFlags(flagSet)

	var rv []flagValue
	obj := reflect.ValueOf(c).Elem()
	st := obj.Type()
	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		name, ok := f.Tag.Lookup("flag")
		if !ok {
			// No flag set for this field.
			continue
		}
		fl := flagSet.Lookup(name)
		if fl == nil {
			panic(fmt.Sprintf("Flag %q not found", name))
		}
		rv = append(rv, flagValue{name: name, value: getVal(obj.Field(i)), def: fl.DefValue})
	}
	return rv
}

// Override writes a new value to a flag.
func (c *Config) Override(flagSet *flag.FlagSet, name string, value string) error {
	if err := c.set(flagSet, name, value); err != nil {
		return err
	}
	// Validates the config again to ensure it's left in a consistent state.
	return c.validate()
}

func (c *Config) set(flagSet *flag.FlagSet, name string, value string) error {
	obj := reflect.ValueOf(c).Elem()
	st := obj.Type()
	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		fieldName, ok := f.Tag.Lookup("flag")
		if !ok || fieldName != name {
			// Not a flag field, or flag name doesn't match.
			continue
		}
		fl := flagSet.Lookup(name)
		if fl == nil {
			// Flag must exist if there is a field match above.
			panic(fmt.Sprintf("Flag %q not found", name))
		}

		// Use flag to convert the string value to the underlying flag type, using
		// the same rules as the command-line for consistency.
		if err := fl.Value.Set(value); err != nil {
			return fmt.Errorf("error setting flag %s=%q: %w", name, value, err)
		}
		x := reflect.ValueOf(flag.Get(fl.Value))
		obj.Field(i).Set(x)
		return nil
	}
	return fmt.Errorf("flag %q not found. Cannot set it to %q", name, value)
}

func getVal(field reflect.Value) string {
	if str, ok := field.Addr().Interface().(fmt.Stringer); ok {
		return str.String()
	}
	switch field.Kind() {
	case reflect.Bool:
		return strconv.FormatBool(field.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(field.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(field.Uint(), 10)
	case reflect.String:
		return field.String()
	default:
		panic("unknown type " + field.Kind().String())
	}
}
