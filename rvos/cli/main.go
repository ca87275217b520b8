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


// Package cli is the main entrypoint for rvos.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/google/subcommands"
	"golang.org/x/term"
	"gvisor.dev/rvos/pkg/log"
	"gvisor.dev/rvos/rvos/cmd"
	"gvisor.dev/rvos/rvos/cmd/util"
	"gvisor.dev/rvos/rvos/config"
	"gvisor.dev/rvos/rvos/flag"
	"gvisor.dev/rvos/rvos/version"
)

// versionFlagName is the name of a flag that triggers printing the version.
const versionFlagName = "version"

// Main is the main entrypoint.
func Main() {
	// Register all commands.
	forEachCmd(subcommands.Register)

	// Register with the main command line.
	config.RegisterFlags(flag.CommandLine)

	// Register version flag if it is not already defined.
	if flag.CommandLine.Lookup(versionFlagName) == nil {
		flag.Bool(versionFlagName, false, "show version and exit.")
	}

	// All subcommands must be registered before flag parsing.
	flag.Parse()

	// Are we showing the version?
	if flag.Get(flag.CommandLine.Lookup(versionFlagName).Value).(bool) {
		fmt.Fprintf(os.Stdout, "rvos version %s\n", version.Version())
		os.Exit(0)
	}

	// Create a new Config from the flags.
	conf, err := config.NewFromFlags(flag.CommandLine)
	if err != nil {
		util.Fatalf("%v", err)
	}

	// Set up logging.
	log.SetLevel(conf.Level())
	emitters := log.MultiEmitter{newEmitter(conf.LogFormat, os.Stderr, term.IsTerminal(int(os.Stderr.Fd())))}
	if conf.DebugLog != "" {
		f, err := os.OpenFile(conf.DebugLog, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
		if err != nil {
			util.Fatalf("error opening debug log file %q: %v", conf.DebugLog, err)
		}
		defer f.Close()
		emitters = append(emitters, newEmitter(conf.LogFormat, f, false))
	}
	switch len(emitters) {
	case 1:
		// Use the singular emitter to avoid needless
		// `for` loop overhead when logging to a single place.
		log.SetTarget(emitters[0])
	default:
		log.SetTarget(&emitters)
	}

	const delimString = `**************** rvos ****************`
	log.Debugf(delimString)
	log.Debugf("Version %s, %s, %s, PID %d", version.Version(), runtime.Version(), runtime.GOARCH, os.Getpid())
	log.Debugf("Args: %v", os.Args)
	if log.IsLogging(log.Debug) {
		conf.Log()
	}
	log.Debugf(delimString)

	// Call the subcommand and pass in the configuration.
	subcmdCode := subcommands.Execute(context.Background(), conf)
	if subcmdCode != subcommands.ExitSuccess {
		log.Debugf("Failure to execute command, err: %v", subcmdCode)
	}
	os.Exit(int(subcmdCode))
}

// forEachCmd invokes the passed callback for each command supported by rvos.
func forEachCmd(cb func(cmd subcommands.Command, group string)) {
	// Help and flags commands are generated automatically.
	cb(subcommands.HelpCommand(), "")
	cb(subcommands.FlagsCommand(), "")
	cb(subcommands.CommandsCommand(), "")

	cb(new(cmd.Boot), "")
	cb(new(cmd.Apps), "")

	// Helpers.
	const helperGroup = "helpers"
	cb(new(cmd.BuildApp), helperGroup)

	const debugGroup = "debug"
	cb(new(cmd.Layout), debugGroup)
	cb(new(cmd.Syscalls), debugGroup)
}

func newEmitter(format config.LogFormat, logFile io.Writer, color bool) log.Emitter {
	switch format {
	case config.LogFormatKernel:
		return log.ConsoleEmitter{Writer: &log.Writer{Next: logFile}, Color: color}
	case config.LogFormatText:
		return log.GoogleEmitter{Writer: &log.Writer{Next: logFile}}
	case config.LogFormatJSON:
		return log.JSONEmitter{Writer: &log.Writer{Next: logFile}}
	}
	util.Fatalf("invalid log format %q, must be 'kernel', 'text', or 'json'", format)
	panic("unreachable")
}
