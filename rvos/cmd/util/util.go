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


// Package util groups a bunch of common helper functions used by commands.
package util

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"gvisor.dev/rvos/pkg/log"
)

// ErrorLogger is where error messages should be written to. These messages are
// consumed by the caller of rvos, for example a script driving the kernel.
var ErrorLogger io.Writer

// Infof writes message to log and stdout.
func Infof(format string, args ...any) {
	log.Infof(format, args...)
	fmt.Printf(format+"\n", args...)
}

// Errorf logs the error to the debug log and writes it to ErrorLogger, or
// stderr if ErrorLogger is unset. It returns the formatted error.
func Errorf(format string, args ...any) error {
	log.Warningf(format, args...)

	writeError(format, args...)
	return fmt.Errorf(format, args...)
}

// Fatalf logs the same way as Errorf() does, plus *exits* the process.
func Fatalf(format string, args ...any) {
	Errorf(format, args...)
	// Return an error that is unlikely to be used by the application.
	os.Exit(128)
}

func writeError(format string, args ...any) {
	if ErrorLogger == nil {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
		return
	}
	// Log to the error logger in JSON, for consumers that parse it.
	j := jsonError{
		Msg:   fmt.Sprintf(format, args...),
		Level: "error",
		Time:  time.Now(),
	}
	b, err := json.Marshal(j)
	if err != nil {
		panic(err)
	}
	ErrorLogger.Write(b)
	ErrorLogger.Write([]byte("\n"))
}

type jsonError struct {
	Msg   string    `json:"msg"`
	Level string    `json:"level"`
	Time  time.Time `json:"time"`
}
