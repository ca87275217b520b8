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

package log

import (
	"fmt"
	"time"
)

// ConsoleEmitter writes lines the way the kernel prints to its serial
// console: a bracketed level tag, optionally wrapped in an ANSI color.
type ConsoleEmitter struct {
	*Writer

	// Color enables ANSI color escapes.
	Color bool
}

func levelTag(level Level) (string, int) {
	switch level {
	case Error:
		return "ERROR", 31
	case Warning:
		return " WARN", 93
	case Info:
		return " INFO", 34
	case Debug:
		return "DEBUG", 32
	default:
		return "TRACE", 90
	}
}

// Emit implements Emitter.Emit.
func (c ConsoleEmitter) Emit(_ int, level Level, _ time.Time, format string, v ...any) {
	tag, color := levelTag(level)
	msg := fmt.Sprintf(format, v...)
	if c.Color {
		fmt.Fprintf(c.Writer, "\x1b[%dm[%s] %s\x1b[0m", color, tag, msg)
		return
	}
	fmt.Fprintf(c.Writer, "[%s] %s", tag, msg)
}
