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


// Package cmd holds implementations of the rvos commands.
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
	"gvisor.dev/rvos/pkg/apps"
	"gvisor.dev/rvos/pkg/sentry/loader"
)

// tabular is output that can also be rendered as a table.
type tabular interface {
	writeTable(w io.Writer) error
}

type outputFunc func(io.Writer, tabular) error

// A map of output type names to output functions.
var outputMap = map[string]outputFunc{
	"table": outputTable,
	"json":  outputJSON,
	"yaml":  outputYAML,
}

// output writes v to w in the named format.
func output(w io.Writer, format string, v tabular) error {
	out, ok := outputMap[format]
	if !ok {
		return fmt.Errorf("unsupported output format %q", format)
	}
	return out(w, v)
}

func outputTable(w io.Writer, v tabular) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if err := v.writeTable(tw); err != nil {
		return err
	}
	return tw.Flush()
}

func outputJSON(w io.Writer, v tabular) error {
	e := json.NewEncoder(w)
	e.SetIndent("", "  ")
	return e.Encode(v)
}

func outputYAML(w io.Writer, v tabular) error {
	e := yaml.NewEncoder(w)
	e.SetIndent(2)
	if err := e.Encode(v); err != nil {
		return err
	}
	return e.Close()
}

// isPath reports whether a program argument names an ELF file on the host
// rather than a built-in program.
func isPath(arg string) bool {
	return strings.ContainsRune(arg, os.PathSeparator) || strings.HasSuffix(arg, ".elf")
}

// programName is the catalog name of a program argument.
func programName(arg string) string {
	if !isPath(arg) {
		return arg
	}
	return strings.TrimSuffix(filepath.Base(arg), ".elf")
}

// buildCatalog returns a catalog with every built-in program plus the host
// ELF files named in args, and the catalog names of args in order. With no
// args, every built-in program is listed.
func buildCatalog(args []string) (*loader.Catalog, []string, error) {
	c, err := apps.Catalog()
	if err != nil {
		return nil, nil, err
	}
	if len(args) == 0 {
		return c, apps.Names(), nil
	}
	names := make([]string, 0, len(args))
	for _, arg := range args {
		name := programName(arg)
		if isPath(arg) {
			data, err := os.ReadFile(arg)
			if err != nil {
				return nil, nil, err
			}
			if err := c.Add(name, data); err != nil {
				return nil, nil, fmt.Errorf("adding %q: %w", arg, err)
			}
		} else if _, ok := c.Lookup(name); !ok {
			return nil, nil, fmt.Errorf("no built-in program %q", name)
		}
		names = append(names, name)
	}
	return c, names, nil
}
