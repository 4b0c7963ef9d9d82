// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ir

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"
)

// Format is the encoding of a program dump
type Format int

const (
	// FormatYAML is used for .yaml, .yml and .json dumps (json is read as yaml)
	FormatYAML Format = iota
	// FormatMsgpack is used for .msgpack and .mp dumps
	FormatMsgpack
)

// FormatOf returns the format of a dump from its file extension
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return FormatYAML, nil
	case ".msgpack", ".mp":
		return FormatMsgpack, nil
	default:
		return FormatYAML, fmt.Errorf("unknown program dump extension %q (expected .yaml, .yml, .json, .msgpack "+
			"or .mp)", filepath.Ext(path))
	}
}

// Load reads a program dump from a file, and finalizes the program. The first error list contains the non-fatal
// problems found in method bodies; the last error is set when the file cannot be read or decoded.
func Load(path string) (*Program, []error, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("could not read program dump: %w", err)
	}
	return Decode(bytes.NewReader(b), format)
}

// Decode reads a program dump in the given format, and finalizes the program.
func Decode(r io.Reader, format Format) (*Program, []error, error) {
	p := &Program{}
	switch format {
	case FormatMsgpack:
		if err := msgpack.NewDecoder(r).Decode(p); err != nil {
			return nil, nil, fmt.Errorf("could not decode msgpack program dump: %w", err)
		}
	default:
		if err := yaml.NewDecoder(r).Decode(p); err != nil {
			return nil, nil, fmt.Errorf("could not decode program dump: %w", err)
		}
	}
	problems := p.Finalize()
	return p, problems, nil
}

// Save writes the program to a file, in the format given by the extension of the path
func Save(p *Program, path string) error {
	format, err := FormatOf(path)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("could not create %s: %w", path, err)
	}
	if err := Encode(f, p, format); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Encode writes the program in the given format
func Encode(w io.Writer, p *Program, format Format) error {
	switch format {
	case FormatMsgpack:
		if err := msgpack.NewEncoder(w).Encode(p); err != nil {
			return fmt.Errorf("could not encode program: %w", err)
		}
	default:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(p); err != nil {
			return fmt.Errorf("could not encode program: %w", err)
		}
		return enc.Close()
	}
	return nil
}
