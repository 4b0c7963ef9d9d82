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

// Package analysistest contains the program fixtures and loading helpers shared by the tests of the analysis packages.
package analysistest

import (
	"bytes"
	"io/fs"
	"path"
	"testing"

	"github.com/awslabs/cryptoslice/analysis/config"
	"github.com/awslabs/cryptoslice/analysis/ir"
	"gopkg.in/yaml.v3"
)

// LoadTest loads the program in the directory dir of fsys, looking for a program.yaml and an optional config.yaml.
// Relative paths of the config are resolved against dir.
func LoadTest(t *testing.T, fsys fs.FS, dir string) (*ir.Program, *config.Config) {
	t.Helper()
	b, err := fs.ReadFile(fsys, path.Join(dir, "program.yaml"))
	if err != nil {
		t.Fatalf("error reading program: %v", err)
	}
	p, problems, err := ir.Decode(bytes.NewReader(b), ir.FormatYAML)
	if err != nil {
		t.Fatalf("error loading program: %v", err)
	}
	for _, problem := range problems {
		t.Logf("program problem: %v", problem)
	}
	cfg := config.NewDefault()
	if cb, err := fs.ReadFile(fsys, path.Join(dir, "config.yaml")); err == nil {
		if err := yaml.Unmarshal(cb, cfg); err != nil {
			t.Fatalf("error loading config: %v", err)
		}
		if err := cfg.Validate(); err != nil {
			t.Fatalf("invalid config: %v", err)
		}
	}
	return p, cfg
}

// Expectation is one expected finding of a test directory
type Expectation struct {
	Rule   string `yaml:"rule"`
	Caller string `yaml:"caller"`
	// Secure marks findings of the secure rule
	Secure bool `yaml:"secure,omitempty"`
}

// GetExpectedFindings reads the expect.yaml file of a test directory. A missing file means no finding is expected.
func GetExpectedFindings(t *testing.T, fsys fs.FS, dir string) []Expectation {
	t.Helper()
	b, err := fs.ReadFile(fsys, path.Join(dir, "expect.yaml"))
	if err != nil {
		return nil
	}
	var res []Expectation
	if err := yaml.Unmarshal(b, &res); err != nil {
		t.Fatalf("error reading expectations: %v", err)
	}
	return res
}
