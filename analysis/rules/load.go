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

package rules

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/awslabs/cryptoslice/analysis/config"
	"gopkg.in/yaml.v3"
)

// Load reads the rule files of dir. JSON and YAML files are accepted; other files and subdirectories are ignored. A
// file that cannot be parsed or is not a valid rule is skipped with a warning. The rules are returned sorted by
// number.
func Load(dir string, logger *config.LogGroup) ([]*Rule, error) {
	rules, invalid, err := LoadAll(dir)
	if err != nil {
		return nil, err
	}
	for _, e := range invalid {
		logger.Warnf("cannot import rule %v", e)
	}
	logger.Debugf("loaded %d rules from %s", len(rules), dir)
	return rules, nil
}

// FileError is the error of a rule file that could not be loaded
type FileError struct {
	File string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("file %s: %v", e.File, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// LoadAll reads the rule files of dir, and returns the valid rules sorted by number along with one *FileError per
// invalid file. The error is set only when the directory cannot be read.
func LoadAll(dir string) ([]*Rule, []error, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("could not read rules directory: %w", err)
	}
	var rules []*Rule
	var invalid []error
	for _, e := range entries {
		if e.IsDir() || !isRuleFile(e.Name()) {
			continue
		}
		r, err := LoadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			invalid = append(invalid, &FileError{File: e.Name(), Err: err})
			continue
		}
		rules = append(rules, r)
	}
	SortRules(rules)
	return rules, invalid, nil
}

func isRuleFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}

// LoadFile reads and validates a single rule file
func LoadFile(path string) (*Rule, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	r, err := Parse(b)
	if err != nil {
		return nil, err
	}
	r.Name = filepath.Base(path)
	return r, nil
}

// Parse decodes and validates a rule. JSON is read as YAML.
func Parse(b []byte) (*Rule, error) {
	r := &Rule{}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(r); err != nil {
		return nil, fmt.Errorf("could not parse rule: %w", err)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}
