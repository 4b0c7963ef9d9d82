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

// Package report formats the findings of an analysis run as text, JSON or YAML.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/awslabs/cryptoslice/analysis/ir"
	"github.com/awslabs/cryptoslice/analysis/rules"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Formats of the reports
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Report is the result of an analysis run
type Report struct {
	RunID    string          `yaml:"run-id" json:"runId"`
	Input    string          `yaml:"input" json:"input"`
	Package  string          `yaml:"package,omitempty" json:"package,omitempty"`
	Findings []rules.Finding `yaml:"findings" json:"findings"`
	Stats    Stats           `yaml:"stats" json:"stats"`
}

// Stats are the counters of an analysis run
type Stats struct {
	Rules      int `yaml:"rules" json:"rules"`
	Seeds      int `yaml:"seeds" json:"seeds"`
	Partials   int `yaml:"partials" json:"partials"`
	Processed  int `yaml:"processed" json:"processed"`
	Memoized   int `yaml:"memoized" json:"memoized"`
	Infeasible int `yaml:"infeasible" json:"infeasible"`
	Combined   int `yaml:"combined" json:"combined"`
	// Dropped counts the findings removed by the filters
	Dropped int `yaml:"dropped,omitempty" json:"dropped,omitempty"`
}

// Filter selects the findings reported
type Filter struct {
	// MaxAlarms caps the number of findings; no cap when <= 0
	MaxAlarms int
	// DevOnly keeps only the findings in application classes, as decided by IsDev
	DevOnly bool
	IsDev   func(class string) bool
}

// Apply returns the findings kept by the filter, in order
func (f Filter) Apply(findings []rules.Finding) []rules.Finding {
	var res []rules.Finding
	for _, x := range findings {
		if f.MaxAlarms > 0 && len(res) >= f.MaxAlarms {
			break
		}
		if f.DevOnly && f.IsDev != nil && !f.IsDev(ir.ClassName(x.Caller)) {
			continue
		}
		res = append(res, x)
	}
	return res
}

// New returns the report of a run over the input, with a fresh run id. The findings are filtered.
func New(input string, pkg string, findings []rules.Finding, stats Stats, filter Filter) *Report {
	kept := filter.Apply(findings)
	stats.Dropped = len(findings) - len(kept)
	return &Report{
		RunID:    uuid.New().String(),
		Input:    input,
		Package:  pkg,
		Findings: kept,
		Stats:    stats,
	}
}

// Insecure returns the number of findings of insecure rules
func (r *Report) Insecure() int {
	n := 0
	for _, f := range r.Findings {
		if !f.Secure {
			n++
		}
	}
	return n
}

// Write writes the report in the format, one of text, json or yaml
func Write(w io.Writer, format string, r *Report) error {
	switch strings.ToLower(format) {
	case "", FormatText:
		return WriteText(w, r)
	case FormatJSON:
		return WriteJSON(w, r)
	case FormatYAML, "yml":
		return WriteYAML(w, r)
	}
	return fmt.Errorf("unknown report format %q", format)
}

// WriteJSON writes the report as indented JSON
func WriteJSON(w io.Writer, r *Report) error {
	raw, err := json.MarshalIndent(r, "", "\t")
	if err != nil {
		return err
	}
	_, err = w.Write(raw)
	return err
}

// WriteYAML writes the report as YAML
func WriteYAML(w io.Writer, r *Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return err
	}
	return enc.Close()
}
