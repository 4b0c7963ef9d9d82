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

// Package slice holds the slicing results: the lines of partial and combined slices, the store that records them,
// and the tree linking criteria across methods.
package slice

import (
	"fmt"
	"sort"

	"github.com/awslabs/cryptoslice/analysis/ir"
)

// TargetKind is the kind of units a criterion is seeded on
type TargetKind string

const (
	// TargetInvoke seeds on calls to the target method
	TargetInvoke TargetKind = "invoke"
	// TargetParameter seeds on calls to a method whose parameters are tracked
	TargetParameter TargetKind = "parameter"
	// TargetReturn seeds on the return statements of a method
	TargetReturn TargetKind = "return"
	// TargetFieldWrite seeds on the writes of a field
	TargetFieldWrite TargetKind = "field-write"
)

// Line is one entry of a slice
type Line struct {
	Unit      *ir.Unit `yaml:"-" json:"-"`
	Statement string   `yaml:"statement" json:"statement"`
	Kind      ir.Kind  `yaml:"kind" json:"kind"`
	Caller    string   `yaml:"caller" json:"caller"`
	// Number is the 1-based position of the unit in its method
	Number int `yaml:"line" json:"line"`
}

// NewLine returns the line of a unit of the caller
func NewLine(caller string, u *ir.Unit) Line {
	return Line{Unit: u, Statement: u.String(), Kind: u.Kind, Caller: caller, Number: u.Pos + 1}
}

// Key identifies the line across slices
func (l Line) Key() string {
	return fmt.Sprintf("%s#%d#%s", l.Caller, l.Number, l.Statement)
}

// Index returns the position of the unit in its method
func (l Line) Index() int {
	return l.Number - 1
}

func (l Line) String() string {
	return fmt.Sprintf("%s:%d: %s", l.Caller, l.Number, l.Statement)
}

// SortLines sorts lines in ascending source order
func SortLines(lines []Line) {
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].Number < lines[j].Number })
}

// Partial is the slice computed for one criterion. Its lines belong to a single method and are in ascending order.
type Partial struct {
	ID         string     `yaml:"id" json:"id"`
	Caller     string     `yaml:"caller" json:"caller"`
	Target     string     `yaml:"target" json:"target"`
	TargetKind TargetKind `yaml:"target-kind" json:"targetKind"`
	// Start is the position of the seed unit
	Start int `yaml:"start" json:"start"`
	// Positions are the argument positions seeded
	Positions []int `yaml:"positions,omitempty" json:"positions,omitempty"`
	Level     int   `yaml:"level" json:"level"`
	// Params are the indexes of the parameters still tracked at the top of the method
	Params []int `yaml:"params,omitempty" json:"params,omitempty"`
	// Infeasible is set when the seed unit can never execute; the partial is then empty
	Infeasible bool   `yaml:"infeasible,omitempty" json:"infeasible,omitempty"`
	Lines      []Line `yaml:"lines" json:"lines"`
}

// Empty returns true if no line was retained
func (p *Partial) Empty() bool {
	return len(p.Lines) == 0
}

// Retained returns the positions of the retained units, in ascending order
func (p *Partial) Retained() []int {
	res := make([]int, len(p.Lines))
	for i, l := range p.Lines {
		res[i] = l.Index()
	}
	return res
}

// Drop removes the lines whose unit position is in drop
func (p *Partial) Drop(drop map[int]bool) {
	if len(drop) == 0 {
		return
	}
	kept := p.Lines[:0]
	for _, l := range p.Lines {
		if !drop[l.Index()] {
			kept = append(kept, l)
		}
	}
	p.Lines = kept
}

// Combined is the concatenation of the partial slices along one path of the criteria tree
type Combined struct {
	Root string `yaml:"root" json:"root"`
	// Path are the criteria ids, from the top caller down to the root
	Path  []string `yaml:"path" json:"path"`
	Lines []Line   `yaml:"lines" json:"lines"`
}

// Keys returns the set of keys of the lines
func (c Combined) Keys() map[string]bool {
	res := make(map[string]bool, len(c.Lines))
	for _, l := range c.Lines {
		res[l.Key()] = true
	}
	return res
}

// Contains returns true if every line of o is in c
func (c Combined) Contains(o Combined) bool {
	keys := c.Keys()
	for _, l := range o.Lines {
		if !keys[l.Key()] {
			return false
		}
	}
	return true
}

// Statements returns the statements of the lines
func (c Combined) Statements() []string {
	res := make([]string, len(c.Lines))
	for i, l := range c.Lines {
		res[i] = l.Statement
	}
	return res
}
