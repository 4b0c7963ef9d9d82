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

// Package criteria creates the slicing criteria: the seeds derived from the rules, and the criteria spawned by the
// slicer when it crosses method boundaries.
package criteria

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/awslabs/cryptoslice/analysis/ir"
	"github.com/awslabs/cryptoslice/analysis/slice"
	"github.com/mitchellh/hashstructure/v2"
)

// Criterion is the unit of work of the slicer: a set of variables of interest at a unit of a method. A Criterion is
// an immutable value; use With to derive a new one.
type Criterion struct {
	caller    string
	target    string
	kind      slice.TargetKind
	statement string
	start     int
	pos       int
	positions []int
	targets   []ir.Value
	level     int
	id        string
}

// Delta is a change applied to a criterion by With
type Delta struct {
	// Targets replaces the target variables when it is not nil
	Targets []ir.Value
	// Start replaces the start index when SetStart is true
	Start    int
	SetStart bool
	// Positions replaces the positions when it is not nil
	Positions []int
}

// identity is the hashed part of a criterion
type identity struct {
	Caller  string
	Target  string
	Start   int
	Targets []string
}

func newCriterion(caller string, target string, kind slice.TargetKind, seed *ir.Unit, start int, positions []int,
	targets []ir.Value, level int) Criterion {
	c := Criterion{
		caller:    caller,
		target:    target,
		kind:      kind,
		statement: seed.String(),
		start:     start,
		pos:       seed.Pos,
		positions: append([]int{}, positions...),
		targets:   normalize(targets),
		level:     level,
	}
	c.id = c.hash()
	return c
}

func normalize(vs []ir.Value) []ir.Value {
	set := ir.NewValueSet(vs...)
	res := make([]ir.Value, 0, len(set))
	for _, text := range set.Sorted() {
		res = append(res, set[text])
	}
	return res
}

func (c Criterion) hash() string {
	texts := make([]string, len(c.targets))
	for i, v := range c.targets {
		texts[i] = v.Text
	}
	h, err := hashstructure.Hash(identity{c.caller, c.target, c.start, texts}, hashstructure.FormatV2, nil)
	if err != nil {
		// only unsupported types make hashing fail
		panic(fmt.Sprintf("criterion identity: %v", err))
	}
	return strconv.FormatUint(h, 16)
}

// With returns the criterion obtained by applying the delta. The identity of the result is recomputed.
func (c Criterion) With(d Delta) Criterion {
	n := c
	if d.Targets != nil {
		n.targets = normalize(d.Targets)
	}
	if d.SetStart {
		n.start = d.Start
	}
	if d.Positions != nil {
		n.positions = append([]int{}, d.Positions...)
	}
	n.id = n.hash()
	return n
}

// ID returns the identity of the criterion
func (c Criterion) ID() string { return c.id }

// Caller returns the method the criterion is in
func (c Criterion) Caller() string { return c.caller }

// Target returns the target statement: the callee of an invoke seed, the method of a return seed or the field of a
// field-write seed
func (c Criterion) Target() string { return c.target }

// Kind returns the kind of the seed
func (c Criterion) Kind() slice.TargetKind { return c.kind }

// Statement returns the text of the seed unit
func (c Criterion) Statement() string { return c.statement }

// Start returns the index of the seed unit in the reversed body of the caller
func (c Criterion) Start() int { return c.start }

// Pos returns the position of the seed unit in the caller
func (c Criterion) Pos() int { return c.pos }

// Positions returns the argument positions seeded, -1 being the base
func (c Criterion) Positions() []int { return append([]int{}, c.positions...) }

// Level returns the interprocedural level: positive above the root, negative below
func (c Criterion) Level() int { return c.level }

// Targets returns a fresh set holding the target variables
func (c Criterion) Targets() ir.ValueSet {
	return ir.NewValueSet(c.targets...)
}

// TargetValues returns the target variables, sorted by text
func (c Criterion) TargetValues() []ir.Value {
	return append([]ir.Value{}, c.targets...)
}

// IsZero returns true for the zero criterion
func (c Criterion) IsZero() bool {
	return c.id == ""
}

func (c Criterion) String() string {
	texts := make([]string, len(c.targets))
	for i, v := range c.targets {
		texts[i] = v.Text
	}
	return fmt.Sprintf("%s@%d[%s] %s {%s} level %d", c.caller, c.pos+1, c.kind, c.target, strings.Join(texts, ", "),
		c.level)
}

// Registry maps criterion ids to criteria
type Registry struct {
	criteria map[string]Criterion
}

// NewRegistry returns an empty registry
func NewRegistry() *Registry {
	return &Registry{criteria: map[string]Criterion{}}
}

// Register records the criterion. It returns false if a criterion with the same id was already registered.
func (r *Registry) Register(c Criterion) bool {
	if _, ok := r.criteria[c.id]; ok {
		return false
	}
	r.criteria[c.id] = c
	return true
}

// Get returns the criterion with that id
func (r *Registry) Get(id string) (Criterion, bool) {
	c, ok := r.criteria[id]
	return c, ok
}

// Len returns the number of registered criteria
func (r *Registry) Len() int {
	return len(r.criteria)
}

// IDs returns the registered ids, sorted
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.criteria))
	for id := range r.criteria {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
