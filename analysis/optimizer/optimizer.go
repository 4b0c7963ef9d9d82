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

// Package optimizer prepares method bodies for slicing. Preparation substitutes resolved constant fields, renames the
// variable slots that the IR reuses for unrelated values, folds constants along straight-line code and neutralizes the
// side of a branch that can never execute.
//
// After slicing, the package also removes retained units that sit on branches made infeasible by the values of the
// slice itself, and prunes units that are not connected to the value of interest.
package optimizer

import (
	"context"
	"fmt"

	"github.com/awslabs/cryptoslice/analysis/config"
	"github.com/awslabs/cryptoslice/analysis/ir"
	"github.com/awslabs/cryptoslice/analysis/solver"
)

// ConstantSource gives the resolved constant values of static final fields
type ConstantSource interface {
	Constant(field string) (ir.Value, bool)
}

// Body is a method body prepared for slicing. Positions are shared by all the views of the body.
type Body struct {
	Method string
	// Source holds the units after constant substitution, alias resolution and folding
	Source []*ir.Unit
	// Whole is Source with the units of infeasible ranges replaced by no-ops
	Whole []*ir.Unit
	// Reversed is Whole in reverse order
	Reversed []*ir.Unit
	// Dead are the positions of the neutralized units
	Dead map[int]bool
	// Aliases maps the renamed slots to their last replacement
	Aliases AliasMap
}

// ReverseIndex converts a position into an index of Reversed, and back
func (b *Body) ReverseIndex(i int) int {
	return len(b.Whole) - 1 - i
}

// IsDead returns true if the unit at position pos was neutralized
func (b *Body) IsDead(pos int) bool {
	return b.Dead[pos]
}

// Len returns the number of units
func (b *Body) Len() int {
	return len(b.Whole)
}

// Optimizer prepares bodies. It is not safe for concurrent use.
type Optimizer struct {
	constants ConstantSource
	solver    *solver.Solver
	folders   []Folder
	logger    *config.LogGroup
}

// New returns an optimizer that resolves fields with constants and decides branches with s
func New(constants ConstantSource, s *solver.Solver, logger *config.LogGroup) *Optimizer {
	return &Optimizer{constants: constants, solver: s, folders: DefaultFolders(), logger: logger}
}

// Solver returns the solver used to decide branches
func (o *Optimizer) Solver() *solver.Solver {
	return o.solver
}

// Prepare returns the prepared body of the method. The units given are not modified.
func (o *Optimizer) Prepare(ctx context.Context, method string, units []*ir.Unit) (body *Body, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("could not prepare %s: %v", method, r)
		}
	}()
	source := make([]*ir.Unit, len(units))
	for i, u := range units {
		source[i] = u.Clone()
		source[i].Pos = i
	}
	o.substituteConstants(source)
	aliases := resolveAliases(source)
	dead := o.fold(ctx, method, source)

	whole := make([]*ir.Unit, len(source))
	for i, u := range source {
		if dead[i] {
			whole[i] = ir.NewNop(i)
		} else {
			whole[i] = u
		}
	}
	reversed := make([]*ir.Unit, len(whole))
	for i, u := range whole {
		reversed[len(whole)-1-i] = u
	}
	if len(dead) > 0 {
		o.logger.Debugf("%s: %d units on infeasible branches", method, len(dead))
	}
	return &Body{Method: method, Source: source, Whole: whole, Reversed: reversed, Dead: dead, Aliases: aliases}, nil
}

// substituteConstants replaces the reads of resolved constant fields by constant assignments
func (o *Optimizer) substituteConstants(units []*ir.Unit) {
	if o.constants == nil {
		return
	}
	for i, u := range units {
		if u.Kind != ir.KindAssignVariableField || u.Right.Base != "" {
			continue
		}
		if v, ok := o.constants.Constant(u.FieldSignature()); ok {
			c := ir.AssignValue(u.Left, v)
			c.Pos = i
			units[i] = c
		}
	}
}
