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

package optimizer

import (
	"context"
	"math"
	"path"
	"strconv"
	"strings"

	"github.com/awslabs/cryptoslice/analysis/ir"
	"github.com/awslabs/cryptoslice/analysis/solver"
)

// A Folder computes the constant result of a library call from constant operands
type Folder struct {
	// Class and Method are glob patterns matched against the callee
	Class  string
	Method string
	// Fold receives the constant base (zero for static calls) and arguments, and returns the constant result
	Fold func(base ir.Value, args []ir.Value) (ir.Value, bool)
}

// Matches returns true if the folder applies to the callee signature
func (f Folder) Matches(signature string) bool {
	c, _ := path.Match(f.Class, ir.ClassName(signature))
	m, _ := path.Match(f.Method, ir.MethodName(signature))
	return c && m
}

// DefaultFolders returns the numeric coercions and string operations folded by preparation
func DefaultFolders() []Folder {
	return []Folder{
		{Class: "java.lang.Integer", Method: "parseInt", Fold: foldParseInt},
		{Class: "java.lang.Integer", Method: "valueOf", Fold: foldParseInt},
		{Class: "java.lang.Math", Method: "abs", Fold: foldAbs},
		{Class: "java.lang.Math", Method: "round", Fold: foldRound},
		{Class: "java.lang.String", Method: "replace", Fold: foldReplace},
	}
}

func foldParseInt(_ ir.Value, args []ir.Value) (ir.Value, bool) {
	if len(args) == 0 {
		return ir.Value{}, false
	}
	text := args[0].NumericText()
	if args[0].Kind == ir.ValueStringConst {
		text = strings.TrimSpace(args[0].Unquoted())
	}
	radix := 10
	if len(args) == 2 && args[1].Kind == ir.ValueIntConst {
		radix, _ = strconv.Atoi(args[1].Text)
	}
	n, err := strconv.ParseInt(text, radix, 32)
	if err != nil {
		return ir.Value{}, false
	}
	return ir.ParseValue(strconv.FormatInt(n, 10)), true
}

func foldAbs(_ ir.Value, args []ir.Value) (ir.Value, bool) {
	if len(args) != 1 || !args[0].IsNumeric() {
		return ir.Value{}, false
	}
	t := args[0].NumericText()
	if strings.HasPrefix(t, "-") {
		t = t[1:]
	}
	return ir.ParseValue(t + strings.TrimPrefix(args[0].Text, args[0].NumericText())), true
}

func foldRound(_ ir.Value, args []ir.Value) (ir.Value, bool) {
	if len(args) != 1 || !args[0].IsNumeric() {
		return ir.Value{}, false
	}
	f, err := strconv.ParseFloat(args[0].NumericText(), 64)
	if err != nil {
		return ir.Value{}, false
	}
	// Math.round rounds half up
	return ir.ParseValue(strconv.FormatInt(int64(math.Floor(f+0.5)), 10)), true
}

func foldReplace(base ir.Value, args []ir.Value) (ir.Value, bool) {
	if base.Kind != ir.ValueStringConst || len(args) != 2 {
		return ir.Value{}, false
	}
	old, okOld := charOrString(args[0])
	repl, okNew := charOrString(args[1])
	if !okOld || !okNew {
		return ir.Value{}, false
	}
	return ir.ParseValue(strconv.Quote(strings.ReplaceAll(base.Unquoted(), old, repl))), true
}

// charOrString returns the text of a string constant, or the character of a char given as its code
func charOrString(v ir.Value) (string, bool) {
	switch v.Kind {
	case ir.ValueStringConst:
		return v.Unquoted(), true
	case ir.ValueIntConst:
		n, err := strconv.Atoi(v.Text)
		if err != nil {
			return "", false
		}
		return string(rune(n)), true
	}
	return "", false
}

// fold runs the forward constant pass over the units. Calls with constant operands matched by a folder are replaced by
// constant assignments, and the branches of ifs whose operands are constant are decided with the solver. It returns
// the positions of the units on infeasible ranges.
func (o *Optimizer) fold(ctx context.Context, method string, units []*ir.Unit) map[int]bool {
	dead := map[int]bool{}
	consts := map[string]ir.Value{}
	targets := branchTargets(units)

	for pos := 0; pos < len(units); pos++ {
		if dead[pos] {
			continue
		}
		if targets[pos] {
			// a join of several paths: only straight-line values are folded
			consts = map[string]ir.Value{}
		}
		u := units[pos]
		switch u.Kind {
		case ir.KindAssignVariableConstant:
			consts[u.Left.Text] = u.Right
			continue
		case ir.KindAssignVariableVariable, ir.KindCast:
			if c, ok := resolve(u.Right, consts); ok {
				consts[u.Left.Text] = c
				continue
			}
		case ir.KindAssignInvoke:
			if folded, ok := o.foldCall(u, consts); ok {
				units[pos] = folded
				consts[u.Left.Text] = folded.Right
				o.logger.Tracef("%s: folded %s into %s", method, u, folded)
				continue
			}
		case ir.KindIf:
			o.decide(ctx, units, pos, consts, dead)
		}
		if d := u.Defined(); !d.IsZero() {
			delete(consts, d.Text)
		}
	}
	return dead
}

func (o *Optimizer) foldCall(u *ir.Unit, consts map[string]ir.Value) (*ir.Unit, bool) {
	for _, f := range o.folders {
		if !f.Matches(u.Signature) {
			continue
		}
		var base ir.Value
		if !u.Base.IsZero() {
			b, ok := resolve(u.Base, consts)
			if !ok {
				return nil, false
			}
			base = b
		}
		args := make([]ir.Value, len(u.Args))
		for i, a := range u.Args {
			c, ok := resolve(a, consts)
			if !ok {
				return nil, false
			}
			args[i] = c
		}
		if v, ok := f.Fold(base, args); ok {
			folded := ir.AssignValue(u.Left, v)
			folded.Pos = u.Pos
			return folded, true
		}
		return nil, false
	}
	return nil, false
}

// decide marks the infeasible side of the if at pos. A forward if jumping to t skips [pos+1, t-1]; when t-1 is a goto
// to j, the code in [t, j-1] is the else side.
func (o *Optimizer) decide(ctx context.Context, units []*ir.Unit, pos int, consts map[string]ir.Value,
	dead map[int]bool) {
	u := units[pos]
	t := u.Target
	if t <= pos || len(u.Args) != 2 {
		return
	}
	a, okA := resolve(u.Args[0], consts)
	b, okB := resolve(u.Args[1], consts)
	if !okA || !okB || !a.IsNumeric() || !b.IsNumeric() {
		return
	}
	switch o.solver.Resolve(ctx, a.NumericText(), u.Op, b.NumericText()) {
	case solver.True:
		end := t - 1
		if units[t-1].Kind == ir.KindGoto && units[t-1].Target > t-1 {
			end = t - 2
		}
		markDead(dead, pos+1, end)
	case solver.False:
		if t-1 > pos && units[t-1].Kind == ir.KindGoto && units[t-1].Target > t {
			markDead(dead, t, units[t-1].Target-1)
		}
	}
}

func markDead(dead map[int]bool, from int, to int) {
	for i := from; i <= to; i++ {
		dead[i] = true
	}
}

// resolve returns the constant value of an operand
func resolve(v ir.Value, consts map[string]ir.Value) (ir.Value, bool) {
	if v.IsConstant() {
		return v, true
	}
	c, ok := consts[v.Text]
	return c, ok
}

// branchTargets returns the positions that are the target of a branch
func branchTargets(units []*ir.Unit) map[int]bool {
	res := map[int]bool{}
	for _, u := range units {
		switch u.Kind {
		case ir.KindIf, ir.KindGoto:
			res[u.Target] = true
		case ir.KindSwitch:
			for _, t := range u.Targets {
				res[t] = true
			}
		}
	}
	return res
}
