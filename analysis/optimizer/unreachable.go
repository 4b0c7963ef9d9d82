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
	"strconv"

	"github.com/awslabs/cryptoslice/analysis/ir"
	"github.com/awslabs/cryptoslice/analysis/solver"
)

// Values holds the constant values known along a chain of methods, by method and variable name. One map is shared by
// all the methods of a chain; the parameters of the next callee are bound with BindParams.
type Values map[string]ir.Value

// NewValues returns an empty value map
func NewValues() Values {
	return Values{}
}

func valueKey(method string, name string) string {
	return method + "\x00" + name
}

func paramKey(method string, i int) string {
	return valueKey(method, "@parameter"+strconv.Itoa(i))
}

// Get returns the value of a variable of the method
func (vs Values) Get(method string, name string) (ir.Value, bool) {
	v, ok := vs[valueKey(method, name)]
	return v, ok
}

// Set records the value of a variable of the method
func (vs Values) Set(method string, name string, v ir.Value) {
	vs[valueKey(method, name)] = v
}

func (vs Values) resolve(method string, v ir.Value) (ir.Value, bool) {
	if v.IsConstant() {
		return v, true
	}
	return vs.Get(method, v.Text)
}

// BindParams maps the constant arguments of a call unit of the caller to the parameters of the callee
func (vs Values) BindParams(caller string, call *ir.Unit, callee string) {
	if call == nil || !call.Kind.IsInvoke() {
		return
	}
	for i, a := range call.Args {
		if c, ok := vs.resolve(caller, a); ok {
			vs[paramKey(callee, i)] = c
		} else {
			delete(vs, paramKey(callee, i))
		}
	}
}

// UnreachableIndexes returns the positions of the retained units of the body that are on an infeasible side of a
// retained if, given the constants flowing through the retained units themselves. The retained positions must be in
// ascending order. The values known for the method are updated along the way.
func (o *Optimizer) UnreachableIndexes(ctx context.Context, body *Body, retained []int, values Values) map[int]bool {
	drop := map[int]bool{}
	isRetained := make(map[int]bool, len(retained))
	for _, i := range retained {
		isRetained[i] = true
	}
	m := body.Method
	for _, pos := range retained {
		if drop[pos] || pos < 0 || pos >= body.Len() {
			continue
		}
		u := body.Whole[pos]
		switch u.Kind {
		case ir.KindAssignVariableConstant:
			values.Set(m, u.Left.Text, u.Right)
		case ir.KindAssignVariableVariable, ir.KindCast:
			if c, ok := values.resolve(m, u.Right); ok {
				values.Set(m, u.Left.Text, c)
			}
		case ir.KindParameter:
			if c, ok := values[paramKey(m, u.ParamIndex)]; ok {
				values.Set(m, u.Left.Text, c)
			}
		case ir.KindIf:
			o.dropInfeasible(ctx, body, pos, values, isRetained, drop)
		}
	}
	return drop
}

func (o *Optimizer) dropInfeasible(ctx context.Context, body *Body, pos int, values Values, retained map[int]bool,
	drop map[int]bool) {
	u := body.Whole[pos]
	t := u.Target
	if t <= pos || len(u.Args) != 2 {
		return
	}
	a, okA := values.resolve(body.Method, u.Args[0])
	b, okB := values.resolve(body.Method, u.Args[1])
	if !okA || !okB || !a.IsNumeric() || !b.IsNumeric() {
		return
	}
	from, to := 0, -1
	switch o.solver.Resolve(ctx, a.NumericText(), u.Op, b.NumericText()) {
	case solver.True:
		from, to = pos+1, t-1
		if body.Whole[t-1].Kind == ir.KindGoto && body.Whole[t-1].Target > t-1 {
			to = t - 2
		}
	case solver.False:
		if t-1 > pos && body.Whole[t-1].Kind == ir.KindGoto && body.Whole[t-1].Target > t {
			from, to = t, body.Whole[t-1].Target-1
		}
	}
	for i := from; i <= to; i++ {
		if retained[i] {
			drop[i] = true
		}
	}
}
