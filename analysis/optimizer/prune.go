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
	"github.com/awslabs/cryptoslice/analysis/ir"
)

// PruneUseless returns the positions of the retained units that are not connected to the seed: a unit is connected
// when it shares a variable with the seed or with a connected unit, found by alternating backward and forward scans
// until nothing changes. Branches are never pruned. The retained units must be in ascending order.
func PruneUseless(seed *ir.Unit, retained []*ir.Unit) map[int]bool {
	vars := ir.NewValueSet()
	if seed != nil {
		vars.AddAll(nonConstant(seed.Variables())...)
	}
	connected := make([]bool, len(retained))
	visit := func(i int) bool {
		u := retained[i]
		if connected[i] || len(vars.Intersect(u.Variables())) == 0 {
			return false
		}
		connected[i] = true
		vars.AddAll(nonConstant(u.Variables())...)
		return true
	}
	for changed := true; changed; {
		changed = false
		for i := len(retained) - 1; i >= 0; i-- {
			changed = visit(i) || changed
		}
		for i := range retained {
			changed = visit(i) || changed
		}
	}
	useless := map[int]bool{}
	for i, u := range retained {
		if !connected[i] && !u.Kind.IsBranch() {
			useless[u.Pos] = true
		}
	}
	return useless
}

func nonConstant(vs []ir.Value) []ir.Value {
	var res []ir.Value
	for _, v := range vs {
		if !v.IsConstant() {
			res = append(res, v)
		}
	}
	return res
}
