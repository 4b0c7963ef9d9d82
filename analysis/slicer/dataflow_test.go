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

package slicer

import (
	"context"
	"testing"

	"github.com/awslabs/cryptoslice/analysis/config"
	"github.com/awslabs/cryptoslice/analysis/criteria"
	"github.com/awslabs/cryptoslice/analysis/ir"
	"github.com/awslabs/cryptoslice/internal/analysistest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const arraycopy = "<java.lang.System: void arraycopy(java.lang.Object,int,java.lang.Object,int,int)>"

func newFlow(u *ir.Unit, seed criteria.Criterion, targets ...string) *Flow {
	set := ir.NewValueSet()
	for _, t := range targets {
		set.Add(ir.V(t))
	}
	return &Flow{Unit: u, Seed: seed, Targets: set,
		isDev:       func(class string) bool { return class == analysistest.MainActivity },
		trackedType: config.NewDefault().IsTrackedReturnType}
}

func TestRulesLookup(t *testing.T) {
	rules := DefaultRules()
	r, ok := rules.Lookup(arraycopy)
	require.True(t, ok)
	assert.Equal(t, "java.lang.System", r.Class)

	_, ok = rules.Lookup("<java.lang.IllegalStateException: void <init>(java.lang.String)>")
	assert.True(t, ok)
	_, ok = rules.Lookup("<java.util.HashMap: java.lang.Object put(java.lang.Object,java.lang.Object)>")
	assert.True(t, ok)
	_, ok = rules.Lookup(analysistest.GetInstance)
	assert.False(t, ok)

	rules.Add(DataflowRule{Class: "javax.crypto.Cipher", Method: "get*", Apply: skip})
	r, ok = rules.Lookup(analysistest.GetInstance)
	require.True(t, ok)
	assert.Equal(t, "get*", r.Method)
}

func TestArrayCopy(t *testing.T) {
	rules := DefaultRules()
	u := ir.Call("", arraycopy, "$r1", "0", "$r2", "0", "16")

	f := newFlow(u, criteria.Criterion{}, "$r2")
	assert.Equal(t, Retain, rules.Apply(f))
	assert.Equal(t, []string{"$r1"}, f.Targets.Sorted())

	f = newFlow(u, criteria.Criterion{}, "$r1")
	assert.Equal(t, Retain, rules.Apply(f))
	assert.Equal(t, []string{"$r1"}, f.Targets.Sorted())
}

func TestSkipRules(t *testing.T) {
	u := ir.Call("$r3", "<java.lang.RuntimeException: void <init>(java.lang.String)>", "$r1")
	f := newFlow(u, criteria.Criterion{}, "$r1", "$r3")
	assert.Equal(t, Skip, DefaultRules().Apply(f))
	assert.Equal(t, []string{"$r1", "$r3"}, f.Targets.Sorted())
}

func TestRepeatedSeedCall(t *testing.T) {
	s := newSlicer(analysistest.DirectLiteral(), config.NewDefault())
	seeds := s.gen.Seeds(context.Background(), criteria.Candidate{Signature: analysistest.GetInstance,
		Positions: []int{0}})
	require.Len(t, seeds, 1)

	u := ir.CallAssign("$r9", "", analysistest.GetInstance, "$r7")
	f := newFlow(u, seeds[0], "$r3")
	assert.Equal(t, Retain, DefaultRules().Apply(f))
	assert.Equal(t, []string{"$r3", "$r7"}, f.Targets.Sorted())
}

func TestGenericCall(t *testing.T) {
	helper := analysistest.Method("java.lang.String helper(java.lang.String)")

	// the result is tracked: arguments of a call on a local and the receiver of a developer class
	f := newFlow(ir.CallAssign("$r2", "r0", helper, "$r1"), criteria.Criterion{}, "$r2")
	assert.Equal(t, Descend, DefaultRules().Apply(f))
	assert.Equal(t, []string{"$r1", "r0"}, f.Targets.Sorted())

	// the receiver is tracked: the call only consumes the result
	f = newFlow(ir.CallAssign("$r2", "$r5", helper, "$r1"), criteria.Criterion{}, "$r2", "$r5")
	assert.Equal(t, Retain, DefaultRules().Apply(f))
	assert.Equal(t, []string{"$r5"}, f.Targets.Sorted())

	// a call without result on a tracked receiver tracks the arguments
	f = newFlow(ir.Call("$r4", analysistest.CipherInit, "1", "$r2"), criteria.Criterion{}, "$r4")
	assert.Equal(t, Retain, DefaultRules().Apply(f))
	assert.Equal(t, []string{"$r2", "$r4"}, f.Targets.Sorted())
}

func TestStringBuilderAppendKeepsTargets(t *testing.T) {
	u := ir.CallAssign("$r2", "$r1", "<java.lang.StringBuilder: java.lang.StringBuilder append(java.lang.String)>",
		`"x"`)
	f := newFlow(u, criteria.Criterion{}, "$r2")
	assert.Equal(t, Retain, DefaultRules().Apply(f))
	assert.Equal(t, []string{"$r2"}, f.Targets.Sorted())
}
