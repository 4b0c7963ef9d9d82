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
	"io"
	"testing"
	"time"

	"github.com/awslabs/cryptoslice/analysis/config"
	"github.com/awslabs/cryptoslice/analysis/ir"
	"github.com/awslabs/cryptoslice/analysis/solver"
	"github.com/awslabs/cryptoslice/internal/analysistest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const getInstance = analysistest.GetInstance

type constMap map[string]ir.Value

func (c constMap) Constant(field string) (ir.Value, bool) {
	v, ok := c[field]
	return v, ok
}

func newOptimizer(constants ConstantSource) *Optimizer {
	return New(constants, solver.New(time.Second), config.NewLogGroupWithLevel(config.ErrLevel, io.Discard))
}

func prepare(t *testing.T, o *Optimizer, units ...*ir.Unit) *Body {
	t.Helper()
	for i, u := range units {
		u.Pos = i
	}
	body, err := o.Prepare(context.Background(), "<a.B: void m()>", units)
	require.NoError(t, err)
	return body
}

func texts(units []*ir.Unit) []string {
	res := make([]string, len(units))
	for i, u := range units {
		res[i] = u.String()
	}
	return res
}

func TestStraightLineRedefinitionGetsFreshName(t *testing.T) {
	units := []*ir.Unit{
		ir.Assign("$r1", analysistest.ECB),
		ir.CallAssign("$r2", "", getInstance, "$r1"),
		ir.Assign("$r1", analysistest.GCM),
		ir.CallAssign("$r2", "", getInstance, "$r1"),
		ir.ReturnVoid(),
	}
	body := prepare(t, newOptimizer(nil), units...)

	assert.Equal(t, `$r3 = "AES/GCM/NoPadding"`, body.Source[2].String())
	assert.Equal(t, "$r4 = staticinvoke "+getInstance+"($r3)", body.Source[3].String())
	assert.Equal(t, "$r2 = staticinvoke "+getInstance+"($r1)", body.Source[1].String())
	assert.Equal(t, "$r3", body.Aliases["$r1"].Text)
	assert.Equal(t, "$r4", body.Aliases["$r2"].Text)
	assert.Equal(t, "$r1", units[2].Left.Text, "the input units are not modified")
}

func TestIfElseRedefinitionsShareOneName(t *testing.T) {
	body := prepare(t, newOptimizer(nil),
		ir.Param("i0", 0, "int"),
		ir.Assign("$r1", `"DES"`),
		ir.CallAssign("$r2", "", getInstance, "$r1"),
		ir.If("i0", "==", "0", 6),
		ir.Assign("$r1", analysistest.ECB),
		ir.Goto(7),
		ir.Assign("$r1", analysistest.GCM),
		ir.CallAssign("$r3", "", getInstance, "$r1"),
		ir.ReturnVoid(),
	)
	assert.Equal(t, "$r4", body.Source[4].Left.Text)
	assert.Equal(t, "$r4", body.Source[6].Left.Text)
	assert.Equal(t, "$r4", body.Source[7].Args[0].Text)
	assert.Equal(t, "$r1", body.Source[2].Args[0].Text)
	assert.Empty(t, body.Dead)
}

func TestSecondBranchReadsNamesBeforeRegion(t *testing.T) {
	body := prepare(t, newOptimizer(nil),
		ir.Param("i0", 0, "int"),
		ir.Assign("$r1", `"DES"`),
		ir.If("i0", "==", "0", 5),
		ir.Assign("$r1", analysistest.ECB),
		ir.Goto(7),
		ir.Assign("$r2", "$r1"),
		ir.Assign("$r1", analysistest.GCM),
		ir.CallAssign("$r3", "", getInstance, "$r1"),
		ir.ReturnVoid(),
	)
	assert.Equal(t, "$r4", body.Source[3].Left.Text)
	assert.Equal(t, "$r2 = $r1", body.Source[5].String(), "the second branch sees the value before the if")
	assert.Equal(t, "$r4", body.Source[6].Left.Text)
	assert.Equal(t, "$r4", body.Source[7].Args[0].Text)
}

func TestLoopRedefinitionKeepsName(t *testing.T) {
	body := prepare(t, newOptimizer(nil),
		ir.Assign("$i0", "0"),
		ir.If("$i0", ">=", "16", 4),
		ir.Op("$i0", "$i0", "+", "1"),
		ir.Goto(1),
		ir.Return("$i0"),
	)
	assert.Equal(t, "$i0 = $i0 + 1", body.Source[2].String())
	assert.Equal(t, ir.Fresh, body.Aliases["$i0"])
	assert.Empty(t, body.Dead, "the loop head is a join: its condition is not folded")
}

func TestLoopRedefinitionAfterReadIsRenamed(t *testing.T) {
	use := "<a.B: void use(java.lang.String)>"
	body := prepare(t, newOptimizer(nil),
		ir.Assign("$i0", "0"),
		ir.If("$i0", ">=", "16", 8),
		ir.Assign("$r1", analysistest.ECB),
		ir.Call("", use, "$r1"),
		ir.Assign("$r1", analysistest.GCM),
		ir.Call("", use, "$r1"),
		ir.Op("$i0", "$i0", "+", "1"),
		ir.Goto(1),
		ir.ReturnVoid(),
	)
	assert.Equal(t, "$r1", body.Source[3].Args[0].Text)
	assert.Equal(t, "$r2", body.Source[4].Left.Text)
	assert.Equal(t, "$r2", body.Source[5].Args[0].Text)
	assert.Equal(t, "$r2", body.Aliases["$r1"].Text)
	assert.Equal(t, ir.Fresh, body.Aliases["$i0"], "the counter is carried around the loop")
}

func TestLoopRedefinitionReadAfterLoopKeepsName(t *testing.T) {
	use := "<a.B: void use(java.lang.String)>"
	body := prepare(t, newOptimizer(nil),
		ir.Assign("$i0", "0"),
		ir.If("$i0", ">=", "16", 7),
		ir.Assign("$r1", analysistest.ECB),
		ir.Call("", use, "$r1"),
		ir.Assign("$r1", analysistest.GCM),
		ir.Op("$i0", "$i0", "+", "1"),
		ir.Goto(1),
		ir.Return("$r1"),
	)
	assert.Equal(t, "$r1", body.Source[4].Left.Text)
	assert.Equal(t, "$r1", body.Source[7].Right.Text)
	assert.Equal(t, ir.Fresh, body.Aliases["$r1"])
}

func TestInfeasibleThenBranch(t *testing.T) {
	p := analysistest.InfeasibleBranch()
	body, err := newOptimizer(nil).Prepare(context.Background(), analysistest.ActivityRun,
		p.Units(analysistest.ActivityRun))
	require.NoError(t, err)

	assert.Equal(t, map[int]bool{3: true, 4: true, 5: true}, body.Dead)
	assert.Equal(t, ir.KindNop, body.Whole[4].Kind)
	assert.Equal(t, ir.KindAssignInvoke, body.Source[4].Kind, "the source view keeps the units")
	assert.Equal(t, ir.KindGoto, body.Whole[6].Kind)
	assert.Equal(t, ir.KindAssignInvoke, body.Whole[8].Kind)
	assert.Equal(t, body.Whole[10], body.Reversed[0])
	assert.Equal(t, 0, body.ReverseIndex(10))
	assert.True(t, body.IsDead(3))
}

func TestInfeasibleElseBranch(t *testing.T) {
	body := prepare(t, newOptimizer(nil),
		ir.Assign("$i0", "1"),
		ir.If("$i0", "==", "0", 4),
		ir.Assign("$r1", analysistest.ECB),
		ir.Goto(5),
		ir.Assign("$r1", analysistest.GCM),
		ir.Return("$r1"),
	)
	assert.Equal(t, map[int]bool{4: true}, body.Dead)
}

func TestFolders(t *testing.T) {
	body := prepare(t, newOptimizer(nil),
		ir.Assign("$r1", `"16"`),
		ir.CallAssign("$i0", "", "<java.lang.Integer: int parseInt(java.lang.String)>", "$r1"),
		ir.CallAssign("$i1", "", "<java.lang.Math: int abs(int)>", "-5"),
		ir.Assign("$r2", `"AES-CBC"`),
		ir.CallAssign("$r3", "$r2",
			"<java.lang.String: java.lang.String replace(java.lang.CharSequence,java.lang.CharSequence)>",
			`"-"`, `"/"`),
		ir.If("$i0", ">=", "8", 7),
		ir.Assign("$r4", `"DES"`),
		ir.Return("$r3"),
	)
	assert.Equal(t, []string{`$r1 = "16"`, "$i0 = 16", "$i1 = 5", `$r2 = "AES-CBC"`, `$r3 = "AES/CBC"`},
		texts(body.Source[:5]))
	assert.Equal(t, 1, body.Source[1].Pos)
	assert.Equal(t, map[int]bool{6: true}, body.Dead)

	v, ok := foldRound(ir.Value{}, []ir.Value{ir.V("2.5")})
	require.True(t, ok)
	assert.Equal(t, "3", v.Text)
	v, _ = foldRound(ir.Value{}, []ir.Value{ir.V("-2.5")})
	assert.Equal(t, "-2", v.Text)
	v, _ = foldParseInt(ir.Value{}, []ir.Value{ir.V(`"ff"`), ir.V("16")})
	assert.Equal(t, "255", v.Text)
	_, ok = foldParseInt(ir.Value{}, []ir.Value{ir.V(`"abc"`)})
	assert.False(t, ok)
}

func TestConstantFieldSubstitution(t *testing.T) {
	iv := ir.ArrayLiteral("byte", []string{"1", "2"})
	body := prepare(t, newOptimizer(constMap{analysistest.KeysIV: iv}),
		ir.Assign("$r1", analysistest.KeysIV),
		ir.Assign("$r2", "<com.example.app.Keys: byte[] OTHER>"),
		ir.ReturnVoid(),
	)
	assert.Equal(t, ir.KindAssignVariableConstant, body.Source[0].Kind)
	assert.Equal(t, "$r1 = {1, 2}", body.Source[0].String())
	assert.Equal(t, ir.KindAssignVariableField, body.Source[1].Kind)
}

func TestUnreachableIndexesWithBoundParameter(t *testing.T) {
	o := newOptimizer(nil)
	callee := "<a.B: java.lang.String pick(int)>"
	units := []*ir.Unit{
		ir.Param("i0", 0, "int"),
		ir.If("i0", ">", "0", 4),
		ir.Assign("$r1", analysistest.ECB),
		ir.Goto(5),
		ir.Assign("$r1", analysistest.GCM),
		ir.Return("$r1"),
	}
	for i, u := range units {
		u.Pos = i
	}
	body, err := o.Prepare(context.Background(), callee, units)
	require.NoError(t, err)
	retained := []int{0, 1, 2, 4}

	assert.Empty(t, o.UnreachableIndexes(context.Background(), body, retained, NewValues()))

	values := NewValues()
	values.Set("<a.B: void m()>", "$i5", ir.V("1"))
	call := ir.CallAssign("$r0", "", callee, "$i5")
	values.BindParams("<a.B: void m()>", call, callee)
	assert.Equal(t, map[int]bool{2: true}, o.UnreachableIndexes(context.Background(), body, retained, values))
	v, ok := values.Get(callee, "i0")
	require.True(t, ok)
	assert.Equal(t, "1", v.Text)

	values = NewValues()
	values.BindParams("<a.B: void m()>", ir.CallAssign("$r0", "", callee, "-3"), callee)
	assert.Equal(t, map[int]bool{4: true}, o.UnreachableIndexes(context.Background(), body, retained, values))
}

func TestPruneUseless(t *testing.T) {
	at := func(pos int, u *ir.Unit) *ir.Unit {
		u.Pos = pos
		return u
	}
	seed := at(5, ir.CallAssign("$r5", "", getInstance, "$r3"))
	retained := []*ir.Unit{
		at(0, ir.Assign("$r2", `"AES"`)),
		at(1, ir.Assign("$r3", "$r2")),
		at(2, ir.Assign("$r9", `"AES"`)),
		at(3, ir.If("$i0", ">", "1", 6)),
		at(4, ir.Param("r7", 1, "java.lang.String")),
	}
	assert.Equal(t, map[int]bool{2: true, 4: true}, PruneUseless(seed, retained))
}
