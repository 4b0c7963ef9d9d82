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

package callgraph

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/awslabs/cryptoslice/analysis/config"
	"github.com/awslabs/cryptoslice/analysis/ir"
	"github.com/awslabs/cryptoslice/internal/analysistest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *config.LogGroup {
	return config.NewLogGroupWithLevel(config.ErrLevel, io.Discard)
}

func TestBuildEdges(t *testing.T) {
	p := analysistest.Interprocedural()
	g, _ := Build(p, quietLogger())

	helperInit := ir.MethodSignature(analysistest.CryptoHelper, "void <init>(java.lang.String)")
	assert.Equal(t, []string{analysistest.ActivityRun}, g.CallerSignatures(helperInit))
	assert.Equal(t, []string{helperInit}, g.CallerSignatures(analysistest.GetInstance))

	caller, ok := g.Lookup(analysistest.ActivityRun)
	require.True(t, ok)
	assert.True(t, g.Node(caller).Concrete)
	callee, _ := g.Lookup(analysistest.GetInstance)
	assert.False(t, g.Node(callee).Concrete, "library methods have no body")

	field := "<com.example.app.CryptoHelper: javax.crypto.Cipher cipher>"
	fid, ok := g.Lookup(field)
	require.True(t, ok)
	assert.Equal(t, FieldNode, g.Node(fid).Kind)
	assert.Equal(t, []string{helperInit}, g.AccessorSignatures(field))
	hid, _ := g.Lookup(helperInit)
	assert.True(t, g.HasEdge(hid, fid, false))
	assert.False(t, g.HasEdge(hid, fid, true))
}

func TestStaticArrayConstant(t *testing.T) {
	_, info := Build(analysistest.StaticFieldConstant(false), quietLogger())
	v, ok := info.Constant(analysistest.KeysIV)
	require.True(t, ok)
	assert.Equal(t, "{1, 2, 3, 4}", v.Text)
	assert.Equal(t, ir.ValueArrayConst, v.Kind)
	assert.Equal(t, "byte[]", v.Type)
	assert.Equal(t, []string{analysistest.KeysIV}, info.ConstantFields())
}

func TestDisagreeingSitesAreExcluded(t *testing.T) {
	_, info := Build(analysistest.StaticFieldConstant(true), quietLogger())
	_, ok := info.Constant(analysistest.KeysIV)
	assert.False(t, ok)
	assert.True(t, info.IsExcluded(analysistest.KeysIV))
}

func TestMetadataConstants(t *testing.T) {
	mode := "<com.example.app.Keys: java.lang.String MODE>"
	c := ir.ParseValue(analysistest.ECB)
	p := analysistest.NewProgram(&ir.Class{Name: analysistest.Keys,
		Fields: []ir.Field{{Signature: mode, Static: true, Final: true, Constant: &c}}})
	_, info := Build(p, quietLogger())
	v, ok := info.Constant(mode)
	require.True(t, ok)
	assert.Equal(t, analysistest.ECB, v.Text)
}

func TestSwitchTargets(t *testing.T) {
	sig := analysistest.Method("int pick(int)")
	p := analysistest.NewProgram(analysistest.NewClass(analysistest.MainActivity, "android.app.Activity",
		ir.NewMethod(sig,
			ir.Param("i0", 0, "int"),
			ir.Switch("i0", 2, 4, 6),
			ir.Assign("$i1", "1"),
			ir.Goto(7),
			ir.Assign("$i1", "2"),
			ir.Goto(7),
			ir.Assign("$i1", "3"),
			ir.Return("$i1"))))
	_, info := Build(p, quietLogger())
	for _, start := range []int{2, 4, 6} {
		pos, ok := info.SwitchAt(sig, start)
		assert.True(t, ok)
		assert.Equal(t, 1, pos)
	}
	_, ok := info.SwitchAt(sig, 3)
	assert.False(t, ok)
}

// panickingProvider fails when the body of one method is requested
type panickingProvider struct {
	*ir.Program
	bad string
}

func (p panickingProvider) Units(method string) []*ir.Unit {
	if method == p.bad {
		panic("malformed body")
	}
	return p.Program.Units(method)
}

func TestMethodFailureIsContained(t *testing.T) {
	p := analysistest.Interprocedural()
	helperInit := ir.MethodSignature(analysistest.CryptoHelper, "void <init>(java.lang.String)")
	var logs bytes.Buffer
	g, info := Build(panickingProvider{p, helperInit}, config.NewLogGroupWithLevel(config.WarnLevel, &logs))

	assert.Equal(t, []string{helperInit}, info.Skipped)
	assert.Contains(t, logs.String(), "malformed body")
	assert.Empty(t, g.CallerSignatures(analysistest.GetInstance), "the failing method contributes no edge")
	assert.Equal(t, []string{analysistest.ActivityRun}, g.CallerSignatures(helperInit))
}

func TestCallerChainsStopOnRecursion(t *testing.T) {
	g := NewGraph()
	a := g.AddNode("<a.A: void a()>", MethodNode)
	b := g.AddNode("<a.A: void b()>", MethodNode)
	c := g.AddNode("<a.A: void c()>", MethodNode)
	d := g.AddNode("<a.A: void d()>", MethodNode)
	// d <- c <- b <- a, and b <- c (recursion between b and c), and d <- a
	g.AddEdge(a, b, true)
	g.AddEdge(b, c, true)
	g.AddEdge(c, b, true)
	g.AddEdge(c, d, true)
	g.AddEdge(a, d, true)

	chains := g.CallerChains(d, 0)
	require.Len(t, chains, 2)
	assert.Equal(t, []NodeID{d, c, b, a}, chains[0])
	assert.Equal(t, []NodeID{d, a}, chains[1])
	assert.Equal(t, []NodeID{a}, g.TopCallers(d, 0))
	assert.Len(t, g.CallerChains(d, 1), 1)

	assert.Equal(t, [][]string{{"<a.A: void b()>", "<a.A: void c()>"}}, g.RecursiveClusters())
	cycles := g.ElementaryCycles()
	require.Len(t, cycles, 1)
	assert.Equal(t, "<a.A: void b()>", cycles[0][0])
	assert.Contains(t, cycles[0], "<a.A: void c()>")
	reach := g.Reachable([]NodeID{b})
	assert.Equal(t, []bool{false, true, true, true}, reach)
}

func TestInterfaceBridge(t *testing.T) {
	task := "com.example.app.Task"
	run := ir.MethodSignature(task, "void run()")
	p := analysistest.NewProgram(
		analysistest.NewClass(analysistest.MainActivity, "android.app.Activity",
			ir.NewMethod(analysistest.ActivityRun,
				ir.This("r0", analysistest.MainActivity),
				ir.New("$r1", task),
				ir.Call("$r1", "<java.lang.Runnable: void run()>"),
				ir.ReturnVoid())),
		&ir.Class{Name: task, Super: "java.lang.Object", Interfaces: []string{"java.lang.Runnable"},
			Methods: []*ir.Method{ir.NewMethod(run, ir.This("r0", task), ir.ReturnVoid())}},
	)
	g, _ := Build(p, quietLogger())
	id, ok := g.Lookup(run)
	require.True(t, ok)
	assert.Equal(t, "<java.lang.Runnable: void run()>", g.Node(id).Interface)
}

func TestWriteDot(t *testing.T) {
	g, _ := Build(analysistest.Interprocedural(), quietLogger())
	var buf bytes.Buffer
	require.NoError(t, g.WriteDot(&buf, "app"))
	out := buf.String()
	assert.True(t, strings.Contains(out, "digraph app"), out)
	assert.Contains(t, out, "getInstance")
}
