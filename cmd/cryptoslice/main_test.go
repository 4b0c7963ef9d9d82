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

package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/awslabs/cryptoslice/analysis"
	"github.com/awslabs/cryptoslice/analysis/ir"
	"github.com/awslabs/cryptoslice/cmd/cryptoslice/tools"
	"github.com/awslabs/cryptoslice/internal/analysistest"
	"github.com/awslabs/cryptoslice/internal/formatutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rulesDir = "../../analysis/rules/testdata/rules"

// execute runs the root command with args, and returns its standard output
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	formatutil.SetColor(false)
	t.Cleanup(formatutil.ResetColor)
	var out, errOut bytes.Buffer
	root := newRootCommand()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&errOut)
	err := root.Execute()
	return out.String(), err
}

func saveFixture(t *testing.T, p *ir.Program, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, ir.Save(p, path))
	return path
}

func TestAnalyzeText(t *testing.T) {
	input := saveFixture(t, analysistest.DirectLiteral(), "app.yaml")
	out, err := execute(t, "analyze", "-i", input, "-r", rulesDir, "--no-color")
	require.NoError(t, err)
	assert.Contains(t, out, "[*] Rule ID: 1-1 (insecure)")
	assert.Contains(t, out, "callerName="+analysistest.Method("byte[] encrypt(byte[])"))
	assert.Contains(t, out, "1 findings, 1 insecure")
}

func TestAnalyzeJSONFile(t *testing.T) {
	input := saveFixture(t, analysistest.InfeasibleBranch(), "app.msgpack")
	output := filepath.Join(t.TempDir(), "report.json")
	out, err := execute(t, "analyze", "-i", input, "-r", rulesDir, "--format", "json", "-o", output)
	require.NoError(t, err)
	assert.Empty(t, out)

	b, err := os.ReadFile(output)
	require.NoError(t, err)
	var r struct {
		Input    string `json:"input"`
		Findings []struct {
			RuleID string `json:"ruleId"`
			Secure bool   `json:"secure"`
		} `json:"findings"`
	}
	require.NoError(t, json.Unmarshal(b, &r))
	assert.Equal(t, input, r.Input)
	require.Len(t, r.Findings, 1)
	assert.Equal(t, "1-2", r.Findings[0].RuleID)
	assert.True(t, r.Findings[0].Secure)
}

func TestAnalyzeMaxAlarms(t *testing.T) {
	input := saveFixture(t, analysistest.DirectLiteral(), "app.yaml")
	out, err := execute(t, "analyze", "-i", input, "-r", rulesDir, "--format", "yaml", "--max-alarms", "0",
		"--upper-level", "2", "--lower-level", "-2")
	require.NoError(t, err)
	assert.Contains(t, out, "rule-id:")
	assert.Contains(t, out, "1-1")
}

func TestAnalyzeFatal(t *testing.T) {
	_, err := execute(t, "analyze", "-i", filepath.Join(t.TempDir(), "missing.yaml"), "-r", rulesDir)
	require.ErrorIs(t, err, analysis.ErrFatal)
	assert.Contains(t, tools.HintForErrorMessage(err.Error()), "-i must be")

	input := saveFixture(t, analysistest.DirectLiteral(), "app.yaml")
	_, err = execute(t, "analyze", "-i", input, "-r", rulesDir, "-p", input)
	require.ErrorIs(t, err, analysis.ErrFatal)
	assert.Contains(t, tools.HintForErrorMessage(err.Error()), "-p must be")
}

func TestAnalyzeUnknownFormat(t *testing.T) {
	input := saveFixture(t, analysistest.DirectLiteral(), "app.yaml")
	_, err := execute(t, "analyze", "-i", input, "-r", rulesDir, "--format", "xml")
	assert.ErrorContains(t, err, "unknown report format")
}

func TestCallgraph(t *testing.T) {
	input := saveFixture(t, analysistest.DirectLiteral(), "app.yaml")
	out, err := execute(t, "callgraph", "-i", input, "--cycles", "--callers", analysistest.GetInstance)
	require.NoError(t, err)
	assert.Contains(t, out, "Call graph")
	assert.Contains(t, out, "Recursive clusters: 0")
	assert.Contains(t, out, "Caller chains: 1")
	assert.Contains(t, out, analysistest.GetInstance+" <- "+analysistest.Method("byte[] encrypt(byte[])")+" <- "+
		analysistest.ActivityRun)
}

func TestCallgraphDot(t *testing.T) {
	input := saveFixture(t, analysistest.DirectLiteral(), "app.yaml")
	out, err := execute(t, "callgraph", "-i", input, "--dot", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "digraph")
	assert.NotContains(t, out, "Call graph")

	_, err = execute(t, "callgraph", "-i", input, "--callers", "<a.B: void missing()>")
	assert.ErrorContains(t, err, "no method")
}

func TestRulesValidate(t *testing.T) {
	out, err := execute(t, "rules", "validate", "-r", rulesDir)
	assert.ErrorContains(t, err, "1 invalid rule files")
	assert.Contains(t, out, "ok ecb-mode.json (1-1, 1-2)")
	assert.Contains(t, out, "invalid file broken.json")
	assert.Contains(t, out, "3 valid, 1 invalid")

	dir := t.TempDir()
	b, err := os.ReadFile(filepath.Join(rulesDir, "ecb-mode.json"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ecb-mode.json"), b, 0o600))
	out, err = execute(t, "rules", "validate", "-r", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "1 valid, 0 invalid")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "copy.yaml"), b, 0o600))
	out, err = execute(t, "rules", "validate", "-r", dir)
	assert.ErrorContains(t, err, "1 duplicate rule numbers")
	assert.Contains(t, out, "duplicate rule number 1 in")
}

func TestConvert(t *testing.T) {
	input := saveFixture(t, analysistest.Interprocedural(), "app.yaml")
	output := filepath.Join(t.TempDir(), "app.msgpack")
	out, err := execute(t, "convert", "-i", input, "-o", output)
	require.NoError(t, err)
	assert.Contains(t, out, "2 classes written")

	p, problems, err := ir.Load(output)
	require.NoError(t, err)
	assert.Empty(t, problems)
	assert.NotNil(t, p.Class(analysistest.CryptoHelper))

	_, err = execute(t, "convert", "-i", input, "-o", filepath.Join(t.TempDir(), "app.txt"))
	assert.ErrorContains(t, err, "unknown program dump extension")
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, analysis.Version)
}
