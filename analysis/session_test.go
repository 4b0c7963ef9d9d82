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

package analysis

import (
	"context"
	"embed"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/awslabs/cryptoslice/analysis/config"
	"github.com/awslabs/cryptoslice/analysis/ir"
	"github.com/awslabs/cryptoslice/analysis/report"
	"github.com/awslabs/cryptoslice/internal/analysistest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

//go:embed testdata
var testfs embed.FS

const rulesDir = "rules/testdata/rules"

func quiet() *config.LogGroup {
	return config.NewLogGroupWithLevel(config.ErrLevel, io.Discard)
}

func newTestSession() *Session {
	cfg := config.NewDefault()
	cfg.RulesDir = rulesDir
	return NewSession(cfg, quiet())
}

func ruleIDs(r *report.Report) []string {
	var res []string
	for _, f := range r.Findings {
		res = append(res, f.RuleID)
	}
	return res
}

func TestRunFixtures(t *testing.T) {
	tests := []struct {
		name    string
		program *ir.Program
		file    string
		want    []string
	}{
		{"direct literal", analysistest.DirectLiteral(), "direct.yaml", []string{"1-1"}},
		{"local aliasing", analysistest.LocalAliasing(), "aliasing.msgpack", []string{"1-1"}},
		{"interprocedural", analysistest.Interprocedural(), "interprocedural.yml", []string{"1-1"}},
		{"infeasible branch", analysistest.InfeasibleBranch(), "infeasible.mp", []string{"1-2"}},
		{"static field", analysistest.StaticFieldConstant(false), "static.json", []string{"3-1"}},
		{"static field writers", analysistest.StaticFieldConstant(true), "writers.yaml", []string{"3-1"}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			input := filepath.Join(t.TempDir(), test.file)
			require.NoError(t, ir.Save(test.program, input))

			s := newTestSession()
			r, err := s.Run(context.Background(), input)
			require.NoError(t, err)
			assert.Equal(t, test.want, ruleIDs(r))
			assert.Equal(t, input, r.Input)
			assert.Equal(t, analysistest.Package, r.Package)
			assert.NotEmpty(t, r.RunID)
			assert.Equal(t, 3, r.Stats.Rules)
			assert.Positive(t, r.Stats.Seeds)
			assert.Positive(t, r.Stats.Partials)
		})
	}
}

func TestAnalyzeTestdata(t *testing.T) {
	dirs, err := fs.ReadDir(testfs, "testdata")
	require.NoError(t, err)
	require.NotEmpty(t, dirs)
	for _, dir := range dirs {
		if !dir.IsDir() {
			continue
		}
		name := "testdata/" + dir.Name()
		t.Run(dir.Name(), func(t *testing.T) {
			p, cfg := analysistest.LoadTest(t, testfs, name)
			expected := analysistest.GetExpectedFindings(t, testfs, name)
			cfg.RulesDir = rulesDir

			s := NewSession(cfg, quiet())
			require.NoError(t, s.LoadRules())
			r, err := s.Analyze(context.Background(), p)
			require.NoError(t, err)

			require.Len(t, r.Findings, len(expected))
			for i, e := range expected {
				assert.Equal(t, e.Rule, r.Findings[i].RuleID)
				assert.Equal(t, e.Caller, r.Findings[i].Caller)
				assert.Equal(t, e.Secure, r.Findings[i].Secure)
			}
		})
	}
}

func TestDevOnlyDropsLibraryFindings(t *testing.T) {
	p, cfg := analysistest.LoadTest(t, testfs, "testdata/library-caller")
	cfg.RulesDir = rulesDir
	cfg.DevOnly = false

	s := NewSession(cfg, quiet())
	require.NoError(t, s.LoadRules())
	r, err := s.Analyze(context.Background(), p)
	require.NoError(t, err)
	require.Equal(t, []string{"1-1"}, ruleIDs(r))
	assert.Equal(t, "<com.thirdparty.Lib: void setup()>", r.Findings[0].Caller)

	cfg.DevOnly = true
	s = NewSession(cfg, quiet())
	require.NoError(t, s.LoadRules())
	r, err = s.Analyze(context.Background(), p)
	require.NoError(t, err)
	assert.Empty(t, r.Findings)
	assert.Equal(t, 1, r.Stats.Dropped)
}

func TestRunFatalInputs(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "app.yaml")
	require.NoError(t, ir.Save(analysistest.LocalAliasing(), input))
	notADir := filepath.Join(dir, "file.txt")
	require.NoError(t, os.WriteFile(notADir, []byte("x"), 0o600))

	tests := []struct {
		name     string
		input    string
		platform string
		rules    string
	}{
		{"missing input", filepath.Join(dir, "missing.yaml"), "", rulesDir},
		{"platform is a file", input, notADir, rulesDir},
		{"missing platform", input, filepath.Join(dir, "android-33"), rulesDir},
		{"missing rules", input, "", filepath.Join(dir, "rules")},
		{"no rules", input, "", ""},
		{"unknown dump format", notADir, "", rulesDir},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := config.NewDefault()
			cfg.PlatformDir = test.platform
			cfg.RulesDir = test.rules
			s := NewSession(cfg, quiet())
			r, err := s.Run(context.Background(), test.input)
			assert.ErrorIs(t, err, ErrFatal)
			assert.Nil(t, r)
			assert.Nil(t, s.Slicer)
		})
	}
}

func TestRunEmptyRulesDirectory(t *testing.T) {
	input := filepath.Join(t.TempDir(), "app.yaml")
	require.NoError(t, ir.Save(analysistest.LocalAliasing(), input))
	cfg := config.NewDefault()
	cfg.RulesDir = t.TempDir()
	_, err := NewSession(cfg, quiet()).Run(context.Background(), input)
	assert.ErrorIs(t, err, ErrFatal)
}

func TestRunCancelled(t *testing.T) {
	input := filepath.Join(t.TempDir(), "app.yaml")
	require.NoError(t, ir.Save(analysistest.DirectLiteral(), input))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestSession().Run(ctx, input)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunWithoutSeeds(t *testing.T) {
	p := analysistest.NewProgram(analysistest.NewClass(analysistest.MainActivity, "android.app.Activity",
		ir.NewMethod(analysistest.ActivityRun,
			ir.This("r0", analysistest.MainActivity),
			ir.ReturnVoid())))
	input := filepath.Join(t.TempDir(), "app.yaml")
	require.NoError(t, ir.Save(p, input))
	r, err := newTestSession().Run(context.Background(), input)
	require.NoError(t, err)
	assert.Empty(t, r.Findings)
	assert.Zero(t, r.Stats.Seeds)
}

func TestPlatformClasses(t *testing.T) {
	dir := t.TempDir()
	platform := filepath.Join(dir, "android-33")
	require.NoError(t, os.Mkdir(platform, 0o700))
	lib := ir.NewProgram("android")
	lib.AddClass(&ir.Class{Name: "android.app.Activity", Super: "android.content.Context"})
	lib.AddClass(&ir.Class{Name: analysistest.MainActivity, Super: "java.lang.Object"})
	require.NoError(t, ir.Save(lib, filepath.Join(platform, "framework.msgpack")))
	require.NoError(t, os.WriteFile(filepath.Join(platform, "README"), []byte("sdk"), 0o600))

	input := filepath.Join(dir, "app.yaml")
	require.NoError(t, ir.Save(analysistest.LocalAliasing(), input))
	cfg := config.NewDefault()
	cfg.RulesDir = rulesDir
	cfg.PlatformDir = platform
	s := NewSession(cfg, quiet())
	p, err := s.LoadProgram(input)
	require.NoError(t, err)

	activity := p.Class("android.app.Activity")
	require.NotNil(t, activity)
	assert.Equal(t, "android.content.Context", activity.Super)
	// the application's own declaration wins
	assert.Equal(t, "android.app.Activity", p.Class(analysistest.MainActivity).Super)
	assert.Nil(t, s.CheckError())
}

func TestSessionErrors(t *testing.T) {
	s := newTestSession()
	assert.Nil(t, s.CheckError())
	s.AddError(nil)
	s.AddError(os.ErrNotExist)
	s.AddError(os.ErrPermission)
	assert.Len(t, s.Errors(), 2)
	assert.NotNil(t, s.CheckError())
	assert.NotNil(t, s.CheckError())
	assert.Nil(t, s.CheckError())
}
