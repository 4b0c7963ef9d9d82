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

package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/awslabs/cryptoslice/analysis/ir"
	"github.com/awslabs/cryptoslice/analysis/rules"
	"github.com/awslabs/cryptoslice/analysis/slice"
	"github.com/awslabs/cryptoslice/internal/formatutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const (
	activity = "<com.example.app.MainActivity: void onCreate(android.os.Bundle)>"
	library  = "<com.vendor.sdk.Crypto: void setup()>"
)

func findings() []rules.Finding {
	line := slice.NewLine(activity, ir.Assign("$r1", `"AES/ECB/PKCS5Padding"`))
	return []rules.Finding{
		{RuleID: "1-1", Description: "ECB mode", Caller: activity, Target: "getInstance($r1)", Lines: []slice.Line{line}},
		{RuleID: "3-1", Description: "static IV", Caller: library, Target: "<init>($r2)"},
		{RuleID: "1-2", Description: "GCM mode", Secure: true, Caller: activity, Target: "getInstance($r3)"},
	}
}

func isDev(class string) bool {
	return strings.HasPrefix(class, "com.example.app")
}

func TestFilter(t *testing.T) {
	all := Filter{}.Apply(findings())
	assert.Len(t, all, 3)

	capped := Filter{MaxAlarms: 2}.Apply(findings())
	assert.Equal(t, []string{"1-1", "3-1"}, []string{capped[0].RuleID, capped[1].RuleID})

	dev := Filter{DevOnly: true, IsDev: isDev}.Apply(findings())
	require.Len(t, dev, 2)
	assert.Equal(t, "1-2", dev[1].RuleID)

	both := Filter{MaxAlarms: 1, DevOnly: true, IsDev: isDev}.Apply(findings())
	require.Len(t, both, 1)
	assert.Equal(t, "1-1", both[0].RuleID)
}

func TestNew(t *testing.T) {
	r := New("app.yaml", "com.example.app", findings(), Stats{Seeds: 3}, Filter{DevOnly: true, IsDev: isDev})
	_, err := uuid.Parse(r.RunID)
	assert.NoError(t, err)
	assert.Len(t, r.Findings, 2)
	assert.Equal(t, 1, r.Stats.Dropped)
	assert.Equal(t, 3, r.Stats.Seeds)
	assert.Equal(t, 1, r.Insecure())

	other := New("app.yaml", "", nil, Stats{}, Filter{})
	assert.NotEqual(t, r.RunID, other.RunID)
	assert.Empty(t, other.Findings)
}

func TestWriteText(t *testing.T) {
	formatutil.SetColor(false)
	defer formatutil.ResetColor()
	r := New("app.yaml", "com.example.app", findings(), Stats{Seeds: 3, Partials: 5}, Filter{})
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatText, r))
	out := buf.String()
	assert.Contains(t, out, "[*] Rule ID: 1-1 (insecure)")
	assert.Contains(t, out, "[*] Rule ID: 1-2 (secure)")
	assert.Contains(t, out, `$r1 = "AES/ECB/PKCS5Padding", callerName=`+activity)
	assert.Contains(t, out, "seeds: 3, partial slices: 5")
	assert.Contains(t, out, "3 findings, 2 insecure")
	assert.NotContains(t, out, "\033[")
}

func TestWriteTextColored(t *testing.T) {
	formatutil.SetColor(true)
	defer formatutil.ResetColor()
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, New("app.yaml", "", findings(), Stats{}, Filter{})))
	assert.Contains(t, buf.String(), "\033[1;31minsecure\033[0m")
}

func TestWriteJSON(t *testing.T) {
	r := New("app.yaml", "com.example.app", findings(), Stats{Seeds: 3}, Filter{})
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, "JSON", r))
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, r.RunID, decoded["runId"])
	require.Len(t, decoded["findings"], 3)
	first := decoded["findings"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "1-1", first["ruleId"])
	lines := first["lines"].([]interface{})
	require.Len(t, lines, 1)
	assert.Equal(t, "assign-variable-constant", lines[0].(map[string]interface{})["kind"])
}

func TestWriteYAML(t *testing.T) {
	r := New("app.yaml", "", findings(), Stats{}, Filter{})
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatYAML, r))
	var decoded Report
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, r.RunID, decoded.RunID)
	require.Len(t, decoded.Findings, 3)
	assert.True(t, decoded.Findings[2].Secure)
	assert.Equal(t, ir.KindAssignVariableConstant, decoded.Findings[0].Lines[0].Kind)
}

func TestWriteUnknownFormat(t *testing.T) {
	assert.Error(t, Write(&bytes.Buffer{}, "sarif", New("app.yaml", "", nil, Stats{}, Filter{})))
}
