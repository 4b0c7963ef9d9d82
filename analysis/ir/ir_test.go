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

package ir

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const getInstance = "<javax.crypto.Cipher: javax.crypto.Cipher getInstance(java.lang.String)>"

func TestParseValue(t *testing.T) {
	cases := map[string]ValueKind{
		"r0":                          ValueLocal,
		"$r12":                        ValueStack,
		"$stack3":                     ValueStack,
		"42":                          ValueIntConst,
		"-7L":                         ValueLongConst,
		"1.5F":                        ValueFloatConst,
		"2.25":                        ValueDoubleConst,
		`"AES"`:                       ValueStringConst,
		"null":                        ValueNullConst,
		`class "Ljava/lang/String;"`:  ValueClassConst,
		"{1, 2, 3}":                   ValueArrayConst,
		"<com.a.B: byte[] IV>":        ValueFieldRef,
		"r0.<com.a.B: java.lang.String key>": ValueFieldRef,
		"@parameter1: byte[]":         ValueParamRef,
	}
	for text, kind := range cases {
		assert.Equal(t, kind, ParseValue(text).Kind, "kind of %q", text)
	}

	inst := ParseValue("r0.<com.a.B: java.lang.String key>")
	assert.Equal(t, "r0", inst.Base)
	assert.Equal(t, "<com.a.B: java.lang.String key>", inst.FieldSignature())
	assert.Equal(t, "java.lang.String", inst.Type)

	assert.True(t, ParseValue("r3").IsLocal())
	assert.False(t, ParseValue("$r3").IsLocal())
	assert.True(t, ParseValue("$r3").IsStack())
	assert.Equal(t, "AES", ParseValue(`"AES"`).Unquoted())
	assert.Equal(t, "-7", ParseValue("-7L").NumericText())
}

func TestValueSetIntersectSkipsNumbers(t *testing.T) {
	s := NewValueSet(V("$r1"), V("3"), V(`"AES"`))
	got := s.Intersect([]Value{V("$r1"), V("3"), V(`"AES"`), V("$r2"), V("$r1")})
	require.Len(t, got, 2)
	assert.Equal(t, "$r1", got[0].Text)
	assert.Equal(t, `"AES"`, got[1].Text)
	assert.Equal(t, []string{"\"AES\"", "$r1", "3"}, s.Sorted())
}

func TestSignatureHelpers(t *testing.T) {
	sig := "<javax.crypto.Cipher: byte[] doFinal(byte[],int,int)>"
	assert.Equal(t, "javax.crypto.Cipher", ClassName(sig))
	assert.Equal(t, "doFinal", MethodName(sig))
	assert.Equal(t, "byte[]", ReturnType(sig))
	assert.Equal(t, []string{"byte[]", "int", "int"}, ParamTypes(sig))
	assert.Equal(t, "byte[] doFinal(byte[],int,int)", SubSignature(sig))
	assert.Nil(t, ParamTypes("<a.B: void run()>"))
	assert.True(t, IsMethodSignature(sig))
	assert.False(t, IsFieldSignature(sig))

	field := "<com.a.B: byte[] IV>"
	assert.Equal(t, "IV", FieldName(field))
	assert.Equal(t, "byte[]", FieldType(field))
	assert.True(t, IsFieldSignature(field))
	assert.Equal(t, "", MethodName("not a signature"))
}

func TestUnitString(t *testing.T) {
	cases := []struct {
		unit *Unit
		text string
	}{
		{CallAssign("$r1", "", getInstance, `"AES"`),
			`$r1 = staticinvoke <javax.crypto.Cipher: javax.crypto.Cipher getInstance(java.lang.String)>("AES")`},
		{Call("$r1", "<javax.crypto.Cipher: void init(int,java.security.Key)>", "1", "$r2"),
			"virtualinvoke $r1.<javax.crypto.Cipher: void init(int,java.security.Key)>(1, $r2)"},
		{Param("r1", 0, "java.lang.String"), "r1 := @parameter0: java.lang.String"},
		{NewArray("$r2", "byte", "16"), "$r2 = newarray (byte)[16]"},
		{ArrayStore("$r2", "0", "7"), "$r2[0] = 7"},
		{Assign("<com.a.B: byte[] IV>", "$r2"), "<com.a.B: byte[] IV> = $r2"},
		{Op("$i1", "$i0", "+", "1"), "$i1 = $i0 + 1"},
		{If("$i0", ">=", "16", 7), "if $i0 >= 16 goto 7"},
		{Switch("$i0", 3, 5, 9), "switch($i0) {goto 3; goto 5; default: goto 9}"},
		{Return("$r3"), "return $r3"},
	}
	for _, c := range cases {
		assert.Equal(t, c.text, c.unit.String())
	}
}

func TestAssignKindInference(t *testing.T) {
	assert.Equal(t, KindAssignVariableConstant, Assign("$r1", `"x"`).Kind)
	assert.Equal(t, KindAssignVariableVariable, Assign("$r1", "$r2").Kind)
	assert.Equal(t, KindAssignVariableField, Assign("$r1", "<a.B: int f>").Kind)
	assert.Equal(t, KindAssignFieldConstant, Assign("<a.B: int f>", "3").Kind)
	assert.Equal(t, KindAssignFieldVariable, Assign("r0.<a.B: int f>", "$i0").Kind)
	assert.Equal(t, "<a.B: int f>", Assign("r0.<a.B: int f>", "$i0").FieldSignature())
}

func TestUnitVariables(t *testing.T) {
	u := Assign("$r1", "r0.<a.B: byte[] key>")
	texts := []string{}
	for _, v := range u.Variables() {
		texts = append(texts, v.Text)
	}
	assert.ElementsMatch(t, []string{"$r1", "r0.<a.B: byte[] key>", "r0"}, texts)
	assert.Equal(t, "$r1", u.Defined().Text)
	assert.Len(t, u.Uses(), 2)
}

func TestLoadYAML(t *testing.T) {
	p, problems, err := Load(filepath.Join("testdata", "ecb.yaml"))
	require.NoError(t, err)
	require.Len(t, problems, 1, "the broken method should be reported")
	assert.Nil(t, p.Units("<com.example.app.MainActivity: void broken()>"))

	units := p.Units("<com.example.app.MainActivity: void onCreate(android.os.Bundle)>")
	require.Len(t, units, 7)
	assert.Equal(t, 3, units[3].Pos)
	assert.Equal(t, KindAssignInvoke, units[3].Kind)
	assert.Equal(t, `"AES/ECB/PKCS5Padding"`, units[2].Right.Text)
	assert.Equal(t, ValueStringConst, units[2].Right.Kind)

	assert.True(t, p.IsAppComponent("com.example.app.MainActivity"))
	assert.True(t, p.IsAppComponent("com.example.app.App"))
	assert.True(t, p.IsDevClass("com.example.app.MainActivity"))
	assert.False(t, p.IsDevClass("javax.crypto.Cipher"))
	assert.True(t, p.Implements("com.example.app.MainActivity", "android.app.Activity"))

	consts := p.StaticConstantFields("com.example.app.MainActivity")
	assert.Equal(t, `"AES/ECB/PKCS5Padding"`, consts["<com.example.app.MainActivity: java.lang.String MODE>"].Text)
}

func TestEncodeDecodeMsgpack(t *testing.T) {
	p, _, err := Load(filepath.Join("testdata", "ecb.yaml"))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, p, FormatMsgpack))
	q, problems, err := Decode(&buf, FormatMsgpack)
	require.NoError(t, err)
	assert.Empty(t, problems)

	sig := "<com.example.app.MainActivity: void onCreate(android.os.Bundle)>"
	require.Len(t, q.Units(sig), len(p.Units(sig)))
	for i, u := range p.Units(sig) {
		assert.Equal(t, u.String(), q.Units(sig)[i].String())
	}
}

func TestFormatOf(t *testing.T) {
	f, err := FormatOf("app.MP")
	require.NoError(t, err)
	assert.Equal(t, FormatMsgpack, f)
	_, err = FormatOf("app.apk")
	assert.Error(t, err)
}
