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
	"regexp"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ValueKind classifies operands.
type ValueKind int

const (
	ValueNone ValueKind = iota
	ValueLocal
	ValueStack
	ValueIntConst
	ValueLongConst
	ValueFloatConst
	ValueDoubleConst
	ValueStringConst
	ValueNullConst
	ValueClassConst
	ValueArrayConst
	ValueFieldRef
	ValueParamRef
	ValueOther
)

var (
	localRegex      = regexp.MustCompile(`^[a-z]\d{1,5}$`)
	stackRegex      = regexp.MustCompile(`^\$[a-z]\d{1,5}$`)
	identifierRegex = regexp.MustCompile(`^\$?[A-Za-z_][\w]*$`)
	intRegex        = regexp.MustCompile(`^-?\d+$`)
	longRegex       = regexp.MustCompile(`^-?\d+L$`)
	floatRegex      = regexp.MustCompile(`^-?(\d+\.?\d*|\.\d+)([eE][-+]?\d+)?F$`)
	doubleRegex     = regexp.MustCompile(`^-?(\d+\.\d*|\.\d+)([eE][-+]?\d+)?D?$|^-?\d+([eE][-+]?\d+)?D$`)
	paramRefRegex   = regexp.MustCompile(`^@parameter(\d+)(: .*)?$`)
)

// Value is an operand of a unit. Two values denote the same variable if and only if their texts are equal.
type Value struct {
	Kind ValueKind `yaml:"-" msgpack:"k"`
	// Text is the printed form of the value
	Text string `yaml:"text" msgpack:"t"`
	// Type is the declared type of the value, when known
	Type string `yaml:"type,omitempty" msgpack:"y,omitempty"`
	// Base is the receiver of an instance field reference
	Base string `yaml:"-" msgpack:"b,omitempty"`
}

// Null is the null constant
var Null = Value{Kind: ValueNullConst, Text: "null"}

// Fresh is the alias map sentinel meaning the slot holds a different value than before
var Fresh = Value{Kind: ValueOther, Text: "<fresh>"}

// V parses the text of a value.
func V(text string) Value {
	return ParseValue(text)
}

// ParseValue returns the value whose printed form is text, with its kind inferred from the text.
func ParseValue(text string) Value {
	t := strings.TrimSpace(text)
	v := Value{Text: t}
	switch {
	case t == "":
		v.Kind = ValueNone
	case t == "null":
		v.Kind = ValueNullConst
	case strings.HasPrefix(t, "\""):
		v.Kind = ValueStringConst
		v.Type = "java.lang.String"
	case strings.HasPrefix(t, "class \""):
		v.Kind = ValueClassConst
		v.Type = "java.lang.Class"
	case strings.HasPrefix(t, "{") && strings.HasSuffix(t, "}"):
		v.Kind = ValueArrayConst
	case intRegex.MatchString(t):
		v.Kind = ValueIntConst
		v.Type = "int"
	case longRegex.MatchString(t):
		v.Kind = ValueLongConst
		v.Type = "long"
	case floatRegex.MatchString(t):
		v.Kind = ValueFloatConst
		v.Type = "float"
	case doubleRegex.MatchString(t):
		v.Kind = ValueDoubleConst
		v.Type = "double"
	case strings.HasPrefix(t, "<") && strings.HasSuffix(t, ">"):
		v.Kind = ValueFieldRef
		v.Type = FieldType(t)
	case strings.Contains(t, ".<") && strings.HasSuffix(t, ">"):
		v.Kind = ValueFieldRef
		idx := strings.Index(t, ".<")
		v.Base = t[:idx]
		v.Type = FieldType(t[idx+1:])
	case paramRefRegex.MatchString(t):
		v.Kind = ValueParamRef
		if i := strings.Index(t, ": "); i >= 0 {
			v.Type = t[i+2:]
		}
	case identifierRegex.MatchString(t):
		if strings.HasPrefix(t, "$") {
			v.Kind = ValueStack
		} else {
			v.Kind = ValueLocal
		}
	default:
		v.Kind = ValueOther
	}
	return v
}

// ArrayLiteral returns the array constant value with the given elements
func ArrayLiteral(elemType string, elems []string) Value {
	return Value{Kind: ValueArrayConst, Text: "{" + strings.Join(elems, ", ") + "}", Type: elemType + "[]"}
}

// String returns the text of the value
func (v Value) String() string {
	return v.Text
}

// IsZero returns true for the absent value
func (v Value) IsZero() bool {
	return v.Text == ""
}

// IsVariable returns true for locals and stack temporaries
func (v Value) IsVariable() bool {
	return v.Kind == ValueLocal || v.Kind == ValueStack
}

// IsLocal returns true if the value is named like a local variable (e.g. r0, i3)
func (v Value) IsLocal() bool {
	return localRegex.MatchString(v.Text)
}

// IsStack returns true if the value is named like a stack temporary (e.g. $r0, $i3)
func (v Value) IsStack() bool {
	return stackRegex.MatchString(v.Text)
}

// IsConstant returns true for all constant kinds, including array literals
func (v Value) IsConstant() bool {
	switch v.Kind {
	case ValueIntConst, ValueLongConst, ValueFloatConst, ValueDoubleConst, ValueStringConst, ValueNullConst,
		ValueClassConst, ValueArrayConst:
		return true
	}
	return false
}

// IsNumeric returns true for numeric constants
func (v Value) IsNumeric() bool {
	switch v.Kind {
	case ValueIntConst, ValueLongConst, ValueFloatConst, ValueDoubleConst:
		return true
	}
	return false
}

// IsFieldRef returns true for static and instance field references
func (v Value) IsFieldRef() bool {
	return v.Kind == ValueFieldRef
}

// FieldSignature returns the signature of the field referenced, or "" if v is not a field reference
func (v Value) FieldSignature() string {
	if v.Kind != ValueFieldRef {
		return ""
	}
	if v.Base != "" {
		return strings.TrimPrefix(v.Text, v.Base+".")
	}
	return v.Text
}

// NumericText returns the text of a numeric constant without its type suffix
func (v Value) NumericText() string {
	return NumericText(v.Text)
}

// Unquoted returns the content of a string constant, or the text of any other value
func (v Value) Unquoted() string {
	if v.Kind == ValueStringConst {
		if s, err := strconv.Unquote(v.Text); err == nil {
			return s
		}
		return strings.Trim(v.Text, "\"")
	}
	return v.Text
}

// NumericText strips the type suffix of a numeric literal
func NumericText(s string) string {
	return strings.TrimRight(s, "LFDlfd")
}

// IsNumberText returns true if the text is a numeric literal
func IsNumberText(s string) bool {
	return ParseValue(s).IsNumeric()
}

// MarshalYAML encodes values as their text, unless they carry a type that cannot be inferred from the text
func (v Value) MarshalYAML() (interface{}, error) {
	inferred := ParseValue(v.Text)
	if v.Type == "" || v.Type == inferred.Type {
		return v.Text, nil
	}
	return struct {
		Text string `yaml:"text"`
		Type string `yaml:"type"`
	}{v.Text, v.Type}, nil
}

// UnmarshalYAML decodes a value from its text, or from a mapping with a text and a type
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		// quoted yaml scalars lose their quotes: string constants must be written with explicit quotes, e.g. '"AES"'
		*v = ParseValue(node.Value)
		return nil
	}
	var raw struct {
		Text string `yaml:"text"`
		Type string `yaml:"type"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	*v = ParseValue(raw.Text)
	if raw.Type != "" {
		v.Type = raw.Type
	}
	return nil
}

// ValueSet is a set of values keyed by text. The zero value is not usable; use NewValueSet.
type ValueSet map[string]Value

// NewValueSet returns a set containing the values provided (absent values are ignored)
func NewValueSet(values ...Value) ValueSet {
	s := make(ValueSet, len(values))
	for _, v := range values {
		s.Add(v)
	}
	return s
}

// Add adds v to the set
func (s ValueSet) Add(v Value) {
	if !v.IsZero() {
		s[v.Text] = v
	}
}

// AddAll adds all the values to the set
func (s ValueSet) AddAll(values ...Value) {
	for _, v := range values {
		s.Add(v)
	}
}

// Remove removes v from the set
func (s ValueSet) Remove(v Value) {
	delete(s, v.Text)
}

// Has returns true if v is in the set
func (s ValueSet) Has(v Value) bool {
	_, ok := s[v.Text]
	return ok
}

// Copy returns a copy of the set
func (s ValueSet) Copy() ValueSet {
	c := make(ValueSet, len(s))
	for k, v := range s {
		c[k] = v
	}
	return c
}

// Intersect returns the values of vs that are in the set, excluding numeric constants
func (s ValueSet) Intersect(vs []Value) []Value {
	var res []Value
	seen := map[string]bool{}
	for _, v := range vs {
		if v.IsZero() || v.IsNumeric() || seen[v.Text] {
			continue
		}
		if s.Has(v) {
			seen[v.Text] = true
			res = append(res, v)
		}
	}
	return res
}

// Sorted returns the texts of the values in the set, sorted
func (s ValueSet) Sorted() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Values returns the values of the set, sorted by text
func (s ValueSet) Values() []Value {
	res := make([]Value, 0, len(s))
	for _, k := range s.Sorted() {
		res = append(res, s[k])
	}
	return res
}
