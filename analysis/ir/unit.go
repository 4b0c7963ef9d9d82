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
	"fmt"
	"strings"
)

// A Unit is one IR statement of a method body.
//
// Operands by kind:
//   - invokes: Base (absent for static calls), Signature, Args; Left for assign-invoke
//   - identity statements: Left, ParamIndex and Type for parameters
//   - new-instance: Left, Type. new-array: Left, Type (element type), Right (size)
//   - assign-variable-*: Left and Right. Array loads use Base and Index, operations use Args and Op
//   - assign-array-*: Base, Index, Right
//   - assign-field-*: Left is the field reference, Right the value
//   - cast, length-of, instance-of: Left, Right, and Type for cast and instance-of
//   - if: Args (the two compared operands), Op, Target. goto: Target. switch: Right (key), Targets (default last)
//   - return-value: Right
type Unit struct {
	Kind       Kind       `yaml:"kind" msgpack:"kind"`
	Invoke     InvokeKind `yaml:"invoke,omitempty" msgpack:"invoke,omitempty"`
	Left       Value      `yaml:"left,omitempty" msgpack:"left,omitempty"`
	Right      Value      `yaml:"right,omitempty" msgpack:"right,omitempty"`
	Base       Value      `yaml:"base,omitempty" msgpack:"base,omitempty"`
	Index      Value      `yaml:"index,omitempty" msgpack:"index,omitempty"`
	Args       []Value    `yaml:"args,omitempty" msgpack:"args,omitempty"`
	Op         string     `yaml:"op,omitempty" msgpack:"op,omitempty"`
	Signature  string     `yaml:"sig,omitempty" msgpack:"sig,omitempty"`
	Type       string     `yaml:"type,omitempty" msgpack:"type,omitempty"`
	ParamIndex int        `yaml:"param,omitempty" msgpack:"param,omitempty"`
	Target     int        `yaml:"target,omitempty" msgpack:"target,omitempty"`
	Targets    []int      `yaml:"targets,omitempty" msgpack:"targets,omitempty"`

	// Pos is the ordinal position of the unit in its method. It is set when the program is finalized.
	Pos int `yaml:"-" msgpack:"-"`
}

// Clone returns a deep copy of the unit
func (u *Unit) Clone() *Unit {
	c := *u
	if u.Args != nil {
		c.Args = append([]Value{}, u.Args...)
	}
	if u.Targets != nil {
		c.Targets = append([]int{}, u.Targets...)
	}
	return &c
}

// NewNop returns a no-op unit at position pos
func NewNop(pos int) *Unit {
	return &Unit{Kind: KindNop, Pos: pos}
}

// CalleeClass returns the class of the callee for invokes, or the class of the field for field accesses
func (u *Unit) CalleeClass() string {
	return ClassName(u.Signature)
}

// CalleeName returns the method name for invokes
func (u *Unit) CalleeName() string {
	return MethodName(u.Signature)
}

// FieldSignature returns the signature of the field accessed by the unit, or ""
func (u *Unit) FieldSignature() string {
	switch u.Kind {
	case KindAssignVariableField:
		return u.Right.FieldSignature()
	case KindAssignFieldConstant, KindAssignFieldVariable:
		return u.Left.FieldSignature()
	}
	return ""
}

// IsNewException returns true for allocations of exceptions and errors
func (u *Unit) IsNewException() bool {
	return u.Kind == KindNewInstance && (strings.HasSuffix(u.Type, "Exception") || strings.HasSuffix(u.Type, "Error"))
}

// Arg returns the i-th argument of an invoke, or the base when i is -1. Returns the zero Value when absent.
func (u *Unit) Arg(i int) Value {
	if i == -1 {
		return u.Base
	}
	if i < 0 || i >= len(u.Args) {
		return Value{}
	}
	return u.Args[i]
}

// Variables returns the read/write set of the unit: every operand it defines or reads.
func (u *Unit) Variables() []Value {
	var vs []Value
	add := func(v Value) {
		if !v.IsZero() {
			vs = append(vs, v)
		}
	}
	add(u.Left)
	if u.Left.Base != "" {
		add(ParseValue(u.Left.Base))
	}
	add(u.Right)
	if u.Right.Base != "" {
		add(ParseValue(u.Right.Base))
	}
	add(u.Base)
	add(u.Index)
	for _, a := range u.Args {
		add(a)
	}
	return vs
}

// Uses returns the operands read by the unit
func (u *Unit) Uses() []Value {
	var vs []Value
	for _, v := range u.Variables() {
		if u.Kind.DefinesLocal() && v.Text == u.Left.Text {
			continue
		}
		vs = append(vs, v)
	}
	return vs
}

// Defined returns the local variable defined by the unit, or the zero Value
func (u *Unit) Defined() Value {
	if u.Kind.DefinesLocal() && u.Left.IsVariable() {
		return u.Left
	}
	return Value{}
}

// ConditionValues returns the operands compared by an if
func (u *Unit) ConditionValues() []Value {
	if u.Kind != KindIf {
		return nil
	}
	return u.Args
}

// InvokeExpr returns the textual form of the call expression of an invoke
func (u *Unit) InvokeExpr() string {
	args := make([]string, len(u.Args))
	for i, a := range u.Args {
		args[i] = a.Text
	}
	kind := u.Invoke
	if kind == "" {
		if u.Base.IsZero() {
			kind = InvokeStatic
		} else {
			kind = InvokeVirtual
		}
	}
	receiver := ""
	if !u.Base.IsZero() {
		receiver = u.Base.Text + "."
	}
	return fmt.Sprintf("%sinvoke %s%s(%s)", kind, receiver, u.Signature, strings.Join(args, ", "))
}

// String returns the textual form of the unit. This is the form matched against target statements.
//
//gocyclo:ignore
func (u *Unit) String() string {
	switch u.Kind {
	case KindNop:
		return "nop"
	case KindInvoke:
		return u.InvokeExpr()
	case KindAssignInvoke:
		return u.Left.Text + " = " + u.InvokeExpr()
	case KindParameter:
		return fmt.Sprintf("%s := @parameter%d: %s", u.Left.Text, u.ParamIndex, u.Type)
	case KindThis:
		return fmt.Sprintf("%s := @this: %s", u.Left.Text, u.Type)
	case KindCaughtException:
		return u.Left.Text + " := @caughtexception"
	case KindNewInstance:
		return u.Left.Text + " = new " + u.Type
	case KindNewArray:
		return fmt.Sprintf("%s = newarray (%s)[%s]", u.Left.Text, u.Type, u.Right.Text)
	case KindAssignVariableConstant, KindAssignVariableVariable, KindAssignVariableField,
		KindAssignFieldConstant, KindAssignFieldVariable:
		return u.Left.Text + " = " + u.Right.Text
	case KindAssignVariableArray:
		return fmt.Sprintf("%s = %s[%s]", u.Left.Text, u.Base.Text, u.Index.Text)
	case KindAssignVariableOperation:
		if len(u.Args) == 1 {
			return fmt.Sprintf("%s = %s %s", u.Left.Text, u.Op, u.Args[0].Text)
		}
		if len(u.Args) == 2 {
			return fmt.Sprintf("%s = %s %s %s", u.Left.Text, u.Args[0].Text, u.Op, u.Args[1].Text)
		}
		return u.Left.Text + " = " + u.Op
	case KindAssignArrayConstant, KindAssignArrayVariable:
		return fmt.Sprintf("%s[%s] = %s", u.Base.Text, u.Index.Text, u.Right.Text)
	case KindCast:
		return fmt.Sprintf("%s = (%s) %s", u.Left.Text, u.Type, u.Right.Text)
	case KindLengthOf:
		return fmt.Sprintf("%s = lengthof %s", u.Left.Text, u.Right.Text)
	case KindInstanceOf:
		return fmt.Sprintf("%s = %s instanceof %s", u.Left.Text, u.Right.Text, u.Type)
	case KindIf:
		if len(u.Args) == 2 {
			return fmt.Sprintf("if %s %s %s goto %d", u.Args[0].Text, u.Op, u.Args[1].Text, u.Target)
		}
		return fmt.Sprintf("if goto %d", u.Target)
	case KindGoto:
		return fmt.Sprintf("goto %d", u.Target)
	case KindSwitch:
		parts := make([]string, len(u.Targets))
		for i, t := range u.Targets {
			if i == len(u.Targets)-1 {
				parts[i] = fmt.Sprintf("default: goto %d", t)
			} else {
				parts[i] = fmt.Sprintf("goto %d", t)
			}
		}
		return fmt.Sprintf("switch(%s) {%s}", u.Right.Text, strings.Join(parts, "; "))
	case KindReturnValue:
		return "return " + u.Right.Text
	case KindReturnVoid:
		return "return"
	case KindThrow:
		return "throw " + u.Right.Text
	default:
		return u.Kind.String()
	}
}

// Validate checks that the operands required by the kind are present and that branch targets are within a method
// of n units.
func (u *Unit) Validate(n int) error {
	switch u.Kind {
	case KindInvoke, KindAssignInvoke:
		if !IsMethodSignature(u.Signature) {
			return fmt.Errorf("unit %d: invalid callee signature %q", u.Pos, u.Signature)
		}
		if u.Kind == KindAssignInvoke && u.Left.IsZero() {
			return fmt.Errorf("unit %d: assign-invoke without left operand", u.Pos)
		}
	case KindIf:
		if len(u.Args) != 2 {
			return fmt.Errorf("unit %d: if needs two operands, got %d", u.Pos, len(u.Args))
		}
		fallthrough
	case KindGoto:
		if u.Target < 0 || u.Target >= n {
			return fmt.Errorf("unit %d: branch target %d out of range", u.Pos, u.Target)
		}
	case KindSwitch:
		if len(u.Targets) == 0 {
			return fmt.Errorf("unit %d: switch without targets", u.Pos)
		}
		for _, t := range u.Targets {
			if t < 0 || t >= n {
				return fmt.Errorf("unit %d: switch target %d out of range", u.Pos, t)
			}
		}
	case KindAssignFieldConstant, KindAssignFieldVariable:
		if !u.Left.IsFieldRef() {
			return fmt.Errorf("unit %d: field assignment to a non-field %q", u.Pos, u.Left.Text)
		}
	case KindAssignVariableField:
		if !u.Right.IsFieldRef() {
			return fmt.Errorf("unit %d: field read of a non-field %q", u.Pos, u.Right.Text)
		}
	}
	return nil
}
