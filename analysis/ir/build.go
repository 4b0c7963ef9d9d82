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

// Unit constructors. Operands are given by their text and parsed with ParseValue; string constants must carry their
// quotes, e.g. Assign("$r1", `"AES"`).

func values(texts []string) []Value {
	if len(texts) == 0 {
		return nil
	}
	vs := make([]Value, len(texts))
	for i, t := range texts {
		vs[i] = ParseValue(t)
	}
	return vs
}

// Call returns a call without result. An empty base means a static call.
func Call(base string, signature string, args ...string) *Unit {
	u := &Unit{Kind: KindInvoke, Base: ParseValue(base), Signature: signature, Args: values(args)}
	u.Invoke = defaultInvokeKind(u)
	return u
}

// CallAssign returns a call whose result is assigned to left. An empty base means a static call.
func CallAssign(left string, base string, signature string, args ...string) *Unit {
	u := &Unit{Kind: KindAssignInvoke, Left: ParseValue(left), Base: ParseValue(base), Signature: signature,
		Args: values(args)}
	u.Invoke = defaultInvokeKind(u)
	return u
}

func defaultInvokeKind(u *Unit) InvokeKind {
	switch {
	case u.Base.IsZero():
		return InvokeStatic
	case MethodName(u.Signature) == "<init>":
		return InvokeSpecial
	default:
		return InvokeVirtual
	}
}

// Param returns the identity statement binding parameter i to left
func Param(left string, i int, typ string) *Unit {
	return &Unit{Kind: KindParameter, Left: ParseValue(left), ParamIndex: i, Type: typ}
}

// This returns the identity statement binding the receiver to left
func This(left string, typ string) *Unit {
	return &Unit{Kind: KindThis, Left: ParseValue(left), Type: typ}
}

// CaughtException returns the identity statement binding the caught exception to left
func CaughtException(left string) *Unit {
	return &Unit{Kind: KindCaughtException, Left: ParseValue(left)}
}

// New returns the allocation of an object of type typ
func New(left string, typ string) *Unit {
	return &Unit{Kind: KindNewInstance, Left: ParseValue(left), Type: typ}
}

// NewArray returns the allocation of an array of elemType
func NewArray(left string, elemType string, size string) *Unit {
	return &Unit{Kind: KindNewArray, Left: ParseValue(left), Type: elemType, Right: ParseValue(size)}
}

// Assign returns an assignment to left. The kind is inferred from the operands: field writes when left is a field
// reference, field reads, constant and variable assignments otherwise.
func Assign(left string, right string) *Unit {
	l, r := ParseValue(left), ParseValue(right)
	u := &Unit{Left: l, Right: r}
	switch {
	case l.IsFieldRef() && r.IsConstant():
		u.Kind = KindAssignFieldConstant
		u.Signature = l.FieldSignature()
	case l.IsFieldRef():
		u.Kind = KindAssignFieldVariable
		u.Signature = l.FieldSignature()
	case r.IsFieldRef():
		u.Kind = KindAssignVariableField
		u.Signature = r.FieldSignature()
	case r.IsConstant():
		u.Kind = KindAssignVariableConstant
	default:
		u.Kind = KindAssignVariableVariable
	}
	return u
}

// AssignValue returns the assignment of a constant value to left. It is used when folding a unit to a constant.
func AssignValue(left Value, right Value) *Unit {
	return &Unit{Kind: KindAssignVariableConstant, Left: left, Right: right}
}

// ArrayLoad returns left = base[index]
func ArrayLoad(left string, base string, index string) *Unit {
	return &Unit{Kind: KindAssignVariableArray, Left: ParseValue(left), Base: ParseValue(base),
		Index: ParseValue(index)}
}

// ArrayStore returns base[index] = right
func ArrayStore(base string, index string, right string) *Unit {
	r := ParseValue(right)
	kind := KindAssignArrayVariable
	if r.IsConstant() {
		kind = KindAssignArrayConstant
	}
	return &Unit{Kind: kind, Base: ParseValue(base), Index: ParseValue(index), Right: r}
}

// Op returns left = a op b
func Op(left string, a string, op string, b string) *Unit {
	return &Unit{Kind: KindAssignVariableOperation, Left: ParseValue(left), Op: op, Args: values([]string{a, b})}
}

// Cast returns left = (typ) right
func Cast(left string, typ string, right string) *Unit {
	return &Unit{Kind: KindCast, Left: ParseValue(left), Type: typ, Right: ParseValue(right)}
}

// LengthOf returns left = lengthof right
func LengthOf(left string, right string) *Unit {
	return &Unit{Kind: KindLengthOf, Left: ParseValue(left), Right: ParseValue(right)}
}

// InstanceOf returns left = right instanceof typ
func InstanceOf(left string, right string, typ string) *Unit {
	return &Unit{Kind: KindInstanceOf, Left: ParseValue(left), Right: ParseValue(right), Type: typ}
}

// If returns the conditional branch "if a op b goto target"
func If(a string, op string, b string, target int) *Unit {
	return &Unit{Kind: KindIf, Args: values([]string{a, b}), Op: op, Target: target}
}

// Goto returns the unconditional branch to target
func Goto(target int) *Unit {
	return &Unit{Kind: KindGoto, Target: target}
}

// Switch returns a multiway branch on key. The last target is the default target.
func Switch(key string, targets ...int) *Unit {
	return &Unit{Kind: KindSwitch, Right: ParseValue(key), Targets: targets}
}

// Return returns "return v"
func Return(v string) *Unit {
	return &Unit{Kind: KindReturnValue, Right: ParseValue(v)}
}

// ReturnVoid returns "return"
func ReturnVoid() *Unit {
	return &Unit{Kind: KindReturnVoid}
}

// Throw returns "throw v"
func Throw(v string) *Unit {
	return &Unit{Kind: KindThrow, Right: ParseValue(v)}
}

// Nop returns a no-op
func Nop() *Unit {
	return &Unit{Kind: KindNop}
}

// NewMethod returns a concrete method with the given units
func NewMethod(signature string, units ...*Unit) *Method {
	return &Method{Signature: signature, Units: units}
}
