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
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Kind is the classified kind of a unit.
type Kind int

const (
	// KindOther is any statement the slicer does not model (monitors, breakpoints...)
	KindOther Kind = iota
	KindNop
	KindInvoke
	KindAssignInvoke
	KindParameter
	KindThis
	KindCaughtException
	KindNewInstance
	KindNewArray
	KindAssignVariableConstant
	KindAssignVariableVariable
	KindAssignVariableArray
	KindAssignVariableField
	KindAssignVariableOperation
	KindAssignArrayConstant
	KindAssignArrayVariable
	KindAssignFieldConstant
	KindAssignFieldVariable
	KindCast
	KindLengthOf
	KindInstanceOf
	KindIf
	KindGoto
	KindSwitch
	KindReturnValue
	KindReturnVoid
	KindThrow
)

var kindNames = [...]string{
	KindOther:                   "other",
	KindNop:                     "nop",
	KindInvoke:                  "invoke",
	KindAssignInvoke:            "assign-invoke",
	KindParameter:               "parameter",
	KindThis:                    "this",
	KindCaughtException:         "caught-exception",
	KindNewInstance:             "new-instance",
	KindNewArray:                "new-array",
	KindAssignVariableConstant:  "assign-variable-constant",
	KindAssignVariableVariable:  "assign-variable-variable",
	KindAssignVariableArray:     "assign-variable-array",
	KindAssignVariableField:     "assign-variable-field",
	KindAssignVariableOperation: "assign-variable-operation",
	KindAssignArrayConstant:     "assign-array-constant",
	KindAssignArrayVariable:     "assign-array-variable",
	KindAssignFieldConstant:     "assign-field-constant",
	KindAssignFieldVariable:     "assign-field-variable",
	KindCast:                    "cast",
	KindLengthOf:                "length-of",
	KindInstanceOf:              "instance-of",
	KindIf:                      "if",
	KindGoto:                    "goto",
	KindSwitch:                  "switch",
	KindReturnValue:             "return-value",
	KindReturnVoid:              "return-void",
	KindThrow:                   "throw",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseKind returns the kind whose name is s
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return Kind(k), nil
		}
	}
	return KindOther, fmt.Errorf("unknown unit kind %q", s)
}

// IsInvoke returns true for both call kinds
func (k Kind) IsInvoke() bool {
	return k == KindInvoke || k == KindAssignInvoke
}

// IsBranch returns true for conditional, unconditional and multiway branches
func (k Kind) IsBranch() bool {
	return k == KindIf || k == KindGoto || k == KindSwitch
}

// IsReturn returns true for both return kinds
func (k Kind) IsReturn() bool {
	return k == KindReturnValue || k == KindReturnVoid
}

// IsIdentity returns true for the identity statements binding parameters, receiver and exceptions
func (k Kind) IsIdentity() bool {
	return k == KindParameter || k == KindThis || k == KindCaughtException
}

// DefinesLocal returns true if a unit of that kind assigns its Left operand, and that operand is a local variable.
func (k Kind) DefinesLocal() bool {
	switch k {
	case KindAssignInvoke, KindParameter, KindThis, KindCaughtException, KindNewInstance, KindNewArray,
		KindAssignVariableConstant, KindAssignVariableVariable, KindAssignVariableArray, KindAssignVariableField,
		KindAssignVariableOperation, KindCast, KindLengthOf, KindInstanceOf:
		return true
	}
	return false
}

// MarshalYAML encodes the kind by its name
func (k Kind) MarshalYAML() (interface{}, error) {
	return k.String(), nil
}

// UnmarshalYAML decodes a kind from its name
func (k *Kind) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// InvokeKind is the dispatch kind of a call
type InvokeKind string

const (
	InvokeVirtual   InvokeKind = "virtual"
	InvokeStatic    InvokeKind = "static"
	InvokeSpecial   InvokeKind = "special"
	InvokeInterface InvokeKind = "interface"
	InvokeDynamic   InvokeKind = "dynamic"
)

// MarshalJSON encodes the kind by its name
func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON decodes a kind from its name
func (k *Kind) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
