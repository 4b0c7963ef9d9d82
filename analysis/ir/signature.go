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
	"strings"
)

// Signatures have the form <class: returnType name(paramType1,paramType2)> for methods and <class: type name> for
// fields. The helpers below return "" (or nil) on malformed signatures.

func splitSignature(sig string) (class string, rest string, ok bool) {
	if !strings.HasPrefix(sig, "<") || !strings.HasSuffix(sig, ">") {
		return "", "", false
	}
	inner := sig[1 : len(sig)-1]
	i := strings.Index(inner, ": ")
	if i < 0 {
		return "", "", false
	}
	return inner[:i], inner[i+2:], true
}

// ClassName returns the declaring class of a method or field signature
func ClassName(sig string) string {
	c, _, _ := splitSignature(sig)
	return c
}

// MethodName returns the name of the method (e.g. "<init>", "doFinal")
func MethodName(sig string) string {
	_, rest, ok := splitSignature(sig)
	if !ok {
		return ""
	}
	open := strings.Index(rest, "(")
	if open < 0 {
		return ""
	}
	head := rest[:open]
	if sp := strings.LastIndex(head, " "); sp >= 0 {
		return head[sp+1:]
	}
	return head
}

// ReturnType returns the return type of a method signature
func ReturnType(sig string) string {
	_, rest, ok := splitSignature(sig)
	if !ok {
		return ""
	}
	if sp := strings.Index(rest, " "); sp >= 0 {
		return rest[:sp]
	}
	return ""
}

// ParamTypes returns the parameter types of a method signature
func ParamTypes(sig string) []string {
	_, rest, ok := splitSignature(sig)
	if !ok {
		return nil
	}
	open := strings.Index(rest, "(")
	end := strings.LastIndex(rest, ")")
	if open < 0 || end < open {
		return nil
	}
	params := rest[open+1 : end]
	if params == "" {
		return nil
	}
	return strings.Split(params, ",")
}

// SubSignature returns the part of a method signature that does not depend on the declaring class, e.g.
// "byte[] doFinal(byte[])"
func SubSignature(sig string) string {
	_, rest, _ := splitSignature(sig)
	return rest
}

// MethodSignature builds a method signature
func MethodSignature(class string, subSignature string) string {
	return "<" + class + ": " + subSignature + ">"
}

// FieldType returns the type of a field signature
func FieldType(sig string) string {
	_, rest, ok := splitSignature(sig)
	if !ok {
		return ""
	}
	if sp := strings.Index(rest, " "); sp >= 0 {
		return rest[:sp]
	}
	return ""
}

// FieldName returns the name of a field signature
func FieldName(sig string) string {
	_, rest, ok := splitSignature(sig)
	if !ok {
		return ""
	}
	if sp := strings.Index(rest, " "); sp >= 0 {
		return rest[sp+1:]
	}
	return ""
}

// IsMethodSignature returns true if sig is a well-formed method signature
func IsMethodSignature(sig string) bool {
	_, rest, ok := splitSignature(sig)
	return ok && strings.Contains(rest, "(")
}

// IsFieldSignature returns true if sig is a well-formed field signature
func IsFieldSignature(sig string) bool {
	_, rest, ok := splitSignature(sig)
	return ok && !strings.Contains(rest, "(") && strings.Contains(rest, " ")
}
