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

package slicer

import (
	"path"

	"github.com/awslabs/cryptoslice/analysis/criteria"
	"github.com/awslabs/cryptoslice/analysis/ir"
	"github.com/awslabs/cryptoslice/analysis/slice"
)

// Outcome is the decision of a DataflowRule on a call unit
type Outcome int

const (
	// Skip drops the unit from the slice
	Skip Outcome = iota
	// Retain keeps the unit in the slice
	Retain
	// Descend keeps the unit, and slices the return statements of the callee
	Descend
	// Generic defers to the generic call rule
	Generic
)

// Flow is the state a DataflowRule reads and updates: the call unit, the seed of the criterion being sliced, and the
// target variables at that unit.
type Flow struct {
	Unit    *ir.Unit
	Seed    criteria.Criterion
	Targets ir.ValueSet

	isDev       func(class string) bool
	trackedType func(typ string) bool
}

// Tracked returns true if v is a target variable
func (f *Flow) Tracked(v ir.Value) bool {
	return !v.IsZero() && f.Targets.Has(v)
}

// Add adds the non-constant values to the targets
func (f *Flow) Add(vs ...ir.Value) {
	for _, v := range vs {
		if !v.IsZero() && !v.IsConstant() {
			f.Targets.Add(v)
		}
	}
}

// AddArgs adds the arguments of the unit at the given positions to the targets. Position -1 is the base.
func (f *Flow) AddArgs(positions ...int) {
	for _, p := range positions {
		f.Add(f.Unit.Arg(p))
	}
}

// Remove removes v from the targets
func (f *Flow) Remove(v ir.Value) {
	f.Targets.Remove(v)
}

// SeedIs returns true if the seed of the criterion is a call to class.method
func (f *Flow) SeedIs(class string, method string) bool {
	return f.Seed.Kind() == slice.TargetInvoke && ir.ClassName(f.Seed.Target()) == class &&
		ir.MethodName(f.Seed.Target()) == method
}

// A DataflowRule says how a call moves the target variables. Class and Method are glob patterns (path.Match syntax)
// matched against the callee.
type DataflowRule struct {
	Class  string
	Method string
	Apply  func(f *Flow) Outcome
}

// Matches returns true if the rule applies to the callee signature
func (r DataflowRule) Matches(signature string) bool {
	c, _ := path.Match(r.Class, ir.ClassName(signature))
	m, _ := path.Match(r.Method, ir.MethodName(signature))
	return c && m
}

// Rules is an ordered registry of DataflowRules, with the generic call rule as fallback. The first matching rule
// applies.
type Rules struct {
	rules   []DataflowRule
	generic DataflowRule
}

// NewRules returns a registry holding the rules, in order
func NewRules(rules ...DataflowRule) *Rules {
	return &Rules{rules: rules, generic: DataflowRule{Class: "*", Method: "*", Apply: genericCall}}
}

// Add registers a rule after the existing ones
func (r *Rules) Add(rule DataflowRule) {
	r.rules = append(r.rules, rule)
}

// Lookup returns the first rule matching the callee signature
func (r *Rules) Lookup(signature string) (DataflowRule, bool) {
	for _, rule := range r.rules {
		if rule.Matches(signature) {
			return rule, true
		}
	}
	return DataflowRule{}, false
}

// Apply applies the rule of the call unit of the flow. A call repeating the seed call adds the seeded arguments;
// other calls go to the matching rule, and to the generic rule when there is none or when the rule defers.
func (r *Rules) Apply(f *Flow) Outcome {
	u := f.Unit
	if f.Seed.Kind() == slice.TargetInvoke && u.Signature == f.Seed.Target() {
		f.AddArgs(f.Seed.Positions()...)
		return Retain
	}
	if rule, ok := r.Lookup(u.Signature); ok {
		if out := rule.Apply(f); out != Generic {
			return out
		}
	}
	return r.generic.Apply(f)
}

func addArg(i int) func(f *Flow) Outcome {
	return func(f *Flow) Outcome {
		f.AddArgs(i)
		return Retain
	}
}

func nothing(*Flow) Outcome { return Retain }

func skip(*Flow) Outcome { return Skip }

// addArgIfSeed adds argument i when the seed is a call to class.method on the same receiver
func addArgIfSeed(class string, method string, i int) func(f *Flow) Outcome {
	return func(f *Flow) Outcome {
		if f.SeedIs(class, method) && f.Tracked(f.Unit.Base) {
			f.AddArgs(i)
			return Retain
		}
		return Generic
	}
}

func addFirstArgIfAny(f *Flow) Outcome {
	if len(f.Unit.Args) == 0 {
		return Generic
	}
	f.AddArgs(0)
	return Retain
}

// DefaultRules returns the registry of the dataflow rules of the platform crypto and collection APIs
func DefaultRules() *Rules {
	return NewRules(
		DataflowRule{Class: "*Exception", Method: "*", Apply: skip},
		DataflowRule{Class: "*Error", Method: "*", Apply: skip},
		DataflowRule{Class: "android.util.Log", Method: "*", Apply: skip},
		DataflowRule{Class: "kotlin.jvm.internal.*", Method: "*", Apply: skip},
		DataflowRule{Class: "java.lang.Integer", Method: "<init>", Apply: addArg(0)},
		DataflowRule{Class: "java.lang.StringBuilder", Method: "append", Apply: nothing},
		DataflowRule{Class: "java.lang.System", Method: "arraycopy", Apply: arrayCopy},
		DataflowRule{Class: "java.text.SimpleDateFormat", Method: "<init>", Apply: addArg(0)},
		DataflowRule{Class: "java.util.*Map", Method: "put", Apply: addArg(1)},
		DataflowRule{Class: "java.util.*Map", Method: "get", Apply: addArg(0)},
		DataflowRule{Class: "javax.crypto.spec.SecretKeySpec", Method: "<init>", Apply: addArg(0)},
		DataflowRule{Class: "javax.crypto.spec.PBEKeySpec", Method: "<init>", Apply: addArg(0)},
		DataflowRule{Class: "javax.crypto.spec.PBEKeySpec", Method: "getSalt", Apply: nothing},
		DataflowRule{Class: "javax.crypto.Mac", Method: "init", Apply: addArgIfSeed("javax.crypto.Mac", "doFinal", 0)},
		DataflowRule{Class: "javax.crypto.Mac", Method: "update",
			Apply: addArgIfSeed("javax.crypto.Mac", "doFinal", 0)},
		DataflowRule{Class: "javax.crypto.Mac", Method: "doFinal", Apply: addFirstArgIfAny},
		DataflowRule{Class: "javax.crypto.Cipher", Method: "update",
			Apply: addArgIfSeed("javax.crypto.Cipher", "doFinal", 0)},
		DataflowRule{Class: "javax.crypto.SecretKeyFactory", Method: "generateSecret", Apply: addArg(0)},
		DataflowRule{Class: "java.lang.String", Method: "valueOf", Apply: addArg(0)},
		DataflowRule{Class: "java.nio.ByteBuffer", Method: "getInt", Apply: nothing},
		DataflowRule{Class: "java.security.MessageDigest", Method: "digest", Apply: addFirstArgIfAny},
		DataflowRule{Class: "java.util.Arrays", Method: "copyOfRange", Apply: addArg(0)},
		DataflowRule{Class: "java.util.Base64$Decoder", Method: "decode", Apply: addArg(0)},
		DataflowRule{Class: "android.content.SharedPreferences", Method: "getString", Apply: addArg(0)},
	)
}

// arrayCopy tracks the source array when the destination is tracked: System.arraycopy(src, srcPos, dest, ...)
func arrayCopy(f *Flow) Outcome {
	dest := f.Unit.Arg(2)
	if f.Tracked(dest) {
		f.Remove(dest)
		f.AddArgs(0)
	}
	return Retain
}

// genericCall is the rule of calls without a specific rule.
//
// For a call with a result, the result is no longer tracked above the call. When the receiver is tracked, nothing
// else changes. Otherwise, when the result was tracked, the arguments of static calls and of calls on locals are
// tracked, the receiver is tracked for application classes and for tracked return types, and the callee is
// descended into.
//
// For a call without a result, the arguments are tracked when the receiver is, and the receiver is tracked otherwise.
func genericCall(f *Flow) Outcome {
	u := f.Unit
	if u.Kind == ir.KindAssignInvoke {
		resultTracked := f.Tracked(u.Left)
		f.Remove(u.Left)
		if f.Tracked(u.Base) || !resultTracked {
			return Retain
		}
		if u.Base.IsZero() || u.Base.IsLocal() {
			f.AddArgs(argPositions(u)...)
		}
		if !u.Base.IsZero() && (f.isDev(u.CalleeClass()) || f.trackedType(ir.ReturnType(u.Signature))) {
			f.Add(u.Base)
		}
		return Descend
	}
	if f.Tracked(u.Base) {
		f.AddArgs(argPositions(u)...)
	} else {
		f.Add(u.Base)
	}
	return Retain
}

func argPositions(u *ir.Unit) []int {
	res := make([]int, len(u.Args))
	for i := range u.Args {
		res[i] = i
	}
	return res
}
