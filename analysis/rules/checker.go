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

package rules

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/awslabs/cryptoslice/analysis/config"
	"github.com/awslabs/cryptoslice/analysis/ir"
	"github.com/awslabs/cryptoslice/analysis/optimizer"
	"github.com/awslabs/cryptoslice/analysis/slice"
	"github.com/awslabs/cryptoslice/analysis/solver"
	"github.com/awslabs/cryptoslice/internal/funcutil"
	"golang.org/x/exp/slices"
)

// A Finding is a rule whose insecure or secure pattern holds on a combined slice
type Finding struct {
	RuleID      string `yaml:"rule-id" json:"ruleId"`
	Description string `yaml:"description" json:"description"`
	Secure      bool   `yaml:"secure" json:"secure"`
	// Caller is the method holding the seed statement
	Caller string `yaml:"caller" json:"caller"`
	// Target is the seed statement
	Target string `yaml:"target" json:"target"`
	// Lines are the lines where the checks of the condition found a match
	Lines []slice.Line `yaml:"lines" json:"lines"`
}

// Seed is the criterion a combined slice was computed for
type Seed interface {
	Caller() string
	Target() string
	Statement() string
	Pos() int
	Positions() []int
}

// ParamSource gives the argument positions retained at the seed statements of the criteria
type ParamSource interface {
	RetainedParams(statement string) ([]int, bool)
}

// BodySource gives the prepared bodies of the methods
type BodySource interface {
	Body(ctx context.Context, method string) *optimizer.Body
}

// cipher and MAC calls whose combination defines the scheme type
var (
	cipherFinalSignatures = []string{
		"<javax.crypto.Cipher: byte[] doFinal(byte[])>",
		"<javax.crypto.Cipher: byte[] doFinal(byte[],int,int)>",
		"<javax.crypto.Cipher: int doFinal(byte[],int)>",
		"<javax.crypto.Cipher: int doFinal(byte[],int,int,byte[])>",
		"<javax.crypto.Cipher: int doFinal(byte[],int,int,byte[],int)>",
	}
	macSignatures = []string{
		"<javax.crypto.Mac: void update(byte[])>",
		"<javax.crypto.Mac: void update(byte[],int,int)>",
		"<javax.crypto.Mac: void update(java.nio.ByteBuffer)>",
		"<javax.crypto.Mac: byte[] doFinal(byte[])>",
		"<javax.crypto.Mac: void doFinal(byte[],int)>",
	}
)

// Checker evaluates the rules on the combined slices of the criteria. It must be created after slicing: the partial
// slices of the store are indexed on first use.
type Checker struct {
	rules   []*Rule
	store   *slice.Store
	params  ParamSource
	bodies  BodySource
	solver  *solver.Solver
	program ir.Provider
	logger  *config.LogGroup

	index *partialIndex
	// subslices caches the transitive subslices by starting lookup
	subslices map[string][][]slice.Line
	// found holds the lines matched by the findings of each caller and rule number
	found map[string]map[string]bool
}

// NewChecker returns a checker of the rules over the slices of the store
func NewChecker(rules []*Rule, store *slice.Store, params ParamSource, bodies BodySource, s *solver.Solver,
	p ir.Provider, logger *config.LogGroup) *Checker {
	return &Checker{
		rules:     rules,
		store:     store,
		params:    params,
		bodies:    bodies,
		solver:    s,
		program:   p,
		logger:    logger,
		subslices: map[string][][]slice.Line{},
		found:     map[string]map[string]bool{},
	}
}

// Rules returns the rules of the checker, sorted by number
func (c *Checker) Rules() []*Rule {
	return c.rules
}

// TargetRules returns the rules slicing the seed: the rules whose slicing signatures map the target of the seed to
// exactly its positions
func (c *Checker) TargetRules(seed Seed) []*Rule {
	positions := seed.Positions()
	sort.Ints(positions)
	var res []*Rule
	for _, r := range c.rules {
		ps, ok := r.Signatures[seed.Target()]
		if !ok {
			continue
		}
		sorted := append([]int{}, ps...)
		sort.Ints(sorted)
		if slices.Equal(sorted, positions) {
			res = append(res, r)
		}
	}
	return res
}

// Check evaluates the insecure then the secure pattern of the rules of the seed on one of its combined slices. The
// seed statement is checked along with the lines of the slice. A rule matched for the caller of the seed is not
// reported again on a slice that holds one of the lines already matched.
func (c *Checker) Check(ctx context.Context, seed Seed, combined slice.Combined) []Finding {
	lines := c.withSeedLine(ctx, seed, combined.Lines)
	var res []Finding
	for _, r := range c.TargetRules(seed) {
		for _, p := range r.Patterns() {
			if f, ok := c.checkPattern(ctx, seed, r, p, lines); ok {
				res = append(res, f)
			}
		}
	}
	return res
}

func (c *Checker) withSeedLine(ctx context.Context, seed Seed, lines []slice.Line) []slice.Line {
	body := c.bodies.Body(ctx, seed.Caller())
	if body == nil || seed.Pos() < 0 || seed.Pos() >= body.Len() {
		return lines
	}
	l := slice.NewLine(seed.Caller(), body.Whole[seed.Pos()])
	if funcutil.Exists(lines, func(x slice.Line) bool { return x.Key() == l.Key() }) {
		return lines
	}
	return append(append([]slice.Line{}, lines...), l)
}

func (c *Checker) checkPattern(ctx context.Context, seed Seed, r *Rule, p *Pattern,
	lines []slice.Line) (Finding, bool) {
	key := fmt.Sprintf("%s-%d", seed.Caller(), r.Number())
	found := c.found[key]
	if funcutil.Exists(lines, func(l slice.Line) bool { return found[l.Key()] }) {
		return Finding{}, false
	}
	secure := p == r.Secure
	for _, cond := range p.Conditions {
		res, seen, ok := c.checkCondition(ctx, seed, secure, cond, r.Secure, lines)
		if !ok {
			continue
		}
		if found == nil {
			found = map[string]bool{}
			c.found[key] = found
		}
		for _, l := range seen {
			found[l.Key()] = true
		}
		c.logger.Debugf("rule %s holds for %s", p.RuleID, seed.Statement())
		return Finding{
			RuleID:      p.RuleID,
			Description: p.Description,
			Secure:      secure,
			Caller:      seed.Caller(),
			Target:      seed.Statement(),
			Lines:       res,
		}, true
	}
	return Finding{}, false
}

// hit is a match of a check: lower is the matched line, in the slice or in one of its subslices, and upper the line
// of the slice that led to it
type hit struct {
	lower slice.Line
	upper slice.Line
}

// checkCondition returns the matched lines when every check of the condition matched, along with the lines of the
// slice involved in the matches of the checks and of their counterparts in the secure pattern
func (c *Checker) checkCondition(ctx context.Context, seed Seed, secure bool, cond *Condition, counter *Pattern,
	lines []slice.Line) ([]slice.Line, []slice.Line, bool) {
	var res, seen []slice.Line
	add := func(h *hit) {
		res = append(res, h.lower)
		seen = append(seen, h.upper)
	}
	var counterAlgorithms []algorithmPattern
	var counterSignatures []string
	if counter != nil {
		counterAlgorithms = firstAlgorithms(counter.Conditions)
		counterSignatures = firstSignatures(counter.Conditions)
	}
	checks := cond.Checks()

	if checks[CheckSchemeTypes] {
		cipher := c.findSignature(ctx, lines, cipherFinalSignatures)
		mac := c.findSignature(ctx, lines, macSignatures)
		if cipher == nil || mac == nil {
			return nil, nil, false
		}
		if cond.TargetSchemeTypes != nil &&
			!funcutil.Contains(cond.TargetSchemeTypes, schemeType(seed.Caller(), cipher.lower, mac.lower, lines)) {
			return nil, nil, false
		}
		add(cipher)
		add(mac)
	}
	if checks[CheckAlgorithms] {
		target := c.findAlgorithm(ctx, lines, cond.algorithms)
		h, ok := decide(secure, target, c.findAlgorithm(ctx, lines, counterAlgorithms))
		if !ok {
			return nil, nil, false
		}
		add(h)
	}
	var counterSignature *hit
	if counterSignatures != nil {
		counterSignature = c.findSignature(ctx, lines, counterSignatures)
	}
	if checks[CheckSignatures] {
		target := c.findSignature(ctx, lines, cond.TargetSignatures)
		h, ok := decide(secure, target, counterSignature)
		if !ok {
			return nil, nil, false
		}
		add(h)
	}
	if checks[CheckConstant] {
		target := c.findConstant(ctx, lines, cond)
		if target == nil && cond.IsAnyConstant() {
			target = c.findArray(ctx, lines, cond)
		}
		h, ok := decide(secure, target, counterSignature)
		if !ok {
			return nil, nil, false
		}
		add(h)
	}
	return dedupLines(res), dedupLines(seen), len(res) > 0
}

func firstAlgorithms(cs Conditions) []algorithmPattern {
	for _, c := range cs {
		if c.algorithms != nil {
			return c.algorithms
		}
	}
	return nil
}

func firstSignatures(cs Conditions) []string {
	for _, c := range cs {
		if c.TargetSignatures != nil {
			return c.TargetSignatures
		}
	}
	return nil
}

// decide returns the match of a check given the match of the target values and of their secure counterparts. The
// latest of the two in program order wins; an insecure pattern holds only when the target match wins.
func decide(secure bool, target *hit, counter *hit) (*hit, bool) {
	if target == nil {
		return nil, false
	}
	last := latest(target, counter)
	if last == nil {
		return nil, false
	}
	if !secure && last != target {
		return nil, false
	}
	return last, true
}

func latest(a *hit, b *hit) *hit {
	if b == nil {
		return a
	}
	switch {
	case a.lower.Caller == b.lower.Caller:
		if b.lower.Number > a.lower.Number {
			return b
		}
		return a
	case a.upper.Caller == b.upper.Caller:
		if b.upper.Number > a.upper.Number {
			return b
		}
		return a
	}
	return nil
}

// schemeType classifies how the data flows between the cipher and the MAC calls
func schemeType(caller string, cipher slice.Line, mac slice.Line, lines []slice.Line) string {
	cu, mu := cipher.Unit, mac.Unit
	if cu == nil || mu == nil {
		return ""
	}
	cipherArgs := ir.NewValueSet(cu.Args...)
	macArgs := ir.NewValueSet(mu.Args...)
	if cu.Kind == ir.KindAssignInvoke && macArgs.Has(cu.Left) {
		return EncryptThenMac
	}
	if mu.Kind == ir.KindAssignInvoke && cipherArgs.Has(mu.Left) {
		return MacThenEncrypt
	}
	if len(cipherArgs.Intersect(mu.Args)) > 0 {
		return EncryptAndMac
	}
	for _, l := range lines {
		if l.Caller == caller && l.Kind == ir.KindParameter && l.Unit != nil && macArgs.Has(l.Unit.Left) {
			return EncryptAndMac
		}
	}
	return ""
}

// findSignature returns the latest call to one of the signatures. In the slice, only calls that were seeds of a
// criterion match; the return slices of the callees and the writer slices of the fields read are searched too.
func (c *Checker) findSignature(ctx context.Context, lines []slice.Line, signatures []string) *hit {
	if len(signatures) == 0 {
		return nil
	}
	for i := len(lines) - 1; i >= 0; i-- {
		l := lines[i]
		u := l.Unit
		if u == nil {
			continue
		}
		if u.Kind.IsInvoke() && funcutil.Contains(signatures, u.Signature) {
			if _, ok := c.params.RetainedParams(l.Statement); ok {
				return &hit{lower: l, upper: l}
			}
		}
		for _, sub := range c.lineSubslices(ctx, l, lines, false) {
			for j := len(sub) - 1; j >= 0; j-- {
				su := sub[j].Unit
				if su != nil && su.Kind.IsInvoke() && funcutil.Contains(signatures, su.Signature) {
					return &hit{lower: sub[j], upper: l}
				}
			}
		}
	}
	return nil
}

// findAlgorithm returns the latest line with an algorithm name matched by one of the patterns
func (c *Checker) findAlgorithm(ctx context.Context, lines []slice.Line, patterns []algorithmPattern) *hit {
	if len(patterns) == 0 {
		return nil
	}
	for i := len(lines) - 1; i >= 0; i-- {
		l := lines[i]
		if l.Unit == nil {
			continue
		}
		for _, sub := range c.lineSubslices(ctx, l, lines, false) {
			for j := len(sub) - 1; j >= 0; j-- {
				su := sub[j].Unit
				if su == nil || isKeySpecInit(su) {
					continue
				}
				if anyAlgorithm(patterns, tokens(su)) {
					return &hit{lower: sub[j], upper: l}
				}
			}
		}
		if anyAlgorithm(patterns, tokens(l.Unit)) {
			return &hit{lower: l, upper: l}
		}
	}
	return nil
}

// key material is not an algorithm name, even when it spells one
func isKeySpecInit(u *ir.Unit) bool {
	return u.Kind.IsInvoke() && u.CalleeClass() == "javax.crypto.spec.SecretKeySpec" && u.CalleeName() == "<init>"
}

// tokens returns the texts of the constants a unit passes or assigns
func tokens(u *ir.Unit) []string {
	var vs []ir.Value
	switch {
	case u.Kind.IsInvoke():
		vs = u.Args
	case u.Kind == ir.KindAssignVariableConstant, u.Kind == ir.KindReturnValue:
		vs = []ir.Value{u.Right}
	}
	var res []string
	for _, v := range vs {
		if v.Kind == ir.ValueStringConst {
			res = append(res, v.Unquoted())
		}
	}
	return res
}

// findConstant returns the latest constant matched by the regex of the condition, and by its length or size
// expression when it has one
func (c *Checker) findConstant(ctx context.Context, lines []slice.Line, cond *Condition) *hit {
	for i := len(lines) - 1; i >= 0; i-- {
		l := lines[i]
		u := l.Unit
		if u == nil {
			continue
		}
		subs := c.lineSubslices(ctx, l, lines, true)
		if u.Kind.IsInvoke() {
			if cond.TargetConstantLength == "" && cond.TargetConstantSize == "" && len(subs) == 0 &&
				c.isOpaqueValueCall(u) {
				return &hit{lower: l, upper: l}
			}
		}
		if c.constantMatches(ctx, l, cond) {
			return &hit{lower: l, upper: l}
		}
		for _, sub := range subs {
			for j := len(sub) - 1; j >= 0; j-- {
				if c.constantMatches(ctx, sub[j], cond) {
					return &hit{lower: sub[j], upper: l}
				}
			}
		}
	}
	return nil
}

// isOpaqueValueCall returns true for calls to application methods without a body returning an int or a string:
// their result is a value the application holds without computing it
func (c *Checker) isOpaqueValueCall(u *ir.Unit) bool {
	cls := u.CalleeClass()
	if c.program.IsBuiltinClass(cls) || !c.program.IsDevClass(cls) || len(c.program.Units(u.Signature)) > 0 {
		return false
	}
	rt := ir.ReturnType(u.Signature)
	return rt == "int" || rt == "java.lang.String"
}

func (c *Checker) constantMatches(ctx context.Context, l slice.Line, cond *Condition) bool {
	u := l.Unit
	if u == nil {
		return false
	}
	var vs []ir.Value
	switch {
	case u.Kind.IsInvoke():
		positions, _ := c.params.RetainedParams(l.Statement)
		switch {
		case len(positions) == 0, len(positions) > 1 && funcutil.Contains(positions, -1):
			return false
		case len(positions) == 1 && positions[0] == -1:
			vs = u.Args
		default:
			for _, p := range positions {
				if p >= 0 && p < len(u.Args) {
					vs = append(vs, u.Args[p])
				}
			}
		}
	case u.Kind == ir.KindAssignVariableConstant, u.Kind == ir.KindReturnValue:
		vs = []ir.Value{u.Right}
	}
	for _, v := range vs {
		if c.constantValueMatches(ctx, v, cond) {
			return true
		}
	}
	return false
}

func (c *Checker) constantValueMatches(ctx context.Context, v ir.Value, cond *Condition) bool {
	if !v.IsConstant() || v.Kind == ir.ValueNullConst {
		return false
	}
	number := v.IsNumeric()
	s := v.Unquoted()
	if number {
		s = v.NumericText()
		if v.Kind == ir.ValueFloatConst {
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				s = strconv.Itoa(int(f))
			}
		}
	}
	if s == "" || !cond.regex.MatchString(s) || IsRecognizedAlgorithm(s) {
		return false
	}
	if cond.IsAnyConstant() && cond.TargetConstantSize == "" && number {
		return false
	}
	if cond.TargetConstantLength == "" && cond.TargetConstantSize == "" {
		return true
	}
	expr := cond.TargetConstantLength
	x := strconv.Itoa(len(s))
	if expr == "" {
		expr = cond.TargetConstantSize
		if bits, ok := rsaModulusBits(s); ok {
			x = strconv.Itoa(bits)
		} else if number {
			x = s
		}
	}
	return c.solver.EvalExpression(ctx, x, expr) == solver.True
}

// findArray returns the latest array allocation whose size is a constant matched by the length or size expression,
// or by any number when there is none
func (c *Checker) findArray(ctx context.Context, lines []slice.Line, cond *Condition) *hit {
	expr := cond.TargetConstantLength
	if expr == "" {
		expr = cond.TargetConstantSize
	}
	for i := len(lines) - 1; i >= 0; i-- {
		l := lines[i]
		if l.Unit == nil {
			continue
		}
		if l.Kind == ir.KindNewArray && c.isTargetArray(ctx, l, expr) {
			return &hit{lower: l, upper: l}
		}
		for _, sub := range c.lineSubslices(ctx, l, lines, false) {
			if c.isArrayInit(ctx, sub, expr) {
				return &hit{lower: sub[0], upper: l}
			}
			for j := len(sub) - 1; j >= 0; j-- {
				if sub[j].Kind == ir.KindNewArray && c.isTargetArray(ctx, sub[j], expr) {
					return &hit{lower: sub[j], upper: l}
				}
			}
		}
	}
	return nil
}

func (c *Checker) isTargetArray(ctx context.Context, l slice.Line, expr string) bool {
	size := l.Unit.Right
	if !size.IsConstant() {
		return false
	}
	if expr == "" {
		return size.IsNumeric()
	}
	return c.solver.EvalExpression(ctx, size.NumericText(), expr) == solver.True
}

// isArrayInit returns true for the slice of a field initialized with a fixed array: allocation, element stores, then
// the field write
func (c *Checker) isArrayInit(ctx context.Context, sub []slice.Line, expr string) bool {
	if len(sub) < 2 || sub[0].Kind != ir.KindNewArray || !c.isTargetArray(ctx, sub[0], expr) {
		return false
	}
	second, last := sub[1].Kind, sub[len(sub)-1].Kind
	return (second == ir.KindAssignArrayConstant || second == ir.KindAssignArrayVariable) &&
		last == ir.KindAssignFieldVariable
}

func dedupLines(lines []slice.Line) []slice.Line {
	seen := map[string]bool{}
	var res []slice.Line
	for _, l := range lines {
		if !seen[l.Key()] {
			seen[l.Key()] = true
			res = append(res, l)
		}
	}
	return res
}
