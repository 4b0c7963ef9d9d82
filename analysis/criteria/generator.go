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

package criteria

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/awslabs/cryptoslice/analysis/callgraph"
	"github.com/awslabs/cryptoslice/analysis/config"
	"github.com/awslabs/cryptoslice/analysis/ir"
	"github.com/awslabs/cryptoslice/analysis/optimizer"
	"github.com/awslabs/cryptoslice/analysis/slice"
)

// SeedSource is implemented by the rules: it declares the callees to seed on, with the argument positions of interest
type SeedSource interface {
	SlicingSignatures() map[string][]int
}

// Candidate is a callee to seed on, with the argument positions of interest
type Candidate struct {
	Signature string
	Positions []int
}

// CreateCandidates returns the candidates declared by the sources, without duplicates, sorted by signature
func CreateCandidates(sources ...SeedSource) []Candidate {
	seen := map[string]bool{}
	var res []Candidate
	for _, src := range sources {
		for sig, positions := range src.SlicingSignatures() {
			c := Candidate{Signature: sig, Positions: append([]int{}, positions...)}
			key := c.key()
			if !seen[key] {
				seen[key] = true
				res = append(res, c)
			}
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].key() < res[j].key() })
	return res
}

func (c Candidate) key() string {
	var b strings.Builder
	b.WriteString(c.Signature)
	for _, p := range c.Positions {
		b.WriteByte(' ')
		b.WriteString(strconv.Itoa(p))
	}
	return b.String()
}

// Generator creates criteria. It caches the prepared bodies of the methods and the reachability of the callers.
type Generator struct {
	program   ir.Provider
	graph     *callgraph.Graph
	optimizer *optimizer.Optimizer
	config    *config.Config
	logger    *config.LogGroup
	registry  *Registry

	bodies    map[string]*optimizer.Body
	reachable map[string]bool
	entries   []bool
}

// NewGenerator returns a generator over the program and its call graph
func NewGenerator(p ir.Provider, g *callgraph.Graph, o *optimizer.Optimizer, cfg *config.Config,
	logger *config.LogGroup) *Generator {
	return &Generator{
		program:   p,
		graph:     g,
		optimizer: o,
		config:    cfg,
		logger:    logger,
		registry:  NewRegistry(),
		bodies:    map[string]*optimizer.Body{},
		reachable: map[string]bool{},
	}
}

// Registry returns the registry of the criteria created
func (g *Generator) Registry() *Registry {
	return g.registry
}

// Optimizer returns the optimizer preparing the bodies
func (g *Generator) Optimizer() *optimizer.Optimizer {
	return g.optimizer
}

// Body returns the prepared body of the method, or nil if the method has no body or cannot be prepared
func (g *Generator) Body(ctx context.Context, method string) *optimizer.Body {
	if b, ok := g.bodies[method]; ok {
		return b
	}
	var body *optimizer.Body
	if units := g.program.Units(method); len(units) > 0 {
		b, err := g.optimizer.Prepare(ctx, method, units)
		if err != nil {
			g.logger.Warnf("%v", err)
		} else {
			body = b
		}
	} else {
		g.logger.Debugf("no body for %s", method)
	}
	g.bodies[method] = body
	return body
}

// Seeds returns the criteria seeded on the calls to the candidate, in every caller that is not filtered out
func (g *Generator) Seeds(ctx context.Context, c Candidate) []Criterion {
	if _, ok := g.graph.Lookup(c.Signature); !ok {
		return nil
	}
	callers := g.graph.CallerSignatures(c.Signature)
	g.logger.Debugf("%s: %d callers", c.Signature, len(callers))
	var res []Criterion
	for _, caller := range callers {
		if g.skipCaller(caller) {
			continue
		}
		if !g.config.SkipReachability && !g.IsReachable(caller) {
			g.logger.Debugf("skipping unreachable caller %s", caller)
			continue
		}
		res = append(res, g.CreateCriteria(ctx, caller, c.Signature, slice.TargetInvoke, c.Positions, 0)...)
	}
	return res
}

func (g *Generator) skipCaller(caller string) bool {
	class := ir.ClassName(caller)
	if g.config.IsBuiltinClass(class) || !g.config.MatchClassFilter(class) {
		return true
	}
	rt := ir.ReturnType(caller)
	return rt == "boolean" || (g.config.IsBuiltinClass(rt) && !g.config.IsTrackedReturnType(rt))
}

// CreateCriteria scans the prepared body of the caller in reverse order for the units matching the target, and
// returns one criterion per match with a non-empty set of target variables. The criteria are registered.
//
// Units are matched by kind: invokes (and any unit mentioning the callee, for parameter seeds) whose text contains
// the target, returns with a value, and writes of the target field. The target variables are the base for position
// -1 and the arguments at the other positions; the returned value of a return; the stored value of a field write.
func (g *Generator) CreateCriteria(ctx context.Context, caller string, target string, kind slice.TargetKind,
	positions []int, level int) []Criterion {
	if kind == slice.TargetInvoke && len(positions) == 0 && len(ir.ParamTypes(target)) > 0 {
		return nil
	}
	body := g.Body(ctx, caller)
	if body == nil {
		return nil
	}
	var res []Criterion
	for i := range body.Source {
		u := body.Source[body.ReverseIndex(i)]
		if !matches(u, target, kind) {
			continue
		}
		targets := targetValues(u, kind, positions)
		if len(targets) == 0 {
			continue
		}
		c := newCriterion(caller, target, kind, u, i, positions, targets, level)
		g.registry.Register(c)
		res = append(res, c)
	}
	return res
}

func matches(u *ir.Unit, target string, kind slice.TargetKind) bool {
	switch kind {
	case slice.TargetInvoke:
		return u.Kind.IsInvoke() && strings.Contains(u.String(), target)
	case slice.TargetParameter:
		return strings.Contains(u.String(), target)
	case slice.TargetReturn:
		return u.Kind == ir.KindReturnValue
	case slice.TargetFieldWrite:
		return u.Kind == ir.KindAssignFieldVariable && u.FieldSignature() == target
	}
	return false
}

func targetValues(u *ir.Unit, kind slice.TargetKind, positions []int) []ir.Value {
	var res []ir.Value
	switch kind {
	case slice.TargetReturn, slice.TargetFieldWrite:
		res = append(res, u.Right)
	default:
		if !u.Kind.IsInvoke() {
			return nil
		}
		if len(positions) == 0 {
			res = append(res, u.Base)
		}
		for _, p := range positions {
			res = append(res, u.Arg(p))
		}
	}
	var nonZero []ir.Value
	for _, v := range res {
		if !v.IsZero() {
			nonZero = append(nonZero, v)
		}
	}
	return nonZero
}

// IsReachable returns true if one of the caller chains of the method tops out in an entry point: a method of an
// application component or of one of its inner classes, a Runnable implementation, or a static initializer. Methods
// reachable from the entry points through call edges are accepted without enumerating their chains.
func (g *Generator) IsReachable(method string) bool {
	if r, ok := g.reachable[method]; ok {
		return r
	}
	id, ok := g.graph.Lookup(method)
	if !ok {
		return false
	}
	if g.entries == nil {
		g.entries = g.graph.Reachable(g.entryPoints())
	}
	r := g.entries[id]
	if !r {
		for _, top := range g.graph.TopCallers(id, g.config.MaxCallerChains) {
			if g.isEntryPoint(g.graph.Node(top).Signature) {
				r = true
				break
			}
		}
	}
	g.reachable[method] = r
	return r
}

func (g *Generator) entryPoints() []callgraph.NodeID {
	var res []callgraph.NodeID
	for i := 0; i < g.graph.Len(); i++ {
		n := g.graph.Node(callgraph.NodeID(i))
		if n.Kind == callgraph.MethodNode && g.isEntryPoint(n.Signature) {
			res = append(res, n.ID)
		}
	}
	return res
}

func (g *Generator) isEntryPoint(method string) bool {
	if ir.MethodName(method) == "<clinit>" {
		return true
	}
	class := ir.ClassName(method)
	outer := class
	if i := strings.Index(class, "$"); i > 0 {
		outer = class[:i]
	}
	if !g.program.IsDevClass(class) {
		return false
	}
	return g.program.IsAppComponent(class) || g.program.IsAppComponent(outer) ||
		g.program.Implements(class, runnable)
}

const runnable = "java.lang.Runnable"
