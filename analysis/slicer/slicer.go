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
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/awslabs/cryptoslice/analysis/callgraph"
	"github.com/awslabs/cryptoslice/analysis/config"
	"github.com/awslabs/cryptoslice/analysis/criteria"
	"github.com/awslabs/cryptoslice/analysis/ir"
	"github.com/awslabs/cryptoslice/analysis/optimizer"
	"github.com/awslabs/cryptoslice/analysis/slice"
	"github.com/awslabs/cryptoslice/internal/funcutil"
)

// Stats counts what happened during the runs of a slicer
type Stats struct {
	// Processed is the number of criteria sliced
	Processed int
	// Memoized is the number of criteria whose slice was already known or in progress when dequeued
	Memoized int
	// Spawned is the number of criteria enqueued by ascent and descent
	Spawned int
	// Retracted is the number of spawned criteria dropped because the unit that spawned them was dropped
	Retracted int
	// Infeasible is the number of criteria whose seed can never execute
	Infeasible int
}

func (s Stats) String() string {
	return fmt.Sprintf("%d processed, %d memoized, %d spawned, %d retracted, %d infeasible",
		s.Processed, s.Memoized, s.Spawned, s.Retracted, s.Infeasible)
}

// Slicer computes the partial slices of criteria. It owns the worklist: slicing one criterion produces the criteria
// it depends on, which are enqueued and processed by the same loop. A criterion that descends into callees suspends
// until their return criteria are sliced, and then resumes its scan.
//
// A Slicer is not safe for concurrent use.
type Slicer struct {
	program   ir.Provider
	graph     *callgraph.Graph
	info      *callgraph.Info
	gen       *criteria.Generator
	optimizer *optimizer.Optimizer
	rules     *Rules
	config    *config.Config
	logger    *config.LogGroup

	store *slice.Store
	tree  *slice.Tree
	stats Stats

	// criteria being sliced, possibly suspended
	active map[string]bool
	// criteria enqueued and not dequeued yet
	queued map[string]*item
	// spawned criteria to skip when dequeued
	retracted map[string]bool
	// return criteria of callees, and the descent waiting for them
	descents map[string]*descent
	// suspended criteria whose descents completed, to requeue
	ready []*item
	// queued parameter criteria, by caller and seed index
	pendingParams map[string]*item
	// parameter positions retained per seed statement
	retainedParams map[string][]int
}

// New returns a slicer over the program. The generator creates the criteria of ascents and descents; it also
// provides the prepared bodies.
func New(p ir.Provider, g *callgraph.Graph, info *callgraph.Info, gen *criteria.Generator, rules *Rules,
	cfg *config.Config, logger *config.LogGroup) *Slicer {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Slicer{
		program:        p,
		graph:          g,
		info:           info,
		gen:            gen,
		optimizer:      gen.Optimizer(),
		rules:          rules,
		config:         cfg,
		logger:         logger,
		store:          slice.NewStore(),
		tree:           slice.NewTree(),
		active:         map[string]bool{},
		queued:         map[string]*item{},
		retracted:      map[string]bool{},
		descents:       map[string]*descent{},
		pendingParams:  map[string]*item{},
		retainedParams: map[string][]int{},
	}
}

// Store returns the partial slices computed so far
func (s *Slicer) Store() *slice.Store { return s.store }

// Tree returns the criteria tree built so far
func (s *Slicer) Tree() *slice.Tree { return s.tree }

// Stats returns the counters of the runs so far
func (s *Slicer) Stats() Stats { return s.stats }

// RetainedParams returns the parameter positions that were retained by the feasible criteria seeded at statement,
// and false if no such criterion was sliced
func (s *Slicer) RetainedParams(statement string) ([]int, bool) {
	ps, ok := s.retainedParams[statement]
	return append([]int{}, ps...), ok
}

// item is an entry of the worklist: a criterion to slice, or a suspended scan to resume
type item struct {
	criterion criteria.Criterion
	state     *scanState
}

type stepResult struct {
	children []criteria.Criterion
	partial  *slice.Partial
}

// scanState is the state of the backward scan of one criterion
type scanState struct {
	c    criteria.Criterion
	body *optimizer.Body
	// next is the index in body.Reversed of the next unit to visit
	next    int
	targets ir.ValueSet
	// lines in reverse order
	lines []slice.Line
	// last is the position of the last retained unit
	last      int
	gotos     map[int]bool
	params    map[int]bool
	spawnedAt map[int][]string
	spawned   int
	// descent the scan is suspended on
	descent *descent
}

func (st *scanState) retain(u *ir.Unit) {
	st.lines = append(st.lines, slice.NewLine(st.c.Caller(), u))
	st.last = u.Pos
}

func (st *scanState) add(vs ...ir.Value) {
	for _, v := range vs {
		if !v.IsZero() && !v.IsConstant() {
			st.targets.Add(v)
		}
	}
}

// descent records the arguments a call added to the targets of its caller, until the return criteria of the callee
// tell which of them matter. The suspended caller is parked on the descent until then.
type descent struct {
	parent  *scanState
	added   map[int]ir.Value
	waiting map[string]bool
	keep    map[int]bool
	resume  *item
}

// done records that the return criterion id finished with the given parameters retained. When all return criteria
// have finished, the arguments that no callee parameter needs are removed from the targets of the caller, and the
// parked caller is returned.
func (d *descent) done(id string, params []int) *item {
	delete(d.waiting, id)
	for _, p := range params {
		d.keep[p] = true
	}
	if len(d.waiting) > 0 {
		return nil
	}
	d.narrow()
	it := d.resume
	d.resume = nil
	return it
}

func (d *descent) narrow() {
	kept := ir.NewValueSet()
	for i, v := range d.added {
		if d.keep[i] {
			kept.Add(v)
		}
	}
	for i, v := range d.added {
		if !d.keep[i] && !kept.Has(v) {
			d.parent.targets.Remove(v)
		}
	}
}

// Run slices the roots and every criterion they spawn. It returns early with the context error if the context is
// done. Criteria already sliced by a previous run are not sliced again.
func (s *Slicer) Run(ctx context.Context, roots []criteria.Criterion) error {
	var queue []*item
	enqueue := func(c criteria.Criterion) {
		it := &item{criterion: c}
		s.queued[c.ID()] = it
		delete(s.retracted, c.ID())
		if c.Kind() == slice.TargetParameter {
			s.pendingParams[paramKey(c)] = it
		}
		queue = append(queue, it)
	}
	for _, r := range roots {
		if s.store.Has(r.ID()) || s.queued[r.ID()] != nil {
			s.stats.Memoized++
			continue
		}
		s.tree.Add(r.ID(), r.Level())
		enqueue(r)
	}
	processed := 0
	for head := 0; head < len(queue); head++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		it := queue[head]
		queue[head] = nil
		if it.state == nil {
			id := it.criterion.ID()
			if s.queued[id] != it {
				// merged into another criterion, or enqueued twice
				continue
			}
			delete(s.queued, id)
			if s.retracted[id] {
				delete(s.retracted, id)
				s.release(id, nil)
				queue = append(queue, s.takeReady()...)
				continue
			}
			if s.config.MaxCriteria > 0 && processed >= s.config.MaxCriteria {
				s.logger.Warnf("criteria limit of %d reached, %d criteria left unprocessed", s.config.MaxCriteria,
					len(queue)-head)
				return nil
			}
			processed++
		}
		res := s.step(ctx, it)
		for _, c := range res.children {
			s.stats.Spawned++
			enqueue(c)
		}
		if res.partial != nil {
			s.store.Put(res.partial)
		}
		queue = append(queue, s.takeReady()...)
	}
	s.logger.Debugf("slicer: %s", s.stats)
	return nil
}

func (s *Slicer) step(ctx context.Context, it *item) stepResult {
	if it.state != nil {
		return s.resume(ctx, it.state)
	}
	c := it.criterion
	if s.store.Has(c.ID()) || s.active[c.ID()] {
		s.stats.Memoized++
		if p, ok := s.store.Get(c.ID()); ok {
			s.release(c.ID(), p.Params)
		} else if d, ok := s.descents[c.ID()]; ok {
			// still being sliced: every added argument may matter
			for i := range d.added {
				d.keep[i] = true
			}
			s.release(c.ID(), nil)
		}
		return stepResult{}
	}
	s.stats.Processed++
	body := s.gen.Body(ctx, c.Caller())
	if body == nil || c.Pos() < 0 || c.Pos() >= body.Len() {
		partial, children := s.finish(ctx, c, nil, false)
		return stepResult{children: children, partial: partial}
	}
	if body.IsDead(c.Pos()) {
		s.stats.Infeasible++
		s.logger.Debugf("seed %q of %s is infeasible", c.Statement(), c.Caller())
		partial, children := s.finish(ctx, c, nil, true)
		return stepResult{children: children, partial: partial}
	}
	st := &scanState{
		c:         c,
		body:      body,
		next:      c.Start() + 1,
		targets:   ir.NewValueSet(),
		last:      c.Pos(),
		gotos:     map[int]bool{},
		params:    map[int]bool{},
		spawnedAt: map[int][]string{},
	}
	st.add(c.TargetValues()...)
	s.active[c.ID()] = true
	return s.resume(ctx, st)
}

func (s *Slicer) resume(ctx context.Context, st *scanState) stepResult {
	children, suspended := s.scan(ctx, st)
	if suspended {
		// resumed by the descent once the return criteria of the callee are sliced
		st.descent.resume = &item{criterion: st.c, state: st}
		st.descent = nil
		return stepResult{children: children}
	}
	partial, more := s.finish(ctx, st.c, st, false)
	return stepResult{children: append(children, more...), partial: partial}
}

// scan visits the units backward from the current index. It stops at the end of the body, or after a call that
// spawned return criteria of its callee, in which case the scan is suspended.
func (s *Slicer) scan(ctx context.Context, st *scanState) ([]criteria.Criterion, bool) {
	var children []criteria.Criterion
	for st.next < len(st.body.Reversed) {
		u := st.body.Reversed[st.next]
		st.next++
		var (
			retained bool
			spawned  []criteria.Criterion
			suspend  bool
		)
		switch u.Kind {
		case ir.KindNop, ir.KindReturnVoid, ir.KindReturnValue, ir.KindThrow:
		case ir.KindIf:
			retained = s.visitIf(st, u)
		case ir.KindGoto:
			retained = s.visitGoto(st, u)
		case ir.KindSwitch:
			retained = true
		default:
			retained, spawned, suspend = s.visitUnit(ctx, st, u)
		}
		if retained {
			st.retain(u)
			if s.logger.LogsTrace() {
				s.logger.Tracef("%s retains %d: %s", st.c.ID(), u.Pos, u)
			}
		}
		if len(spawned) > 0 {
			st.spawned += len(spawned)
			for _, c := range spawned {
				st.spawnedAt[u.Pos] = append(st.spawnedAt[u.Pos], c.ID())
			}
			children = append(children, spawned...)
		}
		if suspend {
			return children, true
		}
	}
	return children, false
}

func (s *Slicer) visitIf(st *scanState, u *ir.Unit) bool {
	if u.Target <= u.Pos {
		if len(st.targets.Intersect(u.ConditionValues())) == 0 {
			return false
		}
	} else if u.Target <= st.last {
		return false
	}
	st.add(u.ConditionValues()...)
	return true
}

func (s *Slicer) visitGoto(st *scanState, u *ir.Unit) bool {
	t := u.Target
	if t <= u.Pos || st.gotos[t] || t <= st.last {
		return false
	}
	st.gotos[t] = true
	// the end of a switch case jumps over the next cases: resume at the switch itself
	if sw, ok := s.info.SwitchAt(st.c.Caller(), u.Pos+1); ok && sw < u.Pos {
		st.next = st.body.ReverseIndex(sw)
	}
	return true
}

// visitUnit applies the rule of the unit kind, and returns whether the unit is retained, the criteria spawned, and
// whether the scan must suspend
func (s *Slicer) visitUnit(ctx context.Context, st *scanState, u *ir.Unit) (bool, []criteria.Criterion, bool) {
	if len(st.targets.Intersect(u.Variables())) == 0 {
		return false, nil, false
	}
	t := st.targets
	switch u.Kind {
	case ir.KindParameter:
		st.params[u.ParamIndex] = true
	case ir.KindThis, ir.KindCaughtException:
		t.Remove(u.Left)
	case ir.KindNewInstance, ir.KindAssignVariableConstant:
		if !t.Has(u.Left) {
			return false, nil, false
		}
		t.Remove(u.Left)
	case ir.KindNewArray:
		if !t.Has(u.Left) {
			return false, nil, false
		}
		t.Remove(u.Left)
		st.add(u.Right)
	case ir.KindAssignVariableVariable, ir.KindCast, ir.KindLengthOf, ir.KindInstanceOf:
		t.Remove(u.Left)
		st.add(u.Right)
	case ir.KindAssignVariableOperation:
		t.Remove(u.Left)
		st.add(u.Args...)
	case ir.KindAssignVariableArray:
		t.Remove(u.Left)
		st.add(u.Base)
	case ir.KindAssignArrayVariable:
		st.add(u.Right)
	case ir.KindAssignVariableField:
		t.Remove(u.Left)
		return true, s.ascendField(ctx, st, u), false
	case ir.KindInvoke, ir.KindAssignInvoke:
		before := t.Copy()
		f := &Flow{Unit: u, Seed: st.c, Targets: t, isDev: s.program.IsDevClass,
			trackedType: s.config.IsTrackedReturnType}
		switch s.rules.Apply(f) {
		case Skip:
			return false, nil, false
		case Descend:
			children := s.descend(ctx, st, u, before)
			return true, children, len(children) > 0
		}
	}
	return true, nil, false
}

// descend creates the return criteria of the callee of u, and records the arguments the call added to the targets
func (s *Slicer) descend(ctx context.Context, st *scanState, u *ir.Unit, before ir.ValueSet) []criteria.Criterion {
	level := st.c.Level() - 1
	callee := u.Signature
	if level < s.config.LowerLevel || !s.program.IsDevClass(u.CalleeClass()) || len(s.program.Units(callee)) == 0 {
		return nil
	}
	returns := s.gen.CreateCriteria(ctx, callee, callee, slice.TargetReturn, nil, level)
	if len(returns) == 0 {
		return nil
	}
	d := &descent{parent: st, added: map[int]ir.Value{}, waiting: map[string]bool{}, keep: map[int]bool{}}
	for i, a := range u.Args {
		if !before.Has(a) && st.targets.Has(a) {
			d.added[i] = a
		}
	}
	var res []criteria.Criterion
	for _, r := range returns {
		if p, ok := s.store.Get(r.ID()); ok {
			if s.tree.Has(r.ID()) {
				s.tree.AddEdge(st.c.ID(), r.ID(), true)
			}
			for _, i := range p.Params {
				d.keep[i] = true
			}
			continue
		}
		s.tree.Add(r.ID(), r.Level())
		s.tree.AddEdge(st.c.ID(), r.ID(), true)
		if s.active[r.ID()] || s.queued[r.ID()] != nil {
			// recursive call, or already scheduled: every added argument may matter
			for i := range d.added {
				d.keep[i] = true
			}
			continue
		}
		d.waiting[r.ID()] = true
		s.descents[r.ID()] = d
		res = append(res, r)
	}
	if len(d.waiting) == 0 {
		d.narrow()
	} else {
		st.descent = d
	}
	return res
}

// ascendField links the criterion to the writers of the field read by u, in the other methods accessing the field
func (s *Slicer) ascendField(ctx context.Context, st *scanState, u *ir.Unit) []criteria.Criterion {
	level := st.c.Level() + 1
	field := u.FieldSignature()
	if level > s.config.UpperLevel || field == "" {
		return nil
	}
	if c := s.program.Class(ir.ClassName(field)); c != nil && c.Enum {
		return nil
	}
	node := "field:" + field
	s.tree.Add(node, level)
	s.tree.AddEdge(st.c.ID(), node, false)
	var res []criteria.Criterion
	for _, m := range s.graph.AccessorSignatures(field) {
		if m == st.c.Caller() {
			continue
		}
		for _, w := range s.gen.CreateCriteria(ctx, m, field, slice.TargetFieldWrite, nil, level) {
			if s.link(w, node, w.ID(), false) {
				res = append(res, w)
			}
		}
	}
	return res
}

// ascendParams creates the criteria of the calls to the method of c, tracking the parameters it retained
func (s *Slicer) ascendParams(ctx context.Context, c criteria.Criterion, params []int) []criteria.Criterion {
	level := c.Level() + 1
	if level > s.config.UpperLevel {
		return nil
	}
	method := c.Caller()
	targets := []string{method}
	if id, ok := s.graph.Lookup(method); ok {
		if iface := s.graph.Node(id).Interface; iface != "" {
			targets = append(targets, iface)
		}
	}
	var res []criteria.Criterion
	for _, target := range targets {
		for _, caller := range s.graph.CallerSignatures(target) {
			if caller == method || !s.program.IsDevClass(ir.ClassName(caller)) || len(s.program.Units(caller)) == 0 {
				continue
			}
			for _, k := range s.gen.CreateCriteria(ctx, caller, target, slice.TargetParameter, params, level) {
				if s.mergePending(k, c) {
					continue
				}
				if s.link(k, k.ID(), c.ID(), true) {
					res = append(res, k)
				}
			}
		}
	}
	return res
}

// link adds the edge of a spawned criterion to the tree, and returns true if the criterion must be enqueued
func (s *Slicer) link(child criteria.Criterion, from string, to string, directed bool) bool {
	if s.store.Has(child.ID()) {
		// an empty slice was removed from the tree and stays out of it
		if s.tree.Has(child.ID()) {
			s.tree.AddEdge(from, to, directed)
		}
		return false
	}
	s.tree.Add(child.ID(), child.Level())
	s.tree.AddEdge(from, to, directed)
	return !s.active[child.ID()] && s.queued[child.ID()] == nil
}

func paramKey(c criteria.Criterion) string {
	return c.Caller() + "#" + strconv.Itoa(c.Start())
}

// mergePending merges k into the queued parameter criterion of the same call site, if any. The merged criterion
// tracks both sets of arguments, and takes over the tree edges of the queued one.
func (s *Slicer) mergePending(k criteria.Criterion, callee criteria.Criterion) bool {
	it, ok := s.pendingParams[paramKey(k)]
	if !ok || it.state != nil || s.queued[it.criterion.ID()] != it || it.criterion.ID() == k.ID() {
		return false
	}
	old := it.criterion
	merged := old.With(criteria.Delta{
		Targets:   append(old.TargetValues(), k.TargetValues()...),
		Positions: unionInts(old.Positions(), k.Positions()),
	})
	if merged.ID() != old.ID() {
		s.gen.Registry().Register(merged)
		s.tree.Add(merged.ID(), merged.Level())
		for _, c := range s.tree.Callees(old.ID()) {
			s.tree.AddEdge(merged.ID(), c, true)
		}
		s.tree.Remove(old.ID())
		delete(s.queued, old.ID())
		s.queued[merged.ID()] = it
		it.criterion = merged
		s.logger.Debugf("merged parameter criteria of %s at %d", merged.Caller(), merged.Pos())
	}
	s.tree.AddEdge(merged.ID(), callee.ID(), true)
	return true
}

// finish completes the partial slice of c: lines on infeasible branches are dropped, then the useless ones, and the
// criteria spawned at dropped units are retracted. The parameters still tracked are propagated to the callers, or
// reported to the waiting descent for a return criterion.
func (s *Slicer) finish(ctx context.Context, c criteria.Criterion, st *scanState,
	infeasible bool) (*slice.Partial, []criteria.Criterion) {
	delete(s.active, c.ID())
	p := &slice.Partial{
		ID:         c.ID(),
		Caller:     c.Caller(),
		Target:     c.Target(),
		TargetKind: c.Kind(),
		Start:      c.Pos(),
		Positions:  c.Positions(),
		Level:      c.Level(),
		Infeasible: infeasible,
	}
	if st != nil {
		p.Lines = append([]slice.Line{}, st.lines...)
		funcutil.Reverse(p.Lines)
		slice.SortLines(p.Lines)
		drop := s.optimizer.UnreachableIndexes(ctx, st.body, p.Retained(), optimizer.NewValues())
		if s.config.PruneUseless && st.spawned > 0 {
			units := funcutil.Map(p.Lines, func(l slice.Line) *ir.Unit { return l.Unit })
			for pos := range optimizer.PruneUseless(st.body.Whole[c.Pos()], units) {
				drop[pos] = true
			}
		}
		for pos := range drop {
			if u := st.body.Whole[pos]; u.Kind == ir.KindParameter {
				delete(st.params, u.ParamIndex)
			}
			s.retract(st.spawnedAt[pos])
		}
		p.Drop(drop)
		p.Params = funcutil.SetToOrderedSlice(st.params)
	}
	if !infeasible {
		s.retainedParams[c.Statement()] = unionInts(s.retainedParams[c.Statement()], c.Positions())
	}
	if infeasible || (p.Empty() && !hasConstant(c.TargetValues())) {
		s.tree.Remove(c.ID())
	}

	var children []criteria.Criterion
	if !s.release(c.ID(), p.Params) && len(p.Params) > 0 {
		children = s.ascendParams(ctx, c, p.Params)
	}
	return p, children
}

// release reports the end of the return criterion id to the descent waiting for it, if any. A caller whose descent
// completes is made ready to resume.
func (s *Slicer) release(id string, params []int) bool {
	d, ok := s.descents[id]
	if !ok {
		return false
	}
	delete(s.descents, id)
	if it := d.done(id, params); it != nil {
		s.ready = append(s.ready, it)
	}
	return true
}

func (s *Slicer) takeReady() []*item {
	res := s.ready
	s.ready = nil
	return res
}

// retract drops spawned criteria from the tree. Queued ones are skipped when dequeued.
func (s *Slicer) retract(ids []string) {
	for _, id := range ids {
		s.tree.Remove(id)
		if s.queued[id] != nil {
			s.retracted[id] = true
		}
		s.stats.Retracted++
	}
}

func hasConstant(vs []ir.Value) bool {
	return funcutil.Exists(vs, func(v ir.Value) bool { return v.IsConstant() })
}

func unionInts(a []int, b []int) []int {
	set := map[int]bool{}
	for _, x := range a {
		set[x] = true
	}
	for _, x := range b {
		set[x] = true
	}
	res := make([]int, 0, len(set))
	for x := range set {
		res = append(res, x)
	}
	sort.Ints(res)
	return res
}
