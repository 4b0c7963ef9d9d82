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

package callgraph

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/awslabs/cryptoslice/analysis/config"
	"github.com/awslabs/cryptoslice/analysis/ir"
)

// Info holds the tables computed during the call graph construction pass
type Info struct {
	// constants maps field signatures to their resolved constant value
	constants map[string]ir.Value
	// excluded fields had disagreeing constant sites, or a non-constant site. They are never resolved.
	excluded map[string]bool
	// switches maps a method to the map from case start positions to the position of the switch unit
	switches map[string]map[int]int
	// Skipped are the methods whose processing failed
	Skipped []string
}

func newInfo() *Info {
	return &Info{
		constants: map[string]ir.Value{},
		excluded:  map[string]bool{},
		switches:  map[string]map[int]int{},
	}
}

// Constant returns the resolved constant value of a static final field
func (info *Info) Constant(field string) (ir.Value, bool) {
	v, ok := info.constants[field]
	return v, ok
}

// IsExcluded returns true if the field had conflicting constant sites
func (info *Info) IsExcluded(field string) bool {
	return info.excluded[field]
}

// ConstantFields returns the signatures of the resolved fields, sorted
func (info *Info) ConstantFields() []string {
	res := make([]string, 0, len(info.constants))
	for f := range info.constants {
		res = append(res, f)
	}
	sort.Strings(res)
	return res
}

// SwitchAt returns the position of the switch unit of the method that has a case starting at caseStart
func (info *Info) SwitchAt(method string, caseStart int) (int, bool) {
	pos, ok := info.switches[method][caseStart]
	return pos, ok
}

// addConstantSite records one site assigning v to the field. Sites with a zero value are non-constant.
func (info *Info) addConstantSite(field string, v ir.Value) {
	if info.excluded[field] {
		return
	}
	if v.IsZero() {
		info.excluded[field] = true
		delete(info.constants, field)
		return
	}
	if prev, ok := info.constants[field]; ok {
		if prev.Text != v.Text {
			info.excluded[field] = true
			delete(info.constants, field)
		}
		return
	}
	info.constants[field] = v
}

// Build makes one pass over every method of the declared classes of the program, and returns the call graph with the
// tables computed along the way. Methods whose processing fails are skipped and recorded in Info.Skipped.
func Build(p ir.Provider, logger *config.LogGroup) (*Graph, *Info) {
	b := &builder{p: p, logger: logger, g: NewGraph(), info: newInfo()}
	for _, name := range p.DeclaredClasses() {
		c := p.Class(name)
		if c == nil {
			logger.Debugf("skipping phantom class %s", name)
			continue
		}
		fields := p.StaticConstantFields(name)
		for _, sig := range sortedKeys(fields) {
			b.info.addConstantSite(sig, fields[sig])
		}
		for _, m := range c.Methods {
			if m == nil {
				continue
			}
			if err := b.processMethod(m); err != nil {
				logger.Warnf("call graph: %v", err)
				b.info.Skipped = append(b.info.Skipped, m.Signature)
			}
		}
	}
	b.bridgeInterfaces()
	logger.Infof("call graph: %d nodes, %d edges, %d constant fields", b.g.Len(), len(b.g.edges),
		len(b.info.constants))
	return b.g, b.info
}

type builder struct {
	p      ir.Provider
	logger *config.LogGroup
	g      *Graph
	info   *Info
}

// methodResult is what one method contributes. It is committed only if the whole method was processed.
type methodResult struct {
	callees  []string
	fields   []string
	sites    map[string]ir.Value
	siteKeys []string
	switches map[int]int
}

func (b *builder) processMethod(m *ir.Method) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("method %s skipped: %v", m.Signature, r)
		}
	}()
	units := b.p.Units(m.Signature)
	res := b.scan(m.Signature, units)

	caller := b.g.AddNode(m.Signature, MethodNode)
	if len(units) > 0 {
		b.g.Node(caller).Concrete = true
	}
	for _, callee := range res.callees {
		b.g.AddEdge(caller, b.g.AddNode(callee, MethodNode), true)
	}
	for _, field := range res.fields {
		b.g.AddEdge(caller, b.g.AddNode(field, FieldNode), false)
	}
	for _, field := range res.siteKeys {
		b.info.addConstantSite(field, res.sites[field])
	}
	if len(res.switches) > 0 {
		b.info.switches[m.Signature] = res.switches
	}
	return nil
}

// arrayLiteral tracks an array allocated with a constant size and filled with constants
type arrayLiteral struct {
	elemType string
	elems    []string
	ok       bool
}

func (b *builder) scan(method string, units []*ir.Unit) methodResult {
	res := methodResult{sites: map[string]ir.Value{}, switches: map[int]int{}}
	consts := map[string]ir.Value{}
	arrays := map[string]*arrayLiteral{}

	for _, u := range units {
		switch u.Kind {
		case ir.KindInvoke, ir.KindAssignInvoke:
			res.callees = append(res.callees, u.Signature)
		case ir.KindAssignVariableField:
			b.addFieldAccess(&res, u.FieldSignature())
		case ir.KindAssignFieldConstant:
			b.addFieldAccess(&res, u.FieldSignature())
			b.addSite(&res, u.FieldSignature(), u.Right)
		case ir.KindAssignFieldVariable:
			b.addFieldAccess(&res, u.FieldSignature())
			var v ir.Value
			if a, ok := arrays[u.Right.Text]; ok && a.ok {
				v = ir.ArrayLiteral(a.elemType, a.elems)
			} else if c, ok := consts[u.Right.Text]; ok {
				v = c
			}
			b.addSite(&res, u.FieldSignature(), v)
		case ir.KindNewArray:
			delete(consts, u.Left.Text)
			delete(arrays, u.Left.Text)
			if n, err := strconv.Atoi(u.Right.NumericText()); err == nil && u.Right.IsNumeric() && n >= 0 {
				a := &arrayLiteral{elemType: u.Type, elems: make([]string, n), ok: true}
				for i := range a.elems {
					a.elems[i] = "0"
				}
				arrays[u.Left.Text] = a
			}
			continue
		case ir.KindAssignArrayConstant, ir.KindAssignArrayVariable:
			a, ok := arrays[u.Base.Text]
			if !ok {
				continue
			}
			elem := u.Right
			if c, isConst := consts[u.Right.Text]; isConst {
				elem = c
			}
			i, err := strconv.Atoi(u.Index.NumericText())
			if err != nil || i < 0 || i >= len(a.elems) || !elem.IsConstant() {
				a.ok = false
				continue
			}
			a.elems[i] = elem.Text
		case ir.KindAssignVariableConstant:
			delete(arrays, u.Left.Text)
			consts[u.Left.Text] = u.Right
			continue
		case ir.KindSwitch:
			for _, t := range u.Targets {
				res.switches[t] = u.Pos
			}
		}
		if d := u.Defined(); !d.IsZero() {
			delete(consts, d.Text)
			delete(arrays, d.Text)
		}
	}
	for f := range res.sites {
		res.siteKeys = append(res.siteKeys, f)
	}
	sort.Strings(res.siteKeys)
	return res
}

// addFieldAccess records the access to a field of an application class
func (b *builder) addFieldAccess(res *methodResult, field string) {
	if b.p.IsDevClass(ir.ClassName(field)) {
		res.fields = append(res.fields, field)
	}
}

// addSite records a constant site for static final fields. Two sites in the same method must agree too.
func (b *builder) addSite(res *methodResult, field string, v ir.Value) {
	f := b.p.Field(field)
	if f == nil || !f.Static || !f.Final {
		return
	}
	if prev, ok := res.sites[field]; ok && prev.Text != v.Text {
		res.sites[field] = ir.Value{}
		return
	}
	res.sites[field] = v
}

// bridgeInterfaces links each concrete method of an application class to the method it implements in a super type,
// when that method has callers. Parameter ascent uses that link to find callers going through the interface.
func (b *builder) bridgeInterfaces() {
	for id := 0; id < b.g.Len(); id++ {
		n := b.g.Node(NodeID(id))
		if n.Kind != MethodNode || !n.Concrete {
			continue
		}
		class := ir.ClassName(n.Signature)
		if !b.p.IsDevClass(class) {
			continue
		}
		subsig := ir.SubSignature(n.Signature)
		for _, super := range b.superTypes(class) {
			isig := ir.MethodSignature(super, subsig)
			if iid, ok := b.g.Lookup(isig); ok && len(b.g.Callers(iid)) > 0 {
				b.g.Node(NodeID(id)).Interface = isig
				break
			}
		}
	}
}

// superTypes returns the super classes and interfaces of a class, transitively, breadth first
func (b *builder) superTypes(class string) []string {
	var res []string
	seen := map[string]bool{class: true}
	queue := []string{class}
	for len(queue) > 0 {
		c := b.p.Class(queue[0])
		queue = queue[1:]
		if c == nil {
			continue
		}
		for _, s := range append([]string{c.Super}, c.Interfaces...) {
			if s != "" && !seen[s] {
				seen[s] = true
				res = append(res, s)
				queue = append(queue, s)
			}
		}
	}
	return res
}

func sortedKeys(m map[string]ir.Value) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
