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

package optimizer

import (
	"regexp"
	"sort"
	"strconv"

	"github.com/awslabs/cryptoslice/analysis/ir"
)

// AliasMap maps a variable slot to the name given to its last redefinition. A slot maps to ir.Fresh when it was
// redefined under a loop or a one-sided branch, and the name was kept.
type AliasMap map[string]ir.Value

type regionKind int

const (
	loopRegion regionKind = iota
	oneSidedRegion
	ifElseRegion
)

// region is a range of positions under a branch. For if/else regions, the first branch is [start, split-1] and the
// second branch is [split, end]; both branches join at end+1.
type region struct {
	kind  regionKind
	start int
	split int
	end   int
	// both holds the slots defined in both branches of an if/else
	both map[string]bool
	// names holds the fresh name shared by the definitions of a slot in the region
	names map[string]string

	snapNames map[string]string
	snapSeen  map[string]bool
	aNames    map[string]string
	aSeen     map[string]bool
}

func (r *region) contains(pos int) bool {
	return r.start <= pos && pos <= r.end
}

func (r *region) span() int {
	return r.end - r.start
}

func findRegions(units []*ir.Unit) []*region {
	var regions []*region
	for i, u := range units {
		switch u.Kind {
		case ir.KindIf:
			t := u.Target
			if t <= i {
				regions = append(regions, &region{kind: loopRegion, start: t, end: i})
				continue
			}
			if t-1 > i && units[t-1].Kind == ir.KindGoto && units[t-1].Target > t {
				j := units[t-1].Target
				r := &region{kind: ifElseRegion, start: i + 1, split: t, end: j - 1, both: map[string]bool{},
					names: map[string]string{}}
				inB := definedSlots(units[t:j])
				for s := range definedSlots(units[i+1 : t]) {
					if inB[s] {
						r.both[s] = true
					}
				}
				regions = append(regions, r)
			} else if t-1 > i {
				regions = append(regions, &region{kind: oneSidedRegion, start: i + 1, end: t - 1})
			}
		case ir.KindGoto:
			if u.Target <= i {
				regions = append(regions, &region{kind: loopRegion, start: u.Target, end: i})
			}
		}
	}
	return regions
}

func definedSlots(units []*ir.Unit) map[string]bool {
	res := map[string]bool{}
	for _, u := range units {
		if d := u.Defined(); !d.IsZero() {
			res[d.Text] = true
		}
	}
	return res
}

var slotRegex = regexp.MustCompile(`^(\$?[A-Za-z_]+)(\d+)$`)

// namer manufactures fresh variable names: the letters of the slot followed by the largest suffix in use plus one
type namer struct {
	max map[string]int
}

func newNamer(units []*ir.Unit) *namer {
	n := &namer{max: map[string]int{}}
	for _, u := range units {
		for _, v := range u.Variables() {
			n.observe(v.Text)
		}
	}
	return n
}

func (n *namer) observe(name string) {
	if m := slotRegex.FindStringSubmatch(name); m != nil {
		if i, err := strconv.Atoi(m[2]); err == nil && i > n.max[m[1]] {
			n.max[m[1]] = i
		}
	}
}

func (n *namer) fresh(slot string) string {
	m := slotRegex.FindStringSubmatch(slot)
	prefix := slot
	if m != nil {
		prefix = m[1]
	}
	n.max[prefix]++
	return prefix + strconv.Itoa(n.max[prefix])
}

// resolveAliases renames the redefinitions of variable slots in place, in one forward scan:
//   - a redefinition on straight-line code gets a fresh name
//   - the redefinitions of a slot defined in both branches of an if/else share one fresh name, which holds after the
//     join; reads in the second branch see the names in use before the first branch
//   - a redefinition in a loop body that follows a read of the slot in the same iteration gets a fresh name, when the
//     slot does not carry a value around the loop or out of it (see loopLocal)
//   - any other redefinition in a loop, in a one-sided branch, or in only one branch of an if/else keeps the current
//     name
//
// Reads are rewritten with the current names.
func resolveAliases(units []*ir.Unit) AliasMap {
	aliases := AliasMap{}
	regions := findRegions(units)
	nm := newNamer(units)
	acc := newAccesses(units)
	names := map[string]string{}
	seen := map[string]bool{}

	joins, splits, starts := map[int][]*region{}, map[int][]*region{}, map[int][]*region{}
	for _, r := range regions {
		if r.kind != ifElseRegion {
			continue
		}
		joins[r.end+1] = append(joins[r.end+1], r)
		splits[r.split] = append(splits[r.split], r)
		starts[r.start] = append(starts[r.start], r)
	}
	for _, rs := range joins {
		// inner regions join first
		sort.Slice(rs, func(i, j int) bool { return rs[i].start > rs[j].start })
	}

	for pos, u := range units {
		for _, r := range joins[pos] {
			for k, v := range r.aNames {
				if _, ok := names[k]; !ok {
					names[k] = v
				}
			}
			for k := range r.aSeen {
				seen[k] = true
			}
			for s, n := range r.names {
				names[s] = n
			}
		}
		for _, r := range splits[pos] {
			r.aNames, r.aSeen = copyNames(names), copySeen(seen)
			names, seen = copyNames(r.snapNames), copySeen(r.snapSeen)
		}
		for _, r := range starts[pos] {
			r.snapNames, r.snapSeen = copyNames(names), copySeen(seen)
		}

		rewriteUses(u, names)
		d := u.Defined()
		if d.IsZero() {
			continue
		}
		slot := d.Text
		if !seen[slot] {
			seen[slot] = true
			names[slot] = slot
			continue
		}
		current := names[slot]
		if current == "" {
			current = slot
		}
		switch r := innermost(regions, pos); {
		case r == nil, r.kind == loopRegion && acc.loopLocal(r, slot, pos):
			n := nm.fresh(slot)
			names[slot] = n
			aliases[slot] = ir.ParseValue(n)
			u.Left = renamed(u.Left, n)
		case r.kind == ifElseRegion && r.both[slot]:
			n, ok := r.names[slot]
			if !ok {
				n = nm.fresh(slot)
				r.names[slot] = n
			}
			names[slot] = n
			aliases[slot] = ir.ParseValue(n)
			u.Left = renamed(u.Left, n)
		default:
			aliases[slot] = ir.Fresh
			u.Left = renamed(u.Left, current)
		}
	}
	return aliases
}

// accesses holds the slots read and defined by each unit, before any renaming
type accesses struct {
	units   []*ir.Unit
	reads   []map[string]bool
	defines []string
}

func newAccesses(units []*ir.Unit) *accesses {
	a := &accesses{units: units, reads: make([]map[string]bool, len(units)), defines: make([]string, len(units))}
	for i, u := range units {
		a.reads[i] = readSlots(u)
		if d := u.Defined(); !d.IsZero() {
			a.defines[i] = d.Text
		}
	}
	return a
}

func readSlots(u *ir.Unit) map[string]bool {
	res := map[string]bool{}
	add := func(v ir.Value) {
		if v.IsVariable() {
			res[v.Text] = true
		}
		if v.Base != "" {
			res[v.Base] = true
		}
	}
	if !u.Kind.DefinesLocal() {
		add(u.Left)
	} else if u.Left.Base != "" {
		res[u.Left.Base] = true
	}
	add(u.Right)
	add(u.Base)
	add(u.Index)
	for _, v := range u.Args {
		add(v)
	}
	return res
}

// loopLocal returns true if the definition of slot at pos, in the loop r, starts a new value of the slot that only
// the rest of the iteration reads:
//   - the only branches of the loop are its back edge and exits past its end, and the loop is entered at its start
//   - the first access to the slot in the loop body is a definition
//   - the slot is read between the previous definition in the loop and pos
//   - the slot is not read after the loop
func (a *accesses) loopLocal(r *region, slot string, pos int) bool {
	for i := r.start; i <= r.end; i++ {
		u := a.units[i]
		switch u.Kind {
		case ir.KindIf, ir.KindGoto:
			if !(i == r.end && u.Target == r.start) && u.Target <= r.end {
				return false
			}
		case ir.KindSwitch:
			return false
		}
	}
	for i, u := range a.units {
		if r.contains(i) {
			continue
		}
		for _, t := range branchTargetsOf(u) {
			if t > r.start && t <= r.end {
				return false
			}
		}
	}
	prev := -1
	for i := r.start; i < pos; i++ {
		if a.reads[i][slot] && prev < 0 {
			return false
		}
		if a.defines[i] == slot {
			prev = i
		}
	}
	if prev < 0 || a.reads[pos][slot] {
		return false
	}
	read := false
	for i := prev + 1; i < pos; i++ {
		read = read || a.reads[i][slot]
	}
	if !read {
		return false
	}
	for i := r.end + 1; i < len(a.units); i++ {
		if a.reads[i][slot] {
			return false
		}
	}
	return true
}

func branchTargetsOf(u *ir.Unit) []int {
	switch u.Kind {
	case ir.KindIf, ir.KindGoto:
		return []int{u.Target}
	case ir.KindSwitch:
		return u.Targets
	}
	return nil
}

// innermost returns the smallest region containing pos. Loops take precedence over branches.
func innermost(regions []*region, pos int) *region {
	var best *region
	for _, r := range regions {
		if !r.contains(pos) {
			continue
		}
		if r.kind == loopRegion {
			return r
		}
		if best == nil || r.span() < best.span() {
			best = r
		}
	}
	return best
}

func rewriteUses(u *ir.Unit, names map[string]string) {
	if !u.Kind.DefinesLocal() {
		u.Left = rename(u.Left, names)
	}
	u.Right = rename(u.Right, names)
	u.Base = rename(u.Base, names)
	u.Index = rename(u.Index, names)
	for i, a := range u.Args {
		u.Args[i] = rename(a, names)
	}
}

func rename(v ir.Value, names map[string]string) ir.Value {
	switch {
	case v.IsVariable():
		if n, ok := names[v.Text]; ok && n != v.Text {
			return renamed(v, n)
		}
	case v.IsFieldRef() && v.Base != "":
		if n, ok := names[v.Base]; ok && n != v.Base {
			sig := v.FieldSignature()
			v.Base = n
			v.Text = n + "." + sig
		}
	}
	return v
}

func renamed(v ir.Value, name string) ir.Value {
	n := ir.ParseValue(name)
	if v.Type != "" {
		n.Type = v.Type
	}
	return n
}

func copyNames(m map[string]string) map[string]string {
	c := make(map[string]string, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

func copySeen(m map[string]bool) map[string]bool {
	c := make(map[string]bool, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
