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

package slice

import (
	"sort"
	"strconv"
)

// Tree links the criteria of one analysis. Its nodes are criterion ids, stored in an arena.
//
// A directed edge goes from a criterion in a calling method to a criterion in the called method: parameter ascent adds
// an edge from the new caller-side criterion to the criterion whose parameters are tracked, and descent adds an edge
// from the criterion to the return criterion of the callee. Field ascent adds undirected edges between the reader and
// the writer criteria.
type Tree struct {
	ids     []string
	index   map[string]int
	levels  []int
	removed []bool
	in      [][]int
	out     [][]int
	near    [][]int
	edges   map[[3]int]bool
}

// NewTree returns an empty tree
func NewTree() *Tree {
	return &Tree{index: map[string]int{}, edges: map[[3]int]bool{}}
}

// Add adds the criterion to the tree, and returns its index. Adding a removed criterion restores it.
func (t *Tree) Add(id string, level int) int {
	if i, ok := t.index[id]; ok {
		t.removed[i] = false
		return i
	}
	i := len(t.ids)
	t.ids = append(t.ids, id)
	t.levels = append(t.levels, level)
	t.removed = append(t.removed, false)
	t.in = append(t.in, nil)
	t.out = append(t.out, nil)
	t.near = append(t.near, nil)
	t.index[id] = i
	return i
}

// Has returns true if the criterion is a node of the tree
func (t *Tree) Has(id string) bool {
	i, ok := t.index[id]
	return ok && !t.removed[i]
}

// Index returns the index of a criterion
func (t *Tree) Index(id string) (int, bool) {
	i, ok := t.index[id]
	if !ok || t.removed[i] {
		return 0, false
	}
	return i, true
}

// ID returns the criterion id of an index
func (t *Tree) ID(i int) string {
	return t.ids[i]
}

// Level returns the level of a criterion
func (t *Tree) Level(id string) int {
	if i, ok := t.index[id]; ok {
		return t.levels[i]
	}
	return 0
}

// AddEdge adds an edge between two criteria, adding the nodes if needed
func (t *Tree) AddEdge(from string, to string, directed bool) {
	f, ok := t.index[from]
	if !ok {
		f = t.Add(from, 0)
	}
	d, ok := t.index[to]
	if !ok {
		d = t.Add(to, 0)
	}
	key := [3]int{f, d, 0}
	if directed {
		key[2] = 1
	} else if f > d {
		key = [3]int{d, f, 0}
	}
	if t.edges[key] {
		return
	}
	t.edges[key] = true
	if directed {
		t.out[f] = append(t.out[f], d)
		t.in[d] = append(t.in[d], f)
	} else {
		t.near[f] = append(t.near[f], d)
		t.near[d] = append(t.near[d], f)
	}
}

// Remove removes a criterion from the tree. Its edges are ignored from then on.
func (t *Tree) Remove(id string) {
	if i, ok := t.index[id]; ok {
		t.removed[i] = true
	}
}

// CallerIndexes returns the live sources of the directed edges into i
func (t *Tree) CallerIndexes(i int) []int {
	return t.live(t.in[i])
}

// Callers returns the ids of the criteria with a directed edge to id, sorted
func (t *Tree) Callers(id string) []string {
	return t.idsOf(id, t.in)
}

// Callees returns the ids of the criteria with a directed edge from id, sorted
func (t *Tree) Callees(id string) []string {
	return t.idsOf(id, t.out)
}

// Neighbors returns the ids of the criteria linked to id by an undirected edge, sorted
func (t *Tree) Neighbors(id string) []string {
	return t.idsOf(id, t.near)
}

func (t *Tree) idsOf(id string, adj [][]int) []string {
	i, ok := t.Index(id)
	if !ok {
		return nil
	}
	var res []string
	for _, j := range t.live(adj[i]) {
		res = append(res, t.ids[j])
	}
	sort.Strings(res)
	return res
}

func (t *Tree) live(ns []int) []int {
	var res []int
	for _, n := range ns {
		if !t.removed[n] {
			res = append(res, n)
		}
	}
	return res
}

// Order returns the number of nodes, removed ones included. It implements graphutil.Adjacency.
func (t *Tree) Order() int {
	return len(t.ids)
}

// Successors returns the live callees of v. It implements graphutil.Adjacency.
func (t *Tree) Successors(v int) []int {
	if t.removed[v] {
		return nil
	}
	return t.live(t.out[v])
}

// Label returns the quoted id of v. It implements graphutil.Adjacency.
func (t *Tree) Label(v int) string {
	return strconv.Quote(t.ids[v])
}
