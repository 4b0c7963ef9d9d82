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

// Package callgraph builds the call graph of a decompiled application, along with the tables derived in the same pass:
// the static constant field map and the switch target map.
//
// The graph is an arena: nodes live in a single slice and are referred to by their index. Call edges are directed
// (caller to callee). Field accesses of application classes are undirected edges between the accessor method and the
// field node.
package callgraph

import (
	"sort"
	"strconv"
)

// NodeID is the index of a node in the graph arena
type NodeID int

// NodeKind distinguishes method nodes from field nodes
type NodeKind int

const (
	// MethodNode is the node of a method signature
	MethodNode NodeKind = iota
	// FieldNode is the node of a field signature
	FieldNode
)

// Node is a method or field of the program
type Node struct {
	ID        NodeID
	Signature string
	Kind      NodeKind
	// Concrete is true for methods whose body is available
	Concrete bool
	// Interface is the signature of the interface (or super class) method that this method implements, when that
	// method is itself called somewhere in the program
	Interface string
}

// Edge is a pair of node indexes. Undirected edges are stored once, with From being the method.
type Edge struct {
	From     NodeID
	To       NodeID
	Directed bool
}

// Graph is the call graph of a program
type Graph struct {
	nodes []Node
	index map[string]NodeID
	edges map[Edge]bool
	// out and in hold the directed edges, by source and destination
	out [][]NodeID
	in  [][]NodeID
	// near holds the undirected edges, in both directions
	near [][]NodeID
}

// NewGraph returns an empty graph
func NewGraph() *Graph {
	return &Graph{index: map[string]NodeID{}, edges: map[Edge]bool{}}
}

// AddNode returns the node of the signature, creating it if needed
func (g *Graph) AddNode(signature string, kind NodeKind) NodeID {
	if id, ok := g.index[signature]; ok {
		return id
	}
	id := NodeID(len(g.nodes))
	g.nodes = append(g.nodes, Node{ID: id, Signature: signature, Kind: kind})
	g.out = append(g.out, nil)
	g.in = append(g.in, nil)
	g.near = append(g.near, nil)
	g.index[signature] = id
	return id
}

// Lookup returns the node of a signature
func (g *Graph) Lookup(signature string) (NodeID, bool) {
	id, ok := g.index[signature]
	return id, ok
}

// Node returns the node with index id. The pointer is valid until the next node is added.
func (g *Graph) Node(id NodeID) *Node {
	return &g.nodes[id]
}

// Len returns the number of nodes
func (g *Graph) Len() int {
	return len(g.nodes)
}

// AddEdge adds an edge between two nodes. Adding an edge twice has no effect.
func (g *Graph) AddEdge(from NodeID, to NodeID, directed bool) {
	e := Edge{From: from, To: to, Directed: directed}
	if g.edges[e] {
		return
	}
	g.edges[e] = true
	if directed {
		g.out[from] = append(g.out[from], to)
		g.in[to] = append(g.in[to], from)
	} else {
		g.near[from] = append(g.near[from], to)
		g.near[to] = append(g.near[to], from)
	}
}

// HasEdge returns true if the graph has the edge
func (g *Graph) HasEdge(from NodeID, to NodeID, directed bool) bool {
	return g.edges[Edge{From: from, To: to, Directed: directed}]
}

// Callers returns the sources of the directed edges into id
func (g *Graph) Callers(id NodeID) []NodeID {
	return g.in[id]
}

// Callees returns the destinations of the directed edges out of id
func (g *Graph) Callees(id NodeID) []NodeID {
	return g.out[id]
}

// Neighbors returns the nodes connected to id by an undirected edge: the fields accessed by a method, or the
// methods accessing a field
func (g *Graph) Neighbors(id NodeID) []NodeID {
	return g.near[id]
}

// CallerSignatures returns the signatures of the callers of a method, sorted
func (g *Graph) CallerSignatures(signature string) []string {
	id, ok := g.index[signature]
	if !ok {
		return nil
	}
	return g.signatures(g.in[id])
}

// AccessorSignatures returns the signatures of the methods accessing a field, sorted
func (g *Graph) AccessorSignatures(field string) []string {
	id, ok := g.index[field]
	if !ok {
		return nil
	}
	return g.signatures(g.near[id])
}

func (g *Graph) signatures(ids []NodeID) []string {
	res := make([]string, 0, len(ids))
	for _, id := range ids {
		res = append(res, g.nodes[id].Signature)
	}
	sort.Strings(res)
	return res
}

// Edges returns all the edges of the graph, sorted
func (g *Graph) Edges() []Edge {
	res := make([]Edge, 0, len(g.edges))
	for e := range g.edges {
		res = append(res, e)
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].From != res[j].From {
			return res[i].From < res[j].From
		}
		if res[i].To != res[j].To {
			return res[i].To < res[j].To
		}
		return res[i].Directed && !res[j].Directed
	})
	return res
}

// Order returns the number of nodes. It implements graphutil.Adjacency.
func (g *Graph) Order() int {
	return len(g.nodes)
}

// Successors returns the callees of v. It implements graphutil.Adjacency; field edges are not part of that view.
func (g *Graph) Successors(v int) []int {
	res := make([]int, len(g.out[v]))
	for i, w := range g.out[v] {
		res[i] = int(w)
	}
	return res
}

// Label returns the signature of v, quoted for DOT output. It implements graphutil.Adjacency.
func (g *Graph) Label(v int) string {
	return strconv.Quote(g.nodes[v].Signature)
}
