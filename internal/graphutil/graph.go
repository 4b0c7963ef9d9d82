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

package graphutil

import (
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/traverse"
)

// Adjacency is a directed graph whose nodes are the dense indexes 0..Order()-1
type Adjacency interface {
	// Order returns the number of nodes
	Order() int
	// Successors returns the targets of the directed edges leaving v
	Successors(v int) []int
	// Label returns a printable name for v
	Label(v int) string
}

// IGraph is an abstraction over an Adjacency to work with existing graph libraries. It implements the methods to
// satisfy yourbasic's graph.Iterator and Gonum's graph.Directed
type IGraph struct {
	// Adj is the graph the IGraph was constructed from
	Adj Adjacency

	// Edges is an adjacency matrix: Edges[x][y] means there is a directed edge between x and y
	Edges map[int64]map[int64]bool

	// Keys are all the node IDs, in increasing order
	Keys []int64

	preds map[int64][]int64
}

// NewIterator returns a new graph iterator where node ids correspond to the indexes of the adjacency
func NewIterator(adj Adjacency) IGraph {
	n := adj.Order()
	edges := make(map[int64]map[int64]bool, n)
	preds := make(map[int64][]int64, n)
	keys := make([]int64, n)
	for v := 0; v < n; v++ {
		keys[v] = int64(v)
		edges[int64(v)] = map[int64]bool{}
		for _, w := range adj.Successors(v) {
			if !edges[int64(v)][int64(w)] {
				edges[int64(v)][int64(w)] = true
				preds[int64(w)] = append(preds[int64(w)], int64(v))
			}
		}
	}
	return IGraph{Adj: adj, Edges: edges, Keys: keys, preds: preds}
}

// Subgraph returns a new graph that is the original graph with only the nodes in include. Only the edges that have
// both the origin and destination nodes in the include nodes are kept in the resulting graph.
// Node indices stay consistent across subgraphs.
func Subgraph(original IGraph, include []int64) IGraph {
	in := make(map[int64]bool, len(include))
	for _, i := range include {
		in[i] = true
	}
	edges := make(map[int64]map[int64]bool, len(include))
	preds := map[int64][]int64{}
	for _, i := range include {
		edges[i] = map[int64]bool{}
		for e := range original.Edges[i] {
			if in[e] {
				edges[i][e] = true
				preds[e] = append(preds[e], i)
			}
		}
	}
	return IGraph{Adj: original.Adj, Edges: edges, Keys: append([]int64{}, include...), preds: preds}
}

// Order implements the order of the graph.Iterator interface for the IGraph
func (c IGraph) Order() int {
	return c.Adj.Order()
}

// Visit implements the graph.Iterator interface for the IGraph
func (c IGraph) Visit(v int, do func(w int, c int64) (skip bool)) (aborted bool) {
	for w := range c.Edges[int64(v)] {
		if do(int(w), 1) {
			return true
		}
	}
	return false
}

// *************** Graph interface implementation **********************

// Node implements the Graph interface
func (c IGraph) Node(id int64) graph.Node {
	if _, ok := c.Edges[id]; !ok {
		return nil
	}
	return INode{id: id, label: c.Adj.Label(int(id))}
}

// Nodes returns the set of nodes in the graph
func (c IGraph) Nodes() graph.Nodes {
	return c.nodeSet(c.Keys)
}

// From returns the set of nodes reachable from the id
func (c IGraph) From(id int64) graph.Nodes {
	var keys []int64
	for out := range c.Edges[id] {
		keys = append(keys, out)
	}
	return c.nodeSet(keys)
}

// To returns the set of nodes that have an edge to id
func (c IGraph) To(id int64) graph.Nodes {
	return c.nodeSet(c.preds[id])
}

// HasEdgeBetween returns a boolean indicating whether an edge exists between the two node identifiers
func (c IGraph) HasEdgeBetween(xid, yid int64) bool {
	return c.Edges[xid][yid] || c.Edges[yid][xid]
}

// HasEdgeFromTo returns whether a directed edge exists from uid to vid
func (c IGraph) HasEdgeFromTo(uid, vid int64) bool {
	return c.Edges[uid][vid]
}

// Edge returns the edge between the two identifiers (nil if none exists)
func (c IGraph) Edge(uid, vid int64) graph.Edge {
	if c.Edges[uid][vid] {
		return IEdge{from: c.Node(uid).(INode), to: c.Node(vid).(INode)}
	}
	return nil
}

func (c IGraph) nodeSet(ids []int64) *NodeSet {
	nodes := make(map[int64]INode, len(ids))
	for _, id := range ids {
		nodes[id] = INode{id: id, label: c.Adj.Label(int(id))}
	}
	return &NodeSet{nodes: nodes, ids: ids, cur: -1}
}

// Reachable returns the set of nodes reachable from roots, roots included, by a breadth-first walk
func Reachable(c IGraph, roots []int) []bool {
	res := make([]bool, c.Order())
	bf := traverse.BreadthFirst{
		Visit: func(n graph.Node) { res[n.ID()] = true },
	}
	for _, r := range roots {
		if n := c.Node(int64(r)); n != nil && !bf.Visited(n) {
			bf.Walk(c, n, nil)
		}
	}
	return res
}

// *************** Nodes implementation **********************

// INode implements the graph.Node interface, and the DOT node interface
type INode struct {
	id    int64
	label string
}

// ID returns the id of the node
func (n INode) ID() int64 {
	return n.id
}

// DOTID returns the identifier of the node in a DOT file
func (n INode) DOTID() string {
	return n.label
}

func (n INode) String() string {
	return n.label
}

// NodeSet implements the graph.Nodes interface, an iterator over a set of nodes
type NodeSet struct {
	// nodes is the set of nodes in the iterator
	nodes map[int64]INode

	// ids is the set of node ids in the iterator
	// invariant: len(ids) = len(nodes)
	ids []int64

	// cur is the current index of the iterator. The current node is nodes[ids[cur]]. It is -1 before the first call
	// to Next.
	cur int
}

// Next moves the current node to the next, and returns true if such a node exists. Otherwise, returns false
// and the current node has not changed.
func (ns *NodeSet) Next() bool {
	if ns.cur < len(ns.ids)-1 {
		ns.cur++
		return true
	}
	return false
}

// Len returns the number of nodes remaining in the iterator
func (ns *NodeSet) Len() int {
	return len(ns.ids) - ns.cur - 1
}

// Reset resets the iterator before its first node
func (ns *NodeSet) Reset() {
	ns.cur = -1
}

// Node return the current node in the set
func (ns *NodeSet) Node() graph.Node {
	if ns.cur < 0 || ns.cur >= len(ns.ids) {
		return nil
	}
	return ns.nodes[ns.ids[ns.cur]]
}

// *************** Edge implementation **********************

// IEdge implements the graph.Edge interface
type IEdge struct {
	from INode
	to   INode
}

// From returns the origin of the edge
func (e IEdge) From() graph.Node {
	return e.from
}

// To returns the destination of the edge
func (e IEdge) To() graph.Node {
	return e.to
}

// ReversedEdge returns a new value representing the reversed edge
func (e IEdge) ReversedEdge() graph.Edge {
	return IEdge{from: e.to, to: e.from}
}
