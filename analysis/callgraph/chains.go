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
	"io"
	"sort"

	"github.com/awslabs/cryptoslice/internal/graphutil"
	"golang.org/x/tools/container/intsets"
	"gonum.org/v1/gonum/graph/encoding/dot"
)

// CallerChains enumerates the upward chains of callers of id over the directed edges. Each chain starts with id and
// ends with a node that has no caller outside the chain. Recursion is cut by a visited set holding the nodes of the
// current chain. At most limit chains are returned, all of them if limit <= 0.
func (g *Graph) CallerChains(id NodeID, limit int) [][]NodeID {
	var chains [][]NodeID
	var onPath intsets.Sparse
	var path []NodeID

	var visit func(n NodeID) bool
	visit = func(n NodeID) bool {
		onPath.Insert(int(n))
		path = append(path, n)
		defer func() {
			onPath.Remove(int(n))
			path = path[:len(path)-1]
		}()
		extended := false
		for _, caller := range g.in[n] {
			if onPath.Has(int(caller)) {
				continue
			}
			extended = true
			if !visit(caller) {
				return false
			}
		}
		if !extended {
			chains = append(chains, append([]NodeID{}, path...))
			if limit > 0 && len(chains) >= limit {
				return false
			}
		}
		return true
	}
	visit(id)
	return chains
}

// TopCallers returns the last node of each caller chain of id, without duplicates, in the order found
func (g *Graph) TopCallers(id NodeID, limit int) []NodeID {
	var seen intsets.Sparse
	var res []NodeID
	for _, chain := range g.CallerChains(id, limit) {
		top := chain[len(chain)-1]
		if seen.Insert(int(top)) {
			res = append(res, top)
		}
	}
	return res
}

// RecursiveClusters returns the signatures of the methods of each strongly connected component of the call edges that
// contains a cycle
func (g *Graph) RecursiveClusters() [][]string {
	var res [][]string
	for _, component := range graphutil.RecursiveComponents(graphutil.NewIterator(g)) {
		sigs := make([]string, len(component))
		for i, v := range component {
			sigs[i] = g.nodes[v].Signature
		}
		res = append(res, sigs)
	}
	return res
}

// ElementaryCycles returns the signatures of the methods of each elementary cycle of call edges. Only the recursive
// clusters are searched.
func (g *Graph) ElementaryCycles() [][]string {
	it := graphutil.NewIterator(g)
	var include []int64
	for _, component := range graphutil.RecursiveComponents(it) {
		for _, v := range component {
			include = append(include, int64(v))
		}
	}
	if len(include) == 0 {
		return nil
	}
	sort.Slice(include, func(i, j int) bool { return include[i] < include[j] })
	var res [][]string
	for _, cycle := range graphutil.FindAllElementaryCycles(graphutil.Subgraph(it, include)) {
		sigs := make([]string, len(cycle))
		for i, v := range cycle {
			sigs[i] = g.nodes[v].Signature
		}
		res = append(res, sigs)
	}
	return res
}

// Reachable returns, for each node, whether it is reachable from one of the roots through call edges
func (g *Graph) Reachable(roots []NodeID) []bool {
	ids := make([]int, len(roots))
	for i, r := range roots {
		ids[i] = int(r)
	}
	return graphutil.Reachable(graphutil.NewIterator(g), ids)
}

// WriteDot writes the call edges of the graph in DOT format
func (g *Graph) WriteDot(w io.Writer, name string) error {
	b, err := dot.Marshal(graphutil.NewIterator(g), name, "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}
