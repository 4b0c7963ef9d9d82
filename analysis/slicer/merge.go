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

	"github.com/awslabs/cryptoslice/analysis/optimizer"
	"github.com/awslabs/cryptoslice/analysis/slice"
	"github.com/awslabs/cryptoslice/internal/funcutil"
	"github.com/awslabs/cryptoslice/internal/graphutil"
	"golang.org/x/tools/container/intsets"
)

// Merge returns the combined slices of a root criterion: one per upward path of the tree from the root to a top
// caller criterion. The partial slices of a path are concatenated from the top caller down to the root, with the call
// site of each caller criterion. Lines on a branch that the constants flowing down the path make infeasible are
// dropped. Duplicates and slices contained in another one are dropped. The result is memoized in the store.
func (s *Slicer) Merge(ctx context.Context, root string) []slice.Combined {
	if res, ok := s.store.Combined(root); ok {
		return res
	}
	var res []slice.Combined
	for _, path := range s.paths(root) {
		res = addCombined(res, s.combine(ctx, root, path))
	}
	s.store.PutCombined(root, res)
	return res
}

// paths returns the upward paths from root over the directed edges of the tree, each ordered from the top caller
// down to root. Recursion is cut by the nodes of the current path.
func (s *Slicer) paths(root string) [][]string {
	i, ok := s.tree.Index(root)
	if !ok {
		return nil
	}
	limit := s.config.MaxCallerChains
	top := graphutil.NewTree(i)
	var onPath intsets.Sparse
	var leaves []*graphutil.Tree[int]

	var visit func(n *graphutil.Tree[int])
	visit = func(n *graphutil.Tree[int]) {
		onPath.Insert(n.Label)
		defer onPath.Remove(n.Label)
		extended := false
		for _, caller := range s.tree.CallerIndexes(n.Label) {
			if onPath.Has(caller) || (limit > 0 && len(leaves) >= limit) {
				continue
			}
			extended = true
			visit(n.Extend(caller))
		}
		if !extended && (limit <= 0 || len(leaves) < limit) {
			leaves = append(leaves, n)
		}
	}
	visit(top)

	res := make([][]string, len(leaves))
	for k, leaf := range leaves {
		res[k] = funcutil.Map(leaf.PathToRoot(), s.tree.ID)
	}
	return res
}

func (s *Slicer) combine(ctx context.Context, root string, path []string) slice.Combined {
	c := slice.Combined{Root: root, Path: path}
	values := optimizer.NewValues()
	seen := map[string]bool{}
	add := func(l slice.Line) {
		if !seen[l.Key()] {
			seen[l.Key()] = true
			c.Lines = append(c.Lines, l)
		}
	}
	for k, id := range path {
		p, ok := s.store.Get(id)
		if !ok {
			continue
		}
		body := s.gen.Body(ctx, p.Caller)
		if body == nil {
			funcutil.Iter(p.Lines, add)
			continue
		}
		drop := s.optimizer.UnreachableIndexes(ctx, body, p.Retained(), values)
		for _, l := range p.Lines {
			if !drop[l.Index()] {
				add(l)
			}
		}
		if k == len(path)-1 || p.Start < 0 || p.Start >= body.Len() {
			continue
		}
		call := body.Whole[p.Start]
		add(slice.NewLine(p.Caller, call))
		if next, ok := s.store.Get(path[k+1]); ok {
			values.BindParams(p.Caller, call, next.Caller)
		}
	}
	return c
}

// addCombined adds c to the slices unless one of them contains it, and drops the slices c strictly contains
func addCombined(slices []slice.Combined, c slice.Combined) []slice.Combined {
	for _, e := range slices {
		if e.Contains(c) {
			return slices
		}
	}
	res := make([]slice.Combined, 0, len(slices)+1)
	for _, e := range slices {
		if !c.Contains(e) {
			res = append(res, e)
		}
	}
	return append(res, c)
}
