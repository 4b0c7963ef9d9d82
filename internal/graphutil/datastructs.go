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

// Tree is a tree of labels grown by extending paths from its root: each node stands for the path from the root to
// it. Children are kept in insertion order.
type Tree[T any] struct {
	Parent   *Tree[T]
	Children []*Tree[T]
	Label    T
	depth    int
}

// NewTree returns a tree holding only its root
func NewTree[T any](root T) *Tree[T] {
	return &Tree[T]{Label: root}
}

// Extend adds a child labelled label to t, and returns it
func (t *Tree[T]) Extend(label T) *Tree[T] {
	child := &Tree[T]{Parent: t, Label: label, depth: t.depth + 1}
	t.Children = append(t.Children, child)
	return child
}

// PathToRoot returns the labels on the path from t up to the root of the tree, t first
func (t *Tree[T]) PathToRoot() []T {
	res := make([]T, 0, t.depth+1)
	for cur := t; cur != nil; cur = cur.Parent {
		res = append(res, cur.Label)
	}
	return res
}
