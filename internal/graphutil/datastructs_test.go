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
	"reflect"
	"testing"
)

func TestTreePathToRoot(t *testing.T) {
	root := NewTree(0)
	a := root.Extend(1)
	b := a.Extend(2)
	c := a.Extend(3)
	if len(root.Children) != 1 || len(a.Children) != 2 {
		t.Fatalf("unexpected children: %d, %d", len(root.Children), len(a.Children))
	}
	if got := b.PathToRoot(); !reflect.DeepEqual(got, []int{2, 1, 0}) {
		t.Fatalf("expected path [2 1 0], got %v", got)
	}
	if got := c.PathToRoot(); !reflect.DeepEqual(got, []int{3, 1, 0}) {
		t.Fatalf("expected path [3 1 0], got %v", got)
	}
	if got := root.PathToRoot(); !reflect.DeepEqual(got, []int{0}) {
		t.Fatalf("expected path [0], got %v", got)
	}
}
