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

package graphutil_test

import (
	"sort"
	"strconv"
	"strings"
	"testing"

	"github.com/awslabs/cryptoslice/internal/funcutil"
	"github.com/awslabs/cryptoslice/internal/graphutil"
	"github.com/yourbasic/graph"
	"gonum.org/v1/gonum/graph/encoding/dot"
)

type adjacency [][]int

func (a adjacency) Order() int             { return len(a) }
func (a adjacency) Successors(v int) []int { return a[v] }
func (a adjacency) Label(v int) string     { return "n" + strconv.Itoa(v) }

// 0 -> 1 -> 2 -> 0, 2 -> 3 -> 2, 4 -> 4, 5 isolated
var sample = adjacency{{1}, {2}, {0, 3}, {2}, {4}, {}}

func TestFindAllElementaryCycles(t *testing.T) {
	iterator := graphutil.NewIterator(sample)
	stats := graph.Check(iterator)
	t.Logf("Stats:\n\tsize: %d\n\tmulti: %d\n\tloops: %d\n\tisolated: %d",
		stats.Size, stats.Multi, stats.Loops, stats.Isolated)

	cycles := graphutil.FindAllElementaryCycles(iterator)
	results := make([]string, len(cycles))
	for i, cycle := range cycles {
		results[i] = strings.Join(funcutil.Map(cycle, func(x int64) string { return strconv.Itoa(int(x)) }), "")
	}
	sort.Strings(results)
	expected := []string{"0120", "232"}
	if len(results) != len(expected) {
		t.Fatalf("Expected %v elementary cycles, found %v", expected, results)
	}
	for i := range expected {
		if results[i] != expected[i] {
			t.Errorf("Expected cycle %s, found %s", expected[i], results[i])
		}
	}
}

func TestRecursiveComponents(t *testing.T) {
	components := graphutil.RecursiveComponents(graphutil.NewIterator(sample))
	if len(components) != 2 {
		t.Fatalf("Expected 2 recursive components, found %v", components)
	}
	if got := strings.Join(funcutil.Map(components[0], strconv.Itoa), ","); got != "0,1,2,3" {
		t.Errorf("Expected first component 0,1,2,3, found %s", got)
	}
	if len(components[1]) != 1 || components[1][0] != 4 {
		t.Errorf("Expected self-loop component [4], found %v", components[1])
	}
}

func TestReachable(t *testing.T) {
	reach := graphutil.Reachable(graphutil.NewIterator(sample), []int{3})
	for v, expected := range []bool{true, true, true, true, false, false} {
		if reach[v] != expected {
			t.Errorf("Reachable(%d) = %v, expected %v", v, reach[v], expected)
		}
	}
}

func TestNodeSetIteratesAllNodes(t *testing.T) {
	g := graphutil.NewIterator(sample)
	nodes := g.From(2)
	if nodes.Len() != 2 {
		t.Fatalf("Expected 2 successors, found %d", nodes.Len())
	}
	var seen []int64
	for nodes.Next() {
		seen = append(seen, nodes.Node().ID())
	}
	sort.Slice(seen, func(i, j int) bool { return seen[i] < seen[j] })
	if len(seen) != 2 || seen[0] != 0 || seen[1] != 3 {
		t.Errorf("Expected successors [0 3], found %v", seen)
	}
	if g.To(2).Len() != 2 {
		t.Errorf("Expected 2 predecessors of 2")
	}
}

func TestMarshalDot(t *testing.T) {
	b, err := dot.Marshal(graphutil.NewIterator(sample), "sample", "", "  ")
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}
	out := string(b)
	if !strings.HasPrefix(out, "strict digraph sample {") && !strings.HasPrefix(out, "digraph sample {") {
		t.Errorf("unexpected header: %s", out)
	}
	if !strings.Contains(out, "n0 -> n1") {
		t.Errorf("missing edge n0 -> n1 in %s", out)
	}
}
