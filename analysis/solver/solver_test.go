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

package solver

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func direct(a int, op string, b int) bool {
	switch op {
	case "<":
		return a < b
	case "<=":
		return a <= b
	case ">":
		return a > b
	case ">=":
		return a >= b
	case "==", "=":
		return a == b
	case "!=":
		return a != b
	}
	panic(op)
}

func TestResolveAgreesWithDirectEvaluation(t *testing.T) {
	s := New(time.Second)
	ops := []string{"<", "<=", "==", "=", "!=", ">", ">="}
	nums := []int{-21474836, -16, -1, 0, 1, 7, 16, 2048, 21474836}
	for _, a := range nums {
		for _, b := range nums {
			for _, op := range ops {
				want := False
				if direct(a, op, b) {
					want = True
				}
				got := s.Resolve(context.Background(), strconv.Itoa(a), op, strconv.Itoa(b))
				if got != want {
					t.Fatalf("%d %s %d: got %s, want %s", a, op, b, got, want)
				}
			}
		}
	}
}

func TestResolveUnconstrained(t *testing.T) {
	s := New(time.Second)
	ctx := context.Background()
	assert.Equal(t, Unknown, s.Resolve(ctx, "", "<", "16"))
	assert.Equal(t, Unknown, s.Resolve(ctx, "null", "==", "0"))
	assert.Equal(t, Unknown, s.Resolve(ctx, "", "==", ""))
	// literals outside the bounds of the interval domain
	assert.Equal(t, Unknown, s.Resolve(ctx, "", "<", "30000000"))
	assert.Equal(t, Unknown, s.Resolve(ctx, "null", ">", "-30000000"))
	assert.Equal(t, Unknown, s.Resolve(ctx, "", "!=", "99999999"))
	assert.Equal(t, Unknown, s.Resolve(ctx, " 16", ">=", "null"))
	assert.Equal(t, Unknown, s.EvalExpression(ctx, "", "x < 30000000"))
}

func TestDecideUnbounded(t *testing.T) {
	// every value of the domain is below the upper bound + 1
	upper, _ := ParseOperand("21474837")
	assert.Equal(t, True, Decide(Unbounded(), "<", upper))
	assert.Equal(t, False, Decide(Unbounded(), ">=", upper))
}

func TestResolveLiterals(t *testing.T) {
	s := New(time.Second)
	ctx := context.Background()
	assert.Equal(t, True, s.Resolve(ctx, "16L", "==", "16"))
	assert.Equal(t, True, s.Resolve(ctx, "1.5F", "<", "2"))
	assert.Equal(t, False, s.Resolve(ctx, "0.5", ">=", "1D"))
	assert.Equal(t, Unknown, s.Resolve(ctx, "abc", "<", "1"))
	assert.Equal(t, Unknown, s.Resolve(ctx, "1", "<>", "1"))
}

func TestResolveCancelled(t *testing.T) {
	s := New(time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, Unknown, s.Resolve(ctx, "1", "<", "2"))
}

func TestEvalExpression(t *testing.T) {
	s := &Solver{}
	ctx := context.Background()
	assert.Equal(t, True, s.EvalExpression(ctx, "8", "x < 16"))
	assert.Equal(t, False, s.EvalExpression(ctx, "4096", "len < 2048"))
	assert.Equal(t, True, s.EvalExpression(ctx, "2048", ">= 2048"))
	assert.Equal(t, True, s.EvalExpression(ctx, "3", "x != 4"))
	assert.Equal(t, Unknown, s.EvalExpression(ctx, "3", "x"))
}

func TestDecideIntervals(t *testing.T) {
	a, _ := ParseOperand("5")
	assert.True(t, a.IsPoint())
	assert.Equal(t, "[5, 5]", a.String())
	assert.Equal(t, Unknown, Decide(Unbounded(), "!=", a))
}
