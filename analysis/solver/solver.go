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

// Package solver decides relational constraints between two operands over a bounded integer domain.
//
// An operand is either a numeric literal or unconstrained (the empty string or "null"). Resolve only decides queries
// between two literals: a query with an unconstrained operand is Unknown. Decide reasons over intervals, where
// unconstrained operands range over [MinBound, MaxBound]. The solver answers True when the relation holds for every
// assignment of the operands, False when it holds for none, and Unknown otherwise, or when the query cannot be
// answered within its time budget.
package solver

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"
)

// Result is the outcome of a query. True and False are certainties; Unknown never is.
type Result int

const (
	// False means the relation never holds (1 in the rule checker's convention is True, 0 is False)
	False Result = 0
	// True means the relation always holds
	True Result = 1
	// Unknown means both outcomes are possible, or the solver could not decide
	Unknown Result = -1
)

func (r Result) String() string {
	switch r {
	case True:
		return "true"
	case False:
		return "false"
	default:
		return "unknown"
	}
}

const (
	// MinBound is the lower bound of unconstrained operands
	MinBound = -21474836
	// MaxBound is the upper bound of unconstrained operands
	MaxBound = 21474836
)

// DefaultTimeout is the time budget of a query when the context has no deadline
const DefaultTimeout = 180 * time.Millisecond

// Solver answers relational queries. The zero value uses DefaultTimeout.
type Solver struct {
	Timeout time.Duration
}

// New returns a solver whose queries are bounded by timeout
func New(timeout time.Duration) *Solver {
	return &Solver{Timeout: timeout}
}

// Interval is a closed interval of rationals
type Interval struct {
	Lower, Upper *big.Rat
}

// Point returns the interval containing only x
func Point(x *big.Rat) Interval {
	return Interval{x, x}
}

// Unbounded returns the interval of unconstrained operands
func Unbounded() Interval {
	return Interval{big.NewRat(MinBound, 1), big.NewRat(MaxBound, 1)}
}

// IsPoint returns true if the interval contains a single value
func (i Interval) IsPoint() bool {
	return i.Lower.Cmp(i.Upper) == 0
}

func (i Interval) String() string {
	return fmt.Sprintf("[%s, %s]", i.Lower.RatString(), i.Upper.RatString())
}

func unconstrained(s string) bool {
	t := strings.TrimSpace(s)
	return t == "" || t == "null"
}

// ParseOperand returns the interval of an operand. Empty and null operands are unbounded.
func ParseOperand(s string) (Interval, error) {
	if unconstrained(s) {
		return Unbounded(), nil
	}
	t := strings.TrimSpace(s)
	t = strings.TrimRight(t, "LlFfDd")
	x, ok := new(big.Rat).SetString(t)
	if !ok {
		return Interval{}, fmt.Errorf("not a numeric literal: %q", s)
	}
	return Point(x), nil
}

// Resolve decides "lhs op rhs". Operators are <, <=, ==, =, !=, >, >=. Both operands must be numeric literals.
func (s *Solver) Resolve(ctx context.Context, lhs string, op string, rhs string) Result {
	if unconstrained(lhs) || unconstrained(rhs) {
		return Unknown
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	a, err := ParseOperand(lhs)
	if err != nil {
		return Unknown
	}
	b, err := ParseOperand(rhs)
	if err != nil {
		return Unknown
	}
	if ctx.Err() != nil {
		return Unknown
	}
	return Decide(a, op, b)
}

// Decide decides "a op b" for all values of the intervals a and b
func Decide(a Interval, op string, b Interval) Result {
	switch op {
	case "<":
		return decideLess(a, b, false)
	case "<=":
		return decideLess(a, b, true)
	case ">":
		return decideLess(b, a, false)
	case ">=":
		return decideLess(b, a, true)
	case "==", "=":
		return decideEqual(a, b)
	case "!=":
		return negate(decideEqual(a, b))
	default:
		return Unknown
	}
}

// decideLess decides a < b, or a <= b if orEqual
func decideLess(a Interval, b Interval, orEqual bool) Result {
	always := a.Upper.Cmp(b.Lower)
	never := a.Lower.Cmp(b.Upper)
	if orEqual {
		if always <= 0 {
			return True
		}
		if never > 0 {
			return False
		}
		return Unknown
	}
	if always < 0 {
		return True
	}
	if never >= 0 {
		return False
	}
	return Unknown
}

func decideEqual(a Interval, b Interval) Result {
	if a.IsPoint() && b.IsPoint() && a.Lower.Cmp(b.Lower) == 0 {
		return True
	}
	if a.Upper.Cmp(b.Lower) < 0 || b.Upper.Cmp(a.Lower) < 0 {
		return False
	}
	return Unknown
}

func negate(r Result) Result {
	switch r {
	case True:
		return False
	case False:
		return True
	default:
		return Unknown
	}
}

// EvalExpression evaluates an expression such as "x < 16", "len >= 2048" or ">= 16" for the value x. The variable
// name on the left of the operator is ignored.
func (s *Solver) EvalExpression(ctx context.Context, x string, expression string) Result {
	expr := strings.TrimSpace(expression)
	for _, op := range []string{"<=", ">=", "==", "!=", "<", ">", "="} {
		if i := strings.Index(expr, op); i >= 0 {
			return s.Resolve(ctx, x, op, strings.TrimSpace(expr[i+len(op):]))
		}
	}
	return Unknown
}
