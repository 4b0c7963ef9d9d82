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

// Package rules loads the misuse rules and checks them against the combined slices.
//
// A rule file holds one rule: the signatures whose calls are sliced, with the argument positions to slice, and an
// insecure and a secure pattern. A pattern has conditions; a list of conditions means any of them. A condition is a
// set of checks on the lines of a slice: algorithm names, called signatures, constants and scheme types.
package rules

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/awslabs/cryptoslice/analysis/ir"
	"gopkg.in/yaml.v3"
)

// Rule is one misuse rule
type Rule struct {
	// Name is the name of the file the rule was loaded from
	Name string `yaml:"-"`
	// Signatures maps the sliced method signatures to the argument positions to slice
	Signatures map[string][]int `yaml:"slicingSignatures"`
	Insecure   *Pattern         `yaml:"insecureRule"`
	Secure     *Pattern         `yaml:"secureRule,omitempty"`

	number int
}

// Pattern is the insecure or secure side of a rule
type Pattern struct {
	RuleID      string     `yaml:"ruleID"`
	Description string     `yaml:"description"`
	Conditions  Conditions `yaml:"conditions"`
}

// Conditions are alternatives: a pattern holds when one of its conditions holds
type Conditions []*Condition

// UnmarshalYAML accepts a single condition object or a list of them
func (cs *Conditions) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.MappingNode:
		c := &Condition{}
		if err := node.Decode(c); err != nil {
			return err
		}
		*cs = Conditions{c}
		return nil
	case yaml.SequenceNode:
		var list []*Condition
		if err := node.Decode(&list); err != nil {
			return err
		}
		*cs = list
		return nil
	default:
		return fmt.Errorf("line %d: conditions must be an object or a list of objects", node.Line)
	}
}

// Condition is a conjunction of checks. Only the checks that are set are evaluated; the condition holds when all
// of them found a line.
type Condition struct {
	TargetAlgorithms     []string `yaml:"targetAlgorithms,omitempty"`
	TargetSignatures     []string `yaml:"targetSignatures,omitempty"`
	TargetConstantRegex  *string  `yaml:"targetConstantRegex,omitempty"`
	TargetConstantLength string   `yaml:"targetConstantLength,omitempty"`
	TargetConstantSize   string   `yaml:"targetConstantSize,omitempty"`
	TargetSchemeTypes    []string `yaml:"targetSchemeTypes,omitempty"`
	RequiredSchemeTypes  []string `yaml:"requiredSchemeTypes,omitempty"`

	regex      *regexp.Regexp
	algorithms []algorithmPattern
}

// Check is the kind of check of a condition
type Check string

const (
	CheckSchemeTypes Check = "targetSchemeTypes"
	CheckAlgorithms  Check = "targetAlgorithms"
	CheckSignatures  Check = "targetSignatures"
	CheckConstant    Check = "targetConstantRegex"
)

// Checks returns the set of checks of the condition
func (c *Condition) Checks() map[Check]bool {
	res := map[Check]bool{}
	if c.TargetSchemeTypes != nil || c.RequiredSchemeTypes != nil {
		res[CheckSchemeTypes] = true
	}
	if c.TargetAlgorithms != nil {
		res[CheckAlgorithms] = true
	}
	if c.TargetSignatures != nil {
		res[CheckSignatures] = true
	}
	if c.TargetConstantRegex != nil {
		res[CheckConstant] = true
	}
	return res
}

// SchemeTypes returns the target scheme types, or the required ones
func (c *Condition) SchemeTypes() []string {
	if c.TargetSchemeTypes != nil {
		return c.TargetSchemeTypes
	}
	return c.RequiredSchemeTypes
}

// Regex returns the compiled constant regex. It matches whole constants.
func (c *Condition) Regex() *regexp.Regexp {
	return c.regex
}

// IsAnyConstant returns true if the constant regex accepts any constant
func (c *Condition) IsAnyConstant() bool {
	return c.TargetConstantRegex != nil && *c.TargetConstantRegex == ".*"
}

func (c *Condition) compile() error {
	var errs []error
	c.algorithms = nil
	for _, a := range c.TargetAlgorithms {
		p, err := compileAlgorithm(a)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		c.algorithms = append(c.algorithms, p)
	}
	if c.TargetConstantRegex != nil {
		r, err := regexp.Compile("^(?:" + *c.TargetConstantRegex + ")$")
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid constant regex %q: %w", *c.TargetConstantRegex, err))
		}
		c.regex = r
	}
	return errors.Join(errs...)
}

func (c *Condition) validate() error {
	var errs []error
	if len(c.Checks()) == 0 {
		errs = append(errs, errors.New("condition without any check"))
	}
	if err := c.compile(); err != nil {
		errs = append(errs, err)
	}
	for _, s := range c.SchemeTypes() {
		if !IsSchemeType(s) {
			errs = append(errs, fmt.Errorf("unknown scheme type %q", s))
		}
	}
	for _, s := range c.TargetSignatures {
		if !ir.IsMethodSignature(s) {
			errs = append(errs, fmt.Errorf("invalid signature %q", s))
		}
	}
	for _, e := range []string{c.TargetConstantLength, c.TargetConstantSize} {
		if e != "" && !isExpression(e) {
			errs = append(errs, fmt.Errorf("invalid expression %q", e))
		}
	}
	return errors.Join(errs...)
}

func isExpression(e string) bool {
	return strings.ContainsAny(e, "<>=!")
}

// SlicingSignatures returns the sliced signatures with their argument positions
func (r *Rule) SlicingSignatures() map[string][]int {
	return r.Signatures
}

// Number returns the numeric prefix of the insecure rule id, e.g. 3 for "3-1"
func (r *Rule) Number() int {
	return r.number
}

// Patterns returns the insecure pattern, and the secure one if present
func (r *Rule) Patterns() []*Pattern {
	if r.Secure == nil {
		return []*Pattern{r.Insecure}
	}
	return []*Pattern{r.Insecure, r.Secure}
}

// Validate checks the rule and compiles its regexes
func (r *Rule) Validate() error {
	var errs []error
	if len(r.Signatures) == 0 {
		errs = append(errs, errors.New("no slicing signatures"))
	}
	for sig := range r.Signatures {
		if !ir.IsMethodSignature(sig) {
			errs = append(errs, fmt.Errorf("invalid slicing signature %q", sig))
		}
	}
	if r.Insecure == nil {
		return errors.Join(append(errs, errors.New("missing insecureRule"))...)
	}
	n, err := ruleNumber(r.Insecure.RuleID)
	if err != nil {
		errs = append(errs, err)
	}
	r.number = n
	for _, p := range r.Patterns() {
		if len(p.Conditions) == 0 {
			errs = append(errs, fmt.Errorf("rule %s has no conditions", p.RuleID))
		}
		for _, c := range p.Conditions {
			if err := c.validate(); err != nil {
				errs = append(errs, fmt.Errorf("rule %s: %w", p.RuleID, err))
			}
		}
	}
	return errors.Join(errs...)
}

func ruleNumber(id string) (int, error) {
	prefix, _, _ := strings.Cut(id, "-")
	n, err := strconv.Atoi(prefix)
	if err != nil {
		return 0, fmt.Errorf("rule id %q does not start with a number", id)
	}
	return n, nil
}

// SortRules sorts the rules by number, then by name
func SortRules(rules []*Rule) {
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].number != rules[j].number {
			return rules[i].number < rules[j].number
		}
		return rules[i].Name < rules[j].Name
	})
}
