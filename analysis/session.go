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

// Package analysis runs the whole misuse detection over one program dump: it loads the program and the rules,
// slices every seed, merges the partial slices and checks them against the rules.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/awslabs/cryptoslice/analysis/callgraph"
	"github.com/awslabs/cryptoslice/analysis/config"
	"github.com/awslabs/cryptoslice/analysis/criteria"
	"github.com/awslabs/cryptoslice/analysis/ir"
	"github.com/awslabs/cryptoslice/analysis/optimizer"
	"github.com/awslabs/cryptoslice/analysis/report"
	"github.com/awslabs/cryptoslice/analysis/rules"
	"github.com/awslabs/cryptoslice/analysis/slice"
	"github.com/awslabs/cryptoslice/analysis/slicer"
	"github.com/awslabs/cryptoslice/analysis/solver"
)

// ErrFatal wraps the errors that stop an analysis before any slicing
var ErrFatal = errors.New("fatal")

// Session holds the state of one analysis: every component is created by the session and lives as long as it does.
// A Session is not safe for concurrent use, except for AddError and CheckError.
type Session struct {
	// Logger is the logger used by all components
	Logger *config.LogGroup

	// Config is the configuration of the analysis
	Config *config.Config

	// Input is the path of the program dump
	Input string

	// Program is the program analyzed, set by Prepare
	Program *ir.Program

	// Rules are the misuse rules, set by LoadRules
	Rules []*rules.Rule

	Graph     *callgraph.Graph
	Info      *callgraph.Info
	Solver    *solver.Solver
	Generator *criteria.Generator
	Slicer    *slicer.Slicer
	Checker   *rules.Checker

	// Seeds are the root criteria of the last run
	Seeds []criteria.Criterion

	combined int

	// Stored errors
	errors     map[error]bool
	errorMutex sync.Mutex
}

// NewSession returns a session for the configuration. A nil logger logs according to the configuration.
func NewSession(cfg *config.Config, logger *config.LogGroup) *Session {
	if logger == nil {
		logger = config.NewLogGroup(cfg)
	}
	return &Session{
		Logger: logger,
		Config: cfg,
		errors: map[error]bool{},
	}
}

// AddError records a non-fatal error
func (s *Session) AddError(e error) {
	s.errorMutex.Lock()
	defer s.errorMutex.Unlock()
	if e != nil {
		s.errors[e] = true
	}
}

// CheckError returns and forgets one of the recorded errors, or nil if there are none
func (s *Session) CheckError() error {
	s.errorMutex.Lock()
	defer s.errorMutex.Unlock()
	for e := range s.errors {
		delete(s.errors, e)
		return e
	}
	return nil
}

// Errors returns the recorded errors, sorted by message
func (s *Session) Errors() []error {
	s.errorMutex.Lock()
	defer s.errorMutex.Unlock()
	res := make([]error, 0, len(s.errors))
	for e := range s.errors {
		res = append(res, e)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Error() < res[j].Error() })
	return res
}

// CheckInputs returns an error wrapping ErrFatal if the input dump does not exist, the platform directory is set but
// is not a directory, or the rules directory cannot be read.
func (s *Session) CheckInputs(input string) error {
	if _, err := os.Stat(input); err != nil {
		return fmt.Errorf("%w: input %s: %v", ErrFatal, input, err)
	}
	if dir := s.Config.PlatformDir; dir != "" {
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("%w: platform directory: %v", ErrFatal, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("%w: platform directory %s is not a directory", ErrFatal, dir)
		}
	}
	if s.Config.RulesDir == "" {
		return fmt.Errorf("%w: no rules directory", ErrFatal)
	}
	if _, err := os.ReadDir(s.Config.RulesDir); err != nil {
		return fmt.Errorf("%w: rules directory: %v", ErrFatal, err)
	}
	return nil
}

// LoadProgram loads the program dump, and the platform dumps found in the platform directory. The classes of the
// platform dumps that the program does not declare are added to it. Problems in method bodies are recorded with
// AddError.
func (s *Session) LoadProgram(input string) (*ir.Program, error) {
	p, problems, err := ir.Load(input)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFatal, err)
	}
	for _, problem := range problems {
		s.Logger.Warnf("%s: %v", input, problem)
		s.AddError(problem)
	}
	if s.Config.PlatformDir != "" {
		n, err := s.addPlatformClasses(p)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFatal, err)
		}
		s.Logger.Debugf("%d platform classes added from %s", n, s.Config.PlatformDir)
	}
	s.Input = input
	s.Logger.Infof("Loaded %s: package %s, %d classes", input, p.Package, len(p.Classes))
	return p, nil
}

func (s *Session) addPlatformClasses(p *ir.Program) (int, error) {
	entries, err := os.ReadDir(s.Config.PlatformDir)
	if err != nil {
		return 0, fmt.Errorf("could not read platform directory: %w", err)
	}
	declared := map[string]bool{}
	for _, c := range p.Classes {
		if c != nil {
			declared[c.Name] = true
		}
	}
	added := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, err := ir.FormatOf(entry.Name()); err != nil {
			continue
		}
		file := filepath.Join(s.Config.PlatformDir, entry.Name())
		platform, _, err := ir.Load(file)
		if err != nil {
			s.Logger.Warnf("skipping platform dump %s: %v", file, err)
			s.AddError(err)
			continue
		}
		for _, c := range platform.Classes {
			if c != nil && !declared[c.Name] {
				declared[c.Name] = true
				p.AddClass(c)
				added++
			}
		}
	}
	if added > 0 {
		for _, problem := range p.Finalize() {
			s.AddError(problem)
		}
	}
	return added, nil
}

// LoadRules loads the rules of the configured rules directory. Having no rule is fatal.
func (s *Session) LoadRules() error {
	rs, err := rules.Load(s.Config.RulesDir, s.Logger)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFatal, err)
	}
	if len(rs) == 0 {
		return fmt.Errorf("%w: no rule in %s", ErrFatal, s.Config.RulesDir)
	}
	s.Rules = rs
	s.Logger.Infof("Loaded %d rules from %s", len(rs), s.Config.RulesDir)
	return nil
}

// Prepare builds the call graph and the components of the slicing for the program
func (s *Session) Prepare(p *ir.Program) {
	p.SetBuiltinPrefixes(s.Config.BuiltinPrefixes)
	s.Program = p
	s.Graph, s.Info = callgraph.Build(s.Program, s.Logger)
	s.Solver = solver.New(s.Config.SolverTimeout())
	s.Generator = criteria.NewGenerator(s.Program, s.Graph, optimizer.New(s.Info, s.Solver, s.Logger), s.Config,
		s.Logger)
	s.Slicer = slicer.New(s.Program, s.Graph, s.Info, s.Generator, nil, s.Config, s.Logger)
	s.Logger.Debugf("Call graph: %d nodes", s.Graph.Len())
}

// Slice creates the seeds of the rules and slices them
func (s *Session) Slice(ctx context.Context) error {
	sources := make([]criteria.SeedSource, len(s.Rules))
	for i, r := range s.Rules {
		sources[i] = r
	}
	s.Seeds = nil
	for _, c := range criteria.CreateCandidates(sources...) {
		seeds := s.Generator.Seeds(ctx, c)
		s.Logger.Debugf("%s: %d seeds", c.Signature, len(seeds))
		s.Seeds = append(s.Seeds, seeds...)
	}
	s.Logger.Infof("Slicing %d seeds", len(s.Seeds))
	if len(s.Seeds) == 0 {
		return nil
	}
	if err := s.Slicer.Run(ctx, s.Seeds); err != nil {
		return err
	}
	s.Logger.Infof("Slicing done: %s", s.Slicer.Stats())
	return nil
}

// Check merges the slices of each feasible seed and checks them against the rules
func (s *Session) Check(ctx context.Context) []rules.Finding {
	s.Checker = rules.NewChecker(s.Rules, s.Slicer.Store(), s.Slicer, s.Generator, s.Solver, s.Program, s.Logger)
	s.combined = 0
	var findings []rules.Finding
	for _, seed := range s.Seeds {
		if ctx.Err() != nil {
			break
		}
		if partial, ok := s.Slicer.Store().Get(seed.ID()); !ok || partial.Infeasible {
			s.Logger.Debugf("skipping infeasible seed %s", seed)
			continue
		}
		combined := s.Slicer.Merge(ctx, seed.ID())
		if len(combined) == 0 {
			combined = []slice.Combined{{Root: seed.ID()}}
		}
		s.combined += len(combined)
		for _, c := range combined {
			findings = append(findings, s.Checker.Check(ctx, seed, c)...)
		}
	}
	return findings
}

// Stats returns the counters of the last run
func (s *Session) Stats() report.Stats {
	st := report.Stats{Rules: len(s.Rules), Seeds: len(s.Seeds), Combined: s.combined}
	if s.Slicer != nil {
		sl := s.Slicer.Stats()
		st.Partials = s.Slicer.Store().Len()
		st.Processed = sl.Processed
		st.Memoized = sl.Memoized
		st.Infeasible = sl.Infeasible
	}
	return st
}

// Run analyzes the program dump at input and returns the report. Errors wrapping ErrFatal are returned before any
// slicing.
func (s *Session) Run(ctx context.Context, input string) (*report.Report, error) {
	if err := s.CheckInputs(input); err != nil {
		return nil, err
	}
	if err := s.LoadRules(); err != nil {
		return nil, err
	}
	p, err := s.LoadProgram(input)
	if err != nil {
		return nil, err
	}
	return s.Analyze(ctx, p)
}

// Analyze slices and checks a loaded program with the loaded rules. A cancelled context stops the analysis and its
// error is returned.
func (s *Session) Analyze(ctx context.Context, p *ir.Program) (*report.Report, error) {
	s.Prepare(p)
	if err := s.Slice(ctx); err != nil {
		return nil, err
	}
	findings := s.Check(ctx)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	input := s.Input
	if input == "" {
		input = p.Package
	}
	filter := report.Filter{MaxAlarms: s.Config.MaxAlarms, DevOnly: s.Config.DevOnly, IsDev: p.IsDevClass}
	r := report.New(input, p.Package, findings, s.Stats(), filter)
	s.Logger.Infof("%d findings (%d insecure), %d dropped", len(r.Findings), r.Insecure(), r.Stats.Dropped)
	return r, nil
}
