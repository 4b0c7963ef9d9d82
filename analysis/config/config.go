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

package config

import (
	"fmt"
	"os"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/awslabs/cryptoslice/internal/funcutil"
	"gopkg.in/yaml.v3"
)

// Config contains the options of an analysis run, and the filters derived from them.
// If some field is not defined in the config file, it will be set to its default value (see NewDefault).
// private fields are not populated from a yaml file, but computed after initialization
type Config struct {
	Options `yaml:",inline"`

	sourceFile string

	// ClassFilter is a regex restricting the classes whose methods are used as slicing callers. Empty means all.
	ClassFilter string `yaml:"class-filter"`

	// if the ClassFilter is specified
	classFilterRegex *regexp.Regexp
}

// Options are the knobs of the analysis. All of them can be overridden on the command line.
type Options struct {
	// RulesDir is the directory containing the rule files (json or yaml)
	RulesDir string `yaml:"rules-dir"`

	// PlatformDir is the directory of the platform SDK the program dump was decoded against. If set, it must exist.
	PlatformDir string `yaml:"platform-dir"`

	// Output is the path of the report file. If empty, the report is written to standard output
	Output string `yaml:"output"`

	// ReportFormat is one of text, json or yaml
	ReportFormat string `yaml:"report-format"`

	// UpperLevel bounds caller-side ascent (parameter and field ascent) of the slicer
	UpperLevel int `yaml:"upper-level"`

	// LowerLevel bounds callee-side descent of the slicer. It is negative.
	LowerLevel int `yaml:"lower-level"`

	// SolverTimeoutMs is the time budget of a single constraint solver query, in milliseconds
	SolverTimeoutMs int `yaml:"solver-timeout-ms"`

	// MaxCallerChains bounds the number of caller chains enumerated by the reachability filter for a single method
	MaxCallerChains int `yaml:"max-caller-chains"`

	// MaxCriteria sets a limit on the number of criteria processed by one slicer run. If <= 0, it is ignored.
	MaxCriteria int `yaml:"max-criteria"`

	// MaxAlarms sets a limit for the number of findings reported.  If MaxAlarms > 0, then at most
	// MaxAlarms will be reported. Otherwise, if MaxAlarms <= 0, it is ignored.
	MaxAlarms int `yaml:"max-alarms"`

	// DevOnly restricts the findings to the ones whose caller is an application (developer) class
	DevOnly bool `yaml:"dev-only"`

	// PruneUseless enables the removal of the retained units that are not connected to the seed, in the slices of
	// criteria that spawned other criteria
	PruneUseless bool `yaml:"prune-useless"`

	// SkipReachability disables the filter discarding callers unreachable from application components
	SkipReachability bool `yaml:"skip-reachability"`

	// BuiltinPrefixes are the prefixes of class names considered builtin (platform, runtime)
	BuiltinPrefixes []string `yaml:"builtin-prefixes"`

	// TrackedReturnTypes are the builtin return types of callers for which criteria are still generated
	TrackedReturnTypes []string `yaml:"tracked-return-types"`

	// LogLevel controls the verbosity of the tool
	LogLevel int `yaml:"log-level"`
}

// NewDefault returns the default config.
func NewDefault() *Config {
	return &Config{
		sourceFile: "",
		Options: Options{
			RulesDir:           "",
			PlatformDir:        "",
			Output:             "",
			ReportFormat:       ReportFormatText,
			UpperLevel:         DefaultUpperLevel,
			LowerLevel:         DefaultLowerLevel,
			SolverTimeoutMs:    DefaultSolverTimeoutMs,
			MaxCallerChains:    DefaultMaxCallerChains,
			MaxCriteria:        0,
			MaxAlarms:          0,
			DevOnly:            false,
			PruneUseless:       true,
			BuiltinPrefixes:    append([]string{}, DefaultBuiltinPrefixes...),
			TrackedReturnTypes: append([]string{}, DefaultTrackedReturnTypes...),
			LogLevel:           int(InfoLevel),
		},
	}
}

// Load reads a configuration from a file
func Load(filename string) (*Config, error) {
	cfg := NewDefault()
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("could not read config file: %w", err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("could not unmarshal config file %s: %w", filename, err)
	}
	cfg.sourceFile = filename

	for _, p := range []*string{&cfg.RulesDir, &cfg.PlatformDir, &cfg.Output} {
		if *p != "" && !path.IsAbs(*p) {
			*p = cfg.RelPath(*p)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate normalizes the options that have been left unset or set to invalid values, and compiles the filters.
// It returns an error only when the options cannot be reconciled.
func (c *Config) Validate() error {
	// If logLevel has not been specified (i.e. it is 0) set the default to Info
	if c.LogLevel == 0 {
		c.LogLevel = int(InfoLevel)
	}
	if c.UpperLevel <= 0 {
		c.UpperLevel = DefaultUpperLevel
	}
	if c.LowerLevel >= 0 {
		c.LowerLevel = DefaultLowerLevel
	}
	if c.SolverTimeoutMs <= 0 {
		c.SolverTimeoutMs = DefaultSolverTimeoutMs
	}
	if c.MaxCallerChains <= 0 {
		c.MaxCallerChains = DefaultMaxCallerChains
	}
	if len(c.BuiltinPrefixes) == 0 {
		c.BuiltinPrefixes = append([]string{}, DefaultBuiltinPrefixes...)
	}
	if c.TrackedReturnTypes == nil {
		c.TrackedReturnTypes = append([]string{}, DefaultTrackedReturnTypes...)
	}

	switch c.ReportFormat {
	case "":
		c.ReportFormat = ReportFormatText
	case ReportFormatText, ReportFormatJSON, ReportFormatYAML:
	default:
		return fmt.Errorf("unknown report format %q (expected %s, %s or %s)", c.ReportFormat,
			ReportFormatText, ReportFormatJSON, ReportFormatYAML)
	}

	if c.ClassFilter != "" {
		r, err := regexp.Compile(c.ClassFilter)
		if err != nil {
			return fmt.Errorf("invalid class-filter %q: %w", c.ClassFilter, err)
		}
		c.classFilterRegex = r
	}
	return nil
}

// RelPath returns filename path relative to the config source file
func (c Config) RelPath(filename string) string {
	return path.Join(path.Dir(c.sourceFile), filename)
}

// SolverTimeout returns the time budget of a solver query
func (c Config) SolverTimeout() time.Duration {
	return time.Duration(c.SolverTimeoutMs) * time.Millisecond
}

// IsBuiltinClass returns true if the class name starts with one of the builtin prefixes.
func (c Config) IsBuiltinClass(className string) bool {
	return funcutil.Exists(c.BuiltinPrefixes, func(p string) bool { return strings.HasPrefix(className, p) })
}

// IsTrackedReturnType returns true if the builtin type is one of the return types for which callers are analyzed.
func (c Config) IsTrackedReturnType(typ string) bool {
	return funcutil.Contains(c.TrackedReturnTypes, typ)
}

// MatchClassFilter returns true if the class name matches the class filter set in the config file. If no
// class filter has been set in the config file, the regex will match anything and return true.
func (c Config) MatchClassFilter(className string) bool {
	if c.classFilterRegex != nil {
		return c.classFilterRegex.MatchString(className)
	}
	return true
}
