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

// Package analyze implements the front-end of the misuse detection: it slices a program dump with the rules of a
// directory and writes the report.
package analyze

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/awslabs/cryptoslice/analysis"
	"github.com/awslabs/cryptoslice/analysis/config"
	"github.com/awslabs/cryptoslice/analysis/report"
	"github.com/awslabs/cryptoslice/cmd/cryptoslice/tools"
	"github.com/awslabs/cryptoslice/internal/formatutil"
	"github.com/spf13/cobra"
)

// Flags represents the parsed flags of the analyze command
type Flags struct {
	tools.CommonFlags
	Platform         string
	Rules            string
	Output           string
	Format           string
	UpperLevel       int
	LowerLevel       int
	MaxAlarms        int
	DevOnly          bool
	ClassFilter      string
	NoPrune          bool
	SkipReachability bool
}

// NewCommand returns the analyze command
func NewCommand() *cobra.Command {
	flags := &Flags{}
	cmd := &cobra.Command{
		Use:   "analyze -i <dump> -r <rules> [flags]",
		Short: "Detect cryptographic API misuses in a program dump",
		Long: `Slice the program backwards from the calls named by the rules, and check the slices against the rules.

Examples:
  % cryptoslice analyze -i app.msgpack -p platforms/android-33 -r rules
  % cryptoslice analyze -i app.yaml -r rules --format json -o report.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return Run(cmd, *flags)
		},
	}
	tools.AddCommonFlags(cmd, &flags.CommonFlags)
	f := cmd.Flags()
	f.StringVarP(&flags.Platform, "platform", "p", "", "platform SDK directory")
	f.StringVarP(&flags.Rules, "rules", "r", "", "directory of the rule files")
	f.StringVarP(&flags.Output, "output", "o", "", "report file (standard output if empty)")
	f.StringVar(&flags.Format, "format", config.ReportFormatText, "report format: text, json or yaml")
	f.IntVar(&flags.UpperLevel, "upper-level", config.DefaultUpperLevel, "bound of caller-side ascent")
	f.IntVar(&flags.LowerLevel, "lower-level", config.DefaultLowerLevel, "bound of callee-side descent (negative)")
	f.IntVar(&flags.MaxAlarms, "max-alarms", 0, "maximum number of findings reported (0 for no limit)")
	f.BoolVar(&flags.DevOnly, "dev-only", false, "only report findings in application classes")
	f.StringVar(&flags.ClassFilter, "class-filter", "", "regex restricting the classes of slicing callers")
	f.BoolVar(&flags.NoPrune, "no-prune", false, "keep retained units unconnected to the seed")
	f.BoolVar(&flags.SkipReachability, "skip-reachability", false,
		"do not discard callers unreachable from application components")
	return cmd
}

// Options applies the flags set on the command line over the configuration
func (flags Flags) Options(cmd *cobra.Command, cfg *config.Config) error {
	changed := cmd.Flags().Changed
	if flags.Platform != "" {
		cfg.PlatformDir = flags.Platform
	}
	if flags.Rules != "" {
		cfg.RulesDir = flags.Rules
	}
	if flags.Output != "" {
		cfg.Output = flags.Output
	}
	if changed("format") {
		cfg.ReportFormat = strings.ToLower(flags.Format)
	}
	if changed("upper-level") {
		cfg.UpperLevel = flags.UpperLevel
	}
	if changed("lower-level") {
		cfg.LowerLevel = flags.LowerLevel
	}
	if changed("max-alarms") {
		cfg.MaxAlarms = flags.MaxAlarms
	}
	if changed("dev-only") {
		cfg.DevOnly = flags.DevOnly
	}
	if changed("class-filter") {
		cfg.ClassFilter = flags.ClassFilter
	}
	if flags.NoPrune {
		cfg.PruneUseless = false
	}
	if flags.SkipReachability {
		cfg.SkipReachability = true
	}
	return cfg.Validate()
}

// Run runs the analysis with flags, and writes the report to the output of the configuration
func Run(cmd *cobra.Command, flags Flags) error {
	cfg, err := tools.LoadConfig(flags.CommonFlags)
	if err != nil {
		return err
	}
	if err := flags.Options(cmd, cfg); err != nil {
		return err
	}
	logger := tools.NewLogger(cfg, cmd.ErrOrStderr())
	logger.Infof(formatutil.Faint("cryptoslice analyze - " + analysis.Version))

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()
	session := analysis.NewSession(cfg, logger)
	r, err := session.Run(ctx, flags.Input)
	if err != nil {
		return err
	}
	logger.Infof("Analysis took %3.4f s", time.Since(start).Seconds())
	for _, e := range session.Errors() {
		logger.Debugf("non-fatal: %v", e)
	}

	w, closeOutput, err := tools.CreateOutput(cmd, cfg.Output)
	if err != nil {
		return err
	}
	if cfg.Output != "" {
		// files never get escape sequences
		formatutil.SetColor(false)
	}
	if err := report.Write(w, cfg.ReportFormat, r); err != nil {
		_ = closeOutput()
		return fmt.Errorf("could not write report: %w", err)
	}
	if err := closeOutput(); err != nil {
		return err
	}
	if cfg.Output != "" {
		logger.Infof("Report written to %s", cfg.Output)
	}
	return nil
}
