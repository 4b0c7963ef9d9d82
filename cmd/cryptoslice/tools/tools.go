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

// Package tools contains utility types and functions for the cryptoslice subcommands.
package tools

import (
	"fmt"
	"io"
	"os"

	"github.com/awslabs/cryptoslice/analysis/config"
	"github.com/awslabs/cryptoslice/internal/formatutil"
	"github.com/spf13/cobra"
)

// CommonFlags are the flags shared by the subcommands that analyze a program dump
type CommonFlags struct {
	Input      string
	ConfigPath string
	Verbose    bool
	NoColor    bool
}

// AddCommonFlags binds the common flags to the command: -i, --config, -v and --no-color
func AddCommonFlags(cmd *cobra.Command, flags *CommonFlags) {
	cmd.Flags().StringVarP(&flags.Input, "input", "i", "", "program dump to analyze (.yaml, .yml, .json, .msgpack, .mp)")
	cmd.Flags().StringVar(&flags.ConfigPath, "config", "", "config file path for analysis")
	cmd.Flags().BoolVarP(&flags.Verbose, "verbose", "v", false, "verbose printing on standard error")
	cmd.Flags().BoolVar(&flags.NoColor, "no-color", false, "disable colored output")
	_ = cmd.MarkFlagRequired("input")
}

// LoadConfig loads the config file from configPath, or returns the default config if configPath is empty. The
// verbose flag overrides the log level of the file.
func LoadConfig(flags CommonFlags) (*config.Config, error) {
	cfg := config.NewDefault()
	if flags.ConfigPath != "" {
		c, err := config.Load(flags.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", flags.ConfigPath, err)
		}
		cfg = c
	}
	if flags.Verbose {
		cfg.LogLevel = int(config.DebugLevel)
	}
	if flags.NoColor {
		formatutil.SetColor(false)
	}
	return cfg, nil
}

// NewLogger returns the log group of the configuration, writing to w
func NewLogger(cfg *config.Config, w io.Writer) *config.LogGroup {
	if w == nil {
		w = os.Stderr
	}
	return config.NewLogGroupWithLevel(config.LogLevel(cfg.LogLevel), w)
}

// CreateOutput returns the writer of the output path and the function closing it. An empty path or "-" is the
// standard output of the command, which is never closed.
func CreateOutput(cmd *cobra.Command, path string) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("could not create output file: %w", err)
	}
	return f, f.Close, nil
}
