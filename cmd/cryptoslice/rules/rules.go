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

// Package rules implements the front-end checking the rule files of a directory.
package rules

import (
	"fmt"
	"sort"
	"strings"

	"github.com/awslabs/cryptoslice/analysis/rules"
	"github.com/awslabs/cryptoslice/internal/formatutil"
	"github.com/spf13/cobra"
)

// NewCommand returns the rules command and its validate subcommand
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect misuse rules",
	}
	var dir string
	validate := &cobra.Command{
		Use:   "validate -r <dir>",
		Short: "Check that every rule file of a directory loads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return Validate(cmd, dir)
		},
	}
	validate.Flags().StringVarP(&dir, "rules", "r", "", "directory of the rule files")
	_ = validate.MarkFlagRequired("rules")
	cmd.AddCommand(validate)
	return cmd
}

// Validate loads the rules of dir and prints them with the slicing signatures they seed on. It returns an error if
// a file is invalid, or if two rules share a number.
func Validate(cmd *cobra.Command, dir string) error {
	rs, invalid, err := rules.LoadAll(dir)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	numbers := map[int][]string{}
	for _, r := range rs {
		numbers[r.Number()] = append(numbers[r.Number()], r.Name)
		ids := r.Insecure.RuleID
		if r.Secure != nil {
			ids += ", " + r.Secure.RuleID
		}
		fmt.Fprintf(w, "%s %s (%s)\n", formatutil.Green("ok"), r.Name, ids)
		sigs := make([]string, 0, len(r.SlicingSignatures()))
		for sig := range r.SlicingSignatures() {
			sigs = append(sigs, sig)
		}
		sort.Strings(sigs)
		for _, sig := range sigs {
			fmt.Fprintf(w, "    %s %v\n", formatutil.Sanitize(sig), r.SlicingSignatures()[sig])
		}
	}
	for _, e := range invalid {
		fmt.Fprintf(w, "%s %v\n", formatutil.Red("invalid"), e)
	}
	var duplicates []string
	for n, names := range numbers {
		if len(names) > 1 {
			duplicates = append(duplicates, fmt.Sprintf("rule number %d in %s", n, strings.Join(names, " and ")))
		}
	}
	sort.Strings(duplicates)
	for _, d := range duplicates {
		fmt.Fprintf(w, "%s %s\n", formatutil.Yellow("duplicate"), d)
	}
	fmt.Fprintf(w, "%d valid, %d invalid\n", len(rs), len(invalid))
	if len(invalid) > 0 || len(duplicates) > 0 {
		return fmt.Errorf("%d invalid rule files, %d duplicate rule numbers in %s", len(invalid), len(duplicates),
			dir)
	}
	return nil
}
