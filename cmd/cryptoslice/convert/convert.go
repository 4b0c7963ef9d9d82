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

// Package convert implements the front-end converting program dumps between the yaml and msgpack encodings.
package convert

import (
	"fmt"

	"github.com/awslabs/cryptoslice/analysis/ir"
	"github.com/spf13/cobra"
)

// NewCommand returns the convert command
func NewCommand() *cobra.Command {
	var input, output string
	cmd := &cobra.Command{
		Use:   "convert -i <dump> -o <out.msgpack|out.yaml>",
		Short: "Convert a program dump to the encoding given by the output extension",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := Run(input, output)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d classes written to %s\n", n, output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "program dump to convert")
	cmd.Flags().StringVarP(&output, "output", "o", "", "converted dump (.yaml, .yml, .json, .msgpack or .mp)")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

// Run converts the dump at input into output, and returns the number of classes written. Methods with an invalid
// unit are written without their body.
func Run(input string, output string) (int, error) {
	if _, err := ir.FormatOf(output); err != nil {
		return 0, err
	}
	p, _, err := ir.Load(input)
	if err != nil {
		return 0, err
	}
	if err := ir.Save(p, output); err != nil {
		return 0, err
	}
	return len(p.Classes), nil
}
