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

package main

import (
	"fmt"
	"os"

	"github.com/awslabs/cryptoslice/analysis"
	"github.com/awslabs/cryptoslice/cmd/cryptoslice/analyze"
	"github.com/awslabs/cryptoslice/cmd/cryptoslice/callgraph"
	"github.com/awslabs/cryptoslice/cmd/cryptoslice/convert"
	"github.com/awslabs/cryptoslice/cmd/cryptoslice/rules"
	"github.com/awslabs/cryptoslice/cmd/cryptoslice/tools"
	"github.com/spf13/cobra"
)

// newRootCommand returns the root command with every tool attached
func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "cryptoslice",
		Short: "cryptoslice: cryptographic API misuse detection for Android applications",
		Long: `cryptoslice slices decompiled Android applications backwards from cryptographic API calls, and checks the
slices against misuse rules.

Tools:
  analyze     slices a program dump and reports the rule findings
  callgraph   prints the call graph of a program dump
  rules       checks rule files
  convert     converts a program dump between yaml and msgpack

Examples:
  % cryptoslice analyze -i app.msgpack -p platforms/android-33 -r rules
  % cryptoslice callgraph -i app.yaml --dot app.dot`,
		Version:       analysis.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(analyze.NewCommand())
	root.AddCommand(callgraph.NewCommand())
	root.AddCommand(rules.NewCommand())
	root.AddCommand(convert.NewCommand())
	return root
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		errExit(err)
	}
}

func errExit(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	hint := tools.HintForErrorMessage(err.Error())
	if hint != "" {
		fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
	}
	os.Exit(2)
}
