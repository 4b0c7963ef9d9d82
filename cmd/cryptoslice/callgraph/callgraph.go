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

// Package callgraph implements the front-end printing the call graph of a program dump: a summary, the recursive
// clusters, the caller chains of a method, or the graph in DOT format.
package callgraph

import (
	"fmt"
	"io"
	"strings"

	"github.com/awslabs/cryptoslice/analysis"
	"github.com/awslabs/cryptoslice/analysis/callgraph"
	"github.com/awslabs/cryptoslice/cmd/cryptoslice/tools"
	"github.com/awslabs/cryptoslice/internal/formatutil"
	"github.com/spf13/cobra"
)

// Flags represents the parsed flags of the callgraph command
type Flags struct {
	tools.CommonFlags
	Dot     string
	Cycles  bool
	Callers string
	Limit   int
}

// NewCommand returns the callgraph command
func NewCommand() *cobra.Command {
	flags := &Flags{}
	cmd := &cobra.Command{
		Use:   "callgraph -i <dump> [--dot out.dot] [--cycles] [--callers <signature>]",
		Short: "Print the call graph of a program dump",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return Run(cmd, *flags)
		},
	}
	tools.AddCommonFlags(cmd, &flags.CommonFlags)
	cmd.Flags().StringVar(&flags.Dot, "dot", "", "write the call edges in DOT format to this file (- for stdout)")
	cmd.Flags().BoolVar(&flags.Cycles, "cycles", false, "print the clusters of mutually recursive methods")
	cmd.Flags().StringVar(&flags.Callers, "callers", "", "print the caller chains of the method with this signature")
	cmd.Flags().IntVar(&flags.Limit, "limit", 20, "maximum number of caller chains printed")
	return cmd
}

// Run loads the program dump and prints what the flags ask for
func Run(cmd *cobra.Command, flags Flags) error {
	cfg, err := tools.LoadConfig(flags.CommonFlags)
	if err != nil {
		return err
	}
	logger := tools.NewLogger(cfg, cmd.ErrOrStderr())
	session := analysis.NewSession(cfg, logger)
	p, err := session.LoadProgram(flags.Input)
	if err != nil {
		return err
	}
	p.SetBuiltinPrefixes(cfg.BuiltinPrefixes)
	g, info := callgraph.Build(p, logger)
	out := cmd.OutOrStdout()

	if flags.Dot != "" {
		w, closeOutput, err := tools.CreateOutput(cmd, flags.Dot)
		if err != nil {
			return err
		}
		if err := g.WriteDot(w, p.Package); err != nil {
			_ = closeOutput()
			return fmt.Errorf("could not write dot graph: %w", err)
		}
		if err := closeOutput(); err != nil {
			return err
		}
	}
	if flags.Dot != "-" {
		printSummary(out, g, info)
	}
	if flags.Cycles {
		printCycles(out, g)
	}
	if flags.Callers != "" {
		return printCallers(out, g, flags.Callers, flags.Limit)
	}
	return nil
}

func printSummary(w io.Writer, g *callgraph.Graph, info *callgraph.Info) {
	methods, fields := 0, 0
	for i := 0; i < g.Len(); i++ {
		if g.Node(callgraph.NodeID(i)).Kind == callgraph.MethodNode {
			methods++
		} else {
			fields++
		}
	}
	calls, accesses := 0, 0
	for _, e := range g.Edges() {
		if e.Directed {
			calls++
		} else {
			accesses++
		}
	}
	fmt.Fprintf(w, "%s\n", formatutil.Bold("Call graph"))
	fmt.Fprintf(w, "  methods: %d, fields: %d\n", methods, fields)
	fmt.Fprintf(w, "  call edges: %d, field accesses: %d\n", calls, accesses)
	fmt.Fprintf(w, "  constant fields: %d\n", len(info.ConstantFields()))
	if len(info.Skipped) > 0 {
		fmt.Fprintf(w, "  %s %s\n", formatutil.Yellow("skipped methods:"), strings.Join(info.Skipped, ", "))
	}
}

func printCycles(w io.Writer, g *callgraph.Graph) {
	clusters := g.RecursiveClusters()
	fmt.Fprintf(w, "%s %d\n", formatutil.Bold("Recursive clusters:"), len(clusters))
	for i, cluster := range clusters {
		fmt.Fprintf(w, "  [%d]\n", i)
		for _, sig := range cluster {
			fmt.Fprintf(w, "    %s\n", formatutil.Sanitize(sig))
		}
	}
	cycles := g.ElementaryCycles()
	fmt.Fprintf(w, "%s %d\n", formatutil.Bold("Elementary cycles:"), len(cycles))
	for _, cycle := range cycles {
		names := make([]string, len(cycle))
		for i, sig := range cycle {
			names[i] = formatutil.Sanitize(sig)
		}
		fmt.Fprintf(w, "  %s\n", strings.Join(names, " -> "))
	}
}

func printCallers(w io.Writer, g *callgraph.Graph, signature string, limit int) error {
	id, ok := g.Lookup(signature)
	if !ok {
		return fmt.Errorf("no method %s in the call graph", signature)
	}
	chains := g.CallerChains(id, limit)
	fmt.Fprintf(w, "%s %d\n", formatutil.Bold("Caller chains:"), len(chains))
	for _, chain := range chains {
		names := make([]string, len(chain))
		for i, n := range chain {
			names[i] = formatutil.Sanitize(g.Node(n).Signature)
		}
		fmt.Fprintf(w, "  %s\n", strings.Join(names, " <- "))
	}
	return nil
}
