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

	"github.com/awslabs/ar-go-lineage/analysis/config"
	"github.com/awslabs/ar-go-lineage/analysis/lineage"
	"github.com/spf13/cobra"
)

func newRenderCmd(flags *rootFlags) *cobra.Command {
	var (
		method string
		format string
		output string
	)
	cmd := &cobra.Command{
		Use:   "render [flags] <packages>",
		Short: "Render the points-to graph of a method at its exit",
		Long: `render analyzes one method and prints its points-to graph at the exit of the method, in the Graphviz
dot format or in the Directed Graph Markup Language (dgml).`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if method == "" {
				return fmt.Errorf("render requires a method (--method)")
			}
			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}
			logger := config.NewLogGroup(cfg)
			d, err := newDriver(cfg, logger, flags.platform, args)
			if err != nil {
				return err
			}
			fn, ok := d.Find(method)
			if !ok {
				return fmt.Errorf("no method %s in the program", method)
			}
			res, err := d.Analyze(fn)
			if err != nil {
				return err
			}
			content, err := renderGraph(res, format)
			if err != nil {
				return err
			}
			if output == "" {
				_, err = fmt.Fprint(cmd.OutOrStdout(), content)
				return err
			}
			logger.Infof("Writing graph of %s in %s\n", res.Method, output)
			return os.WriteFile(output, []byte(content), 0600)
		},
	}
	cmd.Flags().StringVar(&method, "method", "", "method to render, e.g. (*example.com/job.Copier).Process")
	cmd.Flags().StringVar(&format, "format", "dot", "output format: dot or dgml")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: standard output)")
	_ = cmd.RegisterFlagCompletionFunc("format", func(*cobra.Command, []string, string) ([]string,
		cobra.ShellCompDirective) {
		return []string{"dot", "dgml"}, cobra.ShellCompDirectiveNoFileComp
	})
	return cmd
}

func renderGraph(res *lineage.Result, format string) (string, error) {
	switch format {
	case "dot":
		return res.ExitPTG().Graphviz(res.Method.String())
	case "dgml":
		return res.ExitPTG().DGML()
	}
	return "", fmt.Errorf("unknown format %q", format)
}
