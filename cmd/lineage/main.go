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

// Command lineage computes the column-level lineage of the iterator methods of query jobs written in Go.
//
// Usage:
//
//	lineage analyze [flags] <packages>
//	lineage render [flags] <packages>
//	lineage runs --db=<file>
//	lineage dependents --db=<file> <traceable>
//	lineage changed --db=<file> <run> <run>
package main

import (
	"fmt"
	"os"

	"github.com/awslabs/ar-go-lineage/analysis/config"
	"github.com/spf13/cobra"
)

// Version is set at build time
var Version = "v0.1.0"

type rootFlags struct {
	configPath string
	logLevel   int
	pkgFilter  string
	platform   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if hint := hintForErrorMessage(err.Error()); hint != "" {
			fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
		}
		os.Exit(2)
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:   "lineage",
		Short: "Column-level lineage of query job iterators",
		Long: `lineage statically computes, for each output column written by the iterator methods of a query job,
the input columns, input tables and row counts it may depend on.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "configuration file (yaml)")
	root.PersistentFlags().IntVar(&flags.logLevel, "log-level", 0, "log level, from 1 (errors) to 5 (trace)")
	root.PersistentFlags().StringVar(&flags.pkgFilter, "pkg-filter", "", "only analyze packages matching the filter")
	root.PersistentFlags().StringVar(&flags.platform, "platform", "", "GOOS of the packages to load")

	root.AddCommand(newAnalyzeCmd(flags))
	root.AddCommand(newRenderCmd(flags))
	root.AddCommand(newRunsCmd())
	root.AddCommand(newDependentsCmd())
	root.AddCommand(newChangedCmd())
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), Version)
		},
	})
	return root
}

// loadConfig returns the configuration of the command: the config file if there is one, with the flags applied
func (f *rootFlags) loadConfig() (*config.Config, error) {
	cfg := config.NewDefault()
	if f.configPath != "" {
		var err error
		cfg, err = config.Load(f.configPath)
		if err != nil {
			return nil, err
		}
	}
	if f.logLevel > 0 {
		cfg.LogLevel = f.logLevel
	}
	if f.pkgFilter != "" {
		cfg.SetPkgFilter(f.pkgFilter)
	}
	return cfg, nil
}
