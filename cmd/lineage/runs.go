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
	"strings"
	"time"

	"github.com/awslabs/ar-go-lineage/analysis/report"
	"github.com/awslabs/ar-go-lineage/internal/formatutil"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func openStore(dbPath string) (*report.Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("a database is required (--db)")
	}
	return report.OpenStore(dbPath)
}

func newRunsCmd() *cobra.Command {
	var dbPath string
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List the runs stored in a database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStore(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()
			runs, err := store.Runs(cmd.Context())
			if err != nil {
				return err
			}
			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Run", "Started", "Methods", "Patterns"})
			for _, r := range runs {
				t.AppendRow(table.Row{r.ID, r.StartedAt.Format(time.RFC3339), r.Methods, strings.Join(r.Patterns, " ")})
			}
			t.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "sqlite database of the runs")
	return cmd
}

func newDependentsCmd() *cobra.Command {
	var dbPath string
	cmd := &cobra.Command{
		Use:   "dependents <traceable>",
		Short: "List the output columns that depend on a traceable, e.g. Col(input,name)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()
			refs, err := store.Dependents(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, ref := range refs {
				kind := "data"
				if ref.Control {
					kind = formatutil.Faint("control")
				}
				fmt.Fprintf(out, "%s %s %s (%s)\n", ref.RunID, ref.Method, formatutil.Bold(ref.Column), kind)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "sqlite database of the runs")
	return cmd
}

func newChangedCmd() *cobra.Command {
	var dbPath string
	cmd := &cobra.Command{
		Use:   "changed <run> <run>",
		Short: "List the methods whose lineage differs between two runs",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()
			changed, err := store.Changed(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			for _, m := range changed {
				fmt.Fprintln(cmd.OutOrStdout(), formatutil.Yellow(m))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "sqlite database of the runs")
	return cmd
}
