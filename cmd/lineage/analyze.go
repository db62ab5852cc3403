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
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/awslabs/ar-go-lineage/analysis"
	"github.com/awslabs/ar-go-lineage/analysis/config"
	"github.com/awslabs/ar-go-lineage/analysis/driver"
	"github.com/awslabs/ar-go-lineage/analysis/report"
	"github.com/awslabs/ar-go-lineage/internal/formatutil"
	"github.com/spf13/cobra"
	"golang.org/x/tools/go/ssa"
)

func newAnalyzeCmd(flags *rootFlags) *cobra.Command {
	var (
		dbPath  string
		asJSON  bool
		verbose bool
	)
	cmd := &cobra.Command{
		Use:   "analyze [flags] <packages>",
		Short: "Compute the lineage of the iterator methods of the packages",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}
			if verbose {
				cfg.LogLevel = int(config.DebugLevel)
			}
			logger := config.NewLogGroup(cfg)
			d, err := newDriver(cfg, logger, flags.platform, args)
			if err != nil {
				return err
			}
			reports, err := d.Run(cmd.Context())
			if err != nil {
				return err
			}
			logger.Infof("%s", d.Stats)
			if slowest := d.Stats.Slowest(3); len(slowest) > 0 && logger.LogsDebug() {
				logger.Debugf("Slowest methods: %v\n", slowest)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				err = report.WriteJSON(out, reports)
			} else {
				err = report.WriteText(out, reports)
			}
			if err != nil {
				return err
			}
			if cfg.ReportsDir != "" {
				if err := writeReportsFile(cfg.RelPath(cfg.ReportsDir), reports); err != nil {
					return err
				}
			}
			if dbPath != "" {
				return saveRun(cmd.Context(), dbPath, args, reports, logger)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "sqlite database where the reports of the run are stored")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the reports as json")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print the diagnostics of the analysis")
	return cmd
}

func newDriver(cfg *config.Config, logger *config.LogGroup, platform string, args []string) (*driver.Driver, error) {
	logger.Infof("Loading %v\n", args)
	loaded, err := analysis.LoadProgram(nil, platform, ssa.InstantiateGenerics, args)
	if err != nil {
		return nil, fmt.Errorf("could not load program: %w", err)
	}
	return driver.New(cfg, logger, loaded), nil
}

func writeReportsFile(dir string, reports []*report.Method) error {
	f, err := os.CreateTemp(dir, "lineage-*.json")
	if err != nil {
		return fmt.Errorf("could not create report file in %s: %w", dir, err)
	}
	defer f.Close()
	if err := report.WriteJSON(f, reports); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Reports written in %s\n", formatutil.Bold(filepath.Base(f.Name())))
	return nil
}

func saveRun(ctx context.Context, dbPath string, patterns []string, reports []*report.Method,
	logger *config.LogGroup) error {
	store, err := report.OpenStore(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()
	run, err := store.SaveRun(ctx, patterns, reports)
	if err != nil {
		return err
	}
	logger.Infof("Run %s saved in %s\n", run.ID, dbPath)
	return nil
}
