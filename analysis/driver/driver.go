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

// Package driver selects the iterator methods of a loaded program and analyzes them in parallel.
package driver

import (
	"context"
	"fmt"
	"go/token"
	"time"

	"github.com/awslabs/ar-go-lineage/analysis"
	"github.com/awslabs/ar-go-lineage/analysis/config"
	"github.com/awslabs/ar-go-lineage/analysis/frontend"
	"github.com/awslabs/ar-go-lineage/analysis/lineage"
	"github.com/awslabs/ar-go-lineage/analysis/pointsto"
	"github.com/awslabs/ar-go-lineage/analysis/report"
	"github.com/awslabs/ar-go-lineage/internal/graphutil"
	"golang.org/x/sync/errgroup"
	"golang.org/x/tools/go/ssa"
)

// Driver runs the lineage analysis on the iterator methods of a program
type Driver struct {
	Config  *config.Config
	Logger  *config.LogGroup
	Program *frontend.Program
	Stats   *Statistics

	env        *lineage.Environment
	directives analysis.Directives
	initial    map[string]bool
}

// New returns a driver for the loaded program
func New(cfg *config.Config, logger *config.LogGroup, loaded analysis.LoadedProgram) *Driver {
	env := lineage.NewEnvironment(cfg, logger)
	program := frontend.NewProgram(loaded.Program, env.Runtime)
	lineage.NewInterproceduralManager(env, program)
	initial := map[string]bool{}
	for _, p := range loaded.Packages {
		initial[p.PkgPath] = true
	}
	return &Driver{
		Config:     cfg,
		Logger:     env.Logger,
		Program:    program,
		Stats:      NewStatistics(),
		env:        env,
		directives: loaded.Directives,
		initial:    initial,
	}
}

// Iterators returns the methods to analyze, sorted by name. A method is selected if:
//   - its package is one of the packages loaded, or matches the package filter of the configuration, and
//   - it is not marked with an ignore directive, and
//   - it is marked with an iterator directive, or it matches an iterator identifier of the configuration, or, when
//     the configuration has no iterator identifiers, it is an exported method of a type with a field holding a row
//     or a row set.
func (d *Driver) Iterators() []*ssa.Function {
	var res []*ssa.Function
	for _, fn := range d.Program.Functions() {
		if d.isIterator(fn) {
			res = append(res, fn)
		}
	}
	return res
}

func (d *Driver) isIterator(fn *ssa.Function) bool {
	if fn.Pkg == nil || fn.Parent() != nil || fn.Synthetic != "" || fn.Signature.Recv() == nil {
		return false
	}
	path := fn.Pkg.Pkg.Path()
	if d.Config.PkgFilter != "" {
		if !d.Config.MatchPkgFilter(path) {
			return false
		}
	} else if !d.initial[path] {
		return false
	}
	if fn.Prog != nil {
		if dir, ok := d.directives.Before(fn.Prog.Fset.Position(fn.Pos())); ok {
			return dir.Kind == analysis.DirectiveIterator
		}
	}
	m := d.Program.Method(fn)
	cid := config.CodeIdentifier{
		Assembly: m.Declaring.Assembly,
		Package:  m.Declaring.Namespace,
		Type:     m.Declaring.Generic(),
		Method:   m.Name,
	}
	if selected, ok := d.Config.IsIterator(cid); ok {
		return selected
	}
	if !token.IsExported(fn.Name()) {
		return false
	}
	for _, f := range d.Program.ReceiverFields(fn) {
		if d.env.Runtime.IsRowOrRowSet(f.Type) {
			return true
		}
	}
	return false
}

// Analyze runs the analysis of one function and returns its result
func (d *Driver) Analyze(fn *ssa.Function) (res *lineage.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("analysis of %s panicked: %v", fn, r)
		}
	}()
	f, ok := d.Program.Function(fn)
	if !ok {
		return nil, fmt.Errorf("%s has no body", fn)
	}
	a := lineage.NewIteratorAnalysis(d.env, f.Body, pointsto.Uniform(f.PTG), f.Protected)
	return a.Analyze(), nil
}

// Run analyzes the iterators of the program with Options.Parallelism workers and returns their reports, in the
// order of Iterators. Methods whose analysis fails are logged, counted and left out of the reports. Run stops
// starting new analyses when ctx is done.
func (d *Driver) Run(ctx context.Context) ([]*report.Method, error) {
	iterators := d.Iterators()
	d.Logger.Infof("Analyzing %d iterator methods\n", len(iterators))
	d.Logger.Debugf("Iterators: %s\n", analysis.ComputeSSAStatistics(iterators))
	if d.Logger.LogsDebug() {
		for fn := range d.RecursiveFunctions() {
			d.Logger.Debugf("%s is recursive, its calls are analyzed once per call chain\n", fn)
		}
	}
	reports := make([]*report.Method, len(iterators))

	// gctx is cancelled when Wait returns; only the caller's ctx decides whether the run was interrupted
	g, gctx := errgroup.WithContext(ctx)
	if d.Config.Parallelism > 0 {
		g.SetLimit(d.Config.Parallelism)
	}
	for i, fn := range iterators {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			res, err := d.Analyze(fn)
			if err != nil {
				d.Logger.Errorf("%v\n", err)
				d.Stats.RecordFailure()
				return nil
			}
			d.Stats.Record(res, time.Since(start).Nanoseconds())
			rep, err := report.FromResult(res)
			if err != nil {
				return err
			}
			reports[i] = rep
			d.Logger.Debugf("Analyzed %s in %d visits\n", fn, res.Visits)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("analysis interrupted: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("analysis interrupted: %w", err)
	}
	var res []*report.Method
	for _, r := range reports {
		if r != nil {
			res = append(res, r)
		}
	}
	return res, nil
}

// RecursiveFunctions returns the functions of the program that are part of a cycle of static calls
func (d *Driver) RecursiveFunctions() map[*ssa.Function]bool {
	return graphutil.RecursiveNodes(d.Program.Functions(), staticCallees)
}

func staticCallees(fn *ssa.Function) []*ssa.Function {
	var res []*ssa.Function
	for _, b := range fn.Blocks {
		for _, instr := range b.Instrs {
			if call, ok := instr.(ssa.CallInstruction); ok {
				if callee := call.Common().StaticCallee(); callee != nil {
					res = append(res, callee)
				}
			}
		}
	}
	return res
}

// Find returns the function with the given name, as printed by ssa (e.g. (*example.com/job.Copier).Process)
func (d *Driver) Find(name string) (*ssa.Function, bool) {
	for _, fn := range d.Program.Functions() {
		if fn.String() == name || d.Program.Method(fn).String() == name {
			return fn, true
		}
	}
	return nil, false
}
