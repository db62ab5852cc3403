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

// Package lineage implements the column-level lineage analysis of the iterator methods of query jobs. For each
// output column written by a method, the analysis computes which input tables, columns and row counters the
// written value may depend on, through data and through control flow.
//
// The analysis is a forward dataflow analysis over the control flow graph of a method (see IteratorAnalysis),
// whose abstract states are DependencyState values read through the aliases of a points-to graph (see AliasState).
// Calls to methods of the query runtime are modelled by a RuntimeModel; other calls are analyzed through a
// CallResolver, or approximated.
package lineage

import (
	"github.com/awslabs/ar-go-lineage/analysis/config"
	"github.com/awslabs/ar-go-lineage/analysis/ir"
	"github.com/awslabs/ar-go-lineage/analysis/pointsto"
)

// An Environment holds what the analyses of the methods of a program share
type Environment struct {
	Config   *config.Config
	Logger   *config.LogGroup
	Runtime  *RuntimeModel
	Resolver CallResolver
}

// NewEnvironment returns an environment with the runtime model of the config and no call resolver. A nil config is
// the default config; a nil logger discards the logs.
func NewEnvironment(cfg *config.Config, logger *config.LogGroup) *Environment {
	if cfg == nil {
		cfg = config.NewDefault()
	}
	if logger == nil {
		logger = config.DiscardLogs()
	}
	return &Environment{Config: cfg, Logger: logger, Runtime: NewRuntimeModel(cfg.Runtime)}
}

// An IteratorAnalysis computes the dependencies of the variables, heap locations and output columns of one method
// at each node of its control flow graph
type IteratorAnalysis struct {
	env           *Environment
	body          *ir.Body
	ptgs          *pointsto.Result
	protected     map[pointsto.NodeID]bool
	iteratorClass *ir.Type
	seed          *DependencyState
	returnVar     *ir.Variable
	scope         *scopeInfo
	diags         *Diagnostics
	// stack is the chain of callers whose analysis started this analysis
	stack []*ir.Method
}

// NewIteratorAnalysis returns the analysis of body. ptgs holds the points-to graphs of the nodes of the body, and
// protected the nodes of the graphs representing the input and output rows.
func NewIteratorAnalysis(env *Environment, body *ir.Body, ptgs *pointsto.Result,
	protected []pointsto.NodeID) *IteratorAnalysis {
	p := make(map[pointsto.NodeID]bool, len(protected))
	for _, n := range protected {
		p[n] = true
	}
	return &IteratorAnalysis{
		env:           env,
		body:          body,
		ptgs:          ptgs,
		protected:     p,
		iteratorClass: body.Method.Declaring,
		returnVar:     ir.NewVariable(body.Method.Name+"_$RV", nil),
		scope:         newScopeInfo(),
		diags:         NewDiagnostics(),
	}
}

// WithSeed sets the state at the entry of the method
func (a *IteratorAnalysis) WithSeed(seed *DependencyState) *IteratorAnalysis {
	a.seed = seed
	return a
}

// WithDiagnostics sets the collection where the analysis records its diagnostics
func (a *IteratorAnalysis) WithDiagnostics(d *Diagnostics) *IteratorAnalysis {
	a.diags = d
	return a
}

// withStack sets the chain of callers of the analysis
func (a *IteratorAnalysis) withStack(stack []*ir.Method) *IteratorAnalysis {
	a.stack = stack
	return a
}

// ReturnVariable is the variable holding the traceables of the values returned by the method
func (a *IteratorAnalysis) ReturnVariable() *ir.Variable { return a.returnVar }

// Diagnostics returns the diagnostics recorded by the analysis
func (a *IteratorAnalysis) Diagnostics() *Diagnostics { return a.diags }

// report records a diagnostic at instr, which may be nil for diagnostics about the whole method
func (a *IteratorAnalysis) report(instr ir.Instruction, reason string) {
	d := Diagnostic{Method: a.body.Method.String(), Reason: reason}
	if instr != nil {
		d.Instruction = instr.String()
		d.Label = instr.Label()
	}
	if a.diags.Add(d) {
		a.env.Logger.Debugf("%s", d)
	}
}

// InitialValue returns the state at the entry of the method: the seed if one was set, otherwise the state where
// every field of the receiver pointing to a row or row set holds the table named after the field.
func (a *IteratorAnalysis) InitialValue() *DependencyState {
	if a.seed != nil {
		return a.seed.Clone()
	}
	s := NewState()
	this := a.body.This
	if this == nil {
		return s
	}
	ptg := a.ptgs.At(a.body.CFG.Exit.ID)
	for _, n := range ptg.Targets(this) {
		for _, f := range ptg.Fields(n) {
			for _, dst := range ptg.FieldTargets(n, f) {
				if a.env.Runtime.IsRowOrRowSet(ptg.Node(dst).Type) {
					addTo(s.Heap, Location{Node: n, Field: f}, TraceableSet{Table(f): true})
				}
			}
		}
	}
	return s
}

// Flow applies the transfer functions of the instructions of node to input. It returns the output state and the
// points-to graph after the node. The input is not modified; a top input is returned as is.
func (a *IteratorAnalysis) Flow(node *ir.Node, input *DependencyState) (*DependencyState, *pointsto.Graph) {
	ptg := a.ptgs.At(node.ID)
	if input.IsTop {
		return input, ptg
	}
	v := newTransferVisitor(a, node, NewAliasState(input.Clone(), ptg))
	for _, instr := range node.Instrs {
		ir.InstrSwitch(v, instr)
		if v.state.IsTop() {
			break
		}
	}
	return v.state.Deps, v.state.PTG
}
