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

package lineage

import (
	"github.com/awslabs/ar-go-lineage/analysis/ir"
	"github.com/awslabs/ar-go-lineage/analysis/pointsto"
)

// NodeResult holds the states before and after a node of the control flow graph, and the points-to graph after the
// node
type NodeResult struct {
	In  *DependencyState
	Out *DependencyState
	PTG *pointsto.Graph
}

// Result is the result of the analysis of a method
type Result struct {
	Method *ir.Method
	// Nodes is indexed by the IDs of the nodes of the control flow graph
	Nodes []NodeResult
	// ReturnVariable holds the traceables of the values returned by the method
	ReturnVariable *ir.Variable
	// Visits is the number of node visits until the fixpoint was reached
	Visits      int
	Diagnostics *Diagnostics
	cfg         *ir.CFG
}

// Exit returns the state at the exit of the method
func (r *Result) Exit() *DependencyState {
	return r.Nodes[r.cfg.Exit.ID].Out
}

// ExitPTG returns the points-to graph at the exit of the method
func (r *Result) ExitPTG() *pointsto.Graph {
	return r.Nodes[r.cfg.Exit.ID].PTG
}

// ExitAliasState returns the exit state paired with the exit points-to graph
func (r *Result) ExitAliasState() *AliasState {
	return NewAliasState(r.Exit(), r.ExitPTG())
}

// Analyze runs the analysis until a fixpoint is reached.
// The input of a node is the join of the outputs of its predecessors, or the initial value for the entry node. When
// the output of a node is not below its previous output, the successors of the node are added to the worklist.
func (a *IteratorAnalysis) Analyze() *Result {
	cfg := a.body.CFG
	res := &Result{
		Method:         a.body.Method,
		Nodes:          make([]NodeResult, len(cfg.Nodes)),
		ReturnVariable: a.returnVar,
		Diagnostics:    a.diags,
		cfg:            cfg,
	}
	initial := a.InitialValue()
	for _, node := range cfg.Nodes {
		res.Nodes[node.ID] = NodeResult{In: NewState(), Out: NewState(), PTG: a.ptgs.At(node.ID)}
	}

	worklist := cfg.ForwardOrder()
	onList := make([]bool, len(cfg.Nodes))
	for _, node := range worklist {
		onList[node.ID] = true
	}
	for len(worklist) > 0 {
		node := worklist[0]
		worklist = worklist[1:]
		onList[node.ID] = false
		res.Visits++
		if a.env.Config.ExceedsMaxIterations(res.Visits) {
			a.report(nil, ReasonIterationBound)
			for i := range res.Nodes {
				res.Nodes[i].Out = TopState()
			}
			break
		}

		input := a.input(node, initial, res)
		output, ptg := a.Flow(node, input)
		changed := !output.LessEqual(res.Nodes[node.ID].Out)
		res.Nodes[node.ID] = NodeResult{In: input, Out: output, PTG: ptg}
		if a.env.Logger.LogsTrace() {
			a.env.Logger.Tracef("%s node %s:\n%s\n", a.body.Method, node, output)
		}
		if !changed {
			continue
		}
		for _, succ := range node.Succs {
			if !onList[succ.ID] {
				onList[succ.ID] = true
				worklist = append(worklist, succ)
			}
		}
	}
	return res
}

// input returns the state at the beginning of node
func (a *IteratorAnalysis) input(node *ir.Node, initial *DependencyState, res *Result) *DependencyState {
	in := NewState()
	if node == a.body.CFG.Entry {
		in = initial.Clone()
	}
	for _, pred := range node.Preds {
		in = in.Join(res.Nodes[pred.ID].Out)
	}
	return in
}
