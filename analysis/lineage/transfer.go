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

// transferVisitor applies the transfer functions of the instructions of one node to an alias state. The state is a
// copy owned by the visitor; the points-to graph is copied on the first write.
type transferVisitor struct {
	analysis *IteratorAnalysis
	node     *ir.Node
	state    *AliasState
	ptgOwned bool
}

func newTransferVisitor(a *IteratorAnalysis, node *ir.Node, state *AliasState) *transferVisitor {
	return &transferVisitor{analysis: a, node: node, state: state}
}

// mutablePTG returns the graph of the state, copying it if the visitor does not own it yet
func (v *transferVisitor) mutablePTG() *pointsto.Graph {
	if !v.ptgOwned {
		v.state.PTG = v.state.PTG.Clone()
		v.ptgOwned = true
	}
	return v.state.PTG
}

// setTop moves the state to top and records why
func (v *transferVisitor) setTop(instr ir.Instruction, reason string) {
	v.state.Deps.SetTop()
	v.analysis.report(instr, reason)
}

// defUse assigns to every variable defined by the instruction the traceables of all the variables it uses
func (v *transferVisitor) defUse(instr ir.Instruction) {
	union := TraceableSet{}
	for _, u := range instr.Uses() {
		union.AddAll(v.state.Traceables(u))
	}
	for _, d := range instr.Defs() {
		v.state.AssignTraceables(d, union)
	}
}

// heapTraceables returns the traceables stored in the field of the nodes base points to
func (v *transferVisitor) heapTraceables(base *ir.Variable, field string) TraceableSet {
	res := TraceableSet{}
	for _, n := range v.state.PTG.Targets(base) {
		res.AddAll(v.state.Deps.Heap[Location{Node: n, Field: field}])
	}
	return res
}

// writeHeap replaces the traceables of the field of every node base points to
func (v *transferVisitor) writeHeap(base *ir.Variable, field string, ts TraceableSet) {
	for _, n := range v.state.PTG.Targets(base) {
		v.state.Deps.Heap[Location{Node: n, Field: field}] = ts.Clone()
	}
}

// isClosureField returns true if the field holds state captured by the iterator: a runtime value, or a field of
// the iterator itself
func (v *transferVisitor) isClosureField(access *ir.InstanceFieldAccess) bool {
	if v.analysis.env.Runtime.IsScopeType(access.Field.Type) {
		return true
	}
	return access.Instance.Type.SameName(v.analysis.iteratorClass)
}

// isOwnedStatic returns true if the static field is declared by the iterator or by its enclosing type
func (v *transferVisitor) isOwnedStatic(f *ir.Field) bool {
	class := v.analysis.iteratorClass
	if class == nil {
		return false
	}
	return f.Declaring.SameName(class) || f.Declaring.SameName(class.Containing)
}

func (v *transferVisitor) DoLoad(instr *ir.Load) {
	if v.load(instr, instr.Operand) {
		return
	}
	switch op := instr.Operand.(type) {
	case *ir.Reference:
		if !v.analysis.env.Runtime.IsScopeType(ir.TypeOf(op.Value)) || !v.load(instr, op.Value) {
			v.setTop(instr, ReasonLoadReference)
		}
	case *ir.Dereference:
		if !v.analysis.env.Runtime.IsScopeType(op.Reference.Type) || !v.load(instr, op.Reference) {
			v.setTop(instr, ReasonLoadDereference)
		}
	case *ir.IndirectCall:
		v.setTop(instr, ReasonIndirectCall)
	case *ir.MethodRef:
		// function values are tracked by the points-to graph
	default:
		v.setTop(instr, ReasonUnsupportedLoad)
	}
}

// load handles the loads of fields, array elements, variables and constants. Returns false for any other operand.
func (v *transferVisitor) load(instr *ir.Load, operand ir.Value) bool {
	switch op := operand.(type) {
	case *ir.StaticFieldAccess:
		v.loadStatic(instr, op)
	case *ir.InstanceFieldAccess:
		union := v.state.Traceables(op.Instance)
		if v.isClosureField(op) {
			union.AddAll(v.heapTraceables(op.Instance, op.Field.Name))
		}
		v.state.AssignTraceables(instr.Result, union)
		if col, ok := v.analysis.scope.columnFields[op.Field.String()]; ok {
			v.analysis.scope.columns[instr.Result] = col
		}
	case *ir.ArrayElementAccess:
		union := v.state.Traceables(op.Array)
		union.AddAll(v.heapTraceables(op.Array, ArrayField))
		v.state.AssignTraceables(instr.Result, union)
	case *ir.ArrayLengthAccess:
		v.defUse(instr)
	case *ir.Variable:
		v.state.CopyTraceables(instr.Result, op)
	case *ir.Constant:
	default:
		return false
	}
	return true
}

func (v *transferVisitor) loadStatic(instr *ir.Load, access *ir.StaticFieldAccess) {
	if v.isOwnedStatic(access.Field) {
		union := TraceableSet{}
		union.AddAll(v.state.Deps.Heap[StaticLocation(access.Field)])
		v.state.AssignTraceables(instr.Result, union)
		return
	}
	if !v.analysis.env.Runtime.IsString(access.Field.Declaring) {
		v.setTop(instr, ReasonStaticLoad)
	}
}

func (v *transferVisitor) DoStore(instr *ir.Store) {
	union := v.state.Traceables(instr.Operand)
	switch target := instr.Target.(type) {
	case *ir.InstanceFieldAccess:
		if v.isClosureField(target) {
			v.writeHeap(target.Instance, target.Field.Name, union)
		}
		if col, ok := v.analysis.scope.columns[instr.Operand]; ok {
			v.analysis.scope.columnFields[target.Field.String()] = col
		}
	case *ir.ArrayElementAccess:
		v.writeHeap(target.Array, ArrayField, union)
	case *ir.StaticFieldAccess:
		v.state.Deps.Heap[StaticLocation(target.Field)] = union.Clone()
		v.state.Deps.Escaping.AddAll(union)
	case *ir.Dereference:
		v.setTop(instr, ReasonStoreDereference)
	default:
		v.setTop(instr, ReasonUnsupportedStore)
	}
}

func (v *transferVisitor) DoBranch(instr *ir.Branch) {
	for _, u := range instr.Uses() {
		if v.state.HasTraceables(u) {
			v.state.Deps.ControlVariables.Add(u)
		}
	}
}

func (v *transferVisitor) DoReturn(instr *ir.Return) {
	if instr.Operand == nil {
		return
	}
	v.state.AddTraceables(v.analysis.returnVar, v.state.Traceables(instr.Operand))
}

func (v *transferVisitor) DoPhi(instr *ir.Phi) {
	v.defUse(instr)
}

func (v *transferVisitor) DoOther(instr *ir.Other) {
	v.defUse(instr)
}
