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
	"errors"
	"fmt"
	"maps"

	"github.com/awslabs/ar-go-lineage/analysis/ir"
	"github.com/awslabs/ar-go-lineage/analysis/pointsto"
	"github.com/awslabs/ar-go-lineage/internal/funcutil"
)

var (
	// ErrRecursiveCall is returned when a callee is already being analyzed by one of its callers
	ErrRecursiveCall = errors.New("recursive call")
	// ErrMaxDepth is returned when the analysis of a callee would exceed the maximum call depth
	ErrMaxDepth = errors.New("maximum call depth exceeded")
)

// A CallResolver resolves the callees of calls and analyzes them on behalf of the analysis of the caller
type CallResolver interface {
	// PotentialCallees returns the callees the call may dispatch to that can be analyzed, and the ones that cannot
	PotentialCallees(call *ir.Call, ptg *pointsto.Graph) (resolved []*ir.Method, unresolved []*ir.Method)
	// AnalyzeCallee analyzes the callee of a call and returns the state of the caller after the call
	AnalyzeCallee(info *CallInfo) (*CallResult, error)
}

// CallInfo describes a call to analyze
type CallInfo struct {
	Caller      *ir.Method
	Callee      *ir.Method
	Call        *ir.Call
	CallerState *DependencyState
	CallerPTG   *pointsto.Graph
	// Protected are the nodes of the caller's graph representing the input and output rows
	Protected map[pointsto.NodeID]bool
	// Depth is the number of nested calls analyzed, including this call
	Depth int
	// Stack is the chain of methods being analyzed, ending with the caller
	Stack       []*ir.Method
	Diagnostics *Diagnostics
}

// CallResult is the state of the caller after a call
type CallResult struct {
	State *DependencyState
	PTG   *pointsto.Graph
}

// A MethodSource provides the code of the methods of a program
type MethodSource interface {
	// Lookup returns the body of m and the points-to graphs of its nodes. Returns false if m has no body.
	Lookup(m *ir.Method) (*ir.Body, *pointsto.Result, bool)
	// Dispatch returns the methods the call may invoke
	Dispatch(call *ir.Call, ptg *pointsto.Graph) []*ir.Method
}

// InterproceduralManager is the CallResolver that analyzes callees with nested iterator analyses. The traceables of
// the arguments are passed to the formal parameters, and the heap locations of the objects reachable from them are
// passed to the objects reached from the formals through the same fields. The results flow back the same way.
type InterproceduralManager struct {
	env    *Environment
	source MethodSource
}

// NewInterproceduralManager returns a manager analyzing the methods of source. The manager becomes the resolver of
// env.
func NewInterproceduralManager(env *Environment, source MethodSource) *InterproceduralManager {
	m := &InterproceduralManager{env: env, source: source}
	env.Resolver = m
	return m
}

// PotentialCallees returns the callees with a body as resolved, the others as unresolved
func (m *InterproceduralManager) PotentialCallees(call *ir.Call, ptg *pointsto.Graph) ([]*ir.Method, []*ir.Method) {
	var resolved, unresolved []*ir.Method
	for _, callee := range m.source.Dispatch(call, ptg) {
		if _, _, ok := m.source.Lookup(callee); ok {
			resolved = append(resolved, callee)
		} else {
			unresolved = append(unresolved, callee)
		}
	}
	return resolved, unresolved
}

// AnalyzeCallee runs the analysis of the callee seeded with the state of the caller, and maps its exit state back
// to the caller
func (m *InterproceduralManager) AnalyzeCallee(info *CallInfo) (*CallResult, error) {
	for _, caller := range info.Stack {
		if caller.String() == info.Callee.String() {
			return nil, fmt.Errorf("%s: %w", info.Callee, ErrRecursiveCall)
		}
	}
	if m.env.Config.ExceedsMaxDepth(info.Depth) {
		return nil, fmt.Errorf("%s at depth %d: %w", info.Callee, info.Depth, ErrMaxDepth)
	}
	body, ptgs, ok := m.source.Lookup(info.Callee)
	if !ok {
		return nil, fmt.Errorf("no body for %s", info.Callee)
	}
	formals := body.Params
	if body.This != nil {
		formals = append([]*ir.Variable{body.This}, formals...)
	}
	if len(formals) != len(info.Call.Args) {
		return nil, fmt.Errorf("call %s passes %d arguments to %d parameters", info.Call, len(info.Call.Args),
			len(formals))
	}

	binding := newCallBinding(info, formals, ptgs.At(body.CFG.Entry.ID))
	m.env.Logger.Tracef("Analyzing callee %s of %s at depth %d\n", info.Callee, info.Caller, info.Depth)
	callee := NewIteratorAnalysis(m.env, body, ptgs, binding.protected()).
		WithSeed(binding.seed()).
		WithDiagnostics(info.Diagnostics).
		withStack(info.Stack)
	res := callee.Analyze()
	return &CallResult{State: binding.fold(res), PTG: info.CallerPTG}, nil
}

// callBinding maps the arguments of a call to the formal parameters of the callee
type callBinding struct {
	info      *CallInfo
	caller    *AliasState
	formals   []*ir.Variable
	calleePTG *pointsto.Graph
}

func newCallBinding(info *CallInfo, formals []*ir.Variable, calleePTG *pointsto.Graph) *callBinding {
	return &callBinding{
		info:      info,
		caller:    NewAliasState(info.CallerState, info.CallerPTG),
		formals:   formals,
		calleePTG: calleePTG,
	}
}

// protected returns the nodes of the callee's graph pointed to by formals whose argument reaches a protected node
func (b *callBinding) protected() []pointsto.NodeID {
	var nodes []pointsto.NodeID
	for i, formal := range b.formals {
		reached := b.info.CallerPTG.Reachable(b.info.CallerPTG.Targets(b.info.Call.Args[i]))
		for n := range reached {
			if b.info.Protected[n] {
				nodes = append(nodes, b.calleePTG.Targets(formal)...)
				break
			}
		}
	}
	return nodes
}

// seed returns the entry state of the callee. The control variables of the caller stay in the state so that the
// columns written by the callee depend on the branches of the caller.
func (b *callBinding) seed() *DependencyState {
	s := NewState()
	for v := range b.info.CallerState.ControlVariables {
		s.ControlVariables.Add(v)
		s.Variables[v] = b.caller.Traceables(v)
	}
	for loc, ts := range b.info.CallerState.Heap {
		if loc.Node == pointsto.GlobalNode {
			s.Heap[loc] = ts.Clone()
		}
	}
	reached := map[pointsto.NodeID]bool{}
	mapped := map[pointsto.NodeID]funcutil.Set[pointsto.NodeID]{}
	for i, formal := range b.formals {
		arg := b.info.Call.Args[i]
		s.Variables[formal] = b.caller.Traceables(arg)
		roots := b.info.CallerPTG.Targets(arg)
		maps.Copy(reached, b.info.CallerPTG.Reachable(roots))
		mergeCorrespondence(mapped,
			nodeCorrespondence(b.info.CallerPTG, roots, b.calleePTG, b.calleePTG.Targets(formal)))
	}
	passHeap(b.info.CallerState.Heap, reached, mapped, s)
	return s
}

// fold returns the state of the caller after the call, given the result of the analysis of the callee
func (b *callBinding) fold(res *Result) *DependencyState {
	exit := res.ExitAliasState()
	if exit.IsTop() {
		return TopState()
	}
	s := b.info.CallerState.Clone()
	s.Escaping.AddAll(exit.Deps.Escaping)
	if b.info.Call.Result != nil {
		s.Variables[b.info.Call.Result] = exit.Traceables(res.ReturnVariable)
	}
	isFormal := map[*ir.Variable]bool{}
	reached := map[pointsto.NodeID]bool{}
	mapped := map[pointsto.NodeID]funcutil.Set[pointsto.NodeID]{}
	for i, formal := range b.formals {
		isFormal[formal] = true
		arg := b.info.Call.Args[i]
		if ts := exit.OutputTraceables(formal); ts.Len() > 0 {
			addTo(s.Output, arg, ts)
		}
		if ts := exit.OutputControlTraceables(formal); ts.Len() > 0 {
			addTo(s.OutputControl, arg, ts)
		}
		roots := exit.PTG.Targets(formal)
		maps.Copy(reached, exit.PTG.Reachable(roots))
		mergeCorrespondence(mapped,
			nodeCorrespondence(exit.PTG, roots, b.info.CallerPTG, b.info.CallerPTG.Targets(arg)))
	}
	passHeap(exit.Deps.Heap, reached, mapped, s)
	// columns written through variables local to the callee are kept with the traceables that name them
	for v, ts := range exit.Deps.Output {
		if isFormal[v] {
			continue
		}
		addTo(s.Output, v, ts)
		addTo(s.Variables, v, exit.Deps.Variables[v])
	}
	for v, ts := range exit.Deps.OutputControl {
		if !isFormal[v] {
			addTo(s.OutputControl, v, ts)
		}
	}
	for loc, ts := range exit.Deps.Heap {
		if loc.Node == pointsto.GlobalNode {
			addTo(s.Heap, loc, ts)
		}
	}
	return s
}

// nodeCorrespondence pairs the nodes of from reachable from fromRoots with the nodes of to reached from toRoots
// through the same fields. Null and global nodes are never paired.
func nodeCorrespondence(from *pointsto.Graph, fromRoots []pointsto.NodeID, to *pointsto.Graph,
	toRoots []pointsto.NodeID) map[pointsto.NodeID]funcutil.Set[pointsto.NodeID] {
	type pair struct{ from, to pointsto.NodeID }
	res := map[pointsto.NodeID]funcutil.Set[pointsto.NodeID]{}
	var work []pair
	add := func(n, m pointsto.NodeID) {
		if n == pointsto.NullNode || n == pointsto.GlobalNode || m == pointsto.NullNode || m == pointsto.GlobalNode {
			return
		}
		if res[n] == nil {
			res[n] = funcutil.NewSet[pointsto.NodeID]()
		}
		if res[n].Add(m) {
			work = append(work, pair{from: n, to: m})
		}
	}
	for _, n := range fromRoots {
		for _, m := range toRoots {
			add(n, m)
		}
	}
	for len(work) > 0 {
		p := work[len(work)-1]
		work = work[:len(work)-1]
		for _, f := range from.Fields(p.from) {
			if f == pointsto.EscapeField {
				continue
			}
			for _, n := range from.FieldTargets(p.from, f) {
				for _, m := range to.FieldTargets(p.to, f) {
					add(n, m)
				}
			}
		}
	}
	return res
}

func mergeCorrespondence(dst, src map[pointsto.NodeID]funcutil.Set[pointsto.NodeID]) {
	for n, ms := range src {
		if dst[n] == nil {
			dst[n] = funcutil.NewSet[pointsto.NodeID]()
		}
		dst[n].AddAll(ms)
	}
}

// passHeap copies the heap locations of the reached nodes to the nodes they correspond to in the state s. The
// traceables of a reached location without a corresponding node escape.
func passHeap(heap map[Location]TraceableSet, reached map[pointsto.NodeID]bool,
	mapped map[pointsto.NodeID]funcutil.Set[pointsto.NodeID], s *DependencyState) {
	for loc, ts := range heap {
		if !reached[loc.Node] || loc.Node == pointsto.GlobalNode || loc.Node == pointsto.NullNode {
			continue
		}
		targets, ok := mapped[loc.Node]
		if !ok {
			s.Escaping.AddAll(ts)
			continue
		}
		for m := range targets {
			addTo(s.Heap, Location{Node: m, Field: loc.Field}, ts)
		}
	}
}
