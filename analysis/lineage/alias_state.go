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

// An AliasState is a dependency state paired with the points-to graph holding at the same program point. Reads of
// the traceables of a variable are widened over its aliases in the graph; writes only update the variable itself.
type AliasState struct {
	Deps *DependencyState
	PTG  *pointsto.Graph
}

// NewAliasState pairs deps with ptg
func NewAliasState(deps *DependencyState, ptg *pointsto.Graph) *AliasState {
	return &AliasState{Deps: deps, PTG: ptg}
}

// IsTop returns true if the dependency state is top
func (a *AliasState) IsTop() bool { return a.Deps.IsTop }

// Clone returns a deep copy of the state and of the graph
func (a *AliasState) Clone() *AliasState {
	return &AliasState{Deps: a.Deps.Clone(), PTG: a.PTG.Clone()}
}

// Join joins both the dependency states and the graphs
func (a *AliasState) Join(b *AliasState) *AliasState {
	return &AliasState{Deps: a.Deps.Join(b.Deps), PTG: a.PTG.Join(b.PTG)}
}

// LessEqual compares both the dependency states and the graphs
func (a *AliasState) LessEqual(b *AliasState) bool {
	return a.Deps.LessEqual(b.Deps) && a.PTG.LessEqual(b.PTG)
}

// Equals returns true if a and b are below each other
func (a *AliasState) Equals(b *AliasState) bool {
	return a.LessEqual(b) && b.LessEqual(a)
}

func (a *AliasState) aliases(v *ir.Variable) []*ir.Variable {
	if a.PTG == nil {
		return []*ir.Variable{v}
	}
	return a.PTG.Aliases(v)
}

func (a *AliasState) union(m map[*ir.Variable]TraceableSet, v *ir.Variable) TraceableSet {
	res := TraceableSet{}
	for _, alias := range a.aliases(v) {
		res.AddAll(m[alias])
	}
	return res
}

// Traceables returns the traceables of v and of its aliases
func (a *AliasState) Traceables(v *ir.Variable) TraceableSet {
	return a.union(a.Deps.Variables, v)
}

// HasTraceables returns true if v or one of its aliases has some traceable
func (a *AliasState) HasTraceables(v *ir.Variable) bool {
	return a.Traceables(v).Len() > 0
}

// OutputTraceables returns the output traceables of v and of its aliases
func (a *AliasState) OutputTraceables(v *ir.Variable) TraceableSet {
	return a.union(a.Deps.Output, v)
}

// OutputControlTraceables returns the output control traceables of v and of its aliases
func (a *AliasState) OutputControlTraceables(v *ir.Variable) TraceableSet {
	return a.union(a.Deps.OutputControl, v)
}

// AssignTraceables replaces the traceables of dst with ts
func (a *AliasState) AssignTraceables(dst *ir.Variable, ts TraceableSet) {
	a.Deps.Variables[dst] = ts.Clone()
}

// AddTraceables adds ts to the traceables of dst
func (a *AliasState) AddTraceables(dst *ir.Variable, ts TraceableSet) {
	addTo(a.Deps.Variables, dst, ts)
}

// CopyTraceables replaces the traceables of dst with the traceables of src and its aliases
func (a *AliasState) CopyTraceables(dst, src *ir.Variable) {
	a.Deps.Variables[dst] = a.Traceables(src)
}

// AddOutputTraceables adds ts to the output traceables of dst
func (a *AliasState) AddOutputTraceables(dst *ir.Variable, ts TraceableSet) {
	addTo(a.Deps.Output, dst, ts)
}

// AddOutputControlTraceables adds ts to the output control traceables of dst
func (a *AliasState) AddOutputControlTraceables(dst *ir.Variable, ts TraceableSet) {
	addTo(a.Deps.OutputControl, dst, ts)
}

func addTo[K comparable](m map[K]TraceableSet, k K, ts TraceableSet) {
	if s, ok := m[k]; ok {
		s.AddAll(ts)
	} else {
		m[k] = ts.Clone()
	}
}
