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
	"fmt"
	"strings"

	"github.com/awslabs/ar-go-lineage/analysis/ir"
	"github.com/awslabs/ar-go-lineage/internal/funcutil"
)

// A DependencyState is an element of the dependency lattice. It records, at a program point:
//   - Escaping: the traceables that may flow to code that was not analyzed
//   - Variables: the traceables each variable may depend on
//   - Heap: the traceables each heap location may depend on
//   - Output: the traceables written to each output column (data dependencies)
//   - OutputControl: the traceables that control writes to each output column (control dependencies)
//   - ControlVariables: the variables that a conditional branch depends on
//
// A state with IsTop set is above every other state: the analysis lost precision and every dependency is possible.
type DependencyState struct {
	Escaping         TraceableSet
	Variables        map[*ir.Variable]TraceableSet
	Heap             map[Location]TraceableSet
	Output           map[*ir.Variable]TraceableSet
	OutputControl    map[*ir.Variable]TraceableSet
	ControlVariables funcutil.Set[*ir.Variable]
	IsTop            bool
}

// NewState returns the bottom state
func NewState() *DependencyState {
	return &DependencyState{
		Escaping:         TraceableSet{},
		Variables:        map[*ir.Variable]TraceableSet{},
		Heap:             map[Location]TraceableSet{},
		Output:           map[*ir.Variable]TraceableSet{},
		OutputControl:    map[*ir.Variable]TraceableSet{},
		ControlVariables: funcutil.Set[*ir.Variable]{},
	}
}

// TopState returns the top state
func TopState() *DependencyState {
	s := NewState()
	s.IsTop = true
	return s
}

// Clone returns a deep copy of the state
func (s *DependencyState) Clone() *DependencyState {
	return &DependencyState{
		Escaping:         s.Escaping.Clone(),
		Variables:        cloneMapSet(s.Variables),
		Heap:             cloneMapSet(s.Heap),
		Output:           cloneMapSet(s.Output),
		OutputControl:    cloneMapSet(s.OutputControl),
		ControlVariables: s.ControlVariables.Clone(),
		IsTop:            s.IsTop,
	}
}

// LessEqual returns true if s is below t in the lattice: t is top, or s is not top and every component of s is
// included in the corresponding component of t. Maps are compared key-wise: every key of s must be a key of t.
func (s *DependencyState) LessEqual(t *DependencyState) bool {
	if t.IsTop {
		return true
	}
	if s.IsTop {
		return false
	}
	return s.Escaping.SubsetOf(t.Escaping) &&
		mapSetLessEqual(s.Variables, t.Variables) &&
		mapSetLessEqual(s.Heap, t.Heap) &&
		mapSetLessEqual(s.Output, t.Output) &&
		mapSetLessEqual(s.OutputControl, t.OutputControl) &&
		s.ControlVariables.SubsetOf(t.ControlVariables)
}

// Equals returns true if s and t are below each other
func (s *DependencyState) Equals(t *DependencyState) bool {
	return s.LessEqual(t) && t.LessEqual(s)
}

// GreaterThan returns true if s is not below t. A top state is greater than any state that is not top.
func (s *DependencyState) GreaterThan(t *DependencyState) bool {
	if s.IsTop && !t.IsTop {
		return true
	}
	return !s.LessEqual(t)
}

// Join returns the least upper bound of s and t. The result is a new state; s and t are not modified.
func (s *DependencyState) Join(t *DependencyState) *DependencyState {
	switch {
	case s.IsTop || t.IsTop:
		return TopState()
	case t.LessEqual(s):
		return s.Clone()
	case s.LessEqual(t):
		return t.Clone()
	}
	r := s.Clone()
	r.Escaping.AddAll(t.Escaping)
	unionMapSet(r.Variables, t.Variables)
	unionMapSet(r.Heap, t.Heap)
	unionMapSet(r.Output, t.Output)
	unionMapSet(r.OutputControl, t.OutputControl)
	r.ControlVariables.AddAll(t.ControlVariables)
	return r
}

// SetTop sets the state to top
func (s *DependencyState) SetTop() {
	s.IsTop = true
}

// String returns the textual dump of the state: the heap (A3), the output dependencies (A4), the output control
// dependencies (A4_Control) and the escaping traceables.
func (s *DependencyState) String() string {
	if s.IsTop {
		return "__TOP__"
	}
	var b strings.Builder
	b.WriteString("A3\n")
	for _, loc := range funcutil.SortedBy(s.Heap, Location.String) {
		fmt.Fprintf(&b, "%s:%s\n", loc, FormatTraceables(s.Heap[loc], ","))
	}
	b.WriteString("A4\n")
	for _, v := range sortedVars(s.Output) {
		fmt.Fprintf(&b, "(%s)%s= dep(%s)\n", v, FormatTraceables(s.Variables[v], ","),
			FormatTraceables(s.Output[v], ","))
	}
	b.WriteString("A4_Control\n")
	for _, v := range sortedVars(s.OutputControl) {
		fmt.Fprintf(&b, "(%s)%s= dep(%s)\n", v, FormatTraceables(s.Variables[v], ","),
			FormatTraceables(s.OutputControl[v], ","))
	}
	b.WriteString("Escape\n")
	b.WriteString(FormatTraceables(s.Escaping, ","))
	return b.String()
}

func sortedVars[V any](m map[*ir.Variable]V) []*ir.Variable {
	return funcutil.SortedBy(m, (*ir.Variable).String)
}

func cloneMapSet[K comparable](m map[K]TraceableSet) map[K]TraceableSet {
	c := make(map[K]TraceableSet, len(m))
	for k, s := range m {
		c[k] = s.Clone()
	}
	return c
}

// unionMapSet adds the entries of b to a
// @mutates a
func unionMapSet[K comparable](a, b map[K]TraceableSet) {
	for k, bs := range b {
		if as, ok := a[k]; ok {
			as.AddAll(bs)
		} else {
			a[k] = bs.Clone()
		}
	}
}

func mapSetLessEqual[K comparable](a, b map[K]TraceableSet) bool {
	for k, s := range a {
		bs, ok := b[k]
		if !ok || !s.SubsetOf(bs) {
			return false
		}
	}
	return true
}
