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

package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingOp struct{ counts map[string]int }

func (c *countingOp) DoLoad(*Load)     { c.counts["load"]++ }
func (c *countingOp) DoStore(*Store)   { c.counts["store"]++ }
func (c *countingOp) DoCall(*Call)     { c.counts["call"]++ }
func (c *countingOp) DoBranch(*Branch) { c.counts["branch"]++ }
func (c *countingOp) DoReturn(*Return) { c.counts["return"]++ }
func (c *countingOp) DoPhi(*Phi)       { c.counts["phi"]++ }
func (c *countingOp) DoOther(*Other)   { c.counts["other"]++ }

func TestInstrSwitchVisitsEveryKind(t *testing.T) {
	row := NewType("example.com/scope", "scope", "Row")
	x := NewVariable("x", row)
	y := NewVariable("y", row)
	f := &Field{Name: "input", Type: row, Declaring: NewType("example.com/job", "job", "Proc")}
	instrs := []Instruction{
		&Load{Result: x, Operand: y},
		&Store{Target: &InstanceFieldAccess{Instance: x, Field: f}, Operand: y},
		&Call{Result: x, Method: &Method{Name: "Item", Declaring: row}, Args: []*Variable{y}},
		&Branch{Operands: []*Variable{x}},
		&Return{Operand: x},
		&Phi{Result: x, Args: []*Variable{x, y}},
		&Other{Op: "add", Results: []*Variable{x}, Operands: []*Variable{y}},
	}
	op := &countingOp{counts: map[string]int{}}
	for _, instr := range instrs {
		InstrSwitch(op, instr)
	}
	for _, k := range []string{"load", "store", "call", "branch", "return", "phi", "other"} {
		assert.Equal(t, 1, op.counts[k], k)
	}
}

func TestUsesAndDefs(t *testing.T) {
	arr := NewVariable("a", nil)
	i := NewVariable("i", nil)
	v := NewVariable("v", nil)
	store := &Store{Target: &ArrayElementAccess{Array: arr, Index: i}, Operand: v}
	assert.ElementsMatch(t, []*Variable{v, arr, i}, store.Uses())
	assert.Empty(t, store.Defs())

	load := &Load{Result: v, Operand: &ArrayLengthAccess{Array: arr}}
	assert.Equal(t, []*Variable{arr}, load.Uses())
	assert.Equal(t, []*Variable{v}, load.Defs())

	call := &Call{Method: &Method{Name: "f"}, Args: []*Variable{arr}}
	assert.Empty(t, call.Defs())
	assert.Equal(t, "f(a)", call.String())
}

func TestForwardOrder(t *testing.T) {
	g := NewCFG()
	a := g.NewNode()
	b := g.NewNode()
	c := g.NewNode()
	unreachable := g.NewNode()
	g.AddEdge(g.Entry, a)
	g.AddEdge(a, b)
	g.AddEdge(b, a)
	g.AddEdge(a, c)
	g.AddEdge(c, g.Exit)
	g.AddEdge(a, b) // duplicate edges are ignored
	require.Len(t, a.Succs, 2)

	order := g.ForwardOrder()
	require.Len(t, order, len(g.Nodes))
	pos := map[*Node]int{}
	for i, n := range order {
		pos[n] = i
	}
	assert.Equal(t, 0, pos[g.Entry])
	assert.Less(t, pos[a], pos[b])
	assert.Less(t, pos[a], pos[c])
	assert.Less(t, pos[c], pos[g.Exit])
	assert.Equal(t, len(order)-1, pos[unreachable])
}

func TestConstantOfFollowsCopies(t *testing.T) {
	x := NewVariable("x", nil)
	y := NewVariable("y", nil)
	z := NewVariable("z", nil)
	eq := Equalities{x: &Constant{Value: "col1"}, y: x, z: z}
	c, ok := eq.ConstantOf(y)
	require.True(t, ok)
	assert.Equal(t, "col1", c.Value)
	_, ok = eq.ConstantOf(z)
	assert.False(t, ok)
}
