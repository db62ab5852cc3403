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
	"testing"

	"github.com/awslabs/ar-go-lineage/analysis/ir"
	"github.com/awslabs/ar-go-lineage/analysis/pointsto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seeded(vars map[*ir.Variable]TraceableSet) *DependencyState {
	s := NewState()
	for v, ts := range vars {
		s.Variables[v] = ts
	}
	return s
}

func TestRowsOfTable(t *testing.T) {
	f := newFixture(t)
	table := ir.NewVariable("table", rowSetType)
	v := ir.NewVariable("v", rowEnumType)
	node := f.chain(instrs(&ir.Call{Result: v, Method: method(rowSetType, "Rows"), Args: []*ir.Variable{table}}))[0]

	out, _ := f.analysis(nil).Flow(node, seeded(map[*ir.Variable]TraceableSet{table: set(Table("T"))}))
	assert.Equal(t, set(Table("T")), out.Variables[v])
}

func TestColumnByName(t *testing.T) {
	f := newFixture(t)
	row := ir.NewVariable("row", rowType)
	x := ir.NewVariable("x", columnDataType)
	c, load := f.constant("col1", stringType)
	node := f.chain(instrs(load,
		&ir.Call{Result: x, Method: method(rowType, "Item"), Args: []*ir.Variable{row, c}}))[0]

	out, _ := f.analysis(nil).Flow(node, seeded(map[*ir.Variable]TraceableSet{row: set(Table("T"))}))
	assert.Equal(t, set(col("T", "col1")), out.Variables[x])
}

func TestColumnByPositionAndUnknownColumn(t *testing.T) {
	f := newFixture(t)
	row := ir.NewVariable("row", rowType)
	name := ir.NewVariable("name", stringType)
	x := ir.NewVariable("x", columnDataType)
	y := ir.NewVariable("y", columnDataType)
	c, load := f.constant(int64(2), intType)
	node := f.chain(instrs(load,
		&ir.Call{Result: x, Method: method(rowType, "ItemAt"), Args: []*ir.Variable{row, c}},
		&ir.Call{Result: y, Method: method(rowType, "Item"), Args: []*ir.Variable{row, name}}))[0]

	out, _ := f.analysis(nil).Flow(node, seeded(map[*ir.Variable]TraceableSet{row: set(Table("T"))}))
	assert.Equal(t, set(Column("T", PositionalColumn(2))), out.Variables[x])
	assert.Equal(t, set(Column("T", TopColumn)), out.Variables[y])
}

func TestColumnThroughSchemaIndexOf(t *testing.T) {
	f := newFixture(t)
	_, thisNode := f.object("this", procType)
	f.ptg.PointsTo(f.body.This, thisNode)
	in, inNode := f.object("in", rowSetType)
	f.ptg.AddEdge(thisNode, "input", inNode)

	row := ir.NewVariable("row", rowType)
	schema := ir.NewVariable("schema", schemaType)
	idx := ir.NewVariable("idx", intType)
	x := ir.NewVariable("x", columnDataType)
	c, load := f.constant("b", stringType)
	node := f.chain(instrs(load,
		&ir.Call{Result: schema, Method: method(rowSetType, "Schema"), Args: []*ir.Variable{in}},
		&ir.Call{Result: idx, Method: method(schemaType, "IndexOf"), Args: []*ir.Variable{schema, c}},
		&ir.Call{Result: x, Method: method(rowType, "ItemAt"), Args: []*ir.Variable{row, idx}}))[0]

	out, _ := f.analysis(nil).Flow(node, seeded(map[*ir.Variable]TraceableSet{row: set(Table("input"))}))
	assert.Equal(t, set(col("input", "b")), out.Variables[idx])
	assert.Equal(t, set(col("input", "b")), out.Variables[x])
}

func TestColumnLiteralStoredInField(t *testing.T) {
	f := newFixture(t)
	_, thisNode := f.object("this", procType)
	f.ptg.PointsTo(f.body.This, thisNode)
	in, inNode := f.object("in", rowSetType)
	f.ptg.AddEdge(thisNode, "input", inNode)

	schema := ir.NewVariable("schema", schemaType)
	idx := ir.NewVariable("idx", intType)
	idx2 := ir.NewVariable("idx2", intType)
	row := ir.NewVariable("row", rowType)
	x := ir.NewVariable("x", columnDataType)
	colField := &ir.Field{Name: "colB", Type: intType, Declaring: procType}
	c, load := f.constant("b", stringType)
	nodes := f.chain(
		instrs(load,
			&ir.Call{Result: schema, Method: method(rowSetType, "Schema"), Args: []*ir.Variable{in}},
			&ir.Call{Result: idx, Method: method(schemaType, "IndexOf"), Args: []*ir.Variable{schema, c}},
			&ir.Store{Target: &ir.InstanceFieldAccess{Instance: f.body.This, Field: colField}, Operand: idx}),
		instrs(&ir.Load{Result: idx2, Operand: &ir.InstanceFieldAccess{Instance: f.body.This, Field: colField}},
			&ir.Call{Result: x, Method: method(rowType, "ItemAt"), Args: []*ir.Variable{row, idx2}}))

	a := f.analysis(seeded(map[*ir.Variable]TraceableSet{row: set(Table("input"))}))
	res := a.Analyze()
	assert.Equal(t, set(col("input", "b")), res.Nodes[nodes[1].ID].Out.Variables[x])
}

func TestSetColumn(t *testing.T) {
	f := newFixture(t)
	out := ir.NewVariable("out", columnDataType)
	x := ir.NewVariable("x", columnDataType)
	node := f.chain(instrs(&ir.Call{Method: method(columnDataType, "Set"), Args: []*ir.Variable{out, x}}))[0]

	s, _ := f.analysis(nil).Flow(node, seeded(map[*ir.Variable]TraceableSet{x: set(col("T", "col1"))}))
	assert.Equal(t, set(col("T", "col1")), s.Output[out])
	assert.NotContains(t, s.OutputControl, out)
}

func TestSetColumnUnderBranch(t *testing.T) {
	f := newFixture(t)
	out := ir.NewVariable("out", columnDataType)
	x := ir.NewVariable("x", columnDataType)
	y := ir.NewVariable("y", columnDataType)
	f.chain(
		instrs(&ir.Branch{Operands: []*ir.Variable{y}}),
		instrs(&ir.Call{Method: method(columnDataType, "Set"), Args: []*ir.Variable{out, x}}))

	res := f.analysis(seeded(map[*ir.Variable]TraceableSet{
		x: set(col("T", "col1")),
		y: set(col("T", "col2")),
	})).Analyze()
	exit := res.Exit()
	require.False(t, exit.IsTop)
	assert.Contains(t, exit.OutputControl[out], col("T", "col2"))
	assert.Contains(t, exit.Output[out], col("T", "col1"))
	assert.True(t, exit.ControlVariables[y])
}

func TestBranchIgnoresVariablesWithoutTraceables(t *testing.T) {
	f := newFixture(t)
	b := ir.NewVariable("b", intType)
	node := f.chain(instrs(&ir.Branch{Operands: []*ir.Variable{b}}))[0]
	s, _ := f.analysis(nil).Flow(node, NewState())
	assert.Equal(t, 0, s.ControlVariables.Len())
}

func TestStoreThroughDereference(t *testing.T) {
	f := newFixture(t)
	p := ir.NewVariable("p", intType)
	x := ir.NewVariable("x", intType)
	node := f.chain(instrs(&ir.Store{Target: &ir.Dereference{Reference: p, Type: intType}, Operand: x}))[0]

	a := f.analysis(nil)
	s, _ := a.Flow(node, NewState())
	assert.True(t, s.IsTop)
	require.Equal(t, 1, a.Diagnostics().Len())
	assert.Equal(t, ReasonStoreDereference, a.Diagnostics().All()[0].Reason)

	// visiting the node again does not duplicate the diagnostic
	a.Flow(node, NewState())
	assert.Equal(t, 1, a.Diagnostics().Len())
}

func TestUnresolvedCallReachingProtectedNode(t *testing.T) {
	f := newFixture(t)
	row, rowNode := f.object("row", rowType)
	f.protected = []pointsto.NodeID{rowNode}
	log := method(utilType, "Log")
	node := f.chain(instrs(&ir.Call{Method: log, Args: []*ir.Variable{row}}))[0]

	a := f.analysis(nil)
	s, _ := a.Flow(node, seeded(map[*ir.Variable]TraceableSet{row: set(Table("T"))}))
	assert.False(t, s.IsTop)
	assert.Equal(t, set(Table("T")), s.Escaping)
	require.Equal(t, 1, a.Diagnostics().Len())
	assert.Equal(t, ReasonNotAnalyzed(log), a.Diagnostics().All()[0].Reason)
}

func TestUnknownCallNotReachingProtectedNode(t *testing.T) {
	f := newFixture(t)
	_, rowNode := f.object("row", rowType)
	f.protected = []pointsto.NodeID{rowNode}
	buf, bufNode := f.object("buf", utilType)
	r := ir.NewVariable("r", utilType)
	node := f.chain(instrs(&ir.Call{Result: r, Method: method(utilType, "Fill"), Args: []*ir.Variable{buf}}))[0]

	a := f.analysis(nil)
	input := seeded(map[*ir.Variable]TraceableSet{buf: set(Table("T"))})
	s, ptg := a.Flow(node, input)
	assert.True(t, s.Equals(input))
	assert.Equal(t, []pointsto.NodeID{bufNode}, ptg.FieldTargets(pointsto.GlobalNode, pointsto.EscapeField))
	assert.Empty(t, f.ptg.FieldTargets(pointsto.GlobalNode, pointsto.EscapeField), "the input graph is not modified")
	assert.Equal(t, 0, a.Diagnostics().Len())
}

func TestPureCall(t *testing.T) {
	f := newFixture(t)
	x := ir.NewVariable("x", stringType)
	y := ir.NewVariable("y", stringType)
	r := ir.NewVariable("r", stringType)
	concat := &ir.Method{Name: "Join", Declaring: ir.NewType("strings", "strings", "strings")}
	node := f.chain(instrs(&ir.Call{Result: r, Method: concat, Args: []*ir.Variable{x, y}}))[0]

	s, _ := f.analysis(nil).Flow(node, seeded(map[*ir.Variable]TraceableSet{
		x: set(col("T", "a")),
		y: set(col("T", "b")),
	}))
	assert.Equal(t, set(col("T", "a"), col("T", "b")), s.Variables[r])
}

func TestEnumerationRules(t *testing.T) {
	f := newFixture(t)
	rows := ir.NewVariable("rows", rowEnumType)
	more := ir.NewVariable("more", intType)
	row := ir.NewVariable("row", rowType)
	node := f.chain(instrs(
		&ir.Call{Result: more, Method: method(rowEnumType, "MoveNext"), Args: []*ir.Variable{rows}},
		&ir.Call{Result: row, Method: method(rowEnumType, "Current"), Args: []*ir.Variable{rows}}))[0]

	s, _ := f.analysis(nil).Flow(node, seeded(map[*ir.Variable]TraceableSet{
		rows: set(Table("T"), col("U", "a")),
	}))
	assert.Equal(t, set(Counter("T")), s.Variables[more])
	assert.Equal(t, set(Table("T"), col("U", "a")), s.Variables[row])
}

func TestSetAdd(t *testing.T) {
	f := newFixture(t)
	hashSet := ir.NewType("System.Collections.Generic", "System.Collections.Generic", "HashSet")
	s := ir.NewVariable("s", hashSet)
	x := ir.NewVariable("x", stringType)
	node := f.chain(instrs(&ir.Call{Method: method(hashSet, "Add"), Args: []*ir.Variable{s, x}}))[0]

	out, _ := f.analysis(nil).Flow(node, seeded(map[*ir.Variable]TraceableSet{
		s: set(Table("U")),
		x: set(col("T", "a")),
	}))
	assert.Equal(t, set(Table("U"), col("T", "a")), out.Variables[s])
}

func TestInstanceFieldAccesses(t *testing.T) {
	f := newFixture(t)
	_, thisNode := f.object("this", procType)
	f.ptg.PointsTo(f.body.This, thisNode)
	x := ir.NewVariable("x", columnDataType)
	y := ir.NewVariable("y", columnDataType)
	saved := &ir.Field{Name: "saved", Type: columnDataType, Declaring: procType}
	node := f.chain(instrs(
		&ir.Store{Target: &ir.InstanceFieldAccess{Instance: f.body.This, Field: saved}, Operand: x},
		&ir.Load{Result: y, Operand: &ir.InstanceFieldAccess{Instance: f.body.This, Field: saved}}))[0]

	s, _ := f.analysis(nil).Flow(node, seeded(map[*ir.Variable]TraceableSet{x: set(col("T", "a"))}))
	assert.Equal(t, set(col("T", "a")), s.Heap[Location{Node: thisNode, Field: "saved"}])
	assert.Equal(t, set(col("T", "a")), s.Variables[y])
}

func TestArrayAccesses(t *testing.T) {
	f := newFixture(t)
	arr, arrNode := f.object("arr", utilType)
	x := ir.NewVariable("x", columnDataType)
	y := ir.NewVariable("y", columnDataType)
	i := ir.NewVariable("i", intType)
	node := f.chain(instrs(
		&ir.Store{Target: &ir.ArrayElementAccess{Array: arr, Index: i}, Operand: x},
		&ir.Load{Result: y, Operand: &ir.ArrayElementAccess{Array: arr, Index: i}}))[0]

	s, _ := f.analysis(nil).Flow(node, seeded(map[*ir.Variable]TraceableSet{x: set(col("T", "a"))}))
	assert.Equal(t, set(col("T", "a")), s.Heap[ArrayLocation(arrNode)])
	assert.Equal(t, set(col("T", "a")), s.Variables[y])
}

func TestStaticFields(t *testing.T) {
	f := newFixture(t)
	owned := &ir.Field{Name: "cache", Type: columnDataType, Declaring: jobType, Static: true}
	foreign := &ir.Field{Name: "Global", Type: columnDataType, Declaring: utilType, Static: true}
	empty := &ir.Field{Name: "Empty", Type: stringType, Declaring: stringType, Static: true}
	x := ir.NewVariable("x", columnDataType)
	y := ir.NewVariable("y", columnDataType)
	z := ir.NewVariable("z", stringType)
	w := ir.NewVariable("w", columnDataType)
	nodes := f.chain(
		instrs(
			&ir.Store{Target: &ir.StaticFieldAccess{Field: owned}, Operand: x},
			&ir.Load{Result: y, Operand: &ir.StaticFieldAccess{Field: owned}},
			&ir.Load{Result: z, Operand: &ir.StaticFieldAccess{Field: empty}}),
		instrs(&ir.Load{Result: w, Operand: &ir.StaticFieldAccess{Field: foreign}}))

	a := f.analysis(nil)
	s, _ := a.Flow(nodes[0], seeded(map[*ir.Variable]TraceableSet{x: set(col("T", "a"))}))
	require.False(t, s.IsTop)
	assert.Equal(t, set(col("T", "a")), s.Heap[StaticLocation(owned)])
	assert.Equal(t, set(col("T", "a")), s.Escaping)
	assert.Equal(t, set(col("T", "a")), s.Variables[y])

	s, _ = a.Flow(nodes[1], s)
	assert.True(t, s.IsTop)
	assert.Equal(t, ReasonStaticLoad, a.Diagnostics().All()[0].Reason)
}

func TestUnsupportedLoads(t *testing.T) {
	for name, tc := range map[string]struct {
		operand ir.Value
		reason  string
	}{
		"indirect call": {&ir.IndirectCall{Target: ir.NewVariable("fn", nil)}, ReasonIndirectCall},
		"reference":     {&ir.Reference{Value: ir.NewVariable("n", intType)}, ReasonLoadReference},
		"dereference":   {&ir.Dereference{Reference: ir.NewVariable("p", intType), Type: intType}, ReasonLoadDereference},
	} {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			node := f.chain(instrs(&ir.Load{Result: ir.NewVariable("r", nil), Operand: tc.operand}))[0]
			a := f.analysis(nil)
			s, _ := a.Flow(node, NewState())
			assert.True(t, s.IsTop)
			require.Equal(t, 1, a.Diagnostics().Len())
			assert.Equal(t, tc.reason, a.Diagnostics().All()[0].Reason)
		})
	}
}

func TestReferenceToRuntimeValue(t *testing.T) {
	f := newFixture(t)
	_, thisNode := f.object("this", procType)
	f.ptg.PointsTo(f.body.This, thisNode)
	input := &ir.Field{Name: "input", Type: rowSetType, Declaring: procType}
	r := ir.NewVariable("r", rowSetType)
	node := f.chain(instrs(&ir.Load{Result: r,
		Operand: &ir.Reference{Value: &ir.InstanceFieldAccess{Instance: f.body.This, Field: input}}}))[0]

	seed := NewState()
	seed.Heap[Location{Node: thisNode, Field: "input"}] = set(Table("input"))
	s, _ := f.analysis(nil).Flow(node, seed)
	require.False(t, s.IsTop)
	assert.Equal(t, set(Table("input")), s.Variables[r])
}

func TestReturnAndMethodRef(t *testing.T) {
	f := newFixture(t)
	x := ir.NewVariable("x", columnDataType)
	fn := ir.NewVariable("fn", nil)
	node := f.chain(instrs(
		&ir.Load{Result: fn, Operand: &ir.MethodRef{Method: method(utilType, "Log")}},
		&ir.Return{Operand: x}))[0]

	a := f.analysis(nil)
	s, _ := a.Flow(node, seeded(map[*ir.Variable]TraceableSet{x: set(col("T", "a"))}))
	require.False(t, s.IsTop)
	assert.Equal(t, "Process_$RV", a.ReturnVariable().Name)
	assert.Equal(t, set(col("T", "a")), s.Variables[a.ReturnVariable()])
	assert.NotContains(t, s.Variables, fn)
}

func TestFlowDoesNotModifyInput(t *testing.T) {
	f := newFixture(t)
	x := ir.NewVariable("x", columnDataType)
	y := ir.NewVariable("y", columnDataType)
	node := f.chain(instrs(&ir.Load{Result: y, Operand: x}))[0]
	input := seeded(map[*ir.Variable]TraceableSet{x: set(col("T", "a"))})
	before := input.Clone()

	out, _ := f.analysis(nil).Flow(node, input)
	assert.Equal(t, set(col("T", "a")), out.Variables[y])
	assert.True(t, input.Equals(before))
	assert.NotContains(t, input.Variables, y)

	top := TopState()
	out, _ = f.analysis(nil).Flow(node, top)
	assert.Same(t, top, out)
}
