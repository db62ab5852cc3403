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

// iteratorFixture builds the body of
//
//	in := this.input
//	rows := in.Rows()
//	for rows.MoveNext() {
//		row := rows.Current()
//		v := row.Item("a").Get()
//		this.output.Item("total").Set(v)
//	}
func iteratorFixture(t *testing.T) (*fixture, *ir.Variable, map[string]*ir.Node) {
	f := newFixture(t)
	_, thisNode := f.object("this", procType)
	f.ptg.PointsTo(f.body.This, thisNode)
	inNode := f.ptg.NewNode(pointsto.KindObject, rowSetType, "input")
	outNode := f.ptg.NewNode(pointsto.KindObject, rowType, "output")
	f.ptg.AddEdge(thisNode, "input", inNode)
	f.ptg.AddEdge(thisNode, "output", outNode)
	f.protected = []pointsto.NodeID{inNode, outNode}

	inputField := &ir.Field{Name: "input", Type: rowSetType, Declaring: procType}
	outputField := &ir.Field{Name: "output", Type: rowType, Declaring: procType}
	in := ir.NewVariable("in", rowSetType)
	rows := ir.NewVariable("rows", rowEnumType)
	more := ir.NewVariable("more", intType)
	row := ir.NewVariable("row", rowType)
	x := ir.NewVariable("x", columnDataType)
	v := ir.NewVariable("v", stringType)
	out := ir.NewVariable("out", rowType)
	oc := ir.NewVariable("oc", columnDataType)
	f.ptg.PointsTo(in, inNode)
	f.ptg.PointsTo(out, outNode)
	ca, loadA := f.constant("a", stringType)
	ct, loadTotal := f.constant("total", stringType)

	cfg := f.body.CFG
	start := cfg.NewNode(
		&ir.Load{Result: in, Operand: &ir.InstanceFieldAccess{Instance: f.body.This, Field: inputField}},
		&ir.Call{Result: rows, Method: method(rowSetType, "Rows"), Args: []*ir.Variable{in}})
	header := cfg.NewNode(
		&ir.Call{Result: more, Method: method(rowEnumType, "MoveNext"), Args: []*ir.Variable{rows}},
		&ir.Branch{Operands: []*ir.Variable{more}})
	body := cfg.NewNode(
		&ir.Call{Result: row, Method: method(rowEnumType, "Current"), Args: []*ir.Variable{rows}},
		loadA,
		&ir.Call{Result: x, Method: method(rowType, "Item"), Args: []*ir.Variable{row, ca}},
		&ir.Call{Result: v, Method: method(columnDataType, "Get"), Args: []*ir.Variable{x}},
		&ir.Load{Result: out, Operand: &ir.InstanceFieldAccess{Instance: f.body.This, Field: outputField}},
		loadTotal,
		&ir.Call{Result: oc, Method: method(rowType, "Item"), Args: []*ir.Variable{out, ct}},
		&ir.Call{Method: method(columnDataType, "Set"), Args: []*ir.Variable{oc, v}})
	cfg.AddEdge(cfg.Entry, start)
	cfg.AddEdge(start, header)
	cfg.AddEdge(header, body)
	cfg.AddEdge(body, header)
	cfg.AddEdge(header, cfg.Exit)
	return f, oc, map[string]*ir.Node{"start": start, "header": header, "body": body}
}

func TestInitialValueSeedsRowFields(t *testing.T) {
	f, _, _ := iteratorFixture(t)
	s := f.analysis(nil).InitialValue()
	thisNode := f.ptg.Targets(f.body.This)[0]
	assert.Equal(t, set(Table("input")), s.Heap[Location{Node: thisNode, Field: "input"}])
	assert.Equal(t, set(Table("output")), s.Heap[Location{Node: thisNode, Field: "output"}])
	assert.Len(t, s.Heap, 2)

	seed := seeded(map[*ir.Variable]TraceableSet{f.body.This: set(Table("X"))})
	assert.True(t, f.analysis(seed).InitialValue().Equals(seed))
}

func TestIteratorLineage(t *testing.T) {
	f, oc, nodes := iteratorFixture(t)
	a := f.analysis(nil)
	res := a.Analyze()

	exit := res.Exit()
	require.False(t, exit.IsTop)
	assert.Equal(t, set(col("input", "a"), Counter("input")), exit.Output[oc])
	assert.Equal(t, set(Counter("input")), exit.OutputControl[oc])
	assert.Equal(t, set(col("output", "total")), exit.Variables[oc])
	assert.Equal(t, 0, exit.Escaping.Len())
	assert.Equal(t, 0, a.Diagnostics().Len())

	// the states of the loop header are stable
	header := res.Nodes[nodes["header"].ID]
	again, _ := a.Flow(nodes["header"], header.In)
	assert.True(t, again.Equals(header.Out))
	assert.True(t, res.Nodes[nodes["body"].ID].Out.LessEqual(header.In))
}

func TestFixpointTerminates(t *testing.T) {
	f, _, _ := iteratorFixture(t)
	res := f.analysis(nil).Analyze()
	// each node is visited a bounded number of times: the loop needs two passes over the header and the body
	assert.LessOrEqual(t, res.Visits, 3*len(f.body.CFG.Nodes))
}

func TestIterationBound(t *testing.T) {
	f, _, _ := iteratorFixture(t)
	f.env.Config.MaxIterations = 2
	a := f.analysis(nil)
	res := a.Analyze()
	assert.True(t, res.Exit().IsTop)
	require.Equal(t, 1, a.Diagnostics().Len())
	assert.Equal(t, ReasonIterationBound, a.Diagnostics().All()[0].Reason)
}

func TestTopPropagates(t *testing.T) {
	f := newFixture(t)
	p := ir.NewVariable("p", intType)
	x := ir.NewVariable("x", intType)
	f.chain(
		instrs(&ir.Store{Target: &ir.Dereference{Reference: p, Type: intType}, Operand: x}),
		instrs(&ir.Load{Result: ir.NewVariable("y", intType), Operand: x}))
	a := f.analysis(nil)
	res := a.Analyze()
	assert.True(t, res.Exit().IsTop)
	assert.Equal(t, 1, a.Diagnostics().Len())
}

// fakeSource is a MethodSource over a fixed set of bodies. A call dispatches to the methods listed in dispatch for
// its method, or to its method.
type fakeSource struct {
	bodies   map[*ir.Method]*ir.Body
	ptgs     map[*ir.Method]*pointsto.Result
	dispatch map[*ir.Method][]*ir.Method
}

func (s *fakeSource) add(body *ir.Body, ptg *pointsto.Graph) {
	s.bodies[body.Method] = body
	s.ptgs[body.Method] = pointsto.Uniform(ptg)
}

func (s *fakeSource) Lookup(m *ir.Method) (*ir.Body, *pointsto.Result, bool) {
	b, ok := s.bodies[m]
	return b, s.ptgs[m], ok
}

func (s *fakeSource) Dispatch(call *ir.Call, _ *pointsto.Graph) []*ir.Method {
	if targets, ok := s.dispatch[call.Method]; ok {
		return targets
	}
	return []*ir.Method{call.Method}
}

// helperBody builds the body of
//
//	func helper(r Row, c ColumnData) ColumnData {
//		x := r.Item("a")
//		c.Set(x)
//		return x
//	}
func helperBody(m *ir.Method) (*ir.Body, *pointsto.Graph) {
	return itemBody(m, "a")
}

// itemBody builds the body of helper reading the column named column instead of "a"
func itemBody(m *ir.Method, column string) (*ir.Body, *pointsto.Graph) {
	r := ir.NewVariable("r", rowType)
	c := ir.NewVariable("c", columnDataType)
	x := ir.NewVariable("x", columnDataType)
	ca := ir.NewVariable("ca", stringType)
	k := &ir.Constant{Value: column, Type: stringType}
	body := &ir.Body{Method: m, Params: []*ir.Variable{r, c}, CFG: ir.NewCFG(), Equalities: ir.Equalities{ca: k}}
	n := body.CFG.NewNode(
		&ir.Load{Result: ca, Operand: k},
		&ir.Call{Result: x, Method: method(rowType, "Item"), Args: []*ir.Variable{r, ca}},
		&ir.Call{Method: method(columnDataType, "Set"), Args: []*ir.Variable{c, x}},
		&ir.Return{Operand: x})
	body.CFG.AddEdge(body.CFG.Entry, n)
	body.CFG.AddEdge(n, body.CFG.Exit)
	ptg := pointsto.New()
	ptg.PointsTo(r, ptg.NewNode(pointsto.KindParameter, rowType, "r"))
	ptg.PointsTo(c, ptg.NewNode(pointsto.KindParameter, columnDataType, "c"))
	return body, ptg
}

// callerFixture builds a method calling callee(row, oc), where row is a protected row of table T
func callerFixture(t *testing.T, callee *ir.Method) (*fixture, *ir.Variable, *ir.Variable, *DependencyState) {
	f := newFixture(t)
	row, rowNode := f.object("row", rowType)
	oc, _ := f.object("oc", columnDataType)
	res := ir.NewVariable("res", columnDataType)
	f.protected = []pointsto.NodeID{rowNode}
	f.chain(instrs(&ir.Call{Result: res, Method: callee, Args: []*ir.Variable{row, oc}}))
	return f, oc, res, seeded(map[*ir.Variable]TraceableSet{row: set(Table("T"))})
}

func TestInterproceduralCall(t *testing.T) {
	helper := method(jobType, "helper")
	f, oc, res, seed := callerFixture(t, helper)
	source := &fakeSource{bodies: map[*ir.Method]*ir.Body{}, ptgs: map[*ir.Method]*pointsto.Result{}}
	source.add(helperBody(helper))
	NewInterproceduralManager(f.env, source)

	a := f.analysis(seed)
	exit := a.Analyze().Exit()
	require.False(t, exit.IsTop)
	assert.Equal(t, set(col("T", "a")), exit.Output[oc])
	assert.Equal(t, set(col("T", "a")), exit.Variables[res])
	assert.Equal(t, 0, exit.Escaping.Len())
	assert.Equal(t, 0, a.Diagnostics().Len())
}

func TestVirtualCallJoinsCallees(t *testing.T) {
	pick := method(jobType, "pick")
	pickA := method(ir.NewType("example.com/job", "job", "byName"), "pick")
	pickB := method(ir.NewType("example.com/job", "job", "byKey"), "pick")
	f, oc, res, seed := callerFixture(t, pick)
	source := &fakeSource{bodies: map[*ir.Method]*ir.Body{}, ptgs: map[*ir.Method]*pointsto.Result{},
		dispatch: map[*ir.Method][]*ir.Method{pick: {pickA, pickB}}}
	source.add(itemBody(pickA, "a"))
	source.add(itemBody(pickB, "b"))
	NewInterproceduralManager(f.env, source)

	a := f.analysis(seed)
	exit := a.Analyze().Exit()
	require.False(t, exit.IsTop)
	assert.Equal(t, set(col("T", "a"), col("T", "b")), exit.Variables[res])
	assert.Equal(t, set(col("T", "a"), col("T", "b")), exit.Output[oc])
	assert.Equal(t, 0, exit.Escaping.Len())
	assert.Equal(t, 0, a.Diagnostics().Len())
}

func TestVirtualCallWithUnresolvedTarget(t *testing.T) {
	pick := method(jobType, "pick")
	pickA := method(ir.NewType("example.com/job", "job", "byName"), "pick")
	external := method(ir.NewType("example.com/ext", "ext", "picker"), "pick")
	f, oc, res, seed := callerFixture(t, pick)
	source := &fakeSource{bodies: map[*ir.Method]*ir.Body{}, ptgs: map[*ir.Method]*pointsto.Result{},
		dispatch: map[*ir.Method][]*ir.Method{pick: {pickA, external}}}
	source.add(itemBody(pickA, "a"))
	NewInterproceduralManager(f.env, source)

	a := f.analysis(seed)
	exit := a.Analyze().Exit()
	require.False(t, exit.IsTop)
	// the analyzed target contributes its column, the other one makes the result depend on every argument
	assert.True(t, exit.Variables[res][col("T", "a")])
	assert.True(t, exit.Variables[res][Table("T")])
	assert.Equal(t, set(col("T", "a")), exit.Output[oc])
	assert.Equal(t, set(Table("T")), exit.Escaping)
	require.Equal(t, 1, a.Diagnostics().Len())
	assert.Equal(t, ReasonNotAnalyzed(pick), a.Diagnostics().All()[0].Reason)
}

func TestInterproceduralDisabled(t *testing.T) {
	helper := method(jobType, "helper")
	f, oc, _, seed := callerFixture(t, helper)
	source := &fakeSource{bodies: map[*ir.Method]*ir.Body{}, ptgs: map[*ir.Method]*pointsto.Result{}}
	source.add(helperBody(helper))
	NewInterproceduralManager(f.env, source)
	f.env.Config.SkipInterprocedural = true

	a := f.analysis(seed)
	exit := a.Analyze().Exit()
	assert.False(t, exit.IsTop)
	assert.NotContains(t, exit.Output, oc)
	assert.Equal(t, set(Table("T")), exit.Escaping)
	require.Equal(t, 1, a.Diagnostics().Len())
	assert.Equal(t, ReasonNotAnalyzed(helper), a.Diagnostics().All()[0].Reason)
}

func TestUnresolvedCallee(t *testing.T) {
	missing := method(jobType, "missing")
	f, _, _, seed := callerFixture(t, missing)
	NewInterproceduralManager(f.env,
		&fakeSource{bodies: map[*ir.Method]*ir.Body{}, ptgs: map[*ir.Method]*pointsto.Result{}})

	a := f.analysis(seed)
	exit := a.Analyze().Exit()
	assert.False(t, exit.IsTop)
	assert.Equal(t, set(Table("T")), exit.Escaping)
	assert.Equal(t, 1, a.Diagnostics().Len())
}

func TestRecursiveCallee(t *testing.T) {
	rec := method(jobType, "rec")
	f, _, _, seed := callerFixture(t, rec)
	r := ir.NewVariable("r", rowType)
	c := ir.NewVariable("c", columnDataType)
	body := &ir.Body{Method: rec, Params: []*ir.Variable{r, c}, CFG: ir.NewCFG(), Equalities: ir.Equalities{}}
	n := body.CFG.NewNode(&ir.Call{Method: rec, Args: []*ir.Variable{r, c}})
	body.CFG.AddEdge(body.CFG.Entry, n)
	body.CFG.AddEdge(n, body.CFG.Exit)
	ptg := pointsto.New()
	ptg.PointsTo(r, ptg.NewNode(pointsto.KindParameter, rowType, "r"))
	source := &fakeSource{bodies: map[*ir.Method]*ir.Body{}, ptgs: map[*ir.Method]*pointsto.Result{}}
	source.add(body, ptg)
	NewInterproceduralManager(f.env, source)

	a := f.analysis(seed)
	exit := a.Analyze().Exit()
	assert.False(t, exit.IsTop)
	assert.Equal(t, set(Table("T")), exit.Escaping)
	var reasons []string
	for _, d := range a.Diagnostics().All() {
		reasons = append(reasons, d.Reason)
	}
	assert.Equal(t, []string{ReasonNotAnalyzed(rec, ReasonRecursiveCall)}, reasons)
}

func TestMaxDepth(t *testing.T) {
	outer := method(jobType, "outer")
	helper := method(jobType, "helper")
	f, oc, _, seed := callerFixture(t, outer)
	f.env.Config.MaxDepth = 1

	r := ir.NewVariable("r", rowType)
	c := ir.NewVariable("c", columnDataType)
	body := &ir.Body{Method: outer, Params: []*ir.Variable{r, c}, CFG: ir.NewCFG(), Equalities: ir.Equalities{}}
	n := body.CFG.NewNode(&ir.Call{Method: helper, Args: []*ir.Variable{r, c}})
	body.CFG.AddEdge(body.CFG.Entry, n)
	body.CFG.AddEdge(n, body.CFG.Exit)
	ptg := pointsto.New()
	ptg.PointsTo(r, ptg.NewNode(pointsto.KindParameter, rowType, "r"))
	source := &fakeSource{bodies: map[*ir.Method]*ir.Body{}, ptgs: map[*ir.Method]*pointsto.Result{}}
	source.add(body, ptg)
	source.add(helperBody(helper))
	NewInterproceduralManager(f.env, source)

	a := f.analysis(seed)
	exit := a.Analyze().Exit()
	assert.False(t, exit.IsTop)
	assert.NotContains(t, exit.Output, oc)
	assert.Equal(t, set(Table("T")), exit.Escaping)
	require.Equal(t, 1, a.Diagnostics().Len())
	assert.Equal(t, ReasonNotAnalyzed(helper, ReasonMaxDepth), a.Diagnostics().All()[0].Reason)
}

var (
	holderType = ir.NewType("example.com/job", "job", "holder")
	itemsType  = ir.NewType("example.com/job", "job", "items")
)

// holderFixture builds a method calling callee(p, row), where p.items points to an array of the caller and row is
// a row of table T
func holderFixture(t *testing.T, callee *ir.Method) (f *fixture, arr pointsto.NodeID, res *ir.Variable,
	seed *DependencyState) {
	f = newFixture(t)
	p, pNode := f.object("p", holderType)
	row, _ := f.object("row", rowType)
	arr = f.ptg.NewNode(pointsto.KindObject, itemsType, "items")
	f.ptg.AddEdge(pNode, "items", arr)
	f.protected = []pointsto.NodeID{arr}
	res = ir.NewVariable("res", columnDataType)
	f.chain(instrs(&ir.Call{Result: res, Method: callee, Args: []*ir.Variable{p, row}}))
	return f, arr, res, seeded(map[*ir.Variable]TraceableSet{row: set(Table("T"))})
}

// holderBody builds the body of a callee taking (q holder, r Row) and its graph, where q.items and q.scratch point
// to arrays
func holderBody(m *ir.Method, instrs func(q, r, items, scratch *ir.Variable) []ir.Instruction) (*ir.Body,
	*pointsto.Graph) {
	q := ir.NewVariable("q", holderType)
	r := ir.NewVariable("r", rowType)
	items := ir.NewVariable("items", itemsType)
	scratch := ir.NewVariable("scratch", itemsType)
	body := &ir.Body{Method: m, Params: []*ir.Variable{q, r}, CFG: ir.NewCFG(), Equalities: ir.Equalities{}}
	loads := []ir.Instruction{
		&ir.Load{Result: items, Operand: &ir.InstanceFieldAccess{Instance: q,
			Field: &ir.Field{Name: "items", Type: itemsType, Declaring: holderType}}},
		&ir.Load{Result: scratch, Operand: &ir.InstanceFieldAccess{Instance: q,
			Field: &ir.Field{Name: "scratch", Type: itemsType, Declaring: holderType}}},
	}
	n := body.CFG.NewNode(append(loads, instrs(q, r, items, scratch)...)...)
	body.CFG.AddEdge(body.CFG.Entry, n)
	body.CFG.AddEdge(n, body.CFG.Exit)
	ptg := pointsto.New()
	qn := ptg.NewNode(pointsto.KindParameter, holderType, "q")
	in := ptg.NewNode(pointsto.KindObject, itemsType, "items")
	sn := ptg.NewNode(pointsto.KindObject, itemsType, "scratch")
	ptg.PointsTo(q, qn)
	ptg.PointsTo(r, ptg.NewNode(pointsto.KindParameter, rowType, "r"))
	ptg.PointsTo(items, in)
	ptg.PointsTo(scratch, sn)
	ptg.AddEdge(qn, "items", in)
	ptg.AddEdge(qn, "scratch", sn)
	return body, ptg
}

func TestCalleeReadsNestedHeap(t *testing.T) {
	read := method(jobType, "read")
	f, arr, res, seed := holderFixture(t, read)
	seed.Heap[Location{Node: arr, Field: ArrayField}] = set(col("T", "a"))
	source := &fakeSource{bodies: map[*ir.Method]*ir.Body{}, ptgs: map[*ir.Method]*pointsto.Result{}}
	source.add(holderBody(read, func(_, _, items, _ *ir.Variable) []ir.Instruction {
		x := ir.NewVariable("x", columnDataType)
		i := ir.NewVariable("i", intType)
		return instrs(
			&ir.Load{Result: x, Operand: &ir.ArrayElementAccess{Array: items, Index: i}},
			&ir.Return{Operand: x})
	}))
	NewInterproceduralManager(f.env, source)

	a := f.analysis(seed)
	exit := a.Analyze().Exit()
	require.False(t, exit.IsTop)
	assert.Equal(t, set(col("T", "a")), exit.Variables[res])
	assert.Equal(t, 0, exit.Escaping.Len())
	assert.Equal(t, 0, a.Diagnostics().Len())
}

func TestCalleeWritesNestedHeap(t *testing.T) {
	write := method(jobType, "write")
	f, arr, _, seed := holderFixture(t, write)
	source := &fakeSource{bodies: map[*ir.Method]*ir.Body{}, ptgs: map[*ir.Method]*pointsto.Result{}}
	source.add(holderBody(write, func(_, r, items, scratch *ir.Variable) []ir.Instruction {
		i := ir.NewVariable("i", intType)
		return instrs(
			&ir.Store{Target: &ir.ArrayElementAccess{Array: items, Index: i}, Operand: r},
			&ir.Store{Target: &ir.ArrayElementAccess{Array: scratch, Index: i}, Operand: r})
	}))
	NewInterproceduralManager(f.env, source)

	a := f.analysis(seed)
	exit := a.Analyze().Exit()
	require.False(t, exit.IsTop)
	assert.Equal(t, set(Table("T")), exit.Heap[Location{Node: arr, Field: ArrayField}])
	// the caller has no object for q.scratch: what the callee stored there escapes
	assert.Equal(t, set(Table("T")), exit.Escaping)
}

type panickingResolver struct{}

func (panickingResolver) PotentialCallees(call *ir.Call, _ *pointsto.Graph) ([]*ir.Method, []*ir.Method) {
	return []*ir.Method{call.Method}, nil
}

func (panickingResolver) AnalyzeCallee(*CallInfo) (*CallResult, error) {
	panic("boom")
}

func TestCalleeFailureIsRecovered(t *testing.T) {
	boom := method(jobType, "boom")
	f, _, _, seed := callerFixture(t, boom)
	f.env.Resolver = panickingResolver{}

	a := f.analysis(seed)
	exit := a.Analyze().Exit()
	assert.False(t, exit.IsTop)
	assert.Equal(t, set(Table("T")), exit.Escaping)
	assert.Len(t, a.Diagnostics().FrameworkErrors(), 1)
	require.Equal(t, 1, a.Diagnostics().Len())
	assert.Equal(t, ReasonNotAnalyzed(boom), a.Diagnostics().All()[0].Reason)
}
