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

package frontend

import (
	"github.com/awslabs/ar-go-lineage/analysis/ir"
	"github.com/awslabs/ar-go-lineage/analysis/lineage"
	"github.com/awslabs/ar-go-lineage/analysis/pointsto"
	"github.com/awslabs/ar-go-lineage/internal/funcutil"
)

// maxMaterializeDepth bounds the chains of nodes materialized for the fields of objects allocated outside the
// method. Deeper loads share one node per type.
const maxMaterializeDepth = 3

type fieldKey struct {
	src   pointsto.NodeID
	field string
}

type siteKey struct {
	instr ir.Instruction
	index int
}

// ptgBuilder computes a flow-insensitive, allocation-site based points-to graph for one body. Objects reached
// from the parameters and from the results of calls are materialized on demand, one node per field.
type ptgBuilder struct {
	g        *pointsto.Graph
	runtime  *lineage.RuntimeModel
	fieldsOf func(*ir.Type) []*ir.Field
	sites    map[siteKey]pointsto.NodeID
	fields   map[fieldKey]pointsto.NodeID
	summary  map[string]pointsto.NodeID
	depth    map[pointsto.NodeID]int
	changed  bool
}

// BuildPointsTo returns the points-to graph of body. fieldsOf lists the fields of the objects of a type; the fields
// of the objects the receiver and parameters point to are materialized eagerly.
func BuildPointsTo(body *ir.Body, runtime *lineage.RuntimeModel, fieldsOf func(*ir.Type) []*ir.Field) *pointsto.Graph {
	b := &ptgBuilder{
		g:        pointsto.New(),
		runtime:  runtime,
		fieldsOf: fieldsOf,
		sites:    map[siteKey]pointsto.NodeID{},
		fields:   map[fieldKey]pointsto.NodeID{},
		summary:  map[string]pointsto.NodeID{},
		depth:    map[pointsto.NodeID]int{},
	}
	for _, v := range formals(body) {
		if v.IsValueTyped() {
			continue
		}
		n := b.g.NewNode(pointsto.KindParameter, v.Type, v.Name)
		b.g.PointsTo(v, n)
		if fieldsOf == nil {
			continue
		}
		for _, f := range fieldsOf(v.Type) {
			if !f.Type.IsValue {
				b.materialize(n, f.Name, f.Type)
			}
		}
	}
	for b.changed = true; b.changed; {
		b.changed = false
		for _, node := range body.CFG.Nodes {
			for _, instr := range node.Instrs {
				b.instruction(instr)
			}
		}
	}
	return b.g
}

// Protected returns the nodes of g representing rows or row sets reachable from the receiver and the parameters of
// body in at most one field edge
func Protected(body *ir.Body, g *pointsto.Graph, runtime *lineage.RuntimeModel) []pointsto.NodeID {
	nodes := funcutil.NewSet[pointsto.NodeID]()
	add := func(n pointsto.NodeID) {
		if runtime.IsRowOrRowSet(g.Node(n).Type) {
			nodes.Add(n)
		}
	}
	for _, v := range formals(body) {
		for _, n := range g.Targets(v) {
			add(n)
			for _, f := range g.Fields(n) {
				for _, dst := range g.FieldTargets(n, f) {
					add(dst)
				}
			}
		}
	}
	return funcutil.SortedKeys(nodes)
}

func formals(body *ir.Body) []*ir.Variable {
	if body.This == nil {
		return body.Params
	}
	return append([]*ir.Variable{body.This}, body.Params...)
}

func (b *ptgBuilder) site(instr ir.Instruction, index int, kind pointsto.NodeKind, typ *ir.Type,
	label string) pointsto.NodeID {
	key := siteKey{instr: instr, index: index}
	if n, ok := b.sites[key]; ok {
		return n
	}
	n := b.g.NewNode(kind, typ, label)
	b.sites[key] = n
	b.changed = true
	return n
}

// materialize returns the node standing for the unknown value of the field of src
func (b *ptgBuilder) materialize(src pointsto.NodeID, field string, typ *ir.Type) pointsto.NodeID {
	key := fieldKey{src: src, field: field}
	if n, ok := b.fields[key]; ok {
		return n
	}
	var n pointsto.NodeID
	if d := b.depth[src]; d < maxMaterializeDepth {
		n = b.g.NewNode(pointsto.KindUnknown, typ, b.g.Node(src).Label+"."+field)
		b.depth[n] = d + 1
	} else if s, ok := b.summary[typ.FullName()]; ok {
		n = s
	} else {
		n = b.g.NewNode(pointsto.KindUnknown, typ, typ.FullName())
		b.depth[n] = maxMaterializeDepth
		b.summary[typ.FullName()] = n
	}
	b.fields[key] = n
	b.g.AddEdge(src, field, n)
	b.changed = true
	return n
}

func (b *ptgBuilder) pointsTo(v *ir.Variable, targets []pointsto.NodeID) {
	for _, n := range targets {
		if b.g.PointsTo(v, n) {
			b.changed = true
		}
	}
}

func (b *ptgBuilder) addEdges(srcs []pointsto.NodeID, field string, targets []pointsto.NodeID) {
	for _, src := range srcs {
		for _, dst := range targets {
			if b.g.AddEdge(src, field, dst) {
				b.changed = true
			}
		}
	}
}

// fieldTargets returns the targets of the field of the nodes in srcs, materializing the field of nodes that were
// not allocated by the method
func (b *ptgBuilder) fieldTargets(srcs []pointsto.NodeID, field string, typ *ir.Type) []pointsto.NodeID {
	var res []pointsto.NodeID
	for _, src := range srcs {
		targets := b.g.FieldTargets(src, field)
		if len(targets) == 0 && typ != nil && !typ.IsValue && b.materializable(src) {
			targets = []pointsto.NodeID{b.materialize(src, field, typ)}
		}
		res = append(res, targets...)
	}
	return res
}

func (b *ptgBuilder) materializable(n pointsto.NodeID) bool {
	switch b.g.Node(n).Kind {
	case pointsto.KindParameter, pointsto.KindUnknown, pointsto.KindGlobal:
		return true
	}
	return false
}

// location returns the nodes and the field a value reads from
func (b *ptgBuilder) location(v ir.Value) ([]pointsto.NodeID, string, bool) {
	switch v := v.(type) {
	case *ir.InstanceFieldAccess:
		return b.g.Targets(v.Instance), v.Field.Name, true
	case *ir.StaticFieldAccess:
		return []pointsto.NodeID{pointsto.GlobalNode}, v.Field.String(), true
	case *ir.ArrayElementAccess:
		return b.g.Targets(v.Array), lineage.ArrayField, true
	case *ir.Dereference:
		return b.g.Targets(v.Reference), lineage.ArrayField, true
	}
	return nil, "", false
}

func (b *ptgBuilder) instruction(instr ir.Instruction) {
	switch instr := instr.(type) {
	case *ir.Load:
		b.load(instr, instr.Operand)
	case *ir.Store:
		if srcs, field, ok := b.location(instr.Target); ok {
			b.addEdges(srcs, field, b.g.Targets(instr.Operand))
		}
	case *ir.Call:
		b.call(instr)
	case *ir.Phi:
		for _, a := range instr.Args {
			b.pointsTo(instr.Result, b.g.Targets(a))
		}
	case *ir.Other:
		b.other(instr)
	}
}

func (b *ptgBuilder) load(instr *ir.Load, operand ir.Value) {
	if instr.Result.IsValueTyped() {
		return
	}
	if srcs, field, ok := b.location(operand); ok {
		b.pointsTo(instr.Result, b.fieldTargets(srcs, field, ir.TypeOf(operand)))
		return
	}
	switch op := operand.(type) {
	case *ir.Variable:
		b.pointsTo(instr.Result, b.g.Targets(op))
	case *ir.Reference:
		b.load(instr, op.Value)
	case *ir.Constant:
		if op.Value == nil {
			b.pointsTo(instr.Result, []pointsto.NodeID{pointsto.NullNode})
		}
	case *ir.MethodRef:
		n := b.site(instr, 0, pointsto.KindDelegate, instr.Result.Type, op.Method.Name)
		b.pointsTo(instr.Result, []pointsto.NodeID{n})
		if op.Instance != nil {
			b.addEdges([]pointsto.NodeID{n}, "this", b.g.Targets(op.Instance))
		}
	case *ir.IndirectCall:
		b.pointsTo(instr.Result, []pointsto.NodeID{b.site(instr, 0, pointsto.KindUnknown, instr.Result.Type, "")})
	}
}

// call points the result of the call to a node of the call site. The rows, row sets and enumerators returned by the
// runtime are their receiver; the other values returned by the runtime are elements of their receiver.
func (b *ptgBuilder) call(instr *ir.Call) {
	if instr.Result == nil || instr.Result.IsValueTyped() {
		return
	}
	rt := b.runtime
	m := instr.Method
	if rt != nil && rt.InRuntime(m) && len(instr.Args) > 0 {
		recv := b.g.Targets(instr.Args[0])
		if rt.IsRows(m) || rt.IsRowEnumerable(m) || rt.IsRowCurrent(m) || rt.IsRowOrRowSet(instr.Result.Type) {
			b.pointsTo(instr.Result, recv)
			return
		}
		n := b.site(instr, 0, pointsto.KindUnknown, instr.Result.Type, m.Name)
		b.pointsTo(instr.Result, []pointsto.NodeID{n})
		b.addEdges(recv, lineage.ArrayField, []pointsto.NodeID{n})
		return
	}
	n := b.site(instr, 0, pointsto.KindUnknown, instr.Result.Type, m.Name)
	b.pointsTo(instr.Result, []pointsto.NodeID{n})
}

func (b *ptgBuilder) other(instr *ir.Other) {
	switch instr.Op {
	case "new":
		for i, r := range instr.Results {
			b.pointsTo(r, []pointsto.NodeID{b.site(instr, i, pointsto.KindObject, r.Type, r.Name)})
		}
	case "closure":
		for _, r := range instr.Results {
			n := b.site(instr, 0, pointsto.KindDelegate, r.Type, r.Name)
			b.pointsTo(r, []pointsto.NodeID{n})
			for _, x := range instr.Operands {
				b.addEdges([]pointsto.NodeID{n}, x.Name, b.g.Targets(x))
			}
		}
	case "makeinterface":
		for _, r := range instr.Results {
			for _, x := range instr.Operands {
				if x.IsValueTyped() {
					b.pointsTo(r, []pointsto.NodeID{b.site(instr, 0, pointsto.KindObject, x.Type, r.Name)})
				} else {
					b.pointsTo(r, b.g.Targets(x))
				}
			}
		}
	default:
		for _, r := range instr.Results {
			if r.IsValueTyped() {
				continue
			}
			for _, x := range instr.Operands {
				b.pointsTo(r, b.g.Targets(x))
			}
		}
	}
}
