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
	"testing"

	"github.com/awslabs/ar-go-lineage/analysis/config"
	"github.com/awslabs/ar-go-lineage/analysis/ir"
	"github.com/awslabs/ar-go-lineage/analysis/pointsto"
)

const scopeAsm = "example.com/scope"

var (
	rowSetType     = ir.NewType(scopeAsm, "scope", "RowSet")
	rowType        = ir.NewType(scopeAsm, "scope", "Row")
	rowEnumType    = ir.NewType(scopeAsm, "scope", "RowEnumerator")
	columnDataType = ir.NewType(scopeAsm, "scope", "ColumnData")
	schemaType     = ir.NewType(scopeAsm, "scope", "Schema")
	jobType        = ir.NewType("example.com/job", "job", "job")
	procType       = &ir.Type{Name: "Proc", GenericName: "Proc", Namespace: "job", Assembly: "example.com/job",
		Containing: jobType}
	utilType   = ir.NewType("example.com/util", "util", "util")
	stringType = &ir.Type{Name: "string", GenericName: "string", IsBasic: true, IsValue: true}
	intType    = &ir.Type{Name: "int", GenericName: "int", IsBasic: true, IsValue: true}
)

func method(t *ir.Type, name string) *ir.Method {
	return &ir.Method{Name: name, Declaring: t}
}

// fixture builds the body of a method Proc::Process and its points-to graph
type fixture struct {
	t         *testing.T
	env       *Environment
	body      *ir.Body
	ptg       *pointsto.Graph
	protected []pointsto.NodeID
	consts    int
}

func newFixture(t *testing.T) *fixture {
	this := ir.NewVariable("this", procType)
	return &fixture{
		t:   t,
		env: NewEnvironment(config.NewDefault(), config.DiscardLogs()),
		body: &ir.Body{
			Method:     method(procType, "Process"),
			This:       this,
			CFG:        ir.NewCFG(),
			Equalities: ir.Equalities{},
		},
		ptg: pointsto.New(),
	}
}

// object returns a variable pointing to a new node of type typ
func (f *fixture) object(name string, typ *ir.Type) (*ir.Variable, pointsto.NodeID) {
	v := ir.NewVariable(name, typ)
	n := f.ptg.NewNode(pointsto.KindObject, typ, name)
	f.ptg.PointsTo(v, n)
	return v, n
}

// constant returns a variable holding the constant c, with the load defining it
func (f *fixture) constant(c any, typ *ir.Type) (*ir.Variable, *ir.Load) {
	f.consts++
	v := ir.NewVariable(fmt.Sprintf("c%d", f.consts), typ)
	k := &ir.Constant{Value: c, Type: typ}
	f.body.Equalities[v] = k
	return v, &ir.Load{Result: v, Operand: k}
}

// chain adds nodes holding each group of instructions, in sequence between the entry and the exit
func (f *fixture) chain(groups ...[]ir.Instruction) []*ir.Node {
	cfg := f.body.CFG
	prev := cfg.Entry
	var nodes []*ir.Node
	for _, instrs := range groups {
		n := cfg.NewNode(instrs...)
		cfg.AddEdge(prev, n)
		nodes = append(nodes, n)
		prev = n
	}
	cfg.AddEdge(prev, cfg.Exit)
	return nodes
}

func (f *fixture) analysis(seed *DependencyState) *IteratorAnalysis {
	a := NewIteratorAnalysis(f.env, f.body, pointsto.Uniform(f.ptg), f.protected)
	if seed != nil {
		a.WithSeed(seed)
	}
	return a
}

func instrs(is ...ir.Instruction) []ir.Instruction { return is }

func set(ts ...Traceable) TraceableSet {
	s := TraceableSet{}
	for _, t := range ts {
		s.Add(t)
	}
	return s
}

func col(table, name string) Traceable { return Column(table, NamedColumn(name)) }
