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

// Package frontend translates Go programs in SSA form into the IR of the lineage analysis. It provides the bodies of
// the functions of a program, their points-to graphs and the resolution of calls.
package frontend

import (
	"go/types"
	"sort"
	"sync"

	"github.com/awslabs/ar-go-lineage/analysis/ir"
	"github.com/awslabs/ar-go-lineage/analysis/lineage"
	"github.com/awslabs/ar-go-lineage/analysis/pointsto"
	"github.com/puzpuzpuz/xsync/v4"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"
)

// A Function is the translation of a Go function
type Function struct {
	Body *ir.Body
	PTG  *pointsto.Graph
	// Protected are the nodes of the graph representing the rows and row sets the function receives
	Protected []pointsto.NodeID
	SSA       *ssa.Function
}

// Program holds the translation of the functions of an SSA program. Functions are translated on demand; a
// Program is safe for concurrent use.
type Program struct {
	ssa     *ssa.Program
	runtime *lineage.RuntimeModel
	mu      sync.Mutex
	mapper  *typeMapper
	cache   *xsync.Map[*ssa.Function, *Function]
}

// NewProgram returns the translation of prog, where calls to the runtime are recognized with runtime
func NewProgram(prog *ssa.Program, runtime *lineage.RuntimeModel) *Program {
	return &Program{
		ssa:     prog,
		runtime: runtime,
		mapper:  newTypeMapper(),
		cache:   xsync.NewMap[*ssa.Function, *Function](),
	}
}

// SSA returns the SSA program
func (p *Program) SSA() *ssa.Program { return p.ssa }

// Functions returns the functions of the program with a body, sorted by name
func (p *Program) Functions() []*ssa.Function {
	var res []*ssa.Function
	for fn := range ssautil.AllFunctions(p.ssa) {
		if len(fn.Blocks) > 0 {
			res = append(res, fn)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].String() < res[j].String() })
	return res
}

// Function returns the translation of fn. Returns false if fn has no body.
func (p *Program) Function(fn *ssa.Function) (*Function, bool) {
	if fn == nil || len(fn.Blocks) == 0 {
		return nil, false
	}
	if f, ok := p.cache.Load(fn); ok {
		return f, true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if f, ok := p.cache.Load(fn); ok {
		return f, true
	}
	body := lower(p.mapper, fn)
	g := BuildPointsTo(body, p.runtime, p.mapper.fieldsOf)
	f := &Function{Body: body, PTG: g, Protected: Protected(body, g, p.runtime), SSA: fn}
	p.cache.Store(fn, f)
	return f, true
}

// Method returns the canonical IR method of fn
func (p *Program) Method(fn *ssa.Function) *ir.Method {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mapper.method(fn)
}

// ReceiverFields returns the fields of the type of the receiver of fn. Returns nil for functions without receiver.
func (p *Program) ReceiverFields(fn *ssa.Function) []*ir.Field {
	recv := fn.Signature.Recv()
	if recv == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mapper.fieldsOf(p.mapper.typeOf(recv.Type()))
}

// Lookup returns the body of m and its points-to graph
func (p *Program) Lookup(m *ir.Method) (*ir.Body, *pointsto.Result, bool) {
	p.mu.Lock()
	fn, ok := p.mapper.funcs[m]
	p.mu.Unlock()
	if !ok {
		return nil, nil, false
	}
	f, ok := p.Function(fn)
	if !ok {
		return nil, nil, false
	}
	return f.Body, pointsto.Uniform(f.PTG), true
}

// Dispatch returns the methods a call may invoke. Calls through interfaces dispatch on the types of the objects
// the receiver points to; when one of them is not a concrete type, the interface method itself is returned.
func (p *Program) Dispatch(call *ir.Call, ptg *pointsto.Graph) []*ir.Method {
	if !call.Virtual {
		return []*ir.Method{call.Method}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	abstract, ok := p.mapper.virtuals[call.Method]
	if !ok || len(call.Args) == 0 {
		return []*ir.Method{call.Method}
	}
	targets := ptg.Targets(call.Args[0])
	if len(targets) == 0 {
		return []*ir.Method{call.Method}
	}
	seen := map[*ir.Method]bool{}
	var res []*ir.Method
	add := func(m *ir.Method) {
		if !seen[m] {
			seen[m] = true
			res = append(res, m)
		}
	}
	for _, n := range targets {
		if n == pointsto.NullNode {
			continue
		}
		impl := p.implementation(ptg.Node(n).Type, abstract)
		if impl == nil {
			add(call.Method)
			continue
		}
		add(p.mapper.method(impl))
	}
	return res
}

// implementation returns the function implementing the interface method abstract for objects of type t
func (p *Program) implementation(t *ir.Type, abstract *types.Func) *ssa.Function {
	gt, ok := p.mapper.goType(t)
	if !ok || types.IsInterface(gt) {
		return nil
	}
	if _, isPtr := gt.(*types.Pointer); !isPtr {
		gt = types.NewPointer(gt)
	}
	sel := p.ssa.MethodSets.MethodSet(gt).Lookup(abstract.Pkg(), abstract.Name())
	if sel == nil {
		return nil
	}
	obj, ok := sel.Obj().(*types.Func)
	if !ok {
		return nil
	}
	return p.ssa.FuncValue(obj)
}
