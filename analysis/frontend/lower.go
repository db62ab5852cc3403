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
	"fmt"
	"go/constant"
	"go/token"
	"go/types"

	"github.com/awslabs/ar-go-lineage/analysis/ir"
	"golang.org/x/tools/go/ssa"
)

// lowerer translates the SSA form of one function into an IR body. Every SSA block becomes a node of the control
// flow graph. Field and element addresses are folded into the loads and stores that use them.
type lowerer struct {
	types  *typeMapper
	fn     *ssa.Function
	body   *ir.Body
	vars   map[ssa.Value]*ir.Variable
	nodes  []*ir.Node
	cur    *ir.Node
	pos    ir.Position
	ntemps int
}

func lower(mapper *typeMapper, fn *ssa.Function) *ir.Body {
	l := &lowerer{
		types: mapper,
		fn:    fn,
		vars:  map[ssa.Value]*ir.Variable{},
		body: &ir.Body{
			Method:     mapper.method(fn),
			CFG:        ir.NewCFG(),
			Equalities: ir.Equalities{},
		},
	}
	for _, fv := range fn.FreeVars {
		l.body.Params = append(l.body.Params, l.variable(fv))
	}
	for i, p := range fn.Params {
		if i == 0 && fn.Signature.Recv() != nil {
			l.body.This = l.variable(p)
			continue
		}
		l.body.Params = append(l.body.Params, l.variable(p))
	}

	cfg := l.body.CFG
	l.nodes = make([]*ir.Node, len(fn.Blocks))
	for i := range fn.Blocks {
		l.nodes[i] = cfg.NewNode()
	}
	if len(fn.Blocks) > 0 {
		cfg.AddEdge(cfg.Entry, l.nodes[0])
	}
	for _, b := range fn.Blocks {
		l.cur = l.nodes[b.Index]
		for i, instr := range b.Instrs {
			l.pos = l.position(instr, b.Index, i)
			l.instruction(instr)
		}
		for _, s := range b.Succs {
			cfg.AddEdge(l.cur, l.nodes[s.Index])
		}
		if len(b.Instrs) == 0 {
			continue
		}
		if _, ok := b.Instrs[len(b.Instrs)-1].(*ssa.Return); ok {
			cfg.AddEdge(l.cur, cfg.Exit)
		}
	}
	return l.body
}

func (l *lowerer) position(instr ssa.Instruction, block, index int) ir.Position {
	if pos := instr.Pos(); pos.IsValid() && l.fn.Prog != nil {
		return ir.Position(l.fn.Prog.Fset.Position(pos).String())
	}
	return ir.Position(fmt.Sprintf("%s:%d.%d", l.fn.Name(), block, index))
}

func (l *lowerer) emit(instr ir.Instruction) {
	l.cur.Instrs = append(l.cur.Instrs, instr)
}

// variable returns the variable holding the value v
func (l *lowerer) variable(v ssa.Value) *ir.Variable {
	if x, ok := l.vars[v]; ok {
		return x
	}
	x := ir.NewVariable(v.Name(), l.types.typeOf(v.Type()))
	l.vars[v] = x
	return x
}

func (l *lowerer) temp(prefix string, t types.Type) *ir.Variable {
	l.ntemps++
	return ir.NewVariable(fmt.Sprintf("%s%d", prefix, l.ntemps), l.types.typeOf(t))
}

// use returns the variable holding the operand v. Constants, functions and globals used as values are loaded into
// fresh variables.
func (l *lowerer) use(v ssa.Value) *ir.Variable {
	switch v := v.(type) {
	case *ssa.Const:
		x := l.temp("k", v.Type())
		c := &ir.Constant{Value: constantValue(v), Type: x.Type}
		l.body.Equalities[x] = c
		l.emit(&ir.Load{Position: l.pos, Result: x, Operand: c})
		return x
	case *ssa.Function:
		x := l.temp("f", v.Type())
		l.emit(&ir.Load{Position: l.pos, Result: x, Operand: &ir.MethodRef{Method: l.types.method(v)}})
		return x
	case *ssa.Global:
		x := l.temp("g", v.Type())
		access := &ir.StaticFieldAccess{Field: l.types.static(v)}
		l.emit(&ir.Load{Position: l.pos, Result: x, Operand: &ir.Reference{Value: access}})
		return x
	}
	return l.variable(v)
}

func (l *lowerer) uses(values []ssa.Value) []*ir.Variable {
	vars := make([]*ir.Variable, len(values))
	for i, v := range values {
		vars[i] = l.use(v)
	}
	return vars
}

func constantValue(c *ssa.Const) any {
	if c.Value == nil {
		return nil
	}
	switch c.Value.Kind() {
	case constant.String:
		return constant.StringVal(c.Value)
	case constant.Bool:
		return constant.BoolVal(c.Value)
	case constant.Int:
		if i, ok := constant.Int64Val(c.Value); ok {
			return i
		}
	case constant.Float:
		f, _ := constant.Float64Val(c.Value)
		return f
	}
	return c.Value.ExactString()
}

// access returns the value an address denotes, when the address is a field, element or global address. The
// address variable itself is not used.
func (l *lowerer) access(addr ssa.Value) (ir.Value, bool) {
	switch a := addr.(type) {
	case *ssa.FieldAddr:
		f, ok := l.structField(a.X.Type(), a.Field)
		if !ok {
			return nil, false
		}
		return &ir.InstanceFieldAccess{Instance: l.use(a.X), Field: f}, true
	case *ssa.IndexAddr:
		return &ir.ArrayElementAccess{Array: l.use(a.X), Index: l.use(a.Index), Type: l.types.typeOf(deref(a.Type()))},
			true
	case *ssa.Global:
		return &ir.StaticFieldAccess{Field: l.types.static(a)}, true
	case *ssa.Alloc:
		return &ir.ArrayElementAccess{Array: l.use(a), Type: l.types.typeOf(deref(a.Type()))}, true
	}
	return nil, false
}

func (l *lowerer) structField(t types.Type, i int) (*ir.Field, bool) {
	st, ok := deref(t).Underlying().(*types.Struct)
	if !ok || i >= st.NumFields() {
		return nil, false
	}
	return l.types.field(st.Field(i), t), true
}

// folded returns true if every use of the address is a load or a store through it
func folded(addr ssa.Value) bool {
	refs := addr.Referrers()
	if refs == nil {
		return true
	}
	for _, r := range *refs {
		switch r := r.(type) {
		case *ssa.UnOp:
			if r.Op != token.MUL {
				return false
			}
		case *ssa.Store:
			if r.Addr != addr || r.Val == addr {
				return false
			}
		case *ssa.DebugRef:
		default:
			return false
		}
	}
	return true
}

func (l *lowerer) other(op string, res ssa.Value, operands ...ssa.Value) {
	o := &ir.Other{Position: l.pos, Op: op, Operands: l.uses(operands)}
	if res != nil {
		o.Results = []*ir.Variable{l.variable(res)}
	}
	l.emit(o)
}

func (l *lowerer) instruction(instruction ssa.Instruction) {
	switch instr := instruction.(type) {
	case *ssa.FieldAddr:
		if !folded(instr) {
			if f, ok := l.structField(instr.X.Type(), instr.Field); ok {
				access := &ir.InstanceFieldAccess{Instance: l.use(instr.X), Field: f}
				l.emit(&ir.Load{Position: l.pos, Result: l.variable(instr), Operand: &ir.Reference{Value: access}})
				return
			}
			l.other("fieldaddr", instr, instr.X)
		}
	case *ssa.IndexAddr:
		if !folded(instr) {
			access := &ir.ArrayElementAccess{Array: l.use(instr.X), Index: l.use(instr.Index),
				Type: l.types.typeOf(deref(instr.Type()))}
			l.emit(&ir.Load{Position: l.pos, Result: l.variable(instr), Operand: &ir.Reference{Value: access}})
		}
	case *ssa.Alloc:
		l.other("new", instr)
	case *ssa.UnOp:
		if instr.Op != token.MUL {
			l.other(instr.Op.String(), instr, instr.X)
			return
		}
		operand, ok := l.access(instr.X)
		if !ok {
			operand = &ir.Dereference{Reference: l.use(instr.X), Type: l.types.typeOf(instr.Type())}
		}
		l.emit(&ir.Load{Position: l.pos, Result: l.variable(instr), Operand: operand})
	case *ssa.Store:
		target, ok := l.access(instr.Addr)
		if !ok {
			target = &ir.Dereference{Reference: l.use(instr.Addr), Type: l.types.typeOf(instr.Val.Type())}
		}
		l.emit(&ir.Store{Position: l.pos, Target: target, Operand: l.use(instr.Val)})
	case *ssa.Field:
		if f, ok := l.structField(instr.X.Type(), instr.Field); ok {
			access := &ir.InstanceFieldAccess{Instance: l.use(instr.X), Field: f}
			l.emit(&ir.Load{Position: l.pos, Result: l.variable(instr), Operand: access})
			return
		}
		l.other("field", instr, instr.X)
	case *ssa.Index:
		l.emit(&ir.Load{Position: l.pos, Result: l.variable(instr), Operand: &ir.ArrayElementAccess{
			Array: l.use(instr.X), Index: l.use(instr.Index), Type: l.types.typeOf(instr.Type())}})
	case *ssa.Lookup:
		if instr.CommaOk {
			l.other("lookup", instr, instr.X, instr.Index)
			return
		}
		l.emit(&ir.Load{Position: l.pos, Result: l.variable(instr), Operand: &ir.ArrayElementAccess{
			Array: l.use(instr.X), Index: l.use(instr.Index), Type: l.types.typeOf(instr.Type())}})
	case *ssa.MapUpdate:
		target := &ir.ArrayElementAccess{Array: l.use(instr.Map), Index: l.use(instr.Key),
			Type: l.types.typeOf(instr.Value.Type())}
		l.emit(&ir.Store{Position: l.pos, Target: target, Operand: l.use(instr.Value)})
	case *ssa.Send:
		target := &ir.ArrayElementAccess{Array: l.use(instr.Chan), Type: l.types.typeOf(instr.X.Type())}
		l.emit(&ir.Store{Position: l.pos, Target: target, Operand: l.use(instr.X)})
	case *ssa.Call:
		l.call(instr.Common(), instr)
	case *ssa.Go:
		l.call(instr.Common(), nil)
	case *ssa.Defer:
		l.call(instr.Common(), nil)
	case *ssa.MakeClosure:
		l.other("closure", instr, instr.Bindings...)
	case *ssa.MakeInterface:
		l.other("makeinterface", instr, instr.X)
	case *ssa.MakeSlice, *ssa.MakeMap, *ssa.MakeChan:
		l.other("new", instr.(ssa.Value))
	case *ssa.Phi:
		l.emit(&ir.Phi{Position: l.pos, Result: l.variable(instr), Args: l.uses(instr.Edges)})
	case *ssa.If:
		l.emit(&ir.Branch{Position: l.pos, Operands: []*ir.Variable{l.use(instr.Cond)}})
	case *ssa.Return:
		l.ret(instr)
	case *ssa.Panic:
		l.other("panic", nil, instr.X)
	case *ssa.BinOp:
		l.other(instr.Op.String(), instr, instr.X, instr.Y)
	case *ssa.Slice:
		operands := []ssa.Value{instr.X}
		for _, v := range []ssa.Value{instr.Low, instr.High, instr.Max} {
			if v != nil {
				operands = append(operands, v)
			}
		}
		l.other("slice", instr, operands...)
	case *ssa.Select:
		var operands []ssa.Value
		for _, s := range instr.States {
			operands = append(operands, s.Chan)
			if s.Send != nil {
				operands = append(operands, s.Send)
			}
		}
		l.other("select", instr, operands...)
	case *ssa.Jump, *ssa.RunDefers, *ssa.DebugRef:
	case ssa.Value:
		// conversions, extractions and iterations: the result depends on the operands
		var operands []ssa.Value
		for _, op := range instruction.Operands(nil) {
			if *op != nil {
				operands = append(operands, *op)
			}
		}
		l.other(opName(instruction), instr, operands...)
	default:
		l.other(opName(instruction), nil)
	}
}

func opName(instr ssa.Instruction) string {
	switch instr.(type) {
	case *ssa.ChangeType, *ssa.ChangeInterface, *ssa.Convert, *ssa.MultiConvert, *ssa.SliceToArrayPointer:
		return "convert"
	case *ssa.TypeAssert:
		return "typeassert"
	case *ssa.Extract:
		return "extract"
	case *ssa.Range:
		return "range"
	case *ssa.Next:
		return "next"
	}
	return fmt.Sprintf("%T", instr)
}

func (l *lowerer) call(common *ssa.CallCommon, res *ssa.Call) {
	var result *ir.Variable
	if res != nil && common.Signature().Results().Len() > 0 {
		result = l.variable(res)
	}
	args := l.uses(common.Args)
	switch callee := common.Value.(type) {
	case *ssa.Builtin:
		l.builtin(callee, result, args)
		return
	case *ssa.MakeClosure:
		args = append(l.uses(callee.Bindings), args...)
	}
	switch {
	case common.IsInvoke():
		args = append([]*ir.Variable{l.use(common.Value)}, args...)
		l.emit(&ir.Call{Position: l.pos, Result: result, Method: l.types.virtual(common.Method), Args: args,
			Virtual: true})
	case common.StaticCallee() != nil:
		l.emit(&ir.Call{Position: l.pos, Result: result, Method: l.types.method(common.StaticCallee()), Args: args})
	default:
		if result == nil {
			result = l.temp("r", common.Signature().Results())
		}
		l.emit(&ir.Load{Position: l.pos, Result: result,
			Operand: &ir.IndirectCall{Target: l.use(common.Value), Args: args}})
	}
}

func (l *lowerer) builtin(b *ssa.Builtin, result *ir.Variable, args []*ir.Variable) {
	if (b.Name() == "len" || b.Name() == "cap") && result != nil && len(args) == 1 {
		l.emit(&ir.Load{Position: l.pos, Result: result, Operand: &ir.ArrayLengthAccess{Array: args[0]}})
		return
	}
	o := &ir.Other{Position: l.pos, Op: b.Name(), Operands: args}
	if result != nil {
		o.Results = []*ir.Variable{result}
	}
	l.emit(o)
}

// ret returns a single variable: multiple results are returned as a tuple
func (l *lowerer) ret(instr *ssa.Return) {
	switch len(instr.Results) {
	case 0:
		l.emit(&ir.Return{Position: l.pos})
	case 1:
		l.emit(&ir.Return{Position: l.pos, Operand: l.use(instr.Results[0])})
	default:
		tuple := l.temp("r", l.fn.Signature.Results())
		l.emit(&ir.Other{Position: l.pos, Op: "tuple", Results: []*ir.Variable{tuple},
			Operands: l.uses(instr.Results)})
		l.emit(&ir.Return{Position: l.pos, Operand: tuple})
	}
}
