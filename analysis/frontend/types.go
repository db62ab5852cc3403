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
	"go/types"
	"strings"

	"github.com/awslabs/ar-go-lineage/analysis/ir"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/types/typeutil"
)

// typeMapper maps the types, fields and functions of a Go program to their canonical representation in the IR.
// It is not safe for concurrent use.
type typeMapper struct {
	types    typeutil.Map
	back     map[*ir.Type]types.Type
	pkgs     map[*types.Package]*ir.Type
	fields   map[*types.Var]*ir.Field
	statics  map[*ssa.Global]*ir.Field
	methods  map[*ssa.Function]*ir.Method
	funcs    map[*ir.Method]*ssa.Function
	abstract map[*types.Func]*ir.Method
	virtuals map[*ir.Method]*types.Func
}

func newTypeMapper() *typeMapper {
	return &typeMapper{
		back:     map[*ir.Type]types.Type{},
		pkgs:     map[*types.Package]*ir.Type{},
		fields:   map[*types.Var]*ir.Field{},
		statics:  map[*ssa.Global]*ir.Field{},
		methods:  map[*ssa.Function]*ir.Method{},
		funcs:    map[*ir.Method]*ssa.Function{},
		abstract: map[*types.Func]*ir.Method{},
		virtuals: map[*ir.Method]*types.Func{},
	}
}

// packageType returns the pseudo-type holding the functions and globals of a package
func (m *typeMapper) packageType(pkg *types.Package) *ir.Type {
	if t, ok := m.pkgs[pkg]; ok {
		return t
	}
	t := &ir.Type{Name: pkg.Name(), GenericName: pkg.Name(), Namespace: pkg.Name(), Assembly: pkg.Path()}
	m.pkgs[pkg] = t
	return t
}

// typeOf returns the IR type of t. Pointers are references to the type they point to: they have the same names.
func (m *typeMapper) typeOf(t types.Type) *ir.Type {
	if t == nil {
		return nil
	}
	if it, ok := m.types.At(t).(*ir.Type); ok {
		return it
	}
	it := m.convert(types.Unalias(t))
	m.types.Set(t, it)
	m.back[it] = t
	return it
}

func (m *typeMapper) convert(t types.Type) *ir.Type {
	switch t := t.(type) {
	case *types.Pointer:
		elem := m.typeOf(t.Elem())
		return &ir.Type{
			Name:        elem.Name,
			GenericName: elem.GenericName,
			Namespace:   elem.Namespace,
			Assembly:    elem.Assembly,
			Containing:  elem.Containing,
		}
	case *types.Named:
		obj := t.Obj()
		it := &ir.Type{Name: obj.Name(), GenericName: m.genericName(t)}
		if pkg := obj.Pkg(); pkg != nil {
			it.Namespace = pkg.Name()
			it.Assembly = pkg.Path()
			it.Containing = m.packageType(pkg)
		}
		// named structs are handled through pointers, only named basic types are copied
		if _, ok := t.Underlying().(*types.Basic); ok {
			it.IsBasic = true
			it.IsValue = true
		}
		return it
	case *types.Basic:
		basic := t.Info()&(types.IsBoolean|types.IsNumeric|types.IsString) != 0
		return &ir.Type{Name: t.Name(), GenericName: t.Name(), IsBasic: basic, IsValue: basic}
	case *types.Slice:
		return &ir.Type{Name: "Slice", GenericName: "[]" + m.typeOf(t.Elem()).Generic()}
	case *types.Array:
		return &ir.Type{Name: "Array", GenericName: fmt.Sprintf("[%d]%s", t.Len(), m.typeOf(t.Elem()).Generic()),
			IsValue: true}
	case *types.Map:
		return &ir.Type{Name: "Map", GenericName: fmt.Sprintf("map[%s]%s", m.typeOf(t.Key()).Generic(),
			m.typeOf(t.Elem()).Generic())}
	case *types.Chan:
		return &ir.Type{Name: "Chan", GenericName: "chan " + m.typeOf(t.Elem()).Generic()}
	case *types.Struct:
		return &ir.Type{Name: "struct", GenericName: t.String(), IsValue: true}
	case *types.TypeParam:
		return &ir.Type{Name: t.Obj().Name(), GenericName: t.Obj().Name()}
	default:
		name := types.TypeString(t, (*types.Package).Name)
		return &ir.Type{Name: name, GenericName: name}
	}
}

// genericName is the name of a named type with its type arguments, e.g. Set<string>
func (m *typeMapper) genericName(t *types.Named) string {
	args := t.TypeArgs()
	if args.Len() == 0 {
		return t.Obj().Name()
	}
	names := make([]string, args.Len())
	for i := range names {
		names[i] = m.typeOf(args.At(i)).Generic()
	}
	return t.Obj().Name() + "<" + strings.Join(names, ",") + ">"
}

// goType returns the Go type an IR type was built from
func (m *typeMapper) goType(t *ir.Type) (types.Type, bool) {
	gt, ok := m.back[t]
	return gt, ok
}

// field returns the IR field of the struct field v of the struct type declared by owner
func (m *typeMapper) field(v *types.Var, owner types.Type) *ir.Field {
	if f, ok := m.fields[v]; ok {
		return f
	}
	f := &ir.Field{Name: v.Name(), Type: m.typeOf(v.Type()), Declaring: m.typeOf(deref(owner))}
	m.fields[v] = f
	return f
}

// static returns the static field representing a global variable
func (m *typeMapper) static(g *ssa.Global) *ir.Field {
	if f, ok := m.statics[g]; ok {
		return f
	}
	f := &ir.Field{Name: g.Name(), Type: m.typeOf(deref(g.Type())), Static: true}
	if g.Pkg != nil {
		f.Declaring = m.packageType(g.Pkg.Pkg)
	}
	m.statics[g] = f
	return f
}

// method returns the canonical IR method of a function. Methods are declared by the type of their receiver,
// package functions by their package, and anonymous functions by the declaring type of their parent.
func (m *typeMapper) method(fn *ssa.Function) *ir.Method {
	if im, ok := m.methods[fn]; ok {
		return im
	}
	im := &ir.Method{Name: fn.Name()}
	recv := fn.Signature.Recv()
	switch {
	case recv != nil:
		im.Declaring = m.typeOf(deref(recv.Type()))
	case fn.Parent() != nil:
		im.Declaring = m.method(fn.Parent()).Declaring
	case fn.Pkg != nil:
		im.Declaring = m.packageType(fn.Pkg.Pkg)
	case fn.Object() != nil && fn.Object().Pkg() != nil:
		im.Declaring = m.packageType(fn.Object().Pkg())
	}
	im.Static = recv == nil && fn.Parent() == nil
	m.methods[fn] = im
	m.funcs[im] = fn
	return im
}

// virtual returns the IR method of an interface method, called through dynamic dispatch
func (m *typeMapper) virtual(f *types.Func) *ir.Method {
	if im, ok := m.abstract[f]; ok {
		return im
	}
	im := &ir.Method{Name: f.Name()}
	if sig, ok := f.Type().(*types.Signature); ok && sig.Recv() != nil {
		im.Declaring = m.typeOf(deref(sig.Recv().Type()))
	}
	m.abstract[f] = im
	m.virtuals[im] = f
	return im
}

// fieldsOf returns the fields of the struct a type denotes or points to
func (m *typeMapper) fieldsOf(t *ir.Type) []*ir.Field {
	gt, ok := m.goType(t)
	if !ok {
		return nil
	}
	st, ok := deref(gt).Underlying().(*types.Struct)
	if !ok {
		return nil
	}
	fields := make([]*ir.Field, st.NumFields())
	for i := range fields {
		fields[i] = m.field(st.Field(i), gt)
	}
	return fields
}

func deref(t types.Type) types.Type {
	if p, ok := t.Underlying().(*types.Pointer); ok {
		return p.Elem()
	}
	return t
}
