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

import "fmt"

// An Expr is the right-hand side of a definition: the operand of a load, or a call. Expressions are recorded in
// the Equalities of a method body.
type Expr interface {
	fmt.Stringer
	isExpr()
}

// A Value is the operand of a load, or the target of a store. The set of values is closed.
type Value interface {
	Expr
	// Vars returns the variables the value reads
	Vars() []*Variable
	isValue()
}

// Constant is a literal value
type Constant struct {
	Value any
	Type  *Type
}

// StaticFieldAccess is the access C.f to a static field f
type StaticFieldAccess struct {
	Field *Field
}

// InstanceFieldAccess is the access o.f to a field f of the object referenced by Instance
type InstanceFieldAccess struct {
	Instance *Variable
	Field    *Field
}

// ArrayElementAccess is the access a[i] to an element of an array, or to the cell of a pointer when Index is nil
type ArrayElementAccess struct {
	Array *Variable
	Index *Variable
	// Type is the type of the elements
	Type *Type
}

// ArrayLengthAccess is the length of an array
type ArrayLengthAccess struct {
	Array *Variable
}

// Reference is the address &v of a value
type Reference struct {
	Value Value
}

// Dereference is the value *p stored at the address p
type Dereference struct {
	Reference *Variable
	// Type is the type of the value referenced
	Type *Type
}

// IndirectCall is the result of a call through a function value
type IndirectCall struct {
	Target *Variable
	Args   []*Variable
}

// MethodRef is a reference to a method, used to build delegates. Instance is nil for static methods.
type MethodRef struct {
	Method   *Method
	Instance *Variable
}

// CallExpr is the expression of a call. It is not a Value: it only appears in Equalities.
type CallExpr struct {
	Method *Method
	Args   []*Variable
}

func (*Variable) isExpr()            {}
func (*Constant) isExpr()            {}
func (*StaticFieldAccess) isExpr()   {}
func (*InstanceFieldAccess) isExpr() {}
func (*ArrayElementAccess) isExpr()  {}
func (*ArrayLengthAccess) isExpr()   {}
func (*Reference) isExpr()           {}
func (*Dereference) isExpr()         {}
func (*IndirectCall) isExpr()        {}
func (*MethodRef) isExpr()           {}
func (*CallExpr) isExpr()            {}

func (*Variable) isValue()            {}
func (*Constant) isValue()            {}
func (*StaticFieldAccess) isValue()   {}
func (*InstanceFieldAccess) isValue() {}
func (*ArrayElementAccess) isValue()  {}
func (*ArrayLengthAccess) isValue()   {}
func (*Reference) isValue()           {}
func (*Dereference) isValue()         {}
func (*IndirectCall) isValue()        {}
func (*MethodRef) isValue()           {}

// Vars returns the variable itself
func (v *Variable) Vars() []*Variable { return []*Variable{v} }

func (c *Constant) Vars() []*Variable          { return nil }
func (s *StaticFieldAccess) Vars() []*Variable { return nil }

func (f *InstanceFieldAccess) Vars() []*Variable { return []*Variable{f.Instance} }

func (a *ArrayElementAccess) Vars() []*Variable {
	if a.Index == nil {
		return []*Variable{a.Array}
	}
	return []*Variable{a.Array, a.Index}
}

func (a *ArrayLengthAccess) Vars() []*Variable { return []*Variable{a.Array} }
func (r *Reference) Vars() []*Variable         { return r.Value.Vars() }
func (d *Dereference) Vars() []*Variable       { return []*Variable{d.Reference} }

func (c *IndirectCall) Vars() []*Variable {
	return append([]*Variable{c.Target}, c.Args...)
}

func (m *MethodRef) Vars() []*Variable {
	if m.Instance == nil {
		return nil
	}
	return []*Variable{m.Instance}
}

func (c *Constant) String() string          { return quote(c.Value) }
func (s *StaticFieldAccess) String() string { return s.Field.String() }

func (f *InstanceFieldAccess) String() string { return f.Instance.Name + "." + f.Field.Name }

func (a *ArrayElementAccess) String() string {
	if a.Index == nil {
		return "*" + a.Array.Name
	}
	return a.Array.Name + "[" + a.Index.Name + "]"
}

func (a *ArrayLengthAccess) String() string { return "len(" + a.Array.Name + ")" }
func (r *Reference) String() string         { return "&" + r.Value.String() }
func (d *Dereference) String() string       { return "*" + d.Reference.Name }

func (c *IndirectCall) String() string {
	return c.Target.Name + "(" + joinVars(c.Args) + ")"
}

func (m *MethodRef) String() string {
	if m.Instance == nil {
		return "&" + m.Method.String()
	}
	return "&" + m.Instance.Name + "." + m.Method.Name
}

func (c *CallExpr) String() string { return c.Method.String() + "(" + joinVars(c.Args) + ")" }

// TypeOf returns the type of the value v, if it is known
func TypeOf(v Value) *Type {
	switch v := v.(type) {
	case *Variable:
		return v.Type
	case *Constant:
		return v.Type
	case *StaticFieldAccess:
		return v.Field.Type
	case *InstanceFieldAccess:
		return v.Field.Type
	case *ArrayElementAccess:
		return v.Type
	case *Dereference:
		return v.Type
	case *Reference:
		return TypeOf(v.Value)
	}
	return nil
}
