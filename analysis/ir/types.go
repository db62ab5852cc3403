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

// Package ir defines the three-address representation of methods consumed by the lineage analysis: typed
// references to types, fields, methods and variables, a closed set of instructions, and control flow graphs.
//
// The representation is independent of the source language. The frontend package lowers Go SSA to it.
package ir

import (
	"fmt"
	"strings"
)

// A Type is a reference to a type of the analyzed program
type Type struct {
	// Name is the simple name of the type, e.g. Row
	Name string
	// GenericName is the name of the type with its type arguments, e.g. IEnumerable<Row>. Equal to Name for
	// non-generic types.
	GenericName string
	// Namespace is the namespace (package name) of the type
	Namespace string
	// Assembly is the unit of compilation (package path) defining the type
	Assembly string
	// IsValue is true for value types: their values are copied and never aliased
	IsValue bool
	// IsBasic is true for the basic types of the platform (numbers, strings, booleans)
	IsBasic bool
	// Containing is the type enclosing this type, if any
	Containing *Type
}

// NewType returns a reference type named name in the namespace ns of assembly asm
func NewType(asm, ns, name string) *Type {
	return &Type{Name: name, GenericName: name, Namespace: ns, Assembly: asm}
}

// Generic returns the name of the type with its type arguments
func (t *Type) Generic() string {
	if t == nil {
		return ""
	}
	if t.GenericName != "" {
		return t.GenericName
	}
	return t.Name
}

func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	return t.Generic()
}

// FullName returns the name of the type qualified by its namespace
func (t *Type) FullName() string {
	if t == nil {
		return ""
	}
	if t.Namespace == "" {
		return t.Generic()
	}
	return t.Namespace + "." + t.Generic()
}

// SameName returns true if both types have the same simple name. Nil types have no name.
func (t *Type) SameName(other *Type) bool {
	return t != nil && other != nil && t.Name == other.Name
}

// A Field is a reference to a field of a type
type Field struct {
	Name string
	// Type is the type of the values of the field
	Type *Type
	// Declaring is the type that declares the field
	Declaring *Type
	Static    bool
}

func (f *Field) String() string {
	if f.Declaring == nil {
		return f.Name
	}
	return f.Declaring.Name + "::" + f.Name
}

// A Method is a reference to a method or function
type Method struct {
	Name string
	// Declaring is the type declaring the method. For package-level functions, it is a type named after the package.
	Declaring   *Type
	Pure        bool
	Static      bool
	Constructor bool
}

func (m *Method) String() string {
	if m.Declaring == nil {
		return m.Name
	}
	return m.Declaring.FullName() + "::" + m.Name
}

// A Variable is a local variable, parameter or temporary of a method. Variables are compared by identity.
type Variable struct {
	Name string
	Type *Type
}

// NewVariable returns a new variable
func NewVariable(name string, typ *Type) *Variable {
	return &Variable{Name: name, Type: typ}
}

func (v *Variable) String() string { return v.Name }

// IsValueTyped returns true when the variable holds a value of a value type
func (v *Variable) IsValueTyped() bool { return v.Type != nil && v.Type.IsValue }

func joinVars(vars []*Variable) string {
	parts := make([]string, len(vars))
	for i, v := range vars {
		parts[i] = v.Name
	}
	return strings.Join(parts, ", ")
}

func quote(x any) string {
	if s, ok := x.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	return fmt.Sprint(x)
}
