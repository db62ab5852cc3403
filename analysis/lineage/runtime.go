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
	"github.com/awslabs/ar-go-lineage/analysis/config"
	"github.com/awslabs/ar-go-lineage/analysis/ir"
)

// A RuntimeModel recognizes the types and methods of the query runtime and of the platform collections
type RuntimeModel struct {
	spec config.RuntimeSpec
}

// NewRuntimeModel returns the model described by spec
func NewRuntimeModel(spec config.RuntimeSpec) *RuntimeModel {
	return &RuntimeModel{spec: spec.Compiled()}
}

// DefaultRuntimeModel returns the model of the SCOPE runtime
func DefaultRuntimeModel() *RuntimeModel {
	return NewRuntimeModel(config.DefaultRuntimeSpec())
}

func typeCid(t *ir.Type) config.CodeIdentifier {
	if t == nil {
		return config.CodeIdentifier{}
	}
	return config.CodeIdentifier{Assembly: t.Assembly, Package: t.Namespace, Type: t.Generic()}
}

func methodCid(m *ir.Method) config.CodeIdentifier {
	cid := typeCid(m.Declaring)
	cid.Method = m.Name
	return cid
}

func (r *RuntimeModel) typeIs(t *ir.Type, refs []config.CodeIdentifier) bool {
	return t != nil && typeCid(t).MatchesSome(refs)
}

// InRuntime returns true if the method is declared by a type of the runtime library
func (r *RuntimeModel) InRuntime(m *ir.Method) bool {
	return r.typeIs(m.Declaring, r.spec.Runtime)
}

// InRuntimeNamespace returns true if the method is declared by a type of the runtime namespace
func (r *RuntimeModel) InRuntimeNamespace(m *ir.Method) bool {
	return r.typeIs(m.Declaring, r.spec.Namespace)
}

// IsRowOrRowSet returns true for the row and row set types
func (r *RuntimeModel) IsRowOrRowSet(t *ir.Type) bool {
	return r.typeIs(t, r.spec.RowTypes) || r.typeIs(t, r.spec.RowSetTypes)
}

// IsScopeType returns true for the types of runtime values tracked by the analysis
func (r *RuntimeModel) IsScopeType(t *ir.Type) bool {
	return r.typeIs(t, r.spec.ScopeTypes) || r.IsRowOrRowSet(t)
}

// IsString returns true for the platform string types
func (r *RuntimeModel) IsString(t *ir.Type) bool {
	return r.typeIs(t, r.spec.StringTypes)
}

// isRuntimeMethod returns true if m is a method of the runtime library matching refs
func (r *RuntimeModel) isRuntimeMethod(m *ir.Method, refs []config.CodeIdentifier) bool {
	return r.InRuntime(m) && methodCid(m).MatchesSome(refs)
}

func (r *RuntimeModel) isMethod(m *ir.Method, refs []config.CodeIdentifier) bool {
	return methodCid(m).MatchesSome(refs)
}

// IsSchema returns true for the methods returning the schema of a row or row set
func (r *RuntimeModel) IsSchema(m *ir.Method) bool { return r.isRuntimeMethod(m, r.spec.Schema) }

// IsIndexOf returns true for the methods returning the position of a column in a schema
func (r *RuntimeModel) IsIndexOf(m *ir.Method) bool { return r.isRuntimeMethod(m, r.spec.IndexOf) }

// IsRows returns true for the methods returning the rows of a row set
func (r *RuntimeModel) IsRows(m *ir.Method) bool { return r.isRuntimeMethod(m, r.spec.Rows) }

// IsRowEnumerable returns true for the methods returning an enumerator over rows
func (r *RuntimeModel) IsRowEnumerable(m *ir.Method) bool {
	return r.isRuntimeMethod(m, r.spec.RowEnumerable)
}

// IsRowCurrent returns true for the methods returning the current row of an enumerator
func (r *RuntimeModel) IsRowCurrent(m *ir.Method) bool { return r.isRuntimeMethod(m, r.spec.RowCurrent) }

// IsMoveNext returns true for the methods advancing an enumerator over rows
func (r *RuntimeModel) IsMoveNext(m *ir.Method) bool { return r.isRuntimeMethod(m, r.spec.MoveNext) }

// IsColumnItem returns true for the methods returning a column of a row
func (r *RuntimeModel) IsColumnItem(m *ir.Method) bool { return r.isRuntimeMethod(m, r.spec.ColumnItem) }

// IsColumnSet returns true for the methods writing an output column
func (r *RuntimeModel) IsColumnSet(m *ir.Method) bool { return r.isRuntimeMethod(m, r.spec.ColumnSet) }

// IsColumnGet returns true for the methods reading a column
func (r *RuntimeModel) IsColumnGet(m *ir.Method) bool { return r.isRuntimeMethod(m, r.spec.ColumnGet) }

// IsRowListLoad returns true for the methods loading rows into a row list
func (r *RuntimeModel) IsRowListLoad(m *ir.Method) bool {
	return r.isRuntimeMethod(m, r.spec.RowListLoad)
}

// IsAny returns true for enumeration methods testing their argument
func (r *RuntimeModel) IsAny(m *ir.Method) bool { return r.isMethod(m, r.spec.AnyMethods) }

// IsPureEnumeration returns true for enumeration operators without side effects
func (r *RuntimeModel) IsPureEnumeration(m *ir.Method) bool {
	return r.isMethod(m, r.spec.PureEnumerationMethods)
}

// IsPureCollectionQuery returns true for queries on collections without side effects
func (r *RuntimeModel) IsPureCollectionQuery(m *ir.Method) bool {
	return r.isMethod(m, r.spec.PureCollectionMethods) && r.typeIs(m.Declaring, r.spec.Containers)
}

// IsSetAdd returns true for the methods adding an element to a set
func (r *RuntimeModel) IsSetAdd(m *ir.Method) bool { return r.isMethod(m, r.spec.SetAdd) }

// IsEnumeratorMethod returns true for the generic enumeration methods
func (r *RuntimeModel) IsEnumeratorMethod(m *ir.Method) bool { return r.isMethod(m, r.spec.Enumerators) }

// IsPure returns true if the call has no side effects: the method is marked pure or listed as pure, its type is a
// pure type, it is the constructor of a basic type, or its type is a value type.
func (r *RuntimeModel) IsPure(m *ir.Method) bool {
	if m.Pure || r.isMethod(m, r.spec.PureMethods) {
		return true
	}
	t := m.Declaring
	if t == nil {
		return false
	}
	return r.typeIs(t, r.spec.PureTypes) || (t.IsBasic && m.Constructor) || t.IsValue
}
