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

package config

// RuntimeSpec identifies the types and methods of the query runtime library and of the platform collections whose
// semantics are built into the lineage analysis. Every list is a list of code identifiers; a type or method is
// recognized when it matches some identifier of the list.
type RuntimeSpec struct {
	// Runtime identifies the assembly (package path) of the runtime library. The row, schema and column rules only
	// apply to methods of types defined in the runtime.
	Runtime []CodeIdentifier `yaml:"runtime"`

	// Namespace identifies the namespace of the runtime. Methods of the namespace that are not otherwise modelled
	// propagate dependencies from their arguments to their result.
	Namespace []CodeIdentifier `yaml:"namespace"`

	// RowTypes and RowSetTypes identify the row and row set types. Fields of the iterator holding values of those
	// types are the input tables of the analysis.
	RowTypes    []CodeIdentifier `yaml:"row-types"`
	RowSetTypes []CodeIdentifier `yaml:"row-set-types"`

	// ScopeTypes identifies the types whose fields are tracked in the heap, and for which references and
	// dereferences are handled like plain accesses.
	ScopeTypes []CodeIdentifier `yaml:"scope-types"`

	// StringTypes identifies the platform string types: column literals are string constants, and static fields of
	// string types can be loaded without loss of precision.
	StringTypes []CodeIdentifier `yaml:"string-types"`

	// Schema identifies the methods returning the schema of a row or row set
	Schema []CodeIdentifier `yaml:"schema"`
	// IndexOf identifies the schema methods returning the position of a column from its name
	IndexOf []CodeIdentifier `yaml:"index-of"`
	// Rows identifies the methods returning the rows of a row set
	Rows []CodeIdentifier `yaml:"rows"`
	// RowEnumerable identifies the methods returning an enumerator over rows
	RowEnumerable []CodeIdentifier `yaml:"row-enumerable"`
	// RowCurrent identifies the methods returning the current row of an enumerator
	RowCurrent []CodeIdentifier `yaml:"row-current"`
	// MoveNext identifies the methods advancing an enumerator over rows. Their result depends on the row count of
	// the tables enumerated.
	MoveNext []CodeIdentifier `yaml:"move-next"`
	// ColumnItem identifies the methods returning a column of a row, by name or by position
	ColumnItem []CodeIdentifier `yaml:"column-item"`
	// ColumnSet identifies the methods writing a value to an output column
	ColumnSet []CodeIdentifier `yaml:"column-set"`
	// ColumnGet identifies the methods reading the value of a column
	ColumnGet []CodeIdentifier `yaml:"column-get"`
	// RowListLoad identifies the methods loading rows into a row list
	RowListLoad []CodeIdentifier `yaml:"row-list-load"`

	// AnyMethods identifies enumeration methods that only test their arguments
	AnyMethods []CodeIdentifier `yaml:"any-methods"`
	// PureEnumerationMethods identifies enumeration operators without side effects
	PureEnumerationMethods []CodeIdentifier `yaml:"pure-enumeration-methods"`
	// PureCollectionMethods identifies collection queries without side effects, on the types of Containers
	PureCollectionMethods []CodeIdentifier `yaml:"pure-collection-methods"`
	// Containers identifies the collection types
	Containers []CodeIdentifier `yaml:"containers"`
	// SetAdd identifies the methods adding an element to a set
	SetAdd []CodeIdentifier `yaml:"set-add"`
	// Enumerators identifies the generic enumeration methods (current element, move next, get enumerator)
	Enumerators []CodeIdentifier `yaml:"enumerators"`

	// PureTypes identifies types whose methods have no side effects
	PureTypes []CodeIdentifier `yaml:"pure-types"`
	// PureMethods identifies methods that have no side effects
	PureMethods []CodeIdentifier `yaml:"pure-methods"`
}

// DefaultRuntimeSpec returns the identifiers of the SCOPE runtime. Both the names of the compiled runtime (e.g.
// get_Rows on ScopeRuntime.RowSet) and of a Go package named scope with the same types are recognized.
func DefaultRuntimeSpec() RuntimeSpec {
	return RuntimeSpec{
		Runtime:     []CodeIdentifier{{Assembly: `^ScopeRuntime$|(^|/)scope$`}},
		Namespace:   []CodeIdentifier{{Package: `^(ScopeRuntime|scope)$`}},
		RowTypes:    []CodeIdentifier{{Type: `^Row$`}},
		RowSetTypes: []CodeIdentifier{{Type: `^RowSet$`}},
		ScopeTypes: []CodeIdentifier{
			{Type: `^(Row|RowSet|RowList|ColumnData|Schema)$`},
			{Type: `^(IEnumerable|IEnumerator)<(Row|ScopeMapUsage)>$`},
			{Type: `^Row(Enumerable|Enumerator)$`},
		},
		StringTypes:   []CodeIdentifier{{Type: `^(String|string)$`}},
		Schema:        []CodeIdentifier{{Type: `^(RowSet|Row)$`, Method: `^(get_)?Schema$`}},
		IndexOf:       []CodeIdentifier{{Type: `^Schema$`, Method: `^IndexOf$`}},
		Rows:          []CodeIdentifier{{Type: `^RowSet$`, Method: `^(get_)?Rows$`}},
		RowEnumerable: []CodeIdentifier{{Type: `^(IEnumerable<Row>|RowEnumerable)$`, Method: `^GetEnumerator$`}},
		RowCurrent: []CodeIdentifier{
			{Type: `^(IEnumerator<(Row|ScopeMapUsage)>|RowEnumerator)$`, Method: `^(get_)?Current$`},
		},
		MoveNext:    []CodeIdentifier{{Type: `^(IEnumerator|RowEnumerator)$`, Method: `^MoveNext$`}},
		ColumnItem:  []CodeIdentifier{{Type: `^Row$`, Method: `^(get_Item|Item|ItemAt)$`}},
		ColumnSet:   []CodeIdentifier{{Type: `^ColumnData$`, Method: `^Set$`}},
		ColumnGet:   []CodeIdentifier{{Type: `^ColumnData$`, Method: `^(get_String|String|Get)$`}},
		RowListLoad: []CodeIdentifier{{Type: `^RowList$`, Method: `^Load$`}},

		AnyMethods:             []CodeIdentifier{{Method: `^Any$`}},
		PureEnumerationMethods: []CodeIdentifier{{Method: `^(Select|Where|Any|Count|GroupBy)$`}},
		PureCollectionMethods:  []CodeIdentifier{{Method: `^(Contains|ContainsKey|get_Item|Count|get_Count)$`}},
		Containers: []CodeIdentifier{
			{Type: `(List|Dictionary|Set|Queue|Stack|Collection|Array)`},
		},
		SetAdd: []CodeIdentifier{{Type: `Set`, Method: `^Add$`}},
		Enumerators: []CodeIdentifier{
			{Type: `^IEnumerator$`, Method: `^(get_Current|MoveNext)$`},
			{Type: `^IEnumerable$`, Method: `^GetEnumerator$`},
		},

		PureTypes: []CodeIdentifier{{Type: `^(String|string|Tuple.*)$`}},
		PureMethods: []CodeIdentifier{
			{Assembly: `^(strings|strconv|unicode|unicode/utf8|math|sort)$`},
			{Package: `^System$`, Type: `^(Math|Convert)$`},
		},
	}
}

// lists returns pointers to all the identifier lists of the spec
func (r *RuntimeSpec) lists() []*[]CodeIdentifier {
	return []*[]CodeIdentifier{
		&r.Runtime, &r.Namespace, &r.RowTypes, &r.RowSetTypes, &r.ScopeTypes, &r.StringTypes,
		&r.Schema, &r.IndexOf, &r.Rows, &r.RowEnumerable, &r.RowCurrent, &r.MoveNext, &r.ColumnItem, &r.ColumnSet,
		&r.ColumnGet, &r.RowListLoad, &r.AnyMethods, &r.PureEnumerationMethods, &r.PureCollectionMethods,
		&r.Containers, &r.SetAdd, &r.Enumerators, &r.PureTypes, &r.PureMethods,
	}
}

// Compiled returns a copy of the spec where all identifiers are compiled to regexes
func (r RuntimeSpec) Compiled() RuntimeSpec {
	c := r
	for _, p := range c.lists() {
		*p = append([]CodeIdentifier(nil), (*p)...)
		compileAll(*p)
	}
	return c
}
