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
	"sort"
	"strconv"
	"strings"

	"github.com/awslabs/ar-go-lineage/internal/funcutil"
)

// ColumnKind is the kind of a column identifier
type ColumnKind int

const (
	// ColumnName identifies a column by its literal name
	ColumnName ColumnKind = iota
	// ColumnPosition identifies a column by its position in the schema
	ColumnPosition
	// ColumnTop is an unknown column
	ColumnTop
)

// topColumnPosition is the position of the unknown column
const topColumnPosition = -2

// A ColumnID identifies a column of a table, by name or by position. The unknown column is ColumnTop.
type ColumnID struct {
	Kind     ColumnKind
	Name     string
	Position int
}

// TopColumn is the column identifier used when a column cannot be statically determined
var TopColumn = ColumnID{Kind: ColumnTop, Name: "_TOP_", Position: topColumnPosition}

// NamedColumn returns the identifier of the column named name
func NamedColumn(name string) ColumnID {
	return ColumnID{Kind: ColumnName, Name: name, Position: -1}
}

// PositionalColumn returns the identifier of the column at position pos
func PositionalColumn(pos int) ColumnID {
	return ColumnID{Kind: ColumnPosition, Position: pos}
}

// IsTop returns true for the unknown column
func (c ColumnID) IsTop() bool { return c.Kind == ColumnTop }

func (c ColumnID) String() string {
	switch c.Kind {
	case ColumnName, ColumnTop:
		return c.Name
	}
	return strconv.Itoa(c.Position)
}

// TraceableKind is the kind of a traceable
type TraceableKind int

const (
	// TableTraceable is a whole input table
	TableTraceable TraceableKind = iota
	// ColumnTraceable is a column of a table
	ColumnTraceable
	// CounterTraceable is the row count of a table
	CounterTraceable
)

// A Traceable is an abstract source of data: a table, a column of a table, or the row count of a table.
// Traceables are values: two traceables with the same kind and payload are equal, and traceables can be used as map
// keys.
type Traceable struct {
	Kind   TraceableKind
	Table  string
	Column ColumnID
}

// Table returns the traceable of the table named name
func Table(name string) Traceable {
	return Traceable{Kind: TableTraceable, Table: name}
}

// Column returns the traceable of the column col of table
func Column(table string, col ColumnID) Traceable {
	return Traceable{Kind: ColumnTraceable, Table: table, Column: col}
}

// Counter returns the traceable of the row count of table
func Counter(table string) Traceable {
	return Traceable{Kind: CounterTraceable, Table: table}
}

func (t Traceable) String() string {
	switch t.Kind {
	case ColumnTraceable:
		return "Col(" + t.Table + "," + t.Column.String() + ")"
	case CounterTraceable:
		return "RC(" + t.Table + ")"
	}
	return "Table(" + t.Table + ")"
}

// TraceableSet is a set of traceables
type TraceableSet = funcutil.Set[Traceable]

// SortedTraceables returns the members of s ordered by their printed form
func SortedTraceables(s TraceableSet) []Traceable {
	items := s.Items()
	sort.Slice(items, func(i, j int) bool { return items[i].String() < items[j].String() })
	return items
}

// FormatTraceables prints the members of s, ordered, separated by sep
func FormatTraceables(s TraceableSet, sep string) string {
	items := SortedTraceables(s)
	parts := make([]string, len(items))
	for i, t := range items {
		parts[i] = t.String()
	}
	return strings.Join(parts, sep)
}
