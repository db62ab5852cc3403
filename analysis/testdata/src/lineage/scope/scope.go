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

// Package scope is a minimal query runtime: row sets are enumerated row by row, and the columns of the output row
// are written through column data handles.
package scope

type Schema struct {
	names []string
}

func (s *Schema) IndexOf(name string) int {
	for i, n := range s.names {
		if n == name {
			return i
		}
	}
	return -1
}

type ColumnData struct {
	value string
}

func (c *ColumnData) Set(v any) {
	if s, ok := v.(string); ok {
		c.value = s
	}
}

func (c *ColumnData) String() string { return c.value }

type Row struct {
	schema *Schema
	cols   []*ColumnData
}

func (r *Row) Schema() *Schema { return r.schema }

func (r *Row) Item(name string) *ColumnData { return r.cols[r.schema.IndexOf(name)] }

func (r *Row) ItemAt(i int) *ColumnData { return r.cols[i] }

type RowEnumerator struct {
	rows []*Row
	pos  int
}

func (e *RowEnumerator) MoveNext() bool {
	e.pos++
	return e.pos <= len(e.rows)
}

func (e *RowEnumerator) Current() *Row { return e.rows[e.pos-1] }

type RowSet struct {
	schema *Schema
	rows   []*Row
}

func (rs *RowSet) Schema() *Schema { return rs.schema }

func (rs *RowSet) Rows() *RowEnumerator { return &RowEnumerator{rows: rs.rows} }
