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

package job

import (
	"strings"

	"example.com/scope"
)

// Copier copies a column of its input to its output.
type Copier struct {
	input  *scope.RowSet
	output *scope.Row
}

func (p *Copier) Process() *scope.Row {
	rows := p.input.Rows()
	for rows.MoveNext() {
		row := rows.Current()
		p.output.Item("name").Set(row.Item("name").String())
	}
	return p.output
}

// Filter writes the rows of its input that have a given key.
type Filter struct {
	input  *scope.RowSet
	output *scope.Row
	key    string
}

//lineage:iterator
func (f *Filter) Process() *scope.Row {
	rows := f.input.Rows()
	for rows.MoveNext() {
		row := rows.Current()
		if row.Item("key").String() == f.key {
			f.output.ItemAt(0).Set(strings.ToUpper(row.ItemAt(1).String()))
		}
	}
	return f.output
}

// Counter counts the rows of its input with a helper method.
type Counter struct {
	input  *scope.RowSet
	output *scope.Row
}

func (c *Counter) Process() *scope.Row {
	n := 0
	rows := c.input.Rows()
	for rows.MoveNext() {
		n++
	}
	c.write(c.output, n)
	return c.output
}

func (c *Counter) write(out *scope.Row, n int) {
	out.Item("count").Set(n)
}

// Sink passes its output to a function value.
type Sink struct {
	input  *scope.RowSet
	output *scope.Row
	emit   func(*scope.Row)
}

func (s *Sink) Process() *scope.Row {
	s.emit(s.output)
	return s.output
}

// Skipped is not an iterator.
type Skipped struct {
	input *scope.RowSet
}

//lineage:ignore
func (s *Skipped) Process() int {
	return 0
}

// Writer writes a count to a row.
type Writer interface {
	Write(out *scope.Row, n int)
}

type countWriter struct{}

func (countWriter) Write(out *scope.Row, n int) {
	out.Item("count").Set(n)
}

// Dispatcher writes its output through an interface.
type Dispatcher struct {
	input  *scope.RowSet
	output *scope.Row
}

func (d *Dispatcher) Process() *scope.Row {
	var w Writer = &countWriter{}
	w.Write(d.output, 1)
	return d.output
}

// Walker writes a column through a recursive helper.
type Walker struct {
	input  *scope.RowSet
	output *scope.Row
}

func (w *Walker) Process() *scope.Row {
	w.walk(w.output, 3)
	return w.output
}

func (w *Walker) walk(out *scope.Row, depth int) {
	if depth == 0 {
		out.Item("depth").Set(depth)
		return
	}
	w.walk(out, depth-1)
}

// labeler is not an iterator: it has no rows.
type labeler struct{}

func (labeler) width(n int64) int {
	return int(n)
}
