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

// Package report turns the exit states of the lineage analysis into per-column lineage reports, renders them and
// stores them.
package report

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/awslabs/ar-go-lineage/analysis/lineage"
	"github.com/minio/highwayhash"
)

// fingerprintKey is the highwayhash key of report fingerprints. Fingerprints identify report contents across runs,
// they are not a security boundary.
var fingerprintKey = []byte("ar-go-lineage/report/fingerprint")

// A Column is the lineage of one output column
type Column struct {
	// Name identifies the column written, e.g. output.total. Columns whose name could not be resolved are named
	// after the variable holding them.
	Name string `json:"name"`
	// Data are the traceables the values written to the column depend on
	Data []string `json:"data"`
	// Control are the traceables the decision to write the column depends on
	Control []string `json:"control,omitempty"`
}

// A Method is the lineage report of one iterator method
type Method struct {
	Method string `json:"method"`
	// Top is true if the analysis lost all precision: the method may write any column from any input
	Top         bool     `json:"top"`
	Columns     []Column `json:"columns,omitempty"`
	Escaping    []string `json:"escaping,omitempty"`
	Diagnostics []string `json:"diagnostics,omitempty"`
	Failures    []string `json:"failures,omitempty"`
	Visits      int      `json:"visits"`
	Fingerprint string   `json:"fingerprint"`
}

// FromResult builds the report of an analysis result
func FromResult(res *lineage.Result) (*Method, error) {
	m := &Method{Method: res.Method.String(), Visits: res.Visits}
	for _, d := range res.Diagnostics.All() {
		m.Diagnostics = append(m.Diagnostics, d.String())
	}
	for _, err := range res.Diagnostics.FrameworkErrors() {
		m.Failures = append(m.Failures, err.Error())
	}
	exit := res.ExitAliasState()
	if exit.IsTop() {
		m.Top = true
	} else {
		m.Columns = columns(exit)
		m.Escaping = names(exit.Deps.Escaping)
	}
	fp, err := m.fingerprint()
	if err != nil {
		return nil, err
	}
	m.Fingerprint = fp
	return m, nil
}

// columns groups the outputs of the state by the columns their variables name
func columns(exit *lineage.AliasState) []Column {
	data := map[string]lineage.TraceableSet{}
	control := map[string]lineage.TraceableSet{}
	add := func(m map[string]lineage.TraceableSet, name string, ts lineage.TraceableSet) {
		if _, ok := m[name]; !ok {
			m[name] = lineage.TraceableSet{}
		}
		m[name].AddAll(ts)
	}
	for v := range exit.Deps.Output {
		var cols []string
		for _, t := range lineage.SortedTraceables(exit.Traceables(v)) {
			if t.Kind == lineage.ColumnTraceable {
				cols = append(cols, t.Table+"."+t.Column.String())
			}
		}
		if len(cols) == 0 {
			cols = []string{v.Name}
		}
		for _, c := range cols {
			add(data, c, exit.OutputTraceables(v))
			if ts := exit.OutputControlTraceables(v); ts.Len() > 0 {
				add(control, c, ts)
			}
		}
	}
	res := make([]Column, 0, len(data))
	for name, ts := range data {
		res = append(res, Column{Name: name, Data: names(ts), Control: names(control[name])})
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res
}

func names(ts lineage.TraceableSet) []string {
	if ts.Len() == 0 {
		return nil
	}
	items := lineage.SortedTraceables(ts)
	res := make([]string, len(items))
	for i, t := range items {
		res[i] = t.String()
	}
	return res
}

// fingerprint hashes the lineage content of the report: the method, the columns, the escaping set and the top flag
func (m *Method) fingerprint() (string, error) {
	content, err := json.Marshal(struct {
		Method   string
		Top      bool
		Columns  []Column
		Escaping []string
	}{m.Method, m.Top, m.Columns, m.Escaping})
	if err != nil {
		return "", fmt.Errorf("could not serialize report of %s: %w", m.Method, err)
	}
	h, err := highwayhash.New64(fingerprintKey)
	if err != nil {
		return "", fmt.Errorf("could not create hash: %w", err)
	}
	if _, err := h.Write(content); err != nil {
		return "", fmt.Errorf("could not hash report of %s: %w", m.Method, err)
	}
	return fmt.Sprintf("%016x", h.Sum64()), nil
}
