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
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/awslabs/ar-go-lineage/analysis/ir"
	"github.com/awslabs/ar-go-lineage/analysis/pointsto"
	"github.com/awslabs/ar-go-lineage/internal/funcutil"
)

func (v *transferVisitor) DoCall(instr *ir.Call) {
	switch {
	case v.schemaCall(instr):
	case v.rowCall(instr):
	case v.collectionCall(instr):
	case v.analysis.env.Runtime.IsPure(instr.Method):
		v.defUse(instr)
	default:
		v.unknownCall(instr)
	}
}

// arg returns the i-th argument of the call, or nil if the call has fewer arguments
func arg(instr *ir.Call, i int) *ir.Variable {
	if i < len(instr.Args) {
		return instr.Args[i]
	}
	return nil
}

// assign sets the traceables of the result of the call to the traceables of src
func (v *transferVisitor) assign(instr *ir.Call, src *ir.Variable) {
	if instr.Result == nil || src == nil {
		return
	}
	v.state.CopyTraceables(instr.Result, src)
}

// tables returns the names of the tables x depends on
func (v *transferVisitor) tables(x *ir.Variable) []string {
	if x == nil {
		return nil
	}
	var names []string
	for _, t := range SortedTraceables(v.state.Traceables(x)) {
		if t.Kind == TableTraceable {
			names = append(names, t.Table)
		}
	}
	return names
}

// schemaCall handles the calls to the schema methods, which associate tables and column literals to variables
func (v *transferVisitor) schemaCall(instr *ir.Call) bool {
	rt := v.analysis.env.Runtime
	switch {
	case rt.IsSchema(instr.Method):
		v.updateSchemaMap(instr.Result, arg(instr, 0))
	case rt.IsIndexOf(instr.Method):
		col := v.columnLiteral(arg(instr, 1))
		if instr.Result == nil {
			return true
		}
		v.analysis.scope.columns[instr.Result] = col
		ts := TraceableSet{}
		for _, t := range v.analysis.scope.tablesOf(arg(instr, 0)) {
			ts.Add(Column(t, col))
		}
		v.state.AddTraceables(instr.Result, ts)
	default:
		return false
	}
	return true
}

// updateSchemaMap records that the result describes the tables held by the fields pointing to the targets of x
func (v *transferVisitor) updateSchemaMap(result, x *ir.Variable) {
	if result == nil || x == nil {
		return
	}
	targets := v.state.PTG.Targets(x)
	if len(targets) == 0 {
		return
	}
	names := funcutil.NewSet[string]()
	for _, n := range targets {
		if v.state.PTG.Node(n).Type == nil {
			continue
		}
		for _, e := range v.state.PTG.Sources(n) {
			if e.Field != pointsto.EscapeField {
				names.Add(e.Field)
			}
		}
	}
	v.analysis.scope.schemaTables[result] = names
}

// columnLiteral resolves the column designated by x: a string constant is a column name, a variable holding the
// result of a schema lookup is the column looked up, and an integer constant is a column position.
func (v *transferVisitor) columnLiteral(x *ir.Variable) ColumnID {
	if x == nil {
		return TopColumn
	}
	eqs := v.analysis.body.Equalities
	if v.analysis.env.Runtime.IsString(x.Type) {
		if c, ok := eqs.ConstantOf(x); ok {
			if s, ok := c.Value.(string); ok {
				return NamedColumn(s)
			}
		}
		return TopColumn
	}
	if col, ok := v.analysis.scope.columns[x]; ok {
		return col
	}
	if c, ok := eqs.ConstantOf(x); ok {
		switch i := c.Value.(type) {
		case int:
			return PositionalColumn(i)
		case int64:
			return PositionalColumn(int(i))
		}
	}
	return TopColumn
}

// rowCall handles the methods of the rows, row sets, enumerators and columns of the runtime
func (v *transferVisitor) rowCall(instr *ir.Call) bool {
	rt := v.analysis.env.Runtime
	m := instr.Method
	if !rt.InRuntime(m) {
		return false
	}
	recv := arg(instr, 0)
	switch {
	case rt.IsRows(m):
		v.assign(instr, recv)
		v.updateSchemaMap(instr.Result, recv)
	case rt.IsRowEnumerable(m), rt.IsRowCurrent(m), rt.IsColumnGet(m):
		v.assign(instr, recv)
	case rt.IsMoveNext(m):
		if instr.Result != nil {
			ts := TraceableSet{}
			for _, t := range v.tables(recv) {
				ts.Add(Counter(t))
			}
			v.state.AssignTraceables(instr.Result, ts)
		}
	case rt.IsColumnItem(m):
		if instr.Result != nil {
			col := v.columnLiteral(arg(instr, 1))
			ts := TraceableSet{}
			for _, t := range v.tables(recv) {
				ts.Add(Column(t, col))
			}
			v.state.AssignTraceables(instr.Result, ts)
			v.updateSchemaMap(instr.Result, recv)
		}
	case rt.IsColumnSet(m):
		v.setColumn(recv, arg(instr, 1))
	case rt.IsRowListLoad(m):
		if src := arg(instr, 1); recv != nil && src != nil {
			v.state.AssignTraceables(recv, v.state.Traceables(src))
		}
	case rt.InRuntimeNamespace(m):
		v.defUse(instr)
	default:
		return false
	}
	return true
}

// setColumn records the write of x to the output column col. The write depends on x and on every variable that
// controls the current branch.
func (v *transferVisitor) setColumn(col, x *ir.Variable) {
	if col == nil {
		return
	}
	control := TraceableSet{}
	for u := range v.state.Deps.ControlVariables {
		control.AddAll(v.state.Traceables(u))
	}
	data := TraceableSet{}
	if x != nil {
		data = v.state.Traceables(x)
	}
	data.AddAll(control)
	v.state.AddOutputTraceables(col, data)
	if control.Len() > 0 {
		v.state.AddOutputControlTraceables(col, control)
	}
}

// collectionCall handles the methods of the platform collections and enumerations
func (v *transferVisitor) collectionCall(instr *ir.Call) bool {
	rt := v.analysis.env.Runtime
	m := instr.Method
	switch {
	case rt.IsAny(m), m.Pure, rt.IsPureEnumeration(m), rt.IsPureCollectionQuery(m):
		v.defUse(instr)
	case rt.IsSetAdd(m):
		if set, x := arg(instr, 0), arg(instr, 1); set != nil && x != nil {
			v.state.AddTraceables(set, v.state.Traceables(x))
		}
	case rt.IsEnumeratorMethod(m):
		v.assign(instr, arg(instr, 0))
	default:
		return false
	}
	return true
}

// unknownCall handles a call to a method without a model. If no argument reaches a protected node, the arguments
// escape in the points-to graph and the state is unchanged. Otherwise the callees are analyzed, when possible.
func (v *transferVisitor) unknownCall(instr *ir.Call) {
	var roots []pointsto.NodeID
	for _, x := range instr.Args {
		roots = append(roots, v.state.PTG.Targets(x)...)
	}
	if !v.reachesProtected(roots) {
		ptg := v.mutablePTG()
		for _, n := range roots {
			if n != pointsto.NullNode {
				ptg.AddEdge(pointsto.GlobalNode, pointsto.EscapeField, n)
			}
		}
		return
	}
	resolver := v.analysis.env.Resolver
	if resolver == nil || v.analysis.env.Config.SkipInterprocedural {
		v.notAnalyzable(instr)
		return
	}
	resolved, unresolved := resolver.PotentialCallees(instr, v.state.PTG)
	// every callee starts from the state before the call; the state after the call is the join of their results
	var joined *AliasState
	var causes []string
	failed := false
	for _, callee := range resolved {
		res, err := v.analyzeCallee(resolver, instr, callee)
		if err != nil {
			failed = true
			if cause := v.calleeFailed(callee, err); cause != "" && !slices.Contains(causes, cause) {
				causes = append(causes, cause)
			}
			continue
		}
		out := NewAliasState(res.State, res.PTG)
		if joined == nil {
			joined = out
		} else {
			joined = joined.Join(out)
		}
	}
	if len(unresolved) > 0 {
		v.analysis.env.Logger.Debugf("Unresolved callees at %s: %s", instr, calleeNames(unresolved))
	}
	if failed || len(unresolved) > 0 || len(resolved) == 0 {
		v.notAnalyzable(instr, causes...)
		if joined != nil {
			joined = joined.Join(v.state)
		}
	}
	if joined != nil {
		v.state = joined
		v.ptgOwned = false
	}
}

func (v *transferVisitor) reachesProtected(roots []pointsto.NodeID) bool {
	if len(roots) == 0 || len(v.analysis.protected) == 0 {
		return false
	}
	for n := range v.state.PTG.Reachable(roots) {
		if v.analysis.protected[n] {
			return true
		}
	}
	return false
}

// analyzeCallee runs the analysis of callee through the resolver. A panic of the analysis is returned as an error.
func (v *transferVisitor) analyzeCallee(resolver CallResolver, instr *ir.Call, callee *ir.Method) (res *CallResult,
	err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("analysis of %s panicked: %v", callee, r)
		}
	}()
	info := &CallInfo{
		Caller:      v.analysis.body.Method,
		Callee:      callee,
		Call:        instr,
		CallerState: v.state.Deps,
		CallerPTG:   v.state.PTG,
		Protected:   v.analysis.protected,
		Depth:       len(v.analysis.stack) + 1,
		Stack:       append(append([]*ir.Method(nil), v.analysis.stack...), v.analysis.body.Method),
		Diagnostics: v.analysis.diags,
	}
	res, err = resolver.AnalyzeCallee(info)
	if err == nil && (res == nil || res.State == nil || res.PTG == nil) {
		err = fmt.Errorf("analysis of %s returned no state", callee)
	}
	return res, err
}

// calleeFailed returns why the analysis of a callee did not complete. Failures of the analysis itself are recorded
// as framework errors and have no cause.
func (v *transferVisitor) calleeFailed(callee *ir.Method, err error) string {
	switch {
	case errors.Is(err, ErrRecursiveCall):
		return ReasonRecursiveCall
	case errors.Is(err, ErrMaxDepth):
		return ReasonMaxDepth
	default:
		v.analysis.diags.AddFrameworkError(fmt.Errorf("in %s: %w", v.analysis.body.Method, err))
		v.analysis.env.Logger.Warnf("Could not analyze %s: %v", callee, err)
		return ""
	}
}

// notAnalyzable is the rule of the calls that could not be analyzed: the result depends on all the arguments, and
// the traceables of the arguments escape.
func (v *transferVisitor) notAnalyzable(instr *ir.Call, causes ...string) {
	v.defUse(instr)
	for _, x := range instr.Args {
		v.state.Deps.Escaping.AddAll(v.state.Traceables(x))
	}
	v.analysis.report(instr, ReasonNotAnalyzed(instr.Method, causes...))
}

func calleeNames(methods []*ir.Method) string {
	return strings.Join(funcutil.Map(methods, (*ir.Method).String), ", ")
}
