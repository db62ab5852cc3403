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
	"github.com/awslabs/ar-go-lineage/analysis/ir"
	"github.com/awslabs/ar-go-lineage/internal/funcutil"
)

// scopeInfo holds the facts about schemas and column literals collected while analyzing a method. The facts are
// shared by all the nodes of the method and only grow.
type scopeInfo struct {
	// schemaTables maps a schema (or a row) variable to the names of the tables it describes
	schemaTables map[*ir.Variable]funcutil.Set[string]
	// columns maps a variable to the column literal it holds, e.g. the result of IndexOf
	columns map[*ir.Variable]ColumnID
	// columnFields maps a field to the column literal stored in it
	columnFields map[string]ColumnID
}

func newScopeInfo() *scopeInfo {
	return &scopeInfo{
		schemaTables: map[*ir.Variable]funcutil.Set[string]{},
		columns:      map[*ir.Variable]ColumnID{},
		columnFields: map[string]ColumnID{},
	}
}

func (s *scopeInfo) tablesOf(v *ir.Variable) []string {
	return funcutil.SortedKeys(s.schemaTables[v])
}
