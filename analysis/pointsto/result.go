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

package pointsto

// A Result holds the points-to graph at each node of a control flow graph. Nodes without a graph of their own use
// the default graph.
type Result struct {
	PerNode map[int]*Graph
	Default *Graph
}

// Uniform returns a result where every node has the graph g. A flow-insensitive analysis produces uniform results.
func Uniform(g *Graph) *Result {
	return &Result{PerNode: map[int]*Graph{}, Default: g}
}

// At returns the graph holding at the node with the given ID
func (r *Result) At(nodeID int) *Graph {
	if g, ok := r.PerNode[nodeID]; ok {
		return g
	}
	if r.Default == nil {
		return New()
	}
	return r.Default
}
