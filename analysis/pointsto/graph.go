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

// Package pointsto implements the points-to graphs consumed by the lineage analysis. A graph maps variables to the
// abstract heap nodes they may point to, and nodes to their targets through labelled field edges. Nodes are stored in
// an arena and referenced by their integer ID.
package pointsto

import (
	"fmt"
	"sort"
	"strings"

	"github.com/awslabs/ar-go-lineage/analysis/ir"
	"github.com/awslabs/ar-go-lineage/internal/funcutil"
	"github.com/yourbasic/graph"
)

// NodeKind is the kind of an abstract heap node
type NodeKind int

const (
	// KindObject is an allocated object
	KindObject NodeKind = iota
	// KindNull is the null value
	KindNull
	// KindDelegate is a function value (closure, bound method)
	KindDelegate
	// KindParameter is the object referenced by a parameter at method entry
	KindParameter
	// KindUnknown is an object returned by code that was not analyzed
	KindUnknown
	// KindGlobal is the node holding static fields
	KindGlobal
)

func (k NodeKind) String() string {
	switch k {
	case KindObject:
		return "Object"
	case KindNull:
		return "Null"
	case KindDelegate:
		return "Delegate"
	case KindParameter:
		return "Parameter"
	case KindUnknown:
		return "Unknown"
	case KindGlobal:
		return "Global"
	}
	return fmt.Sprintf("NodeKind(%d)", int(k))
}

// NodeID identifies a node in the arena of a graph
type NodeID int

// GlobalNode is the ID of the node holding static fields, present in every graph
const GlobalNode NodeID = 0

// NullNode is the ID of the null node, present in every graph
const NullNode NodeID = 1

// EscapeField is the label of the edges from the global node to the objects passed to code that was not analyzed
const EscapeField = "escape"

// A Node is an abstract heap object
type Node struct {
	ID    NodeID
	Kind  NodeKind
	Type  *ir.Type
	Label string
}

func (n *Node) String() string {
	if n.Label != "" {
		return fmt.Sprintf("%d:%s", n.ID, n.Label)
	}
	return fmt.Sprintf("%d:%s", n.ID, n.Kind)
}

// An Edge is a field edge Src.Field -> Dst
type Edge struct {
	Src   NodeID
	Field string
	Dst   NodeID
}

type targetSet = funcutil.Set[NodeID]

// A Graph is a points-to graph. Graphs derived from the same graph by Clone share their arena of nodes: only graphs
// with a common ancestor can be joined or compared.
type Graph struct {
	nodes []*Node
	roots map[*ir.Variable]targetSet
	edges map[NodeID]map[string]targetSet
}

// New returns a graph containing only the global and null nodes
func New() *Graph {
	g := &Graph{
		roots: map[*ir.Variable]targetSet{},
		edges: map[NodeID]map[string]targetSet{},
	}
	g.NewNode(KindGlobal, nil, "global")
	g.NewNode(KindNull, nil, "null")
	return g
}

// NewNode allocates a new node in the arena of the graph
func (g *Graph) NewNode(kind NodeKind, typ *ir.Type, label string) NodeID {
	id := NodeID(len(g.nodes))
	g.nodes = append(g.nodes, &Node{ID: id, Kind: kind, Type: typ, Label: label})
	return id
}

// Node returns the node with the given ID
func (g *Graph) Node(id NodeID) *Node {
	return g.nodes[id]
}

// Nodes returns all the nodes of the graph, ordered by ID
func (g *Graph) Nodes() []*Node {
	return g.nodes
}

// Contains returns true if the variable is a root of the graph
func (g *Graph) Contains(v *ir.Variable) bool {
	_, ok := g.roots[v]
	return ok
}

// Variables returns the roots of the graph, ordered by name
func (g *Graph) Variables() []*ir.Variable {
	return funcutil.SortedBy(g.roots, func(v *ir.Variable) string { return v.Name })
}

// PointsTo adds n to the targets of v. Returns true if the graph changed.
func (g *Graph) PointsTo(v *ir.Variable, n NodeID) bool {
	s, ok := g.roots[v]
	if !ok {
		s = targetSet{}
		g.roots[v] = s
	}
	return s.Add(n)
}

// Targets returns the nodes v may point to, in increasing order
func (g *Graph) Targets(v *ir.Variable) []NodeID {
	return sortedIDs(g.roots[v])
}

// AddEdge adds the field edge src.field -> dst. Returns true if the graph changed.
func (g *Graph) AddEdge(src NodeID, field string, dst NodeID) bool {
	fields, ok := g.edges[src]
	if !ok {
		fields = map[string]targetSet{}
		g.edges[src] = fields
	}
	s, ok := fields[field]
	if !ok {
		s = targetSet{}
		fields[field] = s
	}
	return s.Add(dst)
}

// FieldTargets returns the targets of the field edges labelled field out of src
func (g *Graph) FieldTargets(src NodeID, field string) []NodeID {
	return sortedIDs(g.edges[src][field])
}

// Fields returns the labels of the edges out of src, sorted
func (g *Graph) Fields(src NodeID) []string {
	return funcutil.SortedKeys(g.edges[src])
}

// Edges returns all the field edges of the graph, ordered by source, field and destination
func (g *Graph) Edges() []Edge {
	var edges []Edge
	for _, src := range funcutil.SortedKeys(g.edges) {
		for _, f := range g.Fields(src) {
			for _, dst := range g.FieldTargets(src, f) {
				edges = append(edges, Edge{Src: src, Field: f, Dst: dst})
			}
		}
	}
	return edges
}

// Sources returns the edges pointing to n, ordered by source and field
func (g *Graph) Sources(n NodeID) []Edge {
	var edges []Edge
	for src, fields := range g.edges {
		for f, ts := range fields {
			if ts[n] {
				edges = append(edges, Edge{Src: src, Field: f, Dst: n})
			}
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Src != edges[j].Src {
			return edges[i].Src < edges[j].Src
		}
		return edges[i].Field < edges[j].Field
	})
	return edges
}

// Aliases returns the variables that may point to one of the non-null targets of v, including v itself. The order
// of the aliases other than v is unspecified.
func (g *Graph) Aliases(v *ir.Variable) []*ir.Variable {
	res := []*ir.Variable{v}
	targets := g.roots[v]
	if len(targets) == 0 {
		return res
	}
	for w, ts := range g.roots {
		if w == v {
			continue
		}
		for n, b := range ts {
			if b && n != NullNode && targets[n] {
				res = append(res, w)
				break
			}
		}
	}
	return res
}

// Reachable returns the set of nodes reachable from the roots through field edges, including the roots
func (g *Graph) Reachable(roots []NodeID) map[NodeID]bool {
	it := edgeIterator{g: g}
	reached := map[NodeID]bool{}
	for _, r := range roots {
		if reached[r] {
			continue
		}
		reached[r] = true
		graph.BFS(it, int(r), func(_, w int, _ int64) {
			reached[NodeID(w)] = true
		})
	}
	return reached
}

// Clone returns a copy of the graph sharing the arena of nodes
func (g *Graph) Clone() *Graph {
	c := &Graph{
		nodes: g.nodes[:len(g.nodes):len(g.nodes)],
		roots: make(map[*ir.Variable]targetSet, len(g.roots)),
		edges: make(map[NodeID]map[string]targetSet, len(g.edges)),
	}
	for v, s := range g.roots {
		c.roots[v] = s.Clone()
	}
	for src, fields := range g.edges {
		cf := make(map[string]targetSet, len(fields))
		for f, s := range fields {
			cf[f] = s.Clone()
		}
		c.edges[src] = cf
	}
	return c
}

// Join returns a new graph that is the union of g and h
func (g *Graph) Join(h *Graph) *Graph {
	c := g.Clone()
	if len(h.nodes) > len(c.nodes) {
		c.nodes = append(c.nodes, h.nodes[len(c.nodes):]...)
	}
	for v, s := range h.roots {
		for n, b := range s {
			if b {
				c.PointsTo(v, n)
			}
		}
	}
	for _, e := range h.Edges() {
		c.AddEdge(e.Src, e.Field, e.Dst)
	}
	return c
}

// LessEqual returns true if every root and edge of g is in h
func (g *Graph) LessEqual(h *Graph) bool {
	if len(g.nodes) > len(h.nodes) {
		return false
	}
	for v, s := range g.roots {
		if !s.SubsetOf(h.roots[v]) {
			return false
		}
	}
	for src, fields := range g.edges {
		for f, s := range fields {
			if !s.SubsetOf(h.edges[src][f]) {
				return false
			}
		}
	}
	return true
}

func (g *Graph) String() string {
	var b strings.Builder
	for _, v := range g.Variables() {
		fmt.Fprintf(&b, "%s -> %v\n", v.Name, g.Targets(v))
	}
	for _, e := range g.Edges() {
		fmt.Fprintf(&b, "%s.%s -> %s\n", g.nodes[e.Src], e.Field, g.nodes[e.Dst])
	}
	return b.String()
}

func sortedIDs(s targetSet) []NodeID {
	ids := s.Items()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// edgeIterator implements graph.Iterator over the field edges of a graph
type edgeIterator struct {
	g *Graph
}

func (it edgeIterator) Order() int { return len(it.g.nodes) }

func (it edgeIterator) Visit(v int, do func(w int, c int64) bool) bool {
	for _, fields := range it.g.edges[NodeID(v)] {
		for w, b := range fields {
			if b && do(int(w), 0) {
				return true
			}
		}
	}
	return false
}
