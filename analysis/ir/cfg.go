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

package ir

import (
	"fmt"
	"strings"
)

// NodeKind distinguishes the entry and exit nodes of a control flow graph from the other nodes
type NodeKind int

const (
	// NormalNode is a node containing instructions
	NormalNode NodeKind = iota
	// EntryNode is the unique entry node of a graph
	EntryNode
	// ExitNode is the unique exit node of a graph
	ExitNode
)

// A Node is a basic block of a control flow graph
type Node struct {
	ID     int
	Kind   NodeKind
	Instrs []Instruction
	Preds  []*Node
	Succs  []*Node
}

func (n *Node) String() string {
	switch n.Kind {
	case EntryNode:
		return fmt.Sprintf("%d(entry)", n.ID)
	case ExitNode:
		return fmt.Sprintf("%d(exit)", n.ID)
	}
	return fmt.Sprintf("%d", n.ID)
}

// A CFG is a control flow graph. Node IDs are indices in Nodes.
type CFG struct {
	Nodes []*Node
	Entry *Node
	Exit  *Node
}

// NewCFG returns a control flow graph with an entry and an exit node
func NewCFG() *CFG {
	g := &CFG{}
	g.Entry = g.newNode(EntryNode)
	g.Exit = g.newNode(ExitNode)
	return g
}

func (g *CFG) newNode(kind NodeKind) *Node {
	n := &Node{ID: len(g.Nodes), Kind: kind}
	g.Nodes = append(g.Nodes, n)
	return n
}

// NewNode adds a node holding instrs to the graph
func (g *CFG) NewNode(instrs ...Instruction) *Node {
	n := g.newNode(NormalNode)
	n.Instrs = instrs
	return n
}

// AddEdge adds an edge between from and to, if not already present
func (g *CFG) AddEdge(from, to *Node) {
	for _, s := range from.Succs {
		if s == to {
			return
		}
	}
	from.Succs = append(from.Succs, to)
	to.Preds = append(to.Preds, from)
}

// ForwardOrder returns the nodes reachable from the entry in reverse postorder, followed by the unreachable nodes in
// ID order. Processing nodes in that order minimizes the iterations of a forward analysis.
func (g *CFG) ForwardOrder() []*Node {
	visited := make([]bool, len(g.Nodes))
	var post []*Node
	var visit func(n *Node)
	visit = func(n *Node) {
		visited[n.ID] = true
		for _, s := range n.Succs {
			if !visited[s.ID] {
				visit(s)
			}
		}
		post = append(post, n)
	}
	visit(g.Entry)
	order := make([]*Node, 0, len(g.Nodes))
	for i := len(post) - 1; i >= 0; i-- {
		order = append(order, post[i])
	}
	for _, n := range g.Nodes {
		if !visited[n.ID] {
			order = append(order, n)
		}
	}
	return order
}

func (g *CFG) String() string {
	var b strings.Builder
	for _, n := range g.Nodes {
		succs := make([]string, len(n.Succs))
		for i, s := range n.Succs {
			succs[i] = fmt.Sprintf("%d", s.ID)
		}
		fmt.Fprintf(&b, "%s -> [%s]\n", n, strings.Join(succs, " "))
		for _, instr := range n.Instrs {
			fmt.Fprintf(&b, "  %s\n", instr)
		}
	}
	return b.String()
}

// Equalities maps variables to the expression that defines them
type Equalities map[*Variable]Expr

// ConstantOf returns the constant defining v, following copies between variables
func (eq Equalities) ConstantOf(v *Variable) (*Constant, bool) {
	seen := map[*Variable]bool{}
	for v != nil && !seen[v] {
		seen[v] = true
		switch e := eq[v].(type) {
		case *Constant:
			return e, true
		case *Variable:
			v = e
		default:
			return nil, false
		}
	}
	return nil, false
}

// A Body is the code of a method
type Body struct {
	Method *Method
	// This is the receiver of instance methods; nil for static methods
	This       *Variable
	Params     []*Variable
	CFG        *CFG
	Equalities Equalities
}

func (b *Body) String() string {
	return fmt.Sprintf("%s(%s)\n%s", b.Method, joinVars(b.Params), b.CFG)
}
