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

import (
	"encoding/xml"
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/encoding"
	"gonum.org/v1/gonum/graph/encoding/dot"
	"gonum.org/v1/gonum/graph/iterator"
)

// gonumGraph is a view of a points-to graph satisfying gonum's graph.Directed. Variables are nodes with IDs after
// the heap nodes.
type gonumGraph struct {
	nodes map[int64]gonumNode
	out   map[int64]map[int64][]string
	in    map[int64]map[int64]bool
}

type gonumNode struct {
	id    int64
	attrs []encoding.Attribute
}

func (n gonumNode) ID() int64                         { return n.id }
func (n gonumNode) DOTID() string                     { return fmt.Sprintf("n%d", n.id) }
func (n gonumNode) Attributes() []encoding.Attribute { return n.attrs }

type gonumEdge struct {
	from, to gonumNode
	fields   []string
}

func (e gonumEdge) From() graph.Node         { return e.from }
func (e gonumEdge) To() graph.Node           { return e.to }
func (e gonumEdge) ReversedEdge() graph.Edge { return gonumEdge{from: e.to, to: e.from, fields: e.fields} }

func (e gonumEdge) Attributes() []encoding.Attribute {
	if len(e.fields) == 0 {
		return []encoding.Attribute{{Key: "style", Value: "dashed"}}
	}
	return []encoding.Attribute{{Key: "label", Value: fmt.Sprintf("%q", strings.Join(e.fields, ","))}}
}

func newGonumGraph(g *Graph) *gonumGraph {
	gg := &gonumGraph{
		nodes: map[int64]gonumNode{},
		out:   map[int64]map[int64][]string{},
		in:    map[int64]map[int64]bool{},
	}
	for _, n := range g.nodes {
		gg.nodes[int64(n.ID)] = gonumNode{id: int64(n.ID), attrs: nodeAttributes(n)}
	}
	addEdge := func(src, dst int64, field string) {
		if gg.out[src] == nil {
			gg.out[src] = map[int64][]string{}
		}
		if gg.in[dst] == nil {
			gg.in[dst] = map[int64]bool{}
		}
		if field != "" {
			gg.out[src][dst] = append(gg.out[src][dst], field)
		} else if _, ok := gg.out[src][dst]; !ok {
			gg.out[src][dst] = nil
		}
		gg.in[dst][src] = true
	}
	for i, v := range g.Variables() {
		id := int64(len(g.nodes) + i)
		gg.nodes[id] = gonumNode{id: id, attrs: []encoding.Attribute{
			{Key: "label", Value: fmt.Sprintf("%q", v.Name)},
			{Key: "shape", Value: "plaintext"},
		}}
		for _, t := range g.Targets(v) {
			addEdge(id, int64(t), "")
		}
	}
	for _, e := range g.Edges() {
		addEdge(int64(e.Src), int64(e.Dst), e.Field)
	}
	return gg
}

func nodeAttributes(n *Node) []encoding.Attribute {
	attrs := []encoding.Attribute{{Key: "label", Value: fmt.Sprintf("%q", n.String())}, {Key: "shape", Value: "box"}}
	switch n.Kind {
	case KindNull:
		attrs = append(attrs, encoding.Attribute{Key: "color", Value: "yellow"})
	case KindDelegate:
		attrs = append(attrs, encoding.Attribute{Key: "color", Value: "cyan"})
	case KindParameter:
		attrs = append(attrs, encoding.Attribute{Key: "color", Value: "red"},
			encoding.Attribute{Key: "style", Value: "dashed"})
	case KindUnknown:
		attrs = append(attrs, encoding.Attribute{Key: "color", Value: `"#FFB445"`},
			encoding.Attribute{Key: "style", Value: "dashed"})
	}
	return attrs
}

func (gg *gonumGraph) Node(id int64) graph.Node {
	if n, ok := gg.nodes[id]; ok {
		return n
	}
	return nil
}

func (gg *gonumGraph) Nodes() graph.Nodes {
	ids := make([]int64, 0, len(gg.nodes))
	for id := range gg.nodes {
		ids = append(ids, id)
	}
	return gg.ordered(ids)
}

func (gg *gonumGraph) ordered(ids []int64) graph.Nodes {
	if len(ids) == 0 {
		return graph.Empty
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	nodes := make([]graph.Node, len(ids))
	for i, id := range ids {
		nodes[i] = gg.nodes[id]
	}
	return iterator.NewOrderedNodes(nodes)
}

func (gg *gonumGraph) From(id int64) graph.Nodes {
	ids := make([]int64, 0, len(gg.out[id]))
	for dst := range gg.out[id] {
		ids = append(ids, dst)
	}
	return gg.ordered(ids)
}

func (gg *gonumGraph) To(id int64) graph.Nodes {
	ids := make([]int64, 0, len(gg.in[id]))
	for src := range gg.in[id] {
		ids = append(ids, src)
	}
	return gg.ordered(ids)
}

func (gg *gonumGraph) HasEdgeFromTo(uid, vid int64) bool {
	_, ok := gg.out[uid][vid]
	return ok
}

func (gg *gonumGraph) HasEdgeBetween(xid, yid int64) bool {
	return gg.HasEdgeFromTo(xid, yid) || gg.HasEdgeFromTo(yid, xid)
}

func (gg *gonumGraph) Edge(uid, vid int64) graph.Edge {
	fields, ok := gg.out[uid][vid]
	if !ok {
		return nil
	}
	return gonumEdge{from: gg.nodes[uid], to: gg.nodes[vid], fields: fields}
}

// Graphviz returns the graph in the dot format, labelled with label
func (g *Graph) Graphviz(label string) (string, error) {
	b, err := dot.Marshal(newGonumGraph(g), fmt.Sprintf("%q", label), "", "  ")
	if err != nil {
		return "", fmt.Errorf("could not marshal points-to graph: %w", err)
	}
	return string(b), nil
}

type dgmlDocument struct {
	XMLName xml.Name    `xml:"DirectedGraph"`
	Xmlns   string      `xml:"xmlns,attr"`
	Nodes   []dgmlNode  `xml:"Nodes>Node"`
	Links   []dgmlLink  `xml:"Links>Link"`
	Styles  []dgmlStyle `xml:"Styles>Style"`
}

type dgmlNode struct {
	ID              string `xml:"Id,attr"`
	Label           string `xml:"Label,attr"`
	Category        string `xml:"Category,attr,omitempty"`
	Background      string `xml:"Background,attr,omitempty"`
	StrokeDashArray string `xml:"StrokeDashArray,attr,omitempty"`
}

type dgmlLink struct {
	Source string `xml:"Source,attr"`
	Target string `xml:"Target,attr"`
	Label  string `xml:"Label,attr,omitempty"`
}

type dgmlStyle struct {
	TargetType string       `xml:"TargetType,attr"`
	GroupLabel string       `xml:"GroupLabel,attr"`
	Condition  dgmlCond     `xml:"Condition"`
	Setters    []dgmlSetter `xml:"Setter"`
}

type dgmlCond struct {
	Expression string `xml:"Expression,attr"`
}

type dgmlSetter struct {
	Property string `xml:"Property,attr"`
	Value    string `xml:"Value,attr"`
}

// DGML returns the graph in the Directed Graph Markup Language. Variables are root nodes linked to their targets,
// heap nodes are coloured by kind and field edges are labelled with the field name.
func (g *Graph) DGML() (string, error) {
	doc := dgmlDocument{Xmlns: "http://schemas.microsoft.com/vs/2009/dgml"}
	for _, v := range g.Variables() {
		id := "var:" + v.Name
		doc.Nodes = append(doc.Nodes, dgmlNode{ID: id, Label: v.Name, Category: "Root"})
		for _, t := range g.Targets(v) {
			doc.Links = append(doc.Links, dgmlLink{Source: id, Target: fmt.Sprint(t)})
		}
	}
	for _, n := range g.nodes {
		dn := dgmlNode{ID: fmt.Sprint(n.ID), Label: n.String(), Category: n.Kind.String()}
		switch n.Kind {
		case KindNull:
			dn.Background = "Yellow"
		case KindDelegate:
			dn.Background = "Cyan"
		case KindParameter:
			dn.Background = "Red"
			dn.StrokeDashArray = "6,6"
		case KindUnknown:
			dn.Background = "#FFB445"
			dn.StrokeDashArray = "6,6"
		}
		doc.Nodes = append(doc.Nodes, dn)
	}
	for _, e := range g.Edges() {
		doc.Links = append(doc.Links, dgmlLink{Source: fmt.Sprint(e.Src), Target: fmt.Sprint(e.Dst), Label: e.Field})
	}
	doc.Styles = []dgmlStyle{{
		TargetType: "Node",
		GroupLabel: "Root",
		Condition:  dgmlCond{Expression: "HasCategory('Root')"},
		Setters:    []dgmlSetter{{Property: "Background", Value: "Gray"}},
	}}
	b, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("could not marshal points-to graph: %w", err)
	}
	return xml.Header + string(b), nil
}
