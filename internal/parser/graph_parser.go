package parser

import (
	"fmt"
	"k8sviz/internal/formatter"
	"k8sviz/internal/graph"
	"os"
	"strconv"
	"strings"

	"github.com/awalterschulze/gographviz"
)

// unquote strips DOT string quoting, leaving bare IDs untouched.
func unquote(s string) string {
	if unquoted, err := strconv.Unquote(s); err == nil {
		return unquoted
	}
	return s
}

// ParseGraph converts a digraph written by formatter.ToDOT back into a graph.
// Node labels of the form "{kind}: {name}" are split into Kind and Name.
func ParseGraph(dotGraph *gographviz.Graph) (*graph.Graph, error) {
	if dotGraph == nil {
		return nil, fmt.Errorf("dot graph is nil")
	}

	g := &graph.Graph{
		Namespace: formatter.NamespaceFromComment(dotGraph.Attrs["comment"]),
		Nodes:     make([]graph.Node, 0, len(dotGraph.Nodes.Nodes)),
		Edges:     make([]graph.Edge, 0, len(dotGraph.Edges.Edges)),
	}

	for _, n := range dotGraph.Nodes.Nodes {
		id := unquote(n.Name)
		label := id
		if l, ok := n.Attrs["label"]; ok {
			label = unquote(l)
		}
		kind, name, _ := strings.Cut(label, ": ")
		g.Nodes = append(g.Nodes, graph.Node{
			ID:        id,
			Kind:      kind,
			Name:      name,
			Namespace: g.Namespace,
		})
	}

	for _, e := range dotGraph.Edges.Edges {
		g.Edges = append(g.Edges, graph.Edge{
			From:     unquote(e.Src),
			To:       unquote(e.Dst),
			Relation: unquote(e.Attrs["tooltip"]),
		})
	}

	return g, nil
}

// ParseString parses DOT source into a graph.
func ParseString(dot string) (*graph.Graph, error) {
	graphAst, err := gographviz.ParseString(dot)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DOT: %w", err)
	}

	dotGraph := gographviz.NewGraph()
	if err := gographviz.Analyse(graphAst, dotGraph); err != nil {
		return nil, fmt.Errorf("failed to analyse graph: %w", err)
	}

	return ParseGraph(dotGraph)
}

// ParseFile reads a DOT file from disk.
func ParseFile(path string) (*graph.Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return ParseString(string(data))
}
