package formatter

import (
	"fmt"
	"k8sviz/internal/graph"
	"strconv"
	"strings"

	"github.com/awalterschulze/gographviz"
)

const (
	// DotGraphName is the name of the digraph written by ToDOT.
	DotGraphName = "k8sviz"

	namespaceCommentPrefix = "namespace="
)

// ToDOTGraph converts a graph into a gographviz digraph. Nodes are boxes
// labelled with their ID; the namespace is kept in the graph comment and
// each edge's relation in its tooltip.
func ToDOTGraph(g *graph.Graph) (*gographviz.Graph, error) {
	dot := gographviz.NewGraph()
	if err := dot.SetName(DotGraphName); err != nil {
		return nil, err
	}
	if err := dot.SetDir(true); err != nil {
		return nil, err
	}
	if g.Namespace != "" {
		if err := dot.AddAttr(DotGraphName, "comment", strconv.Quote(namespaceCommentPrefix+g.Namespace)); err != nil {
			return nil, err
		}
	}

	for _, node := range g.Nodes {
		attrs := map[string]string{
			"shape": "box",
			"label": strconv.Quote(node.ID),
		}
		if err := dot.AddNode(DotGraphName, strconv.Quote(node.ID), attrs); err != nil {
			return nil, fmt.Errorf("failed to add node %s: %w", node.ID, err)
		}
	}

	for _, edge := range g.Edges {
		attrs := map[string]string{}
		if edge.Relation != "" {
			attrs["tooltip"] = strconv.Quote(edge.Relation)
		}
		if err := dot.AddEdge(strconv.Quote(edge.From), strconv.Quote(edge.To), true, attrs); err != nil {
			return nil, fmt.Errorf("failed to add edge %s -> %s: %w", edge.From, edge.To, err)
		}
	}

	return dot, nil
}

// ToDOT renders a graph as Graphviz DOT source.
func ToDOT(g *graph.Graph) (string, error) {
	dot, err := ToDOTGraph(g)
	if err != nil {
		return "", err
	}
	return dot.String(), nil
}

// NamespaceFromComment extracts the namespace stored by ToDOTGraph.
func NamespaceFromComment(comment string) string {
	if unquoted, err := strconv.Unquote(comment); err == nil {
		comment = unquoted
	}
	namespace, _ := strings.CutPrefix(comment, namespaceCommentPrefix)
	if namespace == comment {
		return ""
	}
	return namespace
}
