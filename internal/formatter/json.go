package formatter

import (
	"encoding/json"
	"io"
	"k8sviz/internal/graph"
	"strings"
)

// WriteJSON encodes g as indented JSON. Node and edge slices are always
// written as arrays, so an empty namespace yields "nodes": [].
func WriteJSON(w io.Writer, g *graph.Graph) error {
	doc := *g
	if doc.Nodes == nil {
		doc.Nodes = []graph.Node{}
	}
	if doc.Edges == nil {
		doc.Edges = []graph.Edge{}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(doc)
}

// ToJSON returns the JSON document written by WriteJSON.
func ToJSON(g *graph.Graph) (string, error) {
	var sb strings.Builder
	if err := WriteJSON(&sb, g); err != nil {
		return "", err
	}
	return sb.String(), nil
}
