package formatter

import (
	"encoding/json"
	"k8sviz/internal/graph"
	"strings"
	"testing"

	"github.com/awalterschulze/gographviz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testGraph = &graph.Graph{
	Namespace: "shop",
	Nodes: []graph.Node{
		{ID: "Deployment: web", Kind: "Deployment", Name: "web", Namespace: "shop"},
		{ID: "StatefulSet: db", Kind: "StatefulSet", Name: "db", Namespace: "shop"},
	},
	Edges: []graph.Edge{
		{From: "Deployment: web", To: "StatefulSet: db", Relation: "CROSS_LINK"},
	},
}

func TestToCypherTransaction(t *testing.T) {
	query, params := ToCypherTransaction(testGraph)

	assert.Contains(t, query, "UNWIND $nodes AS node_data")
	assert.Contains(t, query, "UNWIND $edges AS edge_data")
	assert.Contains(t, query, "MERGE (from)-[r:INFERRED]->(to)")

	assert.Equal(t, "shop", params["namespace"])

	nodes, _ := params["nodes"].([]map[string]interface{})
	require.Len(t, nodes, 2)
	assert.Equal(t, "Deployment: web", nodes[0]["id"])
	assert.Equal(t, "Deployment", nodes[0]["kind"])

	edges, _ := params["edges"].([]map[string]string)
	require.Len(t, edges, 1)
	assert.Equal(t, "CROSS_LINK", edges[0]["relation"])
}

func TestToCypherTransactionWithoutEdges(t *testing.T) {
	query, params := ToCypherTransaction(&graph.Graph{
		Namespace: "shop",
		Nodes:     []graph.Node{{ID: "Job: once", Kind: "Job", Name: "once"}},
	})

	assert.NotContains(t, query, "$edges")
	_, ok := params["edges"]
	assert.False(t, ok)
}

func TestToCypher(t *testing.T) {
	out, err := ToCypher(testGraph)
	require.NoError(t, err)

	assert.Contains(t, out, "MERGE (n:Workload {id: 'Deployment: web', namespace: 'shop'})")
	assert.Contains(t, out, "SET n.kind = 'StatefulSet', n.name = 'db';")
	assert.Contains(t, out, "MERGE (from)-[:INFERRED {relation: 'CROSS_LINK'}]->(to);")
}

func TestQuoteEscapes(t *testing.T) {
	assert.Equal(t, `'it\'s'`, quote("it's"))
	assert.Equal(t, `'a\\b'`, quote(`a\b`))
}

func TestToJSON(t *testing.T) {
	out, err := ToJSON(testGraph)
	require.NoError(t, err)

	var decoded graph.Graph
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, *testGraph, decoded)
}

func TestToJSONEmptyGraph(t *testing.T) {
	out, err := ToJSON(&graph.Graph{Namespace: "empty"})
	require.NoError(t, err)

	assert.Contains(t, out, `"nodes": []`)
	assert.Contains(t, out, `"edges": []`)
	assert.True(t, strings.HasSuffix(out, "}\n"))
}

func TestToDOT(t *testing.T) {
	out, err := ToDOT(testGraph)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "digraph k8sviz {"), out)
	assert.Contains(t, out, `"Deployment: web"->"StatefulSet: db"`)
	assert.Contains(t, out, "shape=box")

	ast, err := gographviz.ParseString(out)
	require.NoError(t, err)
	parsed := gographviz.NewGraph()
	require.NoError(t, gographviz.Analyse(ast, parsed))
	assert.Len(t, parsed.Nodes.Nodes, 2)
	assert.Len(t, parsed.Edges.Edges, 1)
	assert.Equal(t, "shop", NamespaceFromComment(parsed.Attrs["comment"]))
}

func TestToDOTEmptyGraph(t *testing.T) {
	out, err := ToDOT(&graph.Graph{})
	require.NoError(t, err)
	assert.Contains(t, out, "digraph k8sviz")
	assert.NotContains(t, out, "->")
}

func TestNamespaceFromComment(t *testing.T) {
	assert.Equal(t, "default", NamespaceFromComment(`"namespace=default"`))
	assert.Equal(t, "default", NamespaceFromComment("namespace=default"))
	assert.Equal(t, "", NamespaceFromComment("something else"))
	assert.Equal(t, "", NamespaceFromComment(""))
}
