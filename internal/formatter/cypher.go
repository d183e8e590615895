package formatter

import (
	"bytes"
	"fmt"
	"k8sviz/internal/graph"
	"strings"
)

// InferredRelationship is the Neo4j relationship type used for every edge.
// The rule that produced the edge is kept in its "relation" property.
const InferredRelationship = "INFERRED"

// ToCypher converts a graph object to a series of idempotent Cypher MERGE statements.
func ToCypher(g *graph.Graph) (string, error) {
	var sb strings.Builder

	for _, node := range g.Nodes {
		fmt.Fprintf(&sb, "MERGE (n:Workload {id: %s, namespace: %s})\n", quote(node.ID), quote(node.Namespace))
		fmt.Fprintf(&sb, "SET n.kind = %s, n.name = %s;\n", quote(node.Kind), quote(node.Name))
	}

	sb.WriteString("\n")

	// Assumes the nodes have already been created by the statements above.
	for _, edge := range g.Edges {
		fmt.Fprintf(&sb,
			"MATCH (from:Workload {id: %s, namespace: %s}), (to:Workload {id: %s, namespace: %s})\nMERGE (from)-[:%s {relation: %s}]->(to);\n",
			quote(edge.From), quote(g.Namespace),
			quote(edge.To), quote(g.Namespace),
			InferredRelationship, quote(edge.Relation),
		)
	}

	return sb.String(), nil
}

// ToCypherTransaction converts a graph to a parameterized Cypher query.
// Nodes are matched on (id, namespace) so several namespaces can share a database.
func ToCypherTransaction(g *graph.Graph) (string, map[string]interface{}) {
	var query bytes.Buffer
	params := map[string]interface{}{"namespace": g.Namespace}

	nodesData := make([]map[string]interface{}, len(g.Nodes))
	for i, node := range g.Nodes {
		nodesData[i] = map[string]interface{}{
			"id":   node.ID,
			"kind": node.Kind,
			"name": node.Name,
		}
	}
	params["nodes"] = nodesData

	query.WriteString("UNWIND $nodes AS node_data\n")
	query.WriteString("MERGE (n:Workload {id: node_data.id, namespace: $namespace})\n")
	query.WriteString("SET n.kind = node_data.kind, n.name = node_data.name\n")

	if len(g.Edges) > 0 {
		edgesData := make([]map[string]string, len(g.Edges))
		for i, edge := range g.Edges {
			edgesData[i] = map[string]string{
				"from":     edge.From,
				"to":       edge.To,
				"relation": edge.Relation,
			}
		}
		params["edges"] = edgesData

		query.WriteString("WITH count(*) AS upserted\n")
		query.WriteString("UNWIND $edges AS edge_data\n")
		query.WriteString("MATCH (from:Workload {id: edge_data.from, namespace: $namespace})\n")
		query.WriteString("MATCH (to:Workload {id: edge_data.to, namespace: $namespace})\n")
		query.WriteString("MERGE (from)-[r:" + InferredRelationship + "]->(to)\n")
		query.WriteString("SET r.relation = edge_data.relation\n")
	}

	return query.String(), params
}

// quote renders s as a single-quoted Cypher string literal.
func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return "'" + s + "'"
}
