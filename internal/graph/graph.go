package graph

// Node is a workload in the relationship graph. ID is the display label
// "{kind}: {name}" and is unique within a graph.
type Node struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Name      string `json:"name"`
	Namespace string `json:"namespace,omitempty"`
}

// Edge is an inferred relationship between two nodes.
type Edge struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Relation string `json:"relation"`
}

// Graph represents the workloads of one namespace and their inferred relationships.
type Graph struct {
	Namespace string `json:"namespace,omitempty"`
	Nodes     []Node `json:"nodes"`
	Edges     []Edge `json:"edges"`
}

// Labels returns the node labels in graph order.
func (g *Graph) Labels() []string {
	labels := make([]string, len(g.Nodes))
	for i, n := range g.Nodes {
		labels[i] = n.ID
	}
	return labels
}

// Pairs returns each edge as a (source label, target label) pair.
func (g *Graph) Pairs() [][2]string {
	pairs := make([][2]string, len(g.Edges))
	for i, e := range g.Edges {
		pairs[i] = [2]string{e.From, e.To}
	}
	return pairs
}
