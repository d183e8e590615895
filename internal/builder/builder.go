package builder

import (
	"k8sviz/internal/graph"
	"k8sviz/internal/resource"
	"maps"
	"sort"

	"k8s.io/apimachinery/pkg/labels"
)

const (
	SelectorMatchRelation = "SELECTOR_MATCH"
	CrossLinkRelation     = "CROSS_LINK"
)

// Link is a relationship produced by a Rule.
type Link struct {
	From     resource.ResourceRef
	To       resource.ResourceRef
	Relation string
}

// Rule infers links from a snapshot. Rules must not modify the snapshot.
type Rule func(snap *resource.Snapshot) []Link

// DefaultRules returns the rules applied when Build is called without any.
func DefaultRules() []Rule {
	return []Rule{DaemonSetPods, DeploymentStatefulSets}
}

// Build constructs the relationship graph of a snapshot.
// Every resource in the snapshot becomes a node; each rule contributes edges.
// Nodes are sorted by ID and edges by (From, To), so equal snapshots always
// produce equal graphs.
func Build(snap *resource.Snapshot, rules ...Rule) *graph.Graph {
	if len(rules) == 0 {
		rules = DefaultRules()
	}

	g := &graph.Graph{
		Namespace: snap.Namespace,
		Nodes:     make([]graph.Node, 0, snap.Len()),
		Edges:     make([]graph.Edge, 0),
	}

	nodes := make(map[string]graph.Node, snap.Len())
	for _, ref := range snap.All() {
		addNode(nodes, ref)
	}

	// The first rule to link a pair names the relation.
	uniqueEdges := make(map[[2]string]string)
	for _, rule := range rules {
		for _, l := range rule(snap) {
			addNode(nodes, l.From)
			addNode(nodes, l.To)
			key := [2]string{l.From.Label(), l.To.Label()}
			if _, ok := uniqueEdges[key]; !ok {
				uniqueEdges[key] = l.Relation
			}
		}
	}

	for _, n := range nodes {
		g.Nodes = append(g.Nodes, n)
	}
	sort.Slice(g.Nodes, func(i, j int) bool {
		return g.Nodes[i].ID < g.Nodes[j].ID
	})

	g.Edges = convertEdgesToSlice(uniqueEdges)
	return g
}

func addNode(nodes map[string]graph.Node, ref resource.ResourceRef) {
	id := ref.Label()
	if _, ok := nodes[id]; ok {
		return
	}
	nodes[id] = graph.Node{
		ID:        id,
		Kind:      string(ref.Kind),
		Name:      ref.Name,
		Namespace: ref.Namespace,
	}
}

// convertEdgesToSlice transforms the unique edges map into a sorted slice.
func convertEdgesToSlice(uniqueEdges map[[2]string]string) []graph.Edge {
	edges := make([]graph.Edge, 0, len(uniqueEdges))
	for key, relation := range uniqueEdges {
		edges = append(edges, graph.Edge{
			From:     key[0],
			To:       key[1],
			Relation: relation,
		})
	}

	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})
	return edges
}

// DaemonSetPods links a DaemonSet to every Pod whose nodeSelector is exactly
// equal to the DaemonSet's pod template nodeSelector. Two empty selectors
// match, so selector-less DaemonSets link to every selector-less Pod.
func DaemonSetPods(snap *resource.Snapshot) []Link {
	pods := snap.Of(resource.KindPod)
	if len(pods) == 0 {
		return nil
	}

	// labels.Set.String sorts keys, so equal selectors share a bucket.
	index := make(map[string][]resource.ResourceRef, len(pods))
	for _, p := range pods {
		key := labels.Set(p.NodeSelector).String()
		index[key] = append(index[key], p)
	}

	var links []Link
	for _, ds := range snap.Of(resource.KindDaemonSet) {
		for _, p := range index[labels.Set(ds.NodeSelector).String()] {
			// The key format is not injective for arbitrary strings; confirm.
			if !maps.Equal(ds.NodeSelector, p.NodeSelector) {
				continue
			}
			links = append(links, Link{From: ds, To: p, Relation: SelectorMatchRelation})
		}
	}
	return links
}

// DeploymentStatefulSets links every Deployment to every StatefulSet.
// This does not reflect any ownership in the cluster.
func DeploymentStatefulSets(snap *resource.Snapshot) []Link {
	deployments := snap.Of(resource.KindDeployment)
	statefulSets := snap.Of(resource.KindStatefulSet)

	links := make([]Link, 0, len(deployments)*len(statefulSets))
	for _, d := range deployments {
		for _, s := range statefulSets {
			links = append(links, Link{From: d, To: s, Relation: CrossLinkRelation})
		}
	}
	return links
}
