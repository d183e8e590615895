package neo4j

import (
	"context"
	"fmt"
	"k8sviz/internal/formatter"
	"k8sviz/internal/graph"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Client handles the connection and communication with a Neo4j database.
type Client struct {
	Driver neo4j.DriverWithContext
}

// NewClient creates a new Neo4j client and establishes a connection.
func NewClient(uri, user, pass string) (*Client, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, pass, ""))
	if err != nil {
		return nil, fmt.Errorf("could not create neo4j driver: %w", err)
	}

	return &Client{Driver: driver}, nil
}

// Close gracefully shuts down the driver.
func (c *Client) Close(ctx context.Context) error {
	return c.Driver.Close(ctx)
}

// VerifyConnectivity checks if a connection can be established with the database.
func (c *Client) VerifyConnectivity(ctx context.Context) error {
	return c.Driver.VerifyConnectivity(ctx)
}

// UpdateGraph replaces the stored workloads of the graph's namespace with the
// current graph. Workloads of other namespaces are left alone.
func (c *Client) UpdateGraph(ctx context.Context, g *graph.Graph) error {
	session := c.Driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		existingIDs, err := c.fetchExistingWorkloadIDs(ctx, tx, g.Namespace)
		if err != nil {
			return nil, err
		}

		if err := c.deleteObsoleteWorkloads(ctx, tx, existingIDs, g); err != nil {
			return nil, err
		}

		// Inferred edges are recomputed on every run.
		if err := c.deleteRelationships(ctx, tx, g.Namespace); err != nil {
			return nil, err
		}

		return c.upsertGraph(ctx, tx, g)
	})

	if err != nil {
		return fmt.Errorf("failed to update graph: %w", err)
	}

	return nil
}

// fetchExistingWorkloadIDs retrieves the workload IDs stored for a namespace.
func (c *Client) fetchExistingWorkloadIDs(ctx context.Context, tx neo4j.ManagedTransaction, namespace string) (map[string]bool, error) {
	query := "MATCH (n:Workload {namespace: $namespace}) RETURN n.id as id"
	result, err := tx.Run(ctx, query, map[string]interface{}{"namespace": namespace})
	if err != nil {
		return nil, fmt.Errorf("failed to query existing workloads: %w", err)
	}

	existingIDs := make(map[string]bool)
	for result.Next(ctx) {
		record := result.Record()
		if id, ok := record.Get("id"); ok {
			if idStr, ok := id.(string); ok {
				existingIDs[idStr] = true
			}
		}
	}

	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate existing workloads: %w", err)
	}

	return existingIDs, nil
}

// obsoleteIDs returns the stored IDs that are not part of g.
func obsoleteIDs(existingIDs map[string]bool, g *graph.Graph) []string {
	newIDs := make(map[string]bool, len(g.Nodes))
	for _, node := range g.Nodes {
		newIDs[node.ID] = true
	}

	var ids []string
	for existingID := range existingIDs {
		if !newIDs[existingID] {
			ids = append(ids, existingID)
		}
	}
	return ids
}

// deleteObsoleteWorkloads removes workloads that exist in Neo4j but not in the new graph.
func (c *Client) deleteObsoleteWorkloads(ctx context.Context, tx neo4j.ManagedTransaction, existingIDs map[string]bool, g *graph.Graph) error {
	idsToDelete := obsoleteIDs(existingIDs, g)
	if len(idsToDelete) == 0 {
		return nil
	}

	query := "UNWIND $obsoleteIds AS obsoleteId MATCH (n:Workload {id: obsoleteId, namespace: $namespace}) DETACH DELETE n"
	params := map[string]interface{}{"obsoleteIds": idsToDelete, "namespace": g.Namespace}
	if _, err := tx.Run(ctx, query, params); err != nil {
		return fmt.Errorf("failed to delete obsolete workloads: %w", err)
	}
	return nil
}

func (c *Client) deleteRelationships(ctx context.Context, tx neo4j.ManagedTransaction, namespace string) error {
	query := "MATCH (:Workload {namespace: $namespace})-[r:" + formatter.InferredRelationship + "]->() DELETE r"
	if _, err := tx.Run(ctx, query, map[string]interface{}{"namespace": namespace}); err != nil {
		return fmt.Errorf("failed to delete stale relationships: %w", err)
	}
	return nil
}

// upsertGraph inserts or updates the current graph state in Neo4j.
func (c *Client) upsertGraph(ctx context.Context, tx neo4j.ManagedTransaction, g *graph.Graph) (interface{}, error) {
	if len(g.Nodes) == 0 {
		return nil, nil
	}
	query, params := formatter.ToCypherTransaction(g)
	result, err := tx.Run(ctx, query, params)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert graph: %w", err)
	}
	return result.Consume(ctx)
}
