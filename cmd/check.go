package cmd

import (
	"context"
	"fmt"
	"k8sviz/internal/collector"
	"k8sviz/internal/config"
	"k8sviz/internal/kube"
	"k8sviz/internal/neo4j"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate k8sviz configuration and connections",
	Long:  `Validate k8sviz configuration and verify connections.`,
}

var checkDatabaseCmd = &cobra.Command{
	Use:   "database",
	Short: "Check Neo4j database connectivity",
	Long: `Verify that k8sviz can connect to the Neo4j database using
the credentials from the configuration file (.k8sviz.yaml) or flags.

Example:
  k8sviz check database`,
	RunE: runCheckDatabase,
}

var checkClusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Check Kubernetes control plane connectivity",
	Long: `Verify that k8sviz can reach the Kubernetes API server with the
configured kubeconfig and context, and that the namespace exists.

Example:
  k8sviz check cluster -n payments`,
	RunE: runCheckCluster,
}

func runCheckDatabase(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadAndMerge(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if !config.Exists() {
		fmt.Println("⚠ Warning: No configuration file found.")
		fmt.Println("  Run 'k8sviz init' to create one.")
		fmt.Println("  Using default values...")
		fmt.Println()
	}

	// Display connection info (without password)
	fmt.Println("Neo4j Connection Settings:")
	fmt.Printf("  URI:  %s\n", cfg.Neo4j.URI)
	fmt.Printf("  User: %s\n", cfg.Neo4j.User)
	fmt.Println()

	if cfg.Neo4j.Password == "" {
		return fmt.Errorf("neo4j password is not set in configuration file")
	}

	logrus.Infof("Connecting to Neo4j at %s...", cfg.Neo4j.URI)
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Timeout)
	defer cancel()

	client, err := neo4j.NewClient(cfg.Neo4j.URI, cfg.Neo4j.User, cfg.Neo4j.Password)
	if err != nil {
		return fmt.Errorf("failed to create neo4j client: %w", err)
	}
	defer client.Close(ctx)

	if err := client.VerifyConnectivity(ctx); err != nil {
		return fmt.Errorf("failed to connect to neo4j: %w", err)
	}

	fmt.Println("✓ Successfully connected to Neo4j database!")
	return nil
}

func runCheckCluster(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadAndMerge(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	restCfg, err := kube.RESTConfig(cfg.Kubeconfig, cfg.Context)
	if err != nil {
		return err
	}
	fmt.Println("Kubernetes Connection Settings:")
	fmt.Printf("  Server:    %s\n", restCfg.Host)
	fmt.Printf("  Namespace: %s\n", cfg.Namespace)
	fmt.Println()

	client, err := kube.NewClientset(cfg.Kubeconfig, cfg.Context)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Timeout)
	defer cancel()
	if err := collector.Ping(ctx, client, cfg.Namespace); err != nil {
		return err
	}

	fmt.Printf("✓ Namespace %q is reachable.\n", cfg.Namespace)
	return nil
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.AddCommand(checkDatabaseCmd)
	checkCmd.AddCommand(checkClusterCmd)

	registerNeo4jFlags(checkDatabaseCmd)
	checkDatabaseCmd.Flags().Duration("timeout", defaultTimeout, "Timeout for the connectivity check")
	registerClusterFlags(checkClusterCmd)
}
