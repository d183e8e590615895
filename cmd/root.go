package cmd

import (
	"context"
	"fmt"
	"k8sviz/internal/config"
	"k8sviz/internal/runner"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const defaultTimeout = 30 * time.Second

var rootCmd = &cobra.Command{
	Use:   "k8sviz",
	Short: "Generate a relationship diagram of the workloads in a Kubernetes namespace",
	Long: `k8sviz lists the DaemonSets, Pods, Deployments, StatefulSets, Jobs and
CronJobs of one namespace, infers how they relate and renders the result as a
directed graph.

Relationships:
  - a DaemonSet is linked to every Pod with exactly the same nodeSelector
  - every Deployment is linked to every StatefulSet
  - Jobs and CronJobs are shown without links

The output format follows the file extension (png, svg, pdf, dot, json, cypher)
unless --format is given. Raster formats need the Graphviz 'dot' binary.

Examples:
  # Render the default namespace to k8sviz.png
  k8sviz

  # Render a namespace as SVG using another kubeconfig context
  k8sviz -n payments -o payments.svg --context prod

  # Render and also push the graph to Neo4j
  k8sviz -n payments --update --neo4j-pass=secret`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setupLogging,
	RunE:              runViz,
}

func runViz(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadAndMerge(cmd)
	if err != nil {
		return err
	}

	return runner.New(cfg).Run(cmd.Context())
}

func setupLogging(cmd *cobra.Command, args []string) error {
	logrus.SetOutput(os.Stderr)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	verbose, _ := cmd.Flags().GetBool("verbose")
	if verbose {
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.InfoLevel)
	}
	return nil
}

// Execute runs the root command and exits non-zero on any error.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")

	registerClusterFlags(rootCmd)
	rootCmd.Flags().StringP("outfile", "o", "k8sviz.png", "Output filename")
	rootCmd.Flags().String("format", "", "Output format (png, svg, pdf, dot, json, cypher); defaults to the outfile extension")
	rootCmd.Flags().String("dot-binary", "dot", "Graphviz executable used for raster formats")
	rootCmd.Flags().Bool("update", false, "Also push the graph to a Neo4j database")
	registerNeo4jFlags(rootCmd)
}

func registerClusterFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("namespace", "n", "default", "Kubernetes namespace")
	cmd.Flags().String("kubeconfig", "", "Path to the kubeconfig file (defaults to $KUBECONFIG or ~/.kube/config)")
	cmd.Flags().String("context", "", "Kubeconfig context to use")
	cmd.Flags().Duration("timeout", defaultTimeout, "Timeout for control plane requests")
}

func registerNeo4jFlags(cmd *cobra.Command) {
	cmd.Flags().String("neo4j-uri", "bolt://localhost:7687", "URI for the Neo4j database")
	cmd.Flags().String("neo4j-user", "neo4j", "Username for the Neo4j database")
	cmd.Flags().String("neo4j-pass", "", "Password for the Neo4j database")
}
