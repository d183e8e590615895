package cmd

import (
	"k8sviz/internal/config"
	"k8sviz/internal/graph"
	"k8sviz/internal/parser"
	"k8sviz/internal/runner"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update a Neo4j database with the workload relationship graph",
	Long: `k8sviz update collects the workloads of a namespace, infers their
relationships and pushes the resulting graph to a Neo4j database without
rendering an image.

Workloads are stored as :Workload nodes keyed by id and namespace; inferred
relationships as [:INFERRED {relation}] edges. Running update again replaces
the namespace's previous graph.

With --from-dot, a DOT file written by 'k8sviz -o graph.dot' is exported
instead and the cluster is not contacted.

Examples:
  k8sviz update -n payments
  k8sviz update --from-dot payments.dot`,
	RunE: runUpdate,
}

func runUpdate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadAndMerge(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.Neo4j.Validate(); err != nil {
		return err
	}

	r := runner.New(cfg)

	var g *graph.Graph
	if dotFile, _ := cmd.Flags().GetString("from-dot"); dotFile != "" {
		logrus.WithField("file", dotFile).Info("Reading graph from DOT file...")
		g, err = parser.ParseFile(dotFile)
		if err != nil {
			return err
		}
		if g.Namespace == "" {
			g.Namespace = cfg.Namespace
		}
	} else {
		g, err = r.Graph(cmd.Context())
		if err != nil {
			return err
		}
	}

	return r.Export(cmd.Context(), g)
}

func init() {
	rootCmd.AddCommand(updateCmd)

	registerClusterFlags(updateCmd)
	registerNeo4jFlags(updateCmd)
	updateCmd.Flags().String("from-dot", "", "Export a previously rendered DOT file instead of reading the cluster")
}
