package cmd

import (
	"k8sviz/internal/config"
	"k8sviz/internal/docker"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run a local Neo4j for 'k8sviz update' in Docker",
	Long: `Run the k8sviz-neo4j container that 'k8sviz update' and '--update' export to.

Credentials and image come from .k8sviz.yaml (see 'k8sviz init') unless
overridden by flags. The image is pulled on first use, ports 7474 and 7687
are bound to localhost and the data directory is mounted as /data, so the
graph survives 'k8sviz stop'. An existing stopped container is restarted
as-is.

Examples:
  k8sviz start
  k8sviz start --neo4j-image neo4j:5 --data-dir /var/lib/k8sviz`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadAndMerge(cmd)
	if err != nil {
		return err
	}
	dataDir, _ := cmd.Flags().GetString("data-dir")

	logrus.WithFields(logrus.Fields{
		"image":    cfg.Neo4j.DockerImage,
		"data_dir": dataDir,
	}).Debug("Starting Neo4j container")

	return docker.StartContainer(cmd.Context(), docker.StartContainerOptions{
		Config:  cfg,
		DataDir: dataDir,
		Out:     cmd.OutOrStdout(),
	})
}

func init() {
	rootCmd.AddCommand(startCmd)

	registerNeo4jFlags(startCmd)
	startCmd.Flags().String("neo4j-image", "", "Neo4j Docker image (defaults to neo4j.docker_image from the config)")
	startCmd.Flags().String("data-dir", docker.DataDir, "Host directory mounted as the Neo4j data volume")
}
