package cmd

import (
	"fmt"
	"k8sviz/internal/docker"

	"github.com/spf13/cobra"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop and remove the Neo4j Docker container",
	Long: `Stop and remove the Neo4j Docker container started with 'k8sviz start'.

This command will:
  - Stop the running Neo4j container
  - Remove the container
  - Preserve the data in the neo4j-data directory

Example:
  k8sviz stop`,
	RunE: runStop,
}

func runStop(cmd *cobra.Command, args []string) error {
	cli, err := docker.NewClient()
	if err != nil {
		return err
	}
	defer cli.Close()

	if err := docker.StopContainer(cmd.Context(), cli, cmd.OutOrStdout()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\nNote: Data has been preserved in the %s directory\n", docker.DataDir)
	return nil
}

func init() {
	rootCmd.AddCommand(stopCmd)
}
