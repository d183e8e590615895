package cmd

import (
	"crypto/rand"
	"fmt"
	"k8sviz/internal/config"
	"k8sviz/internal/docker"
	"k8sviz/internal/git"
	"os"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize k8sviz configuration",
	Long: `Initialize k8sviz configuration and settings.

Creates a .k8sviz.yaml configuration file in the current directory with
default values and a randomly generated Neo4j password. Also creates the
neo4j-data directory used by 'k8sviz start'.

The configuration file will be created with the following default values:
  - namespace: default
  - outfile: k8sviz.png
  - neo4j.uri: bolt://localhost:7687
  - neo4j.user: neo4j
  - neo4j.password: (randomly generated)
  - neo4j.docker_image: neo4j:community

Example:
  k8sviz init`,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath := config.ConfigFileName + "." + config.ConfigFileType

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists at %s", configPath)
	}

	cfg := config.DefaultConfig()

	password, err := generateRandomPassword(16)
	if err != nil {
		return fmt.Errorf("failed to generate random password: %w", err)
	}
	cfg.Neo4j.Password = password

	if err := config.Save(cfg, configPath); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	if err := os.MkdirAll(docker.DataDir, 0755); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", docker.DataDir, err)
	}

	fmt.Printf("✓ Created configuration file: %s\n\n", configPath)
	fmt.Println("Default configuration:")
	fmt.Printf("  namespace: %s\n", cfg.Namespace)
	fmt.Printf("  outfile: %s\n", cfg.OutFile)
	fmt.Printf("  neo4j.uri: %s\n", cfg.Neo4j.URI)
	fmt.Printf("  neo4j.user: %s\n", cfg.Neo4j.User)
	fmt.Printf("  neo4j.password: %s\n", cfg.Neo4j.Password)
	fmt.Printf("  neo4j.docker_image: %s\n\n", cfg.Neo4j.DockerImage)
	fmt.Printf("✓ Created data directory: %s\n", docker.DataDir)

	if err := git.UpdateGitignore(".", git.IgnoredEntries, os.Stdout); err != nil {
		// Not fatal; the config file is already written.
		fmt.Fprintf(os.Stderr, "Warning: failed to update .gitignore: %v\n", err)
		fmt.Println("Please manually add '.k8sviz.yaml' and 'neo4j-data/' to your .gitignore file.")
	}

	return nil
}

// generateRandomPassword generates a random alphanumeric password of the specified length
func generateRandomPassword(length int) (string, error) {
	// Alphanumeric only, so the value is safe inside NEO4J_AUTH.
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	for i := range bytes {
		bytes[i] = charset[int(bytes[i])%len(charset)]
	}
	return string(bytes), nil
}

func init() {
	rootCmd.AddCommand(initCmd)
}
