package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	ConfigFileName = ".k8sviz"
	ConfigFileType = "yaml"
	EnvPrefix      = "K8SVIZ"
)

// Config holds the configuration for k8sviz.
type Config struct {
	Namespace  string        `mapstructure:"namespace"`
	OutFile    string        `mapstructure:"outfile"`
	Format     string        `mapstructure:"format"`
	Kubeconfig string        `mapstructure:"kubeconfig"`
	Context    string        `mapstructure:"context"`
	Timeout    time.Duration `mapstructure:"timeout"`
	DotBinary  string        `mapstructure:"dot_binary"`
	Update     bool          `mapstructure:"update"`
	Neo4j      Neo4jConfig   `mapstructure:"neo4j"`
}

// Neo4jConfig holds the Neo4j connection settings used by --update.
type Neo4jConfig struct {
	URI         string `mapstructure:"uri"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	DockerImage string `mapstructure:"docker_image"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Namespace: "default",
		OutFile:   "k8sviz.png",
		Format:    "",
		Timeout:   30 * time.Second,
		DotBinary: "dot",
		Neo4j: Neo4jConfig{
			URI:         "bolt://localhost:7687",
			User:        "neo4j",
			Password:    "",
			DockerImage: "neo4j:community",
		},
	}
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigName(ConfigFileName)
	v.SetConfigType(ConfigFileType)
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultConfig()
	v.SetDefault("namespace", defaults.Namespace)
	v.SetDefault("outfile", defaults.OutFile)
	v.SetDefault("format", defaults.Format)
	v.SetDefault("kubeconfig", defaults.Kubeconfig)
	v.SetDefault("context", defaults.Context)
	v.SetDefault("timeout", defaults.Timeout)
	v.SetDefault("dot_binary", defaults.DotBinary)
	v.SetDefault("update", defaults.Update)
	v.SetDefault("neo4j.uri", defaults.Neo4j.URI)
	v.SetDefault("neo4j.user", defaults.Neo4j.User)
	v.SetDefault("neo4j.password", defaults.Neo4j.Password)
	v.SetDefault("neo4j.docker_image", defaults.Neo4j.DockerImage)
	return v
}

// Load reads the configuration from .k8sviz.yaml in the current directory or
// $HOME, with K8SVIZ_* environment variables taking precedence over the file.
func Load() (*Config, error) {
	v := newViper()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// LoadAndMerge loads configuration from file and merges it with CLI flags.
// Priority: flags > environment > config file > defaults
func LoadAndMerge(cmd *cobra.Command) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	stringFlags := map[string]*string{
		"namespace":   &cfg.Namespace,
		"outfile":     &cfg.OutFile,
		"format":      &cfg.Format,
		"kubeconfig":  &cfg.Kubeconfig,
		"context":     &cfg.Context,
		"dot-binary":  &cfg.DotBinary,
		"neo4j-uri":   &cfg.Neo4j.URI,
		"neo4j-user":  &cfg.Neo4j.User,
		"neo4j-pass":  &cfg.Neo4j.Password,
		"neo4j-image": &cfg.Neo4j.DockerImage,
	}
	for name, dst := range stringFlags {
		if flags.Lookup(name) != nil && flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}

	if flags.Lookup("timeout") != nil && flags.Changed("timeout") {
		cfg.Timeout, _ = flags.GetDuration("timeout")
	}
	if flags.Lookup("update") != nil && flags.Changed("update") {
		cfg.Update, _ = flags.GetBool("update")
	}

	return cfg, nil
}

// Validate checks the settings needed for a render run.
func (c *Config) Validate() error {
	if c.Namespace == "" {
		return fmt.Errorf("namespace must not be empty")
	}
	if c.OutFile == "" {
		return fmt.Errorf("output file must not be empty")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	return nil
}

// Validate checks the settings needed to export to Neo4j.
func (c *Neo4jConfig) Validate() error {
	if c.URI == "" || c.User == "" || c.Password == "" {
		return fmt.Errorf("neo4j-uri, neo4j-user, and neo4j-pass are required when exporting to Neo4j. Please configure them in .k8sviz.yaml or pass them as flags")
	}
	return nil
}

// Save writes the configuration to a .k8sviz.yaml file.
func Save(cfg *Config, path string) error {
	if path == "" {
		path = fmt.Sprintf("%s.%s", ConfigFileName, ConfigFileType)
	}

	v := viper.New()
	v.Set("namespace", cfg.Namespace)
	v.Set("outfile", cfg.OutFile)
	v.Set("timeout", cfg.Timeout.String())
	v.Set("neo4j.uri", cfg.Neo4j.URI)
	v.Set("neo4j.user", cfg.Neo4j.User)
	v.Set("neo4j.password", cfg.Neo4j.Password)
	v.Set("neo4j.docker_image", cfg.Neo4j.DockerImage)

	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	// The file holds the Neo4j password.
	if err := os.Chmod(path, 0600); err != nil {
		return fmt.Errorf("failed to set secure permissions on config file: %w", err)
	}

	return nil
}

// Exists checks if a config file exists in the current directory.
func Exists() bool {
	v := viper.New()
	v.SetConfigName(ConfigFileName)
	v.SetConfigType(ConfigFileType)
	v.AddConfigPath(".")

	err := v.ReadInConfig()
	return err == nil
}
