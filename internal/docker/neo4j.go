package docker

import (
	"context"
	"fmt"
	"io"
	"k8sviz/internal/config"
	"os"
	"path/filepath"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/sirupsen/logrus"
)

const (
	// ContainerName is the name of the Neo4j container managed by k8sviz.
	ContainerName = "k8sviz-neo4j"
	// DataDir is mounted into the container as /data.
	DataDir = "neo4j-data"
)

var neo4jPorts = []string{"7474", "7687"}

// API is the subset of the Docker client used here.
type API interface {
	ImageList(ctx context.Context, options image.ListOptions) ([]image.Summary, error)
	ImagePull(ctx context.Context, ref string, options image.PullOptions) (io.ReadCloser, error)
	ContainerList(ctx context.Context, options container.ListOptions) ([]container.Summary, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
}

// StartContainerOptions configures StartContainer.
type StartContainerOptions struct {
	Config *config.Config
	// DataDir defaults to ./neo4j-data.
	DataDir string
	Client  API
	Out     io.Writer
}

// NewClient connects to the Docker daemon from the environment.
func NewClient() (*client.Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker client: %w", err)
	}
	return cli, nil
}

// StartContainer pulls the configured Neo4j image if needed and starts the
// k8sviz-neo4j container with the data directory mounted.
func StartContainer(ctx context.Context, opts StartContainerOptions) error {
	if opts.Config == nil {
		return fmt.Errorf("no configuration given")
	}
	if err := opts.Config.Neo4j.Validate(); err != nil {
		return err
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.DataDir == "" {
		opts.DataDir = DataDir
	}

	cli := opts.Client
	if cli == nil {
		c, err := NewClient()
		if err != nil {
			return err
		}
		defer c.Close()
		cli = c
	}

	existing, err := findContainer(ctx, cli)
	if err != nil {
		return err
	}
	if existing != nil {
		if existing.State == "running" {
			fmt.Fprintf(opts.Out, "✓ Container %s is already running\n", ContainerName)
			return nil
		}
		fmt.Fprintf(opts.Out, "Starting existing container %s...\n", ContainerName)
		if err := cli.ContainerStart(ctx, existing.ID, container.StartOptions{}); err != nil {
			return fmt.Errorf("failed to start container: %w", err)
		}
		fmt.Fprintf(opts.Out, "✓ Container %s started\n", ContainerName)
		return nil
	}

	imageRef := opts.Config.Neo4j.DockerImage
	if err := ensureImage(ctx, cli, imageRef); err != nil {
		return err
	}

	dataDir, err := filepath.Abs(opts.DataDir)
	if err != nil {
		return fmt.Errorf("failed to resolve data directory: %w", err)
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	containerCfg, hostCfg := containerSpec(opts.Config, dataDir)
	resp, err := cli.ContainerCreate(ctx, containerCfg, hostCfg, nil, nil, ContainerName)
	if err != nil {
		return fmt.Errorf("failed to create container: %w", err)
	}
	if err := cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return fmt.Errorf("failed to start container: %w", err)
	}

	fmt.Fprintf(opts.Out, "✓ Container %s started from %s\n", ContainerName, imageRef)
	fmt.Fprintf(opts.Out, "  Browser: http://localhost:7474\n  Bolt:    bolt://localhost:7687\n")
	return nil
}

// StopContainer stops and removes the k8sviz-neo4j container. Data in the
// mounted directory is preserved.
func StopContainer(ctx context.Context, cli API, out io.Writer) error {
	existing, err := findContainer(ctx, cli)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("container %s not found", ContainerName)
	}

	fmt.Fprintf(out, "Stopping container %s...\n", ContainerName)
	timeout := 10 // seconds
	if err := cli.ContainerStop(ctx, existing.ID, container.StopOptions{Timeout: &timeout}); err != nil {
		// Already stopped containers can still be removed.
		logrus.WithError(err).Warn("failed to stop container")
	} else {
		fmt.Fprintf(out, "✓ Container stopped\n")
	}

	fmt.Fprintf(out, "Removing container %s...\n", ContainerName)
	if err := cli.ContainerRemove(ctx, existing.ID, container.RemoveOptions{Force: true}); err != nil {
		return fmt.Errorf("failed to remove container: %w", err)
	}

	fmt.Fprintf(out, "✓ Container %s removed successfully\n", ContainerName)
	return nil
}

func findContainer(ctx context.Context, cli API) (*container.Summary, error) {
	containers, err := cli.ContainerList(ctx, container.ListOptions{All: true})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}
	for i, c := range containers {
		for _, name := range c.Names {
			if name == "/"+ContainerName {
				return &containers[i], nil
			}
		}
	}
	return nil, nil
}

func ensureImage(ctx context.Context, cli API, ref string) error {
	images, err := cli.ImageList(ctx, image.ListOptions{Filters: filters.NewArgs(filters.Arg("reference", ref))})
	if err != nil {
		return fmt.Errorf("failed to list images: %w", err)
	}
	if len(images) > 0 {
		return nil
	}

	logrus.WithField("image", ref).Info("Pulling image")
	rc, err := cli.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image %s: %w", ref, err)
	}
	defer rc.Close()
	// The pull only completes once the progress stream is drained.
	if _, err := io.Copy(io.Discard, rc); err != nil {
		return fmt.Errorf("failed to pull image %s: %w", ref, err)
	}
	return nil
}

func containerSpec(cfg *config.Config, dataDir string) (*container.Config, *container.HostConfig) {
	exposed := nat.PortSet{}
	bindings := nat.PortMap{}
	for _, p := range neo4jPorts {
		port := nat.Port(p + "/tcp")
		exposed[port] = struct{}{}
		bindings[port] = []nat.PortBinding{{HostIP: "127.0.0.1", HostPort: p}}
	}

	containerCfg := &container.Config{
		Image:        cfg.Neo4j.DockerImage,
		Env:          []string{fmt.Sprintf("NEO4J_AUTH=%s/%s", cfg.Neo4j.User, cfg.Neo4j.Password)},
		ExposedPorts: exposed,
	}
	hostCfg := &container.HostConfig{
		PortBindings:  bindings,
		Binds:         []string{dataDir + ":/data"},
		RestartPolicy: container.RestartPolicy{Name: container.RestartPolicyUnlessStopped},
	}
	return containerCfg, hostCfg
}
