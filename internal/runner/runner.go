package runner

import (
	"context"
	"fmt"
	"io"
	"k8sviz/internal/builder"
	"k8sviz/internal/collector"
	"k8sviz/internal/config"
	"k8sviz/internal/graph"
	"k8sviz/internal/kube"
	"k8sviz/internal/neo4j"
	"k8sviz/internal/render"
	"os"

	"github.com/sirupsen/logrus"
	"k8s.io/client-go/kubernetes"
)

// Exporter stores a graph outside of k8sviz.
type Exporter interface {
	UpdateGraph(ctx context.Context, g *graph.Graph) error
}

// Runner executes one k8sviz run. Unset collaborators are created from Config.
type Runner struct {
	Config   *config.Config
	Client   kubernetes.Interface
	Renderer render.Renderer
	Exporter Exporter
	Out      io.Writer
	Log      logrus.FieldLogger
}

// New creates a Runner for cfg writing results to stdout.
func New(cfg *config.Config) *Runner {
	return &Runner{
		Config: cfg,
		Out:    os.Stdout,
		Log:    logrus.StandardLogger(),
	}
}

// Run collects the namespace, infers the relationship graph, renders it to
// the output file and, when requested, exports it to Neo4j.
func (r *Runner) Run(ctx context.Context) error {
	cfg := r.Config
	if err := cfg.Validate(); err != nil {
		return err
	}
	// Fail before touching the cluster if the export cannot happen.
	if cfg.Update && r.Exporter == nil {
		if err := cfg.Neo4j.Validate(); err != nil {
			return err
		}
	}

	renderer, err := r.renderer()
	if err != nil {
		return err
	}

	g, err := r.Graph(ctx)
	if err != nil {
		return err
	}

	r.Log.WithField("path", cfg.OutFile).Info("Rendering graph...")
	renderCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := renderer.Render(renderCtx, g, cfg.OutFile); err != nil {
		return fmt.Errorf("failed to render graph: %w", err)
	}
	fmt.Fprintf(r.Out, "Joined diagram saved as %s\n", cfg.OutFile)

	if cfg.Update {
		return r.Export(ctx, g)
	}
	return nil
}

// Graph collects the configured namespace and builds its relationship graph.
func (r *Runner) Graph(ctx context.Context) (*graph.Graph, error) {
	cfg := r.Config
	client, err := r.client()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	log := r.Log.WithField("namespace", cfg.Namespace)
	log.Info("Collecting workloads...")
	snap, err := collector.New(client).WithLogger(log).Collect(ctx, cfg.Namespace)
	if err != nil {
		return nil, fmt.Errorf("failed to collect workloads: %w", err)
	}

	log.Info("Inferring relationships...")
	g := builder.Build(snap)
	log.WithFields(logrus.Fields{
		"nodes": len(g.Nodes),
		"edges": len(g.Edges),
	}).Info("Graph built")
	return g, nil
}

// Export pushes g to the configured exporter, connecting to Neo4j if none is set.
func (r *Runner) Export(ctx context.Context, g *graph.Graph) error {
	exporter := r.Exporter
	if exporter == nil {
		neo4jCfg := r.Config.Neo4j
		if err := neo4jCfg.Validate(); err != nil {
			return err
		}

		r.Log.Infof("Connecting to Neo4j at %s...", neo4jCfg.URI)
		client, err := neo4j.NewClient(neo4jCfg.URI, neo4jCfg.User, neo4jCfg.Password)
		if err != nil {
			return fmt.Errorf("failed to create neo4j client: %w", err)
		}
		defer client.Close(ctx)

		if err := client.VerifyConnectivity(ctx); err != nil {
			return fmt.Errorf("failed to connect to neo4j: %w", err)
		}
		exporter = client
	}

	r.Log.Info("Updating Neo4j database...")
	if err := exporter.UpdateGraph(ctx, g); err != nil {
		return fmt.Errorf("failed to update neo4j graph: %w", err)
	}
	fmt.Fprintln(r.Out, "Successfully updated Neo4j database.")
	return nil
}

func (r *Runner) client() (kubernetes.Interface, error) {
	if r.Client != nil {
		return r.Client, nil
	}
	client, err := kube.NewClientset(r.Config.Kubeconfig, r.Config.Context)
	if err != nil {
		return nil, err
	}
	r.Client = client
	return client, nil
}

func (r *Runner) renderer() (render.Renderer, error) {
	if r.Renderer != nil {
		return r.Renderer, nil
	}

	format := render.FormatFromPath(r.Config.OutFile)
	if r.Config.Format != "" {
		f, err := render.ParseFormat(r.Config.Format)
		if err != nil {
			return nil, err
		}
		format = f
	}

	gv := render.NewGraphviz(format)
	if r.Config.DotBinary != "" {
		gv.DotBinary = r.Config.DotBinary
	}
	return gv, nil
}
