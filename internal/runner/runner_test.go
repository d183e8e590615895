package runner

import (
	"bytes"
	"context"
	"errors"
	"io"
	"k8sviz/internal/collector"
	"k8sviz/internal/config"
	"k8sviz/internal/graph"
	"k8sviz/internal/render"
	"k8sviz/internal/resource"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"
)

type recordingRenderer struct {
	graph *graph.Graph
	path  string
	err   error
}

func (r *recordingRenderer) Render(_ context.Context, g *graph.Graph, path string) error {
	r.graph = g
	r.path = path
	return r.err
}

type recordingExporter struct {
	graphs []*graph.Graph
	err    error
}

func (e *recordingExporter) UpdateGraph(_ context.Context, g *graph.Graph) error {
	e.graphs = append(e.graphs, g)
	return e.err
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestRunner(t *testing.T, objects ...runtime.Object) (*Runner, *bytes.Buffer) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.OutFile = filepath.Join(t.TempDir(), "k8sviz.dot")

	objects = append([]runtime.Object{&corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: cfg.Namespace}}}, objects...)

	var out bytes.Buffer
	return &Runner{
		Config: cfg,
		Client: fake.NewSimpleClientset(objects...),
		Out:    &out,
		Log:    quietLogger(),
	}, &out
}

func webAndDB() []runtime.Object {
	return []runtime.Object{
		&appsv1.Deployment{ObjectMeta: metav1.ObjectMeta{Name: "web", Namespace: "default"}},
		&appsv1.StatefulSet{ObjectMeta: metav1.ObjectMeta{Name: "db", Namespace: "default"}},
	}
}

func TestRunEndToEnd(t *testing.T) {
	r, out := newTestRunner(t, webAndDB()...)

	require.NoError(t, r.Run(context.Background()))

	data, err := os.ReadFile(r.Config.OutFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"Deployment: web"->"StatefulSet: db"`)
	assert.Equal(t, "Joined diagram saved as "+r.Config.OutFile+"\n", out.String())
}

func TestRunUsesInjectedRenderer(t *testing.T) {
	r, _ := newTestRunner(t, webAndDB()...)
	rec := &recordingRenderer{}
	r.Renderer = rec

	require.NoError(t, r.Run(context.Background()))

	require.NotNil(t, rec.graph)
	assert.Equal(t, r.Config.OutFile, rec.path)
	assert.Equal(t, []string{"Deployment: web", "StatefulSet: db"}, rec.graph.Labels())
	assert.Equal(t, [][2]string{{"Deployment: web", "StatefulSet: db"}}, rec.graph.Pairs())
}

func TestRunFetchFailure(t *testing.T) {
	r, out := newTestRunner(t)
	client := r.Client.(*fake.Clientset)
	client.PrependReactor("list", "cronjobs", func(k8stesting.Action) (bool, runtime.Object, error) {
		return true, nil, errors.New("unauthorized")
	})
	rec := &recordingRenderer{}
	r.Renderer = rec

	err := r.Run(context.Background())
	require.Error(t, err)

	var fetchErr *collector.FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, resource.KindCronJob, fetchErr.Kind)
	assert.Contains(t, err.Error(), "CronJob")
	assert.Contains(t, err.Error(), `"default"`)
	assert.Nil(t, rec.graph, "nothing may be rendered after a failed fetch")
	assert.Empty(t, out.String())
}

func TestRunMissingNamespace(t *testing.T) {
	r, out := newTestRunner(t, webAndDB()...)
	r.Config.Namespace = "typo"
	rec := &recordingRenderer{}
	r.Renderer = rec

	err := r.Run(context.Background())
	require.Error(t, err)

	var fetchErr *collector.FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, resource.KindNamespace, fetchErr.Kind)
	assert.Equal(t, "typo", fetchErr.Namespace)
	assert.Nil(t, rec.graph, "nothing may be rendered for a missing namespace")
	assert.Empty(t, out.String())
	assert.NoFileExists(t, r.Config.OutFile)
}

func TestRunRenderFailure(t *testing.T) {
	r, out := newTestRunner(t, webAndDB()...)
	r.Renderer = &recordingRenderer{err: &render.RenderError{Path: "x.png", Err: errors.New("disk full")}}

	err := r.Run(context.Background())
	var renderErr *render.RenderError
	require.True(t, errors.As(err, &renderErr))
	assert.Empty(t, out.String())
}

func TestRunRejectsUnknownFormat(t *testing.T) {
	r, _ := newTestRunner(t)
	r.Config.Format = "bmp"

	assert.Error(t, r.Run(context.Background()))
}

func TestRunUpdateExports(t *testing.T) {
	r, out := newTestRunner(t, webAndDB()...)
	r.Config.Update = true
	exp := &recordingExporter{}
	r.Exporter = exp

	require.NoError(t, r.Run(context.Background()))
	require.Len(t, exp.graphs, 1)
	assert.Len(t, exp.graphs[0].Nodes, 2)
	assert.Contains(t, out.String(), "Successfully updated Neo4j database.")
}

func TestRunUpdateRequiresCredentialsBeforeCollecting(t *testing.T) {
	r, _ := newTestRunner(t)
	r.Config.Update = true
	client := r.Client.(*fake.Clientset)

	err := r.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "neo4j-pass")
	assert.Empty(t, client.Actions())
}

func TestExportFailure(t *testing.T) {
	r, _ := newTestRunner(t)
	r.Exporter = &recordingExporter{err: errors.New("write failed")}

	err := r.Export(context.Background(), &graph.Graph{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write failed")
}

func TestGraphEmptyNamespace(t *testing.T) {
	r, _ := newTestRunner(t)

	g, err := r.Graph(context.Background())
	require.NoError(t, err)
	assert.Empty(t, g.Nodes)
	assert.Empty(t, g.Edges)
}
