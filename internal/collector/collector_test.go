package collector

import (
	"context"
	"errors"
	"k8sviz/internal/resource"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appsv1 "k8s.io/api/apps/v1"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"
)

func meta(name, namespace string) metav1.ObjectMeta {
	return metav1.ObjectMeta{Name: name, Namespace: namespace}
}

func daemonSet(name, namespace string, selector map[string]string) *appsv1.DaemonSet {
	ds := &appsv1.DaemonSet{ObjectMeta: meta(name, namespace)}
	ds.Spec.Template.Spec.NodeSelector = selector
	return ds
}

func pod(name, namespace string, selector map[string]string) *corev1.Pod {
	return &corev1.Pod{
		ObjectMeta: meta(name, namespace),
		Spec:       corev1.PodSpec{NodeSelector: selector},
	}
}

func newNamespace(name string) *corev1.Namespace {
	return &corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: name}}
}

func TestCollect(t *testing.T) {
	client := fake.NewSimpleClientset(
		newNamespace("default"),
		daemonSet("fluentd", "default", map[string]string{"zone": "a"}),
		pod("fluentd-x", "default", map[string]string{"zone": "a"}),
		pod("web-1", "default", nil),
		&appsv1.Deployment{ObjectMeta: meta("web", "default")},
		&appsv1.StatefulSet{ObjectMeta: meta("db", "default")},
		&batchv1.Job{ObjectMeta: meta("backup-1", "default")},
		&batchv1.CronJob{ObjectMeta: meta("backup", "default")},
		// Other namespaces are never listed.
		&appsv1.Deployment{ObjectMeta: meta("other", "kube-system")},
	)

	snap, err := New(client).Collect(context.Background(), "default")
	require.NoError(t, err)

	assert.Equal(t, "default", snap.Namespace)
	assert.Equal(t, 7, snap.Len())

	ds := snap.Of(resource.KindDaemonSet)
	require.Len(t, ds, 1)
	assert.Equal(t, map[string]string{"zone": "a"}, ds[0].NodeSelector)

	assert.Len(t, snap.Of(resource.KindPod), 2)
	require.Len(t, snap.Of(resource.KindDeployment), 1)
	assert.Equal(t, "web", snap.Of(resource.KindDeployment)[0].Name)
	assert.Len(t, snap.Of(resource.KindStatefulSet), 1)
	assert.Len(t, snap.Of(resource.KindJob), 1)
	assert.Len(t, snap.Of(resource.KindCronJob), 1)
}

func TestCollectEmptyNamespace(t *testing.T) {
	snap, err := New(fake.NewSimpleClientset(newNamespace("default"))).Collect(context.Background(), "default")
	require.NoError(t, err)
	assert.Zero(t, snap.Len())
}

func TestCollectMissingNamespace(t *testing.T) {
	client := fake.NewSimpleClientset(newNamespace("default"))

	snap, err := New(client).Collect(context.Background(), "does-not-exist")
	require.Error(t, err)
	assert.Nil(t, snap)

	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, resource.KindNamespace, fetchErr.Kind)
	assert.Equal(t, "does-not-exist", fetchErr.Namespace)
	assert.True(t, apierrors.IsNotFound(err))

	for _, action := range client.Actions() {
		assert.NotEqual(t, "list", action.GetVerb(), "no workload may be listed in a missing namespace")
	}
}

func TestCollectNamespaceForbidden(t *testing.T) {
	client := fake.NewSimpleClientset(&appsv1.Deployment{ObjectMeta: meta("web", "team-a")})
	client.PrependReactor("get", "namespaces", func(k8stesting.Action) (bool, runtime.Object, error) {
		return true, nil, apierrors.NewForbidden(schema.GroupResource{Resource: "namespaces"}, "team-a", errors.New("rbac"))
	})

	snap, err := New(client).Collect(context.Background(), "team-a")
	require.NoError(t, err)
	require.Len(t, snap.Of(resource.KindDeployment), 1)
}

func TestCollectNamespaceLookupFailure(t *testing.T) {
	client := fake.NewSimpleClientset()
	client.PrependReactor("get", "namespaces", func(k8stesting.Action) (bool, runtime.Object, error) {
		return true, nil, errors.New("connection refused")
	})

	_, err := New(client).Collect(context.Background(), "team-a")
	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, resource.KindNamespace, fetchErr.Kind)
}

func TestCollectFetchFailure(t *testing.T) {
	tests := []struct {
		resource string
		kind     resource.Kind
	}{
		{"daemonsets", resource.KindDaemonSet},
		{"pods", resource.KindPod},
		{"deployments", resource.KindDeployment},
		{"statefulsets", resource.KindStatefulSet},
		{"jobs", resource.KindJob},
		{"cronjobs", resource.KindCronJob},
	}

	for _, tt := range tests {
		t.Run(tt.resource, func(t *testing.T) {
			cause := errors.New("connection refused")
			client := fake.NewSimpleClientset(newNamespace("team-a"))
			client.PrependReactor("list", tt.resource, func(k8stesting.Action) (bool, runtime.Object, error) {
				return true, nil, cause
			})

			snap, err := New(client).Collect(context.Background(), "team-a")
			require.Error(t, err)
			assert.Nil(t, snap)

			var fetchErr *FetchError
			require.True(t, errors.As(err, &fetchErr))
			assert.Equal(t, tt.kind, fetchErr.Kind)
			assert.Equal(t, "team-a", fetchErr.Namespace)
			assert.ErrorIs(t, err, cause)
			assert.Contains(t, err.Error(), string(tt.kind))
			assert.Contains(t, err.Error(), "team-a")
		})
	}
}

func TestCollectRejectsNamelessObject(t *testing.T) {
	client := fake.NewSimpleClientset(newNamespace("default"))
	client.PrependReactor("list", "jobs", func(k8stesting.Action) (bool, runtime.Object, error) {
		return true, &batchv1.JobList{Items: []batchv1.Job{{ObjectMeta: meta("", "default")}}}, nil
	})

	_, err := New(client).Collect(context.Background(), "default")
	require.Error(t, err)

	var malformed *resource.MalformedResourceError
	require.True(t, errors.As(err, &malformed))
	assert.Equal(t, resource.KindJob, malformed.Kind)
	assert.Equal(t, "name", malformed.Field)
}

func TestPing(t *testing.T) {
	client := fake.NewSimpleClientset(newNamespace("default"))

	assert.NoError(t, Ping(context.Background(), client, "default"))

	err := Ping(context.Background(), client, "missing")
	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, resource.KindNamespace, fetchErr.Kind)
	assert.Equal(t, "missing", fetchErr.Namespace)
}
