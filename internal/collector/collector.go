package collector

import (
	"context"
	"fmt"
	"k8sviz/internal/resource"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

// FetchError reports a failed list call against the control plane.
type FetchError struct {
	Kind      resource.Kind
	Namespace string
	Err       error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch %s in namespace %q: %v", e.Kind, e.Namespace, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Collector lists the workloads of a namespace.
type Collector struct {
	client kubernetes.Interface
	log    logrus.FieldLogger
}

// New creates a Collector reading through client.
func New(client kubernetes.Interface) *Collector {
	return &Collector{client: client, log: logrus.StandardLogger()}
}

// WithLogger replaces the collector's logger.
func (c *Collector) WithLogger(log logrus.FieldLogger) *Collector {
	c.log = log
	return c
}

type lister func(ctx context.Context, namespace string) ([]resource.ResourceRef, error)

// Collect lists all six workload kinds concurrently and returns them as a
// validated snapshot. A missing namespace fails before any list is issued.
// The first failing list cancels the others; no partial snapshot is returned.
func (c *Collector) Collect(ctx context.Context, namespace string) (*resource.Snapshot, error) {
	if err := c.checkNamespace(ctx, namespace); err != nil {
		return nil, err
	}

	listers := map[resource.Kind]lister{
		resource.KindDaemonSet:   c.listDaemonSets,
		resource.KindPod:         c.listPods,
		resource.KindDeployment:  c.listDeployments,
		resource.KindStatefulSet: c.listStatefulSets,
		resource.KindJob:         c.listJobs,
		resource.KindCronJob:     c.listCronJobs,
	}

	results := make([][]resource.ResourceRef, len(resource.Kinds))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, kind := range resource.Kinds {
		list := listers[kind]
		eg.Go(func() error {
			refs, err := list(egCtx, namespace)
			if err != nil {
				return &FetchError{Kind: kind, Namespace: namespace, Err: err}
			}
			c.log.WithFields(logrus.Fields{"kind": kind, "namespace": namespace}).
				Debugf("listed %d objects", len(refs))
			results[i] = refs
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	var refs []resource.ResourceRef
	for _, r := range results {
		refs = append(refs, r...)
	}
	return resource.NewSnapshot(namespace, refs)
}

// Ping checks that the control plane is reachable and the namespace exists.
func Ping(ctx context.Context, client kubernetes.Interface, namespace string) error {
	if _, err := client.CoreV1().Namespaces().Get(ctx, namespace, metav1.GetOptions{}); err != nil {
		return &FetchError{Kind: resource.KindNamespace, Namespace: namespace, Err: err}
	}
	return nil
}

// checkNamespace is Ping, except that users allowed to list workloads but not
// to read the namespace object are let through.
func (c *Collector) checkNamespace(ctx context.Context, namespace string) error {
	err := Ping(ctx, c.client, namespace)
	if err != nil && apierrors.IsForbidden(err) {
		c.log.WithField("namespace", namespace).Debug("not allowed to get namespace, skipping existence check")
		return nil
	}
	return err
}

func (c *Collector) listDaemonSets(ctx context.Context, namespace string) ([]resource.ResourceRef, error) {
	list, err := c.client.AppsV1().DaemonSets(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, err
	}
	refs := make([]resource.ResourceRef, 0, len(list.Items))
	for _, ds := range list.Items {
		refs = append(refs, newRef(resource.KindDaemonSet, ds.ObjectMeta, ds.Spec.Template.Spec.NodeSelector))
	}
	return refs, nil
}

func (c *Collector) listPods(ctx context.Context, namespace string) ([]resource.ResourceRef, error) {
	list, err := c.client.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, err
	}
	refs := make([]resource.ResourceRef, 0, len(list.Items))
	for _, p := range list.Items {
		refs = append(refs, newRef(resource.KindPod, p.ObjectMeta, p.Spec.NodeSelector))
	}
	return refs, nil
}

func (c *Collector) listDeployments(ctx context.Context, namespace string) ([]resource.ResourceRef, error) {
	list, err := c.client.AppsV1().Deployments(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, err
	}
	refs := make([]resource.ResourceRef, 0, len(list.Items))
	for _, d := range list.Items {
		refs = append(refs, newRef(resource.KindDeployment, d.ObjectMeta, nil))
	}
	return refs, nil
}

func (c *Collector) listStatefulSets(ctx context.Context, namespace string) ([]resource.ResourceRef, error) {
	list, err := c.client.AppsV1().StatefulSets(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, err
	}
	refs := make([]resource.ResourceRef, 0, len(list.Items))
	for _, s := range list.Items {
		refs = append(refs, newRef(resource.KindStatefulSet, s.ObjectMeta, nil))
	}
	return refs, nil
}

func (c *Collector) listJobs(ctx context.Context, namespace string) ([]resource.ResourceRef, error) {
	list, err := c.client.BatchV1().Jobs(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, err
	}
	refs := make([]resource.ResourceRef, 0, len(list.Items))
	for _, j := range list.Items {
		refs = append(refs, newRef(resource.KindJob, j.ObjectMeta, nil))
	}
	return refs, nil
}

func (c *Collector) listCronJobs(ctx context.Context, namespace string) ([]resource.ResourceRef, error) {
	list, err := c.client.BatchV1().CronJobs(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, err
	}
	refs := make([]resource.ResourceRef, 0, len(list.Items))
	for _, cj := range list.Items {
		refs = append(refs, newRef(resource.KindCronJob, cj.ObjectMeta, nil))
	}
	return refs, nil
}

func newRef(kind resource.Kind, meta metav1.ObjectMeta, selector map[string]string) resource.ResourceRef {
	return resource.ResourceRef{
		Kind:         kind,
		Name:         meta.Name,
		Namespace:    meta.Namespace,
		NodeSelector: selector,
	}
}
