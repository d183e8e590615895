package resource

import (
	"fmt"
	"maps"
	"slices"
)

// Kind is the workload kind of a ResourceRef.
type Kind string

const (
	KindDaemonSet   Kind = "DaemonSet"
	KindPod         Kind = "Pod"
	KindDeployment  Kind = "Deployment"
	KindStatefulSet Kind = "StatefulSet"
	KindJob         Kind = "Job"
	KindCronJob     Kind = "CronJob"

	// KindNamespace only appears in errors about the namespace itself; it is
	// never part of a Snapshot.
	KindNamespace Kind = "Namespace"
)

// Kinds lists every kind a Snapshot carries, in collection order.
var Kinds = []Kind{KindDaemonSet, KindPod, KindDeployment, KindStatefulSet, KindJob, KindCronJob}

// ResourceRef identifies one workload object in a namespace.
type ResourceRef struct {
	Kind      Kind
	Name      string
	Namespace string
	// NodeSelector is only populated for DaemonSets (pod template) and Pods.
	NodeSelector map[string]string
}

// Label is the display identity of the ref, "{kind}: {name}".
func (r ResourceRef) Label() string {
	return fmt.Sprintf("%s: %s", r.Kind, r.Name)
}

// MalformedResourceError reports a fetched object that is missing a required
// field or cannot be placed in the snapshot.
type MalformedResourceError struct {
	Kind  Kind
	Field string
	Name  string
}

func (e *MalformedResourceError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("malformed %s %q: invalid field %q", e.Kind, e.Name, e.Field)
	}
	return fmt.Sprintf("malformed %s: missing field %q", e.Kind, e.Field)
}

// Snapshot is a point-in-time view of the workloads in one namespace.
// Build it with NewSnapshot; the lists are not modified afterwards.
type Snapshot struct {
	Namespace string
	byKind    map[Kind][]ResourceRef
}

// NewSnapshot validates refs and groups them by kind, keeping their order.
// Empty names, foreign namespaces and duplicate names within a kind are
// rejected with a MalformedResourceError.
func NewSnapshot(namespace string, refs []ResourceRef) (*Snapshot, error) {
	s := &Snapshot{
		Namespace: namespace,
		byKind:    make(map[Kind][]ResourceRef, len(Kinds)),
	}
	seen := make(map[Kind]map[string]struct{}, len(Kinds))

	for _, r := range refs {
		if !slices.Contains(Kinds, r.Kind) {
			return nil, &MalformedResourceError{Kind: r.Kind, Field: "kind", Name: r.Name}
		}
		if r.Name == "" {
			return nil, &MalformedResourceError{Kind: r.Kind, Field: "name"}
		}
		if r.Namespace == "" {
			r.Namespace = namespace
		}
		if r.Namespace != namespace {
			return nil, &MalformedResourceError{Kind: r.Kind, Field: "namespace", Name: r.Name}
		}

		names, ok := seen[r.Kind]
		if !ok {
			names = make(map[string]struct{})
			seen[r.Kind] = names
		}
		if _, dup := names[r.Name]; dup {
			return nil, &MalformedResourceError{Kind: r.Kind, Field: "name", Name: r.Name}
		}
		names[r.Name] = struct{}{}

		r.NodeSelector = maps.Clone(r.NodeSelector)
		s.byKind[r.Kind] = append(s.byKind[r.Kind], r)
	}

	return s, nil
}

// Of returns a copy of the refs of one kind in the order they were added.
// The NodeSelector maps are shared with the snapshot and must not be modified.
func (s *Snapshot) Of(kind Kind) []ResourceRef {
	return slices.Clone(s.byKind[kind])
}

// All returns every ref, grouped by kind in Kinds order.
func (s *Snapshot) All() []ResourceRef {
	var all []ResourceRef
	for _, k := range Kinds {
		all = append(all, s.byKind[k]...)
	}
	return all
}

// Len is the total number of refs in the snapshot.
func (s *Snapshot) Len() int {
	n := 0
	for _, refs := range s.byKind {
		n += len(refs)
	}
	return n
}
