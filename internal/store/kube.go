package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/danmuck/spacectl/internal/crds"
	"github.com/rs/zerolog/log"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// Kube is a Store backed by a Kubernetes API server with the spacetraders.io
// CRDs installed. Cascade deletion is left to the cluster garbage collector.
type Kube struct {
	dynamic dynamic.Interface
	core    kubernetes.Interface
}

// LoadRESTConfig resolves cluster credentials: an explicit kubeconfig path
// wins, then in-cluster service account, then the default loading rules.
func LoadRESTConfig(kubeconfig string) (*rest.Config, error) {
	if kubeconfig != "" {
		cfg, err := clientcmd.BuildConfigFromFlags("", kubeconfig)
		if err != nil {
			return nil, fmt.Errorf("store: kubeconfig %s: %w", kubeconfig, err)
		}
		return cfg, nil
	}
	if cfg, err := rest.InClusterConfig(); err == nil {
		return cfg, nil
	}
	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	cfg, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, &clientcmd.ConfigOverrides{}).ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("store: load kubeconfig: %w", err)
	}
	return cfg, nil
}

// NewKube builds the dynamic and core clients for cfg.
func NewKube(cfg *rest.Config) (*Kube, error) {
	dyn, err := dynamic.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("store: dynamic client: %w", err)
	}
	core, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("store: core client: %w", err)
	}
	return NewKubeFromClients(dyn, core), nil
}

// NewKubeFromClients wraps already-built clients.
func NewKubeFromClients(dyn dynamic.Interface, core kubernetes.Interface) *Kube {
	return &Kube{dynamic: dyn, core: core}
}

// GVR maps a kind to its REST resource.
func GVR(kind crds.Kind) schema.GroupVersionResource {
	return schema.GroupVersionResource{Group: crds.Group, Version: crds.Version, Resource: kind.Plural()}
}

func (k *Kube) resource(kind crds.Kind, namespace string) dynamic.ResourceInterface {
	res := k.dynamic.Resource(GVR(kind))
	if namespace == "" {
		return res
	}
	return res.Namespace(namespace)
}

func (k *Kube) Get(ctx context.Context, key crds.Key) (crds.Object, error) {
	u, err := k.resource(key.Kind, key.Namespace).Get(ctx, key.Name, metav1.GetOptions{})
	if err != nil {
		return nil, mapKubeError(key, err)
	}
	return fromUnstructured(key.Kind, u)
}

func (k *Kube) List(ctx context.Context, kind crds.Kind, namespace string) ([]crds.Object, error) {
	list, err := k.resource(kind, namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, mapKubeError(crds.Key{Kind: kind, Namespace: namespace}, err)
	}
	out := make([]crds.Object, 0, len(list.Items))
	for i := range list.Items {
		obj, err := fromUnstructured(kind, &list.Items[i])
		if err != nil {
			return nil, err
		}
		out = append(out, obj)
	}
	return out, nil
}

func (k *Kube) Watch(ctx context.Context, kind crds.Kind, namespace string) (<-chan Event, error) {
	w, err := k.resource(kind, namespace).Watch(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, mapKubeError(crds.Key{Kind: kind, Namespace: namespace}, err)
	}
	out := make(chan Event)
	go func() {
		defer close(out)
		defer w.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-w.ResultChan():
				if !ok {
					return
				}
				ev, ok := convertWatchEvent(kind, raw)
				if !ok {
					if raw.Type == watch.Error {
						log.Warn().Str("kind", string(kind)).Msg("watch error event; closing stream")
						return
					}
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func convertWatchEvent(kind crds.Kind, raw watch.Event) (Event, bool) {
	var typ EventType
	switch raw.Type {
	case watch.Added:
		typ = Added
	case watch.Modified:
		typ = Modified
	case watch.Deleted:
		typ = Deleted
	default:
		return Event{}, false
	}
	u, ok := raw.Object.(*unstructured.Unstructured)
	if !ok {
		return Event{}, false
	}
	obj, err := fromUnstructured(kind, u)
	if err != nil {
		log.Warn().Err(err).Str("kind", string(kind)).Msg("dropping undecodable watch event")
		return Event{}, false
	}
	return Event{Type: typ, Object: obj}, true
}

func (k *Kube) Create(ctx context.Context, obj crds.Object) (crds.Object, error) {
	key := crds.KeyOf(obj)
	u, err := toUnstructured(obj)
	if err != nil {
		return nil, err
	}
	unstructured.RemoveNestedField(u.Object, "status")
	created, err := k.resource(key.Kind, key.Namespace).Create(ctx, u, metav1.CreateOptions{})
	if err != nil {
		return nil, mapKubeError(key, err)
	}
	return fromUnstructured(key.Kind, created)
}

func (k *Kube) Patch(ctx context.Context, key crds.Key, patch []byte, fieldManager string) (crds.Object, error) {
	return k.patch(ctx, key, patch, fieldManager, "")
}

func (k *Kube) PatchStatus(ctx context.Context, key crds.Key, patch []byte, fieldManager string) (crds.Object, error) {
	return k.patch(ctx, key, patch, fieldManager, subresourceStatus)
}

func (k *Kube) patch(ctx context.Context, key crds.Key, patch []byte, fieldManager, subresource string) (crds.Object, error) {
	body, err := filterPatch(patch, subresource)
	if err != nil {
		return nil, err
	}
	var subresources []string
	if subresource != "" {
		subresources = append(subresources, subresource)
	}
	patched, err := k.resource(key.Kind, key.Namespace).Patch(
		ctx, key.Name, types.MergePatchType, body,
		metav1.PatchOptions{FieldManager: fieldManager},
		subresources...,
	)
	if err != nil {
		return nil, mapKubeError(key, err)
	}
	return fromUnstructured(key.Kind, patched)
}

func (k *Kube) Delete(ctx context.Context, key crds.Key) error {
	propagation := metav1.DeletePropagationBackground
	err := k.resource(key.Kind, key.Namespace).Delete(ctx, key.Name, metav1.DeleteOptions{PropagationPolicy: &propagation})
	return mapKubeError(key, err)
}

func (k *Kube) EnsureNamespace(ctx context.Context, namespace string) error {
	ns := &corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: namespace}}
	_, err := k.core.CoreV1().Namespaces().Create(ctx, ns, metav1.CreateOptions{})
	if err == nil || apierrors.IsAlreadyExists(err) {
		return nil
	}
	return fmt.Errorf("store: ensure namespace %s: %w", namespace, err)
}

func mapKubeError(key crds.Key, err error) error {
	switch {
	case err == nil:
		return nil
	case apierrors.IsNotFound(err):
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	case apierrors.IsAlreadyExists(err), apierrors.IsConflict(err):
		return fmt.Errorf("%w: %s", ErrAlreadyExists, key)
	case apierrors.IsInvalid(err), apierrors.IsBadRequest(err), apierrors.IsUnsupportedMediaType(err):
		return fmt.Errorf("%w: %s: %v", ErrInvalidPatch, key, err)
	}
	return fmt.Errorf("store: kube %s: %w", key, err)
}

func toUnstructured(obj crds.Object) (*unstructured.Unstructured, error) {
	crds.SetTypeMeta(obj)
	raw, err := json.Marshal(obj)
	if err != nil {
		return nil, err
	}
	u := &unstructured.Unstructured{}
	if err := u.UnmarshalJSON(raw); err != nil {
		return nil, fmt.Errorf("store: to unstructured %s: %w", crds.KeyOf(obj), err)
	}
	return u, nil
}

func fromUnstructured(kind crds.Kind, u *unstructured.Unstructured) (crds.Object, error) {
	raw, err := u.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("store: from unstructured %s: %w", kind, err)
	}
	return decode(kind, raw)
}
