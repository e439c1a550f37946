// Package store is the declarative resource store boundary.
//
// Ownership boundary:
// - get/list/watch of namespaced resources
// - create and JSON merge-patch of spec and the status subresource
// - cascade deletion along owner back-references (store-side, never the caller)
//
// Two backends exist: Memory (in-process, used by tests and local runs) and
// Kube (client-go dynamic client against a real API server).
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/danmuck/spacectl/internal/crds"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
	ErrInvalidPatch  = errors.New("store: invalid patch")
	ErrWrongKind     = errors.New("store: unexpected object kind")
)

// EventType is the change kind delivered on a watch stream.
type EventType string

const (
	Added    EventType = "ADDED"
	Modified EventType = "MODIFIED"
	Deleted  EventType = "DELETED"
)

// Event is one watch notification.
type Event struct {
	Type   EventType
	Object crds.Object
}

// Store is the resource store contract consumed by controllers and reconcilers.
//
// An empty namespace on List/Watch means all namespaces. Patch bodies are
// RFC 7386 JSON merge patches; Patch ignores status and PatchStatus touches
// only status. Watch channels close when ctx ends or the backend drops the
// stream; callers re-list and re-watch.
type Store interface {
	Get(ctx context.Context, key crds.Key) (crds.Object, error)
	List(ctx context.Context, kind crds.Kind, namespace string) ([]crds.Object, error)
	Watch(ctx context.Context, kind crds.Kind, namespace string) (<-chan Event, error)
	Create(ctx context.Context, obj crds.Object) (crds.Object, error)
	Patch(ctx context.Context, key crds.Key, patch []byte, fieldManager string) (crds.Object, error)
	PatchStatus(ctx context.Context, key crds.Key, patch []byte, fieldManager string) (crds.Object, error)
	Delete(ctx context.Context, key crds.Key) error
	EnsureNamespace(ctx context.Context, namespace string) error
}

// IsNotFound reports whether err is a store not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Get fetches key and asserts the concrete kind type.
func Get[T crds.Object](ctx context.Context, s Store, key crds.Key) (T, error) {
	var zero T
	obj, err := s.Get(ctx, key)
	if err != nil {
		return zero, err
	}
	typed, ok := obj.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s is %T", ErrWrongKind, key, obj)
	}
	return typed, nil
}

// List fetches every object of kind in namespace as the concrete type.
func List[T crds.Object](ctx context.Context, s Store, kind crds.Kind, namespace string) ([]T, error) {
	objs, err := s.List(ctx, kind, namespace)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(objs))
	for _, obj := range objs {
		typed, ok := obj.(T)
		if !ok {
			return nil, fmt.Errorf("%w: %s is %T", ErrWrongKind, crds.KeyOf(obj), obj)
		}
		out = append(out, typed)
	}
	return out, nil
}

// SpecPatch builds a merge patch {"spec": spec}.
func SpecPatch(spec any) ([]byte, error) {
	return json.Marshal(map[string]any{"spec": spec})
}

// StatusPatch builds a merge patch {"status": status}.
func StatusPatch(status any) ([]byte, error) {
	return json.Marshal(map[string]any{"status": status})
}

func decode(kind crds.Kind, raw []byte) (crds.Object, error) {
	obj, err := crds.New(kind)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, obj); err != nil {
		return nil, fmt.Errorf("store: decode %s: %w", kind, err)
	}
	return obj, nil
}
