// Package crds defines the declarative resource kinds reconciled by spacectl.
//
// Ownership boundary:
// - resource identity (kind, namespace, name)
// - spec/status split per kind
// - owner back-references used by the store for cascade deletion
//
// The package performs no I/O. Store backends encode these types as JSON in
// the Kubernetes object shape (apiVersion, kind, metadata, spec, status).
package crds

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Group        = "spacetraders.io"
	Version      = "v1"
	GroupVersion = Group + "/" + Version
)

var (
	ErrUnknownKind = errors.New("crds: unknown kind")
	ErrInvalidName = errors.New("crds: invalid name")
)

// Kind names one resource type in the spacetraders.io group.
type Kind string

const (
	KindManager Kind = "Manager"
	KindAgent   Kind = "Agent"
	KindShip    Kind = "Ship"
)

// Kinds lists every kind in reconcile order (root first).
func Kinds() []Kind {
	return []Kind{KindManager, KindAgent, KindShip}
}

// Plural is the REST resource name for the kind.
func (k Kind) Plural() string {
	return strings.ToLower(string(k)) + "s"
}

// Singular is the lower-case kind name.
func (k Kind) Singular() string {
	return strings.ToLower(string(k))
}

func (k Kind) Valid() bool {
	switch k {
	case KindManager, KindAgent, KindShip:
		return true
	}
	return false
}

// TypeMeta carries the apiVersion/kind pair of a serialized object.
type TypeMeta struct {
	APIVersion string `json:"apiVersion,omitempty"`
	Kind       string `json:"kind,omitempty"`
}

// OwnerReference is a back-pointer from a child to the parent that created it.
type OwnerReference struct {
	APIVersion         string `json:"apiVersion"`
	Kind               string `json:"kind"`
	Name               string `json:"name"`
	UID                string `json:"uid"`
	Controller         *bool  `json:"controller,omitempty"`
	BlockOwnerDeletion *bool  `json:"blockOwnerDeletion,omitempty"`
}

// ManagedField records which field manager last wrote which part of an object.
type ManagedField struct {
	Manager     string     `json:"manager,omitempty"`
	Operation   string     `json:"operation,omitempty"`
	Subresource string     `json:"subresource,omitempty"`
	Time        *time.Time `json:"time,omitempty"`
}

// ObjectMeta is the subset of Kubernetes object metadata spacectl reads or writes.
type ObjectMeta struct {
	Name              string            `json:"name,omitempty"`
	Namespace         string            `json:"namespace,omitempty"`
	UID               string            `json:"uid,omitempty"`
	ResourceVersion   string            `json:"resourceVersion,omitempty"`
	Generation        int64             `json:"generation,omitempty"`
	CreationTimestamp *time.Time        `json:"creationTimestamp,omitempty"`
	Labels            map[string]string `json:"labels,omitempty"`
	OwnerReferences   []OwnerReference  `json:"ownerReferences,omitempty"`
	ManagedFields     []ManagedField    `json:"managedFields,omitempty"`
}

// Object is implemented by every resource kind.
type Object interface {
	GetObjectMeta() *ObjectMeta
	GetKind() Kind
}

// Key identifies one resource instance.
type Key struct {
	Kind      Kind
	Namespace string
	Name      string
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Kind, k.Namespace, k.Name)
}

// KeyOf returns the identity of obj.
func KeyOf(obj Object) Key {
	meta := obj.GetObjectMeta()
	return Key{Kind: obj.GetKind(), Namespace: meta.Namespace, Name: meta.Name}
}

// New returns an empty object for kind, ready to be decoded into.
func New(kind Kind) (Object, error) {
	switch kind {
	case KindManager:
		return &Manager{}, nil
	case KindAgent:
		return &Agent{}, nil
	case KindShip:
		return &Ship{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}

// NameFor derives the resource name from a game symbol.
func NameFor(symbol string) string {
	name := strings.ToLower(strings.TrimSpace(symbol))
	return strings.ReplaceAll(name, "_", "-")
}

// ValidateName enforces RFC 1123 subdomain-style resource names.
func ValidateName(name string) error {
	if name == "" || len(name) > 253 {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		isLower := c >= 'a' && c <= 'z'
		isDigit := c >= '0' && c <= '9'
		isSep := c == '-' || c == '.'
		if !(isLower || isDigit || isSep) {
			return fmt.Errorf("%w: %q", ErrInvalidName, name)
		}
		if (i == 0 || i == len(name)-1) && isSep {
			return fmt.Errorf("%w: %q", ErrInvalidName, name)
		}
	}
	return nil
}

// OwnerRefFor builds the controller owner reference pointing at owner.
func OwnerRefFor(owner Object) OwnerReference {
	meta := owner.GetObjectMeta()
	controller := true
	block := true
	return OwnerReference{
		APIVersion:         GroupVersion,
		Kind:               string(owner.GetKind()),
		Name:               meta.Name,
		UID:                meta.UID,
		Controller:         &controller,
		BlockOwnerDeletion: &block,
	}
}

// IsOwnedBy reports whether obj carries a back-reference to owner.
// Matching is by uid; kind+name is used only when owner has no uid yet.
func IsOwnedBy(obj Object, owner Object) bool {
	ownerMeta := owner.GetObjectMeta()
	for _, ref := range obj.GetObjectMeta().OwnerReferences {
		if ownerMeta.UID != "" {
			if ref.UID == ownerMeta.UID {
				return true
			}
			continue
		}
		if ref.Kind == string(owner.GetKind()) && ref.Name == ownerMeta.Name {
			return true
		}
	}
	return false
}

// OwnedBy filters objs down to those owned by owner.
func OwnedBy[T Object](objs []T, owner Object) []T {
	out := make([]T, 0, len(objs))
	for _, obj := range objs {
		if IsOwnedBy(obj, owner) {
			out = append(out, obj)
		}
	}
	return out
}

// SetTypeMeta stamps apiVersion and kind onto obj.
func SetTypeMeta(obj Object) {
	switch o := obj.(type) {
	case *Manager:
		o.TypeMeta = typeMeta(KindManager)
	case *Agent:
		o.TypeMeta = typeMeta(KindAgent)
	case *Ship:
		o.TypeMeta = typeMeta(KindShip)
	}
}

func typeMeta(kind Kind) TypeMeta {
	return TypeMeta{APIVersion: GroupVersion, Kind: string(kind)}
}
