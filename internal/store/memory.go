package store

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/danmuck/spacectl/internal/crds"
	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/google/uuid"
)

const subresourceStatus = "status"

// metadata fields owned by the store; patches may not rewrite them.
var protectedMeta = []string{
	"name", "namespace", "uid", "resourceVersion", "generation",
	"creationTimestamp", "managedFields",
}

// Memory is an in-process Store with Kubernetes-like semantics: status
// subresource separation, resource versions that only move on real change,
// per-manager field bookkeeping, and owner-reference cascade deletion.
type Memory struct {
	mu         sync.RWMutex
	objects    map[crds.Key][]byte
	namespaces map[string]struct{}
	watchers   map[uint64]*watcher
	nextID     uint64
	version    uint64
	now        func() time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		objects:    make(map[crds.Key][]byte),
		namespaces: make(map[string]struct{}),
		watchers:   make(map[uint64]*watcher),
		now:        time.Now,
	}
}

// SetClock replaces the timestamp source used for metadata.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *Memory) Get(_ context.Context, key crds.Key) (crds.Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	raw, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return decode(key.Kind, raw)
}

func (m *Memory) List(_ context.Context, kind crds.Kind, namespace string) ([]crds.Object, error) {
	m.mu.RLock()
	keys := make([]crds.Key, 0)
	for key := range m.objects {
		if key.Kind == kind && (namespace == "" || key.Namespace == namespace) {
			keys = append(keys, key)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Namespace != keys[j].Namespace {
			return keys[i].Namespace < keys[j].Namespace
		}
		return keys[i].Name < keys[j].Name
	})
	raws := make([][]byte, len(keys))
	for i, key := range keys {
		raws[i] = m.objects[key]
	}
	m.mu.RUnlock()

	out := make([]crds.Object, 0, len(raws))
	for i, raw := range raws {
		obj, err := decode(keys[i].Kind, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, obj)
	}
	return out, nil
}

func (m *Memory) Watch(ctx context.Context, kind crds.Kind, namespace string) (<-chan Event, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", crds.ErrUnknownKind, kind)
	}
	w := newWatcher(kind, namespace, ctx.Done())

	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.watchers[id] = w
	m.mu.Unlock()

	go w.pump()
	go func() {
		<-ctx.Done()
		m.mu.Lock()
		delete(m.watchers, id)
		m.mu.Unlock()
	}()
	return w.out, nil
}

func (m *Memory) Create(_ context.Context, obj crds.Object) (crds.Object, error) {
	key := crds.KeyOf(obj)
	if !key.Kind.Valid() {
		return nil, fmt.Errorf("%w: %q", crds.ErrUnknownKind, key.Kind)
	}
	if strings.TrimSpace(key.Namespace) == "" {
		return nil, fmt.Errorf("store: create %s: namespace required", key)
	}
	if err := crds.ValidateName(key.Name); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("store: encode %s: %w", key, err)
	}
	cp, err := decode(key.Kind, raw)
	if err != nil {
		return nil, err
	}
	clearStatus(cp)
	crds.SetTypeMeta(cp)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.objects[key]; exists {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, key)
	}
	now := m.now().UTC().Truncate(time.Second)
	m.version++
	meta := cp.GetObjectMeta()
	meta.UID = uuid.NewString()
	meta.ResourceVersion = strconv.FormatUint(m.version, 10)
	meta.Generation = 1
	meta.CreationTimestamp = &now
	meta.ManagedFields = nil

	stored, err := json.Marshal(cp)
	if err != nil {
		return nil, fmt.Errorf("store: encode %s: %w", key, err)
	}
	m.objects[key] = stored
	m.notifyLocked(Added, key, stored)
	return decode(key.Kind, stored)
}

func (m *Memory) Patch(_ context.Context, key crds.Key, patch []byte, fieldManager string) (crds.Object, error) {
	return m.patch(key, patch, fieldManager, "")
}

func (m *Memory) PatchStatus(_ context.Context, key crds.Key, patch []byte, fieldManager string) (crds.Object, error) {
	return m.patch(key, patch, fieldManager, subresourceStatus)
}

func (m *Memory) patch(key crds.Key, patch []byte, fieldManager, subresource string) (crds.Object, error) {
	filtered, err := filterPatch(patch, subresource)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	merged, err := jsonpatch.MergePatch(current, filtered)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPatch, key, err)
	}
	same, err := equalJSON(current, merged)
	if err != nil {
		return nil, err
	}
	if same {
		return decode(key.Kind, current)
	}

	obj, err := decode(key.Kind, merged)
	if err != nil {
		return nil, err
	}
	m.version++
	meta := obj.GetObjectMeta()
	meta.ResourceVersion = strconv.FormatUint(m.version, 10)
	if subresource == "" {
		meta.Generation++
	}
	meta.ManagedFields = recordManager(meta.ManagedFields, fieldManager, subresource, m.now())

	stored, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("store: encode %s: %w", key, err)
	}
	m.objects[key] = stored
	m.notifyLocked(Modified, key, stored)
	return decode(key.Kind, stored)
}

// Delete removes key and, transitively, every object that names it as owner.
func (m *Memory) Delete(_ context.Context, key crds.Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.objects[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return m.deleteLocked(key, raw)
}

func (m *Memory) deleteLocked(key crds.Key, raw []byte) error {
	obj, err := decode(key.Kind, raw)
	if err != nil {
		return err
	}
	delete(m.objects, key)
	m.notifyLocked(Deleted, key, raw)

	uid := obj.GetObjectMeta().UID
	if uid == "" {
		return nil
	}
	var dependents []crds.Key
	for childKey, childRaw := range m.objects {
		var probe struct {
			Metadata crds.ObjectMeta `json:"metadata"`
		}
		if err := json.Unmarshal(childRaw, &probe); err != nil {
			return fmt.Errorf("store: decode %s: %w", childKey, err)
		}
		for _, ref := range probe.Metadata.OwnerReferences {
			if ref.UID == uid {
				dependents = append(dependents, childKey)
				break
			}
		}
	}
	for _, childKey := range dependents {
		childRaw, ok := m.objects[childKey]
		if !ok {
			continue
		}
		if err := m.deleteLocked(childKey, childRaw); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) EnsureNamespace(_ context.Context, namespace string) error {
	if strings.TrimSpace(namespace) == "" {
		return fmt.Errorf("store: namespace required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.namespaces[namespace] = struct{}{}
	return nil
}

// HasNamespace reports whether EnsureNamespace recorded namespace.
func (m *Memory) HasNamespace(namespace string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.namespaces[namespace]
	return ok
}

func (m *Memory) notifyLocked(kind EventType, key crds.Key, raw []byte) {
	for _, w := range m.watchers {
		if w.kind != key.Kind {
			continue
		}
		if w.namespace != "" && w.namespace != key.Namespace {
			continue
		}
		obj, err := decode(key.Kind, raw)
		if err != nil {
			continue
		}
		w.push(Event{Type: kind, Object: obj})
	}
}

// filterPatch drops fields the target endpoint does not own.
func filterPatch(patch []byte, subresource string) ([]byte, error) {
	var body map[string]any
	if err := json.Unmarshal(patch, &body); err != nil || body == nil {
		return nil, fmt.Errorf("%w: body must be a JSON object", ErrInvalidPatch)
	}
	if subresource == subresourceStatus {
		status, ok := body["status"]
		if !ok {
			return nil, fmt.Errorf("%w: status patch without status", ErrInvalidPatch)
		}
		body = map[string]any{"status": status}
	} else {
		delete(body, "status")
		delete(body, "apiVersion")
		delete(body, "kind")
		if md, ok := body["metadata"].(map[string]any); ok {
			for _, field := range protectedMeta {
				delete(md, field)
			}
		}
	}
	return json.Marshal(body)
}

func recordManager(fields []crds.ManagedField, manager, subresource string, now time.Time) []crds.ManagedField {
	if manager == "" {
		return fields
	}
	ts := now.UTC().Truncate(time.Second)
	for i := range fields {
		if fields[i].Manager == manager && fields[i].Subresource == subresource {
			fields[i].Time = &ts
			return fields
		}
	}
	return append(fields, crds.ManagedField{
		Manager:     manager,
		Operation:   "Update",
		Subresource: subresource,
		Time:        &ts,
	})
}

func clearStatus(obj crds.Object) {
	switch o := obj.(type) {
	case *crds.Manager:
		o.Status = nil
	case *crds.Agent:
		o.Status = nil
	case *crds.Ship:
		o.Status = nil
	}
}

func equalJSON(a, b []byte) (bool, error) {
	var left, right any
	if err := json.Unmarshal(a, &left); err != nil {
		return false, fmt.Errorf("store: compare: %w", err)
	}
	if err := json.Unmarshal(b, &right); err != nil {
		return false, fmt.Errorf("store: compare: %w", err)
	}
	return reflect.DeepEqual(left, right), nil
}

// watcher buffers events without bounding so store writers never block on
// slow consumers.
type watcher struct {
	kind      crds.Kind
	namespace string
	out       chan Event
	done      <-chan struct{}
	signal    chan struct{}

	mu      sync.Mutex
	pending []Event
}

func newWatcher(kind crds.Kind, namespace string, done <-chan struct{}) *watcher {
	return &watcher{
		kind:      kind,
		namespace: namespace,
		out:       make(chan Event),
		done:      done,
		signal:    make(chan struct{}, 1),
	}
}

func (w *watcher) push(ev Event) {
	w.mu.Lock()
	w.pending = append(w.pending, ev)
	w.mu.Unlock()
	select {
	case w.signal <- struct{}{}:
	default:
	}
}

func (w *watcher) pump() {
	defer close(w.out)
	for {
		w.mu.Lock()
		batch := w.pending
		w.pending = nil
		w.mu.Unlock()
		for _, ev := range batch {
			select {
			case w.out <- ev:
			case <-w.done:
				return
			}
		}
		select {
		case <-w.signal:
		case <-w.done:
			return
		}
	}
}
