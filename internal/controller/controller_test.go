package controller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/spacectl/internal/crds"
	"github.com/danmuck/spacectl/internal/store"
	"github.com/danmuck/spacectl/internal/testutil/testlog"
)

type recorder struct {
	mu     sync.Mutex
	calls  map[crds.Key]int
	notify chan crds.Key
	fn     func(key crds.Key, n int) (Result, error)
}

func newRecorder(fn func(key crds.Key, n int) (Result, error)) *recorder {
	return &recorder{calls: make(map[crds.Key]int), notify: make(chan crds.Key, 64), fn: fn}
}

func (r *recorder) Reconcile(_ context.Context, key crds.Key) (Result, error) {
	r.mu.Lock()
	r.calls[key]++
	n := r.calls[key]
	r.mu.Unlock()
	defer func() { r.notify <- key }()
	if r.fn == nil {
		return AwaitChange(), nil
	}
	return r.fn(key, n)
}

func (r *recorder) count(key crds.Key) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[key]
}

func waitFor(t *testing.T, r *recorder, key crds.Key, n int) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for r.count(key) < n {
		select {
		case <-r.notify:
		case <-deadline:
			t.Fatalf("timed out waiting for %d reconciles of %s (got %d)", n, key, r.count(key))
		}
	}
}

func startController(t *testing.T, s store.Store, r Reconciler, opts Options) (*Controller, context.CancelFunc) {
	t.Helper()
	c, err := New(s, r, opts)
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := c.Run(ctx); err != nil {
			t.Errorf("run: %v", err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return c, cancel
}

func TestControllerReconcilesExistingAndChangedObjects(t *testing.T) {
	testlog.Start(t)

	ctx := context.Background()
	s := store.NewMemory()
	existing, err := s.Create(ctx, crds.NewManager("ALPHA", crds.FactionCosmic, "ns"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	r := newRecorder(nil)
	startController(t, s, r, Options{Kind: crds.KindManager})
	waitFor(t, r, crds.KeyOf(existing), 1)

	created, err := s.Create(ctx, crds.NewManager("BRAVO", crds.FactionVoid, "ns"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	waitFor(t, r, crds.KeyOf(created), 1)

	if _, err := s.Patch(ctx, crds.KeyOf(existing), []byte(`{"spec":{"faction":"VOID"}}`), "test"); err != nil {
		t.Fatalf("patch: %v", err)
	}
	waitFor(t, r, crds.KeyOf(existing), 2)
}

func TestControllerRequeuesErrorsAfterFixedDelay(t *testing.T) {
	testlog.Start(t)

	s := store.NewMemory()
	obj, err := s.Create(context.Background(), crds.NewManager("ALPHA", crds.FactionCosmic, "ns"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	boom := errors.New("boom")
	r := newRecorder(func(_ crds.Key, n int) (Result, error) {
		if n < 3 {
			return Result{}, boom
		}
		return AwaitChange(), nil
	})

	c, _ := startController(t, s, r, Options{
		Kind:         crds.KindManager,
		ErrorRequeue: 10 * time.Millisecond,
		Classify: func(err error) string {
			if errors.Is(err, boom) {
				return "boom"
			}
			return "unknown"
		},
	})
	waitFor(t, r, crds.KeyOf(obj), 3)

	stats := c.Stats()
	if stats.Errors != 2 || stats.LastErrorKind != "boom" {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	time.Sleep(50 * time.Millisecond)
	if got := r.count(crds.KeyOf(obj)); got != 3 {
		t.Fatalf("success must stop requeueing, got %d reconciles", got)
	}
}

func TestControllerHonorsRequeueAfterAndTrigger(t *testing.T) {
	testlog.Start(t)

	s := store.NewMemory()
	obj, err := s.Create(context.Background(), crds.NewManager("ALPHA", crds.FactionCosmic, "ns"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	r := newRecorder(func(_ crds.Key, n int) (Result, error) {
		if n == 1 {
			return RequeueAfter(10 * time.Millisecond), nil
		}
		return AwaitChange(), nil
	})
	c, _ := startController(t, s, r, Options{Kind: crds.KindManager})
	key := crds.KeyOf(obj)
	waitFor(t, r, key, 2)

	c.Trigger(key)
	waitFor(t, r, key, 3)
}

func TestControllerIgnoresOtherNamespaces(t *testing.T) {
	testlog.Start(t)

	ctx := context.Background()
	s := store.NewMemory()
	r := newRecorder(nil)
	startController(t, s, r, Options{Kind: crds.KindManager, Namespace: "mine"})

	other, err := s.Create(ctx, crds.NewManager("OTHER", crds.FactionCosmic, "theirs"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	mine, err := s.Create(ctx, crds.NewManager("MINE", crds.FactionCosmic, "mine"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	waitFor(t, r, crds.KeyOf(mine), 1)
	if got := r.count(crds.KeyOf(other)); got != 0 {
		t.Fatalf("reconciled foreign namespace %d times", got)
	}
}

func TestNewValidatesOptions(t *testing.T) {
	testlog.Start(t)

	if _, err := New(store.NewMemory(), newRecorder(nil), Options{Kind: "Fleet"}); !errors.Is(err, ErrInvalidOptions) {
		t.Fatalf("expected ErrInvalidOptions, got %v", err)
	}
	if _, err := New(nil, newRecorder(nil), Options{Kind: crds.KindShip}); !errors.Is(err, ErrInvalidOptions) {
		t.Fatalf("expected ErrInvalidOptions, got %v", err)
	}
	c, err := New(store.NewMemory(), newRecorder(nil), Options{Kind: crds.KindShip})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if c.Name() != "ship" || c.opts.ErrorRequeue != DefaultErrorRequeue || c.opts.Workers != 1 {
		t.Fatalf("unexpected defaults: %+v", c.opts)
	}
	if c.opts.RewatchDelay != DefaultRewatchDelay || c.opts.MaxRewatchDelay != DefaultMaxRewatchDelay {
		t.Fatalf("unexpected rewatch defaults: %v / %v", c.opts.RewatchDelay, c.opts.MaxRewatchDelay)
	}
}

func TestRegistrySnapshotSortedByName(t *testing.T) {
	testlog.Start(t)

	reg := NewRegistry()
	for _, kind := range []crds.Kind{crds.KindShip, crds.KindAgent, crds.KindManager} {
		c, err := New(store.NewMemory(), newRecorder(nil), Options{Kind: kind})
		if err != nil {
			t.Fatalf("new: %v", err)
		}
		reg.Register(c)
	}
	snap := reg.Snapshot()
	if len(snap) != 3 || snap[0].Name != "agent" || snap[1].Name != "manager" || snap[2].Name != "ship" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if _, ok := reg.Get("ship"); !ok {
		t.Fatalf("expected ship controller registered")
	}
}
