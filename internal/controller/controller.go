// Package controller is the generic level-triggered reconciliation engine.
//
// Ownership boundary:
// - list+watch of one resource kind, re-established when the stream drops
// - de-duplicated work queue of resource keys
// - reconcile invocation, fixed-delay error requeue, explicit RequeueAfter
//
// Reconcilers own all domain semantics. The engine never inspects objects
// beyond their key and never gives up on a key.
package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/danmuck/spacectl/internal/crds"
	"github.com/danmuck/spacectl/internal/store"
	"github.com/rs/zerolog/log"
	"k8s.io/client-go/util/workqueue"
)

const (
	DefaultErrorRequeue    = 5 * time.Second
	DefaultRewatchDelay    = time.Second
	DefaultMaxRewatchDelay = 30 * time.Second

	ResultSuccess = "success"
	ResultRequeue = "requeue"
	ResultError   = "error"
)

var (
	ErrInvalidOptions = errors.New("controller: invalid options")
	ErrAlreadyRunning = errors.New("controller: already running")
)

// Result tells the engine what to do after a successful reconcile. The zero
// value waits for the next change to the resource.
type Result struct {
	RequeueAfter time.Duration
}

func AwaitChange() Result { return Result{} }

func RequeueAfter(d time.Duration) Result { return Result{RequeueAfter: d} }

// Reconciler drives one resource toward its desired state. It must be
// idempotent: it is re-run on every change, on requeue, and after errors.
type Reconciler interface {
	Reconcile(ctx context.Context, key crds.Key) (Result, error)
}

// ReconcilerFunc adapts a function to Reconciler.
type ReconcilerFunc func(ctx context.Context, key crds.Key) (Result, error)

func (f ReconcilerFunc) Reconcile(ctx context.Context, key crds.Key) (Result, error) {
	return f(ctx, key)
}

// Metrics is the sink for per-reconcile samples.
type Metrics interface {
	ObserveReconcile(controller, result string, elapsed time.Duration)
	ObserveReconcileError(controller, errorKind string)
}

type Options struct {
	Name         string
	Kind         crds.Kind
	Namespace    string // empty watches every namespace
	Workers      int
	ErrorRequeue time.Duration
	// RewatchDelay is the pause before re-listing after a watch ends. Repeated
	// list/watch failures back off up to MaxRewatchDelay.
	RewatchDelay    time.Duration
	MaxRewatchDelay time.Duration
	// Classify maps a reconcile error to a short label for logs and metrics.
	Classify func(error) string
	Metrics  Metrics
}

// Stats is a point-in-time view of one controller.
type Stats struct {
	Name          string    `json:"name"`
	Kind          string    `json:"kind"`
	Running       bool      `json:"running"`
	Reconciles    uint64    `json:"reconciles"`
	Errors        uint64    `json:"errors"`
	LastError     string    `json:"last_error,omitempty"`
	LastErrorKind string    `json:"last_error_kind,omitempty"`
	LastReconcile time.Time `json:"last_reconcile,omitempty"`
	QueueDepth    int       `json:"queue_depth"`
}

// Controller runs one Reconciler over every object of one kind.
type Controller struct {
	opts       Options
	store      store.Store
	reconciler Reconciler
	queue      workqueue.TypedDelayingInterface[crds.Key]

	mu      sync.Mutex
	running bool
	stats   Stats
}

func New(s store.Store, r Reconciler, opts Options) (*Controller, error) {
	if s == nil || r == nil {
		return nil, fmt.Errorf("%w: store and reconciler required", ErrInvalidOptions)
	}
	if !opts.Kind.Valid() {
		return nil, fmt.Errorf("%w: kind %q", ErrInvalidOptions, opts.Kind)
	}
	if strings.TrimSpace(opts.Name) == "" {
		opts.Name = opts.Kind.Singular()
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.ErrorRequeue <= 0 {
		opts.ErrorRequeue = DefaultErrorRequeue
	}
	if opts.RewatchDelay <= 0 {
		opts.RewatchDelay = DefaultRewatchDelay
	}
	if opts.MaxRewatchDelay < opts.RewatchDelay {
		opts.MaxRewatchDelay = DefaultMaxRewatchDelay
		if opts.MaxRewatchDelay < opts.RewatchDelay {
			opts.MaxRewatchDelay = opts.RewatchDelay
		}
	}
	if opts.Classify == nil {
		opts.Classify = func(error) string { return "unknown" }
	}
	return &Controller{
		opts:       opts,
		store:      s,
		reconciler: r,
		queue: workqueue.NewTypedDelayingQueueWithConfig(workqueue.TypedDelayingQueueConfig[crds.Key]{
			Name: opts.Name,
		}),
		stats: Stats{Name: opts.Name, Kind: string(opts.Kind)},
	}, nil
}

func (c *Controller) Name() string { return c.opts.Name }

// Trigger enqueues key as if its resource had changed.
func (c *Controller) Trigger(key crds.Key) {
	c.queue.Add(key)
}

func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.stats
	out.Running = c.running
	out.QueueDepth = c.queue.Len()
	return out
}

// Run blocks until ctx is cancelled. Reconcile errors never end Run; they
// are logged and the key is requeued after the fixed error delay.
func (c *Controller) Run(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, c.opts.Name)
	}
	c.running = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()

	log.Info().
		Str("controller", c.opts.Name).
		Str("kind", string(c.opts.Kind)).
		Str("namespace", c.opts.Namespace).
		Int("workers", c.opts.Workers).
		Msg("controller starting")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.watchLoop(ctx)
	}()
	for i := 0; i < c.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c.processNext(ctx) {
			}
		}()
	}

	<-ctx.Done()
	c.queue.ShutDown()
	wg.Wait()
	log.Info().Str("controller", c.opts.Name).Msg("controller stopped")
	return nil
}

func (c *Controller) watchLoop(ctx context.Context) {
	backoff := Backoff{Initial: c.opts.RewatchDelay, Max: c.opts.MaxRewatchDelay, Multiplier: 2}
	failures := 0
	for {
		delay := c.opts.RewatchDelay
		if err := c.syncOnce(ctx); err != nil && ctx.Err() == nil {
			failures++
			delay = backoff.Delay(failures)
			log.Warn().
				Err(err).
				Str("controller", c.opts.Name).
				Int("attempt", failures).
				Dur("retry_in", delay).
				Msg("list/watch failed")
		} else {
			failures = 0
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// syncOnce opens a watch, enqueues every listed object, then follows the
// watch until it closes. The watch is opened first so no change between the
// list and the watch is lost.
func (c *Controller) syncOnce(ctx context.Context) error {
	events, err := c.store.Watch(ctx, c.opts.Kind, c.opts.Namespace)
	if err != nil {
		return fmt.Errorf("watch %s: %w", c.opts.Kind, err)
	}
	objs, err := c.store.List(ctx, c.opts.Kind, c.opts.Namespace)
	if err != nil {
		return fmt.Errorf("list %s: %w", c.opts.Kind, err)
	}
	for _, obj := range objs {
		c.queue.Add(crds.KeyOf(obj))
	}
	log.Debug().Str("controller", c.opts.Name).Int("objects", len(objs)).Msg("initial list enqueued")

	for ev := range events {
		key := crds.KeyOf(ev.Object)
		switch ev.Type {
		case store.Added, store.Modified:
			c.queue.Add(key)
		case store.Deleted:
			log.Debug().Str("controller", c.opts.Name).Str("namespace", key.Namespace).Str("name", key.Name).Msg("resource deleted")
		}
	}
	return nil
}

func (c *Controller) processNext(ctx context.Context) bool {
	key, shutdown := c.queue.Get()
	if shutdown {
		return false
	}
	defer c.queue.Done(key)

	start := time.Now()
	res, err := c.reconciler.Reconcile(ctx, key)
	elapsed := time.Since(start)

	if err != nil {
		kind := c.opts.Classify(err)
		c.record(start, err, kind)
		c.observe(ResultError, elapsed)
		if c.opts.Metrics != nil {
			c.opts.Metrics.ObserveReconcileError(c.opts.Name, kind)
		}
		if ctx.Err() != nil {
			return true
		}
		log.Error().
			Err(err).
			Str("controller", c.opts.Name).
			Str("namespace", key.Namespace).
			Str("name", key.Name).
			Str("error_kind", kind).
			Dur("requeue_in", c.opts.ErrorRequeue).
			Msg("reconcile failed")
		c.queue.AddAfter(key, c.opts.ErrorRequeue)
		return true
	}

	c.record(start, nil, "")
	if res.RequeueAfter > 0 {
		c.observe(ResultRequeue, elapsed)
		c.queue.AddAfter(key, res.RequeueAfter)
	} else {
		c.observe(ResultSuccess, elapsed)
	}
	log.Debug().
		Str("controller", c.opts.Name).
		Str("namespace", key.Namespace).
		Str("name", key.Name).
		Dur("elapsed", elapsed).
		Dur("requeue_in", res.RequeueAfter).
		Msg("reconciled")
	return true
}

func (c *Controller) record(at time.Time, err error, kind string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.Reconciles++
	c.stats.LastReconcile = at
	if err != nil {
		c.stats.Errors++
		c.stats.LastError = err.Error()
		c.stats.LastErrorKind = kind
	}
}

func (c *Controller) observe(result string, elapsed time.Duration) {
	if c.opts.Metrics != nil {
		c.opts.Metrics.ObserveReconcile(c.opts.Name, result, elapsed)
	}
}
