package operator

import (
	"context"
	"fmt"
	"time"

	"github.com/danmuck/spacectl/internal/controller"
	"github.com/danmuck/spacectl/internal/crds"
	"github.com/danmuck/spacectl/internal/store"
	"github.com/rs/zerolog/log"
)

// ManagerReconciler ensures every Manager owns exactly one Agent.
type ManagerReconciler struct {
	Store        store.Store
	FieldManager string
	Now          func() time.Time
}

func (r *ManagerReconciler) Reconcile(ctx context.Context, key crds.Key) (controller.Result, error) {
	manager, err := store.Get[*crds.Manager](ctx, r.Store, key)
	if store.IsNotFound(err) {
		return controller.AwaitChange(), nil
	}
	if err != nil {
		return controller.Result{}, fmt.Errorf("%w: get %s: %w", ErrList, key, err)
	}

	ns := manager.AgentNamespace()
	agents, err := store.List[*crds.Agent](ctx, r.Store, crds.KindAgent, ns)
	if err != nil {
		return controller.Result{}, fmt.Errorf("%w: agents in %s: %w", ErrList, ns, err)
	}
	owned := crds.OwnedBy(agents, manager)
	switch len(owned) {
	case 0:
	case 1:
		return controller.AwaitChange(), nil
	default:
		return controller.Result{}, fmt.Errorf("%w: manager %s owns %d agents", ErrAmbiguousOwnership, key, len(owned))
	}

	desired := crds.NewOwnedAgent(manager)
	obj, err := upsert(ctx, r.Store, desired, desired.Spec, r.fieldManager())
	if err != nil {
		return controller.Result{}, err
	}
	agentKey := crds.KeyOf(obj)
	if _, err := patchStatus(ctx, r.Store, agentKey, crds.AgentStatus{}, r.fieldManager()); err != nil {
		return controller.Result{}, err
	}

	now := r.now()
	status := crds.ManagerStatus{
		Checksum:    checksum(agentKey.String(), obj.GetObjectMeta().UID),
		LastUpdated: &now,
	}
	if _, err := patchStatus(ctx, r.Store, key, status, r.fieldManager()); err != nil {
		return controller.Result{}, err
	}

	log.Info().
		Str("controller", "manager").
		Str("namespace", key.Namespace).
		Str("name", key.Name).
		Str("agent", agentKey.Name).
		Msg("agent materialized")
	return controller.AwaitChange(), nil
}

func (r *ManagerReconciler) fieldManager() string {
	if r.FieldManager == "" {
		return DefaultFieldManager
	}
	return r.FieldManager
}

func (r *ManagerReconciler) now() time.Time {
	if r.Now == nil {
		return time.Now().UTC().Truncate(time.Second)
	}
	return r.Now()
}
