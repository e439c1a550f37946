package operator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/danmuck/spacectl/internal/controller"
	"github.com/danmuck/spacectl/internal/credential"
	"github.com/danmuck/spacectl/internal/crds"
	"github.com/danmuck/spacectl/internal/game"
	"github.com/danmuck/spacectl/internal/store"
	"github.com/rs/zerolog/log"
)

// AgentReconciler registers each Agent once, publishes its session to the
// credential cell, and materializes the starting ship roster once.
type AgentReconciler struct {
	Store        store.Store
	Game         game.Service
	Cell         *credential.Cell
	FieldManager string
	PageSize     int
	Now          func() time.Time

	// Tokens issued by the game whose spec patch has not landed yet. Retrying
	// the patch instead of registering again keeps the token write-once.
	mu      sync.Mutex
	pending map[crds.Key]registration
}

type registration struct {
	token     string
	resetDate *time.Time
}

func (r *AgentReconciler) Reconcile(ctx context.Context, key crds.Key) (controller.Result, error) {
	agent, err := store.Get[*crds.Agent](ctx, r.Store, key)
	if store.IsNotFound(err) {
		return controller.AwaitChange(), nil
	}
	if err != nil {
		return controller.Result{}, fmt.Errorf("%w: get %s: %w", ErrList, key, err)
	}

	session, err := r.reconcileToken(ctx, agent)
	if err != nil {
		return controller.Result{}, err
	}
	r.Cell.Publish(key.Name, session)

	if err := r.reconcileStartingShips(ctx, agent, session); err != nil {
		return controller.Result{}, err
	}
	return controller.AwaitChange(), nil
}

func (r *AgentReconciler) reconcileToken(ctx context.Context, agent *crds.Agent) (game.Session, error) {
	if agent.Spec.HasToken() {
		return r.Game.Authenticate(*agent.Spec.Token), nil
	}
	key := crds.KeyOf(agent)

	reg, ok := r.takePending(key)
	if !ok {
		reg.resetDate = r.resetDate(ctx, key)
		res, err := r.Game.Register(ctx, agent.Spec.Symbol, agent.Spec.Faction)
		if err != nil {
			return nil, fmt.Errorf("%w: %s as %s: %w", ErrUpstreamRegistration, agent.Spec.Symbol, agent.Spec.Faction, err)
		}
		reg.token = res.Token
		log.Info().
			Str("controller", "agent").
			Str("namespace", key.Namespace).
			Str("name", key.Name).
			Str("symbol", agent.Spec.Symbol).
			Str("headquarters", res.Agent.Headquarters).
			Msg("agent registered")
	}

	patch, err := json.Marshal(map[string]any{"spec": map[string]any{
		"token":     reg.token,
		"resetDate": reg.resetDate,
	}})
	if err != nil {
		r.putPending(key, reg)
		return nil, fmt.Errorf("%w: encode token %s: %w", ErrPatch, key, err)
	}
	if _, err := r.Store.Patch(ctx, key, patch, r.fieldManager()); err != nil {
		// A recreated Agent under the same key picks the token up again.
		r.putPending(key, reg)
		if store.IsNotFound(err) {
			return nil, fmt.Errorf("%w: agent %s removed before its token was stored: %w", ErrNotFound, key, err)
		}
		return nil, fmt.Errorf("%w: token %s: %w", ErrPatch, key, err)
	}
	agent.Spec.Token = &reg.token
	agent.Spec.ResetDate = reg.resetDate
	return r.Game.Authenticate(reg.token), nil
}

// resetDate is best effort; registration does not depend on it.
func (r *AgentReconciler) resetDate(ctx context.Context, key crds.Key) *time.Time {
	status, err := r.Game.Status(ctx)
	if err == nil {
		var reset time.Time
		if reset, err = status.ResetTime(); err == nil {
			return &reset
		}
	}
	log.Warn().
		Err(err).
		Str("controller", "agent").
		Str("namespace", key.Namespace).
		Str("name", key.Name).
		Msg("server status unavailable; registering without reset date")
	return nil
}

func (r *AgentReconciler) reconcileStartingShips(ctx context.Context, agent *crds.Agent, session game.Session) error {
	if agent.ShipsInitialized() {
		return nil
	}
	key := crds.KeyOf(agent)
	ships, err := game.ListAllShips(ctx, session, r.PageSize)
	if err != nil {
		return fmt.Errorf("%w: ships of %s: %w", ErrUpstreamQuery, agent.Spec.Symbol, err)
	}

	symbols := make([]string, 0, len(ships))
	for _, ship := range ships {
		desired := crds.NewOwnedShip(agent, ship.Symbol, ship.Registration.Role)
		if _, err := upsert(ctx, r.Store, desired, desired.Spec, r.fieldManager()); err != nil {
			return err
		}
		symbols = append(symbols, ship.Symbol)
	}

	now := r.now()
	status := crds.AgentStatus{
		Checksum:         checksum(symbols...),
		ShipsInitialized: true,
		LastUpdated:      &now,
	}
	if _, err := patchStatus(ctx, r.Store, key, status, r.fieldManager()); err != nil {
		return err
	}
	log.Info().
		Str("controller", "agent").
		Str("namespace", key.Namespace).
		Str("name", key.Name).
		Int("ships", len(symbols)).
		Msg("starting ships materialized")
	return nil
}

func (r *AgentReconciler) takePending(key crds.Key) (registration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.pending[key]
	delete(r.pending, key)
	return reg, ok
}

func (r *AgentReconciler) putPending(key crds.Key, reg registration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending == nil {
		r.pending = make(map[crds.Key]registration)
	}
	r.pending[key] = reg
}

func (r *AgentReconciler) fieldManager() string {
	if r.FieldManager == "" {
		return DefaultFieldManager
	}
	return r.FieldManager
}

func (r *AgentReconciler) now() time.Time {
	if r.Now == nil {
		return time.Now().UTC().Truncate(time.Second)
	}
	return r.Now()
}
