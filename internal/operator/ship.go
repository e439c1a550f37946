package operator

import (
	"context"
	"fmt"
	"time"

	"github.com/danmuck/spacectl/internal/controller"
	"github.com/danmuck/spacectl/internal/credential"
	"github.com/danmuck/spacectl/internal/crds"
	"github.com/danmuck/spacectl/internal/store"
)

// ShipReconciler mirrors remote ship telemetry into Ship status.
type ShipReconciler struct {
	Store        store.Store
	Cell         *credential.Cell
	FieldManager string
	// Resync re-mirrors a ship this long after a successful pass. Zero waits
	// for the next change to the resource.
	Resync time.Duration
}

func (r *ShipReconciler) Reconcile(ctx context.Context, key crds.Key) (controller.Result, error) {
	ship, err := store.Get[*crds.Ship](ctx, r.Store, key)
	if store.IsNotFound(err) {
		return controller.AwaitChange(), nil
	}
	if err != nil {
		return controller.Result{}, fmt.Errorf("%w: get %s: %w", ErrList, key, err)
	}

	session, ok := r.Cell.Load()
	if !ok {
		return controller.Result{}, fmt.Errorf("%w: ship %s", ErrConfigNotAvailable, key)
	}
	remote, err := session.GetShip(ctx, ship.Spec.Symbol)
	if err != nil {
		return controller.Result{}, fmt.Errorf("%w: ship %s: %w", ErrUpstreamQuery, ship.Spec.Symbol, err)
	}

	status := crds.ShipStatus{
		Location:   remote.Location(),
		NavStatus:  remote.Nav.Status,
		FlightMode: remote.Nav.FlightMode,
	}
	fieldManager := r.FieldManager
	if fieldManager == "" {
		fieldManager = DefaultFieldManager
	}
	if _, err := patchStatus(ctx, r.Store, key, status, fieldManager); err != nil {
		return controller.Result{}, err
	}
	if r.Resync > 0 {
		return controller.RequeueAfter(r.Resync), nil
	}
	return controller.AwaitChange(), nil
}
