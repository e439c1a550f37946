package operator

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/danmuck/spacectl/internal/auth"
	"github.com/danmuck/spacectl/internal/config"
	"github.com/danmuck/spacectl/internal/controller"
	"github.com/danmuck/spacectl/internal/credential"
	"github.com/danmuck/spacectl/internal/crds"
	"github.com/danmuck/spacectl/internal/game"
	"github.com/danmuck/spacectl/internal/observability"
	"github.com/danmuck/spacectl/internal/server"
	"github.com/danmuck/spacectl/internal/store"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// NamespacePrefix prefixes the namespace created for each game account.
const NamespacePrefix = "spacetraders-"

var ErrInvalidBootstrap = errors.New("operator: invalid bootstrap")

// Service runs the Manager, Agent and Ship controllers and the admin server
// against one store and one game service.
type Service struct {
	cfg      config.Config
	store    store.Store
	cell     *credential.Cell
	registry *controller.Registry
	admin    *server.Admin
}

// NewService wires reconcilers into controllers. The admin server is built
// only when cfg.Admin.ListenAddr is set.
func NewService(cfg config.Config, s store.Store, svc game.Service) (*Service, error) {
	if s == nil || svc == nil {
		return nil, fmt.Errorf("%w: store and game service required", controller.ErrInvalidOptions)
	}
	observability.RegisterMetrics()
	cell := credential.NewCell()
	registry := controller.NewRegistry()

	reconcilers := []struct {
		kind crds.Kind
		r    controller.Reconciler
	}{
		{crds.KindManager, &ManagerReconciler{Store: s, FieldManager: cfg.FieldManager}},
		{crds.KindAgent, &AgentReconciler{Store: s, Game: svc, Cell: cell, FieldManager: cfg.FieldManager, PageSize: cfg.Game.PageSize}},
		{crds.KindShip, &ShipReconciler{Store: s, Cell: cell, FieldManager: cfg.FieldManager, Resync: cfg.ShipResync}},
	}
	for _, rc := range reconcilers {
		c, err := controller.New(s, rc.r, controller.Options{
			Kind:         rc.kind,
			Namespace:    cfg.Namespace,
			Workers:      cfg.Workers,
			ErrorRequeue: cfg.RequeueDelay,
			Classify:     ErrorKind,
			Metrics:      observability.Reconciles{},
		})
		if err != nil {
			return nil, err
		}
		registry.Register(c)
	}

	out := &Service{cfg: cfg, store: s, cell: cell, registry: registry}
	if strings.TrimSpace(cfg.Admin.ListenAddr) != "" {
		var validator auth.Validator
		if cfg.Admin.Token != "" {
			validator = auth.StaticToken{Token: cfg.Admin.Token}
		}
		out.admin = server.New(server.Config{
			ListenAddr:  cfg.Admin.ListenAddr,
			CorsOrigins: cfg.Admin.CorsOrigins,
			Validator:   validator,
			Version:     Version(),
		}, registry, cell)
	}
	return out, nil
}

func (s *Service) Registry() *controller.Registry { return s.registry }
func (s *Service) Cell() *credential.Cell         { return s.cell }

// Run blocks until every loop has returned. A loop that fails does not stop
// the others; only cancelling ctx does. The first failure is returned.
func (s *Service) Run(ctx context.Context) error {
	if symbol := strings.TrimSpace(s.cfg.Bootstrap.Symbol); symbol != "" {
		faction, err := crds.ParseFaction(s.cfg.Bootstrap.Faction)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidBootstrap, err)
		}
		if _, _, err := InitManager(ctx, s.store, symbol, faction); err != nil {
			return err
		}
	}

	var g errgroup.Group
	for _, c := range s.registry.All() {
		g.Go(func() error {
			if err := c.Run(ctx); err != nil {
				log.Error().Err(err).Str("controller", c.Name()).Msg("controller exited")
				return fmt.Errorf("controller %s: %w", c.Name(), err)
			}
			return nil
		})
	}
	if s.admin != nil {
		g.Go(func() error {
			err := s.admin.Run(ctx)
			if err != nil {
				log.Error().Err(err).Msg("admin server exited")
			}
			return err
		})
	}
	log.Info().
		Str("store", s.cfg.Store).
		Str("namespace", s.cfg.Namespace).
		Int("controllers", len(s.registry.All())).
		Bool("admin", s.admin != nil).
		Msg("operator started")
	err := g.Wait()
	log.Info().Err(err).Msg("operator stopped")
	return err
}

// InitManager ensures the account namespace and its root Manager exist.
// created is false when the Manager was already there.
func InitManager(ctx context.Context, s store.Store, symbol string, faction crds.Faction) (*crds.Manager, bool, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return nil, false, fmt.Errorf("%w: symbol required", ErrInvalidBootstrap)
	}
	name := crds.NameFor(symbol)
	if err := crds.ValidateName(name); err != nil {
		return nil, false, fmt.Errorf("%w: %w", ErrInvalidBootstrap, err)
	}
	ns := NamespacePrefix + name
	if err := s.EnsureNamespace(ctx, ns); err != nil {
		return nil, false, fmt.Errorf("operator: namespace %s: %w", ns, err)
	}

	obj, err := s.Create(ctx, crds.NewManager(symbol, faction, ns))
	if errors.Is(err, store.ErrAlreadyExists) {
		existing, getErr := store.Get[*crds.Manager](ctx, s, crds.Key{Kind: crds.KindManager, Namespace: ns, Name: name})
		if getErr != nil {
			return nil, false, fmt.Errorf("operator: manager %s/%s: %w", ns, name, getErr)
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("operator: create manager %s/%s: %w", ns, name, err)
	}
	log.Info().
		Str("namespace", ns).
		Str("name", name).
		Str("faction", string(faction)).
		Msg("manager created")
	return obj.(*crds.Manager), true, nil
}

// OpenStore builds the backend named by cfg.Store.
func OpenStore(cfg config.Config) (store.Store, error) {
	switch cfg.Store {
	case config.StoreMemory:
		return store.NewMemory(), nil
	case config.StoreKube:
		rc, err := store.LoadRESTConfig(cfg.Kubeconfig)
		if err != nil {
			return nil, err
		}
		return store.NewKube(rc)
	}
	return nil, fmt.Errorf("%w: store %q", config.ErrInvalid, cfg.Store)
}

// NewGameClient builds the HTTP game client with metrics attached.
func NewGameClient(cfg config.Config) (*game.Client, error) {
	return game.NewClient(game.ClientConfig{
		BaseURL:  cfg.Game.BaseURL,
		Timeout:  cfg.Game.Timeout,
		Rate:     cfg.Game.Rate,
		Burst:    cfg.Game.Burst,
		Observer: observability.ObserveGameCall,
	})
}

// Version reports the module version baked in at build time.
func Version() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}
