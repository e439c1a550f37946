// Package travel drives one ship to a destination waypoint through the
// Docked, InOrbit, InTransit, Arrived and Complete states.
//
// The machine trusts only the nav status the game acknowledges. An action
// whose reported status does not match its post-condition fails with
// ErrTransitionIntegrity and leaves the state unchanged; retrying is the
// caller's job.
package travel

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/danmuck/spacectl/internal/crds"
	"github.com/danmuck/spacectl/internal/game"
)

const DefaultStepDelay = 5 * time.Second

var (
	ErrAlreadyComplete     = errors.New("travel: already complete")
	ErrTransitionIntegrity = errors.New("travel: transition integrity failure")
	ErrUpstream            = errors.New("travel: upstream call failed")
	ErrInvalidInput        = errors.New("travel: invalid input")
)

// Observer is told about every step that changes the state.
type Observer func(from, to State)

type Option func(*Machine)

// WithStepDelay sets the pause taken before every step. Zero disables it.
func WithStepDelay(d time.Duration) Option {
	return func(m *Machine) {
		if d >= 0 {
			m.delay = d
		}
	}
}

type Machine struct {
	session     game.Session
	ship        string
	destination string
	delay       time.Duration
	state       State
}

// New reads the ship once and classifies where the trip starts.
func New(ctx context.Context, session game.Session, destination, ship string, opts ...Option) (*Machine, error) {
	destination = strings.TrimSpace(destination)
	ship = strings.TrimSpace(ship)
	if session == nil || destination == "" || ship == "" {
		return nil, fmt.Errorf("%w: session, destination and ship are required", ErrInvalidInput)
	}
	m := &Machine{
		session:     session,
		ship:        ship,
		destination: destination,
		delay:       DefaultStepDelay,
	}
	for _, opt := range opts {
		opt(m)
	}

	observed, err := session.GetShip(ctx, ship)
	if err != nil {
		return nil, fmt.Errorf("%w: get ship %s: %w", ErrUpstream, ship, err)
	}
	state, err := m.classify(observed.Nav)
	if err != nil {
		return nil, err
	}
	m.state = state
	return m, nil
}

func (m *Machine) classify(nav game.Nav) (State, error) {
	here := nav.WaypointSymbol == m.destination
	switch nav.Status {
	case crds.NavDocked:
		if here {
			return Complete{Location: nav.WaypointSymbol}, nil
		}
		return Docked{Location: nav.WaypointSymbol}, nil
	case crds.NavInOrbit:
		if here {
			return Arrived{Location: nav.WaypointSymbol}, nil
		}
		return InOrbit{Location: nav.WaypointSymbol}, nil
	case crds.NavInTransit:
		return InTransit{Destination: nav.Route.Destination.Symbol, Arrival: nav.Route.Arrival}, nil
	}
	return nil, fmt.Errorf("%w: ship %s reports nav status %q", ErrTransitionIntegrity, m.ship, nav.Status)
}

func (m *Machine) State() State        { return m.state }
func (m *Machine) Ship() string        { return m.ship }
func (m *Machine) Destination() string { return m.destination }

func (m *Machine) Done() bool {
	_, ok := m.state.(Complete)
	return ok
}

// Step waits the step delay, performs at most one remote action, and returns
// the new state. On error the state is unchanged.
func (m *Machine) Step(ctx context.Context) (State, error) {
	if m.Done() {
		return m.state, ErrAlreadyComplete
	}
	if err := m.wait(ctx); err != nil {
		return m.state, err
	}

	var (
		next State
		err  error
	)
	switch s := m.state.(type) {
	case Docked:
		if s.Location == m.destination {
			next = Complete{Location: s.Location}
			break
		}
		var nav game.Nav
		if nav, err = m.act("orbit", func() (game.Nav, error) { return m.session.OrbitShip(ctx, m.ship) }); err == nil {
			next = InOrbit{Location: nav.WaypointSymbol}
		}
	case InOrbit:
		var nav game.Nav
		if nav, err = m.act("navigate", func() (game.Nav, error) { return m.session.NavigateShip(ctx, m.ship, m.destination) }); err == nil {
			next = InTransit{Destination: m.destination, Arrival: nav.Route.Arrival}
		}
	case InTransit:
		next, err = m.poll(ctx, s)
	case Arrived:
		var nav game.Nav
		if nav, err = m.act("dock", func() (game.Nav, error) { return m.session.DockShip(ctx, m.ship) }); err == nil {
			next = Docked{Location: nav.WaypointSymbol}
		}
	default:
		err = fmt.Errorf("%w: unexpected state %T", ErrTransitionIntegrity, m.state)
	}
	if err != nil {
		return m.state, err
	}
	m.state = next
	return next, nil
}

// Run steps until Complete. observe may be nil.
func (m *Machine) Run(ctx context.Context, observe Observer) error {
	for !m.Done() {
		from := m.state
		to, err := m.Step(ctx)
		if err != nil {
			return err
		}
		if observe != nil && from.Name() != to.Name() {
			observe(from, to)
		}
	}
	return nil
}

func (m *Machine) act(op string, call func() (game.Nav, error)) (game.Nav, error) {
	nav, err := call()
	if err != nil {
		return game.Nav{}, fmt.Errorf("%w: %s ship %s: %w", ErrUpstream, op, m.ship, err)
	}
	if want := expectedNav(op); nav.Status != want {
		return game.Nav{}, fmt.Errorf("%w: %s ship %s reported %s, want %s", ErrTransitionIntegrity, op, m.ship, nav.Status, want)
	}
	return nav, nil
}

func (m *Machine) poll(ctx context.Context, s InTransit) (State, error) {
	observed, err := m.session.GetShip(ctx, m.ship)
	if err != nil {
		return nil, fmt.Errorf("%w: get ship %s: %w", ErrUpstream, m.ship, err)
	}
	nav := observed.Nav
	switch {
	case nav.Status == crds.NavInTransit:
		if !nav.Route.Arrival.IsZero() {
			s.Arrival = nav.Route.Arrival
		}
		return s, nil
	case nav.WaypointSymbol == m.destination:
		return Arrived{Location: nav.WaypointSymbol}, nil
	default:
		return InOrbit{Location: nav.WaypointSymbol}, nil
	}
}

func (m *Machine) wait(ctx context.Context) error {
	if m.delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(m.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
