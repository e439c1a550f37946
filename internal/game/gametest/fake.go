// Package gametest provides an in-memory game.Service for tests.
package gametest

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/danmuck/spacectl/internal/crds"
	"github.com/danmuck/spacectl/internal/game"
)

// Fake simulates the subset of the game spacectl drives. Ships in transit
// arrive after a configurable number of GetShip polls.
type Fake struct {
	mu           sync.Mutex
	ships        map[string]*game.Ship
	remaining    map[string]int
	token        string
	resetDate    string
	transitPolls int
	calls        map[string]int
	failures     map[string]error
	forced       map[string]crds.NavStatus
}

func NewFake() *Fake {
	return &Fake{
		ships:     make(map[string]*game.Ship),
		remaining: make(map[string]int),
		resetDate: "2024-03-10",
		calls:     make(map[string]int),
		failures:  make(map[string]error),
		forced:    make(map[string]crds.NavStatus),
	}
}

// AddShip seeds the roster. Ships added IN_TRANSIT arrive at location after
// the current transit poll count.
func (f *Fake) AddShip(symbol string, role crds.ShipRole, location string, status crds.NavStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.remaining[symbol] = f.transitPolls
	f.ships[symbol] = &game.Ship{
		Symbol:       symbol,
		Registration: game.Registration{Name: symbol, Role: role},
		Nav: game.Nav{
			WaypointSymbol: location,
			Status:         status,
			FlightMode:     crds.FlightCruise,
		},
	}
}

// SetToken makes token valid without a Register call.
func (f *Fake) SetToken(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = token
}

// SetTransitPolls sets how many GetShip calls report IN_TRANSIT before arrival.
func (f *Fake) SetTransitPolls(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transitPolls = n
}

// Fail makes every call to op return err until cleared with a nil err.
func (f *Fake) Fail(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failures, op)
		return
	}
	f.failures[op] = err
}

// ForceStatus makes the next op ("orbit", "dock", "navigate") acknowledge
// status instead of the correct one, without moving the ship.
func (f *Fake) ForceStatus(op string, status crds.NavStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forced[op] = status
}

// Calls returns how many times op was invoked.
func (f *Fake) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// TotalCalls sums every recorded call.
func (f *Fake) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

// Ship returns a copy of the current remote ship.
func (f *Fake) Ship(symbol string) (game.Ship, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.ships[symbol]
	if !ok {
		return game.Ship{}, false
	}
	return *s, true
}

func (f *Fake) record(op string) error {
	f.calls[op]++
	return f.failures[op]
}

func (f *Fake) Register(_ context.Context, symbol string, faction crds.Faction) (game.RegisterResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("register"); err != nil {
		return game.RegisterResult{}, err
	}
	f.token = "token-" + symbol
	res := game.RegisterResult{
		Token:   f.token,
		Agent:   game.Agent{Symbol: symbol, StartingFaction: string(faction), ShipCount: len(f.ships)},
		Faction: game.Faction{Symbol: string(faction)},
	}
	if symbols := f.sortedSymbols(); len(symbols) > 0 {
		res.Ship = *f.ships[symbols[0]]
	}
	return res, nil
}

func (f *Fake) Status(context.Context) (game.ServerStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("status"); err != nil {
		return game.ServerStatus{}, err
	}
	return game.ServerStatus{Status: "online", ResetDate: f.resetDate}, nil
}

func (f *Fake) Authenticate(token string) game.Session {
	return &session{fake: f, token: token}
}

func (f *Fake) sortedSymbols() []string {
	out := make([]string, 0, len(f.ships))
	for symbol := range f.ships {
		out = append(out, symbol)
	}
	sort.Strings(out)
	return out
}

type session struct {
	fake  *Fake
	token string
}

func (s *session) begin(op string) error {
	if err := s.fake.record(op); err != nil {
		return err
	}
	if s.token == "" || s.token != s.fake.token {
		return &game.APIError{Endpoint: op, Status: http.StatusUnauthorized, Message: "invalid token"}
	}
	return nil
}

func (s *session) ship(op, symbol string) (*game.Ship, error) {
	if err := s.begin(op); err != nil {
		return nil, err
	}
	ship, ok := s.fake.ships[symbol]
	if !ok {
		return nil, &game.APIError{Endpoint: op, Status: http.StatusNotFound, Message: fmt.Sprintf("ship %s not found", symbol)}
	}
	return ship, nil
}

func (s *session) GetAgent(context.Context) (game.Agent, error) {
	s.fake.mu.Lock()
	defer s.fake.mu.Unlock()
	if err := s.begin("agent"); err != nil {
		return game.Agent{}, err
	}
	return game.Agent{ShipCount: len(s.fake.ships)}, nil
}

func (s *session) ListShips(_ context.Context, page, limit int) (game.ShipPage, error) {
	s.fake.mu.Lock()
	defer s.fake.mu.Unlock()
	if err := s.begin("ships"); err != nil {
		return game.ShipPage{}, err
	}
	symbols := s.fake.sortedSymbols()
	out := game.ShipPage{Meta: game.Meta{Total: len(symbols), Page: page, Limit: limit}}
	for i := (page - 1) * limit; i >= 0 && i < len(symbols) && i < page*limit; i++ {
		out.Ships = append(out.Ships, *s.fake.ships[symbols[i]])
	}
	return out, nil
}

func (s *session) GetShip(_ context.Context, symbol string) (game.Ship, error) {
	s.fake.mu.Lock()
	defer s.fake.mu.Unlock()
	ship, err := s.ship("ship", symbol)
	if err != nil {
		return game.Ship{}, err
	}
	if ship.Nav.Status == crds.NavInTransit {
		if s.fake.remaining[symbol] > 0 {
			s.fake.remaining[symbol]--
		} else {
			ship.Nav.Status = crds.NavInOrbit
		}
	}
	return *ship, nil
}

func (s *session) OrbitShip(_ context.Context, symbol string) (game.Nav, error) {
	return s.move("orbit", symbol, func(ship *game.Ship) {
		ship.Nav.Status = crds.NavInOrbit
	})
}

func (s *session) DockShip(_ context.Context, symbol string) (game.Nav, error) {
	return s.move("dock", symbol, func(ship *game.Ship) {
		ship.Nav.Status = crds.NavDocked
	})
}

func (s *session) NavigateShip(_ context.Context, symbol, destination string) (game.Nav, error) {
	return s.move("navigate", symbol, func(ship *game.Ship) {
		ship.Nav.Route = game.Route{
			Origin:        game.RouteWaypoint{Symbol: ship.Nav.WaypointSymbol},
			Destination:   game.RouteWaypoint{Symbol: destination},
			DepartureTime: time.Now().UTC(),
			Arrival:       time.Now().UTC().Add(time.Minute),
		}
		ship.Nav.WaypointSymbol = destination
		ship.Nav.Status = crds.NavInTransit
		s.fake.remaining[symbol] = s.fake.transitPolls
	})
}

func (s *session) move(op, symbol string, apply func(*game.Ship)) (game.Nav, error) {
	s.fake.mu.Lock()
	defer s.fake.mu.Unlock()
	ship, err := s.ship(op, symbol)
	if err != nil {
		return game.Nav{}, err
	}
	if forced, ok := s.fake.forced[op]; ok {
		delete(s.fake.forced, op)
		nav := ship.Nav
		nav.Status = forced
		return nav, nil
	}
	apply(ship)
	return ship.Nav, nil
}
