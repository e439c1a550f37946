// Package game is the SpaceTraders API boundary.
//
// Ownership boundary:
// - unauthenticated calls (register, server status)
// - authenticated Session calls scoped to one bearer token
// - paging of list endpoints
//
// Reconcilers and the travel machine depend on the Service and Session
// interfaces only; Client is the HTTP implementation.
package game

import (
	"context"
	"errors"
	"fmt"

	"github.com/danmuck/spacectl/internal/crds"
)

const (
	DefaultBaseURL  = "https://api.spacetraders.io/v2"
	DefaultPageSize = 20
	MaxPageSize     = 20
)

var (
	ErrMissingToken     = errors.New("game: missing token")
	ErrPaging           = errors.New("game: inconsistent paging")
	ErrResponseTooLarge = errors.New("game: response body too large")
)

// Service covers the calls that do not need an agent token.
type Service interface {
	Register(ctx context.Context, symbol string, faction crds.Faction) (RegisterResult, error)
	Status(ctx context.Context) (ServerStatus, error)
	Authenticate(token string) Session
}

// Session is an authenticated handle. Implementations are safe for
// concurrent use and cheap to copy by reference.
type Session interface {
	GetAgent(ctx context.Context) (Agent, error)
	ListShips(ctx context.Context, page, limit int) (ShipPage, error)
	GetShip(ctx context.Context, symbol string) (Ship, error)
	OrbitShip(ctx context.Context, symbol string) (Nav, error)
	DockShip(ctx context.Context, symbol string) (Nav, error)
	NavigateShip(ctx context.Context, symbol, destination string) (Nav, error)
}

// ListAllShips concatenates every page of the ship roster.
func ListAllShips(ctx context.Context, s Session, limit int) ([]Ship, error) {
	if limit <= 0 || limit > MaxPageSize {
		limit = DefaultPageSize
	}
	var all []Ship
	for page := 1; ; page++ {
		res, err := s.ListShips(ctx, page, limit)
		if err != nil {
			return nil, fmt.Errorf("list ships page %d: %w", page, err)
		}
		all = append(all, res.Ships...)
		if len(all) >= res.Meta.Total || len(res.Ships) == 0 {
			if len(all) < res.Meta.Total {
				return nil, fmt.Errorf("%w: got %d of %d ships", ErrPaging, len(all), res.Meta.Total)
			}
			return all, nil
		}
	}
}

// APIError is a non-2xx response from the game.
type APIError struct {
	Endpoint string
	Status   int
	Code     int
	Message  string
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("game: %s: http %d code %d: %s", e.Endpoint, e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("game: %s: http %d: %s", e.Endpoint, e.Status, e.Message)
}

// StatusCode extracts the HTTP status from err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}
