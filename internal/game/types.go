package game

import (
	"fmt"
	"time"

	"github.com/danmuck/spacectl/internal/crds"
)

// Agent is the authenticated player account.
type Agent struct {
	AccountID       string `json:"accountId,omitempty"`
	Symbol          string `json:"symbol"`
	Headquarters    string `json:"headquarters"`
	Credits         int64  `json:"credits"`
	StartingFaction string `json:"startingFaction"`
	ShipCount       int    `json:"shipCount"`
}

type RouteWaypoint struct {
	Symbol       string `json:"symbol"`
	Type         string `json:"type"`
	SystemSymbol string `json:"systemSymbol"`
	X            int    `json:"x"`
	Y            int    `json:"y"`
}

type Route struct {
	Destination   RouteWaypoint `json:"destination"`
	Origin        RouteWaypoint `json:"origin"`
	DepartureTime time.Time     `json:"departureTime"`
	Arrival       time.Time     `json:"arrival"`
}

// Nav is a ship's navigation block; every movement command returns one.
type Nav struct {
	SystemSymbol   string          `json:"systemSymbol"`
	WaypointSymbol string          `json:"waypointSymbol"`
	Route          Route           `json:"route"`
	Status         crds.NavStatus  `json:"status"`
	FlightMode     crds.FlightMode `json:"flightMode"`
}

type Registration struct {
	Name          string        `json:"name"`
	FactionSymbol string        `json:"factionSymbol"`
	Role          crds.ShipRole `json:"role"`
}

type Fuel struct {
	Current  int `json:"current"`
	Capacity int `json:"capacity"`
}

// Ship is the subset of remote ship telemetry spacectl consumes.
type Ship struct {
	Symbol       string       `json:"symbol"`
	Registration Registration `json:"registration"`
	Nav          Nav          `json:"nav"`
	Fuel         Fuel         `json:"fuel"`
}

// Location is the waypoint the ship currently occupies (or is bound for
// while in transit).
func (s Ship) Location() string { return s.Nav.WaypointSymbol }

type Contract struct {
	ID            string `json:"id"`
	FactionSymbol string `json:"factionSymbol"`
	Type          string `json:"type"`
	Accepted      bool   `json:"accepted"`
	Fulfilled     bool   `json:"fulfilled"`
}

type Faction struct {
	Symbol       string `json:"symbol"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	Headquarters string `json:"headquarters"`
	IsRecruiting bool   `json:"isRecruiting"`
}

// Registration result returned once per agent symbol.
type RegisterResult struct {
	Token    string   `json:"token"`
	Agent    Agent    `json:"agent"`
	Contract Contract `json:"contract"`
	Faction  Faction  `json:"faction"`
	Ship     Ship     `json:"ship"`
}

type ServerStats struct {
	Agents    int `json:"agents"`
	Ships     int `json:"ships"`
	Systems   int `json:"systems"`
	Waypoints int `json:"waypoints"`
}

type ServerResets struct {
	Next      time.Time `json:"next"`
	Frequency string    `json:"frequency"`
}

// ServerStatus is the unauthenticated GET / document.
type ServerStatus struct {
	Status       string       `json:"status"`
	Version      string       `json:"version"`
	ResetDate    string       `json:"resetDate"`
	Description  string       `json:"description"`
	Stats        ServerStats  `json:"stats"`
	ServerResets ServerResets `json:"serverResets"`
}

const resetDateLayout = "2006-01-02"

// ResetTime parses ResetDate (YYYY-MM-DD, UTC midnight).
func (s ServerStatus) ResetTime() (time.Time, error) {
	t, err := time.Parse(resetDateLayout, s.ResetDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("game: reset date %q: %w", s.ResetDate, err)
	}
	return t.UTC(), nil
}

// Meta is the paging block of list endpoints.
type Meta struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

type ShipPage struct {
	Ships []Ship
	Meta  Meta
}
