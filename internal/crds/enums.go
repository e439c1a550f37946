package crds

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownFaction   = errors.New("crds: unknown faction")
	ErrUnknownNavStatus = errors.New("crds: unknown nav status")
)

// Faction is a starting faction symbol.
type Faction string

const (
	FactionCosmic   Faction = "COSMIC"
	FactionVoid     Faction = "VOID"
	FactionGalactic Faction = "GALACTIC"
	FactionQuantum  Faction = "QUANTUM"
	FactionDominion Faction = "DOMINION"
	FactionAstro    Faction = "ASTRO"
	FactionCorsairs Faction = "CORSAIRS"
	FactionObsidian Faction = "OBSIDIAN"
	FactionAegis    Faction = "AEGIS"
	FactionUnited   Faction = "UNITED"
	FactionSolitary Faction = "SOLITARY"
	FactionCobalt   Faction = "COBALT"
	FactionOmega    Faction = "OMEGA"
	FactionEcho     Faction = "ECHO"
	FactionLords    Faction = "LORDS"
	FactionCult     Faction = "CULT"
	FactionAncients Faction = "ANCIENTS"
	FactionShadow   Faction = "SHADOW"
	FactionEthereal Faction = "ETHEREAL"
)

// Factions returns every known faction in display order.
func Factions() []Faction {
	return []Faction{
		FactionCosmic, FactionVoid, FactionGalactic, FactionQuantum, FactionDominion,
		FactionAstro, FactionCorsairs, FactionObsidian, FactionAegis, FactionUnited,
		FactionSolitary, FactionCobalt, FactionOmega, FactionEcho, FactionLords,
		FactionCult, FactionAncients, FactionShadow, FactionEthereal,
	}
}

// ParseFaction accepts any case and surrounding whitespace.
func ParseFaction(raw string) (Faction, error) {
	candidate := Faction(strings.ToUpper(strings.TrimSpace(raw)))
	for _, f := range Factions() {
		if f == candidate {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFaction, raw)
}

// NavStatus is the ship navigation state reported by the game.
type NavStatus string

const (
	NavDocked    NavStatus = "DOCKED"
	NavInOrbit   NavStatus = "IN_ORBIT"
	NavInTransit NavStatus = "IN_TRANSIT"
)

func ParseNavStatus(raw string) (NavStatus, error) {
	switch s := NavStatus(strings.ToUpper(strings.TrimSpace(raw))); s {
	case NavDocked, NavInOrbit, NavInTransit:
		return s, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownNavStatus, raw)
}

type FlightMode string

const (
	FlightDrift   FlightMode = "DRIFT"
	FlightStealth FlightMode = "STEALTH"
	FlightCruise  FlightMode = "CRUISE"
	FlightBurn    FlightMode = "BURN"
)

// ShipRole is the registration role of a ship. Unknown roles from the game
// are kept verbatim.
type ShipRole string

const (
	RoleFabricator  ShipRole = "FABRICATOR"
	RoleHarvester   ShipRole = "HARVESTER"
	RoleHauler      ShipRole = "HAULER"
	RoleInterceptor ShipRole = "INTERCEPTOR"
	RoleExcavator   ShipRole = "EXCAVATOR"
	RoleTransport   ShipRole = "TRANSPORT"
	RoleRepair      ShipRole = "REPAIR"
	RoleSurveyor    ShipRole = "SURVEYOR"
	RoleCommand     ShipRole = "COMMAND"
	RoleCarrier     ShipRole = "CARRIER"
	RolePatrol      ShipRole = "PATROL"
	RoleSatellite   ShipRole = "SATELLITE"
	RoleExplorer    ShipRole = "EXPLORER"
	RoleRefinery    ShipRole = "REFINERY"
)

func shipRoles() []ShipRole {
	return []ShipRole{
		RoleFabricator, RoleHarvester, RoleHauler, RoleInterceptor, RoleExcavator,
		RoleTransport, RoleRepair, RoleSurveyor, RoleCommand, RoleCarrier,
		RolePatrol, RoleSatellite, RoleExplorer, RoleRefinery,
	}
}

func stringsOf[T ~string](in []T) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = string(v)
	}
	return out
}
