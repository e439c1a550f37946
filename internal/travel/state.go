package travel

import (
	"time"

	"github.com/danmuck/spacectl/internal/crds"
)

// State is one position in the travel lifecycle. Each concrete state carries
// only the fields that are meaningful while the ship is in it.
type State interface {
	Name() string
	isState()
}

// Docked ships are parked at Location.
type Docked struct{ Location string }

// InOrbit ships are undocked above Location.
type InOrbit struct{ Location string }

// InTransit ships are flying toward Destination and expected at Arrival.
type InTransit struct {
	Destination string
	Arrival     time.Time
}

// Arrived ships are orbiting the destination and still need to dock.
type Arrived struct{ Location string }

// Complete is absorbing.
type Complete struct{ Location string }

func (Docked) Name() string    { return "Docked" }
func (InOrbit) Name() string   { return "InOrbit" }
func (InTransit) Name() string { return "InTransit" }
func (Arrived) Name() string   { return "Arrived" }
func (Complete) Name() string  { return "Complete" }

func (Docked) isState()    {}
func (InOrbit) isState()   {}
func (InTransit) isState() {}
func (Arrived) isState()   {}
func (Complete) isState()  {}

// expectedNav is the nav status an action must leave the ship in.
func expectedNav(op string) crds.NavStatus {
	switch op {
	case "orbit":
		return crds.NavInOrbit
	case "navigate":
		return crds.NavInTransit
	case "dock":
		return crds.NavDocked
	}
	return ""
}
