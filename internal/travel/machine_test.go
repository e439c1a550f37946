package travel

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/danmuck/spacectl/internal/crds"
	"github.com/danmuck/spacectl/internal/game/gametest"
	"github.com/danmuck/spacectl/internal/testutil/testlog"
)

const (
	origin      = "X1-DF55-20250Z"
	destination = "X1-DF55-69207D"
	shipSymbol  = "ALPHA-1"
)

func newFake(location string, status crds.NavStatus) *gametest.Fake {
	fake := gametest.NewFake()
	fake.SetToken("tok")
	fake.AddShip(shipSymbol, crds.RoleCommand, location, status)
	return fake
}

func newMachine(t *testing.T, fake *gametest.Fake) *Machine {
	t.Helper()
	m, err := New(context.Background(), fake.Authenticate("tok"), destination, shipSymbol, WithStepDelay(0))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m
}

func TestInitialClassification(t *testing.T) {
	testlog.Start(t)

	tests := []struct {
		name     string
		location string
		status   crds.NavStatus
		want     State
	}{
		{name: "docked at destination", location: destination, status: crds.NavDocked, want: Complete{Location: destination}},
		{name: "orbiting destination", location: destination, status: crds.NavInOrbit, want: Arrived{Location: destination}},
		{name: "docked elsewhere", location: origin, status: crds.NavDocked, want: Docked{Location: origin}},
		{name: "orbiting elsewhere", location: origin, status: crds.NavInOrbit, want: InOrbit{Location: origin}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fake := newFake(tc.location, tc.status)
			m := newMachine(t, fake)
			if m.State() != tc.want {
				t.Fatalf("initial state = %#v, want %#v", m.State(), tc.want)
			}
			if got := fake.Calls("ship"); got != 1 {
				t.Fatalf("construction made %d GetShip calls, want 1", got)
			}
		})
	}

	fake := gametest.NewFake()
	fake.SetToken("tok")
	fake.SetTransitPolls(1)
	fake.AddShip(shipSymbol, crds.RoleCommand, destination, crds.NavInTransit)
	m := newMachine(t, fake)
	if _, ok := m.State().(InTransit); !ok {
		t.Fatalf("in-transit ship classified as %#v", m.State())
	}
}

func TestFullTrip(t *testing.T) {
	testlog.Start(t)

	fake := newFake(origin, crds.NavDocked)
	fake.SetTransitPolls(2)
	m := newMachine(t, fake)
	ctx := context.Background()

	want := []string{"InOrbit", "InTransit", "InTransit", "InTransit", "Arrived", "Docked", "Complete"}
	for i, name := range want {
		state, err := m.Step(ctx)
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if state.Name() != name {
			t.Fatalf("step %d state = %s, want %s", i, state.Name(), name)
		}
	}
	if !m.Done() {
		t.Fatal("machine should be done")
	}
	if got := fake.Calls("orbit"); got != 1 {
		t.Fatalf("orbit calls = %d, want 1", got)
	}
	if got := fake.Calls("navigate"); got != 1 {
		t.Fatalf("navigate calls = %d, want 1", got)
	}
	if got := fake.Calls("dock"); got != 1 {
		t.Fatalf("dock calls = %d, want 1", got)
	}
	ship, _ := fake.Ship(shipSymbol)
	if ship.Nav.WaypointSymbol != destination || ship.Nav.Status != crds.NavDocked {
		t.Fatalf("remote ship ended at %s/%s", ship.Nav.WaypointSymbol, ship.Nav.Status)
	}
}

func TestTransitEndingElsewhereReturnsToOrbit(t *testing.T) {
	testlog.Start(t)

	fake := gametest.NewFake()
	fake.SetToken("tok")
	fake.SetTransitPolls(1)
	fake.AddShip(shipSymbol, crds.RoleCommand, origin, crds.NavInTransit)
	m := newMachine(t, fake)
	if _, ok := m.State().(InTransit); !ok {
		t.Fatalf("initial state = %#v, want InTransit", m.State())
	}

	ctx := context.Background()
	state, err := m.Step(ctx)
	if err != nil {
		t.Fatalf("poll step: %v", err)
	}
	if state != (InOrbit{Location: origin}) {
		t.Fatalf("state after transit = %#v, want InOrbit at %s", state, origin)
	}

	state, err = m.Step(ctx)
	if err != nil {
		t.Fatalf("navigate step: %v", err)
	}
	if _, ok := state.(InTransit); !ok {
		t.Fatalf("state after navigate = %#v, want InTransit", state)
	}
	if got := fake.Calls("navigate"); got != 1 {
		t.Fatalf("navigate calls = %d, want 1", got)
	}
}

func TestCompleteIsAbsorbing(t *testing.T) {
	testlog.Start(t)

	fake := newFake(destination, crds.NavDocked)
	m := newMachine(t, fake)
	before := fake.TotalCalls()

	for i := 0; i < 3; i++ {
		state, err := m.Step(context.Background())
		if !errors.Is(err, ErrAlreadyComplete) {
			t.Fatalf("step %d err = %v, want ErrAlreadyComplete", i, err)
		}
		if _, ok := state.(Complete); !ok {
			t.Fatalf("step %d left Complete: %#v", i, state)
		}
	}
	if got := fake.TotalCalls(); got != before {
		t.Fatalf("complete machine made %d remote calls", got-before)
	}
}

func TestTransitionIntegrity(t *testing.T) {
	testlog.Start(t)

	tests := []struct {
		name   string
		status crds.NavStatus
		op     string
		forced crds.NavStatus
		want   string
	}{
		{name: "undock stays docked", status: crds.NavDocked, op: "orbit", forced: crds.NavDocked, want: "Docked"},
		{name: "navigate stays in orbit", status: crds.NavInOrbit, op: "navigate", forced: crds.NavInOrbit, want: "InOrbit"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fake := newFake(origin, tc.status)
			m := newMachine(t, fake)
			fake.ForceStatus(tc.op, tc.forced)

			state, err := m.Step(context.Background())
			if !errors.Is(err, ErrTransitionIntegrity) {
				t.Fatalf("err = %v, want ErrTransitionIntegrity", err)
			}
			if state.Name() != tc.want || m.State().Name() != tc.want {
				t.Fatalf("state after integrity failure = %s, want %s", state.Name(), tc.want)
			}

			if _, err := m.Step(context.Background()); err != nil {
				t.Fatalf("retry after integrity failure: %v", err)
			}
		})
	}

	fake := newFake(destination, crds.NavInOrbit)
	m := newMachine(t, fake)
	fake.ForceStatus("dock", crds.NavInOrbit)
	if _, err := m.Step(context.Background()); !errors.Is(err, ErrTransitionIntegrity) {
		t.Fatalf("dock integrity err = %v", err)
	}
	if _, ok := m.State().(Arrived); !ok {
		t.Fatalf("state after failed dock = %#v, want Arrived", m.State())
	}
}

func TestUpstreamFailureKeepsState(t *testing.T) {
	testlog.Start(t)

	fake := newFake(origin, crds.NavInOrbit)
	m := newMachine(t, fake)
	boom := errors.New("boom")
	fake.Fail("navigate", boom)

	_, err := m.Step(context.Background())
	if !errors.Is(err, ErrUpstream) || !errors.Is(err, boom) {
		t.Fatalf("err = %v, want ErrUpstream wrapping boom", err)
	}
	if _, ok := m.State().(InOrbit); !ok {
		t.Fatalf("state = %#v, want InOrbit", m.State())
	}
}

func TestStepDelayHonoursCancellation(t *testing.T) {
	testlog.Start(t)

	fake := newFake(origin, crds.NavDocked)
	m, err := New(context.Background(), fake.Authenticate("tok"), destination, shipSymbol, WithStepDelay(time.Hour))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := m.Step(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if got := fake.Calls("orbit"); got != 0 {
		t.Fatalf("cancelled step still called orbit %d times", got)
	}
}

func TestRunReportsTransitions(t *testing.T) {
	testlog.Start(t)

	fake := newFake(origin, crds.NavDocked)
	fake.SetTransitPolls(3)
	m := newMachine(t, fake)

	var seen []string
	err := m.Run(context.Background(), func(from, to State) {
		seen = append(seen, from.Name()+"->"+to.Name())
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []string{"Docked->InOrbit", "InOrbit->InTransit", "InTransit->Arrived", "Arrived->Docked", "Docked->Complete"}
	if len(seen) != len(want) {
		t.Fatalf("transitions = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("transition %d = %s, want %s", i, seen[i], want[i])
		}
	}
}

func TestNewValidatesInput(t *testing.T) {
	testlog.Start(t)

	fake := newFake(origin, crds.NavDocked)
	if _, err := New(context.Background(), fake.Authenticate("tok"), " ", shipSymbol); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("blank destination err = %v", err)
	}
	if _, err := New(context.Background(), fake.Authenticate("bad"), destination, shipSymbol); !errors.Is(err, ErrUpstream) {
		t.Fatalf("bad token err = %v", err)
	}
}
