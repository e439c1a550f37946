package crds

import "time"

// ManagerSpec is the desired root state for one game account.
type ManagerSpec struct {
	Symbol    string  `json:"symbol"`
	Faction   Faction `json:"faction"`
	Namespace string  `json:"namespace"`
}

type ManagerStatus struct {
	Checksum    string     `json:"checksum"`
	LastUpdated *time.Time `json:"lastUpdated,omitempty"`
}

// Manager is the root resource; it owns exactly one Agent.
type Manager struct {
	TypeMeta `json:",inline"`
	Metadata ObjectMeta     `json:"metadata"`
	Spec     ManagerSpec    `json:"spec"`
	Status   *ManagerStatus `json:"status,omitempty"`
}

func (m *Manager) GetObjectMeta() *ObjectMeta { return &m.Metadata }
func (m *Manager) GetKind() Kind              { return KindManager }

// AgentNamespace is where the Manager's Agent lives.
func (m *Manager) AgentNamespace() string {
	if m.Spec.Namespace != "" {
		return m.Spec.Namespace
	}
	return m.Metadata.Namespace
}

// NewManager builds a root Manager for symbol in namespace.
func NewManager(symbol string, faction Faction, namespace string) *Manager {
	return &Manager{
		TypeMeta: typeMeta(KindManager),
		Metadata: ObjectMeta{Name: NameFor(symbol), Namespace: namespace},
		Spec: ManagerSpec{
			Symbol:    symbol,
			Faction:   faction,
			Namespace: namespace,
		},
	}
}

// AgentSpec holds the registration identity. Token is written exactly once.
type AgentSpec struct {
	Symbol    string     `json:"symbol"`
	Faction   Faction    `json:"faction"`
	Token     *string    `json:"token,omitempty"`
	ResetDate *time.Time `json:"resetDate,omitempty"`
}

// HasToken reports whether registration already happened. Any stored value
// counts, an empty one included; the token is never issued twice.
func (s AgentSpec) HasToken() bool {
	return s.Token != nil
}

type AgentStatus struct {
	Checksum         string     `json:"checksum"`
	ShipsInitialized bool       `json:"shipsInitialized"`
	LastUpdated      *time.Time `json:"lastUpdated,omitempty"`
}

// Agent is the registered player; owned by a Manager, owns Ships.
type Agent struct {
	TypeMeta `json:",inline"`
	Metadata ObjectMeta   `json:"metadata"`
	Spec     AgentSpec    `json:"spec"`
	Status   *AgentStatus `json:"status,omitempty"`
}

func (a *Agent) GetObjectMeta() *ObjectMeta { return &a.Metadata }
func (a *Agent) GetKind() Kind              { return KindAgent }

// ShipsInitialized reads the starting-ships latch.
func (a *Agent) ShipsInitialized() bool {
	return a.Status != nil && a.Status.ShipsInitialized
}

// NewOwnedAgent builds the desired Agent for manager.
func NewOwnedAgent(manager *Manager) *Agent {
	return &Agent{
		TypeMeta: typeMeta(KindAgent),
		Metadata: ObjectMeta{
			Name:            NameFor(manager.Spec.Symbol),
			Namespace:       manager.AgentNamespace(),
			OwnerReferences: []OwnerReference{OwnerRefFor(manager)},
		},
		Spec: AgentSpec{
			Symbol:  manager.Spec.Symbol,
			Faction: manager.Spec.Faction,
		},
		Status: &AgentStatus{},
	}
}

type ShipSpec struct {
	Symbol string   `json:"symbol"`
	Role   ShipRole `json:"role,omitempty"`
}

// ShipStatus mirrors remote ship telemetry.
type ShipStatus struct {
	Location   string     `json:"location,omitempty"`
	NavStatus  NavStatus  `json:"navStatus,omitempty"`
	FlightMode FlightMode `json:"flightMode,omitempty"`
}

type Ship struct {
	TypeMeta `json:",inline"`
	Metadata ObjectMeta  `json:"metadata"`
	Spec     ShipSpec    `json:"spec"`
	Status   *ShipStatus `json:"status,omitempty"`
}

func (s *Ship) GetObjectMeta() *ObjectMeta { return &s.Metadata }
func (s *Ship) GetKind() Kind              { return KindShip }

// NewOwnedShip builds the desired Ship for one roster entry of agent.
func NewOwnedShip(agent *Agent, symbol string, role ShipRole) *Ship {
	return &Ship{
		TypeMeta: typeMeta(KindShip),
		Metadata: ObjectMeta{
			Name:            NameFor(symbol),
			Namespace:       agent.Metadata.Namespace,
			OwnerReferences: []OwnerReference{OwnerRefFor(agent)},
		},
		Spec: ShipSpec{Symbol: symbol, Role: role},
	}
}
