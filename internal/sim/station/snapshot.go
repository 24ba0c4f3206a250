package station

import (
	"time"

	"github.com/signalsfoundry/station-simulator/core"
	"github.com/signalsfoundry/station-simulator/model"
)

// ModuleView is a read-only copy of a module for presentation layers.
type ModuleView struct {
	ID          string
	Name        string
	ColorTag    string
	Kind        model.ModuleKind
	InitialHub  bool
	Position    core.Vec3
	HeadingDeg  float64
	ParentHubID string
	DockState   model.DockState
	Status      core.Status
	Fault       *core.Fault
	Readings    core.Readings
	OutputUnits float64
}

// AgentView is the approach HUD for a module in transit.
type AgentView struct {
	ModuleID string
	Name     string
	Position core.Vec3
	Progress float64
	Distance float64
	Speed    float64
	// ETA is in seconds; zero while the agent is too slow to estimate.
	ETA   float64
	Ticks int
}

// DockingRecord is a recent completion kept for a short notification window.
type DockingRecord struct {
	ModuleID string
	Name     string
	At       time.Duration
	Ticks    int
}

// Snapshot is a consistent copy of the station state.
type Snapshot struct {
	Elapsed      time.Duration
	Tick         uint64
	InitialHubID string
	ActiveHubID  string
	// InFlightID is empty when no launch is outstanding.
	InFlightID     string
	Modules        []ModuleView
	Agents         []AgentView
	Edges          []core.Edge
	RecentDockings []DockingRecord
	// Orbit is nil unless the station was built WithOrbit.
	Orbit *core.OrbitState
}

// Snapshot copies the current state.
func (s *Station) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Elapsed:        s.elapsed,
		Tick:           s.ticks,
		InitialHubID:   s.initialHubID,
		ActiveHubID:    s.activeHubID,
		InFlightID:     s.inFlightID,
		Modules:        s.moduleViewsLocked(),
		Agents:         s.agentViewsLocked(),
		Edges:          s.graph.Edges(),
		RecentDockings: append([]DockingRecord(nil), s.recent...),
	}
	if s.orbit != nil {
		st := s.orbit.StateAt(s.epoch.Add(s.elapsed))
		snap.Orbit = &st
	}
	return snap
}

// Modules lists every module in registry order.
func (s *Station) Modules() []ModuleView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.moduleViewsLocked()
}

// Module returns a single module view.
func (s *Station) Module(id string) (ModuleView, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.registry.Get(id)
	if m == nil {
		return ModuleView{}, false
	}
	return viewOf(m), true
}

// Agents returns the approach HUD for every module in transit.
func (s *Station) Agents() []AgentView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.agentViewsLocked()
}

// ActiveHubID returns the hub new launches attach to by default.
func (s *Station) ActiveHubID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeHubID
}

// InitialHubID returns the permanent root module.
func (s *Station) InitialHubID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialHubID
}

// InFlight returns the module currently in transit, if any.
func (s *Station) InFlight() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlightID, s.inFlightID != ""
}

// Elapsed returns the accumulated simulation time.
func (s *Station) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elapsed
}

// ShortestPath returns module IDs from the initial hub to id inclusive, or
// nil when id is unknown or not connected.
func (s *Station) ShortestPath(id string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.ShortestPath(id)
}

// HasFreeSlot reports whether a launch against hubID would find a slot.
func (s *Station) HasFreeSlot(hubID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	hub := s.registry.Get(hubID)
	if hub == nil {
		return false
	}
	_, ok := s.cfg.Slots.FindFreeSlot(hub.Position, s.registry.Occupied())
	return ok
}

// Edges returns the current docking-port connections.
func (s *Station) Edges() []core.Edge {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.Edges()
}

func (s *Station) moduleViewsLocked() []ModuleView {
	mods := s.registry.List()
	out := make([]ModuleView, 0, len(mods))
	for _, m := range mods {
		out = append(out, viewOf(m))
	}
	return out
}

func (s *Station) agentViewsLocked() []AgentView {
	agents := s.rendezvous.Agents()
	out := make([]AgentView, 0, len(agents))
	for i := range agents {
		a := &agents[i]
		v := AgentView{
			ModuleID: a.ModuleID,
			Position: a.WorldPosition(),
			Progress: a.Progress,
			Distance: a.Distance(),
			Speed:    a.Speed(),
			ETA:      a.ETA(),
			Ticks:    a.Ticks,
		}
		if m := s.registry.Get(a.ModuleID); m != nil {
			v.Name = m.Name
		}
		out = append(out, v)
	}
	return out
}

func viewOf(m *model.Module) ModuleView {
	v := ModuleView{
		ID:          m.ID,
		Name:        m.Name,
		ColorTag:    m.ColorTag,
		Kind:        m.Kind,
		InitialHub:  m.InitialHub,
		Position:    m.Position,
		HeadingDeg:  m.HeadingDeg,
		ParentHubID: m.ParentHubID,
		DockState:   m.DockState,
		Status:      m.Status(),
		OutputUnits: m.OutputUnits,
	}
	if m.Telemetry != nil {
		v.Readings = m.Telemetry.Readings()
		if f, ok := m.Telemetry.ActiveFault(); ok {
			v.Fault = &f
		}
	}
	return v
}
