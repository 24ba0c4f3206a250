package core

import (
	"errors"
	"fmt"
	"math"
)

// RendezvousParams are the simulation-wide constants of the approach model:
// a linearised Hill–Clohessy–Wiltshire relative-motion law steered by a
// saturated PD controller with extra velocity damping.
type RendezvousParams struct {
	// DT is the fixed integration step applied on every tick.
	DT float64 `yaml:"dt"`
	// MeanMotion is the orbital rate N of the reference (hub) orbit.
	MeanMotion float64 `yaml:"mean_motion"`
	KP         float64 `yaml:"kp"`
	KD         float64 `yaml:"kd"`
	Damping    float64 `yaml:"damping"`
	// BaseThrust and ThrustGain bound the commanded acceleration to
	// BaseThrust + ThrustGain*|position error|.
	BaseThrust float64 `yaml:"base_thrust"`
	ThrustGain float64 `yaml:"thrust_gain"`
	// DockRadius and DockSpeed must both be undercut on the same tick for
	// an agent to dock.
	DockRadius float64 `yaml:"dock_radius"`
	DockSpeed  float64 `yaml:"dock_speed"`
	// SpawnRadius is the distance from the hub at which agents appear.
	SpawnRadius float64 `yaml:"spawn_radius"`
}

// DefaultRendezvousParams returns the reference tuning.
func DefaultRendezvousParams() RendezvousParams {
	return RendezvousParams{
		DT:          0.05,
		MeanMotion:  0.05,
		KP:          0.9,
		KD:          1.2,
		Damping:     0.35,
		BaseThrust:  0.02,
		ThrustGain:  0.03,
		DockRadius:  0.15,
		DockSpeed:   0.1,
		SpawnRadius: 5,
	}
}

// Validate reports the first parameter that would make the model degenerate.
func (p RendezvousParams) Validate() error {
	switch {
	case p.DT <= 0:
		return errors.New("rendezvous dt must be positive")
	case p.DockRadius <= 0 || p.DockSpeed <= 0:
		return fmt.Errorf("rendezvous dock thresholds must be positive (radius=%v speed=%v)", p.DockRadius, p.DockSpeed)
	case p.BaseThrust <= 0:
		return errors.New("rendezvous base thrust must be positive")
	case p.SpawnRadius <= 0:
		return errors.New("rendezvous spawn radius must be positive")
	}
	return nil
}

// Agent is the transient physical state of one module in transit. Position,
// Velocity and Target live in the plane of the hub the module was launched
// against, relative to that hub.
type Agent struct {
	ModuleID string
	// Origin is the hub position at launch time; the agent's frame stays
	// anchored there even if the active hub changes mid-flight.
	Origin   Vec3
	Position Vec2
	Velocity Vec2
	Target   Vec2

	InitialDistance float64
	// Progress is the running maximum of the completion estimate, 0..100.
	Progress float64
	Ticks    int
	Docked   bool
}

// ErrorVec returns the position error relative to the target.
func (a *Agent) ErrorVec() Vec2 {
	return Vec2{X: a.Position.X - a.Target.X, Y: a.Position.Y - a.Target.Y}
}

// Distance returns the remaining distance to the target.
func (a *Agent) Distance() float64 {
	return a.ErrorVec().Norm()
}

// Speed returns the magnitude of the relative velocity.
func (a *Agent) Speed() float64 {
	return a.Velocity.Norm()
}

// ETA estimates seconds to arrival at the current speed. Slow agents report
// zero rather than a meaningless large number.
func (a *Agent) ETA() float64 {
	speed := a.Speed()
	if speed <= 0.1 {
		return 0
	}
	return a.Distance() / speed
}

// WorldPosition maps the agent back into station coordinates.
func (a *Agent) WorldPosition() Vec3 {
	return FromPlane(a.Origin, a.Position)
}

// Docking is emitted once per agent when it satisfies both dock thresholds.
type Docking struct {
	ModuleID string
	Ticks    int
	// Position is the agent's world position at the moment of docking.
	Position Vec3
}

// RendezvousSimulator advances independent agents toward their targets.
// It never touches the module registry; completions are handed back to the
// caller from Step.
type RendezvousSimulator struct {
	params RendezvousParams
	agents []*Agent
}

// NewRendezvousSimulator constructs a simulator with the given constants.
func NewRendezvousSimulator(p RendezvousParams) *RendezvousSimulator {
	return &RendezvousSimulator{params: p}
}

// Params returns the simulator constants.
func (s *RendezvousSimulator) Params() RendezvousParams { return s.params }

// Spawn places a new agent at a random bearing on the spawn circle around
// hub, at rest, steering toward target (a world position).
func (s *RendezvousSimulator) Spawn(moduleID string, hub, target Vec3, rng Rand) *Agent {
	angle := rng.Float64() * 2 * math.Pi
	start := Vec2{X: math.Cos(angle) * s.params.SpawnRadius, Y: math.Sin(angle) * s.params.SpawnRadius}
	return s.SpawnAt(moduleID, hub, start, PlaneOffset(hub, target))
}

// SpawnAt places a new agent at an explicit plane position relative to
// origin, at rest.
func (s *RendezvousSimulator) SpawnAt(moduleID string, origin Vec3, start, target Vec2) *Agent {
	a := &Agent{
		ModuleID: moduleID,
		Origin:   origin,
		Position: start,
		Target:   target,
	}
	a.InitialDistance = a.Distance()
	s.agents = append(s.agents, a)
	return a
}

// Step advances every agent by one fixed timestep and returns the agents
// that docked on this step, in spawn order. Docked agents are dropped.
func (s *RendezvousSimulator) Step() []Docking {
	var done []Docking
	remaining := s.agents[:0]
	for _, a := range s.agents {
		if s.params.advance(a) {
			done = append(done, Docking{ModuleID: a.ModuleID, Ticks: a.Ticks, Position: a.WorldPosition()})
			continue
		}
		remaining = append(remaining, a)
	}
	for i := len(remaining); i < len(s.agents); i++ {
		s.agents[i] = nil
	}
	s.agents = remaining
	return done
}

// Agents returns copies of every agent still in flight.
func (s *RendezvousSimulator) Agents() []Agent {
	out := make([]Agent, 0, len(s.agents))
	for _, a := range s.agents {
		out = append(out, *a)
	}
	return out
}

// Agent returns a copy of the in-flight agent for moduleID.
func (s *RendezvousSimulator) Agent(moduleID string) (Agent, bool) {
	for _, a := range s.agents {
		if a.ModuleID == moduleID {
			return *a, true
		}
	}
	return Agent{}, false
}

// Len reports the number of agents in flight.
func (s *RendezvousSimulator) Len() int { return len(s.agents) }

// advance runs one tick for a and reports whether it docked. The docking
// test and progress use the state at the start of the tick.
func (p RendezvousParams) advance(a *Agent) bool {
	a.Ticks++
	dr := a.Distance()
	p.updateProgress(a, dr)

	if p.IsDocked(dr, a.Speed()) {
		a.Docked = true
		a.Progress = 100
		return true
	}
	p.Propagate(a, p.Control(a))
	return false
}

func (p RendezvousParams) updateProgress(a *Agent, dr float64) {
	current := 100.0
	if a.InitialDistance > 0 {
		current = clamp(100*(a.InitialDistance-dr)/a.InitialDistance, 0, 100)
	}
	if current > a.Progress {
		a.Progress = current
	}
}

// IsDocked applies both dock thresholds; neither alone is sufficient.
func (p RendezvousParams) IsDocked(distance, speed float64) bool {
	return distance < p.DockRadius && speed < p.DockSpeed
}

// Control computes the saturated thrust command for a. It cancels the
// natural relative-motion drift, applies PD correction toward the target
// and damps velocity.
func (p RendezvousParams) Control(a *Agent) Vec2 {
	n := p.MeanMotion
	x, vx, vy := a.Position.X, a.Velocity.X, a.Velocity.Y
	e := a.ErrorVec()

	ux := -p.KP*e.X - p.KD*vx - (3*n*n*x + 2*n*vy) - p.Damping*vx
	uy := -p.KP*e.Y - p.KD*vy + 2*n*vx - p.Damping*vy

	umax := p.BaseThrust + p.ThrustGain*e.Norm()
	if mag := math.Hypot(ux, uy); mag > umax {
		ux *= umax / mag
		uy *= umax / mag
	}
	return Vec2{X: ux, Y: uy}
}

// Propagate integrates one semi-implicit Euler step of the relative-motion
// equations under thrust u.
func (p RendezvousParams) Propagate(a *Agent, u Vec2) {
	n := p.MeanMotion
	ax := 3*n*n*a.Position.X + 2*n*a.Velocity.Y + u.X
	ay := -2*n*a.Velocity.X + u.Y

	a.Velocity.X += ax * p.DT
	a.Velocity.Y += ay * p.DT
	a.Position.X += a.Velocity.X * p.DT
	a.Position.Y += a.Velocity.Y * p.DT
}
