package core

import (
	"math"
	"testing"
)

// fixedRand replays Float64 values in order and always returns n-1 from
// Intn, so tests can pin random choices.
type fixedRand struct {
	floats []float64
	i      int
	intn   func(n int) int
}

func (r *fixedRand) Float64() float64 {
	if len(r.floats) == 0 {
		return 0.5
	}
	v := r.floats[r.i%len(r.floats)]
	r.i++
	return v
}

func (r *fixedRand) Intn(n int) int {
	if r.intn != nil {
		return r.intn(n)
	}
	return 0
}

const maxApproachTicks = 6000

// runToDock steps sim until moduleID docks, checking progress monotonicity
// and that the pre-step state met both thresholds on the docking tick.
func runToDock(t *testing.T, sim *RendezvousSimulator, moduleID string) Docking {
	t.Helper()
	p := sim.Params()
	lastProgress := 0.0
	for i := 0; i < maxApproachTicks; i++ {
		before, ok := sim.Agent(moduleID)
		if !ok {
			t.Fatalf("agent %q vanished without a docking event", moduleID)
		}
		if before.Progress < lastProgress {
			t.Fatalf("progress decreased: %v -> %v", lastProgress, before.Progress)
		}
		lastProgress = before.Progress

		for _, d := range sim.Step() {
			if d.ModuleID != moduleID {
				continue
			}
			if before.Distance() >= p.DockRadius || before.Speed() >= p.DockSpeed {
				t.Fatalf("docked with distance=%v speed=%v", before.Distance(), before.Speed())
			}
			if _, still := sim.Agent(moduleID); still {
				t.Fatalf("docked agent should be removed from the simulator")
			}
			return d
		}
	}
	a, _ := sim.Agent(moduleID)
	t.Fatalf("agent did not dock within %d ticks (distance=%v speed=%v)", maxApproachTicks, a.Distance(), a.Speed())
	return Docking{}
}

func TestRendezvous_DocksAtEverySlot(t *testing.T) {
	alloc := NewSlotAllocator()
	hub := Vec3{}
	for _, slot := range alloc.Candidates(hub) {
		for _, bearing := range []float64{0, 0.13, 0.4, 0.77} {
			sim := NewRendezvousSimulator(DefaultRendezvousParams())
			rng := &fixedRand{floats: []float64{bearing}}
			a := sim.Spawn("m", hub, slot.Position, rng)
			if d := a.Position.Norm(); math.Abs(d-5) > 1e-9 {
				t.Fatalf("spawn distance from hub = %v, want 5", d)
			}
			if a.Speed() != 0 {
				t.Fatalf("spawned agent should be at rest")
			}

			d := runToDock(t, sim, "m")
			if d.Position.DistanceTo(slot.Position) >= 0.15 {
				t.Fatalf("slot %v: docked at %+v, too far from %+v", slot.AngleDeg, d.Position, slot.Position)
			}
		}
	}
}

func TestRendezvous_FiveUnitsFromTarget(t *testing.T) {
	sim := NewRendezvousSimulator(DefaultRendezvousParams())
	target := Vec2{X: 2.6 * math.Cos(math.Pi/6), Y: 2.6 * math.Sin(math.Pi/6)}
	a := sim.SpawnAt("m", Vec3{}, Vec2{X: target.X - 5, Y: target.Y}, target)
	if a.InitialDistance != 5 {
		t.Fatalf("InitialDistance = %v, want 5", a.InitialDistance)
	}
	d := runToDock(t, sim, "m")
	if d.Ticks <= 1 {
		t.Fatalf("expected a multi-tick approach, got %d ticks", d.Ticks)
	}
}

func TestRendezvous_PositionAloneDoesNotDock(t *testing.T) {
	sim := NewRendezvousSimulator(DefaultRendezvousParams())
	target := Vec2{X: 1, Y: 1}
	a := sim.SpawnAt("flyby", Vec3{}, target, target)
	a.Velocity = Vec2{X: 1}

	if done := sim.Step(); len(done) != 0 {
		t.Fatalf("fast flyby through the target must not dock, got %+v", done)
	}
}

func TestRendezvous_SpeedAloneDoesNotDock(t *testing.T) {
	sim := NewRendezvousSimulator(DefaultRendezvousParams())
	target := Vec2{X: 1, Y: 1}
	sim.SpawnAt("parked", Vec3{}, Vec2{X: 1.2, Y: 1}, target)

	if done := sim.Step(); len(done) != 0 {
		t.Fatalf("agent at rest outside the dock radius must not dock, got %+v", done)
	}
}

func TestRendezvous_ProgressNeverDecreases(t *testing.T) {
	sim := NewRendezvousSimulator(DefaultRendezvousParams())
	target := Vec2{X: 2, Y: 0}
	a := sim.SpawnAt("m", Vec3{}, Vec2{X: 0, Y: 0}, target)
	// Kick the agent away from the target so its distance grows first.
	a.Velocity = Vec2{X: -2}

	prev := 0.0
	grewAway := false
	for i := 0; i < 200; i++ {
		sim.Step()
		cur, ok := sim.Agent("m")
		if !ok {
			break
		}
		if cur.Distance() > cur.InitialDistance {
			grewAway = true
		}
		if cur.Progress < prev {
			t.Fatalf("tick %d: progress %v < previous %v", i, cur.Progress, prev)
		}
		if cur.Progress < 0 || cur.Progress > 100 {
			t.Fatalf("progress out of range: %v", cur.Progress)
		}
		prev = cur.Progress
	}
	if !grewAway {
		t.Fatalf("test setup should have pushed the agent away from its target")
	}
}

func TestRendezvous_ThrustSaturation(t *testing.T) {
	p := DefaultRendezvousParams()
	a := &Agent{Position: Vec2{X: 4, Y: 0}, Target: Vec2{}}
	u := p.Control(a)
	umax := p.BaseThrust + p.ThrustGain*4
	if mag := u.Norm(); math.Abs(mag-umax) > 1e-12 {
		t.Fatalf("|u| = %v, want saturated %v", mag, umax)
	}
	if u.X >= 0 || math.Abs(u.Y) > 1e-12 {
		t.Fatalf("saturated thrust should point at the target, got %+v", u)
	}
}

func TestRendezvous_IndependentAgents(t *testing.T) {
	sim := NewRendezvousSimulator(DefaultRendezvousParams())
	sim.SpawnAt("a", Vec3{}, Vec2{X: 0.05}, Vec2{})
	sim.SpawnAt("b", Vec3{}, Vec2{X: 5}, Vec2{X: 2.6})
	if sim.Len() != 2 {
		t.Fatalf("Len = %d, want 2", sim.Len())
	}

	done := sim.Step()
	if len(done) != 1 || done[0].ModuleID != "a" {
		t.Fatalf("expected only agent a to dock on first step, got %+v", done)
	}
	if sim.Len() != 1 {
		t.Fatalf("Len after docking = %d, want 1", sim.Len())
	}
	if _, ok := sim.Agent("b"); !ok {
		t.Fatalf("agent b should still be in flight")
	}
}

func TestAgentETA(t *testing.T) {
	a := &Agent{Position: Vec2{X: 3}, Velocity: Vec2{X: -0.5}}
	if eta := a.ETA(); math.Abs(eta-6) > 1e-12 {
		t.Fatalf("ETA = %v, want 6", eta)
	}
	a.Velocity = Vec2{X: -0.05}
	if eta := a.ETA(); eta != 0 {
		t.Fatalf("ETA for a slow agent = %v, want 0", eta)
	}
}

func TestRendezvousParams_Validate(t *testing.T) {
	if err := DefaultRendezvousParams().Validate(); err != nil {
		t.Fatalf("default params invalid: %v", err)
	}
	p := DefaultRendezvousParams()
	p.DT = 0
	if err := p.Validate(); err == nil {
		t.Fatalf("expected error for zero dt")
	}
	p = DefaultRendezvousParams()
	p.DockSpeed = -1
	if err := p.Validate(); err == nil {
		t.Fatalf("expected error for negative dock speed")
	}
}
