// Package scenario scripts a headless station run: it launches a manifest in
// order, moves to an expansion hub when the active one is full, and injects
// and repairs faults on fixed intervals.
package scenario

import (
	"context"
	"errors"
	"time"

	"github.com/signalsfoundry/station-simulator/core"
	"github.com/signalsfoundry/station-simulator/internal/logging"
	"github.com/signalsfoundry/station-simulator/internal/sim/station"
	"github.com/signalsfoundry/station-simulator/model"
)

// Plan is the script. A zero interval disables that command.
type Plan struct {
	Manifest []model.ModuleConfig
	// Repeat cycles through the manifest until every hub is full.
	Repeat bool

	LaunchInterval time.Duration
	FaultInterval  time.Duration
	RepairInterval time.Duration
	StatusInterval time.Duration
}

// Stats counts what the director has done.
type Stats struct {
	Launched    int
	Rejected    int
	HubSwitches int
	Faults      int
	Repaired    int
}

// Director issues scripted commands against a station. Call OnTick after
// every station tick.
type Director struct {
	st   *station.Station
	plan Plan
	log  logging.Logger

	next       int
	full       bool
	nextLaunch time.Duration
	nextFault  time.Duration
	nextRepair time.Duration
	nextStatus time.Duration

	stats Stats
}

// NewDirector prepares a director for st.
func NewDirector(st *station.Station, plan Plan, log logging.Logger) *Director {
	if log == nil {
		log = logging.Noop()
	}
	return &Director{
		st:         st,
		plan:       plan,
		log:        log,
		nextFault:  plan.FaultInterval,
		nextRepair: plan.RepairInterval,
		nextStatus: plan.StatusInterval,
	}
}

// Stats returns the command counters.
func (d *Director) Stats() Stats { return d.stats }

// Exhausted reports whether no further launches will be attempted.
func (d *Director) Exhausted() bool {
	return d.full || (!d.plan.Repeat && d.next >= len(d.plan.Manifest))
}

// OnTick runs every command that is due at the station's current time.
func (d *Director) OnTick(ctx context.Context) {
	now := d.st.Elapsed()

	if d.plan.LaunchInterval > 0 && now >= d.nextLaunch && !d.Exhausted() && len(d.plan.Manifest) > 0 {
		d.nextLaunch = now + d.plan.LaunchInterval
		d.launchNext(ctx)
	}
	if d.plan.FaultInterval > 0 && now >= d.nextFault {
		d.nextFault = now + d.plan.FaultInterval
		if _, err := d.st.InjectRandomFault(ctx); err == nil {
			d.stats.Faults++
		} else if !errors.Is(err, station.ErrNoEligibleModule) {
			d.log.Error(ctx, "fault injection failed", logging.Err(err))
		}
	}
	if d.plan.RepairInterval > 0 && now >= d.nextRepair {
		d.nextRepair = now + d.plan.RepairInterval
		d.stats.Repaired += d.st.RepairAll(ctx)
	}
	if d.plan.StatusInterval > 0 && now >= d.nextStatus {
		d.nextStatus = now + d.plan.StatusInterval
		d.logStatus(ctx)
	}
}

func (d *Director) launchNext(ctx context.Context) {
	if _, busy := d.st.InFlight(); busy {
		return
	}
	mc := d.plan.Manifest[d.next%len(d.plan.Manifest)]

	_, err := d.st.Launch(ctx, "", mc)
	if errors.Is(err, station.ErrNoFreeSlot) {
		d.stats.Rejected++
		if !d.switchHub(ctx) {
			d.full = true
			d.log.Info(ctx, "every hub is full; launches stopped", logging.Int("launched", d.stats.Launched))
			return
		}
		_, err = d.st.Launch(ctx, "", mc)
	}
	switch {
	case err == nil:
		d.stats.Launched++
		d.next++
	case errors.Is(err, station.ErrLaunchLocked):
		d.stats.Rejected++
	default:
		d.stats.Rejected++
		d.log.Warn(ctx, "scripted launch failed", logging.String("name", mc.Name), logging.Err(err))
	}
}

// switchHub activates the first docked HUB module, other than the current
// active hub, that still has a free slot. It reports whether one was found.
func (d *Director) switchHub(ctx context.Context) bool {
	current := d.st.ActiveHubID()
	for _, m := range d.st.Modules() {
		if m.ID == current || m.Kind != model.KindHub || m.DockState != model.DockStateDocked {
			continue
		}
		if !d.st.HasFreeSlot(m.ID) {
			continue
		}
		if err := d.st.SetActiveHub(ctx, m.ID); err != nil {
			continue
		}
		d.stats.HubSwitches++
		return true
	}
	return false
}

func (d *Director) logStatus(ctx context.Context) {
	snap := d.st.Snapshot()
	docked, critical := 0, 0
	var output float64
	for _, m := range snap.Modules {
		if m.DockState == model.DockStateDocked {
			docked++
		}
		if m.Status == core.StatusCritical {
			critical++
		}
		output += m.OutputUnits
	}
	fields := []logging.Field{
		logging.Any("elapsed", snap.Elapsed),
		logging.Int("modules", len(snap.Modules)),
		logging.Int("docked", docked),
		logging.Int("critical", critical),
		logging.Int("links", len(snap.Edges)),
		logging.Float("output_units", output),
	}
	for _, a := range snap.Agents {
		fields = append(fields,
			logging.String("approach_module", a.Name),
			logging.Float("approach_progress", a.Progress),
			logging.Float("approach_distance", a.Distance),
			logging.Float("approach_eta_s", a.ETA),
		)
	}
	if snap.Orbit != nil {
		fields = append(fields,
			logging.Float("latitude_deg", snap.Orbit.LatitudeDeg),
			logging.Float("longitude_deg", snap.Orbit.LongitudeDeg),
			logging.Float("altitude_km", snap.Orbit.AltitudeKm),
		)
	}
	d.log.Info(ctx, "station status", fields...)
}
