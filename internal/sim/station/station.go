// Package station orchestrates a modular space station: it owns the module
// registry, launches modules through the rendezvous simulator, keeps the
// docking topology current and drives per-module telemetry.
package station

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/station-simulator/core"
	"github.com/signalsfoundry/station-simulator/internal/logging"
	"github.com/signalsfoundry/station-simulator/kb"
	"github.com/signalsfoundry/station-simulator/model"
)

const tracerName = "github.com/signalsfoundry/station-simulator/internal/sim/station"

// Launch outcomes as reported to MetricsRecorder.ObserveLaunch.
const (
	OutcomeAccepted   = "accepted"
	OutcomeLocked     = "locked"
	OutcomeNoFreeSlot = "no_free_slot"
)

// HubPolicy controls which modules SetActiveHub accepts.
type HubPolicy string

const (
	// HubPolicyAny accepts any docked module.
	HubPolicyAny HubPolicy = "any"
	// HubPolicyHubOnly accepts only docked HUB modules.
	HubPolicyHubOnly HubPolicy = "hub_only"
)

// Config holds the station geometry and command policy.
type Config struct {
	Slots         core.SlotAllocator `yaml:",inline"`
	LinkThreshold float64            `yaml:"link_threshold"`
	HubPolicy     HubPolicy          `yaml:"hub_policy"`
	// RecentDockingRetention is how long a completed docking stays in
	// Snapshot.RecentDockings.
	RecentDockingRetention time.Duration `yaml:"recent_docking_retention"`
	// HubName is the display name of the initial hub.
	HubName string `yaml:"hub_name"`

	Rendezvous core.RendezvousParams `yaml:"-"`
}

// DefaultConfig returns the reference station geometry.
func DefaultConfig() Config {
	return Config{
		Slots:                  core.NewSlotAllocator(),
		LinkThreshold:          core.DefaultLinkThreshold,
		HubPolicy:              HubPolicyAny,
		RecentDockingRetention: 3 * time.Second,
		HubName:                "Central Hub",
		Rendezvous:             core.DefaultRendezvousParams(),
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.Slots.Radius <= 0 {
		return fmt.Errorf("slot radius must be positive, got %v", c.Slots.Radius)
	}
	if c.Slots.Clearance <= 0 || c.Slots.Clearance >= c.Slots.Radius {
		return fmt.Errorf("slot clearance must be in (0, %v), got %v", c.Slots.Radius, c.Slots.Clearance)
	}
	if c.LinkThreshold <= c.Slots.Radius {
		return fmt.Errorf("link threshold %v must exceed slot radius %v", c.LinkThreshold, c.Slots.Radius)
	}
	switch c.HubPolicy {
	case HubPolicyAny, HubPolicyHubOnly:
	default:
		return fmt.Errorf("unknown hub policy %q", c.HubPolicy)
	}
	if c.RecentDockingRetention < 0 {
		return errors.New("recent docking retention must not be negative")
	}
	return c.Rendezvous.Validate()
}

// Rand is the random source the station draws from. *math/rand.Rand
// satisfies it; Read feeds module ID generation so a seeded source gives
// reproducible IDs.
type Rand interface {
	core.Rand
	io.Reader
}

// CountsRecorder receives module population updates after every command
// and tick.
type CountsRecorder interface {
	SetModuleCounts(docked, inTransit, critical int)
}

// MetricsRecorder receives station metrics.
type MetricsRecorder interface {
	CountsRecorder
	ObserveLaunch(outcome string)
	ObserveDocking(ticks int, flight time.Duration)
	ObserveFault(kind string)
	ObserveRepairs(n int)
}

// Option customises Station construction.
type Option func(*Station)

// WithRand sets the random source. The default is seeded from the clock.
func WithRand(r Rand) Option {
	return func(s *Station) {
		s.rng = r
	}
}

// WithLogger attaches a structured logger.
func WithLogger(l logging.Logger) Option {
	return func(s *Station) {
		s.log = l
	}
}

// WithMetricsRecorder attaches an optional metrics recorder.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(s *Station) {
		s.metrics = m
	}
}

// WithCountsRecorder attaches an extra population listener, such as a health
// reporter. It may be given more than once.
func WithCountsRecorder(c CountsRecorder) Option {
	return func(s *Station) {
		s.counts = append(s.counts, c)
	}
}

// WithTracerProvider overrides the global OpenTelemetry tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Station) {
		s.tracer = tp.Tracer(tracerName)
	}
}

// WithOrbit propagates the station along orbit, with simulation time zero
// mapped to epoch.
func WithOrbit(orbit *core.StationOrbit, epoch time.Time) Option {
	return func(s *Station) {
		s.orbit = orbit
		s.epoch = epoch
	}
}

// Station is the station controller. All methods are safe for concurrent
// use; commands are serialised.
type Station struct {
	mu sync.Mutex

	cfg        Config
	registry   *kb.Registry
	rendezvous *core.RendezvousSimulator
	graph      *core.TopologyGraph

	rng     Rand
	log     logging.Logger
	tracer  trace.Tracer
	metrics MetricsRecorder
	counts  []CountsRecorder
	orbit   *core.StationOrbit
	epoch   time.Time

	initialHubID string
	activeHubID  string
	// inFlightID is the only module allowed in transit. A launch is
	// rejected while it is set.
	inFlightID string

	elapsed time.Duration
	ticks   uint64
	recent  []DockingRecord

	subs    map[int]func(Event)
	nextSub int
	pending []Event
}

// New builds a station containing only its initial hub at the origin.
func New(cfg Config, opts ...Option) (*Station, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("station config: %w", err)
	}
	s := &Station{
		cfg:        cfg,
		registry:   kb.NewRegistry(),
		rendezvous: core.NewRendezvousSimulator(cfg.Rendezvous),
		graph:      core.NewTopologyGraph(cfg.LinkThreshold),
		subs:       make(map[int]func(Event)),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if s.log == nil {
		s.log = logging.Noop()
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer(tracerName)
	}

	hub := &model.Module{
		ID:         s.newID(),
		Name:       cfg.HubName,
		Kind:       model.KindHub,
		InitialHub: true,
		DockState:  model.DockStateDocked,
		Telemetry:  core.NewTelemetryModel(s.rng),
	}
	if err := s.registry.Add(hub); err != nil {
		return nil, err
	}
	s.initialHubID = hub.ID
	s.activeHubID = hub.ID
	s.rebuildGraphLocked()
	s.updateCountsLocked()
	return s, nil
}

func (s *Station) newID() string {
	id, err := uuid.NewRandomFromReader(s.rng)
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Launch allocates a slot around hubID and starts a rendezvous toward it.
// An empty hubID targets the active hub. It fails with a
// *LaunchRejectedError while another module is in transit or when the hub
// has no free slot; no state changes on rejection.
func (s *Station) Launch(ctx context.Context, hubID string, mc model.ModuleConfig) (*ModuleView, error) {
	ctx, log := logging.WithCommandLogger(ctx, s.log)
	ctx, span := s.tracer.Start(ctx, "station.Launch")
	defer span.End()

	s.mu.Lock()
	defer s.unlockAndDispatch()

	if hubID == "" {
		hubID = s.activeHubID
	}
	span.SetAttributes(attribute.String("station.hub_id", hubID), attribute.String("station.module_name", mc.Name))

	if s.inFlightID != "" {
		return nil, s.rejectLocked(ctx, log, span, &LaunchRejectedError{Reason: RejectLocked, HubID: hubID, InFlightID: s.inFlightID})
	}
	hub := s.registry.Get(hubID)
	if hub == nil {
		err := fmt.Errorf("launch target hub %q: %w", hubID, ErrModuleNotFound)
		recordSpanError(span, err)
		return nil, err
	}

	slot, ok := s.cfg.Slots.FindFreeSlot(hub.Position, s.registry.Occupied())
	if !ok {
		return nil, s.rejectLocked(ctx, log, span, &LaunchRejectedError{Reason: RejectNoFreeSlot, HubID: hubID})
	}

	m := &model.Module{
		ID:           s.newID(),
		Name:         mc.Name,
		ColorTag:     mc.ColorTag,
		Kind:         mc.Kind,
		HeadingDeg:   slot.FacingDeg(),
		ParentHubID:  hub.ID,
		SlotAngleDeg: slot.AngleDeg,
		Target:       slot.Position,
		DockState:    model.DockStateInTransit,
		Telemetry:    core.NewTelemetryModel(s.rng),
		LaunchedAt:   s.elapsed,
	}
	agent := s.rendezvous.Spawn(m.ID, hub.Position, slot.Position, s.rng)
	m.Position = agent.WorldPosition()
	if err := s.registry.Add(m); err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	s.inFlightID = m.ID

	span.SetAttributes(
		attribute.String("station.module_id", m.ID),
		attribute.Float64("station.slot_angle_deg", slot.AngleDeg),
	)
	log.Info(ctx, "module launched",
		logging.String("module_id", m.ID),
		logging.String("name", m.Name),
		logging.String("hub_id", hub.ID),
		logging.Float("slot_angle_deg", slot.AngleDeg),
		logging.Float("initial_distance", agent.InitialDistance),
	)
	if s.metrics != nil {
		s.metrics.ObserveLaunch(OutcomeAccepted)
	}
	s.emitLocked(Event{Type: EventModuleLaunched, ModuleID: m.ID, HubID: hub.ID})
	s.updateCountsLocked()

	v := viewOf(m)
	return &v, nil
}

func (s *Station) rejectLocked(ctx context.Context, log logging.Logger, span trace.Span, err *LaunchRejectedError) error {
	recordSpanError(span, err)
	log.Warn(ctx, "launch rejected",
		logging.String("reason", err.Reason.String()),
		logging.String("hub_id", err.HubID),
		logging.String("in_flight_id", err.InFlightID),
	)
	if s.metrics != nil {
		switch err.Reason {
		case RejectLocked:
			s.metrics.ObserveLaunch(OutcomeLocked)
		case RejectNoFreeSlot:
			s.metrics.ObserveLaunch(OutcomeNoFreeSlot)
		}
	}
	s.emitLocked(Event{Type: EventLaunchRejected, HubID: err.HubID, ModuleID: err.InFlightID, Reason: err.Reason})
	return err
}

// SetActiveHub makes id the default target of later launches. Modules
// already in transit keep the frame of the hub they were launched against.
func (s *Station) SetActiveHub(ctx context.Context, id string) error {
	ctx, log := logging.WithCommandLogger(ctx, s.log)
	ctx, span := s.tracer.Start(ctx, "station.SetActiveHub", trace.WithAttributes(attribute.String("station.hub_id", id)))
	defer span.End()

	s.mu.Lock()
	defer s.unlockAndDispatch()

	m := s.registry.Get(id)
	var err error
	switch {
	case m == nil:
		err = fmt.Errorf("set active hub %q: %w", id, ErrModuleNotFound)
	case !m.IsDocked():
		err = fmt.Errorf("set active hub %q: %w", id, ErrModuleInTransit)
	case s.cfg.HubPolicy == HubPolicyHubOnly && m.Kind != model.KindHub:
		err = fmt.Errorf("set active hub %q: %w", id, ErrNotHubKind)
	}
	if err != nil {
		recordSpanError(span, err)
		log.Warn(ctx, "active hub not changed", logging.String("hub_id", id), logging.Err(err))
		return err
	}
	if s.activeHubID == id {
		return nil
	}
	s.activeHubID = id
	log.Info(ctx, "active hub changed", logging.String("hub_id", id), logging.String("name", m.Name))
	s.emitLocked(Event{Type: EventActiveHubChanged, HubID: id})
	return nil
}

// FaultInjection reports the module and fault chosen by InjectRandomFault.
type FaultInjection struct {
	ModuleID string
	Fault    core.Fault
}

// InjectRandomFault puts one uniformly chosen docked, nominal, STANDARD
// module into CRITICAL. It returns ErrNoEligibleModule and changes nothing
// when no module qualifies.
func (s *Station) InjectRandomFault(ctx context.Context) (FaultInjection, error) {
	ctx, log := logging.WithCommandLogger(ctx, s.log)
	ctx, span := s.tracer.Start(ctx, "station.InjectRandomFault")
	defer span.End()

	s.mu.Lock()
	defer s.unlockAndDispatch()

	var eligible []*model.Module
	for _, m := range s.registry.List() {
		if m.IsDocked() && m.Kind == model.KindStandard && m.Status() == core.StatusNominal {
			eligible = append(eligible, m)
		}
	}
	if len(eligible) == 0 {
		span.AddEvent("no eligible module")
		log.Debug(ctx, "fault injection skipped: no eligible module")
		return FaultInjection{}, ErrNoEligibleModule
	}

	target := eligible[s.rng.Intn(len(eligible))]
	target.Telemetry.InjectFault()
	fault, _ := target.Telemetry.ActiveFault()

	span.SetAttributes(
		attribute.String("station.module_id", target.ID),
		attribute.String("station.fault_kind", string(fault.Kind)),
	)
	log.Warn(ctx, "fault injected",
		logging.String("module_id", target.ID),
		logging.String("name", target.Name),
		logging.String("fault", fault.Label),
		logging.String("severity", fault.Severity.String()),
	)
	if s.metrics != nil {
		s.metrics.ObserveFault(string(fault.Kind))
	}
	s.emitLocked(Event{Type: EventFaultInjected, ModuleID: target.ID, Fault: &fault})
	s.updateCountsLocked()
	return FaultInjection{ModuleID: target.ID, Fault: fault}, nil
}

// RepairAll returns every CRITICAL module to NOMINAL and reports how many
// were repaired.
func (s *Station) RepairAll(ctx context.Context) int {
	ctx, log := logging.WithCommandLogger(ctx, s.log)
	ctx, span := s.tracer.Start(ctx, "station.RepairAll")
	defer span.End()

	s.mu.Lock()
	defer s.unlockAndDispatch()

	repaired := 0
	for _, m := range s.registry.List() {
		if m.Telemetry == nil {
			continue
		}
		fault, had := m.Telemetry.ActiveFault()
		if !m.Telemetry.Repair() {
			continue
		}
		repaired++
		ev := Event{Type: EventModuleRepaired, ModuleID: m.ID}
		if had {
			ev.Fault = &fault
		}
		s.emitLocked(ev)
	}

	span.SetAttributes(attribute.Int("station.repaired", repaired))
	if repaired > 0 {
		log.Info(ctx, "modules repaired", logging.Int("count", repaired))
	}
	if s.metrics != nil {
		s.metrics.ObserveRepairs(repaired)
	}
	s.updateCountsLocked()
	return repaired
}

// Remove detaches a docked STANDARD module. Hubs and modules in transit are
// rejected with a *RemovalError. If the removed module was the active hub,
// the initial hub becomes active again.
func (s *Station) Remove(ctx context.Context, id string) error {
	ctx, log := logging.WithCommandLogger(ctx, s.log)
	ctx, span := s.tracer.Start(ctx, "station.Remove", trace.WithAttributes(attribute.String("station.module_id", id)))
	defer span.End()

	s.mu.Lock()
	defer s.unlockAndDispatch()

	m := s.registry.Get(id)
	var err error
	switch {
	case m == nil:
		err = fmt.Errorf("remove %q: %w", id, ErrModuleNotFound)
	case m.InitialHub:
		err = &RemovalError{ModuleID: id, Reason: "initial hub"}
	case m.Kind == model.KindHub:
		err = &RemovalError{ModuleID: id, Reason: "hub module"}
	case !m.IsDocked():
		err = &RemovalError{ModuleID: id, Reason: "in transit"}
	}
	if err != nil {
		recordSpanError(span, err)
		log.Warn(ctx, "removal rejected", logging.String("module_id", id), logging.Err(err))
		return err
	}

	if err := s.registry.Remove(id); err != nil {
		recordSpanError(span, err)
		return err
	}
	if s.activeHubID == id {
		s.activeHubID = s.initialHubID
		s.emitLocked(Event{Type: EventActiveHubChanged, HubID: s.initialHubID})
	}
	s.rebuildGraphLocked()

	log.Info(ctx, "module removed", logging.String("module_id", id), logging.String("name", m.Name))
	s.emitLocked(Event{Type: EventModuleRemoved, ModuleID: id})
	s.updateCountsLocked()
	return nil
}

// Tick advances the simulation by dt: one rendezvous step for every agent,
// then telemetry and production for every docked module, then a topology
// rebuild. A non-positive dt still steps rendezvous but leaves time-scaled
// state untouched.
func (s *Station) Tick(ctx context.Context, dt time.Duration) {
	s.mu.Lock()
	defer s.unlockAndDispatch()

	if dt < 0 {
		dt = 0
	}
	s.elapsed += dt
	s.ticks++

	for _, d := range s.rendezvous.Step() {
		s.completeDockingLocked(ctx, d)
	}
	for _, a := range s.rendezvous.Agents() {
		_ = s.registry.UpdatePosition(a.ModuleID, a.WorldPosition())
	}

	secs := dt.Seconds()
	for _, m := range s.registry.List() {
		if !m.IsDocked() {
			continue
		}
		m.Telemetry.Update(secs)
		if secs > 0 {
			m.OutputUnits += secs
		}
	}

	s.pruneRecentLocked()
	s.rebuildGraphLocked()
	s.updateCountsLocked()
}

func (s *Station) completeDockingLocked(ctx context.Context, d core.Docking) {
	m := s.registry.Get(d.ModuleID)
	if m == nil {
		return
	}
	if err := s.registry.MarkDocked(m.ID, m.Target, s.elapsed); err != nil {
		s.log.Error(ctx, "mark docked failed", logging.String("module_id", m.ID), logging.Err(err))
		return
	}
	if s.inFlightID == m.ID {
		s.inFlightID = ""
	}
	s.recent = append(s.recent, DockingRecord{ModuleID: m.ID, Name: m.Name, At: s.elapsed, Ticks: d.Ticks})

	flight := s.elapsed - m.LaunchedAt
	s.log.Info(ctx, "module docked",
		logging.String("module_id", m.ID),
		logging.String("name", m.Name),
		logging.Int("ticks", d.Ticks),
		logging.Any("flight_time", flight),
	)
	if s.metrics != nil {
		s.metrics.ObserveDocking(d.Ticks, flight)
	}
	s.emitLocked(Event{Type: EventModuleDocked, ModuleID: m.ID, HubID: m.ParentHubID})
}

func (s *Station) pruneRecentLocked() {
	keep := s.recent[:0]
	for _, r := range s.recent {
		if s.elapsed-r.At <= s.cfg.RecentDockingRetention {
			keep = append(keep, r)
		}
	}
	s.recent = keep
}

func (s *Station) rebuildGraphLocked() {
	mods := s.registry.List()
	nodes := make([]core.GraphNode, 0, len(mods))
	for _, m := range mods {
		nodes = append(nodes, core.GraphNode{
			ID:         m.ID,
			Position:   m.Position,
			Docked:     m.IsDocked(),
			InitialHub: m.InitialHub,
		})
	}
	s.graph.Rebuild(nodes)
}

func (s *Station) updateCountsLocked() {
	if s.metrics == nil && len(s.counts) == 0 {
		return
	}
	docked, inTransit, critical := 0, 0, 0
	for _, m := range s.registry.List() {
		if m.IsDocked() {
			docked++
		} else {
			inTransit++
		}
		if m.Status() == core.StatusCritical {
			critical++
		}
	}
	if s.metrics != nil {
		s.metrics.SetModuleCounts(docked, inTransit, critical)
	}
	for _, c := range s.counts {
		c.SetModuleCounts(docked, inTransit, critical)
	}
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
