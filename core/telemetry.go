package core

import "math"

// Status is a module's health state.
type Status int

const (
	StatusNominal Status = iota
	StatusCritical
)

func (s Status) String() string {
	switch s {
	case StatusNominal:
		return "NOMINAL"
	case StatusCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// FaultKind names a class of simulated failure.
type FaultKind string

const (
	FaultVoltage   FaultKind = "voltage"
	FaultThermal   FaultKind = "thermal"
	FaultPressure  FaultKind = "pressure"
	FaultComms     FaultKind = "comms"
	FaultProcessor FaultKind = "processor"
	FaultSensor    FaultKind = "sensor"
)

// Severity grades a fault for presentation; it does not change the
// telemetry trajectory.
type Severity int

const (
	SeverityMinor Severity = iota
	SeverityMajor
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityMinor:
		return "minor"
	case SeverityMajor:
		return "major"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Fault describes an active failure. Label and ColorTag are display hints
// passed through to presentation layers.
type Fault struct {
	Kind     FaultKind
	Severity Severity
	Label    string
	ColorTag string
}

var faultCatalog = []Fault{
	{Kind: FaultVoltage, Severity: SeverityCritical, Label: "CRITICAL VOLTAGE", ColorTag: "#fbbf24"},
	{Kind: FaultThermal, Severity: SeverityCritical, Label: "HIGH TEMPERATURE", ColorTag: "#ef4444"},
	{Kind: FaultPressure, Severity: SeverityMajor, Label: "ABNORMAL PRESSURE", ColorTag: "#f97316"},
	{Kind: FaultComms, Severity: SeverityMajor, Label: "COMMS FAILURE", ColorTag: "#06b6d4"},
	{Kind: FaultProcessor, Severity: SeverityMajor, Label: "PROCESSOR ERROR", ColorTag: "#a855f7"},
	{Kind: FaultSensor, Severity: SeverityMinor, Label: "DAMAGED SENSOR", ColorTag: "#ef4444"},
}

// FaultCatalog returns a copy of the fixed fault catalog in draw order.
func FaultCatalog() []Fault {
	return append([]Fault(nil), faultCatalog...)
}

// Telemetry bounds. Every reading is clamped into its range on every update.
const (
	MinTemperatureC  = 20.0
	MaxTemperatureC  = 150.0
	MinCPULoadPct    = 0.0
	MaxCPULoadPct    = 100.0
	MinEfficiencyPct = 10.0
	MaxEfficiencyPct = 100.0
	MinPowerKW       = 0.0
	MaxPowerKW       = 45.0

	criticalCPULoadPct = 99.9
)

// Readings are the four simulated scalars of a module.
type Readings struct {
	TemperatureC  float64
	CPULoadPct    float64
	EfficiencyPct float64
	PowerKW       float64
}

// NominalReadings are the band centres a fresh module starts at.
func NominalReadings() Readings {
	return Readings{TemperatureC: 50, CPULoadPct: 25, EfficiencyPct: 95, PowerKW: 12.5}
}

// band describes the nominal random walk of one scalar. walk and nudge are
// per reference frame (1/60 s) and scaled by dt.
type band struct {
	lo, hi   float64
	walk     float64
	nudge    float64
	min, max float64
}

var (
	temperatureBand = band{lo: 45, hi: 55, walk: 0.05, nudge: 0.1, min: MinTemperatureC, max: MaxTemperatureC}
	cpuBand         = band{lo: 10, hi: 40, walk: 0.1, nudge: 0.5, min: MinCPULoadPct, max: MaxCPULoadPct}
	efficiencyBand  = band{lo: 92, hi: 98, walk: 0.02, nudge: 0.05, min: MinEfficiencyPct, max: MaxEfficiencyPct}
	powerBand       = band{lo: 10, hi: 15, walk: 0.05, nudge: 0.1, min: MinPowerKW, max: MaxPowerKW}
)

const referenceFrameSeconds = 1.0 / 60.0

func (b band) step(v, r, scale float64) float64 {
	v += (r - 0.5) * b.walk * scale
	if v < b.lo {
		v += b.nudge * scale
	}
	if v > b.hi {
		v -= b.nudge * scale
	}
	return clamp(v, b.min, b.max)
}

// TelemetryModel holds and evolves one module's health.
//
// NOMINAL → CRITICAL happens only through InjectFault and CRITICAL → NOMINAL
// only through Repair; Update never changes status.
type TelemetryModel struct {
	readings Readings
	status   Status
	fault    *Fault
	rng      Rand
}

// NewTelemetryModel returns a nominal model drawing randomness from rng.
func NewTelemetryModel(rng Rand) *TelemetryModel {
	return &TelemetryModel{readings: NominalReadings(), rng: rng}
}

// Readings returns the current scalar values.
func (t *TelemetryModel) Readings() Readings { return t.readings }

// Status returns the current health state.
func (t *TelemetryModel) Status() Status { return t.status }

// ActiveFault returns the fault recorded on entering CRITICAL.
func (t *TelemetryModel) ActiveFault() (Fault, bool) {
	if t.fault == nil {
		return Fault{}, false
	}
	return *t.fault, true
}

// InjectFault moves a NOMINAL model to CRITICAL with a uniformly drawn
// catalog fault. It is a no-op on a model that is already CRITICAL and
// reports whether the state changed.
func (t *TelemetryModel) InjectFault() bool {
	if t.status == StatusCritical {
		return false
	}
	f := faultCatalog[t.rng.Intn(len(faultCatalog))]
	t.status = StatusCritical
	t.fault = &f
	return true
}

// Repair returns a CRITICAL model to NOMINAL and clears its fault. It
// reports whether the state changed.
func (t *TelemetryModel) Repair() bool {
	if t.status != StatusCritical {
		return false
	}
	t.status = StatusNominal
	t.fault = nil
	return true
}

// Update evolves the readings by dt seconds.
func (t *TelemetryModel) Update(dt float64) {
	if !(dt > 0) || math.IsInf(dt, 0) {
		return
	}
	scale := dt / referenceFrameSeconds

	r := &t.readings
	if t.status == StatusCritical {
		r.TemperatureC = clamp(r.TemperatureC+0.5*scale, MinTemperatureC, MaxTemperatureC)
		r.CPULoadPct = math.Max(r.CPULoadPct, criticalCPULoadPct)
		r.EfficiencyPct = clamp(r.EfficiencyPct-1.5*scale, MinEfficiencyPct, MaxEfficiencyPct)
		r.PowerKW = clamp(r.PowerKW+0.8*scale, MinPowerKW, MaxPowerKW)
		return
	}

	r.TemperatureC = temperatureBand.step(r.TemperatureC, t.rng.Float64(), scale)
	r.CPULoadPct = cpuBand.step(r.CPULoadPct, t.rng.Float64(), scale)
	r.EfficiencyPct = efficiencyBand.step(r.EfficiencyPct, t.rng.Float64(), scale)
	r.PowerKW = powerBand.step(r.PowerKW, t.rng.Float64(), scale)
}
