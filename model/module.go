package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/signalsfoundry/station-simulator/core"
)

// ModuleKind distinguishes ordinary modules from hub nodes that can anchor
// further slot allocation.
type ModuleKind int

const (
	KindStandard ModuleKind = iota
	KindHub
)

func (k ModuleKind) String() string {
	switch k {
	case KindStandard:
		return "STANDARD"
	case KindHub:
		return "HUB"
	default:
		return "UNKNOWN"
	}
}

// ParseModuleKind accepts "standard", "module", "hub" or "hub_node" in any
// case. The empty string parses as KindStandard.
func ParseModuleKind(s string) (ModuleKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "standard", "module":
		return KindStandard, nil
	case "hub", "hub_node":
		return KindHub, nil
	default:
		return KindStandard, fmt.Errorf("unknown module kind %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k ModuleKind) MarshalText() ([]byte, error) {
	return []byte(strings.ToLower(k.String())), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *ModuleKind) UnmarshalText(b []byte) error {
	parsed, err := ParseModuleKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// DockState tracks a module's journey to the station. IN_TRANSIT → DOCKED
// happens exactly once.
type DockState int

const (
	DockStateInTransit DockState = iota
	DockStateDocked
)

func (d DockState) String() string {
	switch d {
	case DockStateInTransit:
		return "IN_TRANSIT"
	case DockStateDocked:
		return "DOCKED"
	default:
		return "UNKNOWN"
	}
}

// ModuleConfig is what a caller supplies at launch. Name and ColorTag are
// opaque to the simulation and passed through to presentation layers.
type ModuleConfig struct {
	Name     string     `yaml:"name" json:"name"`
	ColorTag string     `yaml:"color" json:"color"`
	Kind     ModuleKind `yaml:"kind" json:"kind"`
}

// Module is a station component.
type Module struct {
	ID       string
	Name     string
	ColorTag string
	Kind     ModuleKind

	// InitialHub marks the first module of the station. It is never
	// removed and anchors the topology graph.
	InitialHub bool

	// Position is in station coordinates. While in transit it mirrors the
	// rendezvous agent.
	Position   core.Vec3
	HeadingDeg float64

	// ParentHubID, SlotAngleDeg and Target record where the module was
	// allocated. Target is the slot position it docks at.
	ParentHubID  string
	SlotAngleDeg float64
	Target       core.Vec3

	DockState DockState
	Telemetry *core.TelemetryModel

	// OutputUnits accumulates one unit per simulated second while docked.
	OutputUnits float64

	LaunchedAt time.Duration
	DockedAt   time.Duration
}

// IsDocked reports whether the module has completed rendezvous.
func (m *Module) IsDocked() bool {
	return m.DockState == DockStateDocked
}

// Status is a shorthand for the module's telemetry status.
func (m *Module) Status() core.Status {
	if m.Telemetry == nil {
		return core.StatusNominal
	}
	return m.Telemetry.Status()
}
