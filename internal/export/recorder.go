// Package export writes station events as JSON lines for offline analysis.
package export

import (
	"fmt"
	"io"
	"sync"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/station-simulator/internal/sim/station"
)

// Recorder serialises station events, one JSON object per line. Each record
// is built as a protobuf Struct so the output stays schema-free but
// well-formed.
type Recorder struct {
	mu     sync.Mutex
	w      io.Writer
	err    error
	n      int
	closed bool
}

// NewRecorder writes records to w.
func NewRecorder(w io.Writer) *Recorder {
	return &Recorder{w: w}
}

// Attach subscribes the recorder to s and returns the unsubscribe function.
func (r *Recorder) Attach(s *station.Station) func() {
	return s.Subscribe(r.RecordEvent)
}

// RecordEvent writes one event record. After the first write error further
// records are dropped; the error is available from Err.
func (r *Recorder) RecordEvent(ev station.Event) {
	fields := map[string]any{
		"type":      ev.Type.String(),
		"atSeconds": ev.At.Seconds(),
	}
	if ev.ModuleID != "" {
		fields["moduleId"] = ev.ModuleID
	}
	if ev.HubID != "" {
		fields["hubId"] = ev.HubID
	}
	if ev.Fault != nil {
		fields["fault"] = map[string]any{
			"kind":     string(ev.Fault.Kind),
			"severity": ev.Fault.Severity.String(),
			"label":    ev.Fault.Label,
		}
	}
	if ev.Type == station.EventLaunchRejected {
		fields["reason"] = ev.Reason.String()
	}
	r.write(fields)
}

// RecordSnapshot writes a summary of the station state.
func (r *Recorder) RecordSnapshot(snap station.Snapshot) {
	modules := make([]any, 0, len(snap.Modules))
	for _, m := range snap.Modules {
		entry := map[string]any{
			"id":          m.ID,
			"name":        m.Name,
			"kind":        m.Kind.String(),
			"dockState":   m.DockState.String(),
			"status":      m.Status.String(),
			"outputUnits": m.OutputUnits,
			"temperature": m.Readings.TemperatureC,
			"position":    []any{m.Position.X, m.Position.Y, m.Position.Z},
		}
		if m.Fault != nil {
			entry["fault"] = string(m.Fault.Kind)
		}
		modules = append(modules, entry)
	}
	edges := make([]any, 0, len(snap.Edges))
	for _, e := range snap.Edges {
		edges = append(edges, []any{e.A, e.B})
	}
	fields := map[string]any{
		"type":        "snapshot",
		"atSeconds":   snap.Elapsed.Seconds(),
		"tick":        float64(snap.Tick),
		"activeHubId": snap.ActiveHubID,
		"modules":     modules,
		"edges":       edges,
	}
	if snap.Orbit != nil {
		fields["orbit"] = map[string]any{
			"latitudeDeg":  snap.Orbit.LatitudeDeg,
			"longitudeDeg": snap.Orbit.LongitudeDeg,
			"altitudeKm":   snap.Orbit.AltitudeKm,
			"speedKmS":     snap.Orbit.SpeedKmS,
		}
	}
	r.write(fields)
}

// Records returns the number of lines written.
func (r *Recorder) Records() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.n
}

// Err returns the first write or encoding error.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Close stops recording and closes the underlying writer when it is an
// io.Closer. It returns the first write error, or else the close error.
// Later calls return nil.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	var closeErr error
	if c, ok := r.w.(io.Closer); ok {
		if err := c.Close(); err != nil {
			closeErr = fmt.Errorf("close export: %w", err)
		}
	}
	if r.err != nil {
		return r.err
	}
	return closeErr
}

func (r *Recorder) write(fields map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil || r.closed {
		return
	}

	st, err := structpb.NewStruct(fields)
	if err != nil {
		r.err = fmt.Errorf("encode record: %w", err)
		return
	}
	line, err := protojson.Marshal(st)
	if err != nil {
		r.err = fmt.Errorf("marshal record: %w", err)
		return
	}
	if _, err := r.w.Write(append(line, '\n')); err != nil {
		r.err = fmt.Errorf("write record: %w", err)
		return
	}
	r.n++
}
