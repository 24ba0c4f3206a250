package scenario

import (
	"bytes"
	"context"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/signalsfoundry/station-simulator/internal/logging"
	"github.com/signalsfoundry/station-simulator/internal/sim/station"
	"github.com/signalsfoundry/station-simulator/model"
)

const tick = 50 * time.Millisecond

func newStation(t *testing.T) *station.Station {
	t.Helper()
	s, err := station.New(station.DefaultConfig(), station.WithRand(rand.New(rand.NewSource(11))))
	if err != nil {
		t.Fatalf("station.New: %v", err)
	}
	return s
}

func run(ctx context.Context, s *station.Station, d *Director, ticks int, until func() bool) int {
	for i := 0; i < ticks; i++ {
		if until != nil && until() {
			return i
		}
		s.Tick(ctx, tick)
		d.OnTick(ctx)
	}
	return ticks
}

func TestDirectorMovesToExpansionHubWhenFull(t *testing.T) {
	ctx := context.Background()
	s := newStation(t)
	manifest := []model.ModuleConfig{{Name: "Expansion Node", Kind: model.KindHub}}
	for i := 0; i < 6; i++ {
		manifest = append(manifest, model.ModuleConfig{Name: "Module", Kind: model.KindStandard})
	}
	d := NewDirector(s, Plan{Manifest: manifest, LaunchInterval: time.Second}, logging.Noop())

	idle := func() bool {
		_, busy := s.InFlight()
		return d.Exhausted() && !busy
	}
	if n := run(ctx, s, d, 40000, idle); n == 40000 {
		t.Fatalf("scenario did not finish, stats %+v", d.Stats())
	}

	stats := d.Stats()
	if stats.Launched != 7 || stats.HubSwitches != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	mods := s.Modules()
	if len(mods) != 8 {
		t.Fatalf("expected 8 modules, got %d", len(mods))
	}
	expansion := mods[1]
	if expansion.Kind != model.KindHub || s.ActiveHubID() != expansion.ID {
		t.Fatalf("expansion hub not active: active=%s expansion=%+v", s.ActiveHubID(), expansion)
	}
	last := mods[len(mods)-1]
	if last.ParentHubID != expansion.ID || last.DockState != model.DockStateDocked {
		t.Fatalf("last module %+v should dock around the expansion hub", last)
	}
}

func TestDirectorStopsWhenEveryHubIsFull(t *testing.T) {
	ctx := context.Background()
	s := newStation(t)
	d := NewDirector(s, Plan{
		Manifest:       []model.ModuleConfig{{Name: "Module"}},
		Repeat:         true,
		LaunchInterval: time.Second,
	}, logging.Noop())

	if n := run(ctx, s, d, 60000, d.Exhausted); n == 60000 {
		t.Fatalf("director never gave up, stats %+v", d.Stats())
	}
	if got := d.Stats().Launched; got != 6 {
		t.Fatalf("launched %d modules, want 6", got)
	}
	if d.Stats().HubSwitches != 0 {
		t.Fatalf("no expansion hub exists, switches = %d", d.Stats().HubSwitches)
	}
}

func TestDirectorInjectsAndRepairsFaults(t *testing.T) {
	ctx := context.Background()
	s := newStation(t)
	if _, err := s.Launch(ctx, "", model.ModuleConfig{Name: "Graphene"}); err != nil {
		t.Fatalf("Launch: %v", err)
	}
	for i := 0; i < 10000; i++ {
		if _, busy := s.InFlight(); !busy {
			break
		}
		s.Tick(ctx, tick)
	}

	d := NewDirector(s, Plan{FaultInterval: time.Second, RepairInterval: 3 * time.Second}, logging.Noop())
	run(ctx, s, d, 200, nil)

	stats := d.Stats()
	if stats.Faults < 3 || stats.Repaired < 3 {
		t.Fatalf("expected several faults and repairs, got %+v", stats)
	}
	if stats.Repaired > stats.Faults {
		t.Fatalf("repaired more modules than were faulted: %+v", stats)
	}
	if stats.Launched != 0 {
		t.Fatalf("empty manifest should not launch, got %d", stats.Launched)
	}
}

func TestDirectorLogsStatus(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	log := logging.New(logging.Config{Level: "info", Format: "json"}, &buf)
	s := newStation(t)
	d := NewDirector(s, Plan{
		Manifest:       []model.ModuleConfig{{Name: "Graphene"}},
		LaunchInterval: time.Second,
		StatusInterval: 2 * time.Second,
	}, log)

	run(ctx, s, d, 100, nil)

	out := buf.String()
	if strings.Count(out, `"msg":"station status"`) < 2 {
		t.Fatalf("expected periodic status lines, got:\n%s", out)
	}
	if !strings.Contains(out, `"approach_module":"Graphene"`) {
		t.Fatalf("status should include the approach HUD, got:\n%s", out)
	}
}
