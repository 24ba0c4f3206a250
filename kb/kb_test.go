package kb

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/signalsfoundry/station-simulator/core"
	"github.com/signalsfoundry/station-simulator/model"
)

func newHub() *model.Module {
	return &model.Module{ID: "hub", Kind: model.KindHub, InitialHub: true, DockState: model.DockStateDocked}
}

func TestAddAndGetModule(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Add(newHub()); err != nil {
		t.Fatalf("Add error: %v", err)
	}
	got := reg.Get("hub")
	if got == nil || got.Kind != model.KindHub {
		t.Fatalf("Get returned %#v, want hub", got)
	}
	if reg.Get("missing") != nil {
		t.Fatalf("Get of unknown id should return nil")
	}
}

func TestAddModuleDuplicate(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Add(newHub()); err != nil {
		t.Fatalf("first Add error: %v", err)
	}
	if err := reg.Add(&model.Module{ID: "hub"}); !errors.Is(err, ErrModuleExists) {
		t.Fatalf("duplicate Add error = %v, want ErrModuleExists", err)
	}
}

func TestListKeepsRegistrationOrder(t *testing.T) {
	reg := NewRegistry()
	_ = reg.Add(newHub())
	for i := range 4 {
		if err := reg.Add(&model.Module{ID: fmt.Sprintf("m-%d", i)}); err != nil {
			t.Fatalf("Add error: %v", err)
		}
	}
	if err := reg.Remove("m-1"); err != nil {
		t.Fatalf("Remove error: %v", err)
	}

	want := []string{"hub", "m-0", "m-2", "m-3"}
	list := reg.List()
	if len(list) != len(want) {
		t.Fatalf("List len=%d, want %d", len(list), len(want))
	}
	for i, m := range list {
		if m.ID != want[i] {
			t.Fatalf("List[%d] = %s, want %s", i, m.ID, want[i])
		}
	}
	if got := len(reg.Occupied()); got != 4 {
		t.Fatalf("Occupied len=%d, want 4", got)
	}
}

func TestRemoveInitialHubRejected(t *testing.T) {
	reg := NewRegistry()
	_ = reg.Add(newHub())
	if err := reg.Remove("hub"); err == nil {
		t.Fatalf("expected removing the initial hub to fail")
	}
	if err := reg.Remove("nope"); !errors.Is(err, ErrModuleNotFound) {
		t.Fatalf("Remove unknown error = %v, want ErrModuleNotFound", err)
	}
}

func TestMarkDockedOnce(t *testing.T) {
	reg := NewRegistry()
	_ = reg.Add(newHub())

	m := &model.Module{ID: "m1", DockState: model.DockStateInTransit}
	if err := reg.Add(m); err != nil {
		t.Fatalf("Add error: %v", err)
	}
	pos := core.Vec3{X: 1, Z: 2}
	if err := reg.MarkDocked("m1", pos, 0); err != nil {
		t.Fatalf("MarkDocked error: %v", err)
	}
	if !m.IsDocked() || m.Position != pos {
		t.Fatalf("module not docked at %+v: %+v", pos, m)
	}
	if err := reg.MarkDocked("m1", pos, 0); err == nil {
		t.Fatalf("second MarkDocked should fail")
	}
	if err := reg.MarkDocked("nope", pos, 0); !errors.Is(err, ErrModuleNotFound) {
		t.Fatalf("MarkDocked unknown error = %v, want ErrModuleNotFound", err)
	}
}

func TestOccupiedUsesTargetWhileInTransit(t *testing.T) {
	reg := NewRegistry()
	hub := newHub()
	_ = reg.Add(hub)

	docked := &model.Module{ID: "docked", DockState: model.DockStateDocked, Position: core.Vec3{X: 2.6}}
	transit := &model.Module{
		ID:        "transit",
		DockState: model.DockStateInTransit,
		Position:  core.Vec3{X: -4, Z: 3},
		Target:    core.Vec3{X: 1.3, Z: 2.25},
	}
	_ = reg.Add(docked)
	_ = reg.Add(transit)

	want := []core.Vec3{hub.Position, docked.Position, transit.Target}
	got := reg.Occupied()
	if len(got) != len(want) {
		t.Fatalf("Occupied len=%d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Occupied[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestConcurrentAccess(t *testing.T) {
	reg := NewRegistry()
	_ = reg.Add(newHub())
	_ = reg.Add(&model.Module{ID: "m1"})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = reg.Get("m1")
			_ = reg.List()
			_ = reg.Occupied()
		}()
		go func() {
			defer wg.Done()
			_ = reg.UpdatePosition("m1", core.Vec3{X: float64(i)})
		}()
	}
	wg.Wait()
}
