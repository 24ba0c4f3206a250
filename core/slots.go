package core

import "math"

// Default slot geometry. Modules are hexagonal with a flat-to-flat width a
// little under the spacing, so 2.6 units puts faces flush against the hub.
const (
	DefaultSlotRadius    = 2.6
	DefaultSlotClearance = 1.0
)

// slotAngles are the candidate bearings around a hub, in allocation order.
// The 30° offset lines slots up with the hexagon's faces rather than its
// corners.
var slotAngles = [6]float64{30, 90, 150, 210, 270, 330}

// Slot is a candidate docking position around a hub.
type Slot struct {
	AngleDeg float64
	Position Vec3
}

// FacingDeg is the heading a module in this slot must take to present its
// docking face toward the hub.
func (s Slot) FacingDeg() float64 {
	return normalizeDeg(s.AngleDeg + 180)
}

// SlotAllocator computes free docking slots around a hub.
type SlotAllocator struct {
	// Radius is the hub-centre to module-centre spacing.
	Radius float64 `yaml:"slot_radius"`
	// Clearance is the minimum distance between a candidate slot and any
	// existing module for the slot to count as free.
	Clearance float64 `yaml:"slot_clearance"`
}

// NewSlotAllocator returns an allocator using the default geometry.
func NewSlotAllocator() SlotAllocator {
	return SlotAllocator{Radius: DefaultSlotRadius, Clearance: DefaultSlotClearance}
}

// Candidates returns every slot around hub in allocation order, occupied or
// not.
func (a SlotAllocator) Candidates(hub Vec3) []Slot {
	out := make([]Slot, 0, len(slotAngles))
	for _, angle := range slotAngles {
		rad := degToRad(angle)
		out = append(out, Slot{
			AngleDeg: angle,
			Position: hub.Add(Vec3{X: a.Radius * math.Cos(rad), Z: a.Radius * math.Sin(rad)}),
		})
	}
	return out
}

// FindFreeSlot returns the first slot around hub that has no entry of
// occupied within the clearance distance. occupied must include the hub
// itself. The second return value is false when all slots are taken.
func (a SlotAllocator) FindFreeSlot(hub Vec3, occupied []Vec3) (Slot, bool) {
	for _, slot := range a.Candidates(hub) {
		if a.isFree(slot.Position, occupied) {
			return slot, true
		}
	}
	return Slot{}, false
}

func (a SlotAllocator) isFree(candidate Vec3, occupied []Vec3) bool {
	for _, p := range occupied {
		if p.DistanceTo(candidate) < a.Clearance {
			return false
		}
	}
	return true
}
