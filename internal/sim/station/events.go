package station

import (
	"sort"
	"time"

	"github.com/signalsfoundry/station-simulator/core"
)

// EventType classifies station events.
type EventType int

const (
	EventModuleLaunched EventType = iota
	EventModuleDocked
	EventFaultInjected
	EventModuleRepaired
	EventLaunchRejected
	EventModuleRemoved
	EventActiveHubChanged
)

func (t EventType) String() string {
	switch t {
	case EventModuleLaunched:
		return "module_launched"
	case EventModuleDocked:
		return "module_docked"
	case EventFaultInjected:
		return "fault_injected"
	case EventModuleRepaired:
		return "module_repaired"
	case EventLaunchRejected:
		return "launch_rejected"
	case EventModuleRemoved:
		return "module_removed"
	case EventActiveHubChanged:
		return "active_hub_changed"
	default:
		return "unknown"
	}
}

// Event describes one observable state change. Events are delivered after
// the command or tick that produced them has released the station lock, so
// subscribers may call back into the Station.
type Event struct {
	Type     EventType
	ModuleID string
	HubID    string
	// Fault is set for EventFaultInjected and EventModuleRepaired.
	Fault *core.Fault
	// Reason is set for EventLaunchRejected.
	Reason RejectReason
	// At is the simulation time of the event.
	At time.Duration
}

// Subscribe registers fn for station events and returns a function that
// removes it.
func (s *Station) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// emitLocked queues ev for delivery when the lock is released.
func (s *Station) emitLocked(ev Event) {
	ev.At = s.elapsed
	s.pending = append(s.pending, ev)
}

// unlockAndDispatch releases the lock and delivers queued events in order.
func (s *Station) unlockAndDispatch() {
	events := s.pending
	s.pending = nil
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	subs := make([]func(Event), 0, len(ids))
	for _, id := range ids {
		subs = append(subs, s.subs[id])
	}
	s.mu.Unlock()

	for _, ev := range events {
		for _, fn := range subs {
			fn(ev)
		}
	}
}
