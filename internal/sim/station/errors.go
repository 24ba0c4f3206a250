package station

import (
	"errors"
	"fmt"

	"github.com/signalsfoundry/station-simulator/kb"
)

var (
	// ErrLaunchLocked indicates another module is still in transit. Retry
	// after it docks.
	ErrLaunchLocked = errors.New("launch already in flight")
	// ErrNoFreeSlot indicates every slot around the hub is occupied. Pick a
	// different hub.
	ErrNoFreeSlot = errors.New("no free slot around hub")
	// ErrInvalidRemoval indicates the module cannot be removed.
	ErrInvalidRemoval = errors.New("invalid removal")
	// ErrNoEligibleModule indicates no docked, nominal, standard module
	// exists to receive a fault. It is a no-op signal rather than a failure.
	ErrNoEligibleModule = errors.New("no module eligible for fault injection")
	// ErrModuleNotFound indicates an unknown module ID.
	ErrModuleNotFound = kb.ErrModuleNotFound
	// ErrModuleInTransit indicates the module has not docked yet.
	ErrModuleInTransit = errors.New("module is in transit")
	// ErrNotHubKind indicates the hub policy only allows HUB modules.
	ErrNotHubKind = errors.New("module is not a hub")
)

// RejectReason says why a launch was refused.
type RejectReason int

const (
	RejectNone RejectReason = iota
	RejectLocked
	RejectNoFreeSlot
)

func (r RejectReason) String() string {
	switch r {
	case RejectLocked:
		return "LOCKED"
	case RejectNoFreeSlot:
		return "NO_FREE_SLOT"
	default:
		return "NONE"
	}
}

// LaunchRejectedError is returned by Launch when the request is refused.
// It unwraps to ErrLaunchLocked or ErrNoFreeSlot.
type LaunchRejectedError struct {
	Reason     RejectReason
	HubID      string
	InFlightID string
}

func (e *LaunchRejectedError) Error() string {
	switch e.Reason {
	case RejectLocked:
		return fmt.Sprintf("launch rejected (%s): module %q still in transit", e.Reason, e.InFlightID)
	case RejectNoFreeSlot:
		return fmt.Sprintf("launch rejected (%s): hub %q is full", e.Reason, e.HubID)
	default:
		return "launch rejected"
	}
}

func (e *LaunchRejectedError) Unwrap() error {
	switch e.Reason {
	case RejectLocked:
		return ErrLaunchLocked
	case RejectNoFreeSlot:
		return ErrNoFreeSlot
	default:
		return nil
	}
}

// RemovalError is returned by Remove for modules that must stay attached.
// It unwraps to ErrInvalidRemoval.
type RemovalError struct {
	ModuleID string
	Reason   string
}

func (e *RemovalError) Error() string {
	return fmt.Sprintf("cannot remove module %q: %s", e.ModuleID, e.Reason)
}

func (e *RemovalError) Unwrap() error { return ErrInvalidRemoval }
