package observability

import (
	"sync"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// StationServiceName is the health service name reported for the station.
const StationServiceName = "station.Station"

// StationHealth publishes station health over the standard gRPC health
// protocol. The station service is NOT_SERVING while any module is
// CRITICAL; the overall server status ("") always stays SERVING.
type StationHealth struct {
	server *health.Server

	mu       sync.Mutex
	critical int
}

// NewStationHealth returns a reporter whose station service starts SERVING.
func NewStationHealth() *StationHealth {
	h := &StationHealth{server: health.NewServer()}
	h.server.SetServingStatus(StationServiceName, healthpb.HealthCheckResponse_SERVING)
	return h
}

// Server returns the gRPC health service for registration.
func (h *StationHealth) Server() *health.Server { return h.server }

// SetModuleCounts updates the station service status from the number of
// critical modules.
func (h *StationHealth) SetModuleCounts(_, _, critical int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if critical == h.critical {
		return
	}
	h.critical = critical
	st := healthpb.HealthCheckResponse_SERVING
	if critical > 0 {
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.server.SetServingStatus(StationServiceName, st)
}

// Shutdown marks every service NOT_SERVING.
func (h *StationHealth) Shutdown() { h.server.Shutdown() }
