package observability

import (
	"context"
	"testing"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func checkStatus(t *testing.T, h *StationHealth, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := h.Server().Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		t.Fatalf("Check(%q): %v", service, err)
	}
	return resp.GetStatus()
}

func TestStationHealthFollowsCriticalModules(t *testing.T) {
	h := NewStationHealth()
	if got := checkStatus(t, h, StationServiceName); got != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("initial status = %v, want SERVING", got)
	}

	h.SetModuleCounts(3, 0, 1)
	if got := checkStatus(t, h, StationServiceName); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("status with critical module = %v, want NOT_SERVING", got)
	}
	if got := checkStatus(t, h, ""); got != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("overall status = %v, want SERVING", got)
	}

	h.SetModuleCounts(3, 0, 0)
	if got := checkStatus(t, h, StationServiceName); got != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("status after repair = %v, want SERVING", got)
	}

	h.Shutdown()
	if got := checkStatus(t, h, StationServiceName); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("status after shutdown = %v, want NOT_SERVING", got)
	}
}
