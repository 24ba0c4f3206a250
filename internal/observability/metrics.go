package observability

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// Module population states reported on the station_modules gauge.
const (
	ModuleStateDocked    = "docked"
	ModuleStateInTransit = "in_transit"
	ModuleStateCritical  = "critical"
)

// StationCollector bundles Prometheus metrics for the station controller
// and the gRPC surface, and provides helpers to wire them into servers and
// HTTP handlers.
type StationCollector struct {
	gatherer prometheus.Gatherer

	RPCRequests  *prometheus.CounterVec
	RPCDurations *prometheus.HistogramVec

	Launches         *prometheus.CounterVec
	Dockings         prometheus.Counter
	RendezvousTicks  prometheus.Histogram
	RendezvousFlight prometheus.Histogram
	Faults           *prometheus.CounterVec
	Repairs          prometheus.Counter
	Modules          *prometheus.GaugeVec
}

// NewStationCollector registers station metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewStationCollector(reg prometheus.Registerer) (*StationCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	c := &StationCollector{gatherer: gatherer}
	var err error

	if c.RPCRequests, err = register(reg, "station_rpc_requests_total", prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "station_rpc_requests_total",
		Help: "Total number of handled gRPC calls, labeled by service, method, and gRPC status code.",
	}, []string{"service", "method", "code"})); err != nil {
		return nil, err
	}
	if c.RPCDurations, err = register(reg, "station_rpc_duration_seconds", prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "station_rpc_duration_seconds",
		Help:    "gRPC call latency in seconds.",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"service", "method"})); err != nil {
		return nil, err
	}
	if c.Launches, err = register(reg, "station_launches_total", prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "station_launches_total",
		Help: "Launch requests, labeled by outcome (accepted, locked, no_free_slot).",
	}, []string{"outcome"})); err != nil {
		return nil, err
	}
	if c.Dockings, err = register(reg, "station_dockings_total", prometheus.NewCounter(prometheus.CounterOpts{
		Name: "station_dockings_total",
		Help: "Modules that completed rendezvous and docked.",
	})); err != nil {
		return nil, err
	}
	if c.RendezvousTicks, err = register(reg, "station_rendezvous_ticks", prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "station_rendezvous_ticks",
		Help:    "Integration steps from launch to docking.",
		Buckets: []float64{250, 500, 1000, 1500, 2000, 2500, 3000, 4000, 6000},
	})); err != nil {
		return nil, err
	}
	if c.RendezvousFlight, err = register(reg, "station_rendezvous_flight_seconds", prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "station_rendezvous_flight_seconds",
		Help:    "Simulated time from launch to docking.",
		Buckets: []float64{15, 30, 60, 90, 120, 180, 300},
	})); err != nil {
		return nil, err
	}
	if c.Faults, err = register(reg, "station_faults_total", prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "station_faults_total",
		Help: "Injected faults, labeled by fault kind.",
	}, []string{"kind"})); err != nil {
		return nil, err
	}
	if c.Repairs, err = register(reg, "station_repairs_total", prometheus.NewCounter(prometheus.CounterOpts{
		Name: "station_repairs_total",
		Help: "Modules returned from CRITICAL to NOMINAL.",
	})); err != nil {
		return nil, err
	}
	if c.Modules, err = register(reg, "station_modules", prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "station_modules",
		Help: "Current module population, labeled by state.",
	}, []string{"state"})); err != nil {
		return nil, err
	}
	return c, nil
}

// UnaryServerInterceptor records request counts and durations for unary RPCs.
func (c *StationCollector) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		if c == nil {
			return resp, err
		}

		fullMethod := ""
		if info != nil {
			fullMethod = info.FullMethod
		}
		service, method := SplitMethod(fullMethod)
		code := status.Code(err).String()

		if c.RPCRequests != nil {
			c.RPCRequests.WithLabelValues(service, method, code).Inc()
		}
		if c.RPCDurations != nil {
			c.RPCDurations.WithLabelValues(service, method).Observe(time.Since(start).Seconds())
		}

		return resp, err
	}
}

// Handler exposes a ready-to-use /metrics handler.
func (c *StationCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ObserveLaunch counts one launch request by outcome.
func (c *StationCollector) ObserveLaunch(outcome string) {
	if c == nil || c.Launches == nil {
		return
	}
	c.Launches.WithLabelValues(outcome).Inc()
}

// ObserveDocking records a completed rendezvous.
func (c *StationCollector) ObserveDocking(ticks int, flight time.Duration) {
	if c == nil {
		return
	}
	if c.Dockings != nil {
		c.Dockings.Inc()
	}
	if c.RendezvousTicks != nil {
		c.RendezvousTicks.Observe(float64(ticks))
	}
	if c.RendezvousFlight != nil {
		c.RendezvousFlight.Observe(flight.Seconds())
	}
}

// ObserveFault counts an injected fault.
func (c *StationCollector) ObserveFault(kind string) {
	if c == nil || c.Faults == nil {
		return
	}
	c.Faults.WithLabelValues(kind).Inc()
}

// ObserveRepairs adds n repaired modules.
func (c *StationCollector) ObserveRepairs(n int) {
	if c == nil || c.Repairs == nil || n <= 0 {
		return
	}
	c.Repairs.Add(float64(n))
}

// SetModuleCounts satisfies the station's counts recorder so the controller
// can drive gauge values directly from its commands and ticks.
func (c *StationCollector) SetModuleCounts(docked, inTransit, critical int) {
	if c == nil || c.Modules == nil {
		return
	}
	c.Modules.WithLabelValues(ModuleStateDocked).Set(float64(docked))
	c.Modules.WithLabelValues(ModuleStateInTransit).Set(float64(inTransit))
	c.Modules.WithLabelValues(ModuleStateCritical).Set(float64(critical))
}

// SplitMethod parses a fully-qualified gRPC method name into service and method
// components. It tolerates empty strings and partial paths, returning
// "unknown"/"unknown" when parsing fails.
func SplitMethod(fullMethod string) (string, string) {
	if fullMethod == "" {
		return "unknown", "unknown"
	}
	fullMethod = strings.TrimPrefix(fullMethod, "/")
	parts := strings.Split(fullMethod, "/")
	if len(parts) < 2 {
		return "unknown", "unknown"
	}
	service := parts[len(parts)-2]
	method := parts[len(parts)-1]
	if dot := strings.LastIndex(service, "."); dot >= 0 && dot+1 < len(service) {
		service = service[dot+1:]
	}
	if service == "" {
		service = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	return service, method
}

// register adds c to reg, reusing an identical collector that is already
// registered under name.
func register[C prometheus.Collector](reg prometheus.Registerer, name string, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
			var zero C
			return zero, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		var zero C
		return zero, err
	}
	return c, nil
}
