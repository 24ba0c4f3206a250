package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/signalsfoundry/station-simulator/core"
	"github.com/signalsfoundry/station-simulator/internal/config"
	"github.com/signalsfoundry/station-simulator/internal/export"
	"github.com/signalsfoundry/station-simulator/internal/logging"
	"github.com/signalsfoundry/station-simulator/internal/observability"
	"github.com/signalsfoundry/station-simulator/internal/sim/scenario"
	"github.com/signalsfoundry/station-simulator/internal/sim/station"
	"github.com/signalsfoundry/station-simulator/timectrl"
)

type runResult struct {
	Stats    scenario.Stats
	Snapshot station.Snapshot
	Records  int
}

// run assembles the station and drives it until the configured duration
// elapses or ctx is cancelled. lis, when non-nil, is used for the gRPC
// health service instead of listening on cfg.GRPC.Addr.
func run(ctx context.Context, cfg *config.Config, log logging.Logger, lis net.Listener) (*runResult, error) {
	shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing, log)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	collector, err := observability.NewStationCollector(prometheus.NewRegistry())
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	health := observability.NewStationHealth()
	defer health.Shutdown()

	opts := []station.Option{
		station.WithRand(rand.New(rand.NewSource(cfg.Sim.Seed))),
		station.WithLogger(log),
		station.WithMetricsRecorder(collector),
		station.WithCountsRecorder(health),
	}
	if cfg.Orbit.Enabled {
		opts = append(opts, station.WithOrbit(core.NewStationOrbit(cfg.Orbit.TLELine1, cfg.Orbit.TLELine2), cfg.Orbit.Epoch))
	}
	st, err := station.New(cfg.StationConfig(), opts...)
	if err != nil {
		return nil, err
	}

	var recorder *export.Recorder
	if cfg.Export.Path != "" {
		f, err := os.Create(cfg.Export.Path)
		if err != nil {
			return nil, fmt.Errorf("open export file: %w", err)
		}
		recorder = export.NewRecorder(f)
		detach := recorder.Attach(st)
		defer detach()
		defer recorder.Close()
	}

	if metricsSrv := serveMetrics(cfg.Metrics.Addr, collector, log); metricsSrv != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsSrv.Shutdown(shutdownCtx)
		}()
	}

	if lis == nil && cfg.GRPC.Addr != "" {
		if lis, err = net.Listen("tcp", cfg.GRPC.Addr); err != nil {
			return nil, fmt.Errorf("listen for gRPC on %s: %w", cfg.GRPC.Addr, err)
		}
	}
	if lis != nil {
		server := newGRPCServer(collector, health)
		log.Info(ctx, "starting gRPC health service", logging.String("addr", lis.Addr().String()))
		go func() {
			if err := server.Serve(lis); err != nil {
				log.Error(ctx, "gRPC server exited", logging.Err(err))
			}
		}()
		defer server.GracefulStop()
	}

	director := scenario.NewDirector(st, scenario.Plan{
		Manifest:       cfg.Manifest,
		Repeat:         true,
		LaunchInterval: cfg.Sim.LaunchInterval,
		FaultInterval:  cfg.Sim.FaultInterval,
		RepairInterval: cfg.Sim.RepairInterval,
		StatusInterval: cfg.Sim.StatusInterval,
	}, log)

	tc := timectrl.NewTimeController(cfg.Orbit.Epoch, cfg.Sim.Tick, timectrl.ModeFor(cfg.Sim.RealTime))
	tc.AddListener(func(time.Time) {
		st.Tick(ctx, cfg.Sim.Tick)
		director.OnTick(ctx)
	})

	log.Info(ctx, "station simulation started",
		logging.Any("duration", cfg.Sim.Duration),
		logging.Any("tick", cfg.Sim.Tick),
		logging.Bool("real_time", cfg.Sim.RealTime),
		logging.Any("seed", cfg.Sim.Seed),
	)
	if err := tc.Run(ctx, cfg.Sim.Duration); err != nil {
		if !errors.Is(err, context.Canceled) {
			return nil, err
		}
		log.Info(ctx, "simulation interrupted", logging.Any("elapsed", st.Elapsed()))
	}

	res := &runResult{Stats: director.Stats(), Snapshot: st.Snapshot()}
	if recorder != nil {
		recorder.RecordSnapshot(res.Snapshot)
		if err := recorder.Close(); err != nil {
			return nil, err
		}
		res.Records = recorder.Records()
	}
	log.Info(ctx, "station simulation finished",
		logging.Int("modules", len(res.Snapshot.Modules)),
		logging.Int("launched", res.Stats.Launched),
		logging.Int("faults", res.Stats.Faults),
	)
	return res, nil
}

func newGRPCServer(collector *observability.StationCollector, health *observability.StationHealth) *grpc.Server {
	server := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(collector.UnaryServerInterceptor()),
	)
	healthpb.RegisterHealthServer(server, health.Server())
	return server
}

func serveMetrics(addr string, collector *observability.StationCollector, log logging.Logger) *http.Server {
	if addr == "" || collector == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
