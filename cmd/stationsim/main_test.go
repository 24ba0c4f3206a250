package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/signalsfoundry/station-simulator/internal/config"
	"github.com/signalsfoundry/station-simulator/internal/logging"
	"github.com/signalsfoundry/station-simulator/internal/observability"
)

func TestRunScriptedDemo(t *testing.T) {
	cfg := config.Default()
	cfg.Sim.Duration = 3 * time.Minute
	cfg.Orbit.Enabled = true
	cfg.Orbit.Epoch = time.Date(2021, 10, 2, 14, 0, 0, 0, time.UTC)
	cfg.Export.Path = filepath.Join(t.TempDir(), "events.jsonl")

	res, err := run(context.Background(), &cfg, logging.Noop(), nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if res.Snapshot.Elapsed != 3*time.Minute {
		t.Fatalf("elapsed = %v, want 3m", res.Snapshot.Elapsed)
	}
	if res.Stats.Launched < 1 || len(res.Snapshot.Modules) < 2 {
		t.Fatalf("expected at least one launch, got stats %+v with %d modules", res.Stats, len(res.Snapshot.Modules))
	}
	if res.Snapshot.Orbit == nil {
		t.Fatalf("orbit state missing from snapshot")
	}

	f, err := os.Open(cfg.Export.Path)
	if err != nil {
		t.Fatalf("open export: %v", err)
	}
	defer f.Close()
	lines := 0
	var last map[string]any
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		lines++
		last = map[string]any{}
		if err := json.Unmarshal(sc.Bytes(), &last); err != nil {
			t.Fatalf("export line %d is not JSON: %v", lines, err)
		}
	}
	if lines != res.Records || lines < 2 {
		t.Fatalf("export has %d lines, recorder reported %d", lines, res.Records)
	}
	if last["type"] != "snapshot" {
		t.Fatalf("last export record type = %v, want snapshot", last["type"])
	}
	orbit, ok := last["orbit"].(map[string]any)
	if !ok {
		t.Fatalf("snapshot record has no orbit: %v", last)
	}
	for _, key := range []string{"latitudeDeg", "longitudeDeg", "altitudeKm"} {
		if _, ok := orbit[key].(float64); !ok {
			t.Fatalf("orbit record missing %s: %v", key, orbit)
		}
	}
}

func TestRunServesHealth(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}

	cfg := config.Default()
	cfg.Sim.Duration = 0
	cfg.Sim.RealTime = true
	cfg.Sim.Tick = 10 * time.Millisecond
	cfg.Sim.FaultInterval = 0

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	runCtx, stop := context.WithCancel(ctx)

	errCh := make(chan error, 1)
	go func() {
		_, err := run(runCtx, &cfg, logging.Noop(), lis)
		errCh <- err
	}()

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("grpc.NewClient: %v", err)
	}
	defer conn.Close()

	client := healthpb.NewHealthClient(conn)
	var resp *healthpb.HealthCheckResponse
	for {
		resp, err = client.Check(ctx, &healthpb.HealthCheckRequest{Service: observability.StationServiceName})
		if err == nil || ctx.Err() != nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("health status = %v, want SERVING", resp.GetStatus())
	}

	stop()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("run returned error: %v", err)
		}
	case <-ctx.Done():
		t.Fatalf("run did not stop after cancel")
	}
}

func TestVersionCommand(t *testing.T) {
	cases := []struct {
		args []string
		want string
	}{
		{[]string{"version"}, "stationsim version " + version},
		{[]string{"version", "--json"}, `"version":"` + version + `"`},
	}
	for _, tc := range cases {
		var out bytes.Buffer
		root := newRootCmd()
		root.SetOut(&out)
		root.SetArgs(tc.args)
		if err := root.Execute(); err != nil {
			t.Fatalf("Execute(%v): %v", tc.args, err)
		}
		if !strings.Contains(out.String(), tc.want) {
			t.Fatalf("output %q does not contain %q", out.String(), tc.want)
		}
	}
}

func TestRunCommandWithConfigFile(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")
	path := filepath.Join(t.TempDir(), "station.yaml")
	body := `
sim:
  tick: 50ms
  duration: 2m
  fault_interval: 0s
manifest:
  - name: Graphene
    color: "#2563eb"
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"run", "--config", path, "--seed", "5", "--json"})
	if err := root.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	var s summary
	if err := json.Unmarshal(out.Bytes(), &s); err != nil {
		t.Fatalf("summary is not JSON: %v\n%s", err, out.String())
	}
	if s.Elapsed != "2m0s" || s.Modules < 1 || s.Faults != 0 {
		t.Fatalf("unexpected summary %+v", s)
	}
}

func TestRunCommandRejectsBadConfig(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"run", "--config", filepath.Join(t.TempDir(), "missing.yaml")})
	if err := root.Execute(); err == nil {
		t.Fatalf("expected error for missing config")
	}
}
