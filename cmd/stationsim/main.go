package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/station-simulator/core"
	"github.com/signalsfoundry/station-simulator/internal/config"
	"github.com/signalsfoundry/station-simulator/internal/logging"
	"github.com/signalsfoundry/station-simulator/model"
)

var version = "0.1.0-dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "stationsim",
		Short: "Modular space station simulator",
		Long: `stationsim assembles a modular space station in orbit.

Modules are launched one at a time, fly a relative-motion rendezvous to a
free slot around a hub, dock, and then produce output and telemetry until
a fault takes them critical.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				_ = json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]string{"version": version})
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "stationsim version %s\n", version)
			}
		},
	}
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the scripted station assembly headlessly",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(path)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := applyFlags(cmd, cfg); err != nil {
				return err
			}

			log := logging.New(cfg.LoggerConfig(), cmd.ErrOrStderr())
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			res, err := run(ctx, cfg, log, nil)
			if err != nil {
				return err
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			return printSummary(cmd, res, jsonOut)
		},
	}

	cmd.Flags().String("config", "", "Path to a YAML configuration file")
	cmd.Flags().Int64("seed", 0, "Random seed (overrides config)")
	cmd.Flags().Duration("duration", 0, "Simulated duration; 0 keeps the configured value")
	cmd.Flags().Duration("tick", 0, "Tick interval; 0 keeps the configured value")
	cmd.Flags().Bool("realtime", false, "Pace ticks against the wall clock")
	cmd.Flags().String("metrics-addr", "", "HTTP address for Prometheus /metrics")
	cmd.Flags().String("grpc-addr", "", "TCP address for the gRPC health service")
	cmd.Flags().String("export", "", "Write station events as JSON lines to this file")
	return cmd
}

func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("seed") {
		cfg.Sim.Seed, _ = flags.GetInt64("seed")
	}
	if d, _ := flags.GetDuration("duration"); d > 0 {
		cfg.Sim.Duration = d
	}
	if d, _ := flags.GetDuration("tick"); d > 0 {
		cfg.Sim.Tick = d
	}
	if flags.Changed("realtime") {
		cfg.Sim.RealTime, _ = flags.GetBool("realtime")
	}
	if addr, _ := flags.GetString("metrics-addr"); addr != "" {
		cfg.Metrics.Addr = addr
	}
	if addr, _ := flags.GetString("grpc-addr"); addr != "" {
		cfg.GRPC.Addr = addr
	}
	if path, _ := flags.GetString("export"); path != "" {
		cfg.Export.Path = path
	}
	if cfg.Sim.Tick <= 0 {
		return fmt.Errorf("tick must be positive, got %v", cfg.Sim.Tick)
	}
	return nil
}

type summary struct {
	Elapsed     string  `json:"elapsed"`
	Modules     int     `json:"modules"`
	Docked      int     `json:"docked"`
	Critical    int     `json:"critical"`
	Links       int     `json:"links"`
	Launched    int     `json:"launched"`
	Rejected    int     `json:"rejected"`
	HubSwitches int     `json:"hub_switches"`
	Faults      int     `json:"faults"`
	Repaired    int     `json:"repaired"`
	OutputUnits float64 `json:"output_units"`
	Records     int     `json:"export_records,omitempty"`
}

func summarize(res *runResult) summary {
	s := summary{
		Elapsed:     res.Snapshot.Elapsed.Round(time.Millisecond).String(),
		Modules:     len(res.Snapshot.Modules),
		Links:       len(res.Snapshot.Edges),
		Launched:    res.Stats.Launched,
		Rejected:    res.Stats.Rejected,
		HubSwitches: res.Stats.HubSwitches,
		Faults:      res.Stats.Faults,
		Repaired:    res.Stats.Repaired,
		Records:     res.Records,
	}
	for _, m := range res.Snapshot.Modules {
		if m.DockState == model.DockStateDocked {
			s.Docked++
		}
		if m.Status == core.StatusCritical {
			s.Critical++
		}
		s.OutputUnits += m.OutputUnits
	}
	return s
}

func printSummary(cmd *cobra.Command, res *runResult, jsonOut bool) error {
	s := summarize(res)
	out := cmd.OutOrStdout()
	if jsonOut {
		return json.NewEncoder(out).Encode(s)
	}
	fmt.Fprintf(out, "Simulated %s: %d modules (%d docked, %d critical), %d links\n",
		s.Elapsed, s.Modules, s.Docked, s.Critical, s.Links)
	fmt.Fprintf(out, "Launches: %d accepted, %d rejected, %d hub switches\n", s.Launched, s.Rejected, s.HubSwitches)
	fmt.Fprintf(out, "Faults: %d injected, %d repaired\n", s.Faults, s.Repaired)
	fmt.Fprintf(out, "Output: %.1f units\n", s.OutputUnits)
	return nil
}
