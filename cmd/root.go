package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inference-sim/cpusched/sim"
	"github.com/inference-sim/cpusched/sim/trace"
	"github.com/inference-sim/cpusched/sim/visual"
)

var (
	logLevel string // Log verbosity level

	// CLI flags for `run`
	schedPolicy string // Dispatch policy name
	numCPUs     int    // Number of CPU slots
	numIOs      int    // Number of IO device slots
	configPath  string // Run configuration file
	seed        int64  // Session seed, forwarded to InitSession when set
	vizMode     string // none, table or live
	outFormat   string // table or json
	traceLevel  string // none or decisions
	metricsAddr string // Address for the Prometheus /metrics endpoint
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "cpusched",
	Short: "Tick-driven CPU/IO scheduling simulator",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)
	},
}

// runOptions is everything `run` needs, detached from the flag globals.
type runOptions struct {
	Policy      string
	CPUs        int
	IOs         int
	ConfigPath  string
	Seed        *int64
	Viz         string
	Format      string
	TraceLevel  string
	MetricsAddr string
}

// runCmd executes the simulation using parameters from CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a scheduling simulation",
	Run: func(cmd *cobra.Command, args []string) {
		if !sim.IsValidPolicy(schedPolicy) {
			logrus.Fatalf("Unknown scheduling policy %q. Valid: %s", schedPolicy, sim.ValidPolicyNames())
		}
		opts := runOptions{
			Policy:      schedPolicy,
			CPUs:        numCPUs,
			IOs:         numIOs,
			ConfigPath:  configPath,
			Viz:         vizMode,
			Format:      outFormat,
			TraceLevel:  traceLevel,
			MetricsAddr: metricsAddr,
		}
		if cmd.Flags().Changed("seed") {
			opts.Seed = &seed
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		startTime := time.Now()
		if _, err := executeRun(ctx, opts, os.Stdout); err != nil {
			var runErr *sim.RunError
			if errors.As(err, &runErr) {
				logrus.Fatalf("Simulation failed at tick %d: %v", runErr.Clock, runErr.Err)
			}
			logrus.Fatalf("Simulation failed: %v", err)
		}
		logrus.Infof("Simulation complete in %v.", time.Since(startTime))
	},
}

// executeRun wires source, policy and observers together, runs one session and
// writes the report to out.
func executeRun(ctx context.Context, opts runOptions, out io.Writer) (*sim.Result, error) {
	if !trace.IsValidTraceLevel(opts.TraceLevel) {
		return nil, fmt.Errorf("unknown trace level %q; valid: none, decisions", opts.TraceLevel)
	}
	if opts.Format != "table" && opts.Format != "json" {
		return nil, fmt.Errorf("unknown output format %q; valid: table, json", opts.Format)
	}

	rc, err := LoadRunConfig(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	src, err := rc.NewSource()
	if err != nil {
		return nil, err
	}

	initTimeout := rc.FetchTimeout
	if initTimeout <= 0 {
		initTimeout = sim.DefaultFetchTimeout
	}
	initCtx, cancel := context.WithTimeout(ctx, initTimeout)
	session, err := src.InitSession(initCtx, opts.Seed)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("initializing session: %w", err)
	}
	if closer, ok := src.(interface{ CloseSession(string) }); ok {
		defer closer.CloseSession(session.ID)
	}
	logrus.Infof("Session %s opened (start clock %d, time slice %d)", session.ID, session.StartClock, session.TimeSlice)

	cfg := rc.SimConfig(opts.Policy, opts.CPUs, opts.IOs, session)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	var observers sim.MultiVisualizer
	switch opts.Viz {
	case "", "none":
	case "table":
		observers = append(observers, visual.NewTable(out, false))
	case "live":
		observers = append(observers, visual.NewTable(out, true))
	default:
		return nil, fmt.Errorf("unknown visualization %q; valid: none, table, live", opts.Viz)
	}
	if opts.MetricsAddr != "" {
		prom := visual.NewPrometheus()
		observers = append(observers, prom)
		srv := &http.Server{Addr: opts.MetricsAddr, Handler: metricsMux(prom)}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logrus.Warnf("Metrics endpoint stopped: %v", err)
			}
		}()
		defer func() { _ = srv.Close() }()
		logrus.Infof("Serving Prometheus metrics on %s/metrics", opts.MetricsAddr)
	}

	simOpts := []sim.Option{}
	var async *visual.Async
	if len(observers) > 0 {
		async = visual.NewAsync(observers, visual.DefaultBuffer)
		simOpts = append(simOpts, sim.WithVisualizer(async))
	}
	var st *trace.SimulationTrace
	if trace.TraceLevel(opts.TraceLevel) == trace.TraceLevelDecisions {
		st = trace.NewSimulationTrace(trace.TraceConfig{Level: trace.TraceLevelDecisions})
		simOpts = append(simOpts, sim.WithTrace(st))
	}

	s, err := sim.NewSimulator(cfg, src, simOpts...)
	if err != nil {
		return nil, err
	}
	res, err := s.Run(ctx, session.ID, session.StartClock)
	if async != nil {
		async.Close()
		if n := async.Dropped(); n > 0 {
			logrus.Warnf("Visualizer dropped %d snapshots", n)
		}
	}
	if err != nil {
		return nil, err
	}

	if err := writeReport(out, opts.Format, s.Policy.Name(), res); err != nil {
		return nil, err
	}
	return res, nil
}

func metricsMux(p *visual.Prometheus) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", p.Handler())
	return mux
}

func writeReport(out io.Writer, format, policy string, res *sim.Result) error {
	if format == "json" {
		data, err := res.Metrics.JSON(policy)
		if err != nil {
			return fmt.Errorf("encoding metrics: %w", err)
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}
	res.Metrics.Print(out, policy)
	if res.Trace.Enabled() {
		printTraceSummary(out, trace.Summarize(res.Trace))
	}
	return nil
}

func printTraceSummary(out io.Writer, ts *trace.TraceSummary) {
	fmt.Fprintln(out, "=== Decision Trace Summary ===")
	fmt.Fprintf(out, "Arrivals: %d, CPU dispatches: %d, IO dispatches: %d\n", ts.TotalArrivals, ts.CPUDispatches, ts.IODispatches)
	fmt.Fprintf(out, "Preemptions: %d, Stalls: %d, Completions: %d\n", ts.Preemptions, ts.Stalls, ts.Completions)
	fmt.Fprintf(out, "Turnaround mean %.2f, max %d; waiting mean %.2f\n", ts.MeanTurnaround, ts.MaxTurnaround, ts.MeanWaiting)
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")

	runCmd.Flags().StringVar(&schedPolicy, "sched", "", "Scheduling policy ("+sim.ValidPolicyNames()+")")
	runCmd.Flags().IntVar(&numCPUs, "cpus", 0, "Number of CPUs")
	runCmd.Flags().IntVar(&numIOs, "ios", 0, "Number of IO devices")
	runCmd.Flags().StringVar(&configPath, "config", "", "Run configuration file (YAML or JSON)")
	runCmd.Flags().Int64Var(&seed, "seed", 0, "Session seed for reproducible arrivals and bursts")
	runCmd.Flags().StringVar(&vizMode, "viz", "none", "Per-tick visualization (none, table, live)")
	runCmd.Flags().StringVar(&outFormat, "format", "table", "Report format (table, json)")
	runCmd.Flags().StringVar(&traceLevel, "trace", "none", "Decision trace level (none, decisions)")
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	for _, name := range []string{"sched", "cpus", "ios", "config"} {
		_ = runCmd.MarkFlagRequired(name)
	}

	// Attach `run` as a subcommand to `root`
	rootCmd.AddCommand(runCmd)
}
