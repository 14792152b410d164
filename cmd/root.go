package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	sim "github.com/dtnsim/dtnsim/sim"
	_ "github.com/dtnsim/dtnsim/sim/decision" // registers the decision engines
	"github.com/dtnsim/dtnsim/sim/movement"
	"github.com/dtnsim/dtnsim/sim/observe"
	"github.com/dtnsim/dtnsim/sim/trace"
	"github.com/dtnsim/dtnsim/sim/workload"
)

var (
	configPath  string  // Scenario file (YAML or TOML)
	seed        int64   // Overrides the scenario seed
	duration    float64 // Overrides the scenario duration (seconds)
	routerName  string  // Overrides the scenario router
	logLevel    string  // Log verbosity level
	eventsOut   string  // msgpack event feed output path
	mqttBroker  string  // MQTT broker URL for the live feed
	mqttTopic   string  // MQTT topic prefix
	metricsAddr string  // Address to serve Prometheus metrics on during the run
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "dtnsim",
	Short: "Discrete-event simulator for delay-tolerant networks",
}

// runCmd executes one scenario
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a DTN scenario",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()
		sc, err := loadScenario(cmd)
		if err != nil {
			logrus.Fatalf("Invalid scenario: %v", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		startTime := time.Now()
		summary, err := runScenario(ctx, sc, runOptions{
			RunID:       uuid.NewString(),
			EventsOut:   eventsOut,
			MQTTBroker:  mqttBroker,
			MQTTTopic:   mqttTopic,
			MetricsAddr: metricsAddr,
		})
		if err != nil {
			logrus.Fatalf("Simulation failed: %v", err)
		}
		logrus.Infof("Simulation complete in %s.", time.Since(startTime).Round(time.Millisecond))
		if err := printSummary(os.Stdout, sc, summary); err != nil {
			logrus.Fatalf("Writing summary: %v", err)
		}
	},
}

// validateCmd checks a scenario without running it
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a scenario file",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()
		sc, err := loadScenario(cmd)
		if err != nil {
			logrus.Fatalf("Invalid scenario: %v", err)
		}
		if _, err := workload.LoadEvents(sc); err != nil {
			logrus.Fatalf("Invalid events file: %v", err)
		}
		fmt.Printf("%s: %d nodes, router %s, %.0fs\n", sc.Name, sc.NodeCount(), sc.Router, sc.Duration)
	},
}

func setLogLevel() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

// loadScenario reads --config and applies the flags the user set explicitly.
func loadScenario(cmd *cobra.Command) (*sim.Scenario, error) {
	if configPath == "" {
		return nil, fmt.Errorf("%w: --config is required", sim.ErrInvalidConfig)
	}
	sc, err := sim.LoadScenario(configPath)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("seed") {
		sc.Seed = seed
	}
	if cmd.Flags().Changed("duration") {
		sc.Duration = duration
	}
	if cmd.Flags().Changed("router") {
		sc.Router = sim.RouterKind(routerName)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return sc, nil
}

// runOptions selects the outward feeds of one run.
type runOptions struct {
	RunID       string
	EventsOut   string
	MQTTBroker  string
	MQTTTopic   string
	MetricsAddr string
}

// runScenario wires movement, workload and feeds around a simulator and runs
// it to the horizon.
func runScenario(ctx context.Context, sc *sim.Scenario, opts runOptions) (*trace.Summary, error) {
	recorder := trace.NewRecorder()
	sinks := []sim.Sink{recorder}
	var closers []func() error

	if opts.EventsOut != "" {
		f, err := os.Create(opts.EventsOut)
		if err != nil {
			return nil, fmt.Errorf("creating events output: %w", err)
		}
		w := trace.NewWriter(f)
		sinks = append(sinks, w)
		closers = append(closers, func() error {
			if err := w.Close(); err != nil {
				f.Close()
				return err
			}
			logrus.Infof("Wrote %d records to %s", w.Count(), opts.EventsOut)
			return f.Close()
		})
	}
	if opts.MQTTBroker != "" {
		p, err := observe.DialMQTT(observe.MQTTConfig{Broker: opts.MQTTBroker, TopicPrefix: opts.MQTTTopic, RunID: opts.RunID})
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, p)
		closers = append(closers, p.Close)
	}
	if opts.MetricsAddr != "" {
		collector, err := observe.NewCollector(prometheus.NewRegistry())
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, collector)
		srv := serveMetrics(opts.MetricsAddr, collector)
		closers = append(closers, func() error {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err := simulate(ctx, sc, sinks)
	for _, c := range closers {
		if cerr := c(); cerr != nil && err == nil {
			err = cerr
		}
	}
	if err != nil {
		return nil, err
	}
	return trace.Summarize(recorder.Records), nil
}

func simulate(ctx context.Context, sc *sim.Scenario, sinks []sim.Sink) error {
	placement := sim.NewPartitionedRNG(sim.NewSimulationKey(sc.Seed)).ForSubsystem(sim.SubsystemMovement)
	s, err := sim.NewSimulator(sc, movement.FromScenario(sc, placement), sinks...)
	if err != nil {
		return err
	}
	messages, err := workload.Generate(sc, s.RNG().ForSubsystem(sim.SubsystemWorkload))
	if err != nil {
		return err
	}
	if err := s.ScheduleAll(messages); err != nil {
		return err
	}
	external, err := workload.LoadEvents(sc)
	if err != nil {
		return err
	}
	if err := s.ScheduleAll(external); err != nil {
		return err
	}
	if len(external) > 0 {
		logrus.Infof("Loaded %d external events from %s", len(external), sc.EventsFile)
	}
	return s.Run(ctx)
}

func serveMetrics(addr string, collector *observe.Collector) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Warnf("metrics server exited: %v", err)
		}
	}()
	logrus.Infof("Serving Prometheus metrics on %s", addr)
	return srv
}

// runReport is the YAML document printed at the end of a run.
type runReport struct {
	Scenario string         `yaml:"scenario"`
	Router   sim.RouterKind `yaml:"router"`
	Seed     int64          `yaml:"seed"`
	Duration float64        `yaml:"duration"`
	Summary  *trace.Summary `yaml:"summary"`
}

func printSummary(w io.Writer, sc *sim.Scenario, summary *trace.Summary) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(runReport{Scenario: sc.Name, Router: sc.Router, Seed: sc.Seed, Duration: sc.Duration, Summary: summary}); err != nil {
		return err
	}
	return enc.Close()
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	for _, c := range []*cobra.Command{runCmd, validateCmd} {
		c.Flags().StringVar(&configPath, "config", "", "Scenario file (.yaml or .toml)")
		c.Flags().Int64Var(&seed, "seed", 42, "Override the scenario seed")
		c.Flags().Float64Var(&duration, "duration", 0, "Override the scenario duration (seconds)")
		c.Flags().StringVar(&routerName, "router", "", "Override the scenario router")
		c.Flags().StringVar(&logLevel, "log", "error", "Log level (trace, debug, info, warn, error, fatal, panic)")
	}

	runCmd.Flags().StringVar(&eventsOut, "events-out", "", "Write the msgpack event feed to this file")
	runCmd.Flags().StringVar(&mqttBroker, "mqtt-broker", "", "Publish the event feed to this MQTT broker (e.g. tcp://localhost:1883)")
	runCmd.Flags().StringVar(&mqttTopic, "mqtt-topic", observe.DefaultTopicPrefix, "MQTT topic prefix")
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address during the run")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
}
