package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inference-sim/sir-sim/sim"
	"github.com/inference-sim/sir-sim/sim/batch"
)

var (
	// CLI flags for the simulation config
	seed              int64   // Base seed; run k uses seed + k
	numRuns           int     // Independent runs in the batch
	numAgents         int     // Population size
	numSteps          int     // Steps per run, step 0 included
	numContacts       int     // Recorded contact hint
	infectionProb     float64 // Per-contact transmission probability
	infectionDuration float64 // Advisory infection duration
	recoveryProb      float64 // Per-step recovery probability
	groupSizeMean     float64 // Mean of the exponential group-size draw
	minGroupSize      int     // Lower clamp on group size
	maxGroupSize      int     // Upper clamp on group size

	// CLI flags for execution and outputs
	configPath  string // YAML file with a `simulation:` section
	parallelism int    // Runs executing at once
	logLevel    string // Log verbosity level
	outputDir   string // Directory for the agent-state and infection CSV logs
	countsDir   string // Directory for per-run S/I/R count CSVs
	sqlitePath  string // SQLite database for logs, parameters and peaks
	postgresURL string // Postgres DSN for logs, parameters and peaks
	usePostgres bool   // Persist to the Postgres DSN in $DATABASE_URL
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "sir-sim",
	Short: "Agent-based SIR epidemic simulator",
}

// runCmd executes a batch using the config file and CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a batch of SIR simulations",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel(logLevel)

		cfg, err := resolveSimConfig(cmd.Flags(), configPath)
		if err != nil {
			logrus.Fatalf("Invalid simulation config: %v", err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		mp, reader := newMeterProvider()
		opts := []batch.Option{batch.WithParallelism(parallelism)}
		if mp != nil {
			opts = append(opts, batch.WithMeterProvider(mp))
		}

		logrus.Infof("Starting %d run(s) of %d agents over %d steps, seed=%d, infection_prob=%v, recovery_prob=%v",
			cfg.NumRuns, cfg.NumAgents, cfg.NumSteps, cfg.Seed, cfg.InfectionProb, cfg.RecoveryProb)

		dsn := postgresURL
		if dsn == "" && usePostgres {
			dsn = os.Getenv("DATABASE_URL")
			if dsn == "" {
				logrus.Fatalf("--postgres requires DATABASE_URL to be set")
			}
		}

		res, err := runBatch(ctx, cfg, outputConfig{
			Dir:         outputDir,
			CountsDir:   countsDir,
			SQLitePath:  sqlitePath,
			PostgresURL: dsn,
		}, opts...)
		if err != nil {
			logrus.Fatalf("Simulation failed: %v", err)
		}
		reportMetrics(ctx, reader)
		if mp != nil {
			_ = mp.Shutdown(context.Background())
		}

		if err := printSummary(os.Stdout, res.SimulationID.String(), res.Summaries); err != nil {
			logrus.Fatalf("Failed to print summary: %v", err)
		}
		logrus.Info("Simulation complete.")
	},
}

// setLogLevel applies the --log flag.
func setLogLevel(level string) {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", level)
	}
	logrus.SetLevel(parsed)
}

// Execute runs the CLI root command
func Execute() {
	// .env is optional; real environment variables take precedence.
	_ = godotenv.Load()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	defaults := sim.DefaultSimConfig()

	runCmd.Flags().StringVar(&configPath, "config", "", "Path to a YAML config with a `simulation:` section; flags override its values")
	runCmd.Flags().Int64Var(&seed, "seed", defaults.Seed, "Base seed; run k is seeded with seed + k")
	runCmd.Flags().StringVar(&logLevel, "log", "error", "Log level (trace, debug, info, warn, error, fatal, panic)")

	// Population and horizon
	runCmd.Flags().IntVar(&numRuns, "runs", defaults.NumRuns, "Number of independent runs")
	runCmd.Flags().IntVar(&numAgents, "agents", defaults.NumAgents, "Number of agents per run")
	runCmd.Flags().IntVar(&numSteps, "steps", defaults.NumSteps, "Number of steps per run, including step 0")
	runCmd.Flags().IntVar(&numContacts, "contacts", defaults.NumContacts, "Contacts per agent per step (recorded only)")

	// Disease parameters
	runCmd.Flags().Float64Var(&infectionProb, "infection-prob", defaults.InfectionProb, "Per-contact transmission probability per step")
	runCmd.Flags().Float64Var(&infectionDuration, "infection-duration", defaults.InfectionDuration, "Expected infection duration (advisory)")
	runCmd.Flags().Float64Var(&recoveryProb, "recovery-prob", defaults.RecoveryProb, "Per-step recovery probability")

	// Contact groups
	runCmd.Flags().Float64Var(&groupSizeMean, "group-size-mean", defaults.GroupSizeMean, "Mean contact-group size")
	runCmd.Flags().IntVar(&minGroupSize, "min-group-size", defaults.MinGroupSize, "Minimum contact-group size")
	runCmd.Flags().IntVar(&maxGroupSize, "max-group-size", defaults.MaxGroupSize, "Maximum contact-group size")

	// Execution and outputs
	runCmd.Flags().IntVar(&parallelism, "parallelism", 0, "Runs executing at once (0 = GOMAXPROCS)")
	runCmd.Flags().StringVar(&outputDir, "output-dir", "", "Write agent_states.csv and infection_events.csv to this directory")
	runCmd.Flags().StringVar(&countsDir, "counts-dir", "", "Write run_<k>.csv S/I/R counts to this directory")
	runCmd.Flags().StringVar(&sqlitePath, "sqlite", "", "Persist logs, parameters and peaks to this SQLite database")
	runCmd.Flags().StringVar(&postgresURL, "postgres-url", "", "Persist logs, parameters and peaks to the Postgres database at this DSN")
	runCmd.Flags().BoolVar(&usePostgres, "postgres", false, "Persist logs, parameters and peaks to the Postgres database at $DATABASE_URL")

	rootCmd.AddCommand(runCmd)
}
