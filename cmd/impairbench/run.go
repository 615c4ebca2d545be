package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"impairbench/internal/artifact"
	"impairbench/internal/config"
	"impairbench/internal/logging"
	"impairbench/internal/run"
)

var (
	runConfigPath string
	runSchemaPath string
	runIface      string
	runClients    int
	runDuration   int
	runOutputDir  string
	runScenarios  []string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scenario catalog against the configured server and clients",
	Long: "run executes every selected scenario sequentially: apply the netem rule,\n" +
		"start capture and server, run the clients, merge their CSVs, clear the rule.\n" +
		"The exit code is zero whenever the catalog completed, even with degraded\n" +
		"scenarios; only pre-flight failures are fatal.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(runConfigPath, runSchemaPath)
		if err != nil {
			return err
		}
		applyFlagOverrides(cmd, cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}

		log := logging.New(verbose)
		ctx := logging.NewContext(cmd.Context(), log)
		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()

		report, err := run.New(cfg).Run(ctx)
		if err != nil {
			return err
		}

		styled := term.IsTerminal(int(os.Stdout.Fd()))
		fmt.Print(artifact.Render(report.Scenarios, styled))
		fmt.Printf("summary: %s\n", artifact.Layout{Root: cfg.OutputDir}.SummaryFile())
		return nil
	},
}

// applyFlagOverrides lets explicit CLI flags win over the YAML config.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.RunConfig) {
	if cmd.Flags().Changed("iface") {
		cfg.Interface = runIface
	}
	if cmd.Flags().Changed("clients") {
		cfg.NumClients = runClients
	}
	if cmd.Flags().Changed("duration") {
		cfg.DurationSeconds = runDuration
	}
	if cmd.Flags().Changed("out") {
		cfg.OutputDir = runOutputDir
	}
	if cmd.Flags().Changed("scenario") {
		cfg.Scenarios = runScenarios
	}
}

func init() {
	runCmd.Flags().StringVar(&runConfigPath, "config", "config/harness.yaml", "Path to harness configuration YAML")
	runCmd.Flags().StringVar(&runSchemaPath, "schema", "schemas/harness.cue", "Path to CUE schema file")
	runCmd.Flags().StringVar(&runIface, "iface", "", "Network interface to impair (overrides config)")
	runCmd.Flags().IntVar(&runClients, "clients", 0, "Number of clients per scenario (overrides config)")
	runCmd.Flags().IntVar(&runDuration, "duration", 0, "Client duration in seconds (overrides config)")
	runCmd.Flags().StringVar(&runOutputDir, "out", "", "Artifact root directory (overrides config)")
	runCmd.Flags().StringSliceVar(&runScenarios, "scenario", nil, "Scenario selection, repeatable (overrides config)")
}
