// scenario - operator tool for inspecting scenarios and replaying exported runs
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/scenario-simulator/internal/app"
	"github.com/scenario-simulator/internal/config"
	"github.com/scenario-simulator/internal/logging"
	"github.com/spf13/cobra"
)

var (
	definitionPath string
	sqlitePath     string
	verbose        bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "scenario",
		Short: "Inspect scenarios and replay exported simulations",
		Long: `scenario builds the trading timeline of a historical scenario from the
configured store and works with history documents exported by the simulator.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&definitionPath, "definition", "d", "", "Scenario definition YAML (defaults to SCENARIO_DEFINITION_PATH)")
	rootCmd.PersistentFlags().StringVar(&sqlitePath, "sqlite", "", "SQLite scenario database (defaults to SCENARIO_SQLITE_PATH)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(timelineCmd())
	rootCmd.AddCommand(replayCmd())
	rootCmd.AddCommand(chartCmd())
	rootCmd.AddCommand(runsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadApp builds the scenario timeline without starting the run archive
func loadApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	if definitionPath != "" {
		cfg.Scenario.DefinitionPath = definitionPath
	}
	if sqlitePath != "" {
		cfg.Scenario.Source = config.SourceSQLite
		cfg.Scenario.SQLitePath = sqlitePath
	}

	level := logging.LevelWarn
	if verbose {
		level = logging.LevelDebug
	}
	logger := logging.InitGlobalLogger(level, logging.FormatText)

	return app.New(ctx, cfg, app.Options{SkipArchive: true}, logger)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
