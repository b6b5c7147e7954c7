package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pasket/internal/accessor"
	"pasket/internal/config"
	"pasket/internal/logging"
)

var (
	// Global flags
	configPath string
	verbose    bool
	modeFlag   string

	// Loaded in PersistentPreRunE
	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "pasket",
	Short: "pasket - accessor synthesis for Java framework models",
	Long: `pasket rewrites Java framework templates into programs whose accessor
methods (constructors, getters and setters) are left open for a solver.

The encoder adds an auxiliary class that dispatches every candidate method
through role variables; the solver picks a value for each role; the decoder
reads the solver's decision log back, materializes the chosen accessors as
plain field reads and writes, and removes the auxiliary scaffolding.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if modeFlag != "" {
			loaded.Mode = modeFlag
		}
		if verbose {
			loaded.Logging.DebugMode = true
		}
		if err := loaded.Validate(); err != nil {
			return fmt.Errorf("invalid config %s: %w", configPath, err)
		}
		if err := logging.Initialize(loaded.Logging.LoggerConfig()); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		cfg = loaded
		logging.BootDebug("config %s loaded, mode %s", configPath, cfg.Mode)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&modeFlag, "mode", "",
		fmt.Sprintf("Materialization mode (%s or %s)", accessor.AlwaysMaterialize, accessor.MaterializeIfInvoked))

	encodeCmd.Flags().StringVarP(&outPath, "out", "o", "", "Write the encoded program here instead of stdout")

	decodeCmd.Flags().StringVar(&logPath, "log", "", "Solver decision log (required)")
	decodeCmd.Flags().StringVarP(&outPath, "out", "o", "", "Write the decoded program here instead of stdout")
	decodeCmd.MarkFlagRequired("log")

	runCmd.Flags().StringVarP(&outPath, "out", "o", "", "Write the decoded program here instead of stdout")

	rolesCmd.Flags().StringVar(&logPath, "log", "", "Decision log to read roles from")
	rolesCmd.Flags().StringVar(&runID, "run", "", "Journaled run id to read roles from")

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs to show (0 for all)")

	watchCmd.Flags().BoolVar(&watchSolve, "solve", false, "Run the solver on every rebuild instead of only encoding")
	watchCmd.Flags().StringVarP(&outPath, "out", "o", "", "Write each rebuilt program here")

	rootCmd.AddCommand(encodeCmd)
	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(rolesCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
