package main

import (
	"fmt"
	"os"

	"signal-trade-bot-go/internal/config"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var version = "dev"

type options struct {
	configFile string
	envFile    string
	dryRun     bool
	demo       bool
	once       bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "trader",
		Short:         "Signal-driven futures trading bot with risk gating",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBot(cmd.Context(), opts)
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "Configuration file path (default ./configs/config.yml)")
	rootCmd.PersistentFlags().StringVar(&opts.envFile, "env", ".env", "Environment file with secrets")
	rootCmd.PersistentFlags().BoolVar(&opts.dryRun, "dry-run", false, "Analyze and validate but never place orders")
	rootCmd.PersistentFlags().BoolVar(&opts.demo, "demo", false, "Use public market data with a paper balance (implies --dry-run)")
	rootCmd.PersistentFlags().BoolVar(&opts.once, "once", false, "Run one analysis per symbol and one monitor cycle, then exit")

	rootCmd.AddCommand(newRunCmd(opts))
	rootCmd.AddCommand(newExportCmd(opts))
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

func newRunCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the trading loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBot(cmd.Context(), opts)
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "trader %s\n", version)
		},
	}
}

// loadConfig reads the env file, if any, then the YAML config, and applies the
// command line switches on top.
func loadConfig(opts *options) (config.Config, error) {
	if opts.envFile != "" {
		if _, err := os.Stat(opts.envFile); err == nil {
			if err := godotenv.Load(opts.envFile); err != nil {
				return config.Config{}, fmt.Errorf("failed to load %s: %w", opts.envFile, err)
			}
		}
	}

	cfg, err := config.LoadConfig("./configs", opts.configFile)
	if err != nil {
		return cfg, fmt.Errorf("could not load config: %w", err)
	}
	if opts.dryRun {
		cfg.Trading.DryRun = true
	}
	if opts.demo {
		cfg.Trading.Demo = true
	}
	if cfg.Trading.Demo {
		cfg.Trading.DryRun = true
	}
	return cfg, nil
}
