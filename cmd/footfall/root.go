package main

import (
	"github.com/footfallfinder/footfall-analysis-service/internal/infra/config"
	"github.com/footfallfinder/footfall-analysis-service/pkg/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// cliContext is shared by subcommands once PersistentPreRunE has loaded it.
type cliContext struct {
	cfg *config.Config
	log *zap.Logger
}

// RootCommand builds the footfall CLI. Configuration comes from the
// environment; flags override the log level.
func RootCommand() *cobra.Command {
	rt := &cliContext{}
	var logLevel string

	rootCmd := &cobra.Command{
		Use:           "footfall",
		Short:         "FootfallFinder video analysis",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level override (debug, info, warn, error)")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}
		log, err := logger.New(cfg.LogLevel)
		if err != nil {
			return err
		}
		rt.cfg = cfg
		rt.log = log
		return nil
	}
	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		if rt.log != nil {
			_ = rt.log.Sync()
		}
	}

	rootCmd.AddCommand(serveCommand(rt), analyzeCommand(rt))
	return rootCmd
}
