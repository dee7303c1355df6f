package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"idstatus/internal/platform/config"
	"idstatus/internal/platform/logger"
)

// rootOptions holds global flags for all commands.
type rootOptions struct {
	configPath string
	logLevel   string

	cfg    config.Config
	logger *slog.Logger
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "idstatus",
		Short:         "Identity verification status reconciliation",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			if opts.logLevel != "" {
				cfg.LogLevel = opts.logLevel
			}
			opts.cfg = cfg
			opts.logger = logger.New(cfg.LogLevel)
			slog.SetDefault(opts.logger)
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to a YAML config file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override the configured log level")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newConsumeCommand(opts))
	cmd.AddCommand(newMigrateCommand(opts))
	return cmd
}
