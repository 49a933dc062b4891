// Package commands implements the sescli command line.
package commands

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"sescli/internal/config"
	"sescli/internal/infrastructure"
)

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	configFile string
	logLevel   string
}

// NewRootCmd builds the sescli command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   config.AppName,
		Short: "sescli - machine-scoped software entitlements",
		Long: `sescli generates software entitlement grants for virtual machines and
serves entitlement checks over mutually authenticated TLS.

Configuration is read from sescli.yaml (or --config), then SES_* environment
variables, then command line flags, each overriding the previous source.

Use "sescli [command] --help" for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (default: ./"+config.DefaultConfigFile+" when present)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(
		newGenerateCmd(opts),
		newServerCmd(opts),
		newListCertificatesCmd(opts),
		newFindCertificateCmd(opts),
		newVersionCmd(),
	)
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	return rootCmd
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	cmd := NewRootCmd()
	err := cmd.Execute()
	if err != nil && !errors.Is(err, errReported) {
		cmd.PrintErrln("Error:", err)
	}
	defer func() { _ = infrastructure.CloseLogFile() }()
	return ExitCode(err)
}

// load reads the configuration and builds the logger for cmd.
func (o *rootOptions) load(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return nil, nil, configError(err)
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
		if err := cfg.Validate(); err != nil {
			return nil, nil, configError(fmt.Errorf("--log-level: %w", err))
		}
	}

	// Console logs follow the command's stderr so they never mix with
	// generated output.
	if cfg.Logging.Output == "console" {
		logger := infrastructure.NewLogger(cmd.ErrOrStderr(), cfg.Logging.Level)
		slog.SetDefault(logger)
		return cfg, logger, nil
	}
	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, nil, configError(err)
	}
	return cfg, logger, nil
}

func stringFlag(cmd *cobra.Command, name string, dst *string) {
	if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
		*dst = f.Value.String()
	}
}
