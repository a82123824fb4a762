// Package cmd provides the CLI commands for varannot.
package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/varannot/internal/logging"
	"github.com/Aman-CERP/varannot/pkg/version"
)

var (
	logLevel       string
	logFile        string
	logger         *slog.Logger
	loggingCleanup func()
)

// NewRootCmd creates the root command for the varannot CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "varannot",
		Short: "Concurrent genomic variant annotation pipeline",
		Long: `varannot annotates variant files through a parallel pipeline:
a core annotation calculator, user-supplied custom side files indexed into
durable embedded stores, and population frequency data with a completeness
reconciliation pass.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.SetVersionTemplate("varannot version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Minimum log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Also write JSON logs to this file")

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		var err error
		logger, loggingCleanup, err = logging.Setup(logging.Config{Level: logLevel, FilePath: logFile})
		if err != nil {
			return err
		}
		slog.SetDefault(logger)
		return nil
	}
	cmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		if loggingCleanup != nil {
			loggingCleanup()
		}
	}

	cmd.AddCommand(newAnnotateCmd())
	cmd.AddCommand(newBenchmarkCmd())
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// Execute runs the root command. An interrupt cancels the run context so
// in-flight stages stop and cleanup still executes.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}
