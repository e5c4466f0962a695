// Command tidycsv cleans CSV and TXT files from the command line by replaying
// recipes saved from the web workspace.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/JonMunkholm/tidycsv/internal/core/tasks" // Register all tasks
	"github.com/JonMunkholm/tidycsv/internal/logging"
	"github.com/spf13/cobra"
)

var (
	// Flags
	logLevel  string
	logFormat string
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "tidycsv",
		Short:         "Clean oceanographic, meteorological and chemistry CSV files",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			slog.SetDefault(logging.New(cmd.ErrOrStderr(), logLevel, logFormat))
		},
	}
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level: debug, info, warn or error")
	cmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format: text or json")

	cmd.AddCommand(newTasksCmd(), newRunCmd(), newMetadataCmd())
	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
