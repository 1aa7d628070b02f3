package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "docuscan: %v\n", err)
		os.Exit(1)
	}
}

var verbose bool

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docuscan",
		Short: "Batch extraction of photographed business documents",
		Long: `docuscan ingests photographed business documents in batches, dispatches them
one by one to the remote extraction service under an explicit or auto-detected
template, and lets an operator review and persist the extracted records.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	cmd.AddCommand(
		newProcessCmd(),
		newTemplatesCmd(),
		newExportCmd(),
	)
	return cmd
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}
