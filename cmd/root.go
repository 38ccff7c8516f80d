/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tutorhub/apiserver/config"
	"github.com/tutorhub/apiserver/internal/logging"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tutorhub",
	Short: "Tutor marketplace booking and rating backend",
	Long: `tutorhub runs the marketplace API, its event worker and maintenance
tasks such as migrations and snapshot exports.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// loadRuntime reads configuration and installs the process logger.
func loadRuntime() (config.Config, *slog.Logger) {
	cfg := config.LoadConfig()
	logger := logging.New(os.Stderr, cfg.Log)
	slog.SetDefault(logger)
	return cfg, logger
}
