/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/tutorhub/apiserver/config"
	"github.com/tutorhub/apiserver/internal/server"
	"github.com/tutorhub/apiserver/internal/snapshot"
	"github.com/tutorhub/apiserver/internal/storage"
)

var snapshotKeep int

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Export or prune JSON snapshots in object storage",
}

var snapshotExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write every collection to the snapshot bucket",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger := loadRuntime()
		exporter, cleanup, err := newExporter(cmd, cfg, logger)
		if err != nil {
			return err
		}
		defer cleanup()

		manifest, err := exporter.Export(cmd.Context())
		if err != nil {
			return err
		}
		cmd.Printf("exported %s\n", manifest.Prefix)
		return nil
	},
}

var snapshotPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete all but the newest snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger := loadRuntime()
		exporter, cleanup, err := newExporter(cmd, cfg, logger)
		if err != nil {
			return err
		}
		defer cleanup()

		removed, err := exporter.Prune(cmd.Context(), snapshotKeep)
		if err != nil {
			return err
		}
		cmd.Printf("removed %d snapshot(s)\n", len(removed))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(snapshotCmd)
	snapshotPruneCmd.Flags().IntVar(&snapshotKeep, "keep", 7, "number of snapshots to keep")
	snapshotCmd.AddCommand(snapshotExportCmd, snapshotPruneCmd)
}

func newExporter(cmd *cobra.Command, cfg config.Config, logger *slog.Logger) (*snapshot.Exporter, func(), error) {
	bucket, err := storage.NewFromConfig(cmd.Context(), cfg.Storage)
	if err != nil {
		return nil, nil, err
	}
	repos, closer, err := server.OpenRepositories(cmd.Context(), cfg)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if closer != nil {
			_ = closer.Close()
		}
		if c, ok := bucket.(io.Closer); ok {
			_ = c.Close()
		}
	}
	return snapshot.NewExporter(bucket, repos.Users, repos.Profiles, repos.Sessions, repos.Reviews, logger), cleanup, nil
}
