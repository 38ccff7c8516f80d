/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tutorhub/apiserver/internal/events"
	"github.com/tutorhub/apiserver/internal/mq"
	"github.com/tutorhub/apiserver/internal/server"
	"github.com/tutorhub/apiserver/internal/services"
)

// workerCmd represents the worker command
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consumes review events and repairs tutor ratings",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger := loadRuntime()
		ctx := cmd.Context()
		if cfg.MQ.Backend == mq.BackendMemory {
			return errors.New("the memory broker is consumed inside the server process; use rabbitmq or pubsub for a standalone worker")
		}

		broker, err := mq.NewFromConfig(ctx, cfg.MQ)
		if err != nil {
			return err
		}
		if broker == nil {
			return errors.New("MQ_BACKEND must be rabbitmq or pubsub to run the worker")
		}
		defer broker.Close()

		repos, closer, err := server.OpenRepositories(ctx, cfg)
		if err != nil {
			return err
		}
		if closer != nil {
			defer closer.Close()
		}

		reviewService := services.NewReviewService(repos.Reviews, repos.Sessions, repos.Profiles, repos.Users, nil, logger)
		if err := events.NewWorker(broker, reviewService, logger).Run(ctx); err != nil {
			return fmt.Errorf("worker stopped: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
