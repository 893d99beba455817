package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"donateo/internal/infra/config"
	"donateo/internal/infra/obs"
)

func NewRelayCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "relay",
		Short: "Publish stored chat events to Kafka",
		Long:  "Relay polls the Mongo outbox and publishes chat domain events as CloudEvents. It needs MONGO_URI and KAFKA_BROKERS.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRelay(cmd.Context())
		},
	}
}

func runRelay(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := obs.NewLogger(cfg.Env)
	app, err := buildApplication(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close(context.Background())

	worker := app.outboxWorker()
	if worker == nil {
		return errors.New("relay requires MONGO_URI and KAFKA_BROKERS")
	}
	logger.Info("outbox relay starting", "interval", cfg.OutboxPollInterval, "prefix", cfg.KafkaTopicPrefix)
	return ignoreCanceled(worker.Run(ctx))
}
