package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"donateo/internal/infra/broker/kafka"
	"donateo/internal/infra/config"
	ginserver "donateo/internal/infra/http/gin"
	"donateo/internal/infra/obs"
	infraoutbox "donateo/internal/infra/outbox"
)

type serveFlags struct {
	itemFixtures string
	embedRelay   bool
}

func NewServeCommand() *cobra.Command {
	f := &serveFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the chat HTTP API and consume request approvals",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), f)
		},
	}
	cmd.Flags().StringVar(&f.itemFixtures, "item-fixtures", os.Getenv("ITEMS_FIXTURES"), "JSON file of items to seed the in-memory catalog with")
	cmd.Flags().BoolVar(&f.embedRelay, "relay", true, "Run the outbox relay inside the server process")
	return cmd
}

func runServe(parent context.Context, f *serveFlags) error {
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
	if err := app.loadItemFixtures(f.itemFixtures); err != nil {
		logger.Warn("item fixtures load failed", "error", err, "path", f.itemFixtures)
	}

	units, err := app.backgroundUnits(f.embedRelay)
	if err != nil {
		return err
	}
	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger, Metrics: app.metrics}, obs.HealthHandlers{Probes: app.probes}, app.handlers)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP server starting", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if consumer := units.consumer; consumer != nil {
		topic := cfg.Topic(kafka.ApprovalsTopic)
		g.Go(func() error {
			defer consumer.Close()
			logger.Info("approvals consumer starting", "topic", topic, "group", cfg.KafkaGroupID)
			return ignoreCanceled(consumer.Run(gctx, []string{topic}))
		})
	}
	if worker := units.worker; worker != nil {
		g.Go(func() error {
			logger.Info("outbox relay starting", "interval", cfg.OutboxPollInterval)
			return ignoreCanceled(worker.Run(gctx))
		})
	}

	err = g.Wait()
	logger.Info("HTTP server stopped")
	return err
}

// serveUnits holds the workers serve runs next to the HTTP server.
type serveUnits struct {
	consumer *kafka.Consumer
	worker   *infraoutbox.Worker
}

// backgroundUnits builds every background worker up front so a broker failure
// aborts serve before any goroutine has started.
func (a *application) backgroundUnits(embedRelay bool) (serveUnits, error) {
	consumer, err := a.approvalsConsumer()
	if err != nil {
		return serveUnits{}, fmt.Errorf("approvals consumer: %w", err)
	}
	units := serveUnits{consumer: consumer}
	if embedRelay {
		units.worker = a.outboxWorker()
	}
	return units, nil
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
