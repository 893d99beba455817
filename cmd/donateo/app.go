package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/IBM/sarama"

	"donateo/internal/app/commands"
	chatapp "donateo/internal/app/handlers/chats"
	"donateo/internal/app/middleware"
	appoutbox "donateo/internal/app/outbox"
	"donateo/internal/app/policies"
	"donateo/internal/app/queries"
	"donateo/internal/domain/chatbot"
	domainchat "donateo/internal/domain/chat"
	domainitems "donateo/internal/domain/items"
	"donateo/internal/domain/moderation"
	"donateo/internal/infra/broker/kafka"
	rediscache "donateo/internal/infra/cache/redis"
	"donateo/internal/infra/config"
	mongodb "donateo/internal/infra/db/mongo"
	ginserver "donateo/internal/infra/http/gin"
	"donateo/internal/infra/inbox"
	"donateo/internal/infra/obs"
	infraoutbox "donateo/internal/infra/outbox"
	"donateo/internal/infra/storage/memory"
)

// application holds the wired engine and the resources serve and relay share.
type application struct {
	cfg      config.Config
	logger   *slog.Logger
	metrics  *obs.Metrics
	commands commands.Bus
	queries  queries.Bus
	handlers ginserver.Handlers
	probes   map[string]obs.Probe

	mongo       *mongodb.Client
	producer    *kafka.Producer
	outboxStore *infraoutbox.Store
	inbox       kafka.Inbox
	items       *memory.ItemCatalog

	closers []func(context.Context) error
}

func buildApplication(ctx context.Context, cfg config.Config, logger *slog.Logger) (*application, error) {
	app := &application{
		cfg:     cfg,
		logger:  logger,
		metrics: obs.NewMetrics(),
		probes:  map[string]obs.Probe{},
	}
	if err := app.connect(ctx); err != nil {
		app.Close(context.Background())
		return nil, err
	}

	var (
		chats  domainchat.Repository
		items  policies.ItemCatalog
		idem   middleware.IdempotencyStore
		box    appoutbox.Outbox
		limit  policies.RateLimiter
		notify policies.Notifier
	)
	if app.mongo != nil {
		repo, err := mongodb.NewChatRepository(ctx, app.mongo.DB)
		if err != nil {
			return nil, app.fail(err)
		}
		store, err := mongodb.NewIdempotencyStore(ctx, app.mongo.DB, cfg.IdempotencyTTL)
		if err != nil {
			return nil, app.fail(err)
		}
		outboxStore, err := infraoutbox.NewStore(ctx, app.mongo.DB)
		if err != nil {
			return nil, app.fail(err)
		}
		inboxStore, err := inbox.NewStore(ctx, app.mongo.DB, cfg.KafkaGroupID, cfg.IdempotencyTTL)
		if err != nil {
			return nil, app.fail(err)
		}
		chats, items, idem, box = repo, mongodb.NewItemCatalog(app.mongo.DB), store, outboxStore
		app.outboxStore, app.inbox = outboxStore, inboxStore
	} else {
		app.items = memory.NewItemCatalog()
		chats, items, idem, box = memory.NewChatRepository(), app.items, memory.NewIdempotencyStore(cfg.IdempotencyTTL), memory.NewOutbox(memory.DefaultOutboxLimit)
		app.inbox = memory.NewInbox()
		logger.Warn("MONGO_URI not set, chats are kept in memory")
	}

	if cfg.RedisAddr != "" {
		client, err := rediscache.NewClient(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, app.fail(fmt.Errorf("redis: %w", err))
		}
		app.closers = append(app.closers, func(context.Context) error { return client.Close() })
		app.probes["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		limit = rediscache.NewRateLimiter(client, "", cfg.RateLimitMax, cfg.RateLimitWindow)
	} else {
		limit = memory.NewRateLimiter(cfg.RateLimitMax, cfg.RateLimitWindow, nil)
	}

	switch cfg.NotifyBackend {
	case "kafka":
		if app.producer == nil {
			return nil, app.fail(errors.New("NOTIFY_BACKEND=kafka requires KAFKA_BROKERS"))
		}
		notify = kafka.Notifier{Producer: app.producer, Topic: cfg.Topic(kafka.NotificationsTopic)}
	case "mongo":
		if app.mongo == nil {
			return nil, app.fail(errors.New("NOTIFY_BACKEND=mongo requires MONGO_URI"))
		}
		notify = mongodb.NewNotificationStore(app.mongo.DB)
	default:
		notify = memory.NewNotifier(logger)
	}

	cmdBus := commands.NewInMemoryBus()
	queryBus := queries.NewInMemoryBus()
	chatapp.Register(cmdBus, queryBus, chatapp.Engine{
		Deps: chatapp.Deps{
			Chats:    chats,
			Locks:    chatapp.NewKeyedMutex(),
			Outbox:   box,
			Encoder:  appoutbox.JSONEventEncoder{},
			Notifier: notify,
			Metrics:  app.metrics,
			Logger:   logger,
		},
		Items:     items,
		Limiter:   limit,
		Moderator: moderation.NewFilter(),
		Bot:       chatbot.NewResponder(),
	})

	app.commands = middleware.ChainCommands(
		cmdBus,
		middleware.Logging(logger),
		middleware.Authorization(middleware.RequireActor{}),
		middleware.Validation(middleware.SelfValidation{}),
		middleware.Idempotency(idem, nil),
	)
	app.queries = middleware.ChainQueries(queryBus,
		middleware.QueryAuthorization(middleware.RequireActor{}),
		middleware.QueryValidation(middleware.SelfValidation{}),
	)
	app.handlers = ginserver.Handlers{
		Chat: ginserver.ChatHandler{
			Commands: app.commands,
			Queries:  app.queries,
			Logger:   logger,
		},
		AuthMiddleware: ginserver.AuthMiddleware{Secret: cfg.JWTSecret, Logger: logger}.Handle,
		Metrics:        app.metrics.Handler(),
	}
	if cfg.JWTSecret == "" {
		logger.Warn("JWT_SECRET not set, trusting gateway identity headers")
	}
	return app, nil
}

// connect opens the optional Mongo and Kafka connections.
func (a *application) connect(ctx context.Context) error {
	if a.cfg.MongoURI != "" {
		client, err := mongodb.New(ctx, a.cfg.MongoURI, a.cfg.MongoDB)
		if err != nil {
			return fmt.Errorf("mongo: %w", err)
		}
		a.mongo = client
		a.closers = append(a.closers, client.Close)
		a.probes["mongo"] = client.Ping
	}
	if len(a.cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(a.cfg.KafkaBrokers, sarama.NewConfig())
		if err != nil {
			return fmt.Errorf("kafka producer: %w", err)
		}
		a.producer = producer
		a.closers = append(a.closers, func(context.Context) error { return producer.Close() })
	}
	return nil
}

// approvalsConsumer subscribes to request approvals; nil without brokers.
func (a *application) approvalsConsumer() (*kafka.Consumer, error) {
	if len(a.cfg.KafkaBrokers) == 0 {
		return nil, nil
	}
	handler := kafka.ApprovalsHandler{Commands: a.commands, Inbox: a.inbox, Logger: a.logger}
	consumer, err := kafka.NewConsumer(a.cfg.KafkaBrokers, a.cfg.KafkaGroupID, sarama.NewConfig(), handler, a.logger)
	if err != nil {
		return nil, err
	}
	if len(a.cfg.RetryBackoff) > 0 {
		consumer.Backoff = a.cfg.RetryBackoff[0]
	}
	return consumer, nil
}

// outboxWorker relays stored events; nil unless both Mongo and Kafka are configured.
func (a *application) outboxWorker() *infraoutbox.Worker {
	if a.outboxStore == nil || a.producer == nil {
		return nil
	}
	return &infraoutbox.Worker{
		Store:       a.outboxStore,
		Producer:    a.producer,
		Interval:    a.cfg.OutboxPollInterval,
		TopicPrefix: a.cfg.KafkaTopicPrefix,
		Backoff:     a.cfg.RetryBackoff,
		Logger:      a.logger,
	}
}

type itemFixture struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	DonorID    string `json:"donor_id"`
	Status     string `json:"status"`
	Approved   bool   `json:"approved"`
	ReceiverID string `json:"receiver_id,omitempty"`
}

// loadItemFixtures seeds the in-memory catalog for local runs.
func (a *application) loadItemFixtures(path string) error {
	if path == "" || a.items == nil {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			a.logger.Info("item fixtures file not found, skipping", "path", path)
			return nil
		}
		return fmt.Errorf("read fixtures: %w", err)
	}
	var fixtures []itemFixture
	if err := json.Unmarshal(data, &fixtures); err != nil {
		return fmt.Errorf("decode fixtures: %w", err)
	}
	for _, fx := range fixtures {
		a.items.Put(domainitems.Snapshot{
			ID:         fx.ID,
			Title:      fx.Title,
			DonorID:    fx.DonorID,
			Status:     domainitems.Status(fx.Status),
			Approved:   fx.Approved,
			ReceiverID: fx.ReceiverID,
		})
	}
	a.logger.Info("item fixtures loaded", "path", path, "count", len(fixtures))
	return nil
}

func (a *application) fail(err error) error {
	a.Close(context.Background())
	return err
}

// Close releases connections in reverse order of creation.
func (a *application) Close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.logger.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}
