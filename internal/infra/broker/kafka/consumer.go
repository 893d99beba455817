package kafka

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
)

type MessageHandler interface {
	Handle(ctx context.Context, msg *sarama.ConsumerMessage) error
}

const (
	defaultRetryBackoff = 500 * time.Millisecond
	maxRetryBackoff     = 30 * time.Second
)

type Consumer struct {
	group   sarama.ConsumerGroup
	handler MessageHandler
	logger  *slog.Logger
	// Backoff is the first delay before a failed message is handled again.
	// It doubles per attempt up to 30s.
	Backoff time.Duration
}

func NewConsumer(brokers []string, groupID string, cfg *sarama.Config, handler MessageHandler, logger *slog.Logger) (*Consumer, error) {
	if cfg == nil {
		cfg = sarama.NewConfig()
	}
	cfg.Version = sarama.V2_5_0_0
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	g, err := sarama.NewConsumerGroup(brokers, groupID, cfg)
	if err != nil {
		return nil, err
	}
	return &Consumer{group: g, handler: handler, logger: logger}, nil
}

func (c *Consumer) Run(ctx context.Context, topics []string) error {
	for {
		if err := c.group.Consume(ctx, topics, consumerGroupHandler{handler: c.handler, logger: c.logger, backoff: c.Backoff}); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (c *Consumer) Close() error {
	return c.group.Close()
}

type consumerGroupHandler struct {
	handler MessageHandler
	logger  *slog.Logger
	backoff time.Duration
}

func (h consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim marks a message only after it was handled. A failing message
// is retried in place, so later offsets are never committed past it; when the
// session ends first, the next session starts again from that message.
func (h consumerGroupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		if !h.handle(sess.Context(), message) {
			return nil
		}
		sess.MarkMessage(message, "")
	}
	return nil
}

func (h consumerGroupHandler) handle(ctx context.Context, message *sarama.ConsumerMessage) bool {
	delay := h.backoff
	if delay <= 0 {
		delay = defaultRetryBackoff
	}
	for attempt := 1; ; attempt++ {
		err := h.handler.Handle(ctx, message)
		if err == nil {
			return true
		}
		if h.logger != nil {
			h.logger.Warn("kafka message not handled, retrying",
				"topic", message.Topic, "partition", message.Partition, "offset", message.Offset,
				"attempt", attempt, "retry_in", delay, "error", err)
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}
		delay = min(delay*2, maxRetryBackoff)
	}
}
