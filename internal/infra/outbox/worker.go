package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Queue is the relay's view of the outbox store.
type Queue interface {
	Claim(ctx context.Context, workerID string) (*EventDocument, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error
}

type Producer interface {
	Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error
}

// Worker relays outbox events to the broker as CloudEvents. Chat events land
// on "<prefix>chat.events.v1", keyed by chat id so per-chat order holds.
type Worker struct {
	Store       Queue
	Producer    Producer
	Interval    time.Duration
	TopicPrefix string
	Source      string
	ID          string
	Backoff     []time.Duration
	// BatchSize caps how many events one tick relays.
	BatchSize int
	Logger    *slog.Logger
}

func (w *Worker) Run(ctx context.Context) error {
	if w.Store == nil || w.Producer == nil {
		return ErrWorkerNotConfigured
	}
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	ticker := time.NewTicker(w.interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.Drain(ctx); err != nil && ctx.Err() == nil && w.Logger != nil {
				w.Logger.Error("outbox relay failed", "worker_id", w.ID, "error", err)
			}
		}
	}
}

// Drain relays due events until none are left or the batch is full and
// returns how many it handled.
func (w *Worker) Drain(ctx context.Context) (int, error) {
	handled := 0
	for handled < w.batchSize() {
		ok, err := w.processOnce(ctx)
		if err != nil || !ok {
			return handled, err
		}
		handled++
	}
	return handled, nil
}

func (w *Worker) processOnce(ctx context.Context) (bool, error) {
	doc, err := w.Store.Claim(ctx, w.workerID())
	if err != nil || doc == nil {
		return false, err
	}
	topic := w.topicFor(doc.Name)
	payload, headers, err := w.formatPayload(doc)
	if err != nil {
		w.fail(ctx, doc, err)
		return true, nil
	}
	if err := w.Producer.Publish(ctx, topic, doc.Aggregate, payload, headers); err != nil {
		w.fail(ctx, doc, err)
		return true, nil
	}
	if w.Logger != nil {
		w.Logger.Debug("outbox event relayed", "event_id", doc.ID, "name", doc.Name, "topic", topic)
	}
	return true, w.Store.MarkSent(ctx, doc.ID)
}

func (w *Worker) fail(ctx context.Context, doc *EventDocument, cause error) {
	next := w.nextRetry(doc.Attempts)
	if w.Logger != nil {
		w.Logger.Warn("outbox publish failed", "event_id", doc.ID, "name", doc.Name, "attempts", doc.Attempts+1, "retry_at", next, "error", cause)
	}
	if err := w.Store.MarkFailed(ctx, doc.ID, next, cause.Error()); err != nil && w.Logger != nil {
		w.Logger.Error("outbox mark failed", "event_id", doc.ID, "error", err)
	}
}

func (w *Worker) formatPayload(doc *EventDocument) ([]byte, map[string]string, error) {
	data := map[string]any{}
	if err := json.Unmarshal(doc.Payload, &data); err != nil {
		return nil, nil, err
	}
	evt := map[string]any{
		"specversion":     "1.0",
		"id":              doc.ID,
		"type":            doc.Name + ".v1",
		"source":          w.source(),
		"subject":         doc.Aggregate,
		"time":            doc.OccurredAt,
		"datacontenttype": "application/json",
		"data":            data,
	}
	if trace, ok := doc.Headers["traceparent"]; ok {
		evt["traceparent"] = trace
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return nil, nil, err
	}
	headers := map[string]string{
		"content-type": "application/cloudevents+json",
	}
	for k, v := range doc.Headers {
		headers[k] = v
	}
	return payload, headers, nil
}

func (w *Worker) topicFor(name string) string {
	base := name
	if idx := strings.IndexRune(name, '.'); idx > 0 {
		base = name[:idx]
	}
	return w.TopicPrefix + base + ".events.v1"
}

func (w *Worker) workerID() string {
	if w.ID != "" {
		return w.ID
	}
	return uuid.NewString()
}

func (w *Worker) interval() time.Duration {
	if w.Interval <= 0 {
		return 500 * time.Millisecond
	}
	return w.Interval
}

func (w *Worker) batchSize() int {
	if w.BatchSize <= 0 {
		return 100
	}
	return w.BatchSize
}

func (w *Worker) nextRetry(attempts int) time.Time {
	if attempts < len(w.Backoff) {
		return time.Now().Add(w.Backoff[attempts])
	}
	if len(w.Backoff) > 0 {
		return time.Now().Add(w.Backoff[len(w.Backoff)-1])
	}
	return time.Now().Add(5 * time.Second)
}

func (w *Worker) source() string {
	if w.Source != "" {
		return w.Source
	}
	return "app://donateo/chat"
}

var ErrWorkerNotConfigured = errors.New("outbox: worker missing dependencies")
