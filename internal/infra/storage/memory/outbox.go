package memory

import (
	"context"
	"sync"

	appoutbox "donateo/internal/app/outbox"
)

// DefaultOutboxLimit is how many recent events a serving process keeps when no
// relay is configured.
const DefaultOutboxLimit = 1000

// Outbox keeps encoded events in memory. Nothing relays them; it backs local
// runs and lets tests inspect what a command emitted. With a positive limit
// only the most recent limit events are retained.
type Outbox struct {
	mu      sync.Mutex
	limit   int
	dropped int
	records []appoutbox.EventRecord
}

// NewOutbox returns an outbox keeping at most limit events; zero keeps all.
func NewOutbox(limit int) *Outbox {
	return &Outbox{limit: limit}
}

func (o *Outbox) Add(ctx context.Context, record appoutbox.EventRecord) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.records = append(o.records, record)
	if o.limit > 0 && len(o.records) > o.limit {
		excess := len(o.records) - o.limit
		o.dropped += excess
		o.records = append(o.records[:0:0], o.records[excess:]...)
	}
	return nil
}

// Dropped reports how many old events were discarded to respect the limit.
func (o *Outbox) Dropped() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.dropped
}

// Names returns the names of the recorded events in order.
func (o *Outbox) Names() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	names := make([]string, 0, len(o.records))
	for _, r := range o.records {
		names = append(names, r.Name)
	}
	return names
}

// Records returns a copy of the recorded events.
func (o *Outbox) Records() []appoutbox.EventRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]appoutbox.EventRecord(nil), o.records...)
}

var _ appoutbox.Outbox = (*Outbox)(nil)
