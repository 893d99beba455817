package chats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"donateo/internal/app/locks"
	appoutbox "donateo/internal/app/outbox"
	"donateo/internal/app/policies"
	domainchat "donateo/internal/domain/chat"
)

// maxSaveAttempts bounds reload-and-retry cycles when another process saved
// the same chat in between.
const maxSaveAttempts = 3

// errUnchanged lets a mutation report that nothing needs saving.
var errUnchanged = errors.New("chats: unchanged")

// Metrics receives engine counters. A nil Metrics is valid.
type Metrics interface {
	MessagePosted(kind string)
	MessageBlocked(category string)
	RateLimited()
	NotificationFailed(notificationType string)
}

// Deps bundles the collaborators shared by every chat command handler.
type Deps struct {
	Chats    domainchat.Repository
	Locks    *KeyedMutex
	Outbox   appoutbox.Outbox
	Encoder  appoutbox.EventEncoder
	Notifier policies.Notifier
	Metrics  Metrics
	Logger   *slog.Logger
}

// mutate serialises on the chat id, loads the aggregate, applies fn and saves
// it. The user message and any bot reply appended by fn are therefore stored
// together. Domain events are handed to the outbox after a successful save.
func (d Deps) mutate(ctx context.Context, id domainchat.ID, fn func(c *domainchat.Chat) error) (*domainchat.Chat, error) {
	if d.Chats == nil {
		return nil, errors.New("chats: repository not configured")
	}
	if id == "" {
		return nil, domainchat.ErrNotFound
	}
	unlock := d.locks().Lock("chat:" + string(id))
	defer unlock()

	for attempt := 0; attempt < maxSaveAttempts; attempt++ {
		c, err := d.Chats.ByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := fn(c); err != nil {
			if errors.Is(err, errUnchanged) {
				return c, nil
			}
			return nil, err
		}
		if err := d.Chats.Save(ctx, c); err != nil {
			if errors.Is(err, domainchat.ErrConcurrentUpdate) {
				d.debug("chat changed concurrently, retrying", "chat_id", id, "attempt", attempt+1)
				continue
			}
			return nil, err
		}
		d.flushEvents(ctx, c)
		return c, nil
	}
	return nil, fmt.Errorf("%w: chat %s", domainchat.ErrConcurrentUpdate, id)
}

func (d Deps) flushEvents(ctx context.Context, c *domainchat.Chat) {
	evs := c.PendingEvents()
	c.ClearEvents()
	if err := appoutbox.RecordDomainEvents(ctx, d.Outbox, d.Encoder, evs); err != nil && d.Logger != nil {
		d.Logger.Error("outbox append failed", "chat_id", c.ID, "events", len(evs), "error", err)
	}
}

// notify is best-effort: the chat change is already stored, so a failing
// notification service is logged and counted but never reported to the caller.
func (d Deps) notify(ctx context.Context, n policies.Notification) {
	if d.Notifier == nil {
		return
	}
	if err := d.Notifier.Notify(ctx, n); err != nil {
		if d.Logger != nil {
			d.Logger.Warn("notification failed", "type", n.Type, "recipient_id", n.RecipientID, "admins", n.AdminBroadcast, "error", err)
		}
		if d.Metrics != nil {
			d.Metrics.NotificationFailed(n.Type)
		}
	}
}

func (d Deps) locks() *KeyedMutex {
	if d.Locks == nil {
		return defaultLocks
	}
	return d.Locks
}

func (d Deps) debug(msg string, attrs ...any) {
	if d.Logger != nil {
		d.Logger.Debug(msg, attrs...)
	}
}

func chatLink(id domainchat.ID) string {
	return "/dashboard?chat=" + string(id)
}

func itemLabel(c *domainchat.Chat) string {
	if c.ItemTitle != "" {
		return fmt.Sprintf("%q", c.ItemTitle)
	}
	return "your item"
}

var defaultLocks = NewKeyedMutex()

// KeyedMutex serialises handlers on chat ids and creation triples.
type KeyedMutex = locks.KeyedMutex

func NewKeyedMutex() *KeyedMutex { return locks.NewKeyedMutex() }
