package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"donateo/internal/app/middleware"
	appoutbox "donateo/internal/app/outbox"
	domainchat "donateo/internal/domain/chat"
	domainitems "donateo/internal/domain/items"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestRateLimiterFixedWindow(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	l := NewRateLimiter(20, time.Minute, clock.Now)

	for i := 1; i <= 20; i++ {
		ok, err := l.Consume(ctx, "u1")
		require.NoError(t, err)
		require.True(t, ok, "call %d", i)
		clock.Advance(2 * time.Second)
	}
	ok, err := l.Consume(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok, "21st call within the window")

	other, _ := l.Consume(ctx, "u2")
	assert.True(t, other, "limits are per user")

	clock.Advance(20 * time.Second)
	ok, _ = l.Consume(ctx, "u1")
	assert.True(t, ok, "window rolled over")
}

func TestRateLimiterConcurrentBurst(t *testing.T) {
	l := NewRateLimiter(20, time.Minute, nil)
	var allowed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := l.Consume(context.Background(), "u1"); ok {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 20, allowed.Load())
}

func newChat(t *testing.T, id, item string, at time.Time) *domainchat.Chat {
	t.Helper()
	c, err := domainchat.NewChat(domainchat.CreateParams{
		ID: domainchat.ID(id), ItemID: item, DonorID: "donor", ReceiverID: "receiver", CreatedAt: at,
	})
	require.NoError(t, err)
	return c
}

func TestChatRepositoryVersioning(t *testing.T) {
	ctx := context.Background()
	repo := NewChatRepository()
	c := newChat(t, "c1", "item-1", time.Now())
	require.NoError(t, repo.Create(ctx, c))

	dup := newChat(t, "c2", "item-1", time.Now())
	assert.ErrorIs(t, repo.Create(ctx, dup), domainchat.ErrChatExists)

	a, err := repo.ByID(ctx, "c1")
	require.NoError(t, err)
	b, err := repo.ByID(ctx, "c1")
	require.NoError(t, err)

	require.NoError(t, a.Report("donor", "", time.Now()))
	require.NoError(t, repo.Save(ctx, a))
	assert.EqualValues(t, 1, a.Version)

	require.NoError(t, b.Report("receiver", "", time.Now()))
	assert.ErrorIs(t, repo.Save(ctx, b), domainchat.ErrConcurrentUpdate)

	stored, err := repo.ByTriple(ctx, "item-1", "donor", "receiver")
	require.NoError(t, err)
	assert.Equal(t, "donor", stored.ReportedBy)

	_, err = repo.ByID(ctx, "missing")
	assert.ErrorIs(t, err, domainchat.ErrNotFound)
}

func TestChatRepositoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewChatRepository()
	c := newChat(t, "c1", "item-1", time.Now())
	require.NoError(t, repo.Create(ctx, c))

	c.Messages[0].Content = "changed after create"
	got, err := repo.ByID(ctx, "c1")
	require.NoError(t, err)
	assert.NotEqual(t, "changed after create", got.Messages[0].Content)

	got.Messages[0].ReadBy = append(got.Messages[0].ReadBy, "receiver")
	again, err := repo.ByID(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, again.Messages[0].ReadBy)
}

func TestChatRepositoryListsByActivity(t *testing.T) {
	ctx := context.Background()
	repo := NewChatRepository()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Create(ctx, newChat(t, "old", "item-1", base)))
	require.NoError(t, repo.Create(ctx, newChat(t, "new", "item-2", base.Add(time.Hour))))
	other, err := domainchat.NewChat(domainchat.CreateParams{ID: "x", ItemID: "item-3", DonorID: "d2", ReceiverID: "r2", CreatedAt: base})
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, other))

	mine, err := repo.ListByParticipant(ctx, "receiver")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, domainchat.ID("new"), mine[0].ID)

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestItemCatalog(t *testing.T) {
	ctx := context.Background()
	catalog := NewItemCatalog(domainitems.Snapshot{ID: "i1", Title: "Blue Jacket", Approved: true, Status: domainitems.StatusAvailable})

	item, err := catalog.Item(ctx, "i1")
	require.NoError(t, err)
	assert.True(t, item.EligibleForChat("receiver-1"))

	_, err = catalog.Item(ctx, "i2")
	assert.ErrorIs(t, err, domainitems.ErrNotFound)
}

func TestIdempotencyStoreExpires(t *testing.T) {
	ctx := context.Background()
	store := NewIdempotencyStore(time.Millisecond)
	require.NoError(t, store.Save(ctx, middleware.IdempotencyRecord{Key: "k", Payload: []byte(`{}`), OccurredAt: time.Now()}))
	time.Sleep(5 * time.Millisecond)
	_, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInboxSeenAndForget(t *testing.T) {
	ctx := context.Background()
	inbox := NewInbox()

	seen, err := inbox.Seen(ctx, "e1")
	require.NoError(t, err)
	assert.False(t, seen)
	seen, _ = inbox.Seen(ctx, "e1")
	assert.True(t, seen)

	require.NoError(t, inbox.Forget(ctx, "e1"))
	seen, _ = inbox.Seen(ctx, "e1")
	assert.False(t, seen)
}

func TestOutboxKeepsMostRecentEvents(t *testing.T) {
	box := NewOutbox(2)
	for _, name := range []string{"chat.created", "chat.message_posted", "chat.ended"} {
		require.NoError(t, box.Add(context.Background(), appoutbox.EventRecord{Name: name}))
	}
	assert.Equal(t, []string{"chat.message_posted", "chat.ended"}, box.Names())
	assert.Equal(t, 1, box.Dropped())

	unbounded := NewOutbox(0)
	for i := 0; i < 5; i++ {
		require.NoError(t, unbounded.Add(context.Background(), appoutbox.EventRecord{Name: "chat.created"}))
	}
	assert.Len(t, unbounded.Records(), 5)
	assert.Zero(t, unbounded.Dropped())
}
