package memory

import (
	"context"
	"sort"
	"sync"

	domainchat "donateo/internal/domain/chat"
	domainitems "donateo/internal/domain/items"
)

// ChatRepository keeps chats in memory. It stores and returns deep copies so
// callers never share message slices with the store.
type ChatRepository struct {
	mu      sync.RWMutex
	items   map[domainchat.ID]*domainchat.Chat
	triples map[string]domainchat.ID
}

func NewChatRepository() *ChatRepository {
	return &ChatRepository{
		items:   make(map[domainchat.ID]*domainchat.Chat),
		triples: make(map[string]domainchat.ID),
	}
}

func (r *ChatRepository) ByID(ctx context.Context, id domainchat.ID) (*domainchat.Chat, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.items[id]
	if !ok {
		return nil, domainchat.ErrNotFound
	}
	return c.Clone(), nil
}

func (r *ChatRepository) ByTriple(ctx context.Context, itemID, donorID, receiverID string) (*domainchat.Chat, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.triples[tripleKey(itemID, donorID, receiverID)]
	if !ok {
		return nil, domainchat.ErrNotFound
	}
	return r.items[id].Clone(), nil
}

func (r *ChatRepository) Create(ctx context.Context, c *domainchat.Chat) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := tripleKey(c.ItemID, c.DonorID, c.ReceiverID)
	if _, ok := r.triples[key]; ok {
		return domainchat.ErrChatExists
	}
	if _, ok := r.items[c.ID]; ok {
		return domainchat.ErrChatExists
	}
	r.items[c.ID] = c.Clone()
	r.triples[key] = c.ID
	return nil
}

// Save replaces the stored chat when the caller holds the current version and
// bumps the version on success.
func (r *ChatRepository) Save(ctx context.Context, c *domainchat.Chat) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.items[c.ID]
	if !ok {
		return domainchat.ErrNotFound
	}
	if stored.Version != c.Version {
		return domainchat.ErrConcurrentUpdate
	}
	next := c.Clone()
	next.Version++
	r.items[c.ID] = next
	c.Version = next.Version
	return nil
}

func (r *ChatRepository) ListByParticipant(ctx context.Context, userID string) ([]*domainchat.Chat, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domainchat.Chat
	for _, c := range r.items {
		if c.IsParticipant(userID) {
			out = append(out, c.Clone())
		}
	}
	sortByActivity(out)
	return out, nil
}

func (r *ChatRepository) ListAll(ctx context.Context) ([]*domainchat.Chat, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domainchat.Chat, 0, len(r.items))
	for _, c := range r.items {
		out = append(out, c.Clone())
	}
	sortByActivity(out)
	return out, nil
}

func sortByActivity(list []*domainchat.Chat) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].UpdatedAt.Equal(list[j].UpdatedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].UpdatedAt.After(list[j].UpdatedAt)
	})
}

func tripleKey(itemID, donorID, receiverID string) string {
	return itemID + "\x00" + donorID + "\x00" + receiverID
}

// ItemCatalog serves item snapshots from memory, e.g. for local runs and tests.
type ItemCatalog struct {
	mu    sync.RWMutex
	items map[string]domainitems.Snapshot
}

func NewItemCatalog(items ...domainitems.Snapshot) *ItemCatalog {
	c := &ItemCatalog{items: make(map[string]domainitems.Snapshot)}
	for _, it := range items {
		c.items[it.ID] = it
	}
	return c
}

func (c *ItemCatalog) Item(ctx context.Context, itemID string) (domainitems.Snapshot, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	it, ok := c.items[itemID]
	if !ok {
		return domainitems.Snapshot{}, domainitems.ErrNotFound
	}
	return it, nil
}

// Put adds or replaces an item.
func (c *ItemCatalog) Put(item domainitems.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[item.ID] = item
}

var _ domainchat.Repository = (*ChatRepository)(nil)
