package chats

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"donateo/internal/app/dto"
	"donateo/internal/app/queries"
	domainchat "donateo/internal/domain/chat"
)

const (
	getChatKey      = "chats.get"
	findChatKey     = "chats.find"
	listMyChatsKey  = "chats.list.mine"
	listAllChatsKey = "chats.list.all"
)

type GetChatQuery struct {
	ChatID      string
	RequesterID string
	IsAdmin     bool
}

func (q GetChatQuery) Key() string   { return getChatKey }
func (q GetChatQuery) Actor() string { return q.RequesterID }

type GetChatHandler struct {
	Chats domainchat.Repository
}

func (h *GetChatHandler) Handle(ctx context.Context, q GetChatQuery) (dto.Chat, error) {
	if strings.TrimSpace(q.ChatID) == "" {
		return dto.Chat{}, domainchat.ErrNotFound
	}
	c, err := h.Chats.ByID(ctx, domainchat.ID(q.ChatID))
	if err != nil {
		return dto.Chat{}, err
	}
	if err := c.CanView(q.RequesterID, q.IsAdmin); err != nil {
		return dto.Chat{}, err
	}
	return dto.MapChat(c), nil
}

// FindChatQuery looks a chat up by the item, donor and receiver it connects.
type FindChatQuery struct {
	ItemID      string
	DonorID     string
	ReceiverID  string
	RequesterID string
	IsAdmin     bool
}

func (q FindChatQuery) Key() string   { return findChatKey }
func (q FindChatQuery) Actor() string { return q.RequesterID }

func (q FindChatQuery) Validate() error {
	if strings.TrimSpace(q.ItemID) == "" || strings.TrimSpace(q.DonorID) == "" || strings.TrimSpace(q.ReceiverID) == "" {
		return fmt.Errorf("%w: item_id, donor_id and receiver_id are required", domainchat.ErrInvalidArgument)
	}
	return nil
}

type FindChatHandler struct {
	Chats domainchat.Repository
}

func (h *FindChatHandler) Handle(ctx context.Context, q FindChatQuery) (dto.Chat, error) {
	if err := q.Validate(); err != nil {
		return dto.Chat{}, err
	}
	c, err := h.Chats.ByTriple(ctx, strings.TrimSpace(q.ItemID), strings.TrimSpace(q.DonorID), strings.TrimSpace(q.ReceiverID))
	if err != nil {
		return dto.Chat{}, err
	}
	if err := c.CanView(q.RequesterID, q.IsAdmin); err != nil {
		return dto.Chat{}, err
	}
	return dto.MapChat(c), nil
}

type ListMyChatsQuery struct {
	UserID string
}

func (q ListMyChatsQuery) Key() string   { return listMyChatsKey }
func (q ListMyChatsQuery) Actor() string { return q.UserID }

type ListMyChatsHandler struct {
	Chats  domainchat.Repository
	Logger *slog.Logger
}

func (h *ListMyChatsHandler) Handle(ctx context.Context, q ListMyChatsQuery) (dto.ChatList, error) {
	userID := strings.TrimSpace(q.UserID)
	if userID == "" {
		return dto.ChatList{}, fmt.Errorf("%w: user id is required", domainchat.ErrInvalidArgument)
	}
	list, err := h.Chats.ListByParticipant(ctx, userID)
	if err != nil {
		return dto.ChatList{}, err
	}
	out := summarize(list, userID)
	if h.Logger != nil {
		h.Logger.Debug("chats listed", "user_id", userID, "count", len(out.Items))
	}
	return out, nil
}

// ListAllChatsQuery is the admin moderation view. Admin access is checked by
// the transport.
type ListAllChatsQuery struct {
	RequesterID string
}

func (q ListAllChatsQuery) Key() string   { return listAllChatsKey }
func (q ListAllChatsQuery) Actor() string { return q.RequesterID }

type ListAllChatsHandler struct {
	Chats  domainchat.Repository
	Logger *slog.Logger
}

func (h *ListAllChatsHandler) Handle(ctx context.Context, q ListAllChatsQuery) (dto.ChatList, error) {
	list, err := h.Chats.ListAll(ctx)
	if err != nil {
		return dto.ChatList{}, err
	}
	out := summarize(list, q.RequesterID)
	if h.Logger != nil {
		h.Logger.Debug("all chats listed", "requester_id", q.RequesterID, "count", len(out.Items))
	}
	return out, nil
}

func summarize(list []*domainchat.Chat, viewer string) dto.ChatList {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].UpdatedAt.After(list[j].UpdatedAt)
	})
	items := make([]dto.ChatSummary, 0, len(list))
	for _, c := range list {
		items = append(items, dto.MapChatSummary(c, viewer))
	}
	return dto.ChatList{Items: items}
}

var (
	_ queries.Handler[GetChatQuery, dto.Chat]          = (*GetChatHandler)(nil)
	_ queries.Handler[FindChatQuery, dto.Chat]         = (*FindChatHandler)(nil)
	_ queries.Handler[ListMyChatsQuery, dto.ChatList]  = (*ListMyChatsHandler)(nil)
	_ queries.Handler[ListAllChatsQuery, dto.ChatList] = (*ListAllChatsHandler)(nil)
)
