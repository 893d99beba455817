package chats

import (
	"context"
	"fmt"
	"time"

	"donateo/internal/app/commands"
	"donateo/internal/app/dto"
	"donateo/internal/app/policies"
	domainchat "donateo/internal/domain/chat"
)

const (
	markReadKey = "chats.mark_read"
	endChatKey  = "chats.end"
	reportKey   = "chats.report"
)

type MarkReadCommand struct {
	ChatID string
	UserID string
	Now    time.Time
}

func (c MarkReadCommand) Key() string   { return markReadKey }
func (c MarkReadCommand) Actor() string { return c.UserID }

type MarkReadHandler struct {
	Deps
}

func (h *MarkReadHandler) Handle(ctx context.Context, cmd MarkReadCommand) (dto.MarkReadResult, error) {
	now := nowOr(cmd.Now)
	marked := 0
	_, err := h.mutate(ctx, domainchat.ID(cmd.ChatID), func(c *domainchat.Chat) error {
		n, err := c.MarkRead(cmd.UserID, now)
		if err != nil {
			return err
		}
		if n == 0 {
			return errUnchanged
		}
		marked = n
		return nil
	})
	if err != nil {
		return dto.MarkReadResult{}, err
	}
	return dto.MarkReadResult{Marked: marked}, nil
}

// EndChatCommand closes the chat once the donation has been handed over.
type EndChatCommand struct {
	ChatID   string
	SenderID string
	Now      time.Time
}

func (c EndChatCommand) Key() string   { return endChatKey }
func (c EndChatCommand) Actor() string { return c.SenderID }

type EndChatHandler struct {
	Deps
}

func (h *EndChatHandler) Handle(ctx context.Context, cmd EndChatCommand) (dto.Chat, error) {
	now := nowOr(cmd.Now)
	c, err := h.mutate(ctx, domainchat.ID(cmd.ChatID), func(c *domainchat.Chat) error {
		return c.End(cmd.SenderID, now)
	})
	if err != nil {
		return dto.Chat{}, err
	}
	if h.Logger != nil {
		h.Logger.Info("chat ended", "chat_id", c.ID, "item_id", c.ItemID)
	}
	h.notify(ctx, policies.Notification{
		RecipientID: c.ReceiverID,
		Type:        policies.NotificationChatCompleted,
		Title:       "Donation completed",
		Message:     fmt.Sprintf("The donor marked the donation of %s as completed. Enjoy!", itemLabel(c)),
		Link:        chatLink(c.ID),
	})
	return dto.MapChat(c), nil
}

// ReportChatCommand flags a chat for admin review.
type ReportChatCommand struct {
	ChatID     string
	ReporterID string
	Reason     string
	Now        time.Time
}

func (c ReportChatCommand) Key() string   { return reportKey }
func (c ReportChatCommand) Actor() string { return c.ReporterID }

type ReportChatHandler struct {
	Deps
}

func (h *ReportChatHandler) Handle(ctx context.Context, cmd ReportChatCommand) (dto.Chat, error) {
	now := nowOr(cmd.Now)
	c, err := h.mutate(ctx, domainchat.ID(cmd.ChatID), func(c *domainchat.Chat) error {
		return c.Report(cmd.ReporterID, cmd.Reason, now)
	})
	if err != nil {
		return dto.Chat{}, err
	}
	if h.Logger != nil {
		h.Logger.Warn("chat reported", "chat_id", c.ID, "reported_by", c.ReportedBy, "reason", c.ReportReason)
	}
	h.notify(ctx, policies.Notification{
		AdminBroadcast: true,
		Type:           policies.NotificationChatReported,
		Title:          "Chat reported",
		Message:        fmt.Sprintf("A participant reported the chat about %s: %s", itemLabel(c), c.ReportReason),
		Link:           "/admin?chat=" + string(c.ID),
	})
	return dto.MapChat(c), nil
}

var (
	_ commands.Handler[MarkReadCommand, dto.MarkReadResult] = (*MarkReadHandler)(nil)
	_ commands.Handler[EndChatCommand, dto.Chat]            = (*EndChatHandler)(nil)
	_ commands.Handler[ReportChatCommand, dto.Chat]         = (*ReportChatHandler)(nil)
)
