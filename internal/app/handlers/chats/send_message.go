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
	sendMessageKey = "chats.send_message"
	quickReplyKey  = "chats.quick_reply"
)

// SendMessageCommand posts free text on behalf of a participant.
type SendMessageCommand struct {
	ChatID   string
	SenderID string
	Text     string
	// RequestKey is the client's Idempotency-Key, if any.
	RequestKey string
	Now        time.Time
}

func (c SendMessageCommand) Key() string   { return sendMessageKey }
func (c SendMessageCommand) Actor() string { return c.SenderID }

// IdempotencyKey scopes the client key to the chat and sender so keys cannot
// collide across users.
func (c SendMessageCommand) IdempotencyKey() string {
	if c.RequestKey == "" {
		return ""
	}
	return sendMessageKey + ":" + c.ChatID + ":" + c.SenderID + ":" + c.RequestKey
}

func (c SendMessageCommand) ResultPrototype() any { return &dto.PostResult{} }

type SendMessageHandler struct {
	Deps
	Limiter   policies.RateLimiter
	Moderator domainchat.Moderator
	Bot       domainchat.Responder
}

func (h *SendMessageHandler) Handle(ctx context.Context, cmd SendMessageCommand) (dto.PostResult, error) {
	now := nowOr(cmd.Now)
	var outcome domainchat.PostOutcome
	throttle := consumeOnce(h.Limiter, h.Metrics, cmd.SenderID)
	c, err := h.mutate(ctx, domainchat.ID(cmd.ChatID), func(c *domainchat.Chat) error {
		if err := c.EnsureCanPost(cmd.SenderID); err != nil {
			return err
		}
		if err := throttle(ctx); err != nil {
			return err
		}
		var err error
		outcome, err = c.PostMessage(cmd.SenderID, cmd.Text, now, h.Moderator, h.Bot)
		return err
	})
	if err != nil {
		return dto.PostResult{}, err
	}
	if h.Metrics != nil {
		if outcome.Blocked {
			h.Metrics.MessageBlocked(string(outcome.Category))
		} else {
			h.Metrics.MessagePosted("text")
		}
	}
	if outcome.Blocked && h.Logger != nil {
		h.Logger.Info("message blocked", "chat_id", c.ID, "sender_id", cmd.SenderID, "category", outcome.Category)
	}
	return dto.PostResult{Chat: dto.MapChat(c), Blocked: outcome.Blocked, WarningCategory: string(outcome.Category)}, nil
}

// SendQuickReplyCommand posts a canned phrase.
type SendQuickReplyCommand struct {
	ChatID   string
	SenderID string
	ReplyKey string
	Now      time.Time
}

func (c SendQuickReplyCommand) Key() string   { return quickReplyKey }
func (c SendQuickReplyCommand) Actor() string { return c.SenderID }

type SendQuickReplyHandler struct {
	Deps
	Limiter policies.RateLimiter
}

func (h *SendQuickReplyHandler) Handle(ctx context.Context, cmd SendQuickReplyCommand) (dto.PostResult, error) {
	now := nowOr(cmd.Now)
	throttle := consumeOnce(h.Limiter, h.Metrics, cmd.SenderID)
	c, err := h.mutate(ctx, domainchat.ID(cmd.ChatID), func(c *domainchat.Chat) error {
		if err := c.EnsureCanPost(cmd.SenderID); err != nil {
			return err
		}
		if err := throttle(ctx); err != nil {
			return err
		}
		_, err := c.PostQuickReply(cmd.SenderID, cmd.ReplyKey, now)
		return err
	})
	if err != nil {
		return dto.PostResult{}, err
	}
	if h.Metrics != nil {
		h.Metrics.MessagePosted("quick_reply")
	}
	return dto.PostResult{Chat: dto.MapChat(c)}, nil
}

// consumeOnce returns a check that takes one rate-limit slot for sender at most
// once, even when the surrounding mutation is retried after a concurrent update.
func consumeOnce(limiter policies.RateLimiter, metrics Metrics, sender string) func(context.Context) error {
	consumed := false
	return func(ctx context.Context) error {
		if limiter == nil || consumed {
			return nil
		}
		consumed = true
		allowed, err := limiter.Consume(ctx, sender)
		if err != nil {
			return fmt.Errorf("chats: rate limiter: %w", err)
		}
		if !allowed {
			if metrics != nil {
				metrics.RateLimited()
			}
			return domainchat.ErrRateLimited
		}
		return nil
	}
}

func nowOr(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

var (
	_ commands.Handler[SendMessageCommand, dto.PostResult]    = (*SendMessageHandler)(nil)
	_ commands.Handler[SendQuickReplyCommand, dto.PostResult] = (*SendQuickReplyHandler)(nil)
)
