package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/IBM/sarama"

	"donateo/internal/app/commands"
	"donateo/internal/app/dto"
	chatapp "donateo/internal/app/handlers/chats"
	domainchat "donateo/internal/domain/chat"
)

// ApprovalsTopic carries "request approved" events from the item service.
const ApprovalsTopic = "items.request_approved"

// Inbox deduplicates redelivered events.
type Inbox interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

// RequestApproved is the approval event payload.
type RequestApproved struct {
	EventID    string `json:"event_id"`
	ItemID     string `json:"item_id"`
	ReceiverID string `json:"receiver_id"`
}

// ApprovalsHandler opens a pickup chat for every approved request.
type ApprovalsHandler struct {
	Commands commands.Bus
	Inbox    Inbox
	Logger   *slog.Logger
}

func (h ApprovalsHandler) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var evt RequestApproved
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		h.log().Warn("dropping malformed approval event", "offset", msg.Offset, "error", err)
		return nil
	}
	eventID := strings.TrimSpace(evt.EventID)
	if eventID == "" {
		eventID = fmt.Sprintf("%s/%d/%d", msg.Topic, msg.Partition, msg.Offset)
	}
	if h.Inbox != nil {
		seen, err := h.Inbox.Seen(ctx, eventID)
		if err != nil {
			return err
		}
		if seen {
			h.log().Debug("approval event already processed", "event_id", eventID)
			return nil
		}
	}

	res, err := commands.Dispatch[chatapp.CreateChatCommand, dto.CreateChatResult](ctx, h.Commands, chatapp.CreateChatCommand{
		ItemID:            evt.ItemID,
		ReceiverID:        evt.ReceiverID,
		ActorID:           chatapp.SystemActor,
		FromApprovalEvent: true,
	})
	if err != nil {
		if permanent(err) {
			h.log().Warn("approval event rejected", "event_id", eventID, "item_id", evt.ItemID, "error", err)
			return nil
		}
		if h.Inbox != nil {
			if ferr := h.Inbox.Forget(ctx, eventID); ferr != nil {
				h.log().Error("inbox forget failed", "event_id", eventID, "error", ferr)
			}
		}
		return err
	}
	h.log().Info("approval event handled", "event_id", eventID, "chat_id", res.Chat.ID, "created", res.Created)
	return nil
}

// permanent errors would fail identically on redelivery.
func permanent(err error) bool {
	for _, target := range []error{
		domainchat.ErrNotFound,
		domainchat.ErrItemNotEligible,
		domainchat.ErrInvalidArgument,
		domainchat.ErrForbidden,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (h ApprovalsHandler) log() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.New(slog.DiscardHandler)
}

var _ MessageHandler = ApprovalsHandler{}
