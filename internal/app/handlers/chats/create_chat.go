package chats

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"donateo/internal/app/commands"
	"donateo/internal/app/dto"
	"donateo/internal/app/policies"
	domainchat "donateo/internal/domain/chat"
	domainitems "donateo/internal/domain/items"
)

const createChatKey = "chats.create"

// SystemActor is the identity logged for chats opened by approval events. It
// grants nothing; FromApprovalEvent does.
const SystemActor = "system:approvals"

// CreateChatCommand opens the pickup chat for an approved request, or returns
// the chat already open for the same item, donor and receiver.
type CreateChatCommand struct {
	ItemID       string
	ReceiverID   string
	ActorID      string
	ActorIsAdmin bool
	// FromApprovalEvent is set only by the approvals consumer and skips the
	// donor check. The HTTP transport never sets it.
	FromApprovalEvent bool
	Now               time.Time
}

func (c CreateChatCommand) Key() string   { return createChatKey }
func (c CreateChatCommand) Actor() string { return c.ActorID }

func (c CreateChatCommand) Validate() error {
	if strings.TrimSpace(c.ItemID) == "" || strings.TrimSpace(c.ReceiverID) == "" {
		return fmt.Errorf("%w: item_id and receiver_id are required", domainchat.ErrInvalidArgument)
	}
	return nil
}

type CreateChatHandler struct {
	Deps
	Items policies.ItemCatalog
	// NewID generates chat ids; uuid when nil.
	NewID func() string
}

func (h *CreateChatHandler) Handle(ctx context.Context, cmd CreateChatCommand) (dto.CreateChatResult, error) {
	if h.Items == nil || h.Chats == nil {
		return dto.CreateChatResult{}, errors.New("chats: create handler not configured")
	}
	if err := cmd.Validate(); err != nil {
		return dto.CreateChatResult{}, err
	}
	itemID := strings.TrimSpace(cmd.ItemID)
	receiverID := strings.TrimSpace(cmd.ReceiverID)

	item, err := h.Items.Item(ctx, itemID)
	if err != nil {
		if errors.Is(err, domainitems.ErrNotFound) {
			return dto.CreateChatResult{}, fmt.Errorf("%w: item %s", domainchat.ErrNotFound, itemID)
		}
		return dto.CreateChatResult{}, err
	}
	if !cmd.FromApprovalEvent && !cmd.ActorIsAdmin && cmd.ActorID != item.DonorID {
		return dto.CreateChatResult{}, domainchat.ErrForbidden
	}
	if !item.EligibleForChat(receiverID) {
		return dto.CreateChatResult{}, domainchat.ErrItemNotEligible
	}

	now := cmd.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	unlock := h.locks().Lock("triple:" + itemID + "|" + item.DonorID + "|" + receiverID)
	defer unlock()

	existing, err := h.Chats.ByTriple(ctx, itemID, item.DonorID, receiverID)
	if err == nil {
		return dto.CreateChatResult{Chat: dto.MapChat(existing)}, nil
	}
	if !errors.Is(err, domainchat.ErrNotFound) {
		return dto.CreateChatResult{}, err
	}

	c, err := domainchat.NewChat(domainchat.CreateParams{
		ID:         domainchat.ID(h.newID()),
		ItemID:     itemID,
		ItemTitle:  item.Title,
		DonorID:    item.DonorID,
		ReceiverID: receiverID,
		CreatedAt:  now,
	})
	if err != nil {
		return dto.CreateChatResult{}, err
	}
	if err := h.Chats.Create(ctx, c); err != nil {
		if !errors.Is(err, domainchat.ErrChatExists) {
			return dto.CreateChatResult{}, err
		}
		// Another instance won the race; the stored chat is the answer.
		winner, lookupErr := h.Chats.ByTriple(ctx, itemID, item.DonorID, receiverID)
		if lookupErr != nil {
			return dto.CreateChatResult{}, lookupErr
		}
		return dto.CreateChatResult{Chat: dto.MapChat(winner)}, nil
	}
	h.flushEvents(ctx, c)

	if h.Logger != nil {
		h.Logger.Info("chat created", "chat_id", c.ID, "item_id", itemID, "donor_id", item.DonorID, "receiver_id", receiverID)
	}
	h.notify(ctx, policies.Notification{
		RecipientID: receiverID,
		Type:        policies.NotificationChatStarted,
		Title:       "Your request was approved",
		Message:     fmt.Sprintf("The donor approved your request for %s. Open the chat to arrange the pickup.", itemLabel(c)),
		Link:        chatLink(c.ID),
	})
	return dto.CreateChatResult{Chat: dto.MapChat(c), Created: true}, nil
}

func (h *CreateChatHandler) newID() string {
	if h.NewID != nil {
		return h.NewID()
	}
	return uuid.NewString()
}

var _ commands.Handler[CreateChatCommand, dto.CreateChatResult] = (*CreateChatHandler)(nil)
