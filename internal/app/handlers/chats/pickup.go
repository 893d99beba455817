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
	setPickupKey     = "chats.pickup.set"
	confirmPickupKey = "chats.pickup.confirm"
)

// SetPickupDetailsCommand replaces the handover proposal. Date is YYYY-MM-DD.
type SetPickupDetailsCommand struct {
	ChatID   string
	SenderID string
	Location string
	Date     string
	Time     string
	Now      time.Time
}

func (c SetPickupDetailsCommand) Key() string   { return setPickupKey }
func (c SetPickupDetailsCommand) Actor() string { return c.SenderID }

type SetPickupDetailsHandler struct {
	Deps
}

func (h *SetPickupDetailsHandler) Handle(ctx context.Context, cmd SetPickupDetailsCommand) (dto.PostResult, error) {
	now := nowOr(cmd.Now)
	c, err := h.mutate(ctx, domainchat.ID(cmd.ChatID), func(c *domainchat.Chat) error {
		// Authorisation errors win over a malformed date.
		if err := c.EnsureCanPost(cmd.SenderID); err != nil {
			return err
		}
		if cmd.SenderID != c.DonorID {
			return domainchat.ErrForbidden
		}
		date, err := domainchat.ParsePickupDate(cmd.Date)
		if err != nil {
			return err
		}
		_, err = c.SetPickup(cmd.SenderID, cmd.Location, date, cmd.Time, now)
		return err
	})
	if err != nil {
		return dto.PostResult{}, err
	}
	if h.Logger != nil {
		h.Logger.Info("pickup details set", "chat_id", c.ID, "donor_id", c.DonorID)
	}
	h.notify(ctx, policies.Notification{
		RecipientID: c.ReceiverID,
		Type:        policies.NotificationPickupDetailsSet,
		Title:       "Pickup details proposed",
		Message: fmt.Sprintf("The donor proposed picking up %s at %s on %s, %s. Please confirm in the chat.",
			itemLabel(c), c.Pickup.Location, c.Pickup.Date.Format(domainchat.DateLayout), c.Pickup.Time),
		Link: chatLink(c.ID),
	})
	return dto.PostResult{Chat: dto.MapChat(c)}, nil
}

// ConfirmPickupCommand records the receiver's agreement with the proposal.
type ConfirmPickupCommand struct {
	ChatID   string
	SenderID string
	Now      time.Time
}

func (c ConfirmPickupCommand) Key() string   { return confirmPickupKey }
func (c ConfirmPickupCommand) Actor() string { return c.SenderID }

type ConfirmPickupHandler struct {
	Deps
}

func (h *ConfirmPickupHandler) Handle(ctx context.Context, cmd ConfirmPickupCommand) (dto.PostResult, error) {
	now := nowOr(cmd.Now)
	changed := false
	c, err := h.mutate(ctx, domainchat.ID(cmd.ChatID), func(c *domainchat.Chat) error {
		ok, err := c.ConfirmPickup(cmd.SenderID, now)
		if err != nil {
			return err
		}
		if !ok {
			return errUnchanged
		}
		changed = true
		return nil
	})
	if err != nil {
		return dto.PostResult{}, err
	}
	if changed {
		if h.Logger != nil {
			h.Logger.Info("pickup confirmed", "chat_id", c.ID, "receiver_id", c.ReceiverID)
		}
		h.notify(ctx, policies.Notification{
			RecipientID: c.DonorID,
			Type:        policies.NotificationPickupConfirmed,
			Title:       "Pickup confirmed",
			Message:     fmt.Sprintf("The receiver confirmed the pickup of %s.", itemLabel(c)),
			Link:        chatLink(c.ID),
		})
	}
	return dto.PostResult{Chat: dto.MapChat(c)}, nil
}

var (
	_ commands.Handler[SetPickupDetailsCommand, dto.PostResult] = (*SetPickupDetailsHandler)(nil)
	_ commands.Handler[ConfirmPickupCommand, dto.PostResult]    = (*ConfirmPickupHandler)(nil)
)
