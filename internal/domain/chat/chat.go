package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"donateo/internal/domain/chatbot"
	"donateo/internal/domain/moderation"
	"donateo/internal/domain/shared/events"
)

var (
	ErrNotFound         = errors.New("chat: not found")
	ErrForbidden        = errors.New("chat: forbidden")
	ErrChatClosed       = errors.New("chat: chat is closed")
	ErrRateLimited      = errors.New("chat: too many messages, slow down")
	ErrMessageTooLong   = errors.New("chat: message exceeds 500 characters")
	ErrEmptyMessage     = errors.New("chat: message is empty")
	ErrItemNotEligible  = errors.New("chat: item is not eligible for a pickup chat")
	ErrInvalidPickup    = errors.New("chat: invalid pickup details")
	ErrPickupNotSet     = errors.New("chat: pickup details not set")
	ErrInvalidArgument  = errors.New("chat: invalid argument")
	ErrChatExists       = errors.New("chat: chat already exists for item, donor and receiver")
	ErrConcurrentUpdate = errors.New("chat: concurrent update detected")
)

// DefaultReportReason is stored when a participant reports without a reason.
const DefaultReportReason = "Inappropriate behaviour reported by a participant."

type ID string

type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// Chat is the pickup-coordination conversation between the donor and the
// receiver of one item. Messages are append-only.
type Chat struct {
	ID           ID
	ItemID       string
	ItemTitle    string
	DonorID      string
	ReceiverID   string
	Status       Status
	Messages     []Message
	Pickup       *PickupDetails
	Reported     bool
	ReportReason string
	ReportedBy   string
	ReportedAt   time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Version      int64
	events.EventRecorder
}

// Repository persists chats. Create fails with ErrChatExists when a chat for
// the same item, donor and receiver is already stored; Save fails with
// ErrConcurrentUpdate when the stored version moved on.
type Repository interface {
	ByID(ctx context.Context, id ID) (*Chat, error)
	ByTriple(ctx context.Context, itemID, donorID, receiverID string) (*Chat, error)
	Create(ctx context.Context, chat *Chat) error
	Save(ctx context.Context, chat *Chat) error
	ListByParticipant(ctx context.Context, userID string) ([]*Chat, error)
	ListAll(ctx context.Context) ([]*Chat, error)
}

// Moderator classifies user text before it is stored.
type Moderator interface {
	Classify(text string) moderation.Verdict
}

// Responder produces scripted bot guidance.
type Responder interface {
	Respond(text string, state chatbot.State) (string, bool)
}

type CreateParams struct {
	ID         ID
	ItemID     string
	ItemTitle  string
	DonorID    string
	ReceiverID string
	CreatedAt  time.Time
}

// NewChat opens a chat and seeds it with the onboarding messages.
func NewChat(params CreateParams) (*Chat, error) {
	if params.ID == "" {
		return nil, fmt.Errorf("%w: chat id required", ErrInvalidArgument)
	}
	if params.ItemID == "" || params.DonorID == "" || params.ReceiverID == "" {
		return nil, fmt.Errorf("%w: item, donor and receiver are required", ErrInvalidArgument)
	}
	if params.DonorID == params.ReceiverID {
		return nil, fmt.Errorf("%w: donor cannot chat with themselves", ErrInvalidArgument)
	}
	now := params.CreatedAt.UTC()
	c := &Chat{
		ID:         params.ID,
		ItemID:     params.ItemID,
		ItemTitle:  strings.TrimSpace(params.ItemTitle),
		DonorID:    params.DonorID,
		ReceiverID: params.ReceiverID,
		Status:     StatusActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	welcome := newMessage(c.DonorID, c.welcomeText(), now)
	welcome.IsSystem = true
	welcome.IsBot = true
	rules := newMessage(c.DonorID, onboardingRules, now)
	rules.IsBot = true
	c.Messages = append(c.Messages, welcome, rules)

	c.Record(ChatCreated{ChatID: c.ID, ItemID: c.ItemID, DonorID: c.DonorID, ReceiverID: c.ReceiverID, At: now})
	return c, nil
}

const onboardingRules = "🤖 Welcome to your Donateo pickup chat! A few rules:\n" +
	"• Donations are always free, so please don't discuss money or payments.\n" +
	"• Keep contact on Donateo: no phone numbers, emails or social media.\n" +
	"• Share only a general area or landmark, never a full address.\n" +
	"• Be respectful. Messages that break these rules are blocked.\n\n" +
	"Donor, use the pickup details form to propose a location, date and time."

func (c *Chat) welcomeText() string {
	title := "this item"
	if c.ItemTitle != "" {
		title = fmt.Sprintf("%q", c.ItemTitle)
	}
	return fmt.Sprintf("🎉 Request approved! This chat connects the donor and the receiver of %s so you can arrange the pickup.", title)
}

// IsParticipant reports whether user is the donor or the receiver.
func (c *Chat) IsParticipant(user string) bool {
	return user != "" && (user == c.DonorID || user == c.ReceiverID)
}

// RoleOf returns the participant role of user.
func (c *Chat) RoleOf(user string) (chatbot.Role, bool) {
	switch {
	case user == "":
		return "", false
	case user == c.DonorID:
		return chatbot.RoleDonor, true
	case user == c.ReceiverID:
		return chatbot.RoleReceiver, true
	default:
		return "", false
	}
}

// CanView allows participants and admins.
func (c *Chat) CanView(user string, isAdmin bool) error {
	if isAdmin || c.IsParticipant(user) {
		return nil
	}
	return ErrForbidden
}

// EnsureCanPost checks the preconditions shared by every message-producing
// operation: the sender takes part in the chat and the chat is still open.
func (c *Chat) EnsureCanPost(sender string) error {
	if !c.IsParticipant(sender) {
		return ErrForbidden
	}
	if c.Status != StatusActive {
		return ErrChatClosed
	}
	return nil
}

// PostOutcome describes what a free-text post appended to the log.
type PostOutcome struct {
	Blocked  bool
	Category moderation.Category
	Appended []Message
}

// PostMessage runs text through moderation and appends either the user's
// message followed by an optional bot reply, or a single bot warning when the
// text is blocked. The blocked text itself is discarded.
func (c *Chat) PostMessage(sender, text string, now time.Time, mod Moderator, bot Responder) (PostOutcome, error) {
	if err := c.EnsureCanPost(sender); err != nil {
		return PostOutcome{}, err
	}
	content := strings.TrimSpace(text)
	if utf8.RuneCountInString(content) > MaxMessageLength {
		return PostOutcome{}, ErrMessageTooLong
	}
	if content == "" {
		return PostOutcome{}, ErrEmptyMessage
	}
	now = now.UTC()

	if mod != nil {
		if verdict := mod.Classify(content); !verdict.Allowed {
			warning := newMessage(sender, verdict.Warning, now)
			warning.IsBot = true
			warning.Category = verdict.Category
			c.append(now, warning)
			c.Record(MessageBlocked{ChatID: c.ID, SenderID: sender, Category: verdict.Category, At: now})
			return PostOutcome{Blocked: true, Category: verdict.Category, Appended: []Message{warning.clone()}}, nil
		}
	}

	msg := newMessage(sender, content, now)
	msg.ReadBy = []string{sender}
	appended := []Message{msg}
	c.append(now, msg)

	replied := false
	if bot != nil {
		role, _ := c.RoleOf(sender)
		state := chatbot.State{
			MessageCount:    len(c.Messages),
			PickupConfirmed: c.Pickup != nil && c.Pickup.ConfirmedByReceiver,
			SenderRole:      role,
		}
		if reply, ok := bot.Respond(content, state); ok {
			botMsg := newMessage(sender, reply, now)
			botMsg.IsBot = true
			c.append(now, botMsg)
			appended = append(appended, botMsg)
			replied = true
		}
	}
	c.Record(MessagePosted{ChatID: c.ID, MessageID: msg.ID, SenderID: sender, BotReplied: replied, At: now})
	return PostOutcome{Appended: cloneMessages(appended)}, nil
}

// PostQuickReply appends the canned phrase for key. Quick replies are
// pre-vetted and skip moderation, the bot and the length cap.
func (c *Chat) PostQuickReply(sender, key string, now time.Time) (Message, error) {
	if err := c.EnsureCanPost(sender); err != nil {
		return Message{}, err
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return Message{}, ErrEmptyMessage
	}
	now = now.UTC()
	msg := newMessage(sender, QuickReplyText(key), now)
	msg.IsQuickReply = true
	msg.ReadBy = []string{sender}
	c.append(now, msg)
	c.Record(MessagePosted{ChatID: c.ID, MessageID: msg.ID, SenderID: sender, QuickReply: true, At: now})
	return msg.clone(), nil
}

// SetPickup replaces the pickup proposal. Only the donor proposes pickups;
// the receiver answers through ConfirmPickup or the conversation.
func (c *Chat) SetPickup(sender, location string, date time.Time, at string, now time.Time) (Message, error) {
	if err := c.EnsureCanPost(sender); err != nil {
		return Message{}, err
	}
	if sender != c.DonorID {
		return Message{}, ErrForbidden
	}
	location = strings.TrimSpace(location)
	at = strings.TrimSpace(at)
	if location == "" || at == "" || date.IsZero() {
		return Message{}, fmt.Errorf("%w: location, date and time are required", ErrInvalidPickup)
	}
	now = now.UTC()
	c.Pickup = &PickupDetails{
		Location: location,
		Date:     time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC),
		Time:     at,
	}
	msg := newMessage(sender, c.Pickup.summary(), now)
	msg.IsSystem = true
	msg.IsBot = true
	c.append(now, msg)
	c.Record(PickupDetailsSet{
		ChatID:   c.ID,
		SetBy:    sender,
		Location: c.Pickup.Location,
		Date:     c.Pickup.Date.Format(DateLayout),
		Time:     c.Pickup.Time,
		At:       now,
	})
	return msg.clone(), nil
}

// ConfirmPickup records the receiver's agreement with the current proposal.
// It returns false when the proposal was already confirmed.
func (c *Chat) ConfirmPickup(sender string, now time.Time) (bool, error) {
	if err := c.EnsureCanPost(sender); err != nil {
		return false, err
	}
	if sender != c.ReceiverID {
		return false, ErrForbidden
	}
	if c.Pickup == nil {
		return false, ErrPickupNotSet
	}
	if c.Pickup.ConfirmedByReceiver {
		return false, nil
	}
	now = now.UTC()
	c.Pickup.ConfirmedByReceiver = true
	c.Pickup.ConfirmedAt = now
	msg := newMessage(sender, fmt.Sprintf(
		"✅ Pickup confirmed by the receiver: %s on %s at %s.",
		c.Pickup.Location, c.Pickup.Date.Format(DateLayout), c.Pickup.Time,
	), now)
	msg.IsSystem = true
	msg.IsBot = true
	msg.ReadBy = []string{sender}
	c.append(now, msg)
	c.Record(PickupConfirmed{ChatID: c.ID, ReceiverID: sender, At: now})
	return true, nil
}

// MarkRead acknowledges every message for user and returns how many were
// newly marked. Closed chats can still be read.
func (c *Chat) MarkRead(user string, now time.Time) (int, error) {
	if !c.IsParticipant(user) {
		return 0, ErrForbidden
	}
	marked := 0
	for i := range c.Messages {
		if c.Messages[i].HasRead(user) {
			continue
		}
		c.Messages[i].ReadBy = append(c.Messages[i].ReadBy, user)
		marked++
	}
	if marked > 0 {
		c.UpdatedAt = now.UTC()
	}
	return marked, nil
}

// UnreadCount returns the number of messages user has not acknowledged.
func (c *Chat) UnreadCount(user string) int {
	count := 0
	for _, m := range c.Messages {
		if !m.HasRead(user) {
			count++
		}
	}
	return count
}

// End closes the chat. Only the donor can end it and the transition is final.
func (c *Chat) End(sender string, now time.Time) error {
	if sender == "" || sender != c.DonorID {
		return ErrForbidden
	}
	if c.Status != StatusActive {
		return ErrChatClosed
	}
	now = now.UTC()
	c.Status = StatusCompleted
	msg := newMessage(sender, "🎁 The donor has marked this donation as completed. This chat is now closed. Thank you both for using Donateo!", now)
	msg.IsSystem = true
	msg.IsBot = true
	c.append(now, msg)
	c.Record(ChatEnded{ChatID: c.ID, ItemID: c.ItemID, DonorID: c.DonorID, At: now})
	return nil
}

// Report flags the chat for admin review. Reporting works in any status and a
// later report overwrites the earlier one.
func (c *Chat) Report(reporter, reason string, now time.Time) error {
	if !c.IsParticipant(reporter) {
		return ErrForbidden
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = DefaultReportReason
	}
	now = now.UTC()
	c.Reported = true
	c.ReportReason = reason
	c.ReportedBy = reporter
	c.ReportedAt = now
	c.UpdatedAt = now
	c.Record(ChatReported{ChatID: c.ID, ReportedBy: reporter, Reason: reason, At: now})
	return nil
}

// Counterpart returns the other participant.
func (c *Chat) Counterpart(user string) string {
	if user == c.DonorID {
		return c.ReceiverID
	}
	return c.DonorID
}

// Clone returns a deep copy without pending events.
func (c *Chat) Clone() *Chat {
	if c == nil {
		return nil
	}
	out := &Chat{
		ID:           c.ID,
		ItemID:       c.ItemID,
		ItemTitle:    c.ItemTitle,
		DonorID:      c.DonorID,
		ReceiverID:   c.ReceiverID,
		Status:       c.Status,
		Messages:     cloneMessages(c.Messages),
		Reported:     c.Reported,
		ReportReason: c.ReportReason,
		ReportedBy:   c.ReportedBy,
		ReportedAt:   c.ReportedAt,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
		Version:      c.Version,
	}
	if c.Pickup != nil {
		p := *c.Pickup
		out.Pickup = &p
	}
	return out
}

func (c *Chat) append(now time.Time, msgs ...Message) {
	c.Messages = append(c.Messages, msgs...)
	c.UpdatedAt = now
}

func cloneMessages(in []Message) []Message {
	out := make([]Message, len(in))
	for i, m := range in {
		out[i] = m.clone()
	}
	return out
}
