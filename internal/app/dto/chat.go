package dto

import (
	"fmt"
	"time"

	domainchat "donateo/internal/domain/chat"
	"donateo/internal/domain/moderation"
)

// Chat is the full external representation of a pickup chat.
type Chat struct {
	ID            string         `json:"id"`
	ItemID        string         `json:"item_id"`
	ItemTitle     string         `json:"item_title,omitempty"`
	DonorID       string         `json:"donor_id"`
	ReceiverID    string         `json:"receiver_id"`
	Status        string         `json:"status"`
	Messages      []ChatMessage  `json:"messages"`
	PickupDetails *PickupDetails `json:"pickup_details,omitempty"`
	Reported      bool           `json:"reported"`
	ReportReason  string         `json:"report_reason,omitempty"`
	ReportedBy    string         `json:"reported_by,omitempty"`
	ReportedAt    *time.Time     `json:"reported_at,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	Version       int64          `json:"version"`
}

// ChatMessage is a single log entry.
type ChatMessage struct {
	ID           string    `json:"id"`
	Sender       string    `json:"sender"`
	Content      string    `json:"content"`
	IsBot        bool      `json:"is_bot"`
	IsSystem     bool      `json:"is_system"`
	IsQuickReply bool      `json:"is_quick_reply"`
	Category     string    `json:"warning_category,omitempty"`
	ReadBy       []string  `json:"read_by"`
	Timestamp    time.Time `json:"timestamp"`
}

// PickupDetails carries the handover proposal; Date uses YYYY-MM-DD.
type PickupDetails struct {
	Location            string     `json:"location"`
	Date                string     `json:"date"`
	Time                string     `json:"time"`
	ConfirmedByReceiver bool       `json:"confirmed_by_receiver"`
	ConfirmedAt         *time.Time `json:"confirmed_at,omitempty"`
}

// ChatSummary is the list view of a chat for one viewer.
type ChatSummary struct {
	ID          string       `json:"id"`
	ItemID      string       `json:"item_id"`
	ItemTitle   string       `json:"item_title,omitempty"`
	DonorID     string       `json:"donor_id"`
	ReceiverID  string       `json:"receiver_id"`
	Status      string       `json:"status"`
	Reported    bool         `json:"reported"`
	LastMessage *ChatMessage `json:"last_message,omitempty"`
	UnreadCount int          `json:"unread_count"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// ChatList is a collection ordered by most recent activity.
type ChatList struct {
	Items []ChatSummary `json:"items"`
}

// CreateChatResult reports whether the chat was opened by this call.
type CreateChatResult struct {
	Chat    Chat `json:"chat"`
	Created bool `json:"created"`
}

// PostResult is returned by message-producing commands.
type PostResult struct {
	Chat            Chat   `json:"chat"`
	Blocked         bool   `json:"blocked"`
	WarningCategory string `json:"warning_category,omitempty"`
}

// MarkReadResult reports how many messages were newly acknowledged.
type MarkReadResult struct {
	Marked int `json:"marked"`
}

// MapChat builds the external representation of a chat.
func MapChat(c *domainchat.Chat) Chat {
	if c == nil {
		return Chat{}
	}
	out := Chat{
		ID:           string(c.ID),
		ItemID:       c.ItemID,
		ItemTitle:    c.ItemTitle,
		DonorID:      c.DonorID,
		ReceiverID:   c.ReceiverID,
		Status:       string(c.Status),
		Messages:     make([]ChatMessage, 0, len(c.Messages)),
		Reported:     c.Reported,
		ReportReason: c.ReportReason,
		ReportedBy:   c.ReportedBy,
		ReportedAt:   timePtr(c.ReportedAt),
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
		Version:      c.Version,
	}
	for _, m := range c.Messages {
		out.Messages = append(out.Messages, MapMessage(m))
	}
	if c.Pickup != nil {
		out.PickupDetails = &PickupDetails{
			Location:            c.Pickup.Location,
			Date:                c.Pickup.Date.Format(domainchat.DateLayout),
			Time:                c.Pickup.Time,
			ConfirmedByReceiver: c.Pickup.ConfirmedByReceiver,
			ConfirmedAt:         timePtr(c.Pickup.ConfirmedAt),
		}
	}
	return out
}

// MapMessage builds the external representation of a message.
func MapMessage(m domainchat.Message) ChatMessage {
	readBy := append([]string{}, m.ReadBy...)
	return ChatMessage{
		ID:           m.ID,
		Sender:       m.Sender,
		Content:      m.Content,
		IsBot:        m.IsBot,
		IsSystem:     m.IsSystem,
		IsQuickReply: m.IsQuickReply,
		Category:     string(m.Category),
		ReadBy:       readBy,
		Timestamp:    m.Timestamp,
	}
}

// MapChatSummary builds the list view of c as seen by viewer.
func MapChatSummary(c *domainchat.Chat, viewer string) ChatSummary {
	summary := ChatSummary{
		ID:         string(c.ID),
		ItemID:     c.ItemID,
		ItemTitle:  c.ItemTitle,
		DonorID:    c.DonorID,
		ReceiverID: c.ReceiverID,
		Status:     string(c.Status),
		Reported:   c.Reported,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
	if n := len(c.Messages); n > 0 {
		last := MapMessage(c.Messages[n-1])
		summary.LastMessage = &last
	}
	if c.IsParticipant(viewer) {
		summary.UnreadCount = c.UnreadCount(viewer)
	}
	return summary
}

// ToDomain rebuilds the aggregate from its external representation.
func (d Chat) ToDomain() (*domainchat.Chat, error) {
	c := &domainchat.Chat{
		ID:           domainchat.ID(d.ID),
		ItemID:       d.ItemID,
		ItemTitle:    d.ItemTitle,
		DonorID:      d.DonorID,
		ReceiverID:   d.ReceiverID,
		Status:       domainchat.Status(d.Status),
		Messages:     make([]domainchat.Message, 0, len(d.Messages)),
		Reported:     d.Reported,
		ReportReason: d.ReportReason,
		ReportedBy:   d.ReportedBy,
		ReportedAt:   timeValue(d.ReportedAt),
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
		Version:      d.Version,
	}
	switch c.Status {
	case domainchat.StatusActive, domainchat.StatusCompleted:
	default:
		return nil, fmt.Errorf("%w: unknown status %q", domainchat.ErrInvalidArgument, d.Status)
	}
	for _, m := range d.Messages {
		c.Messages = append(c.Messages, domainchat.Message{
			ID:           m.ID,
			Sender:       m.Sender,
			Content:      m.Content,
			IsBot:        m.IsBot,
			IsSystem:     m.IsSystem,
			IsQuickReply: m.IsQuickReply,
			Category:     moderation.Category(m.Category),
			ReadBy:       append([]string{}, m.ReadBy...),
			Timestamp:    m.Timestamp,
		})
	}
	if d.PickupDetails != nil {
		date, err := domainchat.ParsePickupDate(d.PickupDetails.Date)
		if err != nil {
			return nil, err
		}
		c.Pickup = &domainchat.PickupDetails{
			Location:            d.PickupDetails.Location,
			Date:                date,
			Time:                d.PickupDetails.Time,
			ConfirmedByReceiver: d.PickupDetails.ConfirmedByReceiver,
			ConfirmedAt:         timeValue(d.PickupDetails.ConfirmedAt),
		}
	}
	return c, nil
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	v := t
	return &v
}

func timeValue(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
