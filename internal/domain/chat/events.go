package chat

import (
	"time"

	"donateo/internal/domain/moderation"
)

type ChatCreated struct {
	ChatID     ID        `json:"chat_id"`
	ItemID     string    `json:"item_id"`
	DonorID    string    `json:"donor_id"`
	ReceiverID string    `json:"receiver_id"`
	At         time.Time `json:"at"`
}

func (e ChatCreated) EventName() string     { return "chat.created" }
func (e ChatCreated) AggregateID() string   { return string(e.ChatID) }
func (e ChatCreated) OccurredAt() time.Time { return e.At }

type MessagePosted struct {
	ChatID     ID        `json:"chat_id"`
	MessageID  string    `json:"message_id"`
	SenderID   string    `json:"sender_id"`
	QuickReply bool      `json:"quick_reply"`
	BotReplied bool      `json:"bot_replied"`
	At         time.Time `json:"at"`
}

func (e MessagePosted) EventName() string     { return "chat.message_posted" }
func (e MessagePosted) AggregateID() string   { return string(e.ChatID) }
func (e MessagePosted) OccurredAt() time.Time { return e.At }

type MessageBlocked struct {
	ChatID   ID                  `json:"chat_id"`
	SenderID string              `json:"sender_id"`
	Category moderation.Category `json:"category"`
	At       time.Time           `json:"at"`
}

func (e MessageBlocked) EventName() string     { return "chat.message_blocked" }
func (e MessageBlocked) AggregateID() string   { return string(e.ChatID) }
func (e MessageBlocked) OccurredAt() time.Time { return e.At }

type PickupDetailsSet struct {
	ChatID   ID        `json:"chat_id"`
	SetBy    string    `json:"set_by"`
	Location string    `json:"location"`
	Date     string    `json:"date"`
	Time     string    `json:"time"`
	At       time.Time `json:"at"`
}

func (e PickupDetailsSet) EventName() string     { return "chat.pickup_details_set" }
func (e PickupDetailsSet) AggregateID() string   { return string(e.ChatID) }
func (e PickupDetailsSet) OccurredAt() time.Time { return e.At }

type PickupConfirmed struct {
	ChatID     ID        `json:"chat_id"`
	ReceiverID string    `json:"receiver_id"`
	At         time.Time `json:"at"`
}

func (e PickupConfirmed) EventName() string     { return "chat.pickup_confirmed" }
func (e PickupConfirmed) AggregateID() string   { return string(e.ChatID) }
func (e PickupConfirmed) OccurredAt() time.Time { return e.At }

type ChatEnded struct {
	ChatID  ID        `json:"chat_id"`
	ItemID  string    `json:"item_id"`
	DonorID string    `json:"donor_id"`
	At      time.Time `json:"at"`
}

func (e ChatEnded) EventName() string     { return "chat.ended" }
func (e ChatEnded) AggregateID() string   { return string(e.ChatID) }
func (e ChatEnded) OccurredAt() time.Time { return e.At }

type ChatReported struct {
	ChatID     ID        `json:"chat_id"`
	ReportedBy string    `json:"reported_by"`
	Reason     string    `json:"reason"`
	At         time.Time `json:"at"`
}

func (e ChatReported) EventName() string     { return "chat.reported" }
func (e ChatReported) AggregateID() string   { return string(e.ChatID) }
func (e ChatReported) OccurredAt() time.Time { return e.At }
