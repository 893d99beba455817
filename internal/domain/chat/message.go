package chat

import (
	"time"

	"github.com/google/uuid"

	"donateo/internal/domain/moderation"
)

// MaxMessageLength caps user-authored free text, counted in characters.
const MaxMessageLength = 500

// Message is one entry of the append-only chat log. Bot and system lines are
// attributed to the participant whose action produced them.
type Message struct {
	ID           string
	Sender       string
	Content      string
	IsBot        bool
	IsSystem     bool
	IsQuickReply bool
	// Category is set on moderation warnings only.
	Category  moderation.Category
	ReadBy    []string
	Timestamp time.Time
}

// HasRead reports whether user acknowledged the message.
func (m Message) HasRead(user string) bool {
	for _, id := range m.ReadBy {
		if id == user {
			return true
		}
	}
	return false
}

func (m Message) clone() Message {
	m.ReadBy = append([]string(nil), m.ReadBy...)
	return m
}

func newMessage(sender, content string, at time.Time) Message {
	return Message{
		ID:        uuid.NewString(),
		Sender:    sender,
		Content:   content,
		ReadBy:    []string{},
		Timestamp: at,
	}
}

// Quick reply keys understood by SendQuickReply.
const (
	QuickReplyReady         = "ready"
	QuickReplyNotAvailable  = "not_available"
	QuickReplyReschedule    = "reschedule"
	QuickReplyConfirmPickup = "confirm_pickup"
	QuickReplyThankYou      = "thank_you"
	QuickReplyOnMyWay       = "on_my_way"
)

var quickReplies = map[string]string{
	QuickReplyReady:         "👍 I'm ready for the pickup.",
	QuickReplyNotAvailable:  "🙁 Sorry, I'm not available at that time.",
	QuickReplyReschedule:    "📅 Can we reschedule the pickup?",
	QuickReplyConfirmPickup: "✅ I confirm the pickup details.",
	QuickReplyThankYou:      "🙏 Thank you so much!",
	QuickReplyOnMyWay:       "🚶 I'm on my way!",
}

// QuickReplyText resolves a quick reply key to its canned phrase. Unknown keys
// are passed through literally.
func QuickReplyText(key string) string {
	if phrase, ok := quickReplies[key]; ok {
		return phrase
	}
	return key
}

// QuickReplyKeys lists the known keys in display order.
func QuickReplyKeys() []string {
	return []string{
		QuickReplyReady,
		QuickReplyNotAvailable,
		QuickReplyReschedule,
		QuickReplyConfirmPickup,
		QuickReplyThankYou,
		QuickReplyOnMyWay,
	}
}
