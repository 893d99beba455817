package chatbot

import (
	"regexp"
	"strings"
)

// Role is the sender's side of the donation.
type Role string

const (
	RoleDonor    Role = "donor"
	RoleReceiver Role = "receiver"
)

// FallbackThreshold is the conversation length below which the bot still
// nudges participants even when no keyword matched.
const FallbackThreshold = 5

// Scripted replies.
const (
	ReplyPickupDonor      = "📦 Ready to arrange the handover? Use the pickup details form to share a location, date and time. The receiver will be asked to confirm."
	ReplyPickupReceiver   = "📦 The donor will share the pickup details shortly. You'll get a notification as soon as they're set."
	ReplyLocation         = "📍 For everyone's safety, please share only a general area or a public landmark for the handover, never a full home address."
	ReplyScheduleDonor    = "🕒 What date and time works best for you? You can propose a slot using the pickup details form."
	ReplyScheduleReceiver = "🕒 Thank you! The donor will confirm the final pickup date and time shortly."
	ReplyCondition        = "🔎 Feel free to ask about the item's condition. Donors, please describe any wear or defects honestly so there are no surprises at pickup."
	ReplyConfirmation     = "✅ Wonderful! Once you confirm the pickup details, please arrive on time and bring a bag if needed."
	ReplyThanks           = "💚 You're welcome! Thank you for being part of the Donateo community."
	ReplyFallback         = "Please coordinate the pickup location, date, and time. Once both parties confirm, you'll receive a summary."
)

// State is the slice of conversation state the bot is allowed to look at.
type State struct {
	// MessageCount includes the message being answered.
	MessageCount    int
	PickupConfirmed bool
	SenderRole      Role
}

type rule struct {
	match func(lower string) bool
	reply func(state State) string
}

// Responder produces scripted guidance. Rules are evaluated in order and the
// first rule yielding a reply wins; a rule may decline and let later rules run.
type Responder struct {
	rules []rule
}

// NewResponder builds the responder with the platform's rule set.
func NewResponder() *Responder {
	return &Responder{rules: []rule{
		{
			match: keywords("pickup", "pick up", "pick-up", "collect", "collection"),
			reply: byRole(ReplyPickupDonor, ReplyPickupReceiver),
		},
		{
			match: keywords("where", "location", "place", "area", "landmark"),
			reply: always(ReplyLocation),
		},
		{
			match: keywords("date", "time", "when", "today", "tomorrow", "weekend"),
			reply: byRole(ReplyScheduleDonor, ReplyScheduleReceiver),
		},
		{
			match: keywords("condition", "damage", "damaged", "broken", "working", "quality", "size", "stain", "stains", "defect", "defects"),
			reply: always(ReplyCondition),
		},
		{
			match: keywords("confirm", "confirmed", "yes", "ok", "okay", "agree", "agreed"),
			reply: func(state State) string {
				if state.SenderRole != RoleReceiver || state.PickupConfirmed {
					return ""
				}
				return ReplyConfirmation
			},
		},
		{
			match: keywords("thank", "thanks", "thx", "appreciate", "appreciated"),
			reply: always(ReplyThanks),
		},
		{
			match: func(string) bool { return true },
			reply: func(state State) string {
				if state.MessageCount < FallbackThreshold {
					return ReplyFallback
				}
				return ""
			},
		},
	}}
}

// Respond returns the bot reply for text, or false when the bot stays quiet.
func (r *Responder) Respond(text string, state State) (string, bool) {
	lower := strings.ToLower(text)
	for _, rl := range r.rules {
		if !rl.match(lower) {
			continue
		}
		if reply := rl.reply(state); reply != "" {
			return reply, true
		}
	}
	return "", false
}

func keywords(list ...string) func(string) bool {
	quoted := make([]string, 0, len(list))
	for _, w := range list {
		quoted = append(quoted, regexp.QuoteMeta(w))
	}
	re := regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`)
	return re.MatchString
}

func always(reply string) func(State) string {
	return func(State) string { return reply }
}

func byRole(donor, receiver string) func(State) string {
	return func(state State) string {
		if state.SenderRole == RoleDonor {
			return donor
		}
		return receiver
	}
}
