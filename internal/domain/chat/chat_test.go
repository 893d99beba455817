package chat

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"donateo/internal/domain/chatbot"
	"donateo/internal/domain/moderation"
)

const (
	donor    = "donor-1"
	receiver = "receiver-1"
)

var t0 = time.Date(2025, 1, 8, 9, 0, 0, 0, time.UTC)

func newTestChat(t *testing.T) *Chat {
	t.Helper()
	c, err := NewChat(CreateParams{
		ID:         "chat-1",
		ItemID:     "item-1",
		ItemTitle:  "Blue Jacket",
		DonorID:    donor,
		ReceiverID: receiver,
		CreatedAt:  t0,
	})
	require.NoError(t, err)
	c.ClearEvents()
	return c
}

func post(t *testing.T, c *Chat, sender, text string) PostOutcome {
	t.Helper()
	out, err := c.PostMessage(sender, text, t0.Add(time.Minute), moderation.NewFilter(), chatbot.NewResponder())
	require.NoError(t, err)
	return out
}

func TestNewChatSeedsOnboarding(t *testing.T) {
	c, err := NewChat(CreateParams{ID: "c", ItemID: "i", ItemTitle: " Blue Jacket ", DonorID: donor, ReceiverID: receiver, CreatedAt: t0})
	require.NoError(t, err)

	assert.Equal(t, StatusActive, c.Status)
	assert.Equal(t, "Blue Jacket", c.ItemTitle)
	require.Len(t, c.Messages, 2)
	assert.True(t, c.Messages[0].IsSystem)
	assert.Contains(t, c.Messages[0].Content, `"Blue Jacket"`)
	assert.True(t, c.Messages[1].IsBot)
	assert.False(t, c.Messages[1].IsSystem)
	for _, m := range c.Messages {
		assert.Equal(t, donor, m.Sender)
	}
	require.Len(t, c.PendingEvents(), 1)
	assert.Equal(t, "chat.created", c.PendingEvents()[0].EventName())
}

func TestNewChatValidates(t *testing.T) {
	_, err := NewChat(CreateParams{ID: "c", ItemID: "i", DonorID: donor, CreatedAt: t0})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = NewChat(CreateParams{ID: "c", ItemID: "i", DonorID: donor, ReceiverID: donor, CreatedAt: t0})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestPostMessageBlockedPaymentDiscardsText(t *testing.T) {
	c := newTestChat(t)
	out := post(t, c, receiver, "can I pay $5 for this?")

	assert.True(t, out.Blocked)
	assert.Equal(t, moderation.CategoryPayment, out.Category)
	require.Len(t, c.Messages, 3)
	warning := c.Messages[2]
	assert.True(t, warning.IsBot)
	assert.Equal(t, receiver, warning.Sender)
	assert.Equal(t, moderation.WarningPayment, warning.Content)
	assert.Equal(t, moderation.CategoryPayment, warning.Category)
	for _, m := range c.Messages {
		assert.NotContains(t, m.Content, "$5")
	}
	require.Len(t, c.PendingEvents(), 1)
	assert.Equal(t, "chat.message_blocked", c.PendingEvents()[0].EventName())
}

func TestPostMessageAppendsUserAndBotReply(t *testing.T) {
	c := newTestChat(t)
	out := post(t, c, donor, "When can you pick up?")

	assert.False(t, out.Blocked)
	require.Len(t, out.Appended, 2)
	require.Len(t, c.Messages, 4)
	user, bot := c.Messages[2], c.Messages[3]
	assert.Equal(t, "When can you pick up?", user.Content)
	assert.False(t, user.IsBot)
	assert.Equal(t, []string{donor}, user.ReadBy)
	assert.True(t, bot.IsBot)
	assert.Equal(t, donor, bot.Sender)
	assert.Equal(t, chatbot.ReplyPickupDonor, bot.Content)
	assert.Equal(t, t0.Add(time.Minute), c.UpdatedAt)
}

func TestPostMessageBotFallbackStopsAfterThreshold(t *testing.T) {
	c := newTestChat(t)
	post(t, c, receiver, "hello")
	require.Len(t, c.Messages, 4, "fallback reply while the chat is young")

	post(t, c, receiver, "hello again")
	assert.Len(t, c.Messages, 5, "no fallback once the chat has enough messages")
}

func TestPostMessageLengthCap(t *testing.T) {
	c := newTestChat(t)

	_, err := c.PostMessage(receiver, strings.Repeat("é", MaxMessageLength+1), t0, nil, nil)
	assert.ErrorIs(t, err, ErrMessageTooLong)
	assert.Len(t, c.Messages, 2)

	_, err = c.PostMessage(receiver, strings.Repeat("é", MaxMessageLength), t0, nil, nil)
	assert.NoError(t, err)

	_, err = c.PostMessage(receiver, "   ", t0, nil, nil)
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestPostMessageRejectsStrangers(t *testing.T) {
	c := newTestChat(t)
	_, err := c.PostMessage("stranger", "hi", t0, nil, nil)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = c.PostQuickReply("stranger", QuickReplyReady, t0)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestQuickReply(t *testing.T) {
	c := newTestChat(t)

	msg, err := c.PostQuickReply(receiver, QuickReplyOnMyWay, t0)
	require.NoError(t, err)
	assert.Equal(t, quickReplies[QuickReplyOnMyWay], msg.Content)
	assert.True(t, msg.IsQuickReply)
	assert.False(t, msg.IsBot)
	assert.Equal(t, []string{receiver}, msg.ReadBy)

	long := strings.Repeat("x", MaxMessageLength+50) + " paypal"
	msg, err = c.PostQuickReply(receiver, long, t0)
	require.NoError(t, err)
	assert.Equal(t, long, msg.Content, "unknown keys pass through unmoderated and uncapped")
	assert.Len(t, c.Messages, 4)
}

func TestSetPickupReplacesAndResetsConfirmation(t *testing.T) {
	c := newTestChat(t)
	date := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)

	_, err := c.SetPickup(donor, "Lotus Park", date, "10:00", t0)
	require.NoError(t, err)
	ok, err := c.ConfirmPickup(receiver, t0)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, c.Pickup.ConfirmedByReceiver)

	ok, err = c.ConfirmPickup(receiver, t0)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = c.SetPickup(donor, "Central Library", date.AddDate(0, 0, 1), "16:30", t0)
	require.NoError(t, err)
	assert.Equal(t, PickupDetails{Location: "Central Library", Date: date.AddDate(0, 0, 1), Time: "16:30"}, *c.Pickup)
}

func TestSetPickupRules(t *testing.T) {
	c := newTestChat(t)
	date := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)

	_, err := c.SetPickup(receiver, "Lotus Park", date, "10:00", t0)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = c.SetPickup(donor, " ", date, "10:00", t0)
	assert.ErrorIs(t, err, ErrInvalidPickup)
	_, err = c.ConfirmPickup(receiver, t0)
	assert.ErrorIs(t, err, ErrPickupNotSet)

	_, err = c.SetPickup(donor, "Lotus Park", date, "10:00", t0)
	require.NoError(t, err)
	_, err = c.ConfirmPickup(donor, t0)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestParsePickupDate(t *testing.T) {
	d, err := ParsePickupDate(" 2025-01-10 ")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC), d)

	_, err = ParsePickupDate("10/01/2025")
	assert.ErrorIs(t, err, ErrInvalidPickup)
}

func TestMarkReadIsIdempotent(t *testing.T) {
	c := newTestChat(t)
	post(t, c, donor, "Hi! The jacket is ready.")
	assert.Equal(t, 4, c.UnreadCount(receiver))

	n, err := c.MarkRead(receiver, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	first := c.Clone()

	n, err = c.MarkRead(receiver, t0.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, first, c.Clone())
	for _, m := range c.Messages {
		count := 0
		for _, id := range m.ReadBy {
			if id == receiver {
				count++
			}
		}
		assert.Equal(t, 1, count)
	}

	_, err = c.MarkRead("stranger", t0)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestEndChat(t *testing.T) {
	c := newTestChat(t)

	assert.ErrorIs(t, c.End(receiver, t0), ErrForbidden)
	assert.Equal(t, StatusActive, c.Status)

	require.NoError(t, c.End(donor, t0))
	assert.Equal(t, StatusCompleted, c.Status)
	last := c.Messages[len(c.Messages)-1]
	assert.True(t, last.IsSystem)
	assert.True(t, last.IsBot)

	assert.ErrorIs(t, c.End(donor, t0), ErrChatClosed)
	for _, who := range []string{donor, receiver} {
		_, err := c.PostMessage(who, "one more thing", t0, nil, nil)
		assert.ErrorIs(t, err, ErrChatClosed)
	}
	_, err := c.PostQuickReply(receiver, QuickReplyThankYou, t0)
	assert.ErrorIs(t, err, ErrChatClosed)

	n, err := c.MarkRead(receiver, t0)
	require.NoError(t, err)
	assert.Positive(t, n)
	assert.NoError(t, c.Report(receiver, "no-show", t0))
}

func TestReportOverwrites(t *testing.T) {
	c := newTestChat(t)

	require.NoError(t, c.Report(receiver, "  ", t0))
	assert.True(t, c.Reported)
	assert.Equal(t, DefaultReportReason, c.ReportReason)

	later := t0.Add(time.Hour)
	require.NoError(t, c.Report(donor, "rude messages", later))
	assert.Equal(t, donor, c.ReportedBy)
	assert.Equal(t, "rude messages", c.ReportReason)
	assert.Equal(t, later, c.ReportedAt)
	assert.Len(t, c.Messages, 2)

	assert.ErrorIs(t, c.Report("stranger", "spam", t0), ErrForbidden)
}

func TestCanView(t *testing.T) {
	c := newTestChat(t)
	assert.NoError(t, c.CanView(donor, false))
	assert.NoError(t, c.CanView(receiver, false))
	assert.NoError(t, c.CanView("admin-1", true))
	assert.ErrorIs(t, c.CanView("stranger", false), ErrForbidden)
}

func TestBlueJacketScenario(t *testing.T) {
	c := newTestChat(t)

	out := post(t, c, receiver, "What is your address?")
	assert.True(t, out.Blocked)
	assert.Equal(t, moderation.CategoryContact, out.Category)
	assert.Contains(t, c.Messages[len(c.Messages)-1].Content, "general area")
	for _, m := range c.Messages {
		assert.NotEqual(t, "What is your address?", m.Content)
	}

	date, err := ParsePickupDate("2025-01-10")
	require.NoError(t, err)
	msg, err := c.SetPickup(donor, "Lotus Park", date, "10:00", t0.Add(time.Hour))
	require.NoError(t, err)

	require.NotNil(t, c.Pickup)
	assert.Equal(t, "Lotus Park", c.Pickup.Location)
	assert.Equal(t, "10:00", c.Pickup.Time)
	assert.False(t, c.Pickup.ConfirmedByReceiver)
	assert.True(t, msg.IsSystem)
	for _, part := range []string{"Lotus Park", "2025-01-10", "10:00"} {
		assert.Contains(t, msg.Content, part)
	}
	assert.Equal(t, msg.Content, c.Messages[len(c.Messages)-1].Content)
}

func TestCloneIsDeep(t *testing.T) {
	c := newTestChat(t)
	_, err := c.SetPickup(donor, "Lotus Park", time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC), "10:00", t0)
	require.NoError(t, err)

	cp := c.Clone()
	cp.Messages[0].ReadBy = append(cp.Messages[0].ReadBy, "x")
	cp.Pickup.Location = "elsewhere"

	assert.Empty(t, c.Messages[0].ReadBy)
	assert.Equal(t, "Lotus Park", c.Pickup.Location)
	assert.Empty(t, cp.PendingEvents())
}
