package dto

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainchat "donateo/internal/domain/chat"
	"donateo/internal/domain/chatbot"
	"donateo/internal/domain/moderation"
)

func buildChat(t *testing.T) *domainchat.Chat {
	t.Helper()
	at := time.Date(2025, 1, 8, 9, 0, 0, 0, time.UTC)
	c, err := domainchat.NewChat(domainchat.CreateParams{
		ID: "chat-1", ItemID: "item-1", ItemTitle: "Blue Jacket",
		DonorID: "donor", ReceiverID: "receiver", CreatedAt: at,
	})
	require.NoError(t, err)

	filter, bot := moderation.NewFilter(), chatbot.NewResponder()
	_, err = c.PostMessage("receiver", "What is your address?", at.Add(time.Minute), filter, bot)
	require.NoError(t, err)
	_, err = c.PostMessage("donor", "When can you pick up?", at.Add(2*time.Minute), filter, bot)
	require.NoError(t, err)
	_, err = c.PostQuickReply("receiver", domainchat.QuickReplyReady, at.Add(3*time.Minute))
	require.NoError(t, err)
	_, err = c.SetPickup("donor", "Lotus Park", time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC), "10:00", at.Add(4*time.Minute))
	require.NoError(t, err)
	_, err = c.ConfirmPickup("receiver", at.Add(5*time.Minute))
	require.NoError(t, err)
	_, err = c.MarkRead("donor", at.Add(6*time.Minute))
	require.NoError(t, err)
	require.NoError(t, c.Report("receiver", "late again", at.Add(7*time.Minute)))
	require.NoError(t, c.End("donor", at.Add(8*time.Minute)))
	return c
}

func TestChatRoundTripThroughJSON(t *testing.T) {
	c := buildChat(t)

	raw, err := json.Marshal(MapChat(c))
	require.NoError(t, err)
	var decoded Chat
	require.NoError(t, json.Unmarshal(raw, &decoded))
	back, err := decoded.ToDomain()
	require.NoError(t, err)

	c.ClearEvents()
	assert.Equal(t, c, back)

	flags := make([][3]bool, 0, len(back.Messages))
	for _, m := range back.Messages {
		flags = append(flags, [3]bool{m.IsBot, m.IsSystem, m.IsQuickReply})
	}
	assert.Equal(t, [][3]bool{
		{true, true, false},
		{true, false, false},
		{true, false, false},
		{false, false, false},
		{true, false, false},
		{false, false, true},
		{true, true, false},
		{true, true, false},
		{true, true, false},
	}, flags)
}

func TestToDomainRejectsUnknownStatus(t *testing.T) {
	d := MapChat(buildChat(t))
	d.Status = "archived"
	_, err := d.ToDomain()
	assert.ErrorIs(t, err, domainchat.ErrInvalidArgument)

	d = MapChat(buildChat(t))
	d.PickupDetails.Date = "tomorrow"
	_, err = d.ToDomain()
	assert.ErrorIs(t, err, domainchat.ErrInvalidPickup)
}

func TestMapChatSummary(t *testing.T) {
	c := buildChat(t)

	s := MapChatSummary(c, "receiver")
	require.NotNil(t, s.LastMessage)
	assert.Equal(t, c.Messages[len(c.Messages)-1].Content, s.LastMessage.Content)
	assert.Equal(t, c.UnreadCount("receiver"), s.UnreadCount)
	assert.Equal(t, 1, MapChatSummary(c, "donor").UnreadCount, "only the closing line is unread")
	assert.Zero(t, MapChatSummary(c, "admin").UnreadCount)
	assert.Equal(t, "completed", s.Status)
	assert.True(t, s.Reported)
}
