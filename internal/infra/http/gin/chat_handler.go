package ginserver

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"donateo/internal/app/commands"
	"donateo/internal/app/dto"
	chatapp "donateo/internal/app/handlers/chats"
	"donateo/internal/app/middleware"
	"donateo/internal/app/queries"
	domainchat "donateo/internal/domain/chat"
)

// ChatHandler exposes the pickup chat engine over HTTP.
type ChatHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

type createChatRequest struct {
	ItemID     string `json:"item_id"`
	ReceiverID string `json:"receiver_id"`
}

// Create opens the chat for an approved request; 201 when new, 200 when it existed.
func (h ChatHandler) Create(c *gin.Context) {
	p, ok := requireRole(c, "")
	if !ok {
		return
	}
	var req createChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	res, err := commands.Dispatch[chatapp.CreateChatCommand, dto.CreateChatResult](c.Request.Context(), h.Commands, chatapp.CreateChatCommand{
		ItemID:       req.ItemID,
		ReceiverID:   req.ReceiverID,
		ActorID:      p.ID,
		ActorIsAdmin: p.IsAdmin(),
	})
	if err != nil {
		h.respondError(c, err, "create chat", "item_id", req.ItemID, "user_id", p.ID)
		return
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	c.JSON(status, res)
}

func (h ChatHandler) ListMine(c *gin.Context) {
	p, ok := requireRole(c, "")
	if !ok {
		return
	}
	list, err := queries.Ask[chatapp.ListMyChatsQuery, dto.ChatList](c.Request.Context(), h.Queries, chatapp.ListMyChatsQuery{UserID: p.ID})
	if err != nil {
		h.respondError(c, err, "list chats", "user_id", p.ID)
		return
	}
	c.JSON(http.StatusOK, list)
}

// ListAll is the admin moderation view.
func (h ChatHandler) ListAll(c *gin.Context) {
	p, ok := requireRole(c, roleAdmin)
	if !ok {
		return
	}
	list, err := queries.Ask[chatapp.ListAllChatsQuery, dto.ChatList](c.Request.Context(), h.Queries, chatapp.ListAllChatsQuery{RequesterID: p.ID})
	if err != nil {
		h.respondError(c, err, "list all chats", "user_id", p.ID)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h ChatHandler) Lookup(c *gin.Context) {
	p, ok := requireRole(c, "")
	if !ok {
		return
	}
	q := chatapp.FindChatQuery{
		ItemID:      c.Query("item_id"),
		DonorID:     c.Query("donor_id"),
		ReceiverID:  c.Query("receiver_id"),
		RequesterID: p.ID,
		IsAdmin:     p.IsAdmin(),
	}
	chat, err := queries.Ask[chatapp.FindChatQuery, dto.Chat](c.Request.Context(), h.Queries, q)
	if err != nil {
		h.respondError(c, err, "lookup chat", "item_id", q.ItemID, "user_id", p.ID)
		return
	}
	c.JSON(http.StatusOK, chat)
}

func (h ChatHandler) Get(c *gin.Context) {
	p, ok := requireRole(c, "")
	if !ok {
		return
	}
	chatID := c.Param("id")
	chat, err := queries.Ask[chatapp.GetChatQuery, dto.Chat](c.Request.Context(), h.Queries, chatapp.GetChatQuery{
		ChatID:      chatID,
		RequesterID: p.ID,
		IsAdmin:     p.IsAdmin(),
	})
	if err != nil {
		h.respondError(c, err, "get chat", "chat_id", chatID, "user_id", p.ID)
		return
	}
	c.JSON(http.StatusOK, chat)
}

func (h ChatHandler) SendMessage(c *gin.Context) {
	p, ok := requireRole(c, "")
	if !ok {
		return
	}
	var req struct {
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	chatID := c.Param("id")
	res, err := commands.Dispatch[chatapp.SendMessageCommand, dto.PostResult](c.Request.Context(), h.Commands, chatapp.SendMessageCommand{
		ChatID:     chatID,
		SenderID:   p.ID,
		Text:       req.Content,
		RequestKey: strings.TrimSpace(c.GetHeader("Idempotency-Key")),
	})
	if err != nil {
		h.respondError(c, err, "send message", "chat_id", chatID, "user_id", p.ID)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h ChatHandler) SendQuickReply(c *gin.Context) {
	p, ok := requireRole(c, "")
	if !ok {
		return
	}
	var req struct {
		Key string `json:"key"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	chatID := c.Param("id")
	res, err := commands.Dispatch[chatapp.SendQuickReplyCommand, dto.PostResult](c.Request.Context(), h.Commands, chatapp.SendQuickReplyCommand{
		ChatID:   chatID,
		SenderID: p.ID,
		ReplyKey: req.Key,
	})
	if err != nil {
		h.respondError(c, err, "send quick reply", "chat_id", chatID, "user_id", p.ID)
		return
	}
	c.JSON(http.StatusCreated, res)
}

type pickupRequest struct {
	Location string `json:"location"`
	Date     string `json:"date"`
	Time     string `json:"time"`
}

func (h ChatHandler) SetPickup(c *gin.Context) {
	p, ok := requireRole(c, "")
	if !ok {
		return
	}
	var req pickupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	chatID := c.Param("id")
	res, err := commands.Dispatch[chatapp.SetPickupDetailsCommand, dto.PostResult](c.Request.Context(), h.Commands, chatapp.SetPickupDetailsCommand{
		ChatID:   chatID,
		SenderID: p.ID,
		Location: req.Location,
		Date:     req.Date,
		Time:     req.Time,
	})
	if err != nil {
		h.respondError(c, err, "set pickup", "chat_id", chatID, "user_id", p.ID)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h ChatHandler) ConfirmPickup(c *gin.Context) {
	p, ok := requireRole(c, "")
	if !ok {
		return
	}
	chatID := c.Param("id")
	res, err := commands.Dispatch[chatapp.ConfirmPickupCommand, dto.PostResult](c.Request.Context(), h.Commands, chatapp.ConfirmPickupCommand{
		ChatID:   chatID,
		SenderID: p.ID,
	})
	if err != nil {
		h.respondError(c, err, "confirm pickup", "chat_id", chatID, "user_id", p.ID)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h ChatHandler) MarkRead(c *gin.Context) {
	p, ok := requireRole(c, "")
	if !ok {
		return
	}
	chatID := c.Param("id")
	res, err := commands.Dispatch[chatapp.MarkReadCommand, dto.MarkReadResult](c.Request.Context(), h.Commands, chatapp.MarkReadCommand{
		ChatID: chatID,
		UserID: p.ID,
	})
	if err != nil {
		h.respondError(c, err, "mark read", "chat_id", chatID, "user_id", p.ID)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h ChatHandler) End(c *gin.Context) {
	p, ok := requireRole(c, "")
	if !ok {
		return
	}
	chatID := c.Param("id")
	chat, err := commands.Dispatch[chatapp.EndChatCommand, dto.Chat](c.Request.Context(), h.Commands, chatapp.EndChatCommand{
		ChatID:   chatID,
		SenderID: p.ID,
	})
	if err != nil {
		h.respondError(c, err, "end chat", "chat_id", chatID, "user_id", p.ID)
		return
	}
	c.JSON(http.StatusOK, chat)
}

func (h ChatHandler) Report(c *gin.Context) {
	p, ok := requireRole(c, "")
	if !ok {
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	chatID := c.Param("id")
	chat, err := commands.Dispatch[chatapp.ReportChatCommand, dto.Chat](c.Request.Context(), h.Commands, chatapp.ReportChatCommand{
		ChatID:     chatID,
		ReporterID: p.ID,
		Reason:     req.Reason,
	})
	if err != nil {
		h.respondError(c, err, "report chat", "chat_id", chatID, "user_id", p.ID)
		return
	}
	c.JSON(http.StatusOK, chat)
}

// respondError maps engine errors onto HTTP statuses. Unknown errors are
// logged and reported as 500 without detail.
func (h ChatHandler) respondError(c *gin.Context, err error, op string, attrs ...any) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		if h.Logger != nil {
			h.Logger.Error(op+" failed", append(attrs, "error", err)...)
		}
		c.JSON(status, gin.H{"error": "internal error", "code": code})
		return
	}
	c.JSON(status, gin.H{"error": err.Error(), "code": code})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domainchat.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domainchat.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, middleware.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, domainchat.ErrChatClosed):
		return http.StatusConflict, "chat_closed"
	case errors.Is(err, domainchat.ErrPickupNotSet):
		return http.StatusConflict, "pickup_not_set"
	case errors.Is(err, domainchat.ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, domainchat.ErrMessageTooLong):
		return http.StatusBadRequest, "message_too_long"
	case errors.Is(err, domainchat.ErrEmptyMessage):
		return http.StatusBadRequest, "empty_message"
	case errors.Is(err, domainchat.ErrInvalidPickup):
		return http.StatusBadRequest, "invalid_pickup"
	case errors.Is(err, domainchat.ErrInvalidArgument):
		return http.StatusBadRequest, "invalid_argument"
	case errors.Is(err, domainchat.ErrItemNotEligible):
		return http.StatusUnprocessableEntity, "item_not_eligible"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

var _ ChatHTTP = ChatHandler{}
