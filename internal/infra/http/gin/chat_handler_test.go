package ginserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"donateo/internal/app/commands"
	"donateo/internal/app/dto"
	chatapp "donateo/internal/app/handlers/chats"
	"donateo/internal/app/middleware"
	"donateo/internal/app/queries"
	"donateo/internal/domain/chatbot"
	domainitems "donateo/internal/domain/items"
	"donateo/internal/domain/moderation"
	"donateo/internal/infra/config"
	"donateo/internal/infra/obs"
	"donateo/internal/infra/storage/memory"
)

const (
	donor    = "donor-1"
	receiver = "receiver-1"
)

type identity struct {
	user  string
	roles string
	token string
}

func newTestRouter(t *testing.T, secret string) http.Handler {
	t.Helper()
	cmdBus := commands.NewInMemoryBus()
	queryBus := queries.NewInMemoryBus()
	chatapp.Register(cmdBus, queryBus, chatapp.Engine{
		Deps: chatapp.Deps{
			Chats:    memory.NewChatRepository(),
			Outbox:   memory.NewOutbox(0),
			Notifier: memory.NewNotifier(nil),
		},
		Items: memory.NewItemCatalog(
			domainitems.Snapshot{ID: "item-1", Title: "Blue Jacket", DonorID: donor, Status: domainitems.StatusAvailable, Approved: true},
			domainitems.Snapshot{ID: "item-2", Title: "Lamp", DonorID: donor, Status: domainitems.StatusPending},
		),
		Limiter:   memory.NewRateLimiter(20, time.Minute, nil),
		Moderator: moderation.NewFilter(),
		Bot:       chatbot.NewResponder(),
	})
	handler := ChatHandler{
		Commands: middleware.ChainCommands(cmdBus,
			middleware.Authorization(middleware.RequireActor{}),
			middleware.Validation(middleware.SelfValidation{}),
			middleware.Idempotency(memory.NewIdempotencyStore(time.Hour), nil),
		),
		Queries: middleware.ChainQueries(queryBus,
			middleware.QueryAuthorization(middleware.RequireActor{}),
			middleware.QueryValidation(middleware.SelfValidation{}),
		),
	}
	return NewRouter(config.Config{Env: "test"}, obs.Middleware{}, obs.HealthHandlers{}, Handlers{
		Chat:           handler,
		AuthMiddleware: AuthMiddleware{Secret: secret}.Handle,
	})
}

func do(t *testing.T, h http.Handler, who identity, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if who.user != "" {
		req.Header.Set(headerUserID, who.user)
	}
	if who.roles != "" {
		req.Header.Set(headerUserRole, who.roles)
	}
	if who.token != "" {
		req.Header.Set("Authorization", "Bearer "+who.token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]string](t, rec)["code"]
}

func TestChatLifecycleOverHTTP(t *testing.T) {
	r := newTestRouter(t, "")
	d, rcv := identity{user: donor}, identity{user: receiver}

	rec := do(t, r, d, http.MethodPost, "/api/v1/chats", map[string]string{"item_id": "item-1", "receiver_id": receiver})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[dto.CreateChatResult](t, rec)
	chatID := created.Chat.ID
	base := "/api/v1/chats/" + chatID

	rec = do(t, r, d, http.MethodPost, "/api/v1/chats", map[string]string{"item_id": "item-1", "receiver_id": receiver})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, chatID, decode[dto.CreateChatResult](t, rec).Chat.ID)

	rec = do(t, r, rcv, http.MethodPost, base+"/messages", map[string]string{"content": "What is your address?"})
	require.Equal(t, http.StatusCreated, rec.Code)
	posted := decode[dto.PostResult](t, rec)
	assert.True(t, posted.Blocked)
	assert.Equal(t, "contact", posted.WarningCategory)
	assert.NotContains(t, rec.Body.String(), "What is your address?")

	rec = do(t, r, d, http.MethodPut, base+"/pickup", map[string]string{"location": "Lotus Park", "date": "2025-01-10", "time": "10:00"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	pickup := decode[dto.PostResult](t, rec).Chat.PickupDetails
	require.NotNil(t, pickup)
	assert.False(t, pickup.ConfirmedByReceiver)

	rec = do(t, r, rcv, http.MethodPost, base+"/pickup/confirm", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[dto.PostResult](t, rec).Chat.PickupDetails.ConfirmedByReceiver)

	rec = do(t, r, rcv, http.MethodPost, base+"/quick-replies", map[string]string{"key": "on_my_way"})
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, r, d, http.MethodPost, base+"/read", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Positive(t, decode[dto.MarkReadResult](t, rec).Marked)

	rec = do(t, r, rcv, http.MethodPost, base+"/end", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", errorCode(t, rec))

	rec = do(t, r, d, http.MethodPost, base+"/end", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "completed", decode[dto.Chat](t, rec).Status)

	rec = do(t, r, rcv, http.MethodPost, base+"/messages", map[string]string{"content": "hello?"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "chat_closed", errorCode(t, rec))

	rec = do(t, r, rcv, http.MethodPost, base+"/report", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[dto.Chat](t, rec).Reported)

	rec = do(t, r, rcv, http.MethodGet, "/api/v1/chats/mine", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[dto.ChatList](t, rec).Items, 1)

	rec = do(t, r, rcv, http.MethodGet, "/api/v1/chats/lookup?item_id=item-1&donor_id="+donor+"&receiver_id="+receiver, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, chatID, decode[dto.Chat](t, rec).ID)
}

func TestErrorMapping(t *testing.T) {
	r := newTestRouter(t, "")
	d := identity{user: donor}
	rec := do(t, r, d, http.MethodPost, "/api/v1/chats", map[string]string{"item_id": "item-1", "receiver_id": receiver})
	require.Equal(t, http.StatusCreated, rec.Code)
	base := "/api/v1/chats/" + decode[dto.CreateChatResult](t, rec).Chat.ID

	cases := []struct {
		name   string
		who    identity
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{"not eligible", d, http.MethodPost, "/api/v1/chats", map[string]string{"item_id": "item-2", "receiver_id": receiver}, http.StatusUnprocessableEntity, "item_not_eligible"},
		{"unknown item", d, http.MethodPost, "/api/v1/chats", map[string]string{"item_id": "nope", "receiver_id": receiver}, http.StatusNotFound, "not_found"},
		{"unknown chat", d, http.MethodGet, "/api/v1/chats/missing", nil, http.StatusNotFound, "not_found"},
		{"stranger", identity{user: "stranger"}, http.MethodGet, base, nil, http.StatusForbidden, "forbidden"},
		{"too long", d, http.MethodPost, base + "/messages", map[string]string{"content": strings.Repeat("a", 501)}, http.StatusBadRequest, "message_too_long"},
		{"bad date", d, http.MethodPut, base + "/pickup", map[string]string{"location": "Park", "date": "soon", "time": "10:00"}, http.StatusBadRequest, "invalid_pickup"},
		{"confirm before set", identity{user: receiver}, http.MethodPost, base + "/pickup/confirm", nil, http.StatusConflict, "pickup_not_set"},
		{"lookup without fields", d, http.MethodGet, "/api/v1/chats/lookup?item_id=item-1", nil, http.StatusBadRequest, "invalid_argument"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, r, tc.who, tc.method, tc.path, tc.body)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
			assert.Equal(t, tc.code, errorCode(t, rec))
		})
	}
}

func TestRateLimitedOverHTTP(t *testing.T) {
	r := newTestRouter(t, "")
	d := identity{user: donor}
	rec := do(t, r, d, http.MethodPost, "/api/v1/chats", map[string]string{"item_id": "item-1", "receiver_id": receiver})
	require.Equal(t, http.StatusCreated, rec.Code)
	path := "/api/v1/chats/" + decode[dto.CreateChatResult](t, rec).Chat.ID + "/messages"

	for i := 0; i < 20; i++ {
		rec = do(t, r, d, http.MethodPost, path, map[string]string{"content": "see you soon"})
		require.Equal(t, http.StatusCreated, rec.Code)
	}
	rec = do(t, r, d, http.MethodPost, path, map[string]string{"content": "see you soon"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate_limited", errorCode(t, rec))
}

func TestIdempotencyKeyHeader(t *testing.T) {
	r := newTestRouter(t, "")
	d := identity{user: donor}
	rec := do(t, r, d, http.MethodPost, "/api/v1/chats", map[string]string{"item_id": "item-1", "receiver_id": receiver})
	require.Equal(t, http.StatusCreated, rec.Code)
	base := "/api/v1/chats/" + decode[dto.CreateChatResult](t, rec).Chat.ID

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, base+"/messages", strings.NewReader(`{"content":"is the zipper working?"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(headerUserID, donor)
		req.Header.Set("Idempotency-Key", "abc")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}
	first, second := send(), send()
	require.Equal(t, http.StatusCreated, first.Code)
	require.Equal(t, http.StatusCreated, second.Code)

	rec = do(t, r, d, http.MethodGet, base, nil)
	assert.Len(t, decode[dto.Chat](t, rec).Messages, len(decode[dto.PostResult](t, first).Chat.Messages))
}

func TestAdminListRequiresRole(t *testing.T) {
	r := newTestRouter(t, "")

	rec := do(t, r, identity{}, http.MethodGet, "/api/v1/admin/chats", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, r, identity{user: donor}, http.MethodGet, "/api/v1/admin/chats", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, r, identity{user: "admin-1", roles: "user, Admin"}, http.MethodGet, "/api/v1/admin/chats", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func signToken(t *testing.T, secret, subject, role string, method jwt.SigningMethod) string {
	t.Helper()
	claims := tokenClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestJWTAuthentication(t *testing.T) {
	const secret = "test-secret"
	r := newTestRouter(t, secret)

	rec := do(t, r, identity{token: signToken(t, secret, "admin-1", "admin", jwt.SigningMethodHS256)}, http.MethodGet, "/api/v1/admin/chats", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, r, identity{user: "admin-1", roles: "admin"}, http.MethodGet, "/api/v1/admin/chats", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "identity headers are ignored when tokens are verified")

	rec = do(t, r, identity{token: signToken(t, "other-secret", "admin-1", "admin", jwt.SigningMethodHS256)}, http.MethodGet, "/api/v1/admin/chats", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, r, identity{token: signToken(t, secret, "admin-1", "admin", jwt.SigningMethodHS512)}, http.MethodGet, "/api/v1/admin/chats", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "only HS256 is accepted")

	rec = do(t, r, identity{token: signToken(t, secret, "", "admin", jwt.SigningMethodHS256)}, http.MethodGet, "/api/v1/admin/chats", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestExtractBearerToken(t *testing.T) {
	assert.Equal(t, "abc", extractBearerToken("Bearer abc"))
	assert.Equal(t, "abc", extractBearerToken("bearer  abc "))
	assert.Empty(t, extractBearerToken("Basic abc"))
	assert.Empty(t, extractBearerToken(""))
}
