package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopdesk/internal/adapter/api"
	"shopdesk/internal/adapter/api/handler"
	"shopdesk/internal/adapter/api/middleware"
	"shopdesk/internal/adapter/api/router"
	docrepo "shopdesk/internal/adapter/repository"
	"shopdesk/internal/domain/access"
	"shopdesk/internal/domain/entity"
	"shopdesk/internal/infrastructure/firebase"
	"shopdesk/internal/infrastructure/memdb"
	"shopdesk/internal/infrastructure/ratelimit"
	"shopdesk/internal/infrastructure/storage"
	ws "shopdesk/internal/infrastructure/websocket"
	"shopdesk/internal/livesync"
	"shopdesk/internal/livesync/livesynctest"
	"shopdesk/internal/usecase"
	"shopdesk/pkg/response"
)

var epoch = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

type stack struct {
	e       *echo.Echo
	db      *memdb.Store
	clock   *livesynctest.Clock
	manager *ws.Manager
	blobs   *storage.MemoryBlobStore
}

func newStack(t *testing.T) *stack {
	t.Helper()
	clock := livesynctest.NewClock(epoch)
	db := memdb.New(clock)
	policy := access.NewPolicy()
	users := docrepo.NewUserRepository(db)
	provider := firebase.NewLocalAuthClient()
	blobs := storage.NewMemoryBlobStore("https://files.shop.test")

	audit := usecase.NewAuditUseCase(docrepo.NewAuditRepository(db), policy)
	notifications := usecase.NewNotificationUseCase(docrepo.NewNotificationRepository(db), users, policy)
	presence := usecase.NewPresenceUseCase(users, db, clock, usecase.PresenceConfig{})
	products := usecase.NewProductUseCase(docrepo.NewProductRepository(db), policy, notifications, audit)
	chat := usecase.NewChatUseCase(usecase.ChatDeps{
		Backend:       db,
		Conversations: docrepo.NewConversationRepository(db),
		Messages:      docrepo.NewMessageRepository(db),
		Users:         users,
		Blobs:         blobs,
		Transport:     livesync.NewSimulatedTransport(db, clock, nil, entity.Advances),
		Clock:         clock,
		Policy:        policy,
		Audit:         audit,
		MaxUpload:     1 << 20,
	})
	auth := usecase.NewAuthUseCase(users, provider)

	handler.Setup(handler.UseCases{
		Auth:          auth,
		Users:         usecase.NewUserUseCase(users, provider, policy, audit),
		Chat:          chat,
		Notifications: notifications,
		Audit:         audit,
		Products:      products,
		Sales:         usecase.NewSaleUseCase(docrepo.NewSaleRepository(db), users, products, policy, notifications, audit),
		ServiceOrders: usecase.NewServiceOrderUseCase(docrepo.NewServiceOrderRepository(db), users, clock, policy, notifications, audit),
	})

	e := echo.New()
	e.Validator = api.NewValidator()
	router.Setup(e, router.Middlewares{
		Auth:          middleware.NewAuthMiddleware(auth),
		Capability:    middleware.NewCapabilityMiddleware(policy),
		SignInLimiter: ratelimit.NewRateLimiter(clock, ratelimit.DefaultLimits),
	})

	manager := ws.NewManager()
	live := usecase.NewLiveUseCase(usecase.LiveConfig{
		Backend:  db,
		Users:    users,
		Chat:     chat,
		Presence: presence,
		Auth:     auth,
		Policy:   policy,
	})
	router.SetupWebSocketRouter(e, handler.NewWebSocketHandler(manager, auth, live, nil))
	router.SetupHealthRouter(e, handler.NewHealthHandler(manager, "memory"))

	return &stack{e: e, db: db, clock: clock, manager: manager, blobs: blobs}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string                 `json:"code"`
		Message string                 `json:"message"`
		Details map[string]interface{} `json:"details"`
	} `json:"error"`
}

func (s *stack) do(t *testing.T, method, path, token string, body interface{}) (int, envelope) {
	t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(t, err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

type session struct {
	token string
	user  entity.User
}

func (s *stack) register(t *testing.T, email, name string) session {
	t.Helper()
	code, env := s.do(t, http.MethodPost, "/v1/auth/register", "", map[string]string{
		"email": email, "password": "secret123", "display_name": name,
	})
	require.Equal(t, http.StatusCreated, code)
	var result struct {
		Token string      `json:"token"`
		User  entity.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &result))
	return session{token: result.Token, user: result.User}
}

// staff creates a colleague in owner's shop and signs them in.
func (s *stack) staff(t *testing.T, owner session, email, name, role string) session {
	t.Helper()
	code, env := s.do(t, http.MethodPost, "/v1/users", owner.token, map[string]interface{}{
		"email": email, "password": "secret123", "display_name": name, "role": role, "commission_percent": 10,
	})
	require.Equal(t, http.StatusCreated, code, env.Error)

	code, env = s.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{"email": email, "password": "secret123"})
	require.Equal(t, http.StatusOK, code)
	var result struct {
		Token string      `json:"token"`
		User  entity.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &result))
	return session{token: result.Token, user: result.User}
}

func TestHealthCheck(t *testing.T) {
	s := newStack(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "memory", body["document_store"])
	assert.EqualValues(t, 0, body["connections"])
}

func TestRegisterLoginAndProfile(t *testing.T) {
	s := newStack(t)
	owner := s.register(t, "ada@shop.test", "Ada")
	assert.Equal(t, entity.RoleAdmin, owner.user.Role)

	code, env := s.do(t, http.MethodGet, "/v1/users/me", owner.token, nil)
	require.Equal(t, http.StatusOK, code)
	var me struct {
		User         entity.User `json:"user"`
		Capabilities []string    `json:"capabilities"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &me))
	assert.Equal(t, owner.user.ID, me.User.ID)
	assert.Contains(t, me.Capabilities, string(access.UserManage))

	code, env = s.do(t, http.MethodGet, "/v1/users/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)

	code, _ = s.do(t, http.MethodGet, "/v1/users/me", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = s.do(t, http.MethodPost, "/v1/auth/logout", owner.token, nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = s.do(t, http.MethodGet, "/v1/users/me", owner.token, nil)
	assert.Equal(t, http.StatusUnauthorized, code, "tokens are revoked on logout")
}

func TestValidationErrorsNameJSONFields(t *testing.T) {
	s := newStack(t)
	code, env := s.do(t, http.MethodPost, "/v1/auth/register", "", map[string]string{
		"email": "not-an-email", "password": "secret123", "display_name": "Ada",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	assert.Contains(t, env.Error.Details, "email")
}

func TestCapabilitiesGateRoutes(t *testing.T) {
	s := newStack(t)
	owner := s.register(t, "ada@shop.test", "Ada")
	seller := s.staff(t, owner, "sam@shop.test", "Sam", "seller")

	code, env := s.do(t, http.MethodGet, "/v1/audit", seller.token, nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "FORBIDDEN", env.Error.Code)

	code, env = s.do(t, http.MethodGet, "/v1/audit", owner.token, nil)
	require.Equal(t, http.StatusOK, code)
	var entries []entity.AuditEntry
	require.NoError(t, json.Unmarshal(env.Data, &entries))
	assert.NotEmpty(t, entries, "creating the seller is audited")

	code, _ = s.do(t, http.MethodPost, "/v1/products", seller.token, map[string]interface{}{"name": "Cable", "price": 5})
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = s.do(t, http.MethodPut, "/v1/users/"+seller.user.ID+"/commission", owner.token, map[string]float64{"percent": 150})
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = s.do(t, http.MethodPut, "/v1/users/"+seller.user.ID+"/commission", owner.token, map[string]float64{"percent": 12.5})
	assert.Equal(t, http.StatusOK, code)
}

func TestChatOverHTTP(t *testing.T) {
	s := newStack(t)
	owner := s.register(t, "ada@shop.test", "Ada")
	seller := s.staff(t, owner, "sam@shop.test", "Sam", "seller")

	code, env := s.do(t, http.MethodPost, "/v1/chats/direct", owner.token, map[string]string{"user_id": seller.user.ID})
	require.Equal(t, http.StatusCreated, code)
	var conv entity.Conversation
	require.NoError(t, json.Unmarshal(env.Data, &conv))

	code, env = s.do(t, http.MethodPost, "/v1/chats/direct", seller.token, map[string]string{"user_id": owner.user.ID})
	require.Equal(t, http.StatusOK, code, "the existing conversation is reused")
	var again entity.Conversation
	require.NoError(t, json.Unmarshal(env.Data, &again))
	assert.Equal(t, conv.ID, again.ID)

	code, _ = s.do(t, http.MethodPost, "/v1/chats/"+conv.ID+"/messages", owner.token, map[string]string{"content": "hello"})
	require.Equal(t, http.StatusCreated, code)

	code, env = s.do(t, http.MethodGet, "/v1/chats/"+conv.ID+"/messages", seller.token, nil)
	require.Equal(t, http.StatusOK, code)
	var messages []entity.Message
	require.NoError(t, json.Unmarshal(env.Data, &messages))
	require.Len(t, messages, 1)
	assert.Equal(t, "hello", messages[0].Content)

	code, env = s.do(t, http.MethodPut, "/v1/chats/"+conv.ID+"/read", seller.token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"marked":1}`, string(env.Data))

	outsider := s.register(t, "eve@other.test", "Eve")
	code, _ = s.do(t, http.MethodGet, "/v1/chats/"+conv.ID+"/messages", outsider.token, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestSignInIsRateLimitedPerIP(t *testing.T) {
	s := newStack(t)
	s.register(t, "ada@shop.test", "Ada")

	burst := ratelimit.DefaultLimits[ratelimit.ActionSignIn].Burst
	for i := 1; i < burst; i++ {
		code, _ := s.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{"email": "ada@shop.test", "password": "wrong-one"})
		require.Equal(t, http.StatusUnauthorized, code)
	}
	code, env := s.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{"email": "ada@shop.test", "password": "secret123"})
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, "TOO_MANY_REQUESTS", env.Error.Code)
	assert.EqualValues(t, 12, env.Error.Details["retryAfterSeconds"])

	s.clock.Advance(ratelimit.DefaultLimits[ratelimit.ActionSignIn].Every)
	code, _ = s.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{"email": "ada@shop.test", "password": "secret123"})
	assert.Equal(t, http.StatusOK, code)
}

func TestSaleThroughHTTP(t *testing.T) {
	s := newStack(t)
	owner := s.register(t, "ada@shop.test", "Ada")
	seller := s.staff(t, owner, "sam@shop.test", "Sam", "seller")

	code, env := s.do(t, http.MethodPost, "/v1/products", owner.token, map[string]interface{}{
		"name": "Charger", "price": 20, "cost": 12, "stock": 5, "min_stock": 1,
	})
	require.Equal(t, http.StatusCreated, code, env.Error)
	var product entity.Product
	require.NoError(t, json.Unmarshal(env.Data, &product))

	code, env = s.do(t, http.MethodPost, "/v1/sales", seller.token, map[string]interface{}{
		"payment_method": "cash",
		"discount":       5,
		"items":          []map[string]interface{}{{"product_id": product.ID, "quantity": 2}},
	})
	require.Equal(t, http.StatusCreated, code, env.Error)
	var sale entity.Sale
	require.NoError(t, json.Unmarshal(env.Data, &sale))
	assert.InDelta(t, 35.0, sale.Total, 0.001)
	assert.InDelta(t, 3.5, sale.Commission, 0.001)

	code, env = s.do(t, http.MethodGet, "/v1/sales?page=1&limit=10", seller.token, nil)
	require.Equal(t, http.StatusOK, code)
	var page response.PaginatedResponse
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Equal(t, int64(1), page.Total)
	assert.Equal(t, 10, page.PageSize)
	assert.Equal(t, 1, page.TotalPages)

	code, env = s.do(t, http.MethodPost, "/v1/sales", seller.token, map[string]interface{}{
		"payment_method": "barter",
		"items":          []map[string]interface{}{{"product_id": product.ID, "quantity": 1}},
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, env.Error.Details, "payment_method")
}

func TestSendFileUploadsToBlobStore(t *testing.T) {
	s := newStack(t)
	owner := s.register(t, "ada@shop.test", "Ada")
	seller := s.staff(t, owner, "sam@shop.test", "Sam", "seller")
	code, env := s.do(t, http.MethodPost, "/v1/chats/direct", owner.token, map[string]string{"user_id": seller.user.ID})
	require.Equal(t, http.StatusCreated, code)
	var conv entity.Conversation
	require.NoError(t, json.Unmarshal(env.Data, &conv))

	body, contentType := multipartFile(t, "receipt.png", "image/png", []byte("\x89PNG fake"), "the receipt")
	req := httptest.NewRequest(http.MethodPost, "/v1/chats/"+conv.ID+"/files", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+owner.token)
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	var msg entity.Message
	require.NoError(t, json.Unmarshal(resp.Data, &msg))
	assert.Equal(t, entity.MessageImage, msg.Type)
	assert.Equal(t, "the receipt", msg.Content)
	require.NotNil(t, msg.File)
	obj, ok := s.blobs.Get(msg.File.Path)
	require.True(t, ok)
	assert.Equal(t, "image/png", obj.ContentType)
}
