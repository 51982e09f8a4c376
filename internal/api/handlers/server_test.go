package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"premium-freight.io/freight/internal/api/middleware"
	"premium-freight.io/freight/internal/config"
	"premium-freight.io/freight/internal/domain"
	"premium-freight.io/freight/internal/notification"
	perrors "premium-freight.io/freight/internal/pkg/errors"
	"premium-freight.io/freight/internal/pkg/logger"
	"premium-freight.io/freight/internal/repository"
	"premium-freight.io/freight/internal/service"
	"premium-freight.io/freight/internal/workflow"
)

func init() {
	_ = logger.Init("error", "json")
}

// testStore is a single in-memory backend implementing every persistence
// interface the handler stack needs, so the full HTTP surface runs
// without PostgreSQL.
type testStore struct {
	orders  map[int64]*domain.Order
	states  map[int64]*domain.ApprovalState
	users   map[string]domain.User
	grants  []domain.Approver
	history map[int64][]domain.HistoryEntry
	actions map[string]*domain.ActionToken
	bulk    map[string]*domain.BulkActionToken
	emails  []domain.OutboxEmail
	logins  map[string]loginRecord
	nextID  int64
}

type loginRecord struct {
	userID string
	hash   string
	role   string
}

func newTestStore() *testStore {
	return &testStore{
		orders:  make(map[int64]*domain.Order),
		states:  make(map[int64]*domain.ApprovalState),
		users:   make(map[string]domain.User),
		history: make(map[int64][]domain.HistoryEntry),
		actions: make(map[string]*domain.ActionToken),
		bulk:    make(map[string]*domain.BulkActionToken),
		logins:  make(map[string]loginRecord),
	}
}

func (s *testStore) addUser(id, plant string) {
	s.users[id] = domain.User{ID: id, Name: id, Email: id + "@grammer.com", Plant: plant}
}

func (s *testStore) addApprover(id string, level int, plant string) {
	s.addUser(id, plant)
	a := domain.Approver{UserID: id, ApprovalLevel: level}
	if plant != "" {
		a.Plant = &plant
	}
	s.grants = append(s.grants, a)
}

func (s *testStore) Get(_ context.Context, orderID int64) (*domain.Order, error) {
	o, ok := s.orders[orderID]
	if !ok {
		return nil, perrors.ErrOrderNotFound
	}
	return o, nil
}

func (s *testStore) GetState(_ context.Context, orderID int64) (*domain.ApprovalState, error) {
	st, ok := s.states[orderID]
	if !ok {
		return nil, perrors.ErrOrderNotFound
	}
	copied := *st
	return &copied, nil
}

func (s *testStore) List(_ context.Context, plant string, _, _ int) ([]repository.OrderRow, error) {
	var out []repository.OrderRow
	for id, o := range s.orders {
		if plant != "" && o.Plant != plant {
			continue
		}
		out = append(out, repository.OrderRow{Order: *o, State: *s.states[id]})
	}
	return out, nil
}

func (s *testStore) ListByOrder(_ context.Context, orderID int64) ([]domain.HistoryEntry, error) {
	return s.history[orderID], nil
}

func (s *testStore) FindForLevel(_ context.Context, level int, plant string) ([]domain.User, error) {
	var out []domain.User
	for _, a := range s.grants {
		if a.Matches(level, plant) {
			out = append(out, s.users[a.UserID])
		}
	}
	return out, nil
}

func (s *testStore) Exists(_ context.Context, userID string, level int, plant string) (bool, error) {
	for _, a := range s.grants {
		if a.UserID == userID && a.Matches(level, plant) {
			return true, nil
		}
	}
	return false, nil
}

func (s *testStore) addLogin(userID, email, password, role string) {
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	s.logins[email] = loginRecord{userID: userID, hash: string(hash), role: role}
}

func (s *testStore) Credentials(_ context.Context, email string) (*domain.User, string, string, error) {
	rec, ok := s.logins[email]
	if !ok {
		return nil, "", "", perrors.ErrAuthFailed
	}
	u := s.users[rec.userID]
	return &u, rec.hash, rec.role, nil
}

func (s *testStore) GetUser(_ context.Context, id string) (*domain.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s not found", id)
	}
	return &u, nil
}

func (s *testStore) Apply(_ context.Context, plan domain.TransitionPlan) (bool, error) {
	st, ok := s.states[plan.OrderID]
	if !ok {
		return false, perrors.ErrOrderNotFound
	}
	if st.ActApprov != plan.ExpectedLevel {
		return false, nil
	}
	st.ActApprov = plan.NewLevel
	s.history[plan.OrderID] = append(s.history[plan.OrderID], plan.History)
	for _, tok := range plan.Tokens {
		tok := tok
		s.actions[tok.Token] = &tok
	}
	s.emails = append(s.emails, plan.Emails...)
	return true, nil
}

func (s *testStore) Create(_ context.Context, o *domain.Order, planFn domain.PlanFunc) error {
	s.nextID++
	o.ID = s.nextID
	o.CreatedAt = time.Now().UTC()
	s.orders[o.ID] = o
	s.states[o.ID] = &domain.ApprovalState{OrderID: o.ID, UpdatedAt: o.CreatedAt}

	history, tokens, emails, err := planFn(o)
	if err != nil {
		return err
	}
	s.history[o.ID] = append(s.history[o.ID], history)
	for _, tok := range tokens {
		tok := tok
		s.actions[tok.Token] = &tok
	}
	s.emails = append(s.emails, emails...)
	return nil
}

// TokenStore implementation.

func (s *testStore) InsertAction(_ context.Context, t domain.ActionToken) error {
	s.actions[t.Token] = &t
	return nil
}

func (s *testStore) ConsumeAction(_ context.Context, token string) (*domain.ActionToken, error) {
	t, ok := s.actions[token]
	if !ok || t.IsUsed {
		return nil, perrors.ErrTokenInvalid
	}
	if t.ExpiresAt != nil && t.ExpiresAt.Before(time.Now()) {
		return nil, perrors.ErrTokenInvalid
	}
	t.IsUsed = true
	return t, nil
}

func (s *testStore) InsertBulk(_ context.Context, t domain.BulkActionToken) error {
	s.bulk[t.Token] = &t
	return nil
}

func (s *testStore) GetBulk(_ context.Context, token string) (*domain.BulkActionToken, error) {
	t, ok := s.bulk[token]
	if !ok {
		return nil, perrors.ErrTokenInvalid
	}
	return t, nil
}

type userAdapter struct{ s *testStore }

func (a userAdapter) Get(ctx context.Context, id string) (*domain.User, error) {
	return a.s.GetUser(ctx, id)
}

// newTestServer wires the full handler stack over the in-memory store.
// Authenticated routes get the actor from a header instead of a JWT so
// tests can impersonate without minting tokens.
func newTestServer(t *testing.T, store *testStore) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tokenSvc := service.NewActionTokenService(store, time.Hour, time.Hour)
	planner := notification.NewComposer(tokenSvc, "https://freight.grammer.com")
	engine := workflow.NewEngine(store, store, userAdapter{store}, store, planner, nil)
	policy := config.ApprovalConfig{CostBands: map[int]int64{
		1: 0, 2: 150000, 3: 500000, 4: 2500000, 5: 10000000,
	}}
	intake := workflow.NewIntake(store, store, planner, policy, nil)

	srv := NewServer(ServerDeps{
		JWTCfg: middleware.JWTConfig{
			SigningKey: []byte("handler-test-signing-key"),
			Issuer:     "premium-freight",
			ExpiresIn:  time.Hour,
		},
		Engine:      engine,
		Intake:      intake,
		Coordinator: workflow.NewCoordinator(engine),
		Tokens:      tokenSvc,
		Orders:      store,
		History:     store,
		Creds:       store,
	})

	r := gin.New()
	r.Use(middleware.RequestID(), middleware.ErrorHandler())

	r.POST("/api/v1/auth/login", srv.Login)
	r.GET("/api/v1/actions", srv.HandleAction)
	r.GET("/api/v1/actions/bulk", srv.HandleBulkAction)

	authed := r.Group("/api/v1", func(c *gin.Context) {
		c.Set("user_id", c.GetHeader("X-Test-User"))
	})
	authed.POST("/orders", srv.CreateOrder)
	authed.GET("/orders", srv.ListOrders)
	authed.GET("/orders/:id", srv.GetOrder)
	authed.GET("/orders/:id/history", srv.GetOrderHistory)
	authed.POST("/orders/:id/approve", srv.ApproveOrder)
	authed.POST("/orders/:id/reject", srv.RejectOrder)
	authed.POST("/orders/bulk", srv.BulkAction)

	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path, user, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateOrder_DerivesLevelAndNotifies(t *testing.T) {
	store := newTestStore()
	store.addUser("creator", "3310")
	store.addApprover("lvl1", 1, "3310")
	r := newTestServer(t, store)

	w := doJSON(t, r, http.MethodPost, "/api/v1/orders", "creator",
		`{"plant":"3310","cost_eur":250000,"description":"air freight"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp OrderResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.RequiredAuthLevel)
	require.Equal(t, "PENDING", resp.Status)
	require.Equal(t, 0, resp.CurrentLevel)

	require.Len(t, store.emails, 1)
	require.Len(t, store.actions, 2)
}

func TestApproveOrder_SpecificUICodes(t *testing.T) {
	store := newTestStore()
	store.addUser("creator", "3310")
	store.addApprover("lvl1", 1, "3310")
	r := newTestServer(t, store)

	w := doJSON(t, r, http.MethodPost, "/api/v1/orders", "creator",
		`{"plant":"3310","cost_eur":100,"description":"small"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	// Unauthorized actor gets NOT_AUTHORIZED, not the generic page.
	w = doJSON(t, r, http.MethodPost, "/api/v1/orders/1/approve", "bystander", "")
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Contains(t, w.Body.String(), perrors.CodeNotAuthorized)

	w = doJSON(t, r, http.MethodPost, "/api/v1/orders/1/approve", "lvl1", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"status":"APPROVED"`)

	// A duplicate submit is a benign conflict with its own code.
	w = doJSON(t, r, http.MethodPost, "/api/v1/orders/1/approve", "lvl1", "")
	require.Equal(t, http.StatusConflict, w.Code)
	require.Contains(t, w.Body.String(), perrors.CodeAlreadyProcessed)
}

func TestRejectOrder_ReasonRequired(t *testing.T) {
	store := newTestStore()
	store.addUser("creator", "3310")
	store.addApprover("lvl1", 1, "3310")
	r := newTestServer(t, store)

	doJSON(t, r, http.MethodPost, "/api/v1/orders", "creator",
		`{"plant":"3310","cost_eur":100,"description":"x"}`)

	w := doJSON(t, r, http.MethodPost, "/api/v1/orders/1/reject", "lvl1", `{"reason":""}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), perrors.CodeReasonRequired)

	w = doJSON(t, r, http.MethodPost, "/api/v1/orders/1/reject", "lvl1", `{"reason":"budget"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"status":"REJECTED"`)
}

func TestActionLink_EndToEnd(t *testing.T) {
	store := newTestStore()
	store.addUser("creator", "3310")
	store.addApprover("lvl1", 1, "3310")
	r := newTestServer(t, store)

	doJSON(t, r, http.MethodPost, "/api/v1/orders", "creator",
		`{"plant":"3310","cost_eur":100,"description":"x"}`)

	var approveToken string
	for tok, at := range store.actions {
		if at.Action == "approve" {
			approveToken = tok
		}
	}
	require.NotEmpty(t, approveToken)

	// The link from the email approves the order without a session.
	w := doJSON(t, r, http.MethodGet, "/api/v1/actions?token="+approveToken+"&action=approve&order_id=1", "", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Contains(t, w.Body.String(), "approved")

	// Replaying the same link yields the generic page.
	w = doJSON(t, r, http.MethodGet, "/api/v1/actions?token="+approveToken+"&action=approve&order_id=1", "", "")
	require.Equal(t, http.StatusGone, w.Code)
	require.Equal(t, actionUnavailable, w.Body.String())
}

func TestActionLink_GenericFailureShape(t *testing.T) {
	store := newTestStore()
	store.addUser("creator", "3310")
	store.addApprover("lvl1", 1, "3310")
	r := newTestServer(t, store)

	doJSON(t, r, http.MethodPost, "/api/v1/orders", "creator",
		`{"plant":"3310","cost_eur":100,"description":"x"}`)

	// Unknown token, wrong order binding and tampered action parameter
	// all produce byte-identical responses.
	bodies := map[string]string{}

	w := doJSON(t, r, http.MethodGet, "/api/v1/actions?token=deadbeef&action=approve", "", "")
	require.Equal(t, http.StatusGone, w.Code)
	bodies["unknown"] = w.Body.String()

	var rejectToken string
	for tok, at := range store.actions {
		if at.Action == "reject" {
			rejectToken = tok
		}
	}
	w = doJSON(t, r, http.MethodGet, "/api/v1/actions?token="+rejectToken+"&action=approve", "", "")
	require.Equal(t, http.StatusGone, w.Code)
	bodies["tampered"] = w.Body.String()

	for name, body := range bodies {
		require.Equal(t, actionUnavailable, body, name)
	}
}

func TestRejectLink_RequiresReasonWithoutBurningTheFlow(t *testing.T) {
	store := newTestStore()
	store.addUser("creator", "3310")
	store.addApprover("lvl1", 1, "3310")
	r := newTestServer(t, store)

	doJSON(t, r, http.MethodPost, "/api/v1/orders", "creator",
		`{"plant":"3310","cost_eur":100,"description":"x"}`)

	var rejectToken string
	for tok, at := range store.actions {
		if at.Action == "reject" {
			rejectToken = tok
		}
	}

	w := doJSON(t, r, http.MethodGet, "/api/v1/actions?token="+rejectToken, "", "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "reason")

	// The token was consumed by the attempt; the UI path still works.
	w = doJSON(t, r, http.MethodPost, "/api/v1/orders/1/reject", "lvl1", `{"reason":"budget"}`)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestBulkLink_PartialAndReplay(t *testing.T) {
	store := newTestStore()
	store.addUser("creator", "3310")
	store.addApprover("lvl1", 1, "3310")
	r := newTestServer(t, store)

	for i := 0; i < 3; i++ {
		w := doJSON(t, r, http.MethodPost, "/api/v1/orders", "creator",
			`{"plant":"3310","cost_eur":100,"description":"x"}`)
		require.Equal(t, http.StatusCreated, w.Code)
	}

	// Order 2 is decided before the digest link is clicked.
	w := doJSON(t, r, http.MethodPost, "/api/v1/orders/2/approve", "lvl1", "")
	require.Equal(t, http.StatusOK, w.Code)

	tokenSvc := service.NewActionTokenService(store, 0, time.Hour)
	bulk, err := tokenSvc.MintBulk(context.Background(), "lvl1", []int64{1, 2, 3}, "approve")
	require.NoError(t, err)

	w = doJSON(t, r, http.MethodGet, "/api/v1/actions/bulk?token="+bulk.Token+"&action=approve", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "2 applied")
	require.Contains(t, w.Body.String(), "1 skipped")

	// Re-clicking is benign: everything reports already decided.
	w = doJSON(t, r, http.MethodGet, "/api/v1/actions/bulk?token="+bulk.Token+"&action=approve", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "0 applied")

	// Narrowing to one order does not invalidate the token.
	w = doJSON(t, r, http.MethodGet, "/api/v1/actions/bulk?token="+bulk.Token+"&order_id=3", "", "")
	require.Equal(t, http.StatusOK, w.Code)
}

func TestBulkEndpoint_UI(t *testing.T) {
	store := newTestStore()
	store.addUser("creator", "3310")
	store.addApprover("lvl1", 1, "3310")
	r := newTestServer(t, store)

	for i := 0; i < 2; i++ {
		doJSON(t, r, http.MethodPost, "/api/v1/orders", "creator",
			`{"plant":"3310","cost_eur":100,"description":"x"}`)
	}

	w := doJSON(t, r, http.MethodPost, "/api/v1/orders/bulk", "lvl1",
		`{"order_ids":[1,2,404],"action":"approve"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var result workflow.BulkResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	require.Len(t, result.Succeeded, 2)
	require.Len(t, result.Failed, 1)
	require.Equal(t, perrors.CodeOrderNotFound, result.Failed[0].Code)
}

func TestGetOrderAndHistory(t *testing.T) {
	store := newTestStore()
	store.addUser("creator", "3310")
	store.addApprover("lvl1", 1, "3310")
	r := newTestServer(t, store)

	doJSON(t, r, http.MethodPost, "/api/v1/orders", "creator",
		`{"plant":"3310","cost_eur":100,"description":"x"}`)
	doJSON(t, r, http.MethodPost, "/api/v1/orders/1/approve", "lvl1", "")

	w := doJSON(t, r, http.MethodGet, "/api/v1/orders/1", "creator", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"status":"APPROVED"`)

	w = doJSON(t, r, http.MethodGet, "/api/v1/orders/1/history", "creator", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "CREATED")
	require.Contains(t, w.Body.String(), "APPROVED")

	w = doJSON(t, r, http.MethodGet, "/api/v1/orders/404", "creator", "")
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Contains(t, w.Body.String(), perrors.CodeOrderNotFound)
}

func TestLogin(t *testing.T) {
	store := newTestStore()
	store.addUser("u-supervisor", "3310")
	store.addLogin("u-supervisor", "supervisor@grammer.com", "secret", "approver")
	r := newTestServer(t, store)

	w := doJSON(t, r, http.MethodPost, "/api/v1/auth/login", "",
		`{"email":"supervisor@grammer.com","password":"secret"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	require.Equal(t, "u-supervisor", resp.UserID)
	require.Equal(t, "approver", resp.Role)

	// Wrong password and unknown email share one error code.
	w = doJSON(t, r, http.MethodPost, "/api/v1/auth/login", "",
		`{"email":"supervisor@grammer.com","password":"nope"}`)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Contains(t, w.Body.String(), perrors.CodeAuthFailed)

	w = doJSON(t, r, http.MethodPost, "/api/v1/auth/login", "",
		`{"email":"ghost@grammer.com","password":"secret"}`)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Contains(t, w.Body.String(), perrors.CodeAuthFailed)
}
