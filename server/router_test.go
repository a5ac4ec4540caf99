package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"apocaliptyx/application"
	"apocaliptyx/domain/entities"
	"apocaliptyx/domain/events"
	"apocaliptyx/domain/services"
	"apocaliptyx/infrastructure"
	"apocaliptyx/repository/memory"
	"apocaliptyx/server"
	"apocaliptyx/server/middleware"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	*httptest.Server
	auth *middleware.Authenticator
	hub  *server.WSHub
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	publisher := infrastructure.NewNATSEventPublisher(nil, infrastructure.NewEventSubjectMapper())
	factory := infrastructure.NewUnitOfWorkFactory(memory.NewStore(), publisher)

	hub := server.NewWSHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	for _, eventType := range events.ScenarioEventTypes() {
		factory.RegisterLocalHandler(eventType, hub.HandleEvent)
	}

	stealRules := services.NewStealRules(services.DefaultStealCost(), services.DefaultCompensation(), 0)
	shieldRules := services.NewShieldRules(entities.DefaultShieldCatalog())

	auth := middleware.NewAuthenticator("test-secret")
	handler := server.NewRouter(server.Dependencies{
		Wallet:        application.NewWalletService(factory, 1000),
		Scenarios:     application.NewScenarioService(factory, nil, entities.ZeroStakeCountVotes),
		Steals:        application.NewStealEngine(factory, stealRules, shieldRules, entities.ZeroStakeCountVotes),
		Authenticator: auth,
		RateLimiter:   middleware.NewRateLimiter(100, 100),
		Hub:           hub,
	})

	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return &testServer{Server: ts, auth: auth, hub: hub}
}

func (s *testServer) token(t *testing.T, userID uuid.UUID, name string, role entities.Role) string {
	t.Helper()
	token, err := s.auth.GenerateToken(userID, name, role, time.Hour)
	require.NoError(t, err)
	return token
}

func (s *testServer) do(t *testing.T, method, path, token string, body any, out any) int {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, s.URL+path, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

type apiError struct {
	Code    string         `json:"code"`
	Details map[string]any `json:"details"`
}

func TestRouter_StealFlow(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	aliceID, bobID := uuid.New(), uuid.New()
	alice := s.token(t, aliceID, "alice", entities.RoleUser)
	bob := s.token(t, bobID, "bob", entities.RoleUser)

	var user entities.User
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/v1/users/me", alice, nil, &user))
	assert.Equal(t, int64(1000), user.Balance)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/v1/users/me", bob, map[string]string{"username": "bobby"}, &user))
	assert.Equal(t, "bobby", user.Username)

	var scenario entities.Scenario
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/v1/scenarios", alice,
		map[string]string{"title": "AGI by 2030", "description": "public benchmark"}, &scenario))
	base := "/api/v1/scenarios/" + scenario.ID.String()

	var quote map[string]any
	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, base+"/steal-quote", bob, nil, &quote))
	assert.Equal(t, float64(100), quote["cost"])
	assert.Equal(t, true, quote["allowed"])

	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, base+"/steal-quote", alice, nil, &quote))
	assert.Equal(t, false, quote["allowed"])
	assert.Equal(t, "self_steal", quote["blocked_by"])

	var shield entities.Shield
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, base+"/shield", alice, map[string]string{"tier": "basic"}, &shield))
	assert.Equal(t, entities.ShieldTierBasic, shield.Tier)

	var errBody apiError
	require.Equal(t, http.StatusLocked, s.do(t, http.MethodPost, base+"/steal", bob, nil, &errBody))
	assert.Equal(t, "scenario_shielded", errBody.Code)
	assert.Equal(t, float64(3600), errBody.Details["remaining_seconds"])

	var balance struct {
		Balance int64 `json:"balance"`
	}
	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/v1/users/me/balance", bob, nil, &balance))
	assert.Equal(t, int64(1000), balance.Balance)

	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/v1/users/me/balance", alice, nil, &balance))
	assert.Equal(t, int64(950), balance.Balance)
}

func TestRouter_PredictionsAndErrors(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	aliceID := uuid.New()
	alice := s.token(t, aliceID, "alice", entities.RoleUser)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/v1/users/me", alice, nil, nil))

	var scenario entities.Scenario
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/v1/scenarios", alice, map[string]string{"title": "t"}, &scenario))
	base := "/api/v1/scenarios/" + scenario.ID.String()

	var placed struct {
		Pools entities.PoolSnapshot `json:"pools"`
	}
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, base+"/predictions", alice,
		map[string]any{"side": "yes", "amount": 250}, &placed))
	assert.Equal(t, int64(250), placed.Pools.YesPool)

	var errBody apiError
	assert.Equal(t, http.StatusConflict, s.do(t, http.MethodPost, base+"/predictions", alice,
		map[string]any{"side": "no", "amount": 5}, &errBody))
	assert.Equal(t, "already_predicted", errBody.Code)

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/v1/scenarios/"+uuid.NewString(), alice, nil, &errBody))
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/v1/scenarios/not-a-uuid", alice, nil, &errBody))
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/v1/scenarios", alice, map[string]string{"title": " "}, &errBody))
	assert.Equal(t, "invalid_input", errBody.Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/api/v1/scenarios", "", nil, &errBody))

	// Moderation and admin routes are role gated
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodPost, base+"/recalculate", alice, nil, &errBody))
	moderator := s.token(t, uuid.New(), "mod", entities.RoleModerator)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodPost, base+"/recalculate", moderator, nil, nil))

	var list []entities.Scenario
	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/v1/scenarios?limit=10", alice, nil, &list))
	assert.Len(t, list, 1)

	var history []entities.Transaction
	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/v1/users/me/transactions", alice, nil, &history))
	require.Len(t, history, 2)
	assert.Equal(t, entities.TransactionTypePrediction, history[0].Type)
}

func TestRouter_AdminRoutes(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	userID := uuid.New()
	user := s.token(t, userID, "user", entities.RoleUser)
	admin := s.token(t, uuid.New(), "root", entities.RoleAdmin)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/v1/users/me", user, nil, nil))

	path := "/api/v1/admin/users/" + userID.String()
	var errBody apiError
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodPost, path+"/adjust", user,
		map[string]any{"amount": 500, "reason": "self-service"}, &errBody))

	var tx entities.Transaction
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, path+"/adjust", admin,
		map[string]any{"amount": -200, "reason": "chargeback"}, &tx))
	assert.Equal(t, entities.TransactionTypeAdminAdjustment, tx.Type)
	assert.Equal(t, int64(800), tx.BalanceAfter)

	assert.Equal(t, http.StatusPaymentRequired, s.do(t, http.MethodPost, path+"/adjust", admin,
		map[string]any{"amount": -5000, "reason": "too much"}, &errBody))
	assert.Equal(t, float64(4200), errBody.Details["shortfall"])

	var report application.ReconcileReport
	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, path+"/reconcile", admin, nil, &report))
	assert.True(t, report.Consistent)
	assert.Equal(t, int64(800), report.Balance)
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/healthz", "", nil, nil))

	resp, err := http.Get(s.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouter_WebSocketReceivesSteal(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	aliceID, bobID := uuid.New(), uuid.New()
	alice := s.token(t, aliceID, "alice", entities.RoleUser)
	bob := s.token(t, bobID, "bob", entities.RoleUser)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/v1/users/me", alice, nil, nil))
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/v1/users/me", bob, nil, nil))

	var scenario entities.Scenario
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/v1/scenarios", alice, map[string]string{"title": "live"}, &scenario))

	wsURL := "ws" + s.URL[len("http"):] + "/api/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return s.hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/v1/scenarios/"+scenario.ID.String()+"/steal", bob, nil, nil))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg struct {
		Type       string    `json:"type"`
		ScenarioID uuid.UUID `json:"scenario_id"`
	}
	// The creation broadcast may still be queued when the client registers
	for msg.Type != "scenario_stolen" {
		require.NoError(t, conn.ReadJSON(&msg))
	}
	assert.Equal(t, scenario.ID, msg.ScenarioID)
}
