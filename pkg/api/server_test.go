package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghmbegerez/converge/pkg/config"
	"github.com/ghmbegerez/converge/pkg/events"
	"github.com/ghmbegerez/converge/pkg/eventlog"
	"github.com/ghmbegerez/converge/pkg/intake"
	"github.com/ghmbegerez/converge/pkg/models"
	"github.com/ghmbegerez/converge/pkg/projections"
	"github.com/ghmbegerez/converge/pkg/store/memory"
	"github.com/ghmbegerez/converge/pkg/webhook"
)

type fakeSignals struct{}

func (fakeSignals) RepoHealthScore(*string) (float64, string, float64, error) { return 90, "green", 0, nil }
func (fakeSignals) VerificationDebtScore(*string) (float64, string, error)    { return 5, "green", nil }
func (fakeSignals) QueueCounts(*string) (int, int, error)                    { return 0, 0, nil }

func newTestServer(t *testing.T) (*Server, *memory.Store) {
	t.Helper()
	m := memory.New()
	log := eventlog.New(m)
	disp := webhook.New(log, m, m, fakeSignals{}, intake.DefaultConfig(), nil)
	proj := projections.New(log, m, m)
	cfg := &config.Config{HTTP: &config.HTTPConfig{Port: "8080", GinMode: "test"}}
	s := NewServer(cfg, nil, disp, m, m, proj)
	return s, m
}

func TestReadyHandler(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body ReadyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Ready)
}

func TestGithubWebhookHandler_DispatchesPullRequestOpened(t *testing.T) {
	s, st := newTestServer(t)

	payload := map[string]any{
		"action": "opened",
		"pull_request": map[string]any{
			"number": 7, "title": "Add retries",
			"head": map[string]any{"ref": "feature/retry", "sha": "abc123"},
			"base": map[string]any{"ref": "main"},
		},
		"repository": map[string]any{"full_name": "acme/widgets"},
	}
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/github", bytes.NewReader(body))
	req.Header.Set("X-GitHub-Event", "pull_request")
	req.Header.Set("X-GitHub-Delivery", "delivery-1")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	_, found, err := st.GetIntent(req.Context(), "acme/widgets:pr-7")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestGithubWebhookHandler_DuplicateDeliveryRejected(t *testing.T) {
	s, _ := newTestServer(t)
	payload := map[string]any{"action": "opened", "pull_request": map[string]any{}, "repository": map[string]any{}}
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	makeReq := func() *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/github", bytes.NewReader(body))
		req.Header.Set("X-GitHub-Event", "pull_request")
		req.Header.Set("X-GitHub-Delivery", "delivery-dup")
		return req
	}

	rec1 := httptest.NewRecorder()
	s.router.ServeHTTP(rec1, makeReq())
	assert.Equal(t, http.StatusOK, rec1.Code)

	rec2 := httptest.NewRecorder()
	s.router.ServeHTTP(rec2, makeReq())
	assert.Equal(t, http.StatusConflict, rec2.Code)
}

func TestGithubWebhookHandler_InvalidSignatureRejected(t *testing.T) {
	t.Setenv(webhookSecretEnv, "shh")
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/github", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("X-GitHub-Event", "ping")
	req.Header.Set("X-Hub-Signature-256", "sha256=invalid")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetIntentHandler(t *testing.T) {
	s, st := newTestServer(t)
	intent := models.NewIntent("i-1", "feature/x", "main")
	require.NoError(t, st.PutIntent(t.Context(), intent))

	req := httptest.NewRequest(http.MethodGet, "/intents/i-1", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body IntentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "i-1", body.ID)
	assert.Equal(t, "feature/x", body.Source)
}

func TestGetIntentHandler_NotFound(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/intents/missing", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestQueueHandler(t *testing.T) {
	s, st := newTestServer(t)
	intent := models.NewIntent("i-2", "feature/y", "main")
	require.NoError(t, st.PutIntent(t.Context(), intent))

	req := httptest.NewRequest(http.MethodGet, "/queue", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var snapshot models.QueueStateSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshot))
	assert.Equal(t, 1, snapshot.Total)
}

func TestDashboardHealthHandler(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/dashboard/health", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var snapshot models.HealthSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshot))
	assert.Contains(t, []string{"green", "yellow", "red"}, snapshot.Status)
}

func TestEventsWebSocketHandler_UnconfiguredReturnsServiceUnavailable(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/events/ws", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestEventsWebSocketHandler_UpgradesAndDeliversBroadcast(t *testing.T) {
	s, _ := newTestServer(t)
	connMgr := events.NewConnectionManager(events.NewEventServiceAdapter(memory.New()), time.Second)
	s.Events = connMgr

	httpServer := httptest.NewServer(s.router)
	defer httpServer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + httpServer.URL[len("http"):] + "/events/ws"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var established map[string]any
	require.NoError(t, json.Unmarshal(data, &established))
	assert.Equal(t, "connection.established", established["type"])

	require.Eventually(t, func() bool {
		return connMgr.ActiveConnections() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRequireBearerToken_AppliesToProtectedRoutesOnly(t *testing.T) {
	t.Setenv(apiTokenEnvVar, "secret")
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, "unauthenticated routes stay open")

	req2 := httptest.NewRequest(http.MethodGet, "/queue", nil)
	rec2 := httptest.NewRecorder()
	s.router.ServeHTTP(rec2, req2)
	assert.Equal(t, http.StatusUnauthorized, rec2.Code, "protected routes require the bearer token")
}
