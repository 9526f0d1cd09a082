package http

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gdugdh24/kindred-backend/internal/delivery/http/handler"
	"github.com/gdugdh24/kindred-backend/internal/delivery/http/middleware"
	"github.com/gdugdh24/kindred-backend/internal/domain"
	"github.com/gdugdh24/kindred-backend/internal/infrastructure/metrics"
	"github.com/gdugdh24/kindred-backend/internal/repository/memory"
	"github.com/gdugdh24/kindred-backend/internal/textgen"
	"github.com/gdugdh24/kindred-backend/internal/usecase/auth"
	"github.com/gdugdh24/kindred-backend/internal/usecase/session"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testAPI struct {
	engine *gin.Engine
	store  *memory.Store
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	store := memory.NewStore()
	registry := session.NewRegistry(session.Dependencies{
		Store:      store,
		Generator:  textgen.NewGateway(nil, textgen.WithMetrics(m)),
		Metrics:    m,
		ReplyDelay: func() time.Duration { return 10 * time.Millisecond },
	})
	t.Cleanup(func() { require.NoError(t, registry.Close(context.Background())) })

	authUseCase := auth.NewAuthUseCase(memory.NewAuthSessions(), strings.Repeat("k", 32), time.Hour)
	router := NewRouter(
		handler.NewAuthHandler(authUseCase, registry),
		handler.NewSessionHandler(),
		handler.NewOnboardingHandler(),
		handler.NewExploreHandler(),
		handler.NewConversationHandler(),
		middleware.NewAuthMiddleware(authUseCase, registry),
		promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	)
	return &testAPI{engine: router.Setup(), store: store}
}

func (a *testAPI) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w
}

func (a *testAPI) guest(t *testing.T) (token, userID string) {
	t.Helper()
	w := a.do(t, http.MethodPost, "/api/v1/auth/guest", "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp handler.AuthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token, resp.User.UserID
}

func decodeView(t *testing.T, w *httptest.ResponseRecorder) session.View {
	t.Helper()
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var v session.View
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t)
	w := api.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodGet, "/api/v1/session", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = api.do(t, http.MethodGet, "/api/v1/session", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = api.do(t, http.MethodPost, "/api/v1/auth/external", "", map[string]string{"id_token": "garbage"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = api.do(t, http.MethodPost, "/api/v1/auth/external", "", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGuestJourney(t *testing.T) {
	api := newTestAPI(t)
	token, userID := api.guest(t)

	v := decodeView(t, api.do(t, http.MethodGet, "/api/v1/session", token, nil))
	assert.True(t, v.Loaded)
	require.NotNil(t, v.Profile)
	assert.Equal(t, userID, v.Profile.ID)
	assert.Len(t, v.Requests, 1)

	w := api.do(t, http.MethodGet, "/api/v1/explore", token, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	v = decodeView(t, api.do(t, http.MethodPost, "/api/v1/onboarding/start", token, nil))
	require.Len(t, v.Transcript, 1)

	w = api.do(t, http.MethodPost, "/api/v1/onboarding/goal", token, map[string]string{"goal": "Pen Pal"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	v = decodeView(t, api.do(t, http.MethodPost, "/api/v1/onboarding/options", token, map[string]string{
		"message_id": "initial",
		"option":     string(domain.RelationshipFriendship),
	}))
	last := v.Transcript[len(v.Transcript)-1]
	require.Equal(t, "q-0", last.ID)
	require.NotEmpty(t, last.Options)

	w = api.do(t, http.MethodPost, "/api/v1/onboarding/answer", token, map[string]any{"index": 0, "answer": "definitely not an option"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	v = decodeView(t, api.do(t, http.MethodPost, "/api/v1/onboarding/complete", token, map[string]any{
		"goal": string(domain.RelationshipFriendship),
		"tags": domain.Tags{Positive: []string{"hiking"}, Negative: []string{}},
	}))
	assert.True(t, v.Profile.OnboardingCompleted)
	assert.True(t, v.ShowExploreTabNotification)

	v = decodeView(t, api.do(t, http.MethodPut, "/api/v1/session/page", token, map[string]string{"page": "EXPLORE"}))
	assert.False(t, v.ShowExploreTabNotification)

	w = api.do(t, http.MethodGet, "/api/v1/explore", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var cards []session.ExploreCard
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cards))
	require.NotEmpty(t, cards)
	assert.Equal(t, session.CardRequest, cards[0].Type)

	w = api.do(t, http.MethodGet, "/api/v1/explore/mock-user-1/explanation", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var e textgen.Explanation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &e))
	assert.GreaterOrEqual(t, e.Rating, 0)
	assert.LessOrEqual(t, e.Rating, 100)
	assert.NotEmpty(t, e.Explanation)

	v = decodeView(t, api.do(t, http.MethodPost, "/api/v1/conversations/mock-user-2/messages", token, map[string]string{"text": "hey Benny"}))
	assert.Empty(t, v.Requests)
	require.Len(t, v.Conversations, 1)

	v = decodeView(t, api.do(t, http.MethodPost, "/api/v1/conversations/mock-user-2/view", token, nil))
	assert.Equal(t, "mock-user-2", v.ActiveConversation)
	assert.Zero(t, v.UnreadTotal)

	v = decodeView(t, api.do(t, http.MethodDelete, "/api/v1/conversations/active", token, nil))
	assert.Empty(t, v.ActiveConversation)

	v = decodeView(t, api.do(t, http.MethodPost, "/api/v1/explore/mock-user-2/dismiss", token, nil))
	assert.Empty(t, v.Conversations)

	v = decodeView(t, api.do(t, http.MethodPut, "/api/v1/profile", token, map[string]string{"name": "Sam"}))
	assert.Equal(t, "Sam", v.Profile.Name)

	w = api.do(t, http.MethodPut, "/api/v1/profile", token, map[string]string{"name": "Sam", "avatar": "not a url"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	v = decodeView(t, api.do(t, http.MethodPost, "/api/v1/profile/tags", token, map[string][]string{"positive": {"cats"}}))
	assert.Equal(t, []string{"hiking", "cats"}, v.Profile.Tags.Positive)

	w = api.do(t, http.MethodPut, "/api/v1/session/presence", token, map[string]bool{"visible": false})
	assert.Equal(t, http.StatusOK, w.Code)
	w = api.do(t, http.MethodPut, "/api/v1/session/presence", token, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogoutInvalidatesToken(t *testing.T) {
	api := newTestAPI(t)
	token, userID := api.guest(t)
	decodeView(t, api.do(t, http.MethodGet, "/api/v1/session", token, nil))

	w := api.do(t, http.MethodPost, "/api/v1/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = api.do(t, http.MethodGet, "/api/v1/session", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	rec, err := api.store.Read(context.Background(), userID)
	require.NoError(t, err)
	assert.False(t, rec.UserProfile.OnlineStatus.IsOnline())
}

func TestMetricsEndpoint(t *testing.T) {
	api := newTestAPI(t)
	token, _ := api.guest(t)
	decodeView(t, api.do(t, http.MethodGet, "/api/v1/session", token, nil))

	w := api.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "kindred_active_sessions")
}

func TestStreamSendsViews(t *testing.T) {
	api := newTestAPI(t)
	token, userID := api.guest(t)
	srv := httptest.NewServer(api.engine)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/session/stream", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	events := []string{}
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if name, ok := strings.CutPrefix(line, "event:"); ok {
			events = append(events, name)
		}
		if data, ok := strings.CutPrefix(line, "data:"); ok && len(events) > 0 && events[len(events)-1] == "view" {
			var v session.View
			require.NoError(t, json.Unmarshal([]byte(data), &v))
			assert.Equal(t, userID, v.Profile.ID)
			break
		}
	}
	assert.Equal(t, []string{"connected", "view"}, events)
}
