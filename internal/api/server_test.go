package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c3po-initiative/dhroxy-frontend-example/internal/domain"
	"github.com/c3po-initiative/dhroxy-frontend-example/internal/middleware"
	"github.com/c3po-initiative/dhroxy-frontend-example/internal/profile"
	"github.com/c3po-initiative/dhroxy-frontend-example/internal/service"
	"github.com/c3po-initiative/dhroxy-frontend-example/pkg/external"
)

const labBundle = `{
  "resourceType": "Bundle",
  "type": "searchset",
  "entry": [
    {"resource": {
      "resourceType": "Observation", "id": "o1",
      "code": {"text": "Ferritin"},
      "valueQuantity": {"value": 900, "unit": "µg/L"},
      "effectiveDateTime": "2024-01-01T08:00:00Z",
      "interpretation": [{"coding": [{"code": "HH"}]}]
    }},
    {"resource": {
      "resourceType": "Observation", "id": "o2",
      "code": {"text": "Natrium"},
      "valueQuantity": {"value": 140, "unit": "mmol/L"},
      "effectiveDateTime": "2024-01-01T08:00:00Z",
      "referenceRange": [{"low": {"value": 137}, "high": {"value": 145}}]
    }}
  ]
}`

func init() {
	gin.SetMode(gin.TestMode)
}

type staticConfig struct {
	cfg *domain.Config
}

func (s *staticConfig) GetConfig() *domain.Config                 { return s.cfg }
func (s *staticConfig) GetDatabaseConfig() *domain.DatabaseConfig { return &s.cfg.Database }
func (s *staticConfig) GetUpstreamConfig() *domain.UpstreamConfig { return &s.cfg.Upstream }
func (s *staticConfig) GetServerConfig() *domain.ServerConfig     { return &s.cfg.Server }
func (s *staticConfig) Validate() error                           { return nil }
func (s *staticConfig) IsProduction() bool                        { return false }

// upstream fakes the FHIR proxy and the chat API.
type upstream struct {
	mu      sync.Mutex
	fhir    *httptest.Server
	chat    *httptest.Server
	cookies []string
	fail    bool
}

func newUpstream(t *testing.T) *upstream {
	t.Helper()
	u := &upstream{}
	u.fhir = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		u.cookies = append(u.cookies, r.Header.Get(external.HeaderCookie))
		fail := u.fail
		u.mu.Unlock()

		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/fhir+json")
		switch r.URL.Path {
		case "/fhir/Observation":
			_, _ = io.WriteString(w, labBundle)
		case "/fhir/Patient":
			_, _ = io.WriteString(w, `{"resourceType":"Bundle","type":"searchset","entry":[{"resource":{"resourceType":"Patient","id":"p1","name":[{"given":["Anne"],"family":"Hansen"}]}}]}`)
		case "/fhir/Condition":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			_, _ = io.WriteString(w, `{"resourceType":"Bundle","type":"searchset"}`)
		}
	}))
	u.chat = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		last := req.Messages[len(req.Messages)-1].Content
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]string{{"type": "text", "text": "Svar på: " + last}},
		})
	}))
	t.Cleanup(func() {
		u.fhir.Close()
		u.chat.Close()
	})
	return u
}

func (u *upstream) lastCookie() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.cookies) == 0 {
		return ""
	}
	return u.cookies[len(u.cookies)-1]
}

func newTestServer(t *testing.T, u *upstream, probes map[string]Probe) *Server {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg := &domain.Config{
		Server:  domain.ServerConfig{RequestTimeout: 5 * time.Second, CORSOrigins: []string{"*"}},
		Logging: domain.LoggingConfig{Level: "info"},
	}
	fhir := external.NewFHIRClient(domain.UpstreamConfig{BaseURL: u.fhir.URL + "/fhir", Timeout: 2 * time.Second}, nil, logger)
	chat := external.NewChatClient(domain.ChatConfig{Endpoint: u.chat.URL, Model: "test"}, logger)
	store := profile.NewMemoryStore()

	health := service.NewHealthService(fhir, nil, store, 7, logger)
	chatSvc := service.NewChatService(chat, health, store, nil, logger)

	return NewServer(&staticConfig{cfg: cfg}, Dependencies{
		Health: health,
		Chat:   chatSvc,
		Probes: probes,
		Breakers: func() []external.BreakerState {
			return []external.BreakerState{fhir.BreakerState(), chat.BreakerState()}
		},
	}, logger)
}

func perform(s *Server, method, path string, body io.Reader, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

// tiers decodes result lists loosely; the observation payload is an interface.
type tiers struct {
	Action  []json.RawMessage `json:"action"`
	OK      []json.RawMessage `json:"ok"`
	Missing []string          `json:"missing"`
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) domain.ServiceError {
	t.Helper()
	var out domain.ServiceError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealthEndpoint(t *testing.T) {
	u := newUpstream(t)

	tests := []struct {
		name   string
		probes map[string]Probe
		code   int
		status string
	}{
		{"no probes", nil, http.StatusOK, "healthy"},
		{"passing probe", map[string]Probe{"profile": func(context.Context) error { return nil }}, http.StatusOK, "healthy"},
		{"failing probe", map[string]Probe{"cache": func(context.Context) error { return errors.New("redis down") }}, http.StatusServiceUnavailable, "degraded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := perform(newTestServer(t, u, tt.probes), http.MethodGet, "/health", nil)
			assert.Equal(t, tt.code, w.Code)

			var body map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.status, body["status"])
			assert.Len(t, body["circuit_breakers"], 2)
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, newUpstream(t), nil)
	perform(s, http.MethodGet, "/health", nil)

	w := perform(s, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "dhroxy_http_requests_total")
}

func TestLabsPrioritized(t *testing.T) {
	u := newUpstream(t)
	s := newTestServer(t, u, nil)

	w := perform(s, http.MethodGet, "/api/v1/labs/prioritized", nil, external.HeaderCookie, "session=abc")
	require.Equal(t, http.StatusOK, w.Code)

	var out tiers
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Len(t, out.Action, 1)
	assert.Len(t, out.OK, 1)
	assert.Equal(t, "session=abc", u.lastCookie())
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestUpstreamFailure(t *testing.T) {
	u := newUpstream(t)
	u.fail = true
	s := newTestServer(t, u, nil)

	w := perform(s, http.MethodGet, "/api/v1/labs/panel", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)

	out := decodeError(t, w)
	assert.Equal(t, domain.ErrUpstream, out.Code)
	assert.Equal(t, "HTTP error! status: 500", out.Details)
	assert.Equal(t, w.Header().Get(middleware.CorrelationIDHeader), out.RequestID)
}

func TestClassify(t *testing.T) {
	s := newTestServer(t, newUpstream(t), nil)

	w := perform(s, http.MethodPost, "/api/v1/labs/classify", strings.NewReader(labBundle))
	require.Equal(t, http.StatusOK, w.Code)
	var prioritized tiers
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &prioritized))
	assert.Len(t, prioritized.Action, 1)

	w = perform(s, http.MethodPost, "/api/v1/labs/classify?mode=threshold", strings.NewReader(labBundle))
	require.Equal(t, http.StatusOK, w.Code)
	var panel tiers
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &panel))
	assert.NotEmpty(t, panel.Missing)

	tests := []struct {
		name string
		path string
		body string
	}{
		{"not json", "/api/v1/labs/classify", "nope"},
		{"not a bundle", "/api/v1/labs/classify", `{"resourceType":"Patient"}`},
		{"unknown mode", "/api/v1/labs/classify?mode=magic", labBundle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := perform(s, http.MethodPost, tt.path, strings.NewReader(tt.body))
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, domain.ErrValidation, decodeError(t, w).Code)
		})
	}
}

func TestDashboards(t *testing.T) {
	s := newTestServer(t, newUpstream(t), nil)

	w := perform(s, http.MethodGet, "/api/v1/dashboards", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = perform(s, http.MethodGet, "/api/v1/dashboards/diabetes", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = perform(s, http.MethodGet, "/api/v1/dashboards/kidney", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, domain.ErrNotFoundCode, decodeError(t, w).Code)
}

func TestSleepValidation(t *testing.T) {
	s := newTestServer(t, newUpstream(t), nil)

	w := perform(s, http.MethodGet, "/api/v1/sleep?days=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// no HealthKit bridge configured
	w = perform(s, http.MethodGet, "/api/v1/sleep?days=7", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestSnapshot(t *testing.T) {
	s := newTestServer(t, newUpstream(t), nil)

	w := perform(s, http.MethodGet, "/api/v1/snapshot?cached=true", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = perform(s, http.MethodGet, "/api/v1/snapshot", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var out snapshotResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, 3, out.Entries)
	assert.Equal(t, 2, out.Counts["Observation"])
	assert.Len(t, out.Persons, 1)
	assert.Contains(t, out.Failed, "Condition")

	w = perform(s, http.MethodGet, "/api/v1/snapshot?cached=true", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSnapshot_CachedPerCredentials(t *testing.T) {
	s := newTestServer(t, newUpstream(t), nil)

	w := perform(s, http.MethodGet, "/api/v1/snapshot", nil, external.HeaderCookie, "session-a")
	require.Equal(t, http.StatusOK, w.Code)

	w = perform(s, http.MethodGet, "/api/v1/snapshot?cached=true", nil, external.HeaderCookie, "session-a")
	assert.Equal(t, http.StatusOK, w.Code)

	w = perform(s, http.MethodGet, "/api/v1/snapshot?cached=true", nil, external.HeaderCookie, "session-b")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = perform(s, http.MethodGet, "/api/v1/snapshot?cached=true", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPatients(t *testing.T) {
	s := newTestServer(t, newUpstream(t), nil)

	w := perform(s, http.MethodGet, "/api/v1/patients", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Anne Hansen")
}

func TestProfile(t *testing.T) {
	s := newTestServer(t, newUpstream(t), nil)

	w := perform(s, http.MethodGet, "/api/v1/profile", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var settings domain.Settings
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &settings))
	assert.Equal(t, 7, settings.Lifestyle.SleepHours)

	body := `{"lifestyle":{"smoker":true,"sleepHours":6},"auth_headers":{"Cookie":"session=xyz"}}`
	w = perform(s, http.MethodPut, "/api/v1/profile", strings.NewReader(body))
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &settings))
	assert.True(t, settings.Lifestyle.Smoker)
	assert.Equal(t, "session=xyz", settings.AuthHeaders[external.HeaderCookie])

	w = perform(s, http.MethodPut, "/api/v1/profile", strings.NewReader(`{"lifestyle":{"sleepHours":30}}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = perform(s, http.MethodGet, "/api/v1/recommendations", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "smoking")
}

func TestChat(t *testing.T) {
	s := newTestServer(t, newUpstream(t), nil)

	w := perform(s, http.MethodPost, "/api/v1/chat", bytes.NewBufferString(`{"message":"Hvad er ferritin?"}`))
	require.Equal(t, http.StatusOK, w.Code)
	var reply service.ChatReply
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reply))
	assert.Equal(t, "Svar på: Hvad er ferritin?", reply.Message.Content)
	assert.False(t, reply.Degraded)

	w = perform(s, http.MethodGet, "/api/v1/chat", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history struct {
		Messages []domain.ChatMessage `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
	assert.Len(t, history.Messages, 2)

	// saving the profile keeps the transcript
	w = perform(s, http.MethodPut, "/api/v1/profile", strings.NewReader(`{"lifestyle":{"sleepHours":8}}`))
	require.Equal(t, http.StatusOK, w.Code)
	var settings domain.Settings
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &settings))
	assert.Len(t, settings.ChatMessages, 2)

	w = perform(s, http.MethodDelete, "/api/v1/chat", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	tests := []struct {
		name string
		body string
	}{
		{"empty message", `{"message":"  "}`},
		{"bad conversation id", `{"message":"hej","conversation_id":"42"}`},
		{"unknown mode", `{"message":"hej","mode":"doctor"}`},
		{"malformed", `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := perform(s, http.MethodPost, "/api/v1/chat", strings.NewReader(tt.body))
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestChatSocket(t *testing.T) {
	s := newTestServer(t, newUpstream(t), nil)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/chat/ws?mode=lab"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.NotEmpty(t, resp.Header.Get(middleware.CorrelationIDHeader))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("Hej")))
	var first service.ChatReply
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "Svar på: Hej", first.Message.Content)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("Tak")))
	var second service.ChatReply
	require.NoError(t, conn.ReadJSON(&second))
	assert.Equal(t, first.ConversationID, second.ConversationID)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("   ")))
	var rejected domain.ServiceError
	require.NoError(t, conn.ReadJSON(&rejected))
	assert.Equal(t, domain.ErrValidation, rejected.Code)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, newUpstream(t), nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/labs/prioritized", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	req.Header.Set("Access-Control-Request-Headers", external.HeaderCookie)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
