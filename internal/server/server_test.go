package server

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alanyoungcy/epochkeeper/internal/domain"
	"github.com/alanyoungcy/epochkeeper/internal/server/handler"
)

type emptySource struct{}

func (emptySource) Last() (domain.TickStatus, bool) { return domain.TickStatus{}, false }
func (emptySource) Entries() map[uint64]uint64      { return map[uint64]uint64{12: 1001} }
func (emptySource) Len() int                        { return 1 }

func newTestServer(apiKey string, origins []string) *Server {
	logger := slog.New(slog.DiscardHandler)
	return NewServer(Config{Port: 0, APIKey: apiKey, CORSOrigins: origins}, Handlers{
		Health: handler.NewHealthHandler(nil, logger),
		Status: handler.NewStatusHandler("run", emptySource{}, emptySource{}, nil),
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte("# metrics\n"))
		}),
	}, logger)
}

func do(s *Server, method, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestPublicRoutes(t *testing.T) {
	s := newTestServer("secret", nil)

	assert.Equal(t, http.StatusOK, do(s, http.MethodGet, "/api/health", nil).Code)

	rec := do(s, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "# metrics\n", rec.Body.String())
}

func TestAuthGuardsStatusAndLedger(t *testing.T) {
	s := newTestServer("secret", nil)

	rec := do(s, http.MethodGet, "/api/ledger", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing authentication token")

	rec = do(s, http.MethodGet, "/api/ledger", map[string]string{"X-API-Key": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(s, http.MethodGet, "/api/ledger", map[string]string{"Authorization": "Bearer secret"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"epoch":12`)

	rec = do(s, http.MethodGet, "/api/status", map[string]string{"X-API-Key": "secret"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestNoAPIKeyDisablesAuth(t *testing.T) {
	s := newTestServer("", nil)
	assert.Equal(t, http.StatusOK, do(s, http.MethodGet, "/api/ledger", nil).Code)
}

func TestMethodNotAllowed(t *testing.T) {
	s := newTestServer("", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, do(s, http.MethodPost, "/api/health", nil).Code)
}

func TestCORS(t *testing.T) {
	s := newTestServer("", []string{"https://dash.example"})

	rec := do(s, http.MethodGet, "/api/health", map[string]string{"Origin": "https://dash.example"})
	assert.Equal(t, "https://dash.example", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = do(s, http.MethodGet, "/api/health", map[string]string{"Origin": "https://evil.example"})
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	rec = do(s, http.MethodOptions, "/api/status", map[string]string{"Origin": "https://dash.example"})
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
