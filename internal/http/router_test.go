package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragconsole/configuration"
	"ragconsole/internal/console"
	"ragconsole/internal/session"
	"ragconsole/internal/storage"
)

type fakeRemote struct {
	deletes atomic.Int32
	clears  atomic.Int32
	uploads atomic.Int32
}

func (f *fakeRemote) server(t *testing.T) *httptest.Server {
	write := func(w http.ResponseWriter, status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(v)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer k" {
			write(w, http.StatusUnauthorized, map[string]string{"detail": "Token inválido"})
			return
		}
		write(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	mux.HandleFunc("GET /stats", func(w http.ResponseWriter, r *http.Request) {
		write(w, http.StatusOK, map[string]any{"documents": map[string]any{"count": 1}})
	})
	mux.HandleFunc("GET /documents", func(w http.ResponseWriter, r *http.Request) {
		write(w, http.StatusOK, map[string]any{"documents": []map[string]any{{"id": "a", "title": "Alpha"}}})
	})
	mux.HandleFunc("GET /ai-config", func(w http.ResponseWriter, r *http.Request) {
		write(w, http.StatusOK, map[string]any{"current_mode": "auto", "available_modes": []string{"auto", "local"}})
	})
	mux.HandleFunc("POST /add-document", func(w http.ResponseWriter, r *http.Request) {
		write(w, http.StatusInternalServerError, map[string]string{"detail": "Could not download document"})
	})
	mux.HandleFunc("POST /upload-document", func(w http.ResponseWriter, r *http.Request) {
		f.uploads.Add(1)
		write(w, http.StatusOK, map[string]any{"chunks_created": 3, "processing_time": 1.5})
	})
	mux.HandleFunc("DELETE /documents/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.deletes.Add(1)
		write(w, http.StatusOK, map[string]string{"message": "Document deleted successfully"})
	})
	mux.HandleFunc("DELETE /clear", func(w http.ResponseWriter, r *http.Request) {
		f.clears.Add(1)
		write(w, http.StatusOK, map[string]string{"message": "cleared"})
	})
	mux.HandleFunc("POST /query", func(w http.ResponseWriter, r *http.Request) {
		write(w, http.StatusOK, map[string]any{"query": "q", "answer": "forty-two", "sources": []any{}})
	})

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

const consoleHost = "127.0.0.1:8090"

type harness struct {
	router *Router
	app    *console.Console
	remote *fakeRemote
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	remote := &fakeRemote{}
	ts := remote.server(t)

	cfg := &configuration.Config{
		Remote: configuration.RemoteConfig{BaseURL: ts.URL, MaxResults: 5, AIMode: "auto"},
		Console: configuration.ConsoleConfig{
			Host:           "127.0.0.1",
			Mode:           "release",
			AllowedOrigins: []string{"http://localhost:5173"},
		},
		Session: configuration.SessionConfig{ExpireOnUnauthorized: true},
		Notice:  configuration.NoticeConfig{TTL: time.Minute},
		Export:  configuration.ExportConfig{ConfirmTTL: time.Minute},
		App:     configuration.AppConfig{Name: "ragconsole", Version: "test", Environment: "development"},
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	app, err := console.New(cfg, logger, console.Deps{
		Store: session.NewMemoryStore(),
		Sink:  storage.NewLocalSink(t.TempDir()),
	})
	require.NoError(t, err)
	t.Cleanup(app.Close)

	router := NewRouter(cfg, app)
	router.SetupRoutes()
	return &harness{router: router, app: app, remote: remote}
}

func (h *harness) login(t *testing.T) {
	t.Helper()
	require.NoError(t, h.app.Session().Login(context.Background(), "k"))
}

func (h *harness) do(t *testing.T, method, path string, body any, header ...string) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	return h.serve(t, req)
}

func (h *harness) serve(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	if req.Host == "example.com" {
		req.Host = consoleHost
	}
	w := httptest.NewRecorder()
	h.router.Engine().ServeHTTP(w, req)

	var resp Response
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

func dataMap(t *testing.T, resp Response) map[string]any {
	t.Helper()
	m, ok := resp.Data.(map[string]any)
	require.True(t, ok, "data is %T", resp.Data)
	return m
}

func TestHealth(t *testing.T) {
	h := newHarness(t)

	w, resp := h.do(t, http.MethodGet, "/api/v1/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)
	data := dataMap(t, resp)
	assert.Equal(t, "healthy", data["status"])
	assert.Equal(t, false, data["authenticated"])
}

func TestProtectedRoutesRequireLogin(t *testing.T) {
	h := newHarness(t)

	for _, path := range []string{"/api/v1/catalog/stats", "/api/v1/catalog/documents", "/api/v1/ai-config"} {
		w, resp := h.do(t, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
		require.NotNil(t, resp.Error)
		assert.Equal(t, string(ErrUnauthorized), resp.Error.Code)
	}
}

func TestLogin(t *testing.T) {
	h := newHarness(t)

	w, resp := h.do(t, http.MethodPost, "/api/v1/session/login", map[string]string{"password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, resp.Success)
	assert.False(t, h.app.Session().Authenticated())

	w, resp = h.do(t, http.MethodPost, "/api/v1/session/login", map[string]string{"password": "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, string(ErrValidation), resp.Error.Code)

	w, resp = h.do(t, http.MethodPost, "/api/v1/session/login", map[string]string{"password": "k"})
	assert.Equal(t, http.StatusOK, w.Code)
	session := dataMap(t, resp)["session"].(map[string]any)
	assert.Equal(t, true, session["authenticated"])
}

func TestLogout(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	w, _ := h.do(t, http.MethodPost, "/api/v1/session/logout", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, h.app.Session().Authenticated())
}

func TestDeleteDocument_ConfirmationFlow(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	w, resp := h.do(t, http.MethodDelete, "/api/v1/documents/a", nil)
	require.Equal(t, http.StatusPreconditionRequired, w.Code)
	assert.Equal(t, string(ErrConfirmationRequired), resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "Alpha")
	assert.Zero(t, h.remote.deletes.Load())

	token, _ := dataMap(t, resp)["confirmToken"].(string)
	require.NotEmpty(t, token)

	w, _ = h.do(t, http.MethodDelete, "/api/v1/documents/a", nil, confirmHeader, token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, h.remote.deletes.Load())

	// A token is single use.
	w, _ = h.do(t, http.MethodDelete, "/api/v1/documents/a", nil, confirmHeader, token)
	assert.Equal(t, http.StatusPreconditionRequired, w.Code)
	assert.EqualValues(t, 1, h.remote.deletes.Load())
}

func TestClear_TokenBoundToAction(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	_, resp := h.do(t, http.MethodDelete, "/api/v1/documents/a", nil)
	deleteToken := dataMap(t, resp)["confirmToken"].(string)

	w, resp := h.do(t, http.MethodDelete, "/api/v1/catalog", nil, confirmHeader, deleteToken)
	require.Equal(t, http.StatusPreconditionRequired, w.Code)
	assert.Zero(t, h.remote.clears.Load())

	clearToken := dataMap(t, resp)["confirmToken"].(string)
	w, _ = h.do(t, http.MethodDelete, "/api/v1/catalog", nil, confirmHeader, clearToken)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, h.remote.clears.Load())
}

func TestAddByURL_Errors(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	w, resp := h.do(t, http.MethodPost, "/api/v1/documents/url", map[string]string{"url": "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, string(ErrValidation), resp.Error.Code)

	w, resp = h.do(t, http.MethodPost, "/api/v1/documents/url", map[string]string{"url": "https://example.com/a.pdf"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "Could not download document", resp.Error.Message)

	n, ok := h.app.Notices().Current()
	require.True(t, ok)
	assert.Equal(t, "Error: Could not download document", n.Text)
}

func TestUpload(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", "notes.txt")
	require.NoError(t, err)
	_, _ = part.Write([]byte("some notes"))
	require.NoError(t, form.WriteField("title", "Notes"))
	require.NoError(t, form.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/upload", &body)
	req.Header.Set("Content-Type", form.FormDataContentType())
	w, resp := h.serve(t, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 3, dataMap(t, resp)["chunks_created"])
	assert.EqualValues(t, 1, h.remote.uploads.Load())
}

func TestUpload_MissingFile(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	require.NoError(t, form.WriteField("title", "Notes"))
	require.NoError(t, form.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/upload", &body)
	req.Header.Set("Content-Type", form.FormDataContentType())
	w, _ := h.serve(t, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, h.remote.uploads.Load())
}

func TestQuery(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	w, resp := h.do(t, http.MethodPost, "/api/v1/query", map[string]string{"query": "meaning of life"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "forty-two", dataMap(t, resp)["answer"])

	w, _ = h.do(t, http.MethodPost, "/api/v1/query", map[string]string{"query": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSetMode(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	w, _ := h.do(t, http.MethodPut, "/api/v1/view/mode", map[string]string{"mode": "sideways"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, resp := h.do(t, http.MethodPut, "/api/v1/view/mode", map[string]string{"mode": "documents"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "documents", dataMap(t, resp)["mode"])
}

func TestDismissNotice(t *testing.T) {
	h := newHarness(t)
	h.app.Notices().Post("hello")

	w, resp := h.do(t, http.MethodDelete, "/api/v1/notice", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, dataMap(t, resp)["dismissed"])
	_, ok := h.app.Notices().Current()
	assert.False(t, ok)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(t)
	h.do(t, http.MethodGet, "/api/v1/health", nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Host = consoleHost
	w := httptest.NewRecorder()
	h.router.Engine().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ragconsole_http_requests_total")
}

func TestForeignOriginCannotClear(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/catalog", nil)
	req.Header.Set("Origin", "https://evil.example")
	req.Header.Set("Access-Control-Request-Method", "DELETE")
	w, _ := h.serve(t, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	w, resp := h.do(t, http.MethodDelete, "/api/v1/catalog", nil, "Origin", "https://evil.example")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Nil(t, resp.Data, "no confirmation token for a foreign origin")

	token := h.app.IssueConfirmation("clear")
	w, _ = h.do(t, http.MethodDelete, "/api/v1/catalog", nil, "Origin", "https://evil.example", confirmHeader, token)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Zero(t, h.remote.clears.Load())
}

func TestOriginPolicy(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name   string
		host   string
		origin string
		want   int
	}{
		{"no origin", consoleHost, "", http.StatusOK},
		{"same host", consoleHost, "http://" + consoleHost, http.StatusOK},
		{"listed origin", consoleHost, "http://localhost:5173", http.StatusOK},
		{"localhost host", "localhost:8090", "", http.StatusOK},
		{"foreign origin", consoleHost, "https://evil.example", http.StatusForbidden},
		{"null origin", consoleHost, "null", http.StatusForbidden},
		{"rebound host", "evil.example:8090", "http://evil.example:8090", http.StatusForbidden},
		{"rebound host without origin", "evil.example:8090", "", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/state", nil)
			req.Host = tt.host
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w, _ := h.serve(t, req)
			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusOK && tt.origin != "" {
				assert.Equal(t, tt.origin, w.Header().Get("Access-Control-Allow-Origin"))
			}
		})
	}
}

func TestWebSocket_RejectsForeignOrigin(t *testing.T) {
	h := newHarness(t)
	srv := httptest.NewServer(h.router.Engine())
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"https://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestWebSocket_PushesState(t *testing.T) {
	h := newHarness(t)
	srv := httptest.NewServer(h.router.Engine())
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() wsEnvelope {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		var env wsEnvelope
		require.NoError(t, conn.ReadJSON(&env))
		return env
	}

	first := read()
	assert.Equal(t, "state", first.Type)
	var payload wsStatePayload
	require.NoError(t, json.Unmarshal(first.Payload, &payload))
	assert.Equal(t, "connected", payload.Reason)
	assert.False(t, payload.State.Session.Authenticated)

	require.NoError(t, conn.WriteJSON(wsEnvelope{Type: "ping"}))
	assert.Equal(t, "pong", read().Type)

	require.NoError(t, conn.WriteJSON(wsEnvelope{Type: "bogus"}))
	assert.Equal(t, "error", read().Type)

	h.app.Notices().Post("pushed")
	for {
		env := read()
		if env.Type != "state" {
			continue
		}
		require.NoError(t, json.Unmarshal(env.Payload, &payload))
		if payload.State.Notice != nil && payload.State.Notice.Text == "pushed" {
			break
		}
	}
}
