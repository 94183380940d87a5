package console

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragconsole/configuration"
	"ragconsole/internal/notice"
	"ragconsole/internal/session"
	"ragconsole/internal/storage"
	"ragconsole/internal/view"
)

type fakeBackend struct {
	documentsCalls atomic.Int32
	cleared        atomic.Bool

	// While holding, query and clear signal started and wait for hold.
	holding atomic.Bool
	hold    chan struct{}
	started chan struct{}
}

func (f *fakeBackend) pause() {
	if !f.holding.Load() {
		return
	}
	f.started <- struct{}{}
	<-f.hold
}

func (f *fakeBackend) server(t *testing.T) *httptest.Server {
	write := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(v)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer k" {
			w.WriteHeader(http.StatusUnauthorized)
			write(w, map[string]string{"detail": "Token inválido"})
			return
		}
		write(w, map[string]string{"status": "healthy"})
	})
	mux.HandleFunc("GET /stats", func(w http.ResponseWriter, r *http.Request) {
		count := 2
		if f.cleared.Load() {
			count = 0
		}
		write(w, map[string]any{"documents": map[string]any{"count": count}})
	})
	mux.HandleFunc("GET /documents", func(w http.ResponseWriter, r *http.Request) {
		f.documentsCalls.Add(1)
		if f.cleared.Load() {
			write(w, map[string]any{"documents": []any{}})
			return
		}
		write(w, map[string]any{"documents": []map[string]any{{"id": "a", "title": "Alpha"}, {"id": "b", "title": "Beta"}}})
	})
	mux.HandleFunc("GET /ai-config", func(w http.ResponseWriter, r *http.Request) {
		write(w, map[string]any{"current_mode": "auto"})
	})
	mux.HandleFunc("POST /query", func(w http.ResponseWriter, r *http.Request) {
		f.pause()
		write(w, map[string]any{"query": "q", "answer": "a", "sources": []any{}})
	})
	mux.HandleFunc("DELETE /clear", func(w http.ResponseWriter, r *http.Request) {
		f.pause()
		f.cleared.Store(true)
		write(w, map[string]string{"message": "ok"})
	})

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func testConfig(baseURL string) *configuration.Config {
	return &configuration.Config{
		Remote:  configuration.RemoteConfig{BaseURL: baseURL, MaxResults: 5, AIMode: "auto"},
		Session: configuration.SessionConfig{ExpireOnUnauthorized: true},
		Notice:  configuration.NoticeConfig{TTL: time.Minute},
		Export:  configuration.ExportConfig{ConfirmTTL: time.Minute},
		App:     configuration.AppConfig{Name: "ragconsole", Environment: "development"},
	}
}

func newTestConsole(t *testing.T, store session.Store) (*Console, *fakeBackend, *bytes.Buffer) {
	t.Helper()
	backend := &fakeBackend{hold: make(chan struct{}), started: make(chan struct{}, 1)}
	ts := backend.server(t)

	var term bytes.Buffer
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c, err := New(testConfig(ts.URL), logger, Deps{
		Store:    store,
		Sink:     storage.NewLocalSink(t.TempDir()),
		Terminal: &term,
	})
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c, backend, &term
}

func TestLogin_LoadsCatalog(t *testing.T) {
	c, _, _ := newTestConsole(t, session.NewMemoryStore())

	require.NoError(t, c.Session().Login(context.Background(), "k"))

	st := c.State()
	assert.True(t, st.Session.Authenticated)
	require.NotNil(t, st.Catalog.Stats)
	assert.Equal(t, 2, st.Catalog.Stats.DocumentCount)
	assert.Equal(t, view.ScreenConsole, st.View.Screen)
	assert.Equal(t, view.PanelStatistics, st.View.Catalog)
	require.NotNil(t, st.Notice)
	assert.Equal(t, session.MsgAuthenticated, st.Notice.Text)
}

func TestLogoutThenRestore_EmptyState(t *testing.T) {
	store := session.NewMemoryStore()
	c, _, _ := newTestConsole(t, store)
	ctx := context.Background()

	require.NoError(t, c.Session().Login(ctx, "k"))
	_, err := c.Query().Submit(ctx, "what?")
	require.NoError(t, err)

	c.Session().Logout()
	require.NoError(t, c.Start(ctx))

	st := c.State()
	assert.False(t, st.Session.Authenticated)
	assert.Nil(t, st.Catalog.Stats)
	assert.Empty(t, st.Catalog.Documents)
	assert.Nil(t, st.Query.Result)
	assert.Equal(t, view.ScreenLogin, st.View.Screen)
}

func TestLogout_DropsQueryAnswerStillInFlight(t *testing.T) {
	c, backend, _ := newTestConsole(t, session.NewMemoryStore())
	ctx := context.Background()
	require.NoError(t, c.Session().Login(ctx, "k"))

	backend.holding.Store(true)

	done := make(chan error, 1)
	go func() {
		_, err := c.Query().Submit(ctx, "what?")
		done <- err
	}()
	<-backend.started

	c.Session().Logout()
	close(backend.hold)
	require.NoError(t, <-done)

	st := c.State()
	assert.False(t, st.Session.Authenticated)
	assert.Nil(t, st.Query.Result)
	assert.Empty(t, st.Query.Draft)
	assert.False(t, st.Query.Pending)
}

func TestLogout_DropsClearStillInFlight(t *testing.T) {
	c, backend, _ := newTestConsole(t, session.NewMemoryStore())
	ctx := context.Background()
	require.NoError(t, c.Session().Login(ctx, "k"))

	backend.holding.Store(true)

	token := c.IssueConfirmation("clear")
	done := make(chan error, 1)
	go func() {
		done <- c.Catalog().ClearAll(ctx, c.Confirmation("clear", token))
	}()
	<-backend.started

	c.Session().Logout()
	close(backend.hold)
	require.NoError(t, <-done)

	st := c.State()
	assert.Nil(t, st.Catalog.Stats)
	assert.Empty(t, st.Catalog.Documents)
	require.NotNil(t, st.Notice)
	assert.Equal(t, session.MsgLoggedOut, st.Notice.Text)
}

func TestStart_RestoresPersistedCredential(t *testing.T) {
	store := session.NewMemoryStore()
	require.NoError(t, store.Set(session.CredentialKey, "k"))
	c, _, _ := newTestConsole(t, store)

	require.NoError(t, c.Start(context.Background()))
	assert.True(t, c.State().Session.Authenticated)
}

func TestSetMode_DocumentsLoadsList(t *testing.T) {
	c, backend, _ := newTestConsole(t, session.NewMemoryStore())
	ctx := context.Background()
	require.NoError(t, c.Session().Login(ctx, "k"))
	before := backend.documentsCalls.Load()

	require.NoError(t, c.SetMode(ctx, view.ModeDocuments))
	assert.Equal(t, before+1, backend.documentsCalls.Load())

	st := c.State()
	assert.Equal(t, view.PanelDocuments, st.View.Catalog)
	assert.Len(t, st.View.Rows, 2)

	require.NoError(t, c.SetMode(ctx, view.ModeStatistics))
	assert.Equal(t, before+1, backend.documentsCalls.Load())
}

func TestClearAll_ClearsQueryResult(t *testing.T) {
	c, _, _ := newTestConsole(t, session.NewMemoryStore())
	ctx := context.Background()
	require.NoError(t, c.Session().Login(ctx, "k"))
	_, err := c.Query().Submit(ctx, "what?")
	require.NoError(t, err)

	err = c.Catalog().ClearAll(ctx, c.Confirmation("clear", "bogus"))
	require.Error(t, err)

	token := c.IssueConfirmation("clear")
	require.NoError(t, c.Catalog().ClearAll(ctx, c.Confirmation("clear", token)))

	st := c.State()
	assert.Empty(t, st.Catalog.Documents)
	assert.Equal(t, 0, st.Catalog.Stats.DocumentCount)
	assert.Nil(t, st.Query.Result)
	assert.Equal(t, view.PanelEmpty, st.View.Catalog)
}

func TestEvents_PublishedOnChange(t *testing.T) {
	c, _, _ := newTestConsole(t, session.NewMemoryStore())
	ch := c.Events().Subscribe()
	defer c.Events().Unsubscribe(ch)

	require.NoError(t, c.Session().Login(context.Background(), "k"))

	seen := map[string]bool{}
	timeout := time.After(time.Second)
	for !seen[EventSession] || !seen[EventCatalog] || !seen[EventNotice] {
		select {
		case ev := <-ch:
			seen[ev.Type] = true
		case <-timeout:
			t.Fatalf("missing events, saw %v", seen)
		}
	}
}

func TestPrinter_EchoesNotices(t *testing.T) {
	c, _, term := newTestConsole(t, session.NewMemoryStore())
	require.Error(t, c.Session().Login(context.Background(), "wrong"))

	c.Close()
	assert.Contains(t, term.String(), session.MsgAuthFailed)
}

func TestLedger(t *testing.T) {
	l := NewLedger(time.Minute)

	token := l.Issue("delete:a")
	assert.False(t, l.Consume(token, "delete:b"))
	assert.False(t, l.Consume(token, "delete:a"), "a token is single use")

	token = l.Issue("delete:a")
	assert.True(t, l.Consume(token, "delete:a"))
	assert.False(t, l.Consume("", "delete:a"))
}

func TestLedger_Expires(t *testing.T) {
	l := NewLedger(20 * time.Millisecond)
	token := l.Issue("clear")
	time.Sleep(40 * time.Millisecond)
	assert.False(t, l.Consume(token, "clear"))
}

func TestPrinter_Colors(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)
	p.Print(notice.Event{Type: notice.EventPosted, Notification: &notice.Notification{Text: "Error: disk full", CreatedAt: time.Now()}})
	p.Print(notice.Event{Type: notice.EventCleared})

	out := buf.String()
	assert.Contains(t, out, "Error: disk full")
	assert.Contains(t, out, "notice cleared")
	assert.True(t, isFailure("Connection error: refused"))
	assert.False(t, isFailure("Document added successfully!"))
}

func TestStart_CorruptCredentialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))
	c, _, _ := newTestConsole(t, session.NewFileStore(path, ""))

	require.NoError(t, c.Start(context.Background()))
	assert.False(t, c.State().Session.Authenticated)

	require.NoError(t, c.Session().Login(context.Background(), "k"))
	assert.True(t, c.State().Session.Authenticated)
}
