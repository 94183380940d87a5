package remote

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragconsole/internal/apperr"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return New(Config{BaseURL: ts.URL + "/"})
}

func TestHealth_SendsBearerCredential(t *testing.T) {
	var gotAuth, gotRequestID string
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get("X-Request-ID")
		w.Write([]byte(`{"status":"healthy"}`))
	})

	require.NoError(t, c.Health(context.Background(), "s3cret"))
	assert.Equal(t, "Bearer s3cret", gotAuth)
	assert.NotEmpty(t, gotRequestID)
}

func TestHealth_Rejected(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"Token inválido"}`))
	})

	err := c.Health(context.Background(), "wrong")
	require.Error(t, err)
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindRemote, e.Kind)
	assert.Equal(t, 401, e.Status)
	assert.Equal(t, "Token inválido", e.Message)
}

func TestHealth_TransportFailure(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	ts.Close()
	c := New(Config{BaseURL: ts.URL})

	err := c.Health(context.Background(), "x")
	assert.True(t, apperr.Is(err, apperr.KindTransport))
}

func TestStats_Flattens(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"vector_storage": {"total_chunks": 42, "collection_name": "rag_documents"},
			"documents": {"count": 3, "total_size_mb": 1.25, "processing_methods": {"docling": 2, "pypdf": 1}},
			"system": {"gemini_configured": true, "local_ai_available": true},
			"ai_config": {"current_mode": "auto", "available_modes": ["auto", "gemini", "local"]}
		}`))
	})

	stats, err := c.Stats(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, 42, stats.TotalChunks)
	assert.Equal(t, 3, stats.DocumentCount)
	assert.Equal(t, 1.25, stats.TotalSizeMB)
	assert.Equal(t, map[string]int{"docling": 2, "pypdf": 1}, stats.ProcessingMethods)
	assert.Equal(t, []string{"auto", "gemini", "local"}, stats.Backends)
	assert.True(t, stats.GeminiConfigured)
}

func TestListDocuments_EmptyIsNotNil(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"documents": null}`))
	})

	docs, err := c.ListDocuments(context.Background(), "k")
	require.NoError(t, err)
	assert.NotNil(t, docs)
	assert.Empty(t, docs)
}

func TestAddDocument(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/add-document", r.URL.Path)
		var req AddDocumentRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "https://x/doc.pdf", req.URL)
		w.Write([]byte(`{"chunks_created": 12, "processing_time": 3.4, "document_id": "d1"}`))
	})

	res, err := c.AddDocument(context.Background(), "k", AddDocumentRequest{URL: "https://x/doc.pdf"})
	require.NoError(t, err)
	assert.Equal(t, 12, res.ChunksCreated)
	assert.Equal(t, 3.4, res.ProcessingTime)
}

func TestUploadDocument_Multipart(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		data, _ := io.ReadAll(file)

		assert.Equal(t, "notes.txt", header.Filename)
		assert.Equal(t, "hello", string(data))
		assert.Equal(t, "My notes", r.FormValue("title"))
		w.Write([]byte(`{"chunks_created": 1, "processing_time": 0.2}`))
	})

	res, err := c.UploadDocument(context.Background(), "k", "notes.txt", strings.NewReader("hello"), "My notes")
	require.NoError(t, err)
	assert.Equal(t, 1, res.ChunksCreated)
}

func TestUploadDocument_OmitsBlankTitle(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, present := r.MultipartForm.Value["title"]
		assert.False(t, present)
		w.Write([]byte(`{"chunks_created": 1, "processing_time": 0.2}`))
	})

	_, err := c.UploadDocument(context.Background(), "k", "a.txt", strings.NewReader("x"), "  ")
	require.NoError(t, err)
}

func TestExportAll_FixedBodyAndFilename(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/export", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]any{"format": "json", "include_metadata": true}, body)

		w.Header().Set("Content-Type", "application/zip")
		w.Header().Set("Content-Disposition", "attachment; filename=rag_export_20240101_120000.zip")
		w.Write([]byte("PK\x03\x04"))
	})

	archive, err := c.ExportAll(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "rag_export_20240101_120000.zip", archive.Filename)
	assert.Equal(t, "application/zip", archive.ContentType)
	assert.Equal(t, []byte("PK\x03\x04"), archive.Data)
}

func TestExportAll_FailureDetail(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"detail":"disk full"}`))
	})

	_, err := c.ExportAll(context.Background(), "k")
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, "disk full", e.Message)
}

func TestDeleteDocument_EscapesID(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/documents/a%2Fb", r.URL.RawPath)
		w.Write([]byte(`{"message":"Document A deleted successfully"}`))
	})

	res, err := c.DeleteDocument(context.Background(), "k", "a/b")
	require.NoError(t, err)
	assert.Equal(t, "Document A deleted successfully", res.Message)
}

func TestClear_EmptyBody(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	res, err := c.Clear(context.Background(), "k")
	require.NoError(t, err)
	assert.Empty(t, res.Message)
}

func TestQuery_PreservesOrder(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req QueryRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 5, req.MaxResults)
		assert.Equal(t, "auto", req.AIMode)
		w.Write([]byte(`{"query":"q","answer":"a","ai_mode_used":"local","sources":[
			{"content":"low","score":0.1,"metadata":{}},
			{"content":"high","score":0.9,"metadata":{"title":"T"}}
		]}`))
	})

	res, err := c.Query(context.Background(), "k", QueryRequest{Query: "q", MaxResults: 5, AIMode: "auto"})
	require.NoError(t, err)
	require.Len(t, res.Sources, 2)
	assert.Equal(t, "low", res.Sources[0].Content)
	assert.Equal(t, "high", res.Sources[1].Content)
	assert.Equal(t, "local", res.BackendModeUsed)
}

func TestDetailFrom(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"string detail", 500, `{"detail":"disk full"}`, "disk full"},
		{"structured detail", 422, `{"detail":[{"loc":["body","url"]}]}`, `[{"loc":["body","url"]}]`},
		{"raw body", 502, "bad gateway from proxy", "bad gateway from proxy"},
		{"empty body", 503, "", "503 Service Unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, detailFrom(tt.status, []byte(tt.body)))
		})
	}
}
