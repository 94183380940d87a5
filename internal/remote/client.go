// Package remote is the HTTP client for the retrieval/answer service.
// Every call carries the credential it is given; the client keeps none.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"ragconsole/internal/apperr"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

type Config struct {
	BaseURL string
	// Timeout of zero leaves requests bounded only by the transport.
	Timeout    time.Duration
	HTTPClient *http.Client
}

func New(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        100,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		}
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
	}
}

// Health calls the liveness endpoint with credential. Any non-2xx answer or
// transport failure is returned as an error.
func (c *Client) Health(ctx context.Context, credential string) error {
	resp, err := c.do(ctx, "health", credential, http.MethodGet, "/health", nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) Stats(ctx context.Context, credential string) (*Stats, error) {
	var wire statsWire
	if err := c.getJSON(ctx, "stats", credential, "/stats", &wire); err != nil {
		return nil, err
	}
	return wire.flatten(), nil
}

func (c *Client) ListDocuments(ctx context.Context, credential string) ([]Document, error) {
	var list DocumentList
	if err := c.getJSON(ctx, "list-documents", credential, "/documents", &list); err != nil {
		return nil, err
	}
	if list.Documents == nil {
		list.Documents = []Document{}
	}
	return list.Documents, nil
}

func (c *Client) AddDocument(ctx context.Context, credential string, req AddDocumentRequest) (*IngestResult, error) {
	var result IngestResult
	if err := c.postJSON(ctx, "add-document", credential, "/add-document", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UploadDocument sends a multipart form with the file and, when non-empty, its title.
func (c *Client) UploadDocument(ctx context.Context, credential, filename string, content io.Reader, title string) (*IngestResult, error) {
	const op = "upload-document"

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, fmt.Errorf("copy file content: %w", err)
	}
	if strings.TrimSpace(title) != "" {
		if err := form.WriteField("title", title); err != nil {
			return nil, fmt.Errorf("write title field: %w", err)
		}
	}
	if err := form.Close(); err != nil {
		return nil, fmt.Errorf("close form: %w", err)
	}

	resp, err := c.do(ctx, op, credential, http.MethodPost, "/upload-document", &buf, form.FormDataContentType())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result IngestResult
	if err := decode(op, resp.Body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) DeleteDocument(ctx context.Context, credential, id string) (*MessageResponse, error) {
	const op = "delete-document"

	resp, err := c.do(ctx, op, credential, http.MethodDelete, "/documents/"+url.PathEscape(id), nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result MessageResponse
	if err := decode(op, resp.Body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) ExportDocument(ctx context.Context, credential, id string) (*Archive, error) {
	return c.export(ctx, "export-document", credential, "/documents/"+url.PathEscape(id)+"/export")
}

func (c *Client) ExportAll(ctx context.Context, credential string) (*Archive, error) {
	return c.export(ctx, "export-all", credential, "/export")
}

func (c *Client) Clear(ctx context.Context, credential string) (*MessageResponse, error) {
	const op = "clear"

	resp, err := c.do(ctx, op, credential, http.MethodDelete, "/clear", nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result MessageResponse
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Transport(op, err)
	}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &result); err != nil {
			return nil, apperr.Transport(op, fmt.Errorf("decode response: %w", err))
		}
	}
	return &result, nil
}

func (c *Client) Query(ctx context.Context, credential string, req QueryRequest) (*QueryResult, error) {
	var result QueryResult
	if err := c.postJSON(ctx, "query", credential, "/query", req, &result); err != nil {
		return nil, err
	}
	if result.Sources == nil {
		result.Sources = []SourceMatch{}
	}
	return &result, nil
}

func (c *Client) AIConfig(ctx context.Context, credential string) (*AIConfig, error) {
	var result AIConfig
	if err := c.getJSON(ctx, "ai-config", credential, "/ai-config", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) SetAIMode(ctx context.Context, credential, mode string) (*MessageResponse, error) {
	var result MessageResponse
	if err := c.postJSON(ctx, "set-ai-config", credential, "/ai-config", setAIConfigRequest{AIMode: mode}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) export(ctx context.Context, op, credential, path string) (*Archive, error) {
	body, err := json.Marshal(DefaultExport)
	if err != nil {
		return nil, fmt.Errorf("encode export request: %w", err)
	}

	resp, err := c.do(ctx, op, credential, http.MethodPost, path, bytes.NewReader(body), "application/json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Transport(op, err)
	}

	archive := &Archive{
		ContentType: resp.Header.Get("Content-Type"),
		Data:        data,
	}
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil {
			archive.Filename = params["filename"]
		}
	}
	return archive, nil
}

func (c *Client) getJSON(ctx context.Context, op, credential, path string, out any) error {
	resp, err := c.do(ctx, op, credential, http.MethodGet, path, nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decode(op, resp.Body, out)
}

func (c *Client) postJSON(ctx context.Context, op, credential, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", op, err)
	}

	resp, err := c.do(ctx, op, credential, http.MethodPost, path, bytes.NewReader(body), "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decode(op, resp.Body, out)
}

// do sends one request. A nil error means a 2xx response whose body the
// caller must close; anything else comes back classified.
func (c *Client) do(ctx context.Context, op, credential, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", op, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("X-Request-ID", uuid.NewString())
	if credential != "" {
		req.Header.Set("Authorization", "Bearer "+credential)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Transport(op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return nil, apperr.Remote(op, resp.StatusCode, detailFrom(resp.StatusCode, data))
	}

	return resp, nil
}

func decode(op string, r io.Reader, out any) error {
	if err := json.NewDecoder(r).Decode(out); err != nil {
		return apperr.Transport(op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// detailFrom prefers the `detail` field of a JSON error body, then the raw
// body, then the status text.
func detailFrom(status int, body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil && eb.Detail != nil {
		if s, ok := eb.Detail.(string); ok {
			return s
		}
		if raw, err := json.Marshal(eb.Detail); err == nil {
			return string(raw)
		}
	}

	if text := strings.TrimSpace(string(body)); text != "" {
		return text
	}
	return fmt.Sprintf("%d %s", status, http.StatusText(status))
}
