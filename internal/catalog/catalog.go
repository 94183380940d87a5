// Package catalog maintains the client's view of the remote document
// collection and runs every catalog mutation through the request gate.
package catalog

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"ragconsole/internal/apperr"
	"ragconsole/internal/gate"
	"ragconsole/internal/metrics"
	"ragconsole/internal/notice"
	"ragconsole/internal/remote"
	"ragconsole/internal/storage"
)

type Remote interface {
	Stats(ctx context.Context, credential string) (*remote.Stats, error)
	ListDocuments(ctx context.Context, credential string) ([]remote.Document, error)
	AddDocument(ctx context.Context, credential string, req remote.AddDocumentRequest) (*remote.IngestResult, error)
	UploadDocument(ctx context.Context, credential, filename string, content io.Reader, title string) (*remote.IngestResult, error)
	DeleteDocument(ctx context.Context, credential, id string) (*remote.MessageResponse, error)
	ExportDocument(ctx context.Context, credential, id string) (*remote.Archive, error)
	ExportAll(ctx context.Context, credential string) (*remote.Archive, error)
	Clear(ctx context.Context, credential string) (*remote.MessageResponse, error)
	AIConfig(ctx context.Context, credential string) (*remote.AIConfig, error)
	SetAIMode(ctx context.Context, credential, mode string) (*remote.MessageResponse, error)
}

// Session is the read side of the credential owner.
type Session interface {
	RequireCredential(op string) (string, error)
	ObserveError(err error)
}

type Notifier interface {
	Post(text string) notice.Notification
}

// Confirm asks the operator to approve an irreversible action.
type Confirm func(prompt string) bool

type Snapshot struct {
	Stats           *remote.Stats     `json:"stats"`
	Documents       []remote.Document `json:"documents"`
	DocumentsLoaded bool              `json:"documentsLoaded"`
	AIConfig        *remote.AIConfig  `json:"aiConfig,omitempty"`
	URLDraft        URLInput          `json:"urlDraft"`
	FileDraft       FileDraft         `json:"fileDraft"`
}

// readClock orders reads of one resource: a result is applied only if no
// read dispatched later has already been applied.
type readClock struct {
	dispatched uint64
	applied    uint64
}

func (c *readClock) begin() uint64 {
	c.dispatched++
	return c.dispatched
}

func (c *readClock) accept(seq uint64) bool {
	if seq <= c.applied {
		return false
	}
	c.applied = seq
	return true
}

// invalidate discards every read still in flight.
func (c *readClock) invalidate() {
	c.applied = c.dispatched
}

type Controller struct {
	remote  Remote
	session Session
	gate    *gate.Gate
	notices Notifier
	sink    storage.Sink
	logger  *slog.Logger
	now     func() time.Time

	mu              sync.RWMutex
	stats           *remote.Stats
	documents       []remote.Document
	documentsLoaded bool
	aiConfig        *remote.AIConfig
	urlDraft        URLInput
	fileDraft       FileInput
	statsClock      readClock
	docsClock       readClock
	aiClock         readClock
	epoch           uint64
	onCleared       []func()
	onChange        []func()
}

func New(rc Remote, sess Session, g *gate.Gate, notices Notifier, sink storage.Sink, logger *slog.Logger) *Controller {
	return &Controller{
		remote:  rc,
		session: sess,
		gate:    g,
		notices: notices,
		sink:    sink,
		logger:  logger,
		now:     time.Now,
	}
}

// OnCleared registers a hook run after a successful ClearAll.
func (c *Controller) OnCleared(fn func()) {
	c.mu.Lock()
	c.onCleared = append(c.onCleared, fn)
	c.mu.Unlock()
}

// OnChange registers a hook run after every state change.
func (c *Controller) OnChange(fn func()) {
	c.mu.Lock()
	c.onChange = append(c.onChange, fn)
	c.mu.Unlock()
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		DocumentsLoaded: c.documentsLoaded,
		URLDraft:        c.urlDraft,
		FileDraft:       c.fileDraft.draft(),
	}
	if c.stats != nil {
		stats := *c.stats
		s.Stats = &stats
	}
	if c.aiConfig != nil {
		cfg := *c.aiConfig
		s.AIConfig = &cfg
	}
	s.Documents = make([]remote.Document, len(c.documents))
	copy(s.Documents, c.documents)
	return s
}

// Reset drops all catalog state and any read still in flight. Mutations
// that started before Reset no longer write their results back.
func (c *Controller) Reset() {
	c.update(func() {
		c.epoch++
		c.stats = nil
		c.documents = nil
		c.documentsLoaded = false
		c.aiConfig = nil
		c.urlDraft = URLInput{}
		c.fileDraft = FileInput{}
		c.statsClock.invalidate()
		c.docsClock.invalidate()
		c.aiClock.invalidate()
	})
}

// LoadStats replaces the stats snapshot. It does not take the gate; on
// failure the previous snapshot stays and nothing is shown to the operator.
func (c *Controller) LoadStats(ctx context.Context) error {
	const op = "load-stats"

	cred, err := c.session.RequireCredential(op)
	if err != nil {
		return err
	}

	c.mu.Lock()
	seq := c.statsClock.begin()
	c.mu.Unlock()

	start := time.Now()
	stats, err := c.remote.Stats(ctx, cred)
	metrics.RecordOperation(op, outcome(err), time.Since(start))
	if err != nil {
		c.logger.Warn("failed to load stats", "error", err)
		c.session.ObserveError(err)
		return err
	}

	applied := c.updateIf(func() bool {
		if !c.statsClock.accept(seq) {
			return false
		}
		c.stats = stats
		return true
	})
	if !applied {
		metrics.RecordStaleRead("stats")
		c.logger.Debug("discarded stale stats", "seq", seq)
	}
	return nil
}

// LoadDocuments replaces the document list wholesale. Same gate and failure
// rules as LoadStats.
func (c *Controller) LoadDocuments(ctx context.Context) error {
	const op = "load-documents"

	cred, err := c.session.RequireCredential(op)
	if err != nil {
		return err
	}

	c.mu.Lock()
	seq := c.docsClock.begin()
	c.mu.Unlock()

	start := time.Now()
	docs, err := c.remote.ListDocuments(ctx, cred)
	metrics.RecordOperation(op, outcome(err), time.Since(start))
	if err != nil {
		c.logger.Warn("failed to load documents", "error", err)
		c.session.ObserveError(err)
		return err
	}

	applied := c.updateIf(func() bool {
		if !c.docsClock.accept(seq) {
			return false
		}
		c.documents = docs
		c.documentsLoaded = true
		return true
	})
	if !applied {
		metrics.RecordStaleRead("documents")
		c.logger.Debug("discarded stale document list", "seq", seq)
	}
	return nil
}

// Refresh loads stats and documents in parallel. One failing does not
// cancel the other.
func (c *Controller) Refresh(ctx context.Context) error {
	var g errgroup.Group
	g.Go(func() error { return c.LoadStats(ctx) })
	g.Go(func() error { return c.LoadDocuments(ctx) })
	return g.Wait()
}

// reloadAfterMutation re-reads what a mutation may have changed.
func (c *Controller) reloadAfterMutation(ctx context.Context) {
	c.mu.RLock()
	docs := c.documentsLoaded
	c.mu.RUnlock()

	if docs {
		_ = c.Refresh(ctx)
		return
	}
	_ = c.LoadStats(ctx)
}

// mutate runs fn under the gate with the current credential. A refused gate
// returns a Busy error without notifying; other failures are shown verbatim.
func (c *Controller) mutate(op string, fn func(cred string) error) error {
	cred, err := c.session.RequireCredential(op)
	if err != nil {
		c.fail(op, err)
		return err
	}

	start := time.Now()
	ran, err := c.gate.Run(func() error { return fn(cred) })
	if !ran {
		metrics.RecordGateRefusal(op)
		c.logger.Debug("operation refused, gate busy", "op", op)
		return apperr.Busy(op)
	}
	metrics.RecordOperation(op, outcome(err), time.Since(start))
	if err != nil {
		c.fail(op, err)
		return err
	}
	c.logger.Info("operation completed", "op", op, "duration", time.Since(start))
	return nil
}

func (c *Controller) fail(op string, err error) {
	c.logger.Warn("operation failed", "op", op, "error", err)
	c.notices.Post(apperr.Notice(err))
	c.session.ObserveError(err)
}

func (c *Controller) currentEpoch() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.epoch
}

// applyIn runs fn unless Reset ran after epoch was taken.
func (c *Controller) applyIn(epoch uint64, fn func()) bool {
	return c.updateIf(func() bool {
		if c.epoch != epoch {
			return false
		}
		fn()
		return true
	})
}

func (c *Controller) update(fn func()) {
	c.updateIf(func() bool {
		fn()
		return true
	})
}

func (c *Controller) updateIf(fn func() bool) bool {
	c.mu.Lock()
	changed := fn()
	hooks := c.onChange
	c.mu.Unlock()

	if changed {
		for _, h := range hooks {
			h()
		}
	}
	return changed
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	if kind := apperr.KindOf(err); kind != "" {
		return string(kind)
	}
	return "error"
}
