// Package query submits natural-language questions and holds the latest
// answer with its ranked sources.
package query

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"ragconsole/internal/apperr"
	"ragconsole/internal/gate"
	"ragconsole/internal/metrics"
	"ragconsole/internal/notice"
	"ragconsole/internal/remote"
	"ragconsole/package/validator"
)

type Remote interface {
	Query(ctx context.Context, credential string, req remote.QueryRequest) (*remote.QueryResult, error)
}

type Session interface {
	RequireCredential(op string) (string, error)
	ObserveError(err error)
}

type Notifier interface {
	Post(text string) notice.Notification
}

type Options struct {
	MaxResults int
	AIMode     string
}

type Input struct {
	Query string `json:"query" validate:"notblank,max=2000"`
}

type Snapshot struct {
	Draft   string              `json:"draft"`
	Pending bool                `json:"pending"`
	Result  *remote.QueryResult `json:"result"`
}

type Controller struct {
	remote  Remote
	session Session
	gate    *gate.Gate
	notices Notifier
	logger  *slog.Logger
	opts    Options

	mu       sync.RWMutex
	draft    string
	pending  bool
	result   *remote.QueryResult
	epoch    uint64
	onChange []func()
}

func New(rc Remote, sess Session, g *gate.Gate, notices Notifier, logger *slog.Logger, opts Options) *Controller {
	if opts.MaxResults <= 0 {
		opts.MaxResults = 5
	}
	return &Controller{
		remote:  rc,
		session: sess,
		gate:    g,
		notices: notices,
		logger:  logger,
		opts:    opts,
	}
}

func (c *Controller) OnChange(fn func()) {
	c.mu.Lock()
	c.onChange = append(c.onChange, fn)
	c.mu.Unlock()
}

// Submit sends text and replaces the stored result with the answer. The
// previous result is cleared before the request goes out, and stays cleared
// if the request fails.
func (c *Controller) Submit(ctx context.Context, text string) (*remote.QueryResult, error) {
	const op = "query"

	c.mu.RLock()
	epoch := c.epoch
	c.mu.RUnlock()

	c.set(func() { c.draft = text })

	in := Input{Query: strings.TrimSpace(text)}
	if errs := validator.Struct(in); len(errs) > 0 {
		err := apperr.Validation(op, validator.Message(errs))
		c.fail(err)
		return nil, err
	}

	cred, err := c.session.RequireCredential(op)
	if err != nil {
		c.fail(err)
		return nil, err
	}

	var result *remote.QueryResult
	start := time.Now()
	ran, err := c.gate.Run(func() error {
		c.set(func() {
			c.result = nil
			c.pending = true
		})
		defer c.set(func() { c.pending = false })

		res, err := c.remote.Query(ctx, cred, remote.QueryRequest{
			Query:      in.Query,
			MaxResults: c.opts.MaxResults,
			AIMode:     c.opts.AIMode,
		})
		if err != nil {
			return err
		}
		result = res
		c.set(func() {
			if c.epoch == epoch {
				c.result = res
			}
		})
		return nil
	})
	if !ran {
		metrics.RecordGateRefusal(op)
		return nil, apperr.Busy(op)
	}
	if err != nil {
		metrics.RecordOperation(op, outcome(err), time.Since(start))
		c.fail(err)
		return nil, err
	}

	metrics.RecordOperation(op, "success", time.Since(start))
	c.logger.Info("query answered",
		"sources", len(result.Sources),
		"mode", result.BackendModeUsed,
		"duration", time.Since(start),
	)
	return result, nil
}

// Reset drops the result and the draft. A query still in flight keeps its
// answer out of the stored result.
func (c *Controller) Reset() {
	c.set(func() {
		c.epoch++
		c.draft = ""
		c.result = nil
	})
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{Draft: c.draft, Pending: c.pending}
	if c.result != nil {
		res := *c.result
		res.Sources = append([]remote.SourceMatch(nil), c.result.Sources...)
		s.Result = &res
	}
	return s
}

func (c *Controller) fail(err error) {
	c.logger.Warn("query failed", "error", err)
	c.notices.Post(apperr.Notice(err))
	c.session.ObserveError(err)
}

func (c *Controller) set(fn func()) {
	c.mu.Lock()
	fn()
	hooks := c.onChange
	c.mu.Unlock()

	for _, h := range hooks {
		h()
	}
}

func outcome(err error) string {
	if kind := apperr.KindOf(err); kind != "" {
		return string(kind)
	}
	return "error"
}
