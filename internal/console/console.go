// Package console wires the session, gate, controllers and notifications
// into one operator console and exposes a consistent snapshot of them.
package console

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"ragconsole/configuration"
	"ragconsole/internal/catalog"
	"ragconsole/internal/gate"
	"ragconsole/internal/notice"
	"ragconsole/internal/query"
	"ragconsole/internal/remote"
	"ragconsole/internal/session"
	"ragconsole/internal/storage"
	"ragconsole/internal/view"
)

// Deps overrides the collaborators New would otherwise build from config.
type Deps struct {
	Store      session.Store
	Sink       storage.Sink
	HTTPClient *http.Client
	// Terminal receives notifications when set.
	Terminal io.Writer
}

type State struct {
	Session session.State        `json:"session"`
	Busy    bool                 `json:"busy"`
	Mode    view.Mode            `json:"mode"`
	Catalog catalog.Snapshot     `json:"catalog"`
	Query   query.Snapshot       `json:"query"`
	Notice  *notice.Notification `json:"notice,omitempty"`
	View    view.View            `json:"view"`
}

type Console struct {
	cfg     *configuration.Config
	logger  *slog.Logger
	notices *notice.Center
	session *session.Manager
	gate    *gate.Gate
	catalog *catalog.Controller
	query   *query.Controller
	events  *Broadcaster
	ledger  *Ledger
	printer *Printer
	sink    storage.Sink

	mu   sync.RWMutex
	mode view.Mode

	noticeCh chan notice.Event
	done     chan struct{}
}

func New(cfg *configuration.Config, logger *slog.Logger, deps Deps) (*Console, error) {
	client := remote.New(remote.Config{
		BaseURL:    cfg.Remote.BaseURL,
		Timeout:    cfg.Remote.Timeout,
		HTTPClient: deps.HTTPClient,
	})

	store := deps.Store
	if store == nil {
		store = session.NewFileStore(cfg.Session.StorePath, cfg.Session.StorePassphrase)
	}

	sink := deps.Sink
	if sink == nil {
		if cfg.S3Enabled() {
			s3, err := storage.NewS3Sink(&cfg.Storage)
			if err != nil {
				return nil, fmt.Errorf("init s3 export sink: %w", err)
			}
			sink = s3
		} else {
			sink = storage.NewLocalSink(cfg.Export.Dir)
		}
	}

	notices := notice.NewCenter(cfg.Notice.TTL)
	g := gate.New()
	sess := session.NewManager(store, client, notices, logger.With("component", "session"),
		session.Options{ExpireOnUnauthorized: cfg.Session.ExpireOnUnauthorized})

	c := &Console{
		cfg:     cfg,
		logger:  logger,
		notices: notices,
		session: sess,
		gate:    g,
		catalog: catalog.New(client, sess, g, notices, sink, logger.With("component", "catalog")),
		query: query.New(client, sess, g, notices, logger.With("component", "query"), query.Options{
			MaxResults: cfg.Remote.MaxResults,
			AIMode:     cfg.Remote.AIMode,
		}),
		events: NewBroadcaster(),
		ledger: NewLedger(cfg.Export.ConfirmTTL),
		sink:   sink,
		mode:   view.ModeStatistics,
		done:   make(chan struct{}),
	}
	if deps.Terminal != nil {
		c.printer = NewPrinter(deps.Terminal)
	}

	c.wire()
	return c, nil
}

func (c *Console) wire() {
	c.session.OnLogin(func(ctx context.Context) {
		if err := c.catalog.Refresh(ctx); err != nil {
			c.logger.Warn("initial catalog load failed", "error", err)
		}
		_, _ = c.catalog.LoadAIConfig(ctx)
		c.events.Publish(EventSession)
	})
	c.session.OnLogout(func() {
		c.catalog.Reset()
		c.query.Reset()
		c.mu.Lock()
		c.mode = view.ModeStatistics
		c.mu.Unlock()
		c.events.Publish(EventSession)
	})
	c.catalog.OnCleared(c.query.Reset)
	c.catalog.OnChange(func() { c.events.Publish(EventCatalog) })
	c.query.OnChange(func() { c.events.Publish(EventQuery) })

	c.noticeCh = c.notices.Subscribe()
	go c.pumpNotices()
}

func (c *Console) pumpNotices() {
	defer close(c.done)
	for ev := range c.noticeCh {
		if c.printer != nil {
			c.printer.Print(ev)
		}
		c.events.Publish(EventNotice)
	}
}

// Start restores a persisted session, if any.
func (c *Console) Start(ctx context.Context) error {
	if err := c.session.Restore(ctx); err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	c.logger.Info("console started",
		"remote", c.cfg.Remote.BaseURL,
		"authenticated", c.session.Authenticated(),
		"export_sink", c.sink.Name(),
	)
	return nil
}

// Close stops the notification pump.
func (c *Console) Close() {
	c.notices.Unsubscribe(c.noticeCh)
	<-c.done
}

// SetMode switches the catalog panel. Entering documents mode reloads the
// document list.
func (c *Console) SetMode(ctx context.Context, mode view.Mode) error {
	c.mu.Lock()
	prev := c.mode
	c.mode = mode
	c.mu.Unlock()

	c.events.Publish(EventView)
	if mode == view.ModeDocuments && prev != view.ModeDocuments {
		return c.catalog.LoadDocuments(ctx)
	}
	return nil
}

func (c *Console) Mode() view.Mode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mode
}

func (c *Console) State() State {
	s := State{
		Session: c.session.State(),
		Busy:    c.gate.Busy(),
		Mode:    c.Mode(),
		Catalog: c.catalog.Snapshot(),
		Query:   c.query.Snapshot(),
	}
	if n, ok := c.notices.Current(); ok {
		s.Notice = &n
	}
	s.View = view.Derive(view.Input{
		Authenticated:   s.Session.Authenticated,
		Mode:            s.Mode,
		Stats:           s.Catalog.Stats,
		Documents:       s.Catalog.Documents,
		DocumentsLoaded: s.Catalog.DocumentsLoaded,
		QueryPending:    s.Query.Pending,
		QueryResult:     s.Query.Result,
		Notice:          s.Notice,
	})
	return s
}

// Confirmation approves an irreversible action when token was issued for it.
func (c *Console) Confirmation(action, token string) catalog.Confirm {
	return func(string) bool {
		return c.ledger.Consume(token, action)
	}
}

func (c *Console) IssueConfirmation(action string) string {
	return c.ledger.Issue(action)
}

func (c *Console) Session() *session.Manager    { return c.session }
func (c *Console) Catalog() *catalog.Controller { return c.catalog }
func (c *Console) Query() *query.Controller     { return c.query }
func (c *Console) Notices() *notice.Center      { return c.notices }
func (c *Console) Events() *Broadcaster         { return c.events }
func (c *Console) Printer() *Printer            { return c.printer }
