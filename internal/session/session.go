// Package session owns the credential and the authenticated state. It is the
// only writer of the credential; every other component reads it through
// RequireCredential.
package session

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"ragconsole/internal/apperr"
	"ragconsole/internal/metrics"
	"ragconsole/internal/notice"
)

const (
	MsgAuthenticated = "Authenticated successfully"
	MsgAuthFailed    = "Authentication failed: incorrect password"
	MsgLoggedOut     = "Logged out"
	MsgExpired       = "Session expired, please log in again"
)

// HealthChecker is the liveness check used to validate a credential.
type HealthChecker interface {
	Health(ctx context.Context, credential string) error
}

type Notifier interface {
	Post(text string) notice.Notification
}

type State struct {
	Authenticated bool   `json:"authenticated"`
	Candidate     string `json:"candidate,omitempty"`
}

type Options struct {
	// ExpireOnUnauthorized drops the session when any later call is
	// rejected with 401.
	ExpireOnUnauthorized bool
}

type Manager struct {
	mu            sync.RWMutex
	store         Store
	checker       HealthChecker
	notices       Notifier
	logger        *slog.Logger
	opts          Options
	credential    string
	authenticated bool
	candidate     string
	onLogin       []func(ctx context.Context)
	onLogout      []func()
}

func NewManager(store Store, checker HealthChecker, notices Notifier, logger *slog.Logger, opts Options) *Manager {
	return &Manager{
		store:   store,
		checker: checker,
		notices: notices,
		logger:  logger,
		opts:    opts,
	}
}

// OnLogin registers a hook run after every transition into Authenticated.
func (m *Manager) OnLogin(fn func(ctx context.Context)) {
	m.mu.Lock()
	m.onLogin = append(m.onLogin, fn)
	m.mu.Unlock()
}

// OnLogout registers a hook run after every transition into Unauthenticated.
func (m *Manager) OnLogout(fn func()) {
	m.mu.Lock()
	m.onLogout = append(m.onLogout, fn)
	m.mu.Unlock()
}

// Validate checks the remote service with credential. Any failure, network
// errors included, means invalid.
func (m *Manager) Validate(ctx context.Context, credential string) bool {
	if strings.TrimSpace(credential) == "" {
		return false
	}
	if err := m.checker.Health(ctx, credential); err != nil {
		m.logger.Debug("credential check failed", "error", err)
		return false
	}
	return true
}

// Restore authenticates from the persisted credential, if any. A failed
// health check or an unreadable store leaves the session Unauthenticated and the
// store untouched.
func (m *Manager) Restore(ctx context.Context) error {
	credential, ok, err := m.store.Get(CredentialKey)
	if err != nil {
		m.logger.Warn("persisted credential unreadable, login required", "error", err)
		return nil
	}
	if !ok || credential == "" {
		m.logger.Info("no persisted credential")
		return nil
	}

	if !m.Validate(ctx, credential) {
		m.logger.Info("persisted credential rejected")
		return nil
	}

	m.mu.Lock()
	m.credential = credential
	m.authenticated = true
	hooks := append([]func(context.Context){}, m.onLogin...)
	m.mu.Unlock()

	metrics.SetAuthenticated(true)
	m.logger.Info("session restored")
	for _, fn := range hooks {
		fn(ctx)
	}
	return nil
}

func (m *Manager) Login(ctx context.Context, candidate string) error {
	const op = "login"

	m.mu.Lock()
	m.candidate = candidate
	m.mu.Unlock()

	if strings.TrimSpace(candidate) == "" {
		err := apperr.Validation(op, "password is required")
		m.notices.Post(apperr.Notice(err))
		return err
	}

	if !m.Validate(ctx, candidate) {
		m.notices.Post(MsgAuthFailed)
		return apperr.Authentication(op, "authentication failed")
	}

	if err := m.store.Set(CredentialKey, candidate); err != nil {
		m.logger.Error("failed to persist credential", "error", err)
		m.notices.Post("Error: could not save credential")
		return apperr.New(apperr.KindTransport, op, err.Error())
	}

	m.mu.Lock()
	m.credential = candidate
	m.authenticated = true
	m.candidate = ""
	hooks := append([]func(context.Context){}, m.onLogin...)
	m.mu.Unlock()

	metrics.SetAuthenticated(true)
	m.logger.Info("logged in")
	m.notices.Post(MsgAuthenticated)
	for _, fn := range hooks {
		fn(ctx)
	}
	return nil
}

func (m *Manager) Logout() {
	m.end("logged out")
	m.notices.Post(MsgLoggedOut)
}

// Expire ends an authenticated session after a definitive rejection. It
// reports false when there was no session to end.
func (m *Manager) Expire(reason string) bool {
	if !m.Authenticated() {
		return false
	}
	if !m.end("session expired: " + reason) {
		return false
	}
	m.notices.Post(MsgExpired)
	return true
}

// ObserveError expires the session when err is a 401 from the remote
// service and the option is enabled.
func (m *Manager) ObserveError(err error) {
	if err == nil || !m.opts.ExpireOnUnauthorized {
		return
	}
	if !apperr.IsUnauthorized(err) {
		return
	}
	reason := err.Error()
	if e, ok := apperr.As(err); ok {
		reason = e.Message
	}
	m.Expire(reason)
}

func (m *Manager) end(reason string) bool {
	if err := m.store.Delete(CredentialKey); err != nil {
		m.logger.Warn("failed to clear persisted credential", "error", err)
	}

	m.mu.Lock()
	was := m.authenticated
	m.credential = ""
	m.authenticated = false
	m.candidate = ""
	hooks := append([]func(){}, m.onLogout...)
	m.mu.Unlock()

	metrics.SetAuthenticated(false)
	m.logger.Info("session ended", "reason", reason, "was_authenticated", was)
	for _, fn := range hooks {
		fn()
	}
	return was
}

// RequireCredential returns the current credential, or an authentication
// error when the session is not authenticated.
func (m *Manager) RequireCredential(op string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.authenticated || m.credential == "" {
		return "", apperr.Authentication(op, "not authenticated")
	}
	return m.credential, nil
}

func (m *Manager) Authenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.authenticated
}

func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return State{Authenticated: m.authenticated, Candidate: m.candidate}
}
