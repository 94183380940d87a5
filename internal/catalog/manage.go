package catalog

import (
	"context"
	"fmt"
	"strings"

	"ragconsole/internal/apperr"
	"ragconsole/internal/metrics"
	"ragconsole/internal/remote"
	"ragconsole/internal/storage"
	"ragconsole/package/validator"
)

const (
	MsgCleared       = "All data has been cleared!"
	MsgExportStarted = "Full export delivered"
	PromptClearAll   = "Are you sure you want to clear all data? This action cannot be undone."
)

// DeletePrompt is the confirmation text for deleting the document id.
func (c *Controller) DeletePrompt(id string) string {
	return fmt.Sprintf("Are you sure you want to delete %q?", c.titleOf(id))
}

// DeleteDocument removes one document after confirm approves it. On success
// exactly that id leaves the list; on failure the list is untouched.
func (c *Controller) DeleteDocument(ctx context.Context, id string, confirm Confirm) error {
	const op = "delete-document"

	id = strings.TrimSpace(id)
	if id == "" {
		err := apperr.Validation(op, "document id is required")
		c.fail(op, err)
		return err
	}

	prompt := c.DeletePrompt(id)
	if confirm == nil || !confirm(prompt) {
		return apperr.NotConfirmed(op, prompt)
	}

	epoch := c.currentEpoch()
	var msg string
	err := c.mutate(op, func(cred string) error {
		res, err := c.remote.DeleteDocument(ctx, cred, id)
		if err != nil {
			return err
		}
		msg = res.Message
		return nil
	})
	if err != nil {
		return err
	}

	applied := c.applyIn(epoch, func() {
		kept := make([]remote.Document, 0, len(c.documents))
		for _, d := range c.documents {
			if d.ID != id {
				kept = append(kept, d)
			}
		}
		c.documents = kept
		c.docsClock.invalidate()
	})
	if !applied {
		c.logger.Info("session ended during delete, result dropped", "op", op)
		return nil
	}

	if msg == "" {
		msg = "Document deleted"
	}
	c.notices.Post(msg)
	c.reloadAfterMutation(ctx)
	return nil
}

// ExportDocument fetches the archive of one document and delivers it to the
// sink. It returns where the archive was delivered.
func (c *Controller) ExportDocument(ctx context.Context, id string) (string, error) {
	const op = "export-document"

	id = strings.TrimSpace(id)
	if id == "" {
		err := apperr.Validation(op, "document id is required")
		c.fail(op, err)
		return "", err
	}

	title := c.titleOf(id)
	var location string
	err := c.mutate(op, func(cred string) error {
		archive, err := c.remote.ExportDocument(ctx, cred, id)
		if err != nil {
			return err
		}
		location, err = c.deliver(ctx, fmt.Sprintf("%s_%s.zip", title, id), archive)
		return err
	})
	if err != nil {
		return "", err
	}

	c.notices.Post("Download started: " + title)
	return location, nil
}

// ExportAll fetches the archive of the whole catalog. Nothing is delivered
// when the remote call fails.
func (c *Controller) ExportAll(ctx context.Context) (string, error) {
	const op = "export-all"

	var location string
	err := c.mutate(op, func(cred string) error {
		archive, err := c.remote.ExportAll(ctx, cred)
		if err != nil {
			return err
		}
		name := fmt.Sprintf("rag_export_%s.zip", c.now().UTC().Format("2006-01-02"))
		location, err = c.deliver(ctx, name, archive)
		return err
	})
	if err != nil {
		return "", err
	}

	c.notices.Post(MsgExportStarted)
	return location, nil
}

func (c *Controller) deliver(ctx context.Context, name string, archive *remote.Archive) (string, error) {
	location, err := c.sink.Deliver(ctx, storage.SafeName(name), archive.ContentType, archive.Data)
	if err != nil {
		return "", fmt.Errorf("deliver %s: %w", name, err)
	}
	metrics.RecordExport(c.sink.Name(), len(archive.Data))
	c.logger.Info("export delivered", "sink", c.sink.Name(), "location", location, "bytes", len(archive.Data))
	return location, nil
}

// ClearAll destroys the remote catalog after confirm approves it. On success
// the list and counters become empty and the OnCleared hooks run.
func (c *Controller) ClearAll(ctx context.Context, confirm Confirm) error {
	const op = "clear"

	if confirm == nil || !confirm(PromptClearAll) {
		return apperr.NotConfirmed(op, PromptClearAll)
	}

	epoch := c.currentEpoch()
	err := c.mutate(op, func(cred string) error {
		_, err := c.remote.Clear(ctx, cred)
		return err
	})
	if err != nil {
		return err
	}

	applied := c.applyIn(epoch, func() {
		c.documents = []remote.Document{}
		cleared := &remote.Stats{}
		if c.stats != nil {
			cleared.Backends = c.stats.Backends
			cleared.CurrentMode = c.stats.CurrentMode
			cleared.GeminiConfigured = c.stats.GeminiConfigured
			cleared.LocalAIAvailable = c.stats.LocalAIAvailable
			cleared.OllamaAvailable = c.stats.OllamaAvailable
			cleared.OllamaModels = c.stats.OllamaModels
		}
		c.stats = cleared
		c.statsClock.invalidate()
		c.docsClock.invalidate()
	})
	if !applied {
		c.logger.Info("session ended during clear, result dropped", "op", op)
		return nil
	}

	c.mu.RLock()
	hooks := c.onCleared
	c.mu.RUnlock()
	for _, fn := range hooks {
		fn()
	}

	c.notices.Post(MsgCleared)
	return nil
}

// LoadAIConfig reads the answer-backend selection. Gate exempt.
func (c *Controller) LoadAIConfig(ctx context.Context) (*remote.AIConfig, error) {
	const op = "load-ai-config"

	cred, err := c.session.RequireCredential(op)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	seq := c.aiClock.begin()
	c.mu.Unlock()

	cfg, err := c.remote.AIConfig(ctx, cred)
	if err != nil {
		c.logger.Warn("failed to load ai config", "error", err)
		c.session.ObserveError(err)
		return nil, err
	}

	c.updateIf(func() bool {
		if !c.aiClock.accept(seq) {
			return false
		}
		c.aiConfig = cfg
		return true
	})
	return cfg, nil
}

type aiModeInput struct {
	Mode string `json:"ai_mode" validate:"oneof=auto gemini local"`
}

// SetAIMode switches the remote answer backend.
func (c *Controller) SetAIMode(ctx context.Context, mode string) error {
	const op = "set-ai-mode"

	epoch := c.currentEpoch()
	in := aiModeInput{Mode: strings.ToLower(strings.TrimSpace(mode))}
	if errs := validator.Struct(in); len(errs) > 0 {
		err := apperr.Validation(op, validator.Message(errs))
		c.fail(op, err)
		return err
	}

	var msg string
	err := c.mutate(op, func(cred string) error {
		res, err := c.remote.SetAIMode(ctx, cred, in.Mode)
		if err != nil {
			return err
		}
		msg = res.Message
		return nil
	})
	if err != nil {
		return err
	}

	if c.currentEpoch() != epoch {
		return nil
	}
	if msg == "" {
		msg = "AI mode set to " + in.Mode
	}
	c.notices.Post(msg)
	_, _ = c.LoadAIConfig(ctx)
	_ = c.LoadStats(ctx)
	return nil
}

func (c *Controller) titleOf(id string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, d := range c.documents {
		if d.ID == id && d.Title != "" {
			return d.Title
		}
	}
	return "document"
}
