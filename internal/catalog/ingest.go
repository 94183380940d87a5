package catalog

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"ragconsole/internal/apperr"
	"ragconsole/internal/preflight"
	"ragconsole/internal/remote"
	"ragconsole/package/validator"
)

type URLInput struct {
	URL   string `json:"url" validate:"notblank"`
	Title string `json:"title,omitempty" validate:"max=200"`
}

// FileInput is a selected file. Data never leaves the controller.
type FileInput struct {
	Name  string `json:"name" validate:"notblank"`
	Data  []byte `json:"-"`
	Title string `json:"title,omitempty" validate:"max=200"`
}

// FileDraft is the visible part of a FileInput.
type FileDraft struct {
	Name  string `json:"name,omitempty"`
	Size  int    `json:"size,omitempty"`
	Title string `json:"title,omitempty"`
}

func (f FileInput) draft() FileDraft {
	return FileDraft{Name: f.Name, Size: len(f.Data), Title: f.Title}
}

// AddByURL ingests a remote document. The input is kept as the draft until
// a success clears it.
func (c *Controller) AddByURL(ctx context.Context, in URLInput) (*remote.IngestResult, error) {
	const op = "add-document"

	epoch := c.currentEpoch()
	in.URL = strings.TrimSpace(in.URL)
	c.update(func() { c.urlDraft = in })

	if errs := validator.Struct(in); len(errs) > 0 {
		err := apperr.Validation(op, validator.Message(errs))
		c.fail(op, err)
		return nil, err
	}

	var result *remote.IngestResult
	err := c.mutate(op, func(cred string) error {
		res, err := c.remote.AddDocument(ctx, cred, remote.AddDocumentRequest{
			URL:   in.URL,
			Title: strings.TrimSpace(in.Title),
		})
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !c.applyIn(epoch, func() { c.urlDraft = URLInput{} }) {
		c.logger.Info("session ended during add, result dropped", "op", op)
		return result, nil
	}
	c.notices.Post(ingestMessage("Document added successfully!", result))
	c.reloadAfterMutation(ctx)
	return result, nil
}

// UploadFile ingests a local file after preflight. Name and title are kept
// as the draft until a success clears them.
func (c *Controller) UploadFile(ctx context.Context, in FileInput) (*remote.IngestResult, error) {
	const op = "upload-document"

	epoch := c.currentEpoch()
	c.update(func() { c.fileDraft = in })

	if errs := validator.Struct(in); len(errs) > 0 {
		err := apperr.Validation(op, "file is required")
		c.fail(op, err)
		return nil, err
	}

	report, err := preflight.Inspect(in.Name, in.Data)
	if err != nil {
		err = apperr.Validation(op, err.Error())
		c.fail(op, err)
		return nil, err
	}
	c.logger.Info("upload preflight",
		"file", in.Name,
		"kind", report.Kind,
		"size", report.Size,
		"pages", report.Pages,
		"preview", report.Preview,
		"warnings", report.Warnings,
	)

	var result *remote.IngestResult
	err = c.mutate(op, func(cred string) error {
		res, err := c.remote.UploadDocument(ctx, cred, in.Name, bytes.NewReader(in.Data), strings.TrimSpace(in.Title))
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !c.applyIn(epoch, func() { c.fileDraft = FileInput{} }) {
		c.logger.Info("session ended during upload, result dropped", "op", op)
		return result, nil
	}
	c.notices.Post(ingestMessage("File uploaded successfully!", result))
	c.reloadAfterMutation(ctx)
	return result, nil
}

func ingestMessage(prefix string, res *remote.IngestResult) string {
	return fmt.Sprintf("%s %d chunks created in %ss",
		prefix, res.ChunksCreated, strconv.FormatFloat(res.ProcessingTime, 'f', -1, 64))
}
