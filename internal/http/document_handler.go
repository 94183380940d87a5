package http

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"ragconsole/internal/apperr"
	"ragconsole/internal/catalog"
	"ragconsole/internal/console"
)

const (
	confirmHeader  = "X-Confirm-Token"
	maxUploadBytes = 100 << 20
)

type DocumentHandler struct {
	app *console.Console
}

func NewDocumentHandler(app *console.Console) *DocumentHandler {
	return &DocumentHandler{app: app}
}

func (h *DocumentHandler) Refresh(c *gin.Context) {
	if err := h.app.Catalog().Refresh(c.Request.Context()); err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, h.app.Catalog().Snapshot())
}

func (h *DocumentHandler) GetStats(c *gin.Context) {
	if err := h.app.Catalog().LoadStats(c.Request.Context()); err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, h.app.Catalog().Snapshot().Stats)
}

func (h *DocumentHandler) ListDocuments(c *gin.Context) {
	if err := h.app.Catalog().LoadDocuments(c.Request.Context()); err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, gin.H{"documents": h.app.Catalog().Snapshot().Documents})
}

func (h *DocumentHandler) AddByURL(c *gin.Context) {
	var req catalog.URLInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequestResponse(c, "invalid request body")
		return
	}

	result, err := h.app.Catalog().AddByURL(c.Request.Context(), req)
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, result)
}

func (h *DocumentHandler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)

	in := catalog.FileInput{Title: c.PostForm("title")}
	if header, err := c.FormFile("file"); err == nil {
		f, err := header.Open()
		if err != nil {
			BadRequestResponse(c, "cannot open uploaded file")
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			BadRequestResponse(c, fmt.Sprintf("cannot read uploaded file: %v", err))
			return
		}
		in.Name = header.Filename
		in.Data = data
	}

	result, err := h.app.Catalog().UploadFile(c.Request.Context(), in)
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, result)
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	action := "delete:" + id

	err := h.app.Catalog().DeleteDocument(c.Request.Context(), id, h.app.Confirmation(action, c.GetHeader(confirmHeader)))
	if h.needsConfirmation(c, action, err) {
		return
	}
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, gin.H{"documents": h.app.Catalog().Snapshot().Documents})
}

func (h *DocumentHandler) Clear(c *gin.Context) {
	const action = "clear"

	err := h.app.Catalog().ClearAll(c.Request.Context(), h.app.Confirmation(action, c.GetHeader(confirmHeader)))
	if h.needsConfirmation(c, action, err) {
		return
	}
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, h.app.State())
}

func (h *DocumentHandler) Export(c *gin.Context) {
	location, err := h.app.Catalog().ExportDocument(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, gin.H{"location": location})
}

func (h *DocumentHandler) ExportAll(c *gin.Context) {
	location, err := h.app.Catalog().ExportAll(c.Request.Context())
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, gin.H{"location": location})
}

func (h *DocumentHandler) GetAIConfig(c *gin.Context) {
	cfg, err := h.app.Catalog().LoadAIConfig(c.Request.Context())
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, cfg)
}

type aiModeRequest struct {
	AIMode string `json:"ai_mode" binding:"required"`
}

func (h *DocumentHandler) SetAIConfig(c *gin.Context) {
	var req aiModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequestResponse(c, "ai_mode is required")
		return
	}

	if err := h.app.Catalog().SetAIMode(c.Request.Context(), req.AIMode); err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, h.app.Catalog().Snapshot().AIConfig)
}

// needsConfirmation answers 428 with a fresh token when err says the
// operator has not approved action yet.
func (h *DocumentHandler) needsConfirmation(c *gin.Context, action string, err error) bool {
	e, ok := apperr.As(err)
	if !ok || e.Kind != apperr.KindNotConfirmed {
		return false
	}
	ConfirmationRequiredResponse(c, h.app.IssueConfirmation(action), e.Message)
	return true
}
