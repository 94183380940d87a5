package http

import (
	"github.com/gin-gonic/gin"

	"ragconsole/internal/console"
)

type QueryHandler struct {
	app *console.Console
}

func NewQueryHandler(app *console.Console) *QueryHandler {
	return &QueryHandler{app: app}
}

type queryRequest struct {
	Query string `json:"query"`
}

func (h *QueryHandler) Submit(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequestResponse(c, "invalid request body")
		return
	}

	result, err := h.app.Query().Submit(c.Request.Context(), req.Query)
	if err != nil {
		HandleError(c, err)
		return
	}

	SuccessResponse(c, result)
}

func (h *QueryHandler) Result(c *gin.Context) {
	SuccessResponse(c, h.app.Query().Snapshot())
}
