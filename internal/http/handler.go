package http

import (
	"github.com/gin-gonic/gin"

	"ragconsole/internal/view"
)

type HealthCheckResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	Environment   string `json:"environment"`
	Remote        string `json:"remote"`
	Authenticated bool   `json:"authenticated"`
}

func (r *Router) healthCheck(c *gin.Context) {
	SuccessResponse(c, HealthCheckResponse{
		Status:        "healthy",
		Version:       r.config.App.Version,
		Environment:   r.config.App.Environment,
		Remote:        r.config.Remote.BaseURL,
		Authenticated: r.app.Session().Authenticated(),
	})
}

func (r *Router) getState(c *gin.Context) {
	SuccessResponse(c, r.app.State())
}

type modeRequest struct {
	Mode string `json:"mode" binding:"required"`
}

func (r *Router) setMode(c *gin.Context) {
	var req modeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequestResponse(c, "mode is required")
		return
	}

	mode, err := view.ParseMode(req.Mode)
	if err != nil {
		BadRequestResponse(c, err.Error())
		return
	}

	if err := r.app.SetMode(c.Request.Context(), mode); err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, r.app.State())
}

func (r *Router) dismissNotice(c *gin.Context) {
	dismissed := r.app.Notices().Dismiss()
	SuccessResponse(c, gin.H{"dismissed": dismissed})
}
