package http

import (
	"github.com/gin-gonic/gin"

	"ragconsole/internal/console"
)

type SessionHandler struct {
	app *console.Console
}

func NewSessionHandler(app *console.Console) *SessionHandler {
	return &SessionHandler{app: app}
}

type loginRequest struct {
	Password string `json:"password"`
}

// Login validates the password against the remote service. A rejected
// password is kept as the session candidate for correction.
func (h *SessionHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequestResponse(c, "invalid request body")
		return
	}

	if err := h.app.Session().Login(c.Request.Context(), req.Password); err != nil {
		HandleError(c, err)
		return
	}

	SuccessResponse(c, h.app.State())
}

func (h *SessionHandler) Logout(c *gin.Context) {
	h.app.Session().Logout()
	SuccessResponse(c, h.app.State())
}
