package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ragconsole/internal/console"
)

// sessionMiddleware rejects requests while the console is not authenticated
// against the remote service.
func sessionMiddleware(app *console.Console) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !app.Session().Authenticated() {
			ErrorResponse(c, http.StatusUnauthorized, string(ErrUnauthorized), "login required")
			c.Abort()
			return
		}
		c.Next()
	}
}
