package http

import (
	"github.com/gin-gonic/gin"

	"ragconsole/configuration"
	"ragconsole/internal/console"
	"ragconsole/internal/metrics"
)

type Router struct {
	engine *gin.Engine
	config *configuration.Config
	app    *console.Console
	policy *originPolicy
}

func NewRouter(cfg *configuration.Config, app *console.Console) *Router {
	setGinMode(cfg.Console.Mode)

	policy := newOriginPolicy(cfg.Console.Host, cfg.Console.AllowedOrigins)

	engine := gin.New()
	engine.Use(slogMiddleware())
	engine.Use(recoveryMiddleware())
	engine.Use(corsMiddleware(policy))

	return &Router{
		engine: engine,
		config: cfg,
		app:    app,
		policy: policy,
	}
}

func setGinMode(mode string) {
	if mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
}

func (r *Router) SetupRoutes() {
	if r.app == nil {
		panic("console is not configured")
	}

	r.engine.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1 := r.engine.Group("/api/v1")
	{
		v1.GET("/health", r.healthCheck)
		v1.GET("/state", r.getState)
		v1.DELETE("/notice", r.dismissNotice)

		sessions := NewSessionHandler(r.app)
		v1.POST("/session/login", sessions.Login)
		v1.POST("/session/logout", sessions.Logout)

		wsHandler := NewWebSocketHandler(r.app, r.policy)
		v1.GET("/ws", wsHandler.Handle)

		authed := v1.Group("")
		authed.Use(sessionMiddleware(r.app))
		{
			authed.PUT("/view/mode", r.setMode)

			documents := NewDocumentHandler(r.app)
			authed.POST("/catalog/refresh", documents.Refresh)
			authed.GET("/catalog/stats", documents.GetStats)
			authed.GET("/catalog/documents", documents.ListDocuments)
			authed.DELETE("/catalog", documents.Clear)
			authed.POST("/documents/url", documents.AddByURL)
			authed.POST("/documents/upload", documents.Upload)
			authed.DELETE("/documents/:id", documents.Delete)
			authed.POST("/documents/:id/export", documents.Export)
			authed.POST("/export", documents.ExportAll)
			authed.GET("/ai-config", documents.GetAIConfig)
			authed.PUT("/ai-config", documents.SetAIConfig)

			queries := NewQueryHandler(r.app)
			authed.POST("/query", queries.Submit)
			authed.GET("/query", queries.Result)
		}
	}
}

func (r *Router) Run(addr string) error {
	return r.engine.Run(addr)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
