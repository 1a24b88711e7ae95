// internal/api/router.go
package api

import (
	"time"

	"github.com/gin-gonic/gin"
)

// RouterOptions tune the middleware stack.
type RouterOptions struct {
	// RateLimitPerMinute bounds generation requests per client IP; 0 disables the limit.
	RateLimitPerMinute int
	Limiter            *RateLimiter
	DebugMode          bool
}

// SetupRouter registers every route of the campaign API.
func SetupRouter(handler *Handler, opts RouterOptions) *gin.Engine {
	if !opts.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestIDMiddleware())
	r.Use(requestLogger(handler.Metrics, handler.Logger))
	r.Use(corsMiddleware())

	// generation endpoints reach the content service or an LLM provider
	limitGeneration := func(c *gin.Context) { c.Next() }
	if opts.RateLimitPerMinute > 0 {
		limiter := opts.Limiter
		if limiter == nil {
			limiter = NewRateLimiter()
		}
		limitGeneration = limiter.ByIP(opts.RateLimitPerMinute, time.Minute)
	}

	r.GET("/ws/sessions/:id", handler.SessionWebSocket)

	api := r.Group("/api")
	{
		api.GET("/health", handler.Health)
		api.GET("/metrics", handler.GetMetrics)
		api.GET("/ws/status", handler.GetWebSocketStatus)

		llmGroup := api.Group("/llm")
		{
			llmGroup.GET("/status", handler.GetLLMStatus)
			llmGroup.GET("/providers", handler.GetLLMProviders)
			llmGroup.PUT("/config", handler.UpdateLLMConfig)
		}

		api.POST("/sessions", limitGeneration, handler.CreateSession)
		sessions := api.Group("/sessions/:id")
		{
			sessions.GET("", handler.GetSession)
			sessions.DELETE("", handler.EndSession)
			sessions.PUT("/brief", handler.UpdateBrief)

			sessions.POST("/generate", limitGeneration, handler.GenerateAll)
			sessions.POST("/regenerate", limitGeneration, handler.RegenerateMany)
			sessions.POST("/regenerate/:type", limitGeneration, handler.RegenerateOne)

			edit := sessions.Group("/edit")
			{
				edit.POST("/enter", handler.EnterEdit)
				edit.POST("/mutate", handler.MutateEdit)
				edit.POST("/add", handler.AddItem)
				edit.POST("/remove", handler.RemoveItem)
				edit.POST("/commit", handler.CommitEdit)
				edit.POST("/cancel", handler.CancelEdit)
				edit.GET("/draft", handler.GetDraft)
			}

			sessions.PUT("/preview", handler.OpenPreview)
			sessions.GET("/preview", handler.GetPreview)
			sessions.DELETE("/preview", handler.ClosePreview)

			sessions.GET("/export", handler.ExportBundle)
			sessions.GET("/export/:kind", handler.ExportOne)
			sessions.POST("/copy/:kind", handler.Copy)
		}
	}

	return r
}
