package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/suPer8Hu/careerbot/internal/common"
	"github.com/suPer8Hu/careerbot/internal/httpapi/handlers"
	"github.com/suPer8Hu/careerbot/internal/httpapi/middleware"
)

const maxUploadBytes = 10 << 20

func NewRouter(h *handlers.Handler) *gin.Engine {
	cfg := h.Cfg
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.MaxMultipartMemory = maxUploadBytes
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.AccessLog())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.GET("/ping", h.Ping)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.Use(middleware.NewThrottle(cfg.ThrottleRPS, cfg.ThrottleBurst).Handler())
	api.GET("/health", h.Health)

	// users
	api.POST("/users", h.CreateUser)
	api.POST("/login", h.Login)

	// chat: anonymous allowed, a token binds the session to the user
	open := api.Group("")
	open.Use(middleware.OptionalAuth(cfg.JWTSecret))
	open.POST("/chat", h.SendChatMessage)
	open.POST("/chat-stream", h.SendChatMessageStream)
	open.POST("/session", h.ManageSession)
	open.POST("/upload", h.UploadDocument)
	open.GET("/rate-limit", h.RateLimitStatus)

	authGroup := api.Group("")
	authGroup.Use(middleware.AuthRequired(cfg.JWTSecret))
	authGroup.GET("/me", h.Me)
	authGroup.POST("/chat/async", h.SendChatMessageAsync)
	authGroup.GET("/chat/jobs/:job_id", h.GetChatJob)

	admin := api.Group("/admin")
	admin.Use(middleware.AdminKey(cfg.AdminAPIKey))
	admin.POST("/rate-limit/reset", h.ResetRateLimit)
	admin.GET("/rate-limits", h.ListRateLimits)

	return r
}
