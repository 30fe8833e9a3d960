package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/careerbot/internal/chat"
	"github.com/suPer8Hu/careerbot/internal/common"
	"github.com/suPer8Hu/careerbot/internal/config"
	"github.com/suPer8Hu/careerbot/internal/errx"
	"github.com/suPer8Hu/careerbot/internal/httpapi/middleware"
	"github.com/suPer8Hu/careerbot/internal/logx"
	"gorm.io/gorm"
)

type Handler struct {
	DB      *gorm.DB // nil in memory-only mode
	Cfg     config.Config
	ChatSvc *chat.Service

	// ProviderReady reports whether a language model provider was configured.
	ProviderReady bool
}

func NewHandler(db *gorm.DB, cfg config.Config, svc *chat.Service, providerReady bool) *Handler {
	return &Handler{DB: db, Cfg: cfg, ChatSvc: svc, ProviderReady: providerReady}
}

var errNoFile = errx.BadRequest(chat.ErrNoFile)

func userIDFromContext(c *gin.Context) (uint64, bool) {
	v, ok := c.Get(middleware.UserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint64)
	return id, ok
}

// fail maps service errors to the envelope. Quota exhaustion carries the usage
// snapshot so clients can show when the window resets.
func fail(c *gin.Context, err error) {
	var qe *chat.QuotaError
	if errors.As(err, &qe) {
		common.FailWithData(c, http.StatusTooManyRequests, 42900, qe.Error(), gin.H{"rate_limit": qe.Usage})
		return
	}
	status, _ := errx.StatusOf(err)
	if status >= http.StatusInternalServerError {
		logx.Error().Err(err).Str("request_id", c.GetString(middleware.RequestIDKey)).Str("path", c.FullPath()).Msg("request failed")
	}
	common.FailErr(c, err)
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"pong": true})
}

func (h *Handler) Health(c *gin.Context) {
	common.OK(c, gin.H{
		"status":         "healthy",
		"provider":       h.Cfg.AIProvider,
		"provider_ready": h.ProviderReady,
		"persistent":     h.DB != nil,
		"async":          h.ChatSvc.AsyncEnabled(),
	})
}
