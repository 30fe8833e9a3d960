package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/careerbot/internal/chat"
	"github.com/suPer8Hu/careerbot/internal/common"
	"github.com/suPer8Hu/careerbot/internal/logx"
)

const maxIdempotencyKey = 128

type chatReq struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

func (h *Handler) bindChat(c *gin.Context) (chat.Request, bool) {
	var req chatReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return chat.Request{}, false
	}
	uid, _ := userIDFromContext(c)
	return chat.Request{SessionID: strings.TrimSpace(req.SessionID), UserID: uid, Message: req.Message}, true
}

func (h *Handler) SendChatMessage(c *gin.Context) {
	req, ok := h.bindChat(c)
	if !ok {
		return
	}
	rep, err := h.ChatSvc.SendMessage(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	common.OK(c, rep)
}

func (h *Handler) SendChatMessageStream(c *gin.Context) {
	req, ok := h.bindChat(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	// quota and validation errors are reported as plain JSON before any event is sent
	stream, err := h.ChatSvc.SendMessageStream(ctx, req)
	if err != nil {
		fail(c, err)
		return
	}

	// SSE headers
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // helpful if behind nginx
	c.Status(http.StatusOK)

	flusher, canFlush := c.Writer.(http.Flusher)
	if !canFlush {
		fmt.Fprintf(c.Writer, "event: error\ndata: flusher not supported\n\n")
		return
	}

	writeJSON := func(event string, payload any) {
		b, err := json.Marshal(payload)
		if err != nil {
			fmt.Fprintf(c.Writer, "event: error\ndata: {\"message\":\"json marshal failed\"}\n\n")
			flusher.Flush()
			return
		}
		fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event, b)
		flusher.Flush()
	}
	writeChunk := func(delta string) {
		writeJSON("chunk", gin.H{"type": "chunk", "delta": delta})
	}

	writeJSON("session", gin.H{"type": "session", "session_id": stream.SessionID})

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	chunks := stream.Chunks
	for {
		select {
		case delta, open := <-chunks:
			if !open {
				chunks = nil
				continue
			}
			writeChunk(delta)

		case <-ticker.C:
			writeJSON("ping", gin.H{"type": "ping", "ts": time.Now().Unix()})

		case res := <-stream.Done:
			// chunks is closed before the result is sent; flush what is still buffered
			if chunks != nil {
				for delta := range chunks {
					writeChunk(delta)
				}
			}
			if res.Err != nil {
				logx.Info().Err(res.Err).Str("session_id", stream.SessionID).Msg("stream aborted")
				return
			}
			writeJSON("done", gin.H{
				"type":       "done",
				"session_id": res.Reply.SessionID,
				"intent":     res.Reply.Intent,
				"rate_limit": res.Reply.RateLimit,
			})
			return

		case <-ctx.Done():
			return
		}
	}
}

func (h *Handler) SendChatMessageAsync(c *gin.Context) {
	req, ok := h.bindChat(c)
	if !ok {
		return
	}

	idempoKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	if len(idempoKey) > maxIdempotencyKey {
		common.Fail(c, http.StatusBadRequest, 10003, "idempotency key too long")
		return
	}

	job, created, err := h.ChatSvc.EnqueueMessage(c.Request.Context(), req, idempoKey)
	if err != nil {
		fail(c, err)
		return
	}

	status := http.StatusAccepted
	if !created {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{
		"code":    0,
		"message": "ok",
		"data": gin.H{
			"job_id":     job.ID,
			"session_id": job.SessionID,
			"status":     job.Status,
			"created":    created,
		},
	})
}

func (h *Handler) GetChatJob(c *gin.Context) {
	uid, _ := userIDFromContext(c)
	jobID := strings.TrimSpace(c.Param("job_id"))
	if jobID == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "job_id required")
		return
	}

	j, err := h.ChatSvc.GetJob(c.Request.Context(), uid, jobID)
	if err != nil {
		fail(c, err)
		return
	}
	common.OK(c, gin.H{"job": j})
}

type sessionReq struct {
	Action    string `json:"action"`
	SessionID string `json:"session_id"`
}

func (h *Handler) ManageSession(c *gin.Context) {
	var req sessionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	uid, _ := userIDFromContext(c)

	res, err := h.ChatSvc.ManageSession(c.Request.Context(), chat.SessionRequest{
		Action:    chat.SessionAction(req.Action),
		SessionID: strings.TrimSpace(req.SessionID),
		UserID:    uid,
	})
	if err != nil {
		fail(c, err)
		return
	}
	common.OK(c, res)
}

func (h *Handler) UploadDocument(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		fail(c, errNoFile)
		return
	}
	f, err := fh.Open()
	if err != nil {
		fail(c, errNoFile)
		return
	}
	defer f.Close()

	uid, _ := userIDFromContext(c)
	rep, err := h.ChatSvc.ProcessDocument(c.Request.Context(), chat.DocumentRequest{
		SessionID: strings.TrimSpace(c.PostForm("session_id")),
		UserID:    uid,
		Filename:  fh.Filename,
		Data:      f,
	})
	if err != nil {
		fail(c, err)
		return
	}
	common.OK(c, rep)
}

func (h *Handler) RateLimitStatus(c *gin.Context) {
	sid := strings.TrimSpace(c.Query("session_id"))
	usage, err := h.ChatSvc.RateLimitStatus(c.Request.Context(), sid)
	if err != nil {
		fail(c, err)
		return
	}
	common.OK(c, gin.H{"session_id": sid, "rate_limit": usage})
}

type resetReq struct {
	SessionID string `json:"session_id"`
}

func (h *Handler) ResetRateLimit(c *gin.Context) {
	var req resetReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	sid := strings.TrimSpace(req.SessionID)
	if err := h.ChatSvc.ResetRateLimit(c.Request.Context(), sid); err != nil {
		fail(c, err)
		return
	}
	logx.Info().Str("session_id", sid).Msg("rate limit reset by admin")
	common.OK(c, gin.H{"session_id": sid, "message": "Rate limit reset"})
}

func (h *Handler) ListRateLimits(c *gin.Context) {
	recs, err := h.ChatSvc.ListRateLimits(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	common.OK(c, gin.H{"sessions": recs, "count": len(recs)})
}
