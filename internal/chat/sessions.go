package chat

import (
	"context"
	"strings"

	"github.com/suPer8Hu/careerbot/internal/errx"
	"github.com/suPer8Hu/careerbot/internal/memory"
)

type SessionAction string

const (
	ActionNew          SessionAction = "new"
	ActionInfo         SessionAction = "info"
	ActionClearProfile SessionAction = "clear_profile"
	ActionClearUser    SessionAction = "clear_user" // alias of clear_profile
	ActionClearHistory SessionAction = "clear_history"
	ActionExport       SessionAction = "export"
)

type SessionRequest struct {
	Action    SessionAction
	SessionID string
	UserID    uint64
}

type SessionResult struct {
	SessionID string           `json:"session_id"`
	Message   string           `json:"message,omitempty"`
	Info      *memory.Info     `json:"info,omitempty"`
	Export    *memory.Snapshot `json:"export,omitempty"`
}

// ManageSession runs one session action. "new" drops the old id from memory,
// which also leaves its quota behind: quota is keyed by session id.
func (s *Service) ManageSession(ctx context.Context, req SessionRequest) (*SessionResult, error) {
	action := SessionAction(strings.ToLower(strings.TrimSpace(string(req.Action))))

	switch action {
	case ActionNew:
		sess := s.sessions.StartNew(ctx, req.SessionID, req.UserID)
		return &SessionResult{SessionID: sess.ID(), Message: "New session created"}, nil
	case ActionInfo, ActionClearProfile, ActionClearUser, ActionClearHistory, ActionExport:
	default:
		return nil, errx.BadRequest(ErrInvalidAction)
	}

	if strings.TrimSpace(req.SessionID) == "" {
		return nil, errx.BadRequest(ErrMissingSession)
	}
	sess := s.sessions.LoadOrCreate(ctx, req.SessionID, req.UserID)

	switch action {
	case ActionInfo:
		info := sess.Info()
		return &SessionResult{SessionID: sess.ID(), Info: &info}, nil
	case ActionClearProfile, ActionClearUser:
		sess.ClearProfile(ctx)
		return &SessionResult{SessionID: sess.ID(), Message: "User information cleared"}, nil
	case ActionClearHistory:
		sess.ClearHistory(ctx)
		return &SessionResult{SessionID: sess.ID(), Message: "Chat history cleared"}, nil
	default:
		snap := sess.Export()
		return &SessionResult{SessionID: sess.ID(), Export: &snap}, nil
	}
}
