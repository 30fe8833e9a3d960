// Package memory keeps per-session conversation turns and the user's profile,
// optionally mirrored to a durable Backend.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
	"github.com/suPer8Hu/careerbot/internal/logx"
	"github.com/suPer8Hu/careerbot/internal/metrics"
)

// Profile keys the classifier can produce. Anything else is stored verbatim.
const (
	FieldName           = "name"
	FieldCurrentRole    = "current_role"
	FieldExperience     = "experience"
	FieldSkills         = "skills"
	FieldEducation      = "education"
	FieldCareerInterest = "career_interest"
	FieldOther          = "other"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Turn struct {
	User      string    `json:"user"`
	Assistant string    `json:"assistant"`
	At        time.Time `json:"at"`
}

// Profile values are either string or []string (skills).
type Profile map[string]any

func (p Profile) clone() Profile {
	out := make(Profile, len(p))
	for k, v := range p {
		if list, ok := v.([]string); ok {
			v = append([]string(nil), list...)
		}
		out[k] = v
	}
	return out
}

// String returns the field as text; lists are joined with ", ".
func (p Profile) String(key string) string {
	switch v := p[key].(type) {
	case string:
		return v
	case []string:
		return strings.Join(v, ", ")
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Session is one conversation. All methods are safe for concurrent use.
type Session struct {
	id        string
	createdAt time.Time

	backend Backend
	now     func() time.Time

	mu         sync.RWMutex
	userID     uint64
	window     int
	turns      []Turn
	profile    Profile
	lastActive time.Time
}

func newSession(id string, userID uint64, window int, backend Backend, now func() time.Time) *Session {
	t := now()
	return &Session{
		id:         id,
		createdAt:  t,
		backend:    backend,
		now:        now,
		userID:     userID,
		window:     window,
		profile:    Profile{},
		lastActive: t,
	}
}

func (s *Session) ID() string           { return s.id }
func (s *Session) CreatedAt() time.Time { return s.createdAt }

func (s *Session) UserID() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

func (s *Session) Profile() Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile.clone()
}

func (s *Session) Turns() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Turn(nil), s.turns...)
}

// Name is the stored name, or "".
func (s *Session) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile.String(FieldName)
}

// TurnsText renders the window as alternating "Human:" / "AI:" lines, most recent last.
func (s *Session) TurnsText() string {
	turns := s.Turns()
	if len(turns) == 0 {
		return ""
	}
	lines := make([]string, 0, 2*len(turns))
	for _, t := range turns {
		lines = append(lines, "Human: "+t.User, "AI: "+t.Assistant)
	}
	return strings.Join(lines, "\n")
}

func (s *Session) touch() {
	s.lastActive = s.now()
}

func (s *Session) idleSince() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActive
}

// AppendTurn pushes a pair and evicts the oldest once the window is full.
// Both messages are persisted when a backend is configured; failures are logged only.
func (s *Session) AppendTurn(ctx context.Context, user, assistant string) {
	s.mu.Lock()
	s.turns = append(s.turns, Turn{User: user, Assistant: assistant, At: s.now()})
	if over := len(s.turns) - s.window; over > 0 {
		s.turns = append([]Turn(nil), s.turns[over:]...)
	}
	s.touch()
	s.mu.Unlock()

	if s.backend == nil {
		return
	}
	if err := s.backend.AppendMessage(ctx, s.id, RoleUser, user); err != nil {
		s.persistFailed("append_message", err)
		return
	}
	if err := s.backend.AppendMessage(ctx, s.id, RoleAssistant, assistant); err != nil {
		s.persistFailed("append_message", err)
	}
}

// StoreProfileField overwrites key, except skills which are comma-split and appended
// without de-duplication.
func (s *Session) StoreProfileField(ctx context.Context, key, value string) {
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)
	if key == "" {
		return
	}

	s.mu.Lock()
	var stored any = value
	if key == FieldSkills {
		existing, _ := s.profile[FieldSkills].([]string)
		parts := lo.Filter(lo.Map(strings.Split(value, ","), func(p string, _ int) string {
			return strings.TrimSpace(p)
		}), func(p string, _ int) bool { return p != "" })
		list := append(append([]string(nil), existing...), parts...)
		s.profile[FieldSkills] = list
		stored = list
	} else {
		s.profile[key] = value
	}
	s.touch()
	owner := s.userID
	s.mu.Unlock()

	if s.backend == nil || owner == 0 {
		return
	}
	if err := s.backend.UpsertProfileField(ctx, owner, key, stored); err != nil {
		s.persistFailed("upsert_profile", err)
	}
}

// ClearProfile empties the profile and leaves turns untouched.
func (s *Session) ClearProfile(ctx context.Context) {
	s.mu.Lock()
	s.profile = Profile{}
	s.touch()
	owner := s.userID
	s.mu.Unlock()

	if s.backend == nil || owner == 0 {
		return
	}
	if err := s.backend.ClearProfile(ctx, owner); err != nil {
		s.persistFailed("clear_profile", err)
	}
}

// ClearHistory empties the turn window and leaves the profile untouched.
func (s *Session) ClearHistory(ctx context.Context) {
	s.mu.Lock()
	s.turns = nil
	s.touch()
	s.mu.Unlock()

	if s.backend == nil {
		return
	}
	if err := s.backend.ClearMessages(ctx, s.id); err != nil {
		s.persistFailed("clear_messages", err)
	}
}

type Snapshot struct {
	SessionID  string    `json:"session_id"`
	UserID     uint64    `json:"user_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	LastActive time.Time `json:"last_active"`
	Profile    Profile   `json:"profile"`
	Turns      []Turn    `json:"turns"`
}

func (s *Session) Export() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	turns := append([]Turn{}, s.turns...)
	return Snapshot{
		SessionID:  s.id,
		UserID:     s.userID,
		CreatedAt:  s.createdAt,
		LastActive: s.lastActive,
		Profile:    s.profile.clone(),
		Turns:      turns,
	}
}

type Info struct {
	SessionID     string    `json:"session_id"`
	CreatedAt     time.Time `json:"created_at"`
	ProfileFields int       `json:"profile_fields"`
	Turns         int       `json:"turns"`
	Window        int       `json:"window"`
}

func (s *Session) Info() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Info{
		SessionID:     s.id,
		CreatedAt:     s.createdAt,
		ProfileFields: len(s.profile),
		Turns:         len(s.turns),
		Window:        s.window,
	}
}

func (s *Session) persistFailed(op string, err error) {
	metrics.PersistenceErrors.WithLabelValues(op).Inc()
	logx.Warn().Err(err).Str("session_id", s.id).Str("op", op).Msg("session persistence failed, continuing in memory")
}
