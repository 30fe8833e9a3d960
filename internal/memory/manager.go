package memory

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/suPer8Hu/careerbot/internal/logx"
	"github.com/suPer8Hu/careerbot/internal/metrics"
)

// StoredMessage is one persisted chat line, in insertion order.
type StoredMessage struct {
	Role      string
	Content   string
	CreatedAt time.Time
}

// Backend is the optional durable mirror of session state.
// Profiles are keyed by user, so anonymous sessions keep theirs in memory only.
type Backend interface {
	// CreateSession records id; creating an id that already exists is a no-op.
	CreateSession(ctx context.Context, id string, owner uint64) error
	AppendMessage(ctx context.Context, sessionID, role, content string) error
	// LoadMessages returns at most limit of the newest messages, oldest first.
	LoadMessages(ctx context.Context, sessionID string, limit int) ([]StoredMessage, error)
	GetProfile(ctx context.Context, owner uint64) (Profile, error)
	UpsertProfileField(ctx context.Context, owner uint64, key string, value any) error
	ClearProfile(ctx context.Context, owner uint64) error
	ClearMessages(ctx context.Context, sessionID string) error
	DeleteInactiveSessions(ctx context.Context, before time.Time) (int64, error)
}

type Option func(*Manager)

func WithBackend(b Backend) Option {
	return func(m *Manager) { m.backend = b }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// Manager owns the process-wide session table.
type Manager struct {
	sessions cmap.ConcurrentMap[string, *Session]
	window   int
	backend  Backend
	now      func() time.Time
}

func NewManager(window int, opts ...Option) *Manager {
	if window <= 0 {
		window = 15
	}
	m := &Manager{
		sessions: cmap.New[*Session](),
		window:   window,
		now:      time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *Manager) Window() int { return m.window }

func (m *Manager) Len() int { return m.sessions.Count() }

// Create starts an empty session. An explicit id is honoured (and recorded in the backend
// when absent there); otherwise a random id is generated.
func (m *Manager) Create(ctx context.Context, explicitID string, owner uint64) *Session {
	id := strings.TrimSpace(explicitID)
	if id == "" {
		id = uuid.NewString()
	}
	s := newSession(id, owner, m.window, m.backend, m.now)
	m.register(ctx, s)
	m.sessions.Set(id, s)
	return s
}

// Get returns the cached session without touching the backend.
func (m *Manager) Get(id string) (*Session, bool) {
	return m.sessions.Get(id)
}

// LoadOrCreate returns the cached session, else restores it from the backend, else creates it.
// Repeated calls with the same id return the same handle.
func (m *Manager) LoadOrCreate(ctx context.Context, id string, owner uint64) *Session {
	id = strings.TrimSpace(id)
	if id == "" {
		return m.Create(ctx, "", owner)
	}
	if s, ok := m.sessions.Get(id); ok {
		m.bindOwner(ctx, s, owner)
		return s
	}

	s := newSession(id, owner, m.window, m.backend, m.now)
	m.restore(ctx, s)

	if !m.sessions.SetIfAbsent(id, s) {
		// lost a race with a concurrent request for the same id
		existing, _ := m.sessions.Get(id)
		m.bindOwner(ctx, existing, owner)
		return existing
	}
	return s
}

// StartNew drops the old session from memory and returns a fresh one for the same owner.
// Backing-store rows of the old session are kept.
func (m *Manager) StartNew(ctx context.Context, oldID string, owner uint64) *Session {
	if oldID != "" {
		m.sessions.Remove(oldID)
	}
	return m.Create(ctx, "", owner)
}

// Sweep evicts sessions idle since before now-ttl and deletes matching backend rows.
func (m *Manager) Sweep(ctx context.Context, ttl time.Duration) (evicted int, deleted int64) {
	cutoff := m.now().Add(-ttl)
	for _, id := range m.sessions.Keys() {
		m.sessions.RemoveCb(id, func(_ string, s *Session, exists bool) bool {
			if exists && s.idleSince().Before(cutoff) {
				evicted++
				return true
			}
			return false
		})
	}

	if m.backend != nil {
		n, err := m.backend.DeleteInactiveSessions(ctx, cutoff)
		if err != nil {
			metrics.PersistenceErrors.WithLabelValues("sweep").Inc()
			logx.Warn().Err(err).Msg("session sweep: backend cleanup failed")
		}
		deleted = n
	}
	return evicted, deleted
}

func (m *Manager) register(ctx context.Context, s *Session) {
	if m.backend == nil {
		return
	}
	if err := m.backend.CreateSession(ctx, s.id, s.userID); err != nil {
		s.persistFailed("create_session", err)
	}
}

func (m *Manager) restore(ctx context.Context, s *Session) {
	if m.backend == nil {
		return
	}
	m.register(ctx, s)

	msgs, err := m.backend.LoadMessages(ctx, s.id, 2*m.window)
	if err != nil {
		s.persistFailed("load_messages", err)
	} else {
		s.turns = pairTurns(msgs, m.window)
	}

	if s.userID == 0 {
		return
	}
	p, err := m.backend.GetProfile(ctx, s.userID)
	if err != nil {
		s.persistFailed("get_profile", err)
		return
	}
	s.profile = normalizeProfile(p)
}

// bindOwner attaches a late-authenticated user to an anonymous session. Fields already
// in memory win over stored ones.
func (m *Manager) bindOwner(ctx context.Context, s *Session, owner uint64) {
	if owner == 0 {
		return
	}
	s.mu.Lock()
	if s.userID != 0 {
		s.mu.Unlock()
		return
	}
	s.userID = owner
	s.mu.Unlock()

	if m.backend == nil {
		return
	}
	stored, err := m.backend.GetProfile(ctx, owner)
	if err != nil {
		s.persistFailed("get_profile", err)
		return
	}
	s.mu.Lock()
	merged := normalizeProfile(stored)
	for k, v := range s.profile {
		merged[k] = v
	}
	s.profile = merged
	s.mu.Unlock()
}

// pairTurns rebuilds turns from user/assistant rows, skipping unmatched rows, keeping the last k.
func pairTurns(msgs []StoredMessage, k int) []Turn {
	var turns []Turn
	for i := 0; i < len(msgs); i++ {
		if msgs[i].Role != RoleUser || i+1 >= len(msgs) || msgs[i+1].Role != RoleAssistant {
			continue
		}
		turns = append(turns, Turn{User: msgs[i].Content, Assistant: msgs[i+1].Content, At: msgs[i+1].CreatedAt})
		i++
	}
	if len(turns) > k {
		turns = turns[len(turns)-k:]
	}
	return turns
}

// normalizeProfile turns decoded JSON lists back into []string.
func normalizeProfile(p Profile) Profile {
	out := make(Profile, len(p))
	for k, v := range p {
		switch x := v.(type) {
		case []any:
			list := make([]string, 0, len(x))
			for _, item := range x {
				if str, ok := item.(string); ok {
					list = append(list, str)
				}
			}
			out[k] = list
		case []string:
			out[k] = append([]string(nil), x...)
		case string:
			out[k] = x
		case nil:
		default:
			out[k] = x
		}
	}
	return out
}
