package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/suPer8Hu/careerbot/internal/memory"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repo is the gorm-backed session mirror and job store.
type Repo struct {
	db  *gorm.DB
	now func() time.Time
}

var _ memory.Backend = (*Repo)(nil)

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db, now: time.Now}
}

func (r *Repo) CreateSession(ctx context.Context, id string, owner uint64) error {
	s := &Session{SessionID: id, UserID: owner, LastActiveAt: r.now()}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "session_id"}}, DoNothing: true}).
		Create(s).Error
}

func (r *Repo) GetSessionBySessionID(ctx context.Context, sessionID string) (*Session, error) {
	var s Session
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *Repo) AppendMessage(ctx context.Context, sessionID, role, content string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&Message{SessionID: sessionID, Role: role, Content: content}).Error; err != nil {
			return err
		}
		return tx.Model(&Session{}).
			Where("session_id = ?", sessionID).
			Update("last_active_at", r.now()).Error
	})
}

// LoadMessages returns the newest limit messages in ASC id order (oldest -> newest).
func (r *Repo) LoadMessages(ctx context.Context, sessionID string, limit int) ([]memory.StoredMessage, error) {
	q := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var desc []Message
	if err := q.Find(&desc).Error; err != nil {
		return nil, err
	}

	// reverse to ASC
	out := make([]memory.StoredMessage, 0, len(desc))
	for i := len(desc) - 1; i >= 0; i-- {
		m := desc[i]
		out = append(out, memory.StoredMessage{Role: m.Role, Content: m.Content, CreatedAt: m.CreatedAt})
	}
	return out, nil
}

func (r *Repo) GetProfile(ctx context.Context, owner uint64) (memory.Profile, error) {
	var rows []ProfileField
	if err := r.db.WithContext(ctx).Where("user_id = ?", owner).Find(&rows).Error; err != nil {
		return nil, err
	}
	p := make(memory.Profile, len(rows))
	for _, row := range rows {
		var v any
		if err := json.Unmarshal([]byte(row.Value), &v); err != nil {
			return nil, fmt.Errorf("decode profile field %q: %w", row.Key, err)
		}
		p[row.Key] = v
	}
	return p, nil
}

func (r *Repo) UpsertProfileField(ctx context.Context, owner uint64, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode profile field %q: %w", key, err)
	}
	row := &ProfileField{UserID: owner, Key: key, Value: string(raw)}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "field_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(row).Error
}

func (r *Repo) ClearProfile(ctx context.Context, owner uint64) error {
	return r.db.WithContext(ctx).Where("user_id = ?", owner).Delete(&ProfileField{}).Error
}

func (r *Repo) ClearMessages(ctx context.Context, sessionID string) error {
	return r.db.WithContext(ctx).Where("session_id = ?", sessionID).Delete(&Message{}).Error
}

// DeleteInactiveSessions removes sessions (and their messages) idle since before.
func (r *Repo) DeleteInactiveSessions(ctx context.Context, before time.Time) (int64, error) {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stale := tx.Model(&Session{}).Select("session_id").Where("last_active_at < ?", before)
		if err := tx.Where("session_id IN (?)", stale).Delete(&Message{}).Error; err != nil {
			return err
		}
		res := tx.Where("last_active_at < ?", before).Delete(&Session{})
		deleted = res.RowsAffected
		return res.Error
	})
	return deleted, err
}

// Job CRUD
func (r *Repo) GetJobByID(ctx context.Context, id string) (*Job, error) {
	var j Job
	if err := r.db.WithContext(ctx).First(&j, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &j, nil
}

func (r *Repo) UpdateJobStatusRunning(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ? AND status = ?", id, JobQueued).
		Update("status", JobRunning).Error
}

func (r *Repo) MarkJobSucceeded(ctx context.Context, id, reply, intentKind string) error {
	return r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status": JobSucceeded,
			"reply":  reply,
			"intent": intentKind,
			"error":  nil,
		}).Error
}

func (r *Repo) MarkJobFailed(ctx context.Context, id string, errMsg string) error {
	return r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status": JobFailed,
			"error":  errMsg,
			"reply":  nil,
		}).Error
}

func (r *Repo) GetJobByUserAndIdempotencyKey(ctx context.Context, userID uint64, key string) (*Job, error) {
	var job Job
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND idempotency_key = ?", userID, key).
		First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// CreateJobOrGetExisting tries to create a job, but if (user_id, idempotency_key) already exists,
// it returns the existing job instead.
func (r *Repo) CreateJobOrGetExisting(ctx context.Context, job *Job) (*Job, bool, error) {
	if job.IdempotencyKey == nil || *job.IdempotencyKey == "" {
		job.IdempotencyKey = nil
		if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
			return nil, false, err
		}
		return job, true, nil
	}

	err := r.db.WithContext(ctx).Create(job).Error
	if err == nil {
		return job, true, nil
	}

	existing, getErr := r.GetJobByUserAndIdempotencyKey(ctx, job.UserID, *job.IdempotencyKey)
	if getErr == nil {
		return existing, false, nil
	}

	if errors.Is(getErr, gorm.ErrRecordNotFound) {
		return nil, false, err
	}
	return nil, false, getErr
}
