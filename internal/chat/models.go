package chat

import "time"

type Session struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	SessionID    string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"session_id"`
	UserID       uint64    `gorm:"index;not null;default:0" json:"-"`
	LastActiveAt time.Time `gorm:"index;not null" json:"last_active_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (Session) TableName() string { return "chat_sessions" }

type Message struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID string    `gorm:"type:varchar(64);not null;index" json:"session_id"`
	Role      string    `gorm:"type:varchar(16);not null" json:"role"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func (Message) TableName() string { return "chat_messages" }

// ProfileField is one profile entry of a registered user. Value holds JSON
// (a string, or a list of strings for skills).
type ProfileField struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	UserID    uint64    `gorm:"not null;uniqueIndex:uniq_profile_user_key,priority:1" json:"-"`
	Key       string    `gorm:"column:field_key;type:varchar(64);not null;uniqueIndex:uniq_profile_user_key,priority:2" json:"key"`
	Value     string    `gorm:"type:text;not null" json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (ProfileField) TableName() string { return "user_profiles" }

// Models lists every table owned by this package, for AutoMigrate.
func Models() []any {
	return []any{&Session{}, &Message{}, &ProfileField{}, &Job{}}
}
