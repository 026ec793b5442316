// Package domain defines the persistence models and closed value types of
// the support desk: the user↔topic directory, the ban list, per-user flow
// sessions, relayed-message records and runtime settings. The structs are
// mapped with GORM and shared by the repository and service layers.
//
// Timestamps that take part in range comparisons (ban expiry, session
// activity) are stored as Unix milliseconds so SQLite compares integers
// rather than formatted strings.
package domain

import (
	"time"
)

// User is an end-user identity as seen by the transport. Handle may be empty.
type User struct {
	ID          int64
	DisplayName string
	Handle      string
}

// Topic maps one end-user to one forum thread in the staff chat.
//
// Fields:
//   - UserID: owning user; primary key, so a user has at most one topic.
//   - ChatID/TopicID: the staff chat and the transport-assigned thread id;
//     unique together, so no two users share a thread.
//   - Category: the label the thread is currently named after.
//   - DisplayName/Handle: the user's names at the last rename, used to
//     rebuild the thread name without a live user object.
type Topic struct {
	UserID      int64     `json:"user_id"      gorm:"primaryKey;autoIncrement:false"`
	ChatID      int64     `json:"chat_id"      gorm:"not null;uniqueIndex:ux_topics_chat_thread,priority:1"`
	TopicID     int       `json:"topic_id"     gorm:"not null;uniqueIndex:ux_topics_chat_thread,priority:2"`
	Category    Category  `json:"category"     gorm:"type:varchar(32);not null"`
	DisplayName string    `json:"display_name" gorm:"type:varchar(255);not null;default:''"`
	Handle      string    `json:"handle"       gorm:"type:varchar(64);not null;default:''"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName returns the database table name for Topic.
func (Topic) TableName() string { return "topics" }

// Owner returns the user the topic belongs to, as last seen.
func (t Topic) Owner() User {
	return User{ID: t.UserID, DisplayName: t.DisplayName, Handle: t.Handle}
}

// PermanentBanUntil is the expiry written for bans without a duration.
var PermanentBanUntil = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC).UnixMilli()

// Ban is the single record that is a user's ban state. A user is banned iff
// now < BanUntil. Rows are upserted; deleting the row is an unban.
type Ban struct {
	UserID    int64     `json:"user_id"   gorm:"primaryKey;autoIncrement:false"`
	BanUntil  int64     `json:"ban_until" gorm:"not null;index:idx_bans_until"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for Ban.
func (Ban) TableName() string { return "bans" }

// Until returns the ban expiry as a time.
func (b Ban) Until() time.Time { return time.UnixMilli(b.BanUntil).UTC() }

// ActiveAt reports whether the ban is still in force at now.
func (b Ban) ActiveAt(now time.Time) bool { return now.UnixMilli() < b.BanUntil }

// Permanent reports whether the ban was issued without an end.
func (b Ban) Permanent() bool { return b.BanUntil >= PermanentBanUntil }

// SessionKey identifies one user's conversation with one bot in one chat.
type SessionKey struct {
	BotID  int64
	ChatID int64
	UserID int64
}

// Session is the durable state of an in-progress multi-step interaction.
// It exists only while a flow is active; completion, cancel and timeout
// delete the row.
type Session struct {
	BotID        int64             `gorm:"primaryKey;autoIncrement:false"`
	ChatID       int64             `gorm:"primaryKey;autoIncrement:false"`
	UserID       int64             `gorm:"primaryKey;autoIncrement:false"`
	Flow         Flow              `gorm:"type:varchar(32);not null"`
	Category     Category          `gorm:"type:varchar(32);not null;default:''"`
	Data         map[string]string `gorm:"type:text;serializer:json"`
	LastActivity int64             `gorm:"not null;index:idx_sessions_activity"`
	CreatedAt    time.Time
}

// TableName returns the database table name for Session.
func (Session) TableName() string { return "sessions" }

// Key returns the session's composite identity.
func (s Session) Key() SessionKey {
	return SessionKey{BotID: s.BotID, ChatID: s.ChatID, UserID: s.UserID}
}

// IdleFor returns how long the session has been inactive at now.
func (s Session) IdleFor(now time.Time) time.Duration {
	return now.Sub(time.UnixMilli(s.LastActivity))
}

// Relay records one message this system copied into the staff chat, so that
// staff replies can be traced back to the user it came from.
type Relay struct {
	ChatID    int64     `gorm:"primaryKey;autoIncrement:false"`
	MessageID int       `gorm:"primaryKey;autoIncrement:false"`
	UserID    int64     `gorm:"not null;index"`
	ThreadID  int       `gorm:"not null;default:0"`
	CreatedAt time.Time `gorm:"index"`
}

// TableName returns the database table name for Relay.
func (Relay) TableName() string { return "relays" }

// Setting is one row of the key-value runtime configuration store.
type Setting struct {
	Key       string    `json:"key"        gorm:"type:varchar(64);primaryKey"`
	Value     string    `json:"value"      gorm:"type:text;not null"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Setting.
func (Setting) TableName() string { return "settings" }
