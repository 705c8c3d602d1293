package models

import "time"

// Audit event kinds written by the realtime core and the moderation service.
const (
	AuditChatMessage = "chat_message"
	AuditBanIssued   = "ban_issued"
	AuditBanLifted   = "ban_lifted"
	AuditDisconnect  = "disconnect"
	AuditGameBooted  = "game_booted"
	AuditMute        = "mute"
	AuditUnmute      = "unmute"
)

type AuditEntry struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Kind      string    `gorm:"not null;index:idx_audit_entries_kind" json:"kind"`
	Actor     string    `gorm:"not null;index" json:"actor"` // username that caused the event
	Target    string    `json:"target"`                      // username / game id acted upon, if any
	Detail    string    `gorm:"not null" json:"detail"`
	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (AuditEntry) TableName() string {
	return "audit_entries"
}
