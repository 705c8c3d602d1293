package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Ban blocks a username and/or a remote address from the lobby until it
// expires or a moderator lifts it. Either field may be empty but not both;
// the service layer enforces that.
type Ban struct {
	ID        string     `gorm:"primaryKey;type:uuid" json:"id"`
	Username  string     `gorm:"index:idx_bans_username" json:"username"`
	Address   string     `gorm:"index:idx_bans_address" json:"address"`
	Reason    string     `json:"reason"`
	IssuedBy  string     `gorm:"type:uuid;not null" json:"issued_by"` // moderator user ID
	ExpiresAt *time.Time `json:"expires_at,omitempty"`                // nil = permanent
	CreatedAt time.Time  `json:"created_at"`

	// Associations
	Moderator *User `gorm:"foreignKey:IssuedBy" json:"moderator,omitempty"`
}

// BeforeCreate hook to set UUID before creating a Ban
func (ban *Ban) BeforeCreate(tx *gorm.DB) (err error) {
	if ban.ID == "" {
		ban.ID = uuid.New().String()
	}
	return
}

func (Ban) TableName() string {
	return "bans"
}
