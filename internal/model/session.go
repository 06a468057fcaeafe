package model

import "time"

// SessionRecord is one persisted client session, keyed by profile.
type SessionRecord struct {
	Profile   string    `gorm:"primaryKey;size:64"`
	Access    string    `gorm:"type:text;not null"`
	Refresh   string    `gorm:"type:text;not null"`
	AccessExp int64     `gorm:"not null"`
	User      string    `gorm:"type:text"` // JSON, empty when no profile was fetched
	UpdatedAt time.Time
}

func (SessionRecord) TableName() string {
	return "client_sessions"
}
