package models

import (
	"time"
)

// AuditEntry is one acknowledged write, kept in MySQL.
type AuditEntry struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Action     string    `gorm:"type:varchar(16);not null" json:"action"`
	Collection string    `gorm:"type:varchar(64);not null;index" json:"collection"`
	DocumentID string    `gorm:"type:varchar(64);index" json:"document_id"`
	UserID     string    `gorm:"type:varchar(64);index" json:"user_id"`
	Payload    string    `gorm:"type:text" json:"payload"` // JSON string
	CreatedAt  time.Time `json:"created_at"`
}

func (AuditEntry) TableName() string {
	return "audit_entries"
}
