package models

import (
	"time"

	"github.com/google/uuid"
)

type AuditAction string

const (
	AuditMatch   AuditAction = "match"
	AuditRelease AuditAction = "release"
)

type MatchAuditLog struct {
	ID          uuid.UUID   `gorm:"type:uuid;primaryKey"`
	FileID      uuid.UUID   `gorm:"type:uuid;index"`
	EntryIndex  int
	Action      AuditAction `gorm:"size:16"`
	EntityKind  EntityKind  `gorm:"size:32"`
	EntityID    string      `gorm:"size:64"`
	EntityName  string
	InvoiceID   *uuid.UUID `gorm:"type:uuid"`
	PerformedBy string
	Reason      string
	CreatedAt   time.Time
}
