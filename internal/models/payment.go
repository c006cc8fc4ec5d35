package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Payment is a recorded subscription or declaration payment.
type Payment struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	EntityKind  EntityKind      `gorm:"size:32;index:idx_payment_entity" json:"entity_kind"`
	EntityID    string          `gorm:"size:64;index:idx_payment_entity" json:"entity_id"`
	Amount      decimal.Decimal `gorm:"type:numeric(14,2)" json:"amount"`
	PaidAt      time.Time       `gorm:"index" json:"paid_at"`
	Reference   string          `json:"reference"`
	BankMatchID *uuid.UUID      `gorm:"type:uuid" json:"bank_match_id,omitempty"`
	BankMatch   *BankMatch      `gorm:"foreignKey:BankMatchID;constraint:OnDelete:SET NULL" json:"bank_match,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

func (Payment) TableName() string {
	return "paiements"
}
