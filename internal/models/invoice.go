package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Invoice is a supplier or client invoice. Only read here, to find bank matches
// for entities that have no direct key on the match.
type Invoice struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	InvoiceNumber string          `gorm:"uniqueIndex" json:"invoice_number"`
	IssuerName    string          `gorm:"index" json:"issuer_name"`
	RecipientName string          `gorm:"index" json:"recipient_name"`
	Amount        decimal.Decimal `gorm:"type:numeric(14,2)" json:"amount"`
	Status        string          `gorm:"index" json:"status"`
	IssuedAt      time.Time       `gorm:"index" json:"issued_at"`
	PaidAt        *time.Time      `json:"paid_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

func (Invoice) TableName() string {
	return "factures"
}
