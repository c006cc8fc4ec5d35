package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BankMatch is the row-per-match projection of matched file entries.
// It is rebuilt from the file on every save and never written on its own.
type BankMatch struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	FileID          uuid.UUID       `gorm:"type:uuid;index;uniqueIndex:idx_bank_match_entry" json:"file_id"`
	EntryIndex      int             `gorm:"uniqueIndex:idx_bank_match_entry" json:"entry_index"`
	TransactionDate time.Time       `gorm:"column:transaction_date;index" json:"transaction_date"`
	Label           string          `json:"label"`
	Amount          decimal.Decimal `gorm:"type:numeric(14,2)" json:"amount"`
	EntityKind      EntityKind      `gorm:"size:32;index:idx_bank_match_entity" json:"entity_kind"`
	EntityID        string          `gorm:"size:64;index:idx_bank_match_entity" json:"entity_id"`
	EntityName      string          `json:"entity_name"`
	EntitySubtype   string          `json:"entity_subtype,omitempty"`
	InvoiceID       *uuid.UUID      `gorm:"type:uuid;index" json:"invoice_id,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// NewBankMatch projects a matched entry. ok is false when the entry holds no match.
func NewBankMatch(fileID uuid.UUID, index int, rec MatchRecord) (BankMatch, bool) {
	if rec.Status != StatusMatched || rec.Link == nil {
		return BankMatch{}, false
	}
	return BankMatch{
		ID:              BankMatchID(fileID, index),
		FileID:          fileID,
		EntryIndex:      index,
		TransactionDate: rec.Transaction.Date,
		Label:           rec.Transaction.Label,
		Amount:          rec.Transaction.Net,
		EntityKind:      rec.Link.Kind,
		EntityID:        rec.Link.ID,
		EntityName:      rec.Link.Name,
		EntitySubtype:   rec.Link.Subtype,
		InvoiceID:       rec.InvoiceID,
	}, true
}
