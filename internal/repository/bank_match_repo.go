package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"bank-reconciliation-backend/internal/common"
	"bank-reconciliation-backend/internal/models"
)

// BankMatchRepository reads the bank_matches projection.
type BankMatchRepository struct {
	db *gorm.DB
}

func NewBankMatchRepository(db *gorm.DB) *BankMatchRepository {
	return &BankMatchRepository{db: db}
}

// FindByEntity returns matches linked to the entity, most recent first.
func (r *BankMatchRepository) FindByEntity(ctx context.Context, kind models.EntityKind, entityID string) ([]models.BankMatch, error) {
	var matches []models.BankMatch
	err := r.db.WithContext(ctx).
		Where("entity_kind = ? AND entity_id = ?", kind, entityID).
		Order("transaction_date DESC, id ASC").
		Find(&matches).Error
	if err != nil {
		return nil, common.NewStorageError("find bank matches by entity", err)
	}
	return matches, nil
}

// FindByInvoices returns matches settling any of the given invoices.
func (r *BankMatchRepository) FindByInvoices(ctx context.Context, invoiceIDs []uuid.UUID) ([]models.BankMatch, error) {
	if len(invoiceIDs) == 0 {
		return nil, nil
	}
	var matches []models.BankMatch
	err := r.db.WithContext(ctx).
		Where("invoice_id IN ?", invoiceIDs).
		Order("transaction_date DESC, id ASC").
		Find(&matches).Error
	if err != nil {
		return nil, common.NewStorageError("find bank matches by invoices", err)
	}
	return matches, nil
}

// FindByFile returns the projection rows of one file ordered by entry.
func (r *BankMatchRepository) FindByFile(ctx context.Context, fileID uuid.UUID) ([]models.BankMatch, error) {
	var matches []models.BankMatch
	err := r.db.WithContext(ctx).
		Where("file_id = ?", fileID).
		Order("entry_index ASC").
		Find(&matches).Error
	if err != nil {
		return nil, common.NewStorageError("find bank matches by file", err)
	}
	return matches, nil
}
