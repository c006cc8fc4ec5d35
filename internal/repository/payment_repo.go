package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"bank-reconciliation-backend/internal/common"
	"bank-reconciliation-backend/internal/models"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Record stores a payment, assigning an id and payment date when missing.
// A referenced bank match must exist, otherwise common.ErrNotFound is returned.
func (r *PaymentRepository) Record(ctx context.Context, p *models.Payment) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.PaidAt.IsZero() {
		p.PaidAt = time.Now().UTC()
	}
	return common.NewStorageError("record payment", r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if p.BankMatchID != nil {
			var n int64
			if err := tx.Model(&models.BankMatch{}).Where("id = ?", *p.BankMatchID).Count(&n).Error; err != nil {
				return err
			}
			if n == 0 {
				return fmt.Errorf("bank match %s: %w", *p.BankMatchID, common.ErrNotFound)
			}
		}
		return tx.Omit("BankMatch").Create(p).Error
	}))
}

// FindByEntity returns the entity's payments, newest first, each with its bank match.
func (r *PaymentRepository) FindByEntity(ctx context.Context, kind models.EntityKind, entityID string) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.WithContext(ctx).
		Preload("BankMatch").
		Where("entity_kind = ? AND entity_id = ?", kind, entityID).
		Order("paid_at DESC, id ASC").
		Find(&payments).Error
	if err != nil {
		return nil, common.NewStorageError("find payments by entity", err)
	}
	return payments, nil
}
