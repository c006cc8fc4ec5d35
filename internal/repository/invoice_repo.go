package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"bank-reconciliation-backend/internal/common"
	"bank-reconciliation-backend/internal/models"
)

type InvoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

// FindByParty returns the most recent invoices whose issuer or recipient name
// contains name, case-insensitively. A non-positive limit means no limit.
func (r *InvoiceRepository) FindByParty(ctx context.Context, name string, limit int) ([]models.Invoice, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}

	like := "%" + escapeLike(strings.ToLower(name)) + "%"
	query := r.db.WithContext(ctx).
		Where(`LOWER(issuer_name) LIKE ? ESCAPE '\' OR LOWER(recipient_name) LIKE ? ESCAPE '\'`, like, like).
		Order("issued_at DESC, id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var invoices []models.Invoice
	if err := query.Find(&invoices).Error; err != nil {
		return nil, common.NewStorageError("find invoices by party", err)
	}
	return invoices, nil
}

// Create inserts an invoice; used to seed the read model.
func (r *InvoiceRepository) Create(ctx context.Context, invoice *models.Invoice) error {
	return common.NewStorageError("create invoice", r.db.WithContext(ctx).Create(invoice).Error)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
