package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bank-reconciliation-backend/internal/common"
	"bank-reconciliation-backend/internal/models"
)

// FileRepository stores reconciliation files as whole aggregates.
type FileRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewFileRepository(db *gorm.DB) *FileRepository {
	return &FileRepository{db: db, now: time.Now}
}

// CreateFile inserts a new file. Statement import is handled elsewhere; this is
// used for seeding.
func (r *FileRepository) CreateFile(ctx context.Context, file *models.ReconciliationFile) error {
	if file.ID == uuid.Nil {
		file.ID = uuid.New()
	}
	if file.Status == "" {
		file.Status = models.FileOpen
	}
	if err := file.Validate(); err != nil {
		return fmt.Errorf("file %s: %w", file.ID, err)
	}
	file.MatchedCount = file.CountMatched()
	file.Version = 1

	return common.NewStorageError("create file", r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(file).Error; err != nil {
			return err
		}
		return syncBankMatches(tx, file)
	}))
}

// ListOpenFiles returns every open file in creation order.
func (r *FileRepository) ListOpenFiles(ctx context.Context) ([]models.ReconciliationFile, error) {
	var files []models.ReconciliationFile
	err := r.db.WithContext(ctx).
		Where("status = ?", models.FileOpen).
		Order("created_at ASC, id ASC").
		Find(&files).Error
	if err != nil {
		return nil, common.NewStorageError("list open files", err)
	}
	return files, nil
}

// ListFiles returns every file regardless of status.
func (r *FileRepository) ListFiles(ctx context.Context) ([]models.ReconciliationFile, error) {
	var files []models.ReconciliationFile
	if err := r.db.WithContext(ctx).Order("created_at ASC, id ASC").Find(&files).Error; err != nil {
		return nil, common.NewStorageError("list files", err)
	}
	return files, nil
}

func (r *FileRepository) GetFile(ctx context.Context, id uuid.UUID) (*models.ReconciliationFile, error) {
	var file models.ReconciliationFile
	err := r.db.WithContext(ctx).First(&file, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("reconciliation file %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, common.NewStorageError("get file", err)
	}
	return &file, nil
}

// SaveFile replaces the stored entries of file and recomputes its matched count.
// The write only succeeds if the stored version still equals file.Version;
// otherwise ErrConflict is returned and nothing is written. The bank-match
// projection and the given audit rows are written in the same transaction.
// On success file.Version, file.MatchedCount and file.UpdatedAt are refreshed.
func (r *FileRepository) SaveFile(ctx context.Context, file *models.ReconciliationFile, audit ...models.MatchAuditLog) error {
	if err := file.Validate(); err != nil {
		return fmt.Errorf("file %s: %w", file.ID, err)
	}

	now := r.now().UTC()
	matched := file.CountMatched()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.ReconciliationFile{}).
			Where("id = ? AND version = ?", file.ID, file.Version).
			Updates(map[string]interface{}{
				"rapprochements":     file.Entries,
				"lignes_rapprochees": matched,
				"version":            file.Version + 1,
				"updated_at":         now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var n int64
			if err := tx.Model(&models.ReconciliationFile{}).Where("id = ?", file.ID).Count(&n).Error; err != nil {
				return err
			}
			if n == 0 {
				return fmt.Errorf("reconciliation file %s: %w", file.ID, common.ErrNotFound)
			}
			return fmt.Errorf("reconciliation file %s at version %d: %w", file.ID, file.Version, common.ErrConflict)
		}

		if err := syncBankMatches(tx, file); err != nil {
			return err
		}

		for i := range audit {
			if audit[i].ID == uuid.Nil {
				audit[i].ID = uuid.New()
			}
			audit[i].FileID = file.ID
		}
		if len(audit) > 0 {
			if err := tx.Create(&audit).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return common.NewStorageError("save file", err)
	}

	file.Version++
	file.MatchedCount = matched
	file.UpdatedAt = now
	return nil
}

// syncBankMatches rebuilds the bank_matches rows of one file from its entries.
func syncBankMatches(tx *gorm.DB, file *models.ReconciliationFile) error {
	var rows []models.BankMatch
	keep := make([]uuid.UUID, 0, len(file.Entries))
	for i, entry := range file.Entries {
		if bm, ok := models.NewBankMatch(file.ID, i, entry); ok {
			rows = append(rows, bm)
			keep = append(keep, bm.ID)
		}
	}

	stale := tx.Where("file_id = ?", file.ID)
	if len(keep) > 0 {
		stale = stale.Where("id NOT IN ?", keep)
	}
	if err := stale.Delete(&models.BankMatch{}).Error; err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"entity_kind", "entity_id", "entity_name", "entity_subtype", "invoice_id",
		}),
	}).Create(&rows).Error
}
