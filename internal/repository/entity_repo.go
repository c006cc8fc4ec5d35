package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bank-reconciliation-backend/internal/common"
	"bank-reconciliation-backend/internal/models"
)

// EntityRepository is the entity directory read model.
type EntityRepository struct {
	db *gorm.DB
}

func NewEntityRepository(db *gorm.DB) *EntityRepository {
	return &EntityRepository{db: db}
}

func (r *EntityRepository) ListEntities(ctx context.Context, kind models.EntityKind) ([]models.Entity, error) {
	var entities []models.Entity
	err := r.db.WithContext(ctx).
		Where("kind = ?", kind).
		Order("label ASC, id ASC").
		Find(&entities).Error
	if err != nil {
		return nil, common.NewStorageError("list entities", err)
	}
	return entities, nil
}

// EntityLabel returns the display label of one entity, or ErrNotFound.
func (r *EntityRepository) EntityLabel(ctx context.Context, kind models.EntityKind, id string) (string, error) {
	var entity models.Entity
	err := r.db.WithContext(ctx).First(&entity, "kind = ? AND id = ?", kind, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("%s %s: %w", kind, id, common.ErrNotFound)
	}
	if err != nil {
		return "", common.NewStorageError("get entity label", err)
	}
	return entity.Label, nil
}

// Upsert inserts or relabels directory entries.
func (r *EntityRepository) Upsert(ctx context.Context, entities ...models.Entity) error {
	if len(entities) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "kind"}, {Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"label"}),
	}).Create(&entities).Error
	return common.NewStorageError("upsert entities", err)
}
