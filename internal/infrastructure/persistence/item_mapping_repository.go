package persistence

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/beataims/backend/internal/domain/shared"
	"github.com/beataims/backend/internal/domain/sync"
)

// GormMappingRepository implements sync.MappingRepository using GORM
type GormMappingRepository struct {
	db *gorm.DB
}

// NewGormMappingRepository creates a new GormMappingRepository
func NewGormMappingRepository(db *gorm.DB) *GormMappingRepository {
	return &GormMappingRepository{db: db}
}

// FindSynced lists all mappings that mirror inventory products
func (r *GormMappingRepository) FindSynced(ctx context.Context) ([]sync.ItemMapping, error) {
	var mappings []sync.ItemMapping
	if err := r.db.WithContext(ctx).
		Where("source = ?", sync.MappingSourceInventory).
		Order("external_id ASC").
		Find(&mappings).Error; err != nil {
		return nil, err
	}
	return mappings, nil
}

// FindByExternalID finds the mapping that mirrors an inventory product
func (r *GormMappingRepository) FindByExternalID(ctx context.Context, externalID uint) (*sync.ItemMapping, error) {
	var mapping sync.ItemMapping
	if err := r.db.WithContext(ctx).
		Where("source = ? AND external_id = ?", sync.MappingSourceInventory, externalID).
		First(&mapping).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &mapping, nil
}

// Save creates or updates a mapping. Conflicts on (source, external_id)
// overwrite the mirrored fields with the incoming snapshot.
func (r *GormMappingRepository) Save(ctx context.Context, mapping *sync.ItemMapping) error {
	if mapping.ID != 0 {
		return r.db.WithContext(ctx).Save(mapping).Error
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "source"}, {Name: "external_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"name":       mapping.Name,
			"quantity":   mapping.Quantity,
			"threshold":  mapping.Threshold,
			"status":     mapping.Status,
			"updated_at": time.Now(),
		}),
	}).Create(mapping).Error
}

// DeleteByExternalIDs prunes mappings whose inventory products are gone
func (r *GormMappingRepository) DeleteByExternalIDs(ctx context.Context, externalIDs []uint) (int64, error) {
	if len(externalIDs) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Where("source = ? AND external_id IN ?", sync.MappingSourceInventory, externalIDs).
		Delete(&sync.ItemMapping{})
	return result.RowsAffected, result.Error
}
