package hierarchy

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/partnerhub/partnerhub-backend/pkg/db/models"
	"github.com/partnerhub/partnerhub-backend/pkg/enums"
	"github.com/partnerhub/partnerhub-backend/pkg/pagination"
)

// Repository manages persistence for the append-only hierarchy edge set.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, relation *models.PartnerRelation) error
	FindActiveParent(ctx context.Context, childID uuid.UUID, level enums.RelationLevel) (*models.PartnerRelation, error)
	DeactivateForChild(ctx context.Context, childID uuid.UUID) error
	ListDownlines(ctx context.Context, parentID uuid.UUID, level enums.RelationLevel, params pagination.Params) ([]models.PartnerRelation, error)
	CountDownlines(ctx context.Context, parentID uuid.UUID, level enums.RelationLevel) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a hierarchy repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, relation *models.PartnerRelation) error {
	return r.db.WithContext(ctx).Create(relation).Error
}

func (r *repository) FindActiveParent(ctx context.Context, childID uuid.UUID, level enums.RelationLevel) (*models.PartnerRelation, error) {
	var relation models.PartnerRelation
	err := r.db.WithContext(ctx).
		Where("child_partner_id = ? AND level = ? AND is_active = ?", childID, level, true).
		First(&relation).Error
	if err != nil {
		return nil, err
	}
	return &relation, nil
}

func (r *repository) DeactivateForChild(ctx context.Context, childID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.PartnerRelation{}).
		Where("child_partner_id = ? AND is_active = ?", childID, true).
		Update("is_active", false).Error
}

func (r *repository) ListDownlines(ctx context.Context, parentID uuid.UUID, level enums.RelationLevel, params pagination.Params) ([]models.PartnerRelation, error) {
	params = pagination.Normalize(params)
	var relations []models.PartnerRelation
	err := r.db.WithContext(ctx).
		Where("parent_partner_id = ? AND level = ? AND is_active = ?", parentID, level, true).
		Order("bind_time DESC").
		Limit(params.Limit).
		Offset(params.Offset).
		Find(&relations).Error
	if err != nil {
		return nil, err
	}
	return relations, nil
}

func (r *repository) CountDownlines(ctx context.Context, parentID uuid.UUID, level enums.RelationLevel) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.PartnerRelation{}).
		Where("parent_partner_id = ? AND level = ? AND is_active = ?", parentID, level, true).
		Count(&count).Error
	return count, err
}
