package partners

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/partnerhub/partnerhub-backend/pkg/db/models"
	"github.com/partnerhub/partnerhub-backend/pkg/enums"
)

// Repository manages persistence for partner profiles.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, partner *models.Partner) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Partner, error)
	FindByPartnerCode(ctx context.Context, code string) (*models.Partner, error)
	FindByUID(ctx context.Context, uid string) (*models.Partner, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.PartnerStatus) error
	SetTeamName(ctx context.Context, id uuid.UUID, teamName string) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a partner repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, partner *models.Partner) error {
	return r.db.WithContext(ctx).Create(partner).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Partner, error) {
	var partner models.Partner
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&partner).Error; err != nil {
		return nil, err
	}
	return &partner, nil
}

func (r *repository) FindByPartnerCode(ctx context.Context, code string) (*models.Partner, error) {
	var partner models.Partner
	if err := r.db.WithContext(ctx).Where("partner_code = ?", code).First(&partner).Error; err != nil {
		return nil, err
	}
	return &partner, nil
}

func (r *repository) FindByUID(ctx context.Context, uid string) (*models.Partner, error) {
	var partner models.Partner
	if err := r.db.WithContext(ctx).Where("uid = ?", uid).First(&partner).Error; err != nil {
		return nil, err
	}
	return &partner, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.PartnerStatus) error {
	result := r.db.WithContext(ctx).
		Model(&models.Partner{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SetTeamName writes the team name only when it is still unset. Zero rows
// affected means the partner is missing or already named.
func (r *repository) SetTeamName(ctx context.Context, id uuid.UUID, teamName string) error {
	result := r.db.WithContext(ctx).
		Model(&models.Partner{}).
		Where("id = ? AND team_name IS NULL", id).
		Update("team_name", teamName)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
