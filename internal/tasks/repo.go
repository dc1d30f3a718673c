package tasks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/partnerhub/partnerhub-backend/pkg/db/models"
	"github.com/partnerhub/partnerhub-backend/pkg/enums"
)

// Repository manages persistence for the append-only completion ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, entry *models.TaskCompletion) error
	FindByEventKey(ctx context.Context, taskCode string, actorID uuid.UUID, eventID string) (*models.TaskCompletion, error)
	CountCompleted(ctx context.Context, taskCode string, actorID uuid.UUID) (int64, error)
	HasRelationCompletion(ctx context.Context, taskCode string, actorID, relatedID uuid.UUID) (bool, error)
	ListCompleted(ctx context.Context, actorID uuid.UUID) ([]models.TaskCompletion, error)
	ListCompletedSince(ctx context.Context, actorID uuid.UUID, since time.Time) ([]models.TaskCompletion, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a completion ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, entry *models.TaskCompletion) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) FindByEventKey(ctx context.Context, taskCode string, actorID uuid.UUID, eventID string) (*models.TaskCompletion, error) {
	var entry models.TaskCompletion
	err := r.db.WithContext(ctx).
		Where("task_code = ? AND actor_partner_id = ? AND event_id = ?", taskCode, actorID, eventID).
		First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *repository) CountCompleted(ctx context.Context, taskCode string, actorID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.TaskCompletion{}).
		Where("task_code = ? AND actor_partner_id = ? AND status = ?", taskCode, actorID, enums.CompletionStatusCompleted).
		Count(&count).Error
	return count, err
}

func (r *repository) HasRelationCompletion(ctx context.Context, taskCode string, actorID, relatedID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.TaskCompletion{}).
		Where("task_code = ? AND actor_partner_id = ? AND related_partner_id = ? AND status = ?",
			taskCode, actorID, relatedID, enums.CompletionStatusCompleted).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) ListCompleted(ctx context.Context, actorID uuid.UUID) ([]models.TaskCompletion, error) {
	var entries []models.TaskCompletion
	err := r.db.WithContext(ctx).
		Where("actor_partner_id = ? AND status = ?", actorID, enums.CompletionStatusCompleted).
		Order("created_at DESC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) ListCompletedSince(ctx context.Context, actorID uuid.UUID, since time.Time) ([]models.TaskCompletion, error) {
	var entries []models.TaskCompletion
	err := r.db.WithContext(ctx).
		Where("actor_partner_id = ? AND status = ? AND created_at >= ?", actorID, enums.CompletionStatusCompleted, since).
		Order("created_at DESC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
