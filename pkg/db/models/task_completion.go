package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/partnerhub/partnerhub-backend/pkg/enums"
)

// TaskCompletion records an immutable task completion fact for one actor.
// The unique index on (task_code, actor_partner_id, event_id) is the sole
// idempotency guard: retried deliveries of the same logical event derive the
// same event_id and collapse into one row.
type TaskCompletion struct {
	ID               uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TaskCode         string                 `gorm:"column:task_code;not null;uniqueIndex:idx_task_completions_event_key,priority:1"`
	ActorPartnerID   uuid.UUID              `gorm:"column:actor_partner_id;type:uuid;not null;uniqueIndex:idx_task_completions_event_key,priority:2;index:idx_task_completions_actor_status,priority:1"`
	ActorUID         string                 `gorm:"column:actor_uid;not null"`
	RelatedPartnerID *uuid.UUID             `gorm:"column:related_partner_id;type:uuid"`
	RelatedUID       *string                `gorm:"column:related_uid"`
	EventType        string                 `gorm:"column:event_type;not null"`
	EventID          string                 `gorm:"column:event_id;not null;uniqueIndex:idx_task_completions_event_key,priority:3"`
	BusinessParams   json.RawMessage        `gorm:"column:business_params;type:jsonb"`
	Status           enums.CompletionStatus `gorm:"column:status;type:completion_status_enum;not null;index:idx_task_completions_actor_status,priority:2"`
	CreatedAt        time.Time              `gorm:"column:created_at;autoCreateTime"`
}
