package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/partnerhub/partnerhub-backend/pkg/enums"
)

// Partner is a participant of the partner program. TeamName is globally
// unique and write-once; StarLevel and TotalPoints are derived values written
// back by the points pipeline.
type Partner struct {
	ID          uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PartnerCode string              `gorm:"column:partner_code;uniqueIndex;not null"`
	UID         string              `gorm:"column:uid;not null"`
	Status      enums.PartnerStatus `gorm:"column:status;type:partner_status_enum;not null;default:active"`
	TeamName    *string             `gorm:"column:team_name;uniqueIndex"`
	StarLevel   int                 `gorm:"column:star_level;not null;default:0"`
	TotalPoints int64               `gorm:"column:total_points;not null;default:0"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
