package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/partnerhub/partnerhub-backend/pkg/enums"
)

// PartnerRelation is one directed parent->child edge of the invitation
// hierarchy. Corrections never mutate old rows: superseded edges are flipped
// to is_active=false and replacements are appended. A partial unique index on
// (child_partner_id, level) WHERE is_active guarantees at most one active
// parent per child and level.
type PartnerRelation struct {
	ID              int64               `gorm:"column:id;primaryKey;autoIncrement"`
	ParentPartnerID uuid.UUID           `gorm:"column:parent_partner_id;type:uuid;not null;index"`
	ChildPartnerID  uuid.UUID           `gorm:"column:child_partner_id;type:uuid;not null;index:idx_partner_relations_child"`
	Level           enums.RelationLevel `gorm:"column:level;not null"`
	SourceChannelID *string             `gorm:"column:source_channel_id"`
	IsActive        bool                `gorm:"column:is_active;not null;default:true"`
	BindTime        time.Time           `gorm:"column:bind_time;not null"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
