package hierarchy

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/partnerhub/partnerhub-backend/pkg/logger"
)

// AuditEntry captures one uplink correction for the operations trail.
type AuditEntry struct {
	ChildPartnerID uuid.UUID
	OldParentID    *uuid.UUID
	NewParentID    uuid.UUID
	Reason         string
	OccurredAt     time.Time
}

// AuditRecorder receives uplink correction records. The default recorder
// writes them to the structured log; a table-backed recorder can replace it
// without touching the service.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry) error
}

type logAuditRecorder struct {
	logg *logger.Logger
}

// NewLogAuditRecorder returns an AuditRecorder backed by the structured log.
func NewLogAuditRecorder(logg *logger.Logger) AuditRecorder {
	return &logAuditRecorder{logg: logg}
}

func (r *logAuditRecorder) Record(ctx context.Context, entry AuditEntry) error {
	fields := map[string]any{
		"child_partner_id": entry.ChildPartnerID.String(),
		"new_parent_id":    entry.NewParentID.String(),
		"reason":           entry.Reason,
		"occurred_at":      entry.OccurredAt.UTC().Format(time.RFC3339),
	}
	if entry.OldParentID != nil {
		fields["old_parent_id"] = entry.OldParentID.String()
	}
	ctx = r.logg.WithFields(ctx, fields)
	r.logg.Info(ctx, "uplink corrected")
	return nil
}
