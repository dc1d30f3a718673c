package tasks

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Trigger event types consumed by the engine.
const (
	EventTypeRegisterSelf         = "partner.register_self"
	EventTypeRegisterDownlineL1   = "partner.register_downline_l1"
	EventTypeTaskNotify           = "partner.task_notify"
	EventTypeExternalTaskApproved = "partner.external_task_approved"
)

// Event is the normalized domain event fed into the engine. The partner
// identified by PartnerID is the actor: the one who receives points when a
// completion is recorded.
type Event struct {
	Type             string
	TaskCode         string
	PartnerID        uuid.UUID
	PartnerCode      string
	UID              string
	RelatedPartnerID *uuid.UUID
	RelatedUID       *string
	SubmissionID     string
	PointsReward     *int64
	Timestamp        time.Time
	BusinessParams   map[string]any
}

// EventID derives the deterministic idempotency key for the event. Identical
// logical events (retried deliveries included) must map to the same key so
// the ledger's unique index collapses them into one completion row.
func (e Event) EventID() string {
	ts := e.Timestamp.UTC().Unix()
	switch {
	case e.SubmissionID != "":
		return fmt.Sprintf("%s_%d", e.SubmissionID, ts)
	case e.RelatedPartnerID != nil:
		return fmt.Sprintf("%s_%s_%d", e.PartnerID, *e.RelatedPartnerID, ts)
	default:
		return fmt.Sprintf("%s_%d", e.PartnerID, ts)
	}
}
