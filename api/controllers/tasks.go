package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/partnerhub/partnerhub-backend/api/responses"
	"github.com/partnerhub/partnerhub-backend/api/validators"
	"github.com/partnerhub/partnerhub-backend/internal/partners"
	"github.com/partnerhub/partnerhub-backend/internal/tasks"
	"github.com/partnerhub/partnerhub-backend/pkg/db/models"
	"github.com/partnerhub/partnerhub-backend/pkg/enums"
	pkgerrors "github.com/partnerhub/partnerhub-backend/pkg/errors"
	"github.com/partnerhub/partnerhub-backend/pkg/logger"
)

type taskNotifyPayload struct {
	TaskCode       string         `json:"task_code" validate:"required"`
	PartnerID      string         `json:"partner_id" validate:"required,uuid"`
	BusinessParams map[string]any `json:"business_params,omitempty"`
	OccurredAt     *time.Time     `json:"occurred_at,omitempty"`
}

type taskReviewPayload struct {
	SubmissionID   string         `json:"submission_id" validate:"required"`
	PartnerID      string         `json:"partner_id" validate:"required,uuid"`
	PointsReward   *int64         `json:"points_reward,omitempty" validate:"omitempty,min=0"`
	BusinessParams map[string]any `json:"business_params,omitempty"`
	OccurredAt     *time.Time     `json:"occurred_at,omitempty"`
}

// TaskEngine is the dispatch surface the task controllers drive.
type TaskEngine interface {
	ProcessNotifiedActionEvent(ctx context.Context, event tasks.Event) error
	ProcessReviewedTaskEvent(ctx context.Context, event tasks.Event) (uuid.UUID, error)
}

// resolveEarningPartner loads the acting partner and rejects frozen accounts,
// which cannot earn points.
func resolveEarningPartner(ctx context.Context, partnerSvc partners.Service, rawID string) (*models.Partner, error) {
	partnerID, err := uuid.Parse(rawID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid partner id")
	}
	partner, err := partnerSvc.GetByID(ctx, partnerID)
	if err != nil {
		return nil, err
	}
	if partner.Status == enums.PartnerStatusFrozen {
		return nil, pkgerrors.New(pkgerrors.CodePartnerFrozen, "frozen partners cannot earn points")
	}
	return partner, nil
}

// TaskNotify records a partner action against one named task code.
func TaskNotify(engine TaskEngine, partnerSvc partners.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if engine == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "task engine unavailable"))
			return
		}

		var payload taskNotifyPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		partner, err := resolveEarningPartner(ctx, partnerSvc, payload.PartnerID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		occurredAt := time.Now().UTC()
		if payload.OccurredAt != nil {
			occurredAt = payload.OccurredAt.UTC()
		}

		event := tasks.Event{
			Type:           tasks.EventTypeTaskNotify,
			TaskCode:       payload.TaskCode,
			PartnerID:      partner.ID,
			PartnerCode:    partner.PartnerCode,
			UID:            partner.UID,
			Timestamp:      occurredAt,
			BusinessParams: payload.BusinessParams,
		}
		if err := engine.ProcessNotifiedActionEvent(ctx, event); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, map[string]string{"status": "recorded"})
	}
}

// TaskReview records an approved external task submission and returns the
// resulting completion id.
func TaskReview(engine TaskEngine, partnerSvc partners.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if engine == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "task engine unavailable"))
			return
		}

		var payload taskReviewPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		partner, err := resolveEarningPartner(ctx, partnerSvc, payload.PartnerID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		occurredAt := time.Now().UTC()
		if payload.OccurredAt != nil {
			occurredAt = payload.OccurredAt.UTC()
		}

		event := tasks.Event{
			Type:           tasks.EventTypeExternalTaskApproved,
			PartnerID:      partner.ID,
			PartnerCode:    partner.PartnerCode,
			UID:            partner.UID,
			SubmissionID:   payload.SubmissionID,
			PointsReward:   payload.PointsReward,
			Timestamp:      occurredAt,
			BusinessParams: payload.BusinessParams,
		}
		completionID, err := engine.ProcessReviewedTaskEvent(ctx, event)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"completion_id": completionID})
	}
}
