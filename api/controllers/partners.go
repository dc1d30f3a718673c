package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/partnerhub/partnerhub-backend/api/responses"
	"github.com/partnerhub/partnerhub-backend/api/validators"
	"github.com/partnerhub/partnerhub-backend/internal/hierarchy"
	"github.com/partnerhub/partnerhub-backend/internal/partners"
	"github.com/partnerhub/partnerhub-backend/pkg/db/models"
	"github.com/partnerhub/partnerhub-backend/pkg/enums"
	pkgerrors "github.com/partnerhub/partnerhub-backend/pkg/errors"
	"github.com/partnerhub/partnerhub-backend/pkg/logger"
	"github.com/partnerhub/partnerhub-backend/pkg/pagination"
)

type joinPayload struct {
	UID             string  `json:"uid" validate:"required"`
	InviterCode     *string `json:"inviter_code,omitempty"`
	SourceChannelID *string `json:"source_channel_id,omitempty"`
}

type teamNamePayload struct {
	TeamName string `json:"team_name" validate:"required,min=2,max=64"`
}

type partnerView struct {
	ID          uuid.UUID `json:"id"`
	PartnerCode string    `json:"partner_code"`
	UID         string    `json:"uid"`
	Status      string    `json:"status"`
	TeamName    *string   `json:"team_name,omitempty"`
	StarLevel   int       `json:"star_level"`
	CreatedAt   time.Time `json:"created_at"`
}

type relationView struct {
	ParentPartnerID uuid.UUID `json:"parent_partner_id"`
	ChildPartnerID  uuid.UUID `json:"child_partner_id"`
	Level           int       `json:"level"`
	SourceChannelID *string   `json:"source_channel_id,omitempty"`
	BindTime        time.Time `json:"bind_time"`
}

func toPartnerView(partner *models.Partner) partnerView {
	return partnerView{
		ID:          partner.ID,
		PartnerCode: partner.PartnerCode,
		UID:         partner.UID,
		Status:      string(partner.Status),
		TeamName:    partner.TeamName,
		StarLevel:   partner.StarLevel,
		CreatedAt:   partner.CreatedAt,
	}
}

func toRelationView(relation *models.PartnerRelation) *relationView {
	if relation == nil {
		return nil
	}
	return &relationView{
		ParentPartnerID: relation.ParentPartnerID,
		ChildPartnerID:  relation.ChildPartnerID,
		Level:           int(relation.Level),
		SourceChannelID: relation.SourceChannelID,
		BindTime:        relation.BindTime,
	}
}

func partnerIDFromPath(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "partnerID")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid partner id")
	}
	return id, nil
}

// PartnerJoin creates a partner profile and optionally binds it under the
// inviter named by inviter_code.
func PartnerJoin(svc partners.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "partner service unavailable"))
			return
		}

		var payload joinPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		partner, err := svc.Join(ctx, partners.JoinInput{
			UID:             payload.UID,
			InviterCode:     payload.InviterCode,
			SourceChannelID: payload.SourceChannelID,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toPartnerView(partner))
	}
}

func PartnerGet(svc partners.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "partner service unavailable"))
			return
		}

		id, err := partnerIDFromPath(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		partner, err := svc.GetByID(ctx, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, toPartnerView(partner))
	}
}

func PartnerUplink(svc hierarchy.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "hierarchy service unavailable"))
			return
		}

		id, err := partnerIDFromPath(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		uplink, err := svc.GetUplink(ctx, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"direct":      toRelationView(uplink.Direct),
			"grandparent": toRelationView(uplink.Grandparent),
		})
	}
}

func PartnerDownlines(svc hierarchy.Service, defaultPageSize int, logg *logger.Logger) http.HandlerFunc {
	if defaultPageSize <= 0 || defaultPageSize > pagination.MaxLimit {
		defaultPageSize = pagination.DefaultLimit
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "hierarchy service unavailable"))
			return
		}

		id, err := partnerIDFromPath(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		level, err := validators.ParseQueryInt(r, "level", int(enums.RelationLevelDirect), 1, 2)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", defaultPageSize, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		offset, err := validators.ParseQueryInt(r, "offset", 0, 0, 1<<30)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		page, err := svc.GetDownlines(ctx, id, enums.RelationLevel(level), pagination.Params{Limit: limit, Offset: offset})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		items := make([]relationView, 0, len(page.Relations))
		for i := range page.Relations {
			items = append(items, *toRelationView(&page.Relations[i]))
		}
		responses.WriteSuccess(w, map[string]any{
			"items":  items,
			"total":  page.Total,
			"limit":  page.Limit,
			"offset": page.Offset,
		})
	}
}

func PartnerSetTeamName(svc partners.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "partner service unavailable"))
			return
		}

		id, err := partnerIDFromPath(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var payload teamNamePayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if err := svc.SetTeamName(ctx, id, payload.TeamName); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "ok"})
	}
}
