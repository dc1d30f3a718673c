package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/partnerhub/partnerhub-backend/api/responses"
	"github.com/partnerhub/partnerhub-backend/api/validators"
	"github.com/partnerhub/partnerhub-backend/internal/hierarchy"
	"github.com/partnerhub/partnerhub-backend/internal/partners"
	"github.com/partnerhub/partnerhub-backend/internal/points"
	pkgerrors "github.com/partnerhub/partnerhub-backend/pkg/errors"
	"github.com/partnerhub/partnerhub-backend/pkg/logger"
)

type correctUplinkPayload struct {
	NewParentID string `json:"new_parent_id" validate:"required,uuid"`
	Reason      string `json:"reason" validate:"required,min=4"`
}

// AdminCorrectUplink rebinds a partner under a new direct parent. The old
// edges are kept as inactive history.
func AdminCorrectUplink(svc hierarchy.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "hierarchy service unavailable"))
			return
		}

		childID, err := partnerIDFromPath(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var payload correctUplinkPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		newParentID, err := uuid.Parse(payload.NewParentID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid parent id"))
			return
		}

		if err := svc.CorrectUplink(ctx, childID, newParentID, payload.Reason); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "corrected"})
	}
}

func AdminFreezePartner(svc partners.Service, logg *logger.Logger) http.HandlerFunc {
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
		if err := svc.Freeze(ctx, id); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "frozen"})
	}
}

func AdminUnfreezePartner(svc partners.Service, logg *logger.Logger) http.HandlerFunc {
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
		if err := svc.Unfreeze(ctx, id); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "active"})
	}
}

// AdminFlushPointsCache drops every cached point aggregate, forcing the next
// reads to replay the ledger.
func AdminFlushPointsCache(svc points.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "points service unavailable"))
			return
		}

		if err := svc.FlushAll(ctx); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cache flush failed"))
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "flushed"})
	}
}
