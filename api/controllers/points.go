package controllers

import (
	"net/http"

	"github.com/partnerhub/partnerhub-backend/api/responses"
	"github.com/partnerhub/partnerhub-backend/internal/points"
	pkgerrors "github.com/partnerhub/partnerhub-backend/pkg/errors"
	"github.com/partnerhub/partnerhub-backend/pkg/logger"
)

func PointsTotal(svc points.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "points service unavailable"))
			return
		}

		id, err := partnerIDFromPath(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		total, err := svc.GetTotalPoints(ctx, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"partner_id": id, "total_points": total})
	}
}

func PointsDetail(svc points.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "points service unavailable"))
			return
		}

		id, err := partnerIDFromPath(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		items, err := svc.GetPointsDetail(ctx, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"partner_id": id, "items": items})
	}
}

func PointsMonthly(svc points.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "points service unavailable"))
			return
		}

		id, err := partnerIDFromPath(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		monthly, err := svc.GetMonthlyPoints(ctx, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"partner_id": id, "monthly_points": monthly})
	}
}
