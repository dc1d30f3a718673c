package controllers

import (
	"net/http"

	"github.com/partnerhub/partnerhub-backend/api/responses"
	"github.com/partnerhub/partnerhub-backend/pkg/config"
	"github.com/partnerhub/partnerhub-backend/pkg/db"
	pkgerrors "github.com/partnerhub/partnerhub-backend/pkg/errors"
	"github.com/partnerhub/partnerhub-backend/pkg/logger"
	"github.com/partnerhub/partnerhub-backend/pkg/redis"
)

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-PartnerHub-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings the backing stores. Redis is optional: the API serves
// reads without it, only slower.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, redisP redis.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		w.Header().Set("X-PartnerHub-Env", cfg.App.Env)

		if dbP == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeDependency, "database is not configured"))
			return
		}
		if err := dbP.Ping(ctx); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "database is unreachable"))
			return
		}

		cache := "ok"
		if redisP == nil {
			cache = "disabled"
		} else if err := redisP.Ping(ctx); err != nil {
			cache = "unreachable"
			if logg != nil {
				logg.Warn(ctx, "redis ping failed during readiness check")
			}
		}

		responses.WriteSuccess(w, map[string]string{"status": "ready", "cache": cache})
	}
}
