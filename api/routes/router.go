package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/partnerhub/partnerhub-backend/api/controllers"
	"github.com/partnerhub/partnerhub-backend/api/middleware"
	"github.com/partnerhub/partnerhub-backend/internal/hierarchy"
	"github.com/partnerhub/partnerhub-backend/internal/partners"
	"github.com/partnerhub/partnerhub-backend/internal/points"
	"github.com/partnerhub/partnerhub-backend/pkg/config"
	"github.com/partnerhub/partnerhub-backend/pkg/db"
	"github.com/partnerhub/partnerhub-backend/pkg/logger"
	"github.com/partnerhub/partnerhub-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	partnerService partners.Service,
	hierarchyService hierarchy.Service,
	pointsService points.Service,
	taskEngine controllers.TaskEngine,
	metricsGatherer prometheus.Gatherer,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	var redisP redis.Pinger
	if redisClient != nil {
		redisP = redisClient
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	if metricsGatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(metricsGatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/partners", func(r chi.Router) {
			r.Post("/join", controllers.PartnerJoin(partnerService, logg))
			r.Route("/{partnerID}", func(r chi.Router) {
				r.Get("/", controllers.PartnerGet(partnerService, logg))
				r.Get("/uplink", controllers.PartnerUplink(hierarchyService, logg))
				r.Get("/downlines", controllers.PartnerDownlines(hierarchyService, cfg.Hierarchy.DownlinePageSize, logg))
				r.Put("/team-name", controllers.PartnerSetTeamName(partnerService, logg))
				r.Route("/points", func(r chi.Router) {
					r.Get("/total", controllers.PointsTotal(pointsService, logg))
					r.Get("/detail", controllers.PointsDetail(pointsService, logg))
					r.Get("/monthly", controllers.PointsMonthly(pointsService, logg))
				})
			})
		})
		r.Route("/tasks", func(r chi.Router) {
			r.Post("/notify", controllers.TaskNotify(taskEngine, partnerService, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Get("/ping", controllers.AdminPing())
		r.Route("/partners/{partnerID}", func(r chi.Router) {
			r.Post("/correct-uplink", controllers.AdminCorrectUplink(hierarchyService, logg))
			r.Post("/freeze", controllers.AdminFreezePartner(partnerService, logg))
			r.Post("/unfreeze", controllers.AdminUnfreezePartner(partnerService, logg))
		})
		r.Post("/tasks/review", controllers.TaskReview(taskEngine, partnerService, logg))
		r.Post("/points/flush-cache", controllers.AdminFlushPointsCache(pointsService, logg))
	})

	return r
}
