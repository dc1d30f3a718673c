package points

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/partnerhub/partnerhub-backend/internal/tasks"
	"github.com/partnerhub/partnerhub-backend/pkg/db/models"
	"github.com/partnerhub/partnerhub-backend/pkg/enums"
	"github.com/partnerhub/partnerhub-backend/pkg/logger"
	pkgredis "github.com/partnerhub/partnerhub-backend/pkg/redis"
)

// completionsRepository is the slice of the ledger repository this service reads.
type completionsRepository interface {
	ListCompleted(ctx context.Context, actorID uuid.UUID) ([]models.TaskCompletion, error)
	ListCompletedSince(ctx context.Context, actorID uuid.UUID, since time.Time) ([]models.TaskCompletion, error)
}

// Cache is the point-aggregate cache surface, satisfied by pkg/redis.Client.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	DelPoints(ctx context.Context, actorID string) error
	FlushPoints(ctx context.Context) error
	PointsKey(kind, actorID string) string
}

// DetailItem is one completion with its resolved point value.
type DetailItem struct {
	TaskCode       string          `json:"task_code"`
	TaskType       enums.TaskType  `json:"task_type"`
	Points         int64           `json:"points"`
	BusinessParams json.RawMessage `json:"business_params,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Service computes point aggregates from the completion ledger. The ledger
// stores facts, not balances; every read derives points by replaying each
// entry through its task's rule, with a TTL cache in front.
type Service interface {
	GetTotalPoints(ctx context.Context, actorID uuid.UUID) (int64, error)
	GetPointsDetail(ctx context.Context, actorID uuid.UUID) ([]DetailItem, error)
	GetMonthlyPoints(ctx context.Context, actorID uuid.UUID) (int64, error)
	Invalidate(ctx context.Context, actorID uuid.UUID) error
	FlushAll(ctx context.Context) error
}

type service struct {
	repo      completionsRepository
	registry  *tasks.Registry
	evaluator *tasks.Evaluator
	cache     Cache
	cacheTTL  time.Duration
	logg      *logger.Logger
	nowFn     func() time.Time
}

// NewService builds the points read service. Cache may be nil, which
// degrades every read to a ledger replay.
func NewService(repo completionsRepository, registry *tasks.Registry, cache Cache, logg *logger.Logger, cacheTTL time.Duration) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("completions repository is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("task registry is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &service{
		repo:      repo,
		registry:  registry,
		evaluator: tasks.NewEvaluator(logg),
		cache:     cache,
		cacheTTL:  cacheTTL,
		logg:      logg,
		nowFn:     time.Now,
	}, nil
}

func (s *service) GetTotalPoints(ctx context.Context, actorID uuid.UUID) (int64, error) {
	ctx = s.logg.WithPartnerID(ctx, actorID.String())

	if cached, ok := s.cachedInt(ctx, pkgredis.PointsKindTotal, actorID); ok {
		return cached, nil
	}

	entries, err := s.repo.ListCompleted(ctx, actorID)
	if err != nil {
		return 0, fmt.Errorf("listing completions: %w", err)
	}
	var total int64
	for _, entry := range entries {
		total += s.entryPoints(ctx, entry)
	}

	s.storeInt(ctx, pkgredis.PointsKindTotal, actorID, total)
	return total, nil
}

func (s *service) GetPointsDetail(ctx context.Context, actorID uuid.UUID) ([]DetailItem, error) {
	ctx = s.logg.WithPartnerID(ctx, actorID.String())

	if s.cache != nil {
		key := s.cache.PointsKey(pkgredis.PointsKindDetail, actorID.String())
		raw, err := s.cache.Get(ctx, key)
		if err == nil {
			var items []DetailItem
			if unmarshalErr := json.Unmarshal([]byte(raw), &items); unmarshalErr == nil {
				return items, nil
			}
			s.logg.Warn(ctx, "discarding malformed cached points detail")
		} else if !pkgredis.IsMiss(err) {
			s.logg.Warn(ctx, "points detail cache read failed, falling back to ledger")
		}
	}

	entries, err := s.repo.ListCompleted(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("listing completions: %w", err)
	}
	items := make([]DetailItem, 0, len(entries))
	for _, entry := range entries {
		taskType := enums.TaskType("")
		if cfg, ok := s.registry.ByCode(entry.TaskCode); ok {
			taskType = cfg.TaskType
		}
		items = append(items, DetailItem{
			TaskCode:       entry.TaskCode,
			TaskType:       taskType,
			Points:         s.entryPoints(ctx, entry),
			BusinessParams: entry.BusinessParams,
			CreatedAt:      entry.CreatedAt,
		})
	}

	if s.cache != nil {
		if encoded, err := json.Marshal(items); err == nil {
			key := s.cache.PointsKey(pkgredis.PointsKindDetail, actorID.String())
			if err := s.cache.Set(ctx, key, string(encoded), s.cacheTTL); err != nil {
				s.logg.Warn(ctx, "failed to cache points detail")
			}
		}
	}
	return items, nil
}

// GetMonthlyPoints sums the actor's earnings since the first of the current
// month. Only positive values count toward the monthly figure.
func (s *service) GetMonthlyPoints(ctx context.Context, actorID uuid.UUID) (int64, error) {
	ctx = s.logg.WithPartnerID(ctx, actorID.String())

	if cached, ok := s.cachedInt(ctx, pkgredis.PointsKindMonthly, actorID); ok {
		return cached, nil
	}

	now := s.nowFn().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	entries, err := s.repo.ListCompletedSince(ctx, actorID, monthStart)
	if err != nil {
		return 0, fmt.Errorf("listing completions since %s: %w", monthStart.Format("2006-01-02"), err)
	}
	var total int64
	for _, entry := range entries {
		if points := s.entryPoints(ctx, entry); points > 0 {
			total += points
		}
	}

	s.storeInt(ctx, pkgredis.PointsKindMonthly, actorID, total)
	return total, nil
}

// Invalidate drops every cached aggregate for the actor. The task engine
// calls this after each ledger write.
func (s *service) Invalidate(ctx context.Context, actorID uuid.UUID) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.DelPoints(ctx, actorID.String())
}

func (s *service) FlushAll(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.FlushPoints(ctx)
}

func (s *service) entryPoints(ctx context.Context, entry models.TaskCompletion) int64 {
	cfg, ok := s.registry.ByCode(entry.TaskCode)
	if !ok {
		ctx = s.logg.WithTaskCode(ctx, entry.TaskCode)
		s.logg.Warn(ctx, "ledger entry references unknown task code, counting zero points")
		return 0
	}
	params, err := tasks.DecodeParams(entry.BusinessParams)
	if err != nil {
		ctx = s.logg.WithTaskCode(ctx, entry.TaskCode)
		s.logg.Warn(ctx, "ledger entry carries malformed business params, counting zero points")
		return 0
	}
	return s.evaluator.Calculate(ctx, cfg.Rule, params)
}

func (s *service) cachedInt(ctx context.Context, kind string, actorID uuid.UUID) (int64, bool) {
	if s.cache == nil {
		return 0, false
	}
	key := s.cache.PointsKey(kind, actorID.String())
	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsMiss(err) {
			s.logg.Warn(ctx, "points cache read failed, falling back to ledger")
		}
		return 0, false
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		s.logg.Warn(ctx, "discarding malformed cached point value")
		return 0, false
	}
	return value, true
}

func (s *service) storeInt(ctx context.Context, kind string, actorID uuid.UUID, value int64) {
	if s.cache == nil {
		return
	}
	key := s.cache.PointsKey(kind, actorID.String())
	if err := s.cache.Set(ctx, key, strconv.FormatInt(value, 10), s.cacheTTL); err != nil {
		s.logg.Warn(ctx, "failed to cache point aggregate")
	}
}
