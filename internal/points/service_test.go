package points

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/partnerhub/partnerhub-backend/internal/tasks"
	"github.com/partnerhub/partnerhub-backend/pkg/db/models"
	"github.com/partnerhub/partnerhub-backend/pkg/enums"
	"github.com/partnerhub/partnerhub-backend/pkg/logger"
)

type fakeRepo struct {
	entries []models.TaskCompletion
	err     error
}

func (f *fakeRepo) ListCompleted(_ context.Context, actorID uuid.UUID) ([]models.TaskCompletion, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []models.TaskCompletion
	for _, entry := range f.entries {
		if entry.ActorPartnerID == actorID {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListCompletedSince(_ context.Context, actorID uuid.UUID, since time.Time) ([]models.TaskCompletion, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []models.TaskCompletion
	for _, entry := range f.entries {
		if entry.ActorPartnerID == actorID && !entry.CreatedAt.Before(since) {
			out = append(out, entry)
		}
	}
	return out, nil
}

type fakeCache struct {
	store map[string]string
}

func newFakeCache() *fakeCache {
	return &fakeCache{store: map[string]string{}}
}

func (f *fakeCache) Get(_ context.Context, key string) (string, error) {
	value, ok := f.store[key]
	if !ok {
		return "", redis.Nil
	}
	return value, nil
}

func (f *fakeCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	f.store[key] = fmt.Sprint(value)
	return nil
}

func (f *fakeCache) DelPoints(_ context.Context, actorID string) error {
	for _, kind := range []string{"total", "detail", "monthly"} {
		delete(f.store, f.PointsKey(kind, actorID))
	}
	return nil
}

func (f *fakeCache) FlushPoints(_ context.Context) error {
	f.store = map[string]string{}
	return nil
}

func (f *fakeCache) PointsKey(kind, actorID string) string {
	return fmt.Sprintf("ph:points:%s:%s", kind, actorID)
}

func completion(actorID uuid.UUID, taskCode string, createdAt time.Time, params map[string]any) models.TaskCompletion {
	var raw json.RawMessage
	if params != nil {
		encoded, err := json.Marshal(params)
		if err != nil {
			panic(err)
		}
		raw = encoded
	}
	return models.TaskCompletion{
		ID:             uuid.New(),
		TaskCode:       taskCode,
		ActorPartnerID: actorID,
		ActorUID:       "uid-" + actorID.String()[:8],
		EventType:      "test.event",
		EventID:        uuid.New().String(),
		BusinessParams: raw,
		Status:         enums.CompletionStatusCompleted,
		CreatedAt:      createdAt,
	}
}

func newTestService(t *testing.T, repo *fakeRepo, cache Cache) Service {
	t.Helper()

	registry, err := tasks.NewRegistry(tasks.DefaultConfigs())
	if err != nil {
		t.Fatalf("building registry: %v", err)
	}
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	svc, err := NewService(repo, registry, cache, logg, 5*time.Minute)
	if err != nil {
		t.Fatalf("building service: %v", err)
	}
	return svc
}

func TestGetTotalPointsReplaysLedger(t *testing.T) {
	actorID := uuid.New()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	repo := &fakeRepo{entries: []models.TaskCompletion{
		completion(actorID, tasks.TaskCodeRegister, now, nil),
		completion(actorID, tasks.TaskCodeGameSpend, now, map[string]any{tasks.ParamAmount: 99}),
	}}
	svc := newTestService(t, repo, newFakeCache())

	total, err := svc.GetTotalPoints(context.Background(), actorID)
	if err != nil {
		t.Fatalf("getting total: %v", err)
	}
	if total != 349 {
		t.Fatalf("expected 300+49=349, got %d", total)
	}
}

func TestGetTotalPointsServesFromCacheUntilInvalidated(t *testing.T) {
	actorID := uuid.New()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	repo := &fakeRepo{entries: []models.TaskCompletion{
		completion(actorID, tasks.TaskCodeRegister, now, nil),
	}}
	svc := newTestService(t, repo, newFakeCache())

	total, err := svc.GetTotalPoints(context.Background(), actorID)
	if err != nil {
		t.Fatalf("getting total: %v", err)
	}
	if total != 300 {
		t.Fatalf("expected 300, got %d", total)
	}

	// New ledger entry is invisible until the cache is invalidated.
	repo.entries = append(repo.entries, completion(actorID, tasks.TaskCodeGameDaily, now, nil))
	total, err = svc.GetTotalPoints(context.Background(), actorID)
	if err != nil {
		t.Fatalf("getting cached total: %v", err)
	}
	if total != 300 {
		t.Fatalf("expected cached 300, got %d", total)
	}

	if err := svc.Invalidate(context.Background(), actorID); err != nil {
		t.Fatalf("invalidating: %v", err)
	}
	total, err = svc.GetTotalPoints(context.Background(), actorID)
	if err != nil {
		t.Fatalf("getting refreshed total: %v", err)
	}
	if total != 350 {
		t.Fatalf("expected 300+50=350 after invalidation, got %d", total)
	}
}

func TestGetMonthlyPointsCountsCurrentMonthOnly(t *testing.T) {
	actorID := uuid.New()
	repo := &fakeRepo{entries: []models.TaskCompletion{
		completion(actorID, tasks.TaskCodeRegister, time.Date(2026, 2, 20, 12, 0, 0, 0, time.UTC), nil),
		completion(actorID, tasks.TaskCodeGameDaily, time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC), nil),
		completion(actorID, tasks.TaskCodeGameSpend, time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC), map[string]any{tasks.ParamAmount: 10}),
	}}
	svc := newTestService(t, repo, nil)
	svc.(*service).nowFn = func() time.Time {
		return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	}

	monthly, err := svc.GetMonthlyPoints(context.Background(), actorID)
	if err != nil {
		t.Fatalf("getting monthly: %v", err)
	}
	if monthly != 55 {
		t.Fatalf("expected 50+5=55 for March, got %d", monthly)
	}
}

func TestGetPointsDetail(t *testing.T) {
	actorID := uuid.New()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	repo := &fakeRepo{entries: []models.TaskCompletion{
		completion(actorID, tasks.TaskCodeRegister, now, nil),
		completion(actorID, "RETIRED_TASK_V1", now, nil),
	}}
	svc := newTestService(t, repo, nil)

	items, err := svc.GetPointsDetail(context.Background(), actorID)
	if err != nil {
		t.Fatalf("getting detail: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Points != 300 || items[0].TaskType != enums.TaskTypeRegister {
		t.Fatalf("unexpected first item: %+v", items[0])
	}
	// Entries for codes no longer in the registry stay visible at zero points.
	if items[1].Points != 0 {
		t.Fatalf("expected 0 points for retired code, got %d", items[1].Points)
	}
}

func TestGetTotalPointsHonorsStoredOverride(t *testing.T) {
	actorID := uuid.New()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	repo := &fakeRepo{entries: []models.TaskCompletion{
		completion(actorID, tasks.TaskCodeExternalTask, now, map[string]any{tasks.ParamPointsReward: 777}),
	}}
	svc := newTestService(t, repo, nil)

	total, err := svc.GetTotalPoints(context.Background(), actorID)
	if err != nil {
		t.Fatalf("getting total: %v", err)
	}
	if total != 777 {
		t.Fatalf("expected override 777, got %d", total)
	}
}
