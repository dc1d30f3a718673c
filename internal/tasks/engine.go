package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/partnerhub/partnerhub-backend/pkg/db"
	"github.com/partnerhub/partnerhub-backend/pkg/db/models"
	"github.com/partnerhub/partnerhub-backend/pkg/enums"
	pkgerrors "github.com/partnerhub/partnerhub-backend/pkg/errors"
	"github.com/partnerhub/partnerhub-backend/pkg/logger"
	"github.com/partnerhub/partnerhub-backend/pkg/metrics"
)

// CacheInvalidator drops cached point aggregates for one actor after the
// ledger changed. A nil invalidator disables invalidation.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, actorID uuid.UUID) error
}

// Engine routes incoming events through the task configs matched by trigger
// type, validates them with the per-type handlers, and writes completion
// entries. Every write path is idempotent on (task_code, actor, event_id).
type Engine struct {
	registry  *Registry
	handlers  map[enums.TaskType]Handler
	evaluator *Evaluator
	ledger    Repository
	cache     CacheInvalidator
	logg      *logger.Logger
	taskMet   *metrics.TaskMetrics
}

// NewEngine builds the task engine. Registry, ledger, and logger are
// required; cache and metrics may be nil.
func NewEngine(registry *Registry, ledger Repository, cache CacheInvalidator, logg *logger.Logger, taskMet *metrics.TaskMetrics) (*Engine, error) {
	if registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("ledger repository is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Engine{
		registry:  registry,
		handlers:  NewHandlers(ledger),
		evaluator: NewEvaluator(logg),
		ledger:    ledger,
		cache:     cache,
		logg:      logg,
		taskMet:   taskMet,
	}, nil
}

type outcome struct {
	entry           *models.TaskCompletion
	duplicate       bool
	rejectionReason string
}

// ProcessEvent fans the event out to every enabled config listening on its
// type. Configs fail independently: a hard error in one does not stop the
// others, and the combined error is returned at the end. Rejections and
// duplicates are logged, not errored.
func (e *Engine) ProcessEvent(ctx context.Context, event Event) error {
	start := time.Now()
	defer func() {
		e.taskMet.ObserveDispatch(event.Type, time.Since(start))
	}()

	ctx = e.logg.WithEventType(ctx, event.Type)
	ctx = e.logg.WithPartnerID(ctx, event.PartnerID.String())

	configs := e.registry.EnabledByTriggerEvent(event.Type)
	if len(configs) == 0 {
		e.logg.Info(ctx, "no enabled task configs for event type, skipping")
		return nil
	}

	var combined error
	for _, cfg := range configs {
		// A notify event names one task code; skip sibling configs that
		// share the trigger.
		if event.TaskCode != "" && event.TaskCode != cfg.TaskCode {
			continue
		}
		if _, err := e.processConfig(ctx, event, cfg); err != nil {
			combined = multierr.Append(combined, fmt.Errorf("task %s: %w", cfg.TaskCode, err))
		}
	}
	return combined
}

// ProcessNotifiedActionEvent handles a caller-submitted action notification
// for one named task code. Unlike ProcessEvent, rejections surface to the
// caller as validation errors so the API can report why nothing was awarded.
func (e *Engine) ProcessNotifiedActionEvent(ctx context.Context, event Event) error {
	if event.TaskCode == "" {
		return pkgerrors.New(pkgerrors.CodeTaskValidation, "task code is required")
	}
	cfg, ok := e.registry.ByCode(event.TaskCode)
	if !ok {
		return pkgerrors.New(pkgerrors.CodeTaskValidation, fmt.Sprintf("unknown task code %q", event.TaskCode))
	}
	if !cfg.Enabled {
		return pkgerrors.New(pkgerrors.CodeTaskValidation, fmt.Sprintf("task %s is disabled", event.TaskCode))
	}
	if cfg.TriggerEventType != event.Type {
		return pkgerrors.New(pkgerrors.CodeTaskValidation, fmt.Sprintf("task %s is not triggered by %s events", event.TaskCode, event.Type))
	}

	start := time.Now()
	defer func() {
		e.taskMet.ObserveDispatch(event.Type, time.Since(start))
	}()

	ctx = e.logg.WithEventType(ctx, event.Type)
	ctx = e.logg.WithPartnerID(ctx, event.PartnerID.String())

	out, err := e.processConfig(ctx, event, cfg)
	if err != nil {
		return err
	}
	if out.rejectionReason != "" {
		return pkgerrors.New(pkgerrors.CodeTaskValidation, out.rejectionReason)
	}
	return nil
}

// ProcessReviewedTaskEvent records an approved external submission and
// returns the completion id, whether newly written or found from an earlier
// delivery of the same submission.
func (e *Engine) ProcessReviewedTaskEvent(ctx context.Context, event Event) (uuid.UUID, error) {
	cfg, ok := e.registry.ByCode(TaskCodeExternalTask)
	if !ok || !cfg.Enabled {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeTaskValidation, "external task rewards are disabled")
	}

	start := time.Now()
	defer func() {
		e.taskMet.ObserveDispatch(event.Type, time.Since(start))
	}()

	ctx = e.logg.WithEventType(ctx, event.Type)
	ctx = e.logg.WithPartnerID(ctx, event.PartnerID.String())

	out, err := e.processConfig(ctx, event, cfg)
	if err != nil {
		return uuid.Nil, err
	}
	if out.rejectionReason != "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeTaskValidation, out.rejectionReason)
	}
	return out.entry.ID, nil
}

func (e *Engine) processConfig(ctx context.Context, event Event, cfg Config) (outcome, error) {
	ctx = e.logg.WithTaskCode(ctx, cfg.TaskCode)
	eventID := event.EventID()

	existing, err := e.ledger.FindByEventKey(ctx, cfg.TaskCode, event.PartnerID, eventID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return outcome{}, fmt.Errorf("checking ledger for event %s: %w", eventID, err)
	}
	if existing != nil {
		e.logg.Info(ctx, "event already processed, skipping")
		e.taskMet.IncDuplicate(cfg.TaskCode)
		return outcome{entry: existing, duplicate: true}, nil
	}

	handler, ok := e.handlers[cfg.TaskType]
	if !ok {
		return outcome{}, fmt.Errorf("no handler registered for task type %s", cfg.TaskType)
	}
	result, err := handler.Validate(ctx, event, cfg)
	if err != nil {
		return outcome{}, err
	}
	if !result.Valid {
		ctx = e.logg.WithField(ctx, "reason", result.Reason)
		e.logg.Info(ctx, "task event rejected")
		e.taskMet.IncRejection(cfg.TaskCode)
		return outcome{rejectionReason: result.Reason}, nil
	}

	var rawParams json.RawMessage
	if len(result.BusinessParams) > 0 {
		rawParams, err = json.Marshal(result.BusinessParams)
		if err != nil {
			return outcome{}, fmt.Errorf("encoding business params: %w", err)
		}
	}

	entry := &models.TaskCompletion{
		ID:               uuid.New(),
		TaskCode:         cfg.TaskCode,
		ActorPartnerID:   event.PartnerID,
		ActorUID:         event.UID,
		RelatedPartnerID: event.RelatedPartnerID,
		RelatedUID:       event.RelatedUID,
		EventType:        event.Type,
		EventID:          eventID,
		BusinessParams:   rawParams,
		Status:           enums.CompletionStatusCompleted,
	}

	if err := e.ledger.Create(ctx, entry); err != nil {
		if db.IsUniqueViolation(err) {
			// Lost a race with a concurrent delivery of the same event.
			winner, findErr := e.ledger.FindByEventKey(ctx, cfg.TaskCode, event.PartnerID, eventID)
			if findErr != nil {
				return outcome{}, fmt.Errorf("resolving concurrent completion for event %s: %w", eventID, findErr)
			}
			e.logg.Info(ctx, "event already processed concurrently, skipping")
			e.taskMet.IncDuplicate(cfg.TaskCode)
			return outcome{entry: winner, duplicate: true}, nil
		}
		return outcome{}, fmt.Errorf("writing completion for event %s: %w", eventID, err)
	}

	points := e.evaluator.Calculate(ctx, cfg.Rule, result.BusinessParams)
	ctx = e.logg.WithField(ctx, "points", points)
	e.logg.Info(ctx, "task completion recorded")
	e.taskMet.IncCompletion(cfg.TaskCode)

	if e.cache != nil {
		if err := e.cache.Invalidate(ctx, event.PartnerID); err != nil {
			// Stale cache self-heals on TTL expiry; the completion stands.
			e.logg.Warn(ctx, "failed to invalidate points cache")
		}
	}
	return outcome{entry: entry}, nil
}
