package tasks

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/partnerhub/partnerhub-backend/pkg/enums"
)

// ValidationResult is a handler's verdict on one (event, config) pair.
// Invalid results carry a caller-facing reason; they are expected outcomes,
// not errors.
type ValidationResult struct {
	Valid          bool
	Reason         string
	BusinessParams map[string]any
}

// Handler validates the business rules of one task category before the
// engine is allowed to write a completion.
type Handler interface {
	Validate(ctx context.Context, event Event, cfg Config) (ValidationResult, error)
}

func reject(reason string) ValidationResult {
	return ValidationResult{Valid: false, Reason: reason}
}

func accept(params map[string]any) ValidationResult {
	return ValidationResult{Valid: true, BusinessParams: params}
}

// checkCompletionLimit rejects once the actor reached the config's max count.
// A zero max means unlimited.
func checkCompletionLimit(ctx context.Context, ledger Repository, event Event, cfg Config) (*ValidationResult, error) {
	if cfg.MaxCompletionCount <= 0 {
		return nil, nil
	}
	count, err := ledger.CountCompleted(ctx, cfg.TaskCode, event.PartnerID)
	if err != nil {
		return nil, fmt.Errorf("counting completions for %s: %w", cfg.TaskCode, err)
	}
	if count >= int64(cfg.MaxCompletionCount) {
		res := reject(fmt.Sprintf("task %s completed %d of %d allowed times", cfg.TaskCode, count, cfg.MaxCompletionCount))
		return &res, nil
	}
	return nil, nil
}

type registerHandler struct {
	ledger Repository
}

func (h *registerHandler) Validate(ctx context.Context, event Event, cfg Config) (ValidationResult, error) {
	if event.PartnerID == uuid.Nil {
		return reject("actor partner id is required"), nil
	}
	if limited, err := checkCompletionLimit(ctx, h.ledger, event, cfg); err != nil {
		return ValidationResult{}, err
	} else if limited != nil {
		return *limited, nil
	}
	return accept(event.BusinessParams), nil
}

type inviteHandler struct {
	ledger Repository
}

func (h *inviteHandler) Validate(ctx context.Context, event Event, cfg Config) (ValidationResult, error) {
	if event.PartnerID == uuid.Nil {
		return reject("actor partner id is required"), nil
	}
	if event.RelatedPartnerID == nil || *event.RelatedPartnerID == uuid.Nil {
		return reject("invited partner id is required"), nil
	}
	if limited, err := checkCompletionLimit(ctx, h.ledger, event, cfg); err != nil {
		return ValidationResult{}, err
	} else if limited != nil {
		return *limited, nil
	}

	// One reward per invited partner, regardless of how often the
	// registration event is replayed with fresh timestamps.
	rewarded, err := h.ledger.HasRelationCompletion(ctx, cfg.TaskCode, event.PartnerID, *event.RelatedPartnerID)
	if err != nil {
		return ValidationResult{}, fmt.Errorf("checking invite uniqueness for %s: %w", cfg.TaskCode, err)
	}
	if rewarded {
		return reject(fmt.Sprintf("invite of partner %s already rewarded", *event.RelatedPartnerID)), nil
	}
	return accept(event.BusinessParams), nil
}

type gameActionHandler struct {
	ledger Repository
}

func (h *gameActionHandler) Validate(ctx context.Context, event Event, cfg Config) (ValidationResult, error) {
	if event.PartnerID == uuid.Nil {
		return reject("actor partner id is required"), nil
	}
	if event.TaskCode == "" {
		return reject("task code is required"), nil
	}
	if limited, err := checkCompletionLimit(ctx, h.ledger, event, cfg); err != nil {
		return ValidationResult{}, err
	} else if limited != nil {
		return *limited, nil
	}
	return accept(event.BusinessParams), nil
}

type externalTaskHandler struct {
	ledger Repository
}

func (h *externalTaskHandler) Validate(ctx context.Context, event Event, cfg Config) (ValidationResult, error) {
	if event.PartnerID == uuid.Nil {
		return reject("actor partner id is required"), nil
	}
	if event.SubmissionID == "" {
		return reject("submission id is required"), nil
	}
	if limited, err := checkCompletionLimit(ctx, h.ledger, event, cfg); err != nil {
		return ValidationResult{}, err
	} else if limited != nil {
		return *limited, nil
	}

	params := event.BusinessParams
	if event.PointsReward != nil {
		if params == nil {
			params = map[string]any{}
		}
		params[ParamPointsReward] = *event.PointsReward
	}
	return accept(params), nil
}

// NewHandlers wires the per-task-type dispatch table.
func NewHandlers(ledger Repository) map[enums.TaskType]Handler {
	return map[enums.TaskType]Handler{
		enums.TaskTypeRegister:      &registerHandler{ledger: ledger},
		enums.TaskTypeInviteSuccess: &inviteHandler{ledger: ledger},
		enums.TaskTypeGameAction:    &gameActionHandler{ledger: ledger},
		enums.TaskTypeExternalTask:  &externalTaskHandler{ledger: ledger},
	}
}
