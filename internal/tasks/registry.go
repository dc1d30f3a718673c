package tasks

import (
	"fmt"

	"github.com/partnerhub/partnerhub-backend/pkg/enums"
	"github.com/shopspring/decimal"
)

// PointRule describes how a completion converts into points.
type PointRule struct {
	Type        enums.PointRuleType
	FixedPoints int64
	Rate        decimal.Decimal
}

// Config is a static task descriptor. The registry is immutable at runtime.
type Config struct {
	TaskCode           string
	TaskType           enums.TaskType
	TriggerEventType   string
	Rule               PointRule
	MaxCompletionCount int // 0 means unlimited
	Enabled            bool
}

// Registry is the read-only task configuration table, queryable by task code
// or by trigger event type. Safe for unsynchronized concurrent reads.
type Registry struct {
	byCode    map[string]Config
	byTrigger map[string][]Config
}

// NewRegistry validates and indexes the provided configs.
func NewRegistry(configs []Config) (*Registry, error) {
	byCode := make(map[string]Config, len(configs))
	byTrigger := make(map[string][]Config)
	for _, cfg := range configs {
		if cfg.TaskCode == "" {
			return nil, fmt.Errorf("task code is required")
		}
		if _, exists := byCode[cfg.TaskCode]; exists {
			return nil, fmt.Errorf("duplicate task code %q", cfg.TaskCode)
		}
		if !cfg.TaskType.IsValid() {
			return nil, fmt.Errorf("task %q: invalid task type %q", cfg.TaskCode, cfg.TaskType)
		}
		if cfg.TriggerEventType == "" {
			return nil, fmt.Errorf("task %q: trigger event type is required", cfg.TaskCode)
		}
		if cfg.MaxCompletionCount < 0 {
			return nil, fmt.Errorf("task %q: max completion count must be >= 0", cfg.TaskCode)
		}
		byCode[cfg.TaskCode] = cfg
		byTrigger[cfg.TriggerEventType] = append(byTrigger[cfg.TriggerEventType], cfg)
	}
	return &Registry{byCode: byCode, byTrigger: byTrigger}, nil
}

// ByCode returns the config registered under the given task code.
func (r *Registry) ByCode(taskCode string) (Config, bool) {
	cfg, ok := r.byCode[taskCode]
	return cfg, ok
}

// EnabledByTriggerEvent returns every enabled config whose trigger matches
// the event type. Several codes may share one trigger.
func (r *Registry) EnabledByTriggerEvent(eventType string) []Config {
	all := r.byTrigger[eventType]
	if len(all) == 0 {
		return nil
	}
	enabled := make([]Config, 0, len(all))
	for _, cfg := range all {
		if cfg.Enabled {
			enabled = append(enabled, cfg)
		}
	}
	return enabled
}

// Canonical task codes shipped with the program.
const (
	TaskCodeRegister     = "REGISTER_V1"
	TaskCodeInvite       = "INVITE_V1"
	TaskCodeGameDaily    = "GAME_DAILY_V1"
	TaskCodeGameSpend    = "GAME_SPEND_V1"
	TaskCodeExternalTask = "EXTERNAL_TASK_V1"
)

// DefaultConfigs returns the built-in task table.
func DefaultConfigs() []Config {
	return []Config{
		{
			TaskCode:           TaskCodeRegister,
			TaskType:           enums.TaskTypeRegister,
			TriggerEventType:   EventTypeRegisterSelf,
			Rule:               PointRule{Type: enums.PointRuleFixed, FixedPoints: 300},
			MaxCompletionCount: 1,
			Enabled:            true,
		},
		{
			TaskCode:         TaskCodeInvite,
			TaskType:         enums.TaskTypeInviteSuccess,
			TriggerEventType: EventTypeRegisterDownlineL1,
			Rule:             PointRule{Type: enums.PointRuleFixed, FixedPoints: 300},
			Enabled:          true,
		},
		{
			TaskCode:           TaskCodeGameDaily,
			TaskType:           enums.TaskTypeGameAction,
			TriggerEventType:   EventTypeTaskNotify,
			Rule:               PointRule{Type: enums.PointRuleFixed, FixedPoints: 50},
			MaxCompletionCount: 1,
			Enabled:            true,
		},
		{
			TaskCode:         TaskCodeGameSpend,
			TaskType:         enums.TaskTypeGameAction,
			TriggerEventType: EventTypeTaskNotify,
			Rule:             PointRule{Type: enums.PointRulePerAmount, Rate: decimal.NewFromFloat(0.5)},
			Enabled:          true,
		},
		{
			TaskCode:         TaskCodeExternalTask,
			TaskType:         enums.TaskTypeExternalTask,
			TriggerEventType: EventTypeExternalTaskApproved,
			Rule:             PointRule{Type: enums.PointRuleFixed},
			Enabled:          true,
		},
	}
}
