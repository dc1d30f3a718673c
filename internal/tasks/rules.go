package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/partnerhub/partnerhub-backend/pkg/enums"
	"github.com/partnerhub/partnerhub-backend/pkg/logger"
	"github.com/shopspring/decimal"
)

// Business param keys recognized by the rule evaluator.
const (
	ParamPointsReward = "pointsReward"
	ParamAmount       = "amount"
)

// Evaluator converts a point rule plus business params into a point amount.
type Evaluator struct {
	logg *logger.Logger
}

// NewEvaluator builds a rule evaluator.
func NewEvaluator(logg *logger.Logger) *Evaluator {
	return &Evaluator{logg: logg}
}

// Calculate resolves the point amount for one completion. An explicit
// pointsReward in the params wins over the static rule. PER_AMOUNT floors the
// product, and a missing or non-numeric amount yields 0 rather than an error.
func (e *Evaluator) Calculate(ctx context.Context, rule PointRule, businessParams map[string]any) int64 {
	if override, ok := toInt64(businessParams[ParamPointsReward]); ok {
		return override
	}

	switch rule.Type {
	case enums.PointRuleFixed:
		return rule.FixedPoints
	case enums.PointRulePerAmount:
		amount, ok := toDecimal(businessParams[ParamAmount])
		if !ok {
			return 0
		}
		return rule.Rate.Mul(amount).Floor().IntPart()
	default:
		if e.logg != nil {
			ctx = e.logg.WithField(ctx, "rule_type", string(rule.Type))
			e.logg.Warn(ctx, "unknown point rule type, awarding zero points")
		}
		return 0
	}
}

func toInt64(value any) (int64, bool) {
	switch v := value.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	case json.Number:
		parsed, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

func toDecimal(value any) (decimal.Decimal, bool) {
	switch v := value.(type) {
	case int64:
		return decimal.NewFromInt(v), true
	case int:
		return decimal.NewFromInt(int64(v)), true
	case float64:
		return decimal.NewFromFloat(v), true
	case json.Number:
		parsed, err := decimal.NewFromString(v.String())
		if err != nil {
			return decimal.Decimal{}, false
		}
		return parsed, true
	case string:
		parsed, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Decimal{}, false
		}
		return parsed, true
	default:
		return decimal.Decimal{}, false
	}
}

// DecodeParams unmarshals a stored business params payload back into a map.
func DecodeParams(raw json.RawMessage) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var params map[string]any
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, fmt.Errorf("decoding business params: %w", err)
	}
	return params, nil
}
