package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type RuleOperator string

const (
	OpPercentageIncrease RuleOperator = "percentage_increase"
	OpPercentageDecrease RuleOperator = "percentage_decrease"
	OpFixedSurcharge     RuleOperator = "fixed_surcharge"
	OpFixedDiscount      RuleOperator = "fixed_discount"
	OpMultiplier         RuleOperator = "multiplier"
)

type ConditionType string

const (
	CondOccupancy    ConditionType = "occupancy"
	CondLengthOfStay ConditionType = "length_of_stay"
	CondLeadTime     ConditionType = "lead_time"
)

type ConditionOperator string

const (
	CondGreaterThan ConditionOperator = "greater_than"
	CondLessThan    ConditionOperator = "less_than"
)

// RuleCondition gates a rule on one runtime query parameter.
type RuleCondition struct {
	Type      ConditionType
	Operator  ConditionOperator
	Threshold float64
}

func (c RuleCondition) Validate() error {
	switch c.Type {
	case CondOccupancy, CondLengthOfStay, CondLeadTime:
	default:
		return &ValidationError{Field: "conditions.type", Reason: "unknown condition type " + string(c.Type)}
	}
	switch c.Operator {
	case CondGreaterThan, CondLessThan:
	default:
		return &ValidationError{Field: "conditions.operator", Reason: "unknown condition operator " + string(c.Operator)}
	}
	return nil
}

// Matches evaluates the condition against the query's runtime parameters.
func (c RuleCondition) Matches(q ResolveQuery) bool {
	var v float64
	switch c.Type {
	case CondOccupancy:
		v = float64(valueOr(q.OccupancyPct, DefaultOccupancyPct))
	case CondLengthOfStay:
		v = float64(valueOr(q.LengthOfStay, DefaultLengthOfStay))
	case CondLeadTime:
		v = float64(valueOr(q.LeadTimeDays, DefaultLeadTimeDays))
	default:
		return false
	}
	switch c.Operator {
	case CondGreaterThan:
		return v > c.Threshold
	case CondLessThan:
		return v < c.Threshold
	}
	return false
}

// RateRule is a composable price adjustment. Value feeds the percentage and
// fixed operators; ChannelMultipliers feeds only the multiplier operator.
// WeekdayDiffs is informational and never consumed by resolution.
type RateRule struct {
	ID                 string
	Name               string
	Description        string
	Operator           RuleOperator
	Value              decimal.Decimal
	ChannelMultipliers map[string]decimal.Decimal
	Conditions         []RuleCondition
	Priority           int // ascending fold order (note: opposite of Rate.Priority)
	WeekdayDiffs       map[string]decimal.Decimal
	CreatedBy          string
	UpdatedBy          string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// RulePatch is a partial update; nil fields are left untouched.
type RulePatch struct {
	Name               *string
	Description        *string
	Operator           *RuleOperator
	Value              *decimal.Decimal
	ChannelMultipliers *map[string]decimal.Decimal
	Conditions         *[]RuleCondition
	Priority           *int
	WeekdayDiffs       *map[string]decimal.Decimal
	UpdatedBy          string
}

func (r RateRule) Validate() error {
	if r.Name == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	switch r.Operator {
	case OpPercentageIncrease, OpPercentageDecrease, OpFixedSurcharge, OpFixedDiscount:
		if r.Value.IsNegative() {
			return &ValidationError{Field: "value", Reason: "must not be negative"}
		}
	case OpMultiplier:
		for ch, m := range r.ChannelMultipliers {
			if m.IsNegative() {
				return &ValidationError{Field: "channelMultipliers", Reason: "negative multiplier for channel " + ch}
			}
		}
	default:
		return &ValidationError{Field: "operator", Reason: "unknown operator " + string(r.Operator)}
	}
	for _, c := range r.Conditions {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Applies is the logical AND over all conditions; a rule with none always
// applies when reached.
func (r RateRule) Applies(q ResolveQuery) bool {
	for _, c := range r.Conditions {
		if !c.Matches(q) {
			return false
		}
	}
	return true
}

var hundred = decimal.NewFromInt(100)

// Apply folds the rule into the running price. Multiplier rules missing an
// entry for the query channel default to 1 (explicit policy, not an error).
func (r RateRule) Apply(price decimal.Decimal, channel string) decimal.Decimal {
	switch r.Operator {
	case OpPercentageIncrease:
		return price.Add(price.Mul(r.Value).Div(hundred))
	case OpPercentageDecrease:
		return price.Sub(price.Mul(r.Value).Div(hundred))
	case OpFixedSurcharge:
		return price.Add(r.Value)
	case OpFixedDiscount:
		return price.Sub(r.Value)
	case OpMultiplier:
		m, ok := r.ChannelMultipliers[channel]
		if !ok {
			m = decimal.NewFromInt(1)
		}
		return price.Mul(m)
	}
	return price
}

// Clone returns a deep copy.
func (r RateRule) Clone() RateRule {
	out := r
	if r.ChannelMultipliers != nil {
		out.ChannelMultipliers = make(map[string]decimal.Decimal, len(r.ChannelMultipliers))
		for k, v := range r.ChannelMultipliers {
			out.ChannelMultipliers[k] = v
		}
	}
	if r.Conditions != nil {
		out.Conditions = append([]RuleCondition(nil), r.Conditions...)
	}
	if r.WeekdayDiffs != nil {
		out.WeekdayDiffs = make(map[string]decimal.Decimal, len(r.WeekdayDiffs))
		for k, v := range r.WeekdayDiffs {
			out.WeekdayDiffs[k] = v
		}
	}
	return out
}
