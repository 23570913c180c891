package funnel

import (
	"strconv"
	"strings"

	"funnel-analytics-service/internal/model"
)

// Operator is a property filter comparison operator.
type Operator string

const (
	OpEquals         Operator = "equals"
	OpNotEquals      Operator = "not_equals"
	OpContains       Operator = "contains"
	OpNotContains    Operator = "not_contains"
	OpStartsWith     Operator = "starts_with"
	OpEndsWith       Operator = "ends_with"
	OpGreaterThan    Operator = "greater_than"
	OpLessThan       Operator = "less_than"
	OpGreaterOrEqual Operator = "greater_than_or_equal"
	OpLessOrEqual    Operator = "less_than_or_equal"
	OpIn             Operator = "in"
	OpNotIn          Operator = "not_in"
	OpIsNull         Operator = "is_null"
	OpIsNotNull      Operator = "is_not_null"
)

// ParseOperator maps a raw operator string to a known operator. Unknown
// operators fall back to equals: a malformed request degrades to the most
// conservative match instead of failing the whole funnel.
func ParseOperator(raw string) Operator {
	switch op := Operator(raw); op {
	case OpEquals, OpNotEquals, OpContains, OpNotContains, OpStartsWith,
		OpEndsWith, OpGreaterThan, OpLessThan, OpGreaterOrEqual,
		OpLessOrEqual, OpIn, OpNotIn, OpIsNull, OpIsNotNull:
		return op
	default:
		return OpEquals
	}
}

// hospitalityStepMap names the booking journey stages stored in
// raw_events.funnel_step.
var hospitalityStepMap = map[string]uint8{
	"landed":          1,
	"location_select": 2,
	"date_select":     3,
	"room_select":     4,
	"addon_select":    5,
	"add-on_select":   5,
	"guest_info":      6,
	"payment":         7,
	"confirmation":    8,
}

// genericEventMap names site-wide interaction events stored in
// raw_events.event_type.
var genericEventMap = map[string]string{
	"page_view":   "page_view",
	"click":       "click",
	"scroll":      "scroll",
	"form_submit": "form_submit",
	"search":      "search",
}

// HospitalityStep resolves a display name like "Room Select" to its
// funnel_step index.
func HospitalityStep(name string) (uint8, bool) {
	n, ok := hospitalityStepMap[normalizeSelector(name)]
	return n, ok
}

// BuildStepPredicate converts one step definition into a predicate over an
// event row: the resolved base condition ANDed with one clause per property
// filter, wrapped in parentheses.
func BuildStepPredicate(step model.StepDefinition) Expr {
	exprs := []Expr{baseCondition(step)}
	for _, f := range step.Filters {
		exprs = append(exprs, FilterClause(f))
	}
	return And{Exprs: exprs}
}

// FilterClause builds the condition for a single property filter.
func FilterClause(f model.PropertyFilter) Expr {
	return Comparison{
		Column: f.Property,
		Op:     ParseOperator(f.Operator),
		Value:  f.Value,
	}
}

// baseCondition resolves the event selector. Known stage and generic names
// take priority; a hospitality selector that parses as an integer addresses
// a stage index directly; anything else is a literal event_type match.
func baseCondition(step model.StepDefinition) Expr {
	key := normalizeSelector(step.EventType)

	if stage, ok := hospitalityStepMap[key]; ok {
		return stepComparison(stage)
	}
	if name, ok := genericEventMap[key]; ok {
		return Comparison{Column: "event_type", Op: OpEquals, Value: model.TextValue(name)}
	}
	if step.EventCategory == model.CategoryHospitality {
		if n, err := strconv.Atoi(strings.TrimSpace(step.EventType)); err == nil && n > 0 && n < 256 {
			return stepComparison(uint8(n))
		}
	}
	return Comparison{Column: "event_type", Op: OpEquals, Value: model.TextValue(step.EventType)}
}

func stepComparison(stage uint8) Expr {
	return Comparison{Column: "funnel_step", Op: OpEquals, Value: model.NumberValue(float64(stage))}
}

func normalizeSelector(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.ReplaceAll(s, " ", "_")
}
