package funnel

import (
	"regexp"
	"strconv"
	"strings"

	"funnel-analytics-service/internal/model"
)

// Expr is a boolean expression over an event row. The same tree renders to
// a ClickHouse condition for the store-side path and evaluates in memory
// for the raw-rows fallback path, so escaping and operator semantics live
// in exactly one place.
type Expr interface {
	SQL() string
	Eval(ev model.Event) bool
}

// And is the conjunction of its children. Renders parenthesized so it
// composes safely inside a larger expression.
type And struct {
	Exprs []Expr
}

func (a And) SQL() string {
	if len(a.Exprs) == 0 {
		return "(1)"
	}
	parts := make([]string, 0, len(a.Exprs))
	for _, e := range a.Exprs {
		parts = append(parts, e.SQL())
	}
	return "(" + strings.Join(parts, " AND ") + ")"
}

func (a And) Eval(ev model.Event) bool {
	for _, e := range a.Exprs {
		if !e.Eval(ev) {
			return false
		}
	}
	return true
}

// Or is the disjunction of its children.
type Or struct {
	Exprs []Expr
}

func (o Or) SQL() string {
	if len(o.Exprs) == 0 {
		return "(0)"
	}
	parts := make([]string, 0, len(o.Exprs))
	for _, e := range o.Exprs {
		parts = append(parts, e.SQL())
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

func (o Or) Eval(ev model.Event) bool {
	for _, e := range o.Exprs {
		if e.Eval(ev) {
			return true
		}
	}
	return false
}

// Comparison is a single column-operator-value condition.
type Comparison struct {
	Column string
	Op     Operator
	Value  model.FilterValue
}

func (c Comparison) SQL() string {
	switch c.Op {
	case OpIsNull:
		return c.column() + " IS NULL"
	case OpIsNotNull:
		return c.column() + " IS NOT NULL"
	}

	switch c.Value.Kind {
	case model.ValueBool:
		return c.boolSQL()
	case model.ValueNumber:
		return c.numberSQL()
	case model.ValueList:
		return c.listSQL(c.Value.List)
	default:
		return c.textSQL()
	}
}

// Booleans render as 0/1 literals; operators other than equality have no
// boolean meaning and default to equals.
func (c Comparison) boolSQL() string {
	lit := "0"
	if c.Value.Bool {
		lit = "1"
	}
	if c.Op == OpNotEquals {
		return c.column() +" != " + lit
	}
	return c.column() +" = " + lit
}

func (c Comparison) numberSQL() string {
	lit := formatNumber(c.Value.Number)
	switch c.Op {
	case OpNotEquals:
		return c.column() +" != " + lit
	case OpGreaterThan:
		return c.column() +" > " + lit
	case OpLessThan:
		return c.column() +" < " + lit
	case OpGreaterOrEqual:
		return c.column() +" >= " + lit
	case OpLessOrEqual:
		return c.column() +" <= " + lit
	case OpIn, OpNotIn:
		return c.listSQL([]string{formatNumber(c.Value.Number)})
	default:
		return c.column() +" = " + lit
	}
}

func (c Comparison) textSQL() string {
	v := c.Value.Text
	switch c.Op {
	case OpNotEquals:
		return c.column() +" != " + quote(v)
	case OpContains:
		return c.column() +" LIKE " + quote("%"+v+"%")
	case OpNotContains:
		return c.column() +" NOT LIKE " + quote("%"+v+"%")
	case OpStartsWith:
		return c.column() +" LIKE " + quote(v+"%")
	case OpEndsWith:
		return c.column() +" LIKE " + quote("%"+v)
	case OpGreaterThan:
		return c.column() +" > " + quote(v)
	case OpLessThan:
		return c.column() +" < " + quote(v)
	case OpGreaterOrEqual:
		return c.column() +" >= " + quote(v)
	case OpLessOrEqual:
		return c.column() +" <= " + quote(v)
	case OpIn, OpNotIn:
		return c.listSQL(splitList(v))
	default:
		return c.column() +" = " + quote(v)
	}
}

func (c Comparison) listSQL(items []string) string {
	quoted := make([]string, 0, len(items))
	for _, item := range items {
		quoted = append(quoted, quote(item))
	}
	set := "(" + strings.Join(quoted, ", ") + ")"
	if c.Op == OpNotIn {
		return c.column() +" NOT IN " + set
	}
	return c.column() +" IN " + set
}

var plainIdent = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// column renders the comparison's column as a safe identifier. Property
// names come straight from the request, so anything beyond a plain
// identifier gets backtick-quoted the way values get single-quoted.
func (c Comparison) column() string {
	if plainIdent.MatchString(c.Column) {
		return c.Column
	}
	s := strings.ReplaceAll(c.Column, `\`, `\\`)
	s = strings.ReplaceAll(s, "`", "\\`")
	return "`" + s + "`"
}

// quote escapes a string literal for interpolation into a ClickHouse
// expression. Every value that reaches query text passes through here.
func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return "'" + s + "'"
}

func formatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}

// splitList turns a delimited string into list items for in/not_in.
func splitList(s string) []string {
	parts := strings.Split(s, ",")
	items := make([]string, 0, len(parts))
	for _, p := range parts {
		items = append(items, strings.TrimSpace(p))
	}
	return items
}

func (c Comparison) Eval(ev model.Event) bool {
	field, present := ev.Field(c.Column)

	switch c.Op {
	case OpIsNull:
		return !present || field == nil
	case OpIsNotNull:
		return present && field != nil
	}
	if !present {
		return false
	}

	switch c.Value.Kind {
	case model.ValueBool:
		got, ok := asBool(field)
		if !ok {
			return false
		}
		if c.Op == OpNotEquals {
			return got != c.Value.Bool
		}
		return got == c.Value.Bool
	case model.ValueNumber:
		got, ok := asNumber(field)
		if !ok {
			return false
		}
		return compareNumber(got, c.Op, c.Value.Number)
	case model.ValueList:
		return evalList(asText(field), c.Op, c.Value.List)
	default:
		return compareText(asText(field), c.Op, c.Value.Text)
	}
}

func compareNumber(got float64, op Operator, want float64) bool {
	switch op {
	case OpNotEquals:
		return got != want
	case OpGreaterThan:
		return got > want
	case OpLessThan:
		return got < want
	case OpGreaterOrEqual:
		return got >= want
	case OpLessOrEqual:
		return got <= want
	case OpIn, OpNotIn:
		return evalList(formatNumber(got), op, []string{formatNumber(want)})
	default:
		return got == want
	}
}

func compareText(got string, op Operator, want string) bool {
	switch op {
	case OpNotEquals:
		return got != want
	case OpContains:
		return strings.Contains(got, want)
	case OpNotContains:
		return !strings.Contains(got, want)
	case OpStartsWith:
		return strings.HasPrefix(got, want)
	case OpEndsWith:
		return strings.HasSuffix(got, want)
	case OpGreaterThan:
		return got > want
	case OpLessThan:
		return got < want
	case OpGreaterOrEqual:
		return got >= want
	case OpLessOrEqual:
		return got <= want
	case OpIn, OpNotIn:
		return evalList(got, op, splitList(want))
	default:
		return got == want
	}
}

func evalList(got string, op Operator, items []string) bool {
	found := false
	for _, item := range items {
		if got == item {
			found = true
			break
		}
	}
	if op == OpNotIn {
		return !found
	}
	return found
}

func asBool(v interface{}) (bool, bool) {
	switch val := v.(type) {
	case bool:
		return val, true
	case float64:
		return val != 0, true
	case int:
		return val != 0, true
	case string:
		parsed, err := strconv.ParseBool(val)
		if err != nil {
			return false, false
		}
		return parsed, true
	default:
		return false, false
	}
}

func asNumber(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint8:
		return float64(val), true
	case uint64:
		return float64(val), true
	case string:
		parsed, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

func asText(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return formatNumber(val)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}
