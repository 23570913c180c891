package model

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// ValueKind discriminates the closed set of filter value types.
type ValueKind int

const (
	ValueAbsent ValueKind = iota
	ValueBool
	ValueNumber
	ValueText
	ValueList
)

// FilterValue is a tagged variant over the runtime types a property filter
// may carry: bool, number, string, or a list of strings. Exactly one of the
// payload fields is meaningful, selected by Kind.
type FilterValue struct {
	Kind   ValueKind
	Bool   bool
	Number float64
	Text   string
	List   []string
}

func BoolValue(b bool) FilterValue      { return FilterValue{Kind: ValueBool, Bool: b} }
func NumberValue(n float64) FilterValue { return FilterValue{Kind: ValueNumber, Number: n} }
func TextValue(s string) FilterValue    { return FilterValue{Kind: ValueText, Text: s} }
func ListValue(l []string) FilterValue  { return FilterValue{Kind: ValueList, List: l} }

// UnmarshalJSON accepts whatever JSON type the client sent and tags it.
// null (or a missing value) maps to ValueAbsent, which only the null-check
// operators care about.
func (v *FilterValue) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch val := raw.(type) {
	case nil:
		*v = FilterValue{Kind: ValueAbsent}
	case bool:
		*v = BoolValue(val)
	case float64:
		*v = NumberValue(val)
	case string:
		*v = TextValue(val)
	case []interface{}:
		items := make([]string, 0, len(val))
		for _, item := range val {
			items = append(items, stringify(item))
		}
		*v = ListValue(items)
	default:
		return fmt.Errorf("unsupported filter value type %T", raw)
	}

	return nil
}

func (v FilterValue) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case ValueBool:
		return json.Marshal(v.Bool)
	case ValueNumber:
		return json.Marshal(v.Number)
	case ValueText:
		return json.Marshal(v.Text)
	case ValueList:
		return json.Marshal(v.List)
	default:
		return []byte("null"), nil
	}
}

func stringify(item interface{}) string {
	switch val := item.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
