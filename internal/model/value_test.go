package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/suite"
)

type ValueTestSuite struct {
	suite.Suite
}

func TestValueSuite(t *testing.T) {
	suite.Run(t, new(ValueTestSuite))
}

// TestUnmarshal covers the JSON type tagging, including mixed-type lists
// which are stringified item by item.
func (s *ValueTestSuite) TestUnmarshal() {
	tests := []struct {
		name string
		raw  string
		want FilterValue
	}{
		{"null", `null`, FilterValue{Kind: ValueAbsent}},
		{"bool", `true`, BoolValue(true)},
		{"number", `42.5`, NumberValue(42.5)},
		{"integer number", `7`, NumberValue(7)},
		{"string", `"mobile"`, TextValue("mobile")},
		{"string list", `["a","b"]`, ListValue([]string{"a", "b"})},
		{"mixed list stringifies items", `["a", 2, true]`, ListValue([]string{"a", "2", "true"})},
		{"empty list", `[]`, ListValue([]string{})},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			var v FilterValue
			s.NoError(json.Unmarshal([]byte(tt.raw), &v))
			s.Equal(tt.want, v)
		})
	}
}

func (s *ValueTestSuite) TestUnmarshal_ObjectRejected() {
	var v FilterValue
	err := json.Unmarshal([]byte(`{"nested": 1}`), &v)
	s.Error(err)
}

func (s *ValueTestSuite) TestUnmarshal_InsideFilter() {
	raw := `{"property":"price_viewed_amount","operator":"greater_than","value":250}`
	var f PropertyFilter
	s.NoError(json.Unmarshal([]byte(raw), &f))
	s.Equal("price_viewed_amount", f.Property)
	s.Equal(NumberValue(250), f.Value)
}

func (s *ValueTestSuite) TestMarshalRoundTrip() {
	for _, v := range []FilterValue{
		BoolValue(false),
		NumberValue(3.25),
		TextValue("family"),
		ListValue([]string{"x", "y"}),
	} {
		data, err := json.Marshal(v)
		s.NoError(err)
		var back FilterValue
		s.NoError(json.Unmarshal(data, &back))
		s.Equal(v, back)
	}

	data, err := json.Marshal(FilterValue{Kind: ValueAbsent})
	s.NoError(err)
	s.Equal("null", string(data))
}
