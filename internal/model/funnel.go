package model

import "time"

// Event categories a step selector can use. Hospitality selectors address
// the domain booking stages (funnel_step 1..8); generic selectors address
// literal event types; custom is a direct literal match.
const (
	CategoryGeneric     = "generic"
	CategoryHospitality = "hospitality"
	CategoryCustom      = "custom"
)

// Funnel resolution modes.
const (
	ModeCurated = "curated"
	ModeAdHoc   = "ad-hoc"
)

// CountingMode selects the unit counted at each step.
type CountingMode string

const (
	CountUniqueUsers CountingMode = "unique_users"
	CountSessions    CountingMode = "sessions"
	CountEvents      CountingMode = "events"
)

// PropertyFilter narrows a step to events whose property matches.
type PropertyFilter struct {
	Property string      `json:"property"`
	Operator string      `json:"operator"`
	Value    FilterValue `json:"value"`
}

// StepDefinition is one named point in a funnel.
type StepDefinition struct {
	Label         string           `json:"label"`
	EventCategory string           `json:"event_category"`
	EventType     string           `json:"event_type"`
	Filters       []PropertyFilter `json:"filters"`
}

// SegmentFilterSet is an explicit, possibly overlapping comparison group.
// Segments are not partitions: an entity may count in several of them.
type SegmentFilterSet struct {
	ID      string           `json:"id"`
	Name    string           `json:"name"`
	Filters []PropertyFilter `json:"filters"`
}

// FunnelRequest is the inbound funnel computation payload.
type FunnelRequest struct {
	Mode            string             `json:"mode"`
	FunnelID        string             `json:"funnel_id"`
	Steps           []StepDefinition   `json:"steps"`
	CompletedWithin int                `json:"completed_within"` // days
	CountingBy      string             `json:"counting_by"`
	Measure         string             `json:"measure"` // legacy: guests | revenue | intent
	GroupBy         string             `json:"group_by"`
	Segments        []SegmentFilterSet `json:"segments"`
	GlobalFilters   map[string]string  `json:"global_filters"`
}

// FunnelDefinition is the resolved form the engine executes.
type FunnelDefinition struct {
	FunnelID      string
	Mode          string
	Steps         []StepDefinition
	Window        time.Duration
	CountingMode  CountingMode
	GroupBy       string
	Segments      []SegmentFilterSet
	GlobalFilters map[string]string
}

// StepCount is the number of steps in the definition.
func (d FunnelDefinition) StepCount() int { return len(d.Steps) }

// StepReach maps 1-based step index -> group key -> count of entities that
// reached that step or beyond, in order, within the window. Ungrouped
// results use the single group key "all".
type StepReach map[int]map[string]float64

// UngroupedKey is the group key used when no segmentation applies.
const UngroupedKey = "all"

// Total sums a step's reach across all groups.
func (r StepReach) Total(step int) float64 {
	var sum float64
	for _, v := range r[step] {
		sum += v
	}
	return sum
}

// Set records one (step, group) count.
func (r StepReach) Set(step int, group string, count float64) {
	if r[step] == nil {
		r[step] = make(map[string]float64)
	}
	r[step][group] = count
}

// StepResult is one step of the structured funnel response. Conversion and
// drop-off are computed on ungrouped totals; Segments carries raw reach
// counts per group for display.
type StepResult struct {
	StepName       string             `json:"step_name"`
	Visitors       int64              `json:"visitors"`
	ConversionRate float64            `json:"conversion_rate"`
	DropOffRate    float64            `json:"drop_off_rate"`
	RevenueAtRisk  float64            `json:"revenue_at_risk"`
	Segments       map[string]float64 `json:"segments"`
}

// FunnelMeta describes how a funnel result was computed.
type FunnelMeta struct {
	FunnelID   string `json:"funnel_id"`
	Mode       string `json:"mode"`
	CountingBy string `json:"counting_by"`
	Window     string `json:"window"`
	GroupBy    string `json:"group_by,omitempty"`
	IsValid    bool   `json:"is_valid"`
}

// FunnelResponse is the full structured result returned to callers.
type FunnelResponse struct {
	ComputationID       string       `json:"computation_id"`
	Data                []StepResult `json:"data"`
	Meta                FunnelMeta   `json:"meta"`
	ValidationAnomalies []string     `json:"validation_anomalies,omitempty"`
}
