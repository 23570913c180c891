package model

// LatencyQuantiles holds the time-delta distribution between two adjacent
// steps, in seconds.
type LatencyQuantiles struct {
	P10    float64 `json:"p10"`
	P25    float64 `json:"p25"`
	Median float64 `json:"median"`
	P75    float64 `json:"p75"`
	P90    float64 `json:"p90"`
	P95    float64 `json:"p95"`
}

// StepLatency is the transition timing between step FromStep and ToStep.
type StepLatency struct {
	FromStep   int              `json:"from_step"`
	ToStep     int              `json:"to_step"`
	FromLabel  string           `json:"from_label"`
	ToLabel    string           `json:"to_label"`
	Seconds    LatencyQuantiles `json:"seconds"`
	Bottleneck bool             `json:"bottleneck"`
	Estimated  bool             `json:"estimated,omitempty"`
}

// PriceStepStats describes price exposure at one step.
type PriceStepStats struct {
	Step      int     `json:"step"`
	StepName  string  `json:"step_name"`
	Avg       float64 `json:"avg"`
	Median    float64 `json:"median"`
	P90       float64 `json:"p90"`
	PctChange float64 `json:"pct_change"`
	Spike     bool    `json:"spike"`
}

// Post-drop-off path categories.
const (
	PathExit       = "exit"
	PathRetry      = "retry"
	PathNavigation = "navigation"
)

// PathGroup is one bucketed event type seen after a drop-off.
type PathGroup struct {
	Category  string `json:"category"`
	EventType string `json:"event_type"`
	Count     uint64 `json:"count"`
}

// PathAnalysis summarizes where entities went after dropping at Step.
type PathAnalysis struct {
	Step         int         `json:"step"`
	StepName     string      `json:"step_name"`
	DroppedCount uint64      `json:"dropped_count"`
	Groups       []PathGroup `json:"groups"`
}

// CohortRecovery reports how many entities that dropped at Step eventually
// completed the funnel within the extended recovery window.
type CohortRecovery struct {
	Step             int     `json:"step"`
	StepName         string  `json:"step_name"`
	Dropped          uint64  `json:"dropped"`
	Recovered        uint64  `json:"recovered"`
	RecoveryRate     float64 `json:"recovery_rate"`
	AvgDaysToRecover float64 `json:"avg_days_to_recover"`
}

// FrictionPoint is one problematic UI element associated with a step.
type FrictionPoint struct {
	Element     string  `json:"element"`
	Clicks      uint64  `json:"clicks"`
	Failures    uint64  `json:"failures"`
	FailureRate float64 `json:"failure_rate"`
}

// EventTypeInfo is one discovered event type with its row count.
type EventTypeInfo struct {
	EventType string `json:"event_type"`
	Count     uint64 `json:"count"`
}
