package funnel

import (
	"math"

	"funnel-analytics-service/internal/model"
)

// ComputeMetrics turns per-step reach counts into the structured step
// results.
//
// Conventions, applied on ungrouped totals:
//   - step 1 converts at 100% with 0% drop-off regardless of data;
//   - a zero previous count resolves to 0% conversion, never a NaN;
//   - the last step drops nobody (next defaults to current);
//   - dropped counts floor at zero, so revenue at risk is never negative.
//
// Percentages are never recomputed per segment; the segments map reports
// each group's raw reach count at the step.
func ComputeMetrics(steps []model.StepDefinition, reach model.StepReach, avgValuePerEntity float64) []model.StepResult {
	stepCount := len(steps)
	results := make([]model.StepResult, 0, stepCount)

	totals := make([]float64, stepCount)
	for i := range steps {
		totals[i] = reach.Total(i + 1)
	}

	for i, step := range steps {
		current := totals[i]
		previous := current
		if i > 0 {
			previous = totals[i-1]
		}
		next := current
		if i < stepCount-1 {
			next = totals[i+1]
		}

		var conversion float64
		switch {
		case i == 0:
			conversion = 100.0
		case previous > 0:
			conversion = current / previous * 100.0
		default:
			conversion = 0.0
		}

		dropOff := 0.0
		if i > 0 {
			dropOff = 100.0 - conversion
		}

		dropped := math.Max(0, current-next)

		segments := reach[i+1]
		if len(segments) == 0 {
			segments = map[string]float64{model.UngroupedKey: current}
		}

		results = append(results, model.StepResult{
			StepName:       stepLabel(step),
			Visitors:       int64(current),
			ConversionRate: round1(conversion),
			DropOffRate:    round1(dropOff),
			RevenueAtRisk:  round2(dropped * avgValuePerEntity),
			Segments:       segments,
		})
	}

	return results
}

func stepLabel(step model.StepDefinition) string {
	if step.Label != "" {
		return step.Label
	}
	return step.EventType
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
