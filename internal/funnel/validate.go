package funnel

import (
	"fmt"

	"funnel-analytics-service/internal/model"
)

// Validate sanity-checks aggregated reach counts. Anomalies are advisory
// metadata for the caller; they never block a response. windowFunnel
// guarantees the ordering invariant on the store side, but aggregation
// drift is still worth surfacing.
func Validate(reach model.StepReach, population *uint64, stepCount int) (bool, []string) {
	var anomalies []string

	if stepCount == 0 || len(reach) == 0 {
		return true, nil
	}

	prev := 0.0
	for step := 1; step <= stepCount; step++ {
		curr := reach.Total(step)
		if step > 1 && curr > prev {
			anomalies = append(anomalies, fmt.Sprintf(
				"step %d count (%.0f) > step %d (%.0f) - aggregation drift", step, curr, step-1, prev))
		}
		prev = curr
	}

	if population != nil {
		if step1 := reach.Total(1); step1 > float64(*population) {
			anomalies = append(anomalies, fmt.Sprintf(
				"step 1 count (%.0f) > total sessions in range (%d)", step1, *population))
		}
	}

	return len(anomalies) == 0, anomalies
}
