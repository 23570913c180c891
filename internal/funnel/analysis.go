package funnel

import (
	"sort"
	"strings"
	"time"

	"funnel-analytics-service/internal/model"
)

// Derived analyses consume the aggregator's per-step reach result and add
// their own statistic. None of them feed back into the funnel math.

// FlagBottleneck marks a step transition whose median (or p95) latency
// exceeds the threshold.
func FlagBottleneck(q model.LatencyQuantiles, threshold time.Duration) bool {
	limit := threshold.Seconds()
	return q.Median > limit || q.P95 > limit
}

// PriceDeltas fills PctChange and Spike on a step-ordered price series.
// A spike is a step-over-step average increase beyond spikeThresholdPct.
func PriceDeltas(stats []model.PriceStepStats, spikeThresholdPct float64) []model.PriceStepStats {
	for i := range stats {
		if i == 0 || stats[i-1].Avg <= 0 {
			stats[i].PctChange = 0
			stats[i].Spike = false
			continue
		}
		change := (stats[i].Avg - stats[i-1].Avg) / stats[i-1].Avg * 100.0
		stats[i].PctChange = round1(change)
		stats[i].Spike = change > spikeThresholdPct
	}
	return stats
}

// BucketPathEvents categorizes the event types entities produced after
// dropping off, by substring matching on the event type name.
func BucketPathEvents(counts map[string]uint64) []model.PathGroup {
	groups := make([]model.PathGroup, 0, len(counts))
	for eventType, count := range counts {
		groups = append(groups, model.PathGroup{
			Category:  pathCategory(eventType),
			EventType: eventType,
			Count:     count,
		})
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Count != groups[j].Count {
			return groups[i].Count > groups[j].Count
		}
		return groups[i].EventType < groups[j].EventType
	})
	return groups
}

func pathCategory(eventType string) string {
	name := strings.ToLower(eventType)
	switch {
	case strings.Contains(name, "exit"),
		strings.Contains(name, "close"),
		strings.Contains(name, "abandon"),
		strings.Contains(name, "session_end"):
		return model.PathExit
	case strings.Contains(name, "retry"),
		strings.Contains(name, "reload"),
		strings.Contains(name, "error"),
		strings.Contains(name, "back"):
		return model.PathRetry
	default:
		return model.PathNavigation
	}
}

// RecoveryStats computes the recovery rate and average days-to-recovery for
// a dropped cohort.
func RecoveryStats(dropped, recovered uint64, totalRecoveryDays float64) (float64, float64) {
	if dropped == 0 {
		return 0, 0
	}
	rate := round1(float64(recovered) / float64(dropped) * 100.0)
	avgDays := 0.0
	if recovered > 0 {
		avgDays = round1(totalRecoveryDays / float64(recovered))
	}
	return rate, avgDays
}
