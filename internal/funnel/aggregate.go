package funnel

import (
	"time"

	"funnel-analytics-service/internal/model"
)

// SessionLevel walks one session's timestamp-sorted events and returns the
// highest step index reached in order within the completion window, along
// with the timestamp of each step's qualifying event.
//
// Matching is forward-only: the anchor is set by the step-1 match, later
// steps must occur no more than window after it (inclusive), and an event
// re-satisfying an earlier step never moves the level backwards.
func SessionLevel(preds []Expr, window time.Duration, events []model.Event) (int, []time.Time) {
	reached := 0
	var anchor time.Time
	matchTimes := make([]time.Time, 0, len(preds))

	for _, ev := range events {
		if reached >= len(preds) {
			break
		}
		if !preds[reached].Eval(ev) {
			continue
		}
		if !anchor.IsZero() && ev.Timestamp.Sub(anchor) > window {
			continue
		}
		if anchor.IsZero() {
			anchor = ev.Timestamp
		}
		matchTimes = append(matchTimes, ev.Timestamp)
		reached++
	}

	return reached, matchTimes
}

// Aggregate computes per-step reach counts over session event streams,
// replicating the store's windowFunnel semantics for the raw-rows path.
// An entity that reached step k counts toward every step index 1..k, which
// is what makes the reach series monotonically non-increasing.
//
// Sessions must carry their events sorted by timestamp ascending, and a
// GroupKey when a segment dimension applies (empty falls back to the
// ungrouped key).
func Aggregate(preds []Expr, window time.Duration, mode model.CountingMode, sessions []model.SessionEvents) model.StepReach {
	reach := make(model.StepReach)
	if len(preds) == 0 {
		return reach
	}

	// step -> group -> distinct entity set (entity modes only)
	seen := make(map[int]map[string]map[string]struct{})
	rows := make(map[int]map[string]float64)

	for _, sess := range sessions {
		level, _ := SessionLevel(preds, window, sess.Events)
		if level == 0 {
			continue
		}

		group := sess.GroupKey
		if group == "" {
			group = model.UngroupedKey
		}

		for step := 1; step <= level; step++ {
			switch mode {
			case model.CountEvents:
				if rows[step] == nil {
					rows[step] = make(map[string]float64)
				}
				rows[step][group] += float64(countMatching(preds[step-1], sess.Events))
			default:
				key := sess.SessionID
				if mode == model.CountUniqueUsers {
					key = sess.UserID
				}
				if seen[step] == nil {
					seen[step] = make(map[string]map[string]struct{})
				}
				if seen[step][group] == nil {
					seen[step][group] = make(map[string]struct{})
				}
				seen[step][group][key] = struct{}{}
			}
		}
	}

	if mode == model.CountEvents {
		for step, groups := range rows {
			for group, n := range groups {
				reach.Set(step, group, n)
			}
		}
		return reach
	}

	for step, groups := range seen {
		for group, entities := range groups {
			reach.Set(step, group, float64(len(entities)))
		}
	}
	return reach
}

// countMatching counts the session's event rows satisfying a predicate.
// The events counting mode counts raw qualifying rows, not entities; it is
// not dimensionally comparable to the other modes.
func countMatching(pred Expr, events []model.Event) int {
	n := 0
	for _, ev := range events {
		if pred.Eval(ev) {
			n++
		}
	}
	return n
}
