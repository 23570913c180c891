package funnel

import (
	"fmt"
	"testing"
	"time"

	"funnel-analytics-service/internal/model"

	"github.com/stretchr/testify/suite"
)

type AggregateTestSuite struct {
	suite.Suite

	base  time.Time
	preds []Expr
}

func TestAggregateSuite(t *testing.T) {
	suite.Run(t, new(AggregateTestSuite))
}

func (s *AggregateTestSuite) SetupTest() {
	s.base = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	s.preds = stagePredicates(1, 4, 7)
}

func stagePredicates(stages ...uint8) []Expr {
	preds := make([]Expr, 0, len(stages))
	for _, st := range stages {
		preds = append(preds, Comparison{
			Column: "funnel_step",
			Op:     OpEquals,
			Value:  model.NumberValue(float64(st)),
		})
	}
	return preds
}

// stageEvents builds a session's event stream with the given stages spaced
// delta apart, starting at base.
func (s *AggregateTestSuite) stageEvents(delta time.Duration, stages ...uint8) []model.Event {
	events := make([]model.Event, 0, len(stages))
	for i, st := range stages {
		events = append(events, model.Event{
			FunnelStep: st,
			Timestamp:  s.base.Add(time.Duration(i) * delta),
		})
	}
	return events
}

func (s *AggregateTestSuite) TestSessionLevel_FullCompletion() {
	level, times := SessionLevel(s.preds, time.Hour, s.stageEvents(time.Minute, 1, 4, 7))
	s.Equal(3, level)
	s.Len(times, 3)
	s.Equal(s.base, times[0])
}

// TestSessionLevel_OrderMatters verifies that a later step occurring before
// an earlier one does not count: C then A then B reaches only step A.
func (s *AggregateTestSuite) TestSessionLevel_OrderMatters() {
	level, _ := SessionLevel(s.preds, time.Hour, s.stageEvents(time.Minute, 7, 1, 4))
	s.Equal(2, level, "step C before A must not count; A then B after it does")

	level, _ = SessionLevel(s.preds, time.Hour, s.stageEvents(time.Minute, 7, 4, 1))
	s.Equal(1, level, "only the trailing A match counts")
}

// TestSessionLevel_SkippedStepStopsProgress verifies A then C with no B in
// between stops at step 1.
func (s *AggregateTestSuite) TestSessionLevel_SkippedStepStopsProgress() {
	level, _ := SessionLevel(s.preds, time.Hour, s.stageEvents(time.Minute, 1, 7))
	s.Equal(1, level)
}

// TestSessionLevel_WindowBoundary pins the inclusive boundary: an event at
// exactly anchor+window counts, one nanosecond past it does not.
func (s *AggregateTestSuite) TestSessionLevel_WindowBoundary() {
	window := time.Hour

	atBoundary := []model.Event{
		{FunnelStep: 1, Timestamp: s.base},
		{FunnelStep: 4, Timestamp: s.base.Add(window)},
	}
	level, _ := SessionLevel(s.preds, window, atBoundary)
	s.Equal(2, level, "event at exactly anchor+window is inside the window")

	pastBoundary := []model.Event{
		{FunnelStep: 1, Timestamp: s.base},
		{FunnelStep: 4, Timestamp: s.base.Add(window + time.Nanosecond)},
	}
	level, _ = SessionLevel(s.preds, window, pastBoundary)
	s.Equal(1, level)
}

func (s *AggregateTestSuite) TestSessionLevel_LateMatchAfterWindowIgnored() {
	// Step 2 arrives past the window, then step 2 again inside it: the late
	// arrival is skipped but the stream keeps being scanned.
	events := []model.Event{
		{FunnelStep: 1, Timestamp: s.base},
		{FunnelStep: 4, Timestamp: s.base.Add(2 * time.Hour)},
	}
	level, _ := SessionLevel(s.preds, time.Hour, events)
	s.Equal(1, level)
}

func (s *AggregateTestSuite) TestSessionLevel_NoMatch() {
	level, times := SessionLevel(s.preds, time.Hour, s.stageEvents(time.Minute, 2, 3, 5))
	s.Equal(0, level)
	s.Empty(times)
}

// TestAggregate_Sessions replays the canonical shape: 100 sessions reach
// step 1, 60 of them continue to step 2, 30 complete.
func (s *AggregateTestSuite) TestAggregate_Sessions() {
	sessions := s.buildSessions(100, 60, 30)

	reach := Aggregate(s.preds, time.Hour, model.CountSessions, sessions)

	s.Equal(100.0, reach.Total(1))
	s.Equal(60.0, reach.Total(2))
	s.Equal(30.0, reach.Total(3))
}

// buildSessions creates totals[k-1] sessions reaching at least step k, each
// with a distinct session and user id.
func (s *AggregateTestSuite) buildSessions(reached ...int) []model.SessionEvents {
	stages := []uint8{1, 4, 7}
	var out []model.SessionEvents
	for i := 0; i < reached[0]; i++ {
		depth := 1
		for step := 1; step < len(reached); step++ {
			if i < reached[step] {
				depth = step + 1
			}
		}
		out = append(out, model.SessionEvents{
			SessionID: fmt.Sprintf("sess-%d", i),
			UserID:    fmt.Sprintf("user-%d", i),
			Events:    s.stageEvents(time.Minute, stages[:depth]...),
		})
	}
	return out
}

// TestAggregate_UniqueUsersDeduplicates verifies that two sessions of the
// same user count once in unique_users mode and twice in sessions mode.
func (s *AggregateTestSuite) TestAggregate_UniqueUsersDeduplicates() {
	sessions := []model.SessionEvents{
		{SessionID: "s1", UserID: "u1", Events: s.stageEvents(time.Minute, 1, 4, 7)},
		{SessionID: "s2", UserID: "u1", Events: s.stageEvents(time.Minute, 1, 4)},
		{SessionID: "s3", UserID: "u2", Events: s.stageEvents(time.Minute, 1)},
	}

	byUser := Aggregate(s.preds, time.Hour, model.CountUniqueUsers, sessions)
	s.Equal(2.0, byUser.Total(1))
	s.Equal(1.0, byUser.Total(2))
	s.Equal(1.0, byUser.Total(3))

	bySession := Aggregate(s.preds, time.Hour, model.CountSessions, sessions)
	s.Equal(3.0, bySession.Total(1))
	s.Equal(2.0, bySession.Total(2))
	s.Equal(1.0, bySession.Total(3))
}

// TestAggregate_EventsCountsRows verifies the events mode counts qualifying
// rows rather than entities.
func (s *AggregateTestSuite) TestAggregate_EventsCountsRows() {
	// One session with two step-1 events that completes the funnel.
	sessions := []model.SessionEvents{
		{SessionID: "s1", UserID: "u1", Events: s.stageEvents(time.Minute, 1, 1, 4, 7)},
	}

	reach := Aggregate(s.preds, time.Hour, model.CountEvents, sessions)
	s.Equal(2.0, reach.Total(1))
	s.Equal(1.0, reach.Total(2))
	s.Equal(1.0, reach.Total(3))
}

func (s *AggregateTestSuite) TestAggregate_GroupKeys() {
	sessions := []model.SessionEvents{
		{SessionID: "s1", UserID: "u1", GroupKey: "mobile", Events: s.stageEvents(time.Minute, 1, 4)},
		{SessionID: "s2", UserID: "u2", GroupKey: "mobile", Events: s.stageEvents(time.Minute, 1)},
		{SessionID: "s3", UserID: "u3", GroupKey: "desktop", Events: s.stageEvents(time.Minute, 1, 4, 7)},
		{SessionID: "s4", UserID: "u4", Events: s.stageEvents(time.Minute, 1)},
	}

	reach := Aggregate(s.preds, time.Hour, model.CountSessions, sessions)

	s.Equal(2.0, reach[1]["mobile"])
	s.Equal(1.0, reach[1]["desktop"])
	s.Equal(1.0, reach[1][model.UngroupedKey], "missing group key falls back to the ungrouped bucket")
	s.Equal(4.0, reach.Total(1))
	s.Equal(2.0, reach.Total(2))
	s.Equal(1.0, reach.Total(3))
}

func (s *AggregateTestSuite) TestAggregate_NoPredicates() {
	sessions := []model.SessionEvents{
		{SessionID: "s1", UserID: "u1", Events: s.stageEvents(time.Minute, 1)},
	}
	reach := Aggregate(nil, time.Hour, model.CountSessions, sessions)
	s.Empty(reach)
}

// TestAggregate_Idempotent verifies recomputation over the same input yields
// the same counts.
func (s *AggregateTestSuite) TestAggregate_Idempotent() {
	sessions := s.buildSessions(10, 6, 3)
	first := Aggregate(s.preds, time.Hour, model.CountSessions, sessions)
	second := Aggregate(s.preds, time.Hour, model.CountSessions, sessions)
	s.Equal(first, second)
}
