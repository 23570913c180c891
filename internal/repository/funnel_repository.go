package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"

	"funnel-analytics-service/internal/funnel"
	"funnel-analytics-service/internal/model"
)

// FunnelQuery carries everything the store needs to execute one funnel
// aggregation: ordered step predicates, the completion window, the counting
// unit, an optional session grouping dimension, extra entity-selection
// filters (named segments), and an optional normalized location filter.
type FunnelQuery struct {
	Predicates    []funnel.Expr
	Window        time.Duration
	CountingMode  model.CountingMode
	GroupBy       string
	EntityFilters []funnel.Expr
	Location      string
	RangeDays     int
}

// FunnelRepository defines the read-only store operations of the engine.
type FunnelRepository interface {
	// RunFunnel computes per-step reach with the store's windowFunnel
	// primitive.
	RunFunnel(ctx context.Context, q FunnelQuery) (model.StepReach, error)

	// FetchSessionEvents returns raw ordered rows for the in-process
	// aggregation path.
	FetchSessionEvents(ctx context.Context, q FunnelQuery) ([]model.SessionEvents, error)

	// CountSessions counts distinct sessions in the query range, for the
	// validation population bound.
	CountSessions(ctx context.Context, q FunnelQuery) (uint64, error)

	// FetchAverageBookingValue resolves the per-entity monetary benchmark,
	// location-scoped when a location filter applies.
	FetchAverageBookingValue(ctx context.Context, location string) (float64, error)

	// FetchStepLatencies returns time-delta quantiles for each step
	// boundary (len = steps-1).
	FetchStepLatencies(ctx context.Context, q FunnelQuery) ([]model.LatencyQuantiles, error)

	// FetchLastStepDwell returns the average time-on-page of events
	// matching the final step, the proxy latency for the last boundary.
	FetchLastStepDwell(ctx context.Context, q FunnelQuery) (float64, error)

	// FetchPriceStats returns price exposure stats per step (deltas are
	// filled by the caller).
	FetchPriceStats(ctx context.Context, q FunnelQuery) ([]model.PriceStepStats, error)

	// FetchDropOffPaths returns event-type counts observed after sessions
	// dropped at the given step (1-based), within the same window.
	FetchDropOffPaths(ctx context.Context, q FunnelQuery, step int) (map[string]uint64, error)

	// FetchCohortRecovery reports, for sessions that dropped at the given
	// step, how many of their users reached the final step within the
	// recovery window, plus the summed days-to-recovery.
	FetchCohortRecovery(ctx context.Context, q FunnelQuery, step int, recoveryWindow time.Duration) (dropped, recovered uint64, totalDays float64, err error)

	// FetchFrictionPoints lists problematic UI elements for a booking
	// stage.
	FetchFrictionPoints(ctx context.Context, stage uint8) ([]model.FrictionPoint, error)

	// ListEventTypes returns distinct event types with row counts over the
	// sample range.
	ListEventTypes(ctx context.Context, sinceDays int) ([]model.EventTypeInfo, error)
}

type funnelRepository struct {
	conn clickhouse.Conn
}

// NewFunnelRepository creates a FunnelRepository backed by ClickHouse.
func NewFunnelRepository(conn clickhouse.Conn) FunnelRepository {
	return &funnelRepository{conn: conn}
}

const defaultRangeDays = 30

func (q FunnelQuery) rangeDays() int {
	if q.RangeDays > 0 {
		return q.RangeDays
	}
	return defaultRangeDays
}

func (q FunnelQuery) windowSeconds() int64 {
	return int64(q.Window / time.Second)
}

// groupColumn whitelists session dimensions usable for grouping. Anything
// else degrades to ungrouped output.
func groupColumn(groupBy string) string {
	switch groupBy {
	case "device_type", "guest_segment":
		return groupBy
	default:
		return ""
	}
}

// innerWhere assembles the entity-selection WHERE of the per-session
// subquery: time range, segment filters, location scoping.
func innerWhere(q FunnelQuery) string {
	clauses := []string{fmt.Sprintf("timestamp >= now() - INTERVAL %d DAY", q.rangeDays())}
	for _, f := range q.EntityFilters {
		clauses = append(clauses, f.SQL())
	}
	if q.Location != "" {
		clauses = append(clauses, locationClause(q.Location))
	}
	return strings.Join(clauses, " AND ")
}

// locationClause scopes sessions to a resort location. The location lives
// on the session row, stitched retrospectively from later funnel steps, so
// the filter goes through the sessions table.
func locationClause(location string) string {
	match := funnel.Or{Exprs: []funnel.Expr{
		funnel.Comparison{Column: "final_location", Op: funnel.OpEquals, Value: model.TextValue(location)},
		funnel.Comparison{Column: "final_location", Op: funnel.OpContains, Value: model.TextValue(location)},
	}}
	return "session_id IN (SELECT session_id FROM sessions WHERE " + match.SQL() + ")"
}

// funnelInner builds the per-session subquery: one windowFunnel level per
// session plus whatever per-session aggregates the outer projection needs.
func funnelInner(q FunnelQuery, extraCols []string) string {
	conds := make([]string, 0, len(q.Predicates))
	for _, p := range q.Predicates {
		conds = append(conds, p.SQL())
	}

	var b strings.Builder
	b.WriteString("SELECT session_id, any(user_id) AS user_id")
	for _, col := range extraCols {
		b.WriteString(", ")
		b.WriteString(col)
	}
	fmt.Fprintf(&b, ", windowFunnel(%d)(timestamp, %s) AS funnel_level",
		q.windowSeconds(), strings.Join(conds, ", "))
	b.WriteString(" FROM raw_events WHERE ")
	b.WriteString(innerWhere(q))
	b.WriteString(" GROUP BY session_id")
	return b.String()
}

// buildFunnelQuery renders the full reach aggregation. One row per group,
// one projected count per step index.
func buildFunnelQuery(q FunnelQuery) string {
	group := groupColumn(q.GroupBy)

	var extra []string
	if group != "" {
		extra = append(extra, fmt.Sprintf("any(%s) AS grp", group))
	}
	if q.CountingMode == model.CountEvents {
		for i, p := range q.Predicates {
			extra = append(extra, fmt.Sprintf("countIf(%s) AS step_rows_%d", p.SQL(), i+1))
		}
	}

	groupExpr := "'all'"
	if group != "" {
		groupExpr = "grp"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s AS segment", groupExpr)
	for i := range q.Predicates {
		step := i + 1
		switch q.CountingMode {
		case model.CountUniqueUsers:
			fmt.Fprintf(&b, ", uniqExactIf(user_id, funnel_level >= %d) AS step_%d", step, step)
		case model.CountEvents:
			fmt.Fprintf(&b, ", toUInt64(sumIf(step_rows_%d, funnel_level >= %d)) AS step_%d", step, step, step)
		default:
			fmt.Fprintf(&b, ", countIf(funnel_level >= %d) AS step_%d", step, step)
		}
	}
	fmt.Fprintf(&b, " FROM (%s) WHERE funnel_level > 0 GROUP BY segment ORDER BY segment", funnelInner(q, extra))
	return b.String()
}

func (r *funnelRepository) RunFunnel(ctx context.Context, q FunnelQuery) (model.StepReach, error) {
	reach := make(model.StepReach)
	if len(q.Predicates) == 0 {
		return reach, nil
	}

	rows, err := r.conn.Query(ctx, buildFunnelQuery(q))
	if err != nil {
		return nil, fmt.Errorf("funnel query: %w", err)
	}
	defer rows.Close()

	counts := make([]uint64, len(q.Predicates))
	for rows.Next() {
		var segment string
		dest := make([]interface{}, 0, len(counts)+1)
		dest = append(dest, &segment)
		for i := range counts {
			dest = append(dest, &counts[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan funnel row: %w", err)
		}
		for i, c := range counts {
			if c > 0 {
				reach.Set(i+1, segment, float64(c))
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("funnel rows: %w", err)
	}
	return reach, nil
}

func buildSessionEventsQuery(q FunnelQuery) string {
	group := groupColumn(q.GroupBy)
	groupCol := "''"
	if group != "" {
		groupCol = group
	}
	return fmt.Sprintf(`SELECT session_id, user_id, timestamp, event_type, funnel_step, page_url, page_category, element_selector, device_type, guest_segment, location, price_viewed_amount, time_on_page_seconds, %s AS grp
FROM raw_events
WHERE %s
ORDER BY session_id, timestamp`, groupCol, innerWhere(q))
}

func (r *funnelRepository) FetchSessionEvents(ctx context.Context, q FunnelQuery) ([]model.SessionEvents, error) {
	rows, err := r.conn.Query(ctx, buildSessionEventsQuery(q))
	if err != nil {
		return nil, fmt.Errorf("session events query: %w", err)
	}
	defer rows.Close()

	var sessions []model.SessionEvents
	var current *model.SessionEvents

	for rows.Next() {
		var ev model.Event
		var grp string
		if err := rows.Scan(
			&ev.SessionID, &ev.UserID, &ev.Timestamp, &ev.EventType, &ev.FunnelStep,
			&ev.PageURL, &ev.PageCategory, &ev.ElementSelector, &ev.DeviceType,
			&ev.GuestSegment, &ev.Location, &ev.PriceViewedAmount, &ev.TimeOnPageSeconds,
			&grp,
		); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}

		if current == nil || current.SessionID != ev.SessionID {
			sessions = append(sessions, model.SessionEvents{
				SessionID: ev.SessionID,
				UserID:    ev.UserID,
				GroupKey:  grp,
			})
			current = &sessions[len(sessions)-1]
		}
		current.Events = append(current.Events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("session event rows: %w", err)
	}
	return sessions, nil
}

func (r *funnelRepository) CountSessions(ctx context.Context, q FunnelQuery) (uint64, error) {
	query := fmt.Sprintf("SELECT uniqExact(session_id) FROM raw_events WHERE %s", innerWhere(q))
	var total uint64
	if err := r.conn.QueryRow(ctx, query).Scan(&total); err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return total, nil
}

const benchmarkABVQuery = `SELECT avg(avg_booking_value)
FROM guest_segment_benchmarks
WHERE date = (SELECT max(date) FROM guest_segment_benchmarks)`

func (r *funnelRepository) FetchAverageBookingValue(ctx context.Context, location string) (float64, error) {
	// Location-scoped estimate first: the benchmarks table has no location
	// dimension, converted sessions at that location are the next best
	// signal.
	if location != "" {
		query := fmt.Sprintf(`SELECT avg(final_total_price)
FROM sessions
WHERE converted = 1 AND final_total_price > 0 AND %s`, funnel.Or{Exprs: []funnel.Expr{
			funnel.Comparison{Column: "final_location", Op: funnel.OpEquals, Value: model.TextValue(location)},
			funnel.Comparison{Column: "final_location", Op: funnel.OpContains, Value: model.TextValue(location)},
		}}.SQL())

		var abv float64
		if err := r.conn.QueryRow(ctx, query).Scan(&abv); err == nil && abv > 0 {
			return abv, nil
		}
	}

	var abv float64
	if err := r.conn.QueryRow(ctx, benchmarkABVQuery).Scan(&abv); err != nil {
		return 0, fmt.Errorf("fetch booking value benchmark: %w", err)
	}
	if abv <= 0 {
		return 0, fmt.Errorf("no booking value benchmark available")
	}
	return abv, nil
}

// buildLatencyQuery computes, per session, the first matching timestamp of
// each step, then quantiles of the deltas between adjacent steps across
// sessions that hit both in order.
func buildLatencyQuery(q FunnelQuery) string {
	var extra []string
	for i, p := range q.Predicates {
		extra = append(extra, fmt.Sprintf("minIf(toFloat64(toUnixTimestamp(timestamp)), %s) AS t_%d", p.SQL(), i+1))
	}

	var b strings.Builder
	b.WriteString("SELECT")
	for i := 0; i < len(q.Predicates)-1; i++ {
		from, to := i+1, i+2
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b,
			" quantilesExactIf(0.1, 0.25, 0.5, 0.75, 0.9, 0.95)(t_%d - t_%d, t_%d > 0 AND t_%d > 0 AND t_%d >= t_%d) AS q_%d",
			to, from, from, to, to, from, from)
	}
	fmt.Fprintf(&b, " FROM (%s) WHERE funnel_level > 0", funnelInner(q, extra))
	return b.String()
}

func (r *funnelRepository) FetchStepLatencies(ctx context.Context, q FunnelQuery) ([]model.LatencyQuantiles, error) {
	boundaries := len(q.Predicates) - 1
	if boundaries < 1 {
		return nil, nil
	}

	row := r.conn.QueryRow(ctx, buildLatencyQuery(q))
	quants := make([][]float64, boundaries)
	dest := make([]interface{}, 0, boundaries)
	for i := range quants {
		dest = append(dest, &quants[i])
	}
	if err := row.Scan(dest...); err != nil {
		return nil, fmt.Errorf("scan latency quantiles: %w", err)
	}

	out := make([]model.LatencyQuantiles, 0, boundaries)
	for _, vals := range quants {
		var lq model.LatencyQuantiles
		if len(vals) == 6 {
			lq = model.LatencyQuantiles{
				P10: vals[0], P25: vals[1], Median: vals[2],
				P75: vals[3], P90: vals[4], P95: vals[5],
			}
		}
		out = append(out, lq)
	}
	return out, nil
}

func buildLastStepDwellQuery(q FunnelQuery) string {
	last := q.Predicates[len(q.Predicates)-1]
	return fmt.Sprintf(
		"SELECT avg(time_on_page_seconds) FROM raw_events WHERE %s AND %s AND time_on_page_seconds > 0",
		innerWhere(q), last.SQL())
}

func (r *funnelRepository) FetchLastStepDwell(ctx context.Context, q FunnelQuery) (float64, error) {
	if len(q.Predicates) == 0 {
		return 0, nil
	}
	var dwell float64
	if err := r.conn.QueryRow(ctx, buildLastStepDwellQuery(q)).Scan(&dwell); err != nil {
		return 0, fmt.Errorf("fetch last step dwell: %w", err)
	}
	return dwell, nil
}

func buildPriceQuery(q FunnelQuery) string {
	var b strings.Builder
	b.WriteString("SELECT")
	for i, p := range q.Predicates {
		cond := fmt.Sprintf("%s AND price_viewed_amount > 0", p.SQL())
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, " avgIf(price_viewed_amount, %s) AS avg_%d", cond, i+1)
		fmt.Fprintf(&b, ", quantileExactIf(0.5)(price_viewed_amount, %s) AS med_%d", cond, i+1)
		fmt.Fprintf(&b, ", quantileExactIf(0.9)(price_viewed_amount, %s) AS p90_%d", cond, i+1)
	}
	fmt.Fprintf(&b, " FROM raw_events WHERE %s", innerWhere(q))
	return b.String()
}

func (r *funnelRepository) FetchPriceStats(ctx context.Context, q FunnelQuery) ([]model.PriceStepStats, error) {
	if len(q.Predicates) == 0 {
		return nil, nil
	}

	row := r.conn.QueryRow(ctx, buildPriceQuery(q))
	vals := make([]float64, len(q.Predicates)*3)
	dest := make([]interface{}, 0, len(vals))
	for i := range vals {
		dest = append(dest, &vals[i])
	}
	if err := row.Scan(dest...); err != nil {
		return nil, fmt.Errorf("scan price stats: %w", err)
	}

	out := make([]model.PriceStepStats, 0, len(q.Predicates))
	for i := range q.Predicates {
		out = append(out, model.PriceStepStats{
			Step:   i + 1,
			Avg:    vals[i*3],
			Median: vals[i*3+1],
			P90:    vals[i*3+2],
		})
	}
	return out, nil
}

// droppedSessionsInner selects sessions that reached exactly the given step
// and the timestamp of their drop-off point.
func droppedSessionsInner(q FunnelQuery, step int) string {
	dropPred := q.Predicates[step-1]
	extra := []string{fmt.Sprintf("toFloat64(toUnixTimestamp(minIf(timestamp, %s))) AS drop_ts", dropPred.SQL())}
	return fmt.Sprintf("%s HAVING funnel_level = %d", funnelInner(q, extra), step)
}

func buildPathsQuery(q FunnelQuery, step int) string {
	return fmt.Sprintf(`SELECT re.event_type, count() AS cnt
FROM raw_events re
INNER JOIN (%s) AS d ON re.session_id = d.session_id
WHERE toFloat64(toUnixTimestamp(re.timestamp)) > d.drop_ts
  AND toFloat64(toUnixTimestamp(re.timestamp)) <= d.drop_ts + %d
GROUP BY re.event_type
ORDER BY cnt DESC
LIMIT 50`, droppedSessionsInner(q, step), q.windowSeconds())
}

func (r *funnelRepository) FetchDropOffPaths(ctx context.Context, q FunnelQuery, step int) (map[string]uint64, error) {
	if step < 1 || step >= len(q.Predicates) {
		return nil, fmt.Errorf("paths step out of range: %d", step)
	}

	rows, err := r.conn.Query(ctx, buildPathsQuery(q, step))
	if err != nil {
		return nil, fmt.Errorf("paths query: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]uint64)
	for rows.Next() {
		var eventType string
		var cnt uint64
		if err := rows.Scan(&eventType, &cnt); err != nil {
			return nil, fmt.Errorf("scan path row: %w", err)
		}
		counts[eventType] = cnt
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("path rows: %w", err)
	}
	return counts, nil
}

func buildRecoveryQuery(q FunnelQuery, step int, recoverySeconds int64) string {
	finalPred := q.Predicates[len(q.Predicates)-1]
	return fmt.Sprintf(`SELECT count() AS dropped,
  countIf(rec_ts > 0) AS recovered,
  sumIf((rec_ts - drop_ts) / 86400.0, rec_ts > 0) AS total_days
FROM (
  SELECT d.session_id AS session_id,
    any(d.drop_ts) AS drop_ts,
    minIf(toFloat64(toUnixTimestamp(re.timestamp)), %s AND toFloat64(toUnixTimestamp(re.timestamp)) > d.drop_ts AND toFloat64(toUnixTimestamp(re.timestamp)) <= d.drop_ts + %d) AS rec_ts
  FROM (%s) AS d
  LEFT JOIN raw_events re ON re.user_id = d.user_id
  GROUP BY d.session_id
)`, finalPred.SQL(), recoverySeconds, droppedSessionsInner(q, step))
}

func (r *funnelRepository) FetchCohortRecovery(ctx context.Context, q FunnelQuery, step int, recoveryWindow time.Duration) (uint64, uint64, float64, error) {
	if step < 1 || step >= len(q.Predicates) {
		return 0, 0, 0, fmt.Errorf("recovery step out of range: %d", step)
	}

	query := buildRecoveryQuery(q, step, int64(recoveryWindow/time.Second))
	var dropped, recovered uint64
	var totalDays float64
	if err := r.conn.QueryRow(ctx, query).Scan(&dropped, &recovered, &totalDays); err != nil {
		return 0, 0, 0, fmt.Errorf("scan recovery row: %w", err)
	}
	return dropped, recovered, totalDays, nil
}

const frictionQuery = `SELECT element_selector, total_interactions, rage_click_count, drop_offs_after_interaction
FROM friction_points
WHERE associated_step = ?
ORDER BY drop_offs_after_interaction DESC, rage_click_count DESC
LIMIT 5`

func (r *funnelRepository) FetchFrictionPoints(ctx context.Context, stage uint8) ([]model.FrictionPoint, error) {
	rows, err := r.conn.Query(ctx, frictionQuery, stage)
	if err != nil {
		return nil, fmt.Errorf("friction query: %w", err)
	}
	defer rows.Close()

	var points []model.FrictionPoint
	for rows.Next() {
		var element string
		var interactions, rageClicks, dropOffs uint64
		if err := rows.Scan(&element, &interactions, &rageClicks, &dropOffs); err != nil {
			return nil, fmt.Errorf("scan friction row: %w", err)
		}

		failureRate := 0.0
		if interactions > 0 {
			failureRate = float64(dropOffs) / float64(interactions) * 100.0
		}
		points = append(points, model.FrictionPoint{
			Element:     element,
			Clicks:      interactions,
			Failures:    dropOffs,
			FailureRate: failureRate,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("friction rows: %w", err)
	}
	return points, nil
}

func (r *funnelRepository) ListEventTypes(ctx context.Context, sinceDays int) ([]model.EventTypeInfo, error) {
	if sinceDays <= 0 {
		sinceDays = defaultRangeDays
	}
	query := fmt.Sprintf(`SELECT event_type, count() AS cnt
FROM raw_events
WHERE timestamp >= now() - INTERVAL %d DAY AND event_type != ''
GROUP BY event_type
ORDER BY cnt DESC
LIMIT 200`, sinceDays)

	rows, err := r.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("event types query: %w", err)
	}
	defer rows.Close()

	var out []model.EventTypeInfo
	for rows.Next() {
		var info model.EventTypeInfo
		if err := rows.Scan(&info.EventType, &info.Count); err != nil {
			return nil, fmt.Errorf("scan event type row: %w", err)
		}
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("event type rows: %w", err)
	}
	return out, nil
}
