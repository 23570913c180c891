package db

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// RunMigrations ensures required tables exist. This keeps the service
// self-contained without an external migration step; ingestion writes into
// these tables from outside the service.
func RunMigrations(ctx context.Context, conn clickhouse.Conn) error {
	statements := []string{`
CREATE TABLE IF NOT EXISTS raw_events
(
	event_id              String,
	session_id            String,
	user_id               String,
	timestamp             DateTime64(3, 'UTC'),
	event_type            String,
	funnel_step           UInt8 DEFAULT 0,
	page_url              String DEFAULT '',
	page_category         String DEFAULT '',
	element_selector      String DEFAULT '',
	device_type           String DEFAULT '',
	guest_segment         String DEFAULT '',
	location              String DEFAULT '',
	price_viewed_amount   Float64 DEFAULT 0,
	time_on_page_seconds  Float64 DEFAULT 0
)
ENGINE = MergeTree
PARTITION BY toYYYYMMDD(timestamp)
ORDER BY (session_id, timestamp)
SETTINGS index_granularity = 8192;
`, `
CREATE TABLE IF NOT EXISTS sessions
(
	session_id         String,
	user_id            String,
	started_at         DateTime64(3, 'UTC'),
	device_type        String DEFAULT '',
	guest_segment      String DEFAULT '',
	final_location     String DEFAULT '',
	converted          UInt8 DEFAULT 0,
	final_total_price  Float64 DEFAULT 0,
	potential_revenue  Float64 DEFAULT 0
)
ENGINE = ReplacingMergeTree
ORDER BY (session_id);
`, `
CREATE TABLE IF NOT EXISTS guest_segment_benchmarks
(
	date               Date,
	guest_segment      String,
	avg_booking_value  Float64
)
ENGINE = MergeTree
ORDER BY (date, guest_segment);
`, `
CREATE TABLE IF NOT EXISTS friction_points
(
	associated_step                UInt8,
	element_selector               String,
	total_interactions             UInt64,
	rage_click_count               UInt64,
	drop_offs_after_interaction    UInt64,
	sessions_affected              UInt64
)
ENGINE = MergeTree
ORDER BY (associated_step, element_selector);
`}

	for _, stmt := range statements {
		if err := conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
	}
	return nil
}
