package db

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"

	"funnel-analytics-service/internal/config"
)

// NewConnection opens a native-protocol ClickHouse connection from the DSN
// in config and verifies it with a ping.
func NewConnection(ctx context.Context, cfg *config.Config) (clickhouse.Conn, error) {
	options, err := clickhouse.ParseDSN(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse clickhouse dsn: %w", err)
	}

	options.Compression = &clickhouse.Compression{Method: clickhouse.CompressionLZ4}
	options.DialTimeout = 5 * time.Second
	options.ClientInfo = clickhouse.ClientInfo{
		Products: []struct {
			Name    string
			Version string
		}{{Name: "funnel-analytics-service", Version: "1.0.0"}},
	}

	conn, err := clickhouse.Open(options)
	if err != nil {
		return nil, fmt.Errorf("connect clickhouse: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := conn.Ping(pingCtx); err != nil {
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}

	if cfg.AppMode == "benchmark" {
		log.Printf("clickhouse connected: dial_timeout=%s compression=lz4", options.DialTimeout)
	}

	return conn, nil
}
