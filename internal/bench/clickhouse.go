package bench

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// ClickHouseConfig configures optional persistence of aggregated benchmark
// runs, mirroring the DSN/table shape the teacher's observability backends
// use for their own ClickHouse sinks.
type ClickHouseConfig struct {
	DSN            string
	Table          string
	TimeoutSeconds int
}

// ClickHouseStore persists RunResult rows to ClickHouse for trend tracking
// across benchmark invocations.
type ClickHouseStore struct {
	conn    clickhouse.Conn
	table   string
	timeout time.Duration
}

// NewClickHouseStore opens a ClickHouse connection and ensures the results
// table exists. Returns (nil, nil) if cfg.DSN is empty, so callers can treat
// persistence as optional without a nil-check branch at every call site.
func NewClickHouseStore(ctx context.Context, cfg ClickHouseConfig) (*ClickHouseStore, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, nil
	}

	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse clickhouse dsn: %w", err)
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open clickhouse connection: %w", err)
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	table := strings.TrimSpace(cfg.Table)
	if table == "" {
		table = "rlm_bench_runs"
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := conn.Ping(pingCtx); err != nil {
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}

	store := &ClickHouseStore{conn: conn, table: table, timeout: timeout}
	if err := store.ensureTable(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *ClickHouseStore) ensureTable(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		run_at DateTime,
		batch_name String,
		passed UInt8,
		iterations UInt32,
		sub_calls UInt32,
		total_tokens UInt32,
		duration_ms UInt32,
		error String
	) ENGINE = MergeTree() ORDER BY run_at`, s.table)
	return s.conn.Exec(ctx, ddl)
}

// Insert persists one batch of results tagged with batchName.
func (s *ClickHouseStore) Insert(ctx context.Context, batchName string, runAt time.Time, results []RunResult) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	insert := fmt.Sprintf(`INSERT INTO %s (run_at, batch_name, passed, iterations, sub_calls, total_tokens, duration_ms, error) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, s.table)
	for _, r := range results {
		errMsg := ""
		if r.Err != nil {
			errMsg = r.Err.Error()
		}
		passed := uint8(0)
		if r.Passed {
			passed = 1
		}
		if err := s.conn.Exec(ctx, insert,
			runAt, batchName, passed, uint32(r.Iterations), uint32(r.SubCalls),
			uint32(r.TokenUsage.TotalTokens), uint32(r.Duration.Milliseconds()), errMsg,
		); err != nil {
			return fmt.Errorf("insert bench run row: %w", err)
		}
	}
	return nil
}

// Close releases the underlying ClickHouse connection.
func (s *ClickHouseStore) Close() error {
	return s.conn.Close()
}
