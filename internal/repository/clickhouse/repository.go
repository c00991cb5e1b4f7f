package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"

	"github.com/BarkinBalci/capi-relay-service/internal/domain"
	"github.com/BarkinBalci/capi-relay-service/internal/repository"
)

// GroupBy values accepted by GetMetrics
var groupByExpressions = map[string]struct {
	selectField string
	groupBy     string
	orderBy     string
}{
	"device_type": {"device_type", "GROUP BY device_type", "ORDER BY total_count DESC"},
	"country":     {"country", "GROUP BY country", "ORDER BY total_count DESC"},
	"utm_source":  {"utm_source", "GROUP BY utm_source", "ORDER BY total_count DESC"},
	"hour": {
		"formatDateTime(toStartOfHour(toDateTime(timestamp)), '%Y-%m-%d %H:00:00')",
		"GROUP BY toStartOfHour(toDateTime(timestamp))",
		"ORDER BY group_value ASC",
	},
	"day": {
		"formatDateTime(toStartOfDay(toDateTime(timestamp)), '%Y-%m-%d')",
		"GROUP BY toStartOfDay(toDateTime(timestamp))",
		"ORDER BY group_value ASC",
	},
}

// ValidGroupBy reports whether GetMetrics supports the grouping
func ValidGroupBy(groupBy string) bool {
	_, ok := groupByExpressions[groupBy]
	return ok
}

// Repository implements repository.ArchiveRepository for ClickHouse
type Repository struct {
	client *Client
	log    *zap.Logger
}

// NewRepository creates a new ClickHouse archive repository
func NewRepository(client *Client, log *zap.Logger) *Repository {
	return &Repository{
		client: client,
		log:    log,
	}
}

// InitSchema creates the archive table. ReplacingMergeTree collapses
// redelivered export messages carrying the same event id.
func (r *Repository) InitSchema(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS tracked_events (
		event_id String,
		app_id LowCardinality(String),
		event_name LowCardinality(String),
		session_id String,
		visitor_id String,
		device_type LowCardinality(String),
		country LowCardinality(String),
		utm_source LowCardinality(String),
		value Float64,
		currency LowCardinality(String),
		timestamp Int64,
		custom_data String,
		processed_at DateTime64(3) DEFAULT now64(3),
		version UInt64
	) ENGINE = ReplacingMergeTree(version)
	PRIMARY KEY (app_id, event_id)
	ORDER BY (app_id, event_id, timestamp)
	PARTITION BY toYYYYMM(toDateTime(timestamp))
	SETTINGS index_granularity = 8192
	`

	if err := r.client.Conn().Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create tracked_events table: %w", err)
	}

	r.log.Info("ClickHouse archive schema initialized successfully")
	return nil
}

// InsertBatch inserts a batch of archived events
func (r *Repository) InsertBatch(ctx context.Context, events []*domain.ArchivedEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	batch, err := r.client.Conn().PrepareBatch(ctx, "INSERT INTO tracked_events")
	if err != nil {
		return 0, fmt.Errorf("failed to prepare batch: %w", err)
	}

	insertedCount := 0
	for _, event := range events {
		if event.Version == 0 {
			event.Version = uint64(time.Now().UnixNano())
		}
		customData := event.CustomData
		if customData == "" {
			customData = "{}"
		}

		err := batch.Append(
			event.EventID,
			event.AppID,
			event.EventName,
			event.SessionID,
			event.VisitorID,
			event.DeviceType,
			event.Country,
			event.UTMSource,
			event.Value,
			event.Currency,
			event.Timestamp,
			customData,
			event.ProcessedAt,
			event.Version,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to append event to batch: %w", err)
		}
		insertedCount++
	}

	if err := batch.Send(); err != nil {
		return 0, fmt.Errorf("failed to send batch: %w", err)
	}

	return insertedCount, nil
}

// Ping checks if the ClickHouse connection is alive
func (r *Repository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx)
}

// Close closes the ClickHouse connection
func (r *Repository) Close() error {
	return r.client.Close()
}

// GetMetrics retrieves tenant-scoped aggregates from the archive
func (r *Repository) GetMetrics(ctx context.Context, query repository.MetricsQuery) (*repository.MetricsResult, error) {
	result := &repository.MetricsResult{
		Groups: []repository.MetricsGroupResult{},
	}

	whereClause := "WHERE app_id = ? AND event_name = ? AND timestamp >= ? AND timestamp <= ?"
	args := []any{query.AppID, query.EventName, query.From, query.To}

	overallQuery := fmt.Sprintf(`
		SELECT
			count() AS total_count,
			uniq(visitor_id) AS unique_count,
			sum(value) AS revenue
		FROM tracked_events FINAL
		%s
	`, whereClause)

	row := r.client.Conn().QueryRow(ctx, overallQuery, args...)
	if err := row.Scan(&result.TotalCount, &result.UniqueCount, &result.Revenue); err != nil {
		return nil, fmt.Errorf("failed to query overall metrics: %w", err)
	}

	if query.GroupBy == "" {
		return result, nil
	}

	expr, ok := groupByExpressions[query.GroupBy]
	if !ok {
		return nil, fmt.Errorf("unsupported group_by value: %s", query.GroupBy)
	}

	groupedQuery := fmt.Sprintf(`
		SELECT
			%s AS group_value,
			count() AS total_count
		FROM tracked_events FINAL
		%s
		%s
		%s
	`, expr.selectField, whereClause, expr.groupBy, expr.orderBy)

	rows, err := r.client.Conn().Query(ctx, groupedQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query grouped metrics: %w", err)
	}
	defer func(rows driver.Rows) {
		if err := rows.Close(); err != nil {
			r.log.Error("Failed to close grouped metrics rows", zap.Error(err))
		}
	}(rows)

	for rows.Next() {
		var group repository.MetricsGroupResult
		if err := rows.Scan(&group.GroupValue, &group.TotalCount); err != nil {
			return nil, fmt.Errorf("failed to scan grouped metrics row: %w", err)
		}
		result.Groups = append(result.Groups, group)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating grouped metrics rows: %w", err)
	}

	return result, nil
}
