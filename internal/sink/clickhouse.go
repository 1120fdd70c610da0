package sink

import (
	"context"
	"fmt"
	"log"
	"sort"

	"AnonVitals/internal/config"
	"AnonVitals/internal/model"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

const createTableStatement = `
CREATE TABLE IF NOT EXISTS anonymized_samples (
    WindowStart DateTime,
    WindowEnd   DateTime,
    Timestamp   DateTime64(3),
    SourceID    String,
    Field       String,
    Value       Nullable(Float64),
    Token       String,
    Level       UInt8,
    Suppressed  UInt8,
    KValue      UInt16
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(Timestamp)
ORDER BY (Field, Timestamp);
`

func init() {
	Register("clickhouse", func(def config.SinkDef) (model.Sink, error) {
		return NewClickHouseSink(def.Name, def.ClickHouse)
	})
}

// ClickHouseSink stores anonymized batches in a ClickHouse table, one row
// per sample field.
type ClickHouseSink struct {
	name string
	conn driver.Conn
}

// NewClickHouseSink connects to ClickHouse and ensures the table exists.
func NewClickHouseSink(name string, cfg config.ClickHouseConfig) (*ClickHouseSink, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}
	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}
	if err := conn.Exec(context.Background(), createTableStatement); err != nil {
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	log.Println("Successfully connected to ClickHouse and ensured table exists.")

	return &ClickHouseSink{name: name, conn: conn}, nil
}

func (s *ClickHouseSink) Name() string { return s.name }

// Write inserts the batch as one ClickHouse insert batch. Suppressed marker
// records become a single row with a null value.
func (s *ClickHouseSink) Write(ctx context.Context, batch *model.AnonymizedBatch) (int, error) {
	insert, err := s.conn.PrepareBatch(ctx, "INSERT INTO anonymized_samples")
	if err != nil {
		return 0, fmt.Errorf("failed to prepare batch: %w", err)
	}

	for _, sample := range batch.Samples {
		if sample.Suppressed {
			if err := insert.Append(
				batch.WindowStart, batch.WindowEnd, sample.Timestamp, sample.SourceID,
				"", nil, "*", uint8(sample.Level), uint8(1), uint16(batch.KValue),
			); err != nil {
				return 0, fmt.Errorf("failed to append suppressed row: %w", err)
			}
			continue
		}
		for _, field := range sortedFieldNames(sample.Fields) {
			if err := insert.Append(
				batch.WindowStart, batch.WindowEnd, sample.Timestamp, sample.SourceID,
				field, sample.Fields[field], sample.Tokens[field], uint8(sample.Level),
				uint8(0), uint16(batch.KValue),
			); err != nil {
				return 0, fmt.Errorf("failed to append row: %w", err)
			}
		}
	}

	if err := insert.Send(); err != nil {
		return 0, fmt.Errorf("failed to send batch: %w", err)
	}

	return len(batch.Samples), nil
}

// Close releases the ClickHouse connection.
func (s *ClickHouseSink) Close() error {
	return s.conn.Close()
}

func sortedFieldNames(fields map[string]float64) []string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
