package sink

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"AnonVitals/internal/config"
	"AnonVitals/internal/model"

	"github.com/google/uuid"
)

func init() {
	Register("csv", func(def config.SinkDef) (model.Sink, error) {
		return NewCSVSink(def.Name, def.CSV)
	})
}

// CSVSink exports each batch as one delimited file inside a run-scoped
// directory, so repeated runs over the same range never overwrite each
// other.
type CSVSink struct {
	name string
	dir  string
}

// NewCSVSink creates the run directory under the configured output dir.
func NewCSVSink(name string, cfg config.CSVConfig) (*CSVSink, error) {
	if cfg.OutputDir == "" {
		return nil, model.NewConfigurationError("csv sink requires output_dir")
	}
	dir := filepath.Join(cfg.OutputDir, "run_"+uuid.NewString()[:8])
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &CSVSink{name: name, dir: dir}, nil
}

func (s *CSVSink) Name() string { return s.name }

// Write exports the batch to k<k>_anonymized_<window-start>.csv. Columns are
// the fixed sample attributes followed by a value and token column per field
// present anywhere in the batch, in name order.
func (s *CSVSink) Write(ctx context.Context, batch *model.AnonymizedBatch) (int, error) {
	fields := batchFieldNames(batch)

	header := []string{"timestamp", "source_id", "level", "suppressed"}
	for _, f := range fields {
		header = append(header, f, f+"_token")
	}

	path := filepath.Join(s.dir, fmt.Sprintf("k%d_anonymized_%s.csv",
		batch.KValue, batch.WindowStart.UTC().Format("20060102T150405Z")))
	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create csv file: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write(header); err != nil {
		return 0, fmt.Errorf("failed to write header: %w", err)
	}

	for _, sample := range batch.Samples {
		row := []string{
			sample.Timestamp.UTC().Format(time.RFC3339Nano),
			sample.SourceID,
			strconv.Itoa(sample.Level),
			strconv.FormatBool(sample.Suppressed),
		}
		for _, f := range fields {
			if v, ok := sample.Fields[f]; ok {
				row = append(row, strconv.FormatFloat(v, 'g', -1, 64))
			} else {
				row = append(row, "")
			}
			row = append(row, sample.Tokens[f])
		}
		if err := w.Write(row); err != nil {
			return 0, fmt.Errorf("failed to write row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return 0, fmt.Errorf("failed to flush csv: %w", err)
	}
	return len(batch.Samples), nil
}

// Close is a no-op; files are closed per window.
func (s *CSVSink) Close() error { return nil }

// Dir returns the run-scoped output directory.
func (s *CSVSink) Dir() string { return s.dir }

func batchFieldNames(batch *model.AnonymizedBatch) []string {
	seen := make(map[string]bool)
	for _, sample := range batch.Samples {
		for f := range sample.Fields {
			seen[f] = true
		}
		for f := range sample.Tokens {
			seen[f] = true
		}
	}
	names := make([]string, 0, len(seen))
	for f := range seen {
		names = append(names, f)
	}
	sort.Strings(names)
	return names
}
