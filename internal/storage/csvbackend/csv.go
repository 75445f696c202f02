// Package csvbackend appends fetch records to a CSV file with a header row.
package csvbackend

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/FranksOps/internsift/internal/storage"
)

// ensure csvBackend implements storage.Backend
var _ storage.Backend = (*csvBackend)(nil)

type csvBackend struct {
	mu   sync.Mutex
	file *os.File
}

// headers defines the CSV column order
var headers = []string{
	"id",
	"run_id",
	"source",
	"terms",
	"location",
	"max_results",
	"outcome",
	"status_code",
	"detected_bot",
	"detection_src",
	"fetched",
	"matched",
	"duration_ms",
	"created_at",
	"error",
}

// New opens filePath for appending, creating it and writing the header
// row if needed.
func New(filePath string) (storage.Backend, error) {
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("csvbackend: open: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("csvbackend: stat: %w", err)
	}

	if info.Size() == 0 {
		w := csv.NewWriter(f)
		if err := w.Write(headers); err != nil {
			f.Close()
			return nil, fmt.Errorf("csvbackend: write header: %w", err)
		}
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return nil, fmt.Errorf("csvbackend: write header: %w", err)
		}
	}

	return &csvBackend{file: f}, nil
}

func (b *csvBackend) Save(ctx context.Context, r *storage.FetchRecord) error {
	record := []string{
		r.ID,
		r.RunID,
		r.Source,
		r.Terms,
		r.Location,
		strconv.Itoa(r.MaxResults),
		r.Outcome,
		strconv.Itoa(r.StatusCode),
		strconv.FormatBool(r.DetectedBot),
		r.DetectionSrc,
		strconv.Itoa(r.Fetched),
		strconv.Itoa(r.Matched),
		strconv.FormatInt(r.Duration.Milliseconds(), 10),
		r.CreatedAt.Format(time.RFC3339Nano),
		r.Error,
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("csvbackend: seek: %w", err)
	}

	w := csv.NewWriter(b.file)
	if err := w.Write(record); err != nil {
		return fmt.Errorf("csvbackend: write %s: %w", r.ID, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("csvbackend: write %s: %w", r.ID, err)
	}
	return nil
}

func (b *csvBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.FetchRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("csvbackend: seek: %w", err)
	}
	defer func() {
		// Restore pointer to end for writing
		_, _ = b.file.Seek(0, io.SeekEnd)
	}()

	r := csv.NewReader(b.file)

	if _, err := r.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return []*storage.FetchRecord{}, nil
		}
		return nil, fmt.Errorf("csvbackend: read header: %w", err)
	}

	var matched []*storage.FetchRecord
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csvbackend: read: %w", err)
		}
		if len(row) != len(headers) {
			continue // skip malformed rows
		}

		rec := parseRow(row)
		if filter.Match(rec) {
			matched = append(matched, rec)
		}
	}

	return filter.Page(matched), nil
}

// parseRow maps a row in headers order. Unparsable numbers read as zero.
func parseRow(row []string) *storage.FetchRecord {
	maxResults, _ := strconv.Atoi(row[5])
	statusCode, _ := strconv.Atoi(row[7])
	detectedBot, _ := strconv.ParseBool(row[8])
	fetched, _ := strconv.Atoi(row[10])
	matched, _ := strconv.Atoi(row[11])
	durationMs, _ := strconv.ParseInt(row[12], 10, 64)
	createdAt, _ := time.Parse(time.RFC3339Nano, row[13])

	return &storage.FetchRecord{
		ID:           row[0],
		RunID:        row[1],
		Source:       row[2],
		Terms:        row[3],
		Location:     row[4],
		MaxResults:   maxResults,
		Outcome:      row[6],
		StatusCode:   statusCode,
		DetectedBot:  detectedBot,
		DetectionSrc: row[9],
		Fetched:      fetched,
		Matched:      matched,
		Duration:     time.Duration(durationMs) * time.Millisecond,
		CreatedAt:    createdAt,
		Error:        row[14],
	}
}

func (b *csvBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.file.Close()
}
