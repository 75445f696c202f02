package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/FranksOps/internsift/internal/storage"
	"github.com/google/uuid"
)

func TestPostgresBackend(t *testing.T) {
	// Only run this test if INTERNSIFT_TEST_PG_DSN is set
	dsn := os.Getenv("INTERNSIFT_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("Skipping Postgres backend test: INTERNSIFT_TEST_PG_DSN not set")
	}

	ctx := context.Background()
	b, err := New(ctx, dsn)
	if err != nil {
		t.Fatalf("Failed to create Postgres backend: %v", err)
	}
	defer b.Close()

	now := time.Now().UTC()
	runID := uuid.NewString()

	rec := &storage.FetchRecord{
		ID:           uuid.NewString(),
		RunID:        runID,
		Source:       "glassdoor",
		Terms:        "data intern",
		Location:     "Chicago",
		MaxResults:   10,
		Outcome:      "blocked",
		StatusCode:   403,
		DetectedBot:  true,
		DetectionSrc: "Cloudflare",
		Duration:     50 * time.Millisecond,
		CreatedAt:    now,
		Error:        "glassdoor: source unavailable (status 403)",
	}

	if err := b.Save(ctx, rec); err != nil {
		t.Fatalf("Failed to save record: %v", err)
	}

	results, err := b.Query(ctx, storage.Filter{RunID: runID})
	if err != nil {
		t.Fatalf("Failed to query records: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(results))
	}

	got := results[0]
	if got.ID != rec.ID {
		t.Errorf("Expected ID %s, got %s", rec.ID, got.ID)
	}
	if got.Source != rec.Source || got.Terms != rec.Terms || got.Location != rec.Location {
		t.Errorf("Expected %s/%s/%s, got %s/%s/%s", rec.Source, rec.Terms, rec.Location, got.Source, got.Terms, got.Location)
	}
	if got.StatusCode != rec.StatusCode {
		t.Errorf("Expected StatusCode %d, got %d", rec.StatusCode, got.StatusCode)
	}
	if got.Duration.Milliseconds() != rec.Duration.Milliseconds() {
		t.Errorf("Expected Duration %v, got %v", rec.Duration, got.Duration)
	}
	if got.DetectedBot != rec.DetectedBot || got.DetectionSrc != rec.DetectionSrc {
		t.Errorf("Expected detection %v/%s, got %v/%s", rec.DetectedBot, rec.DetectionSrc, got.DetectedBot, got.DetectionSrc)
	}

	// Postgres keeps microseconds; seconds are enough here.
	if got.CreatedAt.Unix() != rec.CreatedAt.Unix() {
		t.Errorf("Expected CreatedAt %v, got %v", rec.CreatedAt, got.CreatedAt)
	}
	if got.Error != rec.Error {
		t.Errorf("Expected Error %s, got %s", rec.Error, got.Error)
	}

	past := now.Add(-1 * time.Hour)
	recent, err := b.Query(ctx, storage.Filter{Source: "glassdoor", Since: &past, Limit: 1})
	if err != nil {
		t.Fatalf("Failed to query with Since: %v", err)
	}
	if len(recent) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(recent))
	}
}
