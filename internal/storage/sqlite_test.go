package storage

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"linkdispatch/internal/dispatcher"
	"linkdispatch/internal/model"
)

var ignoreTimestamps = cmpopts.IgnoreFields(Delivery{}, "ID", "CreatedAt")

func newTestDB(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRecordAndListDeliveries(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	recs := []model.Record{
		{
			MessageID:   101,
			Time:        "2024-03-10 09:30:05",
			Sender:      "alice",
			Title:       "First Post",
			URL:         "https://example.com/1",
			Content:     "see https://example.com/1",
			SourceGroup: "Dev Chat",
			SourceID:    "42",
		},
		{
			MessageID:   102,
			Time:        "2024-03-10 09:31:00",
			Sender:      "bob",
			URL:         "https://example.com/2",
			Content:     "and https://example.com/2",
			SourceGroup: "Dev Chat",
			SourceID:    "42",
		},
	}
	for _, rec := range recs {
		if err := s.RecordDelivery(ctx, "links", "out.csv", rec); err != nil {
			t.Fatalf("record delivery: %v", err)
		}
	}

	got, err := s.RecentDeliveries(ctx, 10)
	if err != nil {
		t.Fatalf("recent deliveries: %v", err)
	}

	want := []Delivery{
		{
			Task:        "links",
			Target:      "out.csv",
			MessageID:   102,
			SourceID:    "42",
			SourceGroup: "Dev Chat",
			Sender:      "bob",
			URL:         "https://example.com/2",
			Content:     "and https://example.com/2",
			MessageTime: "2024-03-10 09:31:00",
		},
		{
			Task:        "links",
			Target:      "out.csv",
			MessageID:   101,
			SourceID:    "42",
			SourceGroup: "Dev Chat",
			Sender:      "alice",
			Title:       "First Post",
			URL:         "https://example.com/1",
			Content:     "see https://example.com/1",
			MessageTime: "2024-03-10 09:30:05",
		},
	}
	if diff := cmp.Diff(want, got, ignoreTimestamps); diff != "" {
		t.Errorf("RecentDeliveries() mismatch (-want +got):\n%s", diff)
	}
}

func TestRecentDeliveriesLimit(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	for i := int64(1); i <= 5; i++ {
		rec := model.Record{MessageID: i, SourceID: "1", URL: "https://example.com"}
		if err := s.RecordDelivery(ctx, "t", "out.txt", rec); err != nil {
			t.Fatalf("record delivery: %v", err)
		}
	}

	got, err := s.RecentDeliveries(ctx, 2)
	if err != nil {
		t.Fatalf("recent deliveries: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d deliveries, want 2", len(got))
	}
	if got[0].MessageID != 5 || got[1].MessageID != 4 {
		t.Errorf("deliveries not newest first: %d, %d", got[0].MessageID, got[1].MessageID)
	}
}

func TestRecordCycle(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	stats := dispatcher.CycleStats{
		StartedAt: time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC),
		Sources:   3,
		Tasks:     2,
		Processed: 40,
		Delivered: 7,
		Skipped:   5,
		Failed:    1,
	}
	if err := s.RecordCycle(ctx, stats); err != nil {
		t.Fatalf("record cycle: %v", err)
	}

	var processed, delivered, failed int64
	err := s.db.QueryRowContext(ctx,
		`SELECT processed, delivered, failed FROM cycles WHERE id = 1`,
	).Scan(&processed, &delivered, &failed)
	if err != nil {
		t.Fatalf("query cycle: %v", err)
	}
	if processed != 40 || delivered != 7 || failed != 1 {
		t.Errorf("cycle row = (%d, %d, %d), want (40, 7, 1)", processed, delivered, failed)
	}
}
