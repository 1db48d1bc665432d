package monitor

import (
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"
)

func TestCountersAndSnapshot(t *testing.T) {
	m := New()
	m.SetStatus("running")
	m.Add("messages_processed", 3)
	m.Add("messages_processed", 2)
	m.SetGauge("tasks_active", 4)
	m.MarkSync(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))

	s := m.Snapshot()
	if s.Status != "running" {
		t.Errorf("status = %q", s.Status)
	}
	if s.MessagesProcessed != 5 {
		t.Errorf("messages_processed = %d, want 5", s.MessagesProcessed)
	}
	if s.TasksActive != 4 {
		t.Errorf("tasks_active = %d, want 4", s.TasksActive)
	}
	if s.CyclesCompleted != 1 {
		t.Errorf("cycles_completed = %d, want 1", s.CyclesCompleted)
	}
	if s.LastSyncTime != "2024-05-01T12:00:00Z" {
		t.Errorf("last_sync_time = %q", s.LastSyncTime)
	}
}

func TestLastSyncDefaultsToNever(t *testing.T) {
	if got := New().Snapshot().LastSyncTime; got != "never" {
		t.Errorf("last_sync_time = %q, want never", got)
	}
}

func TestLogRingBoundedNewestFirst(t *testing.T) {
	m := New()
	for i := 0; i < maxLogLines+20; i++ {
		m.AddLog(LogLine{Message: fmt.Sprintf("line %d", i)})
	}

	logs := m.Snapshot().Logs
	if len(logs) != maxLogLines {
		t.Fatalf("ring holds %d lines, want %d", len(logs), maxLogLines)
	}
	if logs[0].Message != fmt.Sprintf("line %d", maxLogLines+19) {
		t.Errorf("newest line = %q", logs[0].Message)
	}
	if logs[len(logs)-1].Message != "line 20" {
		t.Errorf("oldest kept line = %q", logs[len(logs)-1].Message)
	}
}

func TestHandlerCapturesRecords(t *testing.T) {
	m := New()
	log := slog.New(NewHandler(slog.NewTextHandler(io.Discard, nil), m))

	log.Info("cycle finished", "sources", 2)
	log.Warn("rate limited")

	logs := m.Snapshot().Logs
	if len(logs) != 2 {
		t.Fatalf("captured %d lines, want 2", len(logs))
	}
	if logs[0].Message != "rate limited" || logs[0].Level != "WARN" {
		t.Errorf("newest line = %+v", logs[0])
	}
}
