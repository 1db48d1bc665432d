// Package storage persists the delivery archive: every record routed to an
// output target and a summary row per completed sync cycle.
package storage

import (
	"context"
	"time"

	"linkdispatch/internal/dispatcher"
	"linkdispatch/internal/model"
)

// Delivery is one archived record delivery.
type Delivery struct {
	ID          int64     `json:"id"`
	Task        string    `json:"task"`
	Target      string    `json:"target"`
	MessageID   int64     `json:"message_id"`
	SourceID    string    `json:"source_id"`
	SourceGroup string    `json:"source_group"`
	Sender      string    `json:"sender"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Content     string    `json:"content"`
	MessageTime string    `json:"message_time"`
	CreatedAt   time.Time `json:"created_at"`
}

// Archive is the persistence interface for delivered records and cycle
// summaries. It extends the dispatcher's write-side with the queries the
// admin API reads.
type Archive interface {
	RecordDelivery(ctx context.Context, task, target string, rec model.Record) error
	RecordCycle(ctx context.Context, stats dispatcher.CycleStats) error
	RecentDeliveries(ctx context.Context, limit int) ([]Delivery, error)
	Close() error
}
