// Package source defines the message-source collaborator contract. The
// actual chat-protocol client lives outside this codebase; the dispatcher
// only depends on the interfaces here. An RSS-backed implementation is
// provided so the binary runs end to end without it.
package source

import (
	"context"
	"fmt"
	"time"

	"linkdispatch/internal/model"
)

// RateLimitError is returned by a collaborator when the upstream asks the
// caller to back off. The dispatcher sleeps for Wait and resumes the same
// source.
type RateLimitError struct {
	Wait time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry in %s", e.Wait)
}

// Iterator yields the messages of one source oldest-first. Next returns
// io.EOF once the stream is drained. After a *RateLimitError the iterator
// remains valid and Next may be called again.
type Iterator interface {
	Next(ctx context.Context) (model.RawMessage, error)
}

// Client is the message-source collaborator.
type Client interface {
	// ListSources returns every group/channel-like entity visible to the
	// client. Used to expand the wildcard source selector.
	ListSources(ctx context.Context) ([]model.Source, error)

	// ResolveSource resolves a single numeric id to an entity.
	ResolveSource(ctx context.Context, id int64) (model.Source, error)

	// Messages opens an ordered stream of messages with id strictly
	// greater than minID.
	Messages(ctx context.Context, src model.Source, minID int64) (Iterator, error)

	// Close releases any connection held by the client.
	Close() error
}
