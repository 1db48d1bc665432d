package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/mmcdole/gofeed"

	"linkdispatch/internal/model"
)

// Feed configures one RSS feed exposed as a message source. The id is
// assigned in configuration and must stay stable across runs, since it
// keys the checkpoint.
type Feed struct {
	ID    int64  `yaml:"id"`
	Title string `yaml:"title"`
	URL   string `yaml:"url"`
}

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// RSSClient adapts a set of RSS feeds to the Client interface. Item
// publication times stand in for message ids, which preserves the
// monotonic, source-scoped ordering the dispatcher relies on.
type RSSClient struct {
	feeds  []Feed
	client HTTPClient
	parser *gofeed.Parser
}

// NewRSS creates a client over the configured feeds.
func NewRSS(feeds []Feed, client HTTPClient) *RSSClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &RSSClient{
		feeds:  feeds,
		client: client,
		parser: gofeed.NewParser(),
	}
}

// ListSources returns every configured feed.
func (c *RSSClient) ListSources(_ context.Context) ([]model.Source, error) {
	sources := make([]model.Source, 0, len(c.feeds))
	for _, f := range c.feeds {
		sources = append(sources, model.Source{ID: f.ID, Title: f.Title})
	}
	return sources, nil
}

// ResolveSource looks the id up among the configured feeds.
func (c *RSSClient) ResolveSource(_ context.Context, id int64) (model.Source, error) {
	for _, f := range c.feeds {
		if f.ID == id {
			return model.Source{ID: f.ID, Title: f.Title}, nil
		}
	}
	return model.Source{}, fmt.Errorf("unknown feed id %d", id)
}

// Messages fetches the feed and returns its items as messages in ascending
// id order, skipping anything at or below minID.
func (c *RSSClient) Messages(ctx context.Context, src model.Source, minID int64) (Iterator, error) {
	var feed *Feed
	for i := range c.feeds {
		if c.feeds[i].ID == src.ID {
			feed = &c.feeds[i]
			break
		}
	}
	if feed == nil {
		return nil, fmt.Errorf("unknown feed id %d", src.ID)
	}

	parsed, err := c.fetch(ctx, feed.URL)
	if err != nil {
		return nil, err
	}

	var msgs []model.RawMessage
	for _, item := range parsed.Items {
		if item.PublishedParsed == nil {
			continue
		}
		id := item.PublishedParsed.Unix()
		if id <= minID {
			continue
		}
		sender := parsed.Title
		if len(item.Authors) > 0 && item.Authors[0].Name != "" {
			sender = item.Authors[0].Name
		}
		text := strings.TrimSpace(item.Title + "\n" + item.Link)
		msgs = append(msgs, model.RawMessage{
			ID:     id,
			Time:   item.PublishedParsed.UTC(),
			Sender: sender,
			Text:   text,
		})
	}
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].ID < msgs[j].ID })

	return &sliceIterator{msgs: msgs}, nil
}

// Close is a no-op; the HTTP client is shared.
func (c *RSSClient) Close() error { return nil }

func (c *RSSClient) fetch(ctx context.Context, url string) (*gofeed.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "linkdispatch/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 5*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	feed, err := c.parser.ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return feed, nil
}

type sliceIterator struct {
	msgs []model.RawMessage
	pos  int
}

func (it *sliceIterator) Next(_ context.Context) (model.RawMessage, error) {
	if it.pos >= len(it.msgs) {
		return model.RawMessage{}, io.EOF
	}
	msg := it.msgs[it.pos]
	it.pos++
	return msg, nil
}
