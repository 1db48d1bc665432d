// Package dispatcher implements the sync engine: per cycle it discovers
// sources, pulls new messages past each source's checkpoint, enriches and
// routes matching records to output targets, and advances the checkpoint.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"linkdispatch/internal/checkpoint"
	"linkdispatch/internal/config"
	"linkdispatch/internal/export"
	"linkdispatch/internal/filter"
	"linkdispatch/internal/metadata"
	"linkdispatch/internal/model"
	"linkdispatch/internal/monitor"
	"linkdispatch/internal/source"
	"linkdispatch/internal/urlnorm"
)

// Resolver is the metadata enrichment dependency.
type Resolver interface {
	Resolve(ctx context.Context, url string) metadata.Result
}

// Archive persists delivered records and cycle summaries. Archive failures
// never block delivery.
type Archive interface {
	RecordDelivery(ctx context.Context, task, target string, rec model.Record) error
	RecordCycle(ctx context.Context, stats CycleStats) error
}

// CycleStats summarizes one completed sync cycle.
type CycleStats struct {
	StartedAt time.Time
	Sources   int
	Tasks     int
	Processed int64
	Delivered int64
	Skipped   int64
	Failed    int
}

// Cycle is the configuration snapshot one sync cycle runs under. It is
// built from a validated config reload, so a partially applied document is
// never observable mid-cycle.
type Cycle struct {
	Tasks            []model.Task
	Normalizer       *urlnorm.Normalizer
	Enrich           config.EnrichPolicy
	ShortLinkDomains []string
}

// Engine orchestrates sync cycles over a message-source client.
type Engine struct {
	client      source.Client
	checkpoints *checkpoint.Store
	exporters   *export.Manager
	resolver    Resolver
	archive     Archive
	mon         *monitor.Monitor
	log         *slog.Logger

	// lastTargets tracks the output targets of the previous cycle so
	// exporters are only rebuilt when configuration changed them.
	lastTargets map[string]bool
}

// New creates an Engine. The archive may be nil.
func New(client source.Client, cp *checkpoint.Store, exporters *export.Manager,
	resolver Resolver, archive Archive, mon *monitor.Monitor, log *slog.Logger) *Engine {
	return &Engine{
		client:      client,
		checkpoints: cp,
		exporters:   exporters,
		resolver:    resolver,
		archive:     archive,
		mon:         mon,
		log:         log,
	}
}

// RunCycle executes one full sync cycle. Per-source failures are logged
// and do not abort the remaining sources; only discovery-level failures
// propagate.
func (e *Engine) RunCycle(ctx context.Context, cycle Cycle) error {
	if len(cycle.Tasks) == 0 {
		e.log.Info("no enabled tasks, skipping cycle")
		return nil
	}

	stats := CycleStats{StartedAt: time.Now(), Tasks: len(cycle.Tasks)}
	e.mon.SetGauge("tasks_active", int64(len(cycle.Tasks)))

	e.refreshTargets(cycle.Tasks)
	if err := e.prepareTargets(cycle.Tasks); err != nil {
		return err
	}

	sources, err := e.discoverSources(ctx, cycle.Tasks)
	if err != nil {
		return fmt.Errorf("discover sources: %w", err)
	}
	stats.Sources = len(sources)
	e.mon.SetGauge("sources_active", int64(len(sources)))

	for _, src := range sources {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := e.syncSource(ctx, src, cycle, &stats); err != nil {
			stats.Failed++
			e.log.Error("sync source failed", "source", src.Title, "source_id", src.SourceID(), "error", err)
		}
	}

	e.mon.MarkSync(time.Now())
	if e.archive != nil {
		if err := e.archive.RecordCycle(ctx, stats); err != nil {
			e.log.Error("archive cycle summary", "error", err)
		}
	}
	e.log.Info("cycle finished",
		"sources", stats.Sources, "processed", stats.Processed,
		"delivered", stats.Delivered, "skipped", stats.Skipped, "failed", stats.Failed)
	return nil
}

// refreshTargets closes all open exporters when the configured target set
// changed, forcing fresh dedup-index rebuilds. An unchanged set keeps the
// open targets, avoiding pointless rescans of large outputs.
func (e *Engine) refreshTargets(tasks []model.Task) {
	targets := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		targets[t.Output.TargetKey()] = true
	}

	if e.lastTargets != nil && !sameTargets(e.lastTargets, targets) {
		e.log.Info("output targets changed, reopening exporters")
		if err := e.exporters.CloseAll(); err != nil {
			e.log.Error("close exporters", "error", err)
		}
	}
	e.lastTargets = targets
}

func sameTargets(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

// prepareTargets opens an exporter for every distinct output target before
// any message is read, so a broken target fails the cycle early instead of
// mid-stream.
func (e *Engine) prepareTargets(tasks []model.Task) error {
	for _, t := range tasks {
		if _, err := e.exporters.Get(t.Output); err != nil {
			return fmt.Errorf("prepare output for task %q: %w", t.Name, err)
		}
	}
	return nil
}

// discoverSources resolves the union of all sources referenced by the
// tasks. Per-id resolution failures are logged and skipped.
func (e *Engine) discoverSources(ctx context.Context, tasks []model.Task) ([]model.Source, error) {
	wantAll := false
	explicit := make(map[int64]bool)
	for _, t := range tasks {
		if t.WantsAllSources() {
			wantAll = true
			continue
		}
		for _, s := range t.Sources {
			if id, ok := parseSelector(s); ok {
				explicit[id] = true
			}
		}
	}

	if wantAll {
		return e.client.ListSources(ctx)
	}

	var sources []model.Source
	for id := range explicit {
		src, err := e.client.ResolveSource(ctx, id)
		if err != nil {
			e.log.Error("resolve source", "id", id, "error", err)
			continue
		}
		sources = append(sources, src)
	}
	return sources, nil
}

// syncSource drains one source's new messages. Whatever happens, the
// checkpoint is advanced to the highest message id fully read before any
// error is allowed to propagate: a read message is never re-delivered, an
// unread one is retried next cycle.
func (e *Engine) syncSource(ctx context.Context, src model.Source, cycle Cycle, stats *CycleStats) (err error) {
	tasks := matchingTasks(cycle.Tasks, src)
	if len(tasks) == 0 {
		return nil
	}

	sourceID := src.SourceID()
	lastID := e.checkpoints.Get(sourceID)
	e.log.Info("syncing source", "source", src.Title, "source_id", sourceID, "since", lastID)

	maxID := lastID
	defer func() {
		if maxID > lastID {
			if cpErr := e.checkpoints.Set(sourceID, maxID); cpErr != nil {
				e.log.Error("persist checkpoint", "source_id", sourceID, "error", cpErr)
				if err == nil {
					err = cpErr
				}
			}
		}
	}()

	it, err := e.openStream(ctx, src, lastID)
	if err != nil {
		return err
	}

	delivered := 0
	for {
		msg, nextErr := it.Next(ctx)
		if errors.Is(nextErr, io.EOF) {
			break
		}
		var rl *source.RateLimitError
		if errors.As(nextErr, &rl) {
			e.log.Warn("rate limited", "source_id", sourceID, "wait", rl.Wait)
			if sleepErr := sleepCtx(ctx, rl.Wait); sleepErr != nil {
				return sleepErr
			}
			continue
		}
		if nextErr != nil {
			return fmt.Errorf("read messages: %w", nextErr)
		}
		if msg.ID <= lastID {
			continue
		}

		rec := parseMessage(msg, src, cycle.Normalizer)
		stats.Processed++
		e.mon.Add("messages_processed", 1)
		if rec.URL != "" {
			e.mon.Add("urls_identified", 1)
		}

		e.enrich(ctx, &rec, cycle)
		delivered += e.route(ctx, rec, tasks, stats)

		if msg.ID > maxID {
			maxID = msg.ID
		}
	}

	if delivered > 0 {
		e.log.Info("routed records", "source", src.Title, "delivered", delivered)
	}
	return nil
}

// openStream opens the message iterator, honouring a rate-limit answer on
// the open itself.
func (e *Engine) openStream(ctx context.Context, src model.Source, minID int64) (source.Iterator, error) {
	for {
		it, err := e.client.Messages(ctx, src, minID)
		var rl *source.RateLimitError
		if errors.As(err, &rl) {
			e.log.Warn("rate limited", "source_id", src.SourceID(), "wait", rl.Wait)
			if sleepErr := sleepCtx(ctx, rl.Wait); sleepErr != nil {
				return nil, sleepErr
			}
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("open message stream: %w", err)
		}
		return it, nil
	}
}

// enrich runs the metadata resolver when the configured policy calls for
// it, filling a missing title and re-normalizing the URL after redirects.
func (e *Engine) enrich(ctx context.Context, rec *model.Record, cycle Cycle) {
	if rec.URL == "" || !e.shouldEnrich(*rec, cycle) {
		return
	}

	res := e.resolver.Resolve(ctx, rec.URL)
	if res.Title != "" && rec.Title == "" {
		rec.Title = res.Title
	}
	if res.FinalURL != "" && res.FinalURL != rec.URL {
		// Redirect targets carry tracking parameters the first
		// normalization pass never saw.
		rec.URL = cycle.Normalizer.Normalize(res.FinalURL)
	}
}

func (e *Engine) shouldEnrich(rec model.Record, cycle Cycle) bool {
	switch cycle.Enrich {
	case config.EnrichAlways:
		return true
	case config.EnrichShortLink:
		return isShortLink(rec.URL, cycle.ShortLinkDomains)
	default:
		return rec.Title == "" || isShortLink(rec.URL, cycle.ShortLinkDomains)
	}
}

func isShortLink(url string, domains []string) bool {
	for _, d := range domains {
		if d != "" && strings.Contains(url, d) {
			return true
		}
	}
	return false
}

// route offers the record to every matching task's exporter, counting
// dedup hits as skips rather than errors.
func (e *Engine) route(ctx context.Context, rec model.Record, tasks []model.Task, stats *CycleStats) int {
	delivered := 0
	for _, task := range tasks {
		if !filter.Match(rec.Content, task.Keywords, task.ExcludeKeywords) {
			continue
		}
		exp, err := e.exporters.Get(task.Output)
		if err != nil {
			e.log.Error("open output", "task", task.Name, "error", err)
			continue
		}
		if exp.IsDuplicate(rec.DedupKey()) {
			stats.Skipped++
			e.mon.Add("records_skipped", 1)
			continue
		}
		if err := exp.Write(rec); err != nil {
			e.log.Error("write record", "task", task.Name, "message_id", rec.MessageID, "error", err)
			continue
		}
		delivered++
		stats.Delivered++
		e.mon.Add("records_delivered", 1)

		if e.archive != nil {
			if err := e.archive.RecordDelivery(ctx, task.Name, task.Output.TargetKey(), rec); err != nil {
				e.log.Error("archive delivery", "task", task.Name, "error", err)
			}
		}
	}
	return delivered
}

func matchingTasks(tasks []model.Task, src model.Source) []model.Task {
	var matched []model.Task
	for _, t := range tasks {
		if t.MatchesSource(src) {
			matched = append(matched, t)
		}
	}
	return matched
}

func parseSelector(s string) (int64, bool) {
	if s == "" || s == "all" {
		return 0, false
	}
	id, err := strconv.ParseInt(s, 10, 64)
	return id, err == nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
