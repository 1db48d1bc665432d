package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"linkdispatch/internal/config"
	"linkdispatch/internal/urlnorm"
)

// minDaemonInterval is the floor applied to loop_interval in daemon mode,
// keeping a misconfigured document from hammering the message source.
const minDaemonInterval = 300 * time.Second

// Runner drives the engine in single-run or daemon mode, reloading the
// task and rule documents between cycles. A reload that fails validation
// leaves the previously loaded configuration in effect.
type Runner struct {
	engine     *Engine
	configPath string
	rulesPath  string
	log        *slog.Logger

	current *config.File
	rules   urlnorm.Rules
}

// NewRunner creates a Runner over already-validated initial documents.
func NewRunner(engine *Engine, configPath, rulesPath string, initial *config.File,
	rules urlnorm.Rules, log *slog.Logger) *Runner {
	return &Runner{
		engine:     engine,
		configPath: configPath,
		rulesPath:  rulesPath,
		log:        log,
		current:    initial,
		rules:      rules,
	}
}

// RunOnce executes a single sync cycle against the current configuration.
func (r *Runner) RunOnce(ctx context.Context) error {
	r.reload()
	return r.engine.RunCycle(ctx, r.cycle())
}

// Run executes cycles until the context is cancelled, sleeping
// loop_interval between them. Cycle failures are logged and the next
// scheduled cycle still runs.
func (r *Runner) Run(ctx context.Context) {
	for {
		r.reload()
		if err := r.engine.RunCycle(ctx, r.cycle()); err != nil {
			if ctx.Err() != nil {
				return
			}
			r.log.Error("sync cycle failed", "error", err)
		}

		interval := r.interval()
		r.log.Info("sleeping until next cycle", "interval", interval)
		if err := sleepCtx(ctx, interval); err != nil {
			return
		}
	}
}

// reload re-reads both documents, swapping each in only when it validates.
func (r *Runner) reload() {
	if f, err := config.Load(r.configPath); err != nil {
		r.log.Error("config reload failed, keeping previous", "path", r.configPath, "error", err)
	} else {
		r.current = f
	}

	if rules, err := config.LoadRules(r.rulesPath); err != nil {
		r.log.Error("rules reload failed, keeping previous", "path", r.rulesPath, "error", err)
	} else {
		r.rules = rules
	}
}

func (r *Runner) cycle() Cycle {
	return Cycle{
		Tasks:            r.current.ActiveTasks(),
		Normalizer:       urlnorm.New(r.rules),
		Enrich:           r.current.Settings.Enrich,
		ShortLinkDomains: r.current.Settings.ShortLinkDomains,
	}
}

func (r *Runner) interval() time.Duration {
	interval := time.Duration(r.current.Settings.LoopInterval) * time.Second
	if interval < minDaemonInterval {
		interval = minDaemonInterval
	}
	return interval
}

// Interval exposes the effective daemon interval, mainly for logging at
// startup.
func (r *Runner) Interval() time.Duration { return r.interval() }

// Describe returns a short human summary of the loaded configuration.
func (r *Runner) Describe() string {
	return fmt.Sprintf("%d tasks, %d rss feeds", len(r.current.Tasks), len(r.current.RSSFeeds))
}
