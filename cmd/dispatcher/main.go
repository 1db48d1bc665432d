package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"linkdispatch/internal/checkpoint"
	"linkdispatch/internal/config"
	"linkdispatch/internal/dispatcher"
	"linkdispatch/internal/export"
	"linkdispatch/internal/metadata"
	"linkdispatch/internal/monitor"
	"linkdispatch/internal/notify"
	"linkdispatch/internal/source"
	"linkdispatch/internal/storage"
	"linkdispatch/internal/web"
)

func main() {
	daemon := flag.Bool("daemon", false, "keep running, syncing every loop_interval seconds")
	flag.Parse()

	env, err := config.LoadEnv()
	if err != nil {
		slog.Error("load environment", "error", err)
		os.Exit(1)
	}

	mon := monitor.New()
	log := newLogger(env.LogLevel, mon)

	cfg, err := config.Load(env.ConfigPath)
	if err != nil {
		log.Error("load config", "path", env.ConfigPath, "error", err)
		os.Exit(1)
	}
	rules, err := config.LoadRules(env.RulesPath)
	if err != nil {
		log.Error("load rules", "path", env.RulesPath, "error", err)
		os.Exit(1)
	}

	for _, p := range []string{env.CheckpointPath, env.ArchivePath} {
		if dir := filepath.Dir(p); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				log.Error("create data directory", "path", dir, "error", err)
				os.Exit(1)
			}
		}
	}
	if err := os.MkdirAll(env.StorageRoot, 0o750); err != nil {
		log.Error("create storage root", "path", env.StorageRoot, "error", err)
		os.Exit(1)
	}

	cp, err := checkpoint.Open(env.CheckpointPath)
	if err != nil {
		log.Error("open checkpoint store", "path", env.CheckpointPath, "error", err)
		os.Exit(1)
	}

	archive, err := storage.NewSQLite(env.ArchivePath)
	if err != nil {
		log.Error("open archive", "path", env.ArchivePath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = archive.Close() }()

	factory := &export.Factory{Root: env.StorageRoot}
	if env.BotToken != "" {
		notifier, err := notify.New(env.BotToken, log)
		if err != nil {
			log.Error("create telegram notifier", "error", err)
			os.Exit(1)
		}
		factory.Sender = notifier
	}

	resolver, err := metadata.New(metadata.Config{
		ProxyURL:        cfg.Settings.ProxyURL,
		DomesticDomains: cfg.Settings.DomesticDomains,
		Timeout:         time.Duration(cfg.Settings.FetchTimeout) * time.Second,
	}, log)
	if err != nil {
		log.Error("create metadata resolver", "error", err)
		os.Exit(1)
	}

	client := source.NewRSS(cfg.RSSFeeds, http.DefaultClient)
	defer func() { _ = client.Close() }()

	engine := dispatcher.New(client, cp, export.NewManager(factory), resolver, archive, mon, log)
	runner := dispatcher.NewRunner(engine, env.ConfigPath, env.RulesPath, cfg, rules, log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if env.AdminAddr != "" {
		admin := web.New(env.AdminAddr, env.AdminToken, mon, archive,
			env.ConfigPath, env.RulesPath, log)
		go func() {
			if err := admin.Run(ctx); err != nil {
				log.Error("admin api stopped", "error", err)
			}
		}()
	}

	mon.SetStatus("running")
	if *daemon {
		log.Info("starting dispatcher", "mode", "daemon", "interval", runner.Interval())
		runner.Run(ctx)
	} else {
		log.Info("starting dispatcher", "mode", "single-run")
		if err := runner.RunOnce(ctx); err != nil {
			log.Error("sync cycle failed", "error", err)
			os.Exit(1)
		}
	}

	mon.SetStatus("stopped")
	log.Info("dispatcher stopped")
}

func newLogger(level string, mon *monitor.Monitor) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	text := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	return slog.New(monitor.NewHandler(text, mon))
}
