package config

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"linkdispatch/internal/model"
)

const sampleDoc = `
settings:
  loop_interval: 600
  enrich: always
  short_link_domains: [v.douyin.com, t.co]
tasks:
  - name: Tech Links
    sources: [-1001234, 42]
    keywords: [golang, kubernetes]
    output:
      path: tech/links.csv
      format: csv
  - name: Everything
    enable: false
    sources: ["all"]
    output:
      path: all.txt
      format: txt
  - name: Alerts
    sources: ["all"]
    output:
      format: telegram
      chat_id: 777
rss_feeds:
  - id: 42
    title: Blog
    url: https://blog.example.com/rss
`

func TestParseDocument(t *testing.T) {
	f, err := Parse([]byte(sampleDoc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if f.Settings.LoopInterval != 600 {
		t.Errorf("loop_interval = %d, want 600", f.Settings.LoopInterval)
	}
	if f.Settings.Enrich != EnrichAlways {
		t.Errorf("enrich = %q, want always", f.Settings.Enrich)
	}
	if f.Settings.FetchTimeout != 5 {
		t.Errorf("fetch_timeout default = %d, want 5", f.Settings.FetchTimeout)
	}

	tasks := f.ActiveTasks()
	want := []model.Task{
		{
			Name:     "Tech Links",
			Enabled:  true,
			Sources:  []string{"-1001234", "42"},
			Keywords: []string{"golang", "kubernetes"},
			Output:   model.Output{Path: "tech/links.csv", Format: model.FormatCSV},
		},
		{
			Name:    "Alerts",
			Enabled: true,
			Sources: []string{"all"},
			Output:  model.Output{Format: model.FormatTelegram, ChatID: 777},
		},
	}
	if diff := cmp.Diff(want, tasks); diff != "" {
		t.Errorf("active tasks mismatch (-want +got):\n%s", diff)
	}

	if len(f.RSSFeeds) != 1 || f.RSSFeeds[0].ID != 42 {
		t.Errorf("rss_feeds = %+v", f.RSSFeeds)
	}
}

func TestParseDefaults(t *testing.T) {
	f, err := Parse([]byte("tasks: []\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if f.Settings.LoopInterval != 300 {
		t.Errorf("loop_interval default = %d, want 300", f.Settings.LoopInterval)
	}
	if f.Settings.Enrich != EnrichMissingTitle {
		t.Errorf("enrich default = %q, want missing_title", f.Settings.Enrich)
	}
}

func TestParseRejectsInvalidDocuments(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{
			name: "not yaml",
			doc:  "{{{",
		},
		{
			name: "task without name",
			doc:  "tasks:\n  - sources: [1]\n    output: {path: x.csv}\n",
		},
		{
			name: "task without sources",
			doc:  "tasks:\n  - name: t\n    output: {path: x.csv}\n",
		},
		{
			name: "non-numeric source selector",
			doc:  "tasks:\n  - name: t\n    sources: [sometimes]\n    output: {path: x.csv}\n",
		},
		{
			name: "file output without path",
			doc:  "tasks:\n  - name: t\n    sources: [1]\n    output: {format: csv}\n",
		},
		{
			name: "telegram output without chat id",
			doc:  "tasks:\n  - name: t\n    sources: [1]\n    output: {format: telegram}\n",
		},
		{
			name: "unknown output format",
			doc:  "tasks:\n  - name: t\n    sources: [1]\n    output: {path: x, format: parquet}\n",
		},
		{
			name: "unknown enrich policy",
			doc:  "settings: {enrich: whenever}\ntasks: []\n",
		},
		{
			name: "duplicate feed id",
			doc:  "rss_feeds:\n  - {id: 1, url: a}\n  - {id: 1, url: b}\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.doc)); err == nil {
				t.Fatal("expected validation error, got nil")
			}
		})
	}
}

func TestParseRules(t *testing.T) {
	doc := `
global:
  default_strip: [utm_source, spm]
platforms:
  - domains: [x.com]
    strategy: strip_all
  - domains: [youtube.com]
    strategy: whitelist
    keep: [v, t]
`
	rules, err := ParseRules([]byte(doc))
	if err != nil {
		t.Fatalf("parse rules: %v", err)
	}
	if len(rules.Platforms) != 2 {
		t.Fatalf("got %d platform rules, want 2", len(rules.Platforms))
	}
	if rules.Platforms[0].Strategy != "strip_all" {
		t.Errorf("strategy = %q", rules.Platforms[0].Strategy)
	}

	if _, err := ParseRules([]byte("platforms:\n  - strategy: strip_all\n")); err == nil {
		t.Fatal("expected error for rule without domains")
	}
}
