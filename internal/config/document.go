package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"linkdispatch/internal/model"
	"linkdispatch/internal/source"
	"linkdispatch/internal/urlnorm"
)

// EnrichPolicy decides when metadata enrichment runs for a record that
// carries a URL.
type EnrichPolicy string

// Supported enrichment policies. MissingTitle additionally always fires
// for configured short-link domains, whose redirect targets matter even
// when a preview title exists.
const (
	EnrichAlways       EnrichPolicy = "always"
	EnrichMissingTitle EnrichPolicy = "missing_title"
	EnrichShortLink    EnrichPolicy = "short_link"
)

// Settings is the settings section of the task document.
type Settings struct {
	LoopInterval     int          `yaml:"loop_interval"`
	Enrich           EnrichPolicy `yaml:"enrich"`
	ShortLinkDomains []string     `yaml:"short_link_domains"`
	DomesticDomains  []string     `yaml:"domestic_domains"`
	ProxyURL         string       `yaml:"proxy_url"`
	FetchTimeout     int          `yaml:"fetch_timeout"`
}

// SourceSelector is a task's source list: numeric ids or the "all"
// wildcard, normalized to strings whatever scalar type the YAML used.
type SourceSelector []string

// UnmarshalYAML accepts a sequence of ints or strings, or a single scalar.
func (s *SourceSelector) UnmarshalYAML(value *yaml.Node) error {
	var list []any
	if err := value.Decode(&list); err != nil {
		var single any
		if err := value.Decode(&single); err != nil {
			return err
		}
		list = []any{single}
	}
	out := make([]string, 0, len(list))
	for _, v := range list {
		out = append(out, strings.TrimSpace(fmt.Sprint(v)))
	}
	*s = out
	return nil
}

// TaskSpec is one task entry in the document.
type TaskSpec struct {
	Name            string         `yaml:"name"`
	Enable          *bool          `yaml:"enable"`
	Sources         SourceSelector `yaml:"sources"`
	Keywords        []string       `yaml:"keywords"`
	ExcludeKeywords []string       `yaml:"exclude_keywords"`
	Output          OutputSpec     `yaml:"output"`
}

// OutputSpec is a task's output target entry.
type OutputSpec struct {
	Path   string `yaml:"path"`
	Format string `yaml:"format"`
	ChatID int64  `yaml:"chat_id"`
}

// File is the parsed task document.
type File struct {
	Settings Settings      `yaml:"settings"`
	Tasks    []TaskSpec    `yaml:"tasks"`
	RSSFeeds []source.Feed `yaml:"rss_feeds"`
}

// Load parses and validates the task document at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse parses and validates a task document.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	f.applyDefaults()
	return &f, nil
}

func (f *File) applyDefaults() {
	if f.Settings.LoopInterval <= 0 {
		f.Settings.LoopInterval = 300
	}
	if f.Settings.Enrich == "" {
		f.Settings.Enrich = EnrichMissingTitle
	}
	if f.Settings.FetchTimeout <= 0 {
		f.Settings.FetchTimeout = 5
	}
}

// Validate rejects documents that would misroute or silently drop records.
// A reload that fails validation must leave the running configuration in
// effect, so all checks happen before the swap.
func (f *File) Validate() error {
	switch f.Settings.Enrich {
	case "", EnrichAlways, EnrichMissingTitle, EnrichShortLink:
	default:
		return fmt.Errorf("settings.enrich: unknown policy %q", f.Settings.Enrich)
	}

	for i, t := range f.Tasks {
		if t.Name == "" {
			return fmt.Errorf("task %d: name is required", i)
		}
		if len(t.Sources) == 0 {
			return fmt.Errorf("task %q: sources is required", t.Name)
		}
		for _, s := range t.Sources {
			if s == "all" {
				continue
			}
			if _, ok := parseID(s); !ok {
				return fmt.Errorf("task %q: invalid source selector %q", t.Name, s)
			}
		}
		switch model.OutputFormat(t.Output.Format) {
		case "", model.FormatCSV, model.FormatTxt:
			if t.Output.Path == "" {
				return fmt.Errorf("task %q: output.path is required", t.Name)
			}
		case model.FormatTelegram:
			if t.Output.ChatID == 0 {
				return fmt.Errorf("task %q: output.chat_id is required for telegram output", t.Name)
			}
		default:
			return fmt.Errorf("task %q: unknown output format %q", t.Name, t.Output.Format)
		}
	}

	seen := make(map[int64]bool)
	for _, feed := range f.RSSFeeds {
		if feed.ID == 0 || feed.URL == "" {
			return fmt.Errorf("rss feed %q: id and url are required", feed.Title)
		}
		if seen[feed.ID] {
			return fmt.Errorf("rss feed id %d used twice", feed.ID)
		}
		seen[feed.ID] = true
	}
	return nil
}

// ActiveTasks returns the enabled tasks as domain objects. Tasks without
// an explicit enable flag are enabled.
func (f *File) ActiveTasks() []model.Task {
	var tasks []model.Task
	for _, t := range f.Tasks {
		if t.Enable != nil && !*t.Enable {
			continue
		}
		format := model.OutputFormat(t.Output.Format)
		if format == "" {
			format = model.FormatCSV
		}
		tasks = append(tasks, model.Task{
			Name:            t.Name,
			Enabled:         true,
			Sources:         t.Sources,
			Keywords:        t.Keywords,
			ExcludeKeywords: t.ExcludeKeywords,
			Output: model.Output{
				Path:   t.Output.Path,
				Format: format,
				ChatID: t.Output.ChatID,
			},
		})
	}
	return tasks
}

// LoadRules parses and validates the rule document at path. A missing file
// yields empty rules: every URL then falls through to the global strategy
// with nothing to strip.
func LoadRules(path string) (urlnorm.Rules, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return urlnorm.Rules{}, nil
	}
	if err != nil {
		return urlnorm.Rules{}, fmt.Errorf("read rules: %w", err)
	}
	return ParseRules(data)
}

// ParseRules parses and validates a rule document.
func ParseRules(data []byte) (urlnorm.Rules, error) {
	var rules urlnorm.Rules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return urlnorm.Rules{}, fmt.Errorf("parse rules: %w", err)
	}
	if err := rules.Validate(); err != nil {
		return urlnorm.Rules{}, err
	}
	return rules, nil
}
