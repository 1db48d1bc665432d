// Package urlnorm implements the URL normalization rule engine. A rule set
// carries a global deny-list of query keys and an ordered list of platform
// rules; normalization is a pure transform and is idempotent.
package urlnorm

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
)

// Strategy selects how a platform rule rewrites the query string.
type Strategy string

// Supported strategies.
const (
	StripAll  Strategy = "strip_all"
	Whitelist Strategy = "whitelist"
)

// PlatformRule applies to any URL whose host contains one of the rule's
// domain substrings. Rules are scanned in order; the first match wins.
// Substring matching can misfire on hosts that embed another platform's
// domain (e.g. "t.co" inside an unrelated name); this is kept for
// compatibility with existing rule documents.
type PlatformRule struct {
	Domains  []string `yaml:"domains"`
	Strategy Strategy `yaml:"strategy"`
	Keep     []string `yaml:"keep,omitempty"`
}

// GlobalRule holds the fallback deny-list applied when no platform matches.
type GlobalRule struct {
	DefaultStrip []string `yaml:"default_strip"`
}

// Rules is the full rule document.
type Rules struct {
	Global    GlobalRule     `yaml:"global"`
	Platforms []PlatformRule `yaml:"platforms"`
}

// Validate rejects rule documents that would silently do nothing sensible.
func (r *Rules) Validate() error {
	for i, p := range r.Platforms {
		if len(p.Domains) == 0 {
			return fmt.Errorf("platform rule %d: no domains", i)
		}
		switch p.Strategy {
		case StripAll, Whitelist:
		default:
			return fmt.Errorf("platform rule %d: unknown strategy %q", i, p.Strategy)
		}
	}
	return nil
}

// urlRegex recognizes http(s) URLs embedded in free text.
var urlRegex = regexp.MustCompile(`https?://[^\s,]+`)

// Normalizer rewrites URLs according to a rule set.
type Normalizer struct {
	rules Rules
}

// New creates a Normalizer for the given rules.
func New(rules Rules) *Normalizer {
	return &Normalizer{rules: rules}
}

// ExtractURLs returns every URL embedded in the text, in order.
func ExtractURLs(text string) []string {
	if text == "" {
		return nil
	}
	return urlRegex.FindAllString(text, -1)
}

// FirstURL returns the first URL embedded in the text, or "".
func FirstURL(text string) string {
	if text == "" {
		return ""
	}
	return urlRegex.FindString(text)
}

// Normalize rewrites the URL's query string per the matching rule and drops
// the fragment. Unparseable input is returned unchanged.
func (n *Normalizer) Normalize(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if u.RawQuery == "" && u.Fragment == "" {
		return raw
	}

	query := u.Query()
	kept := url.Values{}

	if rule := n.match(u.Hostname()); rule != nil {
		switch rule.Strategy {
		case StripAll:
			// kept stays empty
		case Whitelist:
			for _, k := range rule.Keep {
				if vs, ok := query[k]; ok {
					kept[k] = vs
				}
			}
		}
	} else {
		for k, vs := range query {
			if !contains(n.rules.Global.DefaultStrip, k) {
				kept[k] = vs
			}
		}
	}

	u.RawQuery = encodeStable(kept)
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}

// match returns the first platform rule whose domain list contains a
// case-insensitive substring of the host, or nil.
func (n *Normalizer) match(host string) *PlatformRule {
	host = strings.ToLower(host)
	for i := range n.rules.Platforms {
		for _, d := range n.rules.Platforms[i].Domains {
			if strings.Contains(host, strings.ToLower(d)) {
				return &n.rules.Platforms[i]
			}
		}
	}
	return nil
}

// encodeStable encodes values with deterministic key order so normalization
// is idempotent and comparable across runs.
func encodeStable(v url.Values) string {
	if len(v) == 0 {
		return ""
	}
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		for _, val := range v[k] {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(k))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(val))
		}
	}
	return b.String()
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
