// Package metadata resolves page titles and post-redirect URLs for links
// found in messages. Resolution is strictly best-effort: every failure is
// logged and swallowed so enrichment can never abort message processing.
package metadata

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Result is the outcome of resolving a URL. Either field may be empty;
// FinalURL is set whenever the fetch reached the server, even without a
// title, because redirect expansion is valuable on its own.
type Result struct {
	Title    string
	FinalURL string
}

// Config controls fetch behaviour.
type Config struct {
	// ProxyURL is the outbound proxy for foreign hosts and the fallback
	// for domestic ones. Empty disables proxying.
	ProxyURL string

	// DomesticDomains are host substrings fetched direct-first.
	DomesticDomains []string

	// Timeout bounds each attempt end to end.
	Timeout time.Duration

	// MaxBodyBytes caps how much of the response body is read. Head-of-
	// document metadata fits well within the default 64 KiB.
	MaxBodyBytes int64

	// RequestsPerSecond caps outbound fetches across all hosts.
	RequestsPerSecond float64
}

// Resolver fetches pages and extracts titles, caching successful results
// by original URL for the process lifetime.
type Resolver struct {
	cfg     Config
	direct  *http.Client
	proxied *http.Client
	limiter *rate.Limiter
	cache   map[string]Result
	log     *slog.Logger

	// allowPrivate disables the SSRF guard for tests against loopback
	// servers.
	allowPrivate bool
}

// New creates a Resolver. The proxy client is nil when no proxy is
// configured.
func New(cfg Config, log *slog.Logger) (*Resolver, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 64 * 1024
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 4
	}

	r := &Resolver{
		cfg:     cfg,
		direct:  newClient(cfg.Timeout, nil),
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		cache:   make(map[string]Result),
		log:     log,
	}

	if cfg.ProxyURL != "" {
		proxyURL, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}
		r.proxied = newClient(cfg.Timeout, http.ProxyURL(proxyURL))
	}
	return r, nil
}

func newClient(timeout time.Duration, proxy func(*http.Request) (*url.URL, error)) *http.Client {
	transport := &http.Transport{
		Proxy:               proxy,
		DialContext:         (&net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}).DialContext,
		TLSHandshakeTimeout: timeout,
		MaxIdleConns:        20,
		IdleConnTimeout:     90 * time.Second,
	}
	return &http.Client{Timeout: timeout, Transport: transport}
}

// Resolve fetches the URL and extracts a title. It returns a zero Result
// for guarded, failed, or empty outcomes; it never returns an error.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) Result {
	if rawURL == "" {
		return Result{}
	}
	if res, ok := r.cache[rawURL]; ok {
		return res
	}

	host := hostOf(rawURL)
	if !r.allowPrivate && blockedHost(host) {
		r.log.Warn("refusing to fetch private or loopback host", "url", rawURL)
		return Result{}
	}

	res := r.fetchWithPolicy(ctx, rawURL, host)
	if res.Title != "" {
		// Failures are deliberately not cached so a later message with
		// the same URL gets a fresh attempt.
		r.cache[rawURL] = res
	}
	return res
}

// fetchWithPolicy applies the domestic/foreign proxy-order decision.
// Domestic hosts go direct first and fall back to the proxy when the direct
// attempt produced no title; foreign hosts prefer the proxy outright.
func (r *Resolver) fetchWithPolicy(ctx context.Context, rawURL, host string) Result {
	if r.isDomestic(host) {
		res, err := r.fetch(ctx, r.direct, rawURL)
		if err == nil && res.Title != "" {
			return res
		}
		if r.proxied == nil {
			if err != nil {
				r.log.Debug("direct fetch failed", "url", rawURL, "error", err)
			}
			return res
		}
		viaProxy, err := r.fetch(ctx, r.proxied, rawURL)
		if err != nil {
			r.log.Debug("proxy fallback failed", "url", rawURL, "error", err)
			return res
		}
		return viaProxy
	}

	client := r.direct
	if r.proxied != nil {
		client = r.proxied
	}
	res, err := r.fetch(ctx, client, rawURL)
	if err != nil {
		r.log.Debug("fetch failed", "url", rawURL, "error", err)
		return Result{}
	}
	return res
}

// fetch performs one bounded attempt with platform-specific headers.
func (r *Resolver) fetch(ctx context.Context, client *http.Client, rawURL string) (Result, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return Result{}, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Result{}, fmt.Errorf("create request: %w", err)
	}
	for k, v := range headersFor(rawURL) {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	if resp.StatusCode != http.StatusOK {
		// Redirect expansion still happened; keep the final URL.
		return Result{FinalURL: finalURL}, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, r.cfg.MaxBodyBytes))
	if err != nil {
		return Result{FinalURL: finalURL}, nil
	}

	title := ExtractTitle(string(body), finalURL)
	return Result{Title: title, FinalURL: finalURL}, nil
}

func (r *Resolver) isDomestic(host string) bool {
	host = strings.ToLower(host)
	for _, d := range r.cfg.DomesticDomains {
		if d != "" && strings.Contains(host, strings.ToLower(d)) {
			return true
		}
	}
	return false
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// blockedHost lexically rejects hosts that resolve to loopback,
// unspecified, or private-range addresses. This runs before any network
// call; hostname-based rebinding attacks are out of scope.
func blockedHost(host string) bool {
	if host == "" {
		return true
	}
	if strings.EqualFold(host, "localhost") || strings.HasSuffix(strings.ToLower(host), ".localhost") {
		return true
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsUnspecified() || ip.IsPrivate() || ip.IsLinkLocalUnicast()
}
