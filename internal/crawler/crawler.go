package crawler

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"ksb-content-proxy/config"
	"ksb-content-proxy/internal/allowlist"
	"ksb-content-proxy/internal/cache"
	"ksb-content-proxy/internal/models"
	"ksb-content-proxy/internal/telemetry"
)

var (
	// ErrUpstreamUnavailable covers transport failures and timeout expiry.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrUnsupportedContent  = errors.New("unsupported content type")
	ErrRedirectNotAllowed  = errors.New("redirect target not allowed")
	ErrBodyTooLarge        = errors.New("response body too large")
)

// UpstreamStatusError is returned when the source site answers with a non-2xx status.
type UpstreamStatusError struct {
	StatusCode int
}

func (e *UpstreamStatusError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.StatusCode)
}

type Options struct {
	UserAgent      string
	AcceptLanguage string
	SizeCap        int64
	Limiter        *rate.Limiter                        // optional
	Cache          cache.DocumentCache                  // optional
	Freshness      map[models.Kind]time.Duration        // cache ttl per kind
	Allow          map[models.Kind]*allowlist.Validator // redirect guard per kind
	Metrics        *telemetry.FetchMetrics              // optional
}

type HTTPClient struct {
	client *http.Client
	opts   Options
}

type kindKey struct{}

// NewTransportClient builds the shared outbound client from config.
func NewTransportClient(cfg *config.HttpClientConfig) *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.DialTimeout,
			KeepAlive: cfg.DialKeepAlive,
		}).DialContext,
		MaxIdleConns:        cfg.MaxIdleConnections,
		MaxIdleConnsPerHost: cfg.MaxIdleConnectionsPerHost,
		MaxConnsPerHost:     cfg.MaxConnectionsPerHost,
		IdleConnTimeout:     cfg.IdleConnectionTimeout,
		TLSHandshakeTimeout: cfg.TlsHandshakeTimeout,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   cfg.RequestTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			max := cfg.MaxRedirects
			if max <= 0 {
				max = 5
			}
			if len(via) >= max {
				return errors.New("too many redirects")
			}
			return nil
		},
	}
}

// NewHTTPClient wraps client; its redirect policy is extended so that redirects never
// leave the allow-list of the kind being fetched.
func NewHTTPClient(client *http.Client, opts Options) *HTTPClient {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	base := *client
	next := base.CheckRedirect
	base.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if kind, ok := req.Context().Value(kindKey{}).(models.Kind); ok {
			if v := opts.Allow[kind]; v != nil {
				if _, allowed := v.Match(req.URL.Hostname()); !allowed {
					return fmt.Errorf("%w: %s", ErrRedirectNotAllowed, req.URL.Hostname())
				}
			}
		}
		if next != nil {
			return next(req, via)
		}
		if len(via) >= 10 {
			return errors.New("too many redirects")
		}
		return nil
	}
	if opts.Cache == nil {
		opts.Cache = cache.Noop{}
	}
	if opts.SizeCap <= 0 {
		opts.SizeCap = 5 * 1024 * 1024
	}
	if opts.Metrics == nil {
		opts.Metrics = telemetry.NoopFetchMetrics()
	}
	return &HTTPClient{client: &base, opts: opts}
}

// Fetch returns the body of rawURL, from the document cache when a fresh copy exists.
func (h *HTTPClient) Fetch(ctx context.Context, rawURL string, kind models.Kind) (models.RawDocument, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return models.RawDocument{}, fmt.Errorf("%w: %s", allowlist.ErrInvalidURL, rawURL)
	}
	key := cache.Key(string(kind), u.String())

	if e, err := h.opts.Cache.Get(ctx, key); err != nil {
		slog.Warn("failed to read the document cache.", slog.String("url", rawURL),
			slog.String("err", err.Error()))
	} else if e != nil {
		h.opts.Metrics.CacheHit(string(kind))
		return models.RawDocument{URL: e.URL, Body: e.Body, ContentType: e.ContentType, FromCache: true}, nil
	}
	h.opts.Metrics.CacheMiss(string(kind))

	doc, err := h.get(ctx, u, kind)
	if err != nil {
		h.opts.Metrics.UpstreamFail(string(kind))
		return models.RawDocument{}, err
	}

	if ttl := h.opts.Freshness[kind]; ttl > 0 {
		entry := &cache.Entry{URL: doc.URL, ContentType: doc.ContentType, Body: doc.Body, SavedAt: time.Now().UTC()}
		if err := h.opts.Cache.Set(ctx, key, entry, ttl); err != nil {
			slog.Warn("failed to store the document in cache.", slog.String("url", rawURL),
				slog.String("err", err.Error()))
		}
	}
	return doc, nil
}

func (h *HTTPClient) get(ctx context.Context, u *url.URL, kind models.Kind) (models.RawDocument, error) {
	if h.opts.Limiter != nil {
		if err := h.opts.Limiter.Wait(ctx); err != nil {
			return models.RawDocument{}, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
		}
	}

	req, err := http.NewRequestWithContext(context.WithValue(ctx, kindKey{}, kind), http.MethodGet, u.String(), nil)
	if err != nil {
		return models.RawDocument{}, err
	}
	req.Header.Set("User-Agent", h.opts.UserAgent)
	req.Header.Set("Accept", acceptFor(kind))
	if h.opts.AcceptLanguage != "" {
		req.Header.Set("Accept-Language", h.opts.AcceptLanguage)
	}
	req.Header.Set("Accept-Encoding", "gzip")

	start := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		if errors.Is(err, ErrRedirectNotAllowed) {
			return models.RawDocument{}, err
		}
		return models.RawDocument{}, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return models.RawDocument{}, &UpstreamStatusError{StatusCode: resp.StatusCode}
	}

	contentType := resp.Header.Get("Content-Type")
	if !acceptable(kind, contentType) {
		return models.RawDocument{}, fmt.Errorf("%w: %s", ErrUnsupportedContent, contentType)
	}

	var body io.Reader = resp.Body
	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return models.RawDocument{}, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
		}
		defer gz.Close()
		body = gz
	}

	// enforce a size cap; one extra byte tells a body at the cap from a longer one
	data, err := io.ReadAll(io.LimitReader(body, h.opts.SizeCap+1))
	if err != nil {
		return models.RawDocument{}, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	if int64(len(data)) > h.opts.SizeCap {
		// a cut feed is broken XML, while a cut page still has its article near the top
		if kind == models.KindFeed {
			return models.RawDocument{}, fmt.Errorf("%w: more than %d bytes", ErrBodyTooLarge, h.opts.SizeCap)
		}
		data = data[:h.opts.SizeCap]
	}

	slog.Debug("document fetched.", slog.String("url", u.String()), slog.Int("size", len(data)),
		slog.Duration("elapsed", time.Since(start)))
	return models.RawDocument{URL: resp.Request.URL.String(), Body: data, ContentType: contentType}, nil
}

func acceptFor(kind models.Kind) string {
	if kind == models.KindFeed {
		return "application/rss+xml, application/atom+xml, application/xml;q=0.9, text/xml;q=0.8, */*;q=0.5"
	}
	return "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8"
}

// acceptable lets through anything text-like; servers that omit the header are trusted.
func acceptable(kind models.Kind, contentType string) bool {
	if contentType == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	if strings.HasPrefix(mediaType, "text/") || strings.Contains(mediaType, "xml") {
		return true
	}
	return kind == models.KindFeed && strings.Contains(mediaType, "rss")
}
