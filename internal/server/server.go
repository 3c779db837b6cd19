package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"ksb-content-proxy/internal/allowlist"
	"ksb-content-proxy/internal/crawler"
	"ksb-content-proxy/internal/models"
	"ksb-content-proxy/internal/parser"
	"ksb-content-proxy/internal/telemetry"
)

// Fetcher is the outbound side of both proxies.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, kind models.Kind) (models.RawDocument, error)
}

// Endpoint is the per-proxy policy: where it may fetch from and how long responses stay fresh.
type Endpoint struct {
	Validator    *allowlist.Validator
	CacheControl string
}

type Server struct {
	fetcher Fetcher
	parser  *parser.Parser
	article Endpoint
	rss     Endpoint
	metrics *telemetry.ProxyMetrics
}

func New(fetcher Fetcher, p *parser.Parser, article, rss Endpoint, metrics *telemetry.ProxyMetrics) *Server {
	if metrics == nil {
		metrics = telemetry.NoopProxyMetrics()
	}
	return &Server{fetcher: fetcher, parser: p, article: article, rss: rss, metrics: metrics}
}

// CacheControl renders the freshness hint for a fronting CDN.
func CacheControl(freshness, staleWhileRevalidate time.Duration) string {
	return fmt.Sprintf("public, s-maxage=%d, stale-while-revalidate=%d",
		int(freshness.Seconds()), int(staleWhileRevalidate.Seconds()))
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("/api/article-proxy", s.articleProxy)
	mux.HandleFunc("/api/rss-proxy", s.rssProxy)
	return logRequest(mux)
}

// GET /api/article-proxy?url=https://...
func (s *Server) articleProxy(w http.ResponseWriter, r *http.Request) {
	const endpoint = "article"
	target, ok := s.validate(w, r, endpoint, s.article.Validator)
	if !ok {
		return
	}

	doc, err := s.fetcher.Fetch(r.Context(), target, models.KindArticle)
	if err != nil {
		s.fetchFailed(w, endpoint, "Failed to fetch article", target, err)
		return
	}
	result, err := s.parser.Extract(doc)
	if err != nil {
		s.fetchFailed(w, endpoint, "Failed to fetch article", target, err)
		return
	}

	slog.Debug("article extracted.", slog.String("url", target), slog.Int("length", len(result.Content)),
		slog.Bool("image", result.ImageURL != ""), slog.Bool("cached", doc.FromCache))
	s.metrics.Served(endpoint)
	w.Header().Set("Cache-Control", s.article.CacheControl)
	writeJSON(w, http.StatusOK, result)
}

// GET /api/rss-proxy?url=https://...
func (s *Server) rssProxy(w http.ResponseWriter, r *http.Request) {
	const endpoint = "rss"
	target, ok := s.validate(w, r, endpoint, s.rss.Validator)
	if !ok {
		return
	}

	doc, err := s.fetcher.Fetch(r.Context(), target, models.KindFeed)
	if err != nil {
		s.fetchFailed(w, endpoint, "Failed to fetch RSS feed", target, err)
		return
	}

	s.metrics.Served(endpoint)
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.Header().Set("Cache-Control", s.rss.CacheControl)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(doc.Body); err != nil {
		slog.Warn("failed to write the feed.", slog.String("url", target), slog.String("err", err.Error()))
	}
}

// validate answers 405/400/403 itself and reports whether the handler may continue.
func (s *Server) validate(w http.ResponseWriter, r *http.Request, endpoint string, v *allowlist.Validator) (string, bool) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, models.ErrorBody{Error: "method not allowed"})
		return "", false
	}
	raw := r.URL.Query().Get("url")
	if raw == "" {
		s.metrics.Rejected(endpoint, "missing")
		writeJSON(w, http.StatusBadRequest, models.ErrorBody{Error: "URL parameter is required"})
		return "", false
	}
	u, err := v.Validate(raw)
	switch {
	case errors.Is(err, allowlist.ErrInvalidURL):
		s.metrics.Rejected(endpoint, "invalid")
		writeJSON(w, http.StatusBadRequest, models.ErrorBody{Error: "Invalid URL", Details: err.Error()})
		return "", false
	case err != nil:
		slog.Info("url rejected by the allow-list.", slog.String("endpoint", endpoint), slog.String("url", raw))
		s.metrics.Rejected(endpoint, "domain")
		writeJSON(w, http.StatusForbidden, models.ErrorBody{Error: "URL not allowed"})
		return "", false
	}
	return u.String(), true
}

func (s *Server) fetchFailed(w http.ResponseWriter, endpoint, msg, target string, err error) {
	if errors.Is(err, crawler.ErrRedirectNotAllowed) {
		s.metrics.Rejected(endpoint, "redirect")
		writeJSON(w, http.StatusForbidden, models.ErrorBody{Error: "URL not allowed", Details: err.Error()})
		return
	}
	slog.Error("proxy request failed.", slog.String("endpoint", endpoint), slog.String("url", target),
		slog.String("request_id", w.Header().Get(requestIDHeader)), slog.String("err", err.Error()))
	s.metrics.Failed(endpoint)
	writeJSON(w, http.StatusInternalServerError, models.ErrorBody{Error: msg, Details: err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

const requestIDHeader = "X-Request-ID"

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func logRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set(requestIDHeader, id)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.Info("request served.", slog.String("method", r.Method), slog.String("path", r.URL.Path),
			slog.Int("status", rec.status), slog.Duration("duration", time.Since(start)),
			slog.String("request_id", id))
	})
}
