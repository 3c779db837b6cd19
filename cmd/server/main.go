package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"ksb-content-proxy/config"
	"ksb-content-proxy/internal/allowlist"
	"ksb-content-proxy/internal/cache"
	"ksb-content-proxy/internal/crawler"
	"ksb-content-proxy/internal/models"
	"ksb-content-proxy/internal/parser"
	"ksb-content-proxy/internal/server"
	"ksb-content-proxy/internal/telemetry"
	"ksb-content-proxy/pkg/logger"
)

func main() {
	cfg := config.MustLoad()
	logger.New(os.Stdout, logger.Options{Level: cfg.LogLevel, Type: cfg.LogType, Env: cfg.Env})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := telemetry.SetupMetrics(ctx, cfg)
	defer metrics.Close()

	docCache := setupCache(cfg.CacheSettings)
	defer docCache.Close()

	article := allowlist.New(cfg.ArticleProxy.AllowedDomains)
	rss := allowlist.New(cfg.RssProxy.AllowedDomains)

	client := crawler.NewHTTPClient(crawler.NewTransportClient(cfg.HttpClientSettings), crawler.Options{
		UserAgent:      cfg.FetcherSettings.UserAgent,
		AcceptLanguage: cfg.FetcherSettings.AcceptLanguage,
		SizeCap:        cfg.FetcherSettings.MaxBodyBytes,
		Limiter:        setupLimiter(cfg.FetcherSettings),
		Cache:          docCache,
		Freshness: map[models.Kind]time.Duration{
			models.KindArticle: cfg.ArticleProxy.Freshness,
			models.KindFeed:    cfg.RssProxy.Freshness,
		},
		Allow: map[models.Kind]*allowlist.Validator{
			models.KindArticle: article,
			models.KindFeed:    rss,
		},
		Metrics: metrics.FetchMetrics,
	})

	registry, err := parser.NewRegistry(cfg.ArticleProxy.Strategies)
	if err != nil {
		slog.Error("invalid extraction strategies.", slog.String("err", err.Error()))
		os.Exit(1)
	}

	srv := server.New(client, parser.New(registry),
		server.Endpoint{
			Validator:    article,
			CacheControl: server.CacheControl(cfg.ArticleProxy.Freshness, cfg.ArticleProxy.StaleWhileRevalidate),
		},
		server.Endpoint{
			Validator:    rss,
			CacheControl: server.CacheControl(cfg.RssProxy.Freshness, cfg.RssProxy.StaleWhileRevalidate),
		},
		metrics.ProxyMetrics)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("server listening.", slog.String("addr", httpServer.Addr),
			slog.String("version", cfg.Version), slog.Any("article_domains", article.Domains()),
			slog.Any("rss_domains", rss.Domains()))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error.", slog.String("err", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed.", slog.String("err", err.Error()))
	}
	slog.Info("bye.")
}

func setupCache(cfg *config.CacheConfig) cache.DocumentCache {
	if !cfg.Enabled {
		return cache.Noop{}
	}
	mc, err := cache.NewMemcachedClient(cfg.Servers, cfg.Timeout)
	if err != nil {
		slog.Error("failed to connect to memcached.", slog.String("err", err.Error()))
		os.Exit(1)
	}
	return mc
}

// setupLimiter returns nil when throttling is disabled.
func setupLimiter(cfg *config.FetcherConfig) *rate.Limiter {
	if cfg.RequestsLimit <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(cfg.TimeInterval/time.Duration(cfg.RequestsLimit)), cfg.RequestsLimit)
}
