package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"ksb-content-proxy/config"
	"ksb-content-proxy/internal/allowlist"
	"ksb-content-proxy/internal/crawler"
	"ksb-content-proxy/internal/ioformats"
	"ksb-content-proxy/internal/models"
	"ksb-content-proxy/internal/parser"
	"ksb-content-proxy/pkg/logger"
)

func main() {
	in := flag.String("input", "", "input file (csv with 'url' column or ndjson)")
	out := flag.String("output", "", "output NDJSON file (default stdout)")
	concurrency := flag.Int("concurrency", 10, "worker concurrency")
	flag.Parse()

	if *in == "" {
		fmt.Fprintln(os.Stderr, "missing --input")
		os.Exit(2)
	}
	if *concurrency < 1 {
		*concurrency = 1
	}

	cfg := config.MustLoad()
	logger.New(os.Stderr, logger.Options{Level: cfg.LogLevel, Type: cfg.LogType, Env: cfg.Env})

	urls, err := ioformats.ReadURLs(*in)
	if err != nil {
		slog.Error("failed to read input.", slog.String("path", *in), slog.String("err", err.Error()))
		os.Exit(1)
	}

	w := os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			slog.Error("failed to create output.", slog.String("path", *out), slog.String("err", err.Error()))
			os.Exit(1)
		}
		defer f.Close()
		w = f
	}

	registry, err := parser.NewRegistry(cfg.ArticleProxy.Strategies)
	if err != nil {
		slog.Error("invalid extraction strategies.", slog.String("err", err.Error()))
		os.Exit(1)
	}
	allow := allowlist.New(cfg.ArticleProxy.AllowedDomains)
	client := crawler.NewHTTPClient(crawler.NewTransportClient(cfg.HttpClientSettings), crawler.Options{
		UserAgent:      cfg.FetcherSettings.UserAgent,
		AcceptLanguage: cfg.FetcherSettings.AcceptLanguage,
		SizeCap:        cfg.FetcherSettings.MaxBodyBytes,
		Allow:          map[models.Kind]*allowlist.Validator{models.KindArticle: allow},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b := &batch{allow: allow, fetcher: client, parser: parser.New(registry)}
	failed := b.run(ctx, urls, *concurrency, ioformats.NewRecordWriter(w))
	slog.Info("batch finished.", slog.Int("total", len(urls)), slog.Int("failed", failed))
}

type fetcher interface {
	Fetch(ctx context.Context, rawURL string, kind models.Kind) (models.RawDocument, error)
}

type batch struct {
	allow   *allowlist.Validator
	fetcher fetcher
	parser  *parser.Parser
}

// run extracts every url with bounded concurrency and returns the number of failures.
// Records are written as they complete, so output order is not input order.
func (b *batch) run(ctx context.Context, urls []string, concurrency int, out *ioformats.RecordWriter) int {
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed int
	)
	sem := make(chan struct{}, concurrency)
	for _, u := range urls {
		sem <- struct{}{} // acquire
		wg.Add(1)
		go func() {
			defer func() { <-sem; wg.Done() }()
			rec := b.extract(ctx, u)
			if rec.Error != "" {
				mu.Lock()
				failed++
				mu.Unlock()
			}
			if err := out.Write(rec); err != nil {
				slog.Error("failed to write record.", slog.String("url", u), slog.String("err", err.Error()))
			}
		}()
	}
	wg.Wait()
	return failed
}

func (b *batch) extract(ctx context.Context, raw string) models.BatchRecord {
	u, err := b.allow.Validate(raw)
	if err != nil {
		return models.BatchRecord{URL: raw, Error: err.Error()}
	}
	doc, err := b.fetcher.Fetch(ctx, u.String(), models.KindArticle)
	if err != nil {
		return models.BatchRecord{URL: raw, Error: err.Error()}
	}
	res, err := b.parser.Extract(doc)
	if err != nil {
		return models.BatchRecord{URL: raw, Error: err.Error()}
	}
	return models.BatchRecord{URL: raw, Result: &res}
}
