package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"ksb-content-proxy/internal/allowlist"
	"ksb-content-proxy/internal/ioformats"
	"ksb-content-proxy/internal/models"
	"ksb-content-proxy/internal/parser"
)

type stubFetcher map[string]string

func (s stubFetcher) Fetch(_ context.Context, rawURL string, _ models.Kind) (models.RawDocument, error) {
	body, ok := s[rawURL]
	if !ok {
		return models.RawDocument{}, errors.New("connection refused")
	}
	return models.RawDocument{URL: rawURL, Body: []byte(body), ContentType: "text/html"}, nil
}

func TestBatchRun(t *testing.T) {
	page := `<html><body><article><p>Mills in the Nzoia belt resumed crushing after the rains, lifting weekly cane deliveries above forecast.</p></article></body></html>`
	b := &batch{
		allow:   allowlist.New([]string{"agweek.com"}),
		fetcher: stubFetcher{"https://agweek.com/ok": page},
		parser:  parser.New(nil),
	}
	var buf bytes.Buffer
	failed := b.run(context.Background(), []string{
		"https://agweek.com/ok",
		"https://agweek.com/down",
		"https://evil.com/x",
	}, 2, ioformats.NewRecordWriter(&buf))

	if failed != 2 {
		t.Fatalf("want 2 failures, got %d", failed)
	}
	got := map[string]models.BatchRecord{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var rec models.BatchRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			t.Fatal(err)
		}
		got[rec.URL] = rec
	}
	if r := got["https://agweek.com/ok"]; r.Result == nil || !strings.HasPrefix(r.Result.Content, "Mills in the Nzoia") {
		t.Fatalf("unexpected ok record %+v", r)
	}
	if r := got["https://agweek.com/down"]; r.Error != "connection refused" {
		t.Fatalf("unexpected failed record %+v", r)
	}
	if r := got["https://evil.com/x"]; !strings.Contains(r.Error, "not allowed") {
		t.Fatalf("unexpected rejected record %+v", r)
	}
}
