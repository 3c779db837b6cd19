package ioformats

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ksb-content-proxy/internal/models"
)

func TestReadCSV(t *testing.T) {
	in := "id,URL\n1, https://ussugar.com/a \n2,\n3,https://agweek.com/b\n"
	urls, err := ReadCSV(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	if len(urls) != 2 || urls[0] != "https://ussugar.com/a" || urls[1] != "https://agweek.com/b" {
		t.Fatalf("unexpected urls %v", urls)
	}
}

func TestReadCSVWithoutURLColumn(t *testing.T) {
	if _, err := ReadCSV(strings.NewReader("link\nhttps://a.com\n")); err == nil {
		t.Fatal("expected an error for a missing url column")
	}
	if _, err := ReadCSV(strings.NewReader("")); !errors.Is(err, ErrNoURLs) {
		t.Fatalf("want ErrNoURLs, got %v", err)
	}
}

func TestReadNDJSON(t *testing.T) {
	in := `https://ussugar.com/a

{"url": "https://dwmco.com/b"}
{"other": 1}
`
	urls, err := ReadNDJSON(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	if len(urls) != 2 || urls[1] != "https://dwmco.com/b" {
		t.Fatalf("unexpected urls %v", urls)
	}
	if _, err := ReadNDJSON(strings.NewReader("{broken\n")); err == nil {
		t.Fatal("expected a decode error")
	}
}

func TestReadURLsByExtension(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "urls.csv")
	if err := os.WriteFile(csvPath, []byte("url\nhttps://agweek.com/x\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	txtPath := filepath.Join(dir, "urls.txt")
	if err := os.WriteFile(txtPath, []byte("https://agweek.com/y\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	urls, err := ReadURLs(csvPath)
	if err != nil || len(urls) != 1 || urls[0] != "https://agweek.com/x" {
		t.Fatalf("csv: %v %v", urls, err)
	}
	// no url header, so the csv attempt fails and the file is read line by line
	urls, err = ReadURLs(txtPath)
	if err != nil || len(urls) != 1 || urls[0] != "https://agweek.com/y" {
		t.Fatalf("txt: %v %v", urls, err)
	}
	if _, err := ReadURLs(filepath.Join(dir, "missing.csv")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestRecordWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewRecordWriter(&buf)
	_ = w.Write(models.BatchRecord{URL: "https://a.com/?x=1&y=2", Result: &models.ExtractionResult{Content: "text"}})
	_ = w.Write(models.BatchRecord{URL: "https://b.com", Error: "URL not allowed"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("want 2 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "x=1&y=2") {
		t.Fatalf("html escaping should be off: %s", lines[0])
	}
	var rec models.BatchRecord
	if err := json.Unmarshal([]byte(lines[1]), &rec); err != nil {
		t.Fatal(err)
	}
	if rec.Result != nil || rec.Error != "URL not allowed" {
		t.Fatalf("unexpected record %+v", rec)
	}
}
