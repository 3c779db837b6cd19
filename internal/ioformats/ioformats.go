package ioformats

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"ksb-content-proxy/internal/models"
)

var ErrNoURLs = errors.New("no urls found")

// ReadURLs reads a URL list from a CSV file with a "url" header column or from NDJSON.
// Unknown extensions are tried as CSV first.
func ReadURLs(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ReadCSV(bytes.NewReader(data))
	case ".ndjson", ".jsonl":
		return ReadNDJSON(bytes.NewReader(data))
	default:
		if urls, err := ReadCSV(bytes.NewReader(data)); err == nil {
			return urls, nil
		}
		return ReadNDJSON(bytes.NewReader(data))
	}
}

func ReadCSV(r io.Reader) ([]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoURLs
	}
	if err != nil {
		return nil, err
	}
	col := -1
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")), "url") {
			col = i
			break
		}
	}
	if col == -1 {
		return nil, errors.New("csv must contain a 'url' header column")
	}

	var out []string
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if col < len(row) {
			if u := strings.TrimSpace(row[col]); u != "" {
				out = append(out, u)
			}
		}
	}
	if len(out) == 0 {
		return nil, ErrNoURLs
	}
	return out, nil
}

// ReadNDJSON accepts one URL per line, either bare or as {"url": "..."}.
func ReadNDJSON(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	for line := 1; sc.Scan(); line++ {
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		if !strings.HasPrefix(text, "{") {
			out = append(out, text)
			continue
		}
		var req struct {
			URL string `json:"url"`
		}
		if err := json.Unmarshal([]byte(text), &req); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if req.URL != "" {
			out = append(out, strings.TrimSpace(req.URL))
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNoURLs
	}
	return out, nil
}

// RecordWriter streams batch records as NDJSON. Safe for concurrent use.
type RecordWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func NewRecordWriter(w io.Writer) *RecordWriter {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &RecordWriter{enc: enc}
}

func (rw *RecordWriter) Write(rec models.BatchRecord) error {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	return rw.enc.Encode(rec)
}
