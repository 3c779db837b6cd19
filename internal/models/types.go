package models

// Kind selects the proxy endpoint a document is fetched for. It decides the Accept header
// and the freshness window of cached copies.
type Kind string

const (
	KindArticle Kind = "article"
	KindFeed    Kind = "rss"
)

// RawDocument is the fetched body plus where it came from.
type RawDocument struct {
	URL         string
	Body        []byte
	ContentType string
	FromCache   bool
}

type ExtractionResult struct {
	Content  string `json:"content"`
	ImageURL string `json:"imageUrl,omitempty"`
}

type ErrorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// BatchRecord is one NDJSON line of the batch CLI output.
type BatchRecord struct {
	URL    string            `json:"url"`
	Result *ExtractionResult `json:"result,omitempty"`
	Error  string            `json:"error,omitempty"`
}
