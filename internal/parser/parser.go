package parser

import (
	"bytes"
	"net/url"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"

	"ksb-content-proxy/internal/models"
)

// Placeholder is returned when no text can be extracted; a missing body is not an error.
const Placeholder = "Content could not be extracted from this article. Please read it on the original site."

const minContentLength = 100

// main content containers, most specific first
var contentSelectors = []string{
	"article",
	"[itemprop='articleBody']",
	".entry-content",
	".post-content",
	".article-content",
	".article-body",
	".story-body",
	".post-body",
	".td-post-content",
	".single-post-content",
	"main",
	"#content",
	".content",
}

const noiseSelector = "script, style, noscript, nav, aside, form, iframe, .sidebar, #sidebar, .widget, " +
	".advertisement, .ads, .ad, .adsbygoogle, .social-share, .share-buttons, .sharedaddy, " +
	".comments, #comments, .comment-respond, .related-posts, .newsletter"

type Parser struct {
	registry *Registry
}

// New uses DefaultHostStrategies when registry is nil.
func New(registry *Registry) *Parser {
	if registry == nil {
		registry, _ = NewRegistry(DefaultHostStrategies)
	}
	return &Parser{registry: registry}
}

func (p *Parser) Extract(raw models.RawDocument) (models.ExtractionResult, error) {
	data := raw.Body
	// Decode to UTF-8 if needed. The sniffer only sees the first 1024 bytes and guesses
	// windows-1252 when it finds nothing, so a valid UTF-8 body wins over a guess.
	enc, _, certain := charset.DetermineEncoding(data, raw.ContentType)
	if certain || !utf8.Valid(data) {
		decoded, err := enc.NewDecoder().Bytes(data)
		if err != nil && !utf8.Valid(data) {
			return models.ExtractionResult{}, err
		}
		if err == nil {
			data = decoded
		}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return models.ExtractionResult{}, err
	}

	base, _ := url.Parse(raw.URL)
	var strategy Strategy = p.registry.fallback
	if base != nil {
		strategy = p.registry.Lookup(base.Hostname())
	}

	// Text first: strategies that strip media do so on the shared document, and the
	// image search below must not pick those images back up.
	content := extractContent(doc, strategy)
	return models.ExtractionResult{
		Content:  content,
		ImageURL: findImage(doc, data, base),
	}, nil
}

func extractContent(doc *goquery.Document, strategy Strategy) string {
	for _, selector := range contentSelectors {
		found := doc.Find(selector)
		if found.Length() == 0 {
			continue
		}
		el := found.First()
		el.Find(noiseSelector).Remove()
		text := Normalize(strategy.Extract(el))
		if utf8.RuneCountInString(text) > minContentLength {
			return Truncate(text)
		}
	}

	body := doc.Find("body")
	body.Find(noiseSelector).Remove()
	body.Find("nav, header, footer").Remove()
	text := Normalize(blockText(body))
	if text == "" {
		return Placeholder
	}
	return Truncate(text)
}
