package parser

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"ksb-content-proxy/internal/classifier"
)

// Strategy turns a noise-stripped content element into article text.
type Strategy interface {
	Name() string
	Extract(el *goquery.Selection) string
}

const (
	StrategyDefault    = "default"
	StrategyParagraphs = "paragraphs"
	StrategyStripMedia = "strip-media"
	StrategyAggressive = "aggressive"
)

// DefaultHostStrategies maps publishers with known markup quirks to their strategy.
var DefaultHostStrategies = map[string]string{
	"dwmco.com":        StrategyParagraphs,
	"ussugar.com":      StrategyStripMedia,
	"sugarjournal.com": StrategyAggressive,
}

const (
	mediaSelector      = "img, picture, figure, video, iframe"
	nonArticleSelector = "header, footer, button, figcaption, .author-box, .byline, .post-meta, .entry-meta, " +
		".tags, .post-tags, .breadcrumb, .breadcrumbs, .navigation, .pagination, .caption, .wp-caption-text"
	contentSelector = "p, h2, h3, h4, h5, h6, li, blockquote, pre, td, div"
)

type rawText struct{}

func (rawText) Name() string { return StrategyDefault }

func (rawText) Extract(el *goquery.Selection) string { return blockText(el) }

// paragraphs is for sites that interleave body text between inline images. The container
// is split into fragments at block, image and line-break boundaries, including bare text
// sitting between images, and only fragments the classifier labels as body survive. That
// drops stray captions and image labels.
type paragraphs struct {
	fragments *classifier.Classifier
}

func (paragraphs) Name() string { return StrategyParagraphs }

func (s paragraphs) Extract(el *goquery.Selection) string {
	var parts []string
	for _, t := range textRuns(el) {
		if s.fragments.Keep(t) {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n\n")
}

// textRuns walks el once and returns its normalised text runs. A run ends at every block
// element, <img>, <br> and <hr>; inline markup stays inside its run.
func textRuns(el *goquery.Selection) []string {
	var (
		runs []string
		cur  strings.Builder
	)
	flush := func() {
		if t := Normalize(cur.String()); t != "" {
			runs = append(runs, t)
		}
		cur.Reset()
	}
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			switch {
			case c.Type == html.TextNode:
				cur.WriteString(c.Data)
			case c.Type != html.ElementNode:
			case c.Data == "script" || c.Data == "style" || c.Data == "noscript" || c.Data == "template":
			case c.Data == "img" || c.Data == "br" || c.Data == "hr" || c.Data == "picture":
				flush()
			case blockTags[c.Data]:
				flush()
				walk(c)
				flush()
			default:
				walk(c)
			}
		}
	}
	for _, n := range el.Nodes {
		walk(n)
		flush()
	}
	return runs
}

type stripMedia struct{}

func (stripMedia) Name() string { return StrategyStripMedia }

func (stripMedia) Extract(el *goquery.Selection) string {
	el.Find(mediaSelector).Remove()
	return blockText(el)
}

type aggressive struct {
	fragments    *classifier.Classifier
	minAggregate int
}

func (aggressive) Name() string { return StrategyAggressive }

func (s aggressive) Extract(el *goquery.Selection) string {
	el.Find(mediaSelector).Remove()
	el.Find(nonArticleSelector).Remove()

	var parts []string
	leafBlocks(el, contentSelector).Each(func(_ int, b *goquery.Selection) {
		t := Normalize(blockText(b))
		if s.fragments.Keep(t) {
			parts = append(parts, t)
		}
	})
	joined := strings.Join(parts, "\n\n")
	if utf8.RuneCountInString(joined) < s.minAggregate {
		return blockText(el)
	}
	return joined
}

// leafBlocks returns the elements matching selector that contain no other match,
// so nested blocks are not counted twice. Every match marks its ancestors up to el once,
// which keeps deeply nested markup linear.
func leafBlocks(el *goquery.Selection, selector string) *goquery.Selection {
	matches := el.Find(selector)
	roots := make(map[*html.Node]bool, len(el.Nodes))
	for _, n := range el.Nodes {
		roots[n] = true
	}
	inner := make(map[*html.Node]bool)
	for _, n := range matches.Nodes {
		for p := n.Parent; p != nil && !roots[p] && !inner[p]; p = p.Parent {
			inner[p] = true
		}
	}
	return matches.FilterFunction(func(_ int, s *goquery.Selection) bool {
		return !inner[s.Nodes[0]]
	})
}

func builtinStrategies() map[string]Strategy {
	return map[string]Strategy{
		StrategyDefault:    rawText{},
		StrategyParagraphs: paragraphs{fragments: classifier.New(21)},
		StrategyStripMedia: stripMedia{},
		StrategyAggressive: aggressive{fragments: classifier.New(30), minAggregate: 200},
	}
}

type hostRule struct {
	suffix   string
	strategy Strategy
}

// Registry dispatches a hostname to its extraction strategy by domain suffix.
type Registry struct {
	rules    []hostRule
	fallback Strategy
}

func NewRegistry(hosts map[string]string) (*Registry, error) {
	builtins := builtinStrategies()
	r := &Registry{fallback: builtins[StrategyDefault]}
	for host, name := range hosts {
		s, ok := builtins[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("unknown extraction strategy %q for %s", name, host)
		}
		host = strings.TrimPrefix(strings.Trim(strings.ToLower(strings.TrimSpace(host)), "."), "www.")
		if host == "" {
			continue
		}
		r.rules = append(r.rules, hostRule{suffix: host, strategy: s})
	}
	// longest suffix wins
	sort.Slice(r.rules, func(i, j int) bool {
		if len(r.rules[i].suffix) == len(r.rules[j].suffix) {
			return r.rules[i].suffix < r.rules[j].suffix
		}
		return len(r.rules[i].suffix) > len(r.rules[j].suffix)
	})
	return r, nil
}

func (r *Registry) Lookup(host string) Strategy {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	for _, rule := range r.rules {
		if host == rule.suffix || strings.HasSuffix(host, "."+rule.suffix) {
			return rule.strategy
		}
	}
	return r.fallback
}
