package parser

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

const (
	MaxContentLength = 5000
	truncationMarker = "..."
)

var (
	hspaceRe     = regexp.MustCompile(`[\t\f\v\r\p{Zs}\x{200B}\x{FEFF}]+`)
	lineEdgeRe   = regexp.MustCompile(` ?\n ?`)
	blankLinesRe = regexp.MustCompile(`\n{3,}`)
)

// Normalize collapses horizontal whitespace runs to one space, keeps at most one blank
// line between paragraphs and trims the result.
func Normalize(s string) string {
	s = hspaceRe.ReplaceAllString(s, " ")
	s = lineEdgeRe.ReplaceAllString(s, "\n")
	s = blankLinesRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// Truncate cuts s to MaxContentLength runes and appends "..." when it was longer.
func Truncate(s string) string {
	if utf8.RuneCountInString(s) <= MaxContentLength {
		return s
	}
	runes := []rune(s)
	return string(runes[:MaxContentLength]) + truncationMarker
}

var blockTags = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true, "br": true, "dd": true,
	"div": true, "dl": true, "dt": true, "figcaption": true, "figure": true, "footer": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true, "header": true,
	"hr": true, "li": true, "main": true, "ol": true, "p": true, "pre": true, "section": true,
	"table": true, "td": true, "th": true, "tr": true, "ul": true,
}

// blockText is Selection.Text with paragraph breaks kept around block elements, so
// <p>a</p><p>b</p> reads "a\n\nb" rather than "ab".
func blockText(sel *goquery.Selection) string {
	var b strings.Builder
	for _, n := range sel.Nodes {
		collectText(&b, n)
	}
	return b.String()
}

func collectText(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode:
		switch n.Data {
		case "script", "style", "noscript", "template":
			return
		}
	}
	block := n.Type == html.ElementNode && blockTags[n.Data]
	if block {
		b.WriteString("\n\n")
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(b, c)
	}
	if block {
		b.WriteString("\n\n")
	}
}
