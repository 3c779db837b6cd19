package parser

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/dyatlov/go-opengraph/opengraph"
)

// featured image conventions first, then any image inside the article body
var imageSelectors = []string{
	".featured-image img",
	".post-thumbnail img",
	".wp-post-image",
	".entry-thumbnail img",
	".article-image img",
	".hero-image img",
	"article img",
	".entry-content img",
	".post-content img",
	"main img",
}

const twitterImageSelector = `meta[name="twitter:image"], meta[name="twitter:image:src"], meta[property="twitter:image"]`

// findImage returns an absolute URL for the article's representative image, or "".
func findImage(doc *goquery.Document, raw []byte, base *url.URL) string {
	for _, selector := range imageSelectors {
		var src string
		doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			src = imageSource(s)
			return src == ""
		})
		if src != "" {
			return resolve(base, src)
		}
	}

	og := opengraph.NewOpenGraph()
	if err := og.ProcessHTML(bytes.NewReader(raw)); err == nil {
		for _, img := range og.Images {
			if img != nil && strings.TrimSpace(img.URL) != "" {
				return resolve(base, img.URL)
			}
		}
	}

	if tw := strings.TrimSpace(doc.Find(twitterImageSelector).First().AttrOr("content", "")); tw != "" {
		return resolve(base, tw)
	}
	return ""
}

// imageSource prefers src and falls back to the lazy-loading attributes.
func imageSource(s *goquery.Selection) string {
	for _, attr := range []string{"src", "data-src", "data-lazy-src"} {
		v := strings.TrimSpace(s.AttrOr(attr, ""))
		if v != "" && !strings.HasPrefix(v, "data:") {
			return v
		}
	}
	return ""
}

func resolve(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if base == nil {
		if u.IsAbs() {
			return u.String()
		}
		return ""
	}
	return base.ResolveReference(u).String()
}
