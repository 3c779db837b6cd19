package parser

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"  a \t b\n\n\n\n c  ":       "a b\n\nc",
		"line one \n line two":       "line one\nline two",
		"\u00a0\u00a0nbsp\u00a0runs": "nbsp runs",
		"":                           "",
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Fatalf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTruncate(t *testing.T) {
	short := strings.Repeat("a", MaxContentLength)
	if Truncate(short) != short {
		t.Fatal("content at the limit must be untouched")
	}
	long := strings.Repeat("é", MaxContentLength+1)
	got := Truncate(long)
	if got != strings.Repeat("é", MaxContentLength)+"..." {
		t.Fatal("truncation must count runes, not bytes")
	}
}

func TestRegistryLookup(t *testing.T) {
	r, err := NewRegistry(map[string]string{"www.ussugar.com": "strip-media", "news.agweek.com": "paragraphs", "agweek.com": "aggressive"})
	if err != nil {
		t.Fatal(err)
	}
	cases := map[string]string{
		"ussugar.com":         StrategyStripMedia,
		"blog.ussugar.com":    StrategyStripMedia,
		"WWW.USSUGAR.COM":     StrategyStripMedia,
		"news.agweek.com":     StrategyParagraphs,
		"sub.news.agweek.com": StrategyParagraphs,
		"agweek.com":          StrategyAggressive,
		"notussugar.com":      StrategyDefault,
		"sugarcaneworld.com":  StrategyDefault,
	}
	for host, want := range cases {
		if got := r.Lookup(host).Name(); got != want {
			t.Fatalf("%s: want %s, got %s", host, want, got)
		}
	}
}

func TestRegistryUnknownStrategy(t *testing.T) {
	if _, err := NewRegistry(map[string]string{"ussugar.com": "magic"}); err == nil {
		t.Fatal("expected error for unknown strategy")
	}
}

func TestLeafBlocksNested(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`<article>
<div><div><p>one</p><div>two</div></div></div>
<p>three <span>and a half</span></p>
<ul><li>four</li></ul>
</article>`))
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	leafBlocks(doc.Find("article"), contentSelector).Each(func(_ int, s *goquery.Selection) {
		got = append(got, Normalize(s.Text()))
	})
	want := []string{"one", "two", "three and a half", "four"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestLeafBlocksDeepNesting(t *testing.T) {
	html := strings.Repeat("<div>", 2000) + "<p>deep</p>" + strings.Repeat("</div>", 2000)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<article>" + html + "</article>"))
	if err != nil {
		t.Fatal(err)
	}
	leaves := leafBlocks(doc.Find("article"), contentSelector)
	if leaves.Length() != 1 || leaves.Text() != "deep" {
		t.Fatalf("unexpected leaves: %d %q", leaves.Length(), leaves.Text())
	}
}

func TestTextRuns(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(
		`<article>lead <b>bold</b> text<img src="/a.jpg">after image<br>after break<p>para</p>tail<script>x()</script></article>`))
	if err != nil {
		t.Fatal(err)
	}
	got := textRuns(doc.Find("article"))
	want := []string{"lead bold text", "after image", "after break", "para", "tail"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("got %q, want %q", got, want)
	}
}
