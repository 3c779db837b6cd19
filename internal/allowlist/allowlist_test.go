package allowlist

import (
	"errors"
	"testing"
)

var articleDomains = []string{"ussugar.com", "dwmco.com", "agweek.com", "ragus.co.uk", "sugarjournal.com", "sugarcaneworld.com"}

func TestValidateAllowed(t *testing.T) {
	v := New(articleDomains)
	for _, raw := range []string{
		"https://ussugar.com/article1",
		"https://www.ussugar.com/article1",
		"http://news.agweek.com/x?y=1",
		"https://WWW.RAGUS.CO.UK/blog",
		"https://deep.sub.sugarjournal.com/",
	} {
		if _, err := v.Validate(raw); err != nil {
			t.Fatalf("%s: unexpected err %v", raw, err)
		}
	}
}

func TestValidateRejected(t *testing.T) {
	v := New(articleDomains)
	for _, raw := range []string{
		"https://evil.com/steal",
		"https://ussugar.com.evil.com/",
		"https://notussugar.com/",
		"https://agweek.co/",
		"http://127.0.0.1/",
	} {
		_, err := v.Validate(raw)
		if !errors.Is(err, ErrDomainNotAllowed) {
			t.Fatalf("%s: want ErrDomainNotAllowed, got %v", raw, err)
		}
	}
}

func TestValidateInvalid(t *testing.T) {
	v := New(articleDomains)
	for _, raw := range []string{
		"://nope",
		"ussugar.com/article",
		"ftp://ussugar.com/file",
		"https://",
		"http://[::1",
	} {
		_, err := v.Validate(raw)
		if !errors.Is(err, ErrInvalidURL) {
			t.Fatalf("%q: want ErrInvalidURL, got %v", raw, err)
		}
	}
}

func TestNewNormalisesDomains(t *testing.T) {
	v := New([]string{" WWW.Example.org. ", "", "sugar.test"})
	got := v.Domains()
	if len(got) != 2 || got[0] != "example.org" || got[1] != "sugar.test" {
		t.Fatalf("unexpected domains: %v", got)
	}
	if base, ok := v.Match("blog.example.org"); !ok || base != "example.org" {
		t.Fatalf("want example.org match, got %q %v", base, ok)
	}
}
