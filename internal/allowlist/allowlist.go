package allowlist

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	ErrInvalidURL       = errors.New("invalid url")
	ErrDomainNotAllowed = errors.New("domain not allowed")
)

// Validator restricts fetch targets to a fixed set of publisher domains.
type Validator struct {
	domains []string
}

// New normalises the base domains. Order is kept so Match reports the first
// configured base that covers a host.
func New(domains []string) *Validator {
	v := &Validator{}
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		d = strings.Trim(d, ".")
		d = strings.TrimPrefix(d, "www.")
		if d != "" {
			v.domains = append(v.domains, d)
		}
	}
	return v
}

func (v *Validator) Domains() []string {
	return append([]string(nil), v.domains...)
}

// Validate parses raw and checks its host against the allow-list.
func (v *Validator) Validate(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	if _, ok := v.Match(u.Hostname()); !ok {
		return nil, fmt.Errorf("%w: %s", ErrDomainNotAllowed, u.Hostname())
	}
	return u, nil
}

// Match reports the allowed base domain covering host: the base itself, www.<base>,
// or any subdomain of base.
func (v *Validator) Match(host string) (string, bool) {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	for _, base := range v.domains {
		if host == base || host == "www."+base || strings.HasSuffix(host, "."+base) {
			return base, true
		}
	}
	return "", false
}
