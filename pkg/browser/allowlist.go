package browser

import (
	"net/url"
	"strings"

	"github.com/gobwas/glob"
	"github.com/pkg/errors"
)

// ErrHostNotAllowed is returned by Check for URLs outside the allowlist.
var ErrHostNotAllowed = errors.New("host not allowed")

// HostMatcher decides which hosts the service may navigate to. Patterns are
// globs over dotted host names, e.g. "*.wikipedia.org".
type HostMatcher struct {
	patterns []glob.Glob
}

// NewHostMatcher compiles patterns. No patterns allows every host.
func NewHostMatcher(patterns []string) (*HostMatcher, error) {
	hm := &HostMatcher{}
	for _, p := range patterns {
		g, err := glob.Compile(strings.ToLower(p), '.')
		if err != nil {
			return nil, errors.Wrapf(err, "invalid host pattern '%s'", p)
		}
		hm.patterns = append(hm.patterns, g)
	}
	return hm, nil
}

// Allowed reports whether rawURL is an http(s) URL whose host matches.
func (hm *HostMatcher) Allowed(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
		return false
	}
	if hm == nil || len(hm.patterns) == 0 {
		return true
	}

	host := strings.ToLower(u.Hostname())
	for _, g := range hm.patterns {
		if g.Match(host) {
			return true
		}
	}
	return false
}

// Check returns ErrHostNotAllowed, annotated with rawURL, when Allowed is
// false.
func (hm *HostMatcher) Check(rawURL string) error {
	if hm.Allowed(rawURL) {
		return nil
	}
	return errors.Wrap(ErrHostNotAllowed, rawURL)
}
