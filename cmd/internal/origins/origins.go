// Package origins matches browser Origin headers against an operator allowlist.
//
// Entries are full origins ("https://app.example.com"), origins with a wildcard
// port ("http://127.0.0.1:*"), or a lone "*". Matching is case-insensitive on
// scheme and host. The same list drives CORS and the WebSocket origin check.
package origins

import (
	"net"
	"net/url"
	"strings"
)

type entry struct {
	scheme  string
	host    string
	port    string // "" = default port, "*" = any
	anyPort bool
}

// Allowlist is an immutable set of allowed origins.
type Allowlist struct {
	raw      []string
	entries  []entry
	allowAny bool
}

// Parse builds an Allowlist. Malformed entries are skipped and returned so
// callers can log them.
func Parse(list []string) (Allowlist, []string) {
	var (
		out     Allowlist
		invalid []string
	)
	for _, s := range list {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if s == "*" {
			out.allowAny = true
			out.raw = append(out.raw, s)
			continue
		}
		e, ok := parseEntry(s)
		if !ok {
			invalid = append(invalid, s)
			continue
		}
		out.entries = append(out.entries, e)
		out.raw = append(out.raw, s)
	}
	return out, invalid
}

// Empty reports whether nothing is allowed.
func (a Allowlist) Empty() bool { return !a.allowAny && len(a.entries) == 0 }

// AllowAny reports whether "*" was configured.
func (a Allowlist) AllowAny() bool { return a.allowAny }

// Entries returns the accepted raw entries.
func (a Allowlist) Entries() []string { return append([]string(nil), a.raw...) }

// Allowed reports whether origin matches the allowlist.
func (a Allowlist) Allowed(origin string) bool {
	origin = strings.TrimSpace(origin)
	if origin == "" {
		return false
	}
	if a.allowAny {
		return true
	}

	o, ok := parseEntry(origin)
	if !ok || o.anyPort {
		return false
	}

	for _, e := range a.entries {
		if e.scheme != o.scheme || e.host != o.host {
			continue
		}
		if e.anyPort || e.port == o.port {
			return true
		}
	}
	return false
}

// HostPatterns returns host[:port] patterns for websocket.AcceptOptions.OriginPatterns,
// which matches against the Origin's host with path.Match semantics.
func (a Allowlist) HostPatterns() []string {
	if a.allowAny {
		return []string{"*"}
	}

	seen := make(map[string]struct{}, len(a.entries))
	out := make([]string, 0, len(a.entries))
	for _, e := range a.entries {
		p := e.host
		if e.port != "" {
			p = net.JoinHostPort(e.host, e.port)
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

func parseEntry(s string) (entry, bool) {
	scheme, rest, ok := strings.Cut(s, "://")
	if !ok {
		return entry{}, false
	}
	scheme = strings.ToLower(scheme)
	if scheme != "http" && scheme != "https" {
		return entry{}, false
	}
	rest = strings.TrimSuffix(rest, "/")
	if rest == "" || strings.ContainsAny(rest, "/?#@") {
		return entry{}, false
	}

	// A wildcard port cannot go through url.Parse.
	if h, ok := strings.CutSuffix(rest, ":*"); ok {
		if h == "" {
			return entry{}, false
		}
		return entry{scheme: scheme, host: strings.ToLower(h), port: "*", anyPort: true}, true
	}

	u, err := url.Parse(scheme + "://" + rest)
	if err != nil || u.Hostname() == "" {
		return entry{}, false
	}
	return entry{
		scheme: scheme,
		host:   strings.ToLower(u.Hostname()),
		port:   u.Port(),
	}, true
}
