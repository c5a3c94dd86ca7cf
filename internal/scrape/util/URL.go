package util

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"gradscout-engine/internal/domain"
)

// CanonicalizeURL lowercases scheme and host, drops the fragment and tracking
// params, and sorts the query so the same posting always hashes the same way.
func CanonicalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	for k := range q {
		lk := strings.ToLower(k)
		if strings.HasPrefix(lk, "utm_") ||
			lk == "gclid" || lk == "fbclid" || lk == "msclkid" ||
			lk == "mc_cid" || lk == "mc_eid" ||
			lk == "mkt_tok" || lk == "gh_src" || lk == "lever-source" {
			q.Del(k)
		}
	}

	// deterministic query
	for k := range q {
		vals := q[k]
		sort.Strings(vals)
		q[k] = vals
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// ResolveURL resolves href against base. Empty or unparseable hrefs return "".
func ResolveURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref.String()
	}
	return b.ResolveReference(ref).String()
}

func HashString(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// SourceID prefers the board's own id; without one it falls back to a hash of
// the canonical URL.
func SourceID(kind domain.ExtractorKind, board, id, rawURL string) string {
	if id != "" {
		return fmt.Sprintf("%s:%s:%s", kind, strings.ToLower(board), id)
	}
	return fmt.Sprintf("%s:url:%s", kind, HashString(CanonicalizeURL(rawURL)))
}

// PathSegment returns the n-th non-empty path segment of raw, or "".
func PathSegment(raw string, n int) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	var segs []string
	for _, s := range strings.Split(u.Path, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	if n < 0 || n >= len(segs) {
		return ""
	}
	return segs[n]
}

// BoardToken returns c.BoardToken, or the first path segment of the careers URL
// when it points at hostHint (e.g. "greenhouse.io").
func BoardToken(c domain.CompanyConfig, hostHint string) string {
	if t := strings.TrimSpace(c.BoardToken); t != "" {
		return t
	}
	u, err := url.Parse(strings.TrimSpace(c.CareersURL))
	if err != nil || !strings.Contains(strings.ToLower(u.Host), hostHint) {
		return ""
	}
	return PathSegment(c.CareersURL, 0)
}
