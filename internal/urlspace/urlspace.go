// Package urlspace maps between the external document service's URL space
// and the local mirror's URL space.
package urlspace

import (
	"net/url"
	"strings"
)

// externalPagePath is the path template used when reconstructing an external
// URL from a local one. Reconstruction is lossy: any space key or title slug
// present in the original external URL is not recoverable.
const externalPagePath = "wiki/pages"

// Transformer is a pure, stateless bidirectional URL mapper configured with
// the two base locations. The zero value is not usable; construct with New.
type Transformer struct {
	externalBase string
	localBase    string
}

// New builds a Transformer. Trailing slashes on either base are normalized
// away.
func New(externalBase, localBase string) *Transformer {
	return &Transformer{
		externalBase: strings.TrimRight(externalBase, "/"),
		localBase:    strings.TrimRight(localBase, "/"),
	}
}

// PageID extracts the service's target identifier from an external URL.
// Accepted shapes, first match wins: a numeric path segment following a
// "pages" segment, a pageId query parameter, a homepageId query parameter.
// Unparseable input is simply out of scope, never an error.
func (t *Transformer) PageID(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, seg := range segments {
		if seg == "pages" && i+1 < len(segments) && isID(segments[i+1]) {
			return segments[i+1], true
		}
	}

	q := u.Query()
	for _, param := range []string{"pageId", "homepageId"} {
		if id := q.Get(param); isID(id) {
			return id, true
		}
	}
	return "", false
}

// ShouldTransform reports whether rawURL belongs to the external service's
// URL space: it starts with the configured external base and a target
// identifier can be extracted from it.
func (t *Transformer) ShouldTransform(rawURL string) bool {
	if !strings.HasPrefix(rawURL, t.externalBase) {
		return false
	}
	_, ok := t.PageID(rawURL)
	return ok
}

// ToLocal rewrites an external page URL into the local URL space. URLs out
// of scope come back unchanged.
func (t *Transformer) ToLocal(rawURL string) string {
	if !t.ShouldTransform(rawURL) {
		return rawURL
	}
	id, _ := t.PageID(rawURL)
	return t.localBase + "/?pageId=" + url.QueryEscape(id)
}

// ToExternal rewrites a local page URL back into the external URL space. The
// result carries the same target identifier but not any title or space
// segment the original external URL had. URLs without a pageId parameter
// come back unchanged.
func (t *Transformer) ToExternal(localURL string) string {
	u, err := url.Parse(localURL)
	if err != nil {
		return localURL
	}
	id := u.Query().Get("pageId")
	if !isID(id) {
		return localURL
	}
	return t.externalBase + "/" + externalPagePath + "/" + url.PathEscape(id)
}

// ToLocalAll maps ToLocal over urls, preserving order and length.
func (t *Transformer) ToLocalAll(urls []string) []string {
	out := make([]string, len(urls))
	for i, u := range urls {
		out[i] = t.ToLocal(u)
	}
	return out
}

// isID accepts the service's numeric page identifiers.
func isID(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
