// Package outline extracts a navigable table of contents from a document
// tree and injects stable anchor identifiers into heading nodes.
package outline

import (
	"regexp"
	"strings"

	"github.com/dgallion1/pagemirror/internal/doctree"
)

// Entry is one heading in reading order.
type Entry struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Level int    `json:"level"`
}

var (
	slugStrip    = regexp.MustCompile(`[^a-z0-9\s-]`)
	slugCollapse = regexp.MustCompile(`\s+`)
)

// Slug derives an anchor identifier from heading text: lowercase, characters
// outside [a-z0-9\s-] stripped, whitespace runs collapsed to single hyphens,
// edge hyphens trimmed.
func Slug(title string) string {
	s := strings.ToLower(title)
	s = slugStrip.ReplaceAllString(s, "")
	s = slugCollapse.ReplaceAllString(strings.TrimSpace(s), "-")
	return strings.Trim(s, "-")
}

// Extract returns the flat outline of doc in pre-order and a tree where
// every heading node carries an anchor id attribute. Headings that already
// carry one keep it verbatim, so repeated extraction is stable. Identical
// heading texts produce identical anchors; no de-duplication is applied.
func Extract(doc *doctree.Node) ([]Entry, *doctree.Node) {
	entries := []Entry{}

	annotated := doctree.Transform(doc, func(n *doctree.Node) *doctree.Node {
		if n.Type != doctree.TypeHeading {
			return n
		}
		if id, ok := n.Attrs[doctree.AttrAnchorID].(string); ok && id != "" {
			return n
		}
		title := n.PlainText()
		return n.WithAttrs(map[string]any{doctree.AttrAnchorID: Slug(title)})
	})

	doctree.Walk(annotated, func(n *doctree.Node) bool {
		if n.Type == doctree.TypeHeading {
			entries = append(entries, Entry{
				ID:    n.Attrs[doctree.AttrAnchorID].(string),
				Title: strings.TrimSpace(n.PlainText()),
				Level: clampLevel(n.HeadingLevel()),
			})
		}
		return true
	})

	return entries, annotated
}

func clampLevel(level int) int {
	if level < 1 {
		return 1
	}
	if level > 6 {
		return 6
	}
	return level
}
