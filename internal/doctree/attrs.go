package doctree

// Typed views over the open Attrs mapping for the node types the enrichment
// pipeline cares about. Unknown attributes stay in the map and survive
// round-trips; these accessors only read.

// Media annotation attribute keys written by the media resolver. They are
// distinct from the declared "type"/"id" attributes so that resolution can be
// re-run on an already-annotated tree.
const (
	AttrMediaURL      = "url"
	AttrMediaKind     = "kind"
	AttrMediaFileName = "fileName"
)

// Link annotation attribute keys written by the link enrichment engine.
const (
	AttrLinkTitle    = "title"
	AttrLinkTargetID = "targetId"
)

// AttrAnchorID is the heading anchor attribute injected by the outline
// extractor (and reused verbatim when already present).
const AttrAnchorID = "id"

// MediaAttrs is the declared shape of a "media" node.
type MediaAttrs struct {
	ID         string // opaque attachment reference
	Kind       string // declared kind, e.g. "file", "link", "external"
	Collection string
}

// MediaAttrs decodes the declared attributes of a media node. ok is false
// for any other node type.
func (n *Node) MediaAttrs() (MediaAttrs, bool) {
	if n.Type != TypeMedia {
		return MediaAttrs{}, false
	}
	return MediaAttrs{
		ID:         stringAttr(n.Attrs, "id"),
		Kind:       stringAttr(n.Attrs, "type"),
		Collection: stringAttr(n.Attrs, "collection"),
	}, true
}

// CardAttrs is the declared shape of an "inlineCard" node.
type CardAttrs struct {
	URL string
}

// CardAttrs decodes the declared attributes of an inline card node.
func (n *Node) CardAttrs() (CardAttrs, bool) {
	if n.Type != TypeInlineCard {
		return CardAttrs{}, false
	}
	return CardAttrs{URL: stringAttr(n.Attrs, "url")}, true
}

// HeadingLevel returns the declared level of a heading node, 0 for anything
// else or a heading without one.
func (n *Node) HeadingLevel() int {
	if n.Type != TypeHeading {
		return 0
	}
	return intAttr(n.Attrs, "level")
}

// Href returns the target URL of a link mark.
func (m Mark) Href() (string, bool) {
	if m.Type != MarkLink {
		return "", false
	}
	href := stringAttr(m.Attrs, "href")
	return href, href != ""
}

func stringAttr(attrs map[string]any, key string) string {
	if s, ok := attrs[key].(string); ok {
		return s
	}
	return ""
}

// intAttr tolerates both int and float64: decoded JSON numbers arrive as
// float64, locally built trees use int.
func intAttr(attrs map[string]any, key string) int {
	switch v := attrs[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}
