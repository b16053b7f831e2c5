package doctree

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Well-known node types. The wire format is open-ended; anything not listed
// here still round-trips through Node untouched.
const (
	TypeDoc        = "doc"
	TypeParagraph  = "paragraph"
	TypeHeading    = "heading"
	TypeText       = "text"
	TypeMedia      = "media"
	TypeMediaGroup = "mediaSingle"
	TypeInlineCard = "inlineCard"
	TypeCodeBlock  = "codeBlock"
	TypeBulletList = "bulletList"
	TypeOrderList  = "orderedList"
	TypeListItem   = "listItem"
	TypeBlockquote = "blockquote"
	TypeRule       = "rule"
	TypeHardBreak  = "hardBreak"
)

// MarkLink is the inline annotation type for hyperlinks.
const MarkLink = "link"

// Node is one tagged record in a document tree. Attrs is the open,
// forward-compatible attribute mapping; typed views over it live in attrs.go.
type Node struct {
	Type    string         `json:"type"`
	Text    string         `json:"text,omitempty"`
	Attrs   map[string]any `json:"attrs,omitempty"`
	Marks   []Mark         `json:"marks,omitempty"`
	Content []*Node        `json:"content,omitempty"`
}

// Mark is an ordered inline annotation on a node (link, em, strong, ...).
type Mark struct {
	Type  string         `json:"type"`
	Attrs map[string]any `json:"attrs,omitempty"`
}

// Doc is the root of a fetched document: a "doc" node plus the format
// version tag the service stamps on it.
type Doc struct {
	Node
	Version int `json:"version"`
}

// ParseDoc decodes a wire-format document tree.
func ParseDoc(data []byte) (*Doc, error) {
	var d Doc
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decode document tree: %w", err)
	}
	if d.Type != TypeDoc {
		return nil, fmt.Errorf("root node type %q, want %q", d.Type, TypeDoc)
	}
	return &d, nil
}

// Clone returns a shallow copy of n: the attrs map and the marks/content
// slice headers are copied, child subtrees are shared with the original.
func (n *Node) Clone() *Node {
	c := *n
	if n.Attrs != nil {
		c.Attrs = make(map[string]any, len(n.Attrs)+2)
		maps.Copy(c.Attrs, n.Attrs)
	}
	if n.Marks != nil {
		c.Marks = slices.Clone(n.Marks)
	}
	if n.Content != nil {
		c.Content = slices.Clone(n.Content)
	}
	return &c
}

// WithAttrs returns a clone of n with the given attributes set on top of the
// existing ones. Keys not present in extra are preserved.
func (n *Node) WithAttrs(extra map[string]any) *Node {
	c := n.Clone()
	if c.Attrs == nil {
		c.Attrs = make(map[string]any, len(extra))
	}
	maps.Copy(c.Attrs, extra)
	return c
}

// Walk visits n and its content children depth-first, pre-order,
// left-to-right. Returning false from visit prunes that subtree.
func Walk(n *Node, visit func(*Node) bool) {
	if n == nil || !visit(n) {
		return
	}
	for _, c := range n.Content {
		Walk(c, visit)
	}
}

// Transform rewrites the tree bottom-up with copy-on-write. fn is called for
// every node (children first) and returns either its argument, meaning no
// change, or a replacement. fn must not mutate its argument; changed nodes
// come back as clones (see WithAttrs). A changed child forces a shallow clone
// of each strict ancestor; untouched sibling subtrees stay
// reference-identical to the input.
func Transform(n *Node, fn func(*Node) *Node) *Node {
	if n == nil {
		return nil
	}
	var content []*Node
	for i, child := range n.Content {
		nc := Transform(child, fn)
		if nc != child && content == nil {
			content = make([]*Node, i, len(n.Content))
			copy(content, n.Content[:i])
		}
		if content != nil {
			content = append(content, nc)
		}
	}
	out := n
	if content != nil {
		out = n.Clone()
		out.Content = content
	}
	return fn(out)
}

// PlainText concatenates the text of n and all descendant text nodes in
// reading order.
func (n *Node) PlainText() string {
	var sb strings.Builder
	Walk(n, func(c *Node) bool {
		if c.Type == TypeText {
			sb.WriteString(c.Text)
		}
		return true
	})
	return sb.String()
}
