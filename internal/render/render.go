// Package render paints an enriched document tree as HTML. Structure only;
// styling is the embedding application's problem.
package render

import (
	"bytes"
	"fmt"

	"golang.org/x/net/html"

	"github.com/dgallion1/pagemirror/internal/doctree"
	"github.com/dgallion1/pagemirror/internal/outline"
	"github.com/dgallion1/pagemirror/internal/urlspace"
)

// Renderer serializes enriched trees. External page links are rewritten into
// the local URL space on the way out.
type Renderer struct {
	urls *urlspace.Transformer
}

func New(urls *urlspace.Transformer) *Renderer {
	return &Renderer{urls: urls}
}

// Page renders a full HTML page: title, outline navigation (omitted when the
// outline is empty) and the document body.
func (r *Renderer) Page(title string, doc *doctree.Node, toc []outline.Entry) ([]byte, error) {
	head := elem("head", nil, elem("title", nil, text(title)))

	body := elem("body", nil)
	if len(toc) > 0 {
		body.AppendChild(r.outlineNav(toc))
	}
	article := elem("article", nil)
	for _, c := range doc.Content {
		appendRendered(article, r.renderNode(c))
	}
	body.AppendChild(article)

	page := elem("html", nil, head, body)
	root := &html.Node{Type: html.DocumentNode}
	root.AppendChild(&html.Node{Type: html.DoctypeNode, Data: "html"})
	root.AppendChild(page)

	var buf bytes.Buffer
	if err := html.Render(&buf, root); err != nil {
		return nil, fmt.Errorf("render page: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) outlineNav(toc []outline.Entry) *html.Node {
	list := elem("ul", nil)
	for _, e := range toc {
		a := elem("a", attrs("href", "#"+e.ID), text(e.Title))
		li := elem("li", attrs("data-level", fmt.Sprintf("%d", e.Level)), a)
		list.AppendChild(li)
	}
	return elem("nav", nil, list)
}

// renderNode converts one tree node. A nil return drops the node from
// output.
func (r *Renderer) renderNode(n *doctree.Node) *html.Node {
	switch n.Type {
	case doctree.TypeParagraph:
		return r.container("p", n)
	case doctree.TypeHeading:
		return r.heading(n)
	case doctree.TypeText:
		return r.text(n)
	case doctree.TypeMedia:
		return r.media(n)
	case doctree.TypeMediaGroup:
		return r.container("figure", n)
	case doctree.TypeInlineCard:
		return r.card(n)
	case doctree.TypeCodeBlock:
		code := elem("code", nil)
		for _, c := range n.Content {
			appendRendered(code, r.renderNode(c))
		}
		return elem("pre", nil, code)
	case doctree.TypeBulletList:
		return r.container("ul", n)
	case doctree.TypeOrderList:
		return r.container("ol", n)
	case doctree.TypeListItem:
		return r.container("li", n)
	case doctree.TypeBlockquote:
		return r.container("blockquote", n)
	case doctree.TypeRule:
		return elem("hr", nil)
	case doctree.TypeHardBreak:
		return elem("br", nil)
	default:
		// Unknown node types render their children, so forward-compatible
		// containers degrade instead of vanishing.
		if len(n.Content) == 0 {
			return nil
		}
		return r.container("div", n)
	}
}

func (r *Renderer) container(tag string, n *doctree.Node) *html.Node {
	el := elem(tag, nil)
	for _, c := range n.Content {
		appendRendered(el, r.renderNode(c))
	}
	return el
}

func (r *Renderer) heading(n *doctree.Node) *html.Node {
	level := n.HeadingLevel()
	if level < 1 {
		level = 1
	}
	if level > 6 {
		level = 6
	}
	var a []html.Attribute
	if id, ok := n.Attrs[doctree.AttrAnchorID].(string); ok && id != "" {
		a = attrs("id", id)
	}
	el := elem(fmt.Sprintf("h%d", level), a)
	for _, c := range n.Content {
		appendRendered(el, r.renderNode(c))
	}
	return el
}

// text renders a text node, wrapping it innermost-first in its marks.
func (r *Renderer) text(n *doctree.Node) *html.Node {
	node := text(n.Text)
	for i := len(n.Marks) - 1; i >= 0; i-- {
		m := n.Marks[i]
		switch m.Type {
		case doctree.MarkLink:
			href, _ := m.Href()
			a := attrs("href", r.urls.ToLocal(href))
			if title, ok := m.Attrs[doctree.AttrLinkTitle].(string); ok && title != "" {
				a = append(a, html.Attribute{Key: "title", Val: title})
			}
			node = elem("a", a, node)
		case "em":
			node = elem("em", nil, node)
		case "strong":
			node = elem("strong", nil, node)
		case "code":
			node = elem("code", nil, node)
		}
	}
	return node
}

// media renders a resolved media node by annotated kind. Unresolved nodes
// have no URL to point at and are dropped.
func (r *Renderer) media(n *doctree.Node) *html.Node {
	src, ok := n.Attrs[doctree.AttrMediaURL].(string)
	if !ok || src == "" {
		return nil
	}
	name, _ := n.Attrs[doctree.AttrMediaFileName].(string)
	kind, _ := n.Attrs[doctree.AttrMediaKind].(string)
	switch kind {
	case "image":
		return elem("img", attrs("src", src, "alt", name))
	case "video":
		return elem("video", attrs("src", src, "controls", ""))
	default:
		label := name
		if label == "" {
			label = src
		}
		return elem("a", attrs("href", src, "download", ""), text(label))
	}
}

func (r *Renderer) card(n *doctree.Node) *html.Node {
	card, _ := n.CardAttrs()
	if card.URL == "" {
		return nil
	}
	label := card.URL
	if title, ok := n.Attrs[doctree.AttrLinkTitle].(string); ok && title != "" {
		label = title
	}
	return elem("a", attrs("href", r.urls.ToLocal(card.URL), "class", "card"), text(label))
}

func elem(tag string, a []html.Attribute, children ...*html.Node) *html.Node {
	n := &html.Node{Type: html.ElementNode, Data: tag, Attr: a}
	for _, c := range children {
		appendRendered(n, c)
	}
	return n
}

func text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

func attrs(kv ...string) []html.Attribute {
	out := make([]html.Attribute, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, html.Attribute{Key: kv[i], Val: kv[i+1]})
	}
	return out
}

func appendRendered(parent, child *html.Node) {
	if child != nil {
		parent.AppendChild(child)
	}
}
