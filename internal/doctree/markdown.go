package doctree

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// FromMarkdown builds a document tree from markdown source using goldmark.
// It covers the subset the built-in demo page and test fixtures need:
// headings, paragraphs, emphasis/strong/code/link marks, images (as media
// nodes), fenced code blocks, lists, blockquotes and thematic breaks.
func FromMarkdown(src []byte) *Doc {
	md := goldmark.New()
	root := md.Parser().Parse(text.NewReader(src))

	doc := &Doc{Node: Node{Type: TypeDoc}, Version: 1}
	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		if b := convertBlock(n, src); b != nil {
			doc.Content = append(doc.Content, b)
		}
	}
	return doc
}

func convertBlock(n ast.Node, src []byte) *Node {
	switch b := n.(type) {
	case *ast.Heading:
		return &Node{
			Type:    TypeHeading,
			Attrs:   map[string]any{"level": b.Level},
			Content: convertInlines(b, src, nil),
		}
	case *ast.Paragraph, *ast.TextBlock:
		return &Node{Type: TypeParagraph, Content: convertInlines(n, src, nil)}
	case *ast.FencedCodeBlock:
		node := &Node{Type: TypeCodeBlock}
		if lang := string(b.Language(src)); lang != "" {
			node.Attrs = map[string]any{"language": lang}
		}
		var sb strings.Builder
		lines := b.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			sb.Write(seg.Value(src))
		}
		if code := sb.String(); code != "" {
			node.Content = []*Node{{Type: TypeText, Text: code}}
		}
		return node
	case *ast.List:
		listType := TypeBulletList
		if b.IsOrdered() {
			listType = TypeOrderList
		}
		list := &Node{Type: listType}
		for item := b.FirstChild(); item != nil; item = item.NextSibling() {
			li := &Node{Type: TypeListItem}
			for c := item.FirstChild(); c != nil; c = c.NextSibling() {
				if cb := convertBlock(c, src); cb != nil {
					li.Content = append(li.Content, cb)
				}
			}
			list.Content = append(list.Content, li)
		}
		return list
	case *ast.Blockquote:
		quote := &Node{Type: TypeBlockquote}
		for c := b.FirstChild(); c != nil; c = c.NextSibling() {
			if cb := convertBlock(c, src); cb != nil {
				quote.Content = append(quote.Content, cb)
			}
		}
		return quote
	case *ast.ThematicBreak:
		return &Node{Type: TypeRule}
	}
	return nil
}

// convertInlines flattens the inline children of n into text/media nodes,
// accumulating marks through nested emphasis and links.
func convertInlines(n ast.Node, src []byte, marks []Mark) []*Node {
	var out []*Node
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch inline := c.(type) {
		case *ast.Text:
			if t := string(inline.Value(src)); t != "" {
				out = append(out, textNode(t, marks))
			}
			if inline.HardLineBreak() {
				out = append(out, &Node{Type: TypeHardBreak})
			} else if inline.SoftLineBreak() {
				out = append(out, textNode(" ", marks))
			}
		case *ast.String:
			if t := string(inline.Value); t != "" {
				out = append(out, textNode(t, marks))
			}
		case *ast.Emphasis:
			markType := "em"
			if inline.Level >= 2 {
				markType = "strong"
			}
			out = append(out, convertInlines(inline, src, append(cloneMarks(marks), Mark{Type: markType}))...)
		case *ast.Link:
			link := Mark{Type: MarkLink, Attrs: map[string]any{"href": string(inline.Destination)}}
			out = append(out, convertInlines(inline, src, append(cloneMarks(marks), link))...)
		case *ast.AutoLink:
			url := string(inline.URL(src))
			link := Mark{Type: MarkLink, Attrs: map[string]any{"href": url}}
			out = append(out, textNode(url, append(cloneMarks(marks), link)))
		case *ast.CodeSpan:
			if t := string(inline.Text(src)); t != "" {
				out = append(out, textNode(t, append(cloneMarks(marks), Mark{Type: "code"})))
			}
		case *ast.Image:
			// The destination doubles as the attachment reference, so demo
			// markdown can address the reserved demonstration image.
			out = append(out, &Node{
				Type:  TypeMedia,
				Attrs: map[string]any{"type": "file", "id": string(inline.Destination)},
			})
		default:
			out = append(out, convertInlines(c, src, marks)...)
		}
	}
	return out
}

func textNode(t string, marks []Mark) *Node {
	return &Node{Type: TypeText, Text: t, Marks: marks}
}

func cloneMarks(marks []Mark) []Mark {
	if marks == nil {
		return nil
	}
	out := make([]Mark, len(marks))
	copy(out, marks)
	return out
}
