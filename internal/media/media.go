// Package media resolves opaque attachment references on document tree media
// nodes against the page's raw storage-format side payload.
package media

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/dgallion1/pagemirror/internal/doctree"
)

// Kind classifies an attachment by filename extension.
type Kind string

const (
	KindImage   Kind = "image"
	KindVideo   Kind = "video"
	KindFile    Kind = "file"
	KindUnknown Kind = "unknown"
)

// Attachment is one resolved attachment descriptor.
type Attachment struct {
	URL      string
	Kind     Kind
	FileName string
}

// DemoMediaID is a reserved media identifier that bypasses attachment
// resolution entirely and maps to a fixed demonstration image.
const DemoMediaID = "demo-image"

// demoMediaURL is where the demonstration image is served from.
const demoMediaURL = "/static/demo.png"

// attachmentMarker matches the attachment-reference markers embedded in the
// storage-format side payload. The payload is a known, constrained markup
// subset, so a tolerant pattern match is used rather than a full parser.
var attachmentMarker = regexp.MustCompile(`<ri:attachment[^>]*\bri:filename="([^"]+)"`)

var imageExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".webp": true, ".svg": true, ".bmp": true,
}

var videoExts = map[string]bool{
	".mp4": true, ".mov": true, ".avi": true, ".webm": true,
	".mkv": true, ".m4v": true,
}

// Table is the attachment descriptor table for one page. Every descriptor is
// stored under two keys: a per-kind positional key ("image-0", "file-1", ...)
// and its raw filename.
type Table struct {
	byKey map[string]Attachment

	// rawKeys holds the filename keys in side-payload scan order; posKeys
	// holds the positional keys in the same order. Both back the positional
	// fallback steps in Resolve.
	rawKeys []string
	posKeys []string
}

// ParseAttachments scans the storage-format side payload for attachment
// markers and builds the descriptor table. The first occurrence of a
// filename wins; duplicates are ignored. Download URLs combine the
// configured base location, the owning page id and the percent-encoded
// filename.
func ParseAttachments(storageHTML, pageID, downloadBase string) *Table {
	t := &Table{byKey: make(map[string]Attachment)}
	counts := map[Kind]int{}

	for _, m := range attachmentMarker.FindAllStringSubmatch(storageHTML, -1) {
		name := m[1]
		if _, dup := t.byKey[name]; dup {
			continue
		}
		kind := classify(name)
		att := Attachment{
			URL:      fmt.Sprintf("%s/download/attachments/%s/%s", strings.TrimRight(downloadBase, "/"), pageID, url.PathEscape(name)),
			Kind:     kind,
			FileName: name,
		}
		posKey := fmt.Sprintf("%s-%d", kind, counts[kind])
		counts[kind]++

		t.byKey[posKey] = att
		t.byKey[name] = att
		t.posKeys = append(t.posKeys, posKey)
		t.rawKeys = append(t.rawKeys, name)
	}
	return t
}

// Len reports the number of distinct attachments in the table.
func (t *Table) Len() int { return len(t.rawKeys) }

// Lookup returns the descriptor stored under key.
func (t *Table) Lookup(key string) (Attachment, bool) {
	att, ok := t.byKey[key]
	return att, ok
}

func classify(filename string) Kind {
	i := strings.LastIndex(filename, ".")
	if i < 0 {
		return KindFile
	}
	ext := strings.ToLower(filename[i:])
	switch {
	case imageExts[ext]:
		return KindImage
	case videoExts[ext]:
		return KindVideo
	}
	return KindFile
}

// Resolve annotates every file-kind media node in doc with the resolved URL,
// kind and filename from table. A single counter runs across the whole
// traversal and increments once per file-kind media node whether or not
// resolution succeeded, so positional keys stay in step with the side
// payload's scan order.
//
// Resolution tries, in strict priority order:
//  1. the node's declared identifier as a literal key,
//  2. the positional key "<kind>-<counter>" for each of the three kinds,
//  3. the counter-th raw-filename key in scan order,
//  4. the counter-th positional key, filename-sorted.
//
// This ordering is observed behavior, not an optimization target; do not
// reorder the steps. Nodes that resolve nowhere pass through unannotated.
func Resolve(doc *doctree.Node, table *Table) *doctree.Node {
	counter := 0
	sortedPos := table.positionalByFileName()

	return doctree.Transform(doc, func(n *doctree.Node) *doctree.Node {
		attrs, ok := n.MediaAttrs()
		if !ok || attrs.Kind != "file" {
			return n
		}
		c := counter
		counter++

		if attrs.ID == DemoMediaID {
			return annotate(n, Attachment{URL: demoMediaURL, Kind: KindImage, FileName: "demo.png"})
		}

		for _, key := range candidateKeys(attrs.ID, c, table, sortedPos) {
			if att, found := table.Lookup(key); found {
				return annotate(n, att)
			}
		}
		return n
	})
}

// candidateKeys lists the lookup keys for one media node in priority order.
func candidateKeys(id string, counter int, table *Table, sortedPos []string) []string {
	var keys []string
	if id != "" {
		keys = append(keys, id)
	}
	for _, kind := range []Kind{KindImage, KindVideo, KindFile} {
		keys = append(keys, fmt.Sprintf("%s-%d", kind, counter))
	}
	if counter < len(table.rawKeys) {
		keys = append(keys, table.rawKeys[counter])
	}
	if counter < len(sortedPos) {
		keys = append(keys, sortedPos[counter])
	}
	return keys
}

// positionalByFileName returns the positional keys sorted by the filename of
// the attachment they point at.
func (t *Table) positionalByFileName() []string {
	keys := make([]string, len(t.posKeys))
	copy(keys, t.posKeys)
	sort.Slice(keys, func(i, j int) bool {
		return t.byKey[keys[i]].FileName < t.byKey[keys[j]].FileName
	})
	return keys
}

// annotate writes the resolution attrs without touching the declared ones,
// which keeps re-resolution of an annotated tree idempotent.
func annotate(n *doctree.Node, att Attachment) *doctree.Node {
	if existing := n.Attrs[doctree.AttrMediaURL]; existing == att.URL &&
		n.Attrs[doctree.AttrMediaKind] == string(att.Kind) &&
		n.Attrs[doctree.AttrMediaFileName] == att.FileName {
		return n
	}
	return n.WithAttrs(map[string]any{
		doctree.AttrMediaURL:      att.URL,
		doctree.AttrMediaKind:     string(att.Kind),
		doctree.AttrMediaFileName: att.FileName,
	})
}
