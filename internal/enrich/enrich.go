// Package enrich runs the full document enrichment pipeline: media
// resolution, outline extraction and link enrichment, in that order.
package enrich

import (
	"context"
	"log/slog"

	"github.com/dgallion1/pagemirror/internal/doctree"
	"github.com/dgallion1/pagemirror/internal/links"
	"github.com/dgallion1/pagemirror/internal/media"
	"github.com/dgallion1/pagemirror/internal/outline"
)

// Result is everything the renderer needs for one page. All of it is built
// fresh per invocation and owned by the caller; the input document is never
// mutated.
type Result struct {
	Doc     *doctree.Node           `json:"doc"`
	Outline []outline.Entry         `json:"outline"`
	Links   map[string]links.Record `json:"links"`
}

// Pipeline composes the enrichment transforms. Construct once and share;
// all state is per-call.
type Pipeline struct {
	links        *links.Engine
	downloadBase string
	log          *slog.Logger
}

func NewPipeline(linkEngine *links.Engine, downloadBase string, log *slog.Logger) *Pipeline {
	return &Pipeline{links: linkEngine, downloadBase: downloadBase, log: log}
}

// Enrich transforms doc best-effort: unresolvable media and links pass
// through unannotated rather than failing the page. Only the link title
// fetches observe ctx.
func (p *Pipeline) Enrich(ctx context.Context, doc *doctree.Node, pageID, storageHTML string) *Result {
	table := media.ParseAttachments(storageHTML, pageID, p.downloadBase)
	resolved := media.Resolve(doc, table)

	entries, annotated := outline.Extract(resolved)

	enriched, records := p.links.Enrich(ctx, annotated)

	p.log.Debug("page enriched",
		"page_id", pageID,
		"attachments", table.Len(),
		"headings", len(entries),
		"links", len(records),
	)

	return &Result{Doc: enriched, Outline: entries, Links: records}
}
