// Package links discovers document-service links in a tree, fetches display
// titles for them and annotates the matching nodes.
package links

import (
	"context"
	"log/slog"
	"maps"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dgallion1/pagemirror/internal/doctree"
	"github.com/dgallion1/pagemirror/internal/urlspace"
)

// Record is one externally-fetched metadata result, keyed by the original
// URL string and shared by every node occurrence of that URL.
type Record struct {
	TargetID    string `json:"target_id"`
	Title       string `json:"title"`
	OriginalURL string `json:"original_url"`
}

// TitleFetcher fetches the display title for a target page. Implementations
// own their authentication and retry behavior.
type TitleFetcher interface {
	PageTitle(ctx context.Context, id string) (string, error)
}

// Engine enriches in-scope links. The title cache is injected and
// process-scoped; pass nil to disable caching.
type Engine struct {
	urls          *urlspace.Transformer
	fetcher       TitleFetcher
	cache         *lru.Cache[string, string]
	log           *slog.Logger
	maxConcurrent int
	fetchTimeout  time.Duration
}

func NewEngine(urls *urlspace.Transformer, fetcher TitleFetcher, cache *lru.Cache[string, string], log *slog.Logger, maxConcurrent int, fetchTimeout time.Duration) *Engine {
	if maxConcurrent <= 0 {
		maxConcurrent = 5
	}
	if fetchTimeout <= 0 {
		fetchTimeout = 10 * time.Second
	}
	return &Engine{
		urls:          urls,
		fetcher:       fetcher,
		cache:         cache,
		log:           log,
		maxConcurrent: maxConcurrent,
		fetchTimeout:  fetchTimeout,
	}
}

// Enrich returns a tree where every inline card and link mark pointing at a
// document-service page carries a display title and target identifier, plus
// the record map keyed by original URL. One title fetch is issued per
// distinct target, concurrently across targets; a failed or timed-out fetch
// degrades only that target's links.
func (e *Engine) Enrich(ctx context.Context, doc *doctree.Node) (*doctree.Node, map[string]Record) {
	targets := e.discover(doc)
	if len(targets) == 0 {
		return doc, map[string]Record{}
	}

	titles := e.fetchTitles(ctx, targets)

	records := make(map[string]Record)
	for id, urls := range targets {
		title, ok := titles[id]
		if !ok {
			continue
		}
		for _, u := range urls {
			records[u] = Record{TargetID: id, Title: title, OriginalURL: u}
		}
	}

	return e.annotate(doc, records), records
}

// discover walks the tree once and groups every in-scope URL by its
// extracted target identifier. Several URL strings may map to the same
// target (with and without a trailing title slug, say).
func (e *Engine) discover(doc *doctree.Node) map[string][]string {
	seen := make(map[string]struct{})
	targets := make(map[string][]string)

	add := func(rawURL string) {
		if rawURL == "" || !e.urls.ShouldTransform(rawURL) {
			return
		}
		if _, dup := seen[rawURL]; dup {
			return
		}
		seen[rawURL] = struct{}{}
		id, _ := e.urls.PageID(rawURL)
		targets[id] = append(targets[id], rawURL)
	}

	doctree.Walk(doc, func(n *doctree.Node) bool {
		if card, ok := n.CardAttrs(); ok {
			add(card.URL)
		}
		for _, m := range n.Marks {
			if href, ok := m.Href(); ok {
				add(href)
			}
		}
		return true
	})
	return targets
}

// fetchTitles resolves a title per target, consulting the cache first and
// fanning the misses out with bounded concurrency. Each fetch gets its own
// timeout; timeout and failure are treated alike, the target is skipped.
func (e *Engine) fetchTitles(ctx context.Context, targets map[string][]string) map[string]string {
	titles := make(map[string]string, len(targets))

	var misses []string
	for id := range targets {
		if e.cache != nil {
			if title, ok := e.cache.Get(id); ok {
				titles[id] = title
				continue
			}
		}
		misses = append(misses, id)
	}
	if len(misses) == 0 {
		return titles
	}

	type fetchResult struct {
		id    string
		title string
		err   error
	}
	results := make(chan fetchResult, len(misses))
	sem := make(chan struct{}, e.maxConcurrent)

	for _, id := range misses {
		sem <- struct{}{}
		go func(id string) {
			defer func() { <-sem }()
			fetchCtx, cancel := context.WithTimeout(ctx, e.fetchTimeout)
			defer cancel()
			title, err := e.fetcher.PageTitle(fetchCtx, id)
			results <- fetchResult{id: id, title: title, err: err}
		}(id)
	}

	for range misses {
		r := <-results
		if r.err != nil {
			e.log.Warn("link title fetch failed", "target_id", r.id, "error", r.err)
			continue
		}
		titles[r.id] = r.title
		if e.cache != nil {
			e.cache.Add(r.id, r.title)
		}
	}
	return titles
}

// annotate attaches title and target id to every card node and link mark
// whose URL has a record, leaving all other attributes alone.
func (e *Engine) annotate(doc *doctree.Node, records map[string]Record) *doctree.Node {
	if len(records) == 0 {
		return doc
	}
	return doctree.Transform(doc, func(n *doctree.Node) *doctree.Node {
		if card, ok := n.CardAttrs(); ok {
			if rec, found := records[card.URL]; found && !cardAnnotated(n, rec) {
				return n.WithAttrs(map[string]any{
					doctree.AttrLinkTitle:    rec.Title,
					doctree.AttrLinkTargetID: rec.TargetID,
				})
			}
			return n
		}
		return annotateMarks(n, records)
	})
}

func cardAnnotated(n *doctree.Node, rec Record) bool {
	return n.Attrs[doctree.AttrLinkTitle] == rec.Title &&
		n.Attrs[doctree.AttrLinkTargetID] == rec.TargetID
}

func annotateMarks(n *doctree.Node, records map[string]Record) *doctree.Node {
	var cloned *doctree.Node
	for i, m := range n.Marks {
		href, ok := m.Href()
		if !ok {
			continue
		}
		rec, found := records[href]
		if !found || (m.Attrs[doctree.AttrLinkTitle] == rec.Title && m.Attrs[doctree.AttrLinkTargetID] == rec.TargetID) {
			continue
		}
		if cloned == nil {
			cloned = n.Clone()
		}
		attrs := make(map[string]any, len(m.Attrs)+2)
		maps.Copy(attrs, m.Attrs)
		attrs[doctree.AttrLinkTitle] = rec.Title
		attrs[doctree.AttrLinkTargetID] = rec.TargetID
		cloned.Marks[i] = doctree.Mark{Type: m.Type, Attrs: attrs}
	}
	if cloned != nil {
		return cloned
	}
	return n
}
