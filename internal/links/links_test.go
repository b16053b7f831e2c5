package links

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dgallion1/pagemirror/internal/doctree"
	"github.com/dgallion1/pagemirror/internal/urlspace"
)

const externalBase = "https://example.atlassian.net"

// fakeFetcher records per-target fetch counts and serves canned titles.
type fakeFetcher struct {
	mu     sync.Mutex
	calls  map[string]int
	titles map[string]string
	fail   map[string]bool
	block  time.Duration
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		calls:  make(map[string]int),
		titles: make(map[string]string),
		fail:   make(map[string]bool),
	}
}

func (f *fakeFetcher) PageTitle(ctx context.Context, id string) (string, error) {
	f.mu.Lock()
	f.calls[id]++
	fail := f.fail[id]
	title := f.titles[id]
	block := f.block
	f.mu.Unlock()

	if block > 0 {
		select {
		case <-time.After(block):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if fail {
		return "", fmt.Errorf("boom")
	}
	return title, nil
}

func (f *fakeFetcher) callCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

func testEngine(f TitleFetcher, cache *lru.Cache[string, string]) *Engine {
	urls := urlspace.New(externalBase, "http://localhost:8091")
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewEngine(urls, f, cache, log, 4, time.Second)
}

func cardNode(url string) *doctree.Node {
	return &doctree.Node{Type: doctree.TypeInlineCard, Attrs: map[string]any{"url": url}}
}

func linkedText(text, href string) *doctree.Node {
	return &doctree.Node{
		Type:  doctree.TypeText,
		Text:  text,
		Marks: []doctree.Mark{{Type: doctree.MarkLink, Attrs: map[string]any{"href": href}}},
	}
}

func docOf(nodes ...*doctree.Node) *doctree.Node {
	p := &doctree.Node{Type: doctree.TypeParagraph, Content: nodes}
	return &doctree.Node{Type: doctree.TypeDoc, Content: []*doctree.Node{p}}
}

func TestEnrich_DeduplicatesFetchesPerTarget(t *testing.T) {
	f := newFakeFetcher()
	f.titles["42"] = "Shared Target"
	e := testEngine(f, nil)

	// Two URL shapes, one with a trailing title slug, same target.
	withSlug := externalBase + "/wiki/spaces/ENG/pages/42/Title"
	withoutSlug := externalBase + "/wiki/spaces/ENG/pages/42"
	doc := docOf(cardNode(withSlug), linkedText("see", withoutSlug), cardNode(withSlug))

	out, records := e.Enrich(context.Background(), doc)

	if got := f.callCount("42"); got != 1 {
		t.Fatalf("expected exactly 1 fetch for target 42, got %d", got)
	}
	if len(records) != 2 {
		t.Fatalf("expected records for both URL strings, got %v", records)
	}
	for _, u := range []string{withSlug, withoutSlug} {
		rec := records[u]
		if rec.Title != "Shared Target" || rec.TargetID != "42" || rec.OriginalURL != u {
			t.Errorf("record for %q = %+v", u, rec)
		}
	}

	// All three occurrences annotated with the same title.
	para := out.Content[0]
	for i, n := range []*doctree.Node{para.Content[0], para.Content[2]} {
		if n.Attrs[doctree.AttrLinkTitle] != "Shared Target" || n.Attrs[doctree.AttrLinkTargetID] != "42" {
			t.Errorf("card %d attrs = %v", i, n.Attrs)
		}
	}
	mark := para.Content[1].Marks[0]
	if mark.Attrs[doctree.AttrLinkTitle] != "Shared Target" || mark.Attrs[doctree.AttrLinkTargetID] != "42" {
		t.Errorf("mark attrs = %v", mark.Attrs)
	}
	if href, _ := mark.Href(); href != withoutSlug {
		t.Errorf("mark href altered: %q", href)
	}
}

func TestEnrich_FailedTargetDegradesOnlyItself(t *testing.T) {
	f := newFakeFetcher()
	f.titles["1"] = "Alive"
	f.fail["99"] = true
	e := testEngine(f, nil)

	alive := externalBase + "/wiki/spaces/ENG/pages/1"
	dead := externalBase + "/wiki/spaces/ENG/pages/99"
	doc := docOf(cardNode(alive), cardNode(dead))

	out, records := e.Enrich(context.Background(), doc)

	if _, ok := records[dead]; ok {
		t.Error("failed target must not produce a record")
	}
	if rec, ok := records[alive]; !ok || rec.Title != "Alive" {
		t.Errorf("healthy target record = %+v, ok=%v", records[alive], ok)
	}

	para := out.Content[0]
	if _, ok := para.Content[1].Attrs[doctree.AttrLinkTitle]; ok {
		t.Error("node for failed target must stay unannotated")
	}
	if para.Content[0].Attrs[doctree.AttrLinkTitle] != "Alive" {
		t.Errorf("healthy node attrs = %v", para.Content[0].Attrs)
	}
}

func TestEnrich_TimeoutTreatedAsFailure(t *testing.T) {
	f := newFakeFetcher()
	f.titles["7"] = "Too Slow"
	f.block = 200 * time.Millisecond
	urls := urlspace.New(externalBase, "http://localhost:8091")
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := NewEngine(urls, f, nil, log, 4, 10*time.Millisecond)

	doc := docOf(cardNode(externalBase + "/wiki/spaces/ENG/pages/7"))

	_, records := e.Enrich(context.Background(), doc)

	if len(records) != 0 {
		t.Errorf("timed-out target must be skipped, got %v", records)
	}
}

func TestEnrich_NoInScopeLinks(t *testing.T) {
	f := newFakeFetcher()
	e := testEngine(f, nil)

	doc := docOf(
		linkedText("external", "https://unrelated.example.com/"),
		cardNode(externalBase+"/wiki/spaces/ENG/overview"), // no extractable id
	)

	out, records := e.Enrich(context.Background(), doc)

	if out != doc {
		t.Error("tree without in-scope links should come back unchanged")
	}
	if len(records) != 0 {
		t.Errorf("records = %v", records)
	}
	f.mu.Lock()
	calls := len(f.calls)
	f.mu.Unlock()
	if calls != 0 {
		t.Errorf("no fetches expected, got %d targets", calls)
	}
}

func TestEnrich_CacheSkipsFetch(t *testing.T) {
	f := newFakeFetcher()
	f.titles["42"] = "Cached Page"
	cache, _ := lru.New[string, string](8)
	e := testEngine(f, cache)

	doc := docOf(cardNode(externalBase + "/wiki/spaces/ENG/pages/42"))

	e.Enrich(context.Background(), doc)
	if got := f.callCount("42"); got != 1 {
		t.Fatalf("first run should fetch once, got %d", got)
	}

	_, records := e.Enrich(context.Background(), doc)
	if got := f.callCount("42"); got != 1 {
		t.Errorf("second run should hit the cache, got %d fetches", got)
	}
	if records[externalBase+"/wiki/spaces/ENG/pages/42"].Title != "Cached Page" {
		t.Errorf("records = %v", records)
	}
}

func TestEnrich_ManyTargetsConcurrently(t *testing.T) {
	f := newFakeFetcher()
	var urls []string
	for i := 0; i < 20; i++ {
		id := fmt.Sprintf("%d", 100+i)
		f.titles[id] = "Page " + id
		urls = append(urls, fmt.Sprintf("%s/wiki/spaces/ENG/pages/%s", externalBase, id))
	}
	e := testEngine(f, nil)

	var nodes []*doctree.Node
	for _, u := range urls {
		nodes = append(nodes, cardNode(u))
	}
	doc := docOf(nodes...)

	_, records := e.Enrich(context.Background(), doc)

	if len(records) != 20 {
		t.Fatalf("expected 20 records, got %d", len(records))
	}
	for _, u := range urls {
		if _, ok := records[u]; !ok {
			t.Errorf("missing record for %q", u)
		}
	}
}
