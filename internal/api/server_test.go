package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/pagemirror/internal/config"
	"github.com/dgallion1/pagemirror/internal/confluence"
	"github.com/dgallion1/pagemirror/internal/enrich"
	"github.com/dgallion1/pagemirror/internal/links"
	"github.com/dgallion1/pagemirror/internal/render"
	"github.com/dgallion1/pagemirror/internal/urlspace"
)

const externalBase = "https://example.atlassian.net"

type fakeSource struct {
	pages map[string]*confluence.Page
}

func (f *fakeSource) GetPage(ctx context.Context, id string) (*confluence.Page, error) {
	page, ok := f.pages[id]
	if !ok {
		return nil, fmt.Errorf("content api status 404: no such content")
	}
	return page, nil
}

type noTitles struct{}

func (noTitles) PageTitle(ctx context.Context, id string) (string, error) {
	return "", fmt.Errorf("no titles in tests")
}

func newTestServer(pages map[string]*confluence.Page, apiKey string) *Server {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	urls := urlspace.New(externalBase, "http://localhost:8091")
	engine := links.NewEngine(urls, noTitles{}, nil, log, 2, time.Second)
	pipeline := enrich.NewPipeline(engine, externalBase, log)
	cfg := config.Config{Port: "8091", MirrorAPIKey: apiKey}
	return NewServer(&fakeSource{pages: pages}, pipeline, render.New(urls), log, cfg)
}

func adfPage(id, title, docJSON, storage string) *confluence.Page {
	return &confluence.Page{ID: id, Title: title, DocJSON: []byte(docJSON), StorageHTML: storage}
}

func TestHandlePage_RendersFetchedPage(t *testing.T) {
	docJSON := `{"type":"doc","version":1,"content":[
		{"type":"heading","attrs":{"level":1},"content":[{"type":"text","text":"Mirrored Page"}]},
		{"type":"paragraph","content":[{"type":"media","attrs":{"type":"file"}}]}
	]}`
	storage := `<ri:attachment ri:filename="photo.jpg"/>`
	srv := newTestServer(map[string]*confluence.Page{
		"100": adfPage("100", "Mirrored", docJSON, storage),
	}, "")

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?pageId=100", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if !strings.Contains(body, `id="mirrored-page"`) {
		t.Error("heading anchor missing")
	}
	if !strings.Contains(body, "photo.jpg") {
		t.Error("resolved media missing")
	}
}

func TestHandlePage_NoPageIDRedirects(t *testing.T) {
	srv := newTestServer(nil, "")

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/?pageId=demo" {
		t.Errorf("location = %q", loc)
	}
}

func TestHandlePage_DemoNeedsNoUpstream(t *testing.T) {
	srv := newTestServer(nil, "")

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?pageId=demo", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "/static/demo.png") {
		t.Error("demo page should reference the demonstration image")
	}
}

func TestHandlePage_NotFound(t *testing.T) {
	srv := newTestServer(nil, "")

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?pageId=404404", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHandleAPIPage_ReturnsEnrichedJSON(t *testing.T) {
	docJSON := `{"type":"doc","version":1,"content":[
		{"type":"heading","attrs":{"level":2},"content":[{"type":"text","text":"Section"}]}
	]}`
	srv := newTestServer(map[string]*confluence.Page{
		"7": adfPage("7", "Seven", docJSON, ""),
	}, "")

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/pages/7", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Title   string `json:"title"`
		Outline []struct {
			ID string `json:"id"`
		} `json:"outline"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Title != "Seven" {
		t.Errorf("title = %q", resp.Title)
	}
	if len(resp.Outline) != 1 || resp.Outline[0].ID != "section" {
		t.Errorf("outline = %+v", resp.Outline)
	}
}

func TestAPIAuth(t *testing.T) {
	srv := newTestServer(nil, "secret-key")

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/pages/7", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing key: status = %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/pages/7", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong key: status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/pages/7", nil)
	req.Header.Set("Authorization", "Bearer secret-key")
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	// Authorized but the page does not exist in the fake source.
	if rec.Code != http.StatusNotFound {
		t.Fatalf("right key: status = %d", rec.Code)
	}
}
