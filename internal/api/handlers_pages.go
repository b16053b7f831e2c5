package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/pagemirror/internal/confluence"
	"github.com/dgallion1/pagemirror/internal/doctree"
	"github.com/dgallion1/pagemirror/internal/enrich"
)

// DemoPageID serves the embedded demo page through the full pipeline, so the
// mirror can be exercised without service credentials.
const DemoPageID = "demo"

// handlePage is the page-routing frontend: /?pageId=<id> mirrors one page as
// HTML. Without a pageId it redirects to the configured homepage, falling
// back to the demo page.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	pageID := r.URL.Query().Get("pageId")
	if pageID == "" {
		target := DemoPageID
		if s.cfg.HomepageID != "" {
			target = s.cfg.HomepageID
		}
		http.Redirect(w, r, "/?pageId="+target, http.StatusFound)
		return
	}

	title, result, err := s.fetchAndEnrich(r, pageID)
	if err != nil {
		s.pageError(w, pageID, err)
		return
	}

	page, err := s.renderer.Page(title, result.Doc, result.Outline)
	if err != nil {
		s.log.Error("render failed", "page_id", pageID, "error", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(page)
}

// handleAPIPage returns the enriched tree plus auxiliary indexes as JSON.
func (s *Server) handleAPIPage(w http.ResponseWriter, r *http.Request) {
	pageID := chi.URLParam(r, "pageID")

	title, result, err := s.fetchAndEnrich(r, pageID)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, errNotFound) {
			status = http.StatusNotFound
		}
		jsonError(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"page_id": pageID,
		"title":   title,
		"doc":     result.Doc,
		"outline": result.Outline,
		"links":   result.Links,
	})
}

var errNotFound = errors.New("page not found")

// fetchAndEnrich fetches one page (or builds the demo page) and runs it
// through the enrichment pipeline.
func (s *Server) fetchAndEnrich(r *http.Request, pageID string) (string, *enrich.Result, error) {
	ctx := r.Context()

	if pageID == DemoPageID {
		doc := doctree.FromMarkdown([]byte(demoMarkdown))
		return demoTitle, s.pipeline.Enrich(ctx, &doc.Node, pageID, demoStorageHTML), nil
	}

	page, err := s.pages.GetPage(ctx, pageID)
	if err != nil {
		if isNotFound(err) {
			return "", nil, errNotFound
		}
		return "", nil, err
	}

	doc, err := doctree.ParseDoc(page.DocJSON)
	if err != nil {
		return "", nil, err
	}

	return page.Title, s.pipeline.Enrich(ctx, &doc.Node, page.ID, page.StorageHTML), nil
}

func (s *Server) pageError(w http.ResponseWriter, pageID string, err error) {
	if errors.Is(err, errNotFound) {
		http.Error(w, "page not found", http.StatusNotFound)
		return
	}
	s.log.Error("page fetch failed", "page_id", pageID, "error", err)
	http.Error(w, "upstream fetch failed", http.StatusBadGateway)
}

// isNotFound sniffs a 404 out of the client's error chain. The client
// reports upstream statuses as formatted errors rather than typed ones, so
// this stays a string check.
func isNotFound(err error) bool {
	var retryable *confluence.RetryableError
	if errors.As(err, &retryable) {
		return false
	}
	return strings.Contains(err.Error(), "status 404")
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
