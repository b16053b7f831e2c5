// Package confluence is the REST client for the external document service.
// It hands the pipeline a fetched document tree plus the raw storage-format
// side payload; how it authenticates is its own business.
package confluence

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Client talks to the document service's content API.
type Client struct {
	baseURL    string
	email      string
	apiToken   string
	httpClient *http.Client
}

func NewClient(baseURL, email, apiToken string) *Client {
	return &Client{
		baseURL:  baseURL,
		email:    email,
		apiToken: apiToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Page is one fetched page: the document tree body plus the storage-format
// side payload the media resolver scans for attachment markers.
type Page struct {
	ID          string
	Title       string
	DocJSON     []byte
	StorageHTML string
}

// contentResponse is the wire shape of GET /wiki/rest/api/content/{id}.
type contentResponse struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Body  struct {
		AtlasDocFormat struct {
			Value string `json:"value"`
		} `json:"atlas_doc_format"`
		Storage struct {
			Value string `json:"value"`
		} `json:"storage"`
	} `json:"body"`
}

// GetPage fetches a page with both body representations expanded.
func (c *Client) GetPage(ctx context.Context, id string) (*Page, error) {
	q := url.Values{"expand": {"body.atlas_doc_format,body.storage"}}
	var resp contentResponse
	if err := c.getJSON(ctx, "/wiki/rest/api/content/"+url.PathEscape(id)+"?"+q.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("get page %s: %w", id, err)
	}
	return &Page{
		ID:          resp.ID,
		Title:       resp.Title,
		DocJSON:     []byte(resp.Body.AtlasDocFormat.Value),
		StorageHTML: resp.Body.Storage.Value,
	}, nil
}

// PageTitle fetches just the display title of a page. It satisfies the link
// engine's TitleFetcher contract.
func (c *Client) PageTitle(ctx context.Context, id string) (string, error) {
	var resp contentResponse
	if err := c.getJSON(ctx, "/wiki/rest/api/content/"+url.PathEscape(id), &resp); err != nil {
		return "", fmt.Errorf("get page title %s: %w", id, err)
	}
	return resp.Title, nil
}

// getJSON performs an authenticated GET with bounded retries on transient
// upstream failures.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	var lastErr error
	for attempt := 0; attempt < MaxRetries; attempt++ {
		lastErr = c.doGetJSON(ctx, path, out)
		if lastErr == nil || !IsRetryable(lastErr) {
			return lastErr
		}
		select {
		case <-time.After(Backoff(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}

func (c *Client) doGetJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(c.email, c.apiToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("content api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &RetryableError{StatusCode: resp.StatusCode, Message: string(body)}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("content api status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Close releases resources.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}
