// Package wiki is a small client for the wiki's content REST API: fetch a
// page's storage-format body and write a new version of it.
package wiki

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrPageNotFound is returned when the page id does not exist.
	ErrPageNotFound = errors.New("page not found")
	// ErrVersionConflict is returned when the page changed since it was read.
	ErrVersionConflict = errors.New("page version conflict")
)

// RetryableError indicates a transient failure that can be retried.
type RetryableError struct {
	StatusCode int
	Message    string
	// RetryAfter is the server's requested delay, zero when it sent none.
	RetryAfter time.Duration
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Page is the subset of a content object this service reads and writes.
type Page struct {
	ID      string
	Title   string
	Version int
	Body    string
}

type contentJSON struct {
	ID      string      `json:"id"`
	Type    string      `json:"type"`
	Title   string      `json:"title"`
	Version versionJSON `json:"version"`
	Body    bodyJSON    `json:"body"`
}

type versionJSON struct {
	Number  int    `json:"number"`
	Message string `json:"message,omitempty"`
}

type bodyJSON struct {
	Storage storageJSON `json:"storage"`
}

type storageJSON struct {
	Value          string `json:"value"`
	Representation string `json:"representation"`
}

// Client communicates with the wiki content API. With a user set it uses
// basic auth (user + API token), otherwise a bearer token.
type Client struct {
	baseURL    string
	user       string
	token      string
	httpClient *http.Client
}

func NewClient(baseURL, user, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		user:    user,
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) authorize(req *http.Request) {
	if c.user != "" {
		req.SetBasicAuth(c.user, c.token)
		return
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func (c *Client) contentURL(pageID string) string {
	return c.baseURL + "/rest/api/content/" + url.PathEscape(pageID)
}

// GetPage fetches the current storage body and version of a page.
func (c *Client) GetPage(ctx context.Context, pageID string) (*Page, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.contentURL(pageID)+"?expand=body.storage,version", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	c.authorize(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("get page: %w", err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, "get page "+pageID); err != nil {
		return nil, err
	}

	var content contentJSON
	if err := json.NewDecoder(resp.Body).Decode(&content); err != nil {
		return nil, fmt.Errorf("decode page: %w", err)
	}
	if content.Body.Storage.Representation != "" && content.Body.Storage.Representation != "storage" {
		return nil, fmt.Errorf("get page %s: unexpected body representation %q", pageID, content.Body.Storage.Representation)
	}
	return &Page{
		ID:      content.ID,
		Title:   content.Title,
		Version: content.Version.Number,
		Body:    content.Body.Storage.Value,
	}, nil
}

// UpdatePage writes body as version page.Version+1. page.Version must be the
// version the body was derived from.
func (c *Client) UpdatePage(ctx context.Context, page *Page, body, message string) (*Page, error) {
	reqBody := contentJSON{
		ID:      page.ID,
		Type:    "page",
		Title:   page.Title,
		Version: versionJSON{Number: page.Version + 1, Message: message},
		Body:    bodyJSON{Storage: storageJSON{Value: body, Representation: "storage"}},
	}
	data, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal page: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPut, c.contentURL(page.ID), bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	c.authorize(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("update page: %w", err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, "update page "+page.ID); err != nil {
		return nil, err
	}

	var content contentJSON
	if err := json.NewDecoder(resp.Body).Decode(&content); err != nil {
		return nil, fmt.Errorf("decode page: %w", err)
	}
	return &Page{
		ID:      content.ID,
		Title:   content.Title,
		Version: content.Version.Number,
		Body:    body,
	}, nil
}

func checkStatus(resp *http.Response, op string) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return &RetryableError{
			StatusCode: resp.StatusCode,
			Message:    string(respBody),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s: %w", op, ErrPageNotFound)
	case resp.StatusCode == http.StatusConflict:
		return fmt.Errorf("%s: %w", op, ErrVersionConflict)
	}
	return fmt.Errorf("%s: status %d: %s", op, resp.StatusCode, string(respBody))
}

// parseRetryAfter accepts the delay-seconds form of Retry-After.
func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}
