// Package catalog talks to the remote anime catalog API and resolves names and
// details through a local cache, database, and title index.
package catalog

import (
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

	"github.com/hyperjump/ruiji/internal/models"
	"github.com/hyperjump/ruiji/pkg/utils"
	"go.uber.org/zap"
)

var (
	// ErrNotFound is returned when the catalog has no matching item.
	ErrNotFound = errors.New("catalog item not found")
	// ErrUnavailable is returned when the catalog could not be reached.
	ErrUnavailable = errors.New("catalog unavailable")
)

// ClientIDHeader carries the API client id.
const ClientIDHeader = "X-MAL-CLIENT-ID"

// detailFields is the field list requested for item details.
var detailFields = []string{
	"id", "title", "main_picture", "alternative_titles", "start_date", "end_date",
	"synopsis", "mean", "rank", "popularity", "status", "genres", "my_list_status",
	"num_episodes", "start_season", "rating", "pictures", "background", "media_type",
}

// APIError is a non-200 response from the catalog API.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("catalog api returned %d: %s", e.Status, utils.Truncate(e.Body, 200))
}

// Is matches ErrNotFound for 404 and ErrUnavailable for 5xx responses.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrUnavailable:
		return e.Status >= http.StatusInternalServerError
	}
	return false
}

// Client is an HTTP client for the catalog API.
type Client struct {
	baseURL  string
	clientID string
	http     *http.Client
	logger   *zap.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// WithTimeout bounds every request.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.http.Timeout = d }
}

// WithClientLogger sets a logger for request debugging.
func WithClientLogger(l *zap.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a client for the API at baseURL.
func NewClient(baseURL, clientID string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		clientID: clientID,
		http:     &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = utils.LoggerOrNop(c.logger)
	return c
}

type searchResponse struct {
	Data []struct {
		Node models.SearchHit `json:"node"`
	} `json:"data"`
}

// Search returns up to limit catalog entries matching name, in the API's order.
func (c *Client) Search(ctx context.Context, name string, limit int) ([]models.SearchHit, error) {
	q := url.Values{}
	q.Set("q", name)
	q.Set("limit", strconv.Itoa(limit))
	q.Set("fields", "media_type,id")
	body, err := c.get(ctx, "/anime?"+q.Encode())
	if err != nil {
		return nil, err
	}
	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}
	hits := make([]models.SearchHit, len(resp.Data))
	for i, d := range resp.Data {
		hits[i] = d.Node
	}
	return hits, nil
}

// Details returns the full metadata of item id.
func (c *Client) Details(ctx context.Context, id int64) (*models.Item, error) {
	q := url.Values{}
	q.Set("fields", strings.Join(detailFields, ","))
	body, err := c.get(ctx, fmt.Sprintf("/anime/%d?%s", id, q.Encode()))
	if err != nil {
		return nil, err
	}
	item, err := models.ParseItem(body)
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set(ClientIDHeader, c.clientID)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}
	c.logger.Debug("catalog request",
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}
