package osm

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/dpup/prefab/logging"

	"github.com/dpup/pctdiff/internal/lib/geo"
)

const (
	// DefaultBaseURL is the public OpenStreetMap API
	DefaultBaseURL = "https://api.openstreetmap.org/api/0.6"

	// DefaultUserAgent identifies the tool to the OSM API, which rejects anonymous clients
	DefaultUserAgent = "pctdiff/0.1 (PCT reroute detection tool)"
)

// HTTPDoer is the subset of *http.Client the client needs
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ResponseCache stores raw API bodies by key
type ResponseCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, source string) error
}

// Client fetches route relations from the OSM API, caching every response body
type Client struct {
	httpClient HTTPDoer
	baseURL    string
	userAgent  string
	cache      ResponseCache

	requests atomic.Int64
}

// NewClient creates a client for the public OSM API
func NewClient(cache ResponseCache) *Client {
	return NewClientWithHTTPDoer(DefaultBaseURL, &http.Client{Timeout: 30 * time.Second}, cache)
}

// NewClientWithHTTPDoer creates a client with a custom base URL and transport
func NewClientWithHTTPDoer(baseURL string, httpClient HTTPDoer, cache ResponseCache) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		userAgent:  DefaultUserAgent,
		cache:      cache,
	}
}

// Requests returns the number of HTTP requests issued so far
func (c *Client) Requests() int64 {
	return c.requests.Load()
}

// FetchRelationWays resolves a super-relation into the line geometry of all its sub-relations.
//
// The top-level relation is fetched first to find members of type relation, then each sub-relation
// is fetched in full and its ways turned into polylines. onProgress may be nil.
func (c *Client) FetchRelationWays(ctx context.Context, relationID int64, onProgress func(ProgressEvent)) ([]geo.Polyline, error) {
	notify := func(e ProgressEvent) {
		if onProgress != nil {
			onProgress(e)
		}
	}

	body, err := c.fetchCached(ctx,
		fmt.Sprintf("%s/relation/%d.json", c.baseURL, relationID),
		fmt.Sprintf("relation_%d.json", relationID))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch relation %d: %w", relationID, err)
	}

	subRelations, err := ParseSubRelations(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse relation %d: %w", relationID, err)
	}
	logging.Infow(ctx, "osm: found sub-relations", "relation", relationID, "count", len(subRelations))
	notify(ProgressEvent{Kind: SubRelationsFound, Count: len(subRelations)})

	var lines []geo.Polyline
	for _, subID := range subRelations {
		body, err := c.fetchCached(ctx,
			fmt.Sprintf("%s/relation/%d/full.json", c.baseURL, subID),
			fmt.Sprintf("relation_%d_full.json", subID))
		if err != nil {
			return nil, fmt.Errorf("failed to fetch relation %d: %w", subID, err)
		}

		ways, err := ParseFullResponse(body)
		if err != nil {
			return nil, fmt.Errorf("failed to parse full response for relation %d: %w", subID, err)
		}
		lines = append(lines, ways...)

		logging.Debugw(ctx, "osm: fetched sub-relation", "relation", subID, "ways", len(ways))
		notify(ProgressEvent{Kind: SubRelationFetched, RelationID: subID})
	}

	return lines, nil
}

// fetchCached returns the cached body for key or fetches requestURL and caches the result
func (c *Client) fetchCached(ctx context.Context, requestURL, key string) ([]byte, error) {
	if c.cache != nil {
		body, found, err := c.cache.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if found {
			return body, nil
		}
	}

	body, err := c.get(ctx, requestURL)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, body, "osm"); err != nil {
			return nil, fmt.Errorf("failed to cache response: %w", err)
		}
	}
	return body, nil
}

func (c *Client) get(ctx context.Context, requestURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	c.requests.Add(1)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, URL: requestURL, Body: string(body)}
	}
	return body, nil
}

// StatusError is returned when the API answers with a non-2xx status
type StatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API error %d for %s: %s", e.StatusCode, e.URL, e.Body)
}

// ProgressKind identifies a fetch milestone
type ProgressKind int

const (
	// SubRelationsFound carries the number of sub-relations in Count
	SubRelationsFound ProgressKind = iota
	// SubRelationFetched carries the id of the finished sub-relation in RelationID
	SubRelationFetched
)

// ProgressEvent reports fetch progress
type ProgressEvent struct {
	Kind       ProgressKind
	Count      int
	RelationID int64
}
