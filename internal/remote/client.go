// Package remote is the CRUD facade over the backend's REST interface
// (PostgREST-style row filtering, upserts keyed by conflict columns) plus its
// identity endpoints. It is intentionally dumb: reconciliation, deleted-id
// filtering, and queueing live in the sync engine.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/novelshare/novelsync/internal/domain"
)

const (
	defaultTimeout = 30 * time.Second
	userAgent      = "novelsync/1.0"
)

// Gateway is the full remote surface the sync engine depends on.
type Gateway interface {
	domain.NovelRepository
	domain.ChapterRepository
	domain.LibraryRemote
	domain.HistoryRemote
	domain.RatingRemote
	domain.FollowRemote
	domain.ProfileRemote

	// Ping is the lightweight reachability probe used by the network monitor.
	Ping(ctx context.Context) error
}

// Client implements Gateway and domain.Identity against a single backend.
type Client struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
	logger     *slog.Logger

	mu            sync.Mutex
	session       *domain.Session
	authListeners []authListener
	nextListener  int
}

type authListener struct {
	id int
	fn func(domain.AuthEvent, *domain.Session)
}

var (
	_ Gateway         = (*Client)(nil)
	_ domain.Identity = (*Client)(nil)
)

// NewClient creates a backend client. anonKey authenticates anonymous reads;
// a session bearer token replaces it after sign-in.
func NewClient(baseURL, anonKey string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		anonKey: anonKey,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		logger: logger,
	}
}

// Ping performs a HEAD request against the REST root. A 400/401 still proves
// reachability (the root rejects unauthenticated listing).
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL+"/rest/v1/", nil)
	if err != nil {
		return err
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.ErrRemoteOffline
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: probe status %d", domain.ErrRemoteOffline, resp.StatusCode)
	}
	return nil
}

// token returns the bearer token: session access token when signed in,
// anon key otherwise.
func (c *Client) token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil && c.session.AccessToken != "" {
		return c.session.AccessToken
	}
	return c.anonKey
}

// doRest performs an authenticated request against /rest/v1. extraHeaders may
// set Prefer/Accept variants for upserts and single-object reads.
func (c *Client) doRest(ctx context.Context, method, table string, query url.Values, body any, extraHeaders map[string]string) ([]byte, *http.Response, error) {
	reqURL := c.baseURL + "/rest/v1/" + table
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+c.token())
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range extraHeaders {
		req.Header.Set(k, v)
	}

	c.logger.Debug("rest request", "method", method, "table", table)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("rest request failed", "table", table, "error", err)
		return nil, nil, domain.ErrRemoteOffline
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, resp, domain.ErrAuthFailed
	case resp.StatusCode == http.StatusNotAcceptable:
		// single-object read with zero rows
		return nil, resp, domain.ErrNotFound
	case resp.StatusCode >= 400:
		c.logger.Debug("rest request error", "table", table, "status", resp.StatusCode, "body", truncate(string(data), 200))
		return nil, resp, fmt.Errorf("remote error: status %d: %s", resp.StatusCode, truncate(string(data), 200))
	}
	return data, resp, nil
}

// isDuplicate reports whether err is a unique-violation the caller treats as
// success (library adds, follows, profile creation).
func isDuplicate(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}

// count performs a HEAD request with an exact count preference and parses the
// total from the Content-Range header.
func (c *Client) count(ctx context.Context, table string, query url.Values) (int, error) {
	reqURL := c.baseURL + "/rest/v1/" + table
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, reqURL, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+c.token())
	req.Header.Set("Prefer", "count=exact")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, domain.ErrRemoteOffline
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return 0, fmt.Errorf("remote error: count status %d", resp.StatusCode)
	}

	// Content-Range: "0-24/357" or "*/0"
	cr := resp.Header.Get("Content-Range")
	idx := strings.LastIndex(cr, "/")
	if idx < 0 {
		return 0, fmt.Errorf("missing count in Content-Range %q", cr)
	}
	total, err := strconv.Atoi(cr[idx+1:])
	if err != nil {
		return 0, fmt.Errorf("bad count in Content-Range %q", cr)
	}
	return total, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
