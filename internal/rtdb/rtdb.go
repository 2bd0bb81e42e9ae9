// Package rtdb writes channel states to a Firebase Realtime Database over its
// REST interface, authenticating anonymously with a project API key.
package rtdb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout bounds a single REST request when no HTTP client is supplied.
const DefaultTimeout = 10 * time.Second

// TokenSource yields the ID token to authenticate a request with.
// An empty token sends the request unauthenticated.
type TokenSource interface {
	Token() string
}

// Client is a remote store backed by the database REST API.
type Client struct {
	base   string
	http   *http.Client
	tokens TokenSource
}

// NewClient creates a client for the database rooted at dbURL. tokens may be nil.
func NewClient(dbURL string, tokens TokenSource, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(dbURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid database url %q", dbURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{
		base:   strings.TrimSuffix(dbURL, "/"),
		http:   httpClient,
		tokens: tokens,
	}, nil
}

// WriteError is returned when the database rejects a write.
type WriteError struct {
	Path       string
	StatusCode int
	Reason     string
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("rtdb: put %s: %d %s", e.Path, e.StatusCode, e.Reason)
}

// PutBool sets the value at path, e.g. PUT <db>/frets/0.json with body true.
func (c *Client) PutBool(ctx context.Context, path string, value bool) error {
	u := c.base + "/" + strings.TrimPrefix(path, "/") + ".json"
	if c.tokens != nil {
		if tok := c.tokens.Token(); tok != "" {
			u += "?auth=" + url.QueryEscape(tok)
		}
	}

	body, _ := json.Marshal(value)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("rtdb: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("rtdb: put %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 == 2 {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	return &WriteError{Path: path, StatusCode: resp.StatusCode, Reason: errorReason(resp.Body, resp.Status)}
}

// errorReason extracts {"error": "..."} from a database error body.
func errorReason(r io.Reader, fallback string) string {
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(data) == 0 {
		return fallback
	}
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &e) == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(data))
}
