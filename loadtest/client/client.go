// Package client provides an HTTP load test client for the Pocket Market
// moderation API. It posts listing and message checks and reports the
// round-trip latency of each call.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// API paths, relative to the base URL.
const (
	PathListings = "/api/v1/moderation/listings"
	PathMessages = "/api/v1/moderation/messages"
)

// ListingRequest mirrors the listing check body.
type ListingRequest struct {
	UserID      string `json:"user_id,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// MessageRequest mirrors the message check body.
type MessageRequest struct {
	UserID string `json:"user_id,omitempty"`
	Text   string `json:"text"`
}

// Result is the decoded check response.
type Result struct {
	RequestID string `json:"request_id"`
	Flagged   bool   `json:"flagged"`
	Category  string `json:"category"`
	Cached    bool   `json:"cached"`
	Error     string `json:"error"`
}

// Outcome is one completed call.
type Outcome struct {
	Status  int
	Latency time.Duration
	Result  Result
}

// Client posts checks to one moderator instance. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for baseURL, e.g. http://localhost:8080.
func New(baseURL string, maxConns int) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        maxConns,
				MaxIdleConnsPerHost: maxConns,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// CheckListing posts a listing check.
func (c *Client) CheckListing(ctx context.Context, req ListingRequest) (Outcome, error) {
	return c.post(ctx, PathListings, req)
}

// CheckMessage posts a message check.
func (c *Client) CheckMessage(ctx context.Context, req MessageRequest) (Outcome, error) {
	return c.post(ctx, PathMessages, req)
}

func (c *Client) post(ctx context.Context, path string, body interface{}) (Outcome, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return Outcome{}, fmt.Errorf("encode: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return Outcome{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return Outcome{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	latency := time.Since(start)
	if err != nil {
		return Outcome{}, fmt.Errorf("read body: %w", err)
	}

	out := Outcome{Status: resp.StatusCode, Latency: latency}
	if err := json.Unmarshal(raw, &out.Result); err != nil {
		return out, fmt.Errorf("decode (status %d): %w", resp.StatusCode, err)
	}
	return out, nil
}
