// Package moderation calls an external content screening service before
// user text is accepted. The platform degrades gracefully: when the
// service is not configured or unreachable, content is let through and
// left for the human review queue.
package moderation

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"
)

// Verdict is the screening outcome for one piece of text.
type Verdict struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// Client screens message and response bodies against an external HTTP
// endpoint. A zero-value or nil client always allows.
type Client struct {
	url  string
	http *http.Client
}

// New returns a moderation client for the given endpoint URL. An empty
// URL disables screening entirely.
func New(url string) *Client {
	return &Client{
		url:  url,
		http: &http.Client{Timeout: 5 * time.Second},
	}
}

// Check submits the text for screening. Transport and decode failures
// fail open: anonymous users in distress should not lose a message to a
// moderation outage, and everything still lands in the review queue.
func (c *Client) Check(ctx context.Context, text string) Verdict {
	if c == nil || c.url == "" {
		return Verdict{Allowed: true}
	}

	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return Verdict{Allowed: true}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		log.Printf("moderation: build request failed: %v", err)
		return Verdict{Allowed: true}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		log.Printf("moderation: request failed, allowing content: %v", err)
		return Verdict{Allowed: true}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		log.Printf("moderation: unexpected status %d, allowing content", resp.StatusCode)
		return Verdict{Allowed: true}
	}

	var v Verdict
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		log.Printf("moderation: decode failed, allowing content: %v", err)
		return Verdict{Allowed: true}
	}
	return v
}
