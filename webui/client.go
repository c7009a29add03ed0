package webui

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// APIClient posts JSON to the backend API. Every call is a single attempt
// with no client-side timeout; the caller's context is the only deadline.
type APIClient struct {
	baseURL string
	http    *http.Client
}

// NewAPIClient returns a client for baseURL. A nil hc uses a client without
// a timeout.
func NewAPIClient(baseURL string, hc *http.Client) *APIClient {
	if hc == nil {
		hc = &http.Client{}
	}
	return &APIClient{baseURL: strings.TrimRight(baseURL, "/"), http: hc}
}

// Post sends body as JSON to path and decodes the JSON response into out,
// whatever the status code. Transport and decode failures are returned.
func (c *APIClient) Post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response (status %d): %w", path, resp.StatusCode, err)
	}
	return nil
}
