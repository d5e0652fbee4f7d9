// Package clients provides the shared plumbing for the thin HTTP adapters
// around the tutoring microservices (generation, document, ingestion).
// Each adapter lives in its own subpackage and only deals with its wire
// shapes; status handling and JSON transport are centralized here.
package clients

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

// DefaultTimeout is applied when a caller does not supply an *http.Client.
const DefaultTimeout = 30 * time.Second

// maxErrorBodyBytes caps how much of an error body is retained for context.
const maxErrorBodyBytes = 2048

// StatusError captures a non-2xx upstream response with enough context to
// diagnose the failure without logging entire payloads.
type StatusError struct {
	Service    string
	StatusCode int
	URL        string
	Body       string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d from %s: %s", e.Service, e.StatusCode, e.URL, e.Body)
}

// HTTPStatusCode returns the upstream status code.
func (e *StatusError) HTTPStatusCode() int { return e.StatusCode }

// PostJSON marshals in, POSTs it to url, and decodes a 2xx response body into
// out (when out is non-nil). Non-2xx responses yield a *StatusError. The
// caller's context bounds the whole exchange.
func PostJSON(ctx context.Context, hc *http.Client, service, url string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", service, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: build request: %w", service, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", service, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return &StatusError{
			Service:    service,
			StatusCode: resp.StatusCode,
			URL:        url,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}

	if out == nil {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", service, err)
	}
	return nil
}

// JoinURL concatenates a base URL and a path without doubling slashes.
func JoinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
