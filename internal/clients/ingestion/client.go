// Package ingestion is the adapter for the knowledge-base (RAG) service.
// Submissions are best-effort: the orchestrator dispatches them in the
// background and only ever logs failures.
package ingestion

import (
	"context"
	"net/http"
	"strings"

	"github.com/nexus-reussite/aria-backend/internal/clients"
)

// Metadata describes the ingested content for later retrieval.
type Metadata struct {
	Titre     string `json:"titre"`
	Matiere   string `json:"matiere"`
	Niveau    string `json:"niveau,omitempty"`
	StudentID string `json:"studentId,omitempty"`
}

// Record is the wire payload for POST /ingest.
type Record struct {
	Contenu  string   `json:"contenu"`
	Metadata Metadata `json:"metadata"`
}

// Client is a focused HTTP client for the RAG service.
type Client struct {
	baseURL string
	hc      *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

// New creates a Client for the given base URL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSpace(baseURL),
		hc:      &http.Client{Timeout: clients.DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Ingest calls POST {base}/ingest. The response body is ignored beyond the
// status code.
func (c *Client) Ingest(ctx context.Context, rec Record) error {
	url := clients.JoinURL(c.baseURL, "/ingest")
	return clients.PostJSON(ctx, c.hc, "rag_service", url, rec, nil)
}
