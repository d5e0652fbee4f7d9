// Package generation is the adapter for the LLM text-generation service.
//
// The service receives the assembled student context together with the
// current query and answers with free text; when it judges that a document
// is wanted it additionally embeds LaTeX markup in contenu_latex. The
// orchestrator treats that field as the single source of truth on document
// intent.
package generation

import (
	"context"
	"net/http"
	"strings"

	"github.com/nexus-reussite/aria-backend/internal/clients"
)

// Request types understood by the generation service.
const (
	RequestTypeExplanation = "EXPLICATION"
	RequestTypePDF         = "PDF_GENERATION"
)

// Request is the wire payload for POST /generate. Field names follow the
// service's French wire contract.
type Request struct {
	Context      any    `json:"contexte_eleve"`
	Query        string `json:"requete_actuelle"`
	Type         string `json:"requete_type"`
	SystemPrompt string `json:"system_prompt,omitempty"`
}

// Result is the generation service's response. ContenuLatex is optional;
// its presence signals that a document is wanted.
type Result struct {
	Response     string `json:"response"`
	ContenuLatex string `json:"contenu_latex,omitempty"`
}

// HasMarkup reports whether the result carries non-empty embedded markup.
func (r *Result) HasMarkup() bool {
	return r != nil && strings.TrimSpace(r.ContenuLatex) != ""
}

// Client is a focused HTTP client for the generation service.
type Client struct {
	baseURL string
	hc      *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client (tests, custom timeouts).
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

// Generate calls POST {base}/generate and returns the decoded result.
// Transport errors, timeouts, and non-2xx statuses all surface as errors;
// the caller decides whether they are fatal.
func (c *Client) Generate(ctx context.Context, req Request) (*Result, error) {
	var out Result
	url := clients.JoinURL(c.baseURL, "/generate")
	if err := clients.PostJSON(ctx, c.hc, "llm_service", url, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
