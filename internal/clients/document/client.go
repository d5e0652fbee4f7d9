// Package document is the adapter for the PDF compilation service.
package document

import (
	"context"
	"net/http"
	"strings"

	"github.com/nexus-reussite/aria-backend/internal/clients"
)

// Document types understood by the PDF service.
const (
	TypeCourse   = "cours"
	TypeRevision = "fiche_revision"
)

// Job is the wire payload for POST /generate_pdf. Contenu must already be
// sanitized; the adapter does not inspect it.
type Job struct {
	Contenu        string `json:"contenu"`
	TypeDocument   string `json:"type_document"`
	Matiere        string `json:"matiere"`
	NomFichier     string `json:"nom_fichier"`
	NomEleve       string `json:"nom_eleve"`
	FooterBrand    string `json:"footer_brand,omitempty"`
	FooterShowDate bool   `json:"footer_show_date,omitempty"`
	FooterExtra    string `json:"footer_extra,omitempty"`
}

// Result carries the URL of the compiled document.
type Result struct {
	URL string `json:"url"`
}

// Client is a focused HTTP client for the PDF service.
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

// Compile calls POST {base}/generate_pdf and returns the document URL.
func (c *Client) Compile(ctx context.Context, job Job) (*Result, error) {
	var out Result
	url := clients.JoinURL(c.baseURL, "/generate_pdf")
	if err := clients.PostJSON(ctx, c.hc, "pdf_generator_service", url, job, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
