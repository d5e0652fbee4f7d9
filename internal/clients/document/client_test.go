package document

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nexus-reussite/aria-backend/internal/clients"
)

func TestCompile_Success(t *testing.T) {
	var got Job
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/generate_pdf" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(Result{URL: "/pdfs/fiche.pdf"})
	}))
	defer srv.Close()

	c := New(srv.URL, WithHTTPClient(srv.Client()))
	res, err := c.Compile(context.Background(), Job{
		Contenu:      `\documentclass{article}\begin{document}x\end{document}`,
		TypeDocument: TypeRevision,
		Matiere:      "Mathématiques",
		NomFichier:   "fiche_revision_1",
		NomEleve:     "Alice Martin",
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if res.URL != "/pdfs/fiche.pdf" {
		t.Fatalf("unexpected url %q", res.URL)
	}
	if got.NomEleve != "Alice Martin" || got.TypeDocument != TypeRevision {
		t.Fatalf("wire payload mismatch: %+v", got)
	}
}

func TestCompile_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "latex error", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c := New(srv.URL, WithHTTPClient(srv.Client()))
	_, err := c.Compile(context.Background(), Job{Contenu: "x"})
	var se *clients.StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if se.Service != "pdf_generator_service" {
		t.Fatalf("unexpected service tag %q", se.Service)
	}
}
