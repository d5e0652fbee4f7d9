package ingestion

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestIngest_Success(t *testing.T) {
	var got Record
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ingest" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		// The adapter must not care about the response body shape.
		_, _ = w.Write([]byte(`{"message":"ok","document_id":"d1"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, WithHTTPClient(srv.Client()))
	err := c.Ingest(context.Background(), Record{
		Contenu: "## Limites\nUne explication complète.",
		Metadata: Metadata{
			Titre:     "Explication sur: limites",
			Matiere:   "MATHEMATIQUES",
			Niveau:    "Terminale",
			StudentID: "s1",
		},
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if got.Metadata.Matiere != "MATHEMATIQUES" {
		t.Fatalf("wire payload mismatch: %+v", got)
	}
}

func TestIngest_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "index unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(srv.URL, WithHTTPClient(srv.Client()))
	if err := c.Ingest(context.Background(), Record{Contenu: "x"}); err == nil {
		t.Fatal("expected error on non-2xx")
	}
}
