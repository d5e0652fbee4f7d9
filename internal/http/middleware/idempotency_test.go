package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func idemRouter(lookup IdempotencyLookup) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(IdempotencyValidator(IdempotencyOptions{MaxLen: 40}, lookup))
	r.POST("/chat", func(c *gin.Context) {
		key, _ := GetIdempotencyKey(c)
		c.JSON(http.StatusOK, gin.H{
			"key":    key,
			"replay": IsReplay(c),
			"bypass": IsRateBypass(c),
		})
	})
	return r
}

func TestIdempotency_NoHeaderIsNoop(t *testing.T) {
	r := idemRouter(nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/chat", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"key":""`) {
		t.Fatalf("expected empty key, body: %s", w.Body.String())
	}
}

func TestIdempotency_RejectsMalformedKey(t *testing.T) {
	r := idemRouter(nil)
	for _, bad := range []string{"spaces not allowed", "éé", strings.Repeat("a", 41)} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/chat", nil)
		req.Header.Set(HeaderIdempotencyKey, bad)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("key %q: expected 400, got %d", bad, w.Code)
		}
	}
}

func TestIdempotency_MarksReplayAndBypass(t *testing.T) {
	var gotStudent, gotKey string
	lookup := func(_ context.Context, studentID, key string, _ time.Time) (bool, error) {
		gotStudent, gotKey = studentID, key
		return true, nil
	}
	r := idemRouter(lookup)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/chat", nil)
	req.Header.Set(HeaderIdempotencyKey, "retry-1")
	req.Header.Set("X-Student-ID", "s1")
	r.ServeHTTP(w, req)

	if gotStudent != "s1" || gotKey != "retry-1" {
		t.Fatalf("lookup saw (%q,%q)", gotStudent, gotKey)
	}
	body := w.Body.String()
	if !strings.Contains(body, `"replay":true`) || !strings.Contains(body, `"bypass":true`) {
		t.Fatalf("replay flags not set, body: %s", body)
	}
}

// The bypass lookup keys on student and key only: replays land with the
// subject inside the JSON body, which the middleware never reads.
func TestIdempotency_BypassIgnoresSubjectLocation(t *testing.T) {
	calls := 0
	lookup := func(_ context.Context, studentID, key string, _ time.Time) (bool, error) {
		calls++
		return studentID == "s1" && key == "retry-2", nil
	}
	r := idemRouter(lookup)

	// Body-only client: no subject query parameter anywhere.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"subject":"mathematiques","query":"les limites"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderIdempotencyKey, "retry-2")
	req.Header.Set("X-Student-ID", "s1")
	r.ServeHTTP(w, req)

	if calls != 1 {
		t.Fatalf("lookup calls = %d, want 1", calls)
	}
	body := w.Body.String()
	if !strings.Contains(body, `"replay":true`) || !strings.Contains(body, `"bypass":true`) {
		t.Fatalf("body-only replay not marked, body: %s", body)
	}
}

func TestIdempotency_LookupMissKeepsProcessing(t *testing.T) {
	lookup := func(context.Context, string, string, time.Time) (bool, error) { return false, nil }
	r := idemRouter(lookup)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/chat", nil)
	req.Header.Set(HeaderIdempotencyKey, "fresh-key")
	r.ServeHTTP(w, req)

	body := w.Body.String()
	if !strings.Contains(body, `"key":"fresh-key"`) || !strings.Contains(body, `"replay":false`) {
		t.Fatalf("unexpected body: %s", body)
	}
}
