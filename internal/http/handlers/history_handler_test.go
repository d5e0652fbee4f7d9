package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nexus-reussite/aria-backend/internal/domain"
	"github.com/nexus-reussite/aria-backend/internal/repo"
	"github.com/nexus-reussite/aria-backend/internal/services"
)

func historyRouter(h *Handlers) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/aria/conversations/:subject/messages", h.ListMessages)
	return r
}

func getMessages(t *testing.T, r *gin.Engine, path string, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestListMessages_NotFound(t *testing.T) {
	h := New(&stubChatSvc{}, &stubHistSvc{err: services.ErrConversationNotFound}, &stubFBSvc{}, nil, 0)
	w := getMessages(t, historyRouter(h), "/aria/conversations/NSI/messages", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestListMessages_PaginationEnvelope(t *testing.T) {
	items := []domain.Message{
		{ID: "m1", Role: domain.RoleUser, Content: "q"},
		{ID: "m2", Role: domain.RoleAssistant, Content: "a"},
	}
	h := New(&stubChatSvc{}, &stubHistSvc{items: items, total: 42}, &stubFBSvc{}, nil, 0)

	w := getMessages(t, historyRouter(h), "/aria/conversations/mathematiques/messages?page=2&page_size=2", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp ListMessagesResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(resp.Messages))
	}
	p := resp.Pagination
	if p.Page != 2 || p.PageSize != 2 || p.Total != 42 || p.TotalPages != 21 || !p.HasNext {
		t.Fatalf("unexpected pagination %+v", p)
	}
}

func TestListMessages_ETagRoundTrip(t *testing.T) {
	db := newHandlerDB(t)
	seedHandlerStudent(t, db, "s1")
	ctx := context.Background()

	convID, err := repo.FindOrCreateConversation(ctx, db, "s1", domain.SubjectMath)
	if err != nil {
		t.Fatalf("conversation: %v", err)
	}
	if _, err := repo.AppendExchange(ctx, db, convID, "q", "a", ""); err != nil {
		t.Fatalf("append: %v", err)
	}

	h := New(&stubChatSvc{}, &services.HistoryService{DB: db}, &stubFBSvc{}, db, time.Hour)
	r := historyRouter(h)
	hdr := map[string]string{"X-Student-ID": "s1"}

	w1 := getMessages(t, r, "/aria/conversations/MATHEMATIQUES/messages", hdr)
	if w1.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w1.Code)
	}
	etag := w1.Header().Get("ETag")
	if etag == "" {
		t.Fatal("missing ETag")
	}

	// Unchanged thread: conditional request gets a 304.
	hdr["If-None-Match"] = etag
	w2 := getMessages(t, r, "/aria/conversations/MATHEMATIQUES/messages", hdr)
	if w2.Code != http.StatusNotModified {
		t.Fatalf("expected 304, got %d", w2.Code)
	}

	// A new exchange invalidates the tag.
	if _, err := repo.AppendExchange(ctx, db, convID, "q2", "a2", ""); err != nil {
		t.Fatalf("append: %v", err)
	}
	w3 := getMessages(t, r, "/aria/conversations/MATHEMATIQUES/messages", hdr)
	if w3.Code != http.StatusOK {
		t.Fatalf("expected 200 after new message, got %d", w3.Code)
	}
	if w3.Header().Get("ETag") == etag {
		t.Fatal("ETag did not change after a new message")
	}
}

func TestListMessages_PageSizeClamped(t *testing.T) {
	hist := &stubHistSvc{items: []domain.Message{}, total: 0}
	h := New(&stubChatSvc{}, hist, &stubFBSvc{}, nil, 0)

	w := getMessages(t, historyRouter(h), "/aria/conversations/NSI/messages?page=-1&page_size=9999", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp ListMessagesResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Pagination.Page != 1 || resp.Pagination.PageSize != 100 {
		t.Fatalf("bounds not applied: %+v", resp.Pagination)
	}
}
