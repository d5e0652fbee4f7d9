// Chat HTTP handler.
//
// This file exposes the main tutoring endpoint:
//   - POST /aria/chat   (run a student query through the response pipeline)
//
// The handler is transport-thin: it validates and normalizes input,
// delegates to the orchestration service, and translates outcomes into
// HTTP responses. A persistence failure after the answer was computed is a
// partial success: the answer is still returned, flagged with "saved":
// false.
//
// Idempotency:
// If the client supplies an Idempotency-Key header and a stored result
// exists for (student, subject, key), the recorded assistant message is
// returned with `Idempotency-Replayed: true` and no generation call is
// made.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/nexus-reussite/aria-backend/internal/domain"
	"github.com/nexus-reussite/aria-backend/internal/http/middleware"
	"github.com/nexus-reussite/aria-backend/internal/repo"
	"github.com/nexus-reussite/aria-backend/internal/services"
)

//
// Service contracts (context-aware)
//

// ChatService runs one student query through the tutoring pipeline.
// Implementations must be safe for concurrent use and honor the context.
type ChatService interface {
	HandleQuery(ctx context.Context, studentID, subject, query string, attachments []services.Attachment) (*services.QueryResult, error)
}

// HistoryService provides paginated read access to conversation threads.
type HistoryService interface {
	ListPage(ctx context.Context, studentID, subject string, page, pageSize int) ([]domain.Message, int64, error)
	Conversation(ctx context.Context, studentID, subject string) (*domain.Conversation, error)
}

// FeedbackService records a student's rating on an assistant message.
type FeedbackService interface {
	Leave(ctx context.Context, studentID, messageID string, value int) error
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints for chat, history, and feedback.
type Handlers struct {
	chatSvc ChatService
	histSvc HistoryService
	fbSvc   FeedbackService

	// db backs idempotency records and ETag statistics. May be nil in
	// tests that exercise neither.
	db      *gorm.DB
	idemTTL time.Duration
}

// New constructs a Handlers instance bound to the given services.
func New(chatSvc ChatService, histSvc HistoryService, fbSvc FeedbackService, db *gorm.DB, idemTTL time.Duration) *Handlers {
	if idemTTL <= 0 {
		idemTTL = 24 * time.Hour
	}
	return &Handlers{chatSvc: chatSvc, histSvc: histSvc, fbSvc: fbSvc, db: db, idemTTL: idemTTL}
}

// studentID extracts the authenticated student from the Gin context (set by
// upstream auth middleware), falling back to the X-Student-ID header (tests
// and development use it) and finally to "demo-student".
func studentID(c *gin.Context) string {
	if v, ok := c.Get(middleware.StudentIDKey); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-Student-ID")); h != "" {
			return h
		}
	}
	return "demo-student"
}

//
// DTOs
//

// ChatRequest is the JSON payload of a tutoring query.
type ChatRequest struct {
	// Subject is the curriculum subject tag, e.g. "MATHEMATIQUES".
	Subject string `json:"subject" binding:"required" example:"MATHEMATIQUES"`
	// Query is the student's question. It must be non-empty.
	Query string `json:"query" binding:"required,min=1" example:"Explique-moi les limites de fonctions"`
	// Attachments optionally carries student-supplied documents forwarded
	// to the generation service.
	Attachments []services.Attachment `json:"attachments,omitempty"`
}

// ChatResponse is the envelope of one tutoring exchange.
type ChatResponse struct {
	// Response is the assistant's answer.
	Response string `json:"response"`
	// DocumentURL points at the compiled revision sheet, when one was
	// produced.
	DocumentURL string `json:"document_url,omitempty"`
	// ConversationID identifies the thread the exchange belongs to.
	ConversationID string `json:"conversation_id,omitempty"`
	// MessageID identifies the stored assistant message (feedback target).
	MessageID string `json:"message_id,omitempty"`
	// Saved is false when the answer was computed but could not be
	// durably stored.
	Saved bool `json:"saved"`
}

//
// Helpers
//

// nlCollapseRE collapses runs of 3+ newlines to two, preserving paragraphs.
var nlCollapseRE = regexp.MustCompile(`\n{3,}`)

// sanitizeQuery normalizes user text: CRLF/CR to LF, runs of blank lines
// collapsed, surrounding whitespace trimmed.
func sanitizeQuery(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = nlCollapseRE.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// normalizeSubject maps a client subject to its stored uppercase tag.
func normalizeSubject(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

//
// Handlers
//

// PostChat godoc
// @ID          postChat
// @Summary     Ask the tutor a question
// @Description Runs the student's query through the tutoring pipeline: answer generation,
// @Description optional revision-sheet compilation, and conversation persistence.
// @Description Supports safe retries via the Idempotency-Key header (same key → same result).
// @Tags        Chat
// @Accept      json
// @Produce     json
//
// @Param       X-Student-ID     header  string  false "Student ID (demo header)"  example(eleve-123)
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries (UUID recommended)"
// @Param       body             body    handlers.ChatRequest  true  "Tutoring query payload"
//
// @Success     200  {object}  handlers.ChatResponse   "Assistant answer"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Student not found"
// @Failure     502  {object}  handlers.ErrorResponse  "Generation service failed"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /aria/chat [post]
func (h *Handlers) PostChat(c *gin.Context) {
	ctx := c.Request.Context()

	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "subject and query required")
		return
	}

	subject := normalizeSubject(req.Subject)
	query := sanitizeQuery(req.Query)
	if subject == "" || query == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "subject and query required")
		return
	}

	sid := studentID(c)

	// Replay path: a stored result short-circuits the expensive pipeline.
	idemKey, _ := middleware.GetIdempotencyKey(c)
	if idemKey == "" {
		idemKey = strings.TrimSpace(c.GetHeader(middleware.HeaderIdempotencyKey))
	}
	if idemKey != "" && h.db != nil {
		if rec, err := repo.GetIdempotency(ctx, h.db, sid, subject, idemKey, time.Now().UTC()); err == nil && rec != nil {
			if prev, err2 := repo.GetMessage(ctx, h.db, rec.MessageID); err2 == nil {
				c.Header("Idempotency-Replayed", "true")
				ok(c, http.StatusOK, ChatResponse{
					Response:       prev.Content,
					DocumentURL:    rec.DocumentURL,
					ConversationID: prev.ConversationID,
					MessageID:      prev.ID,
					Saved:          true,
				})
				return
			}
		}
	}

	res, err := h.chatSvc.HandleQuery(ctx, sid, subject, query, req.Attachments)
	if err != nil && !services.IsPersistenceWarning(err) {
		middleware.ObserveExchange("failed")
		switch {
		case errors.Is(err, services.ErrStudentNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "student not found")
		case errors.Is(err, services.ErrEmptyQuery):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "query required")
		case errors.Is(err, services.ErrQueryTooLong):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "query too long")
		case errors.Is(err, services.ErrGenerationFailed):
			fail(c, http.StatusBadGateway, ErrCodeAnswerFailed, "generation service unavailable")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}

	saved := err == nil
	if saved {
		middleware.ObserveExchange("answered")
	} else {
		// Partial success: the answer exists, storage did not happen.
		middleware.LoggerFrom(c).Warn().Err(err).Msg("exchange not persisted")
		middleware.ObserveExchange("answered_unsaved")
	}
	if res.DocumentWanted {
		if res.DocumentURL != "" {
			middleware.ObserveDocument("compiled")
		} else {
			middleware.ObserveDocument("degraded")
		}
	}

	// Store path: record the key → message mapping, best effort.
	if idemKey != "" && h.db != nil && saved {
		_, _ = repo.CreateIdempotency(ctx, h.db, sid, subject, idemKey,
			res.AssistantMessageID, res.DocumentURL, http.StatusOK, h.idemTTL)
	}

	ok(c, http.StatusOK, ChatResponse{
		Response:       res.Response,
		DocumentURL:    res.DocumentURL,
		ConversationID: res.ConversationID,
		MessageID:      res.AssistantMessageID,
		Saved:          saved,
	})
}
