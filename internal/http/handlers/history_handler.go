// History HTTP handler.
//
// This file exposes the conversation read endpoint:
//   - GET /aria/conversations/{subject}/messages  (paginated, ETag support)
//
// One conversation exists per (student, subject); the thread is addressed
// by subject and the student comes from the request identity. A weak ETag
// derived from the message count and the newest update time lets polling
// clients get cheap 304s.
package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nexus-reussite/aria-backend/internal/domain"
	"github.com/nexus-reussite/aria-backend/internal/repo"
	"github.com/nexus-reussite/aria-backend/internal/services"
	"github.com/nexus-reussite/aria-backend/internal/utils"
)

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListMessagesResponse wraps a page of conversation messages.
type ListMessagesResponse struct {
	Messages   []domain.Message `json:"messages"`
	Pagination Pagination       `json:"pagination"`
}

// clampPagination parses and bounds page/page_size query params.
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

// ListMessages godoc
// @ID          listMessages
// @Summary     List conversation messages for a subject
// @Description Returns a page of the student's thread for the given subject,
// @Description oldest first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        History
// @Produce     json
//
// @Param       X-Student-ID   header  string  false "Student ID (demo header)"     example(eleve-123)
// @Param       subject        path    string  true  "Subject tag"                  example(MATHEMATIQUES)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
// @Param       page           query   int     false "Page number"                  minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"               minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListMessagesResponse
// @Header      200  {string} ETag "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     404  {object} handlers.ErrorResponse "No conversation for this subject"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /aria/conversations/{subject}/messages [get]
func (h *Handlers) ListMessages(c *gin.Context) {
	ctx := c.Request.Context()
	sid := studentID(c)
	subject := normalizeSubject(c.Param("subject"))

	// ETag pre-check (best effort).
	if h.db != nil {
		if conv, err := h.histSvc.Conversation(ctx, sid, subject); err == nil {
			if count, maxTS, serr := repo.MessagesStats(ctx, h.db, conv.ID); serr == nil {
				var ts int64
				if maxTS != nil {
					ts = maxTS.Unix()
				}
				etag := fmt.Sprintf(`W/"messages:%s:%d:%d"`, conv.ID, count, ts)
				c.Header("ETag", etag)
				if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
					c.Status(http.StatusNotModified)
					return
				}
			}
		}
	}

	page, pageSize := clampPagination(c)

	items, total, err := h.histSvc.ListPage(ctx, sid, subject, page, pageSize)
	if err != nil {
		switch err {
		case services.ErrConversationNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "no conversation for this subject")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		}
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListMessagesResponse{
		Messages: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}
