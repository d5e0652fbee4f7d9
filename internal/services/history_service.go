// Package services – HistoryService
//
// Paginated read access to a student's conversation threads, used by the
// chat UI to reconstruct history. Read-only; all writes go through the
// orchestrator.
package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/nexus-reussite/aria-backend/internal/domain"
	"github.com/nexus-reussite/aria-backend/internal/repo"
)

// HistoryService lists the messages of a (student, subject) conversation.
type HistoryService struct {
	DB *gorm.DB
}

// ListPage returns one page of the conversation's messages in ascending
// time order, plus the total count. ErrConversationNotFound is returned
// when the pair has no thread yet.
func (s *HistoryService) ListPage(ctx context.Context, studentID, subject string, page, pageSize int) ([]domain.Message, int64, error) {
	tr := otel.Tracer("services/HistoryService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("student.id", studentID),
			attribute.String("subject", subject),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	conv, err := repo.GetConversation(ctx, s.DB, studentID, subject)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, 0, ErrConversationNotFound
		}
		return nil, 0, err
	}

	total, err := repo.CountMessages(ctx, s.DB, conv.ID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Message{}, 0, nil
	}

	items, err := repo.ListMessagesPage(ctx, s.DB, conv.ID, offset, pageSize)
	return items, total, err
}

// Conversation resolves the thread for (studentID, subject), for ETag
// computation in the HTTP layer.
func (s *HistoryService) Conversation(ctx context.Context, studentID, subject string) (*domain.Conversation, error) {
	conv, err := repo.GetConversation(ctx, s.DB, studentID, subject)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	return conv, nil
}
