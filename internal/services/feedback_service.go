// Package services – FeedbackService
//
// This file implements the FeedbackService, which governs how students rate
// assistant answers (-1 or +1). It enforces business rules (message
// existence, conversation ownership, assistant-only restriction,
// uniqueness) and persists feedback atomically. Service-level errors are
// returned for predictable cases so handlers can map them to HTTP results
// consistently.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nexus-reussite/aria-backend/internal/domain"
	"github.com/nexus-reussite/aria-backend/internal/repo"
)

// FeedbackService implements the use-cases around answer feedback.
type FeedbackService struct {
	// DB may be a plain *gorm.DB or a transaction-bound handle.
	DB *gorm.DB
}

// Leave records a feedback value for messageID on behalf of studentID.
//
// Semantics:
//   - value must be exactly -1 or 1; otherwise ErrInvalidFeedback.
//   - messageID must exist; otherwise ErrMessageNotFound.
//   - The message's conversation must belong to studentID, and only
//     assistant messages can be rated; otherwise ErrForbiddenFeedback.
//   - At most one feedback per (message, student); otherwise
//     ErrDuplicateFeedback.
//
// The checks and the insert run inside one transaction.
func (s *FeedbackService) Leave(ctx context.Context, studentID, messageID string, value int) error {
	if value != -1 && value != 1 {
		return ErrInvalidFeedback
	}

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		msg, err := repo.GetMessage(ctx, tx, messageID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrMessageNotFound
			}
			return err
		}

		// The rated message must sit in one of the student's own threads.
		var conv domain.Conversation
		if err := tx.WithContext(ctx).
			Where("id = ? AND student_id = ?", msg.ConversationID, studentID).
			First(&conv).Error; err != nil {
			return ErrForbiddenFeedback
		}

		if msg.Role != domain.RoleAssistant {
			return ErrForbiddenFeedback
		}

		fb := &domain.Feedback{
			ID:        uuid.NewString(),
			MessageID: messageID,
			StudentID: studentID,
			Value:     value,
			CreatedAt: time.Now().UTC(),
		}
		if err := tx.Create(fb).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) || isDuplicate(err) {
				return ErrDuplicateFeedback
			}
			return err
		}
		return nil
	})
}

// isDuplicate detects unique-constraint violations across drivers that may
// not map to gorm.ErrDuplicatedKey.
func isDuplicate(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key")
}
