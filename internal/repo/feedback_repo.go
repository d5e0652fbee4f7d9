// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Feedback
// model.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nexus-reussite/aria-backend/internal/domain"
)

// CreateFeedback inserts a feedback row for (messageID, studentID). The
// unique index makes a second rating by the same student a constraint
// violation, which the service layer maps to a duplicate error.
func CreateFeedback(ctx context.Context, db *gorm.DB, messageID, studentID string, value int) (*domain.Feedback, error) {
	fb := &domain.Feedback{
		ID:        uuid.NewString(),
		MessageID: messageID,
		StudentID: studentID,
		Value:     value,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(fb).Error; err != nil {
		return nil, err
	}
	return fb, nil
}

// HasFeedback reports whether the student already rated the message.
func HasFeedback(ctx context.Context, db *gorm.DB, messageID, studentID string) (bool, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.Feedback{}).
		Where("message_id = ? AND student_id = ?", messageID, studentID).
		Count(&count).Error
	return count > 0, err
}
