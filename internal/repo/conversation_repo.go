// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// Conversation and Message models — the ConversationStore boundary of the
// tutoring pipeline.
//
// Error semantics:
//   - When a record is not found, functions return gorm.ErrRecordNotFound
//     (exported here as ErrNotFound).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nexus-reussite/aria-backend/internal/domain"
)

// FindOrCreateConversation returns the conversation ID for the
// (studentID, subject) pair, creating the row when absent. The unique index
// ux_student_subject makes concurrent creation race-safe: a loser of the
// race observes the unique violation and re-reads the winner's row, so
// duplicate conversations for the same pair can never exist.
func FindOrCreateConversation(ctx context.Context, db *gorm.DB, studentID, subject string) (string, error) {
	var conv domain.Conversation
	err := db.WithContext(ctx).
		Where("student_id = ? AND subject = ?", studentID, subject).
		First(&conv).Error
	if err == nil {
		return conv.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}

	conv = domain.Conversation{
		ID:        uuid.NewString(),
		StudentID: studentID,
		Subject:   subject,
		CreatedAt: time.Now().UTC(),
	}
	cerr := db.WithContext(ctx).Create(&conv).Error
	if cerr == nil {
		return conv.ID, nil
	}
	if isUniqueViolation(cerr) {
		// Lost the creation race; the winner's row must exist now.
		var winner domain.Conversation
		if rerr := db.WithContext(ctx).
			Where("student_id = ? AND subject = ?", studentID, subject).
			First(&winner).Error; rerr == nil {
			return winner.ID, nil
		}
	}
	return "", cerr
}

// AppendExchange persists the user query and the assistant answer as one
// atomic unit: both rows are committed together or neither is. It returns
// the created assistant message.
func AppendExchange(ctx context.Context, db *gorm.DB, conversationID, userContent, assistantContent, documentURL string) (*domain.Message, error) {
	now := time.Now().UTC()
	userMsg := &domain.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           domain.RoleUser,
		Content:        userContent,
		CreatedAt:      now,
	}
	assistantMsg := &domain.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           domain.RoleAssistant,
		Content:        assistantContent,
		DocumentURL:    documentURL,
		// Strictly after the user message so history ordering is stable.
		CreatedAt: now.Add(time.Millisecond),
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(userMsg).Error; err != nil {
			return err
		}
		return tx.Create(assistantMsg).Error
	})
	if err != nil {
		return nil, err
	}
	return assistantMsg, nil
}

// ListRecentMessages returns the most recent messages of a conversation in
// ascending time order, bounded to limit rows (0 means unbounded). The
// window is taken from the tail of the thread: fetch newest-first, then
// reverse.
func ListRecentMessages(ctx context.Context, db *gorm.DB, conversationID string, limit int) ([]domain.Message, error) {
	var out []domain.Message
	q := db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// GetConversation fetches a conversation by (studentID, subject), or
// ErrNotFound if the pair has no thread yet.
func GetConversation(ctx context.Context, db *gorm.DB, studentID, subject string) (*domain.Conversation, error) {
	var conv domain.Conversation
	err := db.WithContext(ctx).
		Where("student_id = ? AND subject = ?", studentID, subject).
		First(&conv).Error
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// CountMessages uses a raw COUNT so a missing table surfaces as an error.
func CountMessages(ctx context.Context, db *gorm.DB, conversationID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Raw("SELECT COUNT(*) FROM messages WHERE conversation_id = ?", conversationID).
		Scan(&total).Error
	return total, err
}

// ListMessagesPage returns a paginated slice ordered (CreatedAt ASC, ID ASC).
func ListMessagesPage(ctx context.Context, db *gorm.DB, conversationID string, offset, limit int) ([]domain.Message, error) {
	var out []domain.Message
	err := db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// GetMessage fetches a message by ID.
func GetMessage(ctx context.Context, db *gorm.DB, id string) (*domain.Message, error) {
	var m domain.Message
	if err := db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure.
// glebarez/sqlite often returns plain-text errors for these.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique")
}
