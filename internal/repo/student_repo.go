// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides read-side repository functions for the
// Student aggregate and its satellite records (guardian, mastery).
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations. They
// follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/nexus-reussite/aria-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// GetStudent fetches a student by ID together with the guardian association,
// or ErrNotFound if missing.
func GetStudent(ctx context.Context, db *gorm.DB, id string) (*domain.Student, error) {
	var s domain.Student
	err := db.WithContext(ctx).
		Preload("Guardian").
		Where("id = ?", id).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListMastery returns the student's mastery rows for a subject, newest first.
// An empty slice means the assessment pipeline has not produced data yet.
func ListMastery(ctx context.Context, db *gorm.DB, studentID, subject string) ([]domain.Mastery, error) {
	var out []domain.Mastery
	err := db.WithContext(ctx).
		Where("student_id = ? AND subject = ?", studentID, subject).
		Order("updated_at desc").
		Find(&out).Error
	return out, err
}
