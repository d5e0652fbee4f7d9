// Package domain defines the core persistence models for the application.
// These types are used by GORM for database schema mapping and are shared
// across the repository and service layers.
package domain

import "time"

// Idempotency represents a recorded result of a previously processed tutoring
// query, keyed by (student_id, subject, key). A generation call is expensive,
// so retries carrying the same Idempotency-Key replay the stored assistant
// message instead of re-running the pipeline.
type Idempotency struct {
	ID          string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	StudentID   string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_student_subject_key,priority:1"`
	Subject     string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_student_subject_key,priority:2"`
	Key         string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_student_subject_key,priority:3"`
	MessageID   string    `gorm:"type:TEXT NOT NULL"` // assistant message produced by the original run
	DocumentURL string    `gorm:"type:TEXT"`
	Status      int       `gorm:"type:INTEGER NOT NULL"`
	CreatedAt   time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt   time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
