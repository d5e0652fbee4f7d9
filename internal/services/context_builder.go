// Package services – ContextBuilder
//
// This file implements the ContextBuilder, which assembles the ephemeral
// per-request conversational context sent to the generation service: the
// student's identity (and guardian, if any), a bounded window of recent
// messages, and pedagogical decision hints derived from mastery records.
//
// The context is owned exclusively by the orchestrator for the duration of
// one request and is never persisted as-is.
package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/nexus-reussite/aria-backend/internal/domain"
	"github.com/nexus-reussite/aria-backend/internal/repo"
)

// Intervention modes carried in decision hints.
const (
	InterventionStandard    = "STANDARD"
	InterventionRemediation = "REMEDIATION_GUIDEE"
)

// criticalGapThreshold is the number of weak concepts at which the hints
// switch to guided remediation.
const criticalGapThreshold = 2

// weakScoreCeiling marks a mastery score as weak when at or below it.
const weakScoreCeiling = 0.5

// Identity is a minimal person reference used for addressing.
type Identity struct {
	ID        string `json:"id"`
	FirstName string `json:"prenom"`
	LastName  string `json:"nom"`
}

// FullName returns "First Last" for document addressing.
func (i Identity) FullName() string {
	return i.FirstName + " " + i.LastName
}

// HistoryEntry is one prior utterance included in the LLM context.
type HistoryEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Attachment is a user-supplied document forwarded to the generation
// service as part of the context.
type Attachment struct {
	Name string `json:"titre"`
	URL  string `json:"url"`
	Type string `json:"type"`
	Size int64  `json:"taille"`
}

// DecisionHints are the pedagogical flags derived from mastery records.
// They steer the generation service without any further local branching.
type DecisionHints struct {
	InterventionMode  string   `json:"interventionMode"`
	FocusConcepts     []string `json:"focusConcepts"`
	RequireStepByStep bool     `json:"requireStepByStep"`
	RequireChecks     bool     `json:"requireChecks"`
}

// ConversationContext is the ephemeral context built per request. The JSON
// field names follow the generation service's French wire contract.
type ConversationContext struct {
	Student       Identity       `json:"profil"`
	Guardian      *Identity      `json:"parent,omitempty"`
	Grade         string         `json:"grade,omitempty"`
	Subject       string         `json:"matiere"`
	History       []HistoryEntry `json:"historique"`
	Documents     []Attachment   `json:"documents,omitempty"`
	DecisionHints DecisionHints  `json:"decision_hints"`
}

// ContextBuilder loads everything the generation call needs in one place.
type ContextBuilder struct {
	DB *gorm.DB

	// HistoryWindow bounds how many prior messages are included. Zero means
	// no history.
	HistoryWindow int
}

// Build resolves the student, the bounded message history for the subject's
// conversation, and the mastery-derived decision hints. A missing student is
// fatal and returns ErrStudentNotFound before any external service is
// involved.
func (b *ContextBuilder) Build(ctx context.Context, studentID, subject string) (*ConversationContext, error) {
	tr := otel.Tracer("services/ContextBuilder")
	ctx, span := tr.Start(ctx, "Build",
		trace.WithAttributes(
			attribute.String("student.id", studentID),
			attribute.String("subject", subject),
		),
	)
	defer span.End()

	student, err := repo.GetStudent(ctx, b.DB, studentID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrStudentNotFound
		}
		return nil, fmt.Errorf("load student: %w", err)
	}

	cc := &ConversationContext{
		Student: Identity{
			ID:        student.ID,
			FirstName: student.FirstName,
			LastName:  student.LastName,
		},
		Grade:   student.Grade,
		Subject: subject,
	}
	if student.Guardian != nil {
		cc.Guardian = &Identity{
			ID:        student.Guardian.ID,
			FirstName: student.Guardian.FirstName,
			LastName:  student.Guardian.LastName,
		}
	}

	// History is best-effort: a missing conversation simply yields an empty
	// window, it is not an error.
	if b.HistoryWindow > 0 {
		if conv, cerr := repo.GetConversation(ctx, b.DB, studentID, subject); cerr == nil {
			msgs, merr := repo.ListRecentMessages(ctx, b.DB, conv.ID, b.HistoryWindow)
			if merr != nil {
				return nil, fmt.Errorf("load history: %w", merr)
			}
			cc.History = make([]HistoryEntry, 0, len(msgs))
			for _, m := range msgs {
				cc.History = append(cc.History, HistoryEntry{Role: m.Role, Content: m.Content})
			}
		} else if !errors.Is(cerr, repo.ErrNotFound) {
			return nil, fmt.Errorf("load conversation: %w", cerr)
		}
	}
	if cc.History == nil {
		cc.History = []HistoryEntry{}
	}

	mastery, err := repo.ListMastery(ctx, b.DB, studentID, subject)
	if err != nil {
		return nil, fmt.Errorf("load mastery: %w", err)
	}
	cc.DecisionHints = deriveHints(mastery)

	return cc, nil
}

// deriveHints inspects mastery rows and produces the pedagogical flags.
// Two or more weak concepts switch the intervention mode to guided
// remediation with mandatory step-by-step reasoning.
func deriveHints(mastery []domain.Mastery) DecisionHints {
	var weak []string
	for _, m := range mastery {
		if m.Level == domain.MasteryLow || (m.Score != nil && *m.Score <= weakScoreCeiling) {
			weak = append(weak, m.Concept)
		}
	}

	hints := DecisionHints{
		InterventionMode: InterventionStandard,
		FocusConcepts:    []string{},
		RequireChecks:    true,
	}
	if len(weak) >= criticalGapThreshold {
		hints.InterventionMode = InterventionRemediation
		hints.RequireStepByStep = true
	}
	if n := len(weak); n > 0 {
		if n > 3 {
			n = 3
		}
		hints.FocusConcepts = weak[:n]
	}
	return hints
}
