package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/nexus-reussite/aria-backend/internal/domain"
)

func TestGetStudent_WithGuardian(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	seedStudent(t, db, "s1")
	g := &domain.Guardian{ID: "g1", StudentID: "s1", FirstName: "Paul", LastName: "Martin"}
	if err := db.Create(g).Error; err != nil {
		t.Fatalf("seed guardian: %v", err)
	}

	s, err := GetStudent(ctx, db, "s1")
	if err != nil {
		t.Fatalf("GetStudent: %v", err)
	}
	if s.FirstName != "Alice" || s.Guardian == nil || s.Guardian.FirstName != "Paul" {
		t.Fatalf("unexpected student: %+v", s)
	}
}

func TestGetStudent_NotFound(t *testing.T) {
	db := newTestDB(t)
	_, err := GetStudent(context.Background(), db, "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListMastery_FiltersBySubject(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedStudent(t, db, "s1")

	rows := []domain.Mastery{
		{ID: "m1", StudentID: "s1", Subject: domain.SubjectMath, Concept: "Fractions", Level: domain.MasteryLow},
		{ID: "m2", StudentID: "s1", Subject: domain.SubjectMath, Concept: "Limites", Level: domain.MasteryHigh},
		{ID: "m3", StudentID: "s1", Subject: domain.SubjectNSI, Concept: "Récursivité", Level: domain.MasteryLow},
	}
	for i := range rows {
		if err := db.Create(&rows[i]).Error; err != nil {
			t.Fatalf("seed mastery: %v", err)
		}
	}

	got, err := ListMastery(ctx, db, "s1", domain.SubjectMath)
	if err != nil {
		t.Fatalf("ListMastery: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 math rows, got %d", len(got))
	}
}
