// Package domain defines the persistence models for students, conversations,
// messages, mastery records, and feedback. These types are mapped with GORM
// and form the core data layer of the tutoring backend.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Known subject tags. Subjects are stored as free-form uppercase tags so new
// curriculum entries do not require a migration.
const (
	SubjectMath     = "MATHEMATIQUES"
	SubjectNSI      = "NSI"
	SubjectPhysics  = "PHYSIQUE"
	SubjectFrench   = "FRANCAIS"
	SubjectEnglish  = "ANGLAIS"
	SubjectPhilo    = "PHILOSOPHIE"
)

// Mastery levels used by pedagogical decision hints.
const (
	MasteryLow    = "LOW"
	MasteryMedium = "MEDIUM"
	MasteryHigh   = "HIGH"
)

// Student is the learner profile the orchestrator resolves before any
// downstream call. The guardian association is optional and only used for
// document addressing.
type Student struct {
	ID        string         `json:"id"         gorm:"type:char(36);primaryKey"`
	FirstName string         `json:"first_name" gorm:"type:varchar(64);not null"`
	LastName  string         `json:"last_name"  gorm:"type:varchar(64);not null"`
	Grade     string         `json:"grade"      gorm:"type:varchar(32)"` // e.g. "Terminale"
	Campus    string         `json:"campus"     gorm:"type:varchar(64)"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"          gorm:"index"`

	// Guardian is the optional parent/tutor contact.
	Guardian *Guardian `json:"guardian,omitempty" gorm:"foreignKey:StudentID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Student.
func (Student) TableName() string { return "students" }

// Guardian is the parent or legal tutor attached to a student. At most one
// guardian row exists per student.
type Guardian struct {
	ID        string         `json:"id"         gorm:"type:char(36);primaryKey"`
	StudentID string         `json:"student_id" gorm:"type:char(36);not null;uniqueIndex"`
	FirstName string         `json:"first_name" gorm:"type:varchar(64);not null"`
	LastName  string         `json:"last_name"  gorm:"type:varchar(64);not null"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"          gorm:"index"`
}

// TableName returns the database table name for Guardian.
func (Guardian) TableName() string { return "guardians" }

// Mastery records a student's proficiency on one concept within a subject.
// Rows are maintained by the assessment pipeline; the orchestrator only reads
// them to derive pedagogical decision hints.
type Mastery struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	StudentID string    `json:"student_id" gorm:"type:char(36);not null;index:idx_student_mastery"`
	Subject   string    `json:"subject"    gorm:"type:varchar(32);not null;index:idx_student_mastery"`
	Concept   string    `json:"concept"    gorm:"type:varchar(128);not null"`
	Level     string    `json:"level"      gorm:"type:varchar(16);not null;check:level IN ('LOW','MEDIUM','HIGH')"`
	Score     *float64  `json:"score,omitempty"` // optional normalized score in [0,1]
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Mastery.
func (Mastery) TableName() string { return "mastery" }

// Conversation is the persistent aggregate for one (student, subject) thread.
// It is created lazily on the first exchange and only ever mutated by
// appending messages. The unique index makes concurrent find-or-create
// race-safe: at most one row can exist per pair.
type Conversation struct {
	ID        string         `json:"id"         gorm:"type:char(36);primaryKey"`
	StudentID string         `json:"student_id" gorm:"type:char(36);not null;uniqueIndex:ux_student_subject"`
	Subject   string         `json:"subject"    gorm:"type:varchar(32);not null;uniqueIndex:ux_student_subject"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"          gorm:"index"`
}

// TableName returns the database table name for Conversation.
func (Conversation) TableName() string { return "conversations" }

// Message is a single utterance within a conversation, authored either by
// the "user" or the "assistant". Messages are append-only and strictly
// time-ordered; exchanges are written in user/assistant pairs within one
// transaction.
type Message struct {
	ID             string         `json:"id"              gorm:"type:char(36);primaryKey"`
	ConversationID string         `json:"conversation_id" gorm:"type:char(36);not null;index:idx_conv_msgs,priority:1"`
	Role           string         `json:"role"            gorm:"type:varchar(16);not null;check:role IN ('user','assistant')"`
	Content        string         `json:"content"         gorm:"type:text;not null"`
	DocumentURL    string         `json:"document_url,omitempty" gorm:"type:varchar(512)"` // set on assistant messages that produced a PDF
	CreatedAt      time.Time      `json:"created_at"      gorm:"index:idx_conv_msgs,priority:2"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `json:"-"               gorm:"index"`

	// Conversation is the parent thread. Messages are cascade-deleted
	// if their conversation is removed.
	Conversation Conversation `json:"-" gorm:"foreignKey:ConversationID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// Feedback represents a student-provided rating on a specific assistant
// message. A student can only leave one feedback entry per message.
type Feedback struct {
	ID        string         `json:"id"         gorm:"type:char(36);primaryKey"`
	MessageID string         `json:"message_id" gorm:"type:char(36);not null;index;uniqueIndex:ux_feedback_message_student"`
	StudentID string         `json:"student_id" gorm:"type:char(36);not null;index;uniqueIndex:ux_feedback_message_student"`
	Value     int            `json:"value"      gorm:"not null;check:value IN (-1,1)"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"          gorm:"index"`

	// Message is the rated assistant message. Feedback is cascade-deleted
	// if the underlying message is removed.
	Message Message `json:"-" gorm:"foreignKey:MessageID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Feedback.
func (Feedback) TableName() string { return "feedback" }
