package models

import "time"

// QuestionStatus captures workflow states for a question's lifecycle.
type QuestionStatus string

const (
	QuestionStatusDraft    QuestionStatus = "DRAFT"
	QuestionStatusPending  QuestionStatus = "PENDING"
	QuestionStatusApproved QuestionStatus = "APPROVED"
	QuestionStatusRejected QuestionStatus = "REJECTED"
	QuestionStatusAnswered QuestionStatus = "ANSWERED"
)

// QuestionLanguage tags the language a question was asked in.
type QuestionLanguage string

const (
	LanguageEnglish QuestionLanguage = "en"
	LanguageUrdu    QuestionLanguage = "ur"
)

// Question represents a persisted question row.
//
// assigned_to is only ever set while the question is APPROVED or ANSWERED;
// answer, answered_by and answered_at are set exactly when it is ANSWERED.
type Question struct {
	ID           string           `db:"id" json:"id"`
	Title        string           `db:"title" json:"title"`
	Body         string           `db:"body" json:"body"`
	CategoryID   string           `db:"category_id" json:"category_id"`
	AuthorID     string           `db:"author_id" json:"author_id"`
	AuthorName   string           `db:"author_name" json:"author_name"`
	Language     QuestionLanguage `db:"language" json:"language"`
	Status       QuestionStatus   `db:"status" json:"status"`
	AssignedTo   *string          `db:"assigned_to" json:"assigned_to,omitempty"`
	ScholarName  *string          `db:"scholar_name" json:"scholar_name,omitempty"`
	Answer       *string          `db:"answer" json:"answer,omitempty"`
	AnsweredBy   *string          `db:"answered_by" json:"answered_by,omitempty"`
	AnswererName *string          `db:"answerer_name" json:"answerer_name,omitempty"`
	AnsweredAt   *time.Time       `db:"answered_at" json:"answered_at,omitempty"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time        `db:"updated_at" json:"updated_at"`
}

// QuestionFilter constrains listing queries.
type QuestionFilter struct {
	Status     []QuestionStatus
	CategoryID string
	AuthorID   string
	AssignedTo string
	AnsweredBy string
	Unassigned bool
	Language   QuestionLanguage
	Search     string
	Page       int
	PageSize   int
}

// ValidQuestionStatus reports whether the raw value names a known status.
func ValidQuestionStatus(raw QuestionStatus) bool {
	switch raw {
	case QuestionStatusDraft, QuestionStatusPending, QuestionStatusApproved,
		QuestionStatusRejected, QuestionStatusAnswered:
		return true
	default:
		return false
	}
}

// ValidLanguage reports whether the raw value names a supported language tag.
func ValidLanguage(raw QuestionLanguage) bool {
	return raw == LanguageEnglish || raw == LanguageUrdu
}

// VisibleTo applies the read-visibility policy: the author always sees their
// question, admins and scholars see everything, everyone else only sees
// answered questions.
func (q *Question) VisibleTo(actorID string, role UserRole) bool {
	if q == nil {
		return false
	}
	if q.Status == QuestionStatusAnswered {
		return true
	}
	if actorID != "" && actorID == q.AuthorID {
		return true
	}
	return role == RoleAdmin || role == RoleScholar
}
