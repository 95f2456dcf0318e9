package dto

import "github.com/ilmhub/qa-api/internal/models"

// CreateQuestionRequest payload for asking a question. Draft toggles the
// "save without submitting" variant; submitted questions require the full
// field set.
type CreateQuestionRequest struct {
	Title      string                  `json:"title"`
	Body       string                  `json:"body"`
	CategoryID string                  `json:"category_id"`
	Language   models.QuestionLanguage `json:"language"`
	Draft      bool                    `json:"draft"`
}

// UpdateQuestionRequest payload for the author editing a draft or pending
// question. Fields are applied as-is; status never changes through updates.
type UpdateQuestionRequest struct {
	Title      string                  `json:"title" validate:"required"`
	Body       string                  `json:"body" validate:"required"`
	CategoryID string                  `json:"category_id" validate:"required"`
	Language   models.QuestionLanguage `json:"language"`
}

// AnswerQuestionRequest carries the assigned scholar's answer text.
type AnswerQuestionRequest struct {
	Answer string `json:"answer" validate:"required"`
}

// AssignQuestionRequest binds an approved question to a scholar.
type AssignQuestionRequest struct {
	ScholarID string `json:"scholar_id" validate:"required"`
}

// QuestionQuery mirrors supported listing filters.
type QuestionQuery struct {
	Status     []models.QuestionStatus
	CategoryID string
	Language   models.QuestionLanguage
	Search     string
	Page       int
	PageSize   int
}
