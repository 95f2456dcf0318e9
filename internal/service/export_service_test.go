package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilmhub/qa-api/internal/models"
	appErrors "github.com/ilmhub/qa-api/pkg/errors"
)

func answeredQuestion(id, scholar string) models.Question {
	answeredAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	answer := "The ruling is permissible."
	return models.Question{
		ID:           id,
		Title:        "Question " + id,
		Body:         "Body",
		CategoryID:   "cat-1",
		AuthorID:     "u1",
		AuthorName:   "Asker",
		Language:     models.LanguageEnglish,
		Status:       models.QuestionStatusAnswered,
		AssignedTo:   &scholar,
		Answer:       &answer,
		AnsweredBy:   &scholar,
		AnswererName: &scholar,
		AnsweredAt:   &answeredAt,
	}
}

func TestExportAnsweredArchiveCSV(t *testing.T) {
	store := newMockQuestionStore()
	store.put(answeredQuestion("q-1", "s1"))
	store.put(answeredQuestion("q-2", "s2"))
	store.put(models.Question{ID: "q-3", Status: models.QuestionStatusPending, AuthorID: "u1"})

	svc := NewExportService(store, true, 1000, nil)
	result, err := svc.AnsweredArchive(context.Background(), adminClaims("a1"), "", ExportFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", result.ContentType)
	assert.Contains(t, result.FileName, "answered-questions-")

	records, err := csv.NewReader(bytes.NewReader(result.Data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"ID", "Title", "Category", "Author", "Scholar", "Language", "Answered At"}, records[0])
}

func TestExportAnsweredArchivePDF(t *testing.T) {
	store := newMockQuestionStore()
	store.put(answeredQuestion("q-1", "s1"))

	svc := NewExportService(store, true, 1000, nil)
	result, err := svc.AnsweredArchive(context.Background(), adminClaims("a1"), "", ExportFormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", result.ContentType)
	assert.True(t, bytes.HasPrefix(result.Data, []byte("%PDF")))
}

func TestExportAnsweredArchiveGuards(t *testing.T) {
	store := newMockQuestionStore()
	svc := NewExportService(store, true, 1000, nil)
	ctx := context.Background()

	_, err := svc.AnsweredArchive(ctx, scholarClaims("s1"), "", ExportFormatCSV)
	assertErrCode(t, err, appErrors.ErrForbidden.Code)

	_, err = svc.AnsweredArchive(ctx, adminClaims("a1"), "", ExportFormat("xlsx"))
	assertErrCode(t, err, appErrors.ErrValidation.Code)

	disabled := NewExportService(store, false, 1000, nil)
	_, err = disabled.AnsweredArchive(ctx, adminClaims("a1"), "", ExportFormatCSV)
	assertErrCode(t, err, appErrors.ErrForbidden.Code)
}
