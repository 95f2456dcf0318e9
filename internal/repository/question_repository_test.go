package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/ilmhub/qa-api/internal/models"
)

func newQuestionRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func questionRows(id string, status models.QuestionStatus) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "title", "body", "category_id", "author_id", "author_name", "language", "status",
		"assigned_to", "scholar_name", "answer", "answered_by", "answerer_name", "answered_at", "created_at", "updated_at",
	}).AddRow(id, "Title", "Body", "cat-1", "u1", "Asker", "en", string(status),
		nil, nil, nil, nil, nil, nil, now, now)
}

func TestQuestionRepositoryCreateAndGet(t *testing.T) {
	db, mock, cleanup := newQuestionRepoMock(t)
	defer cleanup()

	repo := NewQuestionRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO questions")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	question := &models.Question{
		Title:      "Title",
		Body:       "Body",
		CategoryID: "cat-1",
		AuthorID:   "u1",
		AuthorName: "Asker",
		Language:   models.LanguageEnglish,
	}
	require.NoError(t, repo.Create(context.Background(), question))
	require.NotEmpty(t, question.ID)
	require.Equal(t, models.QuestionStatusDraft, question.Status)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, title, body, category_id")).
		WithArgs(question.ID).
		WillReturnRows(questionRows(question.ID, models.QuestionStatusDraft))

	found, err := repo.GetByID(context.Background(), question.ID)
	require.NoError(t, err)
	require.Equal(t, question.ID, found.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQuestionRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newQuestionRepoMock(t)
	defer cleanup()

	repo := NewQuestionRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, title, body, category_id")).
		WithArgs("ANSWERED", "cat-1").
		WillReturnRows(questionRows("q-1", models.QuestionStatusAnswered))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM questions")).
		WithArgs("ANSWERED", "cat-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	list, total, err := repo.List(context.Background(), models.QuestionFilter{
		Status:     []models.QuestionStatus{models.QuestionStatusAnswered},
		CategoryID: "cat-1",
		Page:       1,
		PageSize:   20,
	})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, 1, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQuestionRepositoryUpdateStatusConditional(t *testing.T) {
	db, mock, cleanup := newQuestionRepoMock(t)
	defer cleanup()

	repo := NewQuestionRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE questions SET status")).
		WithArgs("q-1", "PENDING", "APPROVED", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.UpdateStatus(context.Background(), "q-1",
		models.QuestionStatusPending, models.QuestionStatusApproved))

	// A zero-row result means the row already left the expected state.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE questions SET status")).
		WithArgs("q-1", "PENDING", "APPROVED", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.UpdateStatus(context.Background(), "q-1",
		models.QuestionStatusPending, models.QuestionStatusApproved)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQuestionRepositoryAssignKeyedOnCurrentAssignee(t *testing.T) {
	db, mock, cleanup := newQuestionRepoMock(t)
	defer cleanup()

	repo := NewQuestionRepository(db)

	// First assignment requires the slot to still be empty.
	mock.ExpectExec(`(?s)UPDATE questions SET assigned_to .* assigned_to IS NULL`).
		WithArgs("q-1", "s1", "Scholar One", sqlmock.AnyArg(), "APPROVED").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Assign(context.Background(), "q-1", "s1", "Scholar One", nil))

	// Reassignment is keyed on the assignee the caller observed.
	current := "s1"
	mock.ExpectExec(`(?s)UPDATE questions SET assigned_to .* assigned_to = \$6`).
		WithArgs("q-1", "s2", "Scholar Two", sqlmock.AnyArg(), "APPROVED", "s1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Assign(context.Background(), "q-1", "s2", "Scholar Two", &current))

	// A losing racer sees zero rows.
	mock.ExpectExec(`(?s)UPDATE questions SET assigned_to .* assigned_to IS NULL`).
		WithArgs("q-1", "s3", "Scholar Three", sqlmock.AnyArg(), "APPROVED").
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.Assign(context.Background(), "q-1", "s3", "Scholar Three", nil)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQuestionRepositoryMarkAnswered(t *testing.T) {
	db, mock, cleanup := newQuestionRepoMock(t)
	defer cleanup()

	repo := NewQuestionRepository(db)
	answeredAt := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE questions SET status")).
		WithArgs("q-1", "s1", "The answer", "Scholar One", "ANSWERED", answeredAt, "APPROVED").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.MarkAnswered(context.Background(), "q-1", "s1", "Scholar One", "The answer", answeredAt))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE questions SET status")).
		WithArgs("q-1", "s2", "The answer", "Scholar Two", "ANSWERED", answeredAt, "APPROVED").
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.MarkAnswered(context.Background(), "q-1", "s2", "Scholar Two", "The answer", answeredAt)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQuestionRepositoryUnassignedBacklog(t *testing.T) {
	db, mock, cleanup := newQuestionRepoMock(t)
	defer cleanup()

	repo := NewQuestionRepository(db)
	mock.ExpectQuery(`(?s)SELECT .* FROM questions WHERE status = .* AND assigned_to IS NULL`).
		WithArgs("APPROVED").
		WillReturnRows(questionRows("q-1", models.QuestionStatusApproved))

	list, err := repo.ListUnassignedApproved(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}
