package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ilmhub/qa-api/internal/models"
)

const questionColumns = `id, title, body, category_id, author_id, author_name, language, status,
       assigned_to, scholar_name, answer, answered_by, answerer_name, answered_at, created_at, updated_at`

// QuestionRepository persists question lifecycle data.
type QuestionRepository struct {
	db *sqlx.DB
}

// NewQuestionRepository constructs the repository.
func NewQuestionRepository(db *sqlx.DB) *QuestionRepository {
	return &QuestionRepository{db: db}
}

// Create inserts a new question row.
func (r *QuestionRepository) Create(ctx context.Context, question *models.Question) error {
	if question.ID == "" {
		question.ID = uuid.NewString()
	}
	if question.Status == "" {
		question.Status = models.QuestionStatusDraft
	}
	now := time.Now().UTC()
	if question.CreatedAt.IsZero() {
		question.CreatedAt = now
	}
	question.UpdatedAt = now
	const query = `INSERT INTO questions
	(id, title, body, category_id, author_id, author_name, language, status, assigned_to, scholar_name, answer, answered_by, answerer_name, answered_at, created_at, updated_at)
	VALUES (:id, :title, :body, :category_id, :author_id, :author_name, :language, :status, :assigned_to, :scholar_name, :answer, :answered_by, :answerer_name, :answered_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, question); err != nil {
		return fmt.Errorf("create question: %w", err)
	}
	return nil
}

// GetByID fetches a question by identifier.
func (r *QuestionRepository) GetByID(ctx context.Context, id string) (*models.Question, error) {
	query := fmt.Sprintf("SELECT %s FROM questions WHERE id = $1", questionColumns)
	var question models.Question
	if err := r.db.GetContext(ctx, &question, query, id); err != nil {
		return nil, err
	}
	return &question, nil
}

// List returns questions matching the filter (newest first) with total count.
func (r *QuestionRepository) List(ctx context.Context, filter models.QuestionFilter) ([]models.Question, int, error) {
	conditions := make([]string, 0, 6)
	args := make([]interface{}, 0, 6)

	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.CategoryID != "" {
		args = append(args, filter.CategoryID)
		conditions = append(conditions, fmt.Sprintf("category_id = $%d", len(args)))
	}
	if filter.AuthorID != "" {
		args = append(args, filter.AuthorID)
		conditions = append(conditions, fmt.Sprintf("author_id = $%d", len(args)))
	}
	if filter.AssignedTo != "" {
		args = append(args, filter.AssignedTo)
		conditions = append(conditions, fmt.Sprintf("assigned_to = $%d", len(args)))
	}
	if filter.AnsweredBy != "" {
		args = append(args, filter.AnsweredBy)
		conditions = append(conditions, fmt.Sprintf("answered_by = $%d", len(args)))
	}
	if filter.Unassigned {
		conditions = append(conditions, "assigned_to IS NULL")
	}
	if filter.Language != "" {
		args = append(args, filter.Language)
		conditions = append(conditions, fmt.Sprintf("language = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf("(LOWER(title) LIKE $%d OR LOWER(body) LIKE $%d)", len(args), len(args)))
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	listQuery := fmt.Sprintf("SELECT %s FROM questions%s ORDER BY created_at DESC LIMIT %d OFFSET %d",
		questionColumns, whereClause, size, offset)
	var questions []models.Question
	if err := r.db.SelectContext(ctx, &questions, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list questions: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM questions%s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count questions: %w", err)
	}
	return questions, total, nil
}

// ListUnassignedApproved is the indexed tier of the admin backlog query.
// Callers fall back to List({status: APPROVED}) plus client-side filtering
// when this query cannot be served.
func (r *QuestionRepository) ListUnassignedApproved(ctx context.Context) ([]models.Question, error) {
	query := fmt.Sprintf(`SELECT %s FROM questions WHERE status = $1 AND assigned_to IS NULL ORDER BY created_at ASC`, questionColumns)
	var questions []models.Question
	if err := r.db.SelectContext(ctx, &questions, query, models.QuestionStatusApproved); err != nil {
		return nil, fmt.Errorf("list unassigned approved questions: %w", err)
	}
	return questions, nil
}

// UpdateContent rewrites the author-editable fields while the question is
// still a draft or pending review. Returns sql.ErrNoRows when the row has
// already moved on.
func (r *QuestionRepository) UpdateContent(ctx context.Context, question *models.Question) error {
	question.UpdatedAt = time.Now().UTC()
	query := fmt.Sprintf(`UPDATE questions SET title = :title, body = :body, category_id = :category_id, language = :language, updated_at = :updated_at
WHERE id = :id AND status IN ('%s', '%s')`, models.QuestionStatusDraft, models.QuestionStatusPending)
	result, err := r.db.NamedExecContext(ctx, query, question)
	if err != nil {
		return fmt.Errorf("update question content: %w", err)
	}
	return requireRowChanged(result, "update question content")
}

// UpdateStatus performs a conditional status transition keyed on the expected
// prior status. A zero-row result means the question is gone or no longer in
// the expected state; callers distinguish the two by re-reading.
func (r *QuestionRepository) UpdateStatus(ctx context.Context, id string, from, to models.QuestionStatus) error {
	const query = `UPDATE questions SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`
	result, err := r.db.ExecContext(ctx, query, id, from, to, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("transition question %s -> %s: %w", from, to, err)
	}
	return requireRowChanged(result, "transition question")
}

// Assign binds a scholar to an approved, unanswered question. The write is
// keyed on the currently recorded assignee so two racing assigns admit
// exactly one winner; pass nil for the first assignment.
func (r *QuestionRepository) Assign(ctx context.Context, id, scholarID, scholarName string, expectedCurrent *string) error {
	var (
		result sql.Result
		err    error
	)
	now := time.Now().UTC()
	if expectedCurrent == nil {
		const query = `UPDATE questions SET assigned_to = $2, scholar_name = $3, updated_at = $4
WHERE id = $1 AND status = $5 AND assigned_to IS NULL`
		result, err = r.db.ExecContext(ctx, query, id, scholarID, scholarName, now, models.QuestionStatusApproved)
	} else {
		const query = `UPDATE questions SET assigned_to = $2, scholar_name = $3, updated_at = $4
WHERE id = $1 AND status = $5 AND assigned_to = $6`
		result, err = r.db.ExecContext(ctx, query, id, scholarID, scholarName, now, models.QuestionStatusApproved, *expectedCurrent)
	}
	if err != nil {
		return fmt.Errorf("assign question: %w", err)
	}
	return requireRowChanged(result, "assign question")
}

// MarkAnswered records the answer and flips the question to ANSWERED in a
// single conditional write keyed on the approved status and the assignee.
func (r *QuestionRepository) MarkAnswered(ctx context.Context, id, scholarID, scholarName, answer string, answeredAt time.Time) error {
	const query = `UPDATE questions SET status = $5, answer = $3, answered_by = $2, answerer_name = $4, answered_at = $6, updated_at = $6
WHERE id = $1 AND status = $7 AND assigned_to = $2`
	result, err := r.db.ExecContext(ctx, query,
		id, scholarID, answer, scholarName,
		models.QuestionStatusAnswered, answeredAt, models.QuestionStatusApproved)
	if err != nil {
		return fmt.Errorf("mark question answered: %w", err)
	}
	return requireRowChanged(result, "mark question answered")
}

// DeleteByAuthor removes every question owned by the author within the given
// transaction. Used only by the cascading admin user deletion.
func (r *QuestionRepository) DeleteByAuthor(ctx context.Context, tx *sqlx.Tx, authorID string) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM questions WHERE author_id = $1", authorID); err != nil {
		return fmt.Errorf("delete questions by author: %w", err)
	}
	return nil
}

func requireRowChanged(result sql.Result, op string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows: %w", op, err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
