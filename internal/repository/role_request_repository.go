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

const roleRequestColumns = `id, user_id, user_name, user_email, requested_role, qualifications, institution, experience, status, reviewed_by, created_at, reviewed_at`

// RoleRequestRepository persists role promotion requests.
type RoleRequestRepository struct {
	db *sqlx.DB
}

// NewRoleRequestRepository constructs the repository.
func NewRoleRequestRepository(db *sqlx.DB) *RoleRequestRepository {
	return &RoleRequestRepository{db: db}
}

// Create inserts a new pending role request.
func (r *RoleRequestRepository) Create(ctx context.Context, request *models.RoleRequest) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	if request.Status == "" {
		request.Status = models.RoleRequestStatusPending
	}
	if request.CreatedAt.IsZero() {
		request.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO role_requests
	(id, user_id, user_name, user_email, requested_role, qualifications, institution, experience, status, reviewed_by, created_at, reviewed_at)
	VALUES (:id, :user_id, :user_name, :user_email, :requested_role, :qualifications, :institution, :experience, :status, :reviewed_by, :created_at, :reviewed_at)`
	if _, err := r.db.NamedExecContext(ctx, query, request); err != nil {
		return fmt.Errorf("create role request: %w", err)
	}
	return nil
}

// GetByID fetches a role request by identifier.
func (r *RoleRequestRepository) GetByID(ctx context.Context, id string) (*models.RoleRequest, error) {
	query := fmt.Sprintf("SELECT %s FROM role_requests WHERE id = $1", roleRequestColumns)
	var request models.RoleRequest
	if err := r.db.GetContext(ctx, &request, query, id); err != nil {
		return nil, err
	}
	return &request, nil
}

// List returns role requests matching the filter (newest first).
func (r *RoleRequestRepository) List(ctx context.Context, filter models.RoleRequestFilter) ([]models.RoleRequest, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 3)
	builder.WriteString(fmt.Sprintf("SELECT %s FROM role_requests", roleRequestColumns))

	conditions := make([]string, 0, 2)
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY created_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var requests []models.RoleRequest
	if err := r.db.SelectContext(ctx, &requests, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list role requests: %w", err)
	}
	return requests, nil
}

// HasPending reports whether the user already has an open request.
func (r *RoleRequestRepository) HasPending(ctx context.Context, userID string) (bool, error) {
	const query = `SELECT COUNT(*) FROM role_requests WHERE user_id = $1 AND status = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, userID, models.RoleRequestStatusPending); err != nil {
		return false, fmt.Errorf("count pending role requests: %w", err)
	}
	return count > 0, nil
}

// Approve flips the request to APPROVED and promotes the user in a single
// transaction, keyed on the request still being pending. Both writes commit
// or neither does. Returns sql.ErrNoRows when the request was already
// reviewed or does not exist.
func (r *RoleRequestRepository) Approve(ctx context.Context, id, reviewerID string, reviewedAt time.Time) (*models.RoleRequest, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin role request approval: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	query := fmt.Sprintf(`UPDATE role_requests SET status = $2, reviewed_by = $3, reviewed_at = $4
WHERE id = $1 AND status = '%s' RETURNING %s`, models.RoleRequestStatusPending, roleRequestColumns)
	var request models.RoleRequest
	if err := tx.GetContext(ctx, &request, query, id, models.RoleRequestStatusApproved, reviewerID, reviewedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("approve role request: %w", err)
	}

	result, err := tx.ExecContext(ctx, `UPDATE users SET role = $2, updated_at = $3 WHERE id = $1`,
		request.UserID, request.RequestedRole, reviewedAt)
	if err != nil {
		return nil, fmt.Errorf("promote user role: %w", err)
	}
	if err := requireRowChanged(result, "promote user role"); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit role request approval: %w", err)
	}
	return &request, nil
}

// Reject flips the request to REJECTED, keyed on it still being pending.
func (r *RoleRequestRepository) Reject(ctx context.Context, id, reviewerID string, reviewedAt time.Time) error {
	query := fmt.Sprintf(`UPDATE role_requests SET status = $2, reviewed_by = $3, reviewed_at = $4
WHERE id = $1 AND status = '%s'`, models.RoleRequestStatusPending)
	result, err := r.db.ExecContext(ctx, query, id, models.RoleRequestStatusRejected, reviewerID, reviewedAt)
	if err != nil {
		return fmt.Errorf("reject role request: %w", err)
	}
	return requireRowChanged(result, "reject role request")
}
