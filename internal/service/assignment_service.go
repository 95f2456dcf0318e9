package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ilmhub/qa-api/internal/models"
	appErrors "github.com/ilmhub/qa-api/pkg/errors"
)

type assignmentStore interface {
	GetByID(ctx context.Context, id string) (*models.Question, error)
	List(ctx context.Context, filter models.QuestionFilter) ([]models.Question, int, error)
	ListUnassignedApproved(ctx context.Context) ([]models.Question, error)
	Assign(ctx context.Context, id, scholarID, scholarName string, expectedCurrent *string) error
}

type scholarReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// AssignmentService binds approved questions to scholars, enforcing
// at-most-one active assignment per question.
type AssignmentService struct {
	repo     assignmentStore
	users    scholarReader
	notifier Notifier
	audit    auditLogger
	logger   *zap.Logger
}

// NewAssignmentService constructs the service.
func NewAssignmentService(repo assignmentStore, users scholarReader, notifier Notifier, audit auditLogger, logger *zap.Logger) *AssignmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{repo: repo, users: users, notifier: notifier, audit: audit, logger: logger}
}

// Assign gives an approved, unassigned question to a scholar. The write is
// keyed on the question being approved and unassigned, so two racing assign
// calls admit exactly one winner; the loser gets a conflict.
func (s *AssignmentService) Assign(ctx context.Context, actor *models.JWTClaims, questionID, scholarID string) (*models.Question, error) {
	return s.assign(ctx, actor, questionID, scholarID, false)
}

// Reassign overwrites the current assignee while the question remains
// approved and unanswered. No history of prior assignees is retained beyond
// the audit trail.
func (s *AssignmentService) Reassign(ctx context.Context, actor *models.JWTClaims, questionID, scholarID string) (*models.Question, error) {
	return s.assign(ctx, actor, questionID, scholarID, true)
}

func (s *AssignmentService) assign(ctx context.Context, actor *models.JWTClaims, questionID, scholarID string, allowReplace bool) (*models.Question, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	question, err := s.repo.GetByID(ctx, questionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "question not found")
		}
		return nil, appErrors.Store(err, "failed to load question")
	}
	if question.Status != models.QuestionStatusApproved {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "only approved questions can be assigned")
	}
	if question.AssignedTo != nil && !allowReplace {
		return nil, appErrors.Clone(appErrors.ErrConflict, "question is already assigned")
	}

	scholar, err := s.users.FindByID(ctx, scholarID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "scholar not found")
		}
		return nil, appErrors.Store(err, "failed to load scholar")
	}
	if !scholar.IsScholar() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "assignee must hold the scholar role")
	}
	if !scholar.IsActive() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "assignee account is blocked")
	}

	if err := s.repo.Assign(ctx, questionID, scholar.ID, scholar.FullName, question.AssignedTo); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "assignment changed concurrently")
		}
		return nil, appErrors.Store(err, "failed to assign question")
	}

	if s.notifier != nil {
		s.notifier.Notify(ctx, scholar.ID, models.NotificationQuestionAssigned,
			"Question assigned",
			fmt.Sprintf("You have been assigned the question %q.", question.Title),
			question.ID)
	}
	s.emitAudit(ctx, actor.UserID, questionID, scholar.ID)

	return s.repo.GetByID(ctx, questionID)
}

// ListAssigned returns the scholar's approved questions awaiting an answer.
// Scholars may only query their own queue; admins may query anyone's.
func (s *AssignmentService) ListAssigned(ctx context.Context, actor *models.JWTClaims, scholarID string) ([]models.Question, error) {
	if err := s.requireQueueAccess(actor, scholarID); err != nil {
		return nil, err
	}
	rows, _, err := s.repo.List(ctx, models.QuestionFilter{
		AssignedTo: scholarID,
		Status:     []models.QuestionStatus{models.QuestionStatusApproved},
	})
	if err != nil {
		return nil, appErrors.Store(err, "failed to list assigned questions")
	}
	return rows, nil
}

// ListAnswered returns the questions a scholar has answered.
func (s *AssignmentService) ListAnswered(ctx context.Context, actor *models.JWTClaims, scholarID string) ([]models.Question, error) {
	if err := s.requireQueueAccess(actor, scholarID); err != nil {
		return nil, err
	}
	rows, _, err := s.repo.List(ctx, models.QuestionFilter{
		AnsweredBy: scholarID,
		Status:     []models.QuestionStatus{models.QuestionStatusAnswered},
	})
	if err != nil {
		return nil, appErrors.Store(err, "failed to list answered questions")
	}
	return rows, nil
}

// UnassignedBacklog lists approved questions with no scholar, for admin
// triage. The indexed composite query is tried first; when the store cannot
// serve it the broader approved set is fetched and filtered client-side.
// The fallback is a degraded mode, not an error.
func (s *AssignmentService) UnassignedBacklog(ctx context.Context, actor *models.JWTClaims) ([]models.Question, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	rows, err := s.repo.ListUnassignedApproved(ctx)
	if err == nil {
		return rows, nil
	}
	s.logger.Warn("indexed backlog query failed, falling back to client-side filter", zap.Error(err))

	approved, _, err := s.repo.List(ctx, models.QuestionFilter{
		Status: []models.QuestionStatus{models.QuestionStatusApproved},
	})
	if err != nil {
		return nil, appErrors.Store(err, "failed to list approved questions")
	}
	backlog := make([]models.Question, 0, len(approved))
	for _, q := range approved {
		if q.AssignedTo == nil {
			backlog = append(backlog, q)
		}
	}
	return backlog, nil
}

func (s *AssignmentService) requireQueueAccess(actor *models.JWTClaims, scholarID string) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if actor.Role == models.RoleAdmin {
		return nil
	}
	if actor.Role == models.RoleScholar && actor.UserID == scholarID {
		return nil
	}
	return appErrors.Clone(appErrors.ErrForbidden, "cannot view another scholar's queue")
}

func (s *AssignmentService) emitAudit(ctx context.Context, actorID, questionID, scholarID string) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionQuestionAssign,
		Resource:   "questions",
		ResourceID: &questionID,
		NewValues:  []byte(fmt.Sprintf(`{"assigned_to":%q,"at":%q}`, scholarID, time.Now().UTC().Format(time.RFC3339))),
		IPAddress:  "system",
		UserAgent:  "assignment-service",
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}
