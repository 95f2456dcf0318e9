package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ilmhub/qa-api/internal/dto"
	"github.com/ilmhub/qa-api/internal/models"
	appErrors "github.com/ilmhub/qa-api/pkg/errors"
)

type questionStore interface {
	Create(ctx context.Context, question *models.Question) error
	GetByID(ctx context.Context, id string) (*models.Question, error)
	List(ctx context.Context, filter models.QuestionFilter) ([]models.Question, int, error)
	UpdateContent(ctx context.Context, question *models.Question) error
	UpdateStatus(ctx context.Context, id string, from, to models.QuestionStatus) error
	MarkAnswered(ctx context.Context, id, scholarID, scholarName, answer string, answeredAt time.Time) error
}

type categoryReader interface {
	GetByID(ctx context.Context, id string) (*models.Category, error)
}

// Notifier is the notification side-channel contract. Implementations are
// fire-and-forget: a failed create is logged, never surfaced to the
// triggering workflow.
type Notifier interface {
	Notify(ctx context.Context, recipientID string, nType models.NotificationType, title, message, relatedID string)
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// QuestionService is the workflow engine enforcing the question lifecycle:
// draft -> pending -> approved/rejected -> answered, with role-gated
// transitions and notification side effects.
type QuestionService struct {
	repo       questionStore
	categories categoryReader
	notifier   Notifier
	audit      auditLogger
	cache      *CacheService
	logger     *zap.Logger
}

// NewQuestionService constructs the service.
func NewQuestionService(repo questionStore, categories categoryReader, notifier Notifier, audit auditLogger, cache *CacheService, logger *zap.Logger) *QuestionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuestionService{repo: repo, categories: categories, notifier: notifier, audit: audit, cache: cache, logger: logger}
}

// Create registers a question owned by the actor, either as a draft or
// submitted straight into pending review.
func (s *QuestionService) Create(ctx context.Context, actor *models.JWTClaims, req dto.CreateQuestionRequest) (*models.Question, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	language := req.Language
	if language == "" {
		language = models.LanguageEnglish
	}
	if !models.ValidLanguage(language) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported language tag")
	}

	status := models.QuestionStatusPending
	if req.Draft {
		status = models.QuestionStatusDraft
	} else if err := s.requireSubmittable(ctx, req.Title, req.Body, req.CategoryID); err != nil {
		return nil, err
	}

	question := &models.Question{
		Title:      strings.TrimSpace(req.Title),
		Body:       req.Body,
		CategoryID: req.CategoryID,
		AuthorID:   actor.UserID,
		AuthorName: actor.FullName,
		Language:   language,
		Status:     status,
	}
	if err := s.repo.Create(ctx, question); err != nil {
		return nil, appErrors.Store(err, "failed to create question")
	}
	if status == models.QuestionStatusPending {
		s.emitAudit(ctx, actor.UserID, models.AuditActionQuestionSubmit, question.ID, nil)
	}
	return question, nil
}

// Update rewrites the author-editable fields of a draft or pending question.
// The status never changes through this path.
func (s *QuestionService) Update(ctx context.Context, actor *models.JWTClaims, id string, req dto.UpdateQuestionRequest) (*models.Question, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	question, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if question.AuthorID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the author may edit a question")
	}
	if question.Status != models.QuestionStatusDraft && question.Status != models.QuestionStatusPending {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "question can no longer be edited")
	}
	if err := s.requireSubmittable(ctx, req.Title, req.Body, req.CategoryID); err != nil {
		return nil, err
	}
	language := req.Language
	if language == "" {
		language = question.Language
	}
	if !models.ValidLanguage(language) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported language tag")
	}

	question.Title = strings.TrimSpace(req.Title)
	question.Body = req.Body
	question.CategoryID = req.CategoryID
	question.Language = language
	if err := s.repo.UpdateContent(ctx, question); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "question moved on while editing")
		}
		return nil, appErrors.Store(err, "failed to update question")
	}
	return question, nil
}

// SubmitDraft moves the author's draft into pending review.
func (s *QuestionService) SubmitDraft(ctx context.Context, actor *models.JWTClaims, id string) (*models.Question, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	question, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if question.AuthorID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the author may submit a draft")
	}
	if question.Status != models.QuestionStatusDraft {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "only drafts can be submitted")
	}
	if err := s.requireSubmittable(ctx, question.Title, question.Body, question.CategoryID); err != nil {
		return nil, err
	}
	if err := s.transition(ctx, id, models.QuestionStatusDraft, models.QuestionStatusPending); err != nil {
		return nil, err
	}
	s.emitAudit(ctx, actor.UserID, models.AuditActionQuestionSubmit, id, nil)
	return s.load(ctx, id)
}

// Approve passes moderation on a pending question. Assignment is a separate
// step and no notification is emitted here.
func (s *QuestionService) Approve(ctx context.Context, actor *models.JWTClaims, id string) (*models.Question, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := s.transition(ctx, id, models.QuestionStatusPending, models.QuestionStatusApproved); err != nil {
		return nil, err
	}
	s.invalidatePublicCache(ctx)
	s.emitAudit(ctx, actor.UserID, models.AuditActionQuestionApprove, id, nil)
	return s.load(ctx, id)
}

// Reject declines a pending question and notifies the author once.
func (s *QuestionService) Reject(ctx context.Context, actor *models.JWTClaims, id string) (*models.Question, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	question, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.transition(ctx, id, models.QuestionStatusPending, models.QuestionStatusRejected); err != nil {
		return nil, err
	}
	if s.notifier != nil {
		s.notifier.Notify(ctx, question.AuthorID, models.NotificationQuestionRejected,
			"Question rejected",
			fmt.Sprintf("Your question %q was not accepted for review.", question.Title),
			question.ID)
	}
	s.emitAudit(ctx, actor.UserID, models.AuditActionQuestionReject, id, nil)
	return s.load(ctx, id)
}

// Answer records the assigned scholar's answer and completes the lifecycle.
// The status flip, answer fields and notification either all take effect or
// none do: the write is a single conditional update and the notification is
// only emitted after it succeeds.
func (s *QuestionService) Answer(ctx context.Context, actor *models.JWTClaims, id string, req dto.AnswerQuestionRequest) (*models.Question, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if strings.TrimSpace(req.Answer) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "answer text is required")
	}
	question, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if question.Status != models.QuestionStatusApproved {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "question is not awaiting an answer")
	}
	if question.AssignedTo == nil || *question.AssignedTo != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the assigned scholar may answer")
	}

	answeredAt := time.Now().UTC()
	if err := s.repo.MarkAnswered(ctx, id, actor.UserID, actor.FullName, req.Answer, answeredAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.explainStaleWrite(ctx, id)
		}
		return nil, appErrors.Store(err, "failed to record answer")
	}

	if s.notifier != nil {
		s.notifier.Notify(ctx, question.AuthorID, models.NotificationQuestionAnswered,
			"Question answered",
			fmt.Sprintf("Your question %q has been answered.", question.Title),
			question.ID)
	}
	s.invalidatePublicCache(ctx)
	s.emitAudit(ctx, actor.UserID, models.AuditActionQuestionAnswer, id, []byte(`{"answered":true}`))
	return s.load(ctx, id)
}

// Get applies the read-visibility policy: author always, admin/scholar
// always, everyone else only when the question is answered. A nil actor is
// the anonymous public.
func (s *QuestionService) Get(ctx context.Context, actor *models.JWTClaims, id string) (*models.Question, error) {
	question, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	actorID, role := actorIdentity(actor)
	if !question.VisibleTo(actorID, role) {
		// Indistinguishable from absent for unauthorized readers.
		return nil, appErrors.Clone(appErrors.ErrNotFound, "question not found")
	}
	return question, nil
}

// List returns questions scoped by the actor's visibility. Plain users see
// answered questions plus their own records; admins and scholars see
// everything; the anonymous public sees only answered questions.
func (s *QuestionService) List(ctx context.Context, actor *models.JWTClaims, query dto.QuestionQuery) ([]models.Question, *models.Pagination, error) {
	filter := models.QuestionFilter{
		Status:     query.Status,
		CategoryID: query.CategoryID,
		Language:   query.Language,
		Search:     query.Search,
		Page:       query.Page,
		PageSize:   query.PageSize,
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}

	actorID, role := actorIdentity(actor)
	switch role {
	case models.RoleAdmin, models.RoleScholar:
		// unrestricted
	default:
		if actorID == "" {
			filter.Status = []models.QuestionStatus{models.QuestionStatusAnswered}
			if cached, pagination, ok := s.cachedPublicList(ctx, filter); ok {
				return cached, pagination, nil
			}
		} else {
			rows, pagination, err := s.listForUser(ctx, actorID, filter)
			if err != nil {
				return nil, nil, err
			}
			return rows, pagination, nil
		}
	}

	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Store(err, "failed to list questions")
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	if actorID == "" && role == "" {
		s.storePublicList(ctx, filter, rows, pagination)
	}
	return rows, pagination, nil
}

// listForUser merges the public answered view with the author's own records.
// The store cannot express the disjunction in a single filtered query, so
// the union is computed client-side from two indexed queries.
func (s *QuestionService) listForUser(ctx context.Context, actorID string, filter models.QuestionFilter) ([]models.Question, *models.Pagination, error) {
	ownFilter := filter
	ownFilter.AuthorID = actorID
	own, _, err := s.repo.List(ctx, ownFilter)
	if err != nil {
		return nil, nil, appErrors.Store(err, "failed to list own questions")
	}

	publicFilter := filter
	publicFilter.Status = []models.QuestionStatus{models.QuestionStatusAnswered}
	answered, total, err := s.repo.List(ctx, publicFilter)
	if err != nil {
		return nil, nil, appErrors.Store(err, "failed to list answered questions")
	}

	seen := make(map[string]struct{}, len(own))
	merged := make([]models.Question, 0, len(own)+len(answered))
	for _, q := range own {
		seen[q.ID] = struct{}{}
		merged = append(merged, q)
	}
	for _, q := range answered {
		if _, ok := seen[q.ID]; !ok {
			merged = append(merged, q)
		}
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total + len(own)}
	return merged, pagination, nil
}

func (s *QuestionService) requireSubmittable(ctx context.Context, title, body, categoryID string) error {
	if strings.TrimSpace(title) == "" || strings.TrimSpace(body) == "" || strings.TrimSpace(categoryID) == "" {
		return appErrors.Clone(appErrors.ErrValidation, "title, body and category are required")
	}
	if s.categories == nil {
		return nil
	}
	if _, err := s.categories.GetByID(ctx, categoryID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrValidation, "unknown category")
		}
		return appErrors.Store(err, "failed to resolve category")
	}
	return nil
}

// transition performs a conditional status flip and translates a zero-row
// outcome into NotFound or InvalidTransition by re-reading.
func (s *QuestionService) transition(ctx context.Context, id string, from, to models.QuestionStatus) error {
	if err := s.repo.UpdateStatus(ctx, id, from, to); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return s.explainStaleWrite(ctx, id)
		}
		return appErrors.Store(err, "failed to transition question")
	}
	return nil
}

func (s *QuestionService) explainStaleWrite(ctx context.Context, id string) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "question not found")
		}
		return appErrors.Store(err, "failed to load question")
	}
	return appErrors.Clone(appErrors.ErrInvalidTransition, "question is no longer in the expected status")
}

func (s *QuestionService) load(ctx context.Context, id string) (*models.Question, error) {
	question, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "question not found")
		}
		return nil, appErrors.Store(err, "failed to load question")
	}
	return question, nil
}

func (s *QuestionService) cachedPublicList(ctx context.Context, filter models.QuestionFilter) ([]models.Question, *models.Pagination, bool) {
	if s.cache == nil || !s.cache.Enabled() {
		return nil, nil, false
	}
	var payload struct {
		Rows       []models.Question  `json:"rows"`
		Pagination *models.Pagination `json:"pagination"`
	}
	hit, err := s.cache.Get(ctx, publicListCacheKey(filter), &payload)
	if err != nil || !hit {
		return nil, nil, false
	}
	return payload.Rows, payload.Pagination, true
}

func (s *QuestionService) storePublicList(ctx context.Context, filter models.QuestionFilter, rows []models.Question, pagination *models.Pagination) {
	if s.cache == nil || !s.cache.Enabled() {
		return
	}
	payload := struct {
		Rows       []models.Question  `json:"rows"`
		Pagination *models.Pagination `json:"pagination"`
	}{Rows: rows, Pagination: pagination}
	if err := s.cache.Set(ctx, publicListCacheKey(filter), payload, 0); err != nil {
		s.logger.Warn("failed to cache public question list", zap.Error(err))
	}
}

func (s *QuestionService) invalidatePublicCache(ctx context.Context) {
	if s.cache == nil || !s.cache.Enabled() {
		return
	}
	if err := s.cache.Invalidate(ctx, "questions:public:*"); err != nil {
		s.logger.Warn("failed to invalidate public question cache", zap.Error(err))
	}
}

func (s *QuestionService) emitAudit(ctx context.Context, actorID, action, questionID string, values []byte) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   "questions",
		ResourceID: &questionID,
		NewValues:  values,
		IPAddress:  "system",
		UserAgent:  "question-service",
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}

func publicListCacheKey(filter models.QuestionFilter) string {
	return fmt.Sprintf("questions:public:%s:%s:%s:%d:%d",
		filter.CategoryID, filter.Language, filter.Search, filter.Page, filter.PageSize)
}

func requireAdmin(actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleAdmin {
		return appErrors.Clone(appErrors.ErrForbidden, "admin role required")
	}
	return nil
}

func actorIdentity(actor *models.JWTClaims) (string, models.UserRole) {
	if actor == nil {
		return "", ""
	}
	return actor.UserID, actor.Role
}
