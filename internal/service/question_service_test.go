package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilmhub/qa-api/internal/dto"
	"github.com/ilmhub/qa-api/internal/models"
	appErrors "github.com/ilmhub/qa-api/pkg/errors"
)

type mockQuestionStore struct {
	questions map[string]*models.Question
	nextID    int
	listErr   error
}

func newMockQuestionStore() *mockQuestionStore {
	return &mockQuestionStore{questions: make(map[string]*models.Question)}
}

func (m *mockQuestionStore) put(q models.Question) *models.Question {
	stored := q
	m.questions[q.ID] = &stored
	return &stored
}

func (m *mockQuestionStore) Create(ctx context.Context, question *models.Question) error {
	m.nextID++
	question.ID = fmt.Sprintf("q-%d", m.nextID)
	question.CreatedAt = time.Now().UTC()
	question.UpdatedAt = question.CreatedAt
	stored := *question
	m.questions[question.ID] = &stored
	return nil
}

func (m *mockQuestionStore) GetByID(ctx context.Context, id string) (*models.Question, error) {
	q, ok := m.questions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *q
	return &copied, nil
}

func (m *mockQuestionStore) List(ctx context.Context, filter models.QuestionFilter) ([]models.Question, int, error) {
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	var out []models.Question
	for _, q := range m.questions {
		if filter.AuthorID != "" && q.AuthorID != filter.AuthorID {
			continue
		}
		if filter.AssignedTo != "" && (q.AssignedTo == nil || *q.AssignedTo != filter.AssignedTo) {
			continue
		}
		if filter.AnsweredBy != "" && (q.AnsweredBy == nil || *q.AnsweredBy != filter.AnsweredBy) {
			continue
		}
		if len(filter.Status) > 0 {
			matched := false
			for _, s := range filter.Status {
				if q.Status == s {
					matched = true
					break
				}
			}
			if !matched {
				continue
			}
		}
		out = append(out, *q)
	}
	return out, len(out), nil
}

func (m *mockQuestionStore) UpdateContent(ctx context.Context, question *models.Question) error {
	stored, ok := m.questions[question.ID]
	if !ok {
		return sql.ErrNoRows
	}
	if stored.Status != models.QuestionStatusDraft && stored.Status != models.QuestionStatusPending {
		return sql.ErrNoRows
	}
	stored.Title = question.Title
	stored.Body = question.Body
	stored.CategoryID = question.CategoryID
	stored.Language = question.Language
	return nil
}

func (m *mockQuestionStore) UpdateStatus(ctx context.Context, id string, from, to models.QuestionStatus) error {
	stored, ok := m.questions[id]
	if !ok || stored.Status != from {
		return sql.ErrNoRows
	}
	stored.Status = to
	return nil
}

func (m *mockQuestionStore) ListUnassignedApproved(ctx context.Context) ([]models.Question, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []models.Question
	for _, q := range m.questions {
		if q.Status == models.QuestionStatusApproved && q.AssignedTo == nil {
			out = append(out, *q)
		}
	}
	return out, nil
}

func (m *mockQuestionStore) Assign(ctx context.Context, id, scholarID, scholarName string, expectedCurrent *string) error {
	stored, ok := m.questions[id]
	if !ok || stored.Status != models.QuestionStatusApproved {
		return sql.ErrNoRows
	}
	if expectedCurrent == nil {
		if stored.AssignedTo != nil {
			return sql.ErrNoRows
		}
	} else if stored.AssignedTo == nil || *stored.AssignedTo != *expectedCurrent {
		return sql.ErrNoRows
	}
	stored.AssignedTo = &scholarID
	stored.ScholarName = &scholarName
	return nil
}

func (m *mockQuestionStore) MarkAnswered(ctx context.Context, id, scholarID, scholarName, answer string, answeredAt time.Time) error {
	stored, ok := m.questions[id]
	if !ok || stored.Status != models.QuestionStatusApproved {
		return sql.ErrNoRows
	}
	if stored.AssignedTo == nil || *stored.AssignedTo != scholarID {
		return sql.ErrNoRows
	}
	stored.Status = models.QuestionStatusAnswered
	stored.Answer = &answer
	stored.AnsweredBy = &scholarID
	stored.AnswererName = &scholarName
	stored.AnsweredAt = &answeredAt
	return nil
}

type mockCategories struct {
	known map[string]bool
}

func (m *mockCategories) GetByID(ctx context.Context, id string) (*models.Category, error) {
	if m.known[id] {
		return &models.Category{ID: id, Name: id}, nil
	}
	return nil, sql.ErrNoRows
}

type recordedNotification struct {
	RecipientID string
	Type        models.NotificationType
	RelatedID   string
}

type mockNotifier struct {
	sent []recordedNotification
}

func (m *mockNotifier) Notify(ctx context.Context, recipientID string, nType models.NotificationType, title, message, relatedID string) {
	m.sent = append(m.sent, recordedNotification{RecipientID: recipientID, Type: nType, RelatedID: relatedID})
}

type mockAudit struct {
	logs []models.AuditLog
	err  error
}

func (m *mockAudit) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	if m.err != nil {
		return m.err
	}
	m.logs = append(m.logs, *log)
	return nil
}

func userClaims(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: models.RoleUser, FullName: "User " + id, Email: id + "@example.com"}
}

func scholarClaims(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: models.RoleScholar, FullName: "Scholar " + id}
}

func adminClaims(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: models.RoleAdmin, FullName: "Admin " + id}
}

func assertErrCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	typed := appErrors.FromError(err)
	assert.Equal(t, code, typed.Code)
}

func newQuestionService(store *mockQuestionStore, notifier *mockNotifier, audit *mockAudit) *QuestionService {
	categories := &mockCategories{known: map[string]bool{"cat-1": true}}
	return NewQuestionService(store, categories, notifier, audit, nil, nil)
}

func TestQuestionCreateDraftSkipsValidation(t *testing.T) {
	store := newMockQuestionStore()
	svc := newQuestionService(store, &mockNotifier{}, &mockAudit{})

	q, err := svc.Create(context.Background(), userClaims("u1"), dto.CreateQuestionRequest{
		Title: "Partial thought",
		Draft: true,
	})
	require.NoError(t, err)
	assert.Equal(t, models.QuestionStatusDraft, q.Status)
	assert.Equal(t, "u1", q.AuthorID)
}

func TestQuestionCreateSubmitRequiresCompleteContent(t *testing.T) {
	store := newMockQuestionStore()
	svc := newQuestionService(store, &mockNotifier{}, &mockAudit{})

	_, err := svc.Create(context.Background(), userClaims("u1"), dto.CreateQuestionRequest{
		Title: "No body",
	})
	assertErrCode(t, err, appErrors.ErrValidation.Code)

	_, err = svc.Create(context.Background(), userClaims("u1"), dto.CreateQuestionRequest{
		Title:      "Unknown category",
		Body:       "body",
		CategoryID: "cat-missing",
	})
	assertErrCode(t, err, appErrors.ErrValidation.Code)

	q, err := svc.Create(context.Background(), userClaims("u1"), dto.CreateQuestionRequest{
		Title:      "Complete",
		Body:       "body",
		CategoryID: "cat-1",
	})
	require.NoError(t, err)
	assert.Equal(t, models.QuestionStatusPending, q.Status)
}

func TestQuestionSubmitDraftTransitions(t *testing.T) {
	store := newMockQuestionStore()
	store.put(models.Question{ID: "q-1", AuthorID: "u1", Title: "T", Body: "B", CategoryID: "cat-1", Status: models.QuestionStatusDraft})
	svc := newQuestionService(store, &mockNotifier{}, &mockAudit{})

	q, err := svc.SubmitDraft(context.Background(), userClaims("u1"), "q-1")
	require.NoError(t, err)
	assert.Equal(t, models.QuestionStatusPending, q.Status)

	// Pending questions cannot be submitted again.
	_, err = svc.SubmitDraft(context.Background(), userClaims("u1"), "q-1")
	assertErrCode(t, err, appErrors.ErrInvalidTransition.Code)
}

func TestQuestionSubmitDraftOwnerOnly(t *testing.T) {
	store := newMockQuestionStore()
	store.put(models.Question{ID: "q-1", AuthorID: "u1", Title: "T", Body: "B", CategoryID: "cat-1", Status: models.QuestionStatusDraft})
	svc := newQuestionService(store, &mockNotifier{}, &mockAudit{})

	_, err := svc.SubmitDraft(context.Background(), userClaims("u2"), "q-1")
	assertErrCode(t, err, appErrors.ErrForbidden.Code)
}

func TestQuestionApproveAdminOnly(t *testing.T) {
	store := newMockQuestionStore()
	store.put(models.Question{ID: "q-1", AuthorID: "u1", Status: models.QuestionStatusPending})
	notifier := &mockNotifier{}
	svc := newQuestionService(store, notifier, &mockAudit{})

	_, err := svc.Approve(context.Background(), userClaims("u1"), "q-1")
	assertErrCode(t, err, appErrors.ErrForbidden.Code)

	_, err = svc.Approve(context.Background(), scholarClaims("s1"), "q-1")
	assertErrCode(t, err, appErrors.ErrForbidden.Code)

	q, err := svc.Approve(context.Background(), adminClaims("a1"), "q-1")
	require.NoError(t, err)
	assert.Equal(t, models.QuestionStatusApproved, q.Status)
	// Approval emits no notification; delivery waits for the answer.
	assert.Empty(t, notifier.sent)
}

func TestQuestionApproveReplayRejected(t *testing.T) {
	store := newMockQuestionStore()
	store.put(models.Question{ID: "q-1", AuthorID: "u1", Status: models.QuestionStatusApproved})
	svc := newQuestionService(store, &mockNotifier{}, &mockAudit{})

	_, err := svc.Approve(context.Background(), adminClaims("a1"), "q-1")
	assertErrCode(t, err, appErrors.ErrInvalidTransition.Code)
}

func TestQuestionRejectNotifiesAuthor(t *testing.T) {
	store := newMockQuestionStore()
	store.put(models.Question{ID: "q-1", AuthorID: "u1", Title: "T", Status: models.QuestionStatusPending})
	notifier := &mockNotifier{}
	svc := newQuestionService(store, notifier, &mockAudit{})

	q, err := svc.Reject(context.Background(), adminClaims("a1"), "q-1")
	require.NoError(t, err)
	assert.Equal(t, models.QuestionStatusRejected, q.Status)
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "u1", notifier.sent[0].RecipientID)
	assert.Equal(t, models.NotificationQuestionRejected, notifier.sent[0].Type)

	// Rejected is terminal.
	_, err = svc.Approve(context.Background(), adminClaims("a1"), "q-1")
	assertErrCode(t, err, appErrors.ErrInvalidTransition.Code)
}

func TestQuestionAnswerByAssignedScholar(t *testing.T) {
	scholarID := "s1"
	store := newMockQuestionStore()
	store.put(models.Question{ID: "q-1", AuthorID: "u1", Title: "T", Status: models.QuestionStatusApproved, AssignedTo: &scholarID})
	notifier := &mockNotifier{}
	svc := newQuestionService(store, notifier, &mockAudit{})

	q, err := svc.Answer(context.Background(), scholarClaims("s1"), "q-1", dto.AnswerQuestionRequest{Answer: "The answer."})
	require.NoError(t, err)
	assert.Equal(t, models.QuestionStatusAnswered, q.Status)
	require.NotNil(t, q.Answer)
	assert.Equal(t, "The answer.", *q.Answer)
	require.NotNil(t, q.AnsweredBy)
	assert.Equal(t, "s1", *q.AnsweredBy)
	require.NotNil(t, q.AnsweredAt)

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "u1", notifier.sent[0].RecipientID)
	assert.Equal(t, models.NotificationQuestionAnswered, notifier.sent[0].Type)
}

func TestQuestionAnswerRejectsWrongScholar(t *testing.T) {
	scholarID := "s1"
	store := newMockQuestionStore()
	store.put(models.Question{ID: "q-1", AuthorID: "u1", Status: models.QuestionStatusApproved, AssignedTo: &scholarID})
	notifier := &mockNotifier{}
	svc := newQuestionService(store, notifier, &mockAudit{})

	_, err := svc.Answer(context.Background(), scholarClaims("s2"), "q-1", dto.AnswerQuestionRequest{Answer: "x"})
	assertErrCode(t, err, appErrors.ErrForbidden.Code)
	assert.Empty(t, notifier.sent)
	assert.Equal(t, models.QuestionStatusApproved, store.questions["q-1"].Status)
}

func TestQuestionAnswerRequiresApprovedStatus(t *testing.T) {
	store := newMockQuestionStore()
	store.put(models.Question{ID: "q-1", AuthorID: "u1", Status: models.QuestionStatusPending})
	svc := newQuestionService(store, &mockNotifier{}, &mockAudit{})

	_, err := svc.Answer(context.Background(), scholarClaims("s1"), "q-1", dto.AnswerQuestionRequest{Answer: "x"})
	assertErrCode(t, err, appErrors.ErrInvalidTransition.Code)
}

func TestQuestionAnswerRequiresText(t *testing.T) {
	scholarID := "s1"
	store := newMockQuestionStore()
	store.put(models.Question{ID: "q-1", AuthorID: "u1", Status: models.QuestionStatusApproved, AssignedTo: &scholarID})
	svc := newQuestionService(store, &mockNotifier{}, &mockAudit{})

	_, err := svc.Answer(context.Background(), scholarClaims("s1"), "q-1", dto.AnswerQuestionRequest{Answer: "   "})
	assertErrCode(t, err, appErrors.ErrValidation.Code)
}

func TestQuestionUpdateAuthorAndStatusGuards(t *testing.T) {
	store := newMockQuestionStore()
	store.put(models.Question{ID: "q-1", AuthorID: "u1", Title: "Old", Body: "B", CategoryID: "cat-1", Status: models.QuestionStatusDraft})
	store.put(models.Question{ID: "q-2", AuthorID: "u1", Title: "Done", Body: "B", CategoryID: "cat-1", Status: models.QuestionStatusAnswered})
	svc := newQuestionService(store, &mockNotifier{}, &mockAudit{})

	req := dto.UpdateQuestionRequest{Title: "New", Body: "B2", CategoryID: "cat-1"}

	q, err := svc.Update(context.Background(), userClaims("u1"), "q-1", req)
	require.NoError(t, err)
	assert.Equal(t, "New", q.Title)

	_, err = svc.Update(context.Background(), userClaims("u2"), "q-1", req)
	assertErrCode(t, err, appErrors.ErrForbidden.Code)

	_, err = svc.Update(context.Background(), userClaims("u1"), "q-2", req)
	assertErrCode(t, err, appErrors.ErrInvalidTransition.Code)
}

func TestQuestionGetVisibility(t *testing.T) {
	store := newMockQuestionStore()
	store.put(models.Question{ID: "q-draft", AuthorID: "u1", Status: models.QuestionStatusDraft})
	store.put(models.Question{ID: "q-done", AuthorID: "u1", Status: models.QuestionStatusAnswered})
	svc := newQuestionService(store, &mockNotifier{}, &mockAudit{})

	ctx := context.Background()

	// Author sees their own draft.
	q, err := svc.Get(ctx, userClaims("u1"), "q-draft")
	require.NoError(t, err)
	assert.Equal(t, "q-draft", q.ID)

	// Another user gets NotFound, not Forbidden.
	_, err = svc.Get(ctx, userClaims("u2"), "q-draft")
	assertErrCode(t, err, appErrors.ErrNotFound.Code)

	// Anonymous readers see only answered questions.
	_, err = svc.Get(ctx, nil, "q-draft")
	assertErrCode(t, err, appErrors.ErrNotFound.Code)
	q, err = svc.Get(ctx, nil, "q-done")
	require.NoError(t, err)
	assert.Equal(t, "q-done", q.ID)

	// Admins and scholars see everything.
	_, err = svc.Get(ctx, adminClaims("a1"), "q-draft")
	require.NoError(t, err)
	_, err = svc.Get(ctx, scholarClaims("s1"), "q-draft")
	require.NoError(t, err)
}

func TestQuestionListScopes(t *testing.T) {
	store := newMockQuestionStore()
	store.put(models.Question{ID: "q-1", AuthorID: "u1", Status: models.QuestionStatusDraft})
	store.put(models.Question{ID: "q-2", AuthorID: "u1", Status: models.QuestionStatusAnswered})
	store.put(models.Question{ID: "q-3", AuthorID: "u2", Status: models.QuestionStatusAnswered})
	store.put(models.Question{ID: "q-4", AuthorID: "u2", Status: models.QuestionStatusPending})
	svc := newQuestionService(store, &mockNotifier{}, &mockAudit{})

	ctx := context.Background()

	anon, _, err := svc.List(ctx, nil, dto.QuestionQuery{})
	require.NoError(t, err)
	assert.Len(t, anon, 2)
	for _, q := range anon {
		assert.Equal(t, models.QuestionStatusAnswered, q.Status)
	}

	// A user sees answered questions plus their own records, deduplicated.
	own, _, err := svc.List(ctx, userClaims("u1"), dto.QuestionQuery{})
	require.NoError(t, err)
	ids := make(map[string]bool)
	for _, q := range own {
		ids[q.ID] = true
	}
	assert.True(t, ids["q-1"])
	assert.True(t, ids["q-2"])
	assert.True(t, ids["q-3"])
	assert.False(t, ids["q-4"])
	assert.Len(t, own, 3)

	all, _, err := svc.List(ctx, adminClaims("a1"), dto.QuestionQuery{})
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestQuestionTransitionStaleWriteExplained(t *testing.T) {
	store := newMockQuestionStore()
	svc := newQuestionService(store, &mockNotifier{}, &mockAudit{})

	// Missing question surfaces NotFound, not a conflict.
	_, err := svc.Approve(context.Background(), adminClaims("a1"), "q-missing")
	assertErrCode(t, err, appErrors.ErrNotFound.Code)
}

func TestQuestionAuditTrailRecorded(t *testing.T) {
	store := newMockQuestionStore()
	store.put(models.Question{ID: "q-1", AuthorID: "u1", Status: models.QuestionStatusPending})
	audit := &mockAudit{}
	svc := newQuestionService(store, &mockNotifier{}, audit)

	_, err := svc.Approve(context.Background(), adminClaims("a1"), "q-1")
	require.NoError(t, err)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionQuestionApprove, audit.logs[0].Action)
	assert.Equal(t, "questions", audit.logs[0].Resource)
}
