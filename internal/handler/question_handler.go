package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ilmhub/qa-api/internal/dto"
	"github.com/ilmhub/qa-api/internal/models"
	"github.com/ilmhub/qa-api/internal/service"
	appErrors "github.com/ilmhub/qa-api/pkg/errors"
	"github.com/ilmhub/qa-api/pkg/response"
)

// QuestionHandler exposes the question lifecycle endpoints.
type QuestionHandler struct {
	questions   *service.QuestionService
	assignments *service.AssignmentService
}

// NewQuestionHandler creates a new handler.
func NewQuestionHandler(questions *service.QuestionService, assignments *service.AssignmentService) *QuestionHandler {
	return &QuestionHandler{questions: questions, assignments: assignments}
}

// Create godoc
// @Summary Create question
// @Description Create a question as draft or submit it straight into review
// @Tags Questions
// @Accept json
// @Produce json
// @Param payload body dto.CreateQuestionRequest true "Question payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Security BearerAuth
// @Router /questions [post]
func (h *QuestionHandler) Create(c *gin.Context) {
	var req dto.CreateQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid question payload"))
		return
	}

	question, err := h.questions.Create(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, question)
}

// Update godoc
// @Summary Update question
// @Description Edit a draft or pending question owned by the caller
// @Tags Questions
// @Accept json
// @Produce json
// @Param id path string true "Question ID"
// @Param payload body dto.UpdateQuestionRequest true "Question payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /questions/{id} [put]
func (h *QuestionHandler) Update(c *gin.Context) {
	var req dto.UpdateQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid question payload"))
		return
	}

	question, err := h.questions.Update(c.Request.Context(), claimsFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, question, nil)
}

// Submit godoc
// @Summary Submit draft
// @Description Move the caller's draft into pending review
// @Tags Questions
// @Produce json
// @Param id path string true "Question ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /questions/{id}/submit [post]
func (h *QuestionHandler) Submit(c *gin.Context) {
	question, err := h.questions.SubmitDraft(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, question, nil)
}

// Approve godoc
// @Summary Approve question
// @Description Pass moderation on a pending question
// @Tags Moderation
// @Produce json
// @Param id path string true "Question ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /questions/{id}/approve [post]
func (h *QuestionHandler) Approve(c *gin.Context) {
	question, err := h.questions.Approve(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, question, nil)
}

// Reject godoc
// @Summary Reject question
// @Description Decline a pending question and notify the author
// @Tags Moderation
// @Produce json
// @Param id path string true "Question ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /questions/{id}/reject [post]
func (h *QuestionHandler) Reject(c *gin.Context) {
	question, err := h.questions.Reject(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, question, nil)
}

// Answer godoc
// @Summary Answer question
// @Description Record the assigned scholar's answer and complete the lifecycle
// @Tags Questions
// @Accept json
// @Produce json
// @Param id path string true "Question ID"
// @Param payload body dto.AnswerQuestionRequest true "Answer payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /questions/{id}/answer [post]
func (h *QuestionHandler) Answer(c *gin.Context) {
	var req dto.AnswerQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid answer payload"))
		return
	}

	question, err := h.questions.Answer(c.Request.Context(), claimsFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, question, nil)
}

// Assign godoc
// @Summary Assign question
// @Description Assign an approved question to a scholar
// @Tags Assignment
// @Accept json
// @Produce json
// @Param id path string true "Question ID"
// @Param payload body dto.AssignQuestionRequest true "Assignment payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /questions/{id}/assign [post]
func (h *QuestionHandler) Assign(c *gin.Context) {
	var req dto.AssignQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid assignment payload"))
		return
	}

	question, err := h.assignments.Assign(c.Request.Context(), claimsFromContext(c), c.Param("id"), req.ScholarID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, question, nil)
}

// Reassign godoc
// @Summary Reassign question
// @Description Move an approved question to a different scholar
// @Tags Assignment
// @Accept json
// @Produce json
// @Param id path string true "Question ID"
// @Param payload body dto.AssignQuestionRequest true "Assignment payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /questions/{id}/reassign [post]
func (h *QuestionHandler) Reassign(c *gin.Context) {
	var req dto.AssignQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid assignment payload"))
		return
	}

	question, err := h.assignments.Reassign(c.Request.Context(), claimsFromContext(c), c.Param("id"), req.ScholarID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, question, nil)
}

// Get godoc
// @Summary Get question
// @Description Fetch one question, subject to read visibility
// @Tags Questions
// @Produce json
// @Param id path string true "Question ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /questions/{id} [get]
func (h *QuestionHandler) Get(c *gin.Context) {
	question, err := h.questions.Get(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, question, nil)
}

// List godoc
// @Summary List questions
// @Description List questions visible to the caller
// @Tags Questions
// @Produce json
// @Param status query string false "Comma separated statuses"
// @Param category_id query string false "Category filter"
// @Param language query string false "Language filter"
// @Param search query string false "Full text search"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /questions [get]
func (h *QuestionHandler) List(c *gin.Context) {
	query := dto.QuestionQuery{
		CategoryID: c.Query("category_id"),
		Language:   models.QuestionLanguage(c.Query("language")),
		Search:     c.Query("search"),
		Page:       queryInt(c, "page", 1),
		PageSize:   queryInt(c, "page_size", 20),
	}
	if raw := c.Query("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			status := models.QuestionStatus(strings.ToUpper(strings.TrimSpace(s)))
			if models.ValidQuestionStatus(status) {
				query.Status = append(query.Status, status)
			}
		}
	}

	questions, pagination, err := h.questions.List(c.Request.Context(), claimsFromContext(c), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, questions, pagination)
}

// Backlog godoc
// @Summary Unassigned backlog
// @Description List approved questions awaiting assignment
// @Tags Assignment
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /questions/backlog [get]
func (h *QuestionHandler) Backlog(c *gin.Context) {
	questions, err := h.assignments.UnassignedBacklog(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, questions, nil)
}

// AssignedQueue godoc
// @Summary Scholar queue
// @Description List questions assigned to a scholar and still open
// @Tags Assignment
// @Produce json
// @Param id path string true "Scholar ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /scholars/{id}/queue [get]
func (h *QuestionHandler) AssignedQueue(c *gin.Context) {
	questions, err := h.assignments.ListAssigned(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, questions, nil)
}

// AnsweredQueue godoc
// @Summary Scholar history
// @Description List questions a scholar has answered
// @Tags Assignment
// @Produce json
// @Param id path string true "Scholar ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /scholars/{id}/answered [get]
func (h *QuestionHandler) AnsweredQueue(c *gin.Context) {
	questions, err := h.assignments.ListAnswered(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, questions, nil)
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
