package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ilmhub/qa-api/internal/dto"
	"github.com/ilmhub/qa-api/internal/models"
	"github.com/ilmhub/qa-api/internal/service"
	appErrors "github.com/ilmhub/qa-api/pkg/errors"
	"github.com/ilmhub/qa-api/pkg/response"
)

// RoleRequestHandler exposes the role promotion workflow.
type RoleRequestHandler struct {
	service *service.RoleRequestService
}

// NewRoleRequestHandler creates a new handler.
func NewRoleRequestHandler(svc *service.RoleRequestService) *RoleRequestHandler {
	return &RoleRequestHandler{service: svc}
}

// Submit godoc
// @Summary Submit role request
// @Description Apply for an elevated role
// @Tags Role Requests
// @Accept json
// @Produce json
// @Param payload body dto.CreateRoleRequest true "Role request payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /role-requests [post]
func (h *RoleRequestHandler) Submit(c *gin.Context) {
	var req dto.CreateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid role request payload"))
		return
	}

	request, err := h.service.Submit(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, request)
}

// Approve godoc
// @Summary Approve role request
// @Description Grant the request and promote the user
// @Tags Role Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /role-requests/{id}/approve [post]
func (h *RoleRequestHandler) Approve(c *gin.Context) {
	request, err := h.service.Approve(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// Reject godoc
// @Summary Reject role request
// @Description Decline the request without changing the user's role
// @Tags Role Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /role-requests/{id}/reject [post]
func (h *RoleRequestHandler) Reject(c *gin.Context) {
	request, err := h.service.Reject(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// Get godoc
// @Summary Get role request
// @Tags Role Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /role-requests/{id} [get]
func (h *RoleRequestHandler) Get(c *gin.Context) {
	request, err := h.service.Get(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// List godoc
// @Summary List role requests
// @Description Admins see every request, other callers only their own
// @Tags Role Requests
// @Produce json
// @Param status query string false "Comma separated statuses"
// @Param limit query int false "Limit"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /role-requests [get]
func (h *RoleRequestHandler) List(c *gin.Context) {
	query := dto.RoleRequestQuery{
		Limit:  queryInt(c, "limit", 50),
		Offset: queryInt(c, "offset", 0),
	}
	if raw := c.Query("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			query.Status = append(query.Status, models.RoleRequestStatus(strings.ToUpper(strings.TrimSpace(s))))
		}
	}

	requests, err := h.service.List(c.Request.Context(), claimsFromContext(c), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, nil)
}
