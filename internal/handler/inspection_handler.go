package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/javandres/bultti-inspections-api/internal/dto"
	"github.com/javandres/bultti-inspections-api/internal/models"
	"github.com/javandres/bultti-inspections-api/internal/notify"
	appErrors "github.com/javandres/bultti-inspections-api/pkg/errors"
	"github.com/javandres/bultti-inspections-api/pkg/response"
)

type inspectionService interface {
	Create(ctx context.Context, req dto.CreateInspectionRequest, claims *models.JWTClaims) (*models.Inspection, error)
	Get(ctx context.Context, id string, claims *models.JWTClaims) (*models.Inspection, error)
	List(ctx context.Context, query dto.InspectionQuery, claims *models.JWTClaims) ([]models.Inspection, *models.Pagination, error)
	Update(ctx context.Context, id string, req dto.UpdateInspectionRequest, claims *models.JWTClaims) (*models.Inspection, error)
	Submit(ctx context.Context, id string, req dto.SubmitInspectionRequest, claims *models.JWTClaims) (*models.Inspection, error)
	MakeSanctionable(ctx context.Context, id string, claims *models.JWTClaims) (*models.Inspection, error)
	AbandonSanctions(ctx context.Context, id string, claims *models.JWTClaims) (*models.Inspection, error)
	Accept(ctx context.Context, id string, party models.AcceptanceParty, claims *models.JWTClaims) (*models.Inspection, error)
	Publish(ctx context.Context, id string, claims *models.JWTClaims) (*models.Inspection, error)
	Reject(ctx context.Context, id string, claims *models.JWTClaims) (*models.Inspection, error)
	Remove(ctx context.Context, id string, claims *models.JWTClaims) error
	UpdateLinkedInspections(ctx context.Context, id string, claims *models.JWTClaims) (*models.Inspection, error)
	InEffect(ctx context.Context, query dto.InEffectQuery) (*dto.InEffectResponse, error)
}

type eventSource interface {
	Subscribe(inspectionID string) (<-chan models.InspectionEvent, func())
}

// InspectionHandler exposes REST endpoints for the inspection lifecycle.
type InspectionHandler struct {
	service inspectionService
	events  eventSource
}

// NewInspectionHandler constructs the handler. The event source may be nil
// when the instance does not serve event streams.
func NewInspectionHandler(service inspectionService, events eventSource) *InspectionHandler {
	return &InspectionHandler{service: service, events: events}
}

// Create godoc
// @Summary Open a new draft inspection
// @Tags Inspections
// @Accept json
// @Produce json
// @Param payload body dto.CreateInspectionRequest true "Inspection payload"
// @Success 201 {object} response.Envelope
// @Router /inspections [post]
func (h *InspectionHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateInspectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid inspection payload"))
		return
	}
	inspection, err := h.service.Create(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, inspection, nil)
}

// List godoc
// @Summary List inspections
// @Tags Inspections
// @Produce json
// @Param operatorId query int false "Operator ID"
// @Param seasonId query string false "Season ID"
// @Param documentType query string false "PRE or POST"
// @Param status query string false "Comma separated statuses"
// @Param page query int false "Page number"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /inspections [get]
func (h *InspectionHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	query := dto.InspectionQuery{
		SeasonID: strings.TrimSpace(c.Query("seasonId")),
	}
	if raw := c.Query("operatorId"); raw != "" {
		operatorID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid operatorId"))
			return
		}
		query.OperatorID = &operatorID
	}
	if raw := c.Query("documentType"); raw != "" {
		query.DocumentType = models.DocumentType(strings.ToUpper(raw))
	}
	if raw := c.Query("status"); raw != "" {
		parts := strings.Split(raw, ",")
		statuses := make([]models.InspectionStatus, 0, len(parts))
		for _, part := range parts {
			part = strings.ToUpper(strings.TrimSpace(part))
			if part == "" {
				continue
			}
			statuses = append(statuses, models.InspectionStatus(part))
		}
		query.Status = statuses
	}
	query.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	query.PageSize, _ = strconv.Atoi(c.DefaultQuery("pageSize", "20"))

	inspections, pagination, err := h.service.List(c.Request.Context(), query, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, inspections, pagination)
}

// Get godoc
// @Summary Get inspection detail
// @Tags Inspections
// @Produce json
// @Param id path string true "Inspection ID"
// @Success 200 {object} response.Envelope
// @Router /inspections/{id} [get]
func (h *InspectionHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	inspection, err := h.service.Get(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, inspection, nil)
}

// Update godoc
// @Summary Edit inspection fields
// @Tags Inspections
// @Accept json
// @Produce json
// @Param id path string true "Inspection ID"
// @Param payload body dto.UpdateInspectionRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Router /inspections/{id} [patch]
func (h *InspectionHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.UpdateInspectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid update payload"))
		return
	}
	inspection, err := h.service.Update(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, inspection, nil)
}

// Submit godoc
// @Summary Submit an inspection for review
// @Tags Lifecycle
// @Accept json
// @Produce json
// @Param id path string true "Inspection ID"
// @Param payload body dto.SubmitInspectionRequest true "Production validity window"
// @Success 200 {object} response.Envelope
// @Router /inspections/{id}/submit [post]
func (h *InspectionHandler) Submit(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.SubmitInspectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid submit payload"))
		return
	}
	inspection, err := h.service.Submit(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, inspection, nil)
}

// MakeSanctionable godoc
// @Summary Move a draft post inspection to sanctionable
// @Tags Lifecycle
// @Produce json
// @Param id path string true "Inspection ID"
// @Success 200 {object} response.Envelope
// @Router /inspections/{id}/sanctionable [post]
func (h *InspectionHandler) MakeSanctionable(c *gin.Context) {
	h.transition(c, h.service.MakeSanctionable)
}

// AbandonSanctions godoc
// @Summary Return a sanctionable post inspection to draft
// @Tags Lifecycle
// @Produce json
// @Param id path string true "Inspection ID"
// @Success 200 {object} response.Envelope
// @Router /inspections/{id}/abandon-sanctions [post]
func (h *InspectionHandler) AbandonSanctions(c *gin.Context) {
	h.transition(c, h.service.AbandonSanctions)
}

// Accept godoc
// @Summary Record one party's acceptance of a post inspection
// @Tags Lifecycle
// @Accept json
// @Produce json
// @Param id path string true "Inspection ID"
// @Param payload body dto.AcceptInspectionRequest true "Accepting party"
// @Success 200 {object} response.Envelope
// @Router /inspections/{id}/accept [post]
func (h *InspectionHandler) Accept(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.AcceptInspectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid accept payload"))
		return
	}
	inspection, err := h.service.Accept(c.Request.Context(), c.Param("id"), req.Party, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, inspection, nil)
}

// Publish godoc
// @Summary Publish an in-review inspection to production
// @Tags Lifecycle
// @Produce json
// @Param id path string true "Inspection ID"
// @Success 200 {object} response.Envelope
// @Router /inspections/{id}/publish [post]
func (h *InspectionHandler) Publish(c *gin.Context) {
	h.transition(c, h.service.Publish)
}

// Reject godoc
// @Summary Reject an in-review inspection back to draft
// @Tags Lifecycle
// @Produce json
// @Param id path string true "Inspection ID"
// @Success 200 {object} response.Envelope
// @Router /inspections/{id}/reject [post]
func (h *InspectionHandler) Reject(c *gin.Context) {
	h.transition(c, h.service.Reject)
}

// Remove godoc
// @Summary Delete an inspection and its dependent records
// @Tags Inspections
// @Param id path string true "Inspection ID"
// @Success 204
// @Router /inspections/{id} [delete]
func (h *InspectionHandler) Remove(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.Remove(c.Request.Context(), c.Param("id"), claims); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// UpdateLinkedInspections godoc
// @Summary Refresh a post inspection's linked pre inspections
// @Tags Linkage
// @Produce json
// @Param id path string true "Inspection ID"
// @Success 200 {object} response.Envelope
// @Router /inspections/{id}/linked-inspections [put]
func (h *InspectionHandler) UpdateLinkedInspections(c *gin.Context) {
	h.transition(c, h.service.UpdateLinkedInspections)
}

// InEffect godoc
// @Summary Resolve the version currently in effect for a key space
// @Tags Inspections
// @Produce json
// @Param operatorId query int true "Operator ID"
// @Param seasonId query string true "Season ID"
// @Param documentType query string true "PRE or POST"
// @Success 200 {object} response.Envelope
// @Router /inspections/in-effect [get]
func (h *InspectionHandler) InEffect(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var query dto.InEffectQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid in-effect query"))
		return
	}
	if claims.Role == models.RoleOperator && !claims.CanActForOperator(query.OperatorID) {
		response.Error(c, appErrors.ErrForbidden)
		return
	}
	resolved, err := h.service.InEffect(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resolved, nil)
}

// Events godoc
// @Summary Stream inspection status and error events
// @Tags Inspections
// @Produce text/event-stream
// @Param id path string true "Inspection ID"
// @Success 200 {string} string "event stream"
// @Router /inspections/{id}/events [get]
func (h *InspectionHandler) Events(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if h.events == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "event streaming not configured"))
		return
	}
	// Access check before upgrading to a stream.
	if _, err := h.service.Get(c.Request.Context(), c.Param("id"), claims); err != nil {
		response.Error(c, err)
		return
	}

	events, cancel := h.events.Subscribe(c.Param("id"))
	defer cancel()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	cursor := notify.NewCursor()
	for {
		select {
		case <-c.Request.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if !cursor.Apply(ev) {
				continue
			}
			c.SSEvent(string(ev.Kind), ev)
			c.Writer.Flush()
		}
	}
}

// transition runs a body-less lifecycle action.
func (h *InspectionHandler) transition(c *gin.Context, action func(ctx context.Context, id string, claims *models.JWTClaims) (*models.Inspection, error)) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	inspection, err := action(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, inspection, nil)
}
