package maintenance

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apphttp "rental_portal_backend/internal/http"
	"rental_portal_backend/platform/apperr"
	"rental_portal_backend/platform/httpkit"
	"rental_portal_backend/platform/validator"
)

// Module exposes the operator surface for maintenance requests.
type Module struct {
	service   *Service
	validator *validator.Validator
}

// NewModule creates the maintenance module.
func NewModule(service *Service, val *validator.Validator) *Module {
	return &Module{service: service, validator: val}
}

// Service exposes the maintenance service for cross-module wiring.
func (m *Module) Service() *Service {
	return m.service
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "maintenance"
}

// RegisterRoutes mounts maintenance routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.V1.Group("/maintenance")
	group.GET("/requests/:requestId", m.handleGet)
	group.PATCH("/requests/:requestId", m.handleUpdateStatus)
	ctx.V1.GET("/properties/:propertyId/maintenance", m.handleListByProperty)
}

func (m *Module) handleGet(c *gin.Context) {
	id, err := uuid.Parse(c.Param("requestId"))
	if err != nil {
		httpkit.HandleError(c, apperr.BadRequest("invalid request id"))
		return
	}

	req, err := m.service.Get(c.Request.Context(), id)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, requestResponse(req))
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=open in_progress resolved cancelled"`
}

func (m *Module) handleUpdateStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("requestId"))
	if err != nil {
		httpkit.HandleError(c, apperr.BadRequest("invalid request id"))
		return
	}

	var body updateStatusRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		httpkit.HandleError(c, apperr.BadRequest("invalid request body"))
		return
	}
	if err := m.validator.Struct(body); err != nil {
		httpkit.HandleError(c, apperr.Validation(err.Error()))
		return
	}

	req, err := m.service.UpdateStatus(c.Request.Context(), id, body.Status)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, requestResponse(req))
}

func (m *Module) handleListByProperty(c *gin.Context) {
	propertyID, err := uuid.Parse(c.Param("propertyId"))
	if err != nil {
		httpkit.HandleError(c, apperr.BadRequest("invalid property id"))
		return
	}

	requests, err := m.service.ListByProperty(c.Request.Context(), propertyID, c.Query("status"))
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}

	out := make([]gin.H, 0, len(requests))
	for _, req := range requests {
		out = append(out, requestResponse(req))
	}
	c.JSON(http.StatusOK, gin.H{"requests": out})
}

func requestResponse(req Request) gin.H {
	return gin.H{
		"id":          req.ID,
		"propertyId":  req.PropertyID,
		"tenantId":    req.TenantID,
		"threadId":    req.ThreadID,
		"description": req.Description,
		"priority":    req.Priority,
		"status":      req.Status,
		"resolvedAt":  req.ResolvedAt,
		"createdAt":   req.CreatedAt,
	}
}

var _ apphttp.Module = (*Module)(nil)
