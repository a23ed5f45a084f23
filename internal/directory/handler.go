package directory

import (
	"encoding/json"
	"net/http"

	"rental_portal_backend/platform/httpkit"
	"rental_portal_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler exposes the thin CRUD surface over tenants and properties.
type Handler struct {
	service *Service
	val     *validator.Validator
}

// NewHandler creates the directory HTTP handler.
func NewHandler(service *Service, val *validator.Validator) *Handler {
	return &Handler{service: service, val: val}
}

type createTenantRequest struct {
	PropertyID string `json:"propertyId" validate:"required,uuid"`
	FirstName  string `json:"firstName" validate:"required"`
	LastName   string `json:"lastName"`
	Phone      string `json:"phone"`
	Email      string `json:"email" validate:"omitempty,email"`
	Unit       string `json:"unit"`
}

type updateTenantContactRequest struct {
	Phone string `json:"phone"`
	Email string `json:"email" validate:"omitempty,email"`
}

type createPropertyRequest struct {
	Name                     string          `json:"name" validate:"required"`
	Address                  string          `json:"address"`
	OwnerName                string          `json:"ownerName"`
	OwnerPhone               string          `json:"ownerPhone"`
	OwnerEmail               string          `json:"ownerEmail" validate:"omitempty,email"`
	Amenities                json.RawMessage `json:"amenities"`
	Rules                    json.RawMessage `json:"rules"`
	InactivityThresholdHours int             `json:"inactivityThresholdHours"`
}

func (h *Handler) HandleCreateTenant(c *gin.Context) {
	var req createTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	propertyID, _ := uuid.Parse(req.PropertyID)
	tenant, err := h.service.CreateTenant(c.Request.Context(), CreateTenantParams{
		PropertyID: propertyID,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Phone:      req.Phone,
		Email:      req.Email,
		Unit:       req.Unit,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, tenant)
}

func (h *Handler) HandleGetTenant(c *gin.Context) {
	id, err := uuid.Parse(c.Param("tenantId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid tenant id", nil)
		return
	}
	tenant, err := h.service.GetTenant(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, tenant)
}

func (h *Handler) HandleUpdateTenantContact(c *gin.Context) {
	id, err := uuid.Parse(c.Param("tenantId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid tenant id", nil)
		return
	}
	var req updateTenantContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	tenant, err := h.service.UpdateTenantContact(c.Request.Context(), id, req.Phone, req.Email)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, tenant)
}

func (h *Handler) HandleDeleteTenant(c *gin.Context) {
	id, err := uuid.Parse(c.Param("tenantId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid tenant id", nil)
		return
	}
	if httpkit.HandleError(c, h.service.DeleteTenant(c.Request.Context(), id)) {
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) HandleCreateProperty(c *gin.Context) {
	var req createPropertyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	property, err := h.service.CreateProperty(c.Request.Context(), CreatePropertyParams{
		Name:                     req.Name,
		Address:                  req.Address,
		OwnerName:                req.OwnerName,
		OwnerPhone:               req.OwnerPhone,
		OwnerEmail:               req.OwnerEmail,
		Amenities:                req.Amenities,
		Rules:                    req.Rules,
		InactivityThresholdHours: req.InactivityThresholdHours,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, property)
}

func (h *Handler) HandleListProperties(c *gin.Context) {
	properties, err := h.service.ListProperties(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, properties)
}

func (h *Handler) HandleListTenants(c *gin.Context) {
	propertyID, err := uuid.Parse(c.Param("propertyId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid property id", nil)
		return
	}
	tenants, err := h.service.ListTenantsByProperty(c.Request.Context(), propertyID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, tenants)
}
