// Package directory provides the tenant/property bounded context module.
package directory

import (
	apphttp "rental_portal_backend/internal/http"
	"rental_portal_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the directory bounded context module implementing http.Module.
type Module struct {
	handler *Handler
	service *Service
}

// NewModule creates and initializes the directory module with all its dependencies.
func NewModule(pool *pgxpool.Pool, val *validator.Validator) *Module {
	repo := New(pool)
	service := NewService(repo)
	handler := NewHandler(service, val)

	return &Module{
		handler: handler,
		service: service,
	}
}

// Service exposes the directory service for cross-module wiring.
func (m *Module) Service() *Service {
	return m.service
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "directory"
}

// RegisterRoutes mounts directory routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	properties := ctx.V1.Group("/properties")
	properties.POST("", m.handler.HandleCreateProperty)
	properties.GET("", m.handler.HandleListProperties)
	properties.GET("/:propertyId/tenants", m.handler.HandleListTenants)

	tenants := ctx.V1.Group("/tenants")
	tenants.POST("", m.handler.HandleCreateTenant)
	tenants.GET("/:tenantId", m.handler.HandleGetTenant)
	tenants.PATCH("/:tenantId", m.handler.HandleUpdateTenantContact)
	tenants.DELETE("/:tenantId", m.handler.HandleDeleteTenant)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
