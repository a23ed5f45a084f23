package threads

import (
	apphttp "rental_portal_backend/internal/http"
	"rental_portal_backend/platform/validator"
)

// Module is the thread lifecycle bounded context implementing http.Module.
type Module struct {
	handler *Handler
	service *Service
	sweeper *Sweeper
}

// NewModule creates the threads module.
func NewModule(service *Service, sweeper *Sweeper, val *validator.Validator) *Module {
	return &Module{
		handler: NewHandler(service, val),
		service: service,
		sweeper: sweeper,
	}
}

// Service exposes the lifecycle manager for cross-module wiring.
func (m *Module) Service() *Service {
	return m.service
}

// Sweeper exposes the auto-closure sweeper for the scheduler binary.
func (m *Module) Sweeper() *Sweeper {
	return m.sweeper
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "threads"
}

// RegisterRoutes mounts thread lifecycle routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.V1.Group("/threads")
	group.GET("/:threadId", m.handler.HandleGetThread)
	group.GET("/:threadId/messages", m.handler.HandleListMessages)
	group.GET("/:threadId/events", m.handler.HandleListEvents)
	group.GET("/:threadId/relationships", m.handler.HandleListRelationships)
	group.POST("/:threadId/close", m.handler.HandleClose)
	group.POST("/:threadId/reopen", m.handler.HandleReopen)
	group.POST("/:threadId/merge", m.handler.HandleMerge)
	group.POST("/:threadId/escalation-check", m.handler.HandleEscalationCheck)
	group.POST("/:threadId/categorize", m.handler.HandleCategorize)
	group.POST("/:threadId/summarize", m.handler.HandleSummarize)
	group.POST("/:threadId/relationships/discover", m.handler.HandleDiscoverRelationships)

	ctx.V1.GET("/tenants/:tenantId/threads", m.handler.HandleListTenantThreads)
}

var _ apphttp.Module = (*Module)(nil)
