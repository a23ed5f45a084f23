package notify

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apphttp "rental_portal_backend/internal/http"
	"rental_portal_backend/platform/httpkit"
)

// Module exposes the delivery history and owns the notification router.
type Module struct {
	repo   *Repository
	router *Router
}

// NewModule creates the notify module.
func NewModule(repo *Repository, router *Router) *Module {
	return &Module{repo: repo, router: router}
}

// Router exposes the notification router for cross-module wiring.
func (m *Module) Router() *Router {
	return m.router
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "notify"
}

// RegisterRoutes mounts the operator delivery-history endpoint.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.V1.GET("/notifications", m.handleList)
}

func (m *Module) handleList(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	notifications, err := m.repo.List(c.Request.Context(), limit)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}

	out := make([]gin.H, 0, len(notifications))
	for _, n := range notifications {
		out = append(out, gin.H{
			"id":        n.ID,
			"recipient": n.Recipient,
			"subject":   n.Subject,
			"channel":   n.Channel,
			"priority":  n.Priority,
			"status":    n.Status,
			"error":     n.Error,
			"createdAt": n.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"notifications": out})
}

var _ apphttp.Module = (*Module)(nil)
