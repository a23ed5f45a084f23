package threads

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"rental_portal_backend/platform/apperr"
	"rental_portal_backend/platform/httpkit"
	"rental_portal_backend/platform/validator"
)

// Handler exposes the thread lifecycle operations over HTTP.
type Handler struct {
	service   *Service
	validator *validator.Validator
}

// NewHandler creates the threads handler.
func NewHandler(service *Service, val *validator.Validator) *Handler {
	return &Handler{service: service, validator: val}
}

func threadID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("threadId"))
	if err != nil {
		httpkit.HandleError(c, apperr.BadRequest("invalid thread id"))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) HandleGetThread(c *gin.Context) {
	id, ok := threadID(c)
	if !ok {
		return
	}

	thread, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, threadResponse(thread))
}

func (h *Handler) HandleListTenantThreads(c *gin.Context) {
	tenantID, err := uuid.Parse(c.Param("tenantId"))
	if err != nil {
		httpkit.HandleError(c, apperr.BadRequest("invalid tenant id"))
		return
	}

	threads, err := h.service.ListByTenant(c.Request.Context(), tenantID)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}

	out := make([]gin.H, 0, len(threads))
	for _, t := range threads {
		out = append(out, threadResponse(t))
	}
	c.JSON(http.StatusOK, gin.H{"threads": out})
}

func (h *Handler) HandleListMessages(c *gin.Context) {
	id, ok := threadID(c)
	if !ok {
		return
	}

	messages, err := h.service.RecentMessages(c.Request.Context(), id, 100)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}

	out := make([]gin.H, 0, len(messages))
	for _, m := range messages {
		out = append(out, gin.H{
			"id":        m.ID,
			"channel":   m.Channel,
			"body":      m.Body,
			"reply":     m.Reply,
			"createdAt": m.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"messages": out})
}

func (h *Handler) HandleListEvents(c *gin.Context) {
	id, ok := threadID(c)
	if !ok {
		return
	}

	events, err := h.service.Events(c.Request.Context(), id)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}

	out := make([]gin.H, 0, len(events))
	for _, e := range events {
		out = append(out, gin.H{
			"id":        e.ID,
			"eventType": e.EventType,
			"payload":   e.Payload,
			"createdAt": e.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"events": out})
}

type closeThreadRequest struct {
	Reason string `json:"reason" validate:"required,min=3"`
}

func (h *Handler) HandleClose(c *gin.Context) {
	id, ok := threadID(c)
	if !ok {
		return
	}

	var body closeThreadRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		httpkit.HandleError(c, apperr.BadRequest("invalid request body"))
		return
	}
	if err := h.validator.Struct(body); err != nil {
		httpkit.HandleError(c, apperr.Validation(err.Error()))
		return
	}

	thread, err := h.service.Close(c.Request.Context(), id, body.Reason)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, threadResponse(thread))
}

func (h *Handler) HandleReopen(c *gin.Context) {
	id, ok := threadID(c)
	if !ok {
		return
	}

	thread, err := h.service.Reopen(c.Request.Context(), id)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, threadResponse(thread))
}

type mergeThreadRequest struct {
	TargetThreadID uuid.UUID `json:"targetThreadId" validate:"required"`
}

func (h *Handler) HandleMerge(c *gin.Context) {
	id, ok := threadID(c)
	if !ok {
		return
	}

	var body mergeThreadRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		httpkit.HandleError(c, apperr.BadRequest("invalid request body"))
		return
	}
	if body.TargetThreadID == uuid.Nil {
		httpkit.HandleError(c, apperr.Validation("targetThreadId is required"))
		return
	}

	moved, err := h.service.Merge(c.Request.Context(), id, body.TargetThreadID)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messagesMoved": moved, "targetThreadId": body.TargetThreadID})
}

func (h *Handler) HandleEscalationCheck(c *gin.Context) {
	id, ok := threadID(c)
	if !ok {
		return
	}

	assessment, err := h.service.CheckEscalation(c.Request.Context(), id)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"isEscalating": assessment.IsEscalating,
		"confidence":   assessment.Confidence,
		"reasoning":    assessment.Reasoning,
	})
}

func (h *Handler) HandleCategorize(c *gin.Context) {
	id, ok := threadID(c)
	if !ok {
		return
	}

	categorization, err := h.service.Categorize(c.Request.Context(), id)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"topic": categorization.Topic, "subtopic": categorization.Subtopic})
}

func (h *Handler) HandleSummarize(c *gin.Context) {
	id, ok := threadID(c)
	if !ok {
		return
	}

	summary, err := h.service.Summarize(c.Request.Context(), id)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": summary})
}

func (h *Handler) HandleDiscoverRelationships(c *gin.Context) {
	id, ok := threadID(c)
	if !ok {
		return
	}

	created, err := h.service.DiscoverRelationships(c.Request.Context(), id)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"relationships": relationshipResponses(created)})
}

func (h *Handler) HandleListRelationships(c *gin.Context) {
	id, ok := threadID(c)
	if !ok {
		return
	}

	relationships, err := h.service.Relationships(c.Request.Context(), id)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"relationships": relationshipResponses(relationships)})
}

func threadResponse(t Thread) gin.H {
	return gin.H{
		"id":                   t.ID,
		"tenantId":             t.TenantID,
		"propertyId":           t.PropertyID,
		"subject":              t.Subject,
		"channel":              t.Channel,
		"status":               t.Status,
		"topic":                t.Topic,
		"subtopic":             t.Subtopic,
		"summary":              t.Summary,
		"isEscalating":         t.IsEscalating,
		"escalationConfidence": t.EscalationConfidence,
		"escalationReasoning":  t.EscalationReasoning,
		"closureConfidence":    t.ClosureConfidence,
		"mergedFrom":           t.MergedFrom,
		"mergedInto":           t.MergedInto,
		"createdAt":            t.CreatedAt,
		"lastActivityAt":       t.LastActivityAt,
		"closedAt":             t.ClosedAt,
	}
}

func relationshipResponses(relationships []Relationship) []gin.H {
	out := make([]gin.H, 0, len(relationships))
	for _, rel := range relationships {
		out = append(out, gin.H{
			"id":               rel.ID,
			"threadA":          rel.ThreadA,
			"threadB":          rel.ThreadB,
			"relationshipType": rel.RelationshipType,
			"confidence":       rel.Confidence,
			"createdAt":        rel.CreatedAt,
		})
	}
	return out
}
