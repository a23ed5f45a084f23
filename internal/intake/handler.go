package intake

import (
	"encoding/base64"
	"encoding/xml"
	"net/http"

	"github.com/gin-gonic/gin"

	"rental_portal_backend/platform/apperr"
	"rental_portal_backend/platform/httpkit"
	"rental_portal_backend/platform/logger"
	"rental_portal_backend/platform/validator"
)

// Handler exposes the inbound message surfaces: provider webhooks and the
// direct API channel. Webhook handlers always acknowledge with a 2xx once the
// caller is authenticated, so providers never retry-storm on our internal
// failures.
type Handler struct {
	service   *Service
	validator *validator.Validator
	log       *logger.Logger
}

// NewHandler creates the intake handler.
func NewHandler(service *Service, val *validator.Validator, log *logger.Logger) *Handler {
	return &Handler{service: service, validator: val, log: log}
}

// twimlResponse is the minimal TwiML document Twilio expects back; the
// message body becomes the SMS reply.
type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message,omitempty"`
}

// HandleSMSWebhook receives Twilio's inbound SMS form post and answers with
// TwiML carrying the generated reply.
func (h *Handler) HandleSMSWebhook(c *gin.Context) {
	from := c.PostForm("From")
	body := c.PostForm("Body")
	messageSID := c.PostForm("MessageSid")

	result, err := h.service.Process(c.Request.Context(), InboundMessage{
		Channel:           ChannelSMS,
		From:              from,
		Body:              body,
		ProviderMessageID: messageSID,
	})
	if err != nil {
		h.log.Error("sms intake failed", "error", err)
		c.XML(http.StatusOK, twimlResponse{Message: FormatForChannel(ChannelSMS, FallbackReply)})
		return
	}

	c.XML(http.StatusOK, twimlResponse{Message: result.Reply})
}

type emailWebhookRequest struct {
	From        string                   `json:"from" validate:"required"`
	Subject     string                   `json:"subject"`
	Text        string                   `json:"text" validate:"required"`
	MessageID   string                   `json:"messageId"`
	Attachments []emailWebhookAttachment `json:"attachments"`
}

type emailWebhookAttachment struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	Data        string `json:"data"`
}

// HandleEmailWebhook receives the inbound-email provider's JSON payload.
// Attachments arrive base64-encoded in the body.
func (h *Handler) HandleEmailWebhook(c *gin.Context) {
	var req emailWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// A malformed payload is the provider's fault, not an internal
		// failure; reject it so they can fix the integration.
		httpkit.HandleError(c, apperr.BadRequest("invalid webhook payload"))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpkit.HandleError(c, apperr.Validation(err.Error()))
		return
	}

	var attachments []Attachment
	for _, att := range req.Attachments {
		content, err := base64.StdEncoding.DecodeString(att.Data)
		if err != nil {
			h.log.Warn("undecodable attachment skipped", "fileName", att.FileName)
			continue
		}
		attachments = append(attachments, Attachment{
			FileName:    att.FileName,
			ContentType: att.ContentType,
			Content:     content,
		})
	}

	result, err := h.service.Process(c.Request.Context(), InboundMessage{
		Channel:           ChannelEmail,
		From:              req.From,
		Subject:           req.Subject,
		Body:              req.Text,
		ProviderMessageID: req.MessageID,
		Attachments:       attachments,
	})
	if err != nil {
		h.log.Error("email intake failed", "error", err)
		c.JSON(http.StatusOK, gin.H{"accepted": true, "reply": FallbackReply})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"accepted": true,
		"reply":    result.Reply,
		"threadId": nilIfUnrecognized(result),
	})
}

type apiMessageRequest struct {
	From string `json:"from" validate:"required"`
	Body string `json:"body" validate:"required"`
}

// HandleAPIMessage is the direct API channel. Unlike the webhooks it returns
// real error statuses and the full execution summary.
func (h *Handler) HandleAPIMessage(c *gin.Context) {
	var req apiMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.HandleError(c, apperr.BadRequest("invalid request body"))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpkit.HandleError(c, apperr.Validation(err.Error()))
		return
	}

	result, err := h.service.Process(c.Request.Context(), InboundMessage{
		Channel: ChannelAPI,
		From:    req.From,
		Body:    req.Body,
	})
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}

	if result.Unrecognized {
		c.JSON(http.StatusOK, gin.H{"recognized": false, "reply": result.Reply})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"recognized":        true,
		"threadId":          result.ThreadID,
		"messageId":         result.MessageID,
		"newThread":         result.NewThread,
		"reply":             result.Reply,
		"actions":           result.Actions,
		"duplicatesDropped": result.DuplicatesDropped,
	})
}

func nilIfUnrecognized(result Result) any {
	if result.Unrecognized {
		return nil
	}
	return result.ThreadID
}
