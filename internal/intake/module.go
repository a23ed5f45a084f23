package intake

import (
	apphttp "rental_portal_backend/internal/http"
	"rental_portal_backend/platform/config"
	"rental_portal_backend/platform/logger"
	"rental_portal_backend/platform/validator"
)

// Module is the intake bounded context implementing http.Module.
type Module struct {
	handler     *Handler
	service     *Service
	webhookCfg  config.WebhookConfig
	twilioToken string
}

// NewModule creates the intake module. twilioToken is the decrypted auth
// token used for webhook signature verification; empty disables the SMS
// webhook in non-development environments.
func NewModule(service *Service, val *validator.Validator, webhookCfg config.WebhookConfig, twilioToken string, log *logger.Logger) *Module {
	return &Module{
		handler:     NewHandler(service, val, log),
		service:     service,
		webhookCfg:  webhookCfg,
		twilioToken: twilioToken,
	}
}

// Service exposes the coordinator for cross-module wiring.
func (m *Module) Service() *Service {
	return m.service
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "intake"
}

// RegisterRoutes mounts the webhook and API message surfaces. Webhooks get
// signature verification on top of the shared rate limiting.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Webhooks.POST("/sms", TwilioSignatureMiddleware(m.webhookCfg, m.twilioToken), m.handler.HandleSMSWebhook)
	ctx.Webhooks.POST("/email", EmailSignatureMiddleware(m.webhookCfg), m.handler.HandleEmailWebhook)

	ctx.V1.POST("/messages", m.handler.HandleAPIMessage)
}

var _ apphttp.Module = (*Module)(nil)
