package intake

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"

	"rental_portal_backend/internal/assistant"
	"rental_portal_backend/internal/directory"
	"rental_portal_backend/internal/events"
	"rental_portal_backend/internal/threads"
	"rental_portal_backend/platform/logger"
)

// Inbound channels.
const (
	ChannelSMS   = "sms"
	ChannelEmail = "email"
	ChannelAPI   = "api"
)

// historyWindow is how many prior exchanges the reply generator sees.
const historyWindow = 10

// UnrecognizedSenderReply is returned when the sender cannot be resolved to a
// tenant. Nothing is persisted in that branch.
const UnrecognizedSenderReply = "Sorry, we don't recognize this contact. If you are a tenant, please reach out to your property manager to get your contact details registered."

// FallbackReply is used when reply generation fails; the tenant-facing
// channel never errors out.
const FallbackReply = "Thanks for your message. We're having a brief technical issue on our side, but a member of the management team will follow up with you shortly."

// InboundMessage is one raw message from any channel.
type InboundMessage struct {
	Channel           string
	From              string
	Subject           string
	Body              string
	ProviderMessageID string
	Attachments       []Attachment
}

// Attachment is an inbound file, already fetched from the provider.
type Attachment struct {
	FileName    string
	ContentType string
	Content     []byte
}

// StoredAttachment is what gets recorded on the message after upload.
type StoredAttachment struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	FileKey     string `json:"fileKey"`
}

// Result is the execution summary for one inbound message.
type Result struct {
	Unrecognized      bool
	NewThread         bool
	ThreadID          uuid.UUID
	MessageID         uuid.UUID
	Reply             string
	Actions           []ExecutionResult
	DuplicatesDropped int
}

type replyGenerator interface {
	GenerateReply(ctx context.Context, input assistant.ReplyInput) (string, error)
}

type attachmentStore interface {
	StoreAttachment(ctx context.Context, threadID, fileName, contentType string, r io.Reader, size int64) (string, error)
}

// analysisEnqueuer schedules the post-intake background analysis of a thread.
type analysisEnqueuer interface {
	EnqueueThreadAnalysis(ctx context.Context, threadID uuid.UUID) error
	EnqueueEscalationCheck(ctx context.Context, threadID uuid.UUID) error
}

// replyMailer delivers the generated reply back to a tenant who wrote in by
// email. The email webhook's JSON ack carries the reply too, but the tenant
// reads their inbox, not our ack.
type replyMailer interface {
	SendTenantReply(ctx context.Context, toEmail, propertyAddress, body string) error
}

// Service is the Intake Coordinator.
type Service struct {
	directory *directory.Service
	threads   *threads.Service
	assistant replyGenerator
	executor  *Executor
	storage   attachmentStore
	tasks     analysisEnqueuer
	mailer    replyMailer
	bus       events.Bus
	log       *logger.Logger
}

// NewService wires the coordinator. assistant, storage and tasks may be nil;
// reply generation then always falls back, attachments are dropped with a
// warning and no background analysis is scheduled.
func NewService(dir *directory.Service, th *threads.Service, gen replyGenerator, ex *Executor, store attachmentStore, tasks analysisEnqueuer, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		directory: dir,
		threads:   th,
		assistant: gen,
		executor:  ex,
		storage:   store,
		tasks:     tasks,
		bus:       bus,
		log:       log,
	}
}

// SetAssistant injects the reply generator after construction.
func (s *Service) SetAssistant(gen replyGenerator) { s.assistant = gen }

// SetStorage injects the attachment store after construction.
func (s *Service) SetStorage(store attachmentStore) { s.storage = store }

// SetAnalysisEnqueuer injects the background task client after construction.
func (s *Service) SetAnalysisEnqueuer(tasks analysisEnqueuer) { s.tasks = tasks }

// SetReplyMailer injects the outbound email transport after construction.
// Without it, email replies are only returned in the webhook ack.
func (s *Service) SetReplyMailer(m replyMailer) { s.mailer = m }

// Process handles one inbound message end to end and returns the execution
// summary. Only infrastructure failures (storage) surface as errors; an
// unresolvable sender or a failed model call are defined outcomes.
func (s *Service) Process(ctx context.Context, msg InboundMessage) (Result, error) {
	sender, err := s.directory.ResolveSender(ctx, msg.Channel, msg.From)
	if err != nil {
		if errors.Is(err, directory.ErrTenantNotFound) {
			s.log.Info("unrecognized sender", "channel", msg.Channel)
			return Result{Unrecognized: true, Reply: FormatForChannel(msg.Channel, UnrecognizedSenderReply)}, nil
		}
		return Result{}, fmt.Errorf("resolve sender: %w", err)
	}

	subject := msg.Subject
	if subject == "" {
		subject = summarizeSubject(msg.Body)
	}
	thread, created, err := s.threads.EnsureThread(ctx, sender.Tenant.ID, sender.Property.ID, subject, msg.Channel)
	if err != nil {
		return Result{}, err
	}

	history, err := s.threads.RecentMessages(ctx, thread.ID, historyWindow)
	if err != nil {
		return Result{}, err
	}

	rawReply := s.generateReply(ctx, sender, history, msg)
	actions, cleanReply := ExtractActions(rawReply, s.log)
	deduped, dropped := DedupeActions(actions)
	if dropped > 0 {
		s.log.Info("duplicate actions dropped", "threadId", thread.ID, "count", dropped)
	}

	stored, err := s.threads.AppendMessage(ctx, threads.Message{
		ThreadID:          thread.ID,
		TenantID:          sender.Tenant.ID,
		Channel:           msg.Channel,
		Body:              msg.Body,
		Reply:             cleanReply,
		Actions:           marshalActions(deduped),
		Attachments:       s.storeAttachments(ctx, thread.ID, msg.Attachments),
		ProviderMessageID: msg.ProviderMessageID,
	})
	if err != nil {
		return Result{}, fmt.Errorf("persist message: %w", err)
	}

	threadID := thread.ID
	messageID := stored.ID
	results := s.executor.ExecuteAll(ctx, deduped, ExecutionContext{
		TenantID:   sender.Tenant.ID,
		PropertyID: sender.Property.ID,
		ThreadID:   &threadID,
		MessageID:  &messageID,
		Property:   sender.Property,
		TenantName: sender.Tenant.FullName(),
	})

	if s.bus != nil {
		s.bus.Publish(ctx, events.MessageReceived{
			BaseEvent:  events.NewBaseEvent(),
			MessageID:  messageID,
			ThreadID:   threadID,
			TenantID:   sender.Tenant.ID,
			PropertyID: sender.Property.ID,
			Channel:    msg.Channel,
			NewThread:  created,
		})
	}
	s.enqueueAnalysis(ctx, threadID)
	s.deliverEmailReply(ctx, msg.Channel, sender, cleanReply)

	return Result{
		NewThread:         created,
		ThreadID:          threadID,
		MessageID:         messageID,
		Reply:             FormatForChannel(msg.Channel, cleanReply),
		Actions:           results,
		DuplicatesDropped: dropped,
	}, nil
}

func (s *Service) generateReply(ctx context.Context, sender directory.Sender, history []threads.Message, msg InboundMessage) string {
	if s.assistant == nil {
		return FallbackReply
	}

	input := assistant.ReplyInput{
		Property: assistant.PropertyContext{
			Address:   sender.Property.Address,
			OwnerName: sender.Property.OwnerName,
			Amenities: decodeJSONMap(sender.Property.Amenities),
			Rules:     decodeJSONMap(sender.Property.Rules),
		},
		Tenant: assistant.TenantContext{
			Name: sender.Tenant.FullName(),
			Unit: sender.Tenant.Unit,
		},
		NewMessage: msg.Body,
		Channel:    msg.Channel,
	}
	for _, m := range history {
		input.History = append(input.History, assistant.Exchange{Inbound: m.Body, Reply: m.Reply})
	}

	reply, err := s.assistant.GenerateReply(ctx, input)
	if err != nil || reply == "" {
		s.log.Warn("reply generation failed, using fallback", "error", err)
		return FallbackReply
	}
	return reply
}

// deliverEmailReply mails the generated reply back on the email channel. A
// failed send is logged, never surfaced; the webhook already acked.
func (s *Service) deliverEmailReply(ctx context.Context, channel string, sender directory.Sender, reply string) {
	if channel != ChannelEmail || s.mailer == nil {
		return
	}
	if sender.Tenant.Email == "" {
		s.log.Warn("tenant has no email on file, reply not delivered", "tenantId", sender.Tenant.ID)
		return
	}
	if err := s.mailer.SendTenantReply(ctx, sender.Tenant.Email, sender.Property.Address, FormatForChannel(ChannelEmail, reply)); err != nil {
		s.log.Warn("email reply delivery failed", "tenantId", sender.Tenant.ID, "error", err)
	}
}

func (s *Service) enqueueAnalysis(ctx context.Context, threadID uuid.UUID) {
	if s.tasks == nil {
		return
	}
	if err := s.tasks.EnqueueEscalationCheck(ctx, threadID); err != nil {
		s.log.Warn("enqueue escalation check failed", "threadId", threadID, "error", err)
	}
	if err := s.tasks.EnqueueThreadAnalysis(ctx, threadID); err != nil {
		s.log.Warn("enqueue thread analysis failed", "threadId", threadID, "error", err)
	}
}

// storeAttachments uploads inbound files and returns the JSON payload for
// the message row. Upload failures lose the file, not the message.
func (s *Service) storeAttachments(ctx context.Context, threadID uuid.UUID, attachments []Attachment) json.RawMessage {
	if s.storage == nil || len(attachments) == 0 {
		if len(attachments) > 0 {
			s.log.Warn("attachment storage not configured, dropping attachments", "count", len(attachments))
		}
		return nil
	}

	var stored []StoredAttachment
	for _, att := range attachments {
		key, err := s.storage.StoreAttachment(ctx, threadID.String(), att.FileName, att.ContentType,
			bytes.NewReader(att.Content), int64(len(att.Content)))
		if err != nil {
			s.log.Warn("attachment upload failed", "fileName", att.FileName, "error", err)
			continue
		}
		stored = append(stored, StoredAttachment{
			FileName:    att.FileName,
			ContentType: att.ContentType,
			FileKey:     key,
		})
	}
	if len(stored) == 0 {
		return nil
	}

	data, err := json.Marshal(stored)
	if err != nil {
		return nil
	}
	return data
}

func marshalActions(actions []Action) json.RawMessage {
	if len(actions) == 0 {
		return nil
	}
	type wireAction struct {
		Action      string `json:"action"`
		Description string `json:"description,omitempty"`
		Priority    string `json:"priority,omitempty"`
		Message     string `json:"message,omitempty"`
		Urgency     string `json:"urgency,omitempty"`
	}
	out := make([]wireAction, 0, len(actions))
	for _, a := range actions {
		w := wireAction{Action: a.Type}
		if a.Maintenance != nil {
			w.Description = a.Maintenance.Description
			w.Priority = a.Maintenance.Priority
		}
		if a.Alert != nil {
			w.Message = a.Alert.Message
			w.Urgency = a.Alert.Urgency
		}
		out = append(out, w)
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil
	}
	return data
}

func decodeJSONMap(raw json.RawMessage) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

// summarizeSubject derives a short subject line from the first message.
func summarizeSubject(body string) string {
	const max = 80
	runes := []rune(body)
	if len(runes) <= max {
		return body
	}
	return string(runes[:max-3]) + "..."
}
