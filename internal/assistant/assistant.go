// Package assistant wraps the chat-completion API with the typed operations
// the conversation pipeline needs. Every call is timeout-bound; callers decide
// how to degrade when an operation fails.
package assistant

import (
	"context"
	"fmt"
	"strings"
	"time"

	"rental_portal_backend/platform/ai/llmapi"
	"rental_portal_backend/platform/config"
	"rental_portal_backend/platform/logger"
)

// completer is the slice of llmapi.Client the service uses. Tests substitute
// a fake.
type completer interface {
	Complete(ctx context.Context, messages []llmapi.Message, temperature float64) (string, error)
}

// PropertyContext is what the model knows about the property when replying.
type PropertyContext struct {
	Address   string
	OwnerName string
	Amenities map[string]any
	Rules     map[string]any
}

// TenantContext is what the model knows about the sender.
type TenantContext struct {
	Name string
	Unit string
}

// Exchange is one prior inbound message and the reply that was sent.
type Exchange struct {
	Inbound string
	Reply   string
}

// ReplyInput carries everything the reply generator sees for one message.
type ReplyInput struct {
	Property   PropertyContext
	Tenant     TenantContext
	History    []Exchange
	NewMessage string
	Channel    string
}

// EscalationAssessment is the model's judgment of whether a conversation
// needs a human manager.
type EscalationAssessment struct {
	IsEscalating bool    `json:"is_escalating"`
	Confidence   float64 `json:"confidence"`
	Reasoning    string  `json:"reasoning"`
}

// Categorization labels a thread with a topic and optional subtopic.
type Categorization struct {
	Topic    string `json:"topic"`
	Subtopic string `json:"subtopic"`
}

// SimilarityScore relates two threads of the same tenant.
type SimilarityScore struct {
	Confidence   float64 `json:"confidence"`
	Relationship string  `json:"relationship"`
}

// Service exposes the assistant operations. NewService returns nil when no
// API key is configured; methods on a nil service return an error so callers
// fall back the same way they do for a failed call.
type Service struct {
	client  completer
	timeout time.Duration
	log     *logger.Logger
}

// NewService builds the assistant from config, or nil when disabled.
func NewService(cfg config.AssistantConfig, log *logger.Logger) *Service {
	if !cfg.IsAssistantEnabled() {
		return nil
	}
	client := llmapi.NewClient(llmapi.Config{
		APIKey:  cfg.GetAssistantAPIKey(),
		BaseURL: cfg.GetAssistantBaseURL(),
		Model:   cfg.GetAssistantModel(),
		Timeout: cfg.GetAssistantTimeout(),
	})
	return &Service{client: client, timeout: cfg.GetAssistantTimeout(), log: log}
}

func (s *Service) complete(ctx context.Context, system, user string, temperature float64) (string, error) {
	if s == nil {
		return "", fmt.Errorf("assistant not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	return s.client.Complete(ctx, []llmapi.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}, temperature)
}

// GenerateReply produces the property-manager reply for a new inbound
// message. The raw output may contain structured action blocks; the intake
// pipeline extracts and strips them.
func (s *Service) GenerateReply(ctx context.Context, input ReplyInput) (string, error) {
	reply, err := s.complete(ctx, replySystemPrompt, buildReplyPrompt(input), 0.7)
	if err != nil {
		return "", fmt.Errorf("generate reply: %w", err)
	}
	return strings.TrimSpace(reply), nil
}

// AssessEscalation scores the recent messages of a thread for escalation
// signals. On failure the caller treats the thread as not escalating.
func (s *Service) AssessEscalation(ctx context.Context, messages []string) (EscalationAssessment, error) {
	raw, err := s.complete(ctx, escalationSystemPrompt, joinNumbered(messages), 0.2)
	if err != nil {
		return EscalationAssessment{}, fmt.Errorf("assess escalation: %w", err)
	}

	var out EscalationAssessment
	if err := decodeLoose(raw, &out); err != nil {
		return EscalationAssessment{}, fmt.Errorf("parse escalation assessment: %w", err)
	}
	if out.Confidence < 0 {
		out.Confidence = 0
	}
	if out.Confidence > 1 {
		out.Confidence = 1
	}
	return out, nil
}

// Categorize assigns a topic and subtopic to a thread's messages.
func (s *Service) Categorize(ctx context.Context, messages []string) (Categorization, error) {
	raw, err := s.complete(ctx, categorizeSystemPrompt, joinNumbered(messages), 0.2)
	if err != nil {
		return Categorization{}, fmt.Errorf("categorize thread: %w", err)
	}

	var out Categorization
	if err := decodeLoose(raw, &out); err != nil {
		return Categorization{}, fmt.Errorf("parse categorization: %w", err)
	}
	return out, nil
}

// Summarize produces a short plain-text summary of a thread.
func (s *Service) Summarize(ctx context.Context, messages []string) (string, error) {
	summary, err := s.complete(ctx, summarizeSystemPrompt, joinNumbered(messages), 0.3)
	if err != nil {
		return "", fmt.Errorf("summarize thread: %w", err)
	}
	return strings.TrimSpace(summary), nil
}

// ScoreSimilarity judges whether two thread summaries describe related
// conversations.
func (s *Service) ScoreSimilarity(ctx context.Context, a, b string) (SimilarityScore, error) {
	user := fmt.Sprintf("Thread A:\n%s\n\nThread B:\n%s", a, b)
	raw, err := s.complete(ctx, similaritySystemPrompt, user, 0.2)
	if err != nil {
		return SimilarityScore{}, fmt.Errorf("score similarity: %w", err)
	}

	var out SimilarityScore
	if err := decodeLoose(raw, &out); err != nil {
		return SimilarityScore{}, fmt.Errorf("parse similarity score: %w", err)
	}
	if out.Confidence < 0 {
		out.Confidence = 0
	}
	if out.Confidence > 1 {
		out.Confidence = 1
	}
	return out, nil
}

func joinNumbered(messages []string) string {
	var b strings.Builder
	for i, m := range messages {
		fmt.Fprintf(&b, "%d. %s\n", i+1, m)
	}
	return b.String()
}
