// Package email delivers outbound mail over SMTP via go-mail.
package email

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"time"

	gomail "github.com/wneessen/go-mail"

	"rental_portal_backend/platform/config"
)

// Attachment is a file included with an outbound email.
type Attachment struct {
	FileName string
	Content  []byte
}

// Sender delivers rendered emails through the configured SMTP server.
// NewSender returns nil when email is not configured; methods are nil-safe.
type Sender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
}

// NewSender creates a Sender from config, or nil when email is disabled.
func NewSender(cfg config.SMTPConfig) *Sender {
	if !cfg.IsEmailEnabled() {
		return nil
	}
	return &Sender{
		host:      cfg.GetSMTPHost(),
		port:      cfg.GetSMTPPort(),
		username:  cfg.GetSMTPUsername(),
		password:  cfg.GetSMTPPassword(),
		fromName:  cfg.GetEmailFromName(),
		fromEmail: cfg.GetEmailFromAddress(),
	}
}

func (s *Sender) send(ctx context.Context, toEmail, subject, htmlContent string, attachments ...Attachment) error {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, htmlContent)

	for _, att := range attachments {
		msg.AttachReader(att.FileName, bytes.NewReader(att.Content))
	}

	client, err := gomail.NewClient(s.host,
		gomail.WithPort(s.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.username),
		gomail.WithPassword(s.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	return nil
}

// SendTenantReply delivers an assistant reply to a tenant who wrote in by email.
func (s *Sender) SendTenantReply(ctx context.Context, toEmail, propertyAddress, body string) error {
	if s == nil {
		return fmt.Errorf("email transport not configured")
	}
	content, err := renderEmailTemplate("tenant_reply.html", tenantReplyEmailData{
		baseEmailData: baseEmailData{
			Title:   subjectTenantReply,
			Heading: subjectTenantReply,
		},
		PropertyAddress: propertyAddress,
		Body:            body,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subjectTenantReply, content)
}

// SendOwnerAlert notifies a property owner about tenant activity that needs
// their attention.
func (s *Sender) SendOwnerAlert(ctx context.Context, toEmail, ownerName, propertyAddress, urgency, message string) error {
	if s == nil {
		return fmt.Errorf("email transport not configured")
	}
	subject := fmt.Sprintf(subjectOwnerAlertFmt, propertyAddress)
	content, err := renderEmailTemplate("owner_alert.html", ownerAlertEmailData{
		baseEmailData: baseEmailData{
			Title:   subject,
			Heading: "Update about your property",
		},
		OwnerName:       ownerName,
		PropertyAddress: propertyAddress,
		Urgency:         urgency,
		Message:         message,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subject, content)
}

// SendEscalationAlert notifies the owner that a conversation was handed off
// for human follow-up.
func (s *Sender) SendEscalationAlert(ctx context.Context, toEmail, ownerName, propertyAddress, tenantName, reason string) error {
	if s == nil {
		return fmt.Errorf("email transport not configured")
	}
	subject := fmt.Sprintf(subjectEscalationFmt, propertyAddress)
	content, err := renderEmailTemplate("escalation_alert.html", escalationEmailData{
		baseEmailData: baseEmailData{
			Title:   subject,
			Heading: "A conversation needs your attention",
		},
		OwnerName:       ownerName,
		PropertyAddress: propertyAddress,
		TenantName:      tenantName,
		Reason:          reason,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subject, content)
}
