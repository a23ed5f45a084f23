package intake

import (
	"context"
	"errors"
	"testing"

	"rental_portal_backend/internal/directory"
	"rental_portal_backend/platform/logger"
)

type fakeMailer struct {
	to      []string
	address []string
	bodies  []string
	err     error
}

func (f *fakeMailer) SendTenantReply(_ context.Context, toEmail, propertyAddress, body string) error {
	f.to = append(f.to, toEmail)
	f.address = append(f.address, propertyAddress)
	f.bodies = append(f.bodies, body)
	return f.err
}

func emailSender() directory.Sender {
	return directory.Sender{
		Tenant:   directory.Tenant{Email: "sam@example.com"},
		Property: directory.Property{Address: "12 Oak St"},
	}
}

func TestDeliverEmailReplyMailsTenant(t *testing.T) {
	mailer := &fakeMailer{}
	svc := &Service{mailer: mailer, log: logger.NewNop()}

	svc.deliverEmailReply(context.Background(), ChannelEmail, emailSender(), "The plumber is booked for Tuesday.")

	if len(mailer.to) != 1 {
		t.Fatalf("mailer calls = %d, want 1", len(mailer.to))
	}
	if mailer.to[0] != "sam@example.com" || mailer.address[0] != "12 Oak St" {
		t.Fatalf("delivery = to %q at %q", mailer.to[0], mailer.address[0])
	}
	if mailer.bodies[0] != "The plumber is booked for Tuesday." {
		t.Fatalf("body = %q", mailer.bodies[0])
	}
}

func TestDeliverEmailReplySkipsOtherChannels(t *testing.T) {
	mailer := &fakeMailer{}
	svc := &Service{mailer: mailer, log: logger.NewNop()}

	svc.deliverEmailReply(context.Background(), ChannelSMS, emailSender(), "reply")
	svc.deliverEmailReply(context.Background(), ChannelAPI, emailSender(), "reply")

	if len(mailer.to) != 0 {
		t.Fatalf("mailer calls = %d, want 0", len(mailer.to))
	}
}

func TestDeliverEmailReplyWithoutMailerOrAddress(t *testing.T) {
	// No mailer configured: nothing to do, nothing to panic on.
	svc := &Service{log: logger.NewNop()}
	svc.deliverEmailReply(context.Background(), ChannelEmail, emailSender(), "reply")

	// Tenant without an email on file is skipped.
	mailer := &fakeMailer{}
	svc = &Service{mailer: mailer, log: logger.NewNop()}
	svc.deliverEmailReply(context.Background(), ChannelEmail, directory.Sender{}, "reply")
	if len(mailer.to) != 0 {
		t.Fatalf("mailer calls = %d, want 0", len(mailer.to))
	}
}

func TestDeliverEmailReplySwallowsTransportError(t *testing.T) {
	mailer := &fakeMailer{err: errors.New("smtp down")}
	svc := &Service{mailer: mailer, log: logger.NewNop()}

	// Must not panic or surface; the webhook has already acked.
	svc.deliverEmailReply(context.Background(), ChannelEmail, emailSender(), "reply")
	if len(mailer.to) != 1 {
		t.Fatalf("mailer calls = %d, want 1", len(mailer.to))
	}
}
