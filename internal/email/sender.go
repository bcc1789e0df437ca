// Package email provides outbound email delivery for the CRM.
// Two transports are supported: the Brevo HTTP API and direct SMTP.
// Both render the same embedded HTML templates.
package email

import (
	"context"
	"fmt"

	"granite_crm_backend/platform/config"
)

// Attachment represents a file attachment for an email.
type Attachment struct {
	Content  []byte // raw file bytes (will be base64-encoded for Brevo)
	FileName string // e.g. "estimate-EST-2026-0042.pdf"
	MIMEType string // e.g. "application/pdf"
}

// Sender delivers transactional email to leads and clients.
type Sender interface {
	SendWelcomeEmail(ctx context.Context, toEmail, name string) error
	SendConsultationEmail(ctx context.Context, toEmail, name string) error
	SendFollowUpEmail(ctx context.Context, toEmail, name string) error
	SendOfferEmail(ctx context.Context, toEmail, name string) error
	SendEstimateEmail(ctx context.Context, toEmail, clientName, estimateNumber, estimateURL string, totalCents int64, attachments ...Attachment) error
	SendEstimateReminderEmail(ctx context.Context, toEmail, clientName, estimateNumber, estimateURL string) error
	SendContractEmail(ctx context.Context, toEmail, clientName, contractNumber, contractURL string, totalCents int64, attachments ...Attachment) error
	SendContractSignedEmail(ctx context.Context, toEmail, clientName, contractNumber, contractURL string, totalCents int64, attachments ...Attachment) error
	SendCustomEmail(ctx context.Context, toEmail, subject, htmlContent string) error
}

// Nurture sequence email kinds as stored on scheduled notifications.
const (
	KindWelcome          = "welcome"
	KindConsultation     = "consultation"
	KindFollowUp         = "follow_up"
	KindOffer            = "offer"
	KindEstimateReminder = "estimate_reminder"
)

// SendByKind routes a scheduled notification kind to the matching Sender
// method. Unknown kinds are an error so bad outbox rows surface instead of
// silently succeeding.
func SendByKind(ctx context.Context, sender Sender, kind, toEmail, name string) error {
	switch kind {
	case KindWelcome:
		return sender.SendWelcomeEmail(ctx, toEmail, name)
	case KindConsultation:
		return sender.SendConsultationEmail(ctx, toEmail, name)
	case KindFollowUp:
		return sender.SendFollowUpEmail(ctx, toEmail, name)
	case KindOffer:
		return sender.SendOfferEmail(ctx, toEmail, name)
	default:
		return fmt.Errorf("unknown email kind %q", kind)
	}
}

// NoopSender discards all email. Used when email delivery is disabled.
type NoopSender struct{}

func (NoopSender) SendWelcomeEmail(ctx context.Context, toEmail, name string) error { return nil }

func (NoopSender) SendConsultationEmail(ctx context.Context, toEmail, name string) error { return nil }

func (NoopSender) SendFollowUpEmail(ctx context.Context, toEmail, name string) error { return nil }

func (NoopSender) SendOfferEmail(ctx context.Context, toEmail, name string) error { return nil }

func (NoopSender) SendEstimateEmail(ctx context.Context, toEmail, clientName, estimateNumber, estimateURL string, totalCents int64, attachments ...Attachment) error {
	return nil
}

func (NoopSender) SendEstimateReminderEmail(ctx context.Context, toEmail, clientName, estimateNumber, estimateURL string) error {
	return nil
}

func (NoopSender) SendContractEmail(ctx context.Context, toEmail, clientName, contractNumber, contractURL string, totalCents int64, attachments ...Attachment) error {
	return nil
}

func (NoopSender) SendContractSignedEmail(ctx context.Context, toEmail, clientName, contractNumber, contractURL string, totalCents int64, attachments ...Attachment) error {
	return nil
}

func (NoopSender) SendCustomEmail(ctx context.Context, toEmail, subject, htmlContent string) error {
	return nil
}

// NewSender selects a transport from configuration. Brevo wins when an API
// key is present, then SMTP; with email disabled everything goes to the noop.
func NewSender(cfg config.EmailConfig) (Sender, error) {
	if !cfg.GetEmailEnabled() {
		return NoopSender{}, nil
	}

	if cfg.GetBrevoAPIKey() != "" {
		return NewBrevoSender(cfg), nil
	}

	if cfg.GetSMTPHost() != "" {
		return NewSMTPSender(cfg), nil
	}

	return NoopSender{}, nil
}
