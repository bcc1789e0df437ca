package email

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"time"

	"granite_crm_backend/platform/config"

	gomail "github.com/wneessen/go-mail"
)

// SMTPSender implements the Sender interface using a direct SMTP connection
// via go-mail. It renders the same HTML templates as BrevoSender but delivers
// through the shop's own SMTP server.
type SMTPSender struct {
	host         string
	port         int
	username     string
	password     string
	fromName     string
	fromEmail    string
	companyName  string
	companyPhone string
}

// NewSMTPSender creates an SMTPSender from email configuration.
func NewSMTPSender(cfg config.EmailConfig) *SMTPSender {
	return &SMTPSender{
		host:         cfg.GetSMTPHost(),
		port:         cfg.GetSMTPPort(),
		username:     cfg.GetSMTPUsername(),
		password:     cfg.GetSMTPPassword(),
		fromName:     cfg.GetEmailFromName(),
		fromEmail:    cfg.GetEmailFromAddress(),
		companyName:  cfg.GetCompanyName(),
		companyPhone: cfg.GetCompanyPhone(),
	}
}

func (s *SMTPSender) send(ctx context.Context, toEmail, subject, htmlContent string, attachments ...Attachment) error {
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

func (s *SMTPSender) SendWelcomeEmail(ctx context.Context, toEmail, name string) error {
	subject := fmt.Sprintf(subjectWelcome, s.companyName)
	content, err := renderEmailTemplate("welcome.html", welcomeEmailData{
		baseEmailData: baseEmailData{
			Title:   "We received your request",
			Heading: "We received your request",
		},
		Name:         name,
		CompanyName:  s.companyName,
		CompanyPhone: s.companyPhone,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subject, content)
}

func (s *SMTPSender) SendConsultationEmail(ctx context.Context, toEmail, name string) error {
	content, err := renderEmailTemplate("consultation.html", nurtureEmailData{
		baseEmailData: baseEmailData{
			Title:   "Your free design consultation",
			Heading: "Your free design consultation",
		},
		Name:         name,
		CompanyName:  s.companyName,
		CompanyPhone: s.companyPhone,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subjectConsultation, content)
}

func (s *SMTPSender) SendFollowUpEmail(ctx context.Context, toEmail, name string) error {
	content, err := renderEmailTemplate("follow_up.html", nurtureEmailData{
		baseEmailData: baseEmailData{
			Title:   "Still thinking it over?",
			Heading: "Still thinking it over?",
		},
		Name:         name,
		CompanyName:  s.companyName,
		CompanyPhone: s.companyPhone,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subjectFollowUp, content)
}

func (s *SMTPSender) SendOfferEmail(ctx context.Context, toEmail, name string) error {
	content, err := renderEmailTemplate("offer.html", nurtureEmailData{
		baseEmailData: baseEmailData{
			Title:   "A special offer for your project",
			Heading: "A special offer for your project",
		},
		Name:         name,
		CompanyName:  s.companyName,
		CompanyPhone: s.companyPhone,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subjectOffer, content)
}

func (s *SMTPSender) SendEstimateEmail(ctx context.Context, toEmail, clientName, estimateNumber, estimateURL string, totalCents int64, attachments ...Attachment) error {
	subject := fmt.Sprintf(subjectEstimateFmt, estimateNumber, s.companyName)
	content, err := renderEmailTemplate("estimate.html", estimateEmailData{
		baseEmailData: baseEmailData{
			Title:    "Your estimate is ready",
			Heading:  "Your estimate is ready",
			CTALabel: "View estimate",
			CTAURL:   estimateURL,
		},
		ClientName:     clientName,
		CompanyName:    s.companyName,
		EstimateNumber: estimateNumber,
		TotalFormatted: formatCurrencyUSD(totalCents),
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subject, content, attachments...)
}

func (s *SMTPSender) SendEstimateReminderEmail(ctx context.Context, toEmail, clientName, estimateNumber, estimateURL string) error {
	subject := fmt.Sprintf(subjectEstimateReminderFmt, estimateNumber)
	content, err := renderEmailTemplate("estimate_reminder.html", estimateReminderEmailData{
		baseEmailData: baseEmailData{
			Title:    "Your estimate is waiting",
			Heading:  "Your estimate is waiting",
			CTALabel: "View estimate",
			CTAURL:   estimateURL,
		},
		ClientName:     clientName,
		CompanyName:    s.companyName,
		EstimateNumber: estimateNumber,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subject, content)
}

func (s *SMTPSender) SendContractEmail(ctx context.Context, toEmail, clientName, contractNumber, contractURL string, totalCents int64, attachments ...Attachment) error {
	subject := fmt.Sprintf(subjectContractFmt, contractNumber, s.companyName)
	content, err := renderEmailTemplate("contract.html", contractEmailData{
		baseEmailData: baseEmailData{
			Title:    "Your contract is ready",
			Heading:  "Your contract is ready",
			CTALabel: "View contract",
			CTAURL:   contractURL,
		},
		ClientName:     clientName,
		CompanyName:    s.companyName,
		ContractNumber: contractNumber,
		TotalFormatted: formatCurrencyUSD(totalCents),
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subject, content, attachments...)
}

func (s *SMTPSender) SendContractSignedEmail(ctx context.Context, toEmail, clientName, contractNumber, contractURL string, totalCents int64, attachments ...Attachment) error {
	subject := fmt.Sprintf(subjectContractSignedFmt, contractNumber, s.companyName)
	content, err := renderEmailTemplate("contract_signed.html", contractEmailData{
		baseEmailData: baseEmailData{
			Title:    "Your contract is signed",
			Heading:  "Your contract is signed",
			CTALabel: "View signed contract",
			CTAURL:   contractURL,
		},
		ClientName:     clientName,
		CompanyName:    s.companyName,
		ContractNumber: contractNumber,
		TotalFormatted: formatCurrencyUSD(totalCents),
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subject, content, attachments...)
}

func (s *SMTPSender) SendCustomEmail(ctx context.Context, toEmail, subject, htmlContent string) error {
	return s.send(ctx, toEmail, subject, htmlContent)
}
