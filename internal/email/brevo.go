package email

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"granite_crm_backend/platform/config"
)

// BrevoSender implements the Sender interface using the Brevo transactional
// email HTTP API.
type BrevoSender struct {
	apiKey       string
	fromName     string
	fromEmail    string
	companyName  string
	companyPhone string
	client       *http.Client
}

type brevoAttachment struct {
	Content string `json:"content"` // base64-encoded file content
	Name    string `json:"name"`
}

type brevoEmailRequest struct {
	Sender struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"sender"`
	To []struct {
		Email string `json:"email"`
	} `json:"to"`
	Subject     string            `json:"subject"`
	HTMLContent string            `json:"htmlContent"`
	Attachment  []brevoAttachment `json:"attachment,omitempty"`
}

// NewBrevoSender creates a BrevoSender from email configuration.
func NewBrevoSender(cfg config.EmailConfig) *BrevoSender {
	return &BrevoSender{
		apiKey:       cfg.GetBrevoAPIKey(),
		fromName:     cfg.GetEmailFromName(),
		fromEmail:    cfg.GetEmailFromAddress(),
		companyName:  cfg.GetCompanyName(),
		companyPhone: cfg.GetCompanyPhone(),
		client:       &http.Client{Timeout: 10 * time.Second},
	}
}

func (b *BrevoSender) SendWelcomeEmail(ctx context.Context, toEmail, name string) error {
	subject := fmt.Sprintf(subjectWelcome, b.companyName)
	content, err := renderEmailTemplate("welcome.html", welcomeEmailData{
		baseEmailData: baseEmailData{
			Title:   "We received your request",
			Heading: "We received your request",
		},
		Name:         name,
		CompanyName:  b.companyName,
		CompanyPhone: b.companyPhone,
	})
	if err != nil {
		return err
	}
	return b.send(ctx, toEmail, subject, content)
}

func (b *BrevoSender) SendConsultationEmail(ctx context.Context, toEmail, name string) error {
	content, err := renderEmailTemplate("consultation.html", nurtureEmailData{
		baseEmailData: baseEmailData{
			Title:   "Your free design consultation",
			Heading: "Your free design consultation",
		},
		Name:         name,
		CompanyName:  b.companyName,
		CompanyPhone: b.companyPhone,
	})
	if err != nil {
		return err
	}
	return b.send(ctx, toEmail, subjectConsultation, content)
}

func (b *BrevoSender) SendFollowUpEmail(ctx context.Context, toEmail, name string) error {
	content, err := renderEmailTemplate("follow_up.html", nurtureEmailData{
		baseEmailData: baseEmailData{
			Title:   "Still thinking it over?",
			Heading: "Still thinking it over?",
		},
		Name:         name,
		CompanyName:  b.companyName,
		CompanyPhone: b.companyPhone,
	})
	if err != nil {
		return err
	}
	return b.send(ctx, toEmail, subjectFollowUp, content)
}

func (b *BrevoSender) SendOfferEmail(ctx context.Context, toEmail, name string) error {
	content, err := renderEmailTemplate("offer.html", nurtureEmailData{
		baseEmailData: baseEmailData{
			Title:   "A special offer for your project",
			Heading: "A special offer for your project",
		},
		Name:         name,
		CompanyName:  b.companyName,
		CompanyPhone: b.companyPhone,
	})
	if err != nil {
		return err
	}
	return b.send(ctx, toEmail, subjectOffer, content)
}

func (b *BrevoSender) SendEstimateEmail(ctx context.Context, toEmail, clientName, estimateNumber, estimateURL string, totalCents int64, attachments ...Attachment) error {
	subject := fmt.Sprintf(subjectEstimateFmt, estimateNumber, b.companyName)
	content, err := renderEmailTemplate("estimate.html", estimateEmailData{
		baseEmailData: baseEmailData{
			Title:    "Your estimate is ready",
			Heading:  "Your estimate is ready",
			CTALabel: "View estimate",
			CTAURL:   estimateURL,
		},
		ClientName:     clientName,
		CompanyName:    b.companyName,
		EstimateNumber: estimateNumber,
		TotalFormatted: formatCurrencyUSD(totalCents),
	})
	if err != nil {
		return err
	}
	return b.sendWithAttachments(ctx, toEmail, subject, content, attachments...)
}

func (b *BrevoSender) SendEstimateReminderEmail(ctx context.Context, toEmail, clientName, estimateNumber, estimateURL string) error {
	subject := fmt.Sprintf(subjectEstimateReminderFmt, estimateNumber)
	content, err := renderEmailTemplate("estimate_reminder.html", estimateReminderEmailData{
		baseEmailData: baseEmailData{
			Title:    "Your estimate is waiting",
			Heading:  "Your estimate is waiting",
			CTALabel: "View estimate",
			CTAURL:   estimateURL,
		},
		ClientName:     clientName,
		CompanyName:    b.companyName,
		EstimateNumber: estimateNumber,
	})
	if err != nil {
		return err
	}
	return b.send(ctx, toEmail, subject, content)
}

func (b *BrevoSender) SendContractEmail(ctx context.Context, toEmail, clientName, contractNumber, contractURL string, totalCents int64, attachments ...Attachment) error {
	subject := fmt.Sprintf(subjectContractFmt, contractNumber, b.companyName)
	content, err := renderEmailTemplate("contract.html", contractEmailData{
		baseEmailData: baseEmailData{
			Title:    "Your contract is ready",
			Heading:  "Your contract is ready",
			CTALabel: "View contract",
			CTAURL:   contractURL,
		},
		ClientName:     clientName,
		CompanyName:    b.companyName,
		ContractNumber: contractNumber,
		TotalFormatted: formatCurrencyUSD(totalCents),
	})
	if err != nil {
		return err
	}
	return b.sendWithAttachments(ctx, toEmail, subject, content, attachments...)
}

func (b *BrevoSender) SendContractSignedEmail(ctx context.Context, toEmail, clientName, contractNumber, contractURL string, totalCents int64, attachments ...Attachment) error {
	subject := fmt.Sprintf(subjectContractSignedFmt, contractNumber, b.companyName)
	content, err := renderEmailTemplate("contract_signed.html", contractEmailData{
		baseEmailData: baseEmailData{
			Title:    "Your contract is signed",
			Heading:  "Your contract is signed",
			CTALabel: "View signed contract",
			CTAURL:   contractURL,
		},
		ClientName:     clientName,
		CompanyName:    b.companyName,
		ContractNumber: contractNumber,
		TotalFormatted: formatCurrencyUSD(totalCents),
	})
	if err != nil {
		return err
	}
	return b.sendWithAttachments(ctx, toEmail, subject, content, attachments...)
}

func (b *BrevoSender) SendCustomEmail(ctx context.Context, toEmail, subject, htmlContent string) error {
	return b.send(ctx, toEmail, subject, htmlContent)
}

func (b *BrevoSender) send(ctx context.Context, toEmail, subject, htmlContent string) error {
	return b.sendWithAttachments(ctx, toEmail, subject, htmlContent)
}

func (b *BrevoSender) sendWithAttachments(ctx context.Context, toEmail, subject, htmlContent string, attachments ...Attachment) error {
	payload := brevoEmailRequest{
		Subject:     subject,
		HTMLContent: htmlContent,
	}
	payload.Sender.Name = b.fromName
	payload.Sender.Email = b.fromEmail
	payload.To = []struct {
		Email string `json:"email"`
	}{{Email: toEmail}}

	for _, att := range attachments {
		payload.Attachment = append(payload.Attachment, brevoAttachment{
			Content: base64.StdEncoding.EncodeToString(att.Content),
			Name:    att.FileName,
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.brevo.com/v3/smtp/email", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("api-key", b.apiKey)
	req.Header.Set("content-type", "application/json")
	req.Header.Set("accept", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("brevo send failed: status %d: %s", resp.StatusCode, string(data))
	}

	return nil
}
