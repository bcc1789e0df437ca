package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

type baseEmailData struct {
	Title      string
	Heading    string
	Subheading string
	CTALabel   string
	CTAURL     string
}

type welcomeEmailData struct {
	baseEmailData
	Name         string
	CompanyName  string
	CompanyPhone string
}

type nurtureEmailData struct {
	baseEmailData
	Name         string
	CompanyName  string
	CompanyPhone string
}

type estimateEmailData struct {
	baseEmailData
	ClientName     string
	CompanyName    string
	EstimateNumber string
	TotalFormatted string
}

type estimateReminderEmailData struct {
	baseEmailData
	ClientName     string
	CompanyName    string
	EstimateNumber string
}

type contractEmailData struct {
	baseEmailData
	ClientName     string
	CompanyName    string
	ContractNumber string
	TotalFormatted string
}

func renderEmailTemplate(name string, data any) (string, error) {
	templates := []string{"templates/base.html", "templates/" + name}
	tmpl, err := template.New("base.html").ParseFS(templateFS, templates...)
	if err != nil {
		return "", fmt.Errorf("parse email template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "email", data); err != nil {
		return "", fmt.Errorf("execute email template %s: %w", name, err)
	}
	return buf.String(), nil
}

func formatCurrencyUSD(cents int64) string {
	return fmt.Sprintf("$%.2f", float64(cents)/100)
}
