package services

import (
	"context"
	"fmt"
	"strings"

	"license-service/models"
	"license-service/sender"

	"go.uber.org/zap"
)

// LicenseIssuer delivers issued licenses to the buyer.
type LicenseIssuer interface {
	Deliver(ctx context.Context, payerEmail string, records []models.LicenseRecord) error
}

// EmailTemplate holds the branding used in license emails.
type EmailTemplate struct {
	Subject      string
	Brand        string
	SupportEmail string
	SourceURL    string
}

// DefaultEmailTemplate matches the production SSDF branding.
var DefaultEmailTemplate = EmailTemplate{
	Subject:      "Your SSDF License Keys",
	Brand:        "SSDF",
	SupportEmail: "support@ssdf.work.gd",
	SourceURL:    "https://github.com/CreoDAMO",
}

type emailLicenseIssuer struct {
	sender   sender.EmailSender
	template EmailTemplate
	logger   *zap.Logger
}

func NewEmailLicenseIssuer(s sender.EmailSender, tmpl EmailTemplate, logger *zap.Logger) LicenseIssuer {
	return &emailLicenseIssuer{sender: s, template: tmpl, logger: logger}
}

func (i *emailLicenseIssuer) Deliver(ctx context.Context, payerEmail string, records []models.LicenseRecord) error {
	body := RenderLicenseEmail(i.template, records)
	res, err := i.sender.SendEmail(ctx, payerEmail, i.template.Subject, body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}

	projects := make([]string, 0, len(records))
	for _, r := range records {
		projects = append(projects, r.Project)
	}
	i.logger.Info("License email sent",
		zap.String("to", payerEmail),
		zap.Strings("projects", projects),
		zap.String("message_id", res.MessageID),
	)
	return nil
}

// RenderLicenseEmail renders the plain-text license notice. Output depends only on its inputs.
func RenderLicenseEmail(tmpl EmailTemplate, records []models.LicenseRecord) string {
	blocks := make([]string, 0, len(records))
	for _, r := range records {
		blocks = append(blocks, fmt.Sprintf("Project: %s\nLicense Type: %s\nLicense Key: %s",
			r.Project, r.LicenseType, r.LicenseKey))
	}

	tier := models.LicenseCommercial
	if len(records) > 0 {
		tier = records[0].LicenseType
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Thank you for your purchase from %s!\n\n", tmpl.Brand)
	b.WriteString("Your License Information:\n\n")
	b.WriteString(strings.Join(blocks, "\n\n---\n\n"))
	fmt.Fprintf(&b, "\n\nThese license keys grant you the rights specified in your %s license agreement.\n\n", tier)
	fmt.Fprintf(&b, "All projects remain available under MIT License at %s\n\n", tmpl.SourceURL)
	fmt.Fprintf(&b, "For support, contact %s\n\n", tmpl.SupportEmail)
	fmt.Fprintf(&b, "Best regards,\n%s Team", tmpl.Brand)
	return b.String()
}
