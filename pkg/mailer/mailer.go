package mailer

import (
	"context"
	"log/slog"
)

// Mailer sends one templated mail. Implementations own delivery; callers
// treat failures as best effort.
type Mailer interface {
	Send(ctx context.Context, toEmail, toName, subject, templateKey string, data map[string]string) error
}

// Template keys the booking flows reference.
const (
	TemplateJobCreated                = "emails.job-created"
	TemplateJobAccepted               = "emails.job-accepted"
	TemplateSessionEnded              = "emails.session-ended"
	TemplateJobChangedTranslatorCust  = "emails.job-changed-translator-customer"
	TemplateJobChangedTranslatorNewTr = "emails.job-changed-translator-new-translator"
	TemplateJobChangedTranslatorOldTr = "emails.job-changed-translator-old-translator"
	TemplateJobChangedDate            = "emails.job-changed-date"
	TemplateJobChangedLang            = "emails.job-changed-lang"
	TemplateStatusChangedCustomer     = "emails.status-changed-from-pending-or-assigned-customer"
	TemplateJobCancelTranslator       = "emails.job-cancel-translator"
	TemplateJobChangeStatusToCustomer = "emails.job-change-status-to-customer"
)

// LogMailer writes mails to the structured log instead of a mail gateway.
// It stands in wherever SMTP credentials are absent, dev and tests
// included.
type LogMailer struct {
	logger *slog.Logger
}

func NewLogMailer(logger *slog.Logger) *LogMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(ctx context.Context, toEmail, toName, subject, templateKey string, data map[string]string) error {
	attrs := []any{
		slog.String("to", toEmail),
		slog.String("name", toName),
		slog.String("subject", subject),
		slog.String("template", templateKey),
	}
	for k, v := range data {
		attrs = append(attrs, slog.String("data."+k, v))
	}
	m.logger.InfoContext(ctx, "mail sent", attrs...)
	return nil
}
