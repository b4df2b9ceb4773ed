package notify

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/smtp"
	"strings"
	"time"

	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/config"
	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/domain/notification"
)

//go:embed templates/*.html
var templateFS embed.FS

const maxRetries = 3

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailNotifier mails the run summary to the payroll team.
type EmailNotifier struct {
	cfg        config.SMTPConfig
	recipients []string
	templates  *template.Template
	send       sendMailFunc
	backoff    time.Duration
}

func NewEmailNotifier(cfg config.SMTPConfig, recipients []string) (*EmailNotifier, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse email templates: %w", err)
	}

	return &EmailNotifier{
		cfg:        cfg,
		recipients: recipients,
		templates:  tmpl,
		send:       smtp.SendMail,
		backoff:    time.Second,
	}, nil
}

type runSummaryEmailData struct {
	Title      string
	RunID      string
	Period     string
	Requested  int
	Succeeded  int
	Failed     int
	Skipped    int
	Error      string
	FinishedAt string
}

func (n *EmailNotifier) NotifyRunCompleted(ctx context.Context, summary notification.RunSummary) error {
	if len(n.recipients) == 0 {
		return nil
	}

	data := runSummaryEmailData{
		Title:      summary.Title(),
		RunID:      summary.RunID,
		Period:     summary.Period,
		Requested:  summary.Requested,
		Succeeded:  summary.Succeeded,
		Failed:     summary.Failed,
		Skipped:    summary.Skipped,
		Error:      summary.Error,
		FinishedAt: summary.FinishedAt.Format("02/01/2006 15:04:05"),
	}

	var body bytes.Buffer
	if err := n.templates.ExecuteTemplate(&body, "run_summary.html", data); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}

	return n.sendHTML(ctx, summary.Title(), body.String())
}

func (n *EmailNotifier) sendHTML(ctx context.Context, subject, htmlBody string) error {
	// Skip sending if SMTP is not configured
	if n.cfg.Host == "" {
		slog.Warn("SMTP not configured, skipping email send", "subject", subject)
		return nil
	}

	from := n.cfg.From
	to := strings.Join(n.recipients, ", ")

	headers := fmt.Sprintf("From: %s <%s>\r\n", n.cfg.FromName, from)
	headers += fmt.Sprintf("To: %s\r\n", to)
	headers += fmt.Sprintf("Subject: %s\r\n", subject)
	headers += "MIME-Version: 1.0\r\n"
	headers += "Content-Type: text/html; charset=\"UTF-8\"\r\n"
	headers += "\r\n"

	message := []byte(headers + htmlBody)

	auth := smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		err := n.send(addr, auth, from, n.recipients, message)
		if err == nil {
			slog.Info("Email sent successfully", "to", to, "subject", subject, "attempt", attempt)
			return nil
		}

		lastErr = err
		slog.Error("Failed to send email",
			"to", to,
			"subject", subject,
			"attempt", attempt,
			"max_retries", maxRetries,
			"error", err,
		)

		// Wait before retrying (exponential backoff: 1s, 2s, 4s)
		if attempt < maxRetries {
			select {
			case <-ctx.Done():
				return fmt.Errorf("email send aborted: %w", ctx.Err())
			case <-time.After(n.backoff << (attempt - 1)):
			}
		}
	}

	return fmt.Errorf("failed to send email after %d attempts: %w", maxRetries, lastErr)
}
