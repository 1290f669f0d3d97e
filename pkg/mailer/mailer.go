// Package mailer is the notification sink used by individual handlers. The
// engine itself never sends mail.
package mailer

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/bizflow/bizflow/pkg/ai"
	"github.com/bizflow/bizflow/pkg/config"
)

type Mailer interface {
	Send(ctx context.Context, to []string, subject, htmlBody string) error
	SendReport(ctx context.Context, to []string, report *ai.Analysis) error
}

type SMTPMailer struct {
	client *mail.Client
	from   string
	logger *zap.Logger
}

func NewSMTPMailer(cfg *config.SMTPConfig, logger *zap.Logger) (*SMTPMailer, error) {
	client, err := mail.NewClient(cfg.Host,
		mail.WithPort(cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build smtp client: %w", err)
	}

	return &SMTPMailer{client: client, from: cfg.From, logger: logger}, nil
}

func (m *SMTPMailer) Send(ctx context.Context, to []string, subject, htmlBody string) error {
	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return err
	}
	if err := msg.To(to...); err != nil {
		return err
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, htmlBody)

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}

	m.logger.Info("email sent", zap.Strings("to", to), zap.String("subject", subject))
	return nil
}

var reportTemplate = template.Must(template.New("report").Parse(`
<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h1>Business Performance Report</h1>
  <p><strong>Generated:</strong> {{.GeneratedAt.Format "2006-01-02 15:04 MST"}}</p>
  <h2>Summary</h2>
  <p>{{.Summary}}</p>
  {{if .Recommendations}}
  <h2>Recommendations</h2>
  <ul>
    {{range .Recommendations}}<li>{{.}}</li>{{end}}
  </ul>
  {{end}}
  <p style="color: #666;">This is an automated report.</p>
</div>`))

func (m *SMTPMailer) SendReport(ctx context.Context, to []string, report *ai.Analysis) error {
	var body bytes.Buffer
	if err := reportTemplate.Execute(&body, report); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}

	subject := fmt.Sprintf("Business Report - %s", time.Now().Format("2006-01-02"))
	return m.Send(ctx, to, subject, body.String())
}
