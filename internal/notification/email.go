package notification

import (
	"bytes"
	"fmt"
	"net/smtp"
	"strings"
	"text/template"
	"time"

	"github.com/rs/zerolog"

	"github.com/Poyyy414/ByteTech/internal/database"
	"github.com/Poyyy414/ByteTech/internal/protocol"
	"github.com/Poyyy414/ByteTech/pkg/config"
)

const alertTemplate = `
Carbon Watch Alert
==================

Sensor: {{.SensorID}}
Alert: {{.Type}}
Level: {{.Level}}
Value: {{value .Value}}
Reading ID: {{.DataID}}
Recorded At: {{.RecordedAt.Format "2006-01-02 15:04:05 MST"}}
Alert ID: {{.AlertID}}

Description:
Sensor {{.SensorID}} reported a {{level .Level}} {{lower .Type}} reading of {{value .Value}}.

Please check the site and take appropriate action.

---
ByteTech Carbon Watch
`

var alertTmpl = template.Must(template.New("alert").Funcs(template.FuncMap{
	"value": func(v *float64) string {
		if v == nil {
			return "n/a"
		}
		return fmt.Sprintf("%.2f", *v)
	},
	"level": func(l database.Level) string {
		return strings.ToLower(strings.ReplaceAll(string(l), "_", " "))
	},
	"lower": strings.ToLower,
}).Parse(alertTemplate))

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailNotifier sends email notifications
type EmailNotifier struct {
	config   *config.SMTPConfig
	logger   zerolog.Logger
	sendMail sendMailFunc
	now      func() time.Time
}

// NewEmailNotifier creates a new email notifier
func NewEmailNotifier(cfg *config.SMTPConfig, logger zerolog.Logger) *EmailNotifier {
	return &EmailNotifier{
		config:   cfg,
		logger:   logger,
		sendMail: smtp.SendMail,
		now:      time.Now,
	}
}

// Configured reports whether SMTP credentials are present.
func (e *EmailNotifier) Configured() bool {
	return e.config.Username != "" && e.config.Password != ""
}

// SendAlertNotification sends an email for an alert notification
func (e *EmailNotifier) SendAlertNotification(n *protocol.AlertNotification) error {
	subject := Subject(n)

	body, err := RenderAlert(n)
	if err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}

	return e.sendEmail(subject, body)
}

// Subject builds the email subject line for n.
func Subject(n *protocol.AlertNotification) string {
	return fmt.Sprintf("[%s] %s alert - sensor %d", n.Level, n.Type, n.SensorID)
}

// RenderAlert renders the plain text email body for n.
func RenderAlert(n *protocol.AlertNotification) (string, error) {
	var buf bytes.Buffer
	if err := alertTmpl.Execute(&buf, n); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (e *EmailNotifier) sendEmail(subject, body string) error {
	if !e.Configured() {
		e.logger.Info().Str("subject", subject).Msg("SMTP not configured, skipping email")
		return nil
	}

	recipients := strings.Split(e.config.To, ",")
	for i := range recipients {
		recipients[i] = strings.TrimSpace(recipients[i])
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", e.config.From)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(recipients, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "Date: %s\r\n", e.now().Format(time.RFC1123Z))
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	auth := smtp.PlainAuth("", e.config.Username, e.config.Password, e.config.Host)
	addr := fmt.Sprintf("%s:%d", e.config.Host, e.config.Port)

	if err := e.sendMail(addr, auth, e.config.From, recipients, []byte(msg.String())); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	e.logger.Info().Str("subject", subject).Msg("email sent")
	return nil
}

// TestConnection tests the SMTP connection
func (e *EmailNotifier) TestConnection() error {
	if !e.Configured() {
		return fmt.Errorf("SMTP not configured")
	}

	addr := fmt.Sprintf("%s:%d", e.config.Host, e.config.Port)
	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer client.Close()

	return nil
}
