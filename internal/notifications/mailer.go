package notifications

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/angelmondragon/bikerent-backend/pkg/config"
)

// Mailer delivers customer-facing mail.
type Mailer interface {
	SendMandateLink(ctx context.Context, mail MandateEmail) error
}

// MandateEmail asks a customer to authorize the weekly debit.
type MandateEmail struct {
	To         string
	Name       string
	MandateURL string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer sends through a plain SMTP relay with PLAIN auth when credentials are set.
type SMTPMailer struct {
	cfg  config.SMTPConfig
	send sendFunc
}

func NewSMTPMailer(cfg config.SMTPConfig) (*SMTPMailer, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("smtp host and from address required")
	}
	return &SMTPMailer{cfg: cfg, send: smtp.SendMail}, nil
}

const mandateSubject = "Complete Your Weekly Subscription Setup"

var mandateBody = template.Must(template.New("mandate").Parse(`<h2>Hello {{.Name}},</h2>
<p>Thank you for subscribing to our weekly service!</p>
<p>Please click the link below to authorize automatic weekly payments:</p>
<a href="{{.MandateURL}}">Authorize Weekly Payments</a>
<p>This mandate will allow us to automatically deduct the agreed amount every Monday.</p>
<p>If the button doesn't work, copy and paste this link in your browser:</p>
<p>{{.MandateURL}}</p>
<p>Thank you!</p>
`))

func (m *SMTPMailer) SendMandateLink(ctx context.Context, mail MandateEmail) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	to := strings.TrimSpace(mail.To)
	if to == "" {
		return fmt.Errorf("recipient required")
	}
	msg, err := buildMessage(m.cfg.From, to, mandateSubject, mail)
	if err != nil {
		return err
	}

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	if err := m.send(addr, auth, m.cfg.From, []string{to}, msg); err != nil {
		return fmt.Errorf("send mandate email: %w", err)
	}
	return nil
}

func buildMessage(from, to, subject string, mail MandateEmail) ([]byte, error) {
	var body bytes.Buffer
	if err := mandateBody.Execute(&body, mail); err != nil {
		return nil, fmt.Errorf("render mandate email: %w", err)
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	msg.Write(body.Bytes())
	return msg.Bytes(), nil
}
