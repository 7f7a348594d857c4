package notifications

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"github.com/angelmondragon/bikerent-backend/pkg/config"
)

func TestNewSMTPMailerRequiresHost(t *testing.T) {
	if _, err := NewSMTPMailer(config.SMTPConfig{}); err == nil {
		t.Fatal("expected error for empty smtp config")
	}
}

func TestSendMandateLinkRendersMessage(t *testing.T) {
	mailer, err := NewSMTPMailer(config.SMTPConfig{Host: "smtp.example.com", Port: 2525, From: "ops@example.com", Username: "ops", Password: "pw"})
	if err != nil {
		t.Fatalf("NewSMTPMailer: %v", err)
	}

	var gotAddr string
	var gotTo []string
	var gotMsg string
	var gotAuth smtp.Auth
	mailer.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotAuth, gotTo, gotMsg = addr, a, to, string(msg)
		return nil
	}

	err = mailer.SendMandateLink(context.Background(), MandateEmail{
		To:         "ravi@example.com",
		Name:       "Ravi <script>",
		MandateURL: "https://mercury.phonepe.com/intent/abc",
	})
	if err != nil {
		t.Fatalf("SendMandateLink: %v", err)
	}
	if gotAddr != "smtp.example.com:2525" {
		t.Fatalf("unexpected addr %q", gotAddr)
	}
	if gotAuth == nil {
		t.Fatal("expected plain auth when username is set")
	}
	if len(gotTo) != 1 || gotTo[0] != "ravi@example.com" {
		t.Fatalf("unexpected recipients %v", gotTo)
	}
	for _, want := range []string{
		"Subject: Complete Your Weekly Subscription Setup",
		"https://mercury.phonepe.com/intent/abc",
		"Ravi &lt;script&gt;",
	} {
		if !strings.Contains(gotMsg, want) {
			t.Fatalf("message missing %q:\n%s", want, gotMsg)
		}
	}
}

func TestSendMandateLinkPropagatesTransportError(t *testing.T) {
	mailer, _ := NewSMTPMailer(config.SMTPConfig{Host: "smtp.example.com", Port: 25, From: "ops@example.com"})
	mailer.send = func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("relay down")
	}
	if err := mailer.SendMandateLink(context.Background(), MandateEmail{To: "a@example.com"}); err == nil {
		t.Fatal("expected transport error")
	}
	if err := mailer.SendMandateLink(context.Background(), MandateEmail{}); err == nil {
		t.Fatal("expected missing recipient error")
	}
}
