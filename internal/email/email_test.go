package email

import (
	"strings"
	"testing"
)

func TestBuildMessage(t *testing.T) {
	msg := BuildMessage("deals@example.com", []string{"a@example.com", "b@example.com"},
		"Offer accepted", "Deal d1 closed.\n")

	for _, want := range []string{
		"From: deals@example.com\r\n",
		"To: a@example.com, b@example.com\r\n",
		"Subject: Offer accepted\r\n",
		"Content-Type: text/plain; charset=utf-8\r\n\r\nDeal d1 closed.\n",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
}

func TestBuildMessageStripsHeaderInjection(t *testing.T) {
	msg := BuildMessage("a@example.com", []string{"b@example.com"}, "hi\r\nBcc: evil@example.com", "")
	if strings.Contains(msg, "\r\nBcc:") {
		t.Errorf("subject newline leaked into headers:\n%s", msg)
	}
}

func TestIsConfigured(t *testing.T) {
	tests := []struct {
		name string
		cfg  SMTPConfig
		want bool
	}{
		{"empty", SMTPConfig{}, false},
		{"host only", SMTPConfig{Host: "smtp.example.com"}, false},
		{"no recipients", SMTPConfig{Host: "smtp.example.com", From: "a@example.com"}, false},
		{"complete", SMTPConfig{Host: "smtp.example.com", From: "a@example.com", To: []string{"b@example.com"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.IsConfigured(); got != tt.want {
				t.Errorf("IsConfigured() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSendNotConfigured(t *testing.T) {
	err := Send(SMTPConfig{}, "subject", "body")
	if err == nil {
		t.Fatal("expected error for unconfigured SMTP")
	}
	if !strings.Contains(err.Error(), "not configured") {
		t.Errorf("unexpected error: %v", err)
	}
}
