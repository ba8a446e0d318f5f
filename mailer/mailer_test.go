package mailer

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestWriterMailer(t *testing.T) {
	var buf bytes.Buffer
	m := NewWriterMailer(&buf)

	err := m.Send(context.Background(), Message{
		To:      "alice@x.com",
		Subject: "Hello",
		Text:    "body text",
	})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"alice@x.com", "Hello", "body text"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestNewSMTPMailerValidation(t *testing.T) {
	if _, err := NewSMTPMailer(SMTPConfig{Port: 25, From: "noreply@x.com"}); err == nil {
		t.Error("expected error for missing host")
	}
	if _, err := NewSMTPMailer(SMTPConfig{Host: "mail.x.com", Port: 25}); err == nil {
		t.Error("expected error for missing sender")
	}
	if _, err := NewSMTPMailer(SMTPConfig{Host: "mail.x.com", Port: 25, From: "noreply@x.com"}); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}
}

func TestSMTPRenderPlainText(t *testing.T) {
	m, err := NewSMTPMailer(SMTPConfig{Host: "mail.x.com", Port: 25, From: "noreply@x.com"})
	if err != nil {
		t.Fatalf("NewSMTPMailer failed: %v", err)
	}

	raw := string(m.render(Message{To: "alice@x.com", Subject: "Hi", Text: "plain"}))
	if !strings.Contains(raw, "Content-Type: text/plain") {
		t.Errorf("expected plain text content type:\n%s", raw)
	}
	if strings.Contains(raw, "multipart/alternative") {
		t.Errorf("plain message must not be multipart:\n%s", raw)
	}
	if !strings.HasPrefix(raw, "From: noreply@x.com\r\n") {
		t.Errorf("unexpected header ordering:\n%s", raw)
	}
}

func TestSMTPRenderMultipart(t *testing.T) {
	m, err := NewSMTPMailer(SMTPConfig{Host: "mail.x.com", Port: 25, From: "noreply@x.com"})
	if err != nil {
		t.Fatalf("NewSMTPMailer failed: %v", err)
	}

	raw := string(m.render(Message{
		To:      "alice@x.com",
		Subject: "Hi",
		Text:    "plain body",
		HTML:    "<p>html body</p>",
	}))
	if !strings.Contains(raw, "multipart/alternative") {
		t.Errorf("expected multipart message:\n%s", raw)
	}
	if !strings.Contains(raw, "plain body") || !strings.Contains(raw, "<p>html body</p>") {
		t.Errorf("expected both bodies present:\n%s", raw)
	}
}
