package notification

import (
	"context"
	"strings"
	"testing"
)

func newTestManager() (*Manager, *MockEmailSender, *MockSMSSender) {
	email := &MockEmailSender{}
	sms := &MockSMSSender{}
	return NewManager(email, sms, NewTemplateEngine()), email, sms
}

func TestTemplateRender(t *testing.T) {
	e := NewTemplateEngine()

	subject, body, err := e.Render("critical-vitals-alert", map[string]string{
		"patient_name": "Jane Roe",
		"bed":          "ED-4",
		"vital":        "SpO2",
		"value":        "84%",
		"time":         "03:12",
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(subject, "Jane Roe") {
		t.Errorf("subject missing patient name: %q", subject)
	}
	if !strings.Contains(body, "SpO2 of 84%") {
		t.Errorf("body missing vital substitution: %q", body)
	}
}

func TestTemplateRenderUnknownTemplate(t *testing.T) {
	e := NewTemplateEngine()
	if _, _, err := e.Render("no-such-template", nil); err == nil {
		t.Error("expected error for unknown template")
	}
}

func TestTemplateRenderLeavesMissingKeys(t *testing.T) {
	e := NewTemplateEngine()
	_, body, err := e.Render("handoff-ready", map[string]string{"shift": "night"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(body, "{{author_name}}") {
		t.Errorf("missing keys should be left as placeholders: %q", body)
	}
}

func TestSendEmail(t *testing.T) {
	m, email, _ := newTestManager()

	n := &Notification{
		Channel:   ChannelEmail,
		Recipient: "doc@example.com",
		Subject:   "Test",
		Body:      "hello",
	}
	if err := m.Send(context.Background(), n); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if n.Status != "sent" || n.SentAt == nil {
		t.Errorf("status = %q, sent_at = %v", n.Status, n.SentAt)
	}
	if calls := email.Calls(); len(calls) != 1 || calls[0].To != "doc@example.com" {
		t.Errorf("email calls = %+v", calls)
	}
}

func TestSendFromTemplateUsesTemplateChannel(t *testing.T) {
	m, _, sms := newTestManager()

	n, err := m.SendFromTemplate(context.Background(), "critical-vitals-alert", map[string]string{
		"patient_name": "Jane Roe",
	}, "+15555550100")
	if err != nil {
		t.Fatalf("SendFromTemplate: %v", err)
	}
	if n.Channel != ChannelSMS {
		t.Errorf("channel = %q, want sms", n.Channel)
	}
	if calls := sms.Calls(); len(calls) != 1 {
		t.Errorf("sms calls = %d, want 1", len(calls))
	}
}

func TestSendFailureAndRetry(t *testing.T) {
	m, email, _ := newTestManager()
	email.ShouldFail = true
	email.FailError = "smtp unavailable"

	n := &Notification{Channel: ChannelEmail, Recipient: "doc@example.com", Body: "x"}
	if err := m.Send(context.Background(), n); err == nil {
		t.Fatal("expected send failure")
	}
	if n.Status != "failed" || n.Error != "smtp unavailable" {
		t.Errorf("status = %q, error = %q", n.Status, n.Error)
	}

	email.ShouldFail = false
	if err := m.Retry(context.Background(), n.ID); err != nil {
		t.Fatalf("Retry: %v", err)
	}

	got, err := m.Get(context.Background(), n.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != "sent" || got.Error != "" {
		t.Errorf("after retry: status = %q, error = %q", got.Status, got.Error)
	}
}

func TestRetryRejectsNonFailed(t *testing.T) {
	m, _, _ := newTestManager()

	n := &Notification{Channel: ChannelEmail, Recipient: "doc@example.com", Body: "x"}
	if err := m.Send(context.Background(), n); err != nil {
		t.Fatal(err)
	}
	if err := m.Retry(context.Background(), n.ID); err == nil {
		t.Error("retrying a sent notification should fail")
	}
}

func TestStatsAndListByRecipient(t *testing.T) {
	m, email, _ := newTestManager()

	for i := 0; i < 3; i++ {
		m.Send(context.Background(), &Notification{Channel: ChannelEmail, Recipient: "a@example.com", Body: "x"})
	}
	email.ShouldFail = true
	email.FailError = "down"
	m.Send(context.Background(), &Notification{Channel: ChannelEmail, Recipient: "b@example.com", Body: "x"})

	stats := m.Stats(context.Background())
	if stats["sent"] != 3 || stats["failed"] != 1 {
		t.Errorf("stats = %v", stats)
	}

	list := m.ListByRecipient(context.Background(), "a@example.com", 10)
	if len(list) != 3 {
		t.Errorf("list = %d entries, want 3", len(list))
	}
}
