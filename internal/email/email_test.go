package email

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"
)

type recordingMailer struct {
	mu   sync.Mutex
	sent []Message
}

func (m *recordingMailer) Send(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func TestNotifierRendersLinks(t *testing.T) {
	mailer := &recordingMailer{}
	d := NewDispatcher(mailer, DispatcherConfig{PerSecond: 1000, Burst: 10}, nil)
	n := NewNotifier(d, NotifierConfig{
		AppName:         "Arena",
		BaseURL:         "https://arena.example.com/",
		VerificationTTL: 24 * time.Hour,
		ResetTTL:        time.Hour,
	})

	n.SendVerificationEmail(context.Background(), "ana@example.com", "Ana", "tok123")
	n.SendPasswordResetEmail(context.Background(), "ana@example.com", "Ana", "rst456")
	d.Close(time.Second)

	if len(mailer.sent) != 2 {
		t.Fatalf("sent %d messages, want 2", len(mailer.sent))
	}

	verify := mailer.sent[0]
	if !strings.Contains(verify.Text, "https://arena.example.com/verify-email?token=tok123") {
		t.Fatalf("verification text missing link: %q", verify.Text)
	}
	if !strings.Contains(verify.Text, "24 hours") || !strings.Contains(verify.HTML, `href="https://arena.example.com/verify-email?token=tok123"`) {
		t.Fatalf("verification email = %+v", verify)
	}

	reset := mailer.sent[1]
	if !strings.Contains(reset.Text, "/reset-password?token=rst456") || !strings.Contains(reset.Text, "1 hour") {
		t.Fatalf("reset text = %q", reset.Text)
	}
}

func TestHTMLTemplateEscapesName(t *testing.T) {
	_, html, err := render(verificationText, verificationHTML, linkData{Name: "<script>x</script>", Link: "https://x"})
	if err != nil {
		t.Fatalf("render() error = %v", err)
	}
	if strings.Contains(html, "<script>") {
		t.Fatalf("HTML not escaped: %q", html)
	}
}

func TestDispatcherRejectsAfterClose(t *testing.T) {
	d := NewDispatcher(&recordingMailer{}, DispatcherConfig{}, nil)
	d.Close(time.Second)

	if d.Enqueue(Message{To: "a@b.c"}) {
		t.Fatal("Enqueue() accepted a message after Close")
	}
}

func TestSMTPMailerBuildMessage(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "localhost", Port: 1025, From: "noreply@example.com"}, nil)

	msg, err := m.buildMessage(Message{To: "ana@example.com", Subject: "Hi", Text: "plain body", HTML: "<p>html body</p>"})
	if err != nil {
		t.Fatalf("buildMessage() error = %v", err)
	}

	s := string(msg)
	for _, want := range []string{
		"From: noreply@example.com\r\n",
		"To: ana@example.com\r\n",
		"Subject: Hi\r\n",
		"multipart/alternative",
		"plain body",
		"<p>html body</p>",
	} {
		if !strings.Contains(s, want) {
			t.Fatalf("message missing %q:\n%s", want, s)
		}
	}
}

func TestFormatTTL(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{time.Hour, "1 hour"},
		{24 * time.Hour, "24 hours"},
		{15 * time.Minute, "15 minutes"},
		{time.Minute, "1 minute"},
	}
	for _, tt := range tests {
		if got := formatTTL(tt.in); got != tt.want {
			t.Fatalf("formatTTL(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
