package notifier

import (
	"strings"
	"testing"
	"time"

	"github.com/calm-green-owl/pulsewatch/internal/models"
)

func TestEmailConfigValidation(t *testing.T) {
	valid := func() EmailConfig {
		return EmailConfig{
			Host:       "smtp.example.com",
			Port:       587,
			From:       "alerts@example.com",
			Recipients: []string{"ops@example.com"},
		}
	}

	validCfg := valid()
	if err := validCfg.Validate(); err != nil {
		t.Fatalf("valid config should pass: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*EmailConfig)
		errMsg string
	}{
		{"missing host", func(c *EmailConfig) { c.Host = "" }, "host is required"},
		{"missing port", func(c *EmailConfig) { c.Port = 0 }, "port is required"},
		{"missing from", func(c *EmailConfig) { c.From = "" }, "from address is required"},
		{"no recipients", func(c *EmailConfig) { c.Recipients = nil }, "at least one recipient"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.errMsg)
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("error = %q, want it to contain %q", err.Error(), tt.errMsg)
			}
		})
	}
}

func TestNewEmailNotifierDefaults(t *testing.T) {
	n, err := NewEmailNotifier(EmailConfig{
		Host:       "smtp.example.com",
		Port:       587,
		From:       "alerts@example.com",
		Recipients: []string{"ops@example.com"},
	})
	if err != nil {
		t.Fatalf("new email notifier: %v", err)
	}
	if n.config.MaxRetries != defaultMaxRetries {
		t.Errorf("max retries = %d, want %d", n.config.MaxRetries, defaultMaxRetries)
	}
	if n.Name() != models.ChannelEmail {
		t.Errorf("Name() = %q, want email", n.Name())
	}
}

func TestEmailBuildSubject(t *testing.T) {
	n, err := NewEmailNotifier(EmailConfig{
		Host:       "smtp.example.com",
		Port:       587,
		From:       "alerts@example.com",
		Recipients: []string{"ops@example.com"},
	})
	if err != nil {
		t.Fatalf("new email notifier: %v", err)
	}

	ev := testEvent(EventAlert, models.ChannelEmail)
	if got := n.buildSubject(ev); got != "[CRITICAL] PulseWatch Alert: high-cpu" {
		t.Errorf("alert subject = %q", got)
	}

	ev.Config.Severity = models.SeverityWarning
	if got := n.buildSubject(ev); got != "[WARNING] PulseWatch Alert: high-cpu" {
		t.Errorf("warning subject = %q", got)
	}

	ev.Kind = EventResolved
	if got := n.buildSubject(ev); got != "[RESOLVED] PulseWatch Alert: high-cpu" {
		t.Errorf("resolved subject = %q", got)
	}
}

func TestEmailBuildMIMEMessage(t *testing.T) {
	n, err := NewEmailNotifier(EmailConfig{
		Host:       "smtp.example.com",
		Port:       587,
		From:       "alerts@example.com",
		Recipients: []string{"ops@example.com", "oncall@example.com"},
	})
	if err != nil {
		t.Fatalf("new email notifier: %v", err)
	}

	msg := string(n.buildMIMEMessage("[CRITICAL] PulseWatch Alert: high-cpu", "plain body", "<p>html body</p>"))

	for _, want := range []string{
		"From: alerts@example.com\r\n",
		"To: ops@example.com, oncall@example.com\r\n",
		"Subject: [CRITICAL] PulseWatch Alert: high-cpu\r\n",
		"MIME-Version: 1.0\r\n",
		"multipart/alternative",
		"Content-Type: text/plain; charset=UTF-8",
		"Content-Type: text/html; charset=UTF-8",
		"plain body",
		"<p>html body</p>",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q", want)
		}
	}
}

func TestTemplateRendering(t *testing.T) {
	templates, err := LoadTemplates()
	if err != nil {
		t.Fatalf("load templates: %v", err)
	}

	ev := testEvent(EventAlert, models.ChannelEmail)
	data := EventToTemplateData(ev, "https://dash.example.com/alerts")

	html, err := templates.RenderHTML(EventAlert, data)
	if err != nil {
		t.Fatalf("render html: %v", err)
	}
	for _, want := range []string{
		"[CRITICAL] high-cpu",
		"#d32f2f", // critical header color
		"web-api - cpu_usage: 85.50 > 80.00",
		"https://dash.example.com/alerts",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("html missing %q", want)
		}
	}

	plain, err := templates.RenderPlain(EventAlert, data)
	if err != nil {
		t.Fatalf("render plain: %v", err)
	}
	if !strings.Contains(plain, "Current Value: 85.50") {
		t.Errorf("plain body missing current value:\n%s", plain)
	}
	if !strings.Contains(plain, "Threshold:     > 80.00") {
		t.Errorf("plain body missing threshold:\n%s", plain)
	}
}

func TestTemplateRenderingResolved(t *testing.T) {
	templates, err := LoadTemplates()
	if err != nil {
		t.Fatalf("load templates: %v", err)
	}

	ev := testEvent(EventResolved, models.ChannelEmail)
	resolvedAt := ev.History.TriggeredAt.Add(12 * time.Minute)
	ev.History.ResolvedAt = &resolvedAt
	ev.History.ResolutionMethod = models.ResolutionAuto
	ev.Timestamp = resolvedAt

	data := EventToTemplateData(ev, "")
	if data.Duration != "12m0s" {
		t.Errorf("duration = %q, want 12m0s", data.Duration)
	}

	plain, err := templates.RenderPlain(EventResolved, data)
	if err != nil {
		t.Fatalf("render plain: %v", err)
	}
	if !strings.Contains(plain, "[RESOLVED] high-cpu") {
		t.Errorf("resolved body missing header:\n%s", plain)
	}
	if !strings.Contains(plain, "Alert Duration: 12m0s") {
		t.Errorf("resolved body missing duration:\n%s", plain)
	}
	if strings.Contains(plain, "Dashboard:") {
		t.Error("empty dashboard URL should omit the dashboard line")
	}
}

func TestSeverityColor(t *testing.T) {
	tests := []struct {
		severity models.Severity
		want     string
	}{
		{models.SeverityCritical, "#d32f2f"},
		{models.SeverityWarning, "#f57c00"},
		{models.SeverityInfo, "#388e3c"},
		{"unknown", "#757575"},
	}
	for _, tt := range tests {
		if got := severityColor(tt.severity); got != tt.want {
			t.Errorf("severityColor(%q) = %q, want %q", tt.severity, got, tt.want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{45 * time.Second, "45s"},
		{90 * time.Second, "1m30s"},
		{2*time.Hour + 5*time.Minute, "2h5m"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestExtractEmail(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"alerts@example.com", "alerts@example.com"},
		{"PulseWatch <alerts@example.com>", "alerts@example.com"},
	}
	for _, tt := range tests {
		if got := extractEmail(tt.input); got != tt.want {
			t.Errorf("extractEmail(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
