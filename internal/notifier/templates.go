package notifier

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/calm-green-owl/pulsewatch/internal/models"
)

//go:embed templates/*
var templateFS embed.FS

// Templates holds parsed email templates.
type Templates struct {
	alertHTML     *template.Template
	alertPlain    *template.Template
	resolvedHTML  *template.Template
	resolvedPlain *template.Template
}

// TemplateData contains data for template rendering.
type TemplateData struct {
	ConfigName    string
	ServiceName   string
	MetricType    string
	Severity      string
	SeverityColor string
	CurrentValue  string
	Threshold     string
	Operator      string
	Message       string
	Timestamp     string
	Duration      string
	DashboardURL  string
}

// LoadTemplates loads embedded email templates.
func LoadTemplates() (*Templates, error) {
	funcs := template.FuncMap{
		"upper": strings.ToUpper,
		"lower": strings.ToLower,
	}

	parse := func(name string) (*template.Template, error) {
		return template.New(name).Funcs(funcs).ParseFS(templateFS, "templates/"+name)
	}

	alertHTML, err := parse("alert.html")
	if err != nil {
		return nil, err
	}
	alertPlain, err := parse("alert.txt")
	if err != nil {
		return nil, err
	}
	resolvedHTML, err := parse("resolved.html")
	if err != nil {
		return nil, err
	}
	resolvedPlain, err := parse("resolved.txt")
	if err != nil {
		return nil, err
	}

	return &Templates{
		alertHTML:     alertHTML,
		alertPlain:    alertPlain,
		resolvedHTML:  resolvedHTML,
		resolvedPlain: resolvedPlain,
	}, nil
}

// RenderHTML renders the HTML email body for the event kind.
func (t *Templates) RenderHTML(kind EventKind, data *TemplateData) (string, error) {
	tmpl := t.alertHTML
	if kind == EventResolved {
		tmpl = t.resolvedHTML
	}
	return render(tmpl, data)
}

// RenderPlain renders the plain text email body for the event kind.
func (t *Templates) RenderPlain(kind EventKind, data *TemplateData) (string, error) {
	tmpl := t.alertPlain
	if kind == EventResolved {
		tmpl = t.resolvedPlain
	}
	return render(tmpl, data)
}

func render(tmpl *template.Template, data *TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// severityColor returns the header color for a severity level.
func severityColor(severity models.Severity) string {
	switch severity {
	case models.SeverityCritical:
		return "#d32f2f" // red
	case models.SeverityWarning:
		return "#f57c00" // orange
	case models.SeverityInfo:
		return "#388e3c" // green
	default:
		return "#757575" // gray
	}
}

// EventToTemplateData converts a notification event to template data.
func EventToTemplateData(ev *Event, dashboardURL string) *TemplateData {
	h := ev.History
	data := &TemplateData{
		ConfigName:    ev.Config.Name,
		ServiceName:   ev.Config.ServiceName,
		MetricType:    ev.Config.MetricType,
		Severity:      string(ev.Config.Severity),
		SeverityColor: severityColor(ev.Config.Severity),
		CurrentValue:  fmt.Sprintf("%.2f", h.MetricValue),
		Threshold:     fmt.Sprintf("%.2f", h.ThresholdValue),
		Operator:      string(ev.Config.Operator),
		Message:       h.Message,
		Timestamp:     ev.Timestamp.Format("2006-01-02 15:04:05 MST"),
		DashboardURL:  dashboardURL,
	}

	if ev.Kind == EventResolved {
		data.Duration = formatDuration(h.Duration(ev.Timestamp))
	}

	return data
}

// formatDuration renders a duration as a compact human-readable string.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
