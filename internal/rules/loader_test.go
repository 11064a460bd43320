package rules

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/calm-green-owl/pulsewatch/internal/models"
)

const validRules = `
alerts:
  - name: high-cpu
    service: web-api
    metric: cpu_usage
    threshold: 80
    operator: ">"
    severity: warning
    window: 5m
    notify: [email, slack]
  - name: error-spike
    service: payments
    metric: error_rate
    threshold: 5
    operator: ">="
    severity: critical
    threshold_kind: percentage
    window: 1m
    notify: [email, sms]
    suppression:
      start: 2026-03-10T02:00:00Z
      end: 2026-03-10T04:00:00Z
  - name: low-throughput
    service: ingest
    metric: requests_per_second
    threshold: 10
    operator: "<"
    window: 10m
    enabled: false
`

func TestLoadValidRules(t *testing.T) {
	configs, err := Load(strings.NewReader(validRules))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(configs) != 3 {
		t.Fatalf("configs = %d, want 3", len(configs))
	}

	cpu := configs[0]
	if cpu.Name != "high-cpu" || cpu.ServiceName != "web-api" || cpu.MetricType != "cpu_usage" {
		t.Errorf("identity = (%q, %q, %q)", cpu.Name, cpu.ServiceName, cpu.MetricType)
	}
	if cpu.Operator != models.OpGreater || cpu.ThresholdValue != 80 {
		t.Errorf("threshold = %q %v", cpu.Operator, cpu.ThresholdValue)
	}
	if cpu.EvaluationWindow != 5*time.Minute {
		t.Errorf("window = %v, want 5m", cpu.EvaluationWindow)
	}
	if len(cpu.Channels) != 2 || cpu.Channels[1] != models.ChannelSlack {
		t.Errorf("channels = %v", cpu.Channels)
	}
	if !cpu.Enabled {
		t.Error("enabled should default to true")
	}

	spike := configs[1]
	if spike.Severity != models.SeverityCritical {
		t.Errorf("severity = %q", spike.Severity)
	}
	if spike.ThresholdKind != models.ThresholdPercentage {
		t.Errorf("threshold kind = %q", spike.ThresholdKind)
	}
	if !spike.SuppressionEnabled || spike.SuppressionStart == nil || spike.SuppressionEnd == nil {
		t.Fatal("suppression window should be set")
	}
	wantStart := time.Date(2026, 3, 10, 2, 0, 0, 0, time.UTC)
	if !spike.SuppressionStart.Equal(wantStart) {
		t.Errorf("suppression start = %v, want %v", spike.SuppressionStart, wantStart)
	}

	if configs[2].Enabled {
		t.Error("explicit enabled: false should stick")
	}
}

func TestLoadRejectsInvalidRules(t *testing.T) {
	tests := []struct {
		name   string
		yaml   string
		errMsg string
	}{
		{
			name: "bad operator",
			yaml: `
alerts:
  - name: bad
    service: web-api
    metric: cpu_usage
    threshold: 80
    operator: "!="
    window: 5m
`,
			errMsg: "invalid operator",
		},
		{
			name: "bad window",
			yaml: `
alerts:
  - name: bad
    service: web-api
    metric: cpu_usage
    threshold: 80
    operator: ">"
    window: five-minutes
`,
			errMsg: "invalid window",
		},
		{
			name: "missing window",
			yaml: `
alerts:
  - name: bad
    service: web-api
    metric: cpu_usage
    threshold: 80
    operator: ">"
`,
			errMsg: "evaluation window",
		},
		{
			name: "bad channel",
			yaml: `
alerts:
  - name: bad
    service: web-api
    metric: cpu_usage
    threshold: 80
    operator: ">"
    window: 5m
    notify: [pager]
`,
			errMsg: "invalid notification channel",
		},
		{
			name:   "not yaml",
			yaml:   "alerts: [",
			errMsg: "parse rules YAML",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.yaml))
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.errMsg)
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("error = %q, want it to contain %q", err.Error(), tt.errMsg)
			}
		})
	}
}

// memConfigRepo implements just enough of AlertConfigRepository for Sync.
type memConfigRepo struct {
	configs map[string]*models.AlertConfig // by name
	creates int
	updates int
}

func newMemConfigRepo() *memConfigRepo {
	return &memConfigRepo{configs: make(map[string]*models.AlertConfig)}
}

func (r *memConfigRepo) Create(_ context.Context, cfg *models.AlertConfig) error {
	r.creates++
	r.configs[cfg.Name] = cfg
	return nil
}

func (r *memConfigRepo) GetByID(_ context.Context, id string) (*models.AlertConfig, error) {
	for _, cfg := range r.configs {
		if cfg.ID == id {
			return cfg, nil
		}
	}
	return nil, nil
}

func (r *memConfigRepo) GetByName(_ context.Context, name string) (*models.AlertConfig, error) {
	return r.configs[name], nil
}

func (r *memConfigRepo) Update(_ context.Context, cfg *models.AlertConfig) error {
	r.updates++
	r.configs[cfg.Name] = cfg
	return nil
}

func (r *memConfigRepo) Delete(_ context.Context, id string) error { return nil }

func (r *memConfigRepo) List(_ context.Context) ([]*models.AlertConfig, error) {
	var out []*models.AlertConfig
	for _, cfg := range r.configs {
		out = append(out, cfg)
	}
	return out, nil
}

func (r *memConfigRepo) ListEnabled(ctx context.Context) ([]*models.AlertConfig, error) {
	return r.List(ctx)
}

func (r *memConfigRepo) SetEnabled(_ context.Context, id string, enabled bool) error { return nil }

func TestSyncUpsertsByName(t *testing.T) {
	repo := newMemConfigRepo()
	ctx := context.Background()

	configs, err := Load(strings.NewReader(validRules))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if err := Sync(ctx, repo, configs); err != nil {
		t.Fatalf("first sync: %v", err)
	}
	if repo.creates != 3 || repo.updates != 0 {
		t.Errorf("first sync = %d creates %d updates, want 3/0", repo.creates, repo.updates)
	}

	firstID := repo.configs["high-cpu"].ID
	firstCreatedAt := repo.configs["high-cpu"].CreatedAt

	// Reload the same file: every alert already exists and gets updated in
	// place, keeping its ID and therefore its history.
	configs, _ = Load(strings.NewReader(validRules))
	configs[0].ThresholdValue = 90
	if err := Sync(ctx, repo, configs); err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if repo.creates != 3 || repo.updates != 3 {
		t.Errorf("second sync = %d creates %d updates, want 3/3", repo.creates, repo.updates)
	}

	got := repo.configs["high-cpu"]
	if got.ID != firstID {
		t.Error("sync must preserve the existing config ID")
	}
	if !got.CreatedAt.Equal(firstCreatedAt) {
		t.Error("sync must preserve the original creation time")
	}
	if got.ThresholdValue != 90 {
		t.Errorf("threshold = %v, want 90", got.ThresholdValue)
	}
}
