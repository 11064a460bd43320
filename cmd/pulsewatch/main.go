package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/calm-green-owl/pulsewatch/internal/evaluator"
	"github.com/calm-green-owl/pulsewatch/internal/metrics"
	"github.com/calm-green-owl/pulsewatch/internal/metricsource"
	"github.com/calm-green-owl/pulsewatch/internal/notifier"
	"github.com/calm-green-owl/pulsewatch/internal/rules"
	"github.com/calm-green-owl/pulsewatch/internal/storage"
	"github.com/calm-green-owl/pulsewatch/pkg/config"
)

var (
	configFile string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "pulsewatch",
	Short: "PulseWatch - Service metric alerting daemon",
	Long: `PulseWatch evaluates threshold alert rules against aggregated service
metrics and delivers deduplicated alert and resolution notifications
over email, Slack webhook, and SMS.`,
	RunE: runDaemon,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("pulsewatch %s\n", config.Version)
		fmt.Printf("  commit: %s\n", config.Commit)
		fmt.Printf("  built:  %s\n", config.BuildTime)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "pulsewatch.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.Verbose = verbose

	// Alert store
	store := storage.NewSQLiteStore(cfg.Database.Path)
	if err := store.Open(); err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	if err := store.Migrate(); err != nil {
		return fmt.Errorf("migrate store: %w", err)
	}

	// Metrics provider
	source, err := metricsource.NewHTTPSource(cfg.Source.URL)
	if err != nil {
		return fmt.Errorf("create metric source: %w", err)
	}

	// Notification channels
	dispatcher, err := buildDispatcher(cfg)
	if err != nil {
		return fmt.Errorf("build dispatcher: %w", err)
	}
	defer dispatcher.Close()

	engine := evaluator.New(store.Configs(), store.History(), source, dispatcher, &evaluator.Options{
		Workers: cfg.Evaluation.Workers,
	})

	// Signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Printf("received signal %v, shutting down...", sig)
		cancel()
	}()

	// Rules file sync + hot reload
	if cfg.Rules.File != "" {
		if err := rules.SyncFile(ctx, store.Configs(), cfg.Rules.File); err != nil {
			return fmt.Errorf("sync rules file: %w", err)
		}
		if cfg.Rules.Watch {
			watcher, err := rules.NewWatcher(cfg.Rules.File, func(path string) {
				if err := rules.SyncFile(ctx, store.Configs(), path); err != nil {
					log.Printf("error: reload rules file: %v", err)
				}
			})
			if err != nil {
				return fmt.Errorf("watch rules file: %w", err)
			}
			defer watcher.Close()
			go watcher.Run(ctx)
		}
	}

	// Prometheus endpoint
	if cfg.Metrics.Enabled {
		metricsServer := metrics.NewServer(cfg.Metrics.Address)
		go func() {
			if err := metricsServer.Start(); err != nil {
				log.Printf("error: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			metricsServer.Shutdown(shutdownCtx)
		}()
	}

	// History retention sweep
	if cfg.Retention.MaxAge > 0 {
		go runRetentionSweep(ctx, store.History(), cfg.Retention.MaxAge, cfg.Retention.SweepInterval)
	}

	log.Printf("starting pulsewatch %s", config.Version)
	log.Printf("evaluating every %s (workers: %d)", cfg.Evaluation.Interval, cfg.Evaluation.Workers)

	runEvaluationLoop(ctx, engine, cfg)

	log.Printf("pulsewatch stopped")
	return nil
}

// runEvaluationLoop drives EvaluateAll on a fixed interval until the context
// is cancelled. The first pass runs immediately.
func runEvaluationLoop(ctx context.Context, engine *evaluator.Engine, cfg *Config) {
	ticker := time.NewTicker(cfg.Evaluation.Interval)
	defer ticker.Stop()

	evaluate := func() {
		stats, err := engine.EvaluateAll(ctx)
		if err != nil {
			log.Printf("error: evaluation pass failed: %v", err)
			return
		}
		if cfg.Verbose || stats.Triggered > 0 || stats.Resolved > 0 || stats.Errors > 0 {
			log.Printf("evaluated %d alerts: %d triggered, %d resolved, %d suppressed, %d errors",
				stats.Evaluated, stats.Triggered, stats.Resolved, stats.Suppressed, stats.Errors)
		}
	}

	evaluate()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			evaluate()
		}
	}
}

// runRetentionSweep periodically deletes resolved history rows older than
// maxAge.
func runRetentionSweep(ctx context.Context, history storage.AlertHistoryRepository, maxAge, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := history.DeleteBefore(ctx, time.Now().Add(-maxAge))
			if err != nil {
				log.Printf("error: history retention sweep: %v", err)
				continue
			}
			if deleted > 0 {
				log.Printf("retention: deleted %d resolved history rows older than %s", deleted, maxAge)
			}
		}
	}
}

// buildDispatcher registers a notifier for every configured channel.
func buildDispatcher(cfg *Config) (*notifier.Dispatcher, error) {
	var d *notifier.Dispatcher
	if cfg.Notifications.RatePerMinute > 0 {
		d = notifier.NewDispatcherWithLimit(cfg.Notifications.RatePerMinute, 0)
	} else {
		d = notifier.NewDispatcher()
	}

	if e := cfg.Notifications.Email; e != nil {
		n, err := notifier.NewEmailNotifier(notifier.EmailConfig{
			Host:         e.Host,
			Port:         e.Port,
			Username:     e.Username,
			Password:     e.Password,
			From:         e.From,
			Recipients:   e.Recipients,
			DashboardURL: e.DashboardURL,
			MaxRetries:   e.MaxRetries,
		})
		if err != nil {
			return nil, err
		}
		d.Register(n)
		log.Printf("notifier: email channel registered (%d recipients)", len(e.Recipients))
	}

	if s := cfg.Notifications.Slack; s != nil {
		n, err := notifier.NewSlackNotifier(notifier.SlackConfig{
			WebhookURL: s.WebhookURL,
			MaxRetries: s.MaxRetries,
		})
		if err != nil {
			return nil, err
		}
		d.Register(n)
		log.Printf("notifier: slack channel registered")
	}

	if s := cfg.Notifications.SMS; s != nil {
		n := notifier.NewSMSNotifier(notifier.SMSConfig{
			AccountSID: s.AccountSID,
			AuthToken:  s.AuthToken,
			FromNumber: s.FromNumber,
			Recipients: s.Recipients,
		})
		d.Register(n)
		log.Printf("notifier: sms channel registered (%d recipients, critical only)", len(s.Recipients))
	}

	return d, nil
}
