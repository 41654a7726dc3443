package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/careloop/triagelog/internal/backup"
	"github.com/careloop/triagelog/internal/config"
	"github.com/careloop/triagelog/internal/llm"
	"github.com/careloop/triagelog/internal/logger"
	"github.com/careloop/triagelog/internal/metrics"
	"github.com/careloop/triagelog/internal/notify"
	"github.com/careloop/triagelog/internal/report"
	"github.com/careloop/triagelog/internal/server"
	"github.com/careloop/triagelog/internal/store"
	"github.com/careloop/triagelog/internal/triage"
)

var rootCmd = &cobra.Command{
	Use:   "triagelog",
	Short: "triagelog - clinical intake triage service",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP service",
	RunE:  runServe,
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate a one-shot SOAP report from the event log",
	RunE:  runReport,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show service configuration and store state",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(serveCmd, reportCmd, statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLiteStore(cfg.Store.Path)
	default:
		return store.NewFileStore(cfg.Store.Path), nil
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer log.Sync()

	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	client, err := llm.NewClient(cfg.Inference)
	if err != nil {
		return fmt.Errorf("create inference client: %w", err)
	}

	collector := metrics.NewCollector(cfg.App.Name, prometheus.DefaultRegisterer)

	pipeline := triage.NewPipeline(st, client, log, collector)
	if cfg.Telegram.Enabled {
		notifier, err := notify.NewTelegramNotifier(cfg.Telegram, log)
		if err != nil {
			return fmt.Errorf("create telegram notifier: %w", err)
		}
		pipeline.SetNotifier(notifier)
		log.Info("telegram alerts enabled", zap.Int64("chat_id", cfg.Telegram.ChatID))
	}

	synth := report.NewSynthesizer(st, client, log, collector)

	if cfg.Backup.Enabled {
		scheduler := backup.New(cfg.Backup, cfg.Store.Path, log)
		if err := scheduler.Start(); err != nil {
			return fmt.Errorf("start backup scheduler: %w", err)
		}
		defer scheduler.Stop()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.New(cfg, log, st, pipeline, synth, collector)
	return srv.Run(ctx)
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := zap.NewNop()

	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	client, err := llm.NewClient(cfg.Inference)
	if err != nil {
		return fmt.Errorf("create inference client: %w", err)
	}

	synth := report.NewSynthesizer(st, client, log, nil)
	rep, err := synth.Generate(cmd.Context())
	if err != nil {
		return fmt.Errorf("generate report: %w", err)
	}

	out, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "Config: error (%v)\n", err)
		return nil
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Store: %s (%s driver)\n", cfg.Store.Path, cfg.Store.Driver)
	fmt.Fprintf(out, "Model: %s\n", cfg.Inference.Model)
	fmt.Fprintf(out, "Endpoint: %s\n", cfg.Inference.BaseURL)
	fmt.Fprintf(out, "API Key: %s\n", maskKey(cfg.Inference.APIKey))
	fmt.Fprintf(out, "Telegram alerts: enabled=%v\n", cfg.Telegram.Enabled)
	fmt.Fprintf(out, "Backups: enabled=%v\n", cfg.Backup.Enabled)

	st, err := openStore(cfg)
	if err != nil {
		fmt.Fprintf(out, "Events: error (%v)\n", err)
		return nil
	}
	defer st.Close()

	snap, err := st.Load()
	if err != nil {
		fmt.Fprintf(out, "Events: error (%v)\n", err)
		return nil
	}
	fmt.Fprintf(out, "Events: %d\n", len(snap.Events))
	return nil
}

func maskKey(key string) string {
	if key == "" {
		return "not set"
	}
	if len(key) <= 8 {
		return "set"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
