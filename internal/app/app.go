package app

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/slack-go/slack"

	"reviewsentiment/internal/analysis"
	"reviewsentiment/internal/config"
	"reviewsentiment/internal/httpx"
	"reviewsentiment/internal/inbox"
	"reviewsentiment/internal/integrations/llm"
	slacknotify "reviewsentiment/internal/integrations/slack"
	"reviewsentiment/internal/logging"
	"reviewsentiment/internal/metrics"
	"reviewsentiment/internal/sentiment"
	"reviewsentiment/internal/server"
	"reviewsentiment/internal/storage/sqlite"
)

func Main() {
	cfg := config.LoadConfig()
	logger := logging.InitLogger(cfg.LogLevel)
	appliedHTTPTimeout := httpx.ConfigureExternalHTTPClient(httpx.Settings{
		TimeoutSeconds:   cfg.ExternalHTTPTimeoutSeconds,
		MaxParallelCalls: cfg.LLMConcurrency,
	})
	logger.Info("config loaded",
		slog.String("provider", cfg.LLMProvider),
		slog.String("model", cfg.LLMModel),
		slog.Int("batch_size", cfg.LLMBatchSize),
		slog.Int("concurrency", cfg.LLMConcurrency),
		slog.Duration("external_http_timeout", appliedHTTPTimeout),
		slog.Bool("history", cfg.HistoryEnabled()),
		slog.Bool("slack", cfg.SlackConfigured()),
		slog.Bool("inbox", cfg.InboxConfigured()),
	)

	m, err := metrics.New()
	if err != nil {
		fatal("failed to init metrics", err)
	}

	classifier, err := llm.New(cfg, m.Sentiment)
	if err != nil {
		fatal("failed to init llm classifier", err)
	}
	pipeline := sentiment.NewPipeline(classifier, sentiment.Options{
		BatchSize:   cfg.LLMBatchSize,
		Concurrency: cfg.LLMConcurrency,
		Logger:      logger,
		Recorder:    m.Sentiment,
	})

	var db *sql.DB
	if cfg.HistoryEnabled() {
		db, err = sqlite.InitDB(cfg.DBPath)
		if err != nil {
			fatal("failed to init database", err)
		}
		defer db.Close()
		logger.Info("database initialized", slog.String("path", cfg.DBPath))
	}

	deps := analysis.Deps{
		Analyzer:  pipeline,
		DB:        db,
		Observer:  m.Sentiment,
		Provider:  cfg.LLMProvider,
		Model:     cfg.LLMModel,
		BatchSize: pipeline.BatchSize(),
		Logger:    logger,
	}
	if cfg.SlackConfigured() {
		api := slack.New(cfg.SlackBotToken, slack.OptionHTTPClient(httpx.ExternalHTTPClient()))
		deps.Notifier = slacknotify.NewNotifier(api, cfg.SlackChannelID)
		logger.Info("slack notifications enabled", slog.String("channel", cfg.SlackChannelID))
	}
	svc := analysis.NewService(deps)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.InboxConfigured() {
		sched, err := config.ParseSchedule(cfg.InboxSchedule)
		if err != nil {
			fatal("invalid inbox_schedule", err)
		}
		scanner := inbox.NewScanner(cfg.InboxDir, svc, logger)
		go scanner.Run(ctx, sched)
		logger.Info("inbox scanner scheduled", slog.String("dir", cfg.InboxDir), slog.String("cron", cfg.InboxSchedule))
	}

	srv := server.New(svc, server.Options{
		MaxUploadMB:    cfg.MaxUploadMB,
		Provider:       cfg.LLMProvider,
		Model:          cfg.LLMModel,
		MetricsHandler: m.Handler(),
		Logger:         logger,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(cfg.ListenAddr)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("http server error", slog.Any("error", err))
			stop()
			if db != nil {
				db.Close()
			}
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		if err := srv.Shutdown(context.Background()); err != nil {
			logger.Error("http server shutdown error", slog.Any("error", err))
		}
	}
}

func fatal(msg string, err error) {
	slog.Error(msg, slog.Any("error", err))
	os.Exit(1)
}
