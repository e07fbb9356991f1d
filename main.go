package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"devpulse/chat"
	"devpulse/config"
	"devpulse/gemini"
	"devpulse/github"
	"devpulse/news"
	"devpulse/notify"
	"devpulse/scheduler"
	"devpulse/scraper"
	"devpulse/server"
	"devpulse/storage"
	"devpulse/tracker"
	"devpulse/videos"
)

func main() {
	// Load configuration
	configPath := config.GetConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", "path", configPath, "error", err)
		os.Exit(1)
	}

	// Set up structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	slog.Info("starting devpulse", "config", configPath)

	// Initialize database
	db, err := storage.NewDB(cfg.DBPath)
	if err != nil {
		slog.Error("failed to initialize database", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database initialized", "path", cfg.DBPath)

	// Initialize clients
	fetchTimeout := time.Duration(cfg.FetchTimeoutSecs) * time.Second
	aiClient := gemini.NewClient(cfg.GeminiAPIKey, gemini.WithTimeout(fetchTimeout))
	ghOpts := []github.Option{github.WithTimeout(fetchTimeout)}
	if cfg.GitHubToken != "" {
		ghOpts = append(ghOpts, github.WithToken(cfg.GitHubToken))
	}
	ghClient := github.NewClient(ghOpts...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Optional Telegram release notifier
	var trackerOpts []tracker.Option
	if cfg.NotifyEnabled() {
		sender, err := notify.NewTelegramSender(cfg.TelegramToken)
		if err != nil {
			slog.Error("failed to initialize Telegram notifier", "error", err)
			os.Exit(1)
		}
		notifier := notify.NewNotifier(sender, cfg.TelegramChatID)
		trackerOpts = append(trackerOpts, tracker.WithUpdateHook(notifier.ReleasesFound))
		slog.Info("telegram release notifier enabled", "chat_id", cfg.TelegramChatID)
	}

	// Initialize dashboard components
	repoTracker, err := tracker.New(ctx, ghClient, db, trackerOpts...)
	if err != nil {
		slog.Error("failed to initialize repository tracker", "error", err)
		os.Exit(1)
	}

	pageScraper := scraper.NewScraper(scraper.WithTimeout(fetchTimeout))
	newsAggregator, err := news.New(ctx, aiClient, db,
		news.WithModel(cfg.GeminiModel),
		news.WithScraper(pageScraper),
	)
	if err != nil {
		slog.Error("failed to initialize news aggregator", "error", err)
		os.Exit(1)
	}

	videoCurator, err := videos.New(ctx, aiClient, db, videos.WithModel(cfg.GeminiModel))
	if err != nil {
		slog.Error("failed to initialize video curator", "error", err)
		os.Exit(1)
	}

	chatSession := chat.NewSession(streamAdapter{aiClient}, cfg.GeminiChatModel,
		chat.WithOptions(gemini.GenerateOptions{ThinkingBudget: cfg.ThinkingBudget}),
	)

	// Schedule recurring release checks
	sched := scheduler.NewScheduler()
	if err := sched.Schedule(cfg.PollIntervalDuration(), func() {
		repoTracker.TriggerCheck(ctx)
	}); err != nil {
		slog.Error("failed to schedule release checks", "error", err)
		os.Exit(1)
	}
	sched.Start()
	defer sched.Stop()
	slog.Info("release checks scheduled", "interval", cfg.PollInterval)

	// Kick off an immediate check so the dashboard is fresh at startup
	repoTracker.TriggerCheck(ctx)

	// HTTP server
	srv := server.NewServer(repoTracker, newsAggregator, videoCurator, chatSession, aiClient, cfg.GeminiModel)
	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: srv.Handler(),
	}

	go func() {
		slog.Info("http server listening", "addr", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server failed", "error", err)
			cancel()
		}
	}()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http server shutdown", "error", err)
	}

	slog.Info("devpulse stopped")
}

// streamAdapter bridges the concrete Gemini client to the chat package's
// Streamer interface.
type streamAdapter struct {
	client *gemini.Client
}

func (a streamAdapter) Stream(ctx context.Context, model string, req *gemini.Request) (chat.FrameStream, error) {
	return a.client.Stream(ctx, model, req)
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
