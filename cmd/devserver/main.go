// Command devserver runs the chat endpoint and a scheduled fulfillment poll in
// one process for local development.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"dining-concierge/internal/app"
	"dining-concierge/internal/config"
	"dining-concierge/internal/httpserver"
	"dining-concierge/internal/logging"
	"dining-concierge/internal/scheduler"
)

func main() {
	cfg, err := config.LoadDev()
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Chat.LogLevel, cfg.Chat.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	chat, err := app.BuildChat(ctx, awsCfg, &cfg.Chat)
	if err != nil {
		slog.Error("failed to build chat service", "err", err)
		os.Exit(1)
	}
	defer func() {
		if err := chat.Close(); err != nil {
			slog.Warn("failed to close session backend", "err", err)
		}
	}()

	worker, err := app.BuildWorker(ctx, awsCfg, &cfg.Worker)
	if err != nil {
		slog.Error("failed to build worker", "err", err)
		os.Exit(1)
	}

	sched := scheduler.New()
	err = sched.Every(cfg.PollSchedule, "fulfillment_poll", func(ctx context.Context) error {
		summary, err := worker.Runner.PollOnce(ctx)
		if err != nil {
			return err
		}
		if summary.Received > 0 {
			slog.InfoContext(ctx, "poll cycle finished", "received", summary.Received, "outcomes", summary.Outcomes, "cached_restaurants", worker.Cache.Len())
		}
		return nil
	})
	if err != nil {
		slog.Error("invalid poll schedule", "schedule", cfg.PollSchedule, "err", err)
		os.Exit(1)
	}
	sched.Start()

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           httpserver.NewRouter(chat.Service, cfg.CORSOrigins),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("dev server listening", "addr", srv.Addr, "poll_schedule", cfg.PollSchedule)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown failed", "err", err)
	}
	sched.Stop()
}
