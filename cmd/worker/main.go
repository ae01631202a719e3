package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"dining-concierge/handler"
	"dining-concierge/internal/app"
	"dining-concierge/internal/config"
	"dining-concierge/internal/logging"
)

func main() {
	ctx := context.Background()

	cfg, err := config.LoadWorker()
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	built, err := app.BuildWorker(ctx, awsCfg, cfg)
	if err != nil {
		slog.Error("failed to build worker", "err", err)
		os.Exit(1)
	}

	w, err := handler.NewWorker(built.Runner)
	if err != nil {
		slog.Error("failed to create worker handler", "err", err)
		os.Exit(1)
	}

	slog.Info("worker starting", "mode", cfg.Mode, "queue", cfg.QueueURL)
	if cfg.Mode == config.WorkerModePoll {
		lambda.Start(w.HandleSchedule)
		return
	}
	lambda.Start(w.HandleSQS)
}
