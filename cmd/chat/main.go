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

	cfg, err := config.LoadChat()
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

	chat, err := app.BuildChat(ctx, awsCfg, cfg)
	if err != nil {
		slog.Error("failed to build chat service", "err", err)
		os.Exit(1)
	}

	h, err := handler.NewHandler(chat.Service)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}
