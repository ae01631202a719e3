// Package app assembles the chat and worker object graphs from configuration.
// The Lambda binaries and the local dev server share it.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awslex "github.com/aws/aws-sdk-go-v2/service/lexruntimev2"
	awssesv2 "github.com/aws/aws-sdk-go-v2/service/sesv2"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/redis/go-redis/v9"

	"dining-concierge/internal/config"
	"dining-concierge/internal/integrations/lex"
	"dining-concierge/internal/integrations/openai"
	"dining-concierge/internal/integrations/paramstore"
	"dining-concierge/internal/integrations/queue"
	"dining-concierge/internal/integrations/ses"
	"dining-concierge/internal/repository"
	"dining-concierge/internal/usecase"
)

// Chat is the assembled conversational side. Close releases any connection
// the session backend holds.
type Chat struct {
	Service *usecase.ChatService
	Close   func() error
}

// Worker is the assembled fulfillment side.
type Worker struct {
	Runner *usecase.Runner
	Cache  *repository.CachedCatalog
}

func BuildChat(ctx context.Context, awsCfg aws.Config, cfg *config.ChatConfig) (*Chat, error) {
	classifier, err := newClassifier(awsCfg, cfg)
	if err != nil {
		return nil, err
	}

	sessions, closeFn, err := newSessionStore(ctx, awsCfg, cfg)
	if err != nil {
		return nil, err
	}

	q, err := queue.New(awssqs.NewFromConfig(awsCfg), cfg.QueueURL)
	if err != nil {
		_ = closeFn()
		return nil, fmt.Errorf("app: create request queue: %w", err)
	}

	svc, err := usecase.NewChatService(classifier, sessions, q, cfg.ClassifierTimeout, cfg.MaxMessageLength, cfg.Location())
	if err != nil {
		_ = closeFn()
		return nil, fmt.Errorf("app: create chat service: %w", err)
	}
	return &Chat{Service: svc, Close: closeFn}, nil
}

func newClassifier(awsCfg aws.Config, cfg *config.ChatConfig) (usecase.Classifier, error) {
	switch cfg.ClassifierBackend {
	case config.ClassifierOpenAI:
		ps, err := paramstore.New(awsssm.NewFromConfig(awsCfg), paramstore.WithCacheTTL(cfg.ParamCacheTTL))
		if err != nil {
			return nil, fmt.Errorf("app: create SSM client: %w", err)
		}
		opts := []openai.Option{openai.WithModel(cfg.OpenAIModel)}
		if cfg.OpenAIBaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.OpenAIBaseURL))
		}
		c, err := openai.NewClassifier(ps, cfg.ParamPrefix, opts...)
		if err != nil {
			return nil, fmt.Errorf("app: create openai classifier: %w", err)
		}
		slog.Info("classifier configured", "backend", cfg.ClassifierBackend, "model", cfg.OpenAIModel)
		return c, nil
	default:
		c, err := lex.NewClassifier(awslex.NewFromConfig(awsCfg), cfg.LexBotID, cfg.LexBotAliasID, cfg.LexLocaleID)
		if err != nil {
			return nil, fmt.Errorf("app: create lex classifier: %w", err)
		}
		slog.Info("classifier configured", "backend", cfg.ClassifierBackend, "bot", cfg.LexBotID)
		return c, nil
	}
}

func newSessionStore(ctx context.Context, awsCfg aws.Config, cfg *config.ChatConfig) (usecase.SessionStore, func() error, error) {
	if cfg.SessionBackend == config.SessionBackendRedis {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("app: ping redis %s: %w", cfg.RedisAddr, err)
		}
		store, err := repository.NewRedisSessionStore(client, cfg.SessionTTL)
		if err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("app: create redis session store: %w", err)
		}
		return store, client.Close, nil
	}

	store, err := repository.NewSessionStore(awsdynamodb.NewFromConfig(awsCfg), cfg.StateTable, cfg.SessionTTL)
	if err != nil {
		return nil, nil, fmt.Errorf("app: create session store: %w", err)
	}
	return store, func() error { return nil }, nil
}

func BuildWorker(ctx context.Context, awsCfg aws.Config, cfg *config.WorkerConfig) (*Worker, error) {
	sender := cfg.SenderEmail
	if sender == "" {
		ps, err := paramstore.New(awsssm.NewFromConfig(awsCfg), paramstore.WithCacheTTL(cfg.ParamCacheTTL))
		if err != nil {
			return nil, fmt.Errorf("app: create SSM client: %w", err)
		}
		sender, err = paramstore.Resolve(ctx, ps, cfg.SenderEmail, cfg.SenderEmailParam)
		if err != nil {
			return nil, fmt.Errorf("app: resolve sender address: %w", err)
		}
	}

	catalog, err := repository.NewCatalog(awsdynamodb.NewFromConfig(awsCfg), cfg.CatalogTable)
	if err != nil {
		return nil, fmt.Errorf("app: create catalog: %w", err)
	}
	cached, err := repository.NewCachedCatalog(catalog, cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("app: create catalog cache: %w", err)
	}

	var sesOpts []ses.Option
	if cfg.SESConfigSet != "" {
		sesOpts = append(sesOpts, ses.WithConfigurationSet(cfg.SESConfigSet))
	}
	notifier, err := ses.NewNotifier(awssesv2.NewFromConfig(awsCfg), sender, sesOpts...)
	if err != nil {
		return nil, fmt.Errorf("app: create notifier: %w", err)
	}

	qOpts := []queue.Option{queue.WithWaitTime(cfg.PollWait)}
	if cfg.DeadLetterURL != "" {
		qOpts = append(qOpts, queue.WithDeadLetterQueue(cfg.DeadLetterURL))
	} else {
		slog.Warn("no dead-letter queue configured; exhausted jobs rely on the queue redrive policy")
	}
	q, err := queue.New(awssqs.NewFromConfig(awsCfg), cfg.QueueURL, qOpts...)
	if err != nil {
		return nil, fmt.Errorf("app: create request queue: %w", err)
	}

	fulfiller, err := usecase.NewFulfiller(cached, notifier, q, cfg.MaxResults, cfg.PoolSize)
	if err != nil {
		return nil, fmt.Errorf("app: create fulfiller: %w", err)
	}
	runner, err := usecase.NewRunner(q, fulfiller, cfg.BatchSize, cfg.Concurrency, cfg.BatchTimeout)
	if err != nil {
		return nil, fmt.Errorf("app: create runner: %w", err)
	}
	return &Worker{Runner: runner, Cache: cached}, nil
}
