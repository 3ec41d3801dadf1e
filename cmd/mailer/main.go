package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/RAJESHREDDY0508/AI-tutor-platform/internal/config"
	"github.com/RAJESHREDDY0508/AI-tutor-platform/internal/pkg/logger"
	"github.com/RAJESHREDDY0508/AI-tutor-platform/internal/pkg/mailqueue"
	"github.com/RAJESHREDDY0508/AI-tutor-platform/internal/pkg/metrics"
	"github.com/RAJESHREDDY0508/AI-tutor-platform/internal/pkg/notify"

	"github.com/redis/go-redis/v9"
)

// main 是邮件队列 Worker 的入口函数。
//
// 从 Redis Stream 消费 email.send 事件并通过 SMTP 投递，
// 失败按重试计数重入队，超限进入死信 Stream。
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	appLogger := logger.NewDefault(cfg.App.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.InitMetrics()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       0,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		appLogger.Error("redis ping failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer rdb.Close()

	mailer := notify.NewEmailNotifier(&cfg.Email, appLogger)

	hostname, _ := os.Hostname()
	consumer, err := mailqueue.NewConsumer(rdb, appLogger,
		cfg.Queue.EmailStream, cfg.Queue.EmailGroup, fmt.Sprintf("mailer-%s-%d", hostname, os.Getpid()))
	if err != nil {
		appLogger.Error("init consumer failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	appLogger.Info("mailer worker started",
		slog.String("stream", cfg.Queue.EmailStream),
		slog.String("group", cfg.Queue.EmailGroup))

	err = consumer.Run(ctx, func(ctx context.Context, msg *mailqueue.Message) error {
		if msg.EventType != mailqueue.EventEmailSend {
			appLogger.Warn("unknown event type, skipping", slog.String("event_type", msg.EventType))
			return nil
		}

		var payload mailqueue.EmailPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return fmt.Errorf("decode email payload: %w", err)
		}

		if err := mailer.Send(payload.To, payload.Subject, payload.TemplateID, payload.Data); err != nil {
			metrics.EmailJobsTotal.WithLabelValues("failed").Inc()
			return err
		}
		metrics.EmailJobsTotal.WithLabelValues("delivered").Inc()
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		appLogger.Error("consumer stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}

	appLogger.Info("mailer worker stopped")
}
