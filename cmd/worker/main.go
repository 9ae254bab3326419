package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"go.uber.org/zap"

	"github.com/techvaseegrah/gymsaas-sub001/internal/config"
	"github.com/techvaseegrah/gymsaas-sub001/internal/logger"
	"github.com/techvaseegrah/gymsaas-sub001/internal/notify"
	"github.com/techvaseegrah/gymsaas-sub001/internal/queue"
	"github.com/techvaseegrah/gymsaas-sub001/internal/store"
)

// Worker consumes punch events and forwards notifications to the chat service.
func main() {
	cfg := config.Load()
	if err := logger.Init(cfg.Env); err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.QueueBackend == "memory" {
		zap.L().Fatal("worker needs a shared queue; set QUEUE_BACKEND=redis")
	}
	if cfg.ChatServiceURL == "" {
		zap.L().Fatal("CHAT_SERVICE_URL not set")
	}

	redisClient, err := store.NewRedis(cfg.RedisAddr)
	if err != nil {
		zap.L().Fatal("redis config invalid", zap.Error(err))
	}
	defer redisClient.Close()
	if err := redisClient.Ping(ctx); err != nil {
		zap.L().Warn("redis not reachable yet, will keep retrying", zap.String("addr", cfg.RedisAddr), zap.Error(err))
	}

	q := queue.NewRedisQueue(redisClient.Client, "gym:punches")
	chat := notify.NewChat(cfg.ChatServiceURL)
	loc := cfg.Location()

	messages, err := q.Consume(ctx)
	if err != nil {
		zap.L().Fatal("queue consume init failed", zap.Error(err))
	}

	zap.L().Info("worker started, waiting for messages")
	notify.Forward(ctx, messages, chat, loc)

	zap.L().Info("worker stopped")
}
