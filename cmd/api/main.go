package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/techvaseegrah/gymsaas-sub001/internal/attendance"
	"github.com/techvaseegrah/gymsaas-sub001/internal/billing"
	"github.com/techvaseegrah/gymsaas-sub001/internal/config"
	"github.com/techvaseegrah/gymsaas-sub001/internal/face"
	"github.com/techvaseegrah/gymsaas-sub001/internal/handler"
	"github.com/techvaseegrah/gymsaas-sub001/internal/live"
	"github.com/techvaseegrah/gymsaas-sub001/internal/lock"
	"github.com/techvaseegrah/gymsaas-sub001/internal/logger"
	"github.com/techvaseegrah/gymsaas-sub001/internal/notify"
	"github.com/techvaseegrah/gymsaas-sub001/internal/queue"
	"github.com/techvaseegrah/gymsaas-sub001/internal/roster"
	"github.com/techvaseegrah/gymsaas-sub001/internal/store"
)

func main() {
	cfg := config.Load()
	if err := logger.Init(cfg.Env); err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Set Gin mode based on environment
	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		zap.L().Fatal("http server failed", zap.Error(err))
	}
}

func runHTTP(cfg config.App) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	health := map[string]handler.HealthCheck{}

	var (
		fighterStore roster.Store
		punchStore   attendance.Store
	)
	switch cfg.StoreBackend {
	case "memory":
		fighterStore = roster.NewMemoryStore()
		punchStore = attendance.NewMemoryStore()
		zap.L().Warn("using in-memory store; data is lost on restart")
	default:
		db, err := store.NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		fighterStore = roster.NewRepository(db.Client)
		punchStore = attendance.NewRepository(db.Client)
		health["db"] = db.Healthy
	}

	var redisClient *store.Redis
	if cfg.LockBackend == "redis" || cfg.QueueBackend != "memory" {
		var err error
		if redisClient, err = store.NewRedis(cfg.RedisAddr); err != nil {
			return err
		}
		defer redisClient.Close()
		if err := redisClient.Ping(ctx); err != nil {
			zap.L().Warn("redis not reachable", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		health["redis"] = redisClient.Healthy
	}

	var locker lock.Locker
	if cfg.LockBackend == "redis" {
		locker = lock.NewRedis(redisClient.Client, cfg.LockTTL, cfg.LockWait)
	} else {
		locker = lock.NewLocal(cfg.LockWait)
	}

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "gym:punches")
	}

	fighters := roster.NewService(fighterStore, cfg.FaceDescriptorDim)

	var matcher face.Matcher
	if cfg.FaceMatchMode == "remote" {
		remote := face.NewClient(cfg.FaceServiceURL, cfg.FaceMatchThreshold)
		if err := remote.Health(ctx); err != nil {
			zap.L().Warn("face service not available", zap.Error(err))
		}
		health["face"] = func(ctx context.Context) bool { return remote.Health(ctx) == nil }
		matcher = remote
	} else {
		matcher = face.NewLocalMatcher(fighters, cfg.FaceMatchThreshold, cfg.FaceDescriptorDim)
	}

	var subs attendance.Subscriptions
	if cfg.BillingServiceURL != "" {
		subs = billing.New(cfg.BillingServiceURL, cfg.Location())
	} else {
		zap.L().Warn("BILLING_SERVICE_URL not set; treating every subscription as open ended")
		subs = billing.NewMemory(true)
	}

	var publishers []attendance.Publisher
	queued := attendance.PublisherFunc(func(ctx context.Context, evt attendance.Event) error {
		return queue.PublishJSON(ctx, q, queue.TypePunch, evt)
	})
	switch {
	case cfg.QueueBackend != "memory":
		publishers = append(publishers, queued)
	case cfg.ChatServiceURL != "":
		// A memory queue has no worker; forward it in process.
		msgs, err := q.Consume(ctx)
		if err != nil {
			return err
		}
		go notify.Forward(ctx, msgs, notify.NewChat(cfg.ChatServiceURL), cfg.Location())
		publishers = append(publishers, queued)
	default:
		zap.L().Info("chat notifications disabled: memory queue without CHAT_SERVICE_URL")
	}
	var hub *live.Hub
	if cfg.LiveFeed {
		hub = live.NewHub()
		publishers = append(publishers, hub)
	}

	var fence attendance.Geofence
	if cfg.GeofenceEnabled() {
		fence = attendance.Geofence{
			Center:    attendance.Geo{Latitude: cfg.GymLatitude, Longitude: cfg.GymLongitude},
			MaxMeters: cfg.GymMaxDistanceMeters,
		}
	}

	att := attendance.NewService(punchStore, fighters, subs, locker, attendance.Options{
		Calendar:     attendance.Calendar{Loc: cfg.Location(), Cutoff: cfg.GymDayCutoff},
		FaceCooldown: cfg.FaceCooldown,
		Geofence:     fence,
		Matcher:      matcher,
		Publishers:   publishers,
	})

	r := handler.NewRouter(handler.Config{
		SigningKey:      cfg.JWTSigningKey,
		Issuer:          cfg.JWTIssuer,
		CORSOrigins:     cfg.CORSOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
		Health:          health,
	}, handler.New(att, fighters, hub))

	// Graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("starting server",
			zap.String("addr", srv.Addr),
			zap.String("store", cfg.StoreBackend),
			zap.String("lock", cfg.LockBackend),
			zap.String("queue", cfg.QueueBackend),
			zap.String("face", cfg.FaceMatchMode),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	zap.L().Info("shutting down server")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zap.L().Warn("server forced shutdown", zap.Error(err))
	}

	zap.L().Info("server exited")
	return nil
}
