package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/VerticalLabs-ai/rfp-ml-sub002/internal/api"
	"github.com/VerticalLabs-ai/rfp-ml-sub002/internal/archive"
	"github.com/VerticalLabs-ai/rfp-ml-sub002/internal/assembler"
	"github.com/VerticalLabs-ai/rfp-ml-sub002/internal/bootstrap"
	"github.com/VerticalLabs-ai/rfp-ml-sub002/internal/config"
	"github.com/VerticalLabs-ai/rfp-ml-sub002/internal/convert"
	"github.com/VerticalLabs-ai/rfp-ml-sub002/internal/notify"
	"github.com/VerticalLabs-ai/rfp-ml-sub002/internal/orchestrator"
	"github.com/VerticalLabs-ai/rfp-ml-sub002/internal/queue"
	"github.com/VerticalLabs-ai/rfp-ml-sub002/internal/ratelimit"
	"github.com/VerticalLabs-ai/rfp-ml-sub002/internal/store"
)

func main() {
	cfg := config.Load()

	logger, err := bootstrap.NewLogger(cfg.Env)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	sugar := logger.Sugar()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt)
		<-ch
		cancel()
	}()

	st, err := store.New(ctx, cfg.PostgresDSN)
	if err != nil {
		sugar.Fatalw("connect postgres", "err", err)
	}
	defer st.Close()

	if err := st.RunMigrations(ctx); err != nil {
		sugar.Fatalw("migrations", "err", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	q := queue.New(redisClient, cfg.VisibilityTimeout)
	limiter := ratelimit.NewTokenBucket(redisClient, cfg.RateLimitCapacity, cfg.RateLimitRefill, time.Hour)

	registry := bootstrap.Portals(cfg)
	asm := assembler.New(convert.New())
	sink := notify.Multi{notify.NewLogSink(sugar), notify.NewRedisSink(redisClient, cfg.NotifyChannel)}

	orc := orchestrator.New(cfg, st, st, q, registry, asm, sink, sugar)
	if archiver, err := archive.FromConfig(ctx, cfg); err != nil {
		sugar.Warnw("archiver disabled", "err", err)
	} else {
		orc.SetArchiver(archiver)
	}

	server := api.New(orc, st, limiter, sugar)
	httpServer := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: server.Router(),
	}

	sugar.Infow("api listening", "port", cfg.HTTPPort, "portals", registry.Names())
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalw("listen", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	_ = httpServer.Shutdown(shutdownCtx)
	_ = zap.L().Sync()
}
