package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/VerticalLabs-ai/rfp-ml-sub002/internal/archive"
	"github.com/VerticalLabs-ai/rfp-ml-sub002/internal/assembler"
	"github.com/VerticalLabs-ai/rfp-ml-sub002/internal/bootstrap"
	"github.com/VerticalLabs-ai/rfp-ml-sub002/internal/config"
	"github.com/VerticalLabs-ai/rfp-ml-sub002/internal/convert"
	"github.com/VerticalLabs-ai/rfp-ml-sub002/internal/notify"
	"github.com/VerticalLabs-ai/rfp-ml-sub002/internal/orchestrator"
	"github.com/VerticalLabs-ai/rfp-ml-sub002/internal/queue"
	"github.com/VerticalLabs-ai/rfp-ml-sub002/internal/store"
	"github.com/VerticalLabs-ai/rfp-ml-sub002/internal/telemetry"
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
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
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

	registry := bootstrap.Portals(cfg)
	asm := assembler.New(convert.New())
	sink := notify.Multi{notify.NewLogSink(sugar), notify.NewRedisSink(redisClient, cfg.NotifyChannel)}

	orc := orchestrator.New(cfg, st, st, q, registry, asm, sink, sugar)
	if archiver, err := archive.FromConfig(ctx, cfg); err != nil {
		sugar.Warnw("archiver disabled", "err", err)
	} else {
		orc.SetArchiver(archiver)
	}

	go func() {
		if err := http.ListenAndServe(cfg.MetricsAddr, telemetry.Handler()); err != nil {
			sugar.Warnw("metrics server stopped", "err", err)
		}
	}()

	sugar.Infow("orchestrator started",
		"max_concurrent", cfg.MaxConcurrentSubmissions,
		"tick", cfg.TickInterval,
		"portals", registry.Names())
	if err := orc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		sugar.Errorw("orchestrator stopped", "err", err)
	}
}
