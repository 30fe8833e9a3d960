package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/suPer8Hu/careerbot/internal/app"
	"github.com/suPer8Hu/careerbot/internal/chat"
	"github.com/suPer8Hu/careerbot/internal/config"
	"github.com/suPer8Hu/careerbot/internal/httpapi"
	"github.com/suPer8Hu/careerbot/internal/httpapi/handlers"
	"github.com/suPer8Hu/careerbot/internal/logx"
	"github.com/suPer8Hu/careerbot/internal/store/rabbitmq"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logx.Init()
		logx.Fatal().Err(err).Msg("load config")
	}
	logx.Init(logx.LoggerOpts{Production: cfg.IsProduction(), File: cfg.LogFile})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pub chat.Publisher
	if cfg.AsyncEnabled() {
		p, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
		if err != nil {
			logx.Warn().Err(err).Msg("rabbitmq unavailable, async chat disabled")
		} else {
			defer p.Close()
			pub = p
		}
	}

	a, err := app.New(ctx, cfg, pub)
	if err != nil {
		logx.Fatal().Err(err).Msg("init")
	}
	defer a.Close()

	sweeper := cron.New()
	if _, err := sweeper.AddFunc(cfg.SessionSweepSchedule, func() {
		evicted, deleted := a.Sessions.Sweep(ctx, cfg.SessionIdleTTL)
		if evicted > 0 || deleted > 0 {
			logx.Info().Int("evicted", evicted).Int64("deleted", deleted).Msg("idle sessions swept")
		}
	}); err != nil {
		logx.Fatal().Err(err).Str("schedule", cfg.SessionSweepSchedule).Msg("invalid sweep schedule")
	}
	sweeper.Start()
	defer sweeper.Stop()

	h := handlers.NewHandler(a.DB, cfg, a.Service, a.ProviderReady)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(h),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logx.Info().Str("addr", cfg.HTTPAddr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Fatal().Err(err).Msg("listen")
		}
	}()

	<-ctx.Done()
	logx.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logx.Error().Err(err).Msg("graceful shutdown failed")
	}
}
