package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/suPer8Hu/careerbot/internal/app"
	"github.com/suPer8Hu/careerbot/internal/config"
	"github.com/suPer8Hu/careerbot/internal/logx"
	"github.com/suPer8Hu/careerbot/internal/store/rabbitmq"
)

const (
	maxRetries = 3
	retryDelay = 5 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logx.Init()
		logx.Fatal().Err(err).Msg("load config")
	}
	logx.Init(logx.LoggerOpts{Production: cfg.IsProduction(), File: cfg.LogFile})

	if !cfg.AsyncEnabled() {
		logx.Fatal().Msg("RABBIT_URL is required for the worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, nil)
	if err != nil {
		logx.Fatal().Err(err).Msg("init")
	}
	defer a.Close()
	if a.Repo == nil {
		logx.Fatal().Msg("the worker needs DB_DSN: jobs are stored in the database")
	}

	consumer, err := rabbitmq.NewConsumer(cfg.RabbitURL, rabbitmq.ConsumerConfig{
		Queue:       cfg.RabbitQueue,
		Concurrency: cfg.WorkerConcurrency,
		MaxRetries:  maxRetries,
		RetryDelay:  retryDelay,
	}, a.Service.RunJob)
	if err != nil {
		logx.Fatal().Err(err).Msg("rabbitmq consumer")
	}
	defer consumer.Close()

	if err := consumer.Run(ctx); err != nil {
		logx.Error().Err(err).Msg("worker stopped")
	}
}
