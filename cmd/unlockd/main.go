package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"time"

	"unlockd/internal/app"
	"unlockd/internal/config"
	"unlockd/internal/ratelimit"
	"unlockd/internal/server"
	"unlockd/internal/util"
	"unlockd/pkg/notify"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	answerKey, err := config.ParseAnswerKey(cfg.AnswerKey)
	if err != nil {
		log.Fatalf("failed to parse answer key: %v", err)
	}
	pairingTTL, err := config.ParsePairingTTL(cfg.PairingTTL)
	if err != nil {
		log.Fatalf("failed to parse pairing TTL: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	var notifier notify.Notifier
	if cfg.AMQPURL != "" {
		amqpNotifier, err := notify.NewAMQPNotifier(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			log.Fatalf("failed to connect notification broker: %v", err)
		}
		defer amqpNotifier.Close()
		notifier = amqpNotifier
	}

	appCore, err := app.New(app.Config{
		DatabaseURL:   cfg.DatabaseURL,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		AnswerKey:     answerKey,
		PairingTTL:    pairingTTL,
		Notifier:      notifier,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}
	if err := appCore.SeedDefaultQuestions(); err != nil {
		log.Fatalf("failed to seed questions: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	appCore.StartScheduler(ctx)

	var revealLimiter, pairingLimiter *ratelimit.FixedWindowLimiter
	if cfg.RevealRateLimitPerMinute > 0 {
		revealLimiter, err = ratelimit.New(cfg.RedisAddr, cfg.RedisPassword, "unlockd:ratelimit:reveal", cfg.RevealRateLimitPerMinute, time.Minute)
		if err != nil {
			log.Fatalf("failed to init reveal rate limiter: %v", err)
		}
	}
	if cfg.PairingRateLimitPerMinute > 0 {
		pairingLimiter, err = ratelimit.New(cfg.RedisAddr, cfg.RedisPassword, "unlockd:ratelimit:pairing", cfg.PairingRateLimitPerMinute, time.Minute)
		if err != nil {
			log.Fatalf("failed to init pairing rate limiter: %v", err)
		}
	}

	httpServer := server.New(server.Config{
		App:            appCore,
		RevealLimiter:  revealLimiter,
		PairingLimiter: pairingLimiter,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("unlockd server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}
