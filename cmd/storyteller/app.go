package main

import (
	"context"
	"fmt"
	"time"

	"storyteller-bot/internal/config"
	"storyteller-bot/internal/database"
	"storyteller-bot/internal/messaging"
	"storyteller-bot/internal/metrics"
	"storyteller-bot/internal/quota"
	"storyteller-bot/internal/render"
	"storyteller-bot/internal/repository"
	"storyteller-bot/internal/service"
	"storyteller-bot/internal/story"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	dbRetryDelay     = 2 * time.Second
	rabbitAttempts   = 5
	rabbitRetryDelay = 3 * time.Second
)

// app - собранные зависимости процесса.
type app struct {
	profiles repository.ProfileRepository
	archive  repository.StoryArchive
	gate     *quota.Gate
	synth    *story.Synthesizer
	covers   *service.CoverService
	pdf      *render.PDFRenderer
	notifier messaging.Notifier
	pusher   *metrics.Pusher

	closers []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// buildSynthesizer: AI_CLIENT_TYPE=none дает конвейер только с локальным генератором.
func buildSynthesizer(cfg *config.Config, log *zap.Logger) (*story.Synthesizer, error) {
	var ai service.AIClient
	if cfg.AIClientType != "none" {
		var err error
		if ai, err = service.NewAIClient(cfg, log); err != nil {
			return nil, err
		}
	}
	synth := story.NewSynthesizer(ai, story.Options{
		Timeout:     cfg.AITimeout,
		Temperature: cfg.AITemperature,
		MaxTokens:   cfg.AIMaxTokens,
	}, log)
	return synth, nil
}

func buildApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*app, error) {
	a := &app{}
	ok := false
	defer func() {
		if !ok {
			a.close()
		}
	}()

	loc, err := time.LoadLocation(cfg.QuotaTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid quota timezone: %w", err)
	}

	// Профили и счетчики
	var stats repository.StatsRepository
	switch cfg.StorageBackend {
	case "redis":
		client, err := repository.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisDB, cfg.RedisPassword)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		a.profiles = repository.NewRedisProfileRepository(client, log)
		stats = repository.NewRedisStatsRepository(client, log)
		log.Info("Using Redis storage", zap.String("addr", cfg.RedisAddr))
	default:
		a.profiles = repository.NewMemoryProfileRepository()
		stats = repository.NewMemoryStatsRepository()
		log.Warn("Using in-memory storage, profiles and stats are lost on restart")
	}
	a.gate = quota.NewGate(stats, cfg.DailyStoryLimit, loc, log)

	// Архив историй
	switch cfg.ArchiveBackend {
	case "postgres":
		pool, err := database.Connect(ctx, database.PoolConfig{
			DSN:          cfg.GetDSN(),
			MaxConns:     cfg.DBMaxConns,
			IdleTimeout:  cfg.DBIdleTimeout,
			ConnectTries: cfg.DBConnectTries,
			RetryDelay:   dbRetryDelay,
		}, log)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pool.Close)
		if err := database.NewMigrator(database.MigrationsFS, database.MigrationsDir, pool, log).Up(); err != nil {
			return nil, err
		}
		a.archive = repository.NewPgStoryArchive(pool, log)
	default:
		a.archive = repository.NewMemoryStoryArchive()
	}

	// Генерация
	synth, err := buildSynthesizer(cfg, log)
	if err != nil {
		return nil, err
	}
	a.synth = synth

	coverRenderer, err := render.NewCoverRenderer()
	if err != nil {
		return nil, err
	}
	var images service.ImageGenerator
	if cfg.AICoverEnabled && cfg.AIClientType == "openai" {
		images = service.NewOpenAIImageGenerator(cfg)
	}
	a.covers = service.NewCoverService(images, coverRenderer, cfg.AICoverTimeout, log)
	a.pdf = render.NewPDFRenderer(cfg.FontDir, cfg.RenderQuestions, loc, log)

	// События
	a.notifier = messaging.NoopNotifier{}
	if cfg.RabbitMQURL != "" {
		conn, err := messaging.Dial(ctx, cfg.RabbitMQURL, rabbitAttempts, rabbitRetryDelay, log)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = conn.Close() })
		ch, err := conn.Channel()
		if err != nil {
			return nil, fmt.Errorf("failed to open RabbitMQ channel: %w", err)
		}
		a.closers = append(a.closers, func() { _ = ch.Close() })
		if a.notifier, err = messaging.NewRabbitMQNotifier(ch, cfg.EventsQueue, log); err != nil {
			return nil, err
		}
	}

	// Метрики в Pushgateway: не критично для работы бота
	if cfg.PushgatewayURL != "" {
		pusher, err := metrics.NewPusher(cfg.PushgatewayURL, prometheus.DefaultGatherer, log)
		if err != nil {
			log.Warn("Pushgateway unavailable, metrics will not be pushed", zap.Error(err))
		} else {
			a.pusher = pusher
		}
	}

	ok = true
	return a, nil
}
