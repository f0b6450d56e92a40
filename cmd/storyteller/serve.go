package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"storyteller-bot/internal/api"
	"storyteller-bot/internal/config"
	"storyteller-bot/internal/conversation"
	"storyteller-bot/internal/transport/telegram"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Telegram bot and the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(true)
			if err != nil {
				return err
			}
			log := newLogger(cfg)
			defer func() { _ = log.Sync() }()
			cfg.LogSummary(log)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, log)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	a, err := buildApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	botAPI, err := telegram.NewBotAPI(cfg.BotToken, cfg.BotDebug)
	if err != nil {
		return err
	}
	ctrl := conversation.NewController(conversation.Deps{
		Profiles:        a.profiles,
		Archive:         a.archive,
		Quota:           a.gate,
		Synth:           a.synth,
		Covers:          a.covers,
		PDF:             a.pdf,
		Notifier:        a.notifier,
		Sender:          telegram.NewClient(botAPI, botAPI.Self.UserName, log),
		AskIllustration: cfg.SettingsAskIllustration,
	}, log)
	// меню команд необязательно
	if err := telegram.RegisterCommands(botAPI); err != nil {
		log.Warn("Bot commands were not registered", zap.Error(err))
	}
	dispatcher := telegram.NewDispatcher(ctrl, botAPI, cfg.UserRatePerMinute, cfg.MaxConcurrentUpdates, log)
	bot := telegram.NewBot(botAPI, dispatcher, log)

	deps := api.RouterDeps{Synth: a.synth, Metrics: api.NewPrometheus()}
	if cfg.APIJWTSecret != "" {
		if deps.Verifier, err = api.NewJWTVerifier(cfg.APIJWTSecret, log); err != nil {
			return err
		}
	}
	if cfg.UsesWebhook() {
		deps.Webhook = dispatcher
	}
	router := api.NewRouter(api.RouterConfig{
		Env:            cfg.Env,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		WebhookPath:    cfg.WebhookPath,
	}, deps, log)
	server := api.NewServer(cfg.HTTPPort, router, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Run(gctx) })
	if cfg.UsesWebhook() {
		if err := bot.SetWebhook(cfg.WebhookURL()); err != nil {
			return fmt.Errorf("webhook mode: %w", err)
		}
		g.Go(func() error {
			<-gctx.Done()
			dispatcher.Wait()
			return nil
		})
	} else {
		g.Go(func() error { return bot.RunPolling(gctx) })
	}
	if a.pusher != nil {
		g.Go(func() error { return a.pusher.Run(gctx, cfg.PushgatewayInterval) })
	}

	log.Info("Storyteller bot started", zap.String("bot", bot.Username()), zap.Bool("webhook", cfg.UsesWebhook()))
	if err := g.Wait(); err != nil {
		log.Error("Storyteller bot stopped with error", zap.Error(err))
		return err
	}
	log.Info("Storyteller bot stopped")
	return nil
}
