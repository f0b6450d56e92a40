package main

import (
	"fmt"
	"os"

	"storyteller-bot/internal/config"
	"storyteller-bot/internal/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	// опорная таймзона квот должна загружаться и в минимальных образах
	_ "time/tzdata"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "storyteller",
		Short:         "Telegram bot that writes age-appropriate children's stories",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newMigrateCmd(), newGenerateCmd())
	return root
}

// newLogger строит логгер по конфигурации; в development включен режим разработки zap.
func newLogger(cfg *config.Config) *zap.Logger {
	log := logger.Must(logger.Config{
		Level:       cfg.LogLevel,
		Encoding:    cfg.LogEncoding,
		Development: cfg.Env == "development",
	})
	zap.ReplaceGlobals(log)
	return log
}
