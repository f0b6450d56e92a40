package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const pollTimeoutSeconds = 60

// BotCommands - меню команд, которое Telegram показывает рядом с полем ввода.
var BotCommands = []tgbotapi.BotCommand{
	{Command: "start", Description: "Main menu"},
	{Command: "story", Description: "Write a new story"},
	{Command: "settings", Description: "Default age, hero, length and style"},
	{Command: "math", Description: "Practice sheet with 10 problems"},
	{Command: "parent", Description: "Report for parents"},
	{Command: "delete", Description: "Delete my data"},
	{Command: "help", Description: "Help"},
}

// RegisterCommands публикует BotCommands (setMyCommands).
func RegisterCommands(api API) error {
	if _, err := api.Request(tgbotapi.NewSetMyCommands(BotCommands...)); err != nil {
		return fmt.Errorf("failed to register bot commands: %w", err)
	}
	return nil
}

// NewBotAPI подключается к Bot API и проверяет токен (getMe).
func NewBotAPI(token string, debug bool) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	api.Debug = debug
	return api, nil
}

// Bot получает обновления (long polling или webhook) и отдает их Dispatcher.
type Bot struct {
	api        *tgbotapi.BotAPI
	dispatcher *Dispatcher
	logger     *zap.Logger
}

func NewBot(api *tgbotapi.BotAPI, dispatcher *Dispatcher, logger *zap.Logger) *Bot {
	return &Bot{api: api, dispatcher: dispatcher, logger: logger.Named("TelegramBot")}
}

// RunPolling снимает вебхук и читает обновления до отмены ctx.
// После остановки дожидается уже начатых обработок.
func (b *Bot) RunPolling(ctx context.Context) error {
	if _, err := b.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeoutSeconds
	updates := b.api.GetUpdatesChan(u)
	defer b.dispatcher.Wait()

	b.logger.Info("Polling started", zap.String("bot", b.api.Self.UserName))
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.logger.Info("Polling stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.dispatcher.Dispatch(ctx, update)
		}
	}
}

// SetWebhook регистрирует адрес вебхука. Накопившиеся обновления сбрасываются.
func (b *Bot) SetWebhook(url string) error {
	wh, err := tgbotapi.NewWebhook(url)
	if err != nil {
		return fmt.Errorf("invalid webhook url: %w", err)
	}
	wh.DropPendingUpdates = true
	if _, err := b.api.Request(wh); err != nil {
		return fmt.Errorf("failed to set webhook: %w", err)
	}
	b.logger.Info("Webhook registered", zap.String("url", url))
	return nil
}

// Dispatcher - для HTTP-обработчика вебхука.
func (b *Bot) Dispatcher() *Dispatcher { return b.dispatcher }

// Username - имя бота из getMe, нужно для deep link.
func (b *Bot) Username() string { return b.api.Self.UserName }
