package telegram

import (
	"context"
	"strings"
	"sync"

	"storyteller-bot/internal/conversation"
	"storyteller-bot/internal/metrics"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Handler - получатель разобранных обновлений.
type Handler interface {
	HandleCommand(ctx context.Context, userID int64, command, args string) error
	HandleMessage(ctx context.Context, userID int64, text string) error
}

var _ Handler = (*conversation.Controller)(nil)

// Dispatcher разбирает обновления Telegram и передает их обработчику.
// У каждого пользователя своя FIFO-очередь и один обработчик, который ее разбирает,
// поэтому сообщения пользователя обрабатываются строго по порядку и по одному.
// Одновременно выполняется не больше maxConcurrent обработок (по всем пользователям).
type Dispatcher struct {
	handler Handler
	api     API
	limiter *userLimiter
	slots   *semaphore.Weighted // nil - без ограничения

	mu      sync.Mutex
	queues  map[int64][]tgbotapi.Update // ключ есть, пока работает обработчик пользователя
	workers sync.WaitGroup

	logger *zap.Logger
}

// NewDispatcher. api нужен только для ответа на callback-кнопки и может быть nil.
func NewDispatcher(handler Handler, api API, ratePerMinute, maxConcurrent int, logger *zap.Logger) *Dispatcher {
	d := &Dispatcher{
		handler: handler,
		api:     api,
		limiter: newUserLimiter(ratePerMinute),
		queues:  make(map[int64][]tgbotapi.Update),
		logger:  logger.Named("TelegramDispatcher"),
	}
	if maxConcurrent > 0 {
		d.slots = semaphore.NewWeighted(int64(maxConcurrent))
	}
	return d
}

// Dispatch ставит обновление в очередь пользователя и не блокируется.
// Обработка не прерывается отменой ctx: начатая генерация доводится до конца.
func (d *Dispatcher) Dispatch(ctx context.Context, update tgbotapi.Update) {
	ctx = context.WithoutCancel(ctx)
	userID, ok := updateUserID(update)
	if !ok {
		metrics.UpdatesTotal.WithLabelValues("ignored").Inc()
		return
	}

	d.mu.Lock()
	queue, running := d.queues[userID]
	d.queues[userID] = append(queue, update)
	if !running {
		d.workers.Add(1)
	}
	d.mu.Unlock()

	if !running {
		go d.drain(ctx, userID)
	}
}

// Wait дожидается, пока все очереди будут разобраны.
func (d *Dispatcher) Wait() {
	d.workers.Wait()
}

// drain обрабатывает очередь пользователя, пока она не опустеет.
func (d *Dispatcher) drain(ctx context.Context, userID int64) {
	defer d.workers.Done()
	for {
		d.mu.Lock()
		queue := d.queues[userID]
		if len(queue) == 0 {
			delete(d.queues, userID)
			d.mu.Unlock()
			return
		}
		update := queue[0]
		queue[0] = tgbotapi.Update{}
		d.queues[userID] = queue[1:]
		d.mu.Unlock()

		d.handleWithSlot(ctx, update)
	}
}

func (d *Dispatcher) handleWithSlot(ctx context.Context, update tgbotapi.Update) {
	if d.slots != nil {
		// ctx не отменяется (WithoutCancel), ошибки быть не может
		if err := d.slots.Acquire(ctx, 1); err != nil {
			d.logger.Error("Failed to acquire handler slot", zap.Error(err))
			return
		}
		defer d.slots.Release(1)
	}
	d.handle(ctx, update)
}

func updateUserID(update tgbotapi.Update) (int64, bool) {
	switch {
	case update.Message != nil && update.Message.From != nil:
		return update.Message.From.ID, true
	case update.CallbackQuery != nil && update.CallbackQuery.From != nil:
		return update.CallbackQuery.From.ID, true
	default:
		return 0, false
	}
}

func (d *Dispatcher) handle(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil:
		d.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		d.handleCallback(ctx, update.CallbackQuery)
	default:
		metrics.UpdatesTotal.WithLabelValues("ignored").Inc()
	}
}

func (d *Dispatcher) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	// бот работает только в личных чатах
	if msg.From == nil || msg.Chat == nil || !msg.Chat.IsPrivate() {
		metrics.UpdatesTotal.WithLabelValues("ignored").Inc()
		return
	}
	userID := msg.From.ID
	if !d.allow(userID) {
		return
	}

	log := d.logger.With(zap.Int64("userID", userID))
	if msg.IsCommand() {
		metrics.UpdatesTotal.WithLabelValues("command").Inc()
		if err := d.handler.HandleCommand(ctx, userID, msg.Command(), msg.CommandArguments()); err != nil {
			log.Error("Command failed", zap.String("command", msg.Command()), zap.Error(err))
		}
		return
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		metrics.UpdatesTotal.WithLabelValues("ignored").Inc()
		return
	}
	metrics.UpdatesTotal.WithLabelValues("message").Inc()
	if err := d.handler.HandleMessage(ctx, userID, text); err != nil {
		log.Error("Message handling failed", zap.Error(err))
	}
}

func (d *Dispatcher) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.From == nil {
		metrics.UpdatesTotal.WithLabelValues("ignored").Inc()
		return
	}
	if d.api != nil {
		if _, err := d.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
			d.logger.Warn("Failed to answer callback", zap.String("callbackID", cb.ID), zap.Error(err))
		}
	}
	userID := cb.From.ID
	if !d.allow(userID) {
		return
	}
	metrics.UpdatesTotal.WithLabelValues("callback").Inc()
	if err := d.handler.HandleCommand(ctx, userID, cb.Data, ""); err != nil {
		d.logger.Error("Callback command failed", zap.Int64("userID", userID), zap.String("data", cb.Data), zap.Error(err))
	}
}

func (d *Dispatcher) allow(userID int64) bool {
	if d.limiter.allow(userID) {
		return true
	}
	metrics.UpdatesRateLimited.Inc()
	d.logger.Debug("Update dropped by flood limiter", zap.Int64("userID", userID))
	return false
}
