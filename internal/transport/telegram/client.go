package telegram

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf16"

	"storyteller-bot/internal/conversation"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// MaxMessageLength - лимит Telegram на текст одного сообщения (в UTF-16 единицах).
const MaxMessageLength = 4096

// API - часть *tgbotapi.BotAPI, которой пользуется адаптер.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

var _ API = (*tgbotapi.BotAPI)(nil)

// Client отправляет сообщения в личный чат пользователя.
type Client struct {
	api         API
	botUsername string
	logger      *zap.Logger
}

var _ conversation.Sender = (*Client)(nil)

// NewClient создает клиента. Если botUsername задан, кнопки меню ведут на deep link
// вида https://t.me/<bot>?start=<команда>, иначе используются callback-кнопки.
func NewClient(api API, botUsername string, logger *zap.Logger) *Client {
	return &Client{api: api, botUsername: botUsername, logger: logger.Named("TelegramClient")}
}

func (c *Client) SendText(ctx context.Context, userID int64, text string) error {
	for _, part := range splitMessage(text, MaxMessageLength) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := c.api.Send(tgbotapi.NewMessage(userID, part)); err != nil {
			return fmt.Errorf("send message to %d: %w", userID, err)
		}
	}
	return nil
}

func (c *Client) SendMenu(ctx context.Context, userID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(userID, text)
	msg.ReplyMarkup = c.menuKeyboard()
	if _, err := c.api.Send(msg); err != nil {
		return fmt.Errorf("send menu to %d: %w", userID, err)
	}
	return nil
}

func (c *Client) SendPhoto(ctx context.Context, userID int64, filename string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	photo := tgbotapi.NewPhoto(userID, tgbotapi.FileBytes{Name: filename, Bytes: data})
	if _, err := c.api.Send(photo); err != nil {
		return fmt.Errorf("send photo to %d: %w", userID, err)
	}
	return nil
}

func (c *Client) SendDocument(ctx context.Context, userID int64, filename string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	doc := tgbotapi.NewDocument(userID, tgbotapi.FileBytes{Name: filename, Bytes: data})
	if _, err := c.api.Send(doc); err != nil {
		return fmt.Errorf("send document to %d: %w", userID, err)
	}
	c.logger.Debug("Document sent", zap.Int64("userID", userID), zap.String("file", filename), zap.Int("bytes", len(data)))
	return nil
}

type menuItem struct {
	label   string
	command string
}

var menuRows = [][]menuItem{
	{{"📖 Story", "story"}, {"⚙️ Settings", "settings"}},
	{{"🧮 Math", "math"}, {"👪 Parent report", "parent"}},
	{{"🗑 Delete my data", "delete"}},
}

func (c *Client) menuKeyboard() tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(menuRows))
	for _, items := range menuRows {
		row := make([]tgbotapi.InlineKeyboardButton, 0, len(items))
		for _, it := range items {
			if c.botUsername != "" {
				row = append(row, tgbotapi.NewInlineKeyboardButtonURL(it.label, DeepLink(c.botUsername, it.command)))
			} else {
				row = append(row, tgbotapi.NewInlineKeyboardButtonData(it.label, it.command))
			}
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(row...))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// DeepLink - ссылка, открывающая бота с payload для /start.
func DeepLink(botUsername, payload string) string {
	return fmt.Sprintf("https://t.me/%s?start=%s", strings.TrimPrefix(botUsername, "@"), payload)
}

// splitMessage режет текст на части не длиннее limit UTF-16 единиц,
// по возможности по переводу строки, затем по пробелу.
func splitMessage(text string, limit int) []string {
	var parts []string
	for utf16Len(text) > limit {
		cut := cutIndex(text, limit)
		parts = append(parts, strings.TrimRight(text[:cut], " \n"))
		text = strings.TrimLeft(text[cut:], " \n")
	}
	if text != "" || len(parts) == 0 {
		parts = append(parts, text)
	}
	return parts
}

func cutIndex(text string, limit int) int {
	units, end := 0, len(text)
	lastNL, lastSpace := -1, -1
	for i, r := range text {
		n := utf16.RuneLen(r)
		if n < 1 {
			n = 1
		}
		if units+n > limit {
			end = i
			break
		}
		units += n
		switch r {
		case '\n':
			lastNL = i + 1
		case ' ':
			lastSpace = i + 1
		}
	}
	switch {
	case lastNL > 0:
		return lastNL
	case lastSpace > 0:
		return lastSpace
	default:
		return end
	}
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		if l := utf16.RuneLen(r); l > 0 {
			n += l
		} else {
			n++
		}
	}
	return n
}
