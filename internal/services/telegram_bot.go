package services

import (
	"context"
	"fmt"
	"html"
	"log"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"rolegate/internal/models"
)

// TelegramService шлёт уведомления администраторам в Telegram-чат.
type TelegramService struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

func NewTelegramService(botToken string, chatID int64) (*TelegramService, error) {
	return NewTelegramServiceWithEndpoint(botToken, chatID, tgbotapi.APIEndpoint, &http.Client{})
}

func NewTelegramServiceWithEndpoint(botToken string, chatID int64, endpoint string, client *http.Client) (*TelegramService, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(botToken, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	return &TelegramService{bot: bot, chatID: chatID}, nil
}

func (t *TelegramService) SendMessage(chatID int64, text string) error {
	if t == nil || t.bot == nil || chatID == 0 {
		log.Printf("[tg][skip] bot or chatID empty (chatID=%d)", chatID)
		return nil
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if _, err := t.bot.Send(msg); err != nil {
		log.Printf("[tg][send][err] chatID=%d: %v", chatID, err)
		return err
	}
	return nil
}

// NotifyOutcome: в админ-чат уходят только исходы, требующие внимания.
func (t *TelegramService) NotifyOutcome(_ context.Context, req models.VerificationRequest, res models.VerificationResult) {
	if t == nil {
		return
	}
	var text string
	switch {
	case res.State == models.StateBlocked:
		text = fmt.Sprintf("🚫 <b>Blocked</b> user <code>%s</code> from <code>%s</code>",
			html.EscapeString(req.UserID), html.EscapeString(req.SourceAddress))
	case res.State == models.StateGrantError:
		text = fmt.Sprintf("⚠️ <b>Grant error</b> (%s) for user <code>%s</code>: %s",
			res.GrantError, html.EscapeString(req.UserID), html.EscapeString(errString(res.Err)))
	case res.PersistErr != nil:
		text = fmt.Sprintf("⚠️ Role granted to <code>%s</code> but record not saved: %s",
			html.EscapeString(req.UserID), html.EscapeString(res.PersistErr.Error()))
	default:
		return
	}
	_ = t.SendMessage(t.chatID, text)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
