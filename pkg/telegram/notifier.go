package telegram

import (
	"context"
	"errors"
	"fmt"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/exp/slog"
)

// ErrNoAdminChat is returned when no admin chat has been registered yet
var ErrNoAdminChat = errors.New("admin chat id unknown")

// Notifier sends operational alerts to the admin chat
type Notifier struct {
	bot *tgbotapi.BotAPI

	mu     sync.RWMutex
	chatID int64
}

// NewNotifier authorizes the bot. A zero chatID is filled in by the first
// /start command received through Listen.
func NewNotifier(token string, chatID int64) (*Notifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("authorize telegram bot: %w", err)
	}
	return newNotifier(bot, chatID), nil
}

// NewNotifierWithEndpoint is NewNotifier against a custom API endpoint
func NewNotifierWithEndpoint(token, endpoint string, client tgbotapi.HTTPClient, chatID int64) (*Notifier, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("authorize telegram bot: %w", err)
	}
	return newNotifier(bot, chatID), nil
}

func newNotifier(bot *tgbotapi.BotAPI, chatID int64) *Notifier {
	slog.Info("Telegram bot authorized", "username", bot.Self.UserName)
	return &Notifier{bot: bot, chatID: chatID}
}

// ChatID returns the registered admin chat
func (n *Notifier) ChatID() int64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.chatID
}

// Notify sends text to the admin chat
func (n *Notifier) Notify(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	chatID := n.ChatID()
	if chatID == 0 {
		return ErrNoAdminChat
	}
	if _, err := n.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}

// Listen registers the chat of whoever sends /start as the admin chat.
// It blocks until ctx is done.
func (n *Notifier) Listen(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := n.bot.GetUpdatesChan(u)
	defer n.bot.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			if update.Message.Command() != "start" {
				continue
			}
			n.mu.Lock()
			n.chatID = update.Message.Chat.ID
			n.mu.Unlock()
			slog.Info("Admin chat registered", "chatId", update.Message.Chat.ID)
			msg := tgbotapi.NewMessage(update.Message.Chat.ID, "Admin chat registered. Purchase alerts will arrive here.")
			if _, err := n.bot.Send(msg); err != nil {
				slog.Warn("Failed to acknowledge admin registration", "error", err)
			}
		}
	}
}
