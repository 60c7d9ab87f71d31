package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"realestate-leads/models"
	"realestate-leads/utils"
)

// Min interval between two messages to the same chat, below Telegram's
// ~30 messages/minute limit.
const telegramSendInterval = 2 * time.Second

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier posts hot-deal alerts to one chat.
type TelegramNotifier struct {
	bot      sender
	chatID   int64
	interval time.Duration
	logger   *utils.Logger

	mu       sync.Mutex
	lastSend time.Time
}

// NewTelegramNotifier connects to the Bot API and verifies the token.
func NewTelegramNotifier(token string, chatID int64, logger *utils.Logger) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: create bot: %w", err)
	}
	bot.Debug = false

	me, err := bot.GetMe()
	if err != nil {
		return nil, fmt.Errorf("telegram: get bot info: %w", err)
	}
	logger = logger.With("telegram")
	logger.Info("Telegram notifier initialized as @%s for chat %d", me.UserName, chatID)

	return newTelegramNotifier(bot, chatID, telegramSendInterval, logger), nil
}

func newTelegramNotifier(bot sender, chatID int64, interval time.Duration, logger *utils.Logger) *TelegramNotifier {
	return &TelegramNotifier{bot: bot, chatID: chatID, interval: interval, logger: logger}
}

// NotifyHotDeal sends the alert, waiting out the send interval first.
func (n *TelegramNotifier) NotifyHotDeal(ctx context.Context, l *models.Listing) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.lastSend.IsZero() {
		if wait := n.interval - time.Since(n.lastSend); wait > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
	}

	msg := tgbotapi.NewMessage(n.chatID, FormatHotDeal(l))
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.DisableWebPagePreview = true

	_, err := n.bot.Send(msg)
	n.lastSend = time.Now()
	if err != nil {
		return fmt.Errorf("telegram: send alert for %s: %w", l.ID, err)
	}
	n.logger.Debug("Sent hot deal %s to chat %d", l.ID, n.chatID)
	return nil
}
