package notifier

import (
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/amirphl/futures-trader/internal/utils"
)

type TelegramNotifier struct {
	bot     *tgbotapi.BotAPI
	chatID  int64
	retries int
	delay   time.Duration
}

func NewTelegramNotifier(token string, chatID int64, retries int, delay time.Duration) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram init failed: %w", err)
	}
	if retries < 1 {
		retries = 1
	}
	return &TelegramNotifier{bot: bot, chatID: chatID, retries: retries, delay: delay}, nil
}

func (t *TelegramNotifier) Send(message string) error {
	_, err := t.bot.Send(tgbotapi.NewMessage(t.chatID, message))
	return err
}

func (t *TelegramNotifier) SendWithRetry(message string) error {
	var err error
	for attempt := 1; attempt <= t.retries; attempt++ {
		err = t.Send(message)
		if err == nil {
			return nil
		}
		utils.GetLogger().Printf("Notifier | Telegram send failed (attempt %d/%d): %v", attempt, t.retries, err)
		if attempt < t.retries {
			time.Sleep(t.delay)
		}
	}
	return err
}
