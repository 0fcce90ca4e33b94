package telegram

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"artstudioapi/services"
)

func EscapeMessage(message string) string {
	r := strings.NewReplacer(
		"_", "\\_",
		"*", "\\*",
		"[", "\\[",
		"`", "\\`",
	)
	return r.Replace(message)
}

// Notifier pushes operational messages to the admin chat. Alerts and daily
// reports only, it never talks to users.
type Notifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

func NewNotifierFromEnv() (*Notifier, error) {
	token := services.GetEnv("TG_TOKEN", "")
	if token == "" {
		return nil, fmt.Errorf("TG_TOKEN is not set")
	}
	var chatID int64
	if _, err := fmt.Sscanf(services.GetEnv("TG_ADMIN_CHAT_ID", ""), "%d", &chatID); err != nil {
		return nil, fmt.Errorf("TG_ADMIN_CHAT_ID is not set or invalid: %v", err)
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram bot: %v", err)
	}
	fmt.Printf("Telegram notifier authorized on account %s\n", bot.Self.UserName)
	return &Notifier{bot: bot, chatID: chatID}, nil
}

func (n *Notifier) Send(text string) error {
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = "markdown"
	_, err := n.bot.Send(msg)
	return err
}
