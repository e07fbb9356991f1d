// Package notify pushes release alerts to Telegram. It is optional:
// when no bot token is configured the dashboard simply skips it.
package notify

import (
	"fmt"
	"html"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"devpulse/tracker"
)

// MessageSender sends messages to a chat.
type MessageSender interface {
	SendMessage(chatID int64, text string, html bool) error
}

// Notifier announces repositories that newly gained a release.
type Notifier struct {
	sender MessageSender
	chatID int64
}

// NewNotifier creates a notifier targeting one chat.
func NewNotifier(sender MessageSender, chatID int64) *Notifier {
	return &Notifier{sender: sender, chatID: chatID}
}

// ReleasesFound sends one message per repository. Delivery failures are
// logged and do not propagate: notification is best effort.
func (n *Notifier) ReleasesFound(repos []tracker.Repo) {
	for _, repo := range repos {
		text := formatRelease(repo)
		if err := n.sender.SendMessage(n.chatID, text, true); err != nil {
			slog.Warn("failed to send release notification",
				"repo", repo.FullName, "error", err)
			continue
		}
		slog.Info("release notification sent", "repo", repo.FullName)
	}
}

func formatRelease(repo tracker.Repo) string {
	rel := repo.LatestRelease
	if rel == nil {
		return fmt.Sprintf("🚀 <b>%s</b> has a new release\n%s",
			html.EscapeString(repo.FullName), repo.URL)
	}

	name := rel.Name
	if name == "" {
		name = rel.Tag
	}

	return fmt.Sprintf("🚀 <b>%s</b> released <b>%s</b>\n%s",
		html.EscapeString(repo.FullName), html.EscapeString(name), rel.URL)
}

// TelegramSender adapts the Telegram Bot API to MessageSender.
type TelegramSender struct {
	bot *tgbotapi.BotAPI
}

// NewTelegramSender creates a sender from a bot token.
func NewTelegramSender(token string) (*TelegramSender, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("initialize telegram bot: %w", err)
	}
	return &TelegramSender{bot: bot}, nil
}

// SendMessage sends a message to the given chat.
func (t *TelegramSender) SendMessage(chatID int64, text string, useHTML bool) error {
	msg := tgbotapi.NewMessage(chatID, text)
	if useHTML {
		msg.ParseMode = tgbotapi.ModeHTML
	}
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}
