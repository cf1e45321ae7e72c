package notify

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"
)

// levelTag renders a Level as the bracketed prefix + emoji combination
// used in the rendered Telegram message.
func levelTag(l Level) (prefix, emoji string) {
	switch l {
	case Critical:
		return "CRIT", "🚨"
	case Warning:
		return "WARN", "⚠️"
	default:
		return "INFO", "ℹ️"
	}
}

// markdownV2Replacer escapes every character MarkdownV2 treats as
// special, per Telegram's Bot API formatting rules.
var markdownV2Replacer = strings.NewReplacer(
	"_", "\\_", "*", "\\*", "[", "\\[", "]", "\\]", "(", "\\(", ")", "\\)",
	"~", "\\~", "`", "\\`", ">", "\\>", "#", "\\#", "+", "\\+", "-", "\\-",
	"=", "\\=", "|", "\\|", "{", "\\{", "}", "\\}", ".", "\\.", "!", "\\!",
)

func escapeMarkdownV2(s string) string {
	return markdownV2Replacer.Replace(s)
}

// TelegramNotifier delivers alerts as a MarkdownV2-formatted message via
// the Telegram Bot API's sendMessage endpoint.
type TelegramNotifier struct {
	botToken string
	chatID   string
	client   *http.Client
}

// NewTelegramNotifier creates a Telegram notifier. botToken is a Bot API
// token from @BotFather; chatID is the target chat/group/channel.
func NewTelegramNotifier(botToken, chatID string) *TelegramNotifier {
	return &TelegramNotifier{botToken: botToken, chatID: chatID, client: httpClient(10 * time.Second)}
}

func (t *TelegramNotifier) Send(ctx context.Context, alert Alert) error {
	prefix, emoji := levelTag(alert.Level)
	text := fmt.Sprintf(
		"%s `[%s]` *%s*\n%s",
		emoji, prefix, escapeMarkdownV2(alert.Title), escapeMarkdownV2(alert.Message),
	)

	payload := map[string]any{
		"chat_id":    t.chatID,
		"text":       text,
		"parse_mode": "MarkdownV2",
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.botToken)
	if err := postJSON(ctx, t.client, url, payload, nil); err != nil {
		return fmt.Errorf("notify: telegram: %w", err)
	}
	log.Printf("[notify] telegram delivered: %s", alert.Title)
	return nil
}
