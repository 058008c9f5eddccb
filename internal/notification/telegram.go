package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"
)

const telegramAPI = "https://api.telegram.org"

// TelegramNotifier posts alerts to one chat through the Telegram Bot API,
// formatted as MarkdownV2. INFO alerts (fills) are delivered silently.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
}

func NewTelegramNotifier(botToken, chatID string) *TelegramNotifier {
	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  telegramAPI,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

type sendMessage struct {
	ChatID              string `json:"chat_id"`
	Text                string `json:"text"`
	ParseMode           string `json:"parse_mode"`
	DisableNotification bool   `json:"disable_notification,omitempty"`
}

// telegramReply is the Bot API envelope; Description explains failures.
type telegramReply struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (t *TelegramNotifier) Send(ctx context.Context, alert Alert) error {
	body, err := json.Marshal(sendMessage{
		ChatID:              t.chatID,
		Text:                renderMarkdown(alert),
		ParseMode:           "MarkdownV2",
		DisableNotification: alert.Level == AlertInfo,
	})
	if err != nil {
		return fmt.Errorf("telegram: marshal: %w", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		// The request URL carries the bot token; keep it out of logs.
		return fmt.Errorf("telegram: send to chat %s failed", t.chatID)
	}
	defer resp.Body.Close()

	var reply telegramReply
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	_ = json.Unmarshal(raw, &reply)
	if resp.StatusCode != http.StatusOK || (len(raw) > 0 && !reply.OK) {
		if reply.Description != "" {
			return fmt.Errorf("telegram: http %d: %s", resp.StatusCode, reply.Description)
		}
		return fmt.Errorf("telegram: unexpected status %d", resp.StatusCode)
	}

	slog.Debug("telegram alert sent", "title", alert.Title, "pair", alert.Pair)
	return nil
}

// renderMarkdown lays an alert out as a bold title, the message, and the
// fields as a monospace block.
func renderMarkdown(a Alert) string {
	icon := "🔔"
	switch a.Level {
	case AlertWarning:
		icon = "⚠️"
	case AlertCritical:
		icon = "🚨"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s *%s*", icon, escapeMarkdown(a.Title))
	if a.Message != "" {
		fmt.Fprintf(&b, "\n\n%s", escapeMarkdown(a.Message))
	}
	if len(a.Fields) > 0 {
		keys := make([]string, 0, len(a.Fields))
		width := 0
		for k := range a.Fields {
			keys = append(keys, k)
			if len(k) > width {
				width = len(k)
			}
		}
		sort.Strings(keys)
		b.WriteString("\n```\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "%-*s %s\n", width, k, escapeCode(a.Fields[k]))
		}
		b.WriteString("```")
	}
	return b.String()
}

var markdownEscaper = strings.NewReplacer(
	"_", `\_`, "*", `\*`, "[", `\[`, "]", `\]`, "(", `\(`, ")", `\)`,
	"~", `\~`, "`", "\\`", ">", `\>`, "#", `\#`, "+", `\+`, "-", `\-`,
	"=", `\=`, "|", `\|`, "{", `\{`, "}", `\}`, ".", `\.`, "!", `\!`,
	`\`, `\\`,
)

// Inside pre blocks only the backslash and backtick need escaping.
var codeEscaper = strings.NewReplacer("`", "\\`", `\`, `\\`)

func escapeMarkdown(s string) string { return markdownEscaper.Replace(s) }

func escapeCode(s string) string { return codeEscaper.Replace(s) }
