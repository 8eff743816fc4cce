// Package telegram sends run reports via the Telegram Bot API.
// Reports are formatted with MarkdownV2 and delivered with retry logic, so a
// flaky network does not hide the outcome of a long batch run.
package telegram

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rewired-gh/ctascan/internal/pipeline"
)

// maxListedFailures caps how many failed assets a report names.
const maxListedFailures = 5

// Client handles Telegram notifications
type Client struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new Telegram client
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	return NewClientWithEndpoint(botToken, chatID, tgbotapi.APIEndpoint, maxRetries, retryDelayBase)
}

// NewClientWithEndpoint creates a client against a custom Bot API endpoint,
// such as a self-hosted Bot API server. endpoint uses the tgbotapi format
// with placeholders for token and method.
func NewClientWithEndpoint(botToken, chatID, endpoint string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(botToken, endpoint, &http.Client{Timeout: 30 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Client{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}, nil
}

// SendRunReport sends the outcome of a pipeline run
func (c *Client) SendRunReport(report *pipeline.Report) error {
	msg := tgbotapi.NewMessage(c.chatID, formatRunReport(report))
	msg.ParseMode = tgbotapi.ModeMarkdownV2

	// Send with retry
	var lastErr error

	for i := 0; i < c.maxRetries; i++ {
		_, err := c.bot.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err
		time.Sleep(c.retryDelayBase * time.Duration(i+1))
	}

	return fmt.Errorf("failed to send message after %d retries: %w", c.maxRetries, lastErr)
}

// formatRunReport formats a run report into a Telegram message
func formatRunReport(r *pipeline.Report) string {
	var sb strings.Builder

	header := "✅ *CTA run finished*"
	if r.Failed() > 0 {
		header = "⚠️ *CTA run finished with failures*"
	}
	sb.WriteString(header + "\n\n")

	fmt.Fprintf(&sb, "🏷 Kind: %s \\(%s\\)\n", escapeMarkdownV2(string(r.Kind)), escapeMarkdownV2(r.Backend))
	fmt.Fprintf(&sb, "🆔 Run: `%s`\n", r.RunID)
	fmt.Fprintf(&sb, "⏱ Duration: %s\n\n", escapeMarkdownV2(formatDuration(r.Duration())))

	fmt.Fprintf(&sb, "Discovered: *%d*\n", r.Discovered)
	fmt.Fprintf(&sb, "Stored: *%d*\n", r.Stored)
	fmt.Fprintf(&sb, "Skipped: %d\n", r.Skipped)
	fmt.Fprintf(&sb, "Failed: %d\n", r.Failed())
	if r.NoContent > 0 {
		fmt.Fprintf(&sb, "No caption: %d\n", r.NoContent)
	}
	if r.Malformed > 0 {
		fmt.Fprintf(&sb, "Malformed: %d\n", r.Malformed)
	}
	if r.Unreadable > 0 {
		fmt.Fprintf(&sb, "Unreadable sidecars: %d\n", r.Unreadable)
	}
	if r.Shadowed > 0 {
		fmt.Fprintf(&sb, "Shadowed: %d\n", r.Shadowed)
	}

	if s := r.Summary; s != nil {
		fmt.Fprintf(&sb, "\n📊 Analyzed %d of %d assets across %d posts\n",
			s.AnalyzedAssets, s.TotalRelevantAssets, s.TotalRelevantPosts)
	}

	if len(r.Failures) > 0 {
		sb.WriteString("\n*Failures*\n")
		for i, f := range r.Failures {
			if i == maxListedFailures {
				fmt.Fprintf(&sb, "\\.\\.\\. and %d more\n", len(r.Failures)-maxListedFailures)
				break
			}
			fmt.Fprintf(&sb, "%d\\. %s\n", i+1, escapeMarkdownV2(f.Error()))
		}
	}

	return sb.String()
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2
func escapeMarkdownV2(text string) string {
	// Characters that need escaping in MarkdownV2:
	// _ * [ ] ( ) ~ ` > # + - = | { } . ! and the backslash itself
	var sb strings.Builder
	for _, char := range text {
		switch char {
		case '\\', '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			sb.WriteRune('\\')
		}
		sb.WriteRune(char)
	}
	return sb.String()
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if hours := int(d.Hours()); hours >= 1 {
		return fmt.Sprintf("%dh%dm", hours, int(d.Minutes())%60)
	}
	if mins := int(d.Minutes()); mins >= 1 {
		return fmt.Sprintf("%dm", mins)
	}
	return fmt.Sprintf("%ds", int(d.Seconds()))
}
