// Package telegram delivers end-of-episode digests via the Telegram Bot API:
// the top strikes by hits and juice, plus each agent's memory summary. It
// handles MarkdownV2 escaping and retries delivery with linear backoff.
package telegram

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rewired-gh/monkeyball/internal/models"
)

// digestTopStrikes caps how many strikes the digest table lists.
const digestTopStrikes = 5

// Digest is the material for one episode notification.
type Digest struct {
	Ticker     string
	SpotPrice  float64
	Trials     int
	Duration   time.Duration
	Stats      []models.StatRow
	Summaries  []string
	FinishedAt time.Time
}

// Client sends digests to a single chat.
type Client struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new Telegram client.
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
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

// Send delivers an episode digest, retrying with linear backoff.
func (c *Client) Send(digest Digest) error {
	msg := tgbotapi.NewMessage(c.chatID, formatDigest(digest))
	msg.ParseMode = "MarkdownV2"

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		_, err := c.bot.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err
		time.Sleep(c.retryDelayBase * time.Duration(i+1))
	}
	return fmt.Errorf("failed to send digest after %d retries: %w", c.maxRetries, lastErr)
}

// formatDigest renders the digest as a MarkdownV2 message.
func formatDigest(d Digest) string {
	message := "🥥 *Coconut Episode Complete*\n\n"
	message += fmt.Sprintf("📅 Finished: %s\n", escapeMarkdownV2(d.FinishedAt.Format("2006-01-02 15:04:05")))
	message += fmt.Sprintf("📊 %s spot %s, %d trials over %s\n\n",
		escapeMarkdownV2(d.Ticker),
		escapeMarkdownV2(fmt.Sprintf("%.2f", d.SpotPrice)),
		d.Trials,
		escapeMarkdownV2(formatDuration(d.Duration)))

	top := topStrikes(d.Stats)
	if len(top) > 0 {
		message += "*Hottest Strikes*\n"
		for i, row := range top {
			message += fmt.Sprintf("%d\\. Strike *%d*: %d hits, retail %s, mm %s\n",
				i+1, row.Strike, row.Hits,
				escapeMarkdownV2(fmt.Sprintf("%.2f", row.RetailJuice)),
				escapeMarkdownV2(fmt.Sprintf("%.2f", row.MMJuice)))
		}
		message += "\n"
	}

	for _, summary := range d.Summaries {
		if summary == "" {
			continue
		}
		message += escapeMarkdownV2(summary) + "\n\n"
	}

	return message
}

// topStrikes returns up to digestTopStrikes rows with activity, hottest
// first. Strikes nothing ever touched are left out.
func topStrikes(stats []models.StatRow) []models.StatRow {
	active := make([]models.StatRow, 0, len(stats))
	for _, row := range stats {
		if row.Hits > 0 || row.RetailJuice > 0 || row.MMJuice > 0 {
			active = append(active, row)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		if active[i].Hits != active[j].Hits {
			return active[i].Hits > active[j].Hits
		}
		return active[i].MMJuice > active[j].MMJuice
	})
	if len(active) > digestTopStrikes {
		active = active[:digestTopStrikes]
	}
	return active
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2.
func escapeMarkdownV2(text string) string {
	result := ""
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			result += "\\" + string(char)
		default:
			result += string(char)
		}
	}
	return result
}

// formatDuration renders a duration in the largest sensible unit.
func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Hour:
		return fmt.Sprintf("%gh", round1(d.Hours()))
	case d >= time.Minute:
		return fmt.Sprintf("%gm", round1(d.Minutes()))
	default:
		return fmt.Sprintf("%gs", round1(d.Seconds()))
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
