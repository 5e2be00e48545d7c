// Package telegram delivers cycle reports and performance summaries to the
// operator via the Telegram Bot API. Messages use MarkdownV2 formatting with
// escaping, and delivery is retried with a linearly growing delay.
//
// The client is strictly a consumer of engine outputs; it never feeds back
// into selection, staking, or the ledger.
package telegram

import (
	"fmt"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stakeline/betengine/internal/advisor"
	"github.com/stakeline/betengine/internal/models"
)

// Client handles Telegram notifications
type Client struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new Telegram client
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

// SendCycleReport sends the daily recommendation summary.
func (c *Client) SendCycleReport(report *advisor.CycleReport) error {
	return c.send(formatCycleReport(report))
}

// SendPerformance sends a standalone performance summary.
func (c *Client) SendPerformance(perf models.PerformanceAggregate) error {
	return c.send(formatPerformance(perf))
}

// send delivers a MarkdownV2 message with retry.
func (c *Client) send(text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
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

	return fmt.Errorf("failed to send message after %d retries: %w", c.maxRetries, lastErr)
}

// formatCycleReport formats a cycle report into a Telegram message
func formatCycleReport(report *advisor.CycleReport) string {
	message := "🎯 *Daily Bet Recommendations*\n\n"
	message += fmt.Sprintf("📅 %s\n\n", escapeMarkdownV2(report.RanAt.Format("2006-01-02 15:04")))

	if len(report.Bets) == 0 {
		message += "No value bets selected today\\.\n"
	}

	for i, bet := range report.Bets {
		fixture := fmt.Sprintf("%s vs %s", bet.Match.HomeTeam, bet.Match.AwayTeam)
		message += fmt.Sprintf("%d\\. *%s*\n", i+1, escapeMarkdownV2(fixture))
		message += fmt.Sprintf("   🏆 %s, %s\n",
			escapeMarkdownV2(bet.Match.League),
			escapeMarkdownV2(bet.Match.StartTime.Format("Jan 2 15:04")))
		message += fmt.Sprintf("   🎲 %s / %s @ %s \\(%s\\)\n",
			escapeMarkdownV2(string(bet.Market)),
			escapeMarkdownV2(bet.Selection),
			escapeMarkdownV2(fmt.Sprintf("%.2f", bet.Odds)),
			escapeMarkdownV2(bet.Bookmaker))
		message += fmt.Sprintf("   💰 Stake: %s \\(%s of bankroll\\)\n",
			escapeMarkdownV2(fmt.Sprintf("%.2f", bet.Stake)),
			escapeMarkdownV2(fmt.Sprintf("%.2f%%", bet.StakePercent)))
		message += fmt.Sprintf("   📊 EV: %s \\| Confidence: %s\n\n",
			escapeMarkdownV2(fmt.Sprintf("%+.3f", bet.ExpectedValue)),
			escapeMarkdownV2(bet.Confidence.String()))
	}

	message += fmt.Sprintf("*Total stake:* %s\n", escapeMarkdownV2(fmt.Sprintf("%.2f", report.TotalStake)))
	message += fmt.Sprintf("*Potential profit:* %s\n", escapeMarkdownV2(fmt.Sprintf("%.2f", report.PotentialProfit)))
	message += fmt.Sprintf("*Bankroll:* %s\n", escapeMarkdownV2(fmt.Sprintf("%.2f", report.Bankroll)))

	for _, arb := range report.Arbitrage {
		message += fmt.Sprintf("\n⚖️ Arbitrage: %s %s, profit %s\n",
			escapeMarkdownV2(arb.MatchID),
			escapeMarkdownV2(string(arb.Market)),
			escapeMarkdownV2(fmt.Sprintf("%.2f%%", arb.ProfitPercent)))
	}

	message += "\n" + formatPerformance(report.Performance)
	return message
}

// formatPerformance formats a performance aggregate into a Telegram message
func formatPerformance(perf models.PerformanceAggregate) string {
	message := fmt.Sprintf("📈 *Performance \\(last %s\\)*\n", escapeMarkdownV2(formatDuration(perf.Window)))
	message += fmt.Sprintf("   Bets: %d \\(%d settled\\)\n", perf.TotalBets, perf.SettledBets)
	message += fmt.Sprintf("   Win rate: %s\n", escapeMarkdownV2(fmt.Sprintf("%.1f%%", perf.WinRate*100)))
	message += fmt.Sprintf("   Staked: %s \\| Profit: %s\n",
		escapeMarkdownV2(fmt.Sprintf("%.2f", perf.TotalStake)),
		escapeMarkdownV2(fmt.Sprintf("%+.2f", perf.TotalProfit)))
	message += fmt.Sprintf("   ROI: %s\n", escapeMarkdownV2(fmt.Sprintf("%+.1f%%", perf.ROI*100)))
	return message
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2
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

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	days := int(d.Hours()) / 24
	if days >= 1 {
		return fmt.Sprintf("%dd", days)
	}
	hours := int(d.Hours())
	if hours >= 1 {
		return fmt.Sprintf("%dh", hours)
	}
	return fmt.Sprintf("%dm", int(d.Minutes()))
}
