package telegram

import (
	"strings"
	"testing"
	"time"

	"github.com/stakeline/betengine/internal/advisor"
	"github.com/stakeline/betengine/internal/models"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		duration time.Duration
		expected string
	}{
		{30 * 24 * time.Hour, "30d"},
		{25 * time.Hour, "1d"},
		{2 * time.Hour, "2h"},
		{30 * time.Minute, "30m"},
		{1 * time.Minute, "1m"},
	}

	for _, tt := range tests {
		if got := formatDuration(tt.duration); got != tt.expected {
			t.Errorf("formatDuration(%s) = %s, want %s", tt.duration, got, tt.expected)
		}
	}
}

func TestEscapeMarkdownV2(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"plain text", "plain text"},
		{"1.5%", "1\\.5%"},
		{"over_under_2.5", "over\\_under\\_2\\.5"},
		{"(brackets)", "\\(brackets\\)"},
		{"a-b+c=d", "a\\-b\\+c\\=d"},
	}

	for _, tt := range tests {
		if got := escapeMarkdownV2(tt.input); got != tt.expected {
			t.Errorf("escapeMarkdownV2(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func testReport() *advisor.CycleReport {
	return &advisor.CycleReport{
		RanAt:      time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
		Candidates: 4,
		Selected:   1,
		TotalStake: 35.23,
		Bankroll:   1000.0,
		Bets: []models.Bet{{
			ID: "b-1",
			Match: models.MatchInfo{
				ID: "m-1", HomeTeam: "Arsenal", AwayTeam: "Chelsea",
				League: "premier_league", StartTime: time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC),
			},
			Market:        models.MarketMatchWinner,
			Selection:     "home",
			Odds:          2.1,
			Bookmaker:     "alphabet",
			Probability:   0.55,
			Confidence:    models.ConfidenceMedium,
			ExpectedValue: 0.155,
			Stake:         35.23,
			StakePercent:  3.52,
			Status:        models.BetPending,
			CreatedAt:     time.Now(),
		}},
		Performance: models.PerformanceAggregate{
			Window:      720 * time.Hour,
			TotalBets:   10,
			SettledBets: 8,
			WinRate:     0.5,
			TotalStake:  200.0,
			TotalProfit: 15.0,
			ROI:         0.075,
		},
	}
}

func TestFormatCycleReport(t *testing.T) {
	message := formatCycleReport(testReport())

	for _, want := range []string{
		"Arsenal vs Chelsea",
		"match\\_winner",
		"alphabet",
		"*Total stake:*",
		"*Bankroll:*",
		"Win rate:",
	} {
		if !strings.Contains(message, want) {
			t.Errorf("Message missing %q:\n%s", want, message)
		}
	}

	// Dots and parens outside escapes would break MarkdownV2 parsing.
	if strings.Contains(message, " 2.1 ") {
		t.Error("Unescaped odds value in message")
	}
}

func TestFormatCycleReport_NoBets(t *testing.T) {
	report := testReport()
	report.Bets = nil
	report.Selected = 0

	message := formatCycleReport(report)
	if !strings.Contains(message, "No value bets selected today") {
		t.Errorf("Expected empty-day notice, got:\n%s", message)
	}
}

func TestFormatCycleReport_IncludesArbitrage(t *testing.T) {
	report := testReport()
	report.Arbitrage = []models.ArbitrageOpportunity{{
		MatchID:       "m-9",
		Market:        models.MarketMatchWinner,
		Margin:        0.95,
		ProfitPercent: 5.26,
	}}

	message := formatCycleReport(report)
	if !strings.Contains(message, "Arbitrage") {
		t.Errorf("Expected arbitrage line, got:\n%s", message)
	}
}

func TestFormatPerformance(t *testing.T) {
	message := formatPerformance(models.PerformanceAggregate{
		Window:      720 * time.Hour,
		TotalBets:   10,
		SettledBets: 8,
		WinRate:     0.625,
		TotalStake:  200.0,
		TotalProfit: 24.0,
		ROI:         0.12,
	})

	for _, want := range []string{"30d", "62\\.5%", "\\+12\\.0%", "8 settled"} {
		if !strings.Contains(message, want) {
			t.Errorf("Message missing %q:\n%s", want, message)
		}
	}
}
