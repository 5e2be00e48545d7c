// Package models defines the core domain entities for the betting engine:
// bookmaker odds quotes, model predictions, value bets, staked recommendations,
// ledger bet records, and derived performance aggregates.
// All persisted models include built-in validation to ensure data integrity
// throughout the application.
package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Market identifies a betting market within a match.
type Market string

const (
	MarketMatchWinner   Market = "match_winner"
	MarketOverUnder15   Market = "over_under_1.5"
	MarketOverUnder25   Market = "over_under_2.5"
	MarketOverUnder35   Market = "over_under_3.5"
	MarketBTTS          Market = "btts"
	MarketAsianHandicap Market = "asian_handicap"
)

// ParseMarket converts a string into a known Market.
func ParseMarket(s string) (Market, error) {
	m := Market(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case MarketMatchWinner, MarketOverUnder15, MarketOverUnder25, MarketOverUnder35,
		MarketBTTS, MarketAsianHandicap:
		return m, nil
	}
	return "", fmt.Errorf("unknown market: %q", s)
}

// Outcomes returns the mutually exclusive outcome set for the market, or nil
// when the market has no fixed outcome set (e.g. asian handicap lines).
// Arbitrage detection only applies to markets with a complete outcome set.
func (m Market) Outcomes() []string {
	switch m {
	case MarketMatchWinner:
		return []string{"home", "draw", "away"}
	case MarketOverUnder15, MarketOverUnder25, MarketOverUnder35:
		return []string{"over", "under"}
	case MarketBTTS:
		return []string{"yes", "no"}
	}
	return nil
}

// MatchInfo carries the descriptive metadata for a match. It is supplied by
// the external match collector and copied onto every downstream record so the
// ledger stays self-contained.
type MatchInfo struct {
	ID        string    `json:"id"`
	HomeTeam  string    `json:"home_team"`
	AwayTeam  string    `json:"away_team"`
	League    string    `json:"league"`
	StartTime time.Time `json:"start_time"`
}

// Validate checks that all match fields are valid.
func (m *MatchInfo) Validate() error {
	if m.ID == "" {
		return errors.New("match ID must not be empty")
	}
	if m.HomeTeam == "" || m.AwayTeam == "" {
		return errors.New("match teams must not be empty")
	}
	if m.StartTime.IsZero() {
		return errors.New("match start time must be set")
	}
	return nil
}

// OddsQuote is one bookmaker's decimal price for one selection in one market
// of one match. Quotes are immutable once recorded; several quotes per
// (match, market, selection) are expected, one per bookmaker.
type OddsQuote struct {
	MatchID    string    `json:"match_id"`
	Market     Market    `json:"market"`
	Selection  string    `json:"selection"`
	Odds       float64   `json:"odds"`
	Bookmaker  string    `json:"bookmaker"`
	ObservedAt time.Time `json:"observed_at"`
}

// Validate checks that all quote fields are valid. Decimal odds must be
// strictly greater than 1.0; anything else cannot pay out and would poison
// downstream EV and Kelly computations.
func (q *OddsQuote) Validate() error {
	if q.MatchID == "" {
		return errors.New("quote match ID must not be empty")
	}
	if q.Market == "" {
		return errors.New("quote market must not be empty")
	}
	if q.Selection == "" {
		return errors.New("quote selection must not be empty")
	}
	if q.Odds <= 1.0 {
		return fmt.Errorf("quote odds must be > 1.0, got %.3f", q.Odds)
	}
	if q.Bookmaker == "" {
		return errors.New("quote bookmaker must not be empty")
	}
	return nil
}

// Key returns the (match, market, selection) join key for the quote.
func (q *OddsQuote) Key() string {
	return q.MatchID + "|" + string(q.Market) + "|" + q.Selection
}
