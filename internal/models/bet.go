package models

import (
	"errors"
	"fmt"
	"time"
)

// ValueBet is a prediction paired with the best available quote for its
// selection, retained only when the expected value clears the configured
// threshold. Derived, never persisted on its own.
type ValueBet struct {
	Match         MatchInfo  `json:"match"`
	Market        Market     `json:"market"`
	Selection     string     `json:"selection"`
	Odds          float64    `json:"odds"`
	Bookmaker     string     `json:"bookmaker"`
	Probability   float64    `json:"probability"`
	Confidence    Confidence `json:"confidence"`
	ExpectedValue float64    `json:"expected_value"`
}

// ExpectedValue computes the expected profit per unit stake for a
// probability/odds pair: p*(odds-1) - (1-p), equivalently p*odds - 1.
func ExpectedValue(probability, odds float64) float64 {
	return probability*(odds-1) - (1 - probability)
}

// BetRecommendation is a value bet with a concrete stake attached.
// Immutable after creation; only its eventual ledger entry changes state.
type BetRecommendation struct {
	ValueBet
	Stake           float64 `json:"stake"`
	StakePercent    float64 `json:"stake_percent"`
	PotentialProfit float64 `json:"potential_profit"`
}

// BetStatus is the lifecycle state of a ledger bet.
type BetStatus string

const (
	BetPending BetStatus = "pending"
	BetWon     BetStatus = "won"
	BetLost    BetStatus = "lost"
	BetVoid    BetStatus = "void"
)

// Valid reports whether s is a defined status.
func (s BetStatus) Valid() bool {
	switch s {
	case BetPending, BetWon, BetLost, BetVoid:
		return true
	}
	return false
}

// Terminal reports whether s is a settled (final) state.
func (s BetStatus) Terminal() bool {
	return s == BetWon || s == BetLost || s == BetVoid
}

// Bet is the persisted ledger record for one recommended bet.
// Status transitions exactly once, pending -> won|lost|void; settled bets
// are never deleted and never re-settled.
type Bet struct {
	ID             string     `json:"id"`
	Match          MatchInfo  `json:"match"`
	Market         Market     `json:"market"`
	Selection      string     `json:"selection"`
	Odds           float64    `json:"odds"`
	Bookmaker      string     `json:"bookmaker"`
	Probability    float64    `json:"probability"`
	Confidence     Confidence `json:"confidence"`
	ExpectedValue  float64    `json:"expected_value"`
	Stake          float64    `json:"stake"`
	StakePercent   float64    `json:"stake_percent"`
	Status         BetStatus  `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
	SettledAt      *time.Time `json:"settled_at,omitempty"`
	RealizedProfit *float64   `json:"realized_profit,omitempty"`
}

// Validate checks that all bet fields are valid.
func (b *Bet) Validate() error {
	if b.ID == "" {
		return errors.New("bet ID must not be empty")
	}
	if err := b.Match.Validate(); err != nil {
		return fmt.Errorf("bet match: %w", err)
	}
	if b.Market == "" {
		return errors.New("bet market must not be empty")
	}
	if b.Selection == "" {
		return errors.New("bet selection must not be empty")
	}
	if b.Odds <= 1.0 {
		return fmt.Errorf("bet odds must be > 1.0, got %.3f", b.Odds)
	}
	if b.Stake <= 0 {
		return fmt.Errorf("bet stake must be positive, got %.2f", b.Stake)
	}
	if !b.Status.Valid() {
		return fmt.Errorf("bet status is invalid: %q", b.Status)
	}
	if !b.Confidence.Valid() {
		return fmt.Errorf("bet confidence is invalid: %d", int(b.Confidence))
	}
	if b.Status.Terminal() && b.SettledAt == nil {
		return errors.New("settled bet must carry a settlement timestamp")
	}
	if b.Status == BetPending && b.SettledAt != nil {
		return errors.New("pending bet must not carry a settlement timestamp")
	}
	return nil
}

// ArbitrageOpportunity reports a market whose best cross-bookmaker odds imply
// probabilities summing below 1.0. Informational only; never staked.
type ArbitrageOpportunity struct {
	MatchID       string             `json:"match_id"`
	Market        Market             `json:"market"`
	Margin        float64            `json:"margin"`
	ProfitPercent float64            `json:"profit_percent"`
	BestOdds      map[string]float64 `json:"best_odds"`  // outcome -> odds
	Bookmakers    map[string]string  `json:"bookmakers"` // outcome -> bookmaker
}

// LineMovement reports a significant odds change for one
// (match, market, selection, bookmaker) between two snapshots.
type LineMovement struct {
	MatchID       string  `json:"match_id"`
	Market        Market  `json:"market"`
	Selection     string  `json:"selection"`
	Bookmaker     string  `json:"bookmaker"`
	PreviousOdds  float64 `json:"previous_odds"`
	CurrentOdds   float64 `json:"current_odds"`
	PercentChange float64 `json:"percent_change"`
}
