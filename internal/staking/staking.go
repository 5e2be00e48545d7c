// Package staking converts accepted value bets into concrete stake amounts.
//
// Every strategy expresses its stake as a percentage of the current bankroll,
// which is then clamped to the configured per-bet bounds and converted to an
// absolute amount. Batch sizing additionally enforces an aggregate exposure
// cap with a greedy allocation in EV order, so the result is deterministic for
// identical inputs.
//
// The engine's parameters are mutable: AdjustStrategy tightens or loosens
// them from rolling performance. Parameter state is persisted alongside the
// ledger so adaptation survives restarts.
package staking

import (
	"fmt"
	"strings"
	"sync"

	"github.com/stakeline/betengine/internal/logger"
	"github.com/stakeline/betengine/internal/models"
)

// Strategy selects the stake sizing formula.
type Strategy string

const (
	StrategyFlat       Strategy = "flat"
	StrategyKelly      Strategy = "kelly"
	StrategyPercentage Strategy = "percentage"
	StrategyEVLinear   Strategy = "ev_linear"
)

// ParseStrategy converts a string into a known Strategy.
func ParseStrategy(s string) (Strategy, error) {
	st := Strategy(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case StrategyFlat, StrategyKelly, StrategyPercentage, StrategyEVLinear:
		return st, nil
	}
	return "", fmt.Errorf("unknown staking strategy: %q", s)
}

// Adaptation bounds. AdjustStrategy never moves parameters outside these.
const (
	minKellyFraction = 0.1
	maxKellyFraction = 0.75
	minMaxStakePct   = 1.0
	maxMaxStakePct   = 7.5

	lowWinRate  = 0.40
	highWinRate = 0.60
	lowROI      = -0.10
	highROI     = 0.15
)

// Params holds the staking configuration. The struct is persisted with the
// ledger because AdjustStrategy mutates it at runtime.
type Params struct {
	Strategy         Strategy `json:"strategy"`
	FlatPercent      float64  `json:"flat_percent"`       // flat strategy stake %
	BasePercent      float64  `json:"base_percent"`       // percentage strategy base %
	KellyFraction    float64  `json:"kelly_fraction"`     // fractional Kelly multiplier (0, 1]
	EVScale          float64  `json:"ev_scale"`           // ev_linear: percent per unit EV
	ValueBaseline    float64  `json:"value_baseline"`     // EV at which percentage strategy applies no value scaling
	MaxStakePercent  float64  `json:"max_stake_percent"`  // per-bet cap
	MinStakePercent  float64  `json:"min_stake_percent"`  // per-bet floor
	MinAbsoluteStake float64  `json:"min_absolute_stake"` // currency floor per bet
	MaxExposure      float64  `json:"max_exposure"`       // aggregate stake % cap per cycle
}

// DefaultParams returns the conservative defaults: quarter Kelly, 5% per-bet
// cap, 20% cycle exposure.
func DefaultParams() Params {
	return Params{
		Strategy:         StrategyKelly,
		FlatPercent:      1.0,
		BasePercent:      1.0,
		KellyFraction:    0.25,
		EVScale:          10.0,
		ValueBaseline:    0.05,
		MaxStakePercent:  5.0,
		MinStakePercent:  0.5,
		MinAbsoluteStake: 1.0,
		MaxExposure:      20.0,
	}
}

// Validate checks that the parameters are internally consistent.
func (p *Params) Validate() error {
	if _, err := ParseStrategy(string(p.Strategy)); err != nil {
		return err
	}
	if p.KellyFraction <= 0 || p.KellyFraction > 1 {
		return fmt.Errorf("kelly_fraction must be in (0, 1], got %.2f", p.KellyFraction)
	}
	if p.MaxStakePercent <= 0 || p.MaxStakePercent > 100 {
		return fmt.Errorf("max_stake_percent must be in (0, 100], got %.2f", p.MaxStakePercent)
	}
	if p.MinStakePercent < 0 || p.MinStakePercent > p.MaxStakePercent {
		return fmt.Errorf("min_stake_percent must be in [0, max_stake_percent], got %.2f", p.MinStakePercent)
	}
	if p.MaxExposure < p.MaxStakePercent {
		return fmt.Errorf("max_exposure %.2f must not be below max_stake_percent %.2f", p.MaxExposure, p.MaxStakePercent)
	}
	if p.MinAbsoluteStake < 0 {
		return fmt.Errorf("min_absolute_stake must not be negative, got %.2f", p.MinAbsoluteStake)
	}
	if p.FlatPercent <= 0 || p.BasePercent <= 0 || p.EVScale <= 0 {
		return fmt.Errorf("flat_percent, base_percent and ev_scale must be positive")
	}
	return nil
}

// Engine sizes stakes against a bankroll using the configured strategy.
type Engine struct {
	mu     sync.Mutex
	params Params
}

// NewEngine creates an Engine with the given parameters.
func NewEngine(params Params) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid staking params: %w", err)
	}
	return &Engine{params: params}, nil
}

// Params returns a copy of the current parameters.
func (e *Engine) Params() Params {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.params
}

// KellyPercent computes the fractional-Kelly stake percentage for a
// probability/odds pair. Degenerate inputs (odds <= 1, probability at the
// boundaries, negative edge) yield 0 rather than an error.
func KellyPercent(probability, odds, fraction float64) float64 {
	b := odds - 1
	if b <= 0 || probability <= 0 || probability >= 1 {
		return 0
	}
	q := 1 - probability
	f := (b*probability - q) / b
	f *= fraction
	if f <= 0 {
		return 0
	}
	return f * 100.0
}

// rawPercent computes the pre-clamp stake percentage for a bet under the
// current strategy.
func (e *Engine) rawPercent(vb models.ValueBet) float64 {
	switch e.params.Strategy {
	case StrategyFlat:
		return e.params.FlatPercent
	case StrategyKelly:
		return KellyPercent(vb.Probability, vb.Odds, e.params.KellyFraction)
	case StrategyPercentage:
		confidenceFactor := 1.0
		switch vb.Confidence {
		case models.ConfidenceLow:
			confidenceFactor = 0.5
		case models.ConfidenceHigh:
			confidenceFactor = 1.5
		}
		// Each 10% of EV above the baseline doubles the value factor.
		valueFactor := 1.0 + (vb.ExpectedValue-e.params.ValueBaseline)*10.0
		if valueFactor < 0 {
			valueFactor = 0
		}
		return e.params.BasePercent * confidenceFactor * valueFactor
	case StrategyEVLinear:
		if vb.ExpectedValue <= 0 {
			return 0
		}
		return vb.ExpectedValue * e.params.EVScale
	}
	return e.params.FlatPercent
}

// ComputeStake returns the stake amount and stake percentage for one value
// bet against the given bankroll. A zero return means the bet should be
// skipped (degenerate sizing), never an error.
func (e *Engine) ComputeStake(vb models.ValueBet, bankroll float64) (amount, percent float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.computeStakeLocked(vb, bankroll)
}

func (e *Engine) computeStakeLocked(vb models.ValueBet, bankroll float64) (amount, percent float64) {
	if bankroll <= 0 {
		logger.Warn("skipping %s %s/%s: bankroll is empty", vb.Match.ID, vb.Market, vb.Selection)
		return 0, 0
	}

	pct := e.rawPercent(vb)
	if pct <= 0 {
		logger.Info("skipping %s %s/%s: %s sizing yields no stake (p=%.3f odds=%.2f ev=%.4f)",
			vb.Match.ID, vb.Market, vb.Selection, e.params.Strategy, vb.Probability, vb.Odds, vb.ExpectedValue)
		return 0, 0
	}

	if pct < e.params.MinStakePercent {
		pct = e.params.MinStakePercent
	}
	if pct > e.params.MaxStakePercent {
		pct = e.params.MaxStakePercent
	}

	amount = bankroll * pct / 100.0
	if amount < e.params.MinAbsoluteStake {
		amount = e.params.MinAbsoluteStake
	}
	if ceiling := bankroll * e.params.MaxStakePercent / 100.0; amount > ceiling {
		amount = ceiling
	}
	if amount > bankroll {
		amount = bankroll
	}

	percent = amount / bankroll * 100.0
	return amount, percent
}

// ComputeStakesForBatch sizes a batch of value bets against the bankroll,
// greedily in the given order (callers pass EV-descending batches), enforcing
// the aggregate exposure cap. When a bet would push total exposure past the
// cap its stake is reduced to exactly fill the remaining budget; if the
// reduced stake falls below the per-bet floor the bet is dropped.
func (e *Engine) ComputeStakesForBatch(bets []models.ValueBet, bankroll float64) []models.BetRecommendation {
	e.mu.Lock()
	defer e.mu.Unlock()

	recommendations := make([]models.BetRecommendation, 0, len(bets))
	totalPercent := 0.0

	for _, vb := range bets {
		amount, pct := e.computeStakeLocked(vb, bankroll)
		if pct <= 0 {
			continue
		}

		if totalPercent+pct > e.params.MaxExposure {
			remaining := e.params.MaxExposure - totalPercent
			if remaining < e.params.MinStakePercent {
				logger.Info("dropping %s %s/%s: exposure budget exhausted (%.2f%% remaining, floor %.2f%%)",
					vb.Match.ID, vb.Market, vb.Selection, remaining, e.params.MinStakePercent)
				continue
			}
			pct = remaining
			amount = bankroll * pct / 100.0
			if amount < e.params.MinAbsoluteStake {
				logger.Info("dropping %s %s/%s: reduced stake %.2f below minimum absolute stake %.2f",
					vb.Match.ID, vb.Market, vb.Selection, amount, e.params.MinAbsoluteStake)
				continue
			}
		}

		totalPercent += pct
		recommendations = append(recommendations, models.BetRecommendation{
			ValueBet:        vb,
			Stake:           amount,
			StakePercent:    pct,
			PotentialProfit: amount * (vb.Odds - 1),
		})
	}

	return recommendations
}

// AdjustStrategy adapts the staking parameters from a rolling performance
// aggregate: poor win rates shrink the Kelly fraction and per-bet cap, strong
// win rates grow them within bounds, and sustained negative ROI falls back to
// flat staking until ROI recovers. Returns true when any parameter changed;
// callers are responsible for persisting the new parameters.
func (e *Engine) AdjustStrategy(perf models.PerformanceAggregate) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if perf.SettledBets == 0 {
		logger.Debug("strategy adjustment skipped: no settled bets in window")
		return false
	}

	before := e.params

	if perf.WinRate < lowWinRate {
		e.params.KellyFraction = maxFloat(minKellyFraction, e.params.KellyFraction-0.1)
		e.params.MaxStakePercent = maxFloat(minMaxStakePct, e.params.MaxStakePercent-1.0)
		if e.params.MinStakePercent > e.params.MaxStakePercent {
			e.params.MinStakePercent = e.params.MaxStakePercent
		}
	} else if perf.WinRate > highWinRate {
		e.params.KellyFraction = minFloat(maxKellyFraction, e.params.KellyFraction+0.1)
		e.params.MaxStakePercent = minFloat(maxMaxStakePct, e.params.MaxStakePercent+0.5)
	}

	if perf.ROI < lowROI {
		e.params.Strategy = StrategyFlat
	} else if perf.ROI > highROI {
		e.params.Strategy = StrategyKelly
	}

	changed := e.params != before
	if changed {
		logger.Info("staking parameters adjusted (win_rate=%.3f roi=%.3f settled=%d): strategy %s->%s kelly_fraction %.2f->%.2f max_stake_percent %.2f->%.2f",
			perf.WinRate, perf.ROI, perf.SettledBets,
			before.Strategy, e.params.Strategy,
			before.KellyFraction, e.params.KellyFraction,
			before.MaxStakePercent, e.params.MaxStakePercent)
	} else {
		logger.Debug("strategy adjustment: no change (win_rate=%.3f roi=%.3f)", perf.WinRate, perf.ROI)
	}

	return changed
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
