// Package advisor composes the evaluator, the staking engine, and the ledger
// into decision cycles. One cycle takes a batch of externally collected
// matches, predictions, and quotes, selects and sizes the day's bets, commits
// them to the ledger, and produces a report for the notification layer.
//
// Cycles against the same ledger must never run concurrently; the advisor is
// the single writer. A cycle may be cancelled before its first commit with no
// observable effect. Once any bet has been committed the cycle runs straight
// through: replaying a partially committed cycle against a shifted odds
// snapshot is not safe, so mid-cycle persistence failures are surfaced as
// fatal for that cycle rather than retried.
package advisor

import (
	"context"
	"fmt"
	"time"

	"github.com/stakeline/betengine/internal/evaluator"
	"github.com/stakeline/betengine/internal/ledger"
	"github.com/stakeline/betengine/internal/logger"
	"github.com/stakeline/betengine/internal/models"
	"github.com/stakeline/betengine/internal/results"
	"github.com/stakeline/betengine/internal/staking"
)

// Config holds the selection policy for one decision cycle.
type Config struct {
	MaxDailyBets      int
	MaxBetsPerMatch   int
	MinConfidence     models.Confidence
	PerformanceWindow time.Duration // trailing window for cycle reports and adaptation
}

// CycleInput is one decision cycle's worth of externally collected data.
type CycleInput struct {
	Matches     []models.MatchInfo  `json:"matches"`
	Predictions []models.Prediction `json:"predictions"`
	Quotes      []models.OddsQuote  `json:"quotes"`
}

// CycleReport summarizes a completed decision cycle for the notification
// collaborator.
type CycleReport struct {
	RanAt           time.Time                     `json:"ran_at"`
	Candidates      int                           `json:"candidates"`
	Selected        int                           `json:"selected"`
	TotalStake      float64                       `json:"total_stake"`
	PotentialProfit float64                       `json:"potential_profit"`
	Bankroll        float64                       `json:"bankroll"`
	Bets            []models.Bet                  `json:"bets"`
	Arbitrage       []models.ArbitrageOpportunity `json:"arbitrage,omitempty"`
	Performance     models.PerformanceAggregate   `json:"performance"`
}

// Advisor runs decision cycles and settlement sweeps.
type Advisor struct {
	cfg    Config
	eval   *evaluator.Evaluator
	engine *staking.Engine
	ledger *ledger.Ledger
}

// New creates an Advisor over the given components.
func New(cfg Config, eval *evaluator.Evaluator, engine *staking.Engine, ldgr *ledger.Ledger) *Advisor {
	if cfg.PerformanceWindow <= 0 {
		cfg.PerformanceWindow = 30 * 24 * time.Hour
	}
	return &Advisor{cfg: cfg, eval: eval, engine: engine, ledger: ldgr}
}

// RunCycle executes one decision cycle: evaluate, filter, rank, size, commit,
// report. The context is honored up to the first ledger commit; after that
// the cycle completes regardless.
func (a *Advisor) RunCycle(ctx context.Context, input CycleInput) (*CycleReport, error) {
	candidates := a.eval.EvaluateBatch(input.Matches, input.Predictions, input.Quotes)
	logger.Info("cycle: %d predictions yielded %d value bet candidates", len(input.Predictions), len(candidates))

	selected := a.selectBets(candidates)

	bankroll, _, _ := a.ledger.Bankroll()
	recommendations := a.engine.ComputeStakesForBatch(selected, bankroll)

	// Last point where cancellation has no observable effect.
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("cycle aborted before commit: %w", err)
	}

	bets := make([]models.Bet, 0, len(recommendations))
	for _, rec := range recommendations {
		bet, err := a.ledger.CreateBet(rec)
		if err != nil {
			return nil, fmt.Errorf("cycle failed after committing %d of %d bets: %w",
				len(bets), len(recommendations), err)
		}
		bets = append(bets, *bet)
	}

	report := &CycleReport{
		RanAt:       time.Now(),
		Candidates:  len(candidates),
		Selected:    len(bets),
		Bets:        bets,
		Arbitrage:   a.eval.FindArbitrage(input.Quotes),
		Performance: a.ledger.Performance(a.cfg.PerformanceWindow),
	}
	for _, bet := range bets {
		report.TotalStake += bet.Stake
		report.PotentialProfit += bet.Stake * (bet.Odds - 1)
	}
	report.Bankroll, _, _ = a.ledger.Bankroll()

	logger.Info("cycle complete: selected=%d total_stake=%.2f potential_profit=%.2f bankroll=%.2f",
		report.Selected, report.TotalStake, report.PotentialProfit, report.Bankroll)

	return report, nil
}

// selectBets applies the confidence floor, the per-match cap, and the global
// daily cap, preserving EV order throughout.
func (a *Advisor) selectBets(candidates []models.ValueBet) []models.ValueBet {
	perMatch := make(map[string]int)
	selected := make([]models.ValueBet, 0, len(candidates))

	for _, vb := range candidates {
		if !vb.Confidence.AtLeast(a.cfg.MinConfidence) {
			logger.Debug("dropping %s %s/%s: confidence %s below minimum %s",
				vb.Match.ID, vb.Market, vb.Selection, vb.Confidence, a.cfg.MinConfidence)
			continue
		}
		if a.cfg.MaxBetsPerMatch > 0 && perMatch[vb.Match.ID] >= a.cfg.MaxBetsPerMatch {
			logger.Debug("dropping %s %s/%s: match already has %d bets",
				vb.Match.ID, vb.Market, vb.Selection, perMatch[vb.Match.ID])
			continue
		}
		perMatch[vb.Match.ID]++
		selected = append(selected, vb)

		if a.cfg.MaxDailyBets > 0 && len(selected) >= a.cfg.MaxDailyBets {
			break
		}
	}

	return selected
}

// SettlePending sweeps all pending bets against the result source and settles
// those with known outcomes. Source errors for individual bets are logged and
// skipped; ledger persistence failures abort the sweep.
func (a *Advisor) SettlePending(ctx context.Context, src results.Source) (int, error) {
	pending := a.ledger.GetPending()
	settled := 0

	for _, bet := range pending {
		if err := ctx.Err(); err != nil {
			return settled, err
		}

		outcome, err := src.Result(ctx, bet)
		if err != nil {
			logger.Error("result lookup failed for bet %s (%s %s/%s): %v",
				bet.ID, bet.Match.ID, bet.Market, bet.Selection, err)
			continue
		}
		if outcome == nil {
			continue
		}

		if err := a.ledger.Settle(bet.ID, outcome.Status, outcome.Profit); err != nil {
			return settled, fmt.Errorf("failed to settle bet %s: %w", bet.ID, err)
		}
		settled++
	}

	logger.Info("settlement sweep: %d pending, %d settled", len(pending), settled)
	return settled, nil
}

// AdaptStaking feeds the trailing performance window to the staking engine
// and persists the parameters when they changed.
func (a *Advisor) AdaptStaking() error {
	perf := a.ledger.Performance(a.cfg.PerformanceWindow)
	if !a.engine.AdjustStrategy(perf) {
		return nil
	}
	if err := a.ledger.UpdateStakingParams(a.engine.Params()); err != nil {
		return fmt.Errorf("failed to persist adjusted staking params: %w", err)
	}
	return nil
}
