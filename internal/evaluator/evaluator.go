// Package evaluator turns externally supplied predictions and bookmaker quotes
// into ranked value bets, and surfaces cross-bookmaker arbitrage and
// significant line movement.
//
// A value bet exists when the model's probability implies a better return than
// the best available price suggests:
//
//	EV = p*(odds-1) - (1-p)
//
// Evaluation is pure: the evaluator holds configured thresholds and nothing
// else. Invalid records (odds <= 1.0, probability outside (0,1)) are rejected
// individually with a logged reason and never abort a batch.
package evaluator

import (
	"math"
	"sort"

	"github.com/stakeline/betengine/internal/logger"
	"github.com/stakeline/betengine/internal/models"
)

// defaultMovementThreshold is the minimum absolute odds change, in percent,
// reported by DetectLineMovement when no threshold is configured.
const defaultMovementThreshold = 5.0

// Config holds the evaluation thresholds.
type Config struct {
	MinEVThreshold    float64 // minimum EV for a value bet, e.g. 0.05
	MinOdds           float64 // lowest acceptable decimal odds
	MaxOdds           float64 // highest acceptable decimal odds
	MovementThreshold float64 // minimum |%change| for line movement, 0 = default 5.0
}

// Evaluator finds value bets among predictions and quotes.
type Evaluator struct {
	cfg Config
}

// New creates an Evaluator with the given thresholds.
func New(cfg Config) *Evaluator {
	if cfg.MovementThreshold <= 0 {
		cfg.MovementThreshold = defaultMovementThreshold
	}
	return &Evaluator{cfg: cfg}
}

// Evaluate selects, among the quotes matching the prediction's
// (match, market, selection), the one with the highest odds, and returns a
// value bet when the EV clears the configured threshold and the odds fall
// within [MinOdds, MaxOdds]. Returns nil when no acceptable opportunity
// exists; missing quotes are not an error.
func (e *Evaluator) Evaluate(pred models.Prediction, match models.MatchInfo, quotes []models.OddsQuote) *models.ValueBet {
	if err := pred.Validate(); err != nil {
		logger.Warn("rejecting prediction %s: %v", pred.Key(), err)
		return nil
	}
	if err := match.Validate(); err != nil {
		logger.Warn("rejecting prediction %s: bad match record: %v", pred.Key(), err)
		return nil
	}

	best := e.bestQuote(pred, quotes)
	if best == nil {
		return nil
	}

	if best.Odds < e.cfg.MinOdds || best.Odds > e.cfg.MaxOdds {
		logger.Debug("skipping %s: best odds %.2f outside [%.2f, %.2f]",
			pred.Key(), best.Odds, e.cfg.MinOdds, e.cfg.MaxOdds)
		return nil
	}

	ev := models.ExpectedValue(pred.Probability, best.Odds)
	if ev < e.cfg.MinEVThreshold {
		logger.Debug("skipping %s: EV %.4f below threshold %.4f", pred.Key(), ev, e.cfg.MinEVThreshold)
		return nil
	}

	return &models.ValueBet{
		Match:         match,
		Market:        pred.Market,
		Selection:     pred.Selection,
		Odds:          best.Odds,
		Bookmaker:     best.Bookmaker,
		Probability:   pred.Probability,
		Confidence:    pred.Confidence,
		ExpectedValue: ev,
	}
}

// bestQuote returns the highest-odds valid quote matching the prediction's
// key, or nil when none exists. Ties on odds break by bookmaker name so the
// choice is reproducible.
func (e *Evaluator) bestQuote(pred models.Prediction, quotes []models.OddsQuote) *models.OddsQuote {
	var best *models.OddsQuote
	for i := range quotes {
		q := &quotes[i]
		if q.Key() != pred.Key() {
			continue
		}
		if err := q.Validate(); err != nil {
			logger.Warn("rejecting quote %s from %s: %v", q.Key(), q.Bookmaker, err)
			continue
		}
		if best == nil || q.Odds > best.Odds ||
			(q.Odds == best.Odds && q.Bookmaker < best.Bookmaker) {
			best = q
		}
	}
	return best
}

// EvaluateBatch evaluates every prediction against the quotes and returns the
// accepted value bets sorted by EV descending. Ties break by earlier match
// start time, then by match ID, so identical inputs always produce identical
// output order.
func (e *Evaluator) EvaluateBatch(matches []models.MatchInfo, predictions []models.Prediction, quotes []models.OddsQuote) []models.ValueBet {
	matchByID := make(map[string]models.MatchInfo, len(matches))
	for _, m := range matches {
		matchByID[m.ID] = m
	}

	bets := make([]models.ValueBet, 0, len(predictions))
	for _, pred := range predictions {
		match, ok := matchByID[pred.MatchID]
		if !ok {
			logger.Warn("rejecting prediction %s: no match record", pred.Key())
			continue
		}
		if vb := e.Evaluate(pred, match, quotes); vb != nil {
			bets = append(bets, *vb)
		}
	}

	sort.Slice(bets, func(i, j int) bool {
		if bets[i].ExpectedValue != bets[j].ExpectedValue {
			return bets[i].ExpectedValue > bets[j].ExpectedValue
		}
		if !bets[i].Match.StartTime.Equal(bets[j].Match.StartTime) {
			return bets[i].Match.StartTime.Before(bets[j].Match.StartTime)
		}
		if bets[i].Match.ID != bets[j].Match.ID {
			return bets[i].Match.ID < bets[j].Match.ID
		}
		if bets[i].Market != bets[j].Market {
			return bets[i].Market < bets[j].Market
		}
		return bets[i].Selection < bets[j].Selection
	})

	return bets
}

// FindArbitrage scans quotes for markets whose best cross-bookmaker odds imply
// probabilities summing below 1.0. Only markets with a complete, mutually
// exclusive outcome set are considered, and every outcome must be priced by at
// least one bookmaker. Results are informational and never feed staking.
func (e *Evaluator) FindArbitrage(quotes []models.OddsQuote) []models.ArbitrageOpportunity {
	type marketKey struct {
		matchID string
		market  models.Market
	}

	bestOdds := make(map[marketKey]map[string]float64)
	bestBook := make(map[marketKey]map[string]string)

	for i := range quotes {
		q := &quotes[i]
		if err := q.Validate(); err != nil {
			logger.Warn("rejecting quote %s from %s: %v", q.Key(), q.Bookmaker, err)
			continue
		}
		if q.Market.Outcomes() == nil {
			continue
		}
		k := marketKey{matchID: q.MatchID, market: q.Market}
		if bestOdds[k] == nil {
			bestOdds[k] = make(map[string]float64)
			bestBook[k] = make(map[string]string)
		}
		if q.Odds > bestOdds[k][q.Selection] {
			bestOdds[k][q.Selection] = q.Odds
			bestBook[k][q.Selection] = q.Bookmaker
		}
	}

	var opps []models.ArbitrageOpportunity
	for k, odds := range bestOdds {
		outcomes := k.market.Outcomes()

		margin := 0.0
		complete := true
		for _, outcome := range outcomes {
			o, ok := odds[outcome]
			if !ok {
				complete = false
				break
			}
			margin += 1.0 / o
		}
		if !complete || margin >= 1.0 {
			continue
		}

		opps = append(opps, models.ArbitrageOpportunity{
			MatchID:       k.matchID,
			Market:        k.market,
			Margin:        margin,
			ProfitPercent: (1.0/margin - 1.0) * 100.0,
			BestOdds:      odds,
			Bookmakers:    bestBook[k],
		})
		logger.Info("arbitrage found: match=%s market=%s margin=%.4f profit=%.2f%%",
			k.matchID, k.market, margin, (1.0/margin-1.0)*100.0)
	}

	sort.Slice(opps, func(i, j int) bool {
		if opps[i].Margin != opps[j].Margin {
			return opps[i].Margin < opps[j].Margin
		}
		if opps[i].MatchID != opps[j].MatchID {
			return opps[i].MatchID < opps[j].MatchID
		}
		return opps[i].Market < opps[j].Market
	})

	return opps
}

// DetectLineMovement compares two quote snapshots and reports every
// (match, market, selection, bookmaker) present in both whose odds changed by
// at least the movement threshold, largest swing first.
func (e *Evaluator) DetectLineMovement(current, previous []models.OddsQuote) []models.LineMovement {
	previousByKey := make(map[string]models.OddsQuote, len(previous))
	for _, q := range previous {
		if q.Odds <= 1.0 {
			continue
		}
		k := q.Key() + "|" + q.Bookmaker
		if existing, ok := previousByKey[k]; !ok || q.ObservedAt.After(existing.ObservedAt) {
			previousByKey[k] = q
		}
	}

	latestCurrent := make(map[string]models.OddsQuote, len(current))
	for _, q := range current {
		if q.Odds <= 1.0 {
			continue
		}
		k := q.Key() + "|" + q.Bookmaker
		if existing, ok := latestCurrent[k]; !ok || q.ObservedAt.After(existing.ObservedAt) {
			latestCurrent[k] = q
		}
	}

	var movements []models.LineMovement
	for k, cur := range latestCurrent {
		prev, ok := previousByKey[k]
		if !ok {
			continue
		}
		pctChange := (cur.Odds - prev.Odds) / prev.Odds * 100.0
		if math.Abs(pctChange) < e.cfg.MovementThreshold {
			continue
		}
		movements = append(movements, models.LineMovement{
			MatchID:       cur.MatchID,
			Market:        cur.Market,
			Selection:     cur.Selection,
			Bookmaker:     cur.Bookmaker,
			PreviousOdds:  prev.Odds,
			CurrentOdds:   cur.Odds,
			PercentChange: pctChange,
		})
	}

	sort.Slice(movements, func(i, j int) bool {
		ai, aj := math.Abs(movements[i].PercentChange), math.Abs(movements[j].PercentChange)
		if ai != aj {
			return ai > aj
		}
		if movements[i].MatchID != movements[j].MatchID {
			return movements[i].MatchID < movements[j].MatchID
		}
		return movements[i].Bookmaker < movements[j].Bookmaker
	})

	return movements
}
