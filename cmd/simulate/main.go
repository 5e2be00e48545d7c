// Command simulate runs the full decision pipeline against synthetic data:
// a fixed batch of matches, predictions, and quotes per cycle, settled through
// a deterministic result table. It exists to exercise selection, staking,
// adaptation, and the ledger end to end without touching real collectors,
// and always produces the same output for the same flags.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/stakeline/betengine/internal/advisor"
	"github.com/stakeline/betengine/internal/evaluator"
	"github.com/stakeline/betengine/internal/ledger"
	"github.com/stakeline/betengine/internal/logger"
	"github.com/stakeline/betengine/internal/models"
	"github.com/stakeline/betengine/internal/results"
	"github.com/stakeline/betengine/internal/staking"
)

var (
	cycles   = flag.Int("cycles", 10, "Number of decision cycles to simulate")
	bankroll = flag.Float64("bankroll", 1000.0, "Initial bankroll")
	logLevel = flag.String("log-level", "warn", "Log level during simulation")
)

func main() {
	flag.Parse()
	logger.Init(*logLevel, "text")

	dir, err := os.MkdirTemp("", "betengine-sim-*")
	if err != nil {
		log.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	ldgr := ledger.New(*bankroll, staking.DefaultParams(), filepath.Join(dir, "ledger.json"), 0o600, 0o700)
	engine, err := staking.NewEngine(ldgr.StakingParams())
	if err != nil {
		log.Fatalf("Failed to create staking engine: %v", err)
	}

	eval := evaluator.New(evaluator.Config{
		MinEVThreshold: 0.05,
		MinOdds:        1.5,
		MaxOdds:        10.0,
	})

	adv := advisor.New(advisor.Config{
		MaxDailyBets:      5,
		MaxBetsPerMatch:   1,
		MinConfidence:     models.ConfidenceMedium,
		PerformanceWindow: 30 * 24 * time.Hour,
	}, eval, engine, ldgr)

	ctx := context.Background()

	for cycle := 0; cycle < *cycles; cycle++ {
		input, src := syntheticCycle(cycle)

		report, err := adv.RunCycle(ctx, input)
		if err != nil {
			log.Fatalf("Cycle %d failed: %v", cycle, err)
		}

		settled, err := adv.SettlePending(ctx, src)
		if err != nil {
			log.Fatalf("Settlement in cycle %d failed: %v", cycle, err)
		}
		if err := adv.AdaptStaking(); err != nil {
			log.Fatalf("Adaptation in cycle %d failed: %v", cycle, err)
		}

		current, _, _ := ldgr.Bankroll()
		fmt.Printf("cycle %2d: selected=%d staked=%.2f settled=%d bankroll=%.2f\n",
			cycle, report.Selected, report.TotalStake, settled, current)
	}

	perf := ldgr.Performance(30 * 24 * time.Hour)
	fmt.Printf("\nfinal: bets=%d settled=%d win_rate=%.1f%% roi=%+.1f%% profit=%+.2f\n",
		perf.TotalBets, perf.SettledBets, perf.WinRate*100, perf.ROI*100, perf.TotalProfit)

	params := engine.Params()
	fmt.Printf("staking: strategy=%s kelly_fraction=%.2f max_stake=%.2f%%\n",
		params.Strategy, params.KellyFraction, params.MaxStakePercent)
}

// syntheticCycle builds a deterministic batch for one cycle plus the result
// table settling it. Probabilities, prices, and outcomes depend only on the
// cycle number and match index.
func syntheticCycle(cycle int) (advisor.CycleInput, *results.StaticSource) {
	probs := []float64{0.42, 0.48, 0.55, 0.60, 0.66, 0.72}
	confidences := []models.Confidence{
		models.ConfidenceLow, models.ConfidenceMedium, models.ConfidenceHigh,
		models.ConfidenceMedium, models.ConfidenceHigh, models.ConfidenceMedium,
	}

	start := time.Date(2025, 1, 1, 18, 0, 0, 0, time.UTC).AddDate(0, 0, cycle)
	input := advisor.CycleInput{}
	src := results.NewStaticSource()

	for i, p := range probs {
		matchID := fmt.Sprintf("match-%03d-%d", cycle, i)
		match := models.MatchInfo{
			ID:        matchID,
			HomeTeam:  fmt.Sprintf("Home %d", i),
			AwayTeam:  fmt.Sprintf("Away %d", i),
			League:    []string{"premier_league", "la_liga", "serie_a"}[i%3],
			StartTime: start.Add(time.Duration(i) * time.Hour),
		}
		input.Matches = append(input.Matches, match)

		// Price slightly above fair so most selections carry positive EV.
		fairOdds := 1.0 / p
		for b, book := range []string{"alphabet", "betahouse", "gammabook"} {
			input.Quotes = append(input.Quotes, models.OddsQuote{
				MatchID:    matchID,
				Market:     models.MarketMatchWinner,
				Selection:  "home",
				Odds:       fairOdds * (1.04 + 0.02*float64(b)),
				Bookmaker:  book,
				ObservedAt: start,
			})
		}

		input.Predictions = append(input.Predictions, models.Prediction{
			MatchID:     matchID,
			Market:      models.MarketMatchWinner,
			Selection:   "home",
			Probability: p,
			Confidence:  confidences[i],
		})

		// Outcomes favor the stronger selections, cycling for variety.
		status := models.BetLost
		if (i+cycle)%3 != 0 && p > 0.5 {
			status = models.BetWon
		}
		if err := src.Set(matchID, models.MarketMatchWinner, "home", results.Outcome{Status: status}); err != nil {
			log.Fatalf("Failed to seed result: %v", err)
		}
	}

	return input, src
}
