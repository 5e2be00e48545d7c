package advisor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stakeline/betengine/internal/evaluator"
	"github.com/stakeline/betengine/internal/ledger"
	"github.com/stakeline/betengine/internal/models"
	"github.com/stakeline/betengine/internal/results"
	"github.com/stakeline/betengine/internal/staking"
)

func newTestAdvisor(t *testing.T, cfg Config) (*Advisor, *ledger.Ledger) {
	t.Helper()

	ldgr := ledger.New(1000.0, staking.DefaultParams(),
		filepath.Join(t.TempDir(), "ledger.json"), 0o600, 0o700)
	engine, err := staking.NewEngine(staking.DefaultParams())
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	eval := evaluator.New(evaluator.Config{
		MinEVThreshold: 0.05,
		MinOdds:        1.5,
		MaxOdds:        10.0,
	})

	return New(cfg, eval, engine, ldgr), ldgr
}

func testInput(confidences []models.Confidence) CycleInput {
	start := time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)
	input := CycleInput{}

	for i, conf := range confidences {
		matchID := fmt.Sprintf("m-%d", i)
		input.Matches = append(input.Matches, models.MatchInfo{
			ID:        matchID,
			HomeTeam:  fmt.Sprintf("Home %d", i),
			AwayTeam:  fmt.Sprintf("Away %d", i),
			League:    "premier_league",
			StartTime: start.Add(time.Duration(i) * time.Hour),
		})
		input.Predictions = append(input.Predictions, models.Prediction{
			MatchID:     matchID,
			Market:      models.MarketMatchWinner,
			Selection:   "home",
			Probability: 0.55,
			Confidence:  conf,
		})
		// EV = 0.55*2.2 - 1 = 0.21, well above threshold.
		input.Quotes = append(input.Quotes, models.OddsQuote{
			MatchID:    matchID,
			Market:     models.MarketMatchWinner,
			Selection:  "home",
			Odds:       2.2,
			Bookmaker:  "alphabet",
			ObservedAt: start,
		})
	}

	return input
}

func TestAdvisor_ConfidenceFloorFiltersCandidates(t *testing.T) {
	adv, _ := newTestAdvisor(t, Config{
		MaxDailyBets:    10,
		MaxBetsPerMatch: 1,
		MinConfidence:   models.ConfidenceMedium,
	})

	input := testInput([]models.Confidence{
		models.ConfidenceLow,
		models.ConfidenceMedium,
		models.ConfidenceHigh,
		models.ConfidenceMedium,
	})

	report, err := adv.RunCycle(context.Background(), input)
	if err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}
	if report.Candidates != 4 {
		t.Errorf("Expected 4 candidates, got %d", report.Candidates)
	}
	if report.Selected != 3 {
		t.Errorf("Expected 3 selected after confidence floor, got %d", report.Selected)
	}
	for _, bet := range report.Bets {
		if !bet.Confidence.AtLeast(models.ConfidenceMedium) {
			t.Errorf("Bet %s selected below the confidence floor", bet.ID)
		}
	}
}

func TestAdvisor_MaxDailyBetsCap(t *testing.T) {
	adv, _ := newTestAdvisor(t, Config{
		MaxDailyBets:    2,
		MaxBetsPerMatch: 1,
		MinConfidence:   models.ConfidenceLow,
	})

	input := testInput([]models.Confidence{
		models.ConfidenceHigh,
		models.ConfidenceHigh,
		models.ConfidenceHigh,
		models.ConfidenceHigh,
	})

	report, err := adv.RunCycle(context.Background(), input)
	if err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}
	if report.Selected != 2 {
		t.Errorf("Expected daily cap of 2, got %d", report.Selected)
	}
}

func TestAdvisor_MaxBetsPerMatchCap(t *testing.T) {
	adv, _ := newTestAdvisor(t, Config{
		MaxDailyBets:    10,
		MaxBetsPerMatch: 1,
		MinConfidence:   models.ConfidenceLow,
	})

	// Two markets on the same match, both with strong EV.
	start := time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)
	input := CycleInput{
		Matches: []models.MatchInfo{{
			ID: "m-1", HomeTeam: "Home", AwayTeam: "Away",
			League: "premier_league", StartTime: start,
		}},
		Predictions: []models.Prediction{
			{MatchID: "m-1", Market: models.MarketMatchWinner, Selection: "home", Probability: 0.55, Confidence: models.ConfidenceHigh},
			{MatchID: "m-1", Market: models.MarketOverUnder25, Selection: "over", Probability: 0.55, Confidence: models.ConfidenceHigh},
		},
		Quotes: []models.OddsQuote{
			{MatchID: "m-1", Market: models.MarketMatchWinner, Selection: "home", Odds: 2.2, Bookmaker: "alphabet", ObservedAt: start},
			{MatchID: "m-1", Market: models.MarketOverUnder25, Selection: "over", Odds: 2.2, Bookmaker: "alphabet", ObservedAt: start},
		},
	}

	report, err := adv.RunCycle(context.Background(), input)
	if err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}
	if report.Selected != 1 {
		t.Errorf("Expected per-match cap of 1, got %d", report.Selected)
	}
}

func TestAdvisor_CycleCommitsToLedger(t *testing.T) {
	adv, ldgr := newTestAdvisor(t, Config{
		MaxDailyBets:    5,
		MaxBetsPerMatch: 1,
		MinConfidence:   models.ConfidenceMedium,
	})

	report, err := adv.RunCycle(context.Background(), testInput([]models.Confidence{
		models.ConfidenceHigh, models.ConfidenceHigh,
	}))
	if err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}

	pending := ldgr.GetPending()
	if len(pending) != report.Selected {
		t.Errorf("Expected %d pending bets in ledger, got %d", report.Selected, len(pending))
	}
	if report.TotalStake <= 0 {
		t.Errorf("Expected positive total stake, got %.2f", report.TotalStake)
	}
	if report.Bankroll != 1000.0 {
		t.Errorf("Expected unchanged bankroll before settlement, got %.2f", report.Bankroll)
	}
}

func TestAdvisor_CancelledContextAbortsBeforeCommit(t *testing.T) {
	adv, ldgr := newTestAdvisor(t, Config{
		MaxDailyBets:    5,
		MaxBetsPerMatch: 1,
		MinConfidence:   models.ConfidenceLow,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := adv.RunCycle(ctx, testInput([]models.Confidence{models.ConfidenceHigh}))
	if err == nil {
		t.Fatal("Expected error from cancelled context")
	}
	if len(ldgr.GetPending()) != 0 {
		t.Error("Cancelled cycle must not commit any bets")
	}
}

func TestAdvisor_SettlePending(t *testing.T) {
	adv, ldgr := newTestAdvisor(t, Config{
		MaxDailyBets:    5,
		MaxBetsPerMatch: 1,
		MinConfidence:   models.ConfidenceLow,
	})

	if _, err := adv.RunCycle(context.Background(), testInput([]models.Confidence{
		models.ConfidenceHigh, models.ConfidenceHigh, models.ConfidenceHigh,
	})); err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}

	// Results known for two of the three matches.
	src := results.NewStaticSource()
	if err := src.Set("m-0", models.MarketMatchWinner, "home", results.Outcome{Status: models.BetWon}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := src.Set("m-1", models.MarketMatchWinner, "home", results.Outcome{Status: models.BetLost}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	settled, err := adv.SettlePending(context.Background(), src)
	if err != nil {
		t.Fatalf("SettlePending failed: %v", err)
	}
	if settled != 2 {
		t.Errorf("Expected 2 settled, got %d", settled)
	}
	if remaining := ldgr.GetPending(); len(remaining) != 1 {
		t.Errorf("Expected 1 bet still pending, got %d", len(remaining))
	}

	// A second sweep finds nothing new.
	settled, err = adv.SettlePending(context.Background(), src)
	if err != nil {
		t.Fatalf("Second SettlePending failed: %v", err)
	}
	if settled != 0 {
		t.Errorf("Expected 0 settled on second sweep, got %d", settled)
	}
}

type failingSource struct{}

func (failingSource) Result(context.Context, models.Bet) (*results.Outcome, error) {
	return nil, errors.New("feed unavailable")
}

func TestAdvisor_SettlePendingSkipsSourceErrors(t *testing.T) {
	adv, ldgr := newTestAdvisor(t, Config{
		MaxDailyBets:    5,
		MaxBetsPerMatch: 1,
		MinConfidence:   models.ConfidenceLow,
	})

	if _, err := adv.RunCycle(context.Background(), testInput([]models.Confidence{models.ConfidenceHigh})); err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}

	settled, err := adv.SettlePending(context.Background(), failingSource{})
	if err != nil {
		t.Fatalf("Source errors must not abort the sweep: %v", err)
	}
	if settled != 0 {
		t.Errorf("Expected 0 settled, got %d", settled)
	}
	if len(ldgr.GetPending()) != 1 {
		t.Error("Bet should remain pending after a source error")
	}
}

func TestAdvisor_AdaptStakingPersistsChange(t *testing.T) {
	adv, ldgr := newTestAdvisor(t, Config{
		MaxDailyBets:    10,
		MaxBetsPerMatch: 1,
		MinConfidence:   models.ConfidenceLow,
	})

	// A losing run drags the win rate below the adaptation threshold.
	if _, err := adv.RunCycle(context.Background(), testInput([]models.Confidence{
		models.ConfidenceHigh, models.ConfidenceHigh, models.ConfidenceHigh,
		models.ConfidenceHigh, models.ConfidenceHigh,
	})); err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}

	src := results.NewStaticSource()
	for i := 0; i < 5; i++ {
		if err := src.Set(fmt.Sprintf("m-%d", i), models.MarketMatchWinner, "home",
			results.Outcome{Status: models.BetLost}); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}
	if _, err := adv.SettlePending(context.Background(), src); err != nil {
		t.Fatalf("SettlePending failed: %v", err)
	}

	if err := adv.AdaptStaking(); err != nil {
		t.Fatalf("AdaptStaking failed: %v", err)
	}

	params := ldgr.StakingParams()
	if params.KellyFraction >= staking.DefaultParams().KellyFraction {
		t.Errorf("Expected reduced kelly fraction persisted, got %.2f", params.KellyFraction)
	}
	if params.MaxStakePercent >= staking.DefaultParams().MaxStakePercent {
		t.Errorf("Expected reduced max stake persisted, got %.2f", params.MaxStakePercent)
	}
}
