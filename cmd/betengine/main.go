package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/stakeline/betengine/internal/advisor"
	"github.com/stakeline/betengine/internal/config"
	"github.com/stakeline/betengine/internal/evaluator"
	"github.com/stakeline/betengine/internal/ledger"
	"github.com/stakeline/betengine/internal/logger"
	"github.com/stakeline/betengine/internal/models"
	"github.com/stakeline/betengine/internal/results"
	"github.com/stakeline/betengine/internal/staking"
	"github.com/stakeline/betengine/internal/telegram"
)

var (
	configPath  = flag.String("config", "configs/config.yaml", "Path to configuration file")
	inputPath   = flag.String("input", "", "Path to a cycle input JSON batch; runs one decision cycle")
	settleMode  = flag.Bool("settle", false, "Sweep pending bets against the results source")
	resultsPath = flag.String("results", "", "Path to a results JSON file used instead of the results feed")
	reportMode  = flag.Bool("report", false, "Print the trailing performance aggregate as JSON")
)

// resultRecord is one entry of a -results file.
type resultRecord struct {
	MatchID   string        `json:"match_id"`
	Market    models.Market `json:"market"`
	Selection string        `json:"selection"`
	Result    string        `json:"result"` // "won", "lost" or "void"
	Profit    *float64      `json:"profit,omitempty"`
}

func main() {
	flag.Parse()

	// Optional .env for local development; missing file is fine.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", *configPath)

	ldgr := ledger.New(
		cfg.Ledger.InitialBankroll,
		cfg.StakingParams(),
		cfg.Ledger.FilePath,
		os.FileMode(cfg.Ledger.FilePermissions),
		os.FileMode(cfg.Ledger.DirPermissions),
	)
	if err := ldgr.Load(); err != nil {
		logger.Fatal("Failed to load ledger: %v", err)
	}

	// Persisted params win over the config file so adaptation survives restarts.
	engine, err := staking.NewEngine(ldgr.StakingParams())
	if err != nil {
		logger.Fatal("Failed to initialize staking engine: %v", err)
	}

	adv := advisor.New(advisor.Config{
		MaxDailyBets:      cfg.Betting.MaxDailyBets,
		MaxBetsPerMatch:   cfg.Betting.MaxBetsPerMatch,
		MinConfidence:     cfg.MinConfidence(),
		PerformanceWindow: cfg.Betting.PerformanceWindow,
	}, evaluator.New(cfg.EvaluatorConfig()), engine, ldgr)

	var notifier *telegram.Client
	if cfg.Telegram.Enabled {
		notifier, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		logger.Info("Telegram client initialized successfully")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cancelling...")
		cancel()
	}()

	switch {
	case *inputPath != "":
		if err := runCycle(ctx, adv, notifier, *inputPath); err != nil {
			logger.Fatal("Decision cycle failed: %v", err)
		}
	case *settleMode:
		if err := runSettlement(ctx, cfg, adv, ldgr, notifier); err != nil {
			logger.Fatal("Settlement sweep failed: %v", err)
		}
	case *reportMode:
		printReport(cfg, ldgr)
	default:
		flag.Usage()
		os.Exit(2)
	}
}

// runCycle executes one decision cycle from an externally collected batch.
func runCycle(ctx context.Context, adv *advisor.Advisor, notifier *telegram.Client, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read cycle input: %w", err)
	}

	var input advisor.CycleInput
	if err := json.Unmarshal(data, &input); err != nil {
		return fmt.Errorf("failed to parse cycle input: %w", err)
	}

	report, err := adv.RunCycle(ctx, input)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cycle report: %w", err)
	}
	fmt.Println(string(out))

	if notifier != nil {
		if err := notifier.SendCycleReport(report); err != nil {
			logger.Error("Failed to send cycle report: %v", err)
		}
	}
	return nil
}

// runSettlement settles pending bets from a results file or the configured
// feed, then lets the staking engine adapt to the updated performance.
func runSettlement(ctx context.Context, cfg *config.Config, adv *advisor.Advisor, ldgr *ledger.Ledger, notifier *telegram.Client) error {
	src, err := resultSource(cfg)
	if err != nil {
		return err
	}

	settled, err := adv.SettlePending(ctx, src)
	if err != nil {
		return err
	}
	logger.Info("Settled %d bets", settled)

	if settled > 0 {
		if err := adv.AdaptStaking(); err != nil {
			logger.Error("Staking adaptation failed: %v", err)
		}
		if notifier != nil {
			if err := notifier.SendPerformance(ldgr.Performance(cfg.Betting.PerformanceWindow)); err != nil {
				logger.Error("Failed to send performance summary: %v", err)
			}
		}
	}
	return nil
}

// resultSource builds the result source: a static table from -results, or
// the configured HTTP feed.
func resultSource(cfg *config.Config) (results.Source, error) {
	if *resultsPath != "" {
		data, err := os.ReadFile(*resultsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read results file: %w", err)
		}
		var records []resultRecord
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("failed to parse results file: %w", err)
		}

		src := results.NewStaticSource()
		for _, r := range records {
			var status models.BetStatus
			switch r.Result {
			case "won":
				status = models.BetWon
			case "lost":
				status = models.BetLost
			case "void":
				status = models.BetVoid
			default:
				logger.Warn("skipping result for %s %s/%s: unknown result %q", r.MatchID, r.Market, r.Selection, r.Result)
				continue
			}
			if err := src.Set(r.MatchID, r.Market, r.Selection, results.Outcome{Status: status, Profit: r.Profit}); err != nil {
				logger.Warn("skipping result for %s %s/%s: %v", r.MatchID, r.Market, r.Selection, err)
			}
		}
		return src, nil
	}

	if !cfg.Results.Enabled {
		return nil, fmt.Errorf("no results source: pass -results or enable the results feed in config")
	}
	return results.NewFeedClient(cfg.Results.FeedURL, cfg.Results.Timeout, cfg.Results.MaxRetries, cfg.Results.RetryDelayBase), nil
}

// printReport writes the trailing performance aggregate to stdout.
func printReport(cfg *config.Config, ldgr *ledger.Ledger) {
	perf := ldgr.Performance(cfg.Betting.PerformanceWindow)
	out, err := json.MarshalIndent(perf, "", "  ")
	if err != nil {
		logger.Fatal("Failed to marshal performance aggregate: %v", err)
	}
	fmt.Println(string(out))
}
