// Package ledger is the system of record for every recommended bet: creation,
// settlement, bankroll accounting, and derived performance aggregates.
//
// The ledger keeps its state in memory behind an RWMutex and persists it to a
// single JSON file with atomic writes (write to temp file, then rename). All
// mutations are serialized; reads may proceed concurrently. A mutation that
// fails to persist is rolled back in memory so the file and the process never
// disagree about the bankroll.
//
// A corrupt ledger file on load is recovered as an empty ledger with a logged
// warning. That is an explicit data-loss event, never silent success.
package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stakeline/betengine/internal/logger"
	"github.com/stakeline/betengine/internal/models"
	"github.com/stakeline/betengine/internal/staking"
)

// Typed failures for settlement. Callers branch on these; neither mutates
// the bankroll.
var (
	ErrBetNotFound    = errors.New("bet not found")
	ErrAlreadySettled = errors.New("bet already settled")
	ErrInvalidOutcome = errors.New("invalid settlement outcome")
)

// persistenceFile is the on-disk JSON structure.
type persistenceFile struct {
	Version           string         `json:"version"`
	SavedAt           time.Time      `json:"saved_at"`
	InitialBankroll   float64        `json:"initial_bankroll"`
	Bankroll          float64        `json:"bankroll"`
	BankrollUpdatedAt time.Time      `json:"bankroll_updated_at"`
	Bets              []*models.Bet  `json:"bets"`
	Staking           staking.Params `json:"staking"`
}

// fileVersion is written to every persistence file.
const fileVersion = "1.0"

// Ledger owns the bet records, the bankroll state, and the persisted staking
// parameters.
type Ledger struct {
	mu    sync.RWMutex
	bets  map[string]*models.Bet
	order []string // bet IDs in creation order

	initialBankroll   float64
	bankroll          float64
	bankrollUpdatedAt time.Time

	stakingParams staking.Params

	filePath        string
	filePermissions os.FileMode
	dirPermissions  os.FileMode
}

// New creates a Ledger persisting to filePath. If filePath is empty an
// OS-appropriate tmp location is used. The initial bankroll and staking
// parameters apply until Load restores persisted state.
func New(initialBankroll float64, params staking.Params, filePath string, filePermissions, dirPermissions os.FileMode) *Ledger {
	if filePath == "" {
		filePath = filepath.Join(os.TempDir(), "betengine", "ledger.json")
	}

	return &Ledger{
		bets:              make(map[string]*models.Bet),
		initialBankroll:   initialBankroll,
		bankroll:          initialBankroll,
		bankrollUpdatedAt: time.Now(),
		stakingParams:     params,
		filePath:          filePath,
		filePermissions:   filePermissions,
		dirPermissions:    dirPermissions,
	}
}

// CreateBet assigns a unique ID to the recommendation, records it as pending,
// and persists immediately. The bankroll is not touched: stake is at risk but
// only deducted or credited at settlement. A persistence failure undoes the
// in-memory insert and is returned to the caller.
func (l *Ledger) CreateBet(rec models.BetRecommendation) (*models.Bet, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	bet := &models.Bet{
		ID:            uuid.New().String(),
		Match:         rec.Match,
		Market:        rec.Market,
		Selection:     rec.Selection,
		Odds:          rec.Odds,
		Bookmaker:     rec.Bookmaker,
		Probability:   rec.Probability,
		Confidence:    rec.Confidence,
		ExpectedValue: rec.ExpectedValue,
		Stake:         rec.Stake,
		StakePercent:  rec.StakePercent,
		Status:        models.BetPending,
		CreatedAt:     time.Now(),
	}

	if err := bet.Validate(); err != nil {
		return nil, fmt.Errorf("invalid bet: %w", err)
	}

	l.bets[bet.ID] = bet
	l.order = append(l.order, bet.ID)

	if err := l.saveLocked(); err != nil {
		delete(l.bets, bet.ID)
		l.order = l.order[:len(l.order)-1]
		return nil, fmt.Errorf("failed to persist bet: %w", err)
	}

	logger.Info("bet created: id=%s match=%s market=%s selection=%s odds=%.2f stake=%.2f (%.2f%%)",
		bet.ID, bet.Match.ID, bet.Market, bet.Selection, bet.Odds, bet.Stake, bet.StakePercent)

	copied := *bet
	return &copied, nil
}

// Settle transitions a pending bet to won, lost, or void, exactly once, and
// applies the bankroll mutation:
//
//	won:  bankroll += realized profit (external value authoritative when
//	      supplied, stake*(odds-1) otherwise)
//	lost: bankroll -= stake
//	void: bankroll unchanged
//
// The bankroll is clamped to >= 0. Settling an unknown ID returns
// ErrBetNotFound; settling twice returns ErrAlreadySettled with no further
// bankroll change.
func (l *Ledger) Settle(betID string, outcome models.BetStatus, realizedProfit *float64) error {
	if !outcome.Terminal() {
		return fmt.Errorf("%w: %q", ErrInvalidOutcome, outcome)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	bet, exists := l.bets[betID]
	if !exists {
		return fmt.Errorf("%w: %s", ErrBetNotFound, betID)
	}
	if bet.Status.Terminal() {
		return fmt.Errorf("%w: %s is already %s", ErrAlreadySettled, betID, bet.Status)
	}

	var profit float64
	switch outcome {
	case models.BetWon:
		if realizedProfit != nil {
			profit = *realizedProfit
		} else {
			profit = bet.Stake * (bet.Odds - 1)
		}
	case models.BetLost:
		profit = -bet.Stake
	case models.BetVoid:
		profit = 0
	}

	prevBet := *bet
	prevBankroll := l.bankroll
	prevUpdatedAt := l.bankrollUpdatedAt

	now := time.Now()
	bet.Status = outcome
	bet.SettledAt = &now
	bet.RealizedProfit = &profit

	l.bankroll += profit
	if l.bankroll < 0 {
		logger.Warn("bankroll clamped to 0 after settling bet %s (would have been %.2f)", betID, l.bankroll)
		l.bankroll = 0
	}
	l.bankrollUpdatedAt = now

	if err := l.saveLocked(); err != nil {
		*bet = prevBet
		l.bankroll = prevBankroll
		l.bankrollUpdatedAt = prevUpdatedAt
		return fmt.Errorf("failed to persist settlement: %w", err)
	}

	logger.Info("bet settled: id=%s outcome=%s profit=%.2f bankroll %.2f -> %.2f",
		betID, outcome, profit, prevBankroll, l.bankroll)

	return nil
}

// GetPending returns copies of all bets still awaiting settlement, in
// creation order.
func (l *Ledger) GetPending() []models.Bet {
	l.mu.RLock()
	defer l.mu.RUnlock()

	pending := make([]models.Bet, 0)
	for _, id := range l.order {
		if bet := l.bets[id]; bet.Status == models.BetPending {
			pending = append(pending, *bet)
		}
	}
	return pending
}

// GetBet returns a copy of one bet by ID.
func (l *Ledger) GetBet(betID string) (models.Bet, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	bet, exists := l.bets[betID]
	if !exists {
		return models.Bet{}, fmt.Errorf("%w: %s", ErrBetNotFound, betID)
	}
	return *bet, nil
}

// Bankroll returns the current bankroll, its initial value, and the time of
// the last mutation.
func (l *Ledger) Bankroll() (current, initial float64, updatedAt time.Time) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.bankroll, l.initialBankroll, l.bankrollUpdatedAt
}

// StakingParams returns the persisted staking parameters.
func (l *Ledger) StakingParams() staking.Params {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.stakingParams
}

// UpdateStakingParams persists new staking parameters alongside the ledger
// state, so adaptive adjustments survive restarts.
func (l *Ledger) UpdateStakingParams(params staking.Params) error {
	if err := params.Validate(); err != nil {
		return fmt.Errorf("invalid staking params: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	prev := l.stakingParams
	l.stakingParams = params
	if err := l.saveLocked(); err != nil {
		l.stakingParams = prev
		return fmt.Errorf("failed to persist staking params: %w", err)
	}
	return nil
}

// Performance recomputes the aggregate over bets created within the trailing
// window, grouped by market, league, and confidence. A pure read over the
// ledger; never cached as the source of truth. Win rate is wins over settled
// bets, ROI is total profit over total stake of settled non-void bets, both
// as fractions.
func (l *Ledger) Performance(window time.Duration) models.PerformanceAggregate {
	l.mu.RLock()
	defer l.mu.RUnlock()

	now := time.Now()
	cutoff := now.Add(-window)

	perf := models.PerformanceAggregate{
		Window:     window,
		From:       cutoff,
		To:         now,
		Markets:    make(map[string]models.GroupStats),
		Leagues:    make(map[string]models.GroupStats),
		Confidence: make(map[string]models.GroupStats),
	}

	for _, id := range l.order {
		bet := l.bets[id]
		if bet.CreatedAt.Before(cutoff) {
			continue
		}
		perf.TotalBets++

		if !bet.Status.Terminal() {
			continue
		}
		perf.SettledBets++

		var profit float64
		if bet.RealizedProfit != nil {
			profit = *bet.RealizedProfit
		}

		switch bet.Status {
		case models.BetWon:
			perf.Wins++
		case models.BetLost:
			perf.Losses++
		case models.BetVoid:
			perf.Voids++
		}

		if bet.Status != models.BetVoid {
			perf.TotalStake += bet.Stake
			perf.TotalProfit += profit
		}

		accumulate(perf.Markets, string(bet.Market), bet, profit)
		accumulate(perf.Leagues, bet.Match.League, bet, profit)
		accumulate(perf.Confidence, bet.Confidence.String(), bet, profit)
	}

	if perf.SettledBets > 0 {
		perf.WinRate = float64(perf.Wins) / float64(perf.SettledBets)
	}
	if perf.TotalStake > 0 {
		perf.ROI = perf.TotalProfit / perf.TotalStake
	}

	finalizeROI(perf.Markets)
	finalizeROI(perf.Leagues)
	finalizeROI(perf.Confidence)

	return perf
}

func accumulate(groups map[string]models.GroupStats, key string, bet *models.Bet, profit float64) {
	if key == "" {
		key = "unknown"
	}
	stats := groups[key]
	stats.Bets++
	if bet.Status == models.BetWon {
		stats.Wins++
	}
	if bet.Status != models.BetVoid {
		stats.TotalStake += bet.Stake
		stats.Profit += profit
	}
	groups[key] = stats
}

func finalizeROI(groups map[string]models.GroupStats) {
	for key, stats := range groups {
		if stats.TotalStake > 0 {
			stats.ROI = stats.Profit / stats.TotalStake
		}
		groups[key] = stats
	}
}

// Save persists the ledger state to file.
func (l *Ledger) Save() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.saveLocked()
}

// saveLocked writes the persistence file atomically: marshal, write to a temp
// file, rename over the target. Callers must hold the write lock.
func (l *Ledger) saveLocked() error {
	dir := filepath.Dir(l.filePath)
	if err := os.MkdirAll(dir, l.dirPermissions); err != nil {
		return fmt.Errorf("failed to create ledger directory: %w", err)
	}

	data := persistenceFile{
		Version:           fileVersion,
		SavedAt:           time.Now(),
		InitialBankroll:   l.initialBankroll,
		Bankroll:          l.bankroll,
		BankrollUpdatedAt: l.bankrollUpdatedAt,
		Bets:              make([]*models.Bet, 0, len(l.order)),
		Staking:           l.stakingParams,
	}
	for _, id := range l.order {
		data.Bets = append(data.Bets, l.bets[id])
	}

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal ledger: %w", err)
	}

	tempPath := l.filePath + ".tmp"
	if err := os.WriteFile(tempPath, jsonData, l.filePermissions); err != nil {
		return fmt.Errorf("failed to write ledger file: %w", err)
	}
	if err := os.Rename(tempPath, l.filePath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename ledger file: %w", err)
	}

	return nil
}

// Load restores state from the persistence file. A missing file starts fresh.
// A corrupt or structurally invalid file is recovered as an empty ledger with
// a logged warning; the data loss is visible to operators, never masked as
// success.
func (l *Ledger) Load() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Clean up any stale temp files from previous crashes
	tempPath := l.filePath + ".tmp"
	if _, err := os.Stat(tempPath); err == nil {
		_ = os.Remove(tempPath)
	}

	if _, err := os.Stat(l.filePath); os.IsNotExist(err) {
		return nil
	}

	jsonData, err := os.ReadFile(l.filePath)
	if err != nil {
		return fmt.Errorf("failed to read ledger file: %w", err)
	}

	var data persistenceFile
	if err := json.Unmarshal(jsonData, &data); err != nil {
		logger.Warn("ledger file %s is corrupt, starting with empty ledger: %v", l.filePath, err)
		return nil
	}

	bets := make(map[string]*models.Bet, len(data.Bets))
	order := make([]string, 0, len(data.Bets))
	for _, bet := range data.Bets {
		if bet == nil {
			continue
		}
		if err := bet.Validate(); err != nil {
			logger.Warn("ledger file %s holds invalid bet records, starting with empty ledger: %v", l.filePath, err)
			return nil
		}
		bets[bet.ID] = bet
		order = append(order, bet.ID)
	}

	l.bets = bets
	l.order = order
	if data.InitialBankroll > 0 {
		l.initialBankroll = data.InitialBankroll
	}
	l.bankroll = data.Bankroll
	if l.bankroll < 0 {
		l.bankroll = 0
	}
	if !data.BankrollUpdatedAt.IsZero() {
		l.bankrollUpdatedAt = data.BankrollUpdatedAt
	}
	if err := data.Staking.Validate(); err == nil {
		l.stakingParams = data.Staking
	} else {
		logger.Warn("ledger file %s holds invalid staking params, keeping configured defaults: %v", l.filePath, err)
	}

	logger.Info("ledger loaded: %d bets, bankroll %.2f", len(l.order), l.bankroll)
	return nil
}
