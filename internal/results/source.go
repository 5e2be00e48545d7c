// Package results abstracts where settled outcomes come from. The ledger's
// settlement path only ever consumes a Source; randomness or simulation never
// reaches it directly.
package results

import (
	"context"
	"fmt"
	"sync"

	"github.com/stakeline/betengine/internal/models"
)

// Outcome is an authoritative result for one bet. Profit, when set, overrides
// the ledger's stake*(odds-1) fallback; result feeds that report exact payout
// (partial cashouts, rounding) should always set it.
type Outcome struct {
	Status models.BetStatus `json:"status"`
	Profit *float64         `json:"profit,omitempty"`
}

// Source yields outcomes for pending bets. A nil outcome with nil error means
// the result is not yet known; callers retry on a later sweep.
type Source interface {
	Result(ctx context.Context, bet models.Bet) (*Outcome, error)
}

// Key identifies a selection's result independent of bet ID.
func Key(matchID string, market models.Market, selection string) string {
	return matchID + "|" + string(market) + "|" + selection
}

// StaticSource is a deterministic Source backed by a fixed outcome table,
// keyed by (match, market, selection). Used by tests and the simulation
// harness.
type StaticSource struct {
	mu       sync.RWMutex
	outcomes map[string]Outcome
}

// NewStaticSource creates an empty StaticSource.
func NewStaticSource() *StaticSource {
	return &StaticSource{outcomes: make(map[string]Outcome)}
}

// Set records the outcome for a selection.
func (s *StaticSource) Set(matchID string, market models.Market, selection string, outcome Outcome) error {
	if !outcome.Status.Terminal() {
		return fmt.Errorf("outcome status must be terminal, got %q", outcome.Status)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes[Key(matchID, market, selection)] = outcome
	return nil
}

// Result returns the recorded outcome for the bet's selection, or nil when
// none has been recorded yet.
func (s *StaticSource) Result(_ context.Context, bet models.Bet) (*Outcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	outcome, ok := s.outcomes[Key(bet.Match.ID, bet.Market, bet.Selection)]
	if !ok {
		return nil, nil
	}
	copied := outcome
	return &copied, nil
}
