package models

import "time"

// GroupStats aggregates settled-bet outcomes within one grouping bucket
// (a market, a league, or a confidence level).
type GroupStats struct {
	Bets       int     `json:"bets"`
	Wins       int     `json:"wins"`
	TotalStake float64 `json:"total_stake"`
	Profit     float64 `json:"profit"`
	ROI        float64 `json:"roi"`
}

// PerformanceAggregate is derived from the bet ledger over a trailing window.
// It is always recomputable and never the source of truth.
// WinRate and ROI are fractions (0.55 = 55%). WinRate is wins over all settled
// bets; ROI excludes void stakes from its denominator.
type PerformanceAggregate struct {
	Window      time.Duration         `json:"window"`
	From        time.Time             `json:"from"`
	To          time.Time             `json:"to"`
	TotalBets   int                   `json:"total_bets"`
	SettledBets int                   `json:"settled_bets"`
	Wins        int                   `json:"wins"`
	Losses      int                   `json:"losses"`
	Voids       int                   `json:"voids"`
	WinRate     float64               `json:"win_rate"`
	TotalStake  float64               `json:"total_stake"`
	TotalProfit float64               `json:"total_profit"`
	ROI         float64               `json:"roi"`
	Markets     map[string]GroupStats `json:"markets"`
	Leagues     map[string]GroupStats `json:"leagues"`
	Confidence  map[string]GroupStats `json:"confidence"`
}
