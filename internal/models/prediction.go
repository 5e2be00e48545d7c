package models

import (
	"errors"
	"fmt"
	"strings"
)

// Confidence is the ordered confidence label attached to a prediction.
// The zero value is invalid; valid levels order LOW < MEDIUM < HIGH.
type Confidence int

const (
	ConfidenceLow Confidence = iota + 1
	ConfidenceMedium
	ConfidenceHigh
)

// ParseConfidence converts a string label into a Confidence level.
func ParseConfidence(s string) (Confidence, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return ConfidenceLow, nil
	case "medium":
		return ConfidenceMedium, nil
	case "high":
		return ConfidenceHigh, nil
	}
	return 0, fmt.Errorf("unknown confidence level: %q", s)
}

// String returns the canonical label for the confidence level.
func (c Confidence) String() string {
	switch c {
	case ConfidenceLow:
		return "low"
	case ConfidenceMedium:
		return "medium"
	case ConfidenceHigh:
		return "high"
	}
	return fmt.Sprintf("confidence(%d)", int(c))
}

// Valid reports whether c is one of the defined levels.
func (c Confidence) Valid() bool {
	return c >= ConfidenceLow && c <= ConfidenceHigh
}

// AtLeast reports whether c meets the given minimum level.
func (c Confidence) AtLeast(min Confidence) bool {
	return c >= min
}

// MarshalJSON encodes the confidence as its string label.
func (c Confidence) MarshalJSON() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("cannot marshal invalid confidence %d", int(c))
	}
	return []byte(`"` + c.String() + `"`), nil
}

// UnmarshalJSON decodes a confidence from its string label.
func (c *Confidence) UnmarshalJSON(data []byte) error {
	label := strings.Trim(string(data), `"`)
	parsed, err := ParseConfidence(label)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Prediction is an externally produced probability estimate for one
// (match, market, selection), with a confidence label.
type Prediction struct {
	MatchID     string     `json:"match_id"`
	Market      Market     `json:"market"`
	Selection   string     `json:"selection"`
	Probability float64    `json:"probability"`
	Confidence  Confidence `json:"confidence"`
}

// Validate checks that all prediction fields are valid.
// Probability must lie strictly inside (0, 1).
func (p *Prediction) Validate() error {
	if p.MatchID == "" {
		return errors.New("prediction match ID must not be empty")
	}
	if p.Market == "" {
		return errors.New("prediction market must not be empty")
	}
	if p.Selection == "" {
		return errors.New("prediction selection must not be empty")
	}
	if p.Probability <= 0.0 || p.Probability >= 1.0 {
		return fmt.Errorf("prediction probability must be in (0, 1), got %.4f", p.Probability)
	}
	if !p.Confidence.Valid() {
		return fmt.Errorf("prediction confidence is invalid: %d", int(p.Confidence))
	}
	return nil
}

// Key returns the (match, market, selection) join key for the prediction.
func (p *Prediction) Key() string {
	return p.MatchID + "|" + string(p.Market) + "|" + p.Selection
}
