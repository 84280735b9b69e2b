package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// probability table must sum to 1 within this tolerance
var probSumTolerance = decimal.NewFromFloat(0.0001)

// CrashRange is one row of the crash-point probability table: crash
// points in [Min, Max) are drawn with the given probability.
type CrashRange struct {
	Min         decimal.Decimal `json:"min"`
	Max         decimal.Decimal `json:"max"`
	Probability decimal.Decimal `json:"probability"`
}

// GameConfig holds the parameters the engine consumes for each round.
// A config is validated as a whole before activation; an invalid config
// is rejected and the previous one stays in effect.
type GameConfig struct {
	GrowthRate     decimal.Decimal `json:"growth_rate"`
	TickInterval   time.Duration   `json:"tick_interval"`
	MaxCoefficient decimal.Decimal `json:"max_coefficient"`
	WaitingTime    time.Duration   `json:"waiting_time"`
	JoinCutoff     time.Duration   `json:"join_cutoff"`
	CrashHold      time.Duration   `json:"crash_hold"`
	MinBet         decimal.Decimal `json:"min_bet"`
	MaxBet         decimal.Decimal `json:"max_bet"`
	CrashRanges    []CrashRange    `json:"crash_ranges"`
}

// Validate checks the whole config atomically. It returns the first
// violation found and does not partially accept anything.
func (c *GameConfig) Validate() error {
	if c.GrowthRate.LessThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("growth rate must be greater than 1.0, got %s", c.GrowthRate)
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick interval must be positive, got %s", c.TickInterval)
	}
	if c.MaxCoefficient.LessThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("max coefficient must be at least 1.00, got %s", c.MaxCoefficient)
	}
	if c.WaitingTime <= 0 {
		return fmt.Errorf("waiting time must be positive, got %s", c.WaitingTime)
	}
	if c.JoinCutoff < 0 || c.JoinCutoff >= c.WaitingTime {
		return fmt.Errorf("join cutoff must be within [0, waiting time), got %s", c.JoinCutoff)
	}
	if c.MinBet.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("min bet must be positive, got %s", c.MinBet)
	}
	if c.MaxBet.LessThan(c.MinBet) {
		return fmt.Errorf("max bet %s is below min bet %s", c.MaxBet, c.MinBet)
	}
	return c.validateRanges()
}

func (c *GameConfig) validateRanges() error {
	if len(c.CrashRanges) == 0 {
		return fmt.Errorf("crash range table is empty")
	}

	one := decimal.NewFromInt(1)
	sum := decimal.Zero
	prevMax := decimal.Zero

	for i, r := range c.CrashRanges {
		if r.Min.LessThan(one) {
			return fmt.Errorf("range %d: min %s is below 1.00", i, r.Min)
		}
		if r.Max.LessThanOrEqual(r.Min) {
			return fmt.Errorf("range %d: max %s is not above min %s", i, r.Max, r.Min)
		}
		if r.Max.GreaterThan(c.MaxCoefficient) {
			return fmt.Errorf("range %d: max %s exceeds max coefficient %s", i, r.Max, c.MaxCoefficient)
		}
		if r.Probability.LessThanOrEqual(decimal.Zero) {
			return fmt.Errorf("range %d: probability %s is not positive", i, r.Probability)
		}
		// ranges must be disjoint and ascending
		if i > 0 && r.Min.LessThan(prevMax) {
			return fmt.Errorf("range %d: min %s overlaps previous range ending at %s", i, r.Min, prevMax)
		}
		prevMax = r.Max
		sum = sum.Add(r.Probability)
	}

	if sum.Sub(one).Abs().GreaterThan(probSumTolerance) {
		return fmt.Errorf("range probabilities sum to %s, want 1.0", sum)
	}
	return nil
}

// DefaultGameConfig returns the fallback configuration used when no
// validated config has been stored yet.
func DefaultGameConfig() *GameConfig {
	return &GameConfig{
		GrowthRate:     decimal.RequireFromString("1.01"),
		TickInterval:   100 * time.Millisecond,
		MaxCoefficient: decimal.RequireFromString("100.00"),
		WaitingTime:    10 * time.Second,
		JoinCutoff:     2 * time.Second,
		CrashHold:      3 * time.Second,
		MinBet:         decimal.RequireFromString("1.00"),
		MaxBet:         decimal.RequireFromString("1000.00"),
		CrashRanges: []CrashRange{
			{Min: decimal.RequireFromString("1.00"), Max: decimal.RequireFromString("1.50"), Probability: decimal.RequireFromString("0.50")},
			{Min: decimal.RequireFromString("1.50"), Max: decimal.RequireFromString("3.00"), Probability: decimal.RequireFromString("0.30")},
			{Min: decimal.RequireFromString("3.00"), Max: decimal.RequireFromString("10.00"), Probability: decimal.RequireFromString("0.15")},
			{Min: decimal.RequireFromString("10.00"), Max: decimal.RequireFromString("100.00"), Probability: decimal.RequireFromString("0.05")},
		},
	}
}
