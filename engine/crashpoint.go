package engine

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"crashd/models"
)

// 53 bits of entropy per draw, same resolution as a float64 mantissa
var randDenominator = new(big.Int).Lsh(big.NewInt(1), 53)

// CrashPointGenerator draws the secret crash point for each round from a
// validated probability range table using a CSPRNG. The generated value
// must never reach a client before the round crashes.
type CrashPointGenerator struct {
	ranges  []models.CrashRange
	maxCoef decimal.Decimal
}

// NewCrashPointGenerator validates the range table and returns a
// generator. An invalid table is rejected as a whole.
func NewCrashPointGenerator(cfg *models.GameConfig) (*CrashPointGenerator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid crash range config: %w", err)
	}
	ranges := make([]models.CrashRange, len(cfg.CrashRanges))
	copy(ranges, cfg.CrashRanges)
	return &CrashPointGenerator{ranges: ranges, maxCoef: cfg.MaxCoefficient}, nil
}

// Generate draws one crash point: a first uniform draw selects the range
// by walking cumulative probabilities, a second independent draw picks
// the position inside it. The result is rounded to two decimals and
// clamped to [1.00, max_coefficient].
func (g *CrashPointGenerator) Generate() (decimal.Decimal, error) {
	r1, err := uniformDraw()
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to draw range selector: %w", err)
	}

	chosen := g.ranges[len(g.ranges)-1]
	cumulative := decimal.Zero
	for _, r := range g.ranges {
		cumulative = cumulative.Add(r.Probability)
		if r1.LessThan(cumulative) {
			chosen = r
			break
		}
	}

	r2, err := uniformDraw()
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to draw range position: %w", err)
	}

	crash := chosen.Min.Add(chosen.Max.Sub(chosen.Min).Mul(r2)).Round(2)
	if crash.LessThan(one) {
		crash = one.Round(2)
	}
	if crash.GreaterThan(g.maxCoef) {
		crash = g.maxCoef
	}
	return crash, nil
}

// uniformDraw returns a uniform decimal in [0, 1) from crypto/rand.
func uniformDraw() (decimal.Decimal, error) {
	n, err := rand.Int(rand.Reader, randDenominator)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromBigInt(n, 0).DivRound(decimal.NewFromBigInt(randDenominator, 0), 18), nil
}
