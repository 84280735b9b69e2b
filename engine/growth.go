package engine

import (
	"github.com/shopspring/decimal"
)

var one = decimal.NewFromInt(1)

// Coefficient returns the public multiplier after t elapsed ticks:
// max(1.00, growthRate^t) rounded to two decimals and clamped to maxCoef.
// It is a function of the tick count alone so that scheduling jitter
// cannot change the fairness-relevant sequence.
func Coefficient(growthRate decimal.Decimal, t int64, maxCoef decimal.Decimal) decimal.Decimal {
	if t <= 0 {
		return one.Round(2)
	}
	coef := growthRate.Pow(decimal.NewFromInt(t)).Round(2)
	if coef.LessThan(one) {
		return one.Round(2)
	}
	if coef.GreaterThan(maxCoef) {
		return maxCoef
	}
	return coef
}

// CrashTick returns the first tick at which the coefficient reaches
// crashPoint. Used by tests and by the engine to bound a round's length.
func CrashTick(growthRate, crashPoint, maxCoef decimal.Decimal) int64 {
	var t int64
	for {
		t++
		c := Coefficient(growthRate, t, maxCoef)
		if c.GreaterThanOrEqual(crashPoint) || c.GreaterThanOrEqual(maxCoef) {
			return t
		}
	}
}
