package engine

import (
	"sync"

	"github.com/shopspring/decimal"
)

const historySize = 50

// crashHistory keeps the most recent crash coefficients, newest first.
// The engine goroutine writes; the fan-out layer reads concurrently.
type crashHistory struct {
	mu     sync.RWMutex
	coeffs []decimal.Decimal
}

func newCrashHistory() *crashHistory {
	return &crashHistory{coeffs: make([]decimal.Decimal, 0, historySize)}
}

func (h *crashHistory) Push(coef decimal.Decimal) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.coeffs = append([]decimal.Decimal{coef}, h.coeffs...)
	if len(h.coeffs) > historySize {
		h.coeffs = h.coeffs[:historySize]
	}
}

func (h *crashHistory) All() []decimal.Decimal {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]decimal.Decimal, len(h.coeffs))
	copy(out, h.coeffs)
	return out
}
