package lending

import (
	"carbonmarket-backend/internal/domain"

	"github.com/shopspring/decimal"
)

// healthPrecision is the number of decimal places kept in a health factor.
const healthPrecision = 16

var (
	// LiquidationBoundary is the health factor below which a position may be
	// liquidated and at or above which it may be opened.
	LiquidationBoundary = decimal.NewFromInt(1)
	// DustThreshold is the outstanding debt at or below which a repayment
	// counts as full.
	DustThreshold = decimal.RequireFromString("0.01")
)

// ComputeHealthFactor is collateral * threshold / borrowed, or the infinite
// sentinel when nothing is borrowed. Collateral is valued at face quantity.
func ComputeHealthFactor(collateral, threshold, borrowed decimal.Decimal) domain.HealthFactor {
	if borrowed.Sign() <= 0 {
		return domain.InfiniteHealth()
	}
	return domain.NewHealthFactor(collateral.Mul(threshold).DivRound(borrowed, healthPrecision))
}

// IsLiquidatable reports hf < 1. The infinite sentinel never is.
func IsLiquidatable(hf domain.HealthFactor) bool {
	return hf.LessThan(LiquidationBoundary)
}
