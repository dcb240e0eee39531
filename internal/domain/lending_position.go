package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	PositionStatusActive     = "active"
	PositionStatusClosed     = "closed"
	PositionStatusLiquidated = "liquidated"
)

// AmountScale is the number of decimal places amount columns keep. Inputs
// with more places are rejected so stored values match what the health
// factor was computed from.
const AmountScale = 8

// MaxAmount bounds quantities to what a decimal(30,8) column holds.
var MaxAmount = decimal.New(1, 22)

// LendingPosition is a loan collateralized by carbon credits of one batch.
type LendingPosition struct {
	ID                   uint            `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	UserAddress          string          `gorm:"column:user_address;type:varchar(64);not null;index" json:"userAddress"`
	CreditID             uint            `gorm:"column:credit_id;not null;index" json:"creditId"`
	CollateralAmount     decimal.Decimal `gorm:"column:collateral_amount;type:decimal(30,8);not null" json:"collateralAmount"`
	BorrowedAmount       decimal.Decimal `gorm:"column:borrowed_amount;type:decimal(30,8);not null" json:"borrowedAmount"`
	InterestRate         decimal.Decimal `gorm:"column:interest_rate;type:decimal(10,6);not null" json:"interestRate"`
	LiquidationThreshold decimal.Decimal `gorm:"column:liquidation_threshold;type:decimal(10,6);not null" json:"liquidationThreshold"`
	HealthFactor         HealthFactor    `gorm:"column:health_factor;type:decimal(48,16)" json:"healthFactor"`
	Status               string          `gorm:"column:status;type:varchar(20);not null;index" json:"status"`
	PositionHash         string          `gorm:"column:position_hash;type:varchar(66);not null;uniqueIndex" json:"positionHash"`
	Version              int64           `gorm:"column:version;not null" json:"version"`
	CreatedAt            time.Time       `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt            time.Time       `gorm:"column:updated_at" json:"updatedAt"`
}

func (LendingPosition) TableName() string {
	return "lending_positions"
}

func (p *LendingPosition) IsActive() bool {
	return p.Status == PositionStatusActive
}

// NormalizeAddress lower-cases a wallet address so it can be used as identity.
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}
