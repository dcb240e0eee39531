package lending

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"carbonmarket-backend/internal/application/activity"
	"carbonmarket-backend/internal/domain"
	"carbonmarket-backend/internal/infrastructure/chain"
	"carbonmarket-backend/internal/infrastructure/lock"
	"carbonmarket-backend/internal/metrics"
	"carbonmarket-backend/internal/pkg/validation"
	"carbonmarket-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Rules for amounts and rates, matching the column scales in domain.
const (
	amountRules    = "decimal_gt=0,decimal_scale=8,decimal_lt=1e22"
	thresholdRules = "decimal_gt=0,decimal_lte=1,decimal_scale=6"
)

// CreditLookup resolves the credit a position is collateralized by.
type CreditLookup interface {
	GetCredit(ctx context.Context, id uint) (*domain.CarbonCredit, error)
}

// CollateralVerifier reports a holder's on-chain balance of a credit, when it can.
type CollateralVerifier interface {
	Balance(ctx context.Context, owner string, credit *domain.CarbonCredit) chain.BalanceCheck
}

// ActivityRecorder appends lifecycle events.
type ActivityRecorder interface {
	Record(ctx context.Context, e activity.Entry) error
}

// Service is the position lifecycle controller. Every mutation of an existing
// position runs under the position's lock and ends in a version-checked write.
type Service struct {
	Positions repository.PositionRepository
	Credits   CreditLookup
	Verifier  CollateralVerifier
	Activity  ActivityRecorder
	Locker    lock.Locker
	Metrics   *metrics.Metrics

	// Applied when a request leaves them out. Taken as configured; config.Load
	// supplies 0.08 and 0.75 when the environment does not.
	InterestRate         decimal.Decimal
	LiquidationThreshold decimal.Decimal
}

type OpenRequest struct {
	UserAddress          string           `json:"userAddress" validate:"required,notblank,max=64"`
	CreditID             uint             `json:"creditId" validate:"required"`
	CollateralAmount     decimal.Decimal  `json:"collateralAmount" validate:"decimal_gt=0,decimal_scale=8,decimal_lt=1e22"`
	BorrowedAmount       decimal.Decimal  `json:"borrowedAmount" validate:"decimal_gt=0,decimal_scale=8,decimal_lt=1e22"`
	InterestRate         *decimal.Decimal `json:"interestRate,omitempty" validate:"omitempty,decimal_gte=0,decimal_scale=6,decimal_lt=10000"`
	LiquidationThreshold *decimal.Decimal `json:"liquidationThreshold,omitempty" validate:"omitempty,decimal_gt=0,decimal_lte=1,decimal_scale=6"`
}

func positionKey(id uint) string {
	return "position:" + strconv.FormatUint(uint64(id), 10)
}

// Open creates an active position against an existing credit.
func (s *Service) Open(ctx context.Context, req OpenRequest) (pos *domain.LendingPosition, err error) {
	defer func() { s.observe("open", err) }()

	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	user := domain.NormalizeAddress(req.UserAddress)
	if user == "" {
		return nil, domain.Validation("userAddress is required")
	}

	credit, err := s.Credits.GetCredit(ctx, req.CreditID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NotFound("carbon credit %d not found", req.CreditID)
		}
		return nil, domain.Persistence("load carbon credit", err)
	}

	if s.Verifier != nil {
		check := s.Verifier.Balance(ctx, user, credit)
		switch {
		case !check.Known:
			log.Warn().Str("user_address", user).Uint("credit_id", credit.ID).Str("reason", check.Reason).
				Msg("on-chain collateral check unavailable, proceeding")
		case check.Balance.LessThan(req.CollateralAmount):
			return nil, domain.InsufficientCollateral("on-chain balance %s is below requested collateral %s",
				check.Balance.String(), req.CollateralAmount.String())
		}
	}

	rate, threshold := s.InterestRate, s.LiquidationThreshold
	if req.InterestRate != nil {
		rate = *req.InterestRate
	}
	if req.LiquidationThreshold != nil {
		threshold = *req.LiquidationThreshold
	}

	hf := ComputeHealthFactor(req.CollateralAmount, threshold, req.BorrowedAmount)
	if IsLiquidatable(hf) {
		return nil, domain.InsufficientCollateral("health factor %s is below %s", hf.String(), LiquidationBoundary.String())
	}

	now := time.Now().UTC()
	hash := chain.Hash(user, strconv.FormatUint(uint64(credit.ID), 10),
		req.CollateralAmount.String(), req.BorrowedAmount.String(),
		now.Format(time.RFC3339Nano), uuid.NewString())
	pos = &domain.LendingPosition{
		UserAddress:          user,
		CreditID:             credit.ID,
		CollateralAmount:     req.CollateralAmount,
		BorrowedAmount:       req.BorrowedAmount,
		InterestRate:         rate,
		LiquidationThreshold: threshold,
		HealthFactor:         hf,
		Status:               domain.PositionStatusActive,
		PositionHash:         hash,
		Version:              1,
	}
	if err := s.Positions.CreatePosition(ctx, pos); err != nil {
		return nil, domain.Persistence("create lending position", err)
	}

	s.record(ctx, user, domain.ActionLendingPositionCreated, pos, map[string]interface{}{
		"positionId":           pos.ID,
		"positionHash":         pos.PositionHash,
		"collateralAmount":     pos.CollateralAmount.String(),
		"borrowedAmount":       pos.BorrowedAmount.String(),
		"interestRate":         pos.InterestRate.String(),
		"liquidationThreshold": pos.LiquidationThreshold.String(),
		"healthFactor":         pos.HealthFactor,
	})
	return pos, nil
}

// AddCollateral pledges more credits to an active position.
func (s *Service) AddCollateral(ctx context.Context, id uint, amount decimal.Decimal) (pos *domain.LendingPosition, err error) {
	defer func() { s.observe("add_collateral", err) }()

	if err := validation.Var("additionalAmount", amount, amountRules); err != nil {
		return nil, err
	}
	var before domain.HealthFactor
	pos, err = s.mutate(ctx, id, func(p *domain.LendingPosition) error {
		total := p.CollateralAmount.Add(amount)
		if total.GreaterThanOrEqual(domain.MaxAmount) {
			return domain.Validation("collateral %s would exceed the maximum of %s", total.String(), domain.MaxAmount.String())
		}
		before = p.HealthFactor
		p.CollateralAmount = total
		p.HealthFactor = ComputeHealthFactor(p.CollateralAmount, p.LiquidationThreshold, p.BorrowedAmount)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, pos.UserAddress, domain.ActionCollateralAdded, pos, map[string]interface{}{
		"positionId":         pos.ID,
		"additionalAmount":   amount.String(),
		"newCollateral":      pos.CollateralAmount.String(),
		"healthFactorBefore": before,
		"healthFactorAfter":  pos.HealthFactor,
	})
	return pos, nil
}

// Repay reduces the outstanding debt. A remainder at or below the dust
// threshold closes the position.
func (s *Service) Repay(ctx context.Context, id uint, amount decimal.Decimal) (pos *domain.LendingPosition, err error) {
	defer func() { s.observe("repay", err) }()

	if err := validation.Var("repayAmount", amount, amountRules); err != nil {
		return nil, err
	}
	var fullyRepaid bool
	pos, err = s.mutate(ctx, id, func(p *domain.LendingPosition) error {
		if amount.GreaterThan(p.BorrowedAmount) {
			return domain.Validation("repay amount %s exceeds borrowed amount %s", amount.String(), p.BorrowedAmount.String())
		}
		remaining := p.BorrowedAmount.Sub(amount)
		if remaining.LessThanOrEqual(DustThreshold) {
			fullyRepaid = true
			p.BorrowedAmount = decimal.Zero
			p.HealthFactor = domain.InfiniteHealth()
			p.Status = domain.PositionStatusClosed
			return nil
		}
		p.BorrowedAmount = remaining
		p.HealthFactor = ComputeHealthFactor(p.CollateralAmount, p.LiquidationThreshold, p.BorrowedAmount)
		return nil
	})
	if err != nil {
		return nil, err
	}
	action := domain.ActionLoanPartiallyRepaid
	if fullyRepaid {
		action = domain.ActionLoanFullyRepaid
	}
	s.record(ctx, pos.UserAddress, action, pos, map[string]interface{}{
		"positionId":        pos.ID,
		"repayAmount":       amount.String(),
		"remainingBorrowed": pos.BorrowedAmount.String(),
		"newHealthFactor":   pos.HealthFactor,
		"fullyRepaid":       fullyRepaid,
	})
	return pos, nil
}

// Liquidate closes out an unhealthy position. Eligibility is judged on the
// stored health factor, which every mutation keeps current.
func (s *Service) Liquidate(ctx context.Context, id uint, liquidator string) (pos *domain.LendingPosition, err error) {
	defer func() { s.observe("liquidate", err) }()

	liquidator = domain.NormalizeAddress(liquidator)
	if liquidator == "" {
		return nil, domain.Validation("liquidatorAddress is required")
	}
	var snapshot domain.LendingPosition
	pos, err = s.mutate(ctx, id, func(p *domain.LendingPosition) error {
		if !IsLiquidatable(p.HealthFactor) {
			return domain.NotEligible("position %d is not liquidatable: health factor %s", p.ID, p.HealthFactor.String())
		}
		snapshot = *p
		p.Status = domain.PositionStatusLiquidated
		p.HealthFactor = domain.NewHealthFactor(decimal.Zero)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, liquidator, domain.ActionPositionLiquidated, pos, map[string]interface{}{
		"positionId":                pos.ID,
		"ownerAddress":              pos.UserAddress,
		"liquidatorAddress":         liquidator,
		"collateralAmount":          snapshot.CollateralAmount.String(),
		"borrowedAmount":            snapshot.BorrowedAmount.String(),
		"healthFactorAtLiquidation": snapshot.HealthFactor,
	})
	return pos, nil
}

// UpdateThreshold changes the fraction of collateral counted toward health
// and recomputes the health factor. The result may be liquidatable.
func (s *Service) UpdateThreshold(ctx context.Context, id uint, threshold decimal.Decimal) (pos *domain.LendingPosition, err error) {
	defer func() { s.observe("update_threshold", err) }()

	if err := validation.Var("liquidationThreshold", threshold, thresholdRules); err != nil {
		return nil, err
	}
	var before domain.LendingPosition
	pos, err = s.mutate(ctx, id, func(p *domain.LendingPosition) error {
		before = *p
		p.LiquidationThreshold = threshold
		p.HealthFactor = ComputeHealthFactor(p.CollateralAmount, p.LiquidationThreshold, p.BorrowedAmount)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, pos.UserAddress, domain.ActionLiquidationThresholdUpdated, pos, map[string]interface{}{
		"positionId":         pos.ID,
		"previousThreshold":  before.LiquidationThreshold.String(),
		"newThreshold":       threshold.String(),
		"healthFactorBefore": before.HealthFactor,
		"healthFactorAfter":  pos.HealthFactor,
		"liquidatable":       IsLiquidatable(pos.HealthFactor),
	})
	return pos, nil
}

// mutate runs read, apply and conditional write for one active position
// under its lock.
func (s *Service) mutate(ctx context.Context, id uint, apply func(p *domain.LendingPosition) error) (*domain.LendingPosition, error) {
	release, err := s.Locker.Acquire(ctx, positionKey(id))
	if err != nil {
		if errors.Is(err, lock.ErrTimeout) {
			return nil, domain.Conflict("lending position %d is busy, retry later", id)
		}
		return nil, fmt.Errorf("acquire position lock: %w", err)
	}
	defer release()

	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsActive() {
		return nil, domain.InvalidState("lending position %d is %s", id, p.Status)
	}
	expected := p.Version
	if err := apply(p); err != nil {
		return nil, err
	}
	if err := s.Positions.UpdatePosition(ctx, p, expected); err != nil {
		switch {
		case errors.Is(err, repository.ErrConflict):
			return nil, domain.Conflict("lending position %d was modified concurrently", id)
		case errors.Is(err, repository.ErrNotFound):
			return nil, domain.NotFound("lending position %d not found", id)
		}
		return nil, domain.Persistence("update lending position", err)
	}
	return p, nil
}

func (s *Service) load(ctx context.Context, id uint) (*domain.LendingPosition, error) {
	p, err := s.Positions.GetPosition(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NotFound("lending position %d not found", id)
		}
		return nil, domain.Persistence("load lending position", err)
	}
	return p, nil
}

func (s *Service) record(ctx context.Context, user, action string, p *domain.LendingPosition, details map[string]interface{}) {
	if s.Activity == nil {
		return
	}
	// Failures are logged by the recorder; the position change stands.
	_ = s.Activity.Record(ctx, activity.Entry{
		UserAddress: user,
		ActionType:  action,
		CreditID:    activity.CreditRef(p.CreditID),
		Details:     details,
	})
}

func (s *Service) observe(op string, err error) {
	s.Metrics.ObserveLending(op, resultLabel(err))
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, domain.ErrInsufficientCollateral):
		return "insufficient_collateral"
	case errors.Is(err, domain.ErrNotEligible):
		return "not_eligible"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}
