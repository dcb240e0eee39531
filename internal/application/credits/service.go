package credits

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"carbonmarket-backend/internal/application/activity"
	"carbonmarket-backend/internal/domain"
	"carbonmarket-backend/internal/infrastructure/lock"
	"carbonmarket-backend/internal/pkg/validation"
	"carbonmarket-backend/internal/repository"

	"github.com/shopspring/decimal"
)

// Retirer burns retired credits on the ledger.
type Retirer interface {
	Retire(ctx context.Context, owner, tokenID string, amount decimal.Decimal) (string, error)
}

type Service struct {
	Repo     repository.CreditRepository
	Ledger   Retirer
	Activity activity.Recorder
	Locker   lock.Locker
}

// LockKey is the lock shared by every writer of a credit's balance.
func LockKey(id uint) string {
	return "credit:" + strconv.FormatUint(uint64(id), 10)
}

// Retirement is the result of a retire call.
type Retirement struct {
	Credit *domain.CarbonCredit `json:"credit"`
	Amount decimal.Decimal      `json:"amount"`
	TxHash string               `json:"txHash"`
}

func (s *Service) Get(ctx context.Context, id uint) (*domain.CarbonCredit, error) {
	c, err := s.Repo.GetCredit(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NotFound("carbon credit %d not found", id)
		}
		return nil, domain.Persistence("load carbon credit", err)
	}
	return c, nil
}

func (s *Service) List(ctx context.Context, f repository.CreditFilter) ([]domain.CarbonCredit, error) {
	f.OwnerAddress = domain.NormalizeAddress(f.OwnerAddress)
	items, err := s.Repo.ListCredits(ctx, f)
	if err != nil {
		return nil, domain.Persistence("list carbon credits", err)
	}
	if items == nil {
		items = []domain.CarbonCredit{}
	}
	return items, nil
}

// Retire permanently removes amount from the owner's outstanding balance.
func (s *Service) Retire(ctx context.Context, id uint, owner string, amount decimal.Decimal) (*Retirement, error) {
	owner = domain.NormalizeAddress(owner)
	if owner == "" {
		return nil, domain.Validation("ownerAddress is required")
	}
	if err := validation.Var("amount", amount, "decimal_gt=0,decimal_scale=8,decimal_lt=1e22"); err != nil {
		return nil, err
	}

	release, err := s.Locker.Acquire(ctx, LockKey(id))
	if err != nil {
		if errors.Is(err, lock.ErrTimeout) {
			return nil, domain.Conflict("carbon credit %d is busy, retry later", id)
		}
		return nil, fmt.Errorf("acquire credit lock: %w", err)
	}
	defer release()

	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.OwnerAddress != owner {
		return nil, domain.Validation("carbon credit %d is not owned by %s", id, owner)
	}
	if amount.GreaterThan(c.Amount) {
		return nil, domain.Validation("retire amount %s exceeds outstanding %s", amount.String(), c.Amount.String())
	}

	tx, err := s.Ledger.Retire(ctx, owner, c.TokenID, amount)
	if err != nil {
		return nil, fmt.Errorf("retire on ledger: %w", err)
	}
	c.Amount = c.Amount.Sub(amount)
	c.RetiredAmount = c.RetiredAmount.Add(amount)
	if err := s.Repo.UpdateCredit(ctx, c); err != nil {
		return nil, domain.Persistence("update carbon credit", err)
	}
	if s.Activity != nil {
		_ = s.Activity.Record(ctx, activity.Entry{
			UserAddress: owner,
			ActionType:  domain.ActionCreditsRetired,
			CreditID:    activity.CreditRef(c.ID),
			Details: map[string]interface{}{
				"amount":        amount.String(),
				"retiredAmount": c.RetiredAmount.String(),
				"txHash":        tx,
			},
		})
	}
	return &Retirement{Credit: c, Amount: amount, TxHash: tx}, nil
}
