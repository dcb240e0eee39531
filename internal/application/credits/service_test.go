package credits

import (
	"context"
	"sync"
	"testing"

	"carbonmarket-backend/internal/application/activity"
	"carbonmarket-backend/internal/domain"
	"carbonmarket-backend/internal/infrastructure/chain"
	"carbonmarket-backend/internal/infrastructure/filestore"
	"carbonmarket-backend/internal/infrastructure/lock"
	"carbonmarket-backend/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCredits(t *testing.T) (*Service, *domain.CarbonCredit) {
	t.Helper()
	store, err := filestore.Open("")
	require.NoError(t, err)
	c := &domain.CarbonCredit{ProjectID: 1, OwnerAddress: "0xowner", Amount: decimal.NewFromInt(100), RetiredAmount: decimal.Zero, TokenID: "1"}
	require.NoError(t, store.CreateCredit(context.Background(), c))
	return &Service{
		Repo:     store,
		Ledger:   chain.NewLedger("", 1),
		Activity: &activity.Service{Repo: store},
		Locker:   lock.NewMemory(),
	}, c
}

func TestRetire(t *testing.T) {
	svc, c := setupCredits(t)
	ctx := context.Background()

	r, err := svc.Retire(ctx, c.ID, "0xOWNER", decimal.NewFromInt(40))
	require.NoError(t, err)
	assert.True(t, r.Credit.Amount.Equal(decimal.NewFromInt(60)))
	assert.True(t, r.Credit.RetiredAmount.Equal(decimal.NewFromInt(40)))
	assert.NotEmpty(t, r.TxHash)

	_, err = svc.Retire(ctx, c.ID, "0xowner", decimal.NewFromInt(61))
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = svc.Retire(ctx, c.ID, "0xsomeone", decimal.NewFromInt(1))
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = svc.Retire(ctx, c.ID, "0xowner", decimal.Zero)
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = svc.Retire(ctx, 99, "0xowner", decimal.NewFromInt(1))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRetire_ConcurrentNeverOverdraws(t *testing.T) {
	svc, c := setupCredits(t)
	var wg sync.WaitGroup
	var mu sync.Mutex
	ok := 0
	for i := 0; i < 15; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Retire(context.Background(), c.ID, "0xowner", decimal.NewFromInt(10)); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 10, ok)

	got, err := svc.Get(context.Background(), c.ID)
	require.NoError(t, err)
	assert.True(t, got.Amount.IsZero())

	list, err := svc.List(context.Background(), repository.CreditFilter{OwnerAddress: "0xOwner"})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
