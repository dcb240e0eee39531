package marketplace

import (
	"context"
	"sync"
	"testing"

	"carbonmarket-backend/internal/application/activity"
	"carbonmarket-backend/internal/domain"
	"carbonmarket-backend/internal/infrastructure/chain"
	"carbonmarket-backend/internal/infrastructure/filestore"
	"carbonmarket-backend/internal/infrastructure/lock"
	"carbonmarket-backend/internal/metrics"
	"carbonmarket-backend/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

func setupMarket(t *testing.T) (*Service, *filestore.Store, *domain.CarbonCredit) {
	t.Helper()
	store, err := filestore.Open("")
	require.NoError(t, err)
	c := &domain.CarbonCredit{ProjectID: 3, OwnerAddress: "0xseller", Amount: dec(100), RetiredAmount: decimal.Zero, TokenID: "3", ChainID: 80002}
	require.NoError(t, store.CreateCredit(context.Background(), c))
	svc := &Service{
		Store:    store,
		Ledger:   chain.NewLedger("", 80002),
		Activity: &activity.Service{Repo: store},
		Locker:   lock.NewMemory(),
		Metrics:  metrics.New(),
	}
	return svc, store, c
}

func TestCreateListing_Escrows(t *testing.T) {
	svc, store, c := setupMarket(t)
	ctx := context.Background()

	l, err := svc.CreateListing(ctx, CreateListingRequest{SellerAddress: "0xSeller", CreditID: c.ID, Amount: dec(40), PricePerCredit: dec(12)})
	require.NoError(t, err)
	assert.Equal(t, domain.ListingStatusActive, l.Status)
	assert.True(t, l.Remaining.Equal(dec(40)))

	got, err := store.GetCredit(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, got.Amount.Equal(dec(60)))

	_, err = svc.CreateListing(ctx, CreateListingRequest{SellerAddress: "0xseller", CreditID: c.ID, Amount: dec(61), PricePerCredit: dec(1)})
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = svc.CreateListing(ctx, CreateListingRequest{SellerAddress: "0xother", CreditID: c.ID, Amount: dec(1), PricePerCredit: dec(1)})
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = svc.CreateListing(ctx, CreateListingRequest{SellerAddress: "0xseller", CreditID: 99, Amount: dec(1), PricePerCredit: dec(1)})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestBuy_PartialThenSoldOut(t *testing.T) {
	svc, store, c := setupMarket(t)
	ctx := context.Background()
	l, err := svc.CreateListing(ctx, CreateListingRequest{SellerAddress: "0xseller", CreditID: c.ID, Amount: dec(40), PricePerCredit: dec(12)})
	require.NoError(t, err)

	p, err := svc.Buy(ctx, l.ID, BuyRequest{BuyerAddress: "0xBuyer", Amount: dec(15)})
	require.NoError(t, err)
	assert.True(t, p.Listing.Remaining.Equal(dec(25)))
	assert.Equal(t, domain.ListingStatusActive, p.Listing.Status)
	assert.True(t, p.Trade.TotalPrice.Equal(dec(180)))
	assert.Equal(t, "0xbuyer", p.Credit.OwnerAddress)
	assert.Equal(t, "3", p.Credit.TokenID)
	assert.Equal(t, p.Trade.TxHash, p.Credit.TxHash)

	_, err = svc.Buy(ctx, l.ID, BuyRequest{BuyerAddress: "0xbuyer", Amount: dec(26)})
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = svc.Buy(ctx, l.ID, BuyRequest{BuyerAddress: "0xseller", Amount: dec(1)})
	assert.ErrorIs(t, err, domain.ErrValidation)

	p, err = svc.Buy(ctx, l.ID, BuyRequest{BuyerAddress: "0xbuyer2", Amount: dec(25)})
	require.NoError(t, err)
	assert.Equal(t, domain.ListingStatusSold, p.Listing.Status)

	_, err = svc.Buy(ctx, l.ID, BuyRequest{BuyerAddress: "0xbuyer", Amount: dec(1)})
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	trades, err := svc.Trades(ctx, l.ID)
	require.NoError(t, err)
	assert.Len(t, trades, 2)

	owned, err := store.ListCredits(ctx, repository.CreditFilter{OwnerAddress: "0xbuyer"})
	require.NoError(t, err)
	assert.Len(t, owned, 1)
}

func TestBuy_ConcurrentNeverOversells(t *testing.T) {
	svc, _, c := setupMarket(t)
	ctx := context.Background()
	l, err := svc.CreateListing(ctx, CreateListingRequest{SellerAddress: "0xseller", CreditID: c.ID, Amount: dec(10), PricePerCredit: dec(1)})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.Buy(ctx, l.ID, BuyRequest{BuyerAddress: "0xbuyer", Amount: dec(1)})
		}()
	}
	wg.Wait()

	trades, err := svc.Trades(ctx, l.ID)
	require.NoError(t, err)
	assert.Len(t, trades, 10)
	got, err := svc.Get(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ListingStatusSold, got.Status)
}

func TestCancel_ReturnsEscrow(t *testing.T) {
	svc, store, c := setupMarket(t)
	ctx := context.Background()
	l, err := svc.CreateListing(ctx, CreateListingRequest{SellerAddress: "0xseller", CreditID: c.ID, Amount: dec(40), PricePerCredit: dec(2)})
	require.NoError(t, err)
	_, err = svc.Buy(ctx, l.ID, BuyRequest{BuyerAddress: "0xbuyer", Amount: dec(10)})
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, l.ID, "0xbuyer")
	assert.ErrorIs(t, err, domain.ErrValidation)

	got, err := svc.Cancel(ctx, l.ID, "0xSELLER")
	require.NoError(t, err)
	assert.Equal(t, domain.ListingStatusCancelled, got.Status)

	credit, err := store.GetCredit(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, credit.Amount.Equal(dec(90)))

	_, err = svc.Cancel(ctx, l.ID, "0xseller")
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	active, err := svc.List(ctx, repository.ListingFilter{Status: domain.ListingStatusActive})
	require.NoError(t, err)
	assert.Empty(t, active)
}
