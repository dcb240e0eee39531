package marketplace

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"carbonmarket-backend/internal/application/activity"
	"carbonmarket-backend/internal/application/credits"
	"carbonmarket-backend/internal/domain"
	"carbonmarket-backend/internal/infrastructure/lock"
	"carbonmarket-backend/internal/metrics"
	"carbonmarket-backend/internal/pkg/validation"
	"carbonmarket-backend/internal/repository"

	"github.com/shopspring/decimal"
)

// Settler moves tokens between holders.
type Settler interface {
	Transfer(ctx context.Context, from, to, tokenID string, amount decimal.Decimal) (string, error)
}

// Store is the slice of persistence the marketplace touches.
type Store interface {
	repository.ListingRepository
	repository.CreditRepository
}

// Service runs the secondary market. Listed credits are escrowed out of the
// seller's batch; buyers receive a fresh batch of the same token.
type Service struct {
	Store    Store
	Ledger   Settler
	Activity activity.Recorder
	Locker   lock.Locker
	Metrics  *metrics.Metrics
}

type CreateListingRequest struct {
	SellerAddress  string          `json:"sellerAddress" validate:"required,notblank,max=64"`
	CreditID       uint            `json:"creditId" validate:"required"`
	Amount         decimal.Decimal `json:"amount" validate:"decimal_gt=0,decimal_scale=8,decimal_lt=1e22"`
	PricePerCredit decimal.Decimal `json:"pricePerCredit" validate:"decimal_gt=0,decimal_scale=8,decimal_lt=1e22"`
}

type BuyRequest struct {
	BuyerAddress string          `json:"buyerAddress" validate:"required,notblank,max=64"`
	Amount       decimal.Decimal `json:"amount" validate:"decimal_gt=0,decimal_scale=8,decimal_lt=1e22"`
}

// Purchase is the result of a buy.
type Purchase struct {
	Listing *domain.Listing      `json:"listing"`
	Trade   *domain.Trade        `json:"trade"`
	Credit  *domain.CarbonCredit `json:"credit"`
}

func listingKey(id uint) string {
	return "listing:" + strconv.FormatUint(uint64(id), 10)
}

func (s *Service) acquire(ctx context.Context, key string) (func(), error) {
	release, err := s.Locker.Acquire(ctx, key)
	if err != nil {
		if errors.Is(err, lock.ErrTimeout) {
			return nil, domain.Conflict("%s is busy, retry later", key)
		}
		return nil, fmt.Errorf("acquire %s: %w", key, err)
	}
	return release, nil
}

func (s *Service) credit(ctx context.Context, id uint) (*domain.CarbonCredit, error) {
	c, err := s.Store.GetCredit(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NotFound("carbon credit %d not found", id)
		}
		return nil, domain.Persistence("load carbon credit", err)
	}
	return c, nil
}

// CreateListing escrows amount out of the seller's credit and lists it.
func (s *Service) CreateListing(ctx context.Context, req CreateListingRequest) (*domain.Listing, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	seller := domain.NormalizeAddress(req.SellerAddress)

	release, err := s.acquire(ctx, credits.LockKey(req.CreditID))
	if err != nil {
		return nil, err
	}
	defer release()

	c, err := s.credit(ctx, req.CreditID)
	if err != nil {
		return nil, err
	}
	if c.OwnerAddress != seller {
		return nil, domain.Validation("carbon credit %d is not owned by %s", c.ID, seller)
	}
	if req.Amount.GreaterThan(c.Amount) {
		return nil, domain.Validation("listing amount %s exceeds available %s", req.Amount.String(), c.Amount.String())
	}

	c.Amount = c.Amount.Sub(req.Amount)
	if err := s.Store.UpdateCredit(ctx, c); err != nil {
		return nil, domain.Persistence("escrow carbon credit", err)
	}
	l := &domain.Listing{
		CreditID:       c.ID,
		SellerAddress:  seller,
		Amount:         req.Amount,
		Remaining:      req.Amount,
		PricePerCredit: req.PricePerCredit,
		Status:         domain.ListingStatusActive,
	}
	if err := s.Store.CreateListing(ctx, l); err != nil {
		return nil, domain.Persistence("create listing", err)
	}
	s.record(ctx, seller, domain.ActionListingCreated, c.ID, map[string]interface{}{
		"listingId":      l.ID,
		"amount":         l.Amount.String(),
		"pricePerCredit": l.PricePerCredit.String(),
	})
	return l, nil
}

// Buy fills part or all of an active listing.
func (s *Service) Buy(ctx context.Context, listingID uint, req BuyRequest) (*Purchase, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	buyer := domain.NormalizeAddress(req.BuyerAddress)

	release, err := s.acquire(ctx, listingKey(listingID))
	if err != nil {
		return nil, err
	}
	defer release()

	l, err := s.Get(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if l.Status != domain.ListingStatusActive {
		return nil, domain.InvalidState("listing %d is %s", l.ID, l.Status)
	}
	if l.SellerAddress == buyer {
		return nil, domain.Validation("seller cannot buy their own listing")
	}
	if req.Amount.GreaterThan(l.Remaining) {
		return nil, domain.Validation("amount %s exceeds remaining %s", req.Amount.String(), l.Remaining.String())
	}
	source, err := s.credit(ctx, l.CreditID)
	if err != nil {
		return nil, err
	}

	tx, err := s.Ledger.Transfer(ctx, l.SellerAddress, buyer, source.TokenID, req.Amount)
	if err != nil {
		return nil, fmt.Errorf("settle trade: %w", err)
	}

	l.Remaining = l.Remaining.Sub(req.Amount)
	if l.Remaining.IsZero() {
		l.Status = domain.ListingStatusSold
	}
	if err := s.Store.UpdateListing(ctx, l); err != nil {
		return nil, domain.Persistence("update listing", err)
	}

	bought := &domain.CarbonCredit{
		ProjectID:       source.ProjectID,
		OwnerAddress:    buyer,
		Amount:          req.Amount,
		RetiredAmount:   decimal.Zero,
		TokenID:         source.TokenID,
		ContractAddress: source.ContractAddress,
		ChainID:         source.ChainID,
		TxHash:          tx,
	}
	if err := s.Store.CreateCredit(ctx, bought); err != nil {
		return nil, domain.Persistence("create buyer credit", err)
	}

	trade := &domain.Trade{
		ListingID:      l.ID,
		CreditID:       l.CreditID,
		BuyerAddress:   buyer,
		SellerAddress:  l.SellerAddress,
		Amount:         req.Amount,
		PricePerCredit: l.PricePerCredit,
		TotalPrice:     req.Amount.Mul(l.PricePerCredit).Round(domain.AmountScale),
		TxHash:         tx,
	}
	if err := s.Store.CreateTrade(ctx, trade); err != nil {
		return nil, domain.Persistence("create trade", err)
	}

	s.Metrics.ObserveTrade(req.Amount.InexactFloat64())
	s.record(ctx, buyer, domain.ActionCreditsPurchased, bought.ID, map[string]interface{}{
		"listingId":     l.ID,
		"sellerAddress": l.SellerAddress,
		"amount":        req.Amount.String(),
		"totalPrice":    trade.TotalPrice.String(),
		"txHash":        tx,
	})
	return &Purchase{Listing: l, Trade: trade, Credit: bought}, nil
}

// Cancel withdraws an active listing and returns the unsold remainder.
func (s *Service) Cancel(ctx context.Context, listingID uint, seller string) (*domain.Listing, error) {
	seller = domain.NormalizeAddress(seller)
	if seller == "" {
		return nil, domain.Validation("sellerAddress is required")
	}

	release, err := s.acquire(ctx, listingKey(listingID))
	if err != nil {
		return nil, err
	}
	defer release()

	l, err := s.Get(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if l.SellerAddress != seller {
		return nil, domain.Validation("only the seller can cancel listing %d", l.ID)
	}
	if l.Status != domain.ListingStatusActive {
		return nil, domain.InvalidState("listing %d is %s", l.ID, l.Status)
	}

	releaseCredit, err := s.acquire(ctx, credits.LockKey(l.CreditID))
	if err != nil {
		return nil, err
	}
	defer releaseCredit()

	c, err := s.credit(ctx, l.CreditID)
	if err != nil {
		return nil, err
	}
	returned := l.Remaining
	l.Status = domain.ListingStatusCancelled
	l.Remaining = decimal.Zero
	if err := s.Store.UpdateListing(ctx, l); err != nil {
		return nil, domain.Persistence("update listing", err)
	}
	c.Amount = c.Amount.Add(returned)
	if err := s.Store.UpdateCredit(ctx, c); err != nil {
		return nil, domain.Persistence("release escrow", err)
	}
	s.record(ctx, seller, domain.ActionListingCancelled, c.ID, map[string]interface{}{
		"listingId": l.ID,
		"returned":  returned.String(),
	})
	return l, nil
}

func (s *Service) Get(ctx context.Context, id uint) (*domain.Listing, error) {
	l, err := s.Store.GetListing(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NotFound("listing %d not found", id)
		}
		return nil, domain.Persistence("load listing", err)
	}
	return l, nil
}

func (s *Service) List(ctx context.Context, f repository.ListingFilter) ([]domain.Listing, error) {
	f.SellerAddress = domain.NormalizeAddress(f.SellerAddress)
	items, err := s.Store.ListListings(ctx, f)
	if err != nil {
		return nil, domain.Persistence("list listings", err)
	}
	if items == nil {
		items = []domain.Listing{}
	}
	return items, nil
}

func (s *Service) Trades(ctx context.Context, listingID uint) ([]domain.Trade, error) {
	if _, err := s.Get(ctx, listingID); err != nil {
		return nil, err
	}
	items, err := s.Store.ListTrades(ctx, listingID)
	if err != nil {
		return nil, domain.Persistence("list trades", err)
	}
	if items == nil {
		items = []domain.Trade{}
	}
	return items, nil
}

func (s *Service) record(ctx context.Context, user, action string, creditID uint, details map[string]interface{}) {
	if s.Activity == nil {
		return
	}
	_ = s.Activity.Record(ctx, activity.Entry{
		UserAddress: user,
		ActionType:  action,
		CreditID:    activity.CreditRef(creditID),
		Details:     details,
	})
}
