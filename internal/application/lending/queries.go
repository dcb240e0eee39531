package lending

import (
	"context"
	"time"

	"carbonmarket-backend/internal/domain"
	"carbonmarket-backend/internal/repository"

	"github.com/shopspring/decimal"
)

// PositionView renders a position with plain JSON numbers instead of
// decimal strings. HealthFactor is a number or "infinite".
type PositionView struct {
	ID                   uint        `json:"id"`
	UserAddress          string      `json:"userAddress"`
	CreditID             uint        `json:"creditId"`
	CollateralAmount     float64     `json:"collateralAmount"`
	BorrowedAmount       float64     `json:"borrowedAmount"`
	InterestRate         float64     `json:"interestRate"`
	LiquidationThreshold float64     `json:"liquidationThreshold"`
	HealthFactor         interface{} `json:"healthFactor"`
	Status               string      `json:"status"`
	PositionHash         string      `json:"positionHash"`
	CreatedAt            time.Time   `json:"createdAt"`
	UpdatedAt            time.Time   `json:"updatedAt"`
}

func NewPositionView(p domain.LendingPosition) PositionView {
	var hf interface{} = p.HealthFactor.Decimal().InexactFloat64()
	if p.HealthFactor.IsInfinite() {
		hf = "infinite"
	}
	return PositionView{
		ID:                   p.ID,
		UserAddress:          p.UserAddress,
		CreditID:             p.CreditID,
		CollateralAmount:     p.CollateralAmount.InexactFloat64(),
		BorrowedAmount:       p.BorrowedAmount.InexactFloat64(),
		InterestRate:         p.InterestRate.InexactFloat64(),
		LiquidationThreshold: p.LiquidationThreshold.InexactFloat64(),
		HealthFactor:         hf,
		Status:               p.Status,
		PositionHash:         p.PositionHash,
		CreatedAt:            p.CreatedAt,
		UpdatedAt:            p.UpdatedAt,
	}
}

// Stats aggregates the whole book. Amounts cover active positions only.
type Stats struct {
	TotalPositions      int      `json:"totalPositions"`
	ActivePositions     int      `json:"activePositions"`
	ClosedPositions     int      `json:"closedPositions"`
	LiquidatedPositions int      `json:"liquidatedPositions"`
	TotalCollateral     float64  `json:"totalCollateral"`
	TotalBorrowed       float64  `json:"totalBorrowed"`
	TotalValueLocked    float64  `json:"totalValueLocked"`
	AverageHealthFactor *float64 `json:"averageHealthFactor"`
	AtRiskPositions     int      `json:"atRiskPositions"`
}

func (s *Service) Get(ctx context.Context, id uint) (*domain.LendingPosition, error) {
	return s.load(ctx, id)
}

func (s *Service) List(ctx context.Context, f repository.PositionFilter) ([]domain.LendingPosition, error) {
	f.UserAddress = domain.NormalizeAddress(f.UserAddress)
	items, err := s.Positions.ListPositions(ctx, f)
	if err != nil {
		return nil, domain.Persistence("list lending positions", err)
	}
	if items == nil {
		items = []domain.LendingPosition{}
	}
	return items, nil
}

// UserPositions returns every position of address, newest first.
func (s *Service) UserPositions(ctx context.Context, address string) ([]PositionView, error) {
	address = domain.NormalizeAddress(address)
	if address == "" {
		return nil, domain.Validation("address is required")
	}
	items, err := s.all(ctx, repository.PositionFilter{UserAddress: address})
	if err != nil {
		return nil, err
	}
	out := make([]PositionView, 0, len(items))
	for _, p := range items {
		out = append(out, NewPositionView(p))
	}
	return out, nil
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	items, err := s.all(ctx, repository.PositionFilter{})
	if err != nil {
		return nil, err
	}
	st := &Stats{TotalPositions: len(items)}
	collateral, borrowed, hfSum := decimal.Zero, decimal.Zero, decimal.Zero
	finite := 0
	for _, p := range items {
		switch p.Status {
		case domain.PositionStatusActive:
			st.ActivePositions++
			collateral = collateral.Add(p.CollateralAmount)
			borrowed = borrowed.Add(p.BorrowedAmount)
			if !p.HealthFactor.IsInfinite() {
				hfSum = hfSum.Add(p.HealthFactor.Decimal())
				finite++
			}
			if IsLiquidatable(p.HealthFactor) {
				st.AtRiskPositions++
			}
		case domain.PositionStatusClosed:
			st.ClosedPositions++
		case domain.PositionStatusLiquidated:
			st.LiquidatedPositions++
		}
	}
	st.TotalCollateral = collateral.InexactFloat64()
	st.TotalBorrowed = borrowed.InexactFloat64()
	st.TotalValueLocked = st.TotalCollateral
	if finite > 0 {
		avg := hfSum.DivRound(decimal.NewFromInt(int64(finite)), healthPrecision).InexactFloat64()
		st.AverageHealthFactor = &avg
	}
	return st, nil
}

// all pages through every position matching f.
func (s *Service) all(ctx context.Context, f repository.PositionFilter) ([]domain.LendingPosition, error) {
	f.Page = repository.Page{Limit: repository.MaxLimit}
	var out []domain.LendingPosition
	for {
		batch, err := s.Positions.ListPositions(ctx, f)
		if err != nil {
			return nil, domain.Persistence("list lending positions", err)
		}
		out = append(out, batch...)
		if len(batch) < f.Limit {
			return out, nil
		}
		f.Offset += len(batch)
	}
}
